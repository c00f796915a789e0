package utcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/utcp-dev/go-utcp/internal/pool"
)

// UDPClientTransport implements ClientTransport over UDP datagrams. UDP
// sockets are connectionless and cheap to open, so unlike TCP/WebSocket
// this transport dials per call; it still goes through the retry wrapper
// since datagrams can be lost outright. Streaming reads successive reply
// datagrams until quiescence (there is no EOF on a datagram socket).
type UDPClientTransport struct {
	retryOpts pool.RetryOptions
	logger    func(format string, args ...interface{})
}

func NewUDPClientTransport(logger func(format string, args ...interface{}), retryOpts pool.RetryOptions) *UDPClientTransport {
	if logger == nil {
		logger = func(format string, args ...interface{}) {}
	}
	return &UDPClientTransport{logger: logger, retryOpts: retryOpts}
}

func (t *UDPClientTransport) Name() string         { return "udp" }
func (t *UDPClientTransport) SupportsStream() bool { return true }
func (t *UDPClientTransport) Close() error         { return nil }

func (t *UDPClientTransport) writeAndRead(ctx context.Context, addr string, timeout time.Duration, payload []byte) ([]byte, error) {
	var resp []byte
	err := pool.WithRetry(ctx, t.retryOpts, isTransientNetError, func(ctx context.Context) error {
		conn, err := net.Dial("udp", addr)
		if err != nil {
			return err
		}
		defer conn.Close()
		if deadline, ok := ctx.Deadline(); ok {
			_ = conn.SetDeadline(deadline)
		} else if timeout > 0 {
			_ = conn.SetDeadline(time.Now().Add(timeout))
		}
		if _, err := conn.Write(payload); err != nil {
			return err
		}
		buf := make([]byte, 65535)
		n, err := conn.Read(buf)
		if err != nil {
			return err
		}
		resp = append([]byte(nil), buf[:n]...)
		return nil
	})
	return resp, err
}

func (t *UDPClientTransport) RegisterToolProvider(ctx context.Context, prov Provider) ([]Tool, error) {
	p, ok := prov.(*UDPProvider)
	if !ok {
		return nil, errors.New("wrong_provider_type: UDPClientTransport requires a UDPProvider")
	}
	addr := fmt.Sprintf("%s:%d", p.Host, p.Port)
	timeout := time.Duration(p.Timeout) * time.Millisecond
	resp, err := t.writeAndRead(ctx, addr, timeout, []byte("DISCOVER"))
	if err != nil {
		return nil, err
	}
	var manual UtcpManual
	if err := jsonUnmarshal(resp, &manual); err != nil {
		return nil, err
	}
	return manual.Tools, nil
}

func (t *UDPClientTransport) DeregisterToolProvider(ctx context.Context, prov Provider) error {
	if _, ok := prov.(*UDPProvider); !ok {
		return errors.New("wrong_provider_type: UDPClientTransport requires a UDPProvider")
	}
	return nil
}

func (t *UDPClientTransport) CallTool(ctx context.Context, toolName string, args map[string]interface{}, prov Provider) (interface{}, error) {
	p, ok := prov.(*UDPProvider)
	if !ok {
		return nil, errors.New("wrong_provider_type: UDPClientTransport requires a UDPProvider")
	}
	addr := fmt.Sprintf("%s:%d", p.Host, p.Port)
	timeout := time.Duration(p.Timeout) * time.Millisecond
	payload, err := jsonMarshal(map[string]interface{}{"tool": toolName, "args": args})
	if err != nil {
		return nil, err
	}
	resp, err := t.writeAndRead(ctx, addr, timeout, payload)
	if err != nil {
		return nil, err
	}
	var result interface{}
	if err := jsonUnmarshal(resp, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// udpStreamQuiescence is the default gap after the last datagram that ends
// a stream; a datagram socket has no close to observe.
const udpStreamQuiescence = 5 * time.Second

// CallToolStream sends the request datagram and then yields every reply
// datagram as one chunk until quiescence: no datagram within the guard
// window (the provider's Timeout, when set, overrides the default) ends
// the stream. The dial and send sit inside the retry wrapper, so a lost
// request datagram is re-sent with backoff before the stream starts.
func (t *UDPClientTransport) CallToolStream(ctx context.Context, toolName string, args map[string]interface{}, prov Provider) (StreamResult, error) {
	p, ok := prov.(*UDPProvider)
	if !ok {
		return nil, errors.New("wrong_provider_type: UDPClientTransport requires a UDPProvider")
	}
	addr := fmt.Sprintf("%s:%d", p.Host, p.Port)
	payload, err := jsonMarshal(map[string]interface{}{"tool": toolName, "args": args})
	if err != nil {
		return nil, err
	}

	var conn net.Conn
	err = pool.WithRetry(ctx, t.retryOpts, isTransientNetError, func(ctx context.Context) error {
		c, err := net.Dial("udp", addr)
		if err != nil {
			return err
		}
		if _, err := c.Write(payload); err != nil {
			c.Close()
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	quiet := udpStreamQuiescence
	if p.Timeout > 0 {
		quiet = time.Duration(p.Timeout) * time.Millisecond
	}

	items := make(chan interface{})
	errs := make(chan error, 1)
	var once sync.Once
	closeConn := func() { once.Do(func() { conn.Close() }) }

	go t.pumpDatagrams(conn, items, errs, quiet, closeConn)

	return NewChannelStreamResult(items, errs, func() error { closeConn(); return nil }), nil
}

// pumpDatagrams yields one decoded value per received datagram until the
// read gap exceeds quiet or the socket fails.
func (t *UDPClientTransport) pumpDatagrams(conn net.Conn, items chan<- interface{}, errs chan<- error, quiet time.Duration, closeConn func()) {
	defer close(items)
	defer close(errs)
	defer closeConn()

	buf := make([]byte, 65535)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(quiet))
		n, err := conn.Read(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return // quiescence
			}
			errs <- err
			return
		}
		var v interface{}
		if err := jsonUnmarshal(buf[:n], &v); err != nil {
			v = string(buf[:n])
		}
		items <- v
	}
}
