package utcp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/utcp-dev/go-utcp/internal/pool"
)

// TCPClientTransport implements ClientTransport over raw TCP sockets.
// Requests and responses are framed as one newline-delimited JSON object
// each; connections are cached in a per-endpoint pool instead of dialing
// fresh per call. Streaming reads successive frames off the same socket
// until EOF or quiescence.
type TCPClientTransport struct {
	pool      *pool.Pool
	retryOpts pool.RetryOptions
	logger    func(format string, args ...interface{})
}

type tcpConn struct{ net.Conn }

func NewTCPClientTransport(logger func(format string, args ...interface{}), poolOpts pool.Options, retryOpts pool.RetryOptions) *TCPClientTransport {
	if logger == nil {
		logger = func(format string, args ...interface{}) {}
	}
	t := &TCPClientTransport{logger: logger, retryOpts: retryOpts}
	t.pool = pool.New(t.dial, poolOpts)
	return t
}

func (t *TCPClientTransport) Name() string         { return "tcp" }
func (t *TCPClientTransport) SupportsStream() bool { return true }
func (t *TCPClientTransport) Close() error         { return t.pool.Close() }

func tcpKey(prov *TCPProvider) string { return fmt.Sprintf("%s:%d", prov.Host, prov.Port) }

func (t *TCPClientTransport) dial(ctx context.Context, key string) (pool.Conn, error) {
	d := net.Dialer{Timeout: 30 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", key)
	if err != nil {
		return nil, err
	}
	return &tcpConn{conn}, nil
}

func (t *TCPClientTransport) acquire(ctx context.Context, prov *TCPProvider) (pool.Conn, net.Conn, string, error) {
	key := tcpKey(prov)
	timeout := time.Duration(prov.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	handle, err := t.pool.Acquire(dialCtx, key)
	if err != nil {
		return nil, nil, key, err
	}
	return handle, handle.(*tcpConn).Conn, key, nil
}

// roundTrip performs one framed request/response exchange. The acquire is
// inside the retry closure so a full pool or a failed dial backs off and
// tries again instead of surfacing immediately; a handle whose I/O failed
// is discarded so the next attempt dials fresh.
func (t *TCPClientTransport) roundTrip(ctx context.Context, prov *TCPProvider, req interface{}) (interface{}, error) {
	var result interface{}
	err := pool.WithRetry(ctx, t.retryOpts, isTransientNetError, func(ctx context.Context) error {
		handle, conn, key, err := t.acquire(ctx, prov)
		if err != nil {
			return err
		}
		if err := jsonEncodeLine(conn, req); err != nil {
			t.pool.Discard(key, handle)
			return err
		}
		if err := jsonUnmarshalReader(bufio.NewReader(conn), &result); err != nil {
			t.pool.Discard(key, handle)
			return err
		}
		t.pool.Release(key, handle)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// isTransientNetError is the retry predicate for the raw-socket transports:
// genuine network errors and pool exhaustion (a concurrent caller holding
// the last handle) are worth backing off and retrying; anything else --
// malformed JSON, an application-level error value -- is not.
func isTransientNetError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, pool.ErrExhausted) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

func (t *TCPClientTransport) RegisterToolProvider(ctx context.Context, prov Provider) ([]Tool, error) {
	tcpProv, ok := prov.(*TCPProvider)
	if !ok {
		return nil, errors.New("wrong_provider_type: TCPClientTransport requires a TCPProvider")
	}
	result, err := t.roundTrip(ctx, tcpProv, map[string]string{"action": "list"})
	if err != nil {
		return nil, err
	}
	raw, ok := result.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("tcp provider %s: unexpected manual shape %T", tcpProv.Name, result)
	}
	manual, err := NewUtcpManualFromMap(raw)
	if err != nil {
		return nil, err
	}
	return manual.Tools, nil
}

func (t *TCPClientTransport) DeregisterToolProvider(ctx context.Context, prov Provider) error {
	if _, ok := prov.(*TCPProvider); !ok {
		return errors.New("wrong_provider_type: TCPClientTransport requires a TCPProvider")
	}
	return nil
}

func (t *TCPClientTransport) CallTool(ctx context.Context, toolName string, args map[string]interface{}, prov Provider) (interface{}, error) {
	tcpProv, ok := prov.(*TCPProvider)
	if !ok {
		return nil, errors.New("wrong_provider_type: TCPClientTransport requires a TCPProvider")
	}
	return t.roundTrip(ctx, tcpProv, map[string]interface{}{"tool": toolName, "args": args})
}

// tcpStreamQuiescence is the default gap after the last frame that ends a
// stream when the server neither closes the socket nor keeps sending.
const tcpStreamQuiescence = 5 * time.Second

// CallToolStream sends the framed request and then reads successive
// newline-delimited JSON frames off the socket until EOF or quiescence
// (no frame within the guard window; the provider's Timeout, when set,
// overrides the default guard). The connection's framing state is unknown
// once a stream ends, so the handle is discarded rather than returned to
// the pool.
func (t *TCPClientTransport) CallToolStream(ctx context.Context, toolName string, args map[string]interface{}, prov Provider) (StreamResult, error) {
	tcpProv, ok := prov.(*TCPProvider)
	if !ok {
		return nil, errors.New("wrong_provider_type: TCPClientTransport requires a TCPProvider")
	}

	var handle pool.Conn
	var conn net.Conn
	var key string
	err := pool.WithRetry(ctx, t.retryOpts, isTransientNetError, func(ctx context.Context) error {
		h, c, k, err := t.acquire(ctx, tcpProv)
		if err != nil {
			return err
		}
		if err := jsonEncodeLine(c, map[string]interface{}{"tool": toolName, "args": args}); err != nil {
			t.pool.Discard(k, h)
			return err
		}
		handle, conn, key = h, c, k
		return nil
	})
	if err != nil {
		return nil, err
	}

	quiet := tcpStreamQuiescence
	if tcpProv.Timeout > 0 {
		quiet = time.Duration(tcpProv.Timeout) * time.Millisecond
	}

	items := make(chan interface{})
	errs := make(chan error, 1)
	var once sync.Once
	release := func() { once.Do(func() { t.pool.Discard(key, handle) }) }

	go t.pumpFrames(conn, items, errs, quiet, release)

	return NewChannelStreamResult(items, errs, func() error { release(); return nil }), nil
}

// pumpFrames reads one JSON value per non-empty line until the socket
// closes (EOF), the read gap exceeds quiet (quiescence), or a real I/O
// error occurs.
func (t *TCPClientTransport) pumpFrames(conn net.Conn, items chan<- interface{}, errs chan<- error, quiet time.Duration, release func()) {
	defer close(items)
	defer close(errs)
	defer release()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(quiet))
		if !scanner.Scan() {
			err := scanner.Err()
			if err == nil {
				return // EOF
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return // quiescence
			}
			errs <- err
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var v interface{}
		if err := jsonUnmarshal([]byte(line), &v); err != nil {
			v = line
		}
		items <- v
	}
}
