package utcp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/utcp-dev/go-utcp/internal/pool"
)

// WebSocketTransport implements ClientTransport for WebSocketProvider.
// CallTool is a genuine unary exchange (first reply frame only);
// CallToolStream collects frames until an explicit stream_end marker or
// connection close. Connections are pooled, keyed by (url, provider_name).
type WebSocketTransport struct {
	pool      *pool.Pool
	providers sync.Map // pool key -> *WebSocketProvider
	retryOpts pool.RetryOptions
	logger    func(format string, args ...interface{})
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Close() error { return c.conn.Close() }

func NewWebSocketTransport(logger func(format string, args ...interface{}), poolOpts pool.Options, retryOpts pool.RetryOptions) *WebSocketTransport {
	if logger == nil {
		logger = func(format string, args ...interface{}) {}
	}
	t := &WebSocketTransport{logger: logger, retryOpts: retryOpts}
	t.pool = pool.New(t.dial, poolOpts)
	return t
}

func (t *WebSocketTransport) Name() string        { return "websocket" }
func (t *WebSocketTransport) SupportsStream() bool { return true }
func (t *WebSocketTransport) Close() error         { return t.pool.Close() }

func wsPoolKey(p *WebSocketProvider) string { return p.Name + "|" + p.URL }

func (t *WebSocketTransport) applyAuth(h http.Header, prov *WebSocketProvider) error {
	if prov.Auth == nil {
		return nil
	}
	switch a := prov.Auth.(type) {
	case *ApiKeyAuth:
		if strings.ToLower(a.Location) == "header" {
			h.Set(a.VarName, a.APIKey)
		}
	case *BasicAuth:
		enc := base64.StdEncoding.EncodeToString([]byte(a.Username + ":" + a.Password))
		h.Set("Authorization", "Basic "+enc)
	default:
		return fmt.Errorf("unsupported auth type for websocket transport")
	}
	return nil
}

// dial is the pool.Factory: it looks up the provider registered for key
// (stashed by acquire) and performs the handshake.
func (t *WebSocketTransport) dial(ctx context.Context, key string) (pool.Conn, error) {
	raw, ok := t.providers.Load(key)
	if !ok {
		return nil, fmt.Errorf("websocket pool: no provider registered for key %s", key)
	}
	wsProv := raw.(*WebSocketProvider)

	hdr := http.Header{}
	for k, v := range wsProv.Headers {
		hdr.Set(k, v)
	}
	if err := t.applyAuth(hdr, wsProv); err != nil {
		return nil, err
	}
	if wsProv.Protocol != nil {
		hdr.Set("Sec-WebSocket-Protocol", *wsProv.Protocol)
	}
	dialer := &websocket.Dialer{HandshakeTimeout: 30 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsProv.URL, hdr)
	if err != nil {
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}

// acquire returns the pool handle (needed back by Release/Discard, which
// key off the same Conn identity handed out by Acquire) along with the
// raw *websocket.Conn for I/O.
func (t *WebSocketTransport) acquire(ctx context.Context, wsProv *WebSocketProvider) (handle pool.Conn, conn *websocket.Conn, key string, err error) {
	key = wsPoolKey(wsProv)
	t.providers.Store(key, wsProv)
	handle, err = t.pool.Acquire(ctx, key)
	if err != nil {
		return nil, nil, key, err
	}
	return handle, handle.(*wsConn).conn, key, nil
}

func (t *WebSocketTransport) RegisterToolProvider(ctx context.Context, prov Provider) ([]Tool, error) {
	wsProv, ok := prov.(*WebSocketProvider)
	if !ok {
		return nil, errors.New("wrong_provider_type: WebSocketTransport requires a WebSocketProvider")
	}

	// acquire inside the retry closure so a full pool or a failed
	// handshake backs off and retries rather than surfacing immediately.
	var msg []byte
	err := pool.WithRetry(ctx, t.retryOpts, isTransientCallError, func(ctx context.Context) error {
		handle, conn, key, err := t.acquire(ctx, wsProv)
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte("manual")); err != nil {
			t.pool.Discard(key, handle)
			return err
		}
		_, m, err := conn.ReadMessage()
		if err != nil {
			t.pool.Discard(key, handle)
			return err
		}
		t.pool.Release(key, handle)
		msg = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	var manual UtcpManual
	if err := jsonUnmarshal(msg, &manual); err != nil {
		return nil, err
	}
	return manual.Tools, nil
}

func (t *WebSocketTransport) DeregisterToolProvider(ctx context.Context, prov Provider) error {
	if _, ok := prov.(*WebSocketProvider); !ok {
		return errors.New("wrong_provider_type: WebSocketTransport requires a WebSocketProvider")
	}
	return nil
}

func (t *WebSocketTransport) CallTool(ctx context.Context, toolName string, args map[string]interface{}, prov Provider) (interface{}, error) {
	wsProv, ok := prov.(*WebSocketProvider)
	if !ok {
		return nil, errors.New("wrong_provider_type: WebSocketTransport requires a WebSocketProvider")
	}
	data, err := jsonMarshal(args)
	if err != nil {
		return nil, err
	}

	var handle pool.Conn
	var conn *websocket.Conn
	var key string
	err = pool.WithRetry(ctx, t.retryOpts, isTransientCallError, func(ctx context.Context) error {
		h, c, k, err := t.acquire(ctx, wsProv)
		if err != nil {
			return err
		}
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			t.pool.Discard(k, h)
			return err
		}
		handle, conn, key = h, c, k
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer t.pool.Release(key, handle)

	type readResult struct {
		msg []byte
		err error
	}
	resultCh := make(chan readResult, 1)
	go func() {
		_, msg, err := conn.ReadMessage()
		resultCh <- readResult{msg, err}
	}()

	select {
	case r := <-resultCh:
		if r.err != nil {
			t.pool.Discard(key, handle)
			return nil, r.err
		}
		var result interface{}
		if err := jsonUnmarshal(r.msg, &result); err != nil {
			return string(r.msg), nil
		}
		return result, nil
	case <-time.After(30 * time.Second):
		return nil, fmt.Errorf("timeout: no reply from %s within 30s", toolName)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *WebSocketTransport) CallToolStream(ctx context.Context, toolName string, args map[string]interface{}, prov Provider) (StreamResult, error) {
	wsProv, ok := prov.(*WebSocketProvider)
	if !ok {
		return nil, errors.New("wrong_provider_type: WebSocketTransport requires a WebSocketProvider")
	}
	data, err := jsonMarshal(args)
	if err != nil {
		return nil, err
	}

	var handle pool.Conn
	var conn *websocket.Conn
	var key string
	err = pool.WithRetry(ctx, t.retryOpts, isTransientCallError, func(ctx context.Context) error {
		h, c, k, err := t.acquire(ctx, wsProv)
		if err != nil {
			return err
		}
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			t.pool.Discard(k, h)
			return err
		}
		handle, conn, key = h, c, k
		return nil
	})
	if err != nil {
		return nil, err
	}

	items := make(chan interface{})
	errs := make(chan error, 1)
	go func() {
		defer close(items)
		defer t.pool.Release(key, handle)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var probe map[string]interface{}
			if jsonUnmarshal(msg, &probe) == nil {
				if probe["type"] == "stream_end" {
					return
				}
			}
			var part interface{}
			if err := jsonUnmarshal(msg, &part); err != nil {
				part = string(msg)
			}
			select {
			case items <- part:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return NewChannelStreamResult(items, errs, func() error { return nil }), nil
}
