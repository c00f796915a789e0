package utcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	webrtc "github.com/pion/webrtc/v3"

	"github.com/utcp-dev/go-utcp/internal/pool"
)

// WebRTCTransport implements ClientTransport for WebRTCProvider: an HTTP
// offer/answer signaling exchange followed by data-channel traffic. Peer
// connections are pooled, since a negotiated connection is exactly the
// kind of expensive, reusable handle the pool exists for.
type WebRTCTransport struct {
	pool      *pool.Pool
	providers sync.Map // pool key -> *WebRTCProvider
	retryOpts pool.RetryOptions
	logger    func(format string, args ...interface{})
}

type webrtcConn struct {
	pc *webrtc.PeerConnection
	dc *webrtc.DataChannel
}

func (c *webrtcConn) Close() error {
	_ = c.dc.Close()
	return c.pc.Close()
}

func NewWebRTCTransport(logger func(format string, args ...interface{}), poolOpts pool.Options, retryOpts pool.RetryOptions) *WebRTCTransport {
	if logger == nil {
		logger = func(format string, args ...interface{}) {}
	}
	t := &WebRTCTransport{logger: logger, retryOpts: retryOpts}
	t.pool = pool.New(t.dial, poolOpts)
	return t
}

func (t *WebRTCTransport) Name() string        { return "webrtc" }
func (t *WebRTCTransport) SupportsStream() bool { return true }
func (t *WebRTCTransport) Close() error         { return t.pool.Close() }

func webrtcPoolKey(p *WebRTCProvider) string { return p.Name + "|" + p.SignalingServer + "|" + p.PeerID }

// dial negotiates a new peer connection and data channel against the
// signaling server named by the provider registered for key.
func (t *WebRTCTransport) dial(ctx context.Context, key string) (pool.Conn, error) {
	raw, ok := t.providers.Load(key)
	if !ok {
		return nil, fmt.Errorf("webrtc pool: no provider registered for key %s", key)
	}
	prov := raw.(*WebRTCProvider)

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, err
	}
	dc, err := pc.CreateDataChannel(prov.DataChannelName, nil)
	if err != nil {
		_ = pc.Close()
		return nil, err
	}
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		_ = pc.Close()
		return nil, err
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		_ = pc.Close()
		return nil, err
	}

	body, err := json.Marshal(map[string]string{"peer_id": prov.PeerID, "sdp": offer.SDP})
	if err != nil {
		_ = pc.Close()
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, prov.SignalingServer+"/connect", bytes.NewReader(body))
	if err != nil {
		_ = pc.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		_ = pc.Close()
		return nil, err
	}
	defer resp.Body.Close()

	var ans struct {
		SDP string `json:"sdp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ans); err != nil {
		_ = pc.Close()
		return nil, err
	}
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: ans.SDP}
	if err := pc.SetRemoteDescription(answer); err != nil {
		_ = pc.Close()
		return nil, err
	}

	if err := waitDataChannelOpen(ctx, dc); err != nil {
		_ = pc.Close()
		return nil, err
	}
	return &webrtcConn{pc: pc, dc: dc}, nil
}

func waitDataChannelOpen(ctx context.Context, dc *webrtc.DataChannel) error {
	if dc.ReadyState() == webrtc.DataChannelStateOpen {
		return nil
	}
	opened := make(chan struct{})
	dc.OnOpen(func() { close(opened) })
	select {
	case <-opened:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(30 * time.Second):
		return errors.New("webrtc: data channel did not open within 30s")
	}
}

func (t *WebRTCTransport) acquire(ctx context.Context, prov *WebRTCProvider) (handle pool.Conn, conn *webrtcConn, key string, err error) {
	key = webrtcPoolKey(prov)
	t.providers.Store(key, prov)
	handle, err = t.pool.Acquire(ctx, key)
	if err != nil {
		return nil, nil, key, err
	}
	return handle, handle.(*webrtcConn), key, nil
}

func (t *WebRTCTransport) RegisterToolProvider(ctx context.Context, prov Provider) ([]Tool, error) {
	rtcProv, ok := prov.(*WebRTCProvider)
	if !ok {
		return nil, errors.New("wrong_provider_type: WebRTCTransport requires a WebRTCProvider")
	}
	// acquire inside the retry closure so a full pool or a failed
	// negotiation backs off and retries rather than surfacing immediately.
	var result interface{}
	err := pool.WithRetry(ctx, t.retryOpts, isTransientCallError, func(ctx context.Context) error {
		handle, conn, key, err := t.acquire(ctx, rtcProv)
		if err != nil {
			return err
		}
		r, err := sendAndAwaitReply(ctx, conn.dc, map[string]string{"action": "manual"})
		if err != nil {
			t.pool.Discard(key, handle)
			return err
		}
		t.pool.Release(key, handle)
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	b, err := jsonMarshal(result)
	if err != nil {
		return nil, err
	}
	var manual UtcpManual
	if err := jsonUnmarshal(b, &manual); err != nil {
		return nil, err
	}
	return manual.Tools, nil
}

func (t *WebRTCTransport) DeregisterToolProvider(ctx context.Context, prov Provider) error {
	if _, ok := prov.(*WebRTCProvider); !ok {
		return errors.New("wrong_provider_type: WebRTCTransport requires a WebRTCProvider")
	}
	return nil
}

// sendAndAwaitReply sends payload as JSON text and waits for the next
// message on dc. WebRTC data channels have no built-in request
// correlation, so this assumes one
// outstanding call at a time per channel — acceptable since calls on a
// given pooled connection are serialized by the pool handing out one
// handle per acquire.
func sendAndAwaitReply(ctx context.Context, dc *webrtc.DataChannel, payload interface{}) (interface{}, error) {
	data, err := jsonMarshal(payload)
	if err != nil {
		return nil, err
	}

	resultCh := make(chan interface{}, 1)
	errCh := make(chan error, 1)
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		var res interface{}
		if err := jsonUnmarshal(msg.Data, &res); err != nil {
			errCh <- err
			return
		}
		resultCh <- res
	})

	if err := dc.SendText(string(data)); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-errCh:
		return nil, err
	case res := <-resultCh:
		return res, nil
	case <-time.After(30 * time.Second):
		return nil, errors.New("webrtc: timed out waiting for reply")
	}
}

func (t *WebRTCTransport) CallTool(ctx context.Context, toolName string, args map[string]interface{}, prov Provider) (interface{}, error) {
	rtcProv, ok := prov.(*WebRTCProvider)
	if !ok {
		return nil, errors.New("wrong_provider_type: WebRTCTransport requires a WebRTCProvider")
	}
	var result interface{}
	err := pool.WithRetry(ctx, t.retryOpts, isTransientCallError, func(ctx context.Context) error {
		handle, conn, key, err := t.acquire(ctx, rtcProv)
		if err != nil {
			return err
		}
		r, err := sendAndAwaitReply(ctx, conn.dc, map[string]interface{}{"tool": toolName, "args": args})
		if err != nil {
			t.pool.Discard(key, handle)
			return err
		}
		t.pool.Release(key, handle)
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (t *WebRTCTransport) CallToolStream(ctx context.Context, toolName string, args map[string]interface{}, prov Provider) (StreamResult, error) {
	rtcProv, ok := prov.(*WebRTCProvider)
	if !ok {
		return nil, errors.New("wrong_provider_type: WebRTCTransport requires a WebRTCProvider")
	}
	data, err := jsonMarshal(map[string]interface{}{"tool": toolName, "args": args})
	if err != nil {
		return nil, err
	}

	items := make(chan interface{})
	errs := make(chan error, 1)
	done := make(chan struct{})
	var once sync.Once

	onMessage := func(msg webrtc.DataChannelMessage) {
		var probe map[string]interface{}
		if jsonUnmarshal(msg.Data, &probe) == nil {
			if probe["type"] == "stream_end" {
				once.Do(func() { close(done) })
				return
			}
		}
		var part interface{}
		if err := jsonUnmarshal(msg.Data, &part); err != nil {
			part = string(msg.Data)
		}
		select {
		case items <- part:
		case <-done:
		}
	}

	var handle pool.Conn
	var key string
	err = pool.WithRetry(ctx, t.retryOpts, isTransientCallError, func(ctx context.Context) error {
		h, conn, k, err := t.acquire(ctx, rtcProv)
		if err != nil {
			return err
		}
		conn.dc.OnMessage(onMessage)
		if err := conn.dc.SendText(string(data)); err != nil {
			t.pool.Discard(k, h)
			return err
		}
		handle, key = h, k
		return nil
	})
	if err != nil {
		return nil, err
	}

	go func() {
		defer close(items)
		defer t.pool.Release(key, handle)
		select {
		case <-done:
		case <-ctx.Done():
			errs <- ctx.Err()
		}
	}()

	return NewChannelStreamResult(items, errs, func() error {
		once.Do(func() { close(done) })
		return nil
	}), nil
}
