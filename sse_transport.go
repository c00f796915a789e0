package utcp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/utcp-dev/go-utcp/internal/pool"
)

// SSETransport implements ClientTransport over Server-Sent Events: the
// same auth/header plumbing as HttpClientTransport, but the response body
// is read as a line-oriented "text/event-stream" instead of a single
// decoded document.
type SSETransport struct {
	httpClient *http.Client
	retryOpts  pool.RetryOptions
	logger     Logger
}

func NewSSETransport(logger Logger, retryOpts pool.RetryOptions) *SSETransport {
	if logger == nil {
		logger = func(format string, args ...interface{}) {}
	}
	return &SSETransport{
		httpClient: &http.Client{},
		retryOpts:  retryOpts,
		logger:     logger,
	}
}

func (t *SSETransport) Name() string        { return "sse" }
func (t *SSETransport) SupportsStream() bool { return true }
func (t *SSETransport) Close() error         { return nil }

func (t *SSETransport) applyAuth(req *http.Request, q url.Values, a Auth) error {
	if a == nil {
		return nil
	}
	switch auth := a.(type) {
	case *ApiKeyAuth:
		switch strings.ToLower(auth.Location) {
		case "header":
			req.Header.Set(auth.VarName, auth.APIKey)
		case "query":
			q.Set(auth.VarName, auth.APIKey)
		case "cookie":
			req.AddCookie(&http.Cookie{Name: auth.VarName, Value: auth.APIKey})
		}
	case *BasicAuth:
		req.SetBasicAuth(auth.Username, auth.Password)
	case *OAuth2Auth:
		return errors.New("oauth2 is not supported for sse providers")
	}
	return nil
}

func (t *SSETransport) buildRequest(ctx context.Context, sp *SSEProvider, body []byte) (*http.Request, error) {
	method := http.MethodGet
	if body != nil {
		method = http.MethodPost
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, sp.URL, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range sp.Headers {
		req.Header.Set(k, v)
	}
	q := url.Values{}
	if err := t.applyAuth(req, q, sp.Auth); err != nil {
		return nil, err
	}
	if len(q) > 0 {
		req.URL.RawQuery = q.Encode()
	}
	return req, nil
}

// RegisterToolProvider discovers a manual the same way HTTP discovery
// does: a single GET expecting a UtcpManual JSON document (SSE providers
// do not serve OpenAPI documents).
func (t *SSETransport) RegisterToolProvider(ctx context.Context, prov Provider) ([]Tool, error) {
	sp, ok := prov.(*SSEProvider)
	if !ok {
		return nil, errors.New("SSETransport can only be used with SSEProvider")
	}

	var raw map[string]interface{}
	err := pool.WithRetry(ctx, t.retryOpts, isTransientNetError, func(ctx context.Context) error {
		req, err := t.buildRequest(ctx, sp, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json, text/event-stream")

		resp, err := t.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return fmt.Errorf("discovery for provider %s returned status: %s", sp.Name, resp.Status)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if err := jsonUnmarshal(body, &raw); err != nil {
			return fmt.Errorf("sse discovery body is not valid JSON: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	manual, err := NewUtcpManualFromMap(raw)
	if err != nil {
		return nil, err
	}
	return manual.Tools, nil
}

func (t *SSETransport) DeregisterToolProvider(ctx context.Context, prov Provider) error {
	return nil
}

// CallTool collects a full SSE response into a single aggregate value: the
// last data event received before the stream's "end" sentinel or EOF.
func (t *SSETransport) CallTool(ctx context.Context, toolName string, args map[string]interface{}, prov Provider) (interface{}, error) {
	sr, err := t.CallToolStream(ctx, toolName, args, prov)
	if err != nil {
		return nil, err
	}
	defer sr.Close()
	var last interface{}
	for {
		v, err := sr.Next()
		if errors.Is(err, io.EOF) {
			return last, nil
		}
		if err != nil {
			return nil, err
		}
		last = v
	}
}

// CallToolStream opens the SSE connection and parses it record by record:
// a blank line terminates each record, "data:" lines accumulate (joined by
// newline per the SSE spec), and all other fields ("event:", "id:",
// "retry:") are ignored. "data: [DONE]" is folded
// into end-of-stream; a read gap longer than 5s surfaces as a timeout error
// chunk via the sentinel object shape stream.go already recognizes.
func (t *SSETransport) CallToolStream(ctx context.Context, toolName string, args map[string]interface{}, prov Provider) (StreamResult, error) {
	sp, ok := prov.(*SSEProvider)
	if !ok {
		return nil, errors.New("SSETransport can only be used with SSEProvider")
	}

	var body []byte
	if len(args) > 0 {
		payload := map[string]interface{}{"tool": toolName, "args": args}
		if sp.BodyField != nil {
			payload = map[string]interface{}{*sp.BodyField: args}
		}
		b, err := jsonMarshal(payload)
		if err != nil {
			return nil, err
		}
		body = b
	}

	req, err := t.buildRequest(ctx, sp, body)
	if err != nil {
		return nil, err
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fmt.Errorf("tool %s returned error status: %s", toolName, resp.Status)
	}

	items := make(chan interface{})
	errs := make(chan error, 1)
	var once sync.Once
	closeFn := func() error {
		once.Do(func() { resp.Body.Close() })
		return nil
	}

	go t.pump(resp.Body, items, errs)

	return NewChannelStreamResult(items, errs, closeFn), nil
}

const sseReadTimeout = 5 * time.Second

// pump scans the response body line by line, assembling "data:" fields
// into records, and emits one decoded value (or sentinel) per record.
func (t *SSETransport) pump(body io.ReadCloser, items chan<- interface{}, errs chan<- error) {
	defer close(items)
	defer close(errs)

	lines := make(chan string)
	scanErrs := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			scanErrs <- err
		}
		close(scanErrs)
	}()

	var dataLines []string
	flush := func() bool {
		if len(dataLines) == 0 {
			return true
		}
		payload := strings.Join(dataLines, "\n")
		dataLines = nil
		if payload == "[DONE]" {
			return false
		}
		var v interface{}
		if err := jsonUnmarshal([]byte(payload), &v); err != nil {
			v = payload
		}
		items <- v
		return true
	}

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				flush()
				return
			}
			if line == "" {
				if !flush() {
					return
				}
				continue
			}
			if strings.HasPrefix(line, ":") {
				continue // comment line
			}
			if rest, found := strings.CutPrefix(line, "data:"); found {
				dataLines = append(dataLines, strings.TrimPrefix(rest, " "))
				continue
			}
			// event:, id:, retry: and any other field are ignored.
		case err := <-scanErrs:
			if err != nil {
				errs <- err
			}
			return
		case <-time.After(sseReadTimeout):
			items <- map[string]interface{}{"type": "error", "error": "timeout"}
			return
		}
	}
}
