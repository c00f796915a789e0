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

// StreamableHTTPTransport implements ClientTransport for HTTP-stream
// providers: a single request whose response body is read as
// newline-delimited JSON chunks rather than buffered whole, the way
// HttpClientTransport's CallTool reads a complete body. It shares the
// provider/auth plumbing of http_transport.go.
type StreamableHTTPTransport struct {
	httpClient *http.Client
	retryOpts  pool.RetryOptions
	logger     Logger
}

func NewStreamableHTTPTransport(logger Logger, retryOpts pool.RetryOptions) *StreamableHTTPTransport {
	if logger == nil {
		logger = func(format string, args ...interface{}) {}
	}
	return &StreamableHTTPTransport{
		httpClient: &http.Client{},
		retryOpts:  retryOpts,
		logger:     logger,
	}
}

func (t *StreamableHTTPTransport) Name() string         { return "http_stream" }
func (t *StreamableHTTPTransport) SupportsStream() bool { return true }
func (t *StreamableHTTPTransport) Close() error         { return nil }

func (t *StreamableHTTPTransport) applyAuth(req *http.Request, q url.Values, a Auth) error {
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
		return errors.New("oauth2 is not supported for http_stream providers")
	}
	return nil
}

func (t *StreamableHTTPTransport) RegisterToolProvider(ctx context.Context, prov Provider) ([]Tool, error) {
	sp, ok := prov.(*StreamableHttpProvider)
	if !ok {
		return nil, errors.New("StreamableHTTPTransport can only be used with StreamableHttpProvider")
	}

	var raw map[string]interface{}
	err := pool.WithRetry(ctx, t.retryOpts, isTransientNetError, func(ctx context.Context) error {
		q := url.Values{}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, sp.URL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range sp.Headers {
			req.Header.Set(k, v)
		}
		if err := t.applyAuth(req, q, sp.Auth); err != nil {
			return err
		}
		if len(q) > 0 {
			req.URL.RawQuery = q.Encode()
		}

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
			return fmt.Errorf("http_stream discovery body is not valid JSON: %w", err)
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

func (t *StreamableHTTPTransport) DeregisterToolProvider(ctx context.Context, prov Provider) error {
	return nil
}

// CallTool drains the chunked stream into a unary result: the chunk
// itself when exactly one arrived, otherwise a slice of all chunks.
func (t *StreamableHTTPTransport) CallTool(ctx context.Context, toolName string, args map[string]interface{}, prov Provider) (interface{}, error) {
	sr, err := t.CallToolStream(ctx, toolName, args, prov)
	if err != nil {
		return nil, err
	}
	defer sr.Close()
	var out []interface{}
	for {
		v, err := sr.Next()
		if errors.Is(err, io.EOF) {
			if len(out) == 1 {
				return out[0], nil
			}
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}

// CallToolStream issues the provider's request and reads its response
// body as newline-delimited JSON chunks. ChunkSize, if set, is the
// scanner's initial buffer size (lines may grow to 16x that); Timeout (seconds), if set,
// overrides the 5s default inter-chunk read deadline.
func (t *StreamableHTTPTransport) CallToolStream(ctx context.Context, toolName string, args map[string]interface{}, prov Provider) (StreamResult, error) {
	sp, ok := prov.(*StreamableHttpProvider)
	if !ok {
		return nil, errors.New("StreamableHTTPTransport can only be used with StreamableHttpProvider")
	}

	var payload interface{} = args
	if sp.BodyField != nil {
		payload = map[string]interface{}{*sp.BodyField: args}
	}
	b, err := jsonMarshal(payload)
	if err != nil {
		return nil, err
	}

	method := sp.HTTPMethod
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, sp.URL, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	ct := sp.ContentType
	if ct == "" {
		ct = "application/json"
	}
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Accept", "application/x-ndjson, application/json")
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

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fmt.Errorf("tool %s returned error status: %s", toolName, resp.Status)
	}

	timeout := 5 * time.Second
	if sp.Timeout > 0 {
		timeout = time.Duration(sp.Timeout) * time.Second
	}
	bufSize := 64 * 1024
	if sp.ChunkSize > 0 {
		bufSize = sp.ChunkSize
	}

	items := make(chan interface{})
	errs := make(chan error, 1)
	var once sync.Once
	closeFn := func() error {
		once.Do(func() { resp.Body.Close() })
		return nil
	}

	go t.pump(resp.Body, items, errs, bufSize, timeout)

	return NewChannelStreamResult(items, errs, closeFn), nil
}

// pump reads newline-delimited JSON values from body, one chunk per
// non-empty line, until EOF/error or a read gap exceeding timeout.
func (t *StreamableHTTPTransport) pump(body io.ReadCloser, items chan<- interface{}, errs chan<- error, bufSize int, timeout time.Duration) {
	defer close(items)
	defer close(errs)

	lines := make(chan string)
	scanErrs := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, bufSize), bufSize*16)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			scanErrs <- err
		}
		close(scanErrs)
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var v interface{}
			if err := jsonUnmarshal([]byte(line), &v); err != nil {
				v = line
			}
			items <- v
		case err := <-scanErrs:
			if err != nil {
				errs <- err
			}
			return
		case <-time.After(timeout):
			items <- map[string]interface{}{"type": "error", "error": "timeout"}
			return
		}
	}
}
