package utcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/utcp-dev/go-utcp/internal/pool"
	"github.com/utcp-dev/go-utcp/openapi"
	"gopkg.in/yaml.v3"
)

// HttpClientTransport implements ClientTransport for plain HTTP/REST
// providers: discovery either parses a UtcpManual directly or falls back
// to treating the response as an OpenAPI document. Discovery goes through
// the shared retry-with-backoff wrapper; CallTool sends each request once,
// without retry.
type HttpClientTransport struct {
	httpClient  *http.Client
	oauthTokens sync.Map // clientID -> cachedToken
	retryOpts   pool.RetryOptions
	logger      func(format string, args ...interface{})
}

type cachedToken struct {
	accessToken string
	expiresAt   time.Time
}

func NewHttpClientTransport(logger func(format string, args ...interface{}), retryOpts pool.RetryOptions) *HttpClientTransport {
	if logger == nil {
		logger = func(format string, args ...interface{}) {}
	}
	return &HttpClientTransport{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retryOpts:  retryOpts,
		logger:     logger,
	}
}

func (t *HttpClientTransport) Name() string        { return "http" }
func (t *HttpClientTransport) SupportsStream() bool { return false }
func (t *HttpClientTransport) Close() error         { return nil }

func (t *HttpClientTransport) applyAuth(req *http.Request, q url.Values, a Auth) error {
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
		token, err := t.handleOAuth2(req.Context(), auth)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

// handleOAuth2 performs a client_credentials token exchange, caching the
// result by client id, and falling back from a form-body grant to an
// HTTP-Basic-authenticated grant if the provider requires it.
func (t *HttpClientTransport) handleOAuth2(ctx context.Context, auth *OAuth2Auth) (string, error) {
	if cached, ok := t.oauthTokens.Load(auth.ClientID); ok {
		tok := cached.(cachedToken)
		if time.Now().Before(tok.expiresAt) {
			return tok.accessToken, nil
		}
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", auth.ClientID)
	form.Set("client_secret", auth.ClientSecret)
	if auth.Scope != nil {
		form.Set("scope", *auth.Scope)
	}

	token, err := t.postTokenRequest(ctx, auth.TokenURL, form, false)
	if err != nil {
		form2 := url.Values{}
		form2.Set("grant_type", "client_credentials")
		if auth.Scope != nil {
			form2.Set("scope", *auth.Scope)
		}
		token, err = t.postTokenRequest(ctx, auth.TokenURL, form2, true, auth.ClientID, auth.ClientSecret)
		if err != nil {
			return "", err
		}
	}

	t.oauthTokens.Store(auth.ClientID, token)
	return token.accessToken, nil
}

func (t *HttpClientTransport) postTokenRequest(ctx context.Context, tokenURL string, form url.Values, basic bool, basicCreds ...string) (cachedToken, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return cachedToken{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if basic && len(basicCreds) == 2 {
		req.SetBasicAuth(basicCreds[0], basicCreds[1])
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return cachedToken{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return cachedToken{}, fmt.Errorf("oauth2 token request failed: status %s", resp.Status)
	}
	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := jsonDecodeBody(resp.Body, &body); err != nil {
		return cachedToken{}, err
	}
	expiresIn := body.ExpiresIn
	if expiresIn == 0 {
		expiresIn = 3600
	}
	return cachedToken{accessToken: body.AccessToken, expiresAt: time.Now().Add(time.Duration(expiresIn) * time.Second)}, nil
}

func jsonDecodeBody(r io.Reader, v interface{}) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return jsonUnmarshal(data, v)
}

func (t *HttpClientTransport) RegisterToolProvider(ctx context.Context, prov Provider) ([]Tool, error) {
	hp, ok := prov.(*HttpProvider)
	if !ok {
		return nil, errors.New("HttpClientTransport can only be used with HttpProvider")
	}

	var raw map[string]interface{}
	err := pool.WithRetry(ctx, t.retryOpts, isTransientNetError, func(ctx context.Context) error {
		q := url.Values{}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, hp.URL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json, application/yaml")
		for k, v := range hp.Headers {
			req.Header.Set(k, v)
		}
		if err := t.applyAuth(req, q, hp.Auth); err != nil {
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
			return fmt.Errorf("discovery for provider %s returned status: %s", hp.Name, resp.Status)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		decoded, err := decodeDiscoveryBody(body, resp.Header.Get("Content-Type"))
		if err != nil {
			return err
		}
		raw = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, hasVersion := raw["version"]; hasVersion {
		manual, err := NewUtcpManualFromMap(raw)
		if err != nil {
			return nil, err
		}
		return manual.Tools, nil
	}

	conv := openapi.NewConverter(raw, hp.URL, hp.Name)
	manualTools, err := conv.Convert()
	if err != nil {
		return nil, err
	}
	return adaptOpenAPITools(manualTools)
}

func decodeDiscoveryBody(body []byte, contentType string) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if strings.Contains(contentType, "yaml") {
		if err := yaml.Unmarshal(body, &raw); err != nil {
			return nil, err
		}
		return raw, nil
	}
	if err := jsonUnmarshal(body, &raw); err == nil {
		return raw, nil
	}
	if err := yaml.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("discovery body is neither valid JSON nor YAML: %w", err)
	}
	return raw, nil
}

func (t *HttpClientTransport) DeregisterToolProvider(ctx context.Context, prov Provider) error {
	return nil
}

func (t *HttpClientTransport) CallTool(ctx context.Context, toolName string, args map[string]interface{}, prov Provider) (interface{}, error) {
	hp, ok := prov.(*HttpProvider)
	if !ok {
		return nil, errors.New("HttpClientTransport can only be used with HttpProvider")
	}

	remaining := make(map[string]interface{}, len(args))
	for k, v := range args {
		remaining[k] = v
	}

	target := hp.URL
	for k, v := range args {
		placeholder := "{" + k + "}"
		if strings.Contains(target, placeholder) {
			target = strings.ReplaceAll(target, placeholder, fmt.Sprint(v))
			delete(remaining, k)
		}
	}

	method := hp.HTTPMethod
	if method == "" {
		method = http.MethodGet
	}

	var req *http.Request
	var err error
	q := url.Values{}

	if method == http.MethodGet || method == http.MethodDelete {
		for k, v := range remaining {
			q.Set(k, fmt.Sprint(v))
		}
		req, err = http.NewRequestWithContext(ctx, method, target, nil)
	} else {
		var payload interface{} = remaining
		if hp.BodyField != nil {
			payload = map[string]interface{}{*hp.BodyField: remaining}
		}
		b, marshalErr := jsonMarshal(payload)
		if marshalErr != nil {
			return nil, marshalErr
		}
		req, err = http.NewRequestWithContext(ctx, method, target, bytes.NewReader(b))
		if req != nil {
			ct := hp.ContentType
			if ct == "" {
				ct = "application/json"
			}
			req.Header.Set("Content-Type", ct)
		}
	}
	if err != nil {
		return nil, err
	}

	for k, v := range hp.Headers {
		req.Header.Set(k, v)
	}
	if err := t.applyAuth(req, q, hp.Auth); err != nil {
		return nil, err
	}
	if len(q) > 0 {
		req.URL.RawQuery = q.Encode()
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("tool %s returned error status: %s", toolName, resp.Status)
	}
	if len(body) == 0 {
		return nil, nil
	}
	var result interface{}
	if err := jsonUnmarshal(body, &result); err != nil {
		return strconv.Quote(string(body)), nil
	}
	return result, nil
}

// CallToolStream is not supported on the plain-HTTP transport: streaming
// HTTP endpoints are addressed through the sse and http_stream provider
// types, which carry the event-stream and chunked-read contracts.
func (t *HttpClientTransport) CallToolStream(ctx context.Context, toolName string, args map[string]interface{}, prov Provider) (StreamResult, error) {
	return nil, errors.New("not_supported: http transport does not stream; use an sse or http_stream provider")
}

// adaptOpenAPITools round-trips the converter's provider-agnostic tool
// list through JSON so each Tool gets the right concrete Provider via
// Tool.UnmarshalJSON's tagged-union dispatch.
func adaptOpenAPITools(tools []openapi.Tool) ([]Tool, error) {
	b, err := jsonMarshal(tools)
	if err != nil {
		return nil, err
	}
	var out []Tool
	if err := jsonUnmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
