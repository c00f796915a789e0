package utcp

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/utcp-dev/go-utcp/internal/pool"
)

func fastRetry() pool.RetryOptions {
	return pool.RetryOptions{MaxRetries: 0, RetryDelay: 0, BackoffMultiplier: 1}
}

func TestHttpTransport_Discovery_UtcpManual(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"version":"1.0","tools":[{"name":"ping","description":"Ping"}]}`))
	}))
	defer server.Close()

	tr := NewHttpClientTransport(nil, fastRetry())
	prov := &HttpProvider{BaseProvider: BaseProvider{Name: "api", ProviderType: ProviderHTTP}, URL: server.URL, HTTPMethod: "GET"}
	tools, err := tr.RegisterToolProvider(context.Background(), prov)
	if err != nil {
		t.Fatalf("register error: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "ping" {
		t.Fatalf("unexpected tools: %+v", tools)
	}
}

func TestHttpTransport_Discovery_OpenAPIFallback(t *testing.T) {
	spec := `{
		"openapi": "3.0.0",
		"info": {"title": "Petstore", "version": "1.0"},
		"servers": [{"url": "https://petstore.example.com/v1"}],
		"paths": {
			"/pets/{id}": {
				"get": {
					"operationId": "getPetById",
					"summary": "Get a pet",
					"parameters": [{"name": "id", "in": "path", "required": true, "schema": {"type": "string"}}],
					"responses": {"200": {"description": "ok"}}
				}
			}
		}
	}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, spec)
	}))
	defer server.Close()

	tr := NewHttpClientTransport(nil, fastRetry())
	prov := &HttpProvider{BaseProvider: BaseProvider{Name: "petstore", ProviderType: ProviderHTTP}, URL: server.URL, HTTPMethod: "GET"}
	tools, err := tr.RegisterToolProvider(context.Background(), prov)
	if err != nil {
		t.Fatalf("register error: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "getPetById" {
		t.Fatalf("expected the OpenAPI operation converted to a tool, got %+v", tools)
	}
	hp, ok := tools[0].Provider.(*HttpProvider)
	if !ok || hp.HTTPMethod != "GET" || hp.URL != "https://petstore.example.com/v1/pets/{id}" {
		t.Fatalf("unexpected generated provider: %+v", tools[0].Provider)
	}
}

func TestHttpTransport_CallTool_PathTemplateAndQuery(t *testing.T) {
	var gotPath, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("limit")
		w.Write([]byte(`{"id":"42"}`))
	}))
	defer server.Close()

	tr := NewHttpClientTransport(nil, fastRetry())
	prov := &HttpProvider{
		BaseProvider: BaseProvider{Name: "api", ProviderType: ProviderHTTP},
		URL:          server.URL + "/pets/{id}",
		HTTPMethod:   "GET",
	}
	result, err := tr.CallTool(context.Background(), "api.getPet", map[string]interface{}{"id": "42", "limit": 5}, prov)
	if err != nil {
		t.Fatalf("call error: %v", err)
	}
	if gotPath != "/pets/42" {
		t.Fatalf("path template not substituted: %q", gotPath)
	}
	if gotQuery != "5" {
		t.Fatalf("leftover args must become query params on GET: %q", gotQuery)
	}
	m := result.(map[string]interface{})
	if m["id"] != "42" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestHttpTransport_CallTool_BasicAuthHeaderShape(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	tr := NewHttpClientTransport(nil, fastRetry())
	prov := &HttpProvider{
		BaseProvider: BaseProvider{Name: "api", ProviderType: ProviderHTTP},
		URL:          server.URL,
		HTTPMethod:   "GET",
		Auth:         NewBasicAuth("user", "pass"),
	}
	if _, err := tr.CallTool(context.Background(), "api.op", nil, prov); err != nil {
		t.Fatalf("call error: %v", err)
	}
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("user:pass"))
	if gotAuth != want {
		t.Fatalf("expected %q, got %q", want, gotAuth)
	}
}

func TestHttpTransport_CallTool_ApiKeyHeaderAndQuery(t *testing.T) {
	var gotHeader, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Tok")
		gotQuery = r.URL.Query().Get("api_key")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	tr := NewHttpClientTransport(nil, fastRetry())
	headerProv := &HttpProvider{
		BaseProvider: BaseProvider{Name: "api", ProviderType: ProviderHTTP},
		URL:          server.URL,
		HTTPMethod:   "GET",
		Auth:         &ApiKeyAuth{AuthType: AuthTypeAPIKey, APIKey: "abc123", VarName: "X-Tok", Location: "header"},
	}
	if _, err := tr.CallTool(context.Background(), "api.op", nil, headerProv); err != nil {
		t.Fatalf("call error: %v", err)
	}
	if gotHeader != "abc123" {
		t.Fatalf("expected header-located key set exactly, got %q", gotHeader)
	}

	queryProv := &HttpProvider{
		BaseProvider: BaseProvider{Name: "api", ProviderType: ProviderHTTP},
		URL:          server.URL,
		HTTPMethod:   "GET",
		Auth:         &ApiKeyAuth{AuthType: AuthTypeAPIKey, APIKey: "abc123", VarName: "api_key", Location: "query"},
	}
	if _, err := tr.CallTool(context.Background(), "api.op", nil, queryProv); err != nil {
		t.Fatalf("call error: %v", err)
	}
	if gotQuery != "abc123" {
		t.Fatalf("expected query-located key in the URL, got %q", gotQuery)
	}
}

func TestHttpTransport_CallTool_Non2xxErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer server.Close()

	tr := NewHttpClientTransport(nil, fastRetry())
	prov := &HttpProvider{BaseProvider: BaseProvider{Name: "api", ProviderType: ProviderHTTP}, URL: server.URL, HTTPMethod: "GET"}
	if _, err := tr.CallTool(context.Background(), "api.op", nil, prov); err == nil {
		t.Fatalf("expected error for non-2xx status")
	}
}

func TestHttpTransport_CallTool_PostSendsJSONBody(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	tr := NewHttpClientTransport(nil, fastRetry())
	prov := &HttpProvider{BaseProvider: BaseProvider{Name: "api", ProviderType: ProviderHTTP}, URL: server.URL, HTTPMethod: "POST"}
	if _, err := tr.CallTool(context.Background(), "api.op", map[string]interface{}{"k": "v"}, prov); err != nil {
		t.Fatalf("call error: %v", err)
	}
	if gotContentType != "application/json" {
		t.Fatalf("unexpected content type: %q", gotContentType)
	}
	var decoded map[string]interface{}
	if err := jsonUnmarshal(gotBody, &decoded); err != nil || decoded["k"] != "v" {
		t.Fatalf("unexpected body: %s", gotBody)
	}
}
