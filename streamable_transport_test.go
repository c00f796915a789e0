package utcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/utcp-dev/go-utcp/internal/pool"
)

func TestStreamableHTTPTransport_RegisterToolProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"version":"1.0","tools":[{"name":"tail","description":"tail a log"}]}`))
	}))
	defer server.Close()

	prov := &StreamableHttpProvider{BaseProvider: BaseProvider{Name: "logs", ProviderType: ProviderHTTPStream}, URL: server.URL}
	tr := NewStreamableHTTPTransport(nil, pool.DefaultRetryOptions())
	tools, err := tr.RegisterToolProvider(context.Background(), prov)
	if err != nil {
		t.Fatalf("register error: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "tail" {
		t.Fatalf("unexpected tools: %+v", tools)
	}
}

func TestStreamableHTTPTransport_CallToolStream_ParsesNDJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Write([]byte("{\"line\":1}\n{\"line\":2}\n{\"line\":3}\n"))
	}))
	defer server.Close()

	prov := &StreamableHttpProvider{BaseProvider: BaseProvider{Name: "logs", ProviderType: ProviderHTTPStream}, URL: server.URL, HTTPMethod: http.MethodPost}
	tr := NewStreamableHTTPTransport(nil, pool.DefaultRetryOptions())
	sr, err := tr.CallToolStream(context.Background(), "logs.tail", map[string]interface{}{"since": "now"}, prov)
	if err != nil {
		t.Fatalf("call_tool_stream error: %v", err)
	}
	defer sr.Close()

	var got []interface{}
	for {
		v, err := sr.Next()
		if err != nil {
			break
		}
		got = append(got, v)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 ndjson chunks, got %d: %+v", len(got), got)
	}
}

func TestStreamableHTTPTransport_CallTool_UnwrapsSingleChunk(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}` + "\n"))
	}))
	defer server.Close()

	prov := &StreamableHttpProvider{BaseProvider: BaseProvider{Name: "logs", ProviderType: ProviderHTTPStream}, URL: server.URL}
	tr := NewStreamableHTTPTransport(nil, pool.DefaultRetryOptions())
	result, err := tr.CallTool(context.Background(), "logs.tail", nil, prov)
	if err != nil {
		t.Fatalf("call_tool error: %v", err)
	}
	m, ok := result.(map[string]interface{})
	if !ok || m["ok"] != true {
		t.Fatalf("expected the single chunk unwrapped, got %+v (%T)", result, result)
	}
}
