package utcp

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/utcp-dev/go-utcp/internal/pool"
)

func TestSSETransport_RegisterToolProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"version":"1.0","tools":[{"name":"events","description":"stream events"}]}`))
	}))
	defer server.Close()

	prov := &SSEProvider{BaseProvider: BaseProvider{Name: "feed", ProviderType: ProviderSSE}, URL: server.URL}
	tr := NewSSETransport(nil, pool.DefaultRetryOptions())
	tools, err := tr.RegisterToolProvider(context.Background(), prov)
	if err != nil {
		t.Fatalf("register error: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "events" {
		t.Fatalf("unexpected tools: %+v", tools)
	}
}

func TestSSETransport_CallToolStream_ParsesRecordsAndDone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		io.WriteString(w, "event: message\n")
		io.WriteString(w, "data: {\"n\":1}\n\n")
		if flusher != nil {
			flusher.Flush()
		}
		io.WriteString(w, "data: {\"n\":2}\n\n")
		if flusher != nil {
			flusher.Flush()
		}
		io.WriteString(w, "data: [DONE]\n\n")
		if flusher != nil {
			flusher.Flush()
		}
	}))
	defer server.Close()

	prov := &SSEProvider{BaseProvider: BaseProvider{Name: "feed", ProviderType: ProviderSSE}, URL: server.URL}
	tr := NewSSETransport(nil, pool.DefaultRetryOptions())
	sr, err := tr.CallToolStream(context.Background(), "feed.events", nil, prov)
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
	if len(got) != 2 {
		t.Fatalf("expected 2 data records before [DONE], got %d: %+v", len(got), got)
	}
	first := got[0].(map[string]interface{})
	if first["n"] != float64(1) {
		t.Fatalf("unexpected first record: %+v", first)
	}
}

func TestSSETransport_CallTool_ReturnsLastRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"n\":1}\n\n")
		io.WriteString(w, "data: {\"n\":2}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	prov := &SSEProvider{BaseProvider: BaseProvider{Name: "feed", ProviderType: ProviderSSE}, URL: server.URL}
	tr := NewSSETransport(nil, pool.DefaultRetryOptions())
	result, err := tr.CallTool(context.Background(), "feed.events", nil, prov)
	if err != nil {
		t.Fatalf("call_tool error: %v", err)
	}
	m := result.(map[string]interface{})
	if m["n"] != float64(2) {
		t.Fatalf("expected the last record before [DONE], got %+v", result)
	}
}
