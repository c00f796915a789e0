package utcp

import (
	"context"
	"testing"
)

func TestMCPTransport_WrongProviderType(t *testing.T) {
	tr := NewMCPTransport(nil)
	defer tr.Close()
	prov := &HttpProvider{BaseProvider: BaseProvider{Name: "web", ProviderType: ProviderHTTP}}
	if _, err := tr.RegisterToolProvider(context.Background(), prov); err == nil {
		t.Fatalf("expected wrong_provider_type error")
	}
	if _, err := tr.CallTool(context.Background(), "x", nil, prov); err == nil {
		t.Fatalf("expected wrong_provider_type error")
	}
}

func TestMCPTransport_CallToolUnregisteredProvider(t *testing.T) {
	tr := NewMCPTransport(nil)
	defer tr.Close()
	prov := &MCPProvider{BaseProvider: BaseProvider{Name: "srv", ProviderType: ProviderMCP}}
	if _, err := tr.CallTool(context.Background(), "ping", nil, prov); err == nil {
		t.Fatalf("expected error calling through an unregistered provider")
	}
}

func TestMCPTransport_StreamNotSupported(t *testing.T) {
	tr := NewMCPTransport(nil)
	defer tr.Close()
	if tr.SupportsStream() {
		t.Fatalf("mcp transport must not claim stream support")
	}
	prov := &MCPProvider{BaseProvider: BaseProvider{Name: "srv", ProviderType: ProviderMCP}}
	if _, err := tr.CallToolStream(context.Background(), "ping", nil, prov); err == nil {
		t.Fatalf("expected not_supported error")
	}
}

func TestBuildMCPClient_RejectsBadEntries(t *testing.T) {
	if _, err := buildMCPClient(map[string]interface{}{"transport": "carrier_pigeon"}); err == nil {
		t.Fatalf("expected error for unknown transport")
	}
	if _, err := buildMCPClient(map[string]interface{}{"transport": "http"}); err == nil {
		t.Fatalf("expected error for http entry without url")
	}
	if _, err := buildMCPClient(map[string]interface{}{"transport": "stdio"}); err == nil {
		t.Fatalf("expected error for stdio entry without command")
	}
}
