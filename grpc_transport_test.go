package utcp

import (
	"context"
	"testing"

	"github.com/utcp-dev/go-utcp/internal/pool"
)

func TestGRPCPoolKey(t *testing.T) {
	p := &GRPCProvider{
		BaseProvider: BaseProvider{Name: "dev", ProviderType: ProviderGRPC},
		Host:         "router1",
		Port:         9339,
		ServiceName:  "utcp.UTCPService",
		UseSSL:       true,
	}
	if got := grpcPoolKey(p); got != "router1:9339:true:utcp.UTCPService" {
		t.Fatalf("unexpected pool key: %q", got)
	}
}

func TestGRPCTransport_WrongProviderType(t *testing.T) {
	tr := NewGRPCClientTransport(nil, pool.DefaultOptions(), fastRetry())
	defer tr.Close()
	prov := &TCPProvider{BaseProvider: BaseProvider{Name: "sock", ProviderType: ProviderTCP}}
	if _, err := tr.RegisterToolProvider(context.Background(), prov); err == nil {
		t.Fatalf("expected wrong_provider_type error")
	}
	if _, err := tr.CallTool(context.Background(), "x", nil, prov); err == nil {
		t.Fatalf("expected wrong_provider_type error")
	}
}
