package utcp

import (
	"testing"
	"time"
)

func TestNewClientConfig_Defaults(t *testing.T) {
	cfg := NewClientConfig()
	if cfg.Retry.MaxRetries != 3 || cfg.Retry.RetryDelayMs != 1000 || cfg.Retry.BackoffMultiplier != 2 {
		t.Fatalf("unexpected retry defaults: %+v", cfg.Retry)
	}
	if cfg.Pool.MaxConnections != 10 || cfg.Pool.ConnectionTimeout != 30000 {
		t.Fatalf("unexpected pool defaults: %+v", cfg.Pool)
	}
	if cfg.Search.Algorithm != "combined" {
		t.Fatalf("unexpected search defaults: %+v", cfg.Search)
	}
}

func TestMergeClientConfig_OverlaysOnDefaults(t *testing.T) {
	merged, err := MergeClientConfig(&ClientConfig{
		Variables: map[string]string{"K": "v"},
		Retry:     RetryOptions{MaxRetries: 7},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if merged.Retry.MaxRetries != 7 {
		t.Fatalf("override not applied: %+v", merged.Retry)
	}
	if merged.Retry.RetryDelayMs != 1000 || merged.Retry.BackoffMultiplier != 2 {
		t.Fatalf("unset fields must keep defaults: %+v", merged.Retry)
	}
	if merged.Variables["K"] != "v" {
		t.Fatalf("variables lost in merge: %+v", merged.Variables)
	}
	if merged.Pool.MaxConnections != 10 {
		t.Fatalf("untouched sections must keep defaults: %+v", merged.Pool)
	}
}

func TestMergeClientConfig_NilGivesDefaults(t *testing.T) {
	merged, err := MergeClientConfig(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if merged.Retry.MaxRetries != 3 {
		t.Fatalf("nil override must yield pure defaults: %+v", merged.Retry)
	}
}

func TestRetryOptions_ToPoolRetryOptions(t *testing.T) {
	opts := RetryOptions{MaxRetries: 2, RetryDelayMs: 250, BackoffMultiplier: 1.5}.toPoolRetryOptions()
	if opts.MaxRetries != 2 || opts.RetryDelay != 250*time.Millisecond || opts.BackoffMultiplier != 1.5 {
		t.Fatalf("unexpected conversion: %+v", opts)
	}
}

func TestPoolOptions_ToPoolOptions(t *testing.T) {
	opts := PoolOptions{MaxConnections: 3, ConnectionTimeout: 1000, MaxIdleTime: 2000}.toPoolOptions()
	if opts.MaxConnections != 3 || opts.ConnectionTimeout != time.Second || opts.MaxIdleTime != 2*time.Second {
		t.Fatalf("unexpected conversion: %+v", opts)
	}
}
