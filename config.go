package utcp

import (
	"time"

	"dario.cat/mergo"

	"github.com/utcp-dev/go-utcp/internal/pool"
)

// RetryOptions configures the universal retry-with-backoff wrapper shared
// by every transport's unary and streaming call paths.
type RetryOptions struct {
	MaxRetries        int     `json:"max_retries"`
	RetryDelayMs      int     `json:"retry_delay_ms"`
	BackoffMultiplier float64 `json:"backoff_multiplier"`
}

func defaultRetryOptions() RetryOptions {
	return RetryOptions{MaxRetries: 3, RetryDelayMs: 1000, BackoffMultiplier: 2}
}

// toPoolRetryOptions adapts the millisecond-based wire config into
// internal/pool's time.Duration-based retry options, so the resolved
// ClientConfig.Retry a caller set actually reaches pool.WithRetry instead of
// every transport calling pool.DefaultRetryOptions() on its own.
func (o RetryOptions) toPoolRetryOptions() pool.RetryOptions {
	return pool.RetryOptions{
		MaxRetries:        o.MaxRetries,
		RetryDelay:        time.Duration(o.RetryDelayMs) * time.Millisecond,
		BackoffMultiplier: o.BackoffMultiplier,
	}
}

// PoolOptions configures the per-transport connection pool.
type PoolOptions struct {
	MaxConnections    int `json:"max_connections"`
	ConnectionTimeout int `json:"connection_timeout_ms"`
	MaxIdleTime       int `json:"max_idle_time_ms"`
}

func defaultPoolOptions() PoolOptions {
	return PoolOptions{MaxConnections: 10, ConnectionTimeout: 30000, MaxIdleTime: 300000}
}

// toPoolOptions adapts the millisecond-based wire config into
// internal/pool.Options.
func (o PoolOptions) toPoolOptions() pool.Options {
	return pool.Options{
		MaxConnections:    o.MaxConnections,
		ConnectionTimeout: time.Duration(o.ConnectionTimeout) * time.Millisecond,
		MaxIdleTime:       time.Duration(o.MaxIdleTime) * time.Millisecond,
	}
}

// SearchOptions configures the default search strategy.
type SearchOptions struct {
	DescriptionWeight float64 `json:"description_weight"`
	Algorithm         string  `json:"algorithm"` // exact | fuzzy | semantic | combined
}

func defaultSearchOptions() SearchOptions {
	return SearchOptions{DescriptionWeight: 0.3, Algorithm: "combined"}
}

// ClientConfig is the top-level configuration for a Client.
type ClientConfig struct {
	Variables         map[string]string `json:"variables,omitempty"`
	ProvidersFilePath string            `json:"providers_file_path,omitempty"`
	LoadVariablesFrom []VariableLoader  `json:"-"`
	Retry             RetryOptions      `json:"retry"`
	Pool              PoolOptions       `json:"pool"`
	Search            SearchOptions     `json:"search"`
}

// NewClientConfig returns a config populated entirely with documented
// defaults; callers overlay their own values with MergeClientConfig.
func NewClientConfig() *ClientConfig {
	return &ClientConfig{
		Variables: map[string]string{},
		Retry:     defaultRetryOptions(),
		Pool:      defaultPoolOptions(),
		Search:    defaultSearchOptions(),
	}
}

// MergeClientConfig overlays override onto a copy of the documented
// defaults using dario.cat/mergo, so callers only need to set the fields
// they care about.
func MergeClientConfig(override *ClientConfig) (*ClientConfig, error) {
	merged := NewClientConfig()
	if override == nil {
		return merged, nil
	}
	if err := mergo.Merge(merged, override, mergo.WithOverride); err != nil {
		return nil, err
	}
	return merged, nil
}
