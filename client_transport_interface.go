package utcp

import "context"

// ClientTransport is the contract every protocol binding implements.
// Register/Deregister discover and release a provider's tools; Call/
// CallStream invoke a single tool unary or as a sequence of chunks.
type ClientTransport interface {
	RegisterToolProvider(ctx context.Context, provider Provider) ([]Tool, error)
	DeregisterToolProvider(ctx context.Context, provider Provider) error
	CallTool(ctx context.Context, toolName string, args map[string]interface{}, provider Provider) (interface{}, error)
	CallToolStream(ctx context.Context, toolName string, args map[string]interface{}, provider Provider) (StreamResult, error)
	Name() string
	SupportsStream() bool
	Close() error
}
