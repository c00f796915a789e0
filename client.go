package utcp

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/utcp-dev/go-utcp/openapi"
	"github.com/utcp-dev/go-utcp/search"
)

// Logger is the shape every transport's injected logging closure takes,
// so tests can swap in a silent or recording logger without touching any
// transport's code.
type Logger func(format string, args ...interface{})

// defaultLogger backs every transport with a structured zap.SugaredLogger
// behind the printf-style call shape transports use.
func defaultLogger() Logger {
	z, err := zap.NewProduction()
	if err != nil {
		return func(format string, args ...interface{}) {}
	}
	sugar := z.Sugar()
	return func(format string, args ...interface{}) {
		sugar.Infof(format, args...)
	}
}

// Client is the concurrent orchestrator at the center of the runtime: it
// exclusively owns the repository, dispatches every register/deregister/
// call/stream/search operation, and fans out to the transport matching a
// provider's type.
type Client struct {
	mu         sync.Mutex // serializes repository mutations
	config     *ClientConfig
	transports map[ProviderType]ClientTransport
	repo       ToolRepository
	logger     Logger
}

// NewClient builds a client from (possibly nil) configuration, wires the
// full transport set, and -- if ProvidersFilePath is set -- eagerly
// loads and registers every provider it names.
func NewClient(ctx context.Context, override *ClientConfig) (*Client, error) {
	cfg, err := MergeClientConfig(override)
	if err != nil {
		return nil, err
	}

	logger := defaultLogger()
	c := &Client{
		config: cfg,
		repo:   NewInMemoryToolRepository(),
		logger: logger,
	}
	c.transports = c.defaultTransports(logger, cfg)

	if cfg.ProvidersFilePath != "" {
		if tt, ok := c.transports[ProviderText].(*TextTransport); ok {
			tt.SetBasePath(filepath.Dir(cfg.ProvidersFilePath))
		}
		if err := c.RegisterProvidersFromFile(ctx, cfg.ProvidersFilePath); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// defaultTransports wires one instance per provider type, keyed by the
// typed ProviderType constant. cfg.Retry/cfg.Pool are
// resolved into internal/pool's duration-based option types once here and
// threaded into each pooling/retrying transport's constructor, instead of
// those transports calling pool.DefaultOptions()/pool.DefaultRetryOptions()
// on their own. GraphQL, MCP, CLI, and text manage no pooled connections
// and delegate retry to their own client libraries or are local-only, so
// their constructors take just a logger.
func (c *Client) defaultTransports(logger Logger, cfg *ClientConfig) map[ProviderType]ClientTransport {
	poolOpts := cfg.Pool.toPoolOptions()
	retryOpts := cfg.Retry.toPoolRetryOptions()
	return map[ProviderType]ClientTransport{
		ProviderHTTP:       NewHttpClientTransport(logger, retryOpts),
		ProviderSSE:        NewSSETransport(logger, retryOpts),
		ProviderHTTPStream: NewStreamableHTTPTransport(logger, retryOpts),
		ProviderCLI:        NewCliTransport(logger),
		ProviderWebSocket:  NewWebSocketTransport(logger, poolOpts, retryOpts),
		ProviderGRPC:       NewGRPCClientTransport(logger, poolOpts, retryOpts),
		ProviderGraphQL:    NewGraphQLClientTransport(func(msg string, err error) { logger("%s: %v", msg, err) }),
		ProviderTCP:        NewTCPClientTransport(logger, poolOpts, retryOpts),
		ProviderUDP:        NewUDPClientTransport(logger, retryOpts),
		ProviderWebRTC:     NewWebRTCTransport(logger, poolOpts, retryOpts),
		ProviderMCP:        NewMCPTransport(logger),
		ProviderText:       NewTextTransport(logger),
	}
}

// transportFor returns the transport bound to a provider type, or a
// "no_transport" error for an unwired type.
func (c *Client) transportFor(ptype ProviderType) (ClientTransport, error) {
	tr, ok := c.transports[ptype]
	if !ok {
		return nil, fmt.Errorf("no_transport: unsupported provider type %q", ptype)
	}
	return tr, nil
}

// RegisterProvider runs the full registration sequence: variable
// substitution, name normalization, transport discovery, tool-name
// normalization, then an atomic write into the repository.
func (c *Client) RegisterProvider(ctx context.Context, prov Provider) (Provider, []Tool, error) {
	substituted, err := substituteProviderVariables(prov, c.config)
	if err != nil {
		return nil, nil, fmt.Errorf("variable substitution: %w", err)
	}
	substituted.SetName(normalizeProviderName(substituted.GetName()))
	if substituted.GetName() == "" {
		return nil, nil, fmt.Errorf("invalid_provider: provider must have a name")
	}

	tr, err := c.transportFor(substituted.Type())
	if err != nil {
		return nil, nil, err
	}

	tools, err := tr.RegisterToolProvider(ctx, substituted)
	if err != nil {
		return nil, nil, err
	}

	providerName := substituted.GetName()
	for i := range tools {
		tools[i].Name = fqToolName(providerName, tools[i].Name)
		tools[i].Provider = substituted
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.repo.SaveProviderWithTools(ctx, substituted, tools); err != nil {
		return nil, nil, err
	}
	return substituted, tools, nil
}

// DeregisterProvider releases a provider through its transport and drops
// it, with all its tools, from the repository.
func (c *Client) DeregisterProvider(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prov, err := c.repo.GetProvider(ctx, name)
	if err != nil {
		return fmt.Errorf("not_found: %w", err)
	}
	tr, err := c.transportFor(prov.Type())
	if err != nil {
		return err
	}
	if err := tr.DeregisterToolProvider(ctx, prov); err != nil {
		return err
	}
	return c.repo.RemoveProvider(ctx, name)
}

// resolveCall looks up a fully-qualified tool name, returning the tool
// (carrying its own point-in-time Provider copy, Open Question 4), the
// provider name, and the transport to dispatch through.
func (c *Client) resolveCall(ctx context.Context, fqName string) (*Tool, string, ClientTransport, error) {
	providerName, err := extractProviderName(fqName)
	if err != nil {
		return nil, "", nil, err
	}
	tool, err := c.repo.GetTool(ctx, fqName)
	if err != nil {
		return nil, "", nil, err
	}
	if tool.Provider == nil {
		return nil, "", nil, fmt.Errorf("tool %q has no registered provider", fqName)
	}
	tr, err := c.transportFor(tool.Provider.Type())
	if err != nil {
		return nil, "", nil, err
	}
	return tool, providerName, tr, nil
}

// CallTool resolves a fully-qualified tool name and dispatches the unary
// call through the owning provider's transport.
func (c *Client) CallTool(ctx context.Context, fqName string, args map[string]interface{}) (interface{}, error) {
	tool, providerName, tr, err := c.resolveCall(ctx, fqName)
	if err != nil {
		return nil, err
	}
	name := callName(fqName, providerName, tool.Provider.Type())
	return tr.CallTool(ctx, name, args, tool.Provider)
}

// CallToolStream delegates to the transport's native stream, then
// wraps it in the universal Chunk/End/Error envelope (idempotent: a
// stream that newEnvelopeStreamResult already produced is returned as is).
func (c *Client) CallToolStream(ctx context.Context, fqName string, args map[string]interface{}) (StreamResult, error) {
	tool, providerName, tr, err := c.resolveCall(ctx, fqName)
	if err != nil {
		return nil, err
	}
	if !tr.SupportsStream() {
		return nil, fmt.Errorf("not_supported: transport %q does not support streaming", tr.Name())
	}
	name := callName(fqName, providerName, tool.Provider.Type())
	raw, err := tr.CallToolStream(ctx, name, args, tool.Provider)
	if err != nil {
		return nil, err
	}
	return newEnvelopeStreamResult(raw, map[string]interface{}{
		"transport": tr.Name(),
		"tool":      fqName,
		"provider":  providerName,
		"protocol":  string(tool.Provider.Type()),
	}), nil
}

// SearchTools snapshot-reads the repository and searches over it: a
// fresh search.Engine is built over the current contents for every call,
// per search/search.go's documented contract.
func (c *Client) SearchTools(ctx context.Context, query string, opts search.Options) ([]search.Result, error) {
	tools, err := c.repo.GetTools(ctx)
	if err != nil {
		return nil, err
	}
	providers, err := c.repo.GetProviders(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]search.ToolItem, len(tools))
	for i, t := range tools {
		ptype := ""
		if t.Provider != nil {
			ptype = string(t.Provider.Type())
		}
		providerName, _ := extractProviderName(t.Name)
		items[i] = search.ToolItem{
			Name:                t.Name,
			Description:         t.Description,
			Tags:                t.Tags,
			ProviderName:        providerName,
			ProviderType:        ptype,
			Inputs:              schemaToMap(t.Inputs),
			Outputs:             schemaToMap(t.Outputs),
			AverageResponseSize: t.AverageResponseSize,
		}
	}
	providerItems := make([]search.ProviderItem, len(providers))
	for i, p := range providers {
		providerItems[i] = search.ProviderItem{Name: p.GetName(), Type: string(p.Type())}
	}

	engine := search.NewEngine(items, providerItems)
	return engine.Search(query, opts), nil
}

// schemaToMap lets the search package score against parameter/response
// shape without depending on the root package's concrete schema type.
func schemaToMap(s ToolInputOutputSchema) map[string]interface{} {
	b, err := jsonMarshal(s)
	if err != nil {
		return nil
	}
	var m map[string]interface{}
	if jsonUnmarshal(b, &m) != nil {
		return nil
	}
	return m
}

// ConvertOpenAPI converts a parsed OpenAPI document in bulk: the resulting
// tools are registered directly into the repository under a synthetic
// provider bookkeeping entry, while each tool keeps the concrete
// per-operation HttpProvider the converter generated as its own call-time
// Provider (Open Question 4).
func (c *Client) ConvertOpenAPI(ctx context.Context, spec map[string]interface{}, baseURL, providerName string, opts openapi.Options) ([]Tool, error) {
	conv := openapi.NewConverter(spec, baseURL, providerName)
	converted, err := conv.ConvertWithOptions(opts)
	if err != nil {
		return nil, err
	}
	tools, err := adaptOpenAPITools(converted)
	if err != nil {
		return nil, err
	}
	return c.registerConvertedTools(ctx, providerName, tools)
}

// ConvertOpenAPIMultiple converts a batch of OpenAPI sources, failing
// fast on the first bad source.
func (c *Client) ConvertOpenAPIMultiple(ctx context.Context, sources []openapi.Source, providerName string, opts openapi.Options) ([]Tool, error) {
	converted, err := openapi.ConvertMultiple(sources, opts)
	if err != nil {
		return nil, err
	}
	tools, err := adaptOpenAPITools(converted)
	if err != nil {
		return nil, err
	}
	return c.registerConvertedTools(ctx, providerName, tools)
}

func (c *Client) registerConvertedTools(ctx context.Context, providerName string, tools []Tool) ([]Tool, error) {
	name := normalizeProviderName(providerName)
	bookkeeping := &HttpProvider{BaseProvider: BaseProvider{Name: name, ProviderType: ProviderHTTP}}
	for i := range tools {
		tools[i].Name = fqToolName(name, tools[i].Name)
		if tools[i].Provider == nil {
			tools[i].Provider = bookkeeping
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.repo.SaveProviderWithTools(ctx, bookkeeping, tools); err != nil {
		return nil, err
	}
	return tools, nil
}

// Close tears down every transport's pooled resources.
func (c *Client) Close() error {
	var firstErr error
	for _, tr := range c.transports {
		if err := tr.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
