package utcp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// MCPTransport implements ClientTransport for MCPProvider by delegating
// to github.com/mark3labs/mcp-go's client, which covers both the stdio
// and streamable-HTTP server entries an MCPProvider.Config can name.
type MCPTransport struct {
	mu      sync.Mutex
	servers map[string]map[string]*mcpclient.Client // provider name -> server name -> client
	logger  func(format string, args ...interface{})
}

func NewMCPTransport(logger func(format string, args ...interface{})) *MCPTransport {
	if logger == nil {
		logger = func(format string, args ...interface{}) {}
	}
	return &MCPTransport{logger: logger, servers: make(map[string]map[string]*mcpclient.Client)}
}

func (t *MCPTransport) Name() string        { return "mcp" }
func (t *MCPTransport) SupportsStream() bool { return false }

func buildMCPClient(raw interface{}) (*mcpclient.Client, error) {
	b, err := jsonMarshal(raw)
	if err != nil {
		return nil, err
	}
	var probe struct {
		Transport string `json:"transport"`
	}
	if err := jsonUnmarshal(b, &probe); err != nil {
		return nil, err
	}
	switch probe.Transport {
	case "", "stdio":
		var s McpStdioServer
		if err := jsonUnmarshal(b, &s); err != nil {
			return nil, err
		}
		if s.Command == "" {
			return nil, errors.New("mcp stdio server entry missing command")
		}
		env := make([]string, 0, len(s.Env))
		for k, v := range s.Env {
			env = append(env, k+"="+v)
		}
		return mcpclient.NewStdioMCPClient(s.Command, env, s.Args...)
	case "http", "streamable_http", "sse":
		var s McpHttpServer
		if err := jsonUnmarshal(b, &s); err != nil {
			return nil, err
		}
		if s.URL == "" {
			return nil, errors.New("mcp http server entry missing url")
		}
		return mcpclient.NewStreamableHttpClient(s.URL)
	default:
		return nil, fmt.Errorf("unknown mcp server transport %q", probe.Transport)
	}
}

func (t *MCPTransport) RegisterToolProvider(ctx context.Context, prov Provider) ([]Tool, error) {
	mp, ok := prov.(*MCPProvider)
	if !ok {
		return nil, errors.New("wrong_provider_type: MCPTransport requires an MCPProvider")
	}

	t.mu.Lock()
	if _, exists := t.servers[mp.Name]; exists {
		t.mu.Unlock()
		return nil, fmt.Errorf("mcp provider %s already registered", mp.Name)
	}
	t.mu.Unlock()

	clients := make(map[string]*mcpclient.Client)
	var tools []Tool
	for serverName, raw := range mp.Config.McpServers {
		c, err := buildMCPClient(raw)
		if err != nil {
			closeAll(clients)
			return nil, fmt.Errorf("mcp server %q: %w", serverName, err)
		}
		if err := c.Start(ctx); err != nil {
			c.Close()
			closeAll(clients)
			return nil, fmt.Errorf("mcp server %q: start: %w", serverName, err)
		}
		initReq := mcp.InitializeRequest{}
		initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
		initReq.Params.ClientInfo = mcp.Implementation{Name: "utcp", Version: "1.0"}
		if _, err := c.Initialize(ctx, initReq); err != nil {
			c.Close()
			closeAll(clients)
			return nil, fmt.Errorf("mcp server %q: initialize: %w", serverName, err)
		}
		listed, err := c.ListTools(ctx, mcp.ListToolsRequest{})
		if err != nil {
			c.Close()
			closeAll(clients)
			return nil, fmt.Errorf("mcp server %q: list tools: %w", serverName, err)
		}
		clients[serverName] = c
		for _, lt := range listed.Tools {
			tools = append(tools, Tool{Name: lt.Name, Description: lt.Description, Provider: mp})
		}
	}

	t.mu.Lock()
	t.servers[mp.Name] = clients
	t.mu.Unlock()
	return tools, nil
}

func closeAll(clients map[string]*mcpclient.Client) {
	for _, c := range clients {
		c.Close()
	}
}

func (t *MCPTransport) DeregisterToolProvider(ctx context.Context, prov Provider) error {
	mp, ok := prov.(*MCPProvider)
	if !ok {
		return errors.New("wrong_provider_type: MCPTransport requires an MCPProvider")
	}
	t.mu.Lock()
	clients, exists := t.servers[mp.Name]
	delete(t.servers, mp.Name)
	t.mu.Unlock()
	if exists {
		closeAll(clients)
	}
	return nil
}

// CallTool tries the servers registered for mp.Name one after another, in
// map iteration order (so unspecified), and returns the first successful
// result; if every server fails, the last error is returned.
func (t *MCPTransport) CallTool(ctx context.Context, toolName string, args map[string]interface{}, prov Provider) (interface{}, error) {
	mp, ok := prov.(*MCPProvider)
	if !ok {
		return nil, errors.New("wrong_provider_type: MCPTransport requires an MCPProvider")
	}
	t.mu.Lock()
	clients, exists := t.servers[mp.Name]
	t.mu.Unlock()
	if !exists {
		return nil, fmt.Errorf("mcp provider %s not registered", mp.Name)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = toolName
	req.Params.Arguments = args

	var lastErr error
	for _, c := range clients {
		res, err := c.CallTool(ctx, req)
		if err != nil {
			lastErr = err
			continue
		}
		return mcpResultToValue(res), nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("mcp provider %s has no registered servers", mp.Name)
}

func mcpResultToValue(res *mcp.CallToolResult) interface{} {
	if res == nil {
		return nil
	}
	if len(res.Content) == 1 {
		if tc, ok := mcp.AsTextContent(res.Content[0]); ok {
			var parsed interface{}
			if jsonUnmarshal([]byte(tc.Text), &parsed) == nil {
				return parsed
			}
			return tc.Text
		}
	}
	var out []interface{}
	for _, c := range res.Content {
		if tc, ok := mcp.AsTextContent(c); ok {
			out = append(out, tc.Text)
		} else {
			out = append(out, c)
		}
	}
	return out
}

// CallToolStream is not supported: MCP tool calls are request/response;
// server-side progress notifications are out of scope here.
func (t *MCPTransport) CallToolStream(ctx context.Context, toolName string, args map[string]interface{}, prov Provider) (StreamResult, error) {
	return nil, errors.New("not_supported: MCP transport does not support streaming tool calls")
}

func (t *MCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, clients := range t.servers {
		closeAll(clients)
	}
	t.servers = make(map[string]map[string]*mcpclient.Client)
	return nil
}
