package utcp

import "fmt"

// ProviderType identifies which transport a provider is reached through.
type ProviderType string

const (
	ProviderHTTP       ProviderType = "http"
	ProviderSSE        ProviderType = "sse"
	ProviderHTTPStream ProviderType = "http_stream"
	ProviderCLI        ProviderType = "cli"
	ProviderWebSocket  ProviderType = "websocket"
	ProviderGRPC       ProviderType = "grpc"
	ProviderGraphQL    ProviderType = "graphql"
	ProviderTCP        ProviderType = "tcp"
	ProviderUDP        ProviderType = "udp"
	ProviderWebRTC     ProviderType = "webrtc"
	ProviderMCP        ProviderType = "mcp"
	ProviderText       ProviderType = "text"
)

// Provider is the tagged union of everything a tool can be reached through.
type Provider interface {
	Type() ProviderType
	GetName() string
	SetName(name string)
}

// BaseProvider carries the fields common to every provider kind.
type BaseProvider struct {
	Name         string       `json:"name"`
	ProviderType ProviderType `json:"provider_type"`
}

func (b *BaseProvider) Type() ProviderType { return b.ProviderType }
func (b *BaseProvider) GetName() string    { return b.Name }
func (b *BaseProvider) SetName(name string) { b.Name = name }

type HttpProvider struct {
	BaseProvider
	HTTPMethod   string            `json:"http_method"`
	URL          string            `json:"url"`
	ContentType  string            `json:"content_type"`
	Auth         Auth              `json:"auth,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	BodyField    *string           `json:"body_field,omitempty"`
	HeaderFields []string          `json:"header_fields,omitempty"`
}

type SSEProvider struct {
	BaseProvider
	URL          string            `json:"url"`
	EventType    *string           `json:"event_type,omitempty"`
	Reconnect    bool              `json:"reconnect"`
	RetryTimeout int               `json:"retry_timeout"`
	Auth         Auth              `json:"auth,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	BodyField    *string           `json:"body_field,omitempty"`
	HeaderFields []string          `json:"header_fields,omitempty"`
}

type StreamableHttpProvider struct {
	BaseProvider
	URL          string            `json:"url"`
	HTTPMethod   string            `json:"http_method"`
	ContentType  string            `json:"content_type"`
	ChunkSize    int               `json:"chunk_size"`
	Timeout      int               `json:"timeout"`
	Headers      map[string]string `json:"headers,omitempty"`
	Auth         Auth              `json:"auth,omitempty"`
	BodyField    *string           `json:"body_field,omitempty"`
	HeaderFields []string          `json:"header_fields,omitempty"`
}

type CliProvider struct {
	BaseProvider
	CommandName string            `json:"command_name"`
	EnvVars     map[string]string `json:"env_vars,omitempty"`
	WorkingDir  *string           `json:"working_dir,omitempty"`
}

type WebSocketProvider struct {
	BaseProvider
	URL          string            `json:"url"`
	Protocol     *string           `json:"protocol,omitempty"`
	KeepAlive    bool              `json:"keep_alive"`
	Auth         Auth              `json:"auth,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	HeaderFields []string          `json:"header_fields,omitempty"`
}

type GRPCProvider struct {
	BaseProvider
	Host        string `json:"host"`
	Port        int    `json:"port"`
	ServiceName string `json:"service_name"`
	MethodName  string `json:"method_name"`
	UseSSL      bool   `json:"use_ssl"`
	Auth        Auth   `json:"auth,omitempty"`
}

type GraphQLProvider struct {
	BaseProvider
	URL           string            `json:"url"`
	OperationType string            `json:"operation_type"`
	OperationName *string           `json:"operation_name,omitempty"`
	Auth          Auth              `json:"auth,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	HeaderFields  []string          `json:"header_fields,omitempty"`
}

type TCPProvider struct {
	BaseProvider
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Timeout int    `json:"timeout"`
}

type UDPProvider struct {
	BaseProvider
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Timeout int    `json:"timeout"`
}

type WebRTCProvider struct {
	BaseProvider
	SignalingServer string `json:"signaling_server"`
	PeerID          string `json:"peer_id"`
	DataChannelName string `json:"data_channel_name"`
}

// McpStdioServer launches an MCP server as a local subprocess over stdio.
type McpStdioServer struct {
	Transport string            `json:"transport"`
	Command   string            `json:"command"`
	Args      []string          `json:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
}

// McpHttpServer reaches an MCP server over streamable HTTP.
type McpHttpServer struct {
	Transport string `json:"transport"`
	URL       string `json:"url"`
}

type McpConfig struct {
	McpServers map[string]interface{} `json:"mcpServers"`
}

type MCPProvider struct {
	BaseProvider
	Config McpConfig   `json:"config"`
	Auth   *OAuth2Auth `json:"auth,omitempty"`
}

type TextProvider struct {
	BaseProvider
	FilePath string `json:"file_path"`
}

// UnmarshalProvider dispatches on the provider_type discriminator field to
// the concrete provider struct, including its nested Auth value.
func UnmarshalProvider(data []byte) (Provider, error) {
	var base BaseProvider
	if err := jsonUnmarshal(data, &base); err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	if err := jsonUnmarshal(data, &raw); err != nil {
		return nil, err
	}
	authObj, err := extractEmbeddedAuth(raw)
	if err != nil {
		return nil, err
	}
	if authObj != nil {
		// The struct decodes below cannot fill an Auth interface field from
		// a JSON object, so they run without "auth"; authObj is set after.
		delete(raw, "auth")
		if data, err = jsonMarshal(raw); err != nil {
			return nil, err
		}
	}

	switch base.ProviderType {
	case ProviderHTTP:
		var p HttpProvider
		if err := jsonUnmarshal(data, &p); err != nil {
			return nil, err
		}
		p.Auth = authObj
		return &p, nil
	case ProviderSSE:
		var p SSEProvider
		if err := jsonUnmarshal(data, &p); err != nil {
			return nil, err
		}
		p.Auth = authObj
		return &p, nil
	case ProviderHTTPStream:
		var p StreamableHttpProvider
		if err := jsonUnmarshal(data, &p); err != nil {
			return nil, err
		}
		p.Auth = authObj
		return &p, nil
	case ProviderCLI:
		var p CliProvider
		if err := jsonUnmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case ProviderWebSocket:
		var p WebSocketProvider
		if err := jsonUnmarshal(data, &p); err != nil {
			return nil, err
		}
		p.Auth = authObj
		return &p, nil
	case ProviderGRPC:
		var p GRPCProvider
		if err := jsonUnmarshal(data, &p); err != nil {
			return nil, err
		}
		p.Auth = authObj
		return &p, nil
	case ProviderGraphQL:
		var p GraphQLProvider
		if err := jsonUnmarshal(data, &p); err != nil {
			return nil, err
		}
		p.Auth = authObj
		return &p, nil
	case ProviderTCP:
		var p TCPProvider
		if err := jsonUnmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case ProviderUDP:
		var p UDPProvider
		if err := jsonUnmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case ProviderWebRTC:
		var p WebRTCProvider
		if err := jsonUnmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case ProviderMCP:
		var p MCPProvider
		if err := jsonUnmarshal(data, &p); err != nil {
			return nil, err
		}
		if authObj != nil {
			if o, ok := authObj.(*OAuth2Auth); ok {
				p.Auth = o
			}
		}
		return &p, nil
	case ProviderText:
		var p TextProvider
		if err := jsonUnmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	default:
		return nil, fmt.Errorf("unknown provider_type: %q", base.ProviderType)
	}
}

func extractEmbeddedAuth(raw map[string]interface{}) (Auth, error) {
	authRaw, ok := raw["auth"]
	if !ok || authRaw == nil {
		return nil, nil
	}
	b, err := jsonMarshal(authRaw)
	if err != nil {
		return nil, err
	}
	return UnmarshalAuth(b)
}
