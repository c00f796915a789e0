package utcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/machinebox/graphql"
)

// GraphQLClientTransport is stateless per operation: a new
// *graphql.Client is built per call rather than pooled, since the library
// itself is a thin wrapper over net/http.
type GraphQLClientTransport struct {
	log         func(msg string, err error)
	oauthTokens map[string]graphQLOAuth2Token
	mu          sync.Mutex
}

type graphQLOAuth2Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// TypedArgument lets a caller pin a GraphQL type explicitly instead of
// relying on inferGraphQLType's best-effort guess.
type TypedArgument struct {
	Value interface{}
	Type  string
}

func NewGraphQLClientTransport(logger func(msg string, err error)) *GraphQLClientTransport {
	if logger == nil {
		logger = func(msg string, err error) {}
	}
	return &GraphQLClientTransport{log: logger, oauthTokens: make(map[string]graphQLOAuth2Token)}
}

func (t *GraphQLClientTransport) Name() string        { return "graphql" }
func (t *GraphQLClientTransport) SupportsStream() bool { return true }

func (t *GraphQLClientTransport) enforceHTTPSOrLocalhost(urlStr string) error {
	if strings.HasPrefix(urlStr, "https://") || strings.HasPrefix(urlStr, "http://localhost") ||
		strings.HasPrefix(urlStr, "http://127.0.0.1") || strings.HasPrefix(urlStr, "ws://localhost") ||
		strings.HasPrefix(urlStr, "wss://") {
		return nil
	}
	return fmt.Errorf("security error: graphql provider URL must use HTTPS/WSS or localhost, got: %s", urlStr)
}

func (t *GraphQLClientTransport) handleOAuth2(ctx context.Context, auth *OAuth2Auth) (string, error) {
	t.mu.Lock()
	if token, ok := t.oauthTokens[auth.ClientID]; ok {
		t.mu.Unlock()
		return token.AccessToken, nil
	}
	t.mu.Unlock()

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", auth.ClientID)
	data.Set("client_secret", auth.ClientSecret)
	if auth.Scope != nil {
		data.Set("scope", *auth.Scope)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", auth.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := ioutil.ReadAll(resp.Body)
		return "", fmt.Errorf("token request failed: %s", string(body))
	}
	var tokenResp graphQLOAuth2Token
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", err
	}
	t.mu.Lock()
	t.oauthTokens[auth.ClientID] = tokenResp
	t.mu.Unlock()
	return tokenResp.AccessToken, nil
}

func (t *GraphQLClientTransport) prepareHeaders(ctx context.Context, prov *GraphQLProvider) (map[string]string, error) {
	headers := make(map[string]string)
	for k, v := range prov.Headers {
		headers[k] = v
	}
	if prov.Auth == nil {
		return headers, nil
	}
	switch auth := prov.Auth.(type) {
	case *ApiKeyAuth:
		if !strings.EqualFold(auth.Location, "header") {
			return nil, fmt.Errorf("apikey location %q not supported for graphql transport", auth.Location)
		}
		if auth.APIKey != "" {
			headers[auth.VarName] = auth.APIKey
		}
	case *BasicAuth:
		encoded := base64.StdEncoding.EncodeToString([]byte(auth.Username + ":" + auth.Password))
		headers["Authorization"] = "Basic " + encoded
	case *OAuth2Auth:
		token, err := t.handleOAuth2(ctx, auth)
		if err != nil {
			return nil, fmt.Errorf("oauth2 token error: %w", err)
		}
		headers["Authorization"] = "Bearer " + token
	default:
		return nil, fmt.Errorf("unrecognized auth type %T for graphql transport", auth)
	}
	return headers, nil
}

func (t *GraphQLClientTransport) inferGraphQLType(value interface{}) string {
	if value == nil {
		return "String"
	}
	switch reflect.TypeOf(value).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "Int"
	case reflect.Float32, reflect.Float64:
		return "Float"
	case reflect.Bool:
		return "Boolean"
	case reflect.String:
		return "String"
	case reflect.Map, reflect.Struct, reflect.Slice, reflect.Array:
		return "JSON"
	default:
		return "String"
	}
}

func (t *GraphQLClientTransport) RegisterToolProvider(ctx context.Context, prov Provider) ([]Tool, error) {
	gp, ok := prov.(*GraphQLProvider)
	if !ok {
		return nil, errors.New("wrong_provider_type: GraphQLClientTransport requires a GraphQLProvider")
	}
	if err := t.enforceHTTPSOrLocalhost(gp.URL); err != nil {
		return nil, err
	}
	headers, err := t.prepareHeaders(ctx, gp)
	if err != nil {
		return nil, err
	}
	client := graphql.NewClient(gp.URL)
	client.Log = func(s string) { t.log(s, nil) }

	var schema struct {
		Schema struct {
			QueryType struct {
				Fields []struct {
					Name        string
					Description *string
				}
			} `json:"queryType"`
			MutationType struct {
				Fields []struct {
					Name        string
					Description *string
				}
			} `json:"mutationType"`
		} `json:"__schema"`
	}
	req := graphql.NewRequest(`query { __schema { queryType { fields { name description } } mutationType { fields { name description } } } }`)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if err := client.Run(ctx, req, &schema); err != nil {
		return nil, err
	}

	var tools []Tool
	for _, f := range schema.Schema.QueryType.Fields {
		tools = append(tools, Tool{Name: f.Name, Description: derefOrEmpty(f.Description), Provider: gp})
	}
	for _, f := range schema.Schema.MutationType.Fields {
		tools = append(tools, Tool{Name: f.Name, Description: derefOrEmpty(f.Description), Provider: gp})
	}
	return tools, nil
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (t *GraphQLClientTransport) DeregisterToolProvider(ctx context.Context, prov Provider) error {
	if _, ok := prov.(*GraphQLProvider); !ok {
		return errors.New("wrong_provider_type: GraphQLClientTransport requires a GraphQLProvider")
	}
	return nil
}

func (t *GraphQLClientTransport) buildQuery(toolName string, args map[string]interface{}) (string, []string) {
	var b strings.Builder
	b.WriteString("query ")
	var defs, passes []string
	for k, v := range args {
		var gqlType string
		if typed, ok := v.(TypedArgument); ok {
			gqlType = typed.Type
		} else {
			gqlType = t.inferGraphQLType(v)
		}
		defs = append(defs, fmt.Sprintf("$%s: %s", k, gqlType))
		passes = append(passes, fmt.Sprintf("%s: $%s", k, k))
	}
	if len(defs) > 0 {
		b.WriteString("(" + strings.Join(defs, ", ") + ") ")
	}
	b.WriteString("{ " + toolName)
	if len(passes) > 0 {
		b.WriteString("(" + strings.Join(passes, ", ") + ")")
	}
	b.WriteString(" }")
	return b.String(), passes
}

func (t *GraphQLClientTransport) CallTool(ctx context.Context, toolName string, args map[string]interface{}, prov Provider) (interface{}, error) {
	gp, ok := prov.(*GraphQLProvider)
	if !ok {
		return nil, errors.New("wrong_provider_type: GraphQLClientTransport requires a GraphQLProvider")
	}
	if err := t.enforceHTTPSOrLocalhost(gp.URL); err != nil {
		return nil, err
	}
	headers, err := t.prepareHeaders(ctx, gp)
	if err != nil {
		return nil, err
	}
	client := graphql.NewClient(gp.URL)
	client.Log = func(s string) { t.log(s, nil) }

	query, _ := t.buildQuery(toolName, args)
	req := graphql.NewRequest(query)
	for k, v := range args {
		if typed, ok := v.(TypedArgument); ok {
			req.Var(k, typed.Value)
		} else {
			req.Var(k, v)
		}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	var resp map[string]interface{}
	if err := client.Run(ctx, req, &resp); err != nil {
		return nil, err
	}
	if data, ok := resp[toolName]; ok {
		return data, nil
	}
	return resp, nil
}

func (t *GraphQLClientTransport) Close() error {
	t.mu.Lock()
	t.oauthTokens = make(map[string]graphQLOAuth2Token)
	t.mu.Unlock()
	return nil
}

// CallToolStream opens a graphql-ws subscription and wraps it in the
// shared channelStreamResult so callers see the same envelope every other
// streaming transport produces.
func (t *GraphQLClientTransport) CallToolStream(ctx context.Context, toolName string, args map[string]interface{}, prov Provider) (StreamResult, error) {
	gp, ok := prov.(*GraphQLProvider)
	if !ok {
		return nil, errors.New("wrong_provider_type: GraphQLClientTransport requires a GraphQLProvider")
	}
	if !strings.HasPrefix(gp.URL, "ws://") && !strings.HasPrefix(gp.URL, "wss://") {
		return nil, fmt.Errorf("graphql transport: subscriptions require a ws:// or wss:// provider URL, got %s", gp.URL)
	}
	headers, err := t.prepareHeaders(ctx, gp)
	if err != nil {
		return nil, err
	}

	query, _ := t.buildQuery(toolName, args)
	query = "subscription" + strings.TrimPrefix(query, "query")
	vars := make(map[string]interface{}, len(args))
	for k, v := range args {
		if typed, ok := v.(TypedArgument); ok {
			vars[k] = typed.Value
		} else {
			vars[k] = v
		}
	}

	dialer := websocket.Dialer{Subprotocols: []string{"graphql-ws"}}
	hdr := http.Header{}
	for k, v := range headers {
		hdr.Set(k, v)
	}
	conn, _, err := dialer.DialContext(ctx, gp.URL, hdr)
	if err != nil {
		return nil, fmt.Errorf("graphql subscription dial: %w", err)
	}

	if err := conn.WriteJSON(map[string]interface{}{"type": "connection_init"}); err != nil {
		conn.Close()
		return nil, err
	}
	var ack map[string]interface{}
	if err := conn.ReadJSON(&ack); err != nil {
		conn.Close()
		return nil, err
	}
	if ack["type"] != "connection_ack" {
		conn.Close()
		return nil, fmt.Errorf("graphql subscription: expected connection_ack, got %v", ack["type"])
	}

	startMsg := map[string]interface{}{
		"id":   "subscription-1",
		"type": "start",
		"payload": map[string]interface{}{
			"query":     query,
			"variables": vars,
		},
	}
	if err := conn.WriteJSON(startMsg); err != nil {
		conn.Close()
		return nil, err
	}

	items := make(chan interface{})
	errs := make(chan error, 1)
	go func() {
		defer close(items)
		defer conn.Close()
		for {
			var msg map[string]interface{}
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					errs <- err
				}
				return
			}
			msgType, _ := msg["type"].(string)
			switch msgType {
			case "data":
				if payload, ok := msg["payload"].(map[string]interface{}); ok {
					if data, ok := payload["data"].(map[string]interface{}); ok {
						if toolData, ok := data[toolName]; ok {
							items <- toolData
							continue
						}
						items <- data
					}
				}
			case "error":
				errs <- fmt.Errorf("graphql subscription error: %v", msg["payload"])
				return
			case "complete":
				return
			}
		}
	}()

	closeFn := func() error {
		stopMsg := map[string]interface{}{"id": "subscription-1", "type": "stop"}
		_ = conn.WriteJSON(stopMsg)
		return nil
	}
	return NewChannelStreamResult(items, errs, closeFn), nil
}
