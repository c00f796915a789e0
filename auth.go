package utcp

import "errors"

// AuthType identifies which concrete Auth implementation a blob carries.
type AuthType string

const (
	AuthTypeAPIKey AuthType = "api_key"
	AuthTypeBasic  AuthType = "basic"
	AuthTypeOAuth2 AuthType = "oauth2"
)

// Auth is the tagged union of credential schemes a provider can carry.
type Auth interface {
	Type() AuthType
	Validate() error
}

// ApiKeyAuth carries a static key placed in a header, query parameter, or cookie.
type ApiKeyAuth struct {
	AuthType AuthType `json:"auth_type"`
	APIKey   string   `json:"api_key"`
	VarName  string   `json:"var_name"`
	Location string   `json:"location"`
}

func NewApiKeyAuth(apiKey string) *ApiKeyAuth {
	return &ApiKeyAuth{AuthType: AuthTypeAPIKey, APIKey: apiKey, VarName: "X-Api-Key", Location: "header"}
}

func (a *ApiKeyAuth) Type() AuthType { return a.AuthType }

func (a *ApiKeyAuth) Validate() error {
	if a.APIKey == "" {
		return errors.New("api_key must be provided")
	}
	switch a.Location {
	case "header", "query", "cookie":
	default:
		return errors.New("location must be 'header', 'query', or 'cookie'")
	}
	return nil
}

// BasicAuth carries HTTP basic-auth credentials.
type BasicAuth struct {
	AuthType AuthType `json:"auth_type"`
	Username string   `json:"username"`
	Password string   `json:"password"`
}

func NewBasicAuth(username, password string) *BasicAuth {
	return &BasicAuth{AuthType: AuthTypeBasic, Username: username, Password: password}
}

func (b *BasicAuth) Type() AuthType { return b.AuthType }

func (b *BasicAuth) Validate() error {
	if b.Username == "" {
		return errors.New("username must be provided")
	}
	if b.Password == "" {
		return errors.New("password must be provided")
	}
	return nil
}

// OAuth2Auth drives an OAuth2 client-credentials token exchange.
type OAuth2Auth struct {
	AuthType     AuthType `json:"auth_type"`
	TokenURL     string   `json:"token_url"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	Scope        *string  `json:"scope,omitempty"`
}

func NewOAuth2Auth(tokenURL, clientID, clientSecret string, scope *string) *OAuth2Auth {
	return &OAuth2Auth{AuthType: AuthTypeOAuth2, TokenURL: tokenURL, ClientID: clientID, ClientSecret: clientSecret, Scope: scope}
}

func (o *OAuth2Auth) Type() AuthType { return o.AuthType }

func (o *OAuth2Auth) Validate() error {
	if o.TokenURL == "" {
		return errors.New("token_url must be provided")
	}
	if o.ClientID == "" {
		return errors.New("client_id must be provided")
	}
	if o.ClientSecret == "" {
		return errors.New("client_secret must be provided")
	}
	return nil
}

// UnmarshalAuth dispatches on the "auth_type" discriminator field.
func UnmarshalAuth(data []byte) (Auth, error) {
	var probe struct {
		AuthType AuthType `json:"auth_type"`
	}
	if err := jsonUnmarshal(data, &probe); err != nil {
		return nil, err
	}
	switch probe.AuthType {
	case AuthTypeAPIKey:
		var a ApiKeyAuth
		if err := jsonUnmarshal(data, &a); err != nil {
			return nil, err
		}
		return &a, nil
	case AuthTypeBasic:
		var a BasicAuth
		if err := jsonUnmarshal(data, &a); err != nil {
			return nil, err
		}
		return &a, nil
	case AuthTypeOAuth2:
		var a OAuth2Auth
		if err := jsonUnmarshal(data, &a); err != nil {
			return nil, err
		}
		return &a, nil
	default:
		return nil, errors.New("unknown auth_type: " + string(probe.AuthType))
	}
}

// applyAuthToHeaders applies header-located auth schemes to an HTTP-style
// header map; query/cookie-located schemes are applied by the caller since
// they mutate the URL/request rather than headers.
func applyAuthToHeaders(headers map[string]string, a Auth) {
	switch v := a.(type) {
	case *ApiKeyAuth:
		if v.Location == "header" {
			headers[v.VarName] = v.APIKey
		}
	case *BasicAuth:
		// Basic auth is applied via req.SetBasicAuth by transports that
		// have a *http.Request available; header map callers skip it.
	}
}
