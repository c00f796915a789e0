package openapi

import (
	"fmt"
	"strings"
)

// oauth2FlowOrder fixes the flow-preference order: client_credentials,
// then authorization_code, then password, then implicit. An ordered list
// rather than a map walk, since map iteration order is undefined in Go.
var oauth2FlowOrder = []string{"clientCredentials", "authorizationCode", "password", "implicit"}

// extractAuth maps the first security requirement on an operation (or the
// spec's global security, if the operation declares none) to an auth
// descriptor.
func (c *Converter) extractAuth(op map[string]interface{}) map[string]interface{} {
	var reqs []interface{}
	if opSec, ok := op["security"].([]interface{}); ok {
		reqs = opSec
	} else if globalSec, ok := c.spec["security"].([]interface{}); ok {
		reqs = globalSec
	}
	if len(reqs) == 0 {
		return nil
	}

	schemes := c.securitySchemes()
	for _, raw := range reqs {
		secMap, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		for name := range secMap {
			scheme, ok := schemes[name].(map[string]interface{})
			if !ok {
				continue
			}
			if auth := c.authFromScheme(scheme); auth != nil {
				return auth
			}
		}
	}
	return nil
}

func (c *Converter) securitySchemes() map[string]interface{} {
	if comp, ok := c.spec["components"].(map[string]interface{}); ok {
		if schemes, ok := comp["securitySchemes"].(map[string]interface{}); ok {
			return schemes
		}
	}
	if defs, ok := c.spec["securityDefinitions"].(map[string]interface{}); ok {
		return defs
	}
	return map[string]interface{}{}
}

func (c *Converter) authFromScheme(scheme map[string]interface{}) map[string]interface{} {
	provider := strings.ToUpper(c.providerName)
	typ, _ := scheme["type"].(string)

	switch strings.ToLower(typ) {
	case "apikey":
		loc, _ := scheme["in"].(string)
		name, _ := scheme["name"].(string)
		return map[string]interface{}{
			"auth_type": "api_key",
			"api_key":   fmt.Sprintf("${%s_API_KEY}", provider),
			"var_name":  name,
			"location":  loc,
		}

	case "basic":
		return map[string]interface{}{
			"auth_type": "basic",
			"username":  fmt.Sprintf("${%s_USERNAME}", provider),
			"password":  fmt.Sprintf("${%s_PASSWORD}", provider),
		}

	case "http":
		schemeName, _ := scheme["scheme"].(string)
		switch strings.ToLower(schemeName) {
		case "basic":
			return map[string]interface{}{
				"auth_type": "basic",
				"username":  fmt.Sprintf("${%s_USERNAME}", provider),
				"password":  fmt.Sprintf("${%s_PASSWORD}", provider),
			}
		case "bearer":
			return map[string]interface{}{
				"auth_type": "api_key",
				"api_key":   fmt.Sprintf("Bearer ${%s_API_KEY}", provider),
				"var_name":  "Authorization",
				"location":  "header",
			}
		}

	case "oauth2":
		if flows, ok := scheme["flows"].(map[string]interface{}); ok {
			for _, flowName := range oauth2FlowOrder {
				flow, ok := flows[flowName].(map[string]interface{})
				if !ok {
					continue
				}
				if auth := c.oauth2FromFlow(flow, provider); auth != nil {
					return auth
				}
			}
		}
		// OpenAPI 2.0 fallback: a single flow at the scheme's top level.
		if tokenURL, _ := scheme["tokenUrl"].(string); tokenURL != "" {
			return c.oauth2FromFlow(scheme, provider)
		}

	case "openidconnect":
		return map[string]interface{}{
			"auth_type":     "oauth2",
			"token_url":     scheme["openIdConnectUrl"],
			"client_id":     fmt.Sprintf("${%s_CLIENT_ID}", provider),
			"client_secret": fmt.Sprintf("${%s_CLIENT_SECRET}", provider),
			"scope":         "openid",
		}
	}
	return nil
}

func (c *Converter) oauth2FromFlow(flow map[string]interface{}, provider string) map[string]interface{} {
	tokenURL, _ := flow["tokenUrl"].(string)
	if tokenURL == "" {
		return nil
	}
	var scope string
	if scopes, ok := flow["scopes"].(map[string]interface{}); ok {
		keys := sortedKeys(scopes)
		scope = strings.Join(keys, " ")
	}
	out := map[string]interface{}{
		"auth_type":     "oauth2",
		"token_url":     tokenURL,
		"client_id":     fmt.Sprintf("${%s_CLIENT_ID}", provider),
		"client_secret": fmt.Sprintf("${%s_CLIENT_SECRET}", provider),
	}
	if scope != "" {
		out["scope"] = scope
	}
	return out
}
