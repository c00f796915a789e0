package openapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Converter turns one OpenAPI 2.0/3.0 document into a set of tools:
// deterministic method ordering, input/output schema extraction,
// security-scheme-to-auth mapping, [DEPRECATED] prefixing, and tag
// filtering.
type Converter struct {
	spec         map[string]interface{}
	baseURL      string
	providerName string
	nameCounts   map[string]int
}

func NewConverter(spec map[string]interface{}, baseURL, providerName string) *Converter {
	if providerName == "" {
		if info, ok := spec["info"].(map[string]interface{}); ok {
			if title, _ := info["title"].(string); title != "" {
				providerName = sanitizeProviderName(title)
			}
		}
		if providerName == "" {
			providerName = "openapi_provider"
		}
	}
	return &Converter{spec: spec, baseURL: baseURL, providerName: providerName, nameCounts: map[string]int{}}
}

// Version reports "2.0" or "3.0" by presence of the discriminating
// top-level key.
func (c *Converter) Version() string {
	if _, ok := c.spec["openapi"]; ok {
		return "3.0"
	}
	if _, ok := c.spec["swagger"]; ok {
		return "2.0"
	}
	return "3.0"
}

func (c *Converter) resolveBaseURL() string {
	if servers, ok := c.spec["servers"].([]interface{}); ok && len(servers) > 0 {
		if srv0, ok := servers[0].(map[string]interface{}); ok {
			if u, _ := srv0["url"].(string); u != "" {
				return strings.TrimRight(u, "/")
			}
		}
	}
	if host, ok := c.spec["host"].(string); ok && host != "" {
		scheme := "https"
		if schemes, ok := c.spec["schemes"].([]interface{}); ok && len(schemes) > 0 {
			if s, ok := schemes[0].(string); ok {
				scheme = s
			}
		}
		basePath, _ := c.spec["basePath"].(string)
		return strings.TrimRight(fmt.Sprintf("%s://%s%s", scheme, host, basePath), "/")
	}
	if c.baseURL != "" {
		return strings.TrimRight(c.baseURL, "/")
	}
	return ""
}

// Convert runs conversion with default options (no filtering).
func (c *Converter) Convert() ([]Tool, error) {
	return c.ConvertWithOptions(Options{})
}

// ConvertWithOptions walks every path/method in the stable method order,
// emitting one Tool per operation that survives filtering.
func (c *Converter) ConvertWithOptions(opts Options) ([]Tool, error) {
	baseURL := c.resolveBaseURL()
	paths, _ := c.spec["paths"].(map[string]interface{})

	var tools []Tool
	for _, path := range sortedKeys(paths) {
		rawItem := paths[path]
		pathItem, ok := rawItem.(map[string]interface{})
		if !ok {
			continue
		}
		for _, method := range httpMethodOrder {
			rawOp, ok := pathItem[method]
			if !ok {
				continue
			}
			op, ok := rawOp.(map[string]interface{})
			if !ok {
				continue
			}
			if c.excluded(op, opts) {
				continue
			}
			tool, err := c.createTool(path, method, op, baseURL, opts)
			if err != nil {
				return nil, err
			}
			if tool != nil {
				tools = append(tools, *tool)
			}
		}
	}
	return tools, nil
}

func (c *Converter) excluded(op map[string]interface{}, opts Options) bool {
	deprecated, _ := op["deprecated"].(bool)
	if deprecated && !opts.IncludeDeprecated {
		return true
	}
	tags := stringSlice(op["tags"])
	if len(opts.ExcludeTags) > 0 && intersects(tags, opts.ExcludeTags) {
		return true
	}
	if len(opts.FilterTags) > 0 && !intersects(tags, opts.FilterTags) {
		return true
	}
	return false
}

func (c *Converter) createTool(path, method string, op map[string]interface{}, baseURL string, opts Options) (*Tool, error) {
	opID, _ := op["operationId"].(string)
	if opID == "" {
		opID = synthesizeOperationID(method, path)
		if count, exists := c.nameCounts[opID]; exists {
			c.nameCounts[opID] = count + 1
			opID = fmt.Sprintf("%s_%d", opID, count+1)
		} else {
			c.nameCounts[opID] = 1
		}
	}
	if opts.Prefix != "" {
		opID = opts.Prefix + "." + opID
	}

	summary, _ := op["summary"].(string)
	description, _ := op["description"].(string)
	desc := summary
	if description != "" {
		if desc != "" {
			desc = desc + " - " + description
		} else {
			desc = description
		}
	}
	if deprecated, _ := op["deprecated"].(bool); deprecated {
		desc = "[DEPRECATED] " + desc
	}

	inputSchema := c.extractInputs(op)
	outputSchema := c.extractOutputs(op)

	var authMap map[string]interface{}
	if opts.AuthOverride != nil {
		authMap = opts.AuthOverride
	} else if a := c.extractAuth(op); a != nil {
		authMap = a
	}

	provider := map[string]interface{}{
		"name":          c.providerName,
		"provider_type": "http",
		"url":           baseURL + path,
		"http_method":   strings.ToUpper(method),
		"content_type":  "application/json",
	}
	if authMap != nil {
		provider["auth"] = authMap
	}

	return &Tool{
		Name:         opID,
		Description:  desc,
		Inputs:       inputSchema,
		Outputs:      outputSchema,
		Tags:         stringSlice(op["tags"]),
		ToolProvider: provider,
	}, nil
}

// extractInputs builds a tool's input schema from path/query/header
// parameters and a body property if a request body exists.
func (c *Converter) extractInputs(op map[string]interface{}) Schema {
	props := map[string]interface{}{}
	var required []string

	if parameters, ok := op["parameters"].([]interface{}); ok {
		for _, rawParam := range parameters {
			param, ok := rawParam.(map[string]interface{})
			if !ok {
				continue
			}
			if ref, has := param["$ref"].(string); has {
				if resolved, err := c.resolveRef(ref); err == nil {
					param = resolved
				}
			}
			name, _ := param["name"].(string)
			if name == "" {
				continue
			}
			schema, _ := param["schema"].(map[string]interface{})
			props[name] = c.resolveSchema(schema)
			if req, _ := param["required"].(bool); req {
				required = append(required, name)
			}
		}
	}

	if rb, ok := op["requestBody"].(map[string]interface{}); ok {
		if ref, has := rb["$ref"].(string); has {
			if resolved, err := c.resolveRef(ref); err == nil {
				rb = resolved
			}
		}
		if content, ok := rb["content"].(map[string]interface{}); ok {
			for _, mediaType := range []string{"application/json"} {
				mt, ok := content[mediaType].(map[string]interface{})
				if !ok {
					continue
				}
				schema, _ := mt["schema"].(map[string]interface{})
				props["body"] = c.resolveSchema(schema)
				break
			}
			if _, has := props["body"]; !has {
				for _, raw := range content {
					if mt, ok := raw.(map[string]interface{}); ok {
						schema, _ := mt["schema"].(map[string]interface{})
						props["body"] = c.resolveSchema(schema)
						break
					}
				}
			}
		}
		if req, _ := rb["required"].(bool); req {
			required = append(required, "body")
		}
	}

	return Schema{Type: "object", Properties: props, Required: required}
}

// extractOutputs builds a tool's output schema from the first 2xx
// response.
func (c *Converter) extractOutputs(op map[string]interface{}) Schema {
	responses, ok := op["responses"].(map[string]interface{})
	if !ok {
		return Schema{Type: "object"}
	}
	for _, code := range sortedKeys(responses) {
		if len(code) == 0 || code[0] != '2' {
			continue
		}
		resp, ok := responses[code].(map[string]interface{})
		if !ok {
			continue
		}
		if ref, has := resp["$ref"].(string); has {
			if resolved, err := c.resolveRef(ref); err == nil {
				resp = resolved
			}
		}
		// OpenAPI 3.x: responses.<code>.content.<media>.schema
		if content, ok := resp["content"].(map[string]interface{}); ok {
			for _, mt := range content {
				if mtObj, ok := mt.(map[string]interface{}); ok {
					if schema, ok := mtObj["schema"].(map[string]interface{}); ok {
						return schemaFromMap(c.resolveSchema(schema).(map[string]interface{}))
					}
				}
			}
		}
		// OpenAPI 2.0: responses.<code>.schema
		if schema, ok := resp["schema"].(map[string]interface{}); ok {
			return schemaFromMap(c.resolveSchema(schema).(map[string]interface{}))
		}
	}
	return Schema{Type: "object"}
}

func schemaFromMap(m map[string]interface{}) Schema {
	s := Schema{Properties: map[string]interface{}{}}
	if t, ok := m["type"].(string); ok {
		s.Type = t
	} else {
		s.Type = "object"
	}
	if props, ok := m["properties"].(map[string]interface{}); ok {
		s.Properties = props
	}
	if req, ok := m["required"].([]interface{}); ok {
		s.Required = stringSlice(req)
	}
	if desc, ok := m["description"].(string); ok {
		s.Description = desc
	}
	if items, ok := m["items"].(map[string]interface{}); ok {
		s.Items = items
	}
	return s
}

func (c *Converter) resolveRef(ref string) (map[string]interface{}, error) {
	if !strings.HasPrefix(ref, "#/") {
		return nil, fmt.Errorf("unsupported external ref %q", ref)
	}
	parts := strings.Split(ref[2:], "/")
	var node interface{} = c.spec
	for _, p := range parts {
		m, ok := node.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("ref %q not found", ref)
		}
		next, ok := m[p]
		if !ok {
			return nil, fmt.Errorf("ref %q not found", ref)
		}
		node = next
	}
	m, ok := node.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("ref %q does not resolve to an object", ref)
	}
	return m, nil
}

// resolveSchema recursively inlines every {"$ref": ...} it finds.
func (c *Converter) resolveSchema(schema interface{}) interface{} {
	switch val := schema.(type) {
	case map[string]interface{}:
		if ref, has := val["$ref"].(string); has {
			if sub, err := c.resolveRef(ref); err == nil {
				return c.resolveSchema(sub)
			}
			return val
		}
		out := make(map[string]interface{}, len(val))
		for k, v := range val {
			out[k] = c.resolveSchema(v)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = c.resolveSchema(item)
		}
		return out
	default:
		return val
	}
}

// LoadSpecFromURL fetches a spec, decoding JSON or YAML per content-type,
// falling back to "try JSON then YAML".
func LoadSpecFromURL(rawURL string) (map[string]interface{}, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("http GET failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected HTTP status: %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body failed: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	var spec map[string]interface{}
	if strings.Contains(contentType, "yaml") || strings.HasSuffix(rawURL, ".yaml") || strings.HasSuffix(rawURL, ".yml") {
		if err := yaml.Unmarshal(body, &spec); err != nil {
			return nil, fmt.Errorf("parsing YAML spec: %w", err)
		}
		return spec, nil
	}
	if err := json.Unmarshal(body, &spec); err == nil {
		return spec, nil
	}
	if err := yaml.Unmarshal(body, &spec); err != nil {
		return nil, fmt.Errorf("spec is neither valid JSON nor YAML: %w", err)
	}
	return spec, nil
}
