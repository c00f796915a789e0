// Package openapi parses OpenAPI 2.0/3.0 documents and converts their
// operations into UTCP tool descriptors. It has no dependency on the root
// utcp package's concrete Provider/Tool types -- it emits a small JSON-
// compatible shape that the caller (http_transport.go) round-trips
// through UnmarshalProvider/Tool.UnmarshalJSON so the tagged-union
// dispatch lives in exactly one place.
package openapi

// Schema is the restricted JSON-Schema subset used for tool inputs and
// outputs.
type Schema struct {
	Type        string                 `json:"type,omitempty"`
	Properties  map[string]interface{} `json:"properties,omitempty"`
	Required    []string               `json:"required,omitempty"`
	Description string                 `json:"description,omitempty"`
	Title       string                 `json:"title,omitempty"`
	Items       map[string]interface{} `json:"items,omitempty"`
	Enum        []interface{}          `json:"enum,omitempty"`
	Minimum     *float64               `json:"minimum,omitempty"`
	Maximum     *float64               `json:"maximum,omitempty"`
	Format      string                 `json:"format,omitempty"`
}

// Tool is the converter's output shape: JSON-compatible with the root
// package's Tool (field-for-field), so jsonMarshal/UnmarshalJSON round
// trips it into a concrete utcp.Tool with the right provider variant.
type Tool struct {
	Name         string                 `json:"name"`
	Description  string                 `json:"description,omitempty"`
	Inputs       Schema                 `json:"inputs"`
	Outputs      Schema                 `json:"outputs"`
	Tags         []string               `json:"tags,omitempty"`
	ToolProvider map[string]interface{} `json:"tool_provider,omitempty"`
}

// Options controls filtering and naming during conversion.
type Options struct {
	IncludeDeprecated bool
	ExcludeTags       []string
	FilterTags        []string
	Prefix            string
	// AuthOverride, when non-nil, replaces whatever auth the converter
	// would have derived from the operation's security requirement.
	AuthOverride map[string]interface{}
}

// httpMethodOrder fixes the operation enumeration order so conversion is
// deterministic.
var httpMethodOrder = []string{"get", "post", "put", "delete", "patch", "head", "options", "trace"}
