package utcp

// ToolInputOutputSchema is a restricted JSON-Schema subset describing a
// tool's input or output shape.
type ToolInputOutputSchema struct {
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

// Tool is one callable operation exposed by a provider.
type Tool struct {
	Name                string                `json:"name"`
	Description         string                `json:"description,omitempty"`
	Inputs              ToolInputOutputSchema `json:"inputs"`
	Outputs             ToolInputOutputSchema `json:"outputs"`
	Tags                []string              `json:"tags,omitempty"`
	AverageResponseSize *int                  `json:"average_response_size,omitempty"`
	Provider            Provider              `json:"-"`
}

// UnmarshalJSON decodes a Tool, reconstructing its embedded provider (if
// present under "tool_provider") through the same tagged-union dispatch
// used for top-level providers.
func (t *Tool) UnmarshalJSON(data []byte) error {
	type alias struct {
		Name                string                 `json:"name"`
		Description         string                 `json:"description,omitempty"`
		Inputs              ToolInputOutputSchema  `json:"inputs"`
		Outputs             ToolInputOutputSchema  `json:"outputs"`
		Tags                []string               `json:"tags,omitempty"`
		AverageResponseSize *int                   `json:"average_response_size,omitempty"`
		ToolProvider        map[string]interface{} `json:"tool_provider,omitempty"`
	}
	var a alias
	if err := jsonUnmarshal(data, &a); err != nil {
		return err
	}
	t.Name = a.Name
	t.Description = a.Description
	t.Inputs = a.Inputs
	t.Outputs = a.Outputs
	t.Tags = a.Tags
	t.AverageResponseSize = a.AverageResponseSize
	if a.ToolProvider != nil {
		b, err := jsonMarshal(a.ToolProvider)
		if err != nil {
			return err
		}
		prov, err := UnmarshalProvider(b)
		if err == nil {
			t.Provider = prov
		}
	}
	return nil
}

// MarshalJSON encodes a Tool, embedding its provider under "tool_provider"
// when one is set.
func (t Tool) MarshalJSON() ([]byte, error) {
	type alias struct {
		Name                string                `json:"name"`
		Description         string                `json:"description,omitempty"`
		Inputs              ToolInputOutputSchema `json:"inputs"`
		Outputs             ToolInputOutputSchema `json:"outputs"`
		Tags                []string              `json:"tags,omitempty"`
		AverageResponseSize *int                  `json:"average_response_size,omitempty"`
		ToolProvider        interface{}           `json:"tool_provider,omitempty"`
	}
	return jsonMarshal(alias{
		Name:                t.Name,
		Description:         t.Description,
		Inputs:              t.Inputs,
		Outputs:             t.Outputs,
		Tags:                t.Tags,
		AverageResponseSize: t.AverageResponseSize,
		ToolProvider:        t.Provider,
	})
}
