package utcp

// UtcpManual is the discovery response a provider returns: a version tag
// plus the tools it exposes.
type UtcpManual struct {
	Version string `json:"version"`
	Tools   []Tool `json:"tools"`
}

// NewUtcpManualFromMap builds a UtcpManual from a generic decoded blob,
// tolerating providers that omit the version field.
func NewUtcpManualFromMap(raw map[string]interface{}) (UtcpManual, error) {
	b, err := jsonMarshal(raw)
	if err != nil {
		return UtcpManual{}, err
	}
	var m UtcpManual
	if err := jsonUnmarshal(b, &m); err != nil {
		return UtcpManual{}, err
	}
	if m.Version == "" {
		m.Version = "1.0"
	}
	return m, nil
}
