package openapi

import "fmt"

// Source is one spec to fold into a batch conversion: Spec or URL names
// the document (Spec wins when both are set, and URL is then used only as
// the base URL), and ProviderName applies to either.
type Source struct {
	Spec         map[string]interface{}
	URL          string
	ProviderName string
}

// ConvertMultiple converts each source in order, failing fast on the first
// error; on success, merges every source's tools into
// one slice, applying opts.Prefix if set.
func ConvertMultiple(sources []Source, opts Options) ([]Tool, error) {
	var all []Tool
	for i, src := range sources {
		spec := src.Spec
		if spec == nil && src.URL != "" {
			loaded, err := LoadSpecFromURL(src.URL)
			if err != nil {
				return nil, fmt.Errorf("source %d (%s): %w", i, src.URL, err)
			}
			spec = loaded
		}
		if spec == nil {
			return nil, fmt.Errorf("source %d: no spec or url provided", i)
		}
		conv := NewConverter(spec, src.URL, src.ProviderName)
		tools, err := conv.ConvertWithOptions(opts)
		if err != nil {
			return nil, fmt.Errorf("source %d (%s): %w", i, src.ProviderName, err)
		}
		all = append(all, tools...)
	}
	return all, nil
}
