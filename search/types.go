// Package search implements the discovery/search layer over the
// aggregate tool-and-provider catalog: exact, fuzzy, semantic, and
// combined search, ranking, filtering, and a sensitive-data scan.
//
// The package is deliberately decoupled from the root utcp package's
// concrete Tool/Provider types (to avoid an import cycle with the
// client kernel that calls it) -- callers adapt their catalog into
// ToolItem/ProviderItem once per search.
package search

// ToolItem is the catalog-facing projection of a tool.
type ToolItem struct {
	Name         string
	Description  string
	Tags         []string
	ProviderName string
	ProviderType string
	Inputs       map[string]interface{}
	Outputs      map[string]interface{}

	// AverageResponseSize mirrors Tool.AverageResponseSize but arrives
	// untyped: callers may hand it through as *int, int, float64, or a
	// JSON-decoded string, so quality() coerces it with spf13/cast
	// rather than requiring an exact type.
	AverageResponseSize interface{}
}

// ProviderItem is the catalog-facing projection of a provider.
type ProviderItem struct {
	Name string
	Type string
}

// MatchType records which algorithm produced a result.
type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchFuzzy    MatchType = "fuzzy"
	MatchSemantic MatchType = "semantic"
)

// Algorithm selects the search strategy.
type Algorithm string

const (
	AlgorithmExact    Algorithm = "exact"
	AlgorithmFuzzy    Algorithm = "fuzzy"
	AlgorithmSemantic Algorithm = "semantic"
	AlgorithmCombined Algorithm = "combined"
)

// Filters narrows the catalog before scoring.
type Filters struct {
	Providers  []string // provider name allow-list
	Transports []string // provider-type allow-list
	Tags       []string // tool must carry at least one of these tags
}

// BoostFactors applies a multiplicative boost keyed by provider type or
// match type during ranking.
type BoostFactors struct {
	ByTransport map[string]float64
	ByMatchType map[MatchType]float64
}

// Options controls one Search call.
type Options struct {
	Algorithm        Algorithm
	Filters          Filters
	Limit            int
	FuzzyThreshold   float64 // default 0.6
	SemanticThresh   float64 // default 0.3
	DescriptionMatch bool    // exact algorithm also substring-matches description
	SecurityScan     bool
	FilterSensitive  bool // drop results with any security findings
	BoostFactors     BoostFactors
}

// Result is one scored catalog entry.
type Result struct {
	Tool             *ToolItem
	Provider         *ProviderItem
	Score            float64
	MatchType        MatchType
	MatchedFields    []string
	SecurityWarnings []string
}

func (r Result) name() string {
	if r.Tool != nil {
		return r.Tool.Name
	}
	if r.Provider != nil {
		return r.Provider.Name
	}
	return ""
}
