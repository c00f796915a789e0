package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCatalog() ([]ToolItem, []ProviderItem) {
	tools := []ToolItem{
		{Name: "getUser", Description: "Fetch a single user record by id", ProviderName: "users", ProviderType: "http", Tags: []string{"users"}, Inputs: map[string]interface{}{"id": "string"}},
		{Name: "listUsers", Description: "List all users in the system", ProviderName: "users", ProviderType: "http", Tags: []string{"users"}},
		{Name: "deleteItem", Description: "Remove an inventory item permanently", ProviderName: "inventory", ProviderType: "cli", Tags: []string{"inventory"}},
	}
	providers := []ProviderItem{
		{Name: "users", Type: "http"},
		{Name: "inventory", Type: "cli"},
	}
	return tools, providers
}

// E6: fuzzy search for "usr" at threshold 0.4 includes getUser/listUsers,
// excludes deleteItem; combined ranking places getUser above deleteItem.
// The E6 catalog carries names only, so this one has no descriptions.
func TestFuzzySearchIncludesCloseMatchesOnly(t *testing.T) {
	_, providers := sampleCatalog()
	tools := []ToolItem{
		{Name: "getUser", ProviderName: "users", ProviderType: "http"},
		{Name: "listUsers", ProviderName: "users", ProviderType: "http"},
		{Name: "deleteItem", ProviderName: "inventory", ProviderType: "cli"},
	}
	e := NewEngine(tools, providers)

	results := e.Search("usr", Options{Algorithm: AlgorithmFuzzy, FuzzyThreshold: 0.4})
	names := map[string]bool{}
	for _, r := range results {
		names[r.Tool.Name] = true
	}
	assert.True(t, names["getUser"])
	assert.True(t, names["listUsers"])
	assert.False(t, names["deleteItem"])
}

func TestCombinedSearchRanksGetAboveDelete(t *testing.T) {
	tools, providers := sampleCatalog()
	e := NewEngine(tools, providers)

	results := e.Search("user", Options{Algorithm: AlgorithmCombined})
	require.NotEmpty(t, results)

	pos := map[string]int{}
	for i, r := range results {
		pos[r.Tool.Name] = i
	}
	getIdx, hasGet := pos["getUser"]
	delIdx, hasDel := pos["deleteItem"]
	if hasGet && hasDel {
		assert.Less(t, getIdx, delIdx)
	}
}

func TestExactSearchIsCaseInsensitiveAndScoresOne(t *testing.T) {
	tools, providers := sampleCatalog()
	e := NewEngine(tools, providers)

	results := e.Search("GETUSER", Options{Algorithm: AlgorithmExact})
	require.Len(t, results, 1)
	assert.Equal(t, "getUser", results[0].Tool.Name)
	assert.Equal(t, MatchExact, results[0].MatchType)

	// Search passes every hit through rank; the exact algorithm's own
	// score, before ranking, is 1.0.
	raw := e.exactSearch("GETUSER", e.filtered(Filters{}), withDefaults(Options{Algorithm: AlgorithmExact}))
	require.Len(t, raw, 1)
	assert.Equal(t, 1.0, raw[0].Score)
}

func TestFiltersNarrowByTransportAndTag(t *testing.T) {
	tools, providers := sampleCatalog()
	e := NewEngine(tools, providers)

	results := e.Search("", Options{
		Algorithm: AlgorithmExact,
		Filters:   Filters{Transports: []string{"cli"}},
	})
	// exact search with empty query matches nothing by name, but the
	// filter stage itself is exercised via the candidate count.
	candidates := e.filtered(Filters{Transports: []string{"cli"}})
	require.Len(t, candidates, 1)
	assert.Equal(t, "deleteItem", candidates[0].Name)
	_ = results
}

func TestSemanticSearchUsesKeywordJaccard(t *testing.T) {
	tools, providers := sampleCatalog()
	e := NewEngine(tools, providers)

	results := e.Search("remove inventory item", Options{Algorithm: AlgorithmSemantic, SemanticThresh: 0.1})
	require.NotEmpty(t, results)
	assert.Equal(t, "deleteItem", results[0].Tool.Name)
}

func TestSecurityScanFlagsSensitiveDescription(t *testing.T) {
	tools := []ToolItem{
		{Name: "setToken", Description: "Stores an api_key=sk-12345 for later use", ProviderName: "auth", ProviderType: "http"},
	}
	e := NewEngine(tools, nil)
	results := e.Search("setToken", Options{Algorithm: AlgorithmExact, SecurityScan: true})
	require.Len(t, results, 1)
	assert.NotEmpty(t, results[0].SecurityWarnings)
}

func TestSecurityScanCanFilterSensitiveResults(t *testing.T) {
	tools := []ToolItem{
		{Name: "setToken", Description: "Stores an api_key=sk-12345 for later use", ProviderName: "auth", ProviderType: "http"},
	}
	e := NewEngine(tools, nil)
	results := e.Search("setToken", Options{Algorithm: AlgorithmExact, SecurityScan: true, FilterSensitive: true})
	assert.Empty(t, results)
}

func TestSuggestReturnsDistinctContainingMatches(t *testing.T) {
	tools, providers := sampleCatalog()
	e := NewEngine(tools, providers)

	out := e.Suggest("user", 10, 2)
	assert.Contains(t, out, "users")
}

func TestSuggestRejectsBelowMinLength(t *testing.T) {
	tools, providers := sampleCatalog()
	e := NewEngine(tools, providers)

	assert.Nil(t, e.Suggest("u", 10, 2))
}

func TestSearchDeterministicOrdering(t *testing.T) {
	tools, providers := sampleCatalog()
	e1 := NewEngine(tools, providers)
	e2 := NewEngine(tools, providers)

	r1 := e1.Search("user", Options{})
	r2 := e2.Search("user", Options{})
	require.Equal(t, len(r1), len(r2))
	for i := range r1 {
		assert.Equal(t, r1[i].Tool.Name, r2[i].Tool.Name)
	}
}

func TestRankBoostFactorsAreMultiplicative(t *testing.T) {
	tools := []ToolItem{{Name: "getUser", Description: "Fetch a single user record by id", ProviderType: "http"}}
	e := NewEngine(tools, nil)

	base := e.Search("getUser", Options{Algorithm: AlgorithmExact})
	require.Len(t, base, 1)

	boosted := e.Search("getUser", Options{Algorithm: AlgorithmExact, BoostFactors: BoostFactors{
		ByTransport: map[string]float64{"http": 0.5},
	}})
	require.Len(t, boosted, 1)
	assert.InDelta(t, base[0].Score*0.5, boosted[0].Score, 1e-9)
}

func TestSuggestSimilarExcludesReferenceItself(t *testing.T) {
	tools, providers := sampleCatalog()
	e := NewEngine(tools, providers)

	ref := tools[0]
	results := e.SuggestSimilar(ref, Options{SemanticThresh: 0.01})
	for _, r := range results {
		assert.NotEqual(t, ref.Name, r.Tool.Name)
	}
}
