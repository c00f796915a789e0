package search

import (
	"sort"
	"strings"
)

// Engine indexes a snapshot of the catalog and answers search/suggest
// queries against it. Callers build a fresh Engine per search call since
// the catalog itself is owned by the repository, not by this package.
type Engine struct {
	tools     []ToolItem
	providers []ProviderItem
	inverted  map[string][]int // keyword -> tool indices, built when len(tools) > 10
}

func NewEngine(tools []ToolItem, providers []ProviderItem) *Engine {
	e := &Engine{tools: tools, providers: providers}
	if len(tools) > 10 {
		e.buildInvertedIndex()
	}
	return e
}

func (e *Engine) buildInvertedIndex() {
	e.inverted = make(map[string][]int)
	for i, t := range e.tools {
		for kw := range keywords(t.Name + " " + t.Description + " " + strings.Join(t.Tags, " ")) {
			e.inverted[kw] = append(e.inverted[kw], i)
		}
	}
}

func withDefaults(opts Options) Options {
	if opts.Algorithm == "" {
		opts.Algorithm = AlgorithmCombined
	}
	if opts.FuzzyThreshold == 0 {
		opts.FuzzyThreshold = 0.6
	}
	if opts.SemanticThresh == 0 {
		opts.SemanticThresh = 0.3
	}
	if opts.Limit == 0 {
		opts.Limit = 50
	}
	return opts
}

// Search runs the filter -> algorithm -> rank -> security-scan pipeline,
// returning results ordered highest-score first (ties broken by name so
// identical inputs always produce the same order).
func (e *Engine) Search(query string, opts Options) []Result {
	opts = withDefaults(opts)
	candidates := e.filtered(opts.Filters)

	var results []Result
	switch opts.Algorithm {
	case AlgorithmExact:
		results = e.exactSearch(query, candidates, opts)
	case AlgorithmFuzzy:
		results = e.fuzzySearch(query, candidates, opts)
	case AlgorithmSemantic:
		results = e.semanticSearch(query, candidates, opts)
	default:
		results = e.combinedSearch(query, candidates, opts)
	}

	for i := range results {
		results[i].Score = rank(query, results[i].Score, results[i].Tool, results[i].MatchedFields, results[i].MatchType, opts.BoostFactors)
	}

	if opts.SecurityScan {
		for i := range results {
			if results[i].Tool != nil {
				results[i].SecurityWarnings = scanTool(results[i].Tool)
			}
		}
		if opts.FilterSensitive {
			var kept []Result
			for _, r := range results {
				if len(r.SecurityWarnings) == 0 {
					kept = append(kept, r)
				}
			}
			results = kept
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].name() < results[j].name()
	})

	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results
}

func (e *Engine) filtered(f Filters) []ToolItem {
	out := make([]ToolItem, 0, len(e.tools))
	providerSet := toSet(f.Providers)
	transportSet := toSet(f.Transports)
	tagSet := toSet(f.Tags)

	for _, t := range e.tools {
		if len(providerSet) > 0 {
			if _, ok := providerSet[strings.ToLower(t.ProviderName)]; !ok {
				continue
			}
		}
		if len(transportSet) > 0 {
			if _, ok := transportSet[strings.ToLower(t.ProviderType)]; !ok {
				continue
			}
		}
		if len(tagSet) > 0 && !tagsIntersect(t.Tags, tagSet) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	if len(items) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(items))
	for _, s := range items {
		out[strings.ToLower(s)] = struct{}{}
	}
	return out
}

func tagsIntersect(tags []string, set map[string]struct{}) bool {
	for _, t := range tags {
		if _, ok := set[strings.ToLower(t)]; ok {
			return true
		}
	}
	return false
}

func (e *Engine) exactSearch(query string, candidates []ToolItem, opts Options) []Result {
	lowerQuery := strings.ToLower(query)
	var out []Result
	for i := range candidates {
		t := &candidates[i]
		var fields []string
		if strings.ToLower(t.Name) == lowerQuery {
			fields = append(fields, "name")
		}
		if opts.DescriptionMatch && strings.Contains(strings.ToLower(t.Description), lowerQuery) {
			fields = append(fields, "description")
		}
		if len(fields) == 0 {
			continue
		}
		out = append(out, Result{Tool: t, Score: 1.0, MatchType: MatchExact, MatchedFields: fields})
	}
	return out
}

func (e *Engine) fuzzySearch(query string, candidates []ToolItem, opts Options) []Result {
	var out []Result
	for i := range candidates {
		t := &candidates[i]
		nameSim := stringSimilarity(query, t.Name)
		descSim := stringSimilarity(query, t.Description)
		best := nameSim
		field := "name"
		if descSim > best {
			best = descSim
			field = "description"
		}
		if best < opts.FuzzyThreshold {
			continue
		}
		out = append(out, Result{Tool: t, Score: best, MatchType: MatchFuzzy, MatchedFields: []string{field}})
	}
	return out
}

func (e *Engine) semanticSearch(query string, candidates []ToolItem, opts Options) []Result {
	qkw := keywords(query)
	candidates = e.narrowByInvertedIndex(candidates, qkw)
	var out []Result
	for i := range candidates {
		t := &candidates[i]
		nameKw := keywords(t.Name)
		descKw := keywords(t.Description)
		ctxKw := contextKeywords(t)

		score := 0.4*jaccard(nameKw, qkw) + 0.4*jaccard(descKw, qkw) + 0.2*jaccard(ctxKw, qkw)
		if score < opts.SemanticThresh {
			continue
		}
		var fields []string
		if jaccard(nameKw, qkw) > 0 {
			fields = append(fields, "name")
		}
		if jaccard(descKw, qkw) > 0 {
			fields = append(fields, "description")
		}
		out = append(out, Result{Tool: t, Score: score, MatchType: MatchSemantic, MatchedFields: fields})
	}
	return out
}

// narrowByInvertedIndex uses the catalog-wide keyword index (built for
// catalogs over 10 tools) to cut semantic search down to
// tools sharing at least one query keyword, when candidates is the
// unfiltered catalog; a caller-filtered subset is small enough that the
// linear scan is cheaper than reconciling index positions against it.
func (e *Engine) narrowByInvertedIndex(candidates []ToolItem, qkw map[string]struct{}) []ToolItem {
	if e.inverted == nil || len(candidates) != len(e.tools) {
		return candidates
	}
	matchedIdx := map[int]struct{}{}
	for kw := range qkw {
		for _, idx := range e.inverted[kw] {
			matchedIdx[idx] = struct{}{}
		}
	}
	out := make([]ToolItem, 0, len(matchedIdx))
	for idx := range matchedIdx {
		out = append(out, e.tools[idx])
	}
	return out
}

// contextKeywords extracts keywords from a tool's parameter and response
// field names, the semantic algorithm's "context" signal.
func contextKeywords(t *ToolItem) map[string]struct{} {
	var sb strings.Builder
	for k := range t.Inputs {
		sb.WriteString(k)
		sb.WriteByte(' ')
	}
	for k := range t.Outputs {
		sb.WriteString(k)
		sb.WriteByte(' ')
	}
	return keywords(sb.String())
}

// combinedSearch unions exact/fuzzy/semantic results, deduplicated by tool
// name keeping the highest-scoring record.
func (e *Engine) combinedSearch(query string, candidates []ToolItem, opts Options) []Result {
	all := append(e.exactSearch(query, candidates, opts),
		append(e.fuzzySearch(query, candidates, opts), e.semanticSearch(query, candidates, opts)...)...)

	best := make(map[string]Result, len(all))
	for _, r := range all {
		key := r.name()
		existing, ok := best[key]
		if !ok || r.Score > existing.Score {
			best[key] = r
		}
	}
	out := make([]Result, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	return out
}

// Suggest returns up to limit distinct names/keywords from the catalog
// whose lowercase representation contains the lowercased partial query.
func (e *Engine) Suggest(partial string, limit, minLength int) []string {
	if minLength <= 0 {
		minLength = 2
	}
	if len(partial) < minLength {
		return nil
	}
	lower := strings.ToLower(partial)
	seen := map[string]struct{}{}
	var out []string
	add := func(s string) bool {
		if s == "" {
			return false
		}
		if _, ok := seen[s]; ok {
			return false
		}
		if !strings.Contains(strings.ToLower(s), lower) {
			return false
		}
		seen[s] = struct{}{}
		out = append(out, s)
		return len(out) >= limit
	}
	for _, t := range e.tools {
		if add(t.Name) {
			return out
		}
		for kw := range keywords(t.Description) {
			if add(kw) {
				return out
			}
		}
	}
	for _, p := range e.providers {
		if add(p.Name) {
			return out
		}
	}
	return out
}

// SuggestSimilar runs semantic search using the reference tool's own
// description keywords as the query against every other candidate,
// excluding the reference itself.
func (e *Engine) SuggestSimilar(ref ToolItem, opts Options) []Result {
	opts = withDefaults(opts)
	opts.Algorithm = AlgorithmSemantic
	candidates := make([]ToolItem, 0, len(e.tools))
	for _, t := range e.tools {
		if t.Name == ref.Name {
			continue
		}
		candidates = append(candidates, t)
	}
	query := ref.Description
	if query == "" {
		query = ref.Name
	}
	results := e.semanticSearch(query, candidates, opts)
	for i := range results {
		results[i].Score = rank(query, results[i].Score, results[i].Tool, results[i].MatchedFields, results[i].MatchType, opts.BoostFactors)
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].name() < results[j].name()
	})
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results
}
