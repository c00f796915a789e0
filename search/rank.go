package search

import (
	"strings"

	"github.com/spf13/cast"
)

// popularityVerbs weights the leading CRUD-ish verb found in a tool name.
var popularityVerbs = []struct {
	verbs  []string
	weight float64
}{
	{[]string{"get", "list", "fetch"}, 0.3},
	{[]string{"create", "post", "add"}, 0.2},
	{[]string{"update", "put"}, 0.2},
	{[]string{"delete", "remove"}, 0.1},
}

func popularity(name string) float64 {
	lower := strings.ToLower(name)
	for _, bucket := range popularityVerbs {
		for _, verb := range bucket.verbs {
			if strings.Contains(lower, verb) {
				return bucket.weight
			}
		}
	}
	return 0
}

// quality rewards a documented, reasonably-described tool.
func quality(t *ToolItem) float64 {
	var score float64
	if len(t.Description) > 50 {
		score += 0.5
	}
	if len(t.Inputs) > 0 {
		score += 0.25
	}
	if len(t.Outputs) > 0 {
		score += 0.25
	}
	// A documented average_response_size is one more sign of a
	// well-specified tool; the value may arrive as any numeric-ish
	// type depending on how the catalog was populated.
	if size, err := cast.ToFloat64E(t.AverageResponseSize); err == nil && size > 0 {
		score += 0.1
	}
	if score > 1 {
		score = 1
	}
	return score
}

// contextRelevance scores 1.0 on an exact name match, else scaled down for
// description/type field matches.
func contextRelevance(query string, t *ToolItem, matchedFields []string) float64 {
	lowerQuery := strings.ToLower(query)
	if strings.ToLower(t.Name) == lowerQuery {
		return 1.0
	}
	for _, f := range matchedFields {
		switch f {
		case "name":
			return 0.8
		case "description":
			return 0.6
		case "type", "tags":
			return 0.4
		}
	}
	return 0
}

// rank computes the weighted final score and applies caller-supplied
// boosts, multiplicatively, keyed by provider type and match type.
func rank(query string, base float64, t *ToolItem, matchedFields []string, mt MatchType, boosts BoostFactors) float64 {
	final := 0.4*base + 0.2*popularity(t.Name) + 0.1*recency() + 0.2*quality(t) + 0.1*contextRelevance(query, t, matchedFields)

	if boosts.ByTransport != nil {
		if b, ok := boosts.ByTransport[t.ProviderType]; ok {
			final *= b
		}
	}
	if boosts.ByMatchType != nil {
		if b, ok := boosts.ByMatchType[mt]; ok {
			final *= b
		}
	}
	if final > 1 {
		final = 1
	}
	if final < 0 {
		final = 0
	}
	return final
}

// recency has no timestamp source in this in-memory catalog (the
// repository keeps no registration-time field); it contributes a neutral
// constant rather than fabricating a clock-dependent signal.
func recency() float64 {
	return 0.5
}
