package search

import (
	"regexp"
	"strings"

	"github.com/xrash/smetrics"
)

var wordPattern = regexp.MustCompile(`[A-Za-z0-9]+`)

// tokenize lowercases and splits on non-alphanumeric runs.
func tokenize(s string) []string {
	return wordPattern.FindAllString(strings.ToLower(s), -1)
}

// keywords extracts tokens longer than 2 characters that are not
// stop-words.
func keywords(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, w := range tokenize(s) {
		if len(w) > 2 && !isStopWord(w) {
			out[w] = struct{}{}
		}
	}
	return out
}

// jaccard computes |a ∩ b| / |a ∪ b|, defined as 0 when both sets are empty.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// stringSimilarity composes an exact/substring/edit-distance cascade:
//  1. case-insensitive exact match -> 1.0
//  2. substring either way -> 0.8
//  3. otherwise a character-level Jaro-Winkler similarity, falling back to
//     1 - editDistance/max(len(a), len(b)) when that yields 0.
func stringSimilarity(a, b string) float64 {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la == lb {
		return 1.0
	}
	if la == "" || lb == "" {
		return 0
	}
	if strings.Contains(la, lb) || strings.Contains(lb, la) {
		return 0.8
	}

	jw := smetrics.JaroWinkler(la, lb, 0.7, 4)
	if jw > 0 {
		return jw
	}

	maxLen := len(la)
	if len(lb) > maxLen {
		maxLen = len(lb)
	}
	dist := smetrics.WagnerFischer(la, lb, 1, 1, 2)
	return 1 - float64(dist)/float64(maxLen)
}
