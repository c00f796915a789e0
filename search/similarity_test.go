package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringSimilarityExactAndSubstring(t *testing.T) {
	assert.Equal(t, 1.0, stringSimilarity("GetUser", "getuser"))
	assert.Equal(t, 0.8, stringSimilarity("user", "getUser"))
	assert.Equal(t, 0.0, stringSimilarity("", "getUser"))
}

func TestStringSimilarityFallsBackToEditDistance(t *testing.T) {
	// no character of "usr" falls in Jaro's match window of "getuser",
	// so Jaro-Winkler is 0 and the edit-distance branch runs: 1 - 4/7
	sim := stringSimilarity("usr", "getUser")
	assert.Greater(t, sim, 0.0)
	assert.Less(t, sim, 1.0)
}

func TestKeywordsDropsStopWordsAndShortTokens(t *testing.T) {
	kw := keywords("the user is at an id")
	assert.NotContains(t, kw, "the")
	assert.NotContains(t, kw, "id") // len 2, not > 2
	assert.Contains(t, kw, "user")
}

func TestJaccardOnDisjointAndIdenticalSets(t *testing.T) {
	a := map[string]struct{}{"x": {}, "y": {}}
	b := map[string]struct{}{"x": {}, "y": {}}
	assert.Equal(t, 1.0, jaccard(a, b))

	c := map[string]struct{}{"z": {}}
	assert.Equal(t, 0.0, jaccard(a, c))

	assert.Equal(t, 0.0, jaccard(map[string]struct{}{}, map[string]struct{}{}))
}
