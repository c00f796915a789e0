package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPopularityWeightsCrudVerbs(t *testing.T) {
	assert.Equal(t, 0.3, popularity("getUserById"))
	assert.Equal(t, 0.2, popularity("createOrder"))
	assert.Equal(t, 0.2, popularity("updateOrder"))
	assert.Equal(t, 0.1, popularity("deleteOrder"))
	assert.Equal(t, 0.0, popularity("reconcileLedger"))
}

func TestQualityRewardsDescriptionAndSchemas(t *testing.T) {
	bare := &ToolItem{}
	assert.Equal(t, 0.0, quality(bare))

	rich := &ToolItem{
		Description: "This is a thoroughly documented tool description exceeding fifty characters",
		Inputs:      map[string]interface{}{"id": "string"},
		Outputs:     map[string]interface{}{"result": "object"},
	}
	assert.Equal(t, 1.0, quality(rich))
}

func TestQualityCoercesAverageResponseSizeViaCast(t *testing.T) {
	t1 := &ToolItem{AverageResponseSize: 128}
	t2 := &ToolItem{AverageResponseSize: "256"}
	t3 := &ToolItem{AverageResponseSize: nil}

	assert.Greater(t, quality(t1), quality(t3))
	assert.Greater(t, quality(t2), quality(t3))
}

func TestContextRelevanceExactNameMatch(t *testing.T) {
	tool := &ToolItem{Name: "getUser"}
	assert.Equal(t, 1.0, contextRelevance("getUser", tool, nil))
	assert.Equal(t, 0.8, contextRelevance("other", tool, []string{"name"}))
	assert.Equal(t, 0.6, contextRelevance("other", tool, []string{"description"}))
	assert.Equal(t, 0.0, contextRelevance("other", tool, nil))
}

func TestRankClampsToUnitInterval(t *testing.T) {
	tool := &ToolItem{Name: "getUser"}
	score := rank("getUser", 1.0, tool, []string{"name"}, MatchExact, BoostFactors{
		ByMatchType: map[MatchType]float64{MatchExact: 5.0},
	})
	assert.LessOrEqual(t, score, 1.0)
	assert.GreaterOrEqual(t, score, 0.0)
}
