package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanTextDetectsEachPatternKind(t *testing.T) {
	assert.NotEmpty(t, scanText("field", "api_key: sk-abc123"))
	assert.NotEmpty(t, scanText("field", "password=hunter2"))
	assert.NotEmpty(t, scanText("field", "secret: shh"))
	assert.NotEmpty(t, scanText("field", "token=abcdef"))
	assert.NotEmpty(t, scanText("field", "contact me at a@example.com"))
	assert.Empty(t, scanText("field", "just a normal description"))
}

func TestScanToolCoversNameDescriptionAndSchemaKeys(t *testing.T) {
	tool := &ToolItem{
		Name:        "plainTool",
		Description: "stores a password=abc123 somewhere",
		Inputs:      map[string]interface{}{"api_key": "string"},
	}
	findings := scanTool(tool)
	assert.NotEmpty(t, findings)
}
