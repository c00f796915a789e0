package search

import (
	"fmt"
	"regexp"
)

// secretPatterns enumerates what the security scan looks for: api_key,
// password, secret, token, email.
var secretPatterns = map[string]*regexp.Regexp{
	"api_key":  regexp.MustCompile(`(?i)(api[_-]?key)\s*[:=]\s*\S+`),
	"password": regexp.MustCompile(`(?i)(password|passwd|pwd)\s*[:=]\s*\S+`),
	"secret":   regexp.MustCompile(`(?i)(secret)\s*[:=]\s*\S+`),
	"token":    regexp.MustCompile(`(?i)(token)\s*[:=]\s*\S+`),
	"email":    regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`),
}

// scanText runs every pattern against haystack, returning a finding label
// per match kind.
func scanText(field, haystack string) []string {
	var findings []string
	for kind, re := range secretPatterns {
		if re.MatchString(haystack) {
			findings = append(findings, fmt.Sprintf("%s: possible %s detected", field, kind))
		}
	}
	return findings
}

// scanTool runs the scanner over a tool's name, description, parameter
// names, and response field names.
func scanTool(t *ToolItem) []string {
	var findings []string
	findings = append(findings, scanText("name", t.Name)...)
	findings = append(findings, scanText("description", t.Description)...)
	for k := range t.Inputs {
		findings = append(findings, scanText("parameter:"+k, k)...)
	}
	for k := range t.Outputs {
		findings = append(findings, scanText("response:"+k, k)...)
	}
	return findings
}
