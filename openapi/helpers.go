package openapi

import (
	"sort"
	"strings"
)

// synthesizeOperationID builds "<method>_<sanitized path>" when
// operationId is missing.
func synthesizeOperationID(method, path string) string {
	return strings.ToLower(method) + "_" + sanitizeName(path)
}

// sanitizeName collapses a path template into a safe identifier: braces
// dropped, everything non-alphanumeric turned into underscores, repeats
// collapsed.
func sanitizeName(p string) string {
	replaced := strings.Map(func(r rune) rune {
		switch {
		case r == '{' || r == '}':
			return -1
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			return r
		default:
			return '_'
		}
	}, p)

	for strings.Contains(replaced, "__") {
		replaced = strings.ReplaceAll(replaced, "__", "_")
	}
	replaced = strings.Trim(replaced, "_")
	if replaced == "" {
		return "root"
	}
	return strings.ToLower(replaced)
}

func sanitizeProviderName(title string) string {
	invalid := " -.,!?'\"\\/()[]{}#@$%^&*+=~`|;:<>"
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalid, r) {
			return '_'
		}
		return r
	}, title)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stringSlice(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func intersects(a, b []string) bool {
	set := make(map[string]struct{}, len(b))
	for _, s := range b {
		set[s] = struct{}{}
	}
	for _, s := range a {
		if _, ok := set[s]; ok {
			return true
		}
	}
	return false
}
