package utcp

import (
	"fmt"
	"strings"
)

// normalizeProviderName rewrites a raw provider-supplied name into the
// identifier form the repository keys on: '.' would otherwise collide
// with the fully-qualified tool-name separator, so every dot is folded
// to an underscore.
func normalizeProviderName(name string) string {
	return strings.ReplaceAll(name, ".", "_")
}

// splitToolName divides a fully-qualified "<provider>.<tool>" name at
// its first '.'. Exactly one separator is meaningful; any dots inside the
// tool-name component stay with the tool side.
func splitToolName(fqName string) (providerName, toolName string, err error) {
	idx := strings.Index(fqName, ".")
	if idx <= 0 || idx == len(fqName)-1 {
		return "", "", fmt.Errorf("invalid tool name %q: expected \"<provider>.<tool>\"", fqName)
	}
	return fqName[:idx], fqName[idx+1:], nil
}

// fqToolName joins a provider name and a base tool name into the
// canonical fully-qualified form, tolerating a tool name that already
// carries the provider's own prefix (so normalization is idempotent).
func fqToolName(providerName, toolName string) string {
	prefix := providerName + "."
	if strings.HasPrefix(toolName, prefix) {
		return toolName
	}
	return prefix + toolName
}

// extractProviderName returns the provider component of a fully-qualified
// tool name.
func extractProviderName(fqName string) (string, error) {
	providerName, _, err := splitToolName(fqName)
	return providerName, err
}

// extractToolBaseName strips a tool's own provider prefix, if present,
// returning just the base name a transport's wire protocol expects.
func extractToolBaseName(fqName, providerName string) string {
	prefix := providerName + "."
	if strings.HasPrefix(fqName, prefix) {
		return fqName[len(prefix):]
	}
	return fqName
}

// callName computes the name string a transport's CallTool/CallToolStream
// receives: MCP and text providers are addressed by their server-relative
// base name, every other transport receives the full fq name.
func callName(fqName string, providerName string, ptype ProviderType) string {
	switch ptype {
	case ProviderMCP, ProviderText:
		return extractToolBaseName(fqName, providerName)
	default:
		return fqName
	}
}
