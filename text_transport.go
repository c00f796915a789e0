package utcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"text/template"
)

// TextTransport implements ClientTransport for TextProvider: FilePath
// names a local JSON manual, and each tool is backed by a text/template,
// since the Tool type carries no callable handler.
// Each tool entry in the manual file may carry a "template" string
// alongside the usual name/description/inputs/outputs; CallTool renders
// that template against the call arguments.
type TextTransport struct {
	mu        sync.Mutex
	templates map[string]string // fully-qualified tool name -> template body
	basePath  string
	logger    func(format string, args ...interface{})
}

func NewTextTransport(logger func(format string, args ...interface{})) *TextTransport {
	if logger == nil {
		logger = func(format string, args ...interface{}) {}
	}
	return &TextTransport{logger: logger, templates: make(map[string]string)}
}

// SetBasePath lets the client kernel resolve FilePath values relative to
// the directory a provider file was loaded from.
func (t *TextTransport) SetBasePath(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.basePath = path
}

func (t *TextTransport) Name() string        { return "text" }
func (t *TextTransport) SupportsStream() bool { return false }
func (t *TextTransport) Close() error         { return nil }

func (t *TextTransport) resolvePath(path string) string {
	t.mu.Lock()
	base := t.basePath
	t.mu.Unlock()
	if base != "" && !filepath.IsAbs(path) {
		return filepath.Join(base, path)
	}
	return path
}

func (t *TextTransport) RegisterToolProvider(ctx context.Context, prov Provider) ([]Tool, error) {
	textProv, ok := prov.(*TextProvider)
	if !ok {
		return nil, errors.New("wrong_provider_type: TextTransport requires a TextProvider")
	}
	path := t.resolvePath(textProv.FilePath)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]interface{}
	if err := jsonUnmarshal(data, &raw); err != nil {
		return nil, err
	}
	manual, err := NewUtcpManualFromMap(raw)
	if err != nil {
		return nil, err
	}

	rawTools, _ := raw["tools"].([]interface{})

	t.mu.Lock()
	defer t.mu.Unlock()
	for i, tool := range manual.Tools {
		fqName := textProv.Name + "." + tool.Name
		tool.Name = fqName
		tool.Provider = textProv
		manual.Tools[i] = tool
		if i < len(rawTools) {
			if rawEntry, ok := rawTools[i].(map[string]interface{}); ok {
				if tmpl, ok := rawEntry["template"].(string); ok {
					t.templates[fqName] = tmpl
				}
			}
		}
	}
	return manual.Tools, nil
}

func (t *TextTransport) DeregisterToolProvider(ctx context.Context, prov Provider) error {
	textProv, ok := prov.(*TextProvider)
	if !ok {
		return errors.New("wrong_provider_type: TextTransport requires a TextProvider")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	prefix := textProv.Name + "."
	for name := range t.templates {
		if len(name) > len(prefix) && name[:len(prefix)] == prefix {
			delete(t.templates, name)
		}
	}
	return nil
}

// CallTool renders the template registered for toolName (the stripped,
// provider-relative name text providers are called by) against args.
func (t *TextTransport) CallTool(ctx context.Context, toolName string, args map[string]interface{}, prov Provider) (interface{}, error) {
	textProv, ok := prov.(*TextProvider)
	if !ok {
		return nil, errors.New("wrong_provider_type: TextTransport requires a TextProvider")
	}
	tmplStr, ok := t.lookupTemplate(toolName)
	if !ok {
		tmplStr, ok = t.lookupTemplate(textProv.Name + "." + toolName)
		if !ok {
			return nil, fmt.Errorf("tool %q not found for text provider %s", toolName, textProv.Name)
		}
	}
	tpl, err := template.New(toolName).Parse(tmplStr)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, args); err != nil {
		return nil, err
	}
	return buf.String(), nil
}

func (t *TextTransport) lookupTemplate(name string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tmpl, ok := t.templates[name]
	return tmpl, ok
}

func (t *TextTransport) CallToolStream(ctx context.Context, toolName string, args map[string]interface{}, prov Provider) (StreamResult, error) {
	return nil, errors.New("not_supported: text transport does not support streaming tool calls")
}
