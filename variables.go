package utcp

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v2"
)

// UtcpVariableNotFoundError is returned internally by variable resolution
// when a referenced variable cannot be found anywhere in the resolution
// chain; substitution call sites treat it as "leave the placeholder as-is"
// rather than surfacing it to the caller, per the substitution contract.
type UtcpVariableNotFoundError struct {
	VariableName string
}

func (e *UtcpVariableNotFoundError) Error() string {
	return "variable not found: " + e.VariableName
}

// VariableLoader is an additional source of variable values consulted after
// the client's inline config map and before the process environment.
type VariableLoader interface {
	Get(key string) (string, bool)
}

// DotenvVariableLoader loads variables from a .env-formatted file using
// godotenv.
type DotenvVariableLoader struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewDotenvVariableLoader(path string) (*DotenvVariableLoader, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, err
	}
	return &DotenvVariableLoader{values: values}, nil
}

func (d *DotenvVariableLoader) Get(key string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.values[key]
	return v, ok
}

// FileVariableLoader loads variables from a flat JSON object file (or a
// flat YAML mapping for a .yaml/.yml path), with an
// optional fsnotify watch that hot-reloads the in-memory map on change.
type FileVariableLoader struct {
	mu      sync.RWMutex
	path    string
	values  map[string]string
	watcher *fsnotify.Watcher
}

func NewFileVariableLoader(path string) (*FileVariableLoader, error) {
	l := &FileVariableLoader{path: path}
	if err := l.reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// reload re-reads the backing file. A ".yaml"/".yml" extension is parsed
// as YAML; anything else is treated as a flat JSON object.
func (l *FileVariableLoader) reload() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return err
	}
	var values map[string]string
	switch ext := strings.ToLower(filepath.Ext(l.path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &values); err != nil {
			return err
		}
	default:
		if err := jsonUnmarshal(data, &values); err != nil {
			return err
		}
	}
	l.mu.Lock()
	l.values = values
	l.mu.Unlock()
	return nil
}

func (l *FileVariableLoader) Get(key string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.values[key]
	return v, ok
}

// Watch starts hot-reloading the backing file on change. Call Close to stop.
func (l *FileVariableLoader) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return err
	}
	l.watcher = w
	go func() {
		for event := range w.Events {
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				_ = l.reload()
			}
		}
	}()
	return nil
}

func (l *FileVariableLoader) Close() error {
	if l.watcher == nil {
		return nil
	}
	return l.watcher.Close()
}

var varPattern = regexp.MustCompile(`\$\{(\w+)\}|\$(\w+)`)

// getVariable resolves a single variable name against, in order, the
// client's inline config map, its registered loaders, then the process
// environment.
func getVariable(name string, cfg *ClientConfig) (string, error) {
	if cfg != nil {
		if v, ok := cfg.Variables[name]; ok {
			return v, nil
		}
		for _, loader := range cfg.LoadVariablesFrom {
			if v, ok := loader.Get(name); ok {
				return v, nil
			}
		}
	}
	if v, ok := os.LookupEnv(name); ok {
		return v, nil
	}
	return "", &UtcpVariableNotFoundError{VariableName: name}
}

// replaceVarsInString substitutes every ${NAME}/$NAME occurrence in s,
// leaving any reference that can't be resolved untouched in the output.
func replaceVarsInString(s string, cfg *ClientConfig) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		sub := varPattern.FindStringSubmatch(match)
		name := sub[1]
		if name == "" {
			name = sub[2]
		}
		v, err := getVariable(name, cfg)
		if err != nil {
			return match
		}
		return v
	})
}

// replaceVarsInAny recurses over strings, slices, and maps, substituting
// variable references idempotently (re-substituting an already-resolved
// string is a no-op since it no longer contains ${...}/$... syntax).
func replaceVarsInAny(v interface{}, cfg *ClientConfig) interface{} {
	switch val := v.(type) {
	case string:
		return replaceVarsInString(val, cfg)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = replaceVarsInAny(item, cfg)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = replaceVarsInAny(item, cfg)
		}
		return out
	default:
		return v
	}
}

// substituteProviderVariables round-trips a provider through its generic
// map representation, substitutes every string field, and re-parses it back
// into a concrete Provider.
func substituteProviderVariables(p Provider, cfg *ClientConfig) (Provider, error) {
	raw, err := providerToMap(p)
	if err != nil {
		return nil, err
	}
	substituted := replaceVarsInAny(raw, cfg)
	b, err := jsonMarshal(substituted)
	if err != nil {
		return nil, err
	}
	return UnmarshalProvider(b)
}

// providerToMap decodes a marshaled provider through gjson's path-value
// walk rather than a second full jsoniter unmarshal.
func providerToMap(p Provider) (map[string]interface{}, error) {
	b, err := jsonMarshal(p)
	if err != nil {
		return nil, err
	}
	parsed := gjson.ParseBytes(b)
	if !parsed.IsObject() {
		return nil, fmt.Errorf("provider %T did not marshal to a JSON object", p)
	}
	m, ok := parsed.Value().(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("provider %T produced an unexpected JSON shape", p)
	}
	return m, nil
}
