package utcp

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestReplaceVarsInString_BothSyntaxes(t *testing.T) {
	cfg := &ClientConfig{Variables: map[string]string{"HOST": "api.example.com", "PORT": "8080"}}
	got := replaceVarsInString("https://${HOST}:$PORT/v1", cfg)
	if got != "https://api.example.com:8080/v1" {
		t.Fatalf("unexpected substitution: %q", got)
	}
}

func TestReplaceVarsInString_UnresolvedPassthrough(t *testing.T) {
	got := replaceVarsInString("token=${NOPE_NOT_SET_ANYWHERE}", &ClientConfig{})
	if got != "token=${NOPE_NOT_SET_ANYWHERE}" {
		t.Fatalf("unresolved placeholders must pass through unchanged, got %q", got)
	}
}

func TestReplaceVarsInString_Idempotent(t *testing.T) {
	cfg := &ClientConfig{Variables: map[string]string{"NAME": "value"}}
	once := replaceVarsInString("x=${NAME}", cfg)
	twice := replaceVarsInString(once, cfg)
	if once != twice {
		t.Fatalf("substitution must be idempotent: %q vs %q", once, twice)
	}
}

type mapLoader map[string]string

func (m mapLoader) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func TestGetVariable_ResolutionOrder(t *testing.T) {
	t.Setenv("ORDER_TEST_VAR", "from-env")
	cfg := &ClientConfig{
		Variables:         map[string]string{"ORDER_TEST_VAR": "from-inline"},
		LoadVariablesFrom: []VariableLoader{mapLoader{"ORDER_TEST_VAR": "from-loader"}},
	}
	if v, _ := getVariable("ORDER_TEST_VAR", cfg); v != "from-inline" {
		t.Fatalf("inline config must win, got %q", v)
	}
	delete(cfg.Variables, "ORDER_TEST_VAR")
	if v, _ := getVariable("ORDER_TEST_VAR", cfg); v != "from-loader" {
		t.Fatalf("loader must beat env, got %q", v)
	}
	cfg.LoadVariablesFrom = nil
	if v, _ := getVariable("ORDER_TEST_VAR", cfg); v != "from-env" {
		t.Fatalf("env is the last resort, got %q", v)
	}
	if _, err := getVariable("ORDER_TEST_VAR_MISSING", cfg); err == nil {
		t.Fatalf("expected not-found error")
	}
}

func TestReplaceVarsInAny_Recursion(t *testing.T) {
	cfg := &ClientConfig{Variables: map[string]string{"V": "x"}}
	in := map[string]interface{}{
		"s":    "${V}",
		"list": []interface{}{"${V}", 42},
		"nested": map[string]interface{}{
			"deep": "$V",
		},
		"n": 7,
	}
	want := map[string]interface{}{
		"s":    "x",
		"list": []interface{}{"x", 42},
		"nested": map[string]interface{}{
			"deep": "x",
		},
		"n": 7,
	}
	if got := replaceVarsInAny(in, cfg); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected recursion result: %+v", got)
	}
}

func TestSubstituteProviderVariables_ResolvesURLAndAuth(t *testing.T) {
	t.Setenv("ENDPOINT", "users")
	cfg := &ClientConfig{Variables: map[string]string{"TOKEN": "abc123"}}
	prov := &HttpProvider{
		BaseProvider: BaseProvider{Name: "api", ProviderType: ProviderHTTP},
		HTTPMethod:   "GET",
		URL:          "https://api/v1/${ENDPOINT}",
		Auth:         &ApiKeyAuth{AuthType: AuthTypeAPIKey, APIKey: "${TOKEN}", VarName: "X-Tok", Location: "header"},
	}

	out, err := substituteProviderVariables(prov, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hp, ok := out.(*HttpProvider)
	if !ok {
		t.Fatalf("expected *HttpProvider back, got %T", out)
	}
	if hp.URL != "https://api/v1/users" {
		t.Fatalf("unexpected url: %q", hp.URL)
	}
	ak, ok := hp.Auth.(*ApiKeyAuth)
	if !ok || ak.APIKey != "abc123" {
		t.Fatalf("expected substituted auth key, got %+v", hp.Auth)
	}
}

func TestFileVariableLoader_JSONAndYAML(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "vars.json")
	if err := os.WriteFile(jsonPath, []byte(`{"A":"1"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	jl, err := NewFileVariableLoader(jsonPath)
	if err != nil {
		t.Fatalf("json loader error: %v", err)
	}
	if v, ok := jl.Get("A"); !ok || v != "1" {
		t.Fatalf("unexpected json value: %q %v", v, ok)
	}

	yamlPath := filepath.Join(dir, "vars.yaml")
	if err := os.WriteFile(yamlPath, []byte("B: two\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	yl, err := NewFileVariableLoader(yamlPath)
	if err != nil {
		t.Fatalf("yaml loader error: %v", err)
	}
	if v, ok := yl.Get("B"); !ok || v != "two" {
		t.Fatalf("unexpected yaml value: %q %v", v, ok)
	}
}

func TestDotenvVariableLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("KEY=value\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	l, err := NewDotenvVariableLoader(path)
	if err != nil {
		t.Fatalf("dotenv loader error: %v", err)
	}
	if v, ok := l.Get("KEY"); !ok || v != "value" {
		t.Fatalf("unexpected dotenv value: %q %v", v, ok)
	}
	if _, ok := l.Get("MISSING"); ok {
		t.Fatalf("expected miss for unknown key")
	}
}
