package utcp

import "testing"

func TestSplitToolName(t *testing.T) {
	cases := []struct {
		in       string
		provider string
		tool     string
		wantErr  bool
	}{
		{"weather.get_forecast", "weather", "get_forecast", false},
		{"weather.sub.tool", "weather", "sub.tool", false},
		{"noseparator", "", "", true},
		{".leadingdot", "", "", true},
		{"trailing.", "", "", true},
	}
	for _, c := range cases {
		provider, tool, err := splitToolName(c.in)
		if c.wantErr {
			if err == nil {
				t.Fatalf("splitToolName(%q): expected error, got none", c.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("splitToolName(%q): unexpected error: %v", c.in, err)
		}
		if provider != c.provider || tool != c.tool {
			t.Fatalf("splitToolName(%q) = (%q, %q), want (%q, %q)", c.in, provider, tool, c.provider, c.tool)
		}
	}
}

func TestFqToolNameIdempotent(t *testing.T) {
	if got := fqToolName("weather", "get_forecast"); got != "weather.get_forecast" {
		t.Fatalf("fqToolName: got %q", got)
	}
	if got := fqToolName("weather", "weather.get_forecast"); got != "weather.get_forecast" {
		t.Fatalf("fqToolName should not double-prefix: got %q", got)
	}
}

func TestNormalizeProviderName(t *testing.T) {
	if got := normalizeProviderName("my.provider"); got != "my_provider" {
		t.Fatalf("normalizeProviderName: got %q", got)
	}
}

func TestExtractToolBaseName(t *testing.T) {
	if got := extractToolBaseName("weather.get_forecast", "weather"); got != "get_forecast" {
		t.Fatalf("extractToolBaseName: got %q", got)
	}
	if got := extractToolBaseName("get_forecast", "weather"); got != "get_forecast" {
		t.Fatalf("extractToolBaseName without prefix: got %q", got)
	}
}

func TestCallName(t *testing.T) {
	if got := callName("srv.echo", "srv", ProviderMCP); got != "echo" {
		t.Fatalf("callName for MCP: got %q", got)
	}
	if got := callName("srv.echo", "srv", ProviderHTTP); got != "srv.echo" {
		t.Fatalf("callName for HTTP: got %q", got)
	}
}
