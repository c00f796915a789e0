package utcp

import (
	"context"
	"testing"
)

func TestInMemoryToolRepository_CRUD(t *testing.T) {
	repo := NewInMemoryToolRepository()
	ctx := context.Background()
	prov := &CliProvider{BaseProvider: BaseProvider{Name: "cli", ProviderType: ProviderCLI}}
	tools := []Tool{{Name: "cli.echo"}}

	if err := repo.SaveProviderWithTools(ctx, prov, tools); err != nil {
		t.Fatalf("save error: %v", err)
	}

	if p, err := repo.GetProvider(ctx, "cli"); err != nil || p == nil {
		t.Fatalf("get provider failed: %v", err)
	}
	if ts, err := repo.GetTools(ctx); err != nil || len(ts) != 1 {
		t.Fatalf("get tools failed: %v", err)
	}
	if ts, err := repo.GetToolsByProvider(ctx, "cli"); err != nil || len(ts) != 1 {
		t.Fatalf("get tools by provider failed: %v", err)
	}
	if _, err := repo.GetTool(ctx, "cli.echo"); err != nil {
		t.Fatalf("get tool failed: %v", err)
	}
	if _, err := repo.GetTool(ctx, "noseparator"); err == nil {
		t.Fatalf("expected error for malformed tool name")
	}

	if err := repo.RemoveTool(ctx, "cli.echo"); err != nil {
		t.Fatalf("remove tool failed: %v", err)
	}
	if _, err := repo.GetTool(ctx, "cli.echo"); err == nil {
		t.Fatalf("expected tool to be gone after removal")
	}
	if err := repo.RemoveProvider(ctx, "cli"); err != nil {
		t.Fatalf("remove provider failed: %v", err)
	}
	if _, err := repo.GetProvider(ctx, "cli"); err == nil {
		t.Fatalf("expected provider to be gone after removal")
	}
}

func TestInMemoryToolRepository_DistinctProvidersKeptSeparate(t *testing.T) {
	repo := NewInMemoryToolRepository()
	ctx := context.Background()

	cliProv := &CliProvider{BaseProvider: BaseProvider{Name: "cli_one", ProviderType: ProviderCLI}}
	httpProv := &HttpProvider{BaseProvider: BaseProvider{Name: "http_one", ProviderType: ProviderHTTP}}

	if err := repo.SaveProviderWithTools(ctx, cliProv, []Tool{{Name: "cli_one.run"}}); err != nil {
		t.Fatalf("save cli provider: %v", err)
	}
	if err := repo.SaveProviderWithTools(ctx, httpProv, []Tool{{Name: "http_one.fetch"}}); err != nil {
		t.Fatalf("save http provider: %v", err)
	}

	providers, err := repo.GetProviders(ctx)
	if err != nil {
		t.Fatalf("get providers: %v", err)
	}
	if len(providers) != 2 {
		t.Fatalf("expected two distinct providers keyed by name, got %d", len(providers))
	}
}

func TestInMemoryToolRepository_RejectsUnnamedProvider(t *testing.T) {
	repo := NewInMemoryToolRepository()
	ctx := context.Background()
	prov := &CliProvider{}
	if err := repo.SaveProviderWithTools(ctx, prov, nil); err == nil {
		t.Fatalf("expected error for unnamed provider")
	}
}

func TestInMemoryToolRepository_AddTool(t *testing.T) {
	repo := NewInMemoryToolRepository()
	ctx := context.Background()
	prov := &CliProvider{BaseProvider: BaseProvider{Name: "cli", ProviderType: ProviderCLI}}

	if err := repo.AddTool(ctx, Tool{Name: "cli.echo"}); err == nil {
		t.Fatalf("expected unknown_provider error before provider is registered")
	}

	if err := repo.SaveProviderWithTools(ctx, prov, nil); err != nil {
		t.Fatalf("save provider: %v", err)
	}
	if err := repo.AddTool(ctx, Tool{Name: "cli.echo"}); err != nil {
		t.Fatalf("add tool: %v", err)
	}
	tools, err := repo.GetToolsByProvider(ctx, "cli")
	if err != nil || len(tools) != 1 {
		t.Fatalf("expected one tool after AddTool, got %v (err=%v)", tools, err)
	}
}

func TestInMemoryToolRepository_SearchTools(t *testing.T) {
	repo := NewInMemoryToolRepository()
	ctx := context.Background()
	prov := &CliProvider{BaseProvider: BaseProvider{Name: "cli", ProviderType: ProviderCLI}}
	tools := []Tool{
		{Name: "cli.weather", Description: "Fetches the current forecast", Tags: []string{"outdoor"}},
		{Name: "cli.echo", Description: "Repeats its input", Tags: []string{"debug"}},
	}
	if err := repo.SaveProviderWithTools(ctx, prov, tools); err != nil {
		t.Fatalf("save provider: %v", err)
	}

	byName, err := repo.SearchTools(ctx, "weather", 0)
	if err != nil || len(byName) != 1 || byName[0].Name != "cli.weather" {
		t.Fatalf("expected name match for weather, got %v (err=%v)", byName, err)
	}

	byDesc, err := repo.SearchTools(ctx, "repeats", 0)
	if err != nil || len(byDesc) != 1 || byDesc[0].Name != "cli.echo" {
		t.Fatalf("expected description match for repeats, got %v (err=%v)", byDesc, err)
	}

	byTag, err := repo.SearchTools(ctx, "outdoor", 0)
	if err != nil || len(byTag) != 1 || byTag[0].Name != "cli.weather" {
		t.Fatalf("expected tag match for outdoor, got %v (err=%v)", byTag, err)
	}

	all, err := repo.SearchTools(ctx, "", 1)
	if err != nil || len(all) != 1 {
		t.Fatalf("expected limit to cap results at 1, got %v (err=%v)", all, err)
	}
}

func TestInMemoryToolRepository_CountsAndClear(t *testing.T) {
	repo := NewInMemoryToolRepository()
	ctx := context.Background()
	cliProv := &CliProvider{BaseProvider: BaseProvider{Name: "cli", ProviderType: ProviderCLI}}
	httpProv := &HttpProvider{BaseProvider: BaseProvider{Name: "http", ProviderType: ProviderHTTP}}

	if err := repo.SaveProviderWithTools(ctx, cliProv, []Tool{{Name: "cli.a"}, {Name: "cli.b"}}); err != nil {
		t.Fatalf("save cli provider: %v", err)
	}
	if err := repo.SaveProviderWithTools(ctx, httpProv, []Tool{{Name: "http.c"}}); err != nil {
		t.Fatalf("save http provider: %v", err)
	}

	if n, err := repo.ToolCount(ctx); err != nil || n != 3 {
		t.Fatalf("expected tool count 3, got %d (err=%v)", n, err)
	}
	if n, err := repo.ProviderCount(ctx); err != nil || n != 2 {
		t.Fatalf("expected provider count 2, got %d (err=%v)", n, err)
	}

	if err := repo.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n, err := repo.ToolCount(ctx); err != nil || n != 0 {
		t.Fatalf("expected tool count 0 after clear, got %d (err=%v)", n, err)
	}
	if n, err := repo.ProviderCount(ctx); err != nil || n != 0 {
		t.Fatalf("expected provider count 0 after clear, got %d (err=%v)", n, err)
	}
}
