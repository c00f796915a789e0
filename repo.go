package utcp

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// ToolRepository is the in-memory store of registered providers and the
// tools each of them exposes.
type ToolRepository interface {
	SaveProviderWithTools(ctx context.Context, provider Provider, tools []Tool) error
	RemoveProvider(ctx context.Context, providerName string) error
	AddTool(ctx context.Context, tool Tool) error
	RemoveTool(ctx context.Context, toolName string) error
	GetTool(ctx context.Context, toolName string) (*Tool, error)
	GetTools(ctx context.Context) ([]Tool, error)
	GetToolsByProvider(ctx context.Context, providerName string) ([]Tool, error)
	GetProvider(ctx context.Context, providerName string) (Provider, error)
	GetProviders(ctx context.Context) ([]Provider, error)
	SearchTools(ctx context.Context, query string, limit int) ([]Tool, error)
	ToolCount(ctx context.Context) (int, error)
	ProviderCount(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// InMemoryToolRepository keys both providers and tools by provider *name*
// (not provider type -- an earlier draft in this codebase's history keyed
// by type, which silently collapsed multiple providers of the same kind
// into one slot).
type InMemoryToolRepository struct {
	mu        sync.RWMutex
	tools     map[string][]Tool
	providers map[string]Provider
}

func NewInMemoryToolRepository() *InMemoryToolRepository {
	return &InMemoryToolRepository{
		tools:     make(map[string][]Tool),
		providers: make(map[string]Provider),
	}
}

func (r *InMemoryToolRepository) SaveProviderWithTools(ctx context.Context, provider Provider, tools []Tool) error {
	if provider == nil {
		return fmt.Errorf("provider must not be nil")
	}
	name := provider.GetName()
	if name == "" {
		return fmt.Errorf("provider must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = provider
	r.tools[name] = tools
	return nil
}

func (r *InMemoryToolRepository) RemoveProvider(ctx context.Context, providerName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[providerName]; !ok {
		return fmt.Errorf("provider not found: %s", providerName)
	}
	delete(r.providers, providerName)
	delete(r.tools, providerName)
	return nil
}

// AddTool registers a single tool against its already-registered provider.
// It fails unknown_provider rather than silently
// creating a provider slot, unlike SaveProviderWithTools which is the only
// way to introduce a brand new provider.
func (r *InMemoryToolRepository) AddTool(ctx context.Context, tool Tool) error {
	providerName, _, err := splitToolName(tool.Name)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[providerName]; !ok {
		return fmt.Errorf("unknown_provider: %s", providerName)
	}
	r.tools[providerName] = append(r.tools[providerName], tool)
	return nil
}

func (r *InMemoryToolRepository) RemoveTool(ctx context.Context, toolName string) error {
	providerName, _, err := splitToolName(toolName)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	tools, ok := r.tools[providerName]
	if !ok {
		return fmt.Errorf("tool not found: %s", toolName)
	}
	out := tools[:0]
	found := false
	for _, t := range tools {
		if t.Name == toolName {
			found = true
			continue
		}
		out = append(out, t)
	}
	if !found {
		return fmt.Errorf("tool not found: %s", toolName)
	}
	r.tools[providerName] = out
	return nil
}

func (r *InMemoryToolRepository) GetTool(ctx context.Context, toolName string) (*Tool, error) {
	providerName, _, err := splitToolName(toolName)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tools[providerName] {
		if t.Name == toolName {
			cp := t
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("tool not found: %s", toolName)
}

func (r *InMemoryToolRepository) GetTools(ctx context.Context) ([]Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Tool
	for _, tools := range r.tools {
		out = append(out, tools...)
	}
	return out, nil
}

func (r *InMemoryToolRepository) GetToolsByProvider(ctx context.Context, providerName string) ([]Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools, ok := r.tools[providerName]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", providerName)
	}
	out := make([]Tool, len(tools))
	copy(out, tools)
	return out, nil
}

func (r *InMemoryToolRepository) GetProvider(ctx context.Context, providerName string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", providerName)
	}
	return p, nil
}

func (r *InMemoryToolRepository) GetProviders(ctx context.Context) ([]Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	return out, nil
}

// SearchTools is a case-insensitive
// substring match over each tool's name, description and tags, capped at
// limit results (limit <= 0 means unbounded). Unlike the ranked search.Engine
// Client.SearchTools drives, this is the repository's own cheap lookup --
// no scoring, just containment.
func (r *InMemoryToolRepository) SearchTools(ctx context.Context, query string, limit int) ([]Tool, error) {
	q := strings.ToLower(query)
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Tool
	for _, tools := range r.tools {
		for _, t := range tools {
			if toolMatchesQuery(t, q) {
				out = append(out, t)
				if limit > 0 && len(out) >= limit {
					return out, nil
				}
			}
		}
	}
	return out, nil
}

func toolMatchesQuery(t Tool, lowerQuery string) bool {
	if lowerQuery == "" {
		return true
	}
	if strings.Contains(strings.ToLower(t.Name), lowerQuery) {
		return true
	}
	if strings.Contains(strings.ToLower(t.Description), lowerQuery) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), lowerQuery) {
			return true
		}
	}
	return false
}

// ToolCount reports the total number of registered tools.
func (r *InMemoryToolRepository) ToolCount(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, tools := range r.tools {
		n += len(tools)
	}
	return n, nil
}

// ProviderCount reports the number of registered providers.
func (r *InMemoryToolRepository) ProviderCount(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers), nil
}

// Clear drops every registered provider
// and tool, resetting the repository to the state NewInMemoryToolRepository
// produces.
func (r *InMemoryToolRepository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = make(map[string][]Tool)
	r.providers = make(map[string]Provider)
	return nil
}
