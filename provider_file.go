package utcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// validatePathSafety rejects a providers-file path containing a literal
// ".." traversal segment, or whose resolved absolute form contains one,
// before any filesystem read.
func validatePathSafety(path string) error {
	if strings.Contains(path, "../") || strings.Contains(path, "..\\") {
		return fmt.Errorf("invalid_path: %q contains a traversal segment", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid_path: %w", err)
	}
	if strings.Contains(abs, "..") {
		return fmt.Errorf("invalid_path: resolved path %q contains \"..\"", abs)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("invalid_path: %w", err)
	}
	return nil
}

// RegisterProvidersFromFile bulk-loads providers from a JSON file. The
// file may hold {"providers":[…]}, a single provider object, or a bare
// array. Each entry is dispatched on its "type"/"provider_type" field; a
// bad entry is logged and skipped so the rest of the load continues.
func (c *Client) RegisterProvidersFromFile(ctx context.Context, path string) error {
	if err := validatePathSafety(path); err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read providers file %q: %w", path, err)
	}

	entries, err := splitProviderEntries(data)
	if err != nil {
		return fmt.Errorf("invalid JSON in providers file %q: %w", path, err)
	}

	for _, raw := range entries {
		prov, err := unmarshalProviderEntry(raw)
		if err != nil {
			c.logger("skipping provider entry in %s: %v", path, err)
			continue
		}
		if _, _, err := c.RegisterProvider(ctx, prov); err != nil {
			c.logger("error registering provider %q: %v", prov.GetName(), err)
		}
	}
	return nil
}

// splitProviderEntries normalizes the three accepted provider-file
// shapes into a flat list of per-provider JSON blobs.
func splitProviderEntries(data []byte) ([][]byte, error) {
	var wrapped struct {
		Providers []json.RawMessage `json:"providers"`
	}
	if err := jsonUnmarshal(data, &wrapped); err == nil && wrapped.Providers != nil {
		out := make([][]byte, len(wrapped.Providers))
		for i, m := range wrapped.Providers {
			out[i] = m
		}
		return out, nil
	}

	var list []json.RawMessage
	if err := jsonUnmarshal(data, &list); err == nil {
		out := make([][]byte, len(list))
		for i, m := range list {
			out[i] = m
		}
		return out, nil
	}

	var single map[string]interface{}
	if err := jsonUnmarshal(data, &single); err != nil {
		return nil, err
	}
	if _, hasType := single["type"]; !hasType {
		if _, hasType := single["provider_type"]; !hasType {
			return nil, errors.New("provider entry missing \"type\"/\"provider_type\"")
		}
	}
	return [][]byte{data}, nil
}

// unmarshalProviderEntry accepts either "type" or "provider_type" as the
// discriminator key, normalizing to "provider_type" before
// handing off to UnmarshalProvider's tagged-union dispatch. The
// discriminator is read and rewritten in place with gjson/sjson's
// path-based accessors rather than a full unmarshal-mutate-remarshal
// round trip through a generic map.
func unmarshalProviderEntry(raw []byte) (Provider, error) {
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("provider entry is not valid JSON")
	}
	if !gjson.GetBytes(raw, "provider_type").Exists() {
		t := gjson.GetBytes(raw, "type")
		if !t.Exists() {
			return nil, errors.New("provider entry missing \"type\"/\"provider_type\"")
		}
		normalized, err := sjson.SetBytes(raw, "provider_type", t.String())
		if err != nil {
			return nil, err
		}
		raw = normalized
	}
	return UnmarshalProvider(raw)
}
