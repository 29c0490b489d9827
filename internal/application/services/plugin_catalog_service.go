package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/polytool-dev/polytool/internal/application/ports"
	"github.com/polytool-dev/polytool/internal/domain/entities"
	"github.com/polytool-dev/polytool/internal/domain/values"
)

// PluginEntry is one row of the merged plugin catalog: the locally
// configured `plugins.<id>` map plus whatever a remote registry adds.
type PluginEntry struct {
	Id          values.Id
	Locator     entities.PluginLocator
	Description string
	FromConfig  bool
}

// PluginCatalogService backs `poly plugins info|list|search`
// (SPEC_FULL.md §3), merging the configured plugin map with one or more
// registry indexes.
type PluginCatalogService struct {
	configStack ports.ConfigStack
	registry    ports.RegistryIndex
}

// NewPluginCatalogService wires PluginCatalogService against the config
// stack and registry ports.
func NewPluginCatalogService(configStack ports.ConfigStack, registry ports.RegistryIndex) *PluginCatalogService {
	return &PluginCatalogService{configStack: configStack, registry: registry}
}

// List merges the `plugins.<id>` entries visible from cwd's config
// stack with every configured registry's catalog, local entries taking
// precedence over same-id registry entries.
func (s *PluginCatalogService) List(ctx context.Context, cwd string) ([]PluginEntry, error) {
	stack, err := s.configStack.Discover(ctx, cwd)
	if err != nil {
		return nil, fmt.Errorf("discovering config stack: %w", err)
	}

	byID := make(map[values.Id]PluginEntry)
	var registries []string
	for i := len(stack) - 1; i >= 0; i-- {
		f := stack[i]
		if f.Config == nil {
			continue
		}
		for id, locator := range f.Config.Plugins {
			byID[id] = PluginEntry{Id: id, Locator: locator, FromConfig: true}
		}
		registries = append(registries, f.Config.Settings.Registries...)
	}

	for _, registryURL := range dedupe(registries) {
		entries, err := s.registry.Fetch(ctx, registryURL)
		if err != nil {
			return nil, fmt.Errorf("fetching registry %s: %w", registryURL, err)
		}
		for _, e := range entries {
			if _, ok := byID[e.Id]; ok {
				continue
			}
			locator, err := entities.ParsePluginLocator(e.Locator)
			if err != nil {
				continue
			}
			byID[e.Id] = PluginEntry{Id: e.Id, Locator: locator, Description: e.Description}
		}
	}

	result := make([]PluginEntry, 0, len(byID))
	for _, e := range byID {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Id < result[j].Id })
	return result, nil
}

// Info returns the catalog entry for a single plugin id, or false if it
// is not configured locally or present in any registry.
func (s *PluginCatalogService) Info(ctx context.Context, cwd string, id values.Id) (PluginEntry, bool, error) {
	entries, err := s.List(ctx, cwd)
	if err != nil {
		return PluginEntry{}, false, err
	}
	for _, e := range entries {
		if e.Id == id {
			return e, true, nil
		}
	}
	return PluginEntry{}, false, nil
}

// Search filters the merged catalog by a case-insensitive substring
// match against id or description.
func (s *PluginCatalogService) Search(ctx context.Context, cwd, query string) ([]PluginEntry, error) {
	entries, err := s.List(ctx, cwd)
	if err != nil {
		return nil, err
	}
	if query == "" {
		return entries, nil
	}
	q := strings.ToLower(query)
	var matched []PluginEntry
	for _, e := range entries {
		if strings.Contains(strings.ToLower(string(e.Id)), q) || strings.Contains(strings.ToLower(e.Description), q) {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
