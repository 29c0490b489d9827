// Package services contains domain services for the tool-management
// domain model: configuration merging, version resolution, and
// detection strategy.
package services

import (
	"github.com/polytool-dev/polytool/internal/domain/entities"
	"github.com/polytool-dev/polytool/internal/domain/values"
)

// ConfigMerger combines a stack of configuration layers into one merged
// view, from least-specific to most-specific, per spec.md §4.3. This is
// a DOMAIN SERVICE because the merge precedence (last-writer-wins at
// leaves, append for registries, union for maps) is a business rule, not
// an I/O concern.
type ConfigMerger struct{}

// NewConfigMerger constructs a ConfigMerger.
func NewConfigMerger() *ConfigMerger {
	return &ConfigMerger{}
}

// Merge folds layers (ordered least-specific first) into a single
// PartialConfig. Returns a NEW config; inputs are not mutated.
func (m *ConfigMerger) Merge(layers []*entities.PartialConfig) *entities.PartialConfig {
	result := entities.NewPartialConfig()
	for _, layer := range layers {
		if layer == nil {
			continue
		}
		m.mergeInto(result, layer)
	}
	return result
}

func (m *ConfigMerger) mergeInto(base, overlay *entities.PartialConfig) {
	// versions: unioned per (backend, id) key, overlay wins
	for ctx, spec := range overlay.Versions {
		base.Versions[ctx] = spec
	}

	// plugins: unioned, more-specific entries win
	for id, loc := range overlay.Plugins {
		base.Plugins[id] = loc
	}

	// tools: per-id union; aliases/env/settings merge with overlay winning
	for id, overlayTool := range overlay.Tools {
		base.Tools[id] = mergeToolSettings(base.Tools[id], overlayTool)
	}

	base.Settings = mergeSettings(base.Settings, overlay.Settings)
}

func mergeToolSettings(base, overlay entities.ToolSettings) entities.ToolSettings {
	merged := entities.ToolSettings{
		Aliases:  make(map[string]values.UnresolvedSpec),
		Env:      make(map[string]string),
		Settings: make(map[string]any),
	}
	for k, v := range base.Aliases {
		merged.Aliases[k] = v
	}
	for k, v := range overlay.Aliases {
		merged.Aliases[k] = v
	}
	for k, v := range base.Env {
		merged.Env[k] = v
	}
	for k, v := range overlay.Env {
		merged.Env[k] = v
	}
	for k, v := range base.Settings {
		merged.Settings[k] = v
	}
	for k, v := range overlay.Settings {
		merged.Settings[k] = v
	}
	return merged
}

// mergeSettings merges the settings block; registries append in
// discovery order, URL rewrites union with overlay winning, everything
// else is last-writer-wins at the leaf.
func mergeSettings(base, overlay entities.Settings) entities.Settings {
	merged := base

	if overlay.AutoClean != nil {
		merged.AutoClean = overlay.AutoClean
	}
	if overlay.AutoInstall != nil {
		merged.AutoInstall = overlay.AutoInstall
	}
	if overlay.DetectStrategy != "" {
		merged.DetectStrategy = overlay.DetectStrategy
	}
	if overlay.HTTP != nil {
		merged.HTTP = overlay.HTTP
	}
	if overlay.Lockfile != nil {
		merged.Lockfile = overlay.Lockfile
	}
	if overlay.Offline != nil {
		merged.Offline = overlay.Offline
	}
	if overlay.PinLatest != "" {
		merged.PinLatest = overlay.PinLatest
	}
	if overlay.Telemetry != nil {
		merged.Telemetry = overlay.Telemetry
	}
	if overlay.BuiltinPlugins != nil {
		merged.BuiltinPlugins = overlay.BuiltinPlugins
	}

	// registries: append in order of discovery, deduplicated
	merged.Registries = appendDedupStrings(base.Registries, overlay.Registries)

	// url-rewrites: union, overlay wins
	if len(overlay.URLRewrites) > 0 {
		rewrites := make(map[string]string, len(base.URLRewrites)+len(overlay.URLRewrites))
		for k, v := range base.URLRewrites {
			rewrites[k] = v
		}
		for k, v := range overlay.URLRewrites {
			rewrites[k] = v
		}
		merged.URLRewrites = rewrites
	}

	return merged
}

func appendDedupStrings(base, overlay []string) []string {
	seen := make(map[string]bool, len(base)+len(overlay))
	result := make([]string, 0, len(base)+len(overlay))
	for _, s := range base {
		if !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range overlay {
		if !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// ApplyEngineProjection removes any pin of the engine's own identifier
// from configuration layers tagged Global or User, preventing the
// recursive re-entry that pinning the engine globally would cause
// (spec.md §4.3 "Projection rules").
func ApplyEngineProjection(layer *entities.ConfigFile) {
	if layer == nil || layer.Config == nil {
		return
	}
	if layer.Location != entities.LocationGlobal && layer.Location != entities.LocationUser {
		return
	}
	for ctx := range layer.Config.Versions {
		if ctx.Id.IsEngine() {
			delete(layer.Config.Versions, ctx)
		}
	}
}

// InjectBuiltinPlugins adds the compiled-in plugin set into a merged
// config's Plugins map wherever an id is not already overridden by the
// user, honoring the builtin-plugins allow-list/bool toggle.
func InjectBuiltinPlugins(merged *entities.PartialConfig, builtins map[values.Id]entities.PluginLocator) {
	allowed := builtinAllowList(merged.Settings.BuiltinPlugins)
	for id, loc := range builtins {
		if _, overridden := merged.Plugins[id]; overridden {
			continue
		}
		if allowed == nil || allowed[id] {
			merged.Plugins[id] = loc
		}
	}
}

// builtinAllowList interprets settings.builtin-plugins: true/nil means
// "all builtins allowed" (nil return), false means "none" (empty, non-nil
// map), and a list means "only these ids".
func builtinAllowList(v any) map[values.Id]bool {
	switch t := v.(type) {
	case nil:
		return nil
	case bool:
		if t {
			return nil
		}
		return map[values.Id]bool{}
	case []string:
		allowed := make(map[values.Id]bool, len(t))
		for _, s := range t {
			allowed[values.Id(s)] = true
		}
		return allowed
	default:
		return nil
	}
}
