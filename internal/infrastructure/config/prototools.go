// Package config implements the `.prototools` file format and the
// config-stack discovery walk (spec.md §3, §4.2, §6), adapted from the
// teacher's infrastructure/config package's file-loading style but
// driven by pelletier/go-toml/v2 instead of YAML, matching this
// project's wire format.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/polytool-dev/polytool/internal/domain/entities"
	"github.com/polytool-dev/polytool/internal/domain/values"
)

// decode parses raw TOML bytes into a PartialConfig, per the reserved
// key table of spec.md §6. Unknown top-level scalar keys are treated as
// version pins for the native backend; unrecognized nested shapes are
// returned as an error rather than silently dropped.
func decode(data []byte) (*entities.PartialConfig, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing toml: %w", err)
	}

	cfg := entities.NewPartialConfig()

	for key, val := range raw {
		switch key {
		case "plugins":
			if err := decodePlugins(cfg, val); err != nil {
				return nil, err
			}
		case "tools":
			if err := decodeTools(cfg, val); err != nil {
				return nil, err
			}
		case "settings":
			if err := decodeSettings(cfg, val); err != nil {
				return nil, err
			}
		default:
			spec, ok := val.(string)
			if !ok {
				return nil, fmt.Errorf("key %q must be a version spec string", key)
			}
			id, err := values.NewId(key)
			if err != nil {
				return nil, fmt.Errorf("top-level key %q: %w", key, err)
			}
			parsed, err := values.ParseUnresolvedSpec(spec)
			if err != nil {
				return nil, fmt.Errorf("pin %q: %w", key, err)
			}
			cfg.Versions[values.ToolContext{Backend: values.BackendNative, Id: id}] = parsed
		}
	}

	return cfg, nil
}

func decodePlugins(cfg *entities.PartialConfig, val any) error {
	table, ok := val.(map[string]any)
	if !ok {
		return fmt.Errorf("plugins must be a table")
	}
	for key, v := range table {
		locatorStr, ok := v.(string)
		if !ok {
			return fmt.Errorf("plugins.%s must be a string locator", key)
		}
		id, err := values.NewId(key)
		if err != nil {
			return fmt.Errorf("plugins.%s: %w", key, err)
		}
		locator, err := entities.ParsePluginLocator(locatorStr)
		if err != nil {
			return fmt.Errorf("plugins.%s: %w", key, err)
		}
		cfg.Plugins[id] = locator
	}
	return nil
}

func decodeTools(cfg *entities.PartialConfig, val any) error {
	table, ok := val.(map[string]any)
	if !ok {
		return fmt.Errorf("tools must be a table")
	}
	for key, v := range table {
		id, err := values.NewId(key)
		if err != nil {
			return fmt.Errorf("tools.%s: %w", key, err)
		}
		entryTable, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("tools.%s must be a table", key)
		}
		settings := entities.ToolSettings{
			Aliases:  make(map[string]values.UnresolvedSpec),
			Env:      make(map[string]string),
			Settings: make(map[string]any),
		}
		for fieldKey, fieldVal := range entryTable {
			switch fieldKey {
			case "aliases":
				aliasTable, ok := fieldVal.(map[string]any)
				if !ok {
					return fmt.Errorf("tools.%s.aliases must be a table", key)
				}
				for alias, target := range aliasTable {
					targetStr, ok := target.(string)
					if !ok {
						return fmt.Errorf("tools.%s.aliases.%s must be a string", key, alias)
					}
					spec, err := values.ParseUnresolvedSpec(targetStr)
					if err != nil {
						return fmt.Errorf("tools.%s.aliases.%s: %w", key, alias, err)
					}
					settings.Aliases[alias] = spec
				}
			case "env":
				envTable, ok := fieldVal.(map[string]any)
				if !ok {
					return fmt.Errorf("tools.%s.env must be a table", key)
				}
				for envKey, envVal := range envTable {
					envStr, ok := envVal.(string)
					if !ok {
						return fmt.Errorf("tools.%s.env.%s must be a string", key, envKey)
					}
					settings.Env[envKey] = envStr
				}
			default:
				settings.Settings[fieldKey] = fieldVal
			}
		}
		cfg.Tools[id] = settings
	}
	return nil
}

func decodeSettings(cfg *entities.PartialConfig, val any) error {
	table, ok := val.(map[string]any)
	if !ok {
		return fmt.Errorf("settings must be a table")
	}
	s := &cfg.Settings
	for key, v := range table {
		switch key {
		case "auto-clean":
			b, _ := v.(bool)
			s.AutoClean = &b
		case "auto-install":
			b, _ := v.(bool)
			s.AutoInstall = &b
		case "detect-strategy":
			str, _ := v.(string)
			s.DetectStrategy = entities.DetectStrategy(str)
		case "pin-latest":
			str, _ := v.(string)
			s.PinLatest = entities.PinLatestMode(str)
		case "lockfile":
			b, _ := v.(bool)
			s.Lockfile = &b
		case "telemetry":
			b, _ := v.(bool)
			s.Telemetry = &b
		case "builtin-plugins":
			s.BuiltinPlugins = v
		case "registries":
			list, _ := v.([]any)
			for _, item := range list {
				if str, ok := item.(string); ok {
					s.Registries = append(s.Registries, str)
				}
			}
		case "url-rewrites":
			table, ok := v.(map[string]any)
			if ok {
				rewrites := make(map[string]string, len(table))
				for k, val := range table {
					if str, ok := val.(string); ok {
						rewrites[k] = str
					}
				}
				s.URLRewrites = rewrites
			}
		case "http":
			table, ok := v.(map[string]any)
			if ok {
				s.HTTP = decodeHTTPSettings(table)
			}
		case "offline":
			table, ok := v.(map[string]any)
			if ok {
				s.Offline = decodeOfflineSettings(table)
			}
		}
	}
	return nil
}

func decodeHTTPSettings(table map[string]any) *entities.HTTPSettings {
	h := &entities.HTTPSettings{}
	if v, ok := table["connect-timeout"].(int64); ok {
		h.ConnectTimeoutSeconds = int(v)
	}
	if v, ok := table["read-timeout"].(int64); ok {
		h.ReadTimeoutSeconds = int(v)
	}
	if v, ok := table["proxy"].(string); ok {
		h.Proxy = v
	}
	if headerTable, ok := table["headers"].(map[string]any); ok {
		h.Headers = make(map[string]string, len(headerTable))
		for k, v := range headerTable {
			if s, ok := v.(string); ok {
				h.Headers[k] = s
			}
		}
	}
	return h
}

func decodeOfflineSettings(table map[string]any) *entities.OfflineSettings {
	o := &entities.OfflineSettings{}
	if list, ok := table["custom-hosts"].([]any); ok {
		for _, item := range list {
			if s, ok := item.(string); ok {
				o.CustomHosts = append(o.CustomHosts, s)
			}
		}
	}
	if v, ok := table["override-default-hosts"].(bool); ok {
		o.OverrideDefaultHosts = v
	}
	if v, ok := table["timeout"].(int64); ok {
		o.TimeoutMillis = int(v)
	}
	return o
}

// encode renders a PartialConfig back to `.prototools` TOML.
func encode(cfg *entities.PartialConfig) ([]byte, error) {
	raw := make(map[string]any)

	for ctx, spec := range cfg.Versions {
		raw[string(ctx.Id)] = spec.Format()
	}

	if len(cfg.Plugins) > 0 {
		plugins := make(map[string]any, len(cfg.Plugins))
		for id, locator := range cfg.Plugins {
			plugins[string(id)] = locator.String()
		}
		raw["plugins"] = plugins
	}

	if len(cfg.Tools) > 0 {
		tools := make(map[string]any, len(cfg.Tools))
		for id, settings := range cfg.Tools {
			entry := make(map[string]any)
			if len(settings.Aliases) > 0 {
				aliases := make(map[string]any, len(settings.Aliases))
				for alias, spec := range settings.Aliases {
					aliases[alias] = spec.Format()
				}
				entry["aliases"] = aliases
			}
			if len(settings.Env) > 0 {
				env := make(map[string]any, len(settings.Env))
				for k, v := range settings.Env {
					env[k] = v
				}
				entry["env"] = env
			}
			for k, v := range settings.Settings {
				entry[k] = v
			}
			if len(entry) > 0 {
				tools[string(id)] = entry
			}
		}
		if len(tools) > 0 {
			raw["tools"] = tools
		}
	}

	if settingsTable := encodeSettings(cfg.Settings); len(settingsTable) > 0 {
		raw["settings"] = settingsTable
	}

	out, err := toml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshaling toml: %w", err)
	}
	return out, nil
}

func encodeSettings(s entities.Settings) map[string]any {
	out := make(map[string]any)
	if s.AutoClean != nil {
		out["auto-clean"] = *s.AutoClean
	}
	if s.AutoInstall != nil {
		out["auto-install"] = *s.AutoInstall
	}
	if s.DetectStrategy != "" {
		out["detect-strategy"] = string(s.DetectStrategy)
	}
	if s.PinLatest != "" {
		out["pin-latest"] = string(s.PinLatest)
	}
	if s.Lockfile != nil {
		out["lockfile"] = *s.Lockfile
	}
	if s.Telemetry != nil {
		out["telemetry"] = *s.Telemetry
	}
	if s.BuiltinPlugins != nil {
		out["builtin-plugins"] = s.BuiltinPlugins
	}
	if len(s.Registries) > 0 {
		out["registries"] = s.Registries
	}
	if len(s.URLRewrites) > 0 {
		out["url-rewrites"] = s.URLRewrites
	}
	if s.HTTP != nil {
		out["http"] = map[string]any{
			"connect-timeout": s.HTTP.ConnectTimeoutSeconds,
			"read-timeout":    s.HTTP.ReadTimeoutSeconds,
			"proxy":           s.HTTP.Proxy,
			"headers":         s.HTTP.Headers,
		}
	}
	if s.Offline != nil {
		out["offline"] = map[string]any{
			"custom-hosts":           s.Offline.CustomHosts,
			"override-default-hosts": s.Offline.OverrideDefaultHosts,
			"timeout":                s.Offline.TimeoutMillis,
		}
	}
	return out
}

// readFile loads and decodes a `.prototools` file, returning a non-
// existent-but-valid ConfigFile if path does not exist on disk.
func readFile(path string, loc entities.Location) (*entities.ConfigFile, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the stack-discovery walk, not unsanitized user input
	if os.IsNotExist(err) {
		return &entities.ConfigFile{Path: path, Exists: false, Location: loc, Config: entities.NewPartialConfig()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	cfg, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &entities.ConfigFile{Path: path, Exists: true, Location: loc, Config: cfg}, nil
}

// writeFile encodes and writes file.Config to file.Path.
func writeFile(file *entities.ConfigFile) error {
	data, err := encode(file.Config)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", file.Path, err)
	}
	if err := os.WriteFile(file.Path, data, 0o644); err != nil { //nolint:gosec // G306: a user-editable config file, not a secret
		return fmt.Errorf("writing %s: %w", file.Path, err)
	}
	return nil
}
