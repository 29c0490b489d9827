package entities

import "github.com/polytool-dev/polytool/internal/domain/values"

// Location tags where a ConfigFile was discovered in the stack.
type Location string

const (
	LocationGlobal Location = "global"
	LocationLocal  Location = "local"
	LocationUser   Location = "user"
)

// DetectStrategy selects how the version resolver discovers a pinned or
// ecosystem-detected spec (spec.md §4.4).
type DetectStrategy string

const (
	DetectFirstAvailable   DetectStrategy = "first-available"
	DetectOnlyPrototools   DetectStrategy = "only-prototools"
	DetectPreferPrototools DetectStrategy = "prefer-prototools"
)

// PinLatestMode selects where a `latest`-alias resolution gets persisted
// back to, when settings.pin-latest is enabled.
type PinLatestMode string

const (
	PinLatestOff    PinLatestMode = ""
	PinLatestLocal  PinLatestMode = "local"
	PinLatestGlobal PinLatestMode = "global"
)

// ToolSettings is the tool-scoped `tools.<id>.*` configuration: local
// aliases, run-time environment variables, and free-form plugin settings.
type ToolSettings struct {
	Aliases  map[string]values.UnresolvedSpec
	Env      map[string]string
	Settings map[string]any
}

// HTTPSettings is `settings.http`.
type HTTPSettings struct {
	ConnectTimeoutSeconds int
	ReadTimeoutSeconds    int
	Proxy                 string
	Headers               map[string]string
}

// OfflineSettings is `settings.offline`.
type OfflineSettings struct {
	CustomHosts         []string
	OverrideDefaultHosts bool
	TimeoutMillis        int
}

// Settings is the `settings.*` block of a PartialConfig.
type Settings struct {
	AutoClean      *bool
	AutoInstall    *bool
	DetectStrategy DetectStrategy
	HTTP           *HTTPSettings
	Lockfile       *bool
	Offline        *OfflineSettings
	PinLatest      PinLatestMode
	Registries     []string
	Telemetry      *bool
	URLRewrites    map[string]string
	BuiltinPlugins any // bool or []string, per spec.md §6
}

// PartialConfig is one layer's worth of configuration, all of whose
// nested keys are optional so it can merge with other layers
// (spec.md §3, "Partial configuration").
type PartialConfig struct {
	Versions map[values.ToolContext]values.UnresolvedSpec
	Plugins  map[values.Id]PluginLocator
	Tools    map[values.Id]ToolSettings
	Settings Settings
}

// NewPartialConfig constructs an empty PartialConfig with initialized maps.
func NewPartialConfig() *PartialConfig {
	return &PartialConfig{
		Versions: make(map[values.ToolContext]values.UnresolvedSpec),
		Plugins:  make(map[values.Id]PluginLocator),
		Tools:    make(map[values.Id]ToolSettings),
	}
}

// ConfigFile is a discovered `.prototools`-equivalent file: its path,
// whether it exists on disk, its location tag, and the parsed config
// plus an optional adjacent lockfile (spec.md §3, "ProtoFile").
type ConfigFile struct {
	Path     string
	Exists   bool
	Location Location
	Config   *PartialConfig
	Lockfile *Lockfile
}
