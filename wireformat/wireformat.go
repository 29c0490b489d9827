// Package wireformat defines the JSON request/response records exchanged
// across the plugin host boundary: every plugin ABI function and every
// host callback is a typed record serialized to guest memory (see
// internal/infrastructure/wasm and internal/infrastructure/wasm/hostfuncs).
package wireformat

import "time"

// ErrorDetail is the structured error shape every host/plugin call may
// return in place of (or alongside) its payload.
type ErrorDetail struct {
	Message   string `json:"message"`
	Type      string `json:"type,omitempty"`
	Code      string `json:"code,omitempty"`
	IsTimeout bool   `json:"is_timeout,omitempty"`
	IsNotFound bool  `json:"is_not_found,omitempty"`
}

// ExecRequestWire is the argument to the host_exec_command callback.
type ExecRequestWire struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Cwd     string            `json:"cwd,omitempty"`
	Stream  bool              `json:"stream,omitempty"`
}

// ExecResponseWire is the result of host_exec_command.
type ExecResponseWire struct {
	Stdout     string       `json:"stdout,omitempty"`
	Stderr     string       `json:"stderr,omitempty"`
	ExitCode   int          `json:"exit_code"`
	DurationMs int64        `json:"duration_ms"`
	Error      *ErrorDetail `json:"error,omitempty"`
}

// HTTPRequestWire is the argument to the host_send_request callback.
type HTTPRequestWire struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body,omitempty"`
}

// HTTPResponseWire is the result of host_send_request.
type HTTPResponseWire struct {
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       []byte            `json:"body,omitempty"`
	Error      *ErrorDetail      `json:"error,omitempty"`
}

// EnvVarRequestWire is the argument to host_get_env_var/host_set_env_var.
type EnvVarRequestWire struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// EnvVarResponseWire is the result of host_get_env_var.
type EnvVarResponseWire struct {
	Value string       `json:"value,omitempty"`
	Found bool         `json:"found"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// VirtualPathRequestWire is the argument to host_to_virtual_path /
// host_from_virtual_path.
type VirtualPathRequestWire struct {
	Path string `json:"path"`
}

// VirtualPathResponseWire is the result of a virtual path conversion.
type VirtualPathResponseWire struct {
	Path  string       `json:"path"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// LogLevel mirrors slog's level vocabulary over the wire.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogRequestWire is the argument to host_log.
type LogRequestWire struct {
	Message string                 `json:"message"`
	Level   LogLevel               `json:"level"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

// RegisterToolOutputWire is the result of the plugin's register_tool
// function (spec.md §4.1).
type RegisterToolOutputWire struct {
	Name              string            `json:"name"`
	PluginKind        string            `json:"plugin_kind"`
	PluginVersion     string            `json:"plugin_version"`
	Prerequisites     []string          `json:"prerequisites,omitempty"`
	Deprecations      []string          `json:"deprecations,omitempty"`
	ConfigSchemaHints map[string]string `json:"config_schema_hints,omitempty"`
	ChecksumPublicKey string            `json:"checksum_public_key,omitempty"`
}

// DetectVersionFilesOutputWire is the result of detect_version_files.
type DetectVersionFilesOutputWire struct {
	Filenames []string `json:"filenames"`
}

// ParseVersionFileInputWire is the argument to parse_version_file.
type ParseVersionFileInputWire struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// ParseVersionFileOutputWire is the result of parse_version_file.
type ParseVersionFileOutputWire struct {
	Spec string `json:"spec,omitempty"`
}

// LoadVersionsOutputWire is the result of load_versions.
type LoadVersionsOutputWire struct {
	Versions  []string `json:"versions"`
	Aliases   map[string]string `json:"aliases,omitempty"`
	Latest    string   `json:"latest,omitempty"`
	HasCanary bool     `json:"has_canary,omitempty"`
}

// ResolveVersionInputWire is the argument to resolve_version.
type ResolveVersionInputWire struct {
	Spec string `json:"spec"`
}

// ResolveVersionOutputWire is the result of resolve_version.
type ResolveVersionOutputWire struct {
	Spec string `json:"spec"`
}

// DownloadPrebuiltOutputWire is the result of download_prebuilt.
type DownloadPrebuiltOutputWire struct {
	DownloadURL    string `json:"download_url"`
	ChecksumURL    string `json:"checksum_url,omitempty"`
	PublicKey      string `json:"public_key,omitempty"`
	ArchivePrefix  string `json:"archive_prefix,omitempty"`
}

// BuildStepKind enumerates the build-instruction program steps of
// spec.md §4.5.
type BuildStepKind string

const (
	StepInstallBuilder    BuildStepKind = "install-builder"
	StepMakeExecutable    BuildStepKind = "make-executable"
	StepMoveFile          BuildStepKind = "move-file"
	StepRemoveAllExcept   BuildStepKind = "remove-all-except"
	StepRemoveDir         BuildStepKind = "remove-dir"
	StepRemoveFile        BuildStepKind = "remove-file"
	StepRequestScript     BuildStepKind = "request-script"
	StepRunCommand        BuildStepKind = "run-command"
	StepSetEnvVar         BuildStepKind = "set-env-var"
)

// BuildStepWire is one step of a build_instructions program.
type BuildStepWire struct {
	Kind    BuildStepKind     `json:"kind"`
	Path    string            `json:"path,omitempty"`
	Dest    string            `json:"dest,omitempty"`
	Keep    []string          `json:"keep,omitempty"`
	Bin     string            `json:"bin,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Cwd     string            `json:"cwd,omitempty"`
	Name    string            `json:"name,omitempty"`
	Value   string            `json:"value,omitempty"`
	URL     string            `json:"url,omitempty"`
}

// BuildRequirementWire declares a precondition checked before the build
// program runs (e.g. "command:cc" or "command:make").
type BuildRequirementWire struct {
	Kind        string `json:"kind"`
	Value       string `json:"value"`
	Guidance    string `json:"guidance,omitempty"`
}

// BuildInstructionsOutputWire is the result of build_instructions.
type BuildInstructionsOutputWire struct {
	Requirements []BuildRequirementWire `json:"requirements,omitempty"`
	Steps        []BuildStepWire        `json:"steps"`
}

// LocateExecutablesOutputWire is the result of locate_executables.
type LocateExecutablesOutputWire struct {
	Primary    string            `json:"primary"`
	Secondary  map[string]string `json:"secondary,omitempty"`
	Globals    []string          `json:"globals,omitempty"`
}

// SyncManifestInputWire is the argument to sync_manifest.
type SyncManifestInputWire struct {
	Version string `json:"version"`
}

// LifecycleHookInputWire is the argument to pre_install/post_install.
type LifecycleHookInputWire struct {
	Version   string    `json:"version"`
	InstallAt time.Time `json:"install_at"`
}
