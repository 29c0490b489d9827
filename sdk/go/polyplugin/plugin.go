package polyplugin

import (
	"encoding/json"
	"fmt"

	"github.com/polytool-dev/polytool/wireformat"
)

// ToolPlugin is the surface every plugin implements. RegisterTool,
// LoadVersions, and LocateExecutables are required on every plugin
// (spec.md §4.1's "yes" column); every other operation is optional and
// belongs on one of the interfaces below, wired up only if the plugin
// author writes a matching //go:wasmexport for it.
type ToolPlugin interface {
	RegisterTool() (wireformat.RegisterToolOutputWire, error)
	LoadVersions() (wireformat.LoadVersionsOutputWire, error)
	LocateExecutables() (wireformat.LocateExecutablesOutputWire, error)
}

// VersionFileDetector lets a plugin contribute ecosystem version files
// (a "go.mod", a ".nvmrc") to FirstAvailable resolution.
type VersionFileDetector interface {
	DetectVersionFiles() ([]string, error)
	ParseVersionFile(filename, content string) (spec string, err error)
}

// VersionResolver lets a plugin rewrite a spec before matching, e.g. to
// expand an alias only the plugin understands.
type VersionResolver interface {
	ResolveVersion(spec string) (resolved string, err error)
}

// NativeInstaller lets a plugin perform installation itself instead of
// the pipeline's download/verify/unpack path.
type NativeInstaller interface {
	NativeInstall(version string) error
}

// PrebuiltSource lets a plugin point the pipeline at a prebuilt archive.
type PrebuiltSource interface {
	DownloadPrebuilt(version string) (wireformat.DownloadPrebuiltOutputWire, error)
}

// SourceBuilder lets a plugin describe a from-source build program.
type SourceBuilder interface {
	BuildInstructions(version string) (wireformat.BuildInstructionsOutputWire, error)
}

// ArchiveUnpacker lets a plugin override the pipeline's extension-based
// archive dispatch.
type ArchiveUnpacker interface {
	UnpackArchive(archivePath, destDir string) error
}

// ArchiveVerifier lets a plugin override the pipeline's checksum check.
type ArchiveVerifier interface {
	VerifyChecksum(archivePath, checksum string) error
}

// ManifestSyncer lets a plugin amend the inventory manifest after
// install.
type ManifestSyncer interface {
	SyncManifest(version string) error
}

// InstallHooks lets a plugin run code immediately before or after
// install.
type InstallHooks interface {
	PreInstall(version string) error
	PostInstall(version string) error
}

// Dispatch* helpers do the JSON unmarshal/marshal and memory plumbing
// around a plugin method, so a plugin's own //go:wasmexport function is
// one line. Presence or absence of an export, not a runtime type
// assertion, is what tells the host whether an operation is implemented
// (internal/infrastructure/wasm/plugin.go looks up the export by name),
// so only write the wasmexport functions for what the plugin actually
// implements.

// DispatchNoInput wires a no-argument operation (register_tool,
// load_versions, locate_executables, detect_version_files).
func DispatchNoInput[Out any](fn func() (Out, error)) uint64 {
	out, err := fn()
	return writeResult(out, err)
}

// DispatchWithInput wires an operation that both takes and returns a
// payload (parse_version_file, resolve_version, download_prebuilt,
// build_instructions).
func DispatchWithInput[In, Out any](ptr, length uint32, fn func(In) (Out, error)) uint64 {
	in, err := decodeInput[In](ptr, length)
	if err != nil {
		return writeError(err)
	}
	out, err := fn(in)
	return writeResult(out, err)
}

// DispatchAction wires an operation that takes a payload and returns
// only an error (native_install, unpack_archive, verify_checksum,
// sync_manifest, pre_install, post_install).
func DispatchAction[In any](ptr, length uint32, fn func(In) error) uint64 {
	in, err := decodeInput[In](ptr, length)
	if err != nil {
		return writeError(err)
	}
	return writeResult(struct{}{}, fn(in))
}

func decodeInput[In any](ptr, length uint32) (In, error) {
	var in In
	data := readBytes(ptr, length)
	if len(data) == 0 {
		return in, nil
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return in, fmt.Errorf("decoding plugin call input: %w", err)
	}
	return in, nil
}

func writeResult(out any, err error) uint64 {
	if err != nil {
		return writeError(err)
	}
	data, merr := json.Marshal(out)
	if merr != nil {
		return writeError(fmt.Errorf("encoding plugin call output: %w", merr))
	}
	return writeBytes(data)
}

func writeError(err error) uint64 {
	data, merr := json.Marshal(struct {
		Error string `json:"error"`
	}{Error: err.Error()})
	if merr != nil {
		return 0
	}
	return writeBytes(data)
}

// VersionInput is the `{"version": "..."}` payload shared by
// native_install, build_instructions, sync_manifest, and the lifecycle
// hooks.
type VersionInput struct {
	Version string `json:"version"`
}

// ArchiveInput is the payload for unpack_archive.
type ArchiveInput struct {
	ArchivePath string `json:"archive_path"`
	DestDir     string `json:"dest_dir"`
}

// ChecksumInput is the payload for verify_checksum.
type ChecksumInput struct {
	ArchivePath string `json:"archive_path"`
	Checksum    string `json:"checksum"`
}
