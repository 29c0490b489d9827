// Package ports defines the interfaces the application layer depends on
// but does not implement — the infrastructure adapters behind config
// discovery, the plugin host, lockfile/inventory persistence, and
// download/unpack/verify. Application services are constructed against
// these interfaces so they can be tested with fakes instead of real I/O.
package ports

import (
	"context"
	"encoding/json"

	"github.com/polytool-dev/polytool/internal/domain/entities"
	"github.com/polytool-dev/polytool/internal/domain/values"
)

// PluginHost compiles and calls WASM bytecode plugins (spec.md §4.1).
type PluginHost interface {
	Compile(ctx context.Context, id values.Id, wasmBytes []byte) (Plugin, error)
	Close(ctx context.Context) error
}

// Plugin is a compiled, callable plugin instance.
type Plugin interface {
	ID() values.Id
	Call(ctx context.Context, funcName string, input any) (json.RawMessage, error)
	Close(ctx context.Context) error
}

// PluginLoader resolves a PluginLocator to WASM bytes, handling the
// file/url/github-release/oci-image locator kinds and their caching
// (spec.md §6 "Loader").
type PluginLoader interface {
	Load(ctx context.Context, id values.Id, locator entities.PluginLocator) ([]byte, error)
}

// ConfigStack discovers and loads the `.prototools` stack for a working
// directory (spec.md §4.2 "Config stack discovery").
type ConfigStack interface {
	Discover(ctx context.Context, cwd string) ([]*entities.ConfigFile, error)
	Load(ctx context.Context, path string, loc entities.Location) (*entities.ConfigFile, error)
	Save(ctx context.Context, file *entities.ConfigFile) error
}

// LockfileRepository persists a Lockfile alongside a `.prototools` stack
// entry.
type LockfileRepository interface {
	Load(ctx context.Context, dir string) (*entities.Lockfile, error)
	Save(ctx context.Context, dir string, lock *entities.Lockfile) error
}

// Inventory manages the content-addressed store layout: manifests, shim
// registration, and symlink materialization (spec.md §5).
type Inventory interface {
	LoadManifest(ctx context.Context, id values.Id) (*entities.ToolManifest, error)
	SaveManifest(ctx context.Context, manifest *entities.ToolManifest) error
	ToolDir(id values.Id, version string) string
	StoreRoot() string
	EnsureShims(ctx context.Context, id values.Id, version string, executables []string) error
}

// Pruner removes stale installed versions per manifest last-used times.
type Pruner interface {
	Prune(ctx context.Context, id values.Id, cutoffMillis int64, dryRun bool) ([]string, error)
}

// Downloader fetches a remote artifact (prebuilt archive, checksum file)
// to a local path, with retry/backoff (spec.md §4.5 step 2).
type Downloader interface {
	Download(ctx context.Context, url string, destPath string) error
}

// Unpacker extracts an archive into a destination directory (spec.md
// §4.5 step "unpack_archive").
type Unpacker interface {
	Unpack(ctx context.Context, archivePath, destDir string, prefixStrip string) error
}

// ChecksumVerifier verifies a downloaded artifact against a declared
// checksum, optionally validating a signature over the checksum itself
// (spec.md §4.5 step "verify_checksum").
type ChecksumVerifier interface {
	VerifySHA256(ctx context.Context, path string, expectedHex string) error
	VerifySignature(ctx context.Context, checksumPath, signaturePath, publicKeyPath string) error
}

// RegistryIndex fetches a flat plugin catalog from a configured registry
// URL, used by plugin search/list/info (SPEC_FULL.md §3).
type RegistryIndex interface {
	Fetch(ctx context.Context, registryURL string) ([]RegistryEntry, error)
}

// RegistryEntry is one row of a registry's plugin catalog.
type RegistryEntry struct {
	Id          values.Id
	Locator     string
	Description string
}

// Clock returns the current time in milliseconds since epoch, letting
// application services be tested deterministically.
type Clock interface {
	NowMillis() int64
}
