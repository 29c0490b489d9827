// Package inventory implements the content-addressed store layout:
// manifests, shim materialization, and the shim registry (spec.md §5,
// §6), grounded on the teacher's persistence-adapter style of thin JSON
// files guarded by an in-process mutex.
package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/polytool-dev/polytool/internal/domain/entities"
	"github.com/polytool-dev/polytool/internal/domain/values"
)

// layout names the store's fixed subdirectories, relative to its root.
const (
	dirBin     = "bin"
	dirShims   = "shims"
	dirPlugins = "plugins"
	dirTools   = "tools"
	dirCache   = "cache"
	dirTemp    = "temp"
)

// Store implements ports.Inventory over a filesystem content-addressed
// layout rooted at Root: `<root>/{bin,shims,plugins,tools/<id>/<version>,
// cache,temp}`.
type Store struct {
	root string
	mu   sync.Mutex
}

// NewStore constructs a Store rooted at root, creating the fixed
// subdirectory layout if it does not already exist.
func NewStore(root string) (*Store, error) {
	for _, d := range []string{dirBin, dirShims, dirPlugins, dirTools, dirCache, dirTemp} {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory %s: %w", d, err)
		}
	}
	return &Store{root: root}, nil
}

// StoreRoot returns the store's root directory.
func (s *Store) StoreRoot() string { return s.root }

// ToolDir returns the install directory for a specific (id, version).
func (s *Store) ToolDir(id values.Id, version string) string {
	return filepath.Join(s.root, dirTools, string(id), version)
}

func (s *Store) manifestPath(id values.Id) string {
	return filepath.Join(s.root, dirTools, string(id), "manifest.json")
}

func (s *Store) registryPath() string {
	return filepath.Join(s.root, dirShims, "registry.json")
}

// wireManifest is the `<store>/tools/<id>/manifest.json` JSON shape
// (spec.md §6).
type wireManifest struct {
	InstalledVersions []string                    `json:"installed_versions"`
	Versions          map[string]wireInstallEntry `json:"versions"`
	ShimVersion       uint8                       `json:"shim_version"`
}

type wireInstallEntry struct {
	InstalledAt  int64            `json:"installed_at"`
	LastUsedAt   *int64           `json:"last_used_at,omitempty"`
	NoClean      bool             `json:"no_clean"`
	LockedRecord *wireLockRecord  `json:"locked_record,omitempty"`
}

type wireLockRecord struct {
	Backend  values.Backend `json:"backend"`
	Spec     string         `json:"spec"`
	Version  string         `json:"version"`
	Source   string         `json:"source"`
	Checksum string         `json:"checksum"`
}

// LoadManifest reads id's manifest, returning nil (not an error) if no
// tool has ever been installed under id.
func (s *Store) LoadManifest(ctx context.Context, id values.Id) (*entities.ToolManifest, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.manifestPath(id)
	data, err := os.ReadFile(path) //nolint:gosec // G304: path built from the store's own fixed layout
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var wire wireManifest
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	manifest := entities.NewToolManifest(id)
	manifest.ShimVersion = wire.ShimVersion
	for _, v := range wire.InstalledVersions {
		manifest.InstalledVersions[v] = struct{}{}
	}
	for version, entry := range wire.Versions {
		rec := entities.InstallRecord{InstalledAtMillis: entry.InstalledAt, NoClean: entry.NoClean}
		if entry.LastUsedAt != nil {
			rec.LastUsedAtMillis = *entry.LastUsedAt
		}
		if entry.LockedRecord != nil {
			locked, err := fromWireLockRecord(*entry.LockedRecord)
			if err != nil {
				return nil, fmt.Errorf("parsing %s: version %s: %w", path, version, err)
			}
			rec.LockedRecord = &locked
		}
		manifest.Versions[version] = rec
	}
	return manifest, nil
}

// SaveManifest writes manifest to its `<store>/tools/<id>/manifest.json`.
func (s *Store) SaveManifest(ctx context.Context, manifest *entities.ToolManifest) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	wire := wireManifest{
		InstalledVersions: make([]string, 0, len(manifest.InstalledVersions)),
		Versions:          make(map[string]wireInstallEntry, len(manifest.Versions)),
		ShimVersion:       manifest.ShimVersion,
	}
	for v := range manifest.InstalledVersions {
		wire.InstalledVersions = append(wire.InstalledVersions, v)
	}
	for version, rec := range manifest.Versions {
		entry := wireInstallEntry{InstalledAt: rec.InstalledAtMillis, NoClean: rec.NoClean}
		if rec.LastUsedAtMillis != 0 {
			lastUsed := rec.LastUsedAtMillis
			entry.LastUsedAt = &lastUsed
		}
		if rec.LockedRecord != nil {
			wireRec := toWireLockRecord(*rec.LockedRecord)
			entry.LockedRecord = &wireRec
		}
		wire.Versions[version] = entry
	}

	data, err := json.MarshalIndent(wire, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest for %s: %w", manifest.Id, err)
	}

	path := s.manifestPath(manifest.Id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating manifest directory for %s: %w", manifest.Id, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // G306: manifest is not secret material
		return fmt.Errorf("writing manifest for %s: %w", manifest.Id, err)
	}
	return nil
}

func toWireLockRecord(rec entities.LockRecord) wireLockRecord {
	w := wireLockRecord{Backend: rec.Backend, Source: rec.Source, Checksum: string(rec.Checksum)}
	if rec.Spec != nil {
		w.Spec = rec.Spec.Format()
	}
	if rec.Version != nil {
		w.Version = rec.Version.Format()
	}
	return w
}

func fromWireLockRecord(w wireLockRecord) (entities.LockRecord, error) {
	rec := entities.LockRecord{Backend: w.Backend, Source: w.Source, Checksum: entities.Checksum(w.Checksum)}
	if w.Spec != "" {
		spec, err := values.ParseUnresolvedSpec(w.Spec)
		if err != nil {
			return entities.LockRecord{}, err
		}
		rec.Spec = &spec
	}
	if w.Version != "" {
		version, err := values.ParseUnresolvedSpec(w.Version)
		if err != nil {
			return entities.LockRecord{}, err
		}
		resolved := values.ResolvedSpec{Kind: version.Kind, Alias: version.Alias, Calendar: version.Calendar, Semantic: version.Semantic}
		rec.Version = &resolved
	}
	return rec, nil
}

// EnsureShims materializes a launcher for each of executables under the
// store's shims directory and records it in the shim registry, pointing
// at id's binary for version (spec.md §6, "Shim registry").
func (s *Store) EnsureShims(ctx context.Context, id values.Id, version string, executables []string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	registry, err := s.loadRegistryLocked()
	if err != nil {
		return err
	}

	toolDir := s.ToolDir(id, version)
	for _, exe := range executables {
		if exe == "" {
			continue
		}
		shimPath := filepath.Join(s.root, dirShims, shimName(exe))
		target := filepath.Join(toolDir, exe)

		_ = os.Remove(shimPath)
		if err := symlinkOrCopy(target, shimPath); err != nil {
			return fmt.Errorf("materializing shim %s: %w", exe, err)
		}
		registry[shimName(exe)] = shimEntry{Parent: string(id)}
	}

	return s.saveRegistryLocked(registry)
}

type shimEntry struct {
	Parent    string            `json:"parent,omitempty"`
	AltBin    string            `json:"alt_bin,omitempty"`
	BeforeArgs []string         `json:"before_args"`
	AfterArgs []string          `json:"after_args"`
	EnvVars   map[string]string `json:"env_vars"`
}

func (s *Store) loadRegistryLocked() (map[string]shimEntry, error) {
	path := s.registryPath()
	data, err := os.ReadFile(path) //nolint:gosec // G304: path built from the store's own fixed layout
	if os.IsNotExist(err) {
		return make(map[string]shimEntry), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading shim registry: %w", err)
	}
	registry := make(map[string]shimEntry)
	if err := json.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("parsing shim registry: %w", err)
	}
	return registry, nil
}

func (s *Store) saveRegistryLocked(registry map[string]shimEntry) error {
	data, err := json.MarshalIndent(registry, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling shim registry: %w", err)
	}
	if err := os.WriteFile(s.registryPath(), data, 0o644); err != nil { //nolint:gosec // G306: registry is not secret material
		return fmt.Errorf("writing shim registry: %w", err)
	}
	return nil
}

func shimName(exe string) string {
	if runtime.GOOS == "windows" {
		return exe + ".exe"
	}
	return exe
}

// symlinkOrCopy creates a symlink from link to target, falling back to
// a hardlink and then a byte copy on platforms where symlinks require
// elevated privileges (Windows without developer mode).
func symlinkOrCopy(target, link string) error {
	if err := os.Symlink(target, link); err == nil {
		return nil
	}
	if err := os.Link(target, link); err == nil {
		return nil
	}
	data, err := os.ReadFile(target) //nolint:gosec // G304: target is a path this store just installed
	if err != nil {
		return err
	}
	return os.WriteFile(link, data, 0o755) //nolint:gosec // G306: an executable shim must be runnable
}
