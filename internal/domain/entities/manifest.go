package entities

import (
	"fmt"

	"github.com/polytool-dev/polytool/internal/domain/values"
)

// CurrentShimVersion is the shim layout version written to new manifests.
// Bumped whenever the shim launcher's invocation contract changes; the
// inventory uses it to detect manifests written by an older shim.
const CurrentShimVersion = 1

// InstallRecord is the per-version entry inside a ToolManifest.
type InstallRecord struct {
	InstalledAtMillis int64
	LastUsedAtMillis  int64 // 0 if never used
	NoClean           bool
	LockedRecord      *LockRecord
}

// ToolManifest is the per-tool, store-local inventory file:
// `<store>/tools/<id>/manifest.json` (spec.md §3, §6).
type ToolManifest struct {
	Id                values.Id
	InstalledVersions map[string]struct{} // set of formatted ResolvedSpec
	Versions          map[string]InstallRecord
	ShimVersion       uint8
}

// NewToolManifest constructs an empty manifest for id.
func NewToolManifest(id values.Id) *ToolManifest {
	return &ToolManifest{
		Id:                id,
		InstalledVersions: make(map[string]struct{}),
		Versions:          make(map[string]InstallRecord),
		ShimVersion:       CurrentShimVersion,
	}
}

// RecordInstall marks version as installed with the given install
// timestamp, creating or overwriting its entry.
func (m *ToolManifest) RecordInstall(version values.ResolvedSpec, installedAtMillis int64, rec *LockRecord) {
	key := version.Format()
	m.InstalledVersions[key] = struct{}{}
	existing := m.Versions[key]
	existing.InstalledAtMillis = installedAtMillis
	existing.LockedRecord = rec
	m.Versions[key] = existing
}

// Touch updates the last-used timestamp for an installed version, used
// by install when the resolved version is already present, to feed the
// stale-install pruner (spec.md supplemented features: clean/stale-install
// pruning).
func (m *ToolManifest) Touch(version values.ResolvedSpec, nowMillis int64) error {
	key := version.Format()
	rec, ok := m.Versions[key]
	if !ok {
		return fmt.Errorf("version %s is not recorded in manifest for %s", key, m.Id)
	}
	rec.LastUsedAtMillis = nowMillis
	m.Versions[key] = rec
	return nil
}

// IsInstalled reports whether version is recorded as installed.
func (m *ToolManifest) IsInstalled(version values.ResolvedSpec) bool {
	_, ok := m.InstalledVersions[version.Format()]
	return ok
}

// SetNoClean marks version as exempt from stale-install pruning.
func (m *ToolManifest) SetNoClean(version values.ResolvedSpec, noClean bool) error {
	key := version.Format()
	rec, ok := m.Versions[key]
	if !ok {
		return fmt.Errorf("version %s is not recorded in manifest for %s", key, m.Id)
	}
	rec.NoClean = noClean
	m.Versions[key] = rec
	return nil
}

// RemoveVersion deletes version from the manifest entirely, used by
// `prune` once a stale install's files have been removed from disk.
func (m *ToolManifest) RemoveVersion(version values.ResolvedSpec) {
	key := version.Format()
	delete(m.InstalledVersions, key)
	delete(m.Versions, key)
}

// StaleVersions returns installed versions whose last-used timestamp (or
// install timestamp, if never used) is older than cutoffMillis and which
// are not marked NoClean.
func (m *ToolManifest) StaleVersions(cutoffMillis int64) []string {
	var stale []string
	for key, rec := range m.Versions {
		if rec.NoClean {
			continue
		}
		last := rec.LastUsedAtMillis
		if last == 0 {
			last = rec.InstalledAtMillis
		}
		if last < cutoffMillis {
			stale = append(stale, key)
		}
	}
	return stale
}

// NeedsShimMigration reports whether this manifest's shims were written
// by an older shim layout and must be regenerated.
func (m *ToolManifest) NeedsShimMigration() bool {
	return m.ShimVersion < CurrentShimVersion
}
