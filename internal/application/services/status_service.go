package services

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/polytool-dev/polytool/internal/application/dto"
	"github.com/polytool-dev/polytool/internal/application/ports"
	"github.com/polytool-dev/polytool/internal/domain/values"
)

// StatusService answers the read-only questions `poly status`/`poly
// list`/`poly versions` need, without installing anything (SPEC_FULL.md
// §3's detect/status/list supplemented features).
type StatusService struct {
	resolve   *ResolveService
	inventory ports.Inventory
}

// NewStatusService wires StatusService against an already-constructed
// ResolveService and the inventory port.
func NewStatusService(resolve *ResolveService, inventory ports.Inventory) *StatusService {
	return &StatusService{resolve: resolve, inventory: inventory}
}

// Resolve reports what version req's tool context would use right now
// and where that decision came from, delegating to ResolveService.
func (s *StatusService) Resolve(ctx context.Context, req dto.ResolveRequest, wasmBytes []byte) (dto.ResolveResult, error) {
	return s.resolve.Resolve(ctx, req, wasmBytes)
}

// ListInstalled returns the versions recorded as installed for id, newest
// first. Versions that all parse as semantic are sorted numerically;
// otherwise (a mix with calendar versions, say) they fall back to a
// descending lexical sort.
func (s *StatusService) ListInstalled(ctx context.Context, id values.Id) ([]string, error) {
	manifest, err := s.inventory.LoadManifest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading manifest for %s: %w", id, err)
	}
	if manifest == nil {
		return nil, nil
	}

	versions := make([]string, 0, len(manifest.InstalledVersions))
	for key := range manifest.InstalledVersions {
		versions = append(versions, key)
	}
	sortVersionsDescending(versions)
	return versions, nil
}

// sortVersionsDescending sorts versions in place, newest first.
func sortVersionsDescending(versions []string) {
	type pair struct {
		raw    string
		parsed *semver.Version
	}
	pairs := make([]pair, len(versions))
	allSemver := true
	for i, v := range versions {
		sv, err := semver.NewVersion(v)
		if err != nil {
			allSemver = false
		}
		pairs[i] = pair{raw: v, parsed: sv}
	}
	if !allSemver {
		sort.Sort(sort.Reverse(sort.StringSlice(versions)))
		return
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].parsed.GreaterThan(pairs[j].parsed)
	})
	for i, p := range pairs {
		versions[i] = p.raw
	}
}

// EnvSnapshot dumps every `<TOOL>_VERSION`-style variable the current
// environment carries, mirroring moonrepo/proto's env debug output
// (SPEC_FULL.md §3).
func (s *StatusService) EnvSnapshot() map[string]string {
	snapshot := make(map[string]string)
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] != '=' {
				continue
			}
			key := kv[:i]
			if len(key) > len("_VERSION") && key[len(key)-len("_VERSION"):] == "_VERSION" {
				snapshot[key] = kv[i+1:]
			}
			break
		}
	}
	return snapshot
}
