package inventory

import (
	"context"
	"fmt"
	"os"

	"github.com/polytool-dev/polytool/internal/domain/values"
)

// Pruner implements ports.Pruner over a Store: it removes stale
// installed versions' directories and drops their manifest entries
// (SPEC_FULL.md §3, "clean/stale-install pruning").
type Pruner struct {
	store *Store
}

// NewPruner constructs a Pruner over store.
func NewPruner(store *Store) *Pruner {
	return &Pruner{store: store}
}

// Prune removes every version of id whose manifest entry is older than
// cutoffMillis and not marked NoClean. With dryRun set, it reports what
// would be removed without touching disk or the manifest.
func (p *Pruner) Prune(ctx context.Context, id values.Id, cutoffMillis int64, dryRun bool) ([]string, error) {
	manifest, err := p.store.LoadManifest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading manifest for %s: %w", id, err)
	}
	if manifest == nil {
		return nil, nil
	}

	stale := manifest.StaleVersions(cutoffMillis)
	if dryRun || len(stale) == 0 {
		return stale, nil
	}

	for _, version := range stale {
		dir := p.store.ToolDir(id, version)
		if err := os.RemoveAll(dir); err != nil {
			return nil, fmt.Errorf("removing %s: %w", dir, err)
		}
		resolved, err := parseResolvedSpec(version)
		if err != nil {
			return nil, fmt.Errorf("parsing version %q for %s: %w", version, id, err)
		}
		manifest.RemoveVersion(resolved)
	}

	if err := p.store.SaveManifest(ctx, manifest); err != nil {
		return nil, fmt.Errorf("saving manifest for %s: %w", id, err)
	}
	return stale, nil
}

func parseResolvedSpec(raw string) (values.ResolvedSpec, error) {
	unresolved, err := values.ParseUnresolvedSpec(raw)
	if err != nil {
		return values.ResolvedSpec{}, err
	}
	return values.ResolvedSpec{
		Kind:     unresolved.Kind,
		Alias:    unresolved.Alias,
		Calendar: unresolved.Calendar,
		Semantic: unresolved.Semantic,
	}, nil
}
