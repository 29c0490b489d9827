// Package lockfile persists the `.protolock` JSON document alongside a
// `.prototools` stack entry (spec.md §4.6, §6), grounded on the
// teacher's style of small, single-purpose JSON repositories. Writes are
// serialized by an in-process mutex only; there is no file lock, so
// separate processes writing the same lockfile are not coordinated.
package lockfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/polytool-dev/polytool/internal/domain/entities"
	"github.com/polytool-dev/polytool/internal/domain/values"
)

const filename = ".protolock"

// wireRecord is the `.protolock` JSON shape for one LockRecord.
type wireRecord struct {
	Backend  values.Backend `json:"backend"`
	Spec     string         `json:"spec"`
	Version  string         `json:"version"`
	Source   string         `json:"source"`
	Checksum string         `json:"checksum"`
}

type wireLockfile struct {
	Tools map[string][]wireRecord `json:"tools"`
}

// Repository implements ports.LockfileRepository over a per-directory
// `.protolock` file, serializing concurrent writers within this process
// with a mutex (true cross-process locking is left to the OS file lock
// a future increment can add at this same seam).
type Repository struct {
	mu sync.Mutex
}

// NewRepository constructs a Repository.
func NewRepository() *Repository {
	return &Repository{}
}

// Load reads the `.protolock` file in dir, returning nil (not an error)
// when it does not exist yet — the install pipeline treats a missing
// lockfile as "first install" (spec.md §7 propagation policy).
func (r *Repository) Load(ctx context.Context, dir string) (*entities.Lockfile, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	path := filepath.Join(dir, filename)
	data, err := os.ReadFile(path) //nolint:gosec // G304: path built from the caller's own working directory
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var wire wireLockfile
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	lock := entities.NewLockfile()
	for idStr, records := range wire.Tools {
		id, err := values.NewId(idStr)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: tool id %q: %w", path, idStr, err)
		}
		for _, rec := range records {
			domainRec, err := fromWireRecord(rec)
			if err != nil {
				return nil, fmt.Errorf("parsing %s: %s: %w", path, idStr, err)
			}
			lock.Tools[id] = append(lock.Tools[id], domainRec)
		}
	}
	return lock, nil
}

// Save writes lock to dir's `.protolock` file, sorted canonically by
// Lockfile.Upsert's invariant (spec.md §6: "Sorted on write").
func (r *Repository) Save(ctx context.Context, dir string, lock *entities.Lockfile) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	wire := wireLockfile{Tools: make(map[string][]wireRecord, len(lock.Tools))}
	ids := make([]string, 0, len(lock.Tools))
	for id := range lock.Tools {
		ids = append(ids, string(id))
	}
	sortStrings(ids)

	for _, idStr := range ids {
		id := values.Id(idStr)
		records := lock.Tools[id]
		wireRecords := make([]wireRecord, 0, len(records))
		for _, rec := range records {
			wireRecords = append(wireRecords, toWireRecord(rec))
		}
		wire.Tools[idStr] = wireRecords
	}

	data, err := json.MarshalIndent(wire, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling lockfile: %w", err)
	}

	path := filepath.Join(dir, filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // G306: the lockfile is not secret material
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func toWireRecord(rec entities.LockRecord) wireRecord {
	w := wireRecord{Backend: rec.Backend, Source: rec.Source, Checksum: string(rec.Checksum)}
	if rec.Spec != nil {
		w.Spec = rec.Spec.Format()
	}
	if rec.Version != nil {
		w.Version = rec.Version.Format()
	}
	return w
}

func fromWireRecord(w wireRecord) (entities.LockRecord, error) {
	rec := entities.LockRecord{Backend: w.Backend, Source: w.Source, Checksum: entities.Checksum(w.Checksum)}
	if w.Spec != "" {
		spec, err := values.ParseUnresolvedSpec(w.Spec)
		if err != nil {
			return entities.LockRecord{}, fmt.Errorf("spec %q: %w", w.Spec, err)
		}
		rec.Spec = &spec
	}
	if w.Version != "" {
		version, err := parseResolvedSpec(w.Version)
		if err != nil {
			return entities.LockRecord{}, fmt.Errorf("version %q: %w", w.Version, err)
		}
		rec.Version = &version
	}
	return rec, nil
}

// parseResolvedSpec parses a formatted ResolvedSpec string back into its
// typed form by reusing UnresolvedSpec's grammar and narrowing: a
// recorded version is always already-resolved (semantic, calendar,
// alias, or canary — never a requirement).
func parseResolvedSpec(raw string) (values.ResolvedSpec, error) {
	unresolved, err := values.ParseUnresolvedSpec(raw)
	if err != nil {
		return values.ResolvedSpec{}, err
	}
	switch unresolved.Kind {
	case values.KindSemantic, values.KindCalendar, values.KindAlias, values.KindCanary:
		return values.ResolvedSpec{
			Kind:     unresolved.Kind,
			Alias:    unresolved.Alias,
			Calendar: unresolved.Calendar,
			Semantic: unresolved.Semantic,
		}, nil
	default:
		return values.ResolvedSpec{}, fmt.Errorf("%q is not a resolved version", raw)
	}
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
