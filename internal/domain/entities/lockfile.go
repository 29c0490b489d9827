package entities

import (
	"sort"

	"github.com/polytool-dev/polytool/internal/domain/values"
)

// Checksum is a content digest, typically "sha256:<hex>".
type Checksum string

// LockRecord is one pinned install record within a Lockfile, keyed
// implicitly by the tool Id that owns its containing slice.
type LockRecord struct {
	Backend  values.Backend
	Spec     *values.UnresolvedSpec
	Version  *values.ResolvedSpec
	Source   string
	Checksum Checksum
}

// Lockfile is the per-directory `.protolock` aggregate: a map from tool Id
// to its (possibly multiple, one per backend+spec) lock records.
type Lockfile struct {
	Tools map[values.Id][]LockRecord
}

// NewLockfile constructs an empty Lockfile.
func NewLockfile() *Lockfile {
	return &Lockfile{Tools: make(map[values.Id][]LockRecord)}
}

// Find returns the record matching (backend, id, spec), if one exists.
// Used by the install pipeline's pre-install lockfile consultation
// (spec.md §4.4 "Lockfile interaction").
func (l *Lockfile) Find(id values.Id, backend values.Backend, spec values.UnresolvedSpec) (LockRecord, bool) {
	for _, rec := range l.Tools[id] {
		if rec.Backend != backend {
			continue
		}
		if rec.Spec == nil {
			continue
		}
		if rec.Spec.Format() == spec.Format() {
			return rec, true
		}
	}
	return LockRecord{}, false
}

// Upsert inserts or replaces the record for (backend, id, spec) and
// re-sorts the tool's record slice canonically.
func (l *Lockfile) Upsert(id values.Id, rec LockRecord) {
	records := l.Tools[id]
	for i, existing := range records {
		if existing.Backend == rec.Backend && formatSpec(existing.Spec) == formatSpec(rec.Spec) {
			records[i] = rec
			l.Tools[id] = records
			l.sortRecords(id)
			return
		}
	}
	l.Tools[id] = append(records, rec)
	l.sortRecords(id)
}

func (l *Lockfile) sortRecords(id values.Id) {
	records := l.Tools[id]
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Backend != b.Backend {
			return a.Backend < b.Backend
		}
		as, bs := formatSpec(a.Spec), formatSpec(b.Spec)
		if as != bs {
			return as < bs
		}
		return formatVersion(a.Version) < formatVersion(b.Version)
	})
	l.Tools[id] = records
}

func formatSpec(s *values.UnresolvedSpec) string {
	if s == nil {
		return ""
	}
	return s.Format()
}

func formatVersion(v *values.ResolvedSpec) string {
	if v == nil {
		return ""
	}
	return v.Format()
}
