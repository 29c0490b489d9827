package services

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/polytool-dev/polytool/internal/domain/entities"
	"github.com/polytool-dev/polytool/internal/domain/values"
)

// maxAliasDepth bounds alias chain recursion so a misconfigured or
// malicious alias map cannot stack-overflow the resolver (spec.md §3,
// "Aliases may chain... up to a fixed depth").
const maxAliasDepth = 16

// LoadVersionsOutput is the plugin-supplied list of available versions,
// remote aliases, and an optional latest-pointer, mirrored here so the
// resolver has no infrastructure dependency (grounded on spec.md §4.1
// register_tool/load_versions contract).
type LoadVersionsOutput struct {
	Versions     []*semver.Version
	CalverVersions []values.CalVer
	Aliases      map[string]values.UnresolvedSpec
	Latest       *values.ResolvedSpec
	HasCanary    bool
}

// AliasCycleError reports an alias chain that revisits a name.
type AliasCycleError struct {
	Chain []string
}

func (e *AliasCycleError) Error() string {
	return fmt.Sprintf("alias cycle detected: %v", e.Chain)
}

// Resolver implements the version specification resolution algorithm of
// spec.md §4.4: a DOMAIN SERVICE because the precedence rules (canary,
// alias chain, exact match, highest-match, requirement-any) are business
// rules over value objects, with no I/O of its own.
type Resolver struct{}

// NewResolver constructs a Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve implements the five-step algorithm of spec.md §4.4. localAliases
// override remoteAliases (output.Aliases) when both define the same name.
func (r *Resolver) Resolve(spec values.UnresolvedSpec, output LoadVersionsOutput, localAliases map[string]values.UnresolvedSpec) (values.ResolvedSpec, error) {
	switch spec.Kind {
	case values.KindCanary:
		if !output.HasCanary {
			return values.ResolvedSpec{}, fmt.Errorf("canary channel is not available for this tool")
		}
		return values.ResolvedSpec{Kind: values.KindCanary}, nil

	case values.KindAlias:
		return r.resolveAlias(spec.Alias, output, localAliases, []string{})

	case values.KindSemantic:
		for _, v := range output.Versions {
			if v.Equal(spec.Semantic) {
				return values.ResolvedSpec{Kind: values.KindSemantic, Semantic: v}, nil
			}
		}
		return values.ResolvedSpec{}, fmt.Errorf("version %s not found in available versions", spec.Semantic.String())

	case values.KindCalendar:
		for _, v := range output.CalverVersions {
			if v.Compare(spec.Calendar) == 0 {
				return values.ResolvedSpec{Kind: values.KindCalendar, Calendar: v}, nil
			}
		}
		return values.ResolvedSpec{}, fmt.Errorf("calendar version %s not found in available versions", spec.Calendar.String())

	case values.KindRequirement:
		best, err := highestMatch(output.Versions, spec.Requirement)
		if err != nil {
			return values.ResolvedSpec{}, err
		}
		return values.ResolvedSpec{Kind: values.KindSemantic, Semantic: best}, nil

	case values.KindRequirementAny:
		// Pre-sorted highest-first during parse; first non-empty match wins.
		var lastErr error
		for _, req := range spec.RequirementAny {
			best, err := highestMatch(output.Versions, req)
			if err == nil {
				return values.ResolvedSpec{Kind: values.KindSemantic, Semantic: best}, nil
			}
			lastErr = err
		}
		return values.ResolvedSpec{}, fmt.Errorf("no requirement in requirement-any set matched: %w", lastErr)

	default:
		return values.ResolvedSpec{}, fmt.Errorf("unknown version spec kind %q", spec.Kind)
	}
}

// resolveAlias follows an alias chain to its terminal resolved spec,
// rejecting cycles and enforcing maxAliasDepth (spec.md §8 scenario 3).
func (r *Resolver) resolveAlias(name string, output LoadVersionsOutput, localAliases map[string]values.UnresolvedSpec, chain []string) (values.ResolvedSpec, error) {
	for _, seen := range chain {
		if seen == name {
			return values.ResolvedSpec{}, &AliasCycleError{Chain: append(append([]string{}, chain...), name)}
		}
	}
	chain = append(chain, name)
	if len(chain) > maxAliasDepth {
		return values.ResolvedSpec{}, fmt.Errorf("alias chain exceeds maximum depth %d: %v", maxAliasDepth, chain)
	}

	target, ok := localAliases[name]
	if !ok {
		target, ok = output.Aliases[name]
	}
	if !ok {
		return values.ResolvedSpec{}, fmt.Errorf("alias %q is not defined", name)
	}

	switch target.Kind {
	case values.KindAlias:
		return r.resolveAlias(target.Alias, output, localAliases, chain)
	case values.KindCanary:
		if !output.HasCanary {
			return values.ResolvedSpec{}, fmt.Errorf("canary channel is not available for this tool")
		}
		return values.ResolvedSpec{Kind: values.KindCanary}, nil
	default:
		return r.Resolve(target, output, localAliases)
	}
}

// highestMatch returns the unique maximum element of versions satisfying
// req, or an error if the set is empty (spec.md §8 invariant 2).
// Pre-release versions are only considered if req explicitly references
// one (Masterminds/semver/v3's Check already applies this rule).
func highestMatch(versions []*semver.Version, req *semver.Constraints) (*semver.Version, error) {
	var best *semver.Version
	for _, v := range versions {
		if !req.Check(v) {
			continue
		}
		if best == nil || v.GreaterThan(best) {
			best = v
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no version satisfies requirement %s", req.String())
	}
	return best, nil
}

// SortVersionsDescending returns a new slice of versions ordered highest
// first, used by `versions`/`list` read paths.
func SortVersionsDescending(versions []*semver.Version) []*semver.Version {
	sorted := make([]*semver.Version, len(versions))
	copy(sorted, versions)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].GreaterThan(sorted[j])
	})
	return sorted
}

// ToolRequest pairs a tool context with the spec requested for it, the
// unit of work the install graph and resolver operate over.
type ToolRequest struct {
	Context values.ToolContext
	Spec    values.UnresolvedSpec
}

// LockfileShortCircuit consults a lockfile for a record matching spec
// before falling back to full resolution, per spec.md §4.4 "Lockfile
// interaction": if found, the recorded version is used directly.
func LockfileShortCircuit(lock *entities.Lockfile, id values.Id, backend values.Backend, spec values.UnresolvedSpec) (values.ResolvedSpec, bool) {
	if lock == nil {
		return values.ResolvedSpec{}, false
	}
	rec, ok := lock.Find(id, backend, spec)
	if !ok || rec.Version == nil {
		return values.ResolvedSpec{}, false
	}
	return *rec.Version, true
}
