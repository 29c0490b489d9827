package services

import (
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/polytool-dev/polytool/internal/domain/services"
	"github.com/polytool-dev/polytool/internal/domain/values"
	"github.com/polytool-dev/polytool/wireformat"
)

// fromLoadVersionsWire converts a plugin's load_versions wire response
// into the domain resolver's input shape, parsing each version string as
// either semantic or calendar (spec.md §3 version grammar) and skipping
// entries that parse as neither rather than failing the whole catalog.
func fromLoadVersionsWire(wire wireformat.LoadVersionsOutputWire) (services.LoadVersionsOutput, error) {
	out := services.LoadVersionsOutput{
		Aliases:   make(map[string]values.UnresolvedSpec, len(wire.Aliases)),
		HasCanary: wire.HasCanary,
	}

	for _, raw := range wire.Versions {
		if v, err := semver.NewVersion(raw); err == nil {
			out.Versions = append(out.Versions, v)
			continue
		}
		if cv, err := values.ParseCalVer(raw); err == nil {
			out.CalverVersions = append(out.CalverVersions, cv)
			continue
		}
	}

	for name, target := range wire.Aliases {
		spec, err := values.ParseUnresolvedSpec(target)
		if err != nil {
			return services.LoadVersionsOutput{}, fmt.Errorf("parsing alias %q target %q: %w", name, target, err)
		}
		out.Aliases[name] = spec
	}

	if wire.Latest != "" {
		if v, err := semver.NewVersion(wire.Latest); err == nil {
			out.Latest = &values.ResolvedSpec{Kind: values.KindSemantic, Semantic: v}
		} else if cv, err := values.ParseCalVer(wire.Latest); err == nil {
			out.Latest = &values.ResolvedSpec{Kind: values.KindCalendar, Calendar: cv}
		}
	}

	return out, nil
}
