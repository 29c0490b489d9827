package services

import (
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polytool-dev/polytool/internal/domain/values"
)

func mustVersions(t *testing.T, raw []string) []*semver.Version {
	t.Helper()
	versions := make([]*semver.Version, 0, len(raw))
	for _, r := range raw {
		v, err := semver.NewVersion(r)
		require.NoError(t, err, r)
		versions = append(versions, v)
	}
	return versions
}

func Test_Resolver_AliasChain_Resolves(t *testing.T) {
	resolver := NewResolver()
	output := LoadVersionsOutput{
		Versions: mustVersions(t, []string{"10.0.0"}),
		Aliases: map[string]values.UnresolvedSpec{
			"stable": {Kind: values.KindAlias, Alias: "latest"},
			"latest": {Kind: values.KindAlias, Alias: "10.0.0"},
		},
	}
	// "latest" -> "10.0.0" only works once "10.0.0" parses as a semantic
	// spec; seed the alias target pre-parsed as the test fixture would.
	latestTarget, err := values.ParseUnresolvedSpec("10.0.0")
	require.NoError(t, err)
	output.Aliases["latest"] = latestTarget

	spec, err := values.ParseUnresolvedSpec("stable")
	require.NoError(t, err)
	resolved, err := resolver.Resolve(spec, output, nil)
	require.NoError(t, err)
	assert.Equal(t, values.KindSemantic, resolved.Kind)
	assert.Equal(t, "10.0.0", resolved.Format())
}

func Test_Resolver_AliasChain_DetectsCycle(t *testing.T) {
	resolver := NewResolver()
	output := LoadVersionsOutput{
		Aliases: map[string]values.UnresolvedSpec{
			"cycle1": {Kind: values.KindAlias, Alias: "cycle2"},
			"cycle2": {Kind: values.KindAlias, Alias: "cycle1"},
		},
	}

	spec, err := values.ParseUnresolvedSpec("cycle1")
	require.NoError(t, err)

	_, err = resolver.Resolve(spec, output, nil)
	require.Error(t, err)
	var cycleErr *AliasCycleError
	assert.ErrorAs(t, err, &cycleErr)
}

func Test_Resolver_HighestMatch_Scenarios(t *testing.T) {
	resolver := NewResolver()
	output := LoadVersionsOutput{
		Versions: mustVersions(t, []string{
			"1.0.0", "1.2.3", "1.1.1", "1.10.5", "4.5.6", "7.8.9", "8.0.0", "10.0.0",
		}),
	}

	cases := []struct {
		req  string
		want string
	}{
		{"~1.1", "1.1.1"},
		{">1,<10", "8.0.0"},
		{"*", "10.0.0"},
	}

	for _, tc := range cases {
		spec, err := values.ParseUnresolvedSpec(tc.req)
		require.NoError(t, err, tc.req)
		resolved, err := resolver.Resolve(spec, output, nil)
		require.NoError(t, err, tc.req)
		assert.Equal(t, tc.want, resolved.Format(), tc.req)
	}
}

func Test_Resolver_RequirementAny_FirstNonEmptyWins(t *testing.T) {
	resolver := NewResolver()
	output := LoadVersionsOutput{
		Versions: mustVersions(t, []string{"1.5.0", "2.5.0"}),
	}
	spec, err := values.ParseUnresolvedSpec("^9 || ^2 || ^1")
	require.NoError(t, err)

	resolved, err := resolver.Resolve(spec, output, nil)
	require.NoError(t, err)
	assert.Equal(t, "2.5.0", resolved.Format())
}

func Test_Resolver_Canary_RequiresChannel(t *testing.T) {
	resolver := NewResolver()
	spec, err := values.ParseUnresolvedSpec("canary")
	require.NoError(t, err)

	_, err = resolver.Resolve(spec, LoadVersionsOutput{HasCanary: false}, nil)
	assert.Error(t, err)

	resolved, err := resolver.Resolve(spec, LoadVersionsOutput{HasCanary: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, values.KindCanary, resolved.Kind)
}
