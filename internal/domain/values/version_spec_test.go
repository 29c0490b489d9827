package values

import (
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUnresolvedSpec_Canary(t *testing.T) {
	spec, err := ParseUnresolvedSpec("canary")
	require.NoError(t, err)
	assert.Equal(t, KindCanary, spec.Kind)
	assert.True(t, spec.IsCanary())
	assert.Equal(t, "canary", spec.Format())
}

func TestParseUnresolvedSpec_Alias(t *testing.T) {
	for _, raw := range []string{"latest", "stable", "lts/*", "my_alias"} {
		spec, err := ParseUnresolvedSpec(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, KindAlias, spec.Kind, raw)
		assert.Equal(t, raw, spec.Format(), raw)
	}
}

func TestParseUnresolvedSpec_RequirementAny_SortedHighestFirst(t *testing.T) {
	spec, err := ParseUnresolvedSpec("^1 || ~2 || =3")
	require.NoError(t, err)
	require.Equal(t, KindRequirementAny, spec.Kind)
	assert.Equal(t, "=3 || ~2 || ^1", spec.Format())
}

func TestParseUnresolvedSpec_Requirement(t *testing.T) {
	for _, raw := range []string{"^1.2.3", "~1.2", ">1,<10", "*"} {
		spec, err := ParseUnresolvedSpec(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, KindRequirement, spec.Kind, raw)
	}
}

func TestParseUnresolvedSpec_Semantic(t *testing.T) {
	spec, err := ParseUnresolvedSpec("1.2.3")
	require.NoError(t, err)
	require.Equal(t, KindSemantic, spec.Kind)
	assert.Equal(t, "1.2.3", spec.Format())
}

func TestParseUnresolvedSpec_PartialBecomesTildeRequirement(t *testing.T) {
	spec, err := ParseUnresolvedSpec("16")
	require.NoError(t, err)
	require.Equal(t, KindRequirement, spec.Kind)
	assert.Equal(t, "~16", spec.Format())
}

func TestParseUnresolvedSpec_RoundTrip(t *testing.T) {
	cases := []string{"canary", "latest", "^1.2.3", "1.2.3", "=3 || ~2 || ^1"}
	for _, raw := range cases {
		spec, err := ParseUnresolvedSpec(raw)
		require.NoError(t, err, raw)
		again, err := ParseUnresolvedSpec(spec.Format())
		require.NoError(t, err, raw)
		assert.Equal(t, spec.Kind, again.Kind, raw)
		assert.Equal(t, spec.Format(), again.Format(), raw)
	}
}

func TestSemverConstraint_HighestMatch(t *testing.T) {
	raw := []string{"1.0.0", "1.2.3", "1.1.1", "1.10.5", "4.5.6", "7.8.9", "8.0.0", "10.0.0"}
	versions := make([]*semver.Version, 0, len(raw))
	for _, r := range raw {
		v, err := semver.NewVersion(r)
		require.NoError(t, err)
		versions = append(versions, v)
	}

	tests := []struct {
		req  string
		want string
	}{
		{"~1.1", "1.1.1"},
		{">1,<10", "8.0.0"},
		{"*", "10.0.0"},
	}

	for _, tc := range tests {
		c, err := semver.NewConstraint(tc.req)
		require.NoError(t, err, tc.req)

		var best *semver.Version
		for _, v := range versions {
			if !c.Check(v) {
				continue
			}
			if best == nil || v.GreaterThan(best) {
				best = v
			}
		}
		require.NotNil(t, best, tc.req)
		assert.Equal(t, tc.want, best.String(), tc.req)
	}
}

func TestResolvedSpec_Equal(t *testing.T) {
	a := ResolvedSpec{Kind: KindAlias, Alias: "latest"}
	b := ResolvedSpec{Kind: KindAlias, Alias: "latest"}
	assert.True(t, a.Equal(b))

	v1, _ := semver.NewVersion("1.2.3")
	v2, _ := semver.NewVersion("1.2.3")
	s1 := ResolvedSpec{Kind: KindSemantic, Semantic: v1}
	s2 := ResolvedSpec{Kind: KindSemantic, Semantic: v2}
	assert.True(t, s1.Equal(s2))
}
