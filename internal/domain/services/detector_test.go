package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polytool-dev/polytool/internal/domain/entities"
	"github.com/polytool-dev/polytool/internal/domain/values"
)

func Test_Detector_OnlyPrototools_WalksStack(t *testing.T) {
	// spec.md §8 scenario 4: /a/b/c, /a/b, /a with node pinned to
	// ~16, ~18, ~20 respectively.
	node, err := values.NewId("node")
	require.NoError(t, err)
	ctx := values.ToolContext{Id: node}

	mkFile := func(path, rawSpec string) *entities.ConfigFile {
		spec, err := values.ParseUnresolvedSpec(rawSpec)
		require.NoError(t, err)
		cfg := entities.NewPartialConfig()
		cfg.Versions[ctx] = spec
		return &entities.ConfigFile{Path: path, Exists: true, Config: cfg}
	}

	detector := NewDetector()

	stackAtC := []*entities.ConfigFile{
		mkFile("/a/b/c/.prototools", "~16"),
		mkFile("/a/b/.prototools", "~18"),
		mkFile("/a/.prototools", "~20"),
	}
	result, err := detector.Detect(ctx, entities.DetectOnlyPrototools, stackAtC, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "~16", result.Spec.Format())

	stackAtB := []*entities.ConfigFile{
		mkFile("/a/b/.prototools", "~18"),
		mkFile("/a/.prototools", "~20"),
	}
	result, err = detector.Detect(ctx, entities.DetectOnlyPrototools, stackAtB, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "~18", result.Spec.Format())

	stackAtA := []*entities.ConfigFile{
		mkFile("/a/.prototools", "~20"),
	}
	result, err = detector.Detect(ctx, entities.DetectOnlyPrototools, stackAtA, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "~20", result.Spec.Format())
}

func Test_Detector_EnvVar_OverridesStrategy(t *testing.T) {
	node, err := values.NewId("node")
	require.NoError(t, err)
	ctx := values.ToolContext{Id: node}
	detector := NewDetector()

	result, err := detector.Detect(ctx, entities.DetectOnlyPrototools, nil, nil, "18.0.0")
	require.NoError(t, err)
	assert.Equal(t, SourceEnvVar, result.Source)
	assert.Equal(t, "18.0.0", result.Spec.Format())
}

func Test_EnvVarName_DerivesFromId(t *testing.T) {
	id, err := values.NewId("node-gyp")
	require.NoError(t, err)
	assert.Equal(t, "NODE_GYP_VERSION", EnvVarName(id))
}
