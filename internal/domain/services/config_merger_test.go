package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polytool-dev/polytool/internal/domain/entities"
	"github.com/polytool-dev/polytool/internal/domain/values"
)

func Test_ConfigMerger_Versions_MostSpecificWins(t *testing.T) {
	merger := NewConfigMerger()
	node, err := values.NewId("node")
	require.NoError(t, err)
	ctx := values.ToolContext{Id: node}

	least := entities.NewPartialConfig()
	specA, err := values.ParseUnresolvedSpec("~20")
	require.NoError(t, err)
	least.Versions[ctx] = specA

	most := entities.NewPartialConfig()
	specB, err := values.ParseUnresolvedSpec("~16")
	require.NoError(t, err)
	most.Versions[ctx] = specB

	merged := merger.Merge([]*entities.PartialConfig{least, most})
	assert.Equal(t, "~16", merged.Versions[ctx].Format())
}

func Test_ConfigMerger_Registries_AppendInDiscoveryOrder(t *testing.T) {
	merger := NewConfigMerger()
	layer1 := entities.NewPartialConfig()
	layer1.Settings.Registries = []string{"registry-a"}
	layer2 := entities.NewPartialConfig()
	layer2.Settings.Registries = []string{"registry-b"}

	merged := merger.Merge([]*entities.PartialConfig{layer1, layer2})
	assert.Equal(t, []string{"registry-a", "registry-b"}, merged.Settings.Registries)
}

func Test_ConfigMerger_Plugins_MoreSpecificOverrides(t *testing.T) {
	merger := NewConfigMerger()
	id, err := values.NewId("go")
	require.NoError(t, err)

	layer1 := entities.NewPartialConfig()
	layer1.Plugins[id] = entities.NewFileLocator("/a/go.wasm")
	layer2 := entities.NewPartialConfig()
	layer2.Plugins[id] = entities.NewFileLocator("/b/go.wasm")

	merged := merger.Merge([]*entities.PartialConfig{layer1, layer2})
	assert.Equal(t, "/b/go.wasm", merged.Plugins[id].Path)
}

func Test_ApplyEngineProjection_StripsEngineGlobalPin(t *testing.T) {
	engineCtx := values.ToolContext{Id: values.EngineID}
	cfg := entities.NewPartialConfig()
	spec, err := values.ParseUnresolvedSpec("1.0.0")
	require.NoError(t, err)
	cfg.Versions[engineCtx] = spec

	file := &entities.ConfigFile{Location: entities.LocationGlobal, Config: cfg}
	ApplyEngineProjection(file)

	_, ok := cfg.Versions[engineCtx]
	assert.False(t, ok, "engine pin must be stripped from Global config")
}

func Test_ApplyEngineProjection_LeavesLocalPinIntact(t *testing.T) {
	engineCtx := values.ToolContext{Id: values.EngineID}
	cfg := entities.NewPartialConfig()
	spec, err := values.ParseUnresolvedSpec("1.0.0")
	require.NoError(t, err)
	cfg.Versions[engineCtx] = spec

	file := &entities.ConfigFile{Location: entities.LocationLocal, Config: cfg}
	ApplyEngineProjection(file)

	_, ok := cfg.Versions[engineCtx]
	assert.True(t, ok, "engine pin in Local config must survive projection")
}

func Test_InjectBuiltinPlugins_SkipsOverridden(t *testing.T) {
	id, err := values.NewId("node")
	require.NoError(t, err)
	merged := entities.NewPartialConfig()
	userLocator := entities.NewFileLocator("/user/node.wasm")
	merged.Plugins[id] = userLocator

	builtins := map[values.Id]entities.PluginLocator{
		id: entities.NewURLLocator("https://example.invalid/node.wasm"),
	}
	InjectBuiltinPlugins(merged, builtins)

	assert.Equal(t, userLocator, merged.Plugins[id])
}
