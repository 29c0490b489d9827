package pluginloader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polytool-dev/polytool/internal/domain/entities"
	"github.com/polytool-dev/polytool/internal/domain/values"
)

func Test_Loader_LoadFile_ReadsBytes(t *testing.T) {
	dir := t.TempDir()
	pluginPath := filepath.Join(dir, "plugin.wasm")
	require.NoError(t, os.WriteFile(pluginPath, []byte("wasm-bytes"), 0o644))

	id, err := values.NewId("mytool")
	require.NoError(t, err)

	loader := NewLoader(t.TempDir(), nil)
	data, err := loader.Load(context.Background(), id, entities.NewFileLocator(pluginPath))
	require.NoError(t, err)
	assert.Equal(t, []byte("wasm-bytes"), data)
}

func Test_Loader_LoadFile_MissingFails(t *testing.T) {
	id, err := values.NewId("mytool")
	require.NoError(t, err)

	loader := NewLoader(t.TempDir(), nil)
	_, err = loader.Load(context.Background(), id, entities.NewFileLocator("/no/such/plugin.wasm"))
	assert.Error(t, err)
}

func Test_Loader_CachePath_PinnedVsLatest(t *testing.T) {
	id, err := values.NewId("mytool")
	require.NoError(t, err)

	loader := NewLoader("/store", nil)
	pinned := loader.cachePath(id, "https://example.com/a.wasm", "wasm", true)
	latest := loader.cachePath(id, "https://example.com/a.wasm", "wasm", false)

	assert.Contains(t, pinned, "mytool-")
	assert.NotContains(t, pinned, "latest")
	assert.Contains(t, latest, "mytool-latest-")
}

func Test_Loader_Offline_RejectsURLWithoutCache(t *testing.T) {
	id, err := values.NewId("mytool")
	require.NoError(t, err)

	loader := NewLoader(t.TempDir(), nil, WithOffline(true))
	_, err = loader.Load(context.Background(), id, entities.NewURLLocator("https://example.com/a.wasm"))
	assert.Error(t, err)
}
