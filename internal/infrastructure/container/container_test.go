package container

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polytool-dev/polytool/internal/domain/values"
)

func mustID(t *testing.T, raw string) values.Id {
	t.Helper()
	id, err := values.NewId(raw)
	require.NoError(t, err)
	return id
}

func Test_New_WiresEveryService(t *testing.T) {
	ctx := context.Background()
	c, err := New(ctx, Options{StoreRoot: t.TempDir()})
	require.NoError(t, err)
	defer func() { _ = c.Close(ctx) }()

	assert.NotNil(t, c.ConfigStack())
	assert.NotNil(t, c.Lockfiles())
	assert.NotNil(t, c.Inventory())
	assert.NotNil(t, c.Pruner())
	assert.NotNil(t, c.Loader())
	assert.NotNil(t, c.Host())
	assert.NotNil(t, c.ResolveService())
	assert.NotNil(t, c.InstallService())
	assert.NotNil(t, c.StatusService())
	assert.NotNil(t, c.PinService())
	assert.NotNil(t, c.PluginCatalogService())
	assert.NotNil(t, c.DoctorService())
}

func Test_ResolvePlugin_UnconfiguredIdFails(t *testing.T) {
	ctx := context.Background()
	c, err := New(ctx, Options{StoreRoot: t.TempDir()})
	require.NoError(t, err)
	defer func() { _ = c.Close(ctx) }()

	id := mustID(t, "nonexistent")
	_, err = c.ResolvePlugin(ctx, t.TempDir(), id)
	assert.Error(t, err)
}
