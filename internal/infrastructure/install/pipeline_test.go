package install

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polytool-dev/polytool/internal/application/dto"
	"github.com/polytool-dev/polytool/internal/application/ports"
	"github.com/polytool-dev/polytool/internal/application/services"
	"github.com/polytool-dev/polytool/internal/domain/entities"
	"github.com/polytool-dev/polytool/internal/domain/values"
)

// fakePlugin answers load_versions with a single version, native_install
// with success and locate_executables with one primary executable,
// enough to drive InstallService.InstallOne end to end without a real
// WASM host.
type fakePlugin struct {
	id values.Id
}

func (p fakePlugin) ID() values.Id { return p.id }

func (p fakePlugin) Call(ctx context.Context, funcName string, input any) (json.RawMessage, error) {
	switch funcName {
	case "load_versions":
		return json.Marshal(map[string]any{"versions": []string{"1.0.0"}})
	case "native_install":
		return json.Marshal(map[string]any{})
	case "locate_executables":
		return json.Marshal(map[string]any{"primary": "bin/" + string(p.id)})
	default:
		return nil, assert.AnError
	}
}

func (p fakePlugin) Close(ctx context.Context) error { return nil }

type fakeLockfiles struct {
	mu    sync.Mutex
	locks map[string]*entities.Lockfile
}

func newFakeLockfiles() *fakeLockfiles {
	return &fakeLockfiles{locks: make(map[string]*entities.Lockfile)}
}

func (f *fakeLockfiles) Load(ctx context.Context, dir string) (*entities.Lockfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.locks[dir], nil
}

func (f *fakeLockfiles) Save(ctx context.Context, dir string, lock *entities.Lockfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locks[dir] = lock
	return nil
}

type fakeInventory struct {
	mu        sync.Mutex
	root      string
	manifests map[values.Id]*entities.ToolManifest
}

func newFakeInventory(root string) *fakeInventory {
	return &fakeInventory{root: root, manifests: make(map[values.Id]*entities.ToolManifest)}
}

func (f *fakeInventory) LoadManifest(ctx context.Context, id values.Id) (*entities.ToolManifest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.manifests[id], nil
}

func (f *fakeInventory) SaveManifest(ctx context.Context, manifest *entities.ToolManifest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.manifests[manifest.Id] = manifest
	return nil
}

// ToolDir creates the directory it returns, standing in for the tree a
// real native install leaves behind for checksumDir to walk.
func (f *fakeInventory) ToolDir(id values.Id, version string) string {
	dir := filepath.Join(f.root, "tools", string(id), version)
	_ = os.MkdirAll(dir, 0o755)
	return dir
}
func (f *fakeInventory) StoreRoot() string { return f.root }
func (f *fakeInventory) EnsureShims(ctx context.Context, id values.Id, version string, executables []string) error {
	return nil
}

type fakeClock struct{ millis int64 }

func (c fakeClock) NowMillis() int64 { return c.millis }

type noopDownloader struct{}

func (noopDownloader) Download(ctx context.Context, url, destPath string) error { return nil }

type noopUnpacker struct{}

func (noopUnpacker) Unpack(ctx context.Context, archivePath, destDir, prefixStrip string) error {
	return nil
}

type noopVerifier struct{}

func (noopVerifier) VerifySHA256(ctx context.Context, path, expectedHex string) error { return nil }
func (noopVerifier) VerifySignature(ctx context.Context, checksumPath, signaturePath, publicKeyPath string) error {
	return nil
}

func newTestInstallService(t *testing.T) *services.InstallService {
	t.Helper()
	resolveService := services.NewResolveService(nil, nil)
	return services.NewInstallService(
		resolveService,
		newFakeLockfiles(),
		newFakeInventory(t.TempDir()),
		noopDownloader{},
		noopUnpacker{},
		noopVerifier{},
		fakeClock{millis: 1000},
	)
}

func loaderFor(ids map[values.Id]bool) PluginLoaderFunc {
	return func(ctx context.Context, id values.Id) (ports.Plugin, error) {
		return fakePlugin{id: id}, nil
	}
}

func Test_Pipeline_Run_InstallsEveryNode(t *testing.T) {
	install := newTestInstallService(t)
	pipeline := NewPipeline(install, loaderFor(nil), 2)

	wildcard, err := semver.NewConstraint("*")
	require.NoError(t, err)

	base := ctx(t, "node")
	dependent := ctx(t, "pnpm")
	nodes := []Node{
		{Context: base, Spec: values.UnresolvedSpec{Kind: values.KindRequirement, Requirement: wildcard}},
		{Context: dependent, Spec: values.UnresolvedSpec{Kind: values.KindRequirement, Requirement: wildcard}, Dependencies: []values.ToolContext{base}},
	}

	result, err := pipeline.Run(context.Background(), nodes, dto.InstallRequest{Cwd: "/work"})
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 2)
	assert.False(t, result.Failed())

	assert.True(t, pipeline.IsInstalled(base))
	assert.True(t, pipeline.IsInstalled(dependent))
}

func Test_Pipeline_Run_CircularDependencyFailsFast(t *testing.T) {
	install := newTestInstallService(t)
	pipeline := NewPipeline(install, loaderFor(nil), 2)

	a := ctx(t, "a")
	b := ctx(t, "b")
	nodes := []Node{
		{Context: a, Dependencies: []values.ToolContext{b}},
		{Context: b, Dependencies: []values.ToolContext{a}},
	}

	_, err := pipeline.Run(context.Background(), nodes, dto.InstallRequest{Cwd: "/work"})
	require.Error(t, err)
}
