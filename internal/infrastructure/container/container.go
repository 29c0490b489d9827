// Package container provides dependency injection for the application,
// wiring every infrastructure adapter against the application services
// that depend on it.
package container

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/polytool-dev/polytool/internal/application/ports"
	"github.com/polytool-dev/polytool/internal/application/services"
	"github.com/polytool-dev/polytool/internal/domain/entities"
	"github.com/polytool-dev/polytool/internal/domain/values"
	"github.com/polytool-dev/polytool/internal/infrastructure/config"
	"github.com/polytool-dev/polytool/internal/infrastructure/install"
	"github.com/polytool-dev/polytool/internal/infrastructure/inventory"
	"github.com/polytool-dev/polytool/internal/infrastructure/lockfile"
	"github.com/polytool-dev/polytool/internal/infrastructure/pluginloader"
	"github.com/polytool-dev/polytool/internal/infrastructure/registry"
	"github.com/polytool-dev/polytool/internal/infrastructure/system"
	"github.com/polytool-dev/polytool/internal/infrastructure/wasm"
)

// Options configure the container.
type Options struct {
	Logger    *slog.Logger
	StoreRoot string // defaults to ~/.polytool
	EnvMode   string // active `.prototools.<env>` suffix, empty for none
	Offline   bool
}

// Container holds every wired dependency the CLI commands need.
type Container struct {
	logger *slog.Logger

	configStack ports.ConfigStack
	lockfiles   ports.LockfileRepository
	store       *inventory.Store
	pruner      ports.Pruner
	loader      ports.PluginLoader
	host        *wasm.Host
	portHost    wasm.PortHost
	watcher     *pluginloader.FileWatcher

	resolveService       *services.ResolveService
	installService       *services.InstallService
	statusService        *services.StatusService
	pinService           *services.PinService
	pluginCatalogService *services.PluginCatalogService
	doctorService        *services.DoctorService
}

// New wires every adapter and service against the given options. The
// caller must call Close when done to release the WASM runtime.
func New(ctx context.Context, opts Options) (*Container, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	storeRoot := opts.StoreRoot
	if storeRoot == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		storeRoot = filepath.Join(home, ".polytool")
	}

	httpClient := &http.Client{Timeout: 150 * time.Second}

	store, err := inventory.NewStore(storeRoot)
	if err != nil {
		return nil, fmt.Errorf("initializing store at %s: %w", storeRoot, err)
	}
	pruner := inventory.NewPruner(store)

	configStack := config.NewStack(storeRoot, opts.EnvMode)
	lockfiles := lockfile.NewRepository()

	auditor, err := pluginloader.NewAuditor(opts.Logger)
	if err != nil {
		opts.Logger.Warn("secret-leak auditor unavailable, plugin files will not be scanned", "error", err)
		auditor = nil
	}
	loaderOpts := []pluginloader.Option{pluginloader.WithOffline(opts.Offline)}
	if auditor != nil {
		loaderOpts = append(loaderOpts, pluginloader.WithAuditor(auditor))
	}
	loader := pluginloader.NewLoader(storeRoot, httpClient, loaderOpts...)

	wasmServices := wasm.NewDefaultServices(httpClient, opts.Logger)
	host, err := wasm.NewHost(ctx, wasmServices)
	if err != nil {
		return nil, fmt.Errorf("initializing plugin host: %w", err)
	}
	portHost := wasm.PortHost{Host: host}

	watcher, err := pluginloader.NewFileWatcher(opts.Logger, func(id values.Id) {
		opts.Logger.Info("plugin source changed, invalidating compiled module", "id", id)
		host.Invalidate(ctx, id)
	})
	if err != nil {
		opts.Logger.Warn("plugin file watcher unavailable, edited local plugins require a restart to reload", "error", err)
		watcher = nil
	}

	resolveService := services.NewResolveService(configStack, portHost)
	clock := system.NewWallClock()
	downloader := install.NewDownloader(httpClient)
	unpacker := install.NewUnpacker()
	verifier := install.NewVerifier()

	installService := services.NewInstallService(resolveService, lockfiles, store, downloader, unpacker, verifier, clock)
	statusService := services.NewStatusService(resolveService, store)
	pinService := services.NewPinService(configStack, store)
	registryIndex := registry.NewIndex(httpClient)
	pluginCatalogService := services.NewPluginCatalogService(configStack, registryIndex)
	doctorService := services.NewDoctorService(store, portHost, httpClient)

	return &Container{
		logger: opts.Logger,

		configStack: configStack,
		lockfiles:   lockfiles,
		store:       store,
		pruner:      pruner,
		loader:      loader,
		host:        host,
		portHost:    portHost,
		watcher:     watcher,

		resolveService:       resolveService,
		installService:       installService,
		statusService:        statusService,
		pinService:           pinService,
		pluginCatalogService: pluginCatalogService,
		doctorService:        doctorService,
	}, nil
}

// LoadPluginBytes finds id's configured locator across the `.prototools`
// stack rooted at cwd and loads its WASM bytes through the plugin loader
// (spec.md §4.2). This is the one path every CLI command uses to go from
// a bare tool id to plugin bytecode.
func (c *Container) LoadPluginBytes(ctx context.Context, cwd string, id values.Id) ([]byte, error) {
	stack, err := c.configStack.Discover(ctx, cwd)
	if err != nil {
		return nil, fmt.Errorf("discovering config stack: %w", err)
	}

	for _, layer := range stack {
		if layer.Config == nil {
			continue
		}
		locator, ok := layer.Config.Plugins[id]
		if !ok {
			continue
		}

		wasmBytes, err := c.loader.Load(ctx, id, locator)
		if err != nil {
			return nil, fmt.Errorf("loading plugin %s: %w", id, err)
		}
		if locator.Kind == entities.LocatorFile && c.watcher != nil {
			if err := c.watcher.Watch(id, locator.Path); err != nil {
				c.logger.Warn("could not watch plugin file for changes", "id", id, "path", locator.Path, "error", err)
			}
		}
		return wasmBytes, nil
	}

	return nil, fmt.Errorf("no plugin locator configured for %s", id)
}

// ResolvePlugin loads and compiles id's plugin against the shared host
// (spec.md §4.1), the path every command takes to go from a bare tool id
// to a callable plugin.
func (c *Container) ResolvePlugin(ctx context.Context, cwd string, id values.Id) (ports.Plugin, error) {
	wasmBytes, err := c.LoadPluginBytes(ctx, cwd, id)
	if err != nil {
		return nil, err
	}
	plugin, err := c.portHost.Compile(ctx, id, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("compiling plugin %s: %w", id, err)
	}
	return plugin, nil
}

// NewPipeline builds an install.Pipeline whose plugin loader resolves
// each tool context's id against cwd's config stack, the concrete
// binding the install graph needs per install run (spec.md §5).
func (c *Container) NewPipeline(cwd string, workerCount int) *install.Pipeline {
	loadPlugin := func(ctx context.Context, id values.Id) (ports.Plugin, error) {
		return c.ResolvePlugin(ctx, cwd, id)
	}
	return install.NewPipeline(c.installService, loadPlugin, workerCount)
}

// Close releases the WASM runtime and any active plugin file watcher.
func (c *Container) Close(ctx context.Context) error {
	if c.watcher != nil {
		_ = c.watcher.Close()
	}
	return c.host.Close(ctx)
}

// ConfigStack returns the wired `.prototools` stack discoverer.
func (c *Container) ConfigStack() ports.ConfigStack { return c.configStack }

// Lockfiles returns the wired lockfile repository.
func (c *Container) Lockfiles() ports.LockfileRepository { return c.lockfiles }

// Inventory returns the wired content-addressed store.
func (c *Container) Inventory() *inventory.Store { return c.store }

// Pruner returns the wired stale-version pruner.
func (c *Container) Pruner() ports.Pruner { return c.pruner }

// Loader returns the wired plugin loader.
func (c *Container) Loader() ports.PluginLoader { return c.loader }

// Host returns the shared WASM plugin host.
func (c *Container) Host() *wasm.Host { return c.host }

// ResolveService returns the wired resolve use case.
func (c *Container) ResolveService() *services.ResolveService { return c.resolveService }

// InstallService returns the wired install use case.
func (c *Container) InstallService() *services.InstallService { return c.installService }

// StatusService returns the wired status/list use case.
func (c *Container) StatusService() *services.StatusService { return c.statusService }

// PinService returns the wired pin/alias use case.
func (c *Container) PinService() *services.PinService { return c.pinService }

// PluginCatalogService returns the wired plugin search/list use case.
func (c *Container) PluginCatalogService() *services.PluginCatalogService {
	return c.pluginCatalogService
}

// DoctorService returns the wired diagnostics use case.
func (c *Container) DoctorService() *services.DoctorService { return c.doctorService }
