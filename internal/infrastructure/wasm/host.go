package wasm

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/polytool-dev/polytool/internal/application/ports"
	"github.com/polytool-dev/polytool/internal/domain/values"
	"github.com/polytool-dev/polytool/internal/infrastructure/wasm/hostfuncs"
)

// globalCache lets repeated invocations within one process reuse compiled
// module artifacts instead of recompiling identical plugin bytecode.
var globalCache = wazero.NewCompilationCache()

// CloseGlobalCache releases the shared compilation cache. Long-running
// commands (e.g. a daemonized resolver) should call this on shutdown;
// one-shot CLI invocations can skip it.
func CloseGlobalCache(ctx context.Context) error {
	return globalCache.Close(ctx)
}

// Host owns the wazero runtime shared by every compiled plugin and the
// host callback surface registered against it (spec.md §4.1).
type Host struct {
	runtime wazero.Runtime
	svc     hostfuncs.Services

	mu      sync.RWMutex
	plugins map[values.Id]*Plugin
}

// NewHost instantiates WASI and the polytool_host module against a fresh
// runtime backed by svc.
func NewHost(ctx context.Context, svc hostfuncs.Services) (*Host, error) {
	config := wazero.NewRuntimeConfig().WithCompilationCache(globalCache)
	runtime := wazero.NewRuntimeWithConfig(ctx, config)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		_ = runtime.Close(ctx)
		return nil, fmt.Errorf("instantiating WASI: %w", err)
	}

	if err := hostfuncs.Register(ctx, runtime, svc); err != nil {
		_ = runtime.Close(ctx)
		return nil, fmt.Errorf("registering host functions: %w", err)
	}

	return &Host{
		runtime: runtime,
		svc:     svc,
		plugins: make(map[values.Id]*Plugin),
	}, nil
}

// Compile compiles wasmBytes for id, caching the result so a second
// Compile call for the same id returns the existing Plugin.
func (h *Host) Compile(ctx context.Context, id values.Id, wasmBytes []byte) (*Plugin, error) {
	h.mu.RLock()
	if p, ok := h.plugins[id]; ok {
		h.mu.RUnlock()
		return p, nil
	}
	h.mu.RUnlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.plugins[id]; ok {
		return p, nil
	}

	module, err := h.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("compiling plugin %s: %w", id, err)
	}

	plugin := &Plugin{
		id:      id,
		module:  module,
		runtime: h.runtime,
		calls:   make(map[string][]byte),
	}
	h.plugins[id] = plugin
	return plugin, nil
}

// Plugin looks up an already-compiled plugin.
func (h *Host) Plugin(id values.Id) (*Plugin, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.plugins[id]
	return p, ok
}

// Invalidate drops id's compiled module from the cache, so the next
// Compile call recompiles it from fresh bytes. Used when a watched File
// locator changes under active plugin development.
func (h *Host) Invalidate(ctx context.Context, id values.Id) {
	h.mu.Lock()
	p, ok := h.plugins[id]
	delete(h.plugins, id)
	h.mu.Unlock()
	if ok {
		_ = p.Close(ctx)
	}
}

// Close closes the runtime and every compiled module registered on it.
func (h *Host) Close(ctx context.Context) error {
	return h.runtime.Close(ctx)
}

// PortHost adapts *Host to ports.PluginHost, whose Compile signature
// returns the ports.Plugin interface rather than the concrete *Plugin
// type application services are built against.
type PortHost struct {
	*Host
}

// Compile delegates to Host.Compile, widening the result to
// ports.Plugin.
func (h PortHost) Compile(ctx context.Context, id values.Id, wasmBytes []byte) (ports.Plugin, error) {
	return h.Host.Compile(ctx, id, wasmBytes)
}
