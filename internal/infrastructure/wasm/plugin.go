package wasm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/polytool-dev/polytool/internal/domain/values"
	"github.com/polytool-dev/polytool/internal/infrastructure/wasm/hostfuncs"
)

// memoizedFunctions names the guest exports whose output depends only on
// their input and the plugin's own (immutable, already-loaded) state, so a
// repeat call within a plugin instance's lifetime can be served from cache
// instead of re-entering the guest (spec.md §4.1 "Function call caching").
var memoizedFunctions = map[string]bool{
	"register_tool":        true,
	"load_versions":        true,
	"detect_version_files": true,
	"locate_executables":   true,
}

// Plugin wraps a compiled WASM module and exposes a generic, named
// function-call surface matching the host ABI's typed operations
// (register_tool, resolve_version, native_install, build_instructions,
// and so on — spec.md §4.1).
type Plugin struct {
	id      values.Id
	module  wazero.CompiledModule
	runtime wazero.Runtime

	mu    sync.Mutex
	calls map[string][]byte // memoKey -> raw JSON response
}

// ID returns the owning tool/plugin identifier.
func (p *Plugin) ID() values.Id {
	return p.id
}

// Call invokes funcName on a fresh guest instance, marshaling input to
// JSON and unmarshaling the guest's JSON response. Idempotent functions
// named in memoizedFunctions are served from an in-memory cache keyed by
// (funcName, sha256(inputJSON)) after their first call.
func (p *Plugin) Call(ctx context.Context, funcName string, input any) (json.RawMessage, error) {
	inputData, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshaling input for %s: %w", funcName, err)
	}

	var memoKey string
	if memoizedFunctions[funcName] {
		memoKey = funcName + ":" + hashBytes(inputData)
		p.mu.Lock()
		if cached, ok := p.calls[memoKey]; ok {
			p.mu.Unlock()
			return json.RawMessage(cached), nil
		}
		p.mu.Unlock()
	}

	ctx = hostfuncs.WithPluginID(ctx, string(p.id))

	instance, err := p.createInstance(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = instance.Close(ctx) }()

	fn := instance.ExportedFunction(funcName)
	if fn == nil {
		return nil, fmt.Errorf("plugin %s does not export %s()", p.id, funcName)
	}

	inputPtr, err := p.writeMemory(ctx, instance, inputData)
	if err != nil {
		return nil, fmt.Errorf("writing %s input: %w", funcName, err)
	}
	defer p.deallocate(ctx, instance, inputPtr, uint32(len(inputData))) //nolint:gosec // G115: bounded by guest memory

	results, err := fn.Call(ctx, uint64(inputPtr), uint64(len(inputData))) //nolint:gosec // G115: bounded by guest memory
	if err != nil {
		return nil, fmt.Errorf("calling %s on plugin %s: %w", funcName, p.id, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%s on plugin %s returned no results", funcName, p.id)
	}

	outPtr, outLen := unpackPtrLen(results[0])
	if outPtr == 0 || outLen == 0 {
		return json.RawMessage("null"), nil
	}

	data, err := p.readMemory(ctx, instance, outPtr, outLen)
	if err != nil {
		return nil, fmt.Errorf("reading %s output: %w", funcName, err)
	}

	if memoKey != "" {
		p.mu.Lock()
		p.calls[memoKey] = data
		p.mu.Unlock()
	}

	return json.RawMessage(data), nil
}

// Close closes the compiled module. Guest instances are ephemeral
// (created fresh per Call), so there is nothing else to release here.
func (p *Plugin) Close(ctx context.Context) error {
	return p.module.Close(ctx)
}

func (p *Plugin) createInstance(ctx context.Context) (api.Module, error) {
	instance, err := p.runtime.InstantiateModule(ctx, p.module, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return nil, fmt.Errorf("instantiating plugin %s: %w", p.id, err)
	}

	if initFn := instance.ExportedFunction("_initialize"); initFn != nil {
		if _, err := initFn.Call(ctx); err != nil {
			_ = instance.Close(ctx)
			return nil, fmt.Errorf("initializing plugin %s: %w", p.id, err)
		}
	}

	return instance, nil
}

func (p *Plugin) writeMemory(ctx context.Context, instance api.Module, data []byte) (uint32, error) {
	allocate := instance.ExportedFunction("allocate")
	if allocate == nil {
		return 0, fmt.Errorf("plugin %s does not export allocate()", p.id)
	}

	results, err := allocate.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("allocate() failed: %w", err)
	}
	if len(results) == 0 {
		return 0, fmt.Errorf("allocate() returned no results")
	}

	ptr := uint32(results[0]) //nolint:gosec // G115: WASM32 pointers are always 32-bit
	if ptr == 0 && len(data) > 0 {
		return 0, fmt.Errorf("allocate() returned null pointer")
	}
	if !instance.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("writing %d bytes to guest memory at %d", len(data), ptr)
	}
	return ptr, nil
}

func (p *Plugin) readMemory(ctx context.Context, instance api.Module, ptr, length uint32) ([]byte, error) {
	defer p.deallocate(ctx, instance, ptr, length)

	raw, ok := instance.Memory().Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("reading %d bytes from guest memory at %d", length, ptr)
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

func (p *Plugin) deallocate(ctx context.Context, instance api.Module, ptr, length uint32) {
	deallocate := instance.ExportedFunction("deallocate")
	if deallocate == nil {
		return
	}
	_, _ = deallocate.Call(ctx, uint64(ptr), uint64(length))
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// packPtrLen and unpackPtrLen mirror the packed-i64 convention used on the
// host side in hostfuncs/memory.go: high 32 bits are a WASM linear-memory
// offset, low 32 bits a byte length.
func packPtrLen(ptr, length uint32) uint64 {
	return (uint64(ptr) << 32) | uint64(length)
}

func unpackPtrLen(packed uint64) (ptr, length uint32) {
	ptr = uint32(packed >> 32) //nolint:gosec // G115: packed format stores 32-bit values
	length = uint32(packed)    //nolint:gosec // G115: packed format stores 32-bit values
	return ptr, length
}
