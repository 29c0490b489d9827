package hostfuncs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tetratelabs/wazero/api"
)

// packPtrLen and unpackPtrLen implement the packed-i64 calling
// convention shared by every host/plugin function: the high 32 bits are
// a WASM linear-memory offset, the low 32 bits a byte length.
func packPtrLen(ptr, length uint32) uint64 {
	return (uint64(ptr) << 32) | uint64(length)
}

func unpackPtrLen(packed uint64) (ptr, length uint32) {
	ptr = uint32(packed >> 32) //nolint:gosec // G115: packed format stores 32-bit values
	length = uint32(packed)    //nolint:gosec // G115: packed format stores 32-bit values
	return ptr, length
}

// readRequest reads and unmarshals a JSON request from guest memory at
// the pointer+length packed into requestPacked.
func readRequest(ctx context.Context, mod api.Module, requestPacked uint64, out interface{}) error {
	ptr, length := unpackPtrLen(requestPacked)
	raw, ok := mod.Memory().Read(ptr, length)
	if !ok {
		err := errors.New("hostfuncs: failed to read request from guest memory")
		slog.ErrorContext(ctx, err.Error())
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		err = fmt.Errorf("hostfuncs: failed to unmarshal request: %w", err)
		slog.ErrorContext(ctx, err.Error())
		return err
	}
	return nil
}

// writeResponse marshals response, copies it into guest memory via the
// guest's exported allocate function, and returns the packed ptr+len.
func writeResponse(ctx context.Context, mod api.Module, response interface{}) uint64 {
	data, err := json.Marshal(response)
	if err != nil {
		slog.ErrorContext(ctx, "hostfuncs: failed to marshal response", "error", err)
		data, _ = json.Marshal(map[string]string{"error": "failed to marshal response"})
	}

	allocate := mod.ExportedFunction("allocate")
	if allocate == nil {
		slog.ErrorContext(ctx, "hostfuncs: guest does not export allocate()")
		return 0
	}
	results, err := allocate.Call(ctx, uint64(len(data)))
	if err != nil || len(results) == 0 {
		slog.ErrorContext(ctx, "hostfuncs: guest allocate() call failed", "error", err)
		return 0
	}
	ptr := uint32(results[0]) //nolint:gosec // G115: WASM32 pointers are always 32-bit

	if !mod.Memory().Write(ptr, data) {
		slog.ErrorContext(ctx, "hostfuncs: failed to write response into guest memory")
		return 0
	}
	return packPtrLen(ptr, uint32(len(data))) //nolint:gosec // G115: host responses are bounded well under 4GB
}
