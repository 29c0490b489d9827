package hostfuncs

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/polytool-dev/polytool/wireformat"
)

// GetEnvVar implements get_env_var(reqPtr) -> respPtr.
func GetEnvVar(ctx context.Context, mod api.Module, stack []uint64, svc Services, pluginID string) {
	var req wireformat.EnvVarRequestWire
	if err := readRequest(ctx, mod, stack[0], &req); err != nil {
		stack[0] = writeResponse(ctx, mod, wireformat.EnvVarResponseWire{
			Error: &wireformat.ErrorDetail{Message: err.Error(), Type: "internal"},
		})
		return
	}
	value, found := svc.GetEnvVar(pluginID, req.Name)
	stack[0] = writeResponse(ctx, mod, wireformat.EnvVarResponseWire{Value: value, Found: found})
}

// SetEnvVar implements set_env_var(reqPtr) -> respPtr. PATH receives
// append semantics at the Services layer, not here (spec.md §4.1).
func SetEnvVar(ctx context.Context, mod api.Module, stack []uint64, svc Services, pluginID string) {
	var req wireformat.EnvVarRequestWire
	if err := readRequest(ctx, mod, stack[0], &req); err != nil {
		stack[0] = writeResponse(ctx, mod, wireformat.EnvVarResponseWire{
			Error: &wireformat.ErrorDetail{Message: err.Error(), Type: "internal"},
		})
		return
	}
	svc.SetEnvVar(pluginID, req.Name, req.Value)
	stack[0] = writeResponse(ctx, mod, wireformat.EnvVarResponseWire{Found: true})
}
