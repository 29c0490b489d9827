package hostfuncs

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/polytool-dev/polytool/wireformat"
)

// ToVirtualPath implements to_virtual_path(reqPtr) -> respPtr.
func ToVirtualPath(ctx context.Context, mod api.Module, stack []uint64, svc Services, pluginID string) {
	var req wireformat.VirtualPathRequestWire
	if err := readRequest(ctx, mod, stack[0], &req); err != nil {
		stack[0] = writeResponse(ctx, mod, wireformat.VirtualPathResponseWire{
			Error: &wireformat.ErrorDetail{Message: err.Error(), Type: "internal"},
		})
		return
	}
	stack[0] = writeResponse(ctx, mod, wireformat.VirtualPathResponseWire{
		Path: svc.ToVirtualPath(pluginID, req.Path),
	})
}

// FromVirtualPath implements from_virtual_path(reqPtr) -> respPtr.
func FromVirtualPath(ctx context.Context, mod api.Module, stack []uint64, svc Services, pluginID string) {
	var req wireformat.VirtualPathRequestWire
	if err := readRequest(ctx, mod, stack[0], &req); err != nil {
		stack[0] = writeResponse(ctx, mod, wireformat.VirtualPathResponseWire{
			Error: &wireformat.ErrorDetail{Message: err.Error(), Type: "internal"},
		})
		return
	}
	stack[0] = writeResponse(ctx, mod, wireformat.VirtualPathResponseWire{
		Path: svc.FromVirtualPath(pluginID, req.Path),
	})
}
