package hostfuncs

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/polytool-dev/polytool/wireformat"
)

// HostLog implements host_log(reqPtr) with no return value: structured
// logging forwarded from the plugin to the host's slog logger
// (spec.md §4.1).
func HostLog(ctx context.Context, mod api.Module, stack []uint64, svc Services, pluginID string) {
	var req wireformat.LogRequestWire
	if err := readRequest(ctx, mod, stack[0], &req); err != nil {
		return
	}
	svc.Log(pluginID, req.Message, string(req.Level), req.Fields)
}
