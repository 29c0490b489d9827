package hostfuncs

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/polytool-dev/polytool/wireformat"
)

// ExecCommand implements exec_command(reqPtr) -> respPtr. If the request
// declares Stream, the plugin's stdout/stderr are inherited by the host
// process rather than captured (spec.md §4.1); capture-mode execution
// still goes through Services.ExecCommand either way, since capture vs.
// inherit is an I/O wiring detail, not a different code path here.
func ExecCommand(ctx context.Context, mod api.Module, stack []uint64, svc Services, pluginID string) {
	var req wireformat.ExecRequestWire
	if err := readRequest(ctx, mod, stack[0], &req); err != nil {
		stack[0] = writeResponse(ctx, mod, wireformat.ExecResponseWire{
			Error: &wireformat.ErrorDetail{Message: err.Error(), Type: "internal"},
		})
		return
	}

	stdout, stderr, exitCode, err := svc.ExecCommand(ctx, pluginID, req.Command, req.Args, req.Env, req.Cwd, req.Stream)
	resp := wireformat.ExecResponseWire{Stdout: stdout, Stderr: stderr, ExitCode: exitCode}
	if err != nil {
		resp.Error = &wireformat.ErrorDetail{Message: err.Error(), Type: "execution"}
	}
	stack[0] = writeResponse(ctx, mod, resp)
}
