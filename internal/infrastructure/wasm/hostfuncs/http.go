package hostfuncs

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/polytool-dev/polytool/wireformat"
)

// SendRequest implements send_request(reqPtr) -> respPtr, proxying an
// HTTP call through the host's cached client (spec.md §4.1).
func SendRequest(ctx context.Context, mod api.Module, stack []uint64, svc Services, pluginID string) {
	var req wireformat.HTTPRequestWire
	if err := readRequest(ctx, mod, stack[0], &req); err != nil {
		stack[0] = writeResponse(ctx, mod, wireformat.HTTPResponseWire{
			Error: &wireformat.ErrorDetail{Message: err.Error(), Type: "internal"},
		})
		return
	}

	status, headers, body, err := svc.SendRequest(ctx, pluginID, req.URL, req.Method, req.Headers, req.Body)
	resp := wireformat.HTTPResponseWire{StatusCode: status, Headers: headers, Body: body}
	if err != nil {
		resp.Error = &wireformat.ErrorDetail{Message: err.Error(), Type: "network"}
	}
	stack[0] = writeResponse(ctx, mod, resp)
}
