package polyplugin

import (
	"encoding/json"
	"fmt"

	"github.com/polytool-dev/polytool/wireformat"
)

// The host module name and the packed-i64-in/packed-i64-out calling
// convention here mirror internal/infrastructure/wasm/hostfuncs exactly:
// every callback takes one argument (a pointer/length pair packed into a
// uint64) and returns one result the same way, except hostLog which has
// no return value.

//go:wasmimport polytool_host exec_command
func hostExecCommand(reqPacked uint64) uint64

//go:wasmimport polytool_host send_request
func hostSendRequest(reqPacked uint64) uint64

//go:wasmimport polytool_host get_env_var
func hostGetEnvVar(reqPacked uint64) uint64

//go:wasmimport polytool_host set_env_var
func hostSetEnvVar(reqPacked uint64) uint64

//go:wasmimport polytool_host to_virtual_path
func hostToVirtualPath(reqPacked uint64) uint64

//go:wasmimport polytool_host from_virtual_path
func hostFromVirtualPath(reqPacked uint64) uint64

//go:wasmimport polytool_host host_log
func hostLog(reqPacked uint64)

// callHost marshals req, invokes fn with it packed, reads back and
// unmarshals the packed response into out.
func callHost(fn func(uint64) uint64, req, out any) error {
	reqData, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling host call request: %w", err)
	}
	reqPacked := writeBytes(reqData)
	respPacked := fn(reqPacked)

	ptr, length := unpackPtrLen(respPacked)
	if ptr == 0 || length == 0 {
		return fmt.Errorf("host call returned an empty response")
	}
	respData := readBytes(ptr, length)
	deallocate(ptr, length)

	if err := json.Unmarshal(respData, out); err != nil {
		return fmt.Errorf("unmarshaling host call response: %w", err)
	}
	return nil
}

// ExecCommand runs a command on the host, the plugin ABI's only way to
// shell out since the guest itself has no process or exec capability.
func ExecCommand(req wireformat.ExecRequestWire) (wireformat.ExecResponseWire, error) {
	var resp wireformat.ExecResponseWire
	if err := callHost(hostExecCommand, req, &resp); err != nil {
		return wireformat.ExecResponseWire{}, err
	}
	if resp.Error != nil {
		return resp, fmt.Errorf("exec_command: %s", resp.Error.Message)
	}
	return resp, nil
}

// SendRequest issues an HTTP request through the host, since the guest
// has no network access of its own.
func SendRequest(req wireformat.HTTPRequestWire) (wireformat.HTTPResponseWire, error) {
	var resp wireformat.HTTPResponseWire
	if err := callHost(hostSendRequest, req, &resp); err != nil {
		return wireformat.HTTPResponseWire{}, err
	}
	if resp.Error != nil {
		return resp, fmt.Errorf("send_request: %s", resp.Error.Message)
	}
	return resp, nil
}

// GetEnvVar reads an environment variable from the host process, not the
// (nonexistent) guest environment.
func GetEnvVar(name string) (string, bool, error) {
	var resp wireformat.EnvVarResponseWire
	if err := callHost(hostGetEnvVar, wireformat.EnvVarRequestWire{Name: name}, &resp); err != nil {
		return "", false, err
	}
	if resp.Error != nil {
		return "", false, fmt.Errorf("get_env_var %s: %s", name, resp.Error.Message)
	}
	return resp.Value, resp.Found, nil
}

// SetEnvVar sets an environment variable for the remainder of the host's
// install/run invocation, used by build steps that need to influence a
// subsequent exec_command call.
func SetEnvVar(name, value string) error {
	var resp wireformat.EnvVarResponseWire
	if err := callHost(hostSetEnvVar, wireformat.EnvVarRequestWire{Name: name, Value: value}, &resp); err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("set_env_var %s: %s", name, resp.Error.Message)
	}
	return nil
}

// ToVirtualPath maps a real host filesystem path to the plugin's virtual
// view of the store, so a plugin's own logic can reason about paths
// without depending on the host's actual store layout.
func ToVirtualPath(path string) (string, error) {
	var resp wireformat.VirtualPathResponseWire
	if err := callHost(hostToVirtualPath, wireformat.VirtualPathRequestWire{Path: path}, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("to_virtual_path %s: %s", path, resp.Error.Message)
	}
	return resp.Path, nil
}

// FromVirtualPath is the inverse of ToVirtualPath.
func FromVirtualPath(path string) (string, error) {
	var resp wireformat.VirtualPathResponseWire
	if err := callHost(hostFromVirtualPath, wireformat.VirtualPathRequestWire{Path: path}, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("from_virtual_path %s: %s", path, resp.Error.Message)
	}
	return resp.Path, nil
}

// logMessage sends a structured log line to the host's logger under the
// plugin's own id. host_log has no return value, so marshal errors are
// swallowed rather than surfaced to the caller.
func logMessage(level wireformat.LogLevel, msg string, fields map[string]interface{}) {
	data, err := json.Marshal(wireformat.LogRequestWire{Message: msg, Level: level, Fields: fields})
	if err != nil {
		return
	}
	hostLog(writeBytes(data))
}

// Debugf logs a debug-level message through the host.
func Debugf(format string, args ...any) { logMessage(wireformat.LogLevelDebug, fmt.Sprintf(format, args...), nil) }

// Infof logs an info-level message through the host.
func Infof(format string, args ...any) { logMessage(wireformat.LogLevelInfo, fmt.Sprintf(format, args...), nil) }

// Warnf logs a warn-level message through the host.
func Warnf(format string, args ...any) { logMessage(wireformat.LogLevelWarn, fmt.Sprintf(format, args...), nil) }

// Errorf logs an error-level message through the host.
func Errorf(format string, args ...any) { logMessage(wireformat.LogLevelError, fmt.Sprintf(format, args...), nil) }
