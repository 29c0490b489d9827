package hostfuncs

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// HostModuleName is the name every compiled plugin imports its host
// callback surface from.
const HostModuleName = "polytool_host"

// Register builds and instantiates the host module exposing the ABI of
// spec.md §4.1: host_log, exec_command, send_request, get_env_var,
// set_env_var, to_virtual_path, from_virtual_path. svc is shared across
// all plugin instances; each call is scoped by the plugin id attached to
// ctx via WithPluginID.
func Register(ctx context.Context, runtime wazero.Runtime, svc Services) error {
	builder := runtime.NewHostModuleBuilder(HostModuleName)

	wrap := func(fn func(context.Context, api.Module, []uint64, Services, string)) api.GoModuleFunction {
		return api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
			pluginID, _ := PluginIDFromContext(ctx)
			fn(ctx, mod, stack, svc, pluginID)
		})
	}

	builder.NewFunctionBuilder().
		WithGoModuleFunction(wrap(ExecCommand), []api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64}).
		Export("exec_command")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(wrap(SendRequest), []api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64}).
		Export("send_request")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(wrap(GetEnvVar), []api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64}).
		Export("get_env_var")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(wrap(SetEnvVar), []api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64}).
		Export("set_env_var")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(wrap(ToVirtualPath), []api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64}).
		Export("to_virtual_path")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(wrap(FromVirtualPath), []api.ValueType{api.ValueTypeI64}, []api.ValueType{api.ValueTypeI64}).
		Export("from_virtual_path")

	builder.NewFunctionBuilder().
		WithGoModuleFunction(wrap(HostLog), []api.ValueType{api.ValueTypeI64}, []api.ValueType{}).
		Export("host_log")

	_, err := builder.Instantiate(ctx)
	return err
}
