// Package hostfuncs implements the host ABI callable from a plugin:
// exec_command, send_request, get_env_var/set_env_var,
// to_virtual_path/from_virtual_path, and host_log (spec.md §4.1).
package hostfuncs

import "context"

type contextKey struct{ name string }

var pluginIDKey = &contextKey{name: "plugin_id"}

// WithPluginID attaches the owning plugin's id to ctx so host functions
// can scope their services (virtual path map, env var writes) per call.
func WithPluginID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, pluginIDKey, id)
}

// PluginIDFromContext retrieves the plugin id attached by WithPluginID.
func PluginIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(pluginIDKey).(string)
	return id, ok
}
