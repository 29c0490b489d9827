package hostfuncs

import "context"

// Services is the set of host-side capabilities a plugin instance may
// call back into. One implementation is shared by every plugin; each
// call carries the calling plugin's id, so an implementation can keep a
// virtual path map and scoped environment per plugin (spec.md §4.1
// "Host ABI").
type Services interface {
	ExecCommand(ctx context.Context, pluginID, command string, args []string, env map[string]string, cwd string, stream bool) (stdout, stderr string, exitCode int, err error)
	SendRequest(ctx context.Context, pluginID, url, method string, headers map[string]string, body []byte) (status int, respHeaders map[string]string, respBody []byte, err error)
	GetEnvVar(pluginID, name string) (value string, found bool)
	SetEnvVar(pluginID, name, value string)
	ToVirtualPath(pluginID, real string) string
	FromVirtualPath(pluginID, virtual string) string
	Log(pluginID, message, level string, fields map[string]interface{})
}
