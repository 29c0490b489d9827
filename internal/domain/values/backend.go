package values

// Backend distinguishes the native plugin family from the compatibility
// backend that wraps a foreign-ecosystem plugin shim (see spec.md §3).
type Backend string

const (
	// BackendNative is a tool driven directly by a polytool WASM plugin.
	BackendNative Backend = "native"

	// BackendAsdf wraps a foreign-ecosystem (asdf-style) plugin through the
	// compatibility layer.
	BackendAsdf Backend = "asdf"
)

// ToolContext uniquely identifies a tool instance: the pair (Backend, Id).
type ToolContext struct {
	Backend Backend
	Id      Id
}

// String renders the context as "backend:id", or bare "id" for the native
// backend, matching how the teacher's Id round-trips through config keys.
func (c ToolContext) String() string {
	if c.Backend == "" || c.Backend == BackendNative {
		return c.Id.String()
	}
	return string(c.Backend) + ":" + c.Id.String()
}
