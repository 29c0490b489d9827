// Package values holds the small, immutable value objects shared across the
// domain: tool identifiers, backends, version specifications, and checksums.
package values

import (
	"fmt"
	"regexp"
)

var idPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// EngineID is the reserved identifier for the engine's own pinnable version.
// A pin of this id is stripped from Global and User configuration (§4.3).
const EngineID = "polytool"

// SchemaPluginID is the reserved identifier for the schema-driven plugin
// shim that interprets non-bytecode plugin manifests (TOML/YAML/JSON).
const SchemaPluginID = "schema"

// Id is the lowercase kebab-case primary key for a tool.
type Id string

// NewId validates and constructs an Id from a raw string.
func NewId(raw string) (Id, error) {
	if !idPattern.MatchString(raw) {
		return "", fmt.Errorf("invalid tool id %q: must match %s", raw, idPattern.String())
	}
	return Id(raw), nil
}

// String implements fmt.Stringer.
func (i Id) String() string {
	return string(i)
}

// IsEngine reports whether this id refers to the engine itself.
func (i Id) IsEngine() bool {
	return string(i) == EngineID
}
