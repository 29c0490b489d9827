package wasm

import (
	"sort"
	"strings"
)

// VirtualPathMap is the ordered {real_prefix -> virtual_prefix} table the
// host publishes to a plugin instance (spec.md §4.1 "Virtual path
// mapping"). Conversion is prefix-based with ties broken by
// longest-real-prefix-wins, which is deterministic regardless of
// insertion order.
type VirtualPathMap struct {
	entries []pathEntry
}

type pathEntry struct {
	real    string
	virtual string
}

// NewVirtualPathMap builds the map for a plugin instance given the
// host's cwd, store root, and home directory — the three prefixes
// spec.md requires at minimum.
func NewVirtualPathMap(cwd, storeRoot, home string) *VirtualPathMap {
	m := &VirtualPathMap{}
	m.Add(cwd, "/cwd")
	m.Add(storeRoot, "/proto")
	m.Add(home, "/userhome")
	return m
}

// Add registers an additional real/virtual prefix pair.
func (m *VirtualPathMap) Add(real, virtual string) {
	real = normalizeSeparators(real)
	m.entries = append(m.entries, pathEntry{real: real, virtual: virtual})
	sort.SliceStable(m.entries, func(i, j int) bool {
		return len(m.entries[i].real) > len(m.entries[j].real)
	})
}

// ToVirtual converts a host-absolute path into the plugin's sandbox-
// visible virtual path. Windows separators are folded to "/" first.
func (m *VirtualPathMap) ToVirtual(real string) string {
	real = normalizeSeparators(real)
	for _, e := range m.entries {
		if strings.HasPrefix(real, e.real) {
			return e.virtual + strings.TrimPrefix(real, e.real)
		}
	}
	return real
}

// FromVirtual converts a plugin-visible virtual path back to a
// host-absolute path.
func (m *VirtualPathMap) FromVirtual(virtual string) string {
	for _, e := range m.entries {
		if strings.HasPrefix(virtual, e.virtual) {
			return e.real + strings.TrimPrefix(virtual, e.virtual)
		}
	}
	return virtual
}

func normalizeSeparators(path string) string {
	return strings.ReplaceAll(path, "\\", "/")
}
