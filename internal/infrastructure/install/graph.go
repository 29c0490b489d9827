package install

import (
	"fmt"

	"github.com/polytool-dev/polytool/internal/domain/values"
)

// Node is one tool context to install, plus the other tool contexts it
// depends on (a plugin's declared install-time dependencies, spec.md
// §5's install graph).
type Node struct {
	Context      values.ToolContext
	Spec         values.UnresolvedSpec
	Dependencies []values.ToolContext
}

// Level groups nodes whose dependencies are all satisfied by earlier
// levels, so everything within a level can install concurrently
// (grounded on the teacher's DependencyResolver.BuildControlDAG —
// Kahn's algorithm over the install graph instead of a control graph).
type Level struct {
	Nodes []Node
}

// BuildGraph orders nodes into levels for wave-by-wave installation,
// detecting circular dependencies rather than deadlocking a worker pool
// on them.
func BuildGraph(nodes []Node) ([]Level, error) {
	byKey := make(map[values.ToolContext]Node, len(nodes))
	inDegree := make(map[values.ToolContext]int, len(nodes))
	dependents := make(map[values.ToolContext][]values.ToolContext)

	for _, n := range nodes {
		byKey[n.Context] = n
		inDegree[n.Context] = len(n.Dependencies)
	}
	for _, n := range nodes {
		for _, dep := range n.Dependencies {
			if _, ok := byKey[dep]; !ok {
				return nil, fmt.Errorf("%s depends on %s, which is not in the install set", n.Context, dep)
			}
			dependents[dep] = append(dependents[dep], n.Context)
		}
	}

	var levels []Level
	processed := make(map[values.ToolContext]bool, len(nodes))

	for len(processed) < len(nodes) {
		var current []Node
		for _, n := range nodes {
			if processed[n.Context] || inDegree[n.Context] != 0 {
				continue
			}
			current = append(current, n)
		}
		if len(current) == 0 {
			var remaining []values.ToolContext
			for _, n := range nodes {
				if !processed[n.Context] {
					remaining = append(remaining, n.Context)
				}
			}
			return nil, fmt.Errorf("circular dependency detected among tool contexts: %v", remaining)
		}

		levels = append(levels, Level{Nodes: current})
		for _, n := range current {
			processed[n.Context] = true
			for _, dependent := range dependents[n.Context] {
				inDegree[dependent]--
			}
		}
	}

	return levels, nil
}
