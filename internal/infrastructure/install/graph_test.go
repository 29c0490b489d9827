package install

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polytool-dev/polytool/internal/domain/values"
)

func ctx(t *testing.T, raw string) values.ToolContext {
	t.Helper()
	id, err := values.NewId(raw)
	require.NoError(t, err)
	return values.ToolContext{Backend: values.BackendNative, Id: id}
}

func Test_BuildGraph_NoDependencies(t *testing.T) {
	nodes := []Node{
		{Context: ctx(t, "node")},
		{Context: ctx(t, "go")},
		{Context: ctx(t, "rust")},
	}

	levels, err := BuildGraph(nodes)
	require.NoError(t, err)
	require.Len(t, levels, 1, "all nodes should land in the first wave")
	assert.Len(t, levels[0].Nodes, 3)
}

func Test_BuildGraph_LinearDependencies(t *testing.T) {
	base := ctx(t, "node")
	mid := ctx(t, "pnpm")
	top := ctx(t, "turbo")

	nodes := []Node{
		{Context: base},
		{Context: mid, Dependencies: []values.ToolContext{base}},
		{Context: top, Dependencies: []values.ToolContext{mid}},
	}

	levels, err := BuildGraph(nodes)
	require.NoError(t, err)
	require.Len(t, levels, 3)
	assert.Equal(t, base, levels[0].Nodes[0].Context)
	assert.Equal(t, mid, levels[1].Nodes[0].Context)
	assert.Equal(t, top, levels[2].Nodes[0].Context)
}

func Test_BuildGraph_ParallelWave(t *testing.T) {
	base := ctx(t, "node")
	nodes := []Node{
		{Context: base},
		{Context: ctx(t, "eslint"), Dependencies: []values.ToolContext{base}},
		{Context: ctx(t, "prettier"), Dependencies: []values.ToolContext{base}},
		{Context: ctx(t, "tsc"), Dependencies: []values.ToolContext{base}},
	}

	levels, err := BuildGraph(nodes)
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Len(t, levels[0].Nodes, 1)
	assert.Len(t, levels[1].Nodes, 3)
}

func Test_BuildGraph_CircularDependency(t *testing.T) {
	a := ctx(t, "a")
	b := ctx(t, "b")
	nodes := []Node{
		{Context: a, Dependencies: []values.ToolContext{b}},
		{Context: b, Dependencies: []values.ToolContext{a}},
	}

	_, err := BuildGraph(nodes)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular")
}

func Test_BuildGraph_UnknownDependency(t *testing.T) {
	nodes := []Node{
		{Context: ctx(t, "a"), Dependencies: []values.ToolContext{ctx(t, "missing")}},
	}

	_, err := BuildGraph(nodes)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in the install set")
}
