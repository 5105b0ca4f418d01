package plugin

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDependencyGraphTopologicalSortOrdersDependenciesFirst(t *testing.T) {
	t.Parallel()

	g := NewDependencyGraph()
	g.AddEdge("derived", "base")

	order, err := g.TopologicalSort()
	require.NoError(t, err)
	require.Equal(t, []string{"base", "derived"}, order)
}

func TestDependencyGraphDetectCyclesReportsPath(t *testing.T) {
	t.Parallel()

	g := NewDependencyGraph()
	g.AddEdge("a", "b")
	g.AddEdge("b", "a")

	cycle, err := g.DetectCycles()
	require.NoError(t, err)
	require.NotEmpty(t, cycle)
}

func TestDependencyGraphHasNode(t *testing.T) {
	t.Parallel()

	g := NewDependencyGraph()
	g.AddNode("solo")
	require.True(t, g.HasNode("solo"))
	require.False(t, g.HasNode("missing"))
}
