package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetRCanonical(t *testing.T) {
	n := New[float64](4)
	require.NoError(t, n.SetR(3, 1, 2.0))
	require.NoError(t, n.SetR(1, 3, 4.0))

	assert.Equal(t, 1, n.EdgeCount(), "both directions map to one edge")
	r, ok := n.R(3, 1)
	require.True(t, ok)
	assert.Equal(t, 4.0, r)

	edges := n.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, 1, edges[0].I)
	assert.Equal(t, 3, edges[0].J)
}

func TestAddRParallel(t *testing.T) {
	n := New[float64](2)
	require.NoError(t, n.AddR(0, 1, 2.0))
	require.NoError(t, n.AddR(1, 0, 2.0))
	r, ok := n.R(0, 1)
	require.True(t, ok)
	assert.InDelta(t, 1.0, r, 1e-12)
}

func TestSetRRejects(t *testing.T) {
	n := New[float32](3)
	assert.ErrorIs(t, n.SetR(1, 1, 1), ErrInvalidEdge)
	assert.ErrorIs(t, n.SetR(0, 1, 0), ErrInvalidEdge)
	assert.ErrorIs(t, n.SetR(0, 1, -3), ErrInvalidEdge)
	assert.ErrorIs(t, n.SetR(0, 7, 1), ErrNodeRange)
	assert.Zero(t, n.EdgeCount())
}

func TestEdgesSorted(t *testing.T) {
	n := New[float64](5)
	for _, e := range [][2]int{{4, 0}, {2, 1}, {0, 2}, {3, 4}, {0, 1}} {
		require.NoError(t, n.SetR(e[0], e[1], 1))
	}
	var got [][2]int
	for _, e := range n.Edges() {
		got = append(got, [2]int{e.I, e.J})
	}
	assert.Equal(t, [][2]int{{0, 1}, {0, 2}, {0, 4}, {1, 2}, {3, 4}}, got)
}

func TestNodeTotalsAndBalance(t *testing.T) {
	n := New[float64](3)
	n.SetHF(0, 2)
	n.AddHF(0, 1)
	n.SetHTC(2, 0.5)
	n.AddC(1, 4)
	n.SetScenario(0, 7)

	assert.Equal(t, 3.0, n.TotalHF())
	assert.Equal(t, 0.5, n.TotalHTC())
	assert.Equal(t, 4.0, n.TotalC())
	assert.Equal(t, []int{0}, n.Sources())
	assert.Equal(t, 7, n.Node(0).Scenario)

	in, out := HeatBalance(n, []float64{0, 0, 306}, 300)
	assert.Equal(t, 3.0, in)
	assert.Equal(t, 3.0, out)
}

func TestEqual(t *testing.T) {
	a, b := New[float64](2), New[float64](2)
	assert.True(t, Equal(a, b))
	require.NoError(t, a.SetR(0, 1, 1))
	assert.False(t, Equal(a, b))
	require.NoError(t, b.SetR(1, 0, 1))
	assert.True(t, Equal(a, b))
	b.SetC(0, 1)
	assert.False(t, Equal(a, b))
}

func TestNeighbors(t *testing.T) {
	n := New[float32](4)
	require.NoError(t, n.SetR(2, 0, 1))
	require.NoError(t, n.SetR(2, 3, 2))
	require.NoError(t, n.SetR(1, 2, 4))

	nb := n.Neighbors(2)
	require.Len(t, nb, 3)
	assert.Equal(t, 0, nb[0].I)
	assert.Equal(t, 1, nb[1].I)
	assert.Equal(t, 3, nb[2].J)
	assert.Equal(t, float32(0.5), nb[2].G)
	assert.Empty(t, New[float32](1).Neighbors(0))
}
