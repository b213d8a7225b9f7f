// Package network holds the thermal RC network produced by the builders: a
// weighted undirected graph whose nodes carry capacitance, injected heat and a
// convective link to ambient, and whose edges carry conductance.
package network

import (
	"errors"
	"fmt"
	"sort"

	"golang.org/x/exp/constraints"
)

var (
	ErrInvalidEdge = errors.New("network: invalid edge")
	ErrNodeRange   = errors.New("network: node index out of range")
)

// Float is the scalar type a network is instantiated with.
type Float = constraints.Float

// Node is the per-element state of the network.
type Node[F Float] struct {
	C        F   // capacitance, J/K
	HF       F   // heat flow, W; positive is injected
	HTC      F   // conductance to the ambient reference, W/K
	Scenario int // excitation group
}

// Edge is a canonical (I < J) conductance between two nodes.
type Edge[F Float] struct {
	I, J int
	G    F
}

func (e Edge[F]) R() F { return 1 / e.G }

// Network is not synchronized. Writers touching disjoint nodes, and edges whose
// lower endpoint they own, may run concurrently.
type Network[F Float] struct {
	nodes []Node[F]
	// adj[i] holds edges to j > i only.
	adj []map[int]F
}

func New[F Float](size int) *Network[F] {
	return &Network[F]{
		nodes: make([]Node[F], size),
		adj:   make([]map[int]F, size),
	}
}

func (n *Network[F]) Size() int { return len(n.nodes) }

func (n *Network[F]) Node(i int) Node[F] { return n.nodes[i] }

func (n *Network[F]) SetC(i int, c F)     { n.nodes[i].C = c }
func (n *Network[F]) AddC(i int, c F)     { n.nodes[i].C += c }
func (n *Network[F]) SetHF(i int, hf F)   { n.nodes[i].HF = hf }
func (n *Network[F]) AddHF(i int, hf F)   { n.nodes[i].HF += hf }
func (n *Network[F]) SetHTC(i int, htc F) { n.nodes[i].HTC = htc }
func (n *Network[F]) AddHTC(i int, htc F) { n.nodes[i].HTC += htc }

func (n *Network[F]) SetScenario(i int, s int) { n.nodes[i].Scenario = s }

func (n *Network[F]) canon(i, j int, r F) (int, int, error) {
	if i < 0 || j < 0 || i >= len(n.nodes) || j >= len(n.nodes) {
		return 0, 0, fmt.Errorf("%w: (%d,%d) with %d nodes", ErrNodeRange, i, j, len(n.nodes))
	}
	if i == j {
		return 0, 0, fmt.Errorf("%w: self loop on %d", ErrInvalidEdge, i)
	}
	if !(r > 0) {
		return 0, 0, fmt.Errorf("%w: resistance %v between %d and %d", ErrInvalidEdge, r, i, j)
	}
	if i > j {
		i, j = j, i
	}
	return i, j, nil
}

// SetR stores the resistance between i and j, replacing any previous value.
// The edge is stored once under min(i,j) whichever direction is given.
func (n *Network[F]) SetR(i, j int, r F) error {
	i, j, err := n.canon(i, j, r)
	if err != nil {
		return err
	}
	if n.adj[i] == nil {
		n.adj[i] = make(map[int]F, 4)
	}
	n.adj[i][j] = 1 / r
	return nil
}

// AddR connects r in parallel with any existing resistance between i and j.
func (n *Network[F]) AddR(i, j int, r F) error {
	i, j, err := n.canon(i, j, r)
	if err != nil {
		return err
	}
	if n.adj[i] == nil {
		n.adj[i] = make(map[int]F, 4)
	}
	n.adj[i][j] += 1 / r
	return nil
}

// R returns the resistance between i and j.
func (n *Network[F]) R(i, j int) (F, bool) {
	if i > j {
		i, j = j, i
	}
	if i < 0 || j >= len(n.nodes) || n.adj[i] == nil {
		return 0, false
	}
	g, ok := n.adj[i][j]
	if !ok {
		return 0, false
	}
	return 1 / g, true
}

func (n *Network[F]) EdgeCount() int {
	c := 0
	for _, m := range n.adj {
		c += len(m)
	}
	return c
}

// Edges returns every edge sorted by (I, J).
func (n *Network[F]) Edges() []Edge[F] {
	out := make([]Edge[F], 0, n.EdgeCount())
	for i, m := range n.adj {
		start := len(out)
		for j, g := range m {
			out = append(out, Edge[F]{I: i, J: j, G: g})
		}
		seg := out[start:]
		sort.Slice(seg, func(a, b int) bool { return seg[a].J < seg[b].J })
	}
	return out
}

// Neighbors returns the edges incident to i, sorted by the other endpoint.
func (n *Network[F]) Neighbors(i int) []Edge[F] {
	var out []Edge[F]
	for k := 0; k < i; k++ {
		if g, ok := n.adj[k][i]; ok {
			out = append(out, Edge[F]{I: k, J: i, G: g})
		}
	}
	start := len(out)
	for j, g := range n.adj[i] {
		out = append(out, Edge[F]{I: i, J: j, G: g})
	}
	seg := out[start:]
	sort.Slice(seg, func(a, b int) bool { return seg[a].J < seg[b].J })
	return out
}

// Sources returns the nodes with non-zero heat flow in index order.
func (n *Network[F]) Sources() []int {
	var out []int
	for i, nd := range n.nodes {
		if nd.HF != 0 {
			out = append(out, i)
		}
	}
	return out
}

func (n *Network[F]) TotalHF() F {
	var s F
	for _, nd := range n.nodes {
		s += nd.HF
	}
	return s
}

func (n *Network[F]) TotalHTC() F {
	var s F
	for _, nd := range n.nodes {
		s += nd.HTC
	}
	return s
}

func (n *Network[F]) TotalC() F {
	var s F
	for _, nd := range n.nodes {
		s += nd.C
	}
	return s
}

// Equal reports whether a and b are bit-identical.
func Equal[F Float](a, b *Network[F]) bool {
	if a.Size() != b.Size() || a.EdgeCount() != b.EdgeCount() {
		return false
	}
	for i := range a.nodes {
		if a.nodes[i] != b.nodes[i] {
			return false
		}
	}
	for i, m := range a.adj {
		for j, g := range m {
			if h, ok := b.adj[i][j]; !ok || h != g {
				return false
			}
		}
	}
	return true
}

// HeatBalance returns the heat injected into the network and the heat leaving
// it through the convective boundary at temperatures temps.
func HeatBalance[F Float](n *Network[F], temps []F, refT F) (injected, boundary F) {
	for i, nd := range n.nodes {
		injected += nd.HF
		boundary += nd.HTC * (temps[i] - refT)
	}
	return injected, boundary
}
