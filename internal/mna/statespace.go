// Package mna assembles the modified-nodal-analysis form of a thermal network,
//
//	C·dT/dt = −G·T + B·u(t)
//
// where G holds the edge conductances plus the convective links to ambient, C
// is the diagonal of node capacitances, and the columns of B are input ports:
// one per excitation scenario carrying the scenario's source powers, plus one
// ambient port carrying the convective conductances, driven by the reference
// temperature.
package mna

import (
	"errors"
	"fmt"
	"sort"

	"github.com/san-kum/etherm/internal/dynamo"
	"github.com/san-kum/etherm/internal/network"
	"github.com/san-kum/etherm/internal/sparse"
)

var (
	ErrEmpty           = errors.New("mna: empty network")
	ErrZeroCapacitance = errors.New("mna: node without capacitance")
	ErrProbeRange      = errors.New("mna: probe node out of range")
)

// Excitation scales the nominal power of every source of a scenario at time t.
type Excitation func(t float64, scenario int) float64

// Constant is the excitation of a steady-state solve.
func Constant(float64, int) float64 { return 1 }

// Port is one column of B.
type Port struct {
	Scenario int
	Ambient  bool
}

type StateSpace struct {
	N     int
	G     *sparse.CSR
	C     []float64
	B     *sparse.CSR
	Ports []Port
	RefT  float64
}

// New assembles the state space of net around the ambient temperature refT.
func New[F network.Float](net *network.Network[F], refT float64) (*StateSpace, error) {
	n := net.Size()
	if n == 0 {
		return nil, ErrEmpty
	}

	g := sparse.NewTriplets(n, n)
	for _, e := range net.Edges() {
		g.StampConductance(e.I, e.J, float64(e.G))
	}

	ss := &StateSpace{N: n, C: make([]float64, n), RefT: refT}
	scenarios := make(map[int]bool)
	hasAmbient := false
	for i := 0; i < n; i++ {
		nd := net.Node(i)
		ss.C[i] = float64(nd.C)
		if nd.HTC != 0 {
			g.StampConductance(i, -1, float64(nd.HTC))
			hasAmbient = true
		}
		if nd.HF != 0 {
			scenarios[nd.Scenario] = true
		}
	}
	ss.G = g.CSR()

	ids := make([]int, 0, len(scenarios))
	for s := range scenarios {
		ids = append(ids, s)
	}
	sort.Ints(ids)
	col := make(map[int]int, len(ids))
	for k, s := range ids {
		col[s] = k
		ss.Ports = append(ss.Ports, Port{Scenario: s})
	}
	if hasAmbient {
		ss.Ports = append(ss.Ports, Port{Ambient: true})
	}

	b := sparse.NewTriplets(n, len(ss.Ports))
	for i := 0; i < n; i++ {
		nd := net.Node(i)
		if nd.HF != 0 {
			b.Add(i, col[nd.Scenario], float64(nd.HF))
		}
		if nd.HTC != 0 {
			b.Add(i, len(ss.Ports)-1, float64(nd.HTC))
		}
	}
	ss.B = b.CSR()
	return ss, nil
}

// CheckDynamic reports nodes that cannot be integrated in time.
func (s *StateSpace) CheckDynamic() error {
	for i, c := range s.C {
		if !(c > 0) {
			return fmt.Errorf("%w: node %d has C=%g", ErrZeroCapacitance, i, c)
		}
	}
	return nil
}

// Inputs evaluates u(t).
func (s *StateSpace) Inputs(t float64, exc Excitation) []float64 {
	u := make([]float64, len(s.Ports))
	for k, p := range s.Ports {
		if p.Ambient {
			u[k] = s.RefT
		} else {
			u[k] = exc(t, p.Scenario)
		}
	}
	return u
}

// RHS returns B·u.
func (s *StateSpace) RHS(u []float64) []float64 {
	out := make([]float64, s.N)
	if len(u) > 0 {
		s.B.MulVec(out, u)
	}
	return out
}

// SteadyRHS is B·u for constant excitation, the right-hand side of G·T = B·u.
func (s *StateSpace) SteadyRHS() []float64 {
	return s.RHS(s.Inputs(0, Constant))
}

// Select gathers the probe entries of x.
func Select(x []float64, nodes []int) []float64 {
	out := make([]float64, len(nodes))
	for k, n := range nodes {
		out[k] = x[n]
	}
	return out
}

// CheckProbes validates probe node indices.
func (s *StateSpace) CheckProbes(nodes []int) error {
	for _, n := range nodes {
		if n < 0 || n >= s.N {
			return fmt.Errorf("%w: %d of %d", ErrProbeRange, n, s.N)
		}
	}
	return nil
}

// FullOrder integrates the unreduced system. Derive allocates its result and
// is safe to call while earlier results are still referenced.
type FullOrder struct {
	ss  *StateSpace
	exc Excitation
	gx  []float64
}

func NewFullOrder(ss *StateSpace, exc Excitation) *FullOrder {
	if exc == nil {
		exc = Constant
	}
	return &FullOrder{ss: ss, exc: exc, gx: make([]float64, ss.N)}
}

func (f *FullOrder) StateDim() int { return f.ss.N }

func (f *FullOrder) Derive(x dynamo.State, t float64) dynamo.State {
	f.ss.G.MulVec(f.gx, x)
	bu := f.ss.RHS(f.ss.Inputs(t, f.exc))
	dx := make(dynamo.State, f.ss.N)
	for i := range dx {
		dx[i] = (bu[i] - f.gx[i]) / f.ss.C[i]
	}
	return dx
}
