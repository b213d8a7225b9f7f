package mor

import (
	"github.com/san-kum/etherm/internal/dynamo"
	"github.com/san-kum/etherm/internal/mna"
	"gonum.org/v1/gonum/mat"
)

// Project maps a full-order state into reduced coordinates, z = Xᵀ·x.
func (r *Reduction) Project(x []float64) dynamo.State {
	var z mat.VecDense
	z.MulVec(r.X.T(), mat.NewVecDense(len(x), append([]float64(nil), x...)))
	return dynamo.State(z.RawVector().Data)
}

// Lift maps reduced coordinates back to a full-order state, x = X·z.
func (r *Reduction) Lift(z dynamo.State) []float64 {
	var x mat.VecDense
	x.MulVec(r.X, mat.NewVecDense(len(z), append([]float64(nil), z...)))
	return x.RawVector().Data
}

// Output evaluates the selected full-order entries without lifting the whole
// state.
func (r *Reduction) Output(z dynamo.State, nodes []int) []float64 {
	out := make([]float64, len(nodes))
	_, q := r.X.Dims()
	for k, n := range nodes {
		s := 0.0
		for j := 0; j < q; j++ {
			s += r.X.At(n, j) * z[j]
		}
		out[k] = s
	}
	return out
}

// System is the reduced ODE dz/dt = Coeff·z + Input·u(t).
type System struct {
	r   *Reduction
	ss  *mna.StateSpace
	exc mna.Excitation
}

func NewSystem(r *Reduction, ss *mna.StateSpace, exc mna.Excitation) *System {
	if exc == nil {
		exc = mna.Constant
	}
	return &System{r: r, ss: ss, exc: exc}
}

func (s *System) StateDim() int { return s.r.Order() }

func (s *System) Derive(z dynamo.State, t float64) dynamo.State {
	q := s.r.Order()
	u := s.ss.Inputs(t, s.exc)

	var dz, bu mat.VecDense
	dz.MulVec(s.r.Coeff, mat.NewVecDense(q, append([]float64(nil), z...)))
	if len(u) > 0 {
		bu.MulVec(s.r.Input, mat.NewVecDense(len(u), u))
		dz.AddVec(&dz, &bu)
	}
	return dynamo.State(dz.RawVector().Data)
}
