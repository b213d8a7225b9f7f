package mor

import (
	"testing"

	"github.com/san-kum/etherm/internal/dynamo"
	"github.com/san-kum/etherm/internal/integrators"
	"github.com/san-kum/etherm/internal/mna"
	"github.com/san-kum/etherm/internal/network"
	"github.com/san-kum/etherm/internal/sparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// rod is a chain of n nodes heated at one end and cooled at the other.
func rod(t *testing.T, n int) *mna.StateSpace {
	t.Helper()
	net := network.New[float64](n)
	for i := 0; i+1 < n; i++ {
		require.NoError(t, net.SetR(i, i+1, 0.5))
	}
	for i := 0; i < n; i++ {
		net.SetC(i, 1+0.1*float64(i))
	}
	net.SetHF(0, 1)
	net.SetHF(n/2, 0.5)
	net.SetScenario(n/2, 1)
	net.SetHTC(n-1, 2)
	ss, err := mna.New(net, 300)
	require.NoError(t, err)
	return ss
}

func TestPRIMABasis(t *testing.T) {
	ss := rod(t, 30)
	_, p := ss.B.Dims()
	require.Equal(t, 3, p)

	for _, q := range []int{3, 4, 8, 12} {
		red, err := Reduce(ss, q, sparse.Cholesky)
		require.NoError(t, err, "q=%d", q)
		assert.Equal(t, q, red.Order())

		sum := 0
		for _, b := range red.Blocks {
			sum += b
		}
		assert.Equal(t, q, sum)

		var gram mat.Dense
		gram.Mul(red.X.T(), red.X)
		assert.True(t, mat.EqualApprox(&gram, eye(q), 1e-9), "basis must be orthonormal for q=%d", q)
	}
}

func TestPRIMAInvalidOrder(t *testing.T) {
	ss := rod(t, 5)
	for _, q := range []int{0, 2, 5, 9} {
		_, err := Reduce(ss, q, sparse.LU)
		assert.ErrorIs(t, err, ErrInvalidOrder, "q=%d", q)
	}

	small := rod(t, 3)
	_, err := Reduce(small, 2, sparse.LU)
	assert.ErrorIs(t, err, ErrInvalidOrder, "p=3 is not below N=3")
}

func TestPRIMARoundTrip(t *testing.T) {
	ss := rod(t, 20)
	red, err := Reduce(ss, 6, sparse.CG)
	require.NoError(t, err)

	v := mat.Col(nil, 2, red.X)
	back := red.Lift(red.Project(v))
	for i := range v {
		assert.InDelta(t, v[i], back[i], 1e-9)
	}

	// The ambient port makes the uniform field part of the basis.
	uniform := make([]float64, 20)
	for i := range uniform {
		uniform[i] = 300
	}
	back = red.Lift(red.Project(uniform))
	for i := range uniform {
		assert.InDelta(t, 300, back[i], 1e-5)
	}
	assert.InDelta(t, back[7], red.Output(red.Project(uniform), []int{7})[0], 1e-9)
}

// At the smallest order the basis is the steady response to each port, and
// the ambient port keeps a uniform field exact.
func TestPRIMAOrderEqualsPorts(t *testing.T) {
	ss := rod(t, 30)
	red, err := Reduce(ss, len(ss.Ports), sparse.Cholesky)
	require.NoError(t, err)
	assert.Equal(t, 3, red.Order())
	assert.Equal(t, []int{3}, red.Blocks)

	uniform := make([]float64, 30)
	for i := range uniform {
		uniform[i] = 300
	}
	back := red.Lift(red.Project(uniform))
	for i := range uniform {
		assert.InDelta(t, 300, back[i], 1e-6, "node %d", i)
	}
}

// The reduced model matches the zeroth moment exactly, so its steady state
// equals the full-order one.
func TestReducedSteadyState(t *testing.T) {
	ss := rod(t, 25)
	red, err := Reduce(ss, 6, sparse.Cholesky)
	require.NoError(t, err)

	solver, err := sparse.NewSolver(sparse.Cholesky, ss.G, sparse.CGOptions{})
	require.NoError(t, err)
	full, err := solver.Solve(ss.SteadyRHS())
	require.NoError(t, err)

	sys := NewSystem(red, ss, nil)
	uniform := make([]float64, 25)
	for i := range uniform {
		uniform[i] = 300
	}
	z, _, err := integrators.Integrate(integrators.NewRK45(), sys, red.Project(uniform), 0, 20000,
		integrators.Options{Dt: 0.1, Tolerance: dynamo.Tolerance{Abs: 1e-9, Rel: 1e-9}}, nil)
	require.NoError(t, err)

	got := red.Output(z, []int{0, 12, 24})
	assert.InDelta(t, full[0], got[0], 1e-4)
	assert.InDelta(t, full[12], got[1], 1e-4)
	assert.InDelta(t, full[24], got[2], 1e-4)
}

func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
