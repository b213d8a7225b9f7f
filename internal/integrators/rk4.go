package integrators

import "github.com/san-kum/etherm/internal/dynamo"

// Classic fourth order tableau.
var (
	rk4C = [4]float64{0, 0.5, 0.5, 1}
	rk4A = [4][3]float64{{}, {0.5}, {0, 0.5}, {0, 0, 1}}
	rk4B = [4]float64{1.0 / 6, 1.0 / 3, 1.0 / 3, 1.0 / 6}
)

// RK4 takes fixed steps. Stage inputs reuse one buffer; the result is fresh.
type RK4 struct {
	k     [4]dynamo.State
	stage dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) Step(sys dynamo.System, x dynamo.State, t, dt float64) dynamo.State {
	if len(r.stage) != len(x) {
		r.stage = make(dynamo.State, len(x))
	}

	r.k[0] = sys.Derive(x, t)
	for s := 1; s < 4; s++ {
		combine(r.stage, x, dt, rk4A[s][:s], r.k[:s])
		r.k[s] = sys.Derive(r.stage, t+rk4C[s]*dt)
	}

	result := make(dynamo.State, len(x))
	combine(result, x, dt, rk4B[:], r.k[:])
	return result
}
