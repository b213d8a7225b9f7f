package integrators

import (
	"math"

	"github.com/san-kum/etherm/internal/dynamo"
)

// Dormand-Prince 5(4) tableau. Row 6 of dpA holds the fifth-order weights, so
// the last stage is evaluated at the new state and doubles as the first stage
// of the next step.
var (
	dpC = [7]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}
	dpA = [7][6]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	}
	// dpE is the fifth minus the embedded fourth order weights.
	dpE = [7]float64{
		35.0/384 - 5179.0/57600,
		0,
		500.0/1113 - 7571.0/16695,
		125.0/192 - 393.0/640,
		-2187.0/6784 + 92097.0/339200,
		11.0/84 - 187.0/2100,
		-1.0 / 40,
	}
)

// DefaultTolerance matches the solver defaults for temperatures in Kelvin.
var DefaultTolerance = dynamo.Tolerance{Abs: 1e-6, Rel: 1e-6}

type RK45 struct {
	safety   float64
	minScale float64
	maxScale float64

	k     [7]dynamo.State
	stage dynamo.State
	cache dynamo.DerivativeCache
}

func NewRK45() *RK45 {
	return &RK45{
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

func (r *RK45) Reset() { r.cache.Reset() }

// Step takes one step and ignores the error estimate.
func (r *RK45) Step(sys dynamo.System, x dynamo.State, t, dt float64) dynamo.State {
	xNew, _, _ := r.step(sys, x, t, dt, DefaultTolerance)
	return xNew
}

func (r *RK45) StepAdaptive(sys dynamo.System, x dynamo.State, t, dt float64, tol dynamo.Tolerance) (dynamo.State, float64, error) {
	xNew, errRatio, dtNew := r.step(sys, x, t, dt, tol)
	if errRatio > 1 {
		return x, dtNew, dynamo.ErrStepRejected
	}
	return xNew, dtNew, nil
}

func (r *RK45) step(sys dynamo.System, x dynamo.State, t, dt float64, tol dynamo.Tolerance) (dynamo.State, float64, float64) {
	n := len(x)
	if len(r.stage) != n {
		r.stage = make(dynamo.State, n)
		r.cache.Reset()
	}
	k := &r.k

	if dx, ok := r.cache.Get(x, t); ok {
		k[0] = dx
	} else {
		k[0] = sys.Derive(x, t)
	}
	for s := 1; s < 6; s++ {
		combine(r.stage, x, dt, dpA[s][:s], k[:s])
		k[s] = sys.Derive(r.stage, t+dpC[s]*dt)
	}
	xNew := make(dynamo.State, n)
	combine(xNew, x, dt, dpA[6][:], k[:6])
	k[6] = sys.Derive(xNew, t+dt)

	errMax := 0.0
	for i := 0; i < n; i++ {
		e := 0.0
		for s, w := range dpE {
			e += w * k[s][i]
		}
		errMax = math.Max(errMax, math.Abs(dt*e)/tol.Scale(x[i], xNew[i]))
	}

	var dtNew float64
	switch {
	case errMax > 1:
		dtNew = dt * math.Max(r.minScale, r.safety*math.Pow(errMax, -0.25))
		r.cache.Put(x, t, k[0])
	case errMax > 0:
		dtNew = dt * math.Min(r.maxScale, r.safety*math.Pow(errMax, -0.2))
		r.cache.Put(xNew, t+dt, k[6])
	default:
		dtNew = dt * r.maxScale
		r.cache.Put(xNew, t+dt, k[6])
	}

	return xNew, errMax, dtNew
}

// combine sets dst = x + dt·Σ a[j]·k[j].
func combine(dst, x dynamo.State, dt float64, a []float64, k []dynamo.State) {
	for i := range dst {
		s := 0.0
		for j, aj := range a {
			if aj != 0 {
				s += aj * k[j][i]
			}
		}
		dst[i] = x[i] + dt*s
	}
}
