package dynamo

import "math"

// State holds node temperatures in kelvin, or reduced coordinates for a
// reduced-order system.
type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

// IsValid reports whether every entry is finite.
func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// MinMax returns the smallest and largest entries. Both are NaN for an empty state.
func (s State) MinMax() (float64, float64) {
	if len(s) == 0 {
		return math.NaN(), math.NaN()
	}
	lo, hi := s[0], s[0]
	for _, v := range s[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// same reports whether a and b share their backing array and length.
func (s State) same(o State) bool {
	return len(s) == len(o) && len(s) > 0 && &s[0] == &o[0]
}

// System is a first-order ODE dX/dt = f(X, t). Derive must return a fresh
// slice and must not retain x; integrators keep earlier results across calls
// and reuse the buffers they pass in.
type System interface {
	Derive(x State, t float64) State
	StateDim() int
}

type Integrator interface {
	Step(sys System, x State, t float64, dt float64) State
}

// Tolerance bounds the local error of an adaptive step per component:
// |err_i| <= Abs + Rel*|x_i|.
type Tolerance struct {
	Abs float64
	Rel float64
}

// Scale is the error allowance for a component whose magnitude is at most
// max(|a|, |b|).
func (tol Tolerance) Scale(a, b float64) float64 {
	s := tol.Abs + tol.Rel*math.Max(math.Abs(a), math.Abs(b))
	if s <= 0 {
		return 1e-12
	}
	return s
}

type AdaptiveIntegrator interface {
	Integrator
	// StepAdaptive attempts one step of size dt. It returns the new state and the
	// suggested next step. A rejected step returns ErrStepRejected together with
	// the reduced step to retry with.
	StepAdaptive(sys System, x State, t, dt float64, tol Tolerance) (State, float64, error)
}

// Resetter is implemented by integrators that carry state between steps.
// Reset must be called before stepping a different system.
type Resetter interface {
	Reset()
}

// DerivativeCache remembers one derivative f(x, t), keyed by the identity of
// x and the time. It lets a stepper reuse the last stage of an accepted step,
// or the first stage of a rejected one.
type DerivativeCache struct {
	x  State
	t  float64
	dx State
}

// Get returns the cached derivative when x is the cached state at time t.
func (c *DerivativeCache) Get(x State, t float64) (State, bool) {
	if c.dx == nil || c.t != t || !c.x.same(x) {
		return nil, false
	}
	return c.dx, true
}

func (c *DerivativeCache) Put(x State, t float64, dx State) {
	c.x, c.t, c.dx = x, t, dx
}

func (c *DerivativeCache) Reset() { *c = DerivativeCache{} }

type Observer interface {
	OnStep(x State, t float64)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(x State, t float64)

func (f ObserverFunc) OnStep(x State, t float64) { f(x, t) }
