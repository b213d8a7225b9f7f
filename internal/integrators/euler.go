package integrators

import "github.com/san-kum/etherm/internal/dynamo"

// Euler is the explicit first order method. It is only stable for dt below
// 2/λmax of the network and serves as a reference for the other steppers.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(sys dynamo.System, x dynamo.State, t float64, dt float64) dynamo.State {
	result := make(dynamo.State, len(x))
	combine(result, x, dt, []float64{1}, []dynamo.State{sys.Derive(x, t)})
	return result
}
