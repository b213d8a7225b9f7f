package integrators

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/etherm/internal/dynamo"
)

// Options bounds an integration run.
type Options struct {
	Dt        float64
	MinDt     float64
	MaxDt     float64
	Tolerance dynamo.Tolerance
}

// Stats reports the work done by Integrate.
type Stats struct {
	Accepted int
	Rejected int
	LastDt   float64
}

// Integrate advances x0 from t0 to t1. Adaptive integrators control their own
// step size starting from opts.Dt; other integrators take fixed steps of opts.Dt,
// the last one shortened to land on t1. obs sees the initial state and every
// accepted step.
func Integrate(integ dynamo.Integrator, sys dynamo.System, x0 dynamo.State, t0, t1 float64, opts Options, obs dynamo.Observer) (dynamo.State, Stats, error) {
	var stats Stats
	if len(x0) != sys.StateDim() {
		return nil, stats, fmt.Errorf("%w: state %d, system %d", dynamo.ErrDimensionMismatch, len(x0), sys.StateDim())
	}
	if opts.Dt <= 0 {
		return nil, stats, fmt.Errorf("dt must be positive, got %g", opts.Dt)
	}
	if t1 < t0 {
		return nil, stats, fmt.Errorf("end time %g before start time %g", t1, t0)
	}

	if r, ok := integ.(dynamo.Resetter); ok {
		r.Reset()
	}

	x := x0.Clone()
	t := t0
	dt := opts.Dt
	if opts.MaxDt > 0 {
		dt = math.Min(dt, opts.MaxDt)
	}
	if obs != nil {
		obs.OnStep(x, t)
	}

	adaptive, isAdaptive := integ.(dynamo.AdaptiveIntegrator)
	span := t1 - t0
	for t1-t > 1e-12*math.Max(1, span) {
		h := math.Min(dt, t1-t)

		if !isAdaptive {
			x = integ.Step(sys, x, t, h)
			t += h
		} else {
			xNew, dtNew, err := adaptive.StepAdaptive(sys, x, t, h, opts.Tolerance)
			if errors.Is(err, dynamo.ErrStepRejected) {
				stats.Rejected++
				if opts.MinDt > 0 && dtNew < opts.MinDt {
					return x, stats, &dynamo.SimulationError{Step: stats.Accepted, Time: t, Wrapped: dynamo.ErrStepTooSmall}
				}
				dt = dtNew
				continue
			}
			if err != nil {
				return x, stats, &dynamo.SimulationError{Step: stats.Accepted, Time: t, Wrapped: err}
			}
			x = xNew
			t += h
			dt = dtNew
			if opts.MaxDt > 0 {
				dt = math.Min(dt, opts.MaxDt)
			}
		}

		stats.Accepted++
		stats.LastDt = h
		if !x.IsValid() {
			return x, stats, &dynamo.SimulationError{Step: stats.Accepted, Time: t, Wrapped: dynamo.ErrInvalidState}
		}
		if obs != nil {
			obs.OnStep(x, t)
		}
	}

	return x, stats, nil
}
