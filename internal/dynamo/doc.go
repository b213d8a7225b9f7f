// Package dynamo provides the ODE primitives shared by the transient solvers.
//
// The package defines the fundamental interfaces and types for numerical
// integration of ordinary differential equations:
//
//   - [State]: vector representing node temperatures (or reduced coordinates)
//   - [System]: interface for ODE systems (dX/dt = f(X, t))
//   - [Integrator], [AdaptiveIntegrator]: numerical steppers
//   - [Observer]: per-accepted-step callback used for sampling
//   - [DerivativeCache]: reuse of a derivative across adaptive steps
//   - [ParallelFor]: fixed-width partitioning of embarrassingly parallel work
//
// # Example
//
//	sys := mna.NewFullOrder(ss, excitation)
//	opts := integrators.Options{Dt: 1e-3, Tolerance: tol}
//	x, stats, err := integrators.Integrate(integrators.NewRK45(), sys, x0, 0, 1, opts, obs)
//
// # Thread Safety
//
// Integrators keep scratch buffers and are NOT safe for concurrent use.
// ParallelFor is the only concurrency primitive here; callers must make
// partitions independent.
package dynamo
