// Package dynamo provides the numerical primitives shared by the galaxy
// evolution engine.
//
// The package defines the fixed-shape state vectors and the system contract
// consumed by the adaptive integrator:
//
//   - [State]: vector holding the ODE unknowns of one galaxy
//   - [System]: right-hand side of dy/dt = f(t, y)
//   - [StatePool]: reusable fixed-length vectors
//   - [ForEach]: bounded parallel loop used by the snapshot driver
//
// Errors follow a small taxonomy: configuration, dimension mismatch,
// numerical, physical invariant violation and tree consistency. Each class
// has a sentinel that typed errors unwrap to, so callers can use [errors.Is].
//
// # Example
//
//	sys := dynamo.SystemFunc(17, func(t float64, y, f []float64) error {
//		f[0] = -y[0]
//		return nil
//	})
//	solver, _ := integrators.NewSolver(y0, 0, 0.1, 0.05, sys)
//	y1, err := solver.Evolve()
//
// # Thread Safety
//
// States and pools are safe to use from one goroutine at a time. A [System]
// built around per-call parameters must not be shared between goroutines.
package dynamo
