package dynamo

import (
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Zero clears every entry in place.
func (s State) Zero() {
	for i := range s {
		s[i] = 0
	}
}

// System is the right-hand side of an ODE system. Derive writes dy/dt at
// (t, y) into f; a non-nil error means the derivative is ill-defined at that
// point and aborts the integration.
type System interface {
	Dim() int
	Derive(t float64, y, f []float64) error
}

type systemFunc struct {
	dim int
	fn  func(t float64, y, f []float64) error
}

func (s systemFunc) Dim() int { return s.dim }

func (s systemFunc) Derive(t float64, y, f []float64) error { return s.fn(t, y, f) }

// SystemFunc wraps a closure as a System of the given dimension.
func SystemFunc(dim int, fn func(t float64, y, f []float64) error) System {
	return systemFunc{dim: dim, fn: fn}
}
