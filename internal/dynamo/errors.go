package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for galaxy evolution.
var (
	// ErrConfiguration indicates an invalid or unknown configuration value.
	ErrConfiguration = errors.New("dynamo: invalid configuration")

	// ErrDimensionMismatch indicates an initial state whose length differs
	// from the number of equations of the system.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")

	// ErrNumerical indicates an unrecoverable integrator failure.
	ErrNumerical = errors.New("dynamo: numerical failure")

	// ErrInvariantViolation indicates a physically impossible galaxy state.
	ErrInvariantViolation = errors.New("dynamo: physical invariant violated")

	// ErrTreeConsistency indicates a corrupted merger tree or a double transfer.
	ErrTreeConsistency = errors.New("dynamo: merger tree inconsistency")
)

// Soft integrator conditions. They are reported as warnings, never returned
// from an evolve call.
var (
	// ErrStepUnderflow indicates the step size fell to machine precision.
	ErrStepUnderflow = errors.New("dynamo: step size below machine precision")

	// ErrStepTooSmall indicates adaptive timestep became too small.
	ErrStepTooSmall = errors.New("dynamo: adaptive timestep below minimum")

	// ErrMaxSteps indicates the internal iteration cap was reached.
	ErrMaxSteps = errors.New("dynamo: maximum number of steps reached")
)

// NumericalError wraps an integrator failure with solver context.
type NumericalError struct {
	Step    int
	Time    float64
	Status  string
	Wrapped error
}

func (e *NumericalError) Error() string {
	msg := fmt.Sprintf("error while solving ODE system at step %d (t=%.6g): %s", e.Step, e.Time, e.Status)
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

func (e *NumericalError) Unwrap() []error {
	if e.Wrapped == nil {
		return []error{ErrNumerical}
	}
	return []error{ErrNumerical, e.Wrapped}
}

// InvariantError names the offending quantity and baryon component.
type InvariantError struct {
	Component string
	Quantity  string
	Value     float64
	Message   string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s.%s=%g", e.Message, e.Component, e.Quantity, e.Value)
}

func (e *InvariantError) Unwrap() error { return ErrInvariantViolation }

// TreeError reports a merger tree inconsistency between two subhalos.
type TreeError struct {
	SubhaloID    int64
	DescendantID int64
	Snapshot     int
	Message      string
}

func (e *TreeError) Error() string {
	return fmt.Sprintf("subhalo %d -> %d (snapshot %d): %s", e.SubhaloID, e.DescendantID, e.Snapshot, e.Message)
}

func (e *TreeError) Unwrap() error { return ErrTreeConsistency }

// DimensionError reports a state/system length mismatch.
func DimensionError(got, want int) error {
	return fmt.Errorf("%w: # initial values != ODE components: %d != %d", ErrDimensionMismatch, got, want)
}

// ConfigError reports an invalid configuration option value.
func ConfigError(name, value, reason string) error {
	return fmt.Errorf("%w: %s option value invalid: %q. %s", ErrConfiguration, name, value, reason)
}
