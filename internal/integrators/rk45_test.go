package integrators

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/galevo/internal/dynamo"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var harmonicOscillator = dynamo.SystemFunc(2, func(t float64, y, f []float64) error {
	f[0] = y[1]
	f[1] = -y[0]
	return nil
})

func decay(rate float64) dynamo.System {
	return dynamo.SystemFunc(1, func(t float64, y, f []float64) error {
		f[0] = -rate * y[0]
		return nil
	})
}

func TestSolver_Decay(t *testing.T) {
	s, err := NewSolver(dynamo.State{1}, 0, 0.1, 1e-10, decay(1))
	if err != nil {
		t.Fatal(err)
	}

	var y dynamo.State
	for i := 0; i < 10; i++ {
		if y, err = s.Evolve(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	if math.Abs(s.CurrentT()-1) > 1e-12 {
		t.Errorf("CurrentT = %v, want 1", s.CurrentT())
	}
	if math.Abs(y[0]-math.Exp(-1)) > 1e-8 {
		t.Errorf("y(1) = %v, want %v", y[0], math.Exp(-1))
	}
}

func TestSolver_EnergyConservation(t *testing.T) {
	s, err := NewSolver(dynamo.State{1, 0}, 0, 0.1, 1e-10, harmonicOscillator)
	if err != nil {
		t.Fatal(err)
	}

	var x dynamo.State
	for i := 0; i < 1000; i++ {
		if x, err = s.Evolve(); err != nil {
			t.Fatal(err)
		}
	}

	if !x.IsValid() {
		t.Fatal("solver produced invalid state")
	}
	energy := 0.5 * (x[0]*x[0] + x[1]*x[1])
	if drift := math.Abs(energy - 0.5); drift > 1e-5 {
		t.Errorf("energy drift too high: %e", drift)
	}
	if math.Abs(x[0]-math.Cos(100)) > 1e-5 {
		t.Errorf("x(100) = %v, want %v", x[0], math.Cos(100))
	}
}

func TestSolver_DimensionMismatch(t *testing.T) {
	calls := 0
	sys := dynamo.SystemFunc(17, func(t float64, y, f []float64) error {
		calls++
		return nil
	})

	for _, n := range []int{0, 1, 16, 18} {
		_, err := NewSolver(make(dynamo.State, n), 0, 1, 1e-6, sys)
		if !errors.Is(err, dynamo.ErrDimensionMismatch) {
			t.Errorf("len %d: got %v, want dimension mismatch", n, err)
		}
	}
	if calls != 0 {
		t.Errorf("derivative called %d times before integration", calls)
	}
}

func TestSolver_InvalidParameters(t *testing.T) {
	if _, err := NewSolver(dynamo.State{1}, 0, 0, 1e-6, decay(1)); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("zero delta_t: got %v", err)
	}
	if _, err := NewSolver(dynamo.State{1}, 0, 1, -1, decay(1)); !errors.Is(err, dynamo.ErrConfiguration) {
		t.Errorf("negative precision: got %v", err)
	}
}

func TestSolver_EvaluatorError(t *testing.T) {
	boom := errors.New("ill-defined derivative")
	fail := false
	sys := dynamo.SystemFunc(1, func(t float64, y, f []float64) error {
		if fail {
			return boom
		}
		f[0] = 1
		return nil
	})

	s, err := NewSolver(dynamo.State{0}, 0, 1, 1e-8, sys)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Evolve(); err != nil {
		t.Fatal(err)
	}

	fail = true
	_, err = s.Evolve()
	if !errors.Is(err, dynamo.ErrNumerical) || !errors.Is(err, boom) {
		t.Fatalf("got %v, want numerical error wrapping evaluator error", err)
	}
	var numErr *dynamo.NumericalError
	if !errors.As(err, &numErr) || numErr.Status == "" {
		t.Fatalf("missing status text: %v", err)
	}
	if s.CurrentT() != 1 || s.State()[0] != 1 {
		t.Errorf("solver not reset: t=%v y=%v", s.CurrentT(), s.State())
	}

	fail = false
	y, err := s.Evolve()
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(y[0]-2) > 1e-12 || s.CurrentT() != 2 {
		t.Errorf("after recovery y=%v t=%v", y, s.CurrentT())
	}
}

func TestSolver_NonFiniteDerivative(t *testing.T) {
	sys := dynamo.SystemFunc(1, func(t float64, y, f []float64) error {
		f[0] = math.NaN()
		return nil
	})
	s, _ := NewSolver(dynamo.State{1}, 0, 1, 1e-8, sys)
	if _, err := s.Evolve(); !errors.Is(err, dynamo.ErrNumerical) {
		t.Errorf("got %v, want numerical error", err)
	}
}

func TestSolver_MaxStepsIsSoft(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	var kinds []WarningKind

	s, err := NewSolver(dynamo.State{1}, 0, 10, 1e-12, decay(5),
		WithMaxSteps(3),
		WithLogger(zap.New(core)),
		WithWarningCounter(func(k WarningKind) { kinds = append(kinds, k) }),
	)
	if err != nil {
		t.Fatal(err)
	}

	y, err := s.Evolve()
	if err != nil {
		t.Fatalf("max steps must not be fatal: %v", err)
	}
	if !y.IsValid() {
		t.Error("forced state is invalid")
	}
	if s.CurrentT() >= 10 {
		t.Errorf("expected integration to stop early, t=%v", s.CurrentT())
	}
	if len(kinds) != 1 || kinds[0] != WarnMaxSteps {
		t.Errorf("warnings = %v", kinds)
	}
	if s.NumWarnings() != 1 {
		t.Errorf("NumWarnings = %d", s.NumWarnings())
	}
	if logs.FilterField(zap.String("kind", string(WarnMaxSteps))).Len() != 1 {
		t.Errorf("expected one max_steps log entry, got %v", logs.All())
	}
}

func TestSolver_StepUnderflowIsSoft(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	var kinds []WarningKind

	// every trial stage lies past t=0 and is rejected, so the step shrinks
	// until it vanishes against t
	blowup := dynamo.SystemFunc(1, func(t float64, y, f []float64) error {
		if t > 0 {
			f[0] = math.NaN()
			return nil
		}
		f[0] = -y[0]
		return nil
	})
	s, err := NewSolver(dynamo.State{1}, 0, 1, 1e-8, blowup,
		WithLogger(zap.New(core)),
		WithWarningCounter(func(k WarningKind) { kinds = append(kinds, k) }),
	)
	if err != nil {
		t.Fatal(err)
	}

	y, err := s.Evolve()
	if err != nil {
		t.Fatalf("step underflow must not be fatal: %v", err)
	}
	if y[0] != 1 || s.CurrentT() != 0 {
		t.Errorf("expected the initial state to be kept, y=%v t=%v", y, s.CurrentT())
	}
	if len(kinds) != 1 || kinds[0] != WarnStepUnderflow {
		t.Errorf("warnings = %v", kinds)
	}
	if !errors.Is(kinds[0].Err(), dynamo.ErrStepUnderflow) {
		t.Error("warning kind maps to wrong sentinel")
	}
	if s.NumWarnings() != 1 {
		t.Errorf("NumWarnings = %d", s.NumWarnings())
	}
	if logs.FilterField(zap.String("kind", string(WarnStepUnderflow))).Len() != 1 {
		t.Errorf("expected one step_underflow log entry, got %v", logs.All())
	}
}

func TestSolver_MinStepIsSoft(t *testing.T) {
	var kinds []WarningKind
	s, _ := NewSolver(dynamo.State{1}, 0, 10, 1e-10, decay(1000),
		WithMinStep(1),
		WithWarningCounter(func(k WarningKind) { kinds = append(kinds, k) }),
	)

	if _, err := s.Evolve(); err != nil {
		t.Fatalf("min step must not be fatal: %v", err)
	}
	if len(kinds) != 1 || kinds[0] != WarnStepTooSmall {
		t.Errorf("warnings = %v", kinds)
	}
	if !errors.Is(kinds[0].Err(), dynamo.ErrStepTooSmall) {
		t.Error("warning kind maps to wrong sentinel")
	}
}

func TestSolver_NumEvaluations(t *testing.T) {
	calls := uint64(0)
	sys := dynamo.SystemFunc(2, func(t float64, y, f []float64) error {
		calls++
		return harmonicOscillator.Derive(t, y, f)
	})
	s, _ := NewSolver(dynamo.State{1, 0}, 0, 0.5, 1e-8, sys)

	prev := s.NumEvaluations()
	for i := 0; i < 5; i++ {
		if _, err := s.Evolve(); err != nil {
			t.Fatal(err)
		}
		if s.NumEvaluations() <= prev {
			t.Fatalf("evaluation count did not increase at step %d", i)
		}
		prev = s.NumEvaluations()
	}
	if s.NumEvaluations() != calls {
		t.Errorf("NumEvaluations = %d, derivative called %d times", s.NumEvaluations(), calls)
	}
}

func TestSolver_DoesNotAliasInput(t *testing.T) {
	y0 := dynamo.State{1}
	s, _ := NewSolver(y0, 0, 1, 1e-8, decay(1))
	y1, _ := s.Evolve()
	y1[0] = 42
	if y0[0] != 1 || s.State()[0] == 42 {
		t.Error("solver aliases caller slices")
	}
}
