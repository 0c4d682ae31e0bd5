package integrators

import (
	"math"
	"strconv"

	"github.com/san-kum/galevo/internal/dynamo"
	"go.uber.org/zap"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

const (
	safety   = 0.9
	minScale = 0.2
	maxScale = 10.0

	DefaultMaxSteps = 100000
)

// WarningKind classifies a soft integrator failure.
type WarningKind string

const (
	WarnStepUnderflow WarningKind = "step_underflow"
	WarnStepTooSmall  WarningKind = "step_too_small"
	WarnMaxSteps      WarningKind = "max_steps"
)

// Err returns the sentinel describing the warning.
func (k WarningKind) Err() error {
	switch k {
	case WarnStepUnderflow:
		return dynamo.ErrStepUnderflow
	case WarnStepTooSmall:
		return dynamo.ErrStepTooSmall
	default:
		return dynamo.ErrMaxSteps
	}
}

type Option func(*Solver)

// WithMinStep sets the smallest internal step the solver may take before
// giving up on the requested accuracy.
func WithMinStep(h float64) Option {
	return func(s *Solver) { s.minStep = h }
}

// WithMaxSteps caps the number of internal step attempts per Evolve call.
func WithMaxSteps(n int) Option {
	return func(s *Solver) { s.maxSteps = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Solver) { s.logger = l }
}

// WithWarningCounter registers a callback invoked once per soft failure.
func WithWarningCounter(fn func(WarningKind)) Option {
	return func(s *Solver) { s.onWarning = fn }
}

// Solver integrates a System over fixed external steps of deltaT using
// embedded Dormand-Prince 5(4) adaptive stepping. It is not safe for
// concurrent use.
type Solver struct {
	sys       dynamo.System
	y         dynamo.State
	t         float64
	t0        float64
	deltaT    float64
	precision float64
	step      int
	h         float64

	minStep  float64
	maxSteps int

	evaluations uint64
	warnings    uint64

	logger    *zap.Logger
	onWarning func(WarningKind)

	k1, k2, k3, k4, k5, k6, k7 []float64
	tmp, yNew, ySaved          []float64
	haveK1                     bool
}

// NewSolver prepares a solver starting at (t0, y0). The state is copied.
func NewSolver(y0 dynamo.State, t0, deltaT, precision float64, sys dynamo.System, opts ...Option) (*Solver, error) {
	if len(y0) != sys.Dim() {
		return nil, dynamo.DimensionError(len(y0), sys.Dim())
	}
	if deltaT <= 0 || math.IsNaN(deltaT) {
		return nil, dynamo.ConfigError("solver.delta_t", formatFloat(deltaT), "Must be positive")
	}
	if precision <= 0 || math.IsNaN(precision) {
		return nil, dynamo.ConfigError("solver.precision", formatFloat(precision), "Must be positive")
	}

	s := &Solver{
		sys:       sys,
		y:         y0.Clone(),
		t:         t0,
		t0:        t0,
		deltaT:    deltaT,
		precision: precision,
		h:         deltaT,
		maxSteps:  DefaultMaxSteps,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ensureScratch(len(y0))
	return s, nil
}

func (s *Solver) ensureScratch(n int) {
	if len(s.k1) == n {
		return
	}
	s.k1 = make([]float64, n)
	s.k2 = make([]float64, n)
	s.k3 = make([]float64, n)
	s.k4 = make([]float64, n)
	s.k5 = make([]float64, n)
	s.k6 = make([]float64, n)
	s.k7 = make([]float64, n)
	s.tmp = make([]float64, n)
	s.yNew = make([]float64, n)
	s.ySaved = make([]float64, n)
}

// NumEvaluations reports the cumulative number of derivative evaluations.
func (s *Solver) NumEvaluations() uint64 { return s.evaluations }

// NumWarnings reports how many soft failures were force-accepted.
func (s *Solver) NumWarnings() uint64 { return s.warnings }

func (s *Solver) CurrentT() float64 { return s.t }

// State returns the solver's current state. The slice is owned by the solver.
func (s *Solver) State() dynamo.State { return s.y }

// Evolve advances the solution to t0 + step*deltaT and returns a copy of the
// new state. Soft failures return the best state reached with a nil error.
// A fatal error leaves the solver as it was before the call.
func (s *Solver) Evolve() (dynamo.State, error) {
	s.step++
	target := s.t0 + float64(s.step)*s.deltaT

	copy(s.ySaved, s.y)
	tSaved, hSaved := s.t, s.h

	if err := s.apply(target); err != nil {
		copy(s.y, s.ySaved)
		s.t, s.h = tSaved, hSaved
		s.step--
		s.haveK1 = false
		return nil, err
	}
	return s.y.Clone(), nil
}

func (s *Solver) apply(target float64) error {
	for attempts := 0; target-s.t > 0; attempts++ {
		if attempts >= s.maxSteps {
			s.warn(WarnMaxSteps, target)
			return nil
		}

		h := math.Min(s.h, target-s.t)
		ulp := math.Nextafter(math.Abs(s.t), math.Inf(1)) - math.Abs(s.t)
		if h <= 2*ulp {
			s.warn(WarnStepUnderflow, target)
			return nil
		}
		// The final approach to target may legitimately be shorter than the
		// minimum, only a shrinking step counts.
		if s.minStep > 0 && s.h < s.minStep && h == s.h {
			s.warn(WarnStepTooSmall, target)
			return nil
		}

		errRatio, err := s.trial(h)
		if err != nil {
			return &dynamo.NumericalError{Step: s.step, Time: s.t, Status: "user function signaled an error", Wrapped: err}
		}
		if !dynamo.State(s.k1).IsValid() {
			return &dynamo.NumericalError{Step: s.step, Time: s.t, Status: "non-finite derivative at accepted state"}
		}

		// A non-finite trial is rejected like an inaccurate one.
		if math.IsNaN(errRatio) || math.IsInf(errRatio, 1) {
			s.h = h * minScale
			continue
		}
		if errRatio > 1 {
			s.h = h * math.Max(minScale, safety*math.Pow(errRatio, -0.25))
			continue
		}

		s.t += h
		if target-s.t < 1e-14*math.Abs(target) {
			s.t = target
		}
		copy(s.y, s.yNew)
		s.k1, s.k7 = s.k7, s.k1

		if errRatio > 0 {
			s.h = h * math.Min(maxScale, safety*math.Pow(errRatio, -0.2))
		} else {
			s.h = h * maxScale
		}
	}
	return nil
}

// trial computes one Dormand-Prince step of size h from (t, y) into yNew and
// returns the scaled error estimate relative to the precision.
func (s *Solver) trial(h float64) (float64, error) {
	x, t, n := s.y, s.t, len(s.y)

	if !s.haveK1 {
		if err := s.derive(t, x, s.k1); err != nil {
			return 0, err
		}
		s.haveK1 = true
	}
	k1 := s.k1

	for i := 0; i < n; i++ {
		s.tmp[i] = x[i] + h*b21*k1[i]
	}
	if err := s.derive(t+a2*h, s.tmp, s.k2); err != nil {
		return 0, err
	}

	for i := 0; i < n; i++ {
		s.tmp[i] = x[i] + h*(b31*k1[i]+b32*s.k2[i])
	}
	if err := s.derive(t+a3*h, s.tmp, s.k3); err != nil {
		return 0, err
	}

	for i := 0; i < n; i++ {
		s.tmp[i] = x[i] + h*(b41*k1[i]+b42*s.k2[i]+b43*s.k3[i])
	}
	if err := s.derive(t+a4*h, s.tmp, s.k4); err != nil {
		return 0, err
	}

	for i := 0; i < n; i++ {
		s.tmp[i] = x[i] + h*(b51*k1[i]+b52*s.k2[i]+b53*s.k3[i]+b54*s.k4[i])
	}
	if err := s.derive(t+a5*h, s.tmp, s.k5); err != nil {
		return 0, err
	}

	for i := 0; i < n; i++ {
		s.tmp[i] = x[i] + h*(b61*k1[i]+b62*s.k2[i]+b63*s.k3[i]+b64*s.k4[i]+b65*s.k5[i])
	}
	if err := s.derive(t+h, s.tmp, s.k6); err != nil {
		return 0, err
	}

	for i := 0; i < n; i++ {
		s.yNew[i] = x[i] + h*(c1*k1[i]+c3*s.k3[i]+c4*s.k4[i]+c5*s.k5[i]+c6*s.k6[i])
	}
	if !dynamo.State(k1).IsValid() || !dynamo.State(s.yNew).IsValid() {
		return math.NaN(), nil
	}

	// first-same-as-last: k7 becomes k1 of the next step when accepted
	if err := s.derive(t+h, s.yNew, s.k7); err != nil {
		return 0, err
	}

	errMax := 0.0
	for i := 0; i < n; i++ {
		errEst := h * (dc1*k1[i] + dc3*s.k3[i] + dc4*s.k4[i] + dc5*s.k5[i] + dc6*s.k6[i] + dc7*s.k7[i])
		scale := math.Abs(x[i]) + math.Abs(h*k1[i]) + 1e-10
		errMax = math.Max(errMax, math.Abs(errEst)/scale)
	}
	return errMax / s.precision, nil
}

func (s *Solver) derive(t float64, y, f []float64) error {
	s.evaluations++
	return s.sys.Derive(t, y, f)
}

func (s *Solver) warn(kind WarningKind, target float64) {
	s.warnings++
	s.logger.Warn("ODE: forcing integration to finish regardless of desired accuracy",
		zap.String("kind", string(kind)),
		zap.Error(kind.Err()),
		zap.Int("step", s.step),
		zap.Float64("t", s.t),
		zap.Float64("target", target),
		zap.Float64("h", s.h),
	)
	if s.onWarning != nil {
		s.onWarning(kind)
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
