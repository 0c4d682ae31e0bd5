package models

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/san-kum/galevo/internal/dynamo"
	"github.com/san-kum/galevo/internal/feedback"
	"github.com/san-kum/galevo/internal/integrators"
	"github.com/san-kum/galevo/internal/physics"
	"go.uber.org/zap"
)

type Option func(*BasicPhysicalModel)

// WithSolverOptions forwards options to every solver the model creates.
func WithSolverOptions(opts ...integrators.Option) Option {
	return func(m *BasicPhysicalModel) { m.solverOpts = append(m.solverOpts, opts...) }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *BasicPhysicalModel) { m.logger = l }
}

// BasicPhysicalModel is the 17 equation model of disk and burst star
// formation with cooling, recycling, metal enrichment and feedback outflows.
type BasicPhysicalModel struct {
	precision     float64
	cooling       physics.GasCooling
	feedback      feedback.Feedback
	starFormation physics.StarFormation
	recycling     physics.RecyclingParameters
	gasCooling    physics.GasCoolingParameters

	solverOpts []integrators.Option
	logger     *zap.Logger
	pool       *dynamo.StatePool

	galaxyEvaluations    atomic.Uint64
	starburstEvaluations atomic.Uint64
}

func NewBasicPhysicalModel(
	precision float64,
	cooling physics.GasCooling,
	fb feedback.Feedback,
	sf physics.StarFormation,
	recycling physics.RecyclingParameters,
	gasCooling physics.GasCoolingParameters,
	opts ...Option,
) *BasicPhysicalModel {
	m := &BasicPhysicalModel{
		precision:     precision,
		cooling:       cooling,
		feedback:      fb,
		starFormation: sf,
		recycling:     recycling,
		gasCooling:    gasCooling,
		logger:        zap.NewNop(),
		pool:          dynamo.NewStatePool(NumEquations),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.solverOpts = append([]integrators.Option{integrators.WithLogger(m.logger)}, m.solverOpts...)
	return m
}

func (m *BasicPhysicalModel) NumEquations() int { return NumEquations }

// Evaluate writes the rates of change of y into f. It only reads its inputs
// and may be called any number of times per step.
func (m *BasicPhysicalModel) Evaluate(t float64, y, f []float64, p *SolverParams) error {
	if len(y) != NumEquations || len(f) != NumEquations {
		return dynamo.DimensionError(len(y), NumEquations)
	}

	R := m.recycling.Recycle
	yield := m.recycling.Yield
	mcoolrate := p.MCoolRate

	zcold := m.gasCooling.PreEnrichZ
	zhot := m.gasCooling.PreEnrichZ

	jgas := 2 * p.VGal * p.RGas / physics.RDiskHalfScale
	if y[IdxDiskGas] > 0 && y[IdxDiskGasMetals] > 0 {
		zcold = y[IdxDiskGasMetals] / y[IdxDiskGas]
		if !p.Burst {
			jgas = y[IdxDiskGasAM] / y[IdxDiskGas]
		}
	}
	if y[IdxColdHaloGas] > 0 && y[IdxColdHaloGasMetals] > 0 {
		zhot = y[IdxColdHaloGasMetals] / y[IdxColdHaloGas]
	}

	sfr, jrate := m.starFormation.StarFormationRate(y[IdxDiskGas], y[IdxStars], p.RGas, p.RStar, zcold, p.Redshift, p.Burst, p.VGal, jgas)
	if math.IsNaN(sfr) || math.IsInf(sfr, 0) {
		return fmt.Errorf("star formation rate is %v", sfr)
	}

	out := m.feedback.OutflowRate(sfr, p.VSubh, p.VGal, p.Redshift)
	beta1, beta2 := out.Beta1, out.Beta2
	betaj1, betaj2 := out.BetaJ1, out.BetaJ2

	rsub := 1 - R

	f[IdxStars] = sfr * rsub
	f[IdxDiskGas] = mcoolrate - (rsub+beta1)*sfr
	f[IdxColdHaloGas] = -mcoolrate
	f[IdxHotHaloGas] = (beta1 - beta2) * sfr
	f[IdxEjectedGas] = beta2 * sfr

	f[IdxStarsMetals] = rsub * zcold * sfr
	f[IdxDiskGasMetals] = mcoolrate*zhot + sfr*(yield-(rsub+beta1)*zcold)
	f[IdxColdHaloGasMetals] = -mcoolrate * zhot
	f[IdxHotHaloGasMetals] = (beta1 - beta2) * zcold * sfr
	f[IdxEjectedGasMetals] = beta2 * zcold * sfr

	f[IdxFormedStars] = sfr
	f[IdxFormedMetals] = zcold * sfr

	f[IdxStarsAM] = rsub * jrate
	f[IdxDiskGasAM] = mcoolrate*p.JColdHalo - (rsub+betaj1)*jrate
	f[IdxColdHaloGasAM] = -mcoolrate * p.JColdHalo
	f[IdxHotHaloGasAM] = (betaj1 - betaj2) * jrate
	f[IdxEjectedGasAM] = betaj2 * jrate

	return nil
}

// System binds the evaluator to one set of solver parameters.
func (m *BasicPhysicalModel) System(p *SolverParams) dynamo.System {
	return dynamo.SystemFunc(NumEquations, func(t float64, y, f []float64) error {
		return m.Evaluate(t, y, f, p)
	})
}

// Solve integrates y0 over p.DeltaT and reports the derivative evaluations
// spent. y0 must have NumEquations entries.
func (m *BasicPhysicalModel) Solve(y0 dynamo.State, p *SolverParams) (dynamo.State, uint64, error) {
	solver, err := integrators.NewSolver(y0, 0, p.DeltaT, m.precision, m.System(p), m.solverOpts...)
	if err != nil {
		return nil, 0, err
	}
	y1, err := solver.Evolve()
	return y1, solver.NumEvaluations(), err
}

func (m *BasicPhysicalModel) GalaxyODEEvaluations() uint64 {
	return m.galaxyEvaluations.Load()
}

func (m *BasicPhysicalModel) GalaxyStarburstODEEvaluations() uint64 {
	return m.starburstEvaluations.Load()
}

// StarFormationIntegrationIntervals reports the star formation law's own
// counter when it keeps one.
func (m *BasicPhysicalModel) StarFormationIntegrationIntervals() uint64 {
	if c, ok := m.starFormation.(interface{ IntegrationIntervals() uint64 }); ok {
		return c.IntegrationIntervals()
	}
	return 0
}

func (m *BasicPhysicalModel) ResetODEEvaluations() {
	m.galaxyEvaluations.Store(0)
	m.starburstEvaluations.Store(0)
	if c, ok := m.starFormation.(interface{ ResetIntegrationIntervals() }); ok {
		c.ResetIntegrationIntervals()
	}
}
