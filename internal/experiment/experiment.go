// Package experiment assembles a runnable simulation from a configuration.
package experiment

import (
	"context"
	"fmt"

	"github.com/san-kum/galevo/internal/config"
	"github.com/san-kum/galevo/internal/dynamo"
	"github.com/san-kum/galevo/internal/feedback"
	"github.com/san-kum/galevo/internal/integrators"
	"github.com/san-kum/galevo/internal/metrics"
	"github.com/san-kum/galevo/internal/models"
	"github.com/san-kum/galevo/internal/physics"
	"github.com/san-kum/galevo/internal/scenario"
	"github.com/san-kum/galevo/internal/sim"
	"go.uber.org/zap"
)

type Option func(*Experiment)

func WithLogger(l *zap.Logger) Option {
	return func(e *Experiment) { e.logger = l }
}

func WithObservers(obs ...sim.Observer) Option {
	return func(e *Experiment) { e.observers = append(e.observers, obs...) }
}

type Experiment struct {
	cfg       *config.Config
	registry  *Registry
	logger    *zap.Logger
	observers []sim.Observer
}

func New(cfg *config.Config, opts ...Option) *Experiment {
	e := &Experiment{
		cfg:      cfg,
		registry: NewRegistry(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Outcome is a finished run with the scenario it evolved and its counters.
type Outcome struct {
	Result   *sim.Result
	Scenario *scenario.Scenario
	Recorder *metrics.Recorder
	Seed     int64
}

// Model builds the physical model described by the configuration. Solver
// warnings are counted on rec.
func (e *Experiment) Model(rec *metrics.Recorder) (*models.BasicPhysicalModel, physics.StarFormation, error) {
	params, err := e.cfg.FeedbackParameters()
	if err != nil {
		return nil, nil, err
	}
	sf, err := e.registry.StarFormation(e.cfg.StarFormation)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", dynamo.ErrConfiguration, err)
	}
	cooling, err := e.registry.Cooling(e.cfg.Cooling)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", dynamo.ErrConfiguration, err)
	}

	solverOpts := []integrators.Option{integrators.WithWarningCounter(rec.IntegratorWarning)}
	if e.cfg.MinStep > 0 {
		solverOpts = append(solverOpts, integrators.WithMinStep(e.cfg.MinStep))
	}
	if e.cfg.MaxSteps > 0 {
		solverOpts = append(solverOpts, integrators.WithMaxSteps(e.cfg.MaxSteps))
	}

	model := models.NewBasicPhysicalModel(e.cfg.Precision, cooling, feedback.New(params), sf,
		e.cfg.Recycling, e.cfg.GasCooling,
		models.WithLogger(e.logger),
		models.WithSolverOptions(solverOpts...),
	)
	return model, sf, nil
}

// Simulator builds a simulator with its own model and recorder.
func (e *Experiment) Simulator() (*sim.Simulator, *metrics.Recorder, error) {
	rec := metrics.NewRecorder()
	model, sf, err := e.Model(rec)
	if err != nil {
		return nil, nil, err
	}

	opts := []sim.Option{sim.WithLogger(e.logger), sim.WithRecorder(rec)}
	if p, ok := sf.(physics.GasPartition); ok {
		opts = append(opts, sim.WithPartition(p))
	}

	s := sim.New(model, e.cfg.Cosmology, opts...)
	for _, m := range e.registry.DefaultMetrics() {
		s.AddMetric(m)
	}
	for _, o := range e.observers {
		s.AddObserver(o)
	}
	return s, rec, nil
}

func (e *Experiment) Scenario(seed int64) (*scenario.Scenario, error) {
	p := e.cfg.Scenario
	p.Seed = seed
	return scenario.Generate(p)
}

// Run generates the configured scenario and evolves it.
func (e *Experiment) Run(ctx context.Context) (*Outcome, error) {
	seed := e.cfg.Scenario.Seed
	sc, err := e.Scenario(seed)
	if err != nil {
		return nil, err
	}
	s, rec, err := e.Simulator()
	if err != nil {
		return nil, err
	}

	e.logger.Info("starting run",
		zap.Int64("seed", seed),
		zap.Int("snapshots", len(sc.Redshifts)),
		zap.Int("subhalos", sc.Forest.SubhaloCount()),
		zap.Int("galaxies", sc.Galaxies),
		zap.String("feedback", e.cfg.StellarFeedback.Model),
	)

	runCfg := e.cfg.Run
	runCfg.Redshifts = sc.Redshifts
	result, err := s.Run(ctx, sc.Forest, runCfg)
	return &Outcome{Result: result, Scenario: sc, Recorder: rec, Seed: seed}, err
}

// Ensemble runs n scenarios from consecutive seeds, at most limit at a time.
// Observers are not attached to ensemble members.
func (e *Experiment) Ensemble(ctx context.Context, n, limit int) ([]*sim.Result, error) {
	build := func(seed int64) (sim.RunSpec, error) {
		sc, err := e.Scenario(seed)
		if err != nil {
			return sim.RunSpec{}, err
		}
		member := *e
		member.observers = nil
		s, _, err := member.Simulator()
		if err != nil {
			return sim.RunSpec{}, err
		}
		runCfg := e.cfg.Run
		runCfg.Redshifts = sc.Redshifts
		return sim.RunSpec{Simulator: s, Forest: sc.Forest, Config: runCfg}, nil
	}
	return sim.NewEnsemble(build, n, e.cfg.Scenario.Seed, limit).Run(ctx)
}

func (e *Experiment) Registry() *Registry { return e.registry }
