package sim

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/san-kum/galevo/internal/cosmology"
	"github.com/san-kum/galevo/internal/dynamo"
	"github.com/san-kum/galevo/internal/evolve"
	"github.com/san-kum/galevo/internal/galaxy"
	"github.com/san-kum/galevo/internal/metrics"
	"github.com/san-kum/galevo/internal/models"
	"github.com/san-kum/galevo/internal/physics"
	"go.uber.org/zap"
)

type Option func(*Simulator)

func WithLogger(l *zap.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

// WithRecorder exports solver and budget counters of every run.
func WithRecorder(r *metrics.Recorder) Option {
	return func(s *Simulator) { s.recorder = r }
}

// WithPartition enables the atomic/molecular split in the accounting.
func WithPartition(p physics.GasPartition) Option {
	return func(s *Simulator) { s.partition = p }
}

// Simulator drives a forest through its snapshots: every galaxy is evolved
// over the interval to the next snapshot, the budget is recorded and the
// galaxies are moved to their descendants.
type Simulator struct {
	model     models.PhysicalModel
	cosmo     cosmology.Cosmology
	logger    *zap.Logger
	recorder  *metrics.Recorder
	partition physics.GasPartition
	metrics   []Metric
	observers []Observer
}

func New(model models.PhysicalModel, cosmo cosmology.Cosmology, opts ...Option) *Simulator {
	s := &Simulator{
		model:     model,
		cosmo:     cosmo,
		logger:    zap.NewNop(),
		metrics:   make([]Metric, 0),
		observers: make([]Observer, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// Run evolves forest in place. The forest must not be shared with another
// run. On error the partial result is returned along with it.
func (s *Simulator) Run(ctx context.Context, forest *galaxy.Forest, cfg Config) (*Result, error) {
	if err := s.validateConfig(forest, cfg); err != nil {
		return nil, err
	}
	if cfg.TimestepsPerSnapshot == 0 {
		cfg.TimestepsPerSnapshot = 1
	}

	start := time.Now()
	result := &Result{
		Log:     evolve.NewLog(),
		Metrics: make(map[string]float64),
	}

	for _, m := range s.metrics {
		m.Reset()
	}
	s.model.ResetODEEvaluations()
	var warningsBefore uint64
	if s.recorder != nil {
		warningsBefore = s.recorder.Warnings()
	}

	transferer := evolve.NewTransferer(forest,
		evolve.WithTransferLogger(s.logger),
		evolve.WithParallelism(cfg.Parallelism),
	)

	defer func() {
		result.GalaxyEvaluations = s.model.GalaxyODEEvaluations()
		result.StarburstEvaluations = s.model.GalaxyStarburstODEEvaluations()
		if s.recorder != nil {
			result.Warnings = s.recorder.Warnings() - warningsBefore
		}
		for _, m := range s.metrics {
			result.Metrics[m.Name()] = m.Value()
		}
		result.Duration = time.Since(start)
	}()

	snaps := forest.Snapshots()
	var galaxyEvals, burstEvals uint64

	for _, snap := range snaps[:len(snaps)-1] {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		snapStart := time.Now()
		z, zNext := cfg.Redshifts[snap], cfg.Redshifts[snap+1]
		ageStart, ageEnd := s.cosmo.Age(z), s.cosmo.Age(zNext)
		deltaT := ageEnd - ageStart
		halos := forest.Halos(snap)

		failed, err := s.evolveSnapshot(ctx, halos, cfg, ageStart, deltaT)
		result.FailedGalaxies += failed
		if err != nil {
			return result, fmt.Errorf("snapshot %d: %w", snap, err)
		}

		// The budget is taken before the transfer resets the star formation
		// accumulators; lost baryons are filled in from the transfer.
		rec := evolve.TrackTotalBaryons(halos, snap, evolve.AccountingOptions{
			Redshift:          z,
			DeltaT:            deltaT,
			MeanAge:           ageStart + deltaT/2,
			OutputSFHistories: cfg.OutputSFHistories,
			Partition:         s.partition,
		})

		stats, err := transferer.TransferGalaxiesToNextSnapshot(ctx, halos, snap)
		result.Transfers = append(result.Transfers, stats)
		if err != nil {
			return result, fmt.Errorf("snapshot %d: %w", snap, err)
		}
		rec.LostBaryonMass = stats.LostBaryonMass
		rec.SubhalosWithoutDescendant = stats.SubhalosWithoutDescendant

		if err := result.Log.Append(rec); err != nil {
			return result, err
		}
		result.Snapshots++

		for _, m := range s.metrics {
			m.Observe(rec)
		}
		for _, obs := range s.observers {
			obs.OnSnapshot(rec, stats)
		}
		if s.recorder != nil {
			ge, be := s.model.GalaxyODEEvaluations(), s.model.GalaxyStarburstODEEvaluations()
			s.recorder.ObserveEvaluations("galaxy", ge-galaxyEvals)
			s.recorder.ObserveEvaluations("starburst", be-burstEvals)
			galaxyEvals, burstEvals = ge, be
			s.recorder.ObserveSnapshot(rec, time.Since(snapStart))
		}

		s.logger.Info("evolved snapshot",
			zap.Int("snapshot", snap),
			zap.Float64("z", z),
			zap.Float64("delta_t", deltaT),
			zap.Int("galaxies", rec.Galaxies),
			zap.Float64("m_stars", rec.MStars.Mass),
			zap.Float64("sfr", rec.SFRDisk+rec.SFRBurst),
			zap.Duration("elapsed", time.Since(snapStart)),
		)
	}

	return result, nil
}

// evolveSnapshot evolves every galaxy of halos over deltaT. Subhalos run in
// parallel; the galaxies of one subhalo share its reservoirs and run in
// order.
func (s *Simulator) evolveSnapshot(ctx context.Context, halos []*galaxy.Halo, cfg Config, ageStart, deltaT float64) (int, error) {
	var subhalos []*galaxy.Subhalo
	for _, h := range halos {
		subhalos = append(subhalos, h.AllSubhalos()...)
	}

	var failed atomic.Int64
	err := dynamo.ForEach(ctx, len(subhalos), cfg.Parallelism, func(ctx context.Context, i int) error {
		sh := subhalos[i]
		for _, g := range sh.Galaxies {
			if g.Type != galaxy.Type2 && sh.Vmax > 0 {
				g.Vmax = sh.Vmax
			}
			err := s.evolveGalaxy(sh, g, cfg.TimestepsPerSnapshot, ageStart, deltaT)
			if err == nil {
				continue
			}
			if !cfg.SkipFailedGalaxies || !skippable(err) {
				return err
			}
			failed.Add(1)
			if s.recorder != nil {
				s.recorder.GalaxyFailure(failureKind(err))
			}
			s.logger.Warn("skipping galaxy after failed evolve",
				zap.Int64("galaxy", g.ID),
				zap.Int64("subhalo", sh.ID),
				zap.Error(err),
			)
		}
		return nil
	})
	return int(failed.Load()), err
}

func (s *Simulator) evolveGalaxy(sh *galaxy.Subhalo, g *galaxy.Galaxy, steps int, ageStart, deltaT float64) error {
	dt := deltaT / float64(steps)
	for step := 0; step < steps; step++ {
		z := s.cosmo.Redshift(ageStart + float64(step)*dt)

		if err := s.model.EvolveGalaxy(sh, g, z, dt); err != nil {
			return err
		}
		if g.BulgeGas.Mass > 0 {
			if err := s.model.EvolveGalaxyStarburst(sh, g, z, dt, g.Interaction.Mergers() > 0); err != nil {
				return err
			}
		}
	}
	if steps > 1 {
		g.ScaleSFR(1 / float64(steps))
	}
	return nil
}

func skippable(err error) bool {
	return errors.Is(err, dynamo.ErrNumerical) || errors.Is(err, dynamo.ErrInvariantViolation)
}

func failureKind(err error) string {
	if errors.Is(err, dynamo.ErrNumerical) {
		return "numerical"
	}
	return "invariant"
}

func (s *Simulator) validateConfig(forest *galaxy.Forest, cfg Config) error {
	if cfg.TimestepsPerSnapshot < 0 {
		return dynamo.ConfigError("timesteps_per_snapshot", strconv.Itoa(cfg.TimestepsPerSnapshot), "Value cannot be negative.")
	}
	if cfg.Parallelism < 0 {
		return dynamo.ConfigError("parallelism", strconv.Itoa(cfg.Parallelism), "Value cannot be negative.")
	}

	snaps := forest.Snapshots()
	if len(snaps) < 2 {
		return fmt.Errorf("%w: forest spans %d snapshots, at least 2 are needed", dynamo.ErrConfiguration, len(snaps))
	}
	if last := snaps[len(snaps)-1]; len(cfg.Redshifts) <= last {
		return fmt.Errorf("%w: %d redshifts given, snapshot %d needs one", dynamo.ErrConfiguration, len(cfg.Redshifts), last)
	}
	for _, snap := range snaps[:len(snaps)-1] {
		if cfg.Redshifts[snap+1] >= cfg.Redshifts[snap] {
			return fmt.Errorf("%w: redshift of snapshot %d (%g) is not below snapshot %d (%g)",
				dynamo.ErrConfiguration, snap+1, cfg.Redshifts[snap+1], snap, cfg.Redshifts[snap])
		}
	}
	return nil
}
