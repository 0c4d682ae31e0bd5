package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/san-kum/galevo/internal/evolve"
	"github.com/san-kum/galevo/internal/integrators"
)

const namespace = "galevo"

// Recorder exports run diagnostics as Prometheus metrics on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	evaluations     *prometheus.CounterVec
	warnings        *prometheus.CounterVec
	failures        *prometheus.CounterVec
	lostBaryons     prometheus.Counter
	snapshots       prometheus.Counter
	galaxies        prometheus.Gauge
	stellarMass     prometheus.Gauge
	sfr             prometheus.Gauge
	snapshotSeconds prometheus.Histogram

	warningTotal atomic.Uint64
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ode_evaluations_total",
			Help:      "Derivative evaluations performed by the ODE solver.",
		}, []string{"kind"}),
		warnings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "integrator_warnings_total",
			Help:      "Integrations force-accepted without reaching the requested accuracy.",
		}, []string{"kind"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "galaxy_failures_total",
			Help:      "Galaxies skipped after a fatal evolve error.",
		}, []string{"kind"}),
		lostBaryons: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lost_baryon_mass_total",
			Help:      "Baryon mass in branches without descendant, in Msun.",
		}),
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Snapshots evolved.",
		}),
		galaxies: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "galaxies",
			Help:      "Galaxies in the last snapshot evolved.",
		}),
		stellarMass: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stellar_mass",
			Help:      "Total stellar mass in the last snapshot evolved, in Msun.",
		}),
		sfr: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sfr",
			Help:      "Total star formation rate in the last snapshot evolved, in Msun/Gyr.",
		}),
		snapshotSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_duration_seconds",
			Help:      "Wall time spent per snapshot.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}

	r.registry.MustRegister(
		r.evaluations, r.warnings, r.failures, r.lostBaryons, r.snapshots,
		r.galaxies, r.stellarMass, r.sfr, r.snapshotSeconds,
	)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// IntegratorWarning counts one soft solver failure. It is safe for
// concurrent use and matches integrators.WithWarningCounter.
func (r *Recorder) IntegratorWarning(kind integrators.WarningKind) {
	r.warnings.WithLabelValues(string(kind)).Inc()
	r.warningTotal.Add(1)
}

func (r *Recorder) Warnings() uint64 { return r.warningTotal.Load() }

// GalaxyFailure counts a galaxy skipped because of err kind.
func (r *Recorder) GalaxyFailure(kind string) {
	r.failures.WithLabelValues(kind).Inc()
}

func (r *Recorder) ObserveEvaluations(kind string, n uint64) {
	r.evaluations.WithLabelValues(kind).Add(float64(n))
}

func (r *Recorder) ObserveSnapshot(rec evolve.Record, elapsed time.Duration) {
	r.snapshots.Inc()
	r.lostBaryons.Add(rec.LostBaryonMass)
	r.galaxies.Set(float64(rec.Galaxies))
	r.stellarMass.Set(rec.MStars.Mass)
	r.sfr.Set(rec.SFRDisk + rec.SFRBurst)
	r.snapshotSeconds.Observe(elapsed.Seconds())
}

// Snapshot flattens every counter and gauge into name{labels} -> value.
func (r *Recorder) Snapshot() (map[string]float64, error) {
	families, err := r.registry.Gather()
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			for _, lp := range m.GetLabel() {
				name += "{" + lp.GetName() + "=" + lp.GetValue() + "}"
			}
			switch {
			case m.GetCounter() != nil:
				out[name] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				out[name] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				out[name+"_count"] = float64(m.GetHistogram().GetSampleCount())
				out[name+"_sum"] = m.GetHistogram().GetSampleSum()
			}
		}
	}
	return out, nil
}
