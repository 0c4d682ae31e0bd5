package sim

import (
	"time"

	"github.com/san-kum/galevo/internal/evolve"
)

// Metric summarises a run from the records it produces, one per snapshot.
type Metric interface {
	Name() string
	Observe(r evolve.Record)
	Value() float64
	Reset()
}

// Observer is notified once a snapshot has been evolved, accounted and
// transferred.
type Observer interface {
	OnSnapshot(r evolve.Record, stats evolve.TransferStats)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(r evolve.Record, stats evolve.TransferStats)

func (f ObserverFunc) OnSnapshot(r evolve.Record, stats evolve.TransferStats) { f(r, stats) }

type Config struct {
	// Redshifts holds the redshift of every snapshot, indexed by snapshot.
	Redshifts []float64 `yaml:"-"`
	// TimestepsPerSnapshot splits each snapshot interval into equal evolve
	// calls. Star formation rates are averaged over the interval.
	TimestepsPerSnapshot int  `yaml:"timesteps_per_snapshot" env:"TIMESTEPS_PER_SNAPSHOT"`
	Parallelism          int  `yaml:"parallelism" env:"PARALLELISM"`
	OutputSFHistories    bool `yaml:"output_sf_histories" env:"OUTPUT_SF_HISTORIES"`
	// SkipFailedGalaxies logs and counts galaxies whose evolve call fails
	// instead of aborting the run.
	SkipFailedGalaxies bool `yaml:"skip_failed_galaxies" env:"SKIP_FAILED_GALAXIES"`
}

type Result struct {
	Log       *evolve.Log
	Snapshots int
	Transfers []evolve.TransferStats

	GalaxyEvaluations    uint64
	StarburstEvaluations uint64
	Warnings             uint64
	FailedGalaxies       int

	Metrics  map[string]float64
	Duration time.Duration
}
