package sim

import (
	"context"

	"github.com/san-kum/galevo/internal/dynamo"
	"github.com/san-kum/galevo/internal/galaxy"
)

// RunSpec is everything one ensemble member needs. Members never share a
// simulator or a forest.
type RunSpec struct {
	Simulator *Simulator
	Forest    *galaxy.Forest
	Config    Config
}

// Ensemble runs the same setup over forests drawn from consecutive seeds.
type Ensemble struct {
	build     func(seed int64) (RunSpec, error)
	numRuns   int
	seedStart int64
	limit     int
}

// NewEnsemble runs numRuns members, at most limit at a time.
func NewEnsemble(build func(seed int64) (RunSpec, error), numRuns int, seedStart int64, limit int) *Ensemble {
	return &Ensemble{build: build, numRuns: numRuns, seedStart: seedStart, limit: limit}
}

func (e *Ensemble) Run(ctx context.Context) ([]*Result, error) {
	results := make([]*Result, e.numRuns)

	err := dynamo.ForEach(ctx, e.numRuns, e.limit, func(ctx context.Context, idx int) error {
		spec, err := e.build(e.seedStart + int64(idx))
		if err != nil {
			return err
		}
		results[idx], err = spec.Simulator.Run(ctx, spec.Forest, spec.Config)
		return err
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
