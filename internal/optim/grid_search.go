// Package optim calibrates model parameters by exhaustive search.
package optim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/galevo/internal/config"
	"github.com/san-kum/galevo/internal/dynamo"
	"github.com/san-kum/galevo/internal/experiment"
	"go.uber.org/zap"
)

// Setter writes one searched parameter into a configuration.
type Setter func(c *config.Config, v float64)

func ptr(v float64) *float64 { return &v }

// Parameters are the names a grid can span.
var Parameters = map[string]Setter{
	"beta_disk":          func(c *config.Config, v float64) { c.StellarFeedback.BetaDisk = ptr(v) },
	"v_sn":               func(c *config.Config, v float64) { c.StellarFeedback.VSN = ptr(v) },
	"eps_halo":           func(c *config.Config, v float64) { c.StellarFeedback.EpsHalo = ptr(v) },
	"eps_disk":           func(c *config.Config, v float64) { c.StellarFeedback.EpsDisk = ptr(v) },
	"redshift_power":     func(c *config.Config, v float64) { c.StellarFeedback.RedshiftPower = v },
	"nu_sf":              func(c *config.Config, v float64) { c.StarFormation.NuSF = v },
	"molecular_fraction": func(c *config.Config, v float64) { c.StarFormation.MolecularFraction = v },
	"cooling_efficiency": func(c *config.Config, v float64) { c.Cooling.Efficiency = v },
	"recycle":            func(c *config.Config, v float64) { c.Recycling.Recycle = v },
	"yield":              func(c *config.Config, v float64) { c.Recycling.Yield = v },
}

func ParameterNames() []string {
	names := make([]string, 0, len(Parameters))
	for n := range Parameters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Objective scores a finished run; lower is better.
type Objective func(cfg *config.Config, out *experiment.Outcome) (float64, error)

// MetricObjective is the distance of a run metric from target.
func MetricObjective(name string, target float64) Objective {
	return func(_ *config.Config, out *experiment.Outcome) (float64, error) {
		v, ok := out.Result.Metrics[name]
		if !ok {
			return 0, fmt.Errorf("run has no metric %s", name)
		}
		return math.Abs(v - target), nil
	}
}

// StellarMassObjective is the distance in dex of the final stellar mass
// from target.
func StellarMassObjective(target float64) Objective {
	return func(_ *config.Config, out *experiment.Outcome) (float64, error) {
		records := out.Result.Log.Records()
		if len(records) == 0 {
			return 0, errors.New("run has no snapshots")
		}
		m := records[len(records)-1].MStars.Mass
		if m <= 0 || target <= 0 {
			return math.Inf(1), nil
		}
		return math.Abs(math.Log10(m) - math.Log10(target)), nil
	}
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	logger     *zap.Logger
}

func NewGridSearch(params []string, ranges [][]float64, logger *zap.Logger) (*GridSearch, error) {
	if len(params) == 0 || len(params) != len(ranges) {
		return nil, dynamo.ConfigError("grid", fmt.Sprintf("%d names/%d ranges", len(params), len(ranges)), "one value range per parameter")
	}
	for i, name := range params {
		if _, ok := Parameters[name]; !ok {
			return nil, dynamo.ConfigError("grid", name, "unknown parameter")
		}
		if len(ranges[i]) == 0 {
			return nil, dynamo.ConfigError("grid", name, "empty value range")
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GridSearch{paramNames: params, ranges: ranges, logger: logger}, nil
}

// Result is the best grid point found.
type Result struct {
	Params    map[string]float64
	Value     float64
	Evaluated int
	// Failed points are runs or objectives that returned an error.
	Failed int
}

// Search runs every grid point on a copy of base and keeps the lowest
// objective. Failed points are skipped; cancellation stops the search.
func (g *GridSearch) Search(ctx context.Context, base *config.Config, objective Objective) (*Result, error) {
	res := &Result{Value: math.Inf(1)}
	if err := g.searchRecursive(ctx, 0, make(map[string]float64), base, objective, res); err != nil {
		return nil, err
	}
	if res.Params == nil {
		return res, fmt.Errorf("all %d grid points failed", res.Failed)
	}
	return res, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	base *config.Config,
	objective Objective,
	res *Result,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if depth == len(g.paramNames) {
		cfg := base.Clone()
		for name, v := range current {
			Parameters[name](cfg, v)
		}

		val, err := g.evaluate(ctx, cfg, objective)
		res.Evaluated++
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			res.Failed++
			g.logger.Warn("grid point failed", zap.Any("params", current), zap.Error(err))
			return nil
		}
		g.logger.Debug("grid point", zap.Any("params", current), zap.Float64("objective", val))

		if res.Params == nil || val < res.Value {
			res.Value = val
			res.Params = make(map[string]float64, len(current))
			for k, v := range current {
				res.Params[k] = v
			}
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, base, objective, res); err != nil {
			return err
		}
	}
	return nil
}

func (g *GridSearch) evaluate(ctx context.Context, cfg *config.Config, objective Objective) (float64, error) {
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	out, err := experiment.New(cfg, experiment.WithLogger(g.logger)).Run(ctx)
	if err != nil {
		return 0, err
	}
	return objective(cfg, out)
}
