package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/galevo/internal/config"
	"github.com/san-kum/galevo/internal/metrics"
	"github.com/san-kum/galevo/internal/physics"
	"github.com/san-kum/galevo/internal/sim"
)

type Registry struct {
	starFormation map[string]func(config.StarFormationConfig) physics.StarFormation
	cooling       map[string]func(config.CoolingConfig) physics.GasCooling
	metrics       map[string]func() sim.Metric
}

func NewRegistry() *Registry {
	r := &Registry{
		starFormation: make(map[string]func(config.StarFormationConfig) physics.StarFormation),
		cooling:       make(map[string]func(config.CoolingConfig) physics.GasCooling),
		metrics:       make(map[string]func() sim.Metric),
	}

	r.starFormation["constant_efficiency"] = func(c config.StarFormationConfig) physics.StarFormation {
		sf := physics.NewConstantEfficiency()
		sf.NuSF = c.NuSF
		sf.MolecularFraction = c.MolecularFraction
		sf.BurstTimeFactor = c.BurstTimeFactor
		sf.MinBurstTime = c.MinBurstTime
		return sf
	}

	r.cooling["reservoir"] = func(c config.CoolingConfig) physics.GasCooling {
		return &physics.ReservoirCooling{Efficiency: c.Efficiency, HotEfficiency: c.HotEfficiency}
	}
	r.cooling["none"] = func(config.CoolingConfig) physics.GasCooling { return physics.NoCooling{} }

	r.metrics["baryon_drift"] = func() sim.Metric { return metrics.NewBaryonDrift() }
	r.metrics["peak_sfr"] = func() sim.Metric { return metrics.NewPeakSFR() }
	r.metrics["stellar_mass_growth"] = func() sim.Metric { return metrics.NewStellarMassGrowth() }

	return r
}

func (r *Registry) StarFormation(c config.StarFormationConfig) (physics.StarFormation, error) {
	fn, ok := r.starFormation[c.Law]
	if !ok {
		return nil, fmt.Errorf("unknown star formation law: %s", c.Law)
	}
	return fn(c), nil
}

func (r *Registry) Cooling(c config.CoolingConfig) (physics.GasCooling, error) {
	fn, ok := r.cooling[c.Law]
	if !ok {
		return nil, fmt.Errorf("unknown cooling law: %s", c.Law)
	}
	return fn(c), nil
}

func (r *Registry) ListStarFormationLaws() []string { return sortedKeys(r.starFormation) }
func (r *Registry) ListCoolingLaws() []string       { return sortedKeys(r.cooling) }
func (r *Registry) ListMetrics() []string           { return sortedKeys(r.metrics) }

// DefaultMetrics returns a fresh instance of every registered metric.
func (r *Registry) DefaultMetrics() []sim.Metric {
	out := make([]sim.Metric, 0, len(r.metrics))
	for _, name := range r.ListMetrics() {
		out = append(out, r.metrics[name]())
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
