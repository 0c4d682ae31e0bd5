// Package config loads run configuration from YAML files and GALEVO_*
// environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/caarlos0/env/v11"
	"github.com/san-kum/galevo/internal/cosmology"
	"github.com/san-kum/galevo/internal/dynamo"
	"github.com/san-kum/galevo/internal/feedback"
	"github.com/san-kum/galevo/internal/physics"
	"github.com/san-kum/galevo/internal/scenario"
	"github.com/san-kum/galevo/internal/sim"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GALEVO_"

const (
	DefaultPrecision = 1e-6
	DefaultDatabase  = "galevo.db"

	DefaultBetaDisk = 3.0
	DefaultVSN      = 110.0
)

type StarFormationConfig struct {
	Law               string  `yaml:"law" env:"LAW"`
	NuSF              float64 `yaml:"nu_sf" env:"NU_SF"`
	MolecularFraction float64 `yaml:"molecular_fraction" env:"MOLECULAR_FRACTION"`
	BurstTimeFactor   float64 `yaml:"burst_time_factor" env:"BURST_TIME_FACTOR"`
	MinBurstTime      float64 `yaml:"min_burst_time" env:"MIN_BURST_TIME"`
}

type CoolingConfig struct {
	Law           string  `yaml:"law" env:"LAW"`
	Efficiency    float64 `yaml:"efficiency" env:"EFFICIENCY"`
	HotEfficiency float64 `yaml:"hot_efficiency" env:"HOT_EFFICIENCY"`
}

type Config struct {
	// Precision is the relative accuracy asked of the ODE solver.
	Precision float64 `yaml:"precision" env:"PRECISION"`
	MinStep   float64 `yaml:"min_step,omitempty" env:"MIN_STEP"`
	MaxSteps  int     `yaml:"max_steps,omitempty" env:"MAX_STEPS"`

	Cosmology       cosmology.Cosmology          `yaml:"cosmology" envPrefix:"COSMOLOGY_"`
	StellarFeedback feedback.Options             `yaml:"stellar_feedback" envPrefix:"STELLAR_FEEDBACK_"`
	StarFormation   StarFormationConfig          `yaml:"star_formation" envPrefix:"STAR_FORMATION_"`
	Cooling         CoolingConfig                `yaml:"cooling" envPrefix:"COOLING_"`
	Recycling       physics.RecyclingParameters  `yaml:"recycling" envPrefix:"RECYCLING_"`
	GasCooling      physics.GasCoolingParameters `yaml:"gas_cooling" envPrefix:"GAS_COOLING_"`

	Run      sim.Config      `yaml:"run" envPrefix:"RUN_"`
	Scenario scenario.Params `yaml:"scenario" envPrefix:"SCENARIO_"`

	Database string `yaml:"database" env:"DATABASE"`
}

func DefaultConfig() *Config {
	betaDisk, vsn := DefaultBetaDisk, DefaultVSN
	return &Config{
		Precision: DefaultPrecision,
		Cosmology: cosmology.Planck15(),
		StellarFeedback: feedback.Options{
			Variant:  string(feedback.VariantParametrized),
			Model:    feedback.GALFORM.String(),
			BetaDisk: &betaDisk,
			VSN:      &vsn,
		},
		StarFormation: StarFormationConfig{
			Law:               "constant_efficiency",
			NuSF:              physics.DefaultNuSF,
			MolecularFraction: physics.DefaultMolecularFraction,
			BurstTimeFactor:   physics.DefaultBurstTimeFactor,
			MinBurstTime:      physics.DefaultMinBurstTime,
		},
		Cooling: CoolingConfig{
			Law:           "reservoir",
			Efficiency:    physics.DefaultCoolingEfficiency,
			HotEfficiency: physics.DefaultHotCoolingEfficiency,
		},
		Recycling:  physics.DefaultRecyclingParameters(),
		GasCooling: physics.DefaultGasCoolingParameters(),
		Run:        sim.Config{TimestepsPerSnapshot: 1},
		Scenario:   scenario.DefaultParams(),
		Database:   DefaultDatabase,
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path loads the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := Decode(bytes.NewReader(data), cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode reads YAML into cfg, rejecting unknown keys.
func Decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", dynamo.ErrConfiguration, err)
	}
	return nil
}

// ApplyEnv overrides cfg from GALEVO_* variables.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks every section. Feedback options are resolved here so an
// unknown model name fails before any galaxy is touched.
func (c *Config) Validate() error {
	if c.Precision <= 0 {
		return dynamo.ConfigError("precision", formatFloat(c.Precision), "Must be positive.")
	}
	if c.MinStep < 0 {
		return dynamo.ConfigError("min_step", formatFloat(c.MinStep), "Cannot be negative.")
	}
	if c.MaxSteps < 0 {
		return dynamo.ConfigError("max_steps", strconv.Itoa(c.MaxSteps), "Cannot be negative.")
	}
	if err := c.Cosmology.Validate(); err != nil {
		return err
	}
	if _, err := c.StellarFeedback.Parameters(); err != nil {
		return err
	}

	sf := c.StarFormation
	if sf.NuSF <= 0 {
		return dynamo.ConfigError("star_formation.nu_sf", formatFloat(sf.NuSF), "Must be positive.")
	}
	if sf.MolecularFraction < 0 || sf.MolecularFraction > 1 {
		return dynamo.ConfigError("star_formation.molecular_fraction", formatFloat(sf.MolecularFraction), "Must lie in [0, 1].")
	}
	if sf.BurstTimeFactor <= 0 || sf.MinBurstTime < 0 {
		return dynamo.ConfigError("star_formation.burst_time_factor", formatFloat(sf.BurstTimeFactor), "Burst times must be positive.")
	}
	if c.Cooling.Efficiency < 0 || c.Cooling.HotEfficiency < 0 {
		return dynamo.ConfigError("cooling.efficiency", formatFloat(c.Cooling.Efficiency), "Efficiencies cannot be negative.")
	}
	if c.Recycling.Recycle < 0 || c.Recycling.Recycle >= 1 {
		return dynamo.ConfigError("recycling.recycle", formatFloat(c.Recycling.Recycle), "Must lie in [0, 1).")
	}
	if c.Recycling.Yield < 0 || c.Recycling.Yield >= 1 {
		return dynamo.ConfigError("recycling.yield", formatFloat(c.Recycling.Yield), "Must lie in [0, 1).")
	}
	if c.GasCooling.PreEnrichZ < 0 {
		return dynamo.ConfigError("gas_cooling.pre_enrich_z", formatFloat(c.GasCooling.PreEnrichZ), "Cannot be negative.")
	}
	if c.Run.TimestepsPerSnapshot < 0 || c.Run.Parallelism < 0 {
		return dynamo.ConfigError("run", fmt.Sprintf("%d/%d", c.Run.TimestepsPerSnapshot, c.Run.Parallelism),
			"timesteps_per_snapshot and parallelism cannot be negative.")
	}
	return c.Scenario.Validate()
}

// FeedbackParameters resolves the stellar feedback section.
func (c *Config) FeedbackParameters() (feedback.Parameters, error) {
	return c.StellarFeedback.Parameters()
}

func (c *Config) Clone() *Config {
	cp := *c
	if c.StellarFeedback.BetaDisk != nil {
		v := *c.StellarFeedback.BetaDisk
		cp.StellarFeedback.BetaDisk = &v
	}
	if c.StellarFeedback.VSN != nil {
		v := *c.StellarFeedback.VSN
		cp.StellarFeedback.VSN = &v
	}
	if c.StellarFeedback.EpsHalo != nil {
		v := *c.StellarFeedback.EpsHalo
		cp.StellarFeedback.EpsHalo = &v
	}
	if c.StellarFeedback.EpsDisk != nil {
		v := *c.StellarFeedback.EpsDisk
		cp.StellarFeedback.EpsDisk = &v
	}
	cp.Run.Redshifts = append([]float64(nil), c.Run.Redshifts...)
	return &cp
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
