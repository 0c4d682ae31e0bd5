package config

import (
	"sort"

	"github.com/san-kum/galevo/internal/feedback"
)

// Presets are named variations of DefaultConfig.
var Presets = map[string]func(*Config){
	"default": func(*Config) {},
	"quick": func(c *Config) {
		c.Scenario.Snapshots = 8
		c.Scenario.Halos = 4
		c.Scenario.NewHalos = 0
	},
	"fire": func(c *Config) {
		c.StellarFeedback.Model = feedback.FIRE.String()
		setFeedback(c, 2.5, 110)
		c.StellarFeedback.RedshiftPower = 1.25
	},
	"lgalaxies": func(c *Config) {
		c.StellarFeedback.Model = feedback.LGALAXIES.String()
		setFeedback(c, 6.5, 70)
		c.StellarFeedback.EpsHalo = float64Ptr(0.9)
		c.StellarFeedback.ESN = 1e51 / 5
		c.StellarFeedback.EpsilonCC = 0.4
		c.StellarFeedback.VkinSN = 336
	},
	"lagos13": func(c *Config) {
		c.StellarFeedback.Model = feedback.LAGOS13.String()
		setFeedback(c, 0.72, 50)
	},
	"galform_fire": func(c *Config) {
		c.StellarFeedback.Model = feedback.GALFORMFIRE.String()
		setFeedback(c, 3.0, 110)
		c.StellarFeedback.RedshiftPower = 1.25
	},
	"power_law": func(c *Config) {
		c.StellarFeedback.Variant = string(feedback.VariantPowerLaw)
		setFeedback(c, 3.2, 85)
		c.StellarFeedback.BetaHalo = 0.5
		c.StellarFeedback.EpsDisk = float64Ptr(2)
	},
	"substeps": func(c *Config) {
		c.Run.TimestepsPerSnapshot = 4
		c.Run.OutputSFHistories = true
	},
	"isolated": func(c *Config) {
		c.Scenario.HaloMergeProbability = 0
		c.Scenario.SatelliteMergeProbability = 0
		c.Scenario.StripProbability = 0
	},
}

func GetPreset(name string) *Config {
	apply, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func setFeedback(c *Config, betaDisk, vsn float64) {
	c.StellarFeedback.BetaDisk = float64Ptr(betaDisk)
	c.StellarFeedback.VSN = float64Ptr(vsn)
}

func float64Ptr(v float64) *float64 { return &v }
