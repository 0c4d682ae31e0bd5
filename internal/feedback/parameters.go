package feedback

import (
	"fmt"

	"github.com/san-kum/galevo/internal/dynamo"
	"github.com/san-kum/galevo/internal/physics"
)

const (
	DefaultEpsHalo = 1.0
	DefaultEpsDisk = 1.0
)

// Options is the configuration surface of the feedback model as read from
// files and the environment. BetaDisk and VSN are required.
type Options struct {
	Variant       string   `yaml:"variant" env:"VARIANT"`
	Model         string   `yaml:"model" env:"MODEL"`
	GalaxyScaling bool     `yaml:"galaxy_scaling" env:"GALAXY_SCALING"`
	BetaDisk      *float64 `yaml:"beta_disk" env:"BETA_DISK"`
	VSN           *float64 `yaml:"v_sn" env:"V_SN"`
	EpsHalo       *float64 `yaml:"eps_halo,omitempty" env:"EPS_HALO"`
	EpsDisk       *float64 `yaml:"eps_disk,omitempty" env:"EPS_DISK"`
	RedshiftPower float64  `yaml:"redshift_power" env:"REDSHIFT_POWER"`
	VkinSN        float64  `yaml:"vkin_sn" env:"VKIN_SN"`
	ESN           float64  `yaml:"e_sn" env:"E_SN"`
	EtaCC         float64  `yaml:"eta_cc" env:"ETA_CC"`
	EpsilonCC     float64  `yaml:"epsilon_cc" env:"EPSILON_CC"`
	BetaHalo      float64  `yaml:"beta_halo" env:"BETA_HALO"`
}

// Parameters are the resolved feedback constants.
type Parameters struct {
	Variant       Variant
	Model         Model
	GalaxyScaling bool
	BetaDisk      float64
	VSN           float64
	EpsHalo       float64
	EpsDisk       float64
	RedshiftPower float64
	VkinSN        float64
	BetaHalo      float64
	EtaCC         float64

	// ESN is the supernova energy per unit stellar mass in Msun (km/s)^2.
	ESN float64
}

// Parameters validates the options and applies defaults and unit
// conversions.
func (o Options) Parameters() (Parameters, error) {
	variant, err := ParseVariant(o.Variant)
	if err != nil {
		return Parameters{}, err
	}

	p := Parameters{
		Variant:       variant,
		GalaxyScaling: o.GalaxyScaling,
		EpsHalo:       DefaultEpsHalo,
		EpsDisk:       DefaultEpsDisk,
		RedshiftPower: o.RedshiftPower,
		VkinSN:        o.VkinSN,
		BetaHalo:      o.BetaHalo,
		EtaCC:         o.EtaCC,
	}

	if variant == VariantParametrized {
		if p.Model, err = ParseModel(o.Model); err != nil {
			return Parameters{}, err
		}
	}
	if o.BetaDisk == nil {
		return Parameters{}, fmt.Errorf("%w: stellar_feedback.beta_disk is required", dynamo.ErrConfiguration)
	}
	if o.VSN == nil {
		return Parameters{}, fmt.Errorf("%w: stellar_feedback.v_sn is required", dynamo.ErrConfiguration)
	}
	if *o.VSN <= 0 {
		return Parameters{}, dynamo.ConfigError("stellar_feedback.v_sn", fmt.Sprint(*o.VSN), "Must be positive")
	}
	p.BetaDisk = *o.BetaDisk
	p.VSN = *o.VSN
	if o.EpsHalo != nil {
		p.EpsHalo = *o.EpsHalo
	}
	if o.EpsDisk != nil {
		p.EpsDisk = *o.EpsDisk
	}

	// erg per gram of stars into Msun (km/s)^2.
	p.ESN = o.EpsilonCC * o.ESN / physics.MSolarG / (physics.KmToCm * physics.KmToCm)
	return p, nil
}
