// Package cosmology converts between redshift and cosmic time in a flat
// Lambda-CDM universe.
package cosmology

import (
	"fmt"
	"math"

	"github.com/san-kum/galevo/internal/dynamo"
	"github.com/san-kum/galevo/internal/physics"
)

type Cosmology struct {
	OmegaM float64 `yaml:"omega_m" env:"OMEGA_M"`
	OmegaL float64 `yaml:"omega_l" env:"OMEGA_L"`
	OmegaB float64 `yaml:"omega_b" env:"OMEGA_B"`
	// H is the dimensionless Hubble parameter, H0 = 100 h km/s/Mpc.
	H float64 `yaml:"h" env:"H"`
}

// Planck15 returns Planck 2015 parameters.
func Planck15() Cosmology {
	return Cosmology{OmegaM: 0.3121, OmegaL: 0.6879, OmegaB: 0.0491, H: 0.6751}
}

func (c Cosmology) Validate() error {
	if c.OmegaM <= 0 || c.OmegaL <= 0 || c.H <= 0 {
		return fmt.Errorf("%w: cosmology parameters must be positive", dynamo.ErrConfiguration)
	}
	if math.Abs(c.OmegaM+c.OmegaL-1) > 1e-3 {
		return dynamo.ConfigError("cosmology.omega_l", fmt.Sprint(c.OmegaL), "Only flat cosmologies are supported")
	}
	if c.OmegaB < 0 || c.OmegaB > c.OmegaM {
		return dynamo.ConfigError("cosmology.omega_b", fmt.Sprint(c.OmegaB), "Must be within [0, omega_m]")
	}
	return nil
}

// HubbleTime is 1/H0 in Gyr.
func (c Cosmology) HubbleTime() float64 {
	return physics.MpcKmsToGyr / (100 * c.H)
}

// Age is the cosmic time at redshift z, in Gyr.
func (c Cosmology) Age(z float64) float64 {
	x := math.Sqrt(c.OmegaL/c.OmegaM) * math.Pow(1+z, -1.5)
	return 2 * c.HubbleTime() / (3 * math.Sqrt(c.OmegaL)) * math.Asinh(x)
}

// Redshift inverts Age.
func (c Cosmology) Redshift(age float64) float64 {
	if age <= 0 {
		return math.Inf(1)
	}
	x := math.Sinh(age * 3 * math.Sqrt(c.OmegaL) / (2 * c.HubbleTime()))
	return math.Pow(x/math.Sqrt(c.OmegaL/c.OmegaM), -2.0/3.0) - 1
}

// LookbackTime is the time elapsed since redshift z, in Gyr.
func (c Cosmology) LookbackTime(z float64) float64 {
	return c.Age(0) - c.Age(z)
}

// BaryonFraction is Omega_b / Omega_m.
func (c Cosmology) BaryonFraction() float64 {
	return c.OmegaB / c.OmegaM
}
