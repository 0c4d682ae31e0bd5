package physics

import (
	"math"

	"github.com/san-kum/galevo/internal/galaxy"
)

const (
	DefaultCoolingEfficiency    = 0.5
	DefaultHotCoolingEfficiency = 0.1
)

// GasCooling returns the rate at which the cooling reservoir of a subhalo
// accretes onto the galaxy, in Msun/Gyr. It is called once per evolve call
// and only for central galaxies.
type GasCooling interface {
	CoolingRate(s *galaxy.Subhalo, g *galaxy.Galaxy, z, deltaT float64) float64
}

// ReservoirCooling moves a fraction of the hot halo gas into the cooling
// reservoir, then drains a fraction of that reservoir onto the disk at a
// constant rate over the step.
type ReservoirCooling struct {
	// Efficiency is the fraction of the cooling reservoir accreted per Gyr.
	Efficiency float64 `yaml:"efficiency"`
	// HotEfficiency is the fraction of hot gas condensing per Gyr.
	HotEfficiency float64 `yaml:"hot_efficiency"`
}

func NewReservoirCooling() *ReservoirCooling {
	return &ReservoirCooling{
		Efficiency:    DefaultCoolingEfficiency,
		HotEfficiency: DefaultHotCoolingEfficiency,
	}
}

func (c *ReservoirCooling) CoolingRate(s *galaxy.Subhalo, g *galaxy.Galaxy, z, deltaT float64) float64 {
	if deltaT <= 0 {
		return 0
	}

	if s.HotHaloGas.Mass > 0 && c.HotEfficiency > 0 {
		f := math.Min(1, c.HotEfficiency*deltaT)
		condensed := galaxy.Baryon{
			BaryonBase: galaxy.BaryonBase{Mass: f * s.HotHaloGas.Mass, MassMetals: f * s.HotHaloGas.MassMetals},
			SAM:        s.HotHaloGas.SAM,
			RScale:     s.HotHaloGas.RScale,
		}
		s.HotHaloGas.Mass -= condensed.Mass
		s.HotHaloGas.MassMetals -= condensed.MassMetals
		s.ColdHaloGas.Add(condensed)
	}

	s.CoolingTracking.TimeSinceHeat += deltaT
	if s.ColdHaloGas.Mass <= 0 {
		s.CoolingTracking.LastRate = 0
		return 0
	}

	rate := s.ColdHaloGas.Mass * math.Min(1, c.Efficiency*deltaT) / deltaT
	s.CoolingTracking.LastRate = rate
	s.CoolingTracking.MassCooled += rate * deltaT
	return rate
}

// NoCooling switches gas accretion off. Halo reservoirs are left untouched.
type NoCooling struct{}

func (NoCooling) CoolingRate(*galaxy.Subhalo, *galaxy.Galaxy, float64, float64) float64 { return 0 }
