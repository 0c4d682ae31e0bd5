package models

import (
	"math"

	"github.com/san-kum/galevo/internal/dynamo"
	"github.com/san-kum/galevo/internal/galaxy"
	"github.com/san-kum/galevo/internal/physics"
)

// FromGalaxy builds the disk state vector of g and its host s.
func (m *BasicPhysicalModel) FromGalaxy(s *galaxy.Subhalo, g *galaxy.Galaxy) dynamo.State {
	y := m.pool.Get()

	y[IdxStars] = g.DiskStars.Mass
	y[IdxDiskGas] = g.DiskGas.Mass
	y[IdxColdHaloGas] = s.ColdHaloGas.Mass
	y[IdxHotHaloGas] = s.HotHaloGas.Mass
	y[IdxEjectedGas] = s.EjectedGalaxyGas.Mass

	y[IdxStarsMetals] = g.DiskStars.MassMetals
	y[IdxDiskGasMetals] = g.DiskGas.MassMetals
	y[IdxColdHaloGasMetals] = s.ColdHaloGas.MassMetals
	y[IdxHotHaloGasMetals] = s.HotHaloGas.MassMetals
	y[IdxEjectedGasMetals] = s.EjectedGalaxyGas.MassMetals

	y[IdxFormedStars] = 0
	y[IdxFormedMetals] = 0

	y[IdxStarsAM] = g.DiskStars.AngularMomentum()
	y[IdxDiskGasAM] = g.DiskGas.AngularMomentum()
	y[IdxColdHaloGasAM] = s.ColdHaloGas.AngularMomentum()
	y[IdxHotHaloGasAM] = s.HotHaloGas.AngularMomentum()
	y[IdxEjectedGasAM] = s.EjectedGalaxyGas.AngularMomentum()

	return y
}

// FromGalaxyStarburst builds the bulge state vector. Nothing cools onto a
// bulge and angular momentum is not tracked, so those entries are zero.
func (m *BasicPhysicalModel) FromGalaxyStarburst(s *galaxy.Subhalo, g *galaxy.Galaxy) dynamo.State {
	y := m.pool.Get()

	y[IdxStars] = g.BulgeStars.Mass
	y[IdxDiskGas] = g.BulgeGas.Mass
	y[IdxHotHaloGas] = s.HotHaloGas.Mass
	y[IdxEjectedGas] = s.EjectedGalaxyGas.Mass

	y[IdxStarsMetals] = g.BulgeStars.MassMetals
	y[IdxDiskGasMetals] = g.BulgeGas.MassMetals
	y[IdxHotHaloGasMetals] = s.HotHaloGas.MassMetals
	y[IdxEjectedGasMetals] = s.EjectedGalaxyGas.MassMetals

	return y
}

// ToGalaxy writes an integrated disk state back into g and s.
func (m *BasicPhysicalModel) ToGalaxy(y dynamo.State, s *galaxy.Subhalo, g *galaxy.Galaxy, deltaT float64) error {
	if len(y) != NumEquations {
		return dynamo.DimensionError(len(y), NumEquations)
	}
	if y[IdxStars] < g.DiskStars.Mass {
		return invariant("disk_stars", "mass", y[IdxStars], "galaxy decreased its stellar mass after disk star formation")
	}

	g.DiskStars.Mass = y[IdxStars]
	g.DiskGas.Mass = y[IdxDiskGas]
	s.ColdHaloGas.Mass = y[IdxColdHaloGas]
	s.HotHaloGas.Mass = y[IdxHotHaloGas]
	s.EjectedGalaxyGas.Mass = y[IdxEjectedGas]

	g.DiskStars.MassMetals = y[IdxStarsMetals]
	g.DiskGas.MassMetals = y[IdxDiskGasMetals]
	s.ColdHaloGas.MassMetals = y[IdxColdHaloGasMetals]
	s.HotHaloGas.MassMetals = y[IdxHotHaloGasMetals]
	s.EjectedGalaxyGas.MassMetals = y[IdxEjectedGasMetals]

	g.SFRDisk += y[IdxFormedStars] / deltaT
	g.SFRZDisk += y[IdxFormedMetals] / deltaT

	// Sizes are only redefined when both stars and gas keep positive
	// angular momentum.
	if y[IdxStarsAM] > 0 && y[IdxDiskGasAM] > 0 {
		g.DiskStars.SAM = y[IdxStarsAM] / g.DiskStars.Mass
		g.DiskGas.SAM = y[IdxDiskGasAM] / g.DiskGas.Mass
		setSAM(&s.ColdHaloGas, y[IdxColdHaloGasAM])
		setSAM(&s.HotHaloGas, y[IdxHotHaloGasAM])
		setSAM(&s.EjectedGalaxyGas, y[IdxEjectedGasAM])

		g.DiskStars.RScale = g.DiskStars.SAM / g.Vmax * physics.EagleJConv
		g.DiskGas.RScale = g.DiskGas.SAM / g.Vmax * physics.EagleJConv

		if notFinite(g.DiskStars.SAM) || notFinite(g.DiskStars.RScale) {
			return invariant("disk_stars", "rscale", g.DiskStars.RScale, "non-finite size or angular momentum in physical model")
		}
		if notFinite(g.DiskGas.SAM) || notFinite(g.DiskGas.RScale) {
			return invariant("disk_gas", "rscale", g.DiskGas.RScale, "non-finite size or angular momentum in physical model")
		}
		if g.DiskStars.RScale <= physics.Tolerance && g.DiskStars.Mass > 0 {
			return invariant("disk_stars", "rscale", g.DiskStars.RScale, "galaxy with extremely small size in physical model")
		}
		if g.DiskGas.RScale <= physics.Tolerance && g.DiskGas.Mass > 0 {
			return invariant("disk_gas", "rscale", g.DiskGas.RScale, "galaxy with extremely small size in physical model")
		}
	}

	components := []component{
		{"disk_stars", &g.DiskStars},
		{"disk_gas", &g.DiskGas},
		{"cold_halo_gas", &s.ColdHaloGas},
		{"hot_halo_gas", &s.HotHaloGas},
		{"ejected_galaxy_gas", &s.EjectedGalaxyGas},
	}
	sanitize(components)
	return checkMetals(components)
}

// ToGalaxyStarburst writes an integrated bulge state back into g and s and
// books the stars formed under the trigger of the burst.
func (m *BasicPhysicalModel) ToGalaxyStarburst(y dynamo.State, s *galaxy.Subhalo, g *galaxy.Galaxy, deltaT float64, fromGalaxyMerger bool) error {
	if len(y) != NumEquations {
		return dynamo.DimensionError(len(y), NumEquations)
	}
	if y[IdxStars] < g.BulgeStars.Mass {
		return invariant("bulge_stars", "mass", y[IdxStars], "galaxy decreased its stellar mass after burst of star formation")
	}

	formed := galaxy.BaryonBase{
		Mass:       y[IdxStars] - g.BulgeStars.Mass,
		MassMetals: y[IdxStarsMetals] - g.BulgeStars.MassMetals,
	}
	if fromGalaxyMerger {
		g.GalaxyMergersBurstStars.Add(formed)
		g.SFRBulgeMergers += y[IdxFormedStars] / deltaT
		g.SFRZBulgeMergers += y[IdxFormedMetals] / deltaT
	} else {
		g.DiskInstabilitiesBurstStars.Add(formed)
		g.SFRBulgeDiskIns += y[IdxFormedStars] / deltaT
		g.SFRZBulgeDiskIns += y[IdxFormedMetals] / deltaT
	}

	g.BulgeStars.Mass = y[IdxStars]
	g.BulgeGas.Mass = y[IdxDiskGas]
	s.HotHaloGas.Mass = y[IdxHotHaloGas]
	s.EjectedGalaxyGas.Mass = y[IdxEjectedGas]

	g.BulgeStars.MassMetals = y[IdxStarsMetals]
	g.BulgeGas.MassMetals = y[IdxDiskGasMetals]
	s.HotHaloGas.MassMetals = y[IdxHotHaloGasMetals]
	s.EjectedGalaxyGas.MassMetals = y[IdxEjectedGasMetals]

	components := []component{
		{"bulge_stars", &g.BulgeStars},
		{"bulge_gas", &g.BulgeGas},
		{"hot_halo_gas", &s.HotHaloGas},
		{"ejected_galaxy_gas", &s.EjectedGalaxyGas},
	}
	sanitize(components)
	return checkMetals(components)
}

type component struct {
	name   string
	baryon *galaxy.Baryon
}

// sanitize clamps tiny or negative metal masses and resets depleted
// components entirely.
func sanitize(cs []component) {
	for _, c := range cs {
		if c.baryon.MassMetals < physics.Tolerance {
			c.baryon.MassMetals = 0
		}
	}
	for _, c := range cs {
		if c.baryon.Mass < physics.Tolerance {
			c.baryon.Restore()
		}
	}
}

func checkMetals(cs []component) error {
	for _, c := range cs {
		if c.baryon.MassMetals > c.baryon.Mass {
			return invariant(c.name, "mass_metals", c.baryon.MassMetals, "more mass in metals than total mass")
		}
	}
	return nil
}

func setSAM(b *galaxy.Baryon, am float64) {
	if b.Mass > 0 {
		b.SAM = am / b.Mass
	}
}

func notFinite(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

func invariant(component, quantity string, value float64, msg string) error {
	return &dynamo.InvariantError{Component: component, Quantity: quantity, Value: value, Message: msg}
}
