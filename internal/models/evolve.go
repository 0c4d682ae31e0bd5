package models

import (
	"fmt"

	"github.com/san-kum/galevo/internal/galaxy"
	"github.com/san-kum/galevo/internal/physics"
)

// EvolveGalaxy advances the disk of g, and the reservoirs of s, by deltaT at
// redshift z. Only central galaxies receive cooling gas.
func (m *BasicPhysicalModel) EvolveGalaxy(s *galaxy.Subhalo, g *galaxy.Galaxy, z, deltaT float64) error {
	var mcoolrate float64
	if g.Type == galaxy.Central {
		mcoolrate = m.cooling.CoolingRate(s, g, z, deltaT)
	}

	rgas := g.DiskGas.RScale
	var vgal float64
	if rgas > 0 {
		vgal = g.DiskGas.SAM / rgas * physics.EagleJConv
	} else if g.Vmax > 0 {
		// no disk yet: size it from the gas about to cool
		rgas = s.ColdHaloGas.SAM / g.Vmax * physics.EagleJConv
		vgal = g.Vmax
	}

	p := SolverParams{
		RGas:      rgas,
		RStar:     g.DiskStars.RScale,
		MCoolRate: mcoolrate,
		JColdHalo: s.ColdHaloGas.SAM,
		DeltaT:    deltaT,
		Redshift:  z,
		VSubh:     s.Vvir,
		VGal:      vgal,
	}

	y0 := m.FromGalaxy(s, g)
	defer m.pool.Put(y0)

	y1, evals, err := m.Solve(y0, &p)
	m.galaxyEvaluations.Add(evals)
	if err != nil {
		return fmt.Errorf("evolve %s in subhalo %d: %w", g, s.ID, err)
	}
	if err := m.ToGalaxy(y1, s, g, deltaT); err != nil {
		return fmt.Errorf("evolve %s in subhalo %d: %w", g, s.ID, err)
	}
	return nil
}

// EvolveGalaxyStarburst turns bulge gas into stars over deltaT. The formed
// mass is booked as merger driven when fromGalaxyMerger is set and as disk
// instability driven otherwise.
func (m *BasicPhysicalModel) EvolveGalaxyStarburst(s *galaxy.Subhalo, g *galaxy.Galaxy, z, deltaT float64, fromGalaxyMerger bool) error {
	var vgal float64
	if g.BulgeGas.RScale > 0 {
		vgal = g.BulgeGas.SAM / g.BulgeGas.RScale
	}

	p := SolverParams{
		RGas:     g.BulgeGas.RScale,
		RStar:    g.BulgeStars.RScale,
		DeltaT:   deltaT,
		Redshift: z,
		VSubh:    s.Vvir,
		VGal:     vgal,
		Burst:    true,
	}

	y0 := m.FromGalaxyStarburst(s, g)
	defer m.pool.Put(y0)

	y1, evals, err := m.Solve(y0, &p)
	m.starburstEvaluations.Add(evals)
	if err != nil {
		return fmt.Errorf("starburst %s in subhalo %d: %w", g, s.ID, err)
	}
	if err := m.ToGalaxyStarburst(y1, s, g, deltaT, fromGalaxyMerger); err != nil {
		return fmt.Errorf("starburst %s in subhalo %d: %w", g, s.ID, err)
	}
	return nil
}
