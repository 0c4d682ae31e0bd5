package models

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/san-kum/galevo/internal/dynamo"
	"github.com/san-kum/galevo/internal/feedback"
	"github.com/san-kum/galevo/internal/galaxy"
	"github.com/san-kum/galevo/internal/physics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type constantSF struct {
	sfr, jrate float64
	lastJGas   float64
}

func (c *constantSF) StarFormationRate(mgas, mstars, rgas, rstars, zgas, z float64, burst bool, vgal, jgas float64) (float64, float64) {
	c.lastJGas = jgas
	return c.sfr, c.jrate
}

type fixedFeedback feedback.Outflow

func (f fixedFeedback) OutflowRate(sfr, vsubh, vgal, z float64) feedback.Outflow {
	return feedback.Outflow(f)
}

type countingCooling struct {
	rate  float64
	calls int
}

func (c *countingCooling) CoolingRate(s *galaxy.Subhalo, g *galaxy.Galaxy, z, deltaT float64) float64 {
	c.calls++
	return c.rate
}

var approx = cmpopts.EquateApprox(0, 1e-12)

func newTestModel(sf physics.StarFormation, fb feedback.Feedback, cooling physics.GasCooling, recycle, yield float64) *BasicPhysicalModel {
	return NewBasicPhysicalModel(1e-8, cooling, fb, sf,
		physics.RecyclingParameters{Recycle: recycle, Yield: yield},
		physics.GasCoolingParameters{PreEnrichZ: 1e-7},
	)
}

func testSystem(t galaxy.GalaxyType) (*galaxy.Subhalo, *galaxy.Galaxy) {
	s := galaxy.NewSubhalo(1, 1, 10, galaxy.CentralSubhalo)
	s.Vvir = 150
	s.ColdHaloGas = galaxy.Baryon{BaryonBase: galaxy.BaryonBase{Mass: 1e8, MassMetals: 1e6}, SAM: 100}
	s.HotHaloGas = galaxy.Baryon{BaryonBase: galaxy.BaryonBase{Mass: 1e10, MassMetals: 1e8}, SAM: 200}
	s.EjectedGalaxyGas = galaxy.Baryon{BaryonBase: galaxy.BaryonBase{Mass: 1e9, MassMetals: 1e7}, SAM: 150}

	g := galaxy.New(1, t)
	g.Vmax = 200
	g.DiskStars = galaxy.Baryon{BaryonBase: galaxy.BaryonBase{Mass: 1e9, MassMetals: 1e7}, SAM: 50, RScale: 0.003}
	g.DiskGas = galaxy.Baryon{BaryonBase: galaxy.BaryonBase{Mass: 1e9, MassMetals: 1e7}, SAM: 60, RScale: 0.004}
	g.BulgeStars = galaxy.Baryon{BaryonBase: galaxy.BaryonBase{Mass: 5e8, MassMetals: 5e6}, RScale: 0.001}
	g.BulgeGas = galaxy.Baryon{BaryonBase: galaxy.BaryonBase{Mass: 2e8, MassMetals: 2e6}, SAM: 20, RScale: 0.001}
	s.AddGalaxy(g)
	return s, g
}

func TestEvaluate(t *testing.T) {
	sf := &constantSF{sfr: 2, jrate: 3}
	m := newTestModel(sf, fixedFeedback{Beta1: 1, Beta2: 0.5, BetaJ1: 1, BetaJ2: 0.5}, &countingCooling{}, 0.4, 0.03)

	y := make([]float64, NumEquations)
	y[IdxDiskGas] = 10
	y[IdxDiskGasMetals] = 0.2
	y[IdxColdHaloGas] = 4
	y[IdxColdHaloGasMetals] = 0.04
	y[IdxDiskGasAM] = 50

	f := make([]float64, NumEquations)
	p := &SolverParams{MCoolRate: 5, JColdHalo: 7, VGal: 100, RGas: 0.01}
	require.NoError(t, m.Evaluate(0, y, f, p))

	want := []float64{
		1.2, 1.8, -5, 1, 1,
		0.024, 0.046, -0.05, 0.02, 0.02,
		2, 0.04,
		1.8, 30.2, -35, 1.5, 1.5,
	}
	if diff := cmp.Diff(want, f, approx); diff != "" {
		t.Errorf("derivatives mismatch (-want +got):\n%s", diff)
	}
	assert.InDelta(t, 5.0, sf.lastJGas, 1e-12)
}

func TestEvaluate_Floors(t *testing.T) {
	sf := &constantSF{sfr: 1}
	m := newTestModel(sf, fixedFeedback{}, &countingCooling{}, 0.4, 0)

	y := make([]float64, NumEquations)
	f := make([]float64, NumEquations)
	p := &SolverParams{MCoolRate: 2, VGal: 100, RGas: 0.01}
	require.NoError(t, m.Evaluate(0, y, f, p))

	// empty reservoirs fall back to the pre-enrichment metallicity and the
	// geometric angular momentum
	assert.InDelta(t, 0.6*1e-7, f[IdxStarsMetals], 1e-18)
	assert.InDelta(t, -2*1e-7, f[IdxColdHaloGasMetals], 1e-18)
	assert.InDelta(t, 2*100*0.01/physics.RDiskHalfScale, sf.lastJGas, 1e-12)

	y[IdxDiskGas], y[IdxDiskGasMetals], y[IdxDiskGasAM] = 10, 0.1, 50
	p.Burst = true
	require.NoError(t, m.Evaluate(0, y, f, p))
	assert.InDelta(t, 2*100*0.01/physics.RDiskHalfScale, sf.lastJGas, 1e-12)
}

func TestEvaluate_DimensionMismatch(t *testing.T) {
	m := newTestModel(&constantSF{}, fixedFeedback{}, &countingCooling{}, 0.4, 0)
	err := m.Evaluate(0, make([]float64, 16), make([]float64, 16), &SolverParams{})
	assert.True(t, errors.Is(err, dynamo.ErrDimensionMismatch))
}

func TestSolve_DimensionMismatch(t *testing.T) {
	sf := &constantSF{sfr: 1}
	m := newTestModel(sf, fixedFeedback{}, &countingCooling{}, 0.4, 0)

	for _, n := range []int{0, 5, 16, 18, 34} {
		_, evals, err := m.Solve(make(dynamo.State, n), &SolverParams{DeltaT: 0.1})
		assert.True(t, errors.Is(err, dynamo.ErrDimensionMismatch), "len %d", n)
		assert.Zero(t, evals)
	}
}

func TestEvolveGalaxy_MassConservation(t *testing.T) {
	m := newTestModel(&constantSF{sfr: 10}, fixedFeedback{}, &countingCooling{}, 0.4, 0.03)
	s, g := testSystem(galaxy.Type1)

	stars0, gas0 := g.DiskStars.Mass, g.DiskGas.Mass
	require.NoError(t, m.EvolveGalaxy(s, g, 0.5, 0.1))

	dStars := g.DiskStars.Mass - stars0
	dGas := g.DiskGas.Mass - gas0
	assert.InDelta(t, 0.6, dStars, 1e-6)
	assert.InDelta(t, dStars, -dGas, 1e-6)
	assert.InDelta(t, 10.0, g.SFRDisk, 1e-6)
}

func TestEvolveGalaxy_StellarMassMonotonic(t *testing.T) {
	m := newTestModel(&constantSF{sfr: 10}, fixedFeedback{Beta1: 2, Beta2: 1, BetaJ1: 2, BetaJ2: 1}, &countingCooling{}, 0.4, 0.03)
	s, g := testSystem(galaxy.Central)

	require.NoError(t, m.EvolveGalaxy(s, g, 0, 0.1))
	assert.GreaterOrEqual(t, g.DiskStars.Mass, 1e9)
}

func TestEvolveGalaxy_ResetOnDepletion(t *testing.T) {
	m := newTestModel(&constantSF{sfr: 10}, fixedFeedback{}, &countingCooling{}, 0.4, 0)
	s, g := testSystem(galaxy.Type1)
	g.DiskGas = galaxy.Baryon{BaryonBase: galaxy.BaryonBase{Mass: 0.6 + 1e-12}, SAM: 60, RScale: 0.004}

	require.NoError(t, m.EvolveGalaxy(s, g, 0, 0.1))
	assert.Equal(t, galaxy.Baryon{}, g.DiskGas)
}

func TestEvolveGalaxy_CoolingOnlyForCentrals(t *testing.T) {
	for _, tc := range []struct {
		typ   galaxy.GalaxyType
		calls int
	}{
		{galaxy.Central, 1},
		{galaxy.Type1, 0},
		{galaxy.Type2, 0},
	} {
		cooling := &countingCooling{rate: 1e7}
		m := newTestModel(&constantSF{sfr: 1}, fixedFeedback{}, cooling, 0.4, 0.03)
		s, g := testSystem(tc.typ)
		cold0 := s.ColdHaloGas.Mass

		require.NoError(t, m.EvolveGalaxy(s, g, 0, 0.1))
		assert.Equal(t, tc.calls, cooling.calls, tc.typ.String())
		if tc.calls > 0 {
			assert.InDelta(t, cold0-1e6, s.ColdHaloGas.Mass, 1e-3)
		} else {
			assert.Equal(t, cold0, s.ColdHaloGas.Mass)
		}
	}
}

func TestEvolveGalaxy_NoDiskYet(t *testing.T) {
	m := newTestModel(&constantSF{}, fixedFeedback{}, &countingCooling{rate: 1e8}, 0.4, 0.03)
	s, g := testSystem(galaxy.Central)
	g.DiskGas = galaxy.Baryon{}
	g.DiskStars = galaxy.Baryon{}

	require.NoError(t, m.EvolveGalaxy(s, g, 0, 0.1))
	assert.InDelta(t, 1e7, g.DiskGas.Mass, 1)
	assert.Zero(t, g.DiskStars.Mass)
}

func TestToGalaxy_Invariants(t *testing.T) {
	m := newTestModel(&constantSF{}, fixedFeedback{}, &countingCooling{}, 0.4, 0.03)

	t.Run("stellar mass decrease", func(t *testing.T) {
		s, g := testSystem(galaxy.Central)
		y := m.FromGalaxy(s, g)
		y[IdxStars] -= 1
		err := m.ToGalaxy(y, s, g, 0.1)

		var inv *dynamo.InvariantError
		require.True(t, errors.As(err, &inv))
		assert.Equal(t, "disk_stars", inv.Component)
		assert.Equal(t, "mass", inv.Quantity)
	})

	t.Run("metals exceed mass", func(t *testing.T) {
		s, g := testSystem(galaxy.Central)
		y := m.FromGalaxy(s, g)
		y[IdxHotHaloGasMetals] = 2 * y[IdxHotHaloGas]
		err := m.ToGalaxy(y, s, g, 0.1)

		var inv *dynamo.InvariantError
		require.True(t, errors.As(err, &inv))
		assert.Equal(t, "hot_halo_gas", inv.Component)
		assert.True(t, errors.Is(err, dynamo.ErrInvariantViolation))
	})

	t.Run("vanishing size", func(t *testing.T) {
		s, g := testSystem(galaxy.Central)
		g.Vmax = 1e20
		y := m.FromGalaxy(s, g)
		err := m.ToGalaxy(y, s, g, 0.1)

		var inv *dynamo.InvariantError
		require.True(t, errors.As(err, &inv))
		assert.Equal(t, "rscale", inv.Quantity)
	})

	t.Run("non-finite size", func(t *testing.T) {
		s, g := testSystem(galaxy.Central)
		g.Vmax = 0
		y := m.FromGalaxy(s, g)
		err := m.ToGalaxy(y, s, g, 0.1)
		assert.True(t, errors.Is(err, dynamo.ErrInvariantViolation))
	})

	t.Run("clamp and reset", func(t *testing.T) {
		s, g := testSystem(galaxy.Central)
		y := m.FromGalaxy(s, g)
		y[IdxEjectedGasMetals] = -1e-3
		y[IdxColdHaloGas] = 1e-11
		y[IdxColdHaloGasMetals] = 1e-12
		require.NoError(t, m.ToGalaxy(y, s, g, 0.1))

		assert.Zero(t, s.EjectedGalaxyGas.MassMetals)
		assert.Equal(t, galaxy.Baryon{}, s.ColdHaloGas)
	})
}

func TestFromGalaxy(t *testing.T) {
	m := newTestModel(&constantSF{}, fixedFeedback{}, &countingCooling{}, 0.4, 0.03)
	s, g := testSystem(galaxy.Central)

	y := m.FromGalaxy(s, g)
	assert.Equal(t, g.DiskGas.Mass, y[IdxDiskGas])
	assert.Equal(t, s.EjectedGalaxyGas.MassMetals, y[IdxEjectedGasMetals])
	assert.Zero(t, y[IdxFormedStars])
	assert.InDelta(t, 6e10, y[IdxDiskGasAM], 1)
	assert.InDelta(t, 2e12, y[IdxHotHaloGasAM], 1)

	b := m.FromGalaxyStarburst(s, g)
	assert.Equal(t, g.BulgeStars.Mass, b[IdxStars])
	assert.Equal(t, g.BulgeGas.Mass, b[IdxDiskGas])
	assert.Zero(t, b[IdxColdHaloGas])
	assert.Zero(t, b[IdxColdHaloGasMetals])
	if diff := cmp.Diff(make([]float64, 5), []float64(b[IdxStarsAM:])); diff != "" {
		t.Errorf("starburst angular momentum must be unused (-want +got):\n%s", diff)
	}
}

func TestEvolveGalaxyStarburst(t *testing.T) {
	for _, merger := range []bool{true, false} {
		m := newTestModel(&constantSF{sfr: 100}, fixedFeedback{}, &countingCooling{}, 0.4, 0.03)
		s, g := testSystem(galaxy.Central)
		bulge0 := g.BulgeStars.Mass
		disk0 := g.DiskStars

		require.NoError(t, m.EvolveGalaxyStarburst(s, g, 1, 0.1, merger))

		gained := g.BulgeStars.Mass - bulge0
		assert.InDelta(t, 6.0, gained, 1e-6)
		if merger {
			assert.InDelta(t, gained, g.GalaxyMergersBurstStars.Mass, 1e-9)
			assert.InDelta(t, 100.0, g.SFRBulgeMergers, 1e-6)
			assert.Zero(t, g.DiskInstabilitiesBurstStars.Mass)
		} else {
			assert.InDelta(t, gained, g.DiskInstabilitiesBurstStars.Mass, 1e-9)
			assert.InDelta(t, 100.0, g.SFRBulgeDiskIns, 1e-6)
			assert.Zero(t, g.GalaxyMergersBurstStars.Mass)
		}
		assert.Equal(t, disk0, g.DiskStars)
		assert.Zero(t, g.SFRDisk)
		assert.NotZero(t, m.GalaxyStarburstODEEvaluations())
		assert.Zero(t, m.GalaxyODEEvaluations())
	}
}

func TestODEEvaluationCounters(t *testing.T) {
	sf := physics.NewConstantEfficiency()
	m := newTestModel(sf, fixedFeedback{}, &countingCooling{}, 0.4, 0.03)
	s, g := testSystem(galaxy.Central)

	require.NoError(t, m.EvolveGalaxy(s, g, 0, 0.1))
	first := m.GalaxyODEEvaluations()
	assert.NotZero(t, first)
	assert.Equal(t, first, m.StarFormationIntegrationIntervals())

	require.NoError(t, m.EvolveGalaxy(s, g, 0, 0.1))
	assert.Greater(t, m.GalaxyODEEvaluations(), first)

	m.ResetODEEvaluations()
	assert.Zero(t, m.GalaxyODEEvaluations())
	assert.Zero(t, m.GalaxyStarburstODEEvaluations())
	assert.Zero(t, m.StarFormationIntegrationIntervals())
}

func TestEvolveGalaxy_FullPhysicsKeepsInvariants(t *testing.T) {
	opts := feedback.Options{Model: "FIRE", BetaDisk: ptr(3.5), VSN: ptr(120), RedshiftPower: 1}
	params, err := opts.Parameters()
	require.NoError(t, err)

	m := NewBasicPhysicalModel(1e-6, physics.NewReservoirCooling(), feedback.New(params), physics.NewConstantEfficiency(),
		physics.DefaultRecyclingParameters(), physics.DefaultGasCoolingParameters())
	s, g := testSystem(galaxy.Central)

	for step := 0; step < 20; step++ {
		stars := g.DiskStars.Mass
		require.NoError(t, m.EvolveGalaxy(s, g, 2, 0.1), "step %d", step)
		assert.GreaterOrEqual(t, g.DiskStars.Mass, stars)

		for name, b := range map[string]galaxy.Baryon{
			"disk_stars": g.DiskStars, "disk_gas": g.DiskGas,
			"cold": s.ColdHaloGas, "hot": s.HotHaloGas, "ejected": s.EjectedGalaxyGas,
		} {
			assert.GreaterOrEqual(t, b.MassMetals, 0.0, name)
			assert.LessOrEqual(t, b.MassMetals, b.Mass, name)
		}
	}
}

func ptr(v float64) *float64 { return &v }
