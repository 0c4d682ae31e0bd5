package physics

import (
	"math"
	"testing"

	"github.com/san-kum/galevo/internal/galaxy"
)

func TestConstantEfficiency_Disk(t *testing.T) {
	sf := NewConstantEfficiency()

	sfr, jrate := sf.StarFormationRate(1e10, 1e9, 0.003, 0.002, 0.01, 0, false, 200, 500)
	expected := sf.NuSF * sf.MolecularFraction * 1e10
	if math.Abs(sfr-expected) > 1e-6*expected {
		t.Errorf("expected sfr %e, got %e", expected, sfr)
	}
	if math.Abs(jrate-sfr*500) > 1e-6*jrate {
		t.Errorf("expected jrate %e, got %e", sfr*500, jrate)
	}
	if sf.IntegrationIntervals() != 1 {
		t.Errorf("expected 1 evaluation, got %d", sf.IntegrationIntervals())
	}

	sf.ResetIntegrationIntervals()
	if sf.IntegrationIntervals() != 0 {
		t.Error("expected counter reset")
	}
}

func TestConstantEfficiency_NoGas(t *testing.T) {
	sf := NewConstantEfficiency()
	for _, burst := range []bool{false, true} {
		sfr, jrate := sf.StarFormationRate(0, 1e9, 0.003, 0.002, 0.01, 0, burst, 200, 500)
		if sfr != 0 || jrate != 0 {
			t.Errorf("burst=%v: expected zero rates, got %e %e", burst, sfr, jrate)
		}
	}
}

func TestConstantEfficiency_Burst(t *testing.T) {
	sf := NewConstantEfficiency()

	// Degenerate geometry falls back to the minimum burst time.
	sfr, _ := sf.StarFormationRate(1e8, 0, 0, 0, 0.01, 1, true, 0, 0)
	if math.Abs(sfr-1e8/sf.MinBurstTime) > 1 {
		t.Errorf("expected %e, got %e", 1e8/sf.MinBurstTime, sfr)
	}

	sfrCompact, _ := sf.StarFormationRate(1e8, 0, 0.0001, 0, 0.01, 1, true, 100, 0)
	sfrExtended, _ := sf.StarFormationRate(1e8, 0, 0.01, 0, 0.01, 1, true, 100, 0)
	if sfrCompact < sfrExtended {
		t.Errorf("compact burst should be at least as fast: %e < %e", sfrCompact, sfrExtended)
	}
}

func TestConstantEfficiency_MolecularGas(t *testing.T) {
	sf := NewConstantEfficiency()
	g := galaxy.New(1, galaxy.Central)
	g.DiskGas.Mass = 10
	g.BulgeGas.Mass = 4

	mg := sf.MolecularGas(g)
	if math.Abs(mg.MAtom+mg.MMol-10) > 1e-12 {
		t.Errorf("disk partition does not sum to disk gas: %+v", mg)
	}
	if mg.MMolBulge != 4 {
		t.Errorf("expected molecular bulge gas 4, got %f", mg.MMolBulge)
	}
}

func TestReservoirCooling(t *testing.T) {
	c := NewReservoirCooling()
	s := galaxy.NewSubhalo(1, 1, 0, galaxy.CentralSubhalo)
	s.HotHaloGas.Mass = 1e11
	s.HotHaloGas.MassMetals = 1e9
	s.HotHaloGas.SAM = 100
	s.ColdHaloGas.Mass = 1e10
	g := galaxy.New(1, galaxy.Central)

	totalBefore := s.HotHaloGas.Mass + s.ColdHaloGas.Mass
	rate := c.CoolingRate(s, g, 0, 0.5)

	if rate <= 0 {
		t.Fatalf("expected positive cooling rate, got %e", rate)
	}
	if rate*0.5 > s.ColdHaloGas.Mass {
		t.Errorf("cooling removes more than the reservoir: %e > %e", rate*0.5, s.ColdHaloGas.Mass)
	}
	totalAfter := s.HotHaloGas.Mass + s.ColdHaloGas.Mass
	if math.Abs(totalAfter-totalBefore) > 1e-6*totalBefore {
		t.Errorf("condensation did not conserve mass: %e vs %e", totalAfter, totalBefore)
	}
	if s.CoolingTracking.LastRate != rate {
		t.Errorf("tracking not updated: %e", s.CoolingTracking.LastRate)
	}
}

func TestReservoirCooling_ZeroStep(t *testing.T) {
	c := NewReservoirCooling()
	s := galaxy.NewSubhalo(1, 1, 0, galaxy.CentralSubhalo)
	s.ColdHaloGas.Mass = 1e10
	if rate := c.CoolingRate(s, galaxy.New(1, galaxy.Central), 0, 0); rate != 0 {
		t.Errorf("expected zero rate for zero step, got %e", rate)
	}
}
