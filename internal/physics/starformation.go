package physics

import (
	"math"
	"sync/atomic"

	"github.com/san-kum/galevo/internal/galaxy"
)

const (
	DefaultNuSF              = 1.0
	DefaultMolecularFraction = 0.5
	DefaultBurstTimeFactor   = 10.0
	DefaultMinBurstTime      = 0.01
)

// StarFormation computes the star formation rate of a gas reservoir and the
// rate at which gas angular momentum is locked into stars.
type StarFormation interface {
	StarFormationRate(mgas, mstars, rgas, rstars, zgas, z float64, burst bool, vgal, jgas float64) (sfr, jrate float64)
}

// MolecularGas is the atomic/molecular split of a galaxy's cold gas.
type MolecularGas struct {
	MAtom      float64 `json:"m_atom"`
	MMol       float64 `json:"m_mol"`
	MAtomBulge float64 `json:"m_atom_b"`
	MMolBulge  float64 `json:"m_mol_b"`
}

// GasPartition splits a galaxy's cold gas into atomic and molecular phases.
type GasPartition interface {
	MolecularGas(g *galaxy.Galaxy) MolecularGas
}

// ConstantEfficiency forms stars from the molecular gas of the disk at a
// fixed efficiency. Bursts consume the bulge gas over a multiple of its
// dynamical time.
type ConstantEfficiency struct {
	// NuSF is the molecular gas depletion rate, in 1/Gyr.
	NuSF float64 `yaml:"nu_sf"`
	// MolecularFraction is the molecular share of disk gas.
	MolecularFraction float64 `yaml:"molecular_fraction"`
	// BurstTimeFactor scales the bulge dynamical time into a burst duration.
	BurstTimeFactor float64 `yaml:"burst_time_factor"`
	// MinBurstTime floors the burst duration, in Gyr.
	MinBurstTime float64 `yaml:"min_burst_time"`

	evaluations atomic.Uint64
}

func NewConstantEfficiency() *ConstantEfficiency {
	return &ConstantEfficiency{
		NuSF:              DefaultNuSF,
		MolecularFraction: DefaultMolecularFraction,
		BurstTimeFactor:   DefaultBurstTimeFactor,
		MinBurstTime:      DefaultMinBurstTime,
	}
}

func (c *ConstantEfficiency) StarFormationRate(mgas, mstars, rgas, rstars, zgas, z float64, burst bool, vgal, jgas float64) (float64, float64) {
	c.evaluations.Add(1)

	if mgas <= 0 {
		return 0, 0
	}

	var sfr float64
	if burst {
		sfr = mgas / c.burstTime(rgas, vgal)
	} else {
		sfr = c.NuSF * c.MolecularFraction * mgas
	}

	jrate := sfr * jgas
	if math.IsNaN(jrate) || math.IsInf(jrate, 0) {
		jrate = 0
	}
	return sfr, jrate
}

func (c *ConstantEfficiency) burstTime(rgas, vgal float64) float64 {
	if rgas <= 0 || vgal <= 0 {
		return c.MinBurstTime
	}
	tdyn := rgas / vgal * MpcKmsToGyr
	return math.Max(c.BurstTimeFactor*tdyn, c.MinBurstTime)
}

func (c *ConstantEfficiency) MolecularGas(g *galaxy.Galaxy) MolecularGas {
	return MolecularGas{
		MAtom:      (1 - c.MolecularFraction) * g.DiskGas.Mass,
		MMol:       c.MolecularFraction * g.DiskGas.Mass,
		MAtomBulge: 0,
		MMolBulge:  g.BulgeGas.Mass,
	}
}

// IntegrationIntervals counts rate evaluations since the last reset.
func (c *ConstantEfficiency) IntegrationIntervals() uint64 {
	return c.evaluations.Load()
}

func (c *ConstantEfficiency) ResetIntegrationIntervals() {
	c.evaluations.Store(0)
}
