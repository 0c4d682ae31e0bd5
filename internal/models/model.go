package models

import (
	"github.com/san-kum/galevo/internal/galaxy"
)

// State vector layout of the basic model.
const (
	IdxStars = iota
	IdxDiskGas
	IdxColdHaloGas
	IdxHotHaloGas
	IdxEjectedGas
	IdxStarsMetals
	IdxDiskGasMetals
	IdxColdHaloGasMetals
	IdxHotHaloGasMetals
	IdxEjectedGasMetals
	IdxFormedStars
	IdxFormedMetals
	IdxStarsAM
	IdxDiskGasAM
	IdxColdHaloGasAM
	IdxHotHaloGasAM
	IdxEjectedGasAM

	NumEquations
)

// SolverParams is the physical context of one evolve call. It is built by the
// caller for a single integration and never retained.
type SolverParams struct {
	// RGas and RStar are the gas and stellar scale radii, in Mpc.
	RGas  float64
	RStar float64
	// MCoolRate is the cooling rate onto the galaxy, in Msun/Gyr.
	MCoolRate float64
	// JColdHalo is the specific angular momentum of the cooling gas.
	JColdHalo float64
	DeltaT    float64
	Redshift  float64
	// VSubh is the subhalo virial velocity and VGal the galaxy circular
	// velocity, in km/s.
	VSubh float64
	VGal  float64
	// Burst selects bulge star formation.
	Burst bool
}

// PhysicalModel evolves galaxies one step at a time. Implementations may be
// shared by goroutines working on distinct subhalos.
type PhysicalModel interface {
	NumEquations() int
	EvolveGalaxy(s *galaxy.Subhalo, g *galaxy.Galaxy, z, deltaT float64) error
	EvolveGalaxyStarburst(s *galaxy.Subhalo, g *galaxy.Galaxy, z, deltaT float64, fromGalaxyMerger bool) error
	GalaxyODEEvaluations() uint64
	GalaxyStarburstODEEvaluations() uint64
	ResetODEEvaluations()
}
