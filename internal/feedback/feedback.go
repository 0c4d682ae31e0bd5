package feedback

import (
	"math"

	"github.com/san-kum/galevo/internal/physics"
)

// Outflow holds the loading factors of one feedback evaluation. Beta1 is the
// mass reheated from the disk into the hot halo per unit star formation and
// Beta2 the mass ejected from the halo. BetaJ1 and BetaJ2 scale the angular
// momentum transfer rate in the same way.
type Outflow struct {
	Beta1  float64
	Beta2  float64
	BetaJ1 float64
	BetaJ2 float64
}

// Feedback computes outflow loadings. Implementations are stateless and safe
// for concurrent use.
type Feedback interface {
	OutflowRate(sfr, vsubh, vgal, z float64) Outflow
}

// New builds the strategy selected by p.Variant.
func New(p Parameters) Feedback {
	if p.Variant == VariantPowerLaw {
		return &PowerLaw{params: p}
	}
	return &Parametrized{params: p}
}

// Parametrized implements the named laws of [Model].
type Parametrized struct {
	params Parameters
}

func NewParametrized(p Parameters) *Parametrized {
	return &Parametrized{params: p}
}

func (f *Parametrized) Parameters() Parameters { return f.params }

func (f *Parametrized) OutflowRate(sfr, vsubh, vgal, z float64) Outflow {
	p := f.params
	v := vsubh
	if p.GalaxyScaling {
		v = vgal
	}
	if sfr <= 0 || v <= 0 {
		return Outflow{}
	}

	vsn := 1.9 * math.Pow(v, 1.1)
	constSN := f.constSN(v, z)

	b1 := p.EpsDisk * constSN
	epsHalo := p.EpsHalo * constSN * 0.5 * vsn * vsn
	energyHalo := 0.5 * v * v

	mreheat := b1 * sfr
	mejected := epsHalo/energyHalo*sfr - mreheat

	var b2 float64
	if mejected > 0 {
		b2 = mejected / sfr
		if b2 >= b1 {
			b2 = b1
			b1 += physics.EPS3
		}
	} else {
		b1 = epsHalo / energyHalo
	}

	// Outflowing gas leaves with the mean specific angular momentum of the
	// disk gas, so the angular momentum loading follows the mass loading.
	return Outflow{Beta1: b1, Beta2: b2, BetaJ1: b1, BetaJ2: b2}
}

func (f *Parametrized) constSN(v, z float64) float64 {
	p := f.params
	power := p.BetaDisk

	switch p.Model {
	case FIRE:
		if v > p.VSN {
			power = 1
		}
		return math.Pow(1+z, p.RedshiftPower) * math.Pow(p.VSN/v, power)
	case LAGOS13:
		vhot := p.VSN * math.Pow(1+z, p.RedshiftPower)
		return math.Pow(vhot/v, power)
	case LAGOS13Trunc:
		vhot := p.VSN * math.Pow(1+z, p.RedshiftPower)
		if v > p.VSN {
			power = 1
		}
		return math.Pow(vhot/v, power)
	case GALFORM:
		return math.Pow(p.VSN/v, power)
	case LGALAXIES:
		return 0.5 + math.Pow(p.VSN/v, power)
	case GALFORMFIRE:
		if v > p.VSN {
			power = 1
		}
		return math.Pow(1+z, p.RedshiftPower) * math.Pow(p.VSN/v, power)
	}
	return 0
}

// PowerLaw is the simplified variant: reheating scales as a power of the
// circular velocity and ejection is a fixed fraction of it.
type PowerLaw struct {
	params Parameters
}

func NewPowerLaw(p Parameters) *PowerLaw {
	return &PowerLaw{params: p}
}

func (f *PowerLaw) OutflowRate(sfr, vsubh, vgal, z float64) Outflow {
	p := f.params
	v := vsubh
	if p.GalaxyScaling {
		v = vgal
	}
	if sfr <= 0 || v <= 0 {
		return Outflow{}
	}

	b1 := p.EpsDisk * math.Pow(p.VSN/v, p.BetaDisk)
	b2 := math.Max(0, math.Min(p.BetaHalo, 1)) * b1
	if b2 > 0 && b2 >= b1 {
		b1 += physics.EPS3
	}
	return Outflow{Beta1: b1, Beta2: b2, BetaJ1: b1, BetaJ2: b2}
}
