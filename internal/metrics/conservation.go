package metrics

import (
	"math"

	"github.com/san-kum/galevo/internal/evolve"
)

// BaryonDrift tracks the largest relative departure of the baryon budget,
// bound plus lost, from its first observed value.
type BaryonDrift struct {
	name     string
	initial  float64
	lost     float64
	maxDrift float64
	samples  int
}

func NewBaryonDrift() *BaryonDrift {
	return &BaryonDrift{name: "baryon_drift"}
}

func (b *BaryonDrift) Name() string { return b.name }

func (b *BaryonDrift) Observe(r evolve.Record) {
	total := r.TotalBaryons() + b.lost
	b.lost += r.LostBaryonMass

	if b.samples == 0 {
		b.initial = total
	}
	b.samples++

	if b.initial != 0 {
		drift := math.Abs(total-b.initial) / math.Abs(b.initial)
		b.maxDrift = math.Max(b.maxDrift, drift)
	}
}

func (b *BaryonDrift) Value() float64 { return b.maxDrift }

func (b *BaryonDrift) Reset() {
	b.initial = 0
	b.lost = 0
	b.maxDrift = 0
	b.samples = 0
}

// PeakSFR is the highest total star formation rate seen.
type PeakSFR struct {
	peak float64
}

func NewPeakSFR() *PeakSFR { return &PeakSFR{} }

func (p *PeakSFR) Name() string { return "peak_sfr" }

func (p *PeakSFR) Observe(r evolve.Record) {
	p.peak = math.Max(p.peak, r.SFRDisk+r.SFRBurst)
}

func (p *PeakSFR) Value() float64 { return p.peak }

func (p *PeakSFR) Reset() { p.peak = 0 }

// StellarMassGrowth is the ratio of the last to the first non-zero stellar
// mass observed.
type StellarMassGrowth struct {
	first, last float64
}

func NewStellarMassGrowth() *StellarMassGrowth { return &StellarMassGrowth{} }

func (s *StellarMassGrowth) Name() string { return "stellar_mass_growth" }

func (s *StellarMassGrowth) Observe(r evolve.Record) {
	if s.first == 0 {
		s.first = r.MStars.Mass
	}
	s.last = r.MStars.Mass
}

func (s *StellarMassGrowth) Value() float64 {
	if s.first == 0 {
		return 0
	}
	return s.last / s.first
}

func (s *StellarMassGrowth) Reset() {
	s.first = 0
	s.last = 0
}
