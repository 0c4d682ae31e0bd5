// Package scenario builds synthetic merger forests for runs and tests.
//
// A generated forest is always consistent: every descendant sits in the next
// snapshot, descendants are empty when the transfer reaches them, and each
// descendant has exactly one main progenitor.
package scenario

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"

	"github.com/san-kum/galevo/internal/dynamo"
	"github.com/san-kum/galevo/internal/galaxy"
	"github.com/san-kum/galevo/internal/physics"
)

// Params controls the shape of the generated forest.
type Params struct {
	Seed      int64 `yaml:"seed" env:"SEED"`
	Snapshots int   `yaml:"snapshots" env:"SNAPSHOTS"`
	// Halos is the number of halos seeded in the first snapshot and
	// NewHalos the number seeded in every later one.
	Halos    int `yaml:"halos" env:"HALOS"`
	NewHalos int `yaml:"new_halos" env:"NEW_HALOS"`
	// MaxSatellites bounds the satellites of a freshly seeded halo.
	MaxSatellites int `yaml:"max_satellites" env:"MAX_SATELLITES"`

	ZStart float64 `yaml:"z_start" env:"Z_START"`
	ZEnd   float64 `yaml:"z_end" env:"Z_END"`

	// MinHaloMass and MaxHaloMass bound the log-uniform seed mass, in Msun.
	MinHaloMass float64 `yaml:"min_halo_mass" env:"MIN_HALO_MASS"`
	MaxHaloMass float64 `yaml:"max_halo_mass" env:"MAX_HALO_MASS"`
	// GrowthRate is the fractional subhalo mass growth per snapshot.
	GrowthRate float64 `yaml:"growth_rate" env:"GROWTH_RATE"`

	// Per snapshot probabilities: a satellite merging into its central, a
	// satellite branch ending without descendant, a whole halo falling
	// into another.
	SatelliteMergeProbability float64 `yaml:"satellite_merge_probability" env:"SATELLITE_MERGE_PROBABILITY"`
	StripProbability          float64 `yaml:"strip_probability" env:"STRIP_PROBABILITY"`
	HaloMergeProbability      float64 `yaml:"halo_merge_probability" env:"HALO_MERGE_PROBABILITY"`

	// BaryonFraction is the baryon share of a seeded subhalo, ColdGasFraction
	// the share of those baryons starting in the disk and StellarFraction
	// the share starting as disk stars.
	BaryonFraction  float64 `yaml:"baryon_fraction" env:"BARYON_FRACTION"`
	ColdGasFraction float64 `yaml:"cold_gas_fraction" env:"COLD_GAS_FRACTION"`
	StellarFraction float64 `yaml:"stellar_fraction" env:"STELLAR_FRACTION"`
	Metallicity     float64 `yaml:"metallicity" env:"METALLICITY"`
}

func DefaultParams() Params {
	return Params{
		Seed:                      42,
		Snapshots:                 20,
		Halos:                     16,
		NewHalos:                  1,
		MaxSatellites:             3,
		ZStart:                    6,
		ZEnd:                      0,
		MinHaloMass:               1e10,
		MaxHaloMass:               1e12,
		GrowthRate:                0.05,
		SatelliteMergeProbability: 0.1,
		StripProbability:          0.02,
		HaloMergeProbability:      0.05,
		BaryonFraction:            0.157,
		ColdGasFraction:           0.2,
		StellarFraction:           0.02,
		Metallicity:               1e-4,
	}
}

func (p Params) Validate() error {
	switch {
	case p.Snapshots < 2:
		return dynamo.ConfigError("snapshots", strconv.Itoa(p.Snapshots), "At least two snapshots are needed.")
	case p.Halos < 1:
		return dynamo.ConfigError("halos", strconv.Itoa(p.Halos), "At least one halo is needed.")
	case p.NewHalos < 0 || p.MaxSatellites < 0:
		return dynamo.ConfigError("new_halos/max_satellites", fmt.Sprintf("%d/%d", p.NewHalos, p.MaxSatellites), "Counts cannot be negative.")
	case p.ZEnd < 0 || p.ZStart <= p.ZEnd:
		return dynamo.ConfigError("z_start", formatFloat(p.ZStart), "Redshifts must satisfy z_start > z_end >= 0.")
	case p.MinHaloMass <= 0 || p.MaxHaloMass < p.MinHaloMass:
		return dynamo.ConfigError("min_halo_mass", formatFloat(p.MinHaloMass), "Halo mass bounds must satisfy 0 < min <= max.")
	case p.GrowthRate < 0:
		return dynamo.ConfigError("growth_rate", formatFloat(p.GrowthRate), "Growth rate cannot be negative.")
	}

	for name, v := range map[string]float64{
		"satellite_merge_probability": p.SatelliteMergeProbability,
		"strip_probability":           p.StripProbability,
		"halo_merge_probability":      p.HaloMergeProbability,
		"baryon_fraction":             p.BaryonFraction,
		"cold_gas_fraction":           p.ColdGasFraction,
		"stellar_fraction":            p.StellarFraction,
		"metallicity":                 p.Metallicity,
	} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return dynamo.ConfigError(name, formatFloat(v), "Value must lie in [0, 1].")
		}
	}
	if p.SatelliteMergeProbability+p.StripProbability > 1 {
		return dynamo.ConfigError("strip_probability", formatFloat(p.StripProbability), "Satellite merge and strip probabilities add up to more than 1.")
	}
	if p.ColdGasFraction+p.StellarFraction > 1 {
		return dynamo.ConfigError("stellar_fraction", formatFloat(p.StellarFraction), "Cold gas and stellar fractions add up to more than 1.")
	}
	return nil
}

// Scenario is a generated forest and the redshift of each of its snapshots.
type Scenario struct {
	Forest    *galaxy.Forest
	Redshifts []float64
	Galaxies  int
}

// Redshifts spaces n snapshots evenly in log(1+z) from zStart to zEnd.
func Redshifts(n int, zStart, zEnd float64) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = zEnd
		return out
	}
	a, b := math.Log1p(zStart), math.Log1p(zEnd)
	for i := range out {
		out[i] = math.Expm1(a + float64(i)/float64(n-1)*(b-a))
	}
	out[n-1] = zEnd
	return out
}

type generator struct {
	p   Params
	rng *rand.Rand

	redshifts []float64
	forest    *galaxy.Forest

	nextHalo, nextSubhalo, nextGalaxy int64
	galaxies                          int
}

// Generate builds a forest from p. The same Params always give the same
// forest.
func Generate(p Params) (*Scenario, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	g := &generator{
		p:         p,
		rng:       rand.New(rand.NewSource(p.Seed)),
		redshifts: Redshifts(p.Snapshots, p.ZStart, p.ZEnd),
		forest:    galaxy.NewForest(),
		nextHalo:  1,
		// subhalo ids never collide with galaxy.NoDescendant
		nextSubhalo: 1,
		nextGalaxy:  1,
	}

	current := make([]*galaxy.Halo, 0, p.Halos)
	for i := 0; i < p.Halos; i++ {
		current = append(current, g.seedHalo(0))
	}
	if err := g.register(current); err != nil {
		return nil, err
	}

	for snap := 1; snap < p.Snapshots; snap++ {
		next := g.descend(current, snap)
		for i := 0; i < p.NewHalos; i++ {
			next = append(next, g.seedHalo(snap))
		}
		if err := g.register(next); err != nil {
			return nil, err
		}
		current = next
	}

	return &Scenario{Forest: g.forest, Redshifts: g.redshifts, Galaxies: g.galaxies}, nil
}

func (g *generator) register(halos []*galaxy.Halo) error {
	for _, h := range halos {
		h.Mvir = 0
		for _, s := range h.AllSubhalos() {
			h.Mvir += s.Mvir
		}
		if c := h.CentralSubhalo(); c != nil {
			h.Vvir = c.Vvir
		}
		if err := g.forest.AddHalo(h); err != nil {
			return fmt.Errorf("register halo %d: %w", h.ID, err)
		}
	}
	return nil
}

func (g *generator) newHalo(snap int) *galaxy.Halo {
	h := galaxy.NewHalo(g.nextHalo, snap)
	g.nextHalo++
	return h
}

func (g *generator) newSubhalo(h *galaxy.Halo, t galaxy.SubhaloType, mvir, lambda float64) *galaxy.Subhalo {
	s := galaxy.NewSubhalo(g.nextSubhalo, h.ID, h.Snapshot, t)
	g.nextSubhalo++
	g.setStructure(s, mvir, lambda)
	h.AddSubhalo(s)
	return s
}

// setStructure derives velocities and concentration from mass and redshift
// with the usual virial scalings.
func (g *generator) setStructure(s *galaxy.Subhalo, mvir, lambda float64) {
	z := g.redshifts[s.Snapshot]
	m12 := mvir / 1e12
	s.Mvir = mvir
	s.Lambda = lambda
	s.Vvir = 200 * math.Cbrt(m12) * math.Sqrt(1+z)
	s.Vmax = 1.2 * s.Vvir
	s.Concentration = 10 * math.Pow(m12, -0.1) / (1 + z)
}

func (g *generator) virialRadius(s *galaxy.Subhalo) float64 {
	return 0.2 * math.Cbrt(s.Mvir/1e12) / (1 + g.redshifts[s.Snapshot])
}

func (g *generator) seedHalo(snap int) *galaxy.Halo {
	h := g.newHalo(snap)
	mass := g.logUniform(g.p.MinHaloMass, g.p.MaxHaloMass)

	c := g.newSubhalo(h, galaxy.CentralSubhalo, mass, g.lambda())
	g.seedGalaxy(c, galaxy.Central)

	for i, n := 0, g.rng.Intn(g.p.MaxSatellites+1); i < n; i++ {
		s := g.newSubhalo(h, galaxy.SatelliteSubhalo, mass*(0.02+0.18*g.rng.Float64()), g.lambda())
		g.seedGalaxy(s, galaxy.Type1)
	}
	return h
}

func (g *generator) seedGalaxy(s *galaxy.Subhalo, t galaxy.GalaxyType) {
	gal := galaxy.New(g.nextGalaxy, t)
	g.nextGalaxy++
	g.galaxies++
	gal.Vmax = s.Vmax

	baryons := g.p.BaryonFraction * s.Mvir
	rvir := g.virialRadius(s)

	// disk sized from the halo spin, with sAM matching a flat rotation at Vmax
	rdisk := s.Lambda * rvir / math.Sqrt2
	diskSAM := rdisk * s.Vmax / physics.EagleJConv
	haloSAM := math.Sqrt2 * s.Lambda * s.Vvir * rvir

	gal.DiskGas = g.reservoir(g.p.ColdGasFraction*baryons, diskSAM, rdisk)
	gal.DiskStars = g.reservoir(g.p.StellarFraction*baryons, diskSAM, rdisk)

	rest := (1 - g.p.ColdGasFraction - g.p.StellarFraction) * baryons
	s.ColdHaloGas = g.reservoir(0.2*rest, haloSAM, rvir)
	s.HotHaloGas = g.reservoir(0.8*rest, haloSAM, rvir)

	s.AddGalaxy(gal)
}

func (g *generator) reservoir(mass, sam, rscale float64) galaxy.Baryon {
	if mass <= 0 {
		return galaxy.Baryon{}
	}
	return galaxy.Baryon{
		BaryonBase: galaxy.BaryonBase{Mass: mass, MassMetals: g.p.Metallicity * mass},
		SAM:        sam,
		RScale:     rscale,
	}
}

// descend builds the halos of snap from the halos of the previous snapshot
// and links every progenitor subhalo to its descendant.
func (g *generator) descend(prev []*galaxy.Halo, snap int) []*galaxy.Halo {
	// a halo falls into a surviving one, never into another falling halo
	target := make([]int, len(prev))
	for i := range prev {
		target[i] = i
	}
	if len(prev) > 1 {
		for i := range prev {
			if g.rng.Float64() >= g.p.HaloMergeProbability {
				continue
			}
			j := g.rng.Intn(len(prev))
			if j != i && target[j] == j && !g.isTarget(target, i) {
				target[i] = j
			}
		}
	}

	next := make([]*galaxy.Halo, len(prev))
	centrals := make([]*galaxy.Subhalo, len(prev))
	var out []*galaxy.Halo
	for i, h := range prev {
		if target[i] != i {
			continue
		}
		c := h.CentralSubhalo()
		nh := g.newHalo(snap)
		nc := g.newSubhalo(nh, galaxy.CentralSubhalo, g.grow(c.Mvir), c.Lambda)
		link(c, nc, true)
		next[i], centrals[i] = nh, nc
		out = append(out, nh)
	}

	for i, h := range prev {
		host, hostCentral := next[target[i]], centrals[target[i]]
		falling := target[i] != i

		for _, s := range h.AllSubhalos() {
			if s.Type == galaxy.CentralSubhalo && !falling {
				continue
			}
			if falling && s.Type == galaxy.CentralSubhalo {
				ns := g.newSubhalo(host, galaxy.SatelliteSubhalo, g.grow(s.Mvir), s.Lambda)
				link(s, ns, true)
				continue
			}

			switch r := g.rng.Float64(); {
			case r < g.p.StripProbability:
				// branch ends
			case r < g.p.StripProbability+g.p.SatelliteMergeProbability:
				link(s, hostCentral, false)
			default:
				ns := g.newSubhalo(host, galaxy.SatelliteSubhalo, g.grow(s.Mvir), s.Lambda)
				link(s, ns, true)
			}
		}
	}
	return out
}

func (g *generator) isTarget(target []int, i int) bool {
	for j, t := range target {
		if j != i && t == i {
			return true
		}
	}
	return false
}

func link(s, d *galaxy.Subhalo, main bool) {
	s.DescendantID = d.ID
	s.MainProgenitor = main
}

func (g *generator) grow(m float64) float64 {
	return m * (1 + g.p.GrowthRate*(0.5+g.rng.Float64()))
}

func (g *generator) lambda() float64 {
	return 0.02 + 0.04*g.rng.Float64()
}

func (g *generator) logUniform(lo, hi float64) float64 {
	if lo == hi {
		return lo
	}
	return math.Exp(math.Log(lo) + g.rng.Float64()*(math.Log(hi)-math.Log(lo)))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
