package galaxy

import (
	"fmt"
	"sort"

	"github.com/san-kum/galevo/internal/dynamo"
)

type SubhaloType int

const (
	CentralSubhalo SubhaloType = iota
	SatelliteSubhalo
)

func (t SubhaloType) String() string {
	if t == CentralSubhalo {
		return "CENTRAL"
	}
	return "SATELLITE"
}

// NoDescendant marks a subhalo whose branch terminates.
const NoDescendant int64 = -1

// CoolingTracking is the cooling history a subhalo hands over to the
// descendant it is the main progenitor of.
type CoolingTracking struct {
	MassCooled    float64 `json:"mass_cooled"`
	LastRate      float64 `json:"last_rate"`
	TimeSinceHeat float64 `json:"time_since_heat"`
}

type Subhalo struct {
	ID       int64
	HaloID   int64
	Snapshot int
	Type     SubhaloType

	MainProgenitor         bool
	DescendantID           int64
	LastSnapshotIdentified int

	Vvir          float64
	Vmax          float64
	Mvir          float64
	Concentration float64
	Lambda        float64

	// Centrals first.
	Galaxies []*Galaxy

	ColdHaloGas      Baryon
	HotHaloGas       Baryon
	EjectedGalaxyGas Baryon

	CoolingTracking CoolingTracking
}

func NewSubhalo(id, haloID int64, snapshot int, t SubhaloType) *Subhalo {
	return &Subhalo{
		ID:                     id,
		HaloID:                 haloID,
		Snapshot:               snapshot,
		Type:                   t,
		DescendantID:           NoDescendant,
		LastSnapshotIdentified: -1,
	}
}

func (s *Subhalo) HasDescendant() bool {
	return s.DescendantID != NoDescendant
}

func (s *Subhalo) GalaxyCount() int {
	return len(s.Galaxies)
}

func (s *Subhalo) AddGalaxy(g *Galaxy) {
	s.Galaxies = append(s.Galaxies, g)
}

func (s *Subhalo) firstOfType(t GalaxyType) *Galaxy {
	for _, g := range s.Galaxies {
		if g.Type == t {
			return g
		}
	}
	return nil
}

func (s *Subhalo) CentralGalaxy() *Galaxy { return s.firstOfType(Central) }

func (s *Subhalo) Type1Galaxy() *Galaxy { return s.firstOfType(Type1) }

// MainGalaxy is the galaxy that follows this subhalo: the central galaxy of a
// central subhalo, the type 1 galaxy of a satellite.
func (s *Subhalo) MainGalaxy() *Galaxy {
	if s.Type == CentralSubhalo {
		return s.CentralGalaxy()
	}
	return s.Type1Galaxy()
}

// TotalBaryonMass sums the halo reservoirs and every galaxy's baryons.
func (s *Subhalo) TotalBaryonMass() float64 {
	mass := s.ColdHaloGas.Mass + s.HotHaloGas.Mass + s.EjectedGalaxyGas.Mass
	for _, g := range s.Galaxies {
		mass += g.BaryonMass()
	}
	return mass
}

// CheckGalaxyComposition verifies that the subhalo holds at most one central
// and one type 1 galaxy, and that their kinds agree with the subhalo type.
func (s *Subhalo) CheckGalaxyComposition() error {
	centrals, type1s := 0, 0
	for _, g := range s.Galaxies {
		switch g.Type {
		case Central:
			centrals++
		case Type1:
			type1s++
		}
	}

	var msg string
	switch {
	case centrals > 1:
		msg = fmt.Sprintf("subhalo has %d central galaxies", centrals)
	case type1s > 1:
		msg = fmt.Sprintf("subhalo has %d type 1 galaxies", type1s)
	case s.Type == CentralSubhalo && type1s > 0:
		msg = "central subhalo has a type 1 galaxy"
	case s.Type == SatelliteSubhalo && centrals > 0:
		msg = "satellite subhalo has a central galaxy"
	default:
		return nil
	}
	return &dynamo.TreeError{SubhaloID: s.ID, DescendantID: s.DescendantID, Snapshot: s.Snapshot, Message: msg}
}

// TransferGalaxiesTo moves every galaxy to target. s is left empty.
func (s *Subhalo) TransferGalaxiesTo(target *Subhalo) {
	target.Galaxies = append(target.Galaxies, s.Galaxies...)
	s.Galaxies = nil
}

// SortGalaxies orders galaxies centrals first, then type 1, then type 2,
// keeping the relative order within each kind.
func (s *Subhalo) SortGalaxies() {
	sort.SliceStable(s.Galaxies, func(i, j int) bool {
		return s.Galaxies[i].Type < s.Galaxies[j].Type
	})
}

func (s *Subhalo) String() string {
	return fmt.Sprintf("subhalo %d (%s, snapshot %d)", s.ID, s.Type, s.Snapshot)
}
