package galaxy

import (
	"fmt"
	"sort"

	"github.com/san-kum/galevo/internal/dynamo"
)

// Halo groups the subhalos that share one host at one snapshot.
type Halo struct {
	ID       int64
	Snapshot int
	Mvir     float64
	Vvir     float64

	subhalos []*Subhalo
}

func NewHalo(id int64, snapshot int) *Halo {
	return &Halo{ID: id, Snapshot: snapshot}
}

func (h *Halo) AddSubhalo(s *Subhalo) {
	s.HaloID = h.ID
	h.subhalos = append(h.subhalos, s)
}

// AllSubhalos returns the subhalos, central first.
func (h *Halo) AllSubhalos() []*Subhalo {
	return h.subhalos
}

func (h *Halo) CentralSubhalo() *Subhalo {
	for _, s := range h.subhalos {
		if s.Type == CentralSubhalo {
			return s
		}
	}
	return nil
}

func (h *Halo) GalaxyCount() int {
	n := 0
	for _, s := range h.subhalos {
		n += s.GalaxyCount()
	}
	return n
}

// Forest is the arena of every halo and subhalo of a run. Descendant links
// are subhalo ids resolved through the forest, never pointers.
type Forest struct {
	halos    map[int][]*Halo
	subhalos map[int64]*Subhalo
}

func NewForest() *Forest {
	return &Forest{
		halos:    make(map[int][]*Halo),
		subhalos: make(map[int64]*Subhalo),
	}
}

// AddHalo registers a halo and its subhalos. Subhalo ids must be unique
// across the whole forest.
func (f *Forest) AddHalo(h *Halo) error {
	for _, s := range h.subhalos {
		if _, dup := f.subhalos[s.ID]; dup {
			return fmt.Errorf("%w: duplicate subhalo id %d", dynamo.ErrTreeConsistency, s.ID)
		}
		if s.Snapshot != h.Snapshot {
			return fmt.Errorf("%w: subhalo %d snapshot %d differs from halo %d snapshot %d", dynamo.ErrTreeConsistency, s.ID, s.Snapshot, h.ID, h.Snapshot)
		}
	}
	for _, s := range h.subhalos {
		f.subhalos[s.ID] = s
	}
	f.halos[h.Snapshot] = append(f.halos[h.Snapshot], h)
	return nil
}

func (f *Forest) Subhalo(id int64) (*Subhalo, bool) {
	s, ok := f.subhalos[id]
	return s, ok
}

// Descendant resolves the descendant of s, or nil when the branch ends.
// A dangling id is reported as an error.
func (f *Forest) Descendant(s *Subhalo) (*Subhalo, error) {
	if !s.HasDescendant() {
		return nil, nil
	}
	d, ok := f.subhalos[s.DescendantID]
	if !ok {
		return nil, &dynamo.TreeError{SubhaloID: s.ID, DescendantID: s.DescendantID, Snapshot: s.Snapshot, Message: "unknown descendant"}
	}
	return d, nil
}

func (f *Forest) Halos(snapshot int) []*Halo {
	return f.halos[snapshot]
}

// Snapshots returns every snapshot holding halos, ascending.
func (f *Forest) Snapshots() []int {
	snaps := make([]int, 0, len(f.halos))
	for s := range f.halos {
		snaps = append(snaps, s)
	}
	sort.Ints(snaps)
	return snaps
}

func (f *Forest) SubhaloCount() int {
	return len(f.subhalos)
}

// Galaxies returns every galaxy currently held by a halo of the snapshot.
func (f *Forest) Galaxies(snapshot int) []*Galaxy {
	var out []*Galaxy
	for _, h := range f.halos[snapshot] {
		for _, s := range h.subhalos {
			out = append(out, s.Galaxies...)
		}
	}
	return out
}
