package evolve

import (
	"github.com/san-kum/galevo/internal/galaxy"
	"github.com/san-kum/galevo/internal/physics"
)

// Record is the baryon budget of all halos at one snapshot. Records are
// values; once appended to a Log they are never modified.
type Record struct {
	Snapshot int     `json:"snapshot"`
	Redshift float64 `json:"redshift"`

	Halos    int `json:"halos"`
	Subhalos int `json:"subhalos"`
	Galaxies int `json:"galaxies"`

	MDM                galaxy.BaryonBase `json:"m_dm"`
	MHotHalo           galaxy.BaryonBase `json:"m_hot_halo"`
	MColdHalo          galaxy.BaryonBase `json:"m_cold_halo"`
	MEjectedHalo       galaxy.BaryonBase `json:"m_ejected_halo"`
	MCold              galaxy.BaryonBase `json:"m_cold"`
	MStars             galaxy.BaryonBase `json:"m_stars"`
	MStarsBurstMergers galaxy.BaryonBase `json:"m_stars_burst_mergers"`
	MStarsBurstDiskIns galaxy.BaryonBase `json:"m_stars_burst_diskins"`
	MHI                galaxy.BaryonBase `json:"m_hi"`
	MH2                galaxy.BaryonBase `json:"m_h2"`
	MBH                galaxy.BaryonBase `json:"m_bh"`

	SFRDisk  float64 `json:"sfr_disk"`
	SFRBurst float64 `json:"sfr_burst"`

	MajorMergers      int `json:"major_mergers"`
	MinorMergers      int `json:"minor_mergers"`
	DiskInstabilities int `json:"disk_instabilities"`

	LostBaryonMass            float64 `json:"lost_baryon_mass"`
	SubhalosWithoutDescendant int     `json:"subhalos_without_descendant"`
}

// TotalBaryons is every baryon bound to halos and galaxies.
func (r Record) TotalBaryons() float64 {
	return r.MHotHalo.Mass + r.MColdHalo.Mass + r.MEjectedHalo.Mass + r.MCold.Mass + r.MStars.Mass + r.MBH.Mass
}

// AccountingOptions controls TrackTotalBaryons.
type AccountingOptions struct {
	Redshift float64
	// DeltaT is the length of the snapshot interval and MeanAge the cosmic
	// age at its midpoint, both in Gyr.
	DeltaT  float64
	MeanAge float64
	// OutputSFHistories updates per galaxy stellar ages and histories.
	OutputSFHistories bool
	// Partition splits cold gas into atomic and molecular phases. Optional.
	Partition physics.GasPartition
}

// TrackTotalBaryons aggregates the baryon content of halos at snapshot. It
// only writes to galaxies when opts.OutputSFHistories is set.
func TrackTotalBaryons(halos []*galaxy.Halo, snapshot int, opts AccountingOptions) Record {
	r := Record{Snapshot: snapshot, Redshift: opts.Redshift, Halos: len(halos)}

	for _, h := range halos {
		r.MDM.Mass += h.Mvir

		for _, s := range h.AllSubhalos() {
			r.Subhalos++
			r.MHotHalo.Add(s.HotHaloGas.BaryonBase)
			r.MColdHalo.Add(s.ColdHaloGas.BaryonBase)
			r.MEjectedHalo.Add(s.EjectedGalaxyGas.BaryonBase)

			for _, g := range s.Galaxies {
				r.Galaxies++
				r.MajorMergers += g.Interaction.MajorMergers
				r.MinorMergers += g.Interaction.MinorMergers
				r.DiskInstabilities += g.Interaction.DiskInstabilities

				if opts.OutputSFHistories {
					recordHistory(g, snapshot, opts)
				}

				if opts.Partition != nil {
					mol := opts.Partition.MolecularGas(g)
					r.MHI.Mass += mol.MAtom + mol.MAtomBulge
					r.MH2.Mass += mol.MMol + mol.MMolBulge
				}

				r.MCold.Add(g.DiskGas.BaryonBase)
				r.MCold.Add(g.BulgeGas.BaryonBase)
				r.MStars.Add(g.DiskStars.BaryonBase)
				r.MStars.Add(g.BulgeStars.BaryonBase)
				r.MStarsBurstMergers.Add(g.GalaxyMergersBurstStars)
				r.MStarsBurstDiskIns.Add(g.DiskInstabilitiesBurstStars)
				r.MBH.Add(g.SMBH)

				r.SFRDisk += g.SFRDisk
				r.SFRBurst += g.SFRBulgeMergers + g.SFRBulgeDiskIns
			}
		}
	}
	return r
}

// recordHistory folds this snapshot's star formation into the running mean
// stellar age and appends a history item.
func recordHistory(g *galaxy.Galaxy, snapshot int, opts AccountingOptions) {
	formed := g.SFR() * opts.DeltaT
	if total := g.TotalStellarMassEverFormed + formed; total > 0 {
		g.MeanStellarAge = (g.MeanStellarAge*g.TotalStellarMassEverFormed + formed*opts.MeanAge) / total
	}
	g.TotalStellarMassEverFormed += formed

	g.History = append(g.History, galaxy.HistoryItem{
		Snapshot:         snapshot,
		SFRDisk:          g.SFRDisk,
		SFRBulgeMergers:  g.SFRBulgeMergers,
		SFRBulgeDiskIns:  g.SFRBulgeDiskIns,
		SFRZDisk:         g.SFRZDisk,
		SFRZBulgeMergers: g.SFRZBulgeMergers,
		SFRZBulgeDiskIns: g.SFRZBulgeDiskIns,
	})
}
