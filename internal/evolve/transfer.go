package evolve

import (
	"context"
	"fmt"

	"github.com/san-kum/galevo/internal/dynamo"
	"github.com/san-kum/galevo/internal/galaxy"
	"go.uber.org/zap"
)

// TransferStats summarizes one snapshot boundary.
type TransferStats struct {
	Snapshot int `json:"snapshot"`
	// Subhalos whose galaxies moved to a descendant.
	Transferred int `json:"transferred"`
	// Satellites whose galaxies were already merged away.
	Skipped                   int     `json:"skipped"`
	SubhalosWithoutDescendant int     `json:"subhalos_without_descendant"`
	LostBaryonMass            float64 `json:"lost_baryon_mass"`
}

type TransferOption func(*Transferer)

func WithTransferLogger(l *zap.Logger) TransferOption {
	return func(t *Transferer) { t.logger = l }
}

// WithParallelism bounds how many descendants are filled concurrently.
func WithParallelism(n int) TransferOption {
	return func(t *Transferer) { t.parallelism = n }
}

// Transferer hands galaxies and halo gas over from each subhalo to its
// descendant in the next snapshot.
type Transferer struct {
	forest      *galaxy.Forest
	logger      *zap.Logger
	parallelism int
}

func NewTransferer(forest *galaxy.Forest, opts ...TransferOption) *Transferer {
	t := &Transferer{forest: forest, logger: zap.NewNop(), parallelism: 1}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type transferGroup struct {
	descendant *galaxy.Subhalo
	sources    []*galaxy.Subhalo
}

// TransferGalaxiesToNextSnapshot runs the transfer for every subhalo of halos,
// which all belong to snapshot. The descendant of every transferred subhalo
// must be empty on entry.
// Sources sharing a descendant are processed sequentially; distinct
// descendants are filled in parallel.
func (t *Transferer) TransferGalaxiesToNextSnapshot(ctx context.Context, halos []*galaxy.Halo, snapshot int) (TransferStats, error) {
	stats := TransferStats{Snapshot: snapshot}

	var subhalos []*galaxy.Subhalo
	for _, h := range halos {
		subhalos = append(subhalos, h.AllSubhalos()...)
	}

	descendants := make(map[int64]*galaxy.Subhalo, len(subhalos))
	for _, s := range subhalos {
		d, err := t.forest.Descendant(s)
		if err != nil {
			return stats, err
		}
		if d != nil {
			descendants[s.ID] = d
		}
	}

	var groups []*transferGroup
	byDescendant := make(map[int64]*transferGroup)

	for _, s := range subhalos {
		for _, g := range s.Galaxies {
			g.ResetSFR()
			g.Interaction.Restore()
		}

		if s.Type == galaxy.SatelliteSubhalo && s.LastSnapshotIdentified == s.Snapshot {
			stats.Skipped++
			continue
		}

		d := descendants[s.ID]
		if d == nil {
			stats.SubhalosWithoutDescendant++
			stats.LostBaryonMass += s.TotalBaryonMass()
			continue
		}

		if d.GalaxyCount() != 0 {
			return stats, &dynamo.TreeError{SubhaloID: s.ID, DescendantID: d.ID, Snapshot: snapshot,
				Message: fmt.Sprintf("descendant already holds %d galaxies before transfer", d.GalaxyCount())}
		}
		if d.Snapshot != s.Snapshot+1 {
			return stats, &dynamo.TreeError{SubhaloID: s.ID, DescendantID: d.ID, Snapshot: s.Snapshot,
				Message: fmt.Sprintf("descendant is in snapshot %d, not the subsequent one", d.Snapshot)}
		}

		grp, ok := byDescendant[d.ID]
		if !ok {
			grp = &transferGroup{descendant: d}
			byDescendant[d.ID] = grp
			groups = append(groups, grp)
		}
		grp.sources = append(grp.sources, s)
	}

	err := dynamo.ForEach(ctx, len(groups), t.parallelism, func(ctx context.Context, i int) error {
		grp := groups[i]
		for _, s := range grp.sources {
			if err := transferSubhalo(s, grp.descendant); err != nil {
				return err
			}
		}
		grp.descendant.SortGalaxies()
		return grp.descendant.CheckGalaxyComposition()
	})
	if err != nil {
		return stats, err
	}

	for _, grp := range groups {
		stats.Transferred += len(grp.sources)
	}

	// Descendants of skipped satellites were filled by galaxy merging, not
	// here, and still have to be consistent.
	for _, d := range descendants {
		if _, ok := byDescendant[d.ID]; ok {
			continue
		}
		if err := d.CheckGalaxyComposition(); err != nil {
			return stats, err
		}
	}

	if stats.SubhalosWithoutDescendant > 0 {
		t.logger.Warn("found subhalos without descendant while transferring galaxies",
			zap.Int("snapshot", snapshot),
			zap.Int("subhalos", stats.SubhalosWithoutDescendant),
			zap.Float64("lost_baryon_mass", stats.LostBaryonMass),
		)
	}
	t.logger.Debug("transferred galaxies",
		zap.Int("snapshot", snapshot),
		zap.Int("subhalos", stats.Transferred),
		zap.Int("descendants", len(groups)),
		zap.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

func transferSubhalo(s, d *galaxy.Subhalo) error {
	if err := s.CheckGalaxyComposition(); err != nil {
		return err
	}
	AdjustMainGalaxy(s, d)
	s.TransferGalaxiesTo(d)

	d.ColdHaloGas.Add(s.ColdHaloGas)
	d.HotHaloGas.Add(s.HotHaloGas)
	d.EjectedGalaxyGas.Add(s.EjectedGalaxyGas)
	s.ColdHaloGas.Restore()
	s.HotHaloGas.Restore()
	s.EjectedGalaxyGas.Restore()

	if s.MainProgenitor {
		d.CoolingTracking = s.CoolingTracking
	}
	return nil
}

// AdjustMainGalaxy reclassifies the galaxy following parent once it moves
// into descendant. Only the main progenitor can keep a central or type 1
// galaxy; any other becomes type 2 and keeps a record of its last subhalo.
func AdjustMainGalaxy(parent, descendant *galaxy.Subhalo) {
	main := parent.MainGalaxy()
	if main == nil {
		return
	}

	switch {
	case descendant.Type == galaxy.CentralSubhalo && parent.MainProgenitor:
		main.Type = galaxy.Central
	case descendant.Type == galaxy.SatelliteSubhalo && parent.MainProgenitor:
		main.Type = galaxy.Type1
	default:
		main.Type = galaxy.Type2
	}

	if main.Type == galaxy.Type2 {
		main.ConcentrationType2 = parent.Concentration
		main.MsubhaloType2 = parent.Mvir
		main.LambdaType2 = parent.Lambda
	}
}
