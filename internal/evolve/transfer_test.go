package evolve_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/galevo/internal/dynamo"
	"github.com/san-kum/galevo/internal/evolve"
	"github.com/san-kum/galevo/internal/galaxy"
)

// tree is a two snapshot forest:
//
//	snapshot 10                       snapshot 11
//	halo 1: s1 central (main)   ---> 101 central
//	        s2 satellite (main) ---> 102 satellite
//	halo 2: s3 central          ---> 101
//	halo 3: s4 central          ---> (none)
type tree struct {
	forest   *galaxy.Forest
	halos    []*galaxy.Halo
	s1, s2   *galaxy.Subhalo
	s3, s4   *galaxy.Subhalo
	d1, d2   *galaxy.Subhalo
	central1 *galaxy.Galaxy
	orphan   *galaxy.Galaxy
	type1    *galaxy.Galaxy
	central3 *galaxy.Galaxy
	lost     *galaxy.Galaxy
}

func gas(mass float64, sam float64) galaxy.Baryon {
	return galaxy.Baryon{BaryonBase: galaxy.BaryonBase{Mass: mass, MassMetals: mass / 100}, SAM: sam}
}

func newTree() *tree {
	t := &tree{forest: galaxy.NewForest()}

	h1 := galaxy.NewHalo(1, 10)
	h1.Mvir = 1e12
	t.s1 = galaxy.NewSubhalo(1, 1, 10, galaxy.CentralSubhalo)
	t.s1.MainProgenitor = true
	t.s1.DescendantID = 101
	t.s1.HotHaloGas = gas(1e10, 100)
	t.s1.CoolingTracking = galaxy.CoolingTracking{MassCooled: 5e9, LastRate: 3, TimeSinceHeat: 1.5}
	t.central1 = galaxy.New(1, galaxy.Central)
	t.central1.DiskStars = gas(1e10, 10)
	t.central1.SFRDisk = 4
	t.central1.Interaction.MajorMergers = 1
	t.orphan = galaxy.New(2, galaxy.Type2)
	t.orphan.DiskStars = gas(1e8, 10)
	t.s1.AddGalaxy(t.central1)
	t.s1.AddGalaxy(t.orphan)

	t.s2 = galaxy.NewSubhalo(2, 1, 10, galaxy.SatelliteSubhalo)
	t.s2.MainProgenitor = true
	t.s2.DescendantID = 102
	t.type1 = galaxy.New(3, galaxy.Type1)
	t.type1.DiskGas = gas(1e9, 20)
	t.s2.AddGalaxy(t.type1)
	h1.AddSubhalo(t.s1)
	h1.AddSubhalo(t.s2)

	h2 := galaxy.NewHalo(2, 10)
	h2.Mvir = 1e11
	t.s3 = galaxy.NewSubhalo(3, 2, 10, galaxy.CentralSubhalo)
	t.s3.DescendantID = 101
	t.s3.Concentration = 8
	t.s3.Mvir = 1e11
	t.s3.Lambda = 0.04
	t.s3.HotHaloGas = gas(1e9, 300)
	t.s3.EjectedGalaxyGas = gas(2e8, 50)
	t.central3 = galaxy.New(4, galaxy.Central)
	t.central3.DiskStars = gas(1e9, 10)
	t.s3.AddGalaxy(t.central3)
	h2.AddSubhalo(t.s3)

	h3 := galaxy.NewHalo(3, 10)
	t.s4 = galaxy.NewSubhalo(4, 3, 10, galaxy.CentralSubhalo)
	t.s4.ColdHaloGas = gas(3e8, 10)
	t.lost = galaxy.New(5, galaxy.Central)
	t.lost.DiskStars = gas(2e9, 10)
	t.lost.DiskGas = gas(1e9, 10)
	t.lost.SMBH = galaxy.BaryonBase{Mass: 1e6}
	t.s4.AddGalaxy(t.lost)
	h3.AddSubhalo(t.s4)

	h11 := galaxy.NewHalo(11, 11)
	t.d1 = galaxy.NewSubhalo(101, 11, 11, galaxy.CentralSubhalo)
	t.d2 = galaxy.NewSubhalo(102, 11, 11, galaxy.SatelliteSubhalo)
	h11.AddSubhalo(t.d1)
	h11.AddSubhalo(t.d2)

	for _, h := range []*galaxy.Halo{h1, h2, h3, h11} {
		Expect(t.forest.AddHalo(h)).To(Succeed())
	}
	t.halos = t.forest.Halos(10)
	return t
}

var _ = Describe("TransferGalaxiesToNextSnapshot", func() {
	var (
		tr  *tree
		ctx context.Context
	)

	BeforeEach(func() {
		tr = newTree()
		ctx = context.Background()
	})

	for _, parallelism := range []int{1, 4} {
		Context(fmt.Sprintf("with parallelism %d", parallelism), func() {
			var transferer *evolve.Transferer

			BeforeEach(func() {
				transferer = evolve.NewTransferer(tr.forest, evolve.WithParallelism(parallelism))
			})

			It("moves every galaxy to its descendant", func() {
				before := tr.s1.GalaxyCount() + tr.s3.GalaxyCount()

				stats, err := transferer.TransferGalaxiesToNextSnapshot(ctx, tr.halos, 10)
				Expect(err).NotTo(HaveOccurred())

				Expect(tr.d1.GalaxyCount()).To(Equal(before))
				Expect(tr.d2.Galaxies).To(ConsistOf(tr.type1))
				Expect(tr.s1.GalaxyCount()).To(BeZero())
				Expect(stats.Transferred).To(Equal(3))
				Expect(stats.SubhalosWithoutDescendant).To(Equal(1))
			})

			It("reclassifies the main galaxies", func() {
				_, err := transferer.TransferGalaxiesToNextSnapshot(ctx, tr.halos, 10)
				Expect(err).NotTo(HaveOccurred())

				Expect(tr.central1.Type).To(Equal(galaxy.Central))
				Expect(tr.type1.Type).To(Equal(galaxy.Type1))
				Expect(tr.central3.Type).To(Equal(galaxy.Type2))
				Expect(tr.central3.ConcentrationType2).To(Equal(8.0))
				Expect(tr.central3.MsubhaloType2).To(Equal(1e11))
				Expect(tr.central3.LambdaType2).To(Equal(0.04))

				Expect(tr.d1.Galaxies[0]).To(BeIdenticalTo(tr.central1))
				Expect(tr.d1.CheckGalaxyComposition()).To(Succeed())
			})

			It("accumulates halo gas into the descendant", func() {
				_, err := transferer.TransferGalaxiesToNextSnapshot(ctx, tr.halos, 10)
				Expect(err).NotTo(HaveOccurred())

				Expect(tr.d1.HotHaloGas.Mass).To(BeNumerically("~", 1.1e10, 1))
				Expect(tr.d1.HotHaloGas.SAM).To(BeNumerically("~", (1e12+3e11)/1.1e10, 1e-9))
				Expect(tr.d1.EjectedGalaxyGas.Mass).To(BeNumerically("~", 2e8, 1e-3))
				Expect(tr.s3.HotHaloGas).To(Equal(galaxy.Baryon{}))
			})

			It("hands the cooling history to the main progenitor's descendant only", func() {
				_, err := transferer.TransferGalaxiesToNextSnapshot(ctx, tr.halos, 10)
				Expect(err).NotTo(HaveOccurred())
				Expect(tr.d1.CoolingTracking).To(Equal(galaxy.CoolingTracking{MassCooled: 5e9, LastRate: 3, TimeSinceHeat: 1.5}))
			})

			It("resets per snapshot accumulators", func() {
				_, err := transferer.TransferGalaxiesToNextSnapshot(ctx, tr.halos, 10)
				Expect(err).NotTo(HaveOccurred())
				Expect(tr.central1.SFRDisk).To(BeZero())
				Expect(tr.central1.Interaction).To(Equal(galaxy.Interaction{}))
			})

			It("tallies the baryons of terminating branches as lost", func() {
				want := tr.s4.TotalBaryonMass()

				stats, err := transferer.TransferGalaxiesToNextSnapshot(ctx, tr.halos, 10)
				Expect(err).NotTo(HaveOccurred())
				Expect(stats.LostBaryonMass).To(Equal(want))
				Expect(tr.s4.Galaxies).To(ConsistOf(tr.lost))
			})
		})
	}

	It("refuses to fill a populated descendant", func() {
		tr.d1.AddGalaxy(galaxy.New(99, galaxy.Central))

		_, err := evolve.NewTransferer(tr.forest).TransferGalaxiesToNextSnapshot(ctx, tr.halos, 10)
		Expect(err).To(MatchError(dynamo.ErrTreeConsistency))
		Expect(tr.s1.GalaxyCount()).To(Equal(2))
	})

	It("rejects a descendant that skips a snapshot", func() {
		far := galaxy.NewHalo(12, 12)
		sub := galaxy.NewSubhalo(201, 12, 12, galaxy.CentralSubhalo)
		far.AddSubhalo(sub)
		Expect(tr.forest.AddHalo(far)).To(Succeed())
		tr.s4.DescendantID = 201

		_, err := evolve.NewTransferer(tr.forest).TransferGalaxiesToNextSnapshot(ctx, tr.halos, 10)
		var treeErr *dynamo.TreeError
		Expect(err).To(BeAssignableToTypeOf(treeErr))
		Expect(err.(*dynamo.TreeError).SubhaloID).To(Equal(int64(4)))
	})

	It("rejects a dangling descendant id", func() {
		tr.s4.DescendantID = 999
		_, err := evolve.NewTransferer(tr.forest).TransferGalaxiesToNextSnapshot(ctx, tr.halos, 10)
		Expect(err).To(MatchError(dynamo.ErrTreeConsistency))
	})

	It("skips satellites last identified at this snapshot", func() {
		tr.s2.LastSnapshotIdentified = 10

		stats, err := evolve.NewTransferer(tr.forest).TransferGalaxiesToNextSnapshot(ctx, tr.halos, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Skipped).To(Equal(1))
		Expect(tr.d2.GalaxyCount()).To(BeZero())
		Expect(tr.s2.Galaxies).To(ConsistOf(tr.type1))
	})

	It("accepts a consistent descendant of a skipped satellite", func() {
		tr.s2.LastSnapshotIdentified = 10
		merged := galaxy.New(55, galaxy.Type1)
		tr.d2.AddGalaxy(merged)

		stats, err := evolve.NewTransferer(tr.forest).TransferGalaxiesToNextSnapshot(ctx, tr.halos, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(stats.Skipped).To(Equal(1))
		Expect(tr.d2.Galaxies).To(ConsistOf(merged))
	})

	It("re-checks the descendant of a skipped satellite", func() {
		tr.s2.LastSnapshotIdentified = 10
		tr.d2.AddGalaxy(galaxy.New(55, galaxy.Type1))
		tr.d2.AddGalaxy(galaxy.New(56, galaxy.Type1))

		_, err := evolve.NewTransferer(tr.forest).TransferGalaxiesToNextSnapshot(ctx, tr.halos, 10)
		Expect(err).To(MatchError(dynamo.ErrTreeConsistency))
		var treeErr *dynamo.TreeError
		Expect(errors.As(err, &treeErr)).To(BeTrue())
		Expect(treeErr.SubhaloID).To(Equal(tr.d2.ID))
	})

	It("fails when two main galaxies end up in one descendant", func() {
		tr.s3.MainProgenitor = true

		_, err := evolve.NewTransferer(tr.forest).TransferGalaxiesToNextSnapshot(ctx, tr.halos, 10)
		Expect(err).To(MatchError(dynamo.ErrTreeConsistency))
	})

	It("fails on a source with an invalid composition", func() {
		tr.s2.AddGalaxy(galaxy.New(77, galaxy.Central))

		_, err := evolve.NewTransferer(tr.forest).TransferGalaxiesToNextSnapshot(ctx, tr.halos, 10)
		Expect(err).To(MatchError(dynamo.ErrTreeConsistency))
	})
})

var _ = DescribeTable("AdjustMainGalaxy",
	func(parentType galaxy.SubhaloType, mainProgenitor bool, descType galaxy.SubhaloType, want galaxy.GalaxyType) {
		parent := galaxy.NewSubhalo(1, 1, 0, parentType)
		parent.MainProgenitor = mainProgenitor
		parent.Concentration = 5
		main := galaxy.New(1, galaxy.Central)
		if parentType == galaxy.SatelliteSubhalo {
			main.Type = galaxy.Type1
		}
		parent.AddGalaxy(main)

		evolve.AdjustMainGalaxy(parent, galaxy.NewSubhalo(2, 2, 1, descType))

		Expect(main.Type).To(Equal(want))
		if want == galaxy.Type2 {
			Expect(main.ConcentrationType2).To(Equal(5.0))
		} else {
			Expect(main.ConcentrationType2).To(BeZero())
		}
	},
	Entry("central main progenitor into central", galaxy.CentralSubhalo, true, galaxy.CentralSubhalo, galaxy.Central),
	Entry("central secondary into central", galaxy.CentralSubhalo, false, galaxy.CentralSubhalo, galaxy.Type2),
	Entry("central main progenitor into satellite", galaxy.CentralSubhalo, true, galaxy.SatelliteSubhalo, galaxy.Type1),
	Entry("central secondary into satellite", galaxy.CentralSubhalo, false, galaxy.SatelliteSubhalo, galaxy.Type2),
	Entry("satellite main progenitor into satellite", galaxy.SatelliteSubhalo, true, galaxy.SatelliteSubhalo, galaxy.Type1),
	Entry("satellite main progenitor into central", galaxy.SatelliteSubhalo, true, galaxy.CentralSubhalo, galaxy.Central),
	Entry("satellite secondary into satellite", galaxy.SatelliteSubhalo, false, galaxy.SatelliteSubhalo, galaxy.Type2),
)
