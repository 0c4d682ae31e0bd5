package scenario

import (
	"errors"
	"testing"

	"github.com/san-kum/galevo/internal/dynamo"
	"github.com/san-kum/galevo/internal/galaxy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIsDeterministic(t *testing.T) {
	p := DefaultParams()

	a, err := Generate(p)
	require.NoError(t, err)
	b, err := Generate(p)
	require.NoError(t, err)

	assert.Equal(t, a.Galaxies, b.Galaxies)
	assert.Equal(t, a.Forest.SubhaloCount(), b.Forest.SubhaloCount())
	assert.Equal(t, a.Redshifts, b.Redshifts)
	assert.Greater(t, a.Galaxies, 0)
}

func TestGenerateTreeIsConsistent(t *testing.T) {
	p := DefaultParams()
	p.HaloMergeProbability = 0.3
	p.SatelliteMergeProbability = 0.3
	p.StripProbability = 0.1

	sc, err := Generate(p)
	require.NoError(t, err)

	snaps := sc.Forest.Snapshots()
	require.Len(t, snaps, p.Snapshots)
	require.Len(t, sc.Redshifts, p.Snapshots)

	for _, snap := range snaps {
		for _, h := range sc.Forest.Halos(snap) {
			require.NotNil(t, h.CentralSubhalo(), "halo %d has no central", h.ID)
			assert.Equal(t, galaxy.CentralSubhalo, h.AllSubhalos()[0].Type)

			for _, s := range h.AllSubhalos() {
				require.NoError(t, s.CheckGalaxyComposition())
				d, err := sc.Forest.Descendant(s)
				require.NoError(t, err)
				if snap == snaps[len(snaps)-1] {
					assert.Nil(t, d)
					continue
				}
				if d == nil {
					assert.Equal(t, galaxy.SatelliteSubhalo, s.Type, "only satellites lose their branch")
					continue
				}
				assert.Equal(t, snap+1, d.Snapshot)
			}
		}
	}

	// exactly one main progenitor per descendant
	mains := make(map[int64]int)
	for _, snap := range snaps {
		for _, h := range sc.Forest.Halos(snap) {
			for _, s := range h.AllSubhalos() {
				if s.HasDescendant() && s.MainProgenitor {
					mains[s.DescendantID]++
				}
			}
		}
	}
	for id, n := range mains {
		assert.Equal(t, 1, n, "descendant %d", id)
	}
}

func TestGenerateSeedsOnlyFreshHalos(t *testing.T) {
	p := DefaultParams()
	p.NewHalos = 0

	sc, err := Generate(p)
	require.NoError(t, err)

	assert.Equal(t, sc.Galaxies, len(sc.Forest.Galaxies(0)))
	for _, snap := range sc.Forest.Snapshots()[1:] {
		assert.Empty(t, sc.Forest.Galaxies(snap))
	}

	for _, g := range sc.Forest.Galaxies(0) {
		assert.Greater(t, g.DiskGas.Mass, 0.0)
		assert.Greater(t, g.DiskGas.RScale, 0.0)
		assert.LessOrEqual(t, g.DiskGas.MassMetals, g.DiskGas.Mass)
	}
}

func TestRedshifts(t *testing.T) {
	z := Redshifts(5, 3, 0)
	require.Len(t, z, 5)
	assert.InDelta(t, 3.0, z[0], 1e-12)
	assert.Equal(t, 0.0, z[4])
	for i := 1; i < len(z); i++ {
		assert.Less(t, z[i], z[i-1])
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"one snapshot", func(p *Params) { p.Snapshots = 1 }},
		{"no halos", func(p *Params) { p.Halos = 0 }},
		{"redshift order", func(p *Params) { p.ZStart, p.ZEnd = 0, 1 }},
		{"mass bounds", func(p *Params) { p.MinHaloMass = 2 * p.MaxHaloMass }},
		{"probability", func(p *Params) { p.HaloMergeProbability = 1.5 }},
		{"satellite fates", func(p *Params) { p.StripProbability, p.SatelliteMergeProbability = 0.6, 0.6 }},
		{"baryon split", func(p *Params) { p.ColdGasFraction, p.StellarFraction = 0.8, 0.3 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, dynamo.ErrConfiguration))

			_, err = Generate(p)
			assert.Error(t, err)
		})
	}

	assert.NoError(t, DefaultParams().Validate())
}
