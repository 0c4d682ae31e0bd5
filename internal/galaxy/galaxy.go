package galaxy

import "fmt"

type GalaxyType int

const (
	Central GalaxyType = iota
	Type1
	Type2
)

func (t GalaxyType) String() string {
	switch t {
	case Central:
		return "CENTRAL"
	case Type1:
		return "TYPE1"
	case Type2:
		return "TYPE2"
	default:
		return fmt.Sprintf("GalaxyType(%d)", int(t))
	}
}

// Interaction counts merger and disk instability events within a snapshot.
type Interaction struct {
	MajorMergers      int `json:"major_mergers"`
	MinorMergers      int `json:"minor_mergers"`
	DiskInstabilities int `json:"disk_instabilities"`
}

func (i *Interaction) Restore() {
	*i = Interaction{}
}

// Mergers is the number of galaxy mergers of either kind.
func (i Interaction) Mergers() int {
	return i.MajorMergers + i.MinorMergers
}

// HistoryItem is the star formation record of one galaxy at one snapshot.
type HistoryItem struct {
	Snapshot         int     `json:"snapshot"`
	SFRDisk          float64 `json:"sfr_disk"`
	SFRBulgeMergers  float64 `json:"sfr_bulge_mergers"`
	SFRBulgeDiskIns  float64 `json:"sfr_bulge_diskins"`
	SFRZDisk         float64 `json:"sfr_z_disk"`
	SFRZBulgeMergers float64 `json:"sfr_z_bulge_mergers"`
	SFRZBulgeDiskIns float64 `json:"sfr_z_bulge_diskins"`
}

type Galaxy struct {
	ID   int64
	Type GalaxyType

	DiskGas    Baryon
	DiskStars  Baryon
	BulgeGas   Baryon
	BulgeStars Baryon
	SMBH       BaryonBase

	GalaxyMergersBurstStars     BaryonBase
	DiskInstabilitiesBurstStars BaryonBase

	// Per-snapshot star formation rates, mass and metals.
	SFRDisk          float64
	SFRZDisk         float64
	SFRBulgeMergers  float64
	SFRZBulgeMergers float64
	SFRBulgeDiskIns  float64
	SFRZBulgeDiskIns float64

	// Maximum circular velocity of the host, used to turn sAM into sizes.
	Vmax float64

	// Properties of the subhalo at the time the galaxy became type 2.
	ConcentrationType2 float64
	MsubhaloType2      float64
	LambdaType2        float64

	Interaction Interaction

	MeanStellarAge             float64
	TotalStellarMassEverFormed float64
	History                    []HistoryItem
}

func New(id int64, t GalaxyType) *Galaxy {
	return &Galaxy{ID: id, Type: t}
}

func (g *Galaxy) StellarMass() float64 {
	return g.DiskStars.Mass + g.BulgeStars.Mass
}

func (g *Galaxy) GasMass() float64 {
	return g.DiskGas.Mass + g.BulgeGas.Mass
}

// BaryonMass is every baryon bound to the galaxy, black hole included.
func (g *Galaxy) BaryonMass() float64 {
	return g.StellarMass() + g.GasMass() + g.SMBH.Mass
}

// SFR is the total per-snapshot star formation rate.
func (g *Galaxy) SFR() float64 {
	return g.SFRDisk + g.SFRBulgeMergers + g.SFRBulgeDiskIns
}

// ResetSFR zeroes the per-snapshot star formation accumulators.
func (g *Galaxy) ResetSFR() {
	g.SFRDisk = 0
	g.SFRZDisk = 0
	g.SFRBulgeMergers = 0
	g.SFRZBulgeMergers = 0
	g.SFRBulgeDiskIns = 0
	g.SFRZBulgeDiskIns = 0
}

// ScaleSFR multiplies every star formation accumulator by f.
func (g *Galaxy) ScaleSFR(f float64) {
	g.SFRDisk *= f
	g.SFRZDisk *= f
	g.SFRBulgeMergers *= f
	g.SFRZBulgeMergers *= f
	g.SFRBulgeDiskIns *= f
	g.SFRZBulgeDiskIns *= f
}

func (g *Galaxy) String() string {
	return fmt.Sprintf("galaxy %d (%s)", g.ID, g.Type)
}
