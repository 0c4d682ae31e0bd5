package galaxy

// BaryonBase is a mass and its metal content.
type BaryonBase struct {
	Mass       float64 `json:"mass"`
	MassMetals float64 `json:"mass_metals"`
}

// Add accumulates mass and metals.
func (b *BaryonBase) Add(other BaryonBase) {
	b.Mass += other.Mass
	b.MassMetals += other.MassMetals
}

// Metallicity returns MassMetals/Mass, or 0 for an empty component.
func (b BaryonBase) Metallicity() float64 {
	if b.Mass <= 0 {
		return 0
	}
	return b.MassMetals / b.Mass
}

// Baryon is a baryon reservoir with angular momentum and a size.
type Baryon struct {
	BaryonBase
	SAM    float64 `json:"sam"`
	RScale float64 `json:"rscale"`
}

// AngularMomentum is the total angular momentum, Mass * SAM.
func (b Baryon) AngularMomentum() float64 {
	return b.Mass * b.SAM
}

// Restore zeroes every field.
func (b *Baryon) Restore() {
	*b = Baryon{}
}

// Add merges another reservoir into b. Specific angular momentum is mass
// weighted so total angular momentum is conserved; the scale radius is taken
// from other only when b was empty.
func (b *Baryon) Add(other Baryon) {
	total := b.Mass + other.Mass
	if total > 0 {
		b.SAM = (b.AngularMomentum() + other.AngularMomentum()) / total
	}
	if b.Mass <= 0 {
		b.RScale = other.RScale
	}
	b.BaryonBase.Add(other.BaryonBase)
}
