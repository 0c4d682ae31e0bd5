package physics

const (
	DefaultRecycle    = 0.4588
	DefaultYield      = 0.02908
	DefaultPreEnrichZ = 1e-7
)

// RecyclingParameters hold the instantaneous recycling approximation.
type RecyclingParameters struct {
	// Recycle is the fraction of newly formed stellar mass returned to the gas.
	Recycle float64 `yaml:"recycle" env:"RECYCLE"`
	// Yield is the metal mass produced per unit of star formation.
	Yield float64 `yaml:"yield" env:"YIELD"`
}

func DefaultRecyclingParameters() RecyclingParameters {
	return RecyclingParameters{Recycle: DefaultRecycle, Yield: DefaultYield}
}

// GasCoolingParameters hold the constants of gas cooling used by the model.
type GasCoolingParameters struct {
	// PreEnrichZ is the metallicity floor of gas with no tracked metals.
	PreEnrichZ float64 `yaml:"pre_enrich_z" env:"PRE_ENRICH_Z"`
}

func DefaultGasCoolingParameters() GasCoolingParameters {
	return GasCoolingParameters{PreEnrichZ: DefaultPreEnrichZ}
}
