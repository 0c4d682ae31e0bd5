package physics

const (
	// Tolerance below which masses are treated as zero.
	Tolerance = 1e-10

	// EPS3 keeps the reheating loading strictly above the ejection loading.
	EPS3 = 1e-3

	// EagleJConv converts sAM/vmax into a disk scale radius.
	EagleJConv = 0.67714

	// RDiskHalfScale is the half-mass to scale radius ratio of an exponential disk.
	RDiskHalfScale = 1.67

	// MSolarG is the solar mass in grams.
	MSolarG = 1.98892e33

	// KmToCm converts km to cm.
	KmToCm = 1e5

	// MpcKmsToGyr is the crossing time of 1 Mpc at 1 km/s, in Gyr.
	MpcKmsToGyr = 977.792
)
