package propagator

// Flags is the bitset selecting which propagation features run for a
// request (spec §6).
type Flags uint32

const (
	FlagDirect Flags = 1 << iota
	FlagSpecular
	FlagDiffuse
	FlagDiffraction
	FlagTransmission
	FlagSpecularCache
	FlagDiffuseCache
	FlagIRCache
	FlagVisibilityCache
	FlagSampledIR
	FlagSampledIRSourceDirections
	FlagSourceDiffuse
	FlagSourceDirectivity
	FlagSourceClustering
	FlagIRThreshold
	FlagAdaptiveIRLength
	FlagAirAbsorption
	FlagDopplerSorting
	FlagStatistics
)

// DefaultFlags enables the core geometric paths without the optional
// caching/clustering/adaptive layers, a reasonable single-frame default.
const DefaultFlags = FlagDirect | FlagSpecular | FlagDiffuse | FlagDiffraction | FlagAirAbsorption

// Has reports whether every bit in want is set in f.
func (f Flags) Has(want Flags) bool { return f&want == want }
