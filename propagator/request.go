package propagator

import (
	"runtime"

	"github.com/cwbudde/gosound/band"
)

// Request is the per-frame propagation request (spec §6, "Propagation
// request"). Zero-valued fields are sanitized to safe defaults by
// Sanitize before a frame runs.
type Request struct {
	Flags Flags

	NumDirectRays     int
	NumSpecularRays   int
	NumDiffuseRays    int
	NumVisibilityRays int

	NumSpecularSamples int
	NumDiffuseSamples  int

	MaxSpecularDepth    int
	MaxDiffuseDepth     int
	MaxDiffractionDepth int
	MaxDiffractionOrder int

	MinIRLength         float64
	MaxIRLength         float64
	IRGrowthRate        float64
	ResponseTime        float64
	VisibilityCacheTime float64

	RayOffset float64

	SampleRate float64
	Bands      *band.Bands

	DopplerThreshold float64

	Dt       float64
	TargetDt float64

	NumThreads int

	Quality    float64
	MinQuality float64
	MaxQuality float64

	InnerClusteringAngle float64
	OuterClusteringAngle float64

	Statistics *Statistics
}

// NewDefaultRequest returns a Request with the core paths enabled and
// conservative ray budgets, suitable as the base a config loader applies
// overrides onto (mirrors the teacher's `piano.NewDefaultParams`).
func NewDefaultRequest(bands *band.Bands) *Request {
	return &Request{
		Flags:                DefaultFlags,
		NumDirectRays:        32,
		NumSpecularRays:      2000,
		NumDiffuseRays:       2000,
		NumVisibilityRays:    256,
		NumSpecularSamples:   4,
		NumDiffuseSamples:    4,
		MaxSpecularDepth:     3,
		MaxDiffuseDepth:      2,
		MaxDiffractionDepth:  2,
		MaxDiffractionOrder:  3,
		MinIRLength:          0.5,
		MaxIRLength:          2.0,
		IRGrowthRate:         0.1,
		ResponseTime:         0.3,
		VisibilityCacheTime:  1.0,
		RayOffset:            1e-4,
		SampleRate:           44100,
		Bands:                bands,
		DopplerThreshold:     5,
		Dt:                   1.0 / 60,
		TargetDt:             1.0 / 60,
		NumThreads:           runtime.NumCPU(),
		Quality:              1,
		MinQuality:           0.1,
		MaxQuality:           4,
		InnerClusteringAngle: 0.05,
		OuterClusteringAngle: 0.15,
	}
}

// Sanitize clamps every field named in spec §6's option table to its
// documented valid range, in place. This is the "invalid input" kind-1
// error-handling path (spec §7): out-of-range values are clamped rather
// than rejected.
func (r *Request) Sanitize() {
	r.NumDirectRays = clampMinInt(r.NumDirectRays, 1)
	r.NumSpecularRays = clampRangeInt(r.NumSpecularRays, 0, 1_000_000_000)
	r.NumDiffuseRays = clampRangeInt(r.NumDiffuseRays, 0, 1_000_000_000)
	r.NumVisibilityRays = clampRangeInt(r.NumVisibilityRays, 0, 1_000_000_000)

	r.NumSpecularSamples = clampMinInt(r.NumSpecularSamples, 1)
	r.NumDiffuseSamples = clampMinInt(r.NumDiffuseSamples, 1)

	r.MaxDiffractionOrder = clampRangeInt(r.MaxDiffractionOrder, 0, 10)

	r.MinIRLength = clampMin(r.MinIRLength, 0)
	r.MaxIRLength = clampMin(r.MaxIRLength, 0)
	if r.MaxIRLength < r.MinIRLength {
		r.MaxIRLength = r.MinIRLength
	}
	r.IRGrowthRate = clampMin(r.IRGrowthRate, 0)
	r.ResponseTime = clampMin(r.ResponseTime, 0)
	r.VisibilityCacheTime = clampMin(r.VisibilityCacheTime, 0)

	if r.RayOffset <= 0 {
		r.RayOffset = 1e-4
	}

	r.Quality = clampRange(r.Quality, r.effectiveMinQuality(), r.effectiveMaxQuality())

	maxThreads := 2 * runtime.NumCPU()
	r.NumThreads = clampRangeInt(r.NumThreads, 1, maxThreads)

	r.InnerClusteringAngle = clampMin(r.InnerClusteringAngle, 0)
	r.OuterClusteringAngle = clampMin(r.OuterClusteringAngle, r.InnerClusteringAngle)
}

func (r *Request) effectiveMinQuality() float64 {
	if r.MinQuality > 0 {
		return r.MinQuality
	}
	return 0.1
}

func (r *Request) effectiveMaxQuality() float64 {
	if r.MaxQuality > r.effectiveMinQuality() {
		return r.MaxQuality
	}
	return 4
}

// ScaledRayCounts applies Quality as a multiplier to the ray-budget
// fields, post-Sanitize, returning the per-frame counts actually used
// (spec §6, "quality... multiplier applied to ray counts").
func (r *Request) ScaledRayCounts() (direct, specular, diffuse, visibility int) {
	scale := func(n int) int {
		v := int(float64(n) * r.Quality)
		if v < 1 && n > 0 {
			v = 1
		}
		return v
	}
	return scale(r.NumDirectRays), scale(r.NumSpecularRays), scale(r.NumDiffuseRays), scale(r.NumVisibilityRays)
}

func clampMinInt(v, lo int) int {
	if v < lo {
		return lo
	}
	return v
}

func clampRangeInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampMin(v, lo float64) float64 {
	if v < lo {
		return lo
	}
	return v
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
