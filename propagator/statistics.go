package propagator

import "time"

// Statistics carries per-frame counters and timings, optionally
// attached to a Request via its Statistics out-pointer (spec §6). Of the
// timings, Propagate fills in only TotalFrame; the per-phase durations
// stay zero. This
// mirrors the teacher's fitting-loop diagnostics struct, carried here in
// full per SPEC_FULL's expansion of spec.md's one-line mention.
type Statistics struct {
	NumDirectRaysTraced     uint64
	NumSpecularRaysTraced   uint64
	NumDiffuseRaysTraced    uint64
	NumVisibilityRaysTraced uint64

	NumDirectPathsFound     uint64
	NumSpecularPathsFound   uint64
	NumDiffusePathsFound    uint64
	NumDiffractionPathsFound uint64

	AverageRayDepth float64

	DirectPhase     time.Duration
	SpecularPhase   time.Duration
	DiffusePhase    time.Duration
	DiffractionPhase time.Duration
	CacheDrainPhase time.Duration
	TotalFrame      time.Duration
}

// reset zeroes every counter and timing, keeping the struct reusable
// across frames without reallocating.
func (s *Statistics) reset() {
	if s == nil {
		return
	}
	*s = Statistics{}
}

// accumulateDepth folds a newly-traced chain's depth into the running
// average ray depth via an incremental mean update.
func (s *Statistics) accumulateDepth(depth int, sampleIndex uint64) {
	if s == nil || sampleIndex == 0 {
		return
	}
	n := float64(sampleIndex)
	s.AverageRayDepth += (float64(depth) - s.AverageRayDepth) / n
}
