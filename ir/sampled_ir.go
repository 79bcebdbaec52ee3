// Package ir implements the sampled impulse response buffer: a growable,
// band-wise energy accumulator with per-sample direction averages (spec
// §4.4).
package ir

import (
	"fmt"
	"math"

	"github.com/cwbudde/gosound/band"
	"github.com/cwbudde/gosound/geom"
)

// simdWidth is the sample-count granularity capacity grows are rounded up
// to, mirroring a convolution tail buffer sized for vectorized accumulation.
const simdWidth = 8

// SampledIR is a time-domain buffer of multi-band energy samples plus
// running direction accumulators, covering [startOffset, numSamples) of a
// fixed-capacity backing store. The IR exclusively owns its buffers.
type SampledIR struct {
	SampleRate float64
	Bands      *band.Bands

	intensities []band.Response
	dirs        []geom.Vec3
	dirWeight   []float64
	srcDirs     []geom.Vec3
	srcWeight   []float64

	startOffset int
	numSamples  int
	capacity    int
}

// New creates an empty sampled IR at the given sample rate, projecting
// band intensities onto bands.
func New(sampleRate float64, bands *band.Bands) *SampledIR {
	return &SampledIR{SampleRate: sampleRate, Bands: bands, startOffset: 0, numSamples: 0}
}

// StartOffset returns the index of the first valid sample.
func (s *SampledIR) StartOffset() int { return s.startOffset }

// NumSamples returns one past the index of the last valid sample.
func (s *SampledIR) NumSamples() int { return s.numSamples }

// Capacity returns the backing store's current length.
func (s *SampledIR) Capacity() int { return s.capacity }

// Intensity returns the band intensity at sample i (zero outside the
// allocated capacity).
func (s *SampledIR) Intensity(i int) band.Response {
	if i < 0 || i >= s.capacity {
		return band.NewResponse(s.Bands.Count(), 0)
	}
	return s.intensities[i]
}

func roundUpSIMD(n int) int {
	if n <= 0 {
		return simdWidth
	}
	return ((n + simdWidth - 1) / simdWidth) * simdWidth
}

// grow reallocates the backing store so index i is addressable, zeroing
// the newly introduced tail.
func (s *SampledIR) grow(i int) {
	if i < s.capacity {
		return
	}
	newCap := roundUpSIMD(i + 1)
	newIntensities := make([]band.Response, newCap)
	newDirs := make([]geom.Vec3, newCap)
	newDirWeight := make([]float64, newCap)
	newSrcDirs := make([]geom.Vec3, newCap)
	newSrcWeight := make([]float64, newCap)
	copy(newIntensities, s.intensities)
	copy(newDirs, s.dirs)
	copy(newDirWeight, s.dirWeight)
	copy(newSrcDirs, s.srcDirs)
	copy(newSrcWeight, s.srcWeight)
	for j := s.capacity; j < newCap; j++ {
		newIntensities[j] = band.NewResponse(s.Bands.Count(), 0)
	}
	s.intensities, s.dirs, s.dirWeight, s.srcDirs, s.srcWeight = newIntensities, newDirs, newDirWeight, newSrcDirs, newSrcWeight
	s.capacity = newCap
}

// zeroGap zeroes intensities over [from, to) after a reallocation or a
// jump-ahead write, so previously-unwritten samples read as silence.
func (s *SampledIR) zeroGap(from, to int) {
	for j := from; j < to && j < s.capacity; j++ {
		s.intensities[j] = band.NewResponse(s.Bands.Count(), 0)
		s.dirs[j] = geom.Vec3{}
		s.dirWeight[j] = 0
		s.srcDirs[j] = geom.Vec3{}
		s.srcWeight[j] = 0
	}
}

// AddImpulse accumulates energy into sample floor(delay*SampleRate), per
// spec §4.4(a).
func (s *SampledIR) AddImpulse(delay float64, energy band.Response, dir, srcDir geom.Vec3) {
	i := int(math.Floor(math.Max(0, delay*s.SampleRate)))
	s.grow(i)
	if i >= s.numSamples {
		s.zeroGap(s.numSamples, i+1)
	}
	s.intensities[i] = s.intensities[i].Add(energy)

	w := energy.Sum()
	s.dirs[i] = s.dirs[i].Add(dir.Mul(w))
	s.dirWeight[i] += w
	s.srcDirs[i] = s.srcDirs[i].Add(srcDir.Mul(w))
	s.srcWeight[i] += w

	if s.numSamples == 0 || i < s.startOffset {
		s.startOffset = i
	}
	if i+1 > s.numSamples {
		s.numSamples = i + 1
	}
}

// AddIR merges other into s, requiring identical sample rates, per spec
// §4.4(b).
func (s *SampledIR) AddIR(other *SampledIR) error {
	if other == nil || other.numSamples == 0 {
		return nil
	}
	if other.SampleRate != s.SampleRate {
		return fmt.Errorf("ir: sample rate mismatch: %v vs %v", s.SampleRate, other.SampleRate)
	}
	s.grow(other.numSamples - 1)
	if other.numSamples > s.numSamples {
		s.zeroGap(s.numSamples, other.numSamples)
	}
	for i := other.startOffset; i < other.numSamples; i++ {
		s.intensities[i] = s.intensities[i].Add(other.intensities[i])
		s.dirs[i] = s.dirs[i].Add(other.dirs[i])
		s.dirWeight[i] += other.dirWeight[i]
		s.srcDirs[i] = s.srcDirs[i].Add(other.srcDirs[i])
		s.srcWeight[i] += other.srcWeight[i]
	}
	if s.numSamples == 0 || other.startOffset < s.startOffset {
		s.startOffset = other.startOffset
	}
	if other.numSamples > s.numSamples {
		s.numSamples = other.numSamples
	}
	return nil
}

// Blend mixes newFrame into s in place as an IIR low-pass over consecutive
// per-frame estimates: cache := (1-beta)*cache + beta*gain*newFrame, per
// spec §4.10. Samples are compared lane-wise over the union of both
// ranges; s's existing tail outside newFrame's range simply decays by
// (1-beta).
func (s *SampledIR) Blend(newFrame *SampledIR, beta, gain float64) error {
	if newFrame != nil && newFrame.numSamples > 0 && newFrame.SampleRate != s.SampleRate {
		return fmt.Errorf("ir: sample rate mismatch: %v vs %v", s.SampleRate, newFrame.SampleRate)
	}
	wasEmpty := s.numSamples == 0
	upper := s.numSamples
	if newFrame != nil && newFrame.numSamples > upper {
		upper = newFrame.numSamples
	}
	if upper == 0 {
		return nil
	}
	s.grow(upper - 1)
	if upper > s.numSamples {
		s.zeroGap(s.numSamples, upper)
		s.numSamples = upper
	}
	if newFrame != nil && newFrame.numSamples > 0 && (wasEmpty || newFrame.startOffset < s.startOffset) {
		s.startOffset = newFrame.startOffset
	}
	for i := 0; i < upper; i++ {
		decayed := s.intensities[i].Scale(1 - beta)
		if newFrame != nil && i >= newFrame.startOffset && i < newFrame.numSamples {
			decayed = decayed.Add(newFrame.intensities[i].Scale(beta * gain))
		}
		s.intensities[i] = decayed
	}
	return nil
}

// Direction returns the energy-weighted average listener-facing direction
// at sample i.
func (s *SampledIR) Direction(i int) geom.Vec3 {
	if i < 0 || i >= s.capacity || s.dirWeight[i] == 0 {
		return geom.Vec3{}
	}
	return s.dirs[i].Mul(1 / s.dirWeight[i])
}

// SourceDirection returns the energy-weighted average source-facing
// direction at sample i.
func (s *SampledIR) SourceDirection(i int) geom.Vec3 {
	if i < 0 || i >= s.capacity || s.srcWeight[i] == 0 {
		return geom.Vec3{}
	}
	return s.srcDirs[i].Mul(1 / s.srcWeight[i])
}

// Trim scans from the back and shrinks numSamples to the largest index
// where any band exceeds threshold, +1 (or 0 if none), per spec §4.4(c).
func (s *SampledIR) Trim(threshold band.Response) {
	for i := s.numSamples - 1; i >= s.startOffset; i-- {
		if s.intensities[i].AnyGreater(threshold) {
			s.numSamples = i + 1
			return
		}
	}
	s.numSamples = 0
	s.startOffset = 0
}

// Clear marks the IR empty but keeps its backing storage, per spec
// §4.4(d).
func (s *SampledIR) Clear() {
	s.zeroGap(0, s.capacity)
	s.startOffset = 0
	s.numSamples = 0
}

// Reset releases the IR's backing storage entirely, per spec §4.4(d) —
// required before resuming at a different sample rate (Open Question 1).
func (s *SampledIR) Reset() {
	s.intensities = nil
	s.dirs = nil
	s.dirWeight = nil
	s.srcDirs = nil
	s.srcWeight = nil
	s.capacity = 0
	s.startOffset = 0
	s.numSamples = 0
}

// GetTotalIntensity sums band-intensities across the valid range, per
// spec §4.4(e).
func (s *SampledIR) GetTotalIntensity() band.Response {
	total := band.NewResponse(s.Bands.Count(), 0)
	for i := s.startOffset; i < s.numSamples; i++ {
		total = total.Add(s.intensities[i])
	}
	return total
}
