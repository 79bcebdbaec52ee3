package cache

import (
	"math"

	"github.com/cwbudde/gosound/ir"
)

// IRCache holds one exponentially-averaged SampledIR per source, blended
// frame over frame per spec §4.10.
type IRCache struct {
	sampleRate float64
	perSource  map[uint32]*ir.SampledIR
	bands      int
	newIR      func() *ir.SampledIR
}

// NewIRCache builds an IR cache; newIR constructs an empty SampledIR at
// the cache's sample rate and band layout (injected so the cache doesn't
// need to import band directly beyond counting).
func NewIRCache(sampleRate float64, newIR func() *ir.SampledIR) *IRCache {
	return &IRCache{sampleRate: sampleRate, perSource: make(map[uint32]*ir.SampledIR), newIR: newIR}
}

// Get returns (creating if absent) the blended IR for sourceID.
func (c *IRCache) Get(sourceID uint32) *ir.SampledIR {
	if existing, ok := c.perSource[sourceID]; ok {
		return existing
	}
	fresh := c.newIR()
	c.perSource[sourceID] = fresh
	return fresh
}

// Blend mixes newFrame into sourceID's cached IR using the response-time
// derived blend law: maxAge = max(10, ceil(responseTime/dt)),
// beta = 1 - 10^(-4/maxAge), cache := (1-beta)*cache + beta*gain*newFrame.
func (c *IRCache) Blend(sourceID uint32, newFrame *ir.SampledIR, responseTime, dt, gain float64) error {
	beta := BlendFactor(responseTime, dt)
	return c.Get(sourceID).Blend(newFrame, beta, gain)
}

// BlendFactor computes beta from the user-facing responseTime and frame
// dt, per spec §4.10.
func BlendFactor(responseTime, dt float64) float64 {
	maxAge := math.Ceil(responseTime / dt)
	if maxAge < 10 {
		maxAge = 10
	}
	return 1 - math.Pow(10, -4/maxAge)
}

// SetSampleRate changes the cache's output sample rate, resetting every
// cached IR's storage (Open Question 1: a sample-rate change requires a
// reset, not merely a clear).
func (c *IRCache) SetSampleRate(sr float64) {
	if sr == c.sampleRate {
		return
	}
	c.sampleRate = sr
	for _, v := range c.perSource {
		v.Reset()
	}
}

// Remove drops sourceID's cached IR, e.g. once the source has been absent
// for more than N frames.
func (c *IRCache) Remove(sourceID uint32) {
	delete(c.perSource, sourceID)
}
