// Package randpool hands each propagation worker its own *rand.Rand,
// seeded deterministically from a base seed and the worker's index, so
// that a frame's output is reproducible for a given thread count (spec
// §5, "Random number generation").
package randpool

import "math/rand"

// Pool owns one *rand.Rand per worker slot.
type Pool struct {
	rngs []*rand.Rand
}

// New builds a pool of n worker RNGs, each seeded from baseSeed offset by
// its index, following the teacher's per-round reseeding idiom
// (seed + index*7919, a prime chosen to spread adjacent seeds apart).
func New(n int, baseSeed int64) *Pool {
	if n < 1 {
		n = 1
	}
	rngs := make([]*rand.Rand, n)
	for i := range rngs {
		rngs[i] = rand.New(rand.NewSource(baseSeed + int64(i)*7919))
	}
	return &Pool{rngs: rngs}
}

// Len reports the number of worker slots in the pool.
func (p *Pool) Len() int { return len(p.rngs) }

// For returns the RNG owned by worker index i, wrapping modulo Len if i
// is out of range (callers index workers 0..Len()-1 in normal use).
func (p *Pool) For(i int) *rand.Rand {
	return p.rngs[i%len(p.rngs)]
}

// Reseed reinitializes every worker RNG from a new base seed, keeping
// the same per-worker offsets. Used when a propagator is reconfigured
// with a new deterministic seed between runs.
func (p *Pool) Reseed(baseSeed int64) {
	for i := range p.rngs {
		p.rngs[i] = rand.New(rand.NewSource(baseSeed + int64(i)*7919))
	}
}
