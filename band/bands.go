// Package band implements fixed-width N-band frequency gain arithmetic.
package band

import "fmt"

// Bands fixes, at build time, the set of active center frequencies (Hz).
// N is a positive multiple of 4; DefaultCount matches the engine default.
const DefaultCount = 8

// Bands carries the N center frequencies shared by every Response in a
// simulation.
type Bands struct {
	centers []float64
}

// NewBands builds a Bands from explicit center frequencies (Hz, increasing).
func NewBands(centers []float64) (*Bands, error) {
	if len(centers) == 0 || len(centers)%4 != 0 {
		return nil, fmt.Errorf("band: center count %d must be a positive multiple of 4", len(centers))
	}
	cp := make([]float64, len(centers))
	copy(cp, centers)
	return &Bands{centers: cp}, nil
}

// NewOctaveBands builds N bands spaced one octave apart, centered on base.
func NewOctaveBands(n int, base float64) (*Bands, error) {
	if n <= 0 || n%4 != 0 {
		return nil, fmt.Errorf("band: count %d must be a positive multiple of 4", n)
	}
	centers := make([]float64, n)
	f := base
	for i := 0; i < n; i++ {
		centers[i] = f
		f *= 2
	}
	return &Bands{centers: centers}, nil
}

// DefaultBands returns the engine's default 8-band octave layout, starting
// at 62.5 Hz.
func DefaultBands() *Bands {
	b, err := NewOctaveBands(DefaultCount, 62.5)
	if err != nil {
		panic(err)
	}
	return b
}

// Count returns N, the number of active bands.
func (b *Bands) Count() int { return len(b.centers) }

// Centers returns the band center frequencies (Hz), owned by the caller.
func (b *Bands) Centers() []float64 {
	cp := make([]float64, len(b.centers))
	copy(cp, b.centers)
	return cp
}

// Center returns the i-th band's center frequency.
func (b *Bands) Center(i int) float64 { return b.centers[i] }

// Equal reports whether two Bands have identical center frequencies.
func (b *Bands) Equal(o *Bands) bool {
	if b == nil || o == nil {
		return b == o
	}
	if len(b.centers) != len(o.centers) {
		return false
	}
	for i := range b.centers {
		if b.centers[i] != o.centers[i] {
			return false
		}
	}
	return true
}
