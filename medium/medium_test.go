package medium

import (
	"testing"

	"github.com/cwbudde/gosound/band"
)

func TestAttenuationAtZeroIsOne(t *testing.T) {
	bands := band.DefaultBands()
	abs := band.NewResponse(bands.Count(), 0.01)
	m := New(343, abs)

	a0 := m.Attenuation(0)
	for i := 0; i < a0.Len(); i++ {
		if got := a0.At(i); got != 1 {
			t.Fatalf("Attenuation(0)[%d] = %v, want 1", i, got)
		}
	}
}

func TestAttenuationStrictlyDecreasesWithAbsorption(t *testing.T) {
	bands := band.DefaultBands()
	abs := band.NewResponse(bands.Count(), 0.05)
	m := New(343, abs)

	prev := m.Attenuation(0)
	for _, d := range []float64{1, 5, 10, 50} {
		cur := m.Attenuation(d)
		for i := 0; i < cur.Len(); i++ {
			if cur.At(i) >= prev.At(i) {
				t.Fatalf("Attenuation not strictly decreasing at d=%v band %d: %v >= %v", d, i, cur.At(i), prev.At(i))
			}
		}
		prev = cur
	}
}

func TestDistanceAttenuationFreeFieldScenario(t *testing.T) {
	// spec.md §8 scenario 1: d=10, alpha=0 -> 1/(4*pi*(1+100)) ~= 7.879e-4
	bands := band.DefaultBands()
	abs := band.NewResponse(bands.Count(), 0)
	m := New(343, abs)

	d := m.DistanceAttenuation(10)
	want := 7.879e-4
	for i := 0; i < d.Len(); i++ {
		got := d.At(i)
		if diff := got - want; diff > 1e-6 || diff < -1e-6 {
			t.Fatalf("DistanceAttenuation(10)[%d] = %v, want ~%v", i, got, want)
		}
	}
}

func TestAirAbsorptionNonNegativeAcrossDomain(t *testing.T) {
	bands := band.DefaultBands()
	for _, temp := range []float64{-50, 0, 20, 40} {
		for _, p := range []float64{50, 101.325, 500} {
			for _, rh := range []float64{0, 50, 100} {
				r := AirAbsorption(bands, temp, p, rh)
				for i := 0; i < r.Len(); i++ {
					if r.At(i) < 0 {
						t.Fatalf("AirAbsorption(%v,%v,%v)[%d] = %v, want >= 0", temp, p, rh, i, r.At(i))
					}
				}
			}
		}
	}
}

func TestSpeedOfSoundMonotoneInTemperature(t *testing.T) {
	c1 := SpeedOfSound(0, 101.325, 50)
	c2 := SpeedOfSound(20, 101.325, 50)
	if c2 <= c1 {
		t.Fatalf("expected speed of sound to increase with temperature: c1=%v c2=%v", c1, c2)
	}
}
