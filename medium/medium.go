// Package medium models the propagation medium: speed of sound, per-band
// air absorption, and distance attenuation (spec §4.2).
package medium

import (
	"math"

	"github.com/cwbudde/gosound/band"
)

// Medium carries the speed of sound and per-band absorption coefficients.
type Medium struct {
	SpeedOfSound float64            // m/s, >= 0
	Absorption   band.Response      // dB/m per band, >= 0
}

// New builds a Medium, clamping negative inputs to zero per spec §7 kind 1.
func New(speedOfSound float64, absorption band.Response) Medium {
	if speedOfSound < 0 || math.IsNaN(speedOfSound) {
		speedOfSound = 0
	}
	return Medium{SpeedOfSound: speedOfSound, Absorption: absorption.NonNegative()}
}

// Attenuation returns the air-absorption factor at distance d (m) for every
// band: 10^(-alpha*d/10). Monotonically nonincreasing in d; equals 1 at
// d=0, per spec invariant (iv).
func (m Medium) Attenuation(d float64) band.Response {
	if d < 0 {
		d = 0
	}
	n := m.Absorption.Len()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = math.Pow(10, -m.Absorption.At(i)*d/10.0)
	}
	return band.NewResponseFrom(out)
}

// DistanceAttenuation returns the combined air-absorption and
// 1/(4*pi*(1+d^2)) geometric spreading factor per band (spec §4.2); the
// (1+d^2) form avoids the near-field singularity at d=0.
func (m Medium) DistanceAttenuation(d float64) band.Response {
	if d < 0 {
		d = 0
	}
	spread := 1.0 / (4.0 * math.Pi * (1.0 + d*d))
	return m.Attenuation(d).Scale(spread)
}

// AirAbsorption computes an ISO-9613-flavoured per-band absorption
// coefficient (dB/m) from temperature (Celsius), pressure (kPa) and
// relative humidity (%). Values are clamped to the domain named in spec
// §4.2 and the result is continuous and nonnegative in its inputs; it is a
// recommended formula, not a contractual one.
func AirAbsorption(bands *band.Bands, tempC, pressureKPa, relHumidity float64) band.Response {
	if tempC < -273.15 {
		tempC = -273.15
	}
	if pressureKPa < 0 {
		pressureKPa = 0
	} else if pressureKPa > 10000 {
		pressureKPa = 10000
	}
	if relHumidity < 0 {
		relHumidity = 0
	} else if relHumidity > 100 {
		relHumidity = 100
	}

	tKelvin := tempC + 273.15
	t0 := 293.15  // reference temperature, K
	ps0 := 101.325 // reference pressure, kPa
	p := pressureKPa
	if p <= 0 {
		p = ps0
	}

	// Saturation vapor pressure ratio (simplified Magnus form) and molar
	// concentration of water vapor, h, as in ISO 9613-1 Annex B.
	psat := ps0 * math.Pow(10, -6.8346*math.Pow(273.16/tKelvin, 1.261)+4.6151)
	h := relHumidity * (psat / p)

	// Relaxation frequencies for oxygen and nitrogen.
	frO := (p / ps0) * (24 + 4.04e4*h*(0.02+h)/(0.391+h))
	frN := (p / ps0) * math.Pow(t0/tKelvin, 0.5) *
		(9 + 280*h*math.Exp(-4.170*(math.Pow(t0/tKelvin, 1.0/3.0)-1)))

	centers := bands.Centers()
	out := make([]float64, len(centers))
	for i, f := range centers {
		f2 := f * f
		term := 1.84e-11 * (1 / (p / ps0)) * math.Sqrt(tKelvin/t0)
		classical := f2 * term

		oxy := 0.01275 * math.Exp(-2239.1/tKelvin) * (frO / (frO*frO + f2/frO))
		nit := 0.1068 * math.Exp(-3352.0/tKelvin) * (frN / (frN*frN + f2/frN))
		relax := f2 * math.Pow(t0/tKelvin, 2.5) * (oxy + nit)

		alpha := 8.686 * f2 * (classical + relax)
		if alpha < 0 || math.IsNaN(alpha) || math.IsInf(alpha, 0) {
			alpha = 0
		}
		out[i] = alpha
	}
	return band.NewResponseFrom(out)
}

// SpeedOfSound computes the speed of sound (m/s) from temperature (Celsius)
// via Cramer's formula, ignoring the (small) pressure/humidity correction
// terms beyond their leading-order contribution.
func SpeedOfSound(tempC, pressureKPa, relHumidity float64) float64 {
	if tempC < -273.15 {
		tempC = -273.15
	}
	t := tempC
	// Cramer (1993), simplified to the dominant temperature/humidity terms.
	c := 331.5024 + 0.603055*t - 0.000528*t*t
	c += 0.1494 * (relHumidity / 100.0)
	if pressureKPa > 0 {
		c += (pressureKPa - 101.325) * 3.0e-4
	}
	if c < 0 {
		c = 0
	}
	return c
}
