package scene

import (
	"math"

	"github.com/cwbudde/gosound/band"
	"github.com/cwbudde/gosound/geom"
)

// Vec3 is the scene package's 3D vector alias, re-exported from geom for
// convenience of callers that only need geometry primitives, not transforms.
type Vec3 = geom.Vec3

// DirectivitySample is one (direction, response curve) pair of a
// sphere-sampled directivity pattern.
type DirectivitySample struct {
	Direction Vec3
	Response  band.Curve
}

// Directivity is a sphere-sampled directional response plus a source-local
// orientation matrix (spec §3 "Directivity").
type Directivity struct {
	Samples     []DirectivitySample
	Orientation geom.Mat3
}

// NewOmnidirectional returns a directivity with a single uniform response
// in every direction, matching a source with no directional pattern.
func NewOmnidirectional(response band.Curve) *Directivity {
	return &Directivity{
		Samples: []DirectivitySample{{Direction: Vec3{0, 0, 1}, Response: response}},
	}
}

// maxSHOrder is the spec's cap on adaptive spherical-harmonic order.
const maxSHOrder = 4

// BandDirectivity is the per-source derived directivity: the sphere
// samples projected to the N-band basis, then expanded into real SH up to
// an adaptively-chosen order (spec §3 "band directivity").
type BandDirectivity struct {
	bands     *band.Bands
	order     int
	coeffs    []band.Response // length (order+1)^2, one Response per SH coefficient
	timestamp uint64
}

// errorThreshold is the default relative-error bound used to choose SH
// order, per spec §3.
const errorThreshold = 0.05

// NewBandDirectivity projects d onto bands and fits an adaptive-order SH
// expansion meeting errorThreshold, capped at maxSHOrder.
func NewBandDirectivity(d *Directivity, bands *band.Bands) *BandDirectivity {
	bd := &BandDirectivity{bands: bands}
	if len(d.Samples) == 0 {
		bd.order = 0
		bd.coeffs = []band.Response{band.NewResponse(bands.Count(), 1.0)}
		return bd
	}

	type sample struct {
		dir  Vec3
		resp band.Response
	}
	samples := make([]sample, len(d.Samples))
	for i, s := range d.Samples {
		samples[i] = sample{dir: s.Direction.Normalize(), resp: s.Response.ToBandResponse(bands)}
	}
	weight := 4 * math.Pi / float64(len(samples))

	for order := 0; order <= maxSHOrder; order++ {
		n := numSHCoeffs(order)
		coeffs := make([]band.Response, n)
		for i := range coeffs {
			coeffs[i] = band.NewResponse(bands.Count(), 0)
		}
		for _, s := range samples {
			theta, phi := dirToAngles(s.dir)
			for l := 0; l <= order; l++ {
				for m := -l; m <= l; m++ {
					y := realSH(l, m, theta, phi)
					idx := shIndex(l, m)
					coeffs[idx] = coeffs[idx].Add(s.resp.Scale(y * weight))
				}
			}
		}

		// Evaluate reconstruction error at the sample directions.
		var errSum, refSum float64
		for _, s := range samples {
			theta, phi := dirToAngles(s.dir)
			rec := evalSH(coeffs, order, theta, phi, bands.Count())
			diff := rec.Sub(s.resp)
			for i := 0; i < diff.Len(); i++ {
				errSum += diff.At(i) * diff.At(i)
				refSum += s.resp.At(i) * s.resp.At(i)
			}
		}
		relErr := 0.0
		if refSum > 0 {
			relErr = math.Sqrt(errSum / refSum)
		}
		bd.order = order
		bd.coeffs = coeffs
		if relErr <= errorThreshold || order == maxSHOrder {
			break
		}
	}
	return bd
}

func evalSH(coeffs []band.Response, order int, theta, phi float64, n int) band.Response {
	out := band.NewResponse(n, 0)
	for l := 0; l <= order; l++ {
		for m := -l; m <= l; m++ {
			y := realSH(l, m, theta, phi)
			out = out.Add(coeffs[shIndex(l, m)].Scale(y))
		}
	}
	return out
}

// Evaluate looks up the band response in query direction dir (source-local
// space).
func (bd *BandDirectivity) Evaluate(dir Vec3) band.Response {
	theta, phi := dirToAngles(dir.Normalize())
	return evalSH(bd.coeffs, bd.order, theta, phi, bd.bands.Count()).NonNegative()
}

// Order returns the chosen SH order.
func (bd *BandDirectivity) Order() int { return bd.order }

// Touch sets the timestamp reported by Timestamp. Nothing in this
// package calls it or reads the timestamp back.
func (bd *BandDirectivity) Touch(ts uint64) { bd.timestamp = ts }

// Timestamp returns the last edit timestamp.
func (bd *BandDirectivity) Timestamp() uint64 { return bd.timestamp }
