package band

import "sort"

// Point is a single (frequency, gain) break-point.
type Point struct {
	Frequency float64
	Gain      float64
}

// Curve is an ordered sequence of break-points, strictly increasing by
// frequency, describing an arbitrary-resolution frequency response before
// it is projected onto a fixed Bands layout.
type Curve struct {
	points []Point
}

// NewCurve builds a Curve from points, sorting them by frequency. Points
// sharing a frequency are resolved by keeping the last one seen, mirroring
// how a materials importer would dedupe authored break points.
func NewCurve(points []Point) Curve {
	cp := make([]Point, len(points))
	copy(cp, points)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Frequency < cp[j].Frequency })
	out := cp[:0:0]
	for i, p := range cp {
		if i > 0 && p.Frequency == cp[i-1].Frequency {
			out[len(out)-1] = p
			continue
		}
		out = append(out, p)
	}
	return Curve{points: out}
}

// Points returns the break points, owned by the caller.
func (c Curve) Points() []Point {
	cp := make([]Point, len(c.points))
	copy(cp, c.points)
	return cp
}

// Len returns the number of break points.
func (c Curve) Len() int { return len(c.points) }

// valueAt linearly interpolates the curve's gain at frequency f, clamping
// to the endpoint gains outside the curve's range.
func (c Curve) valueAt(f float64) float64 {
	if len(c.points) == 0 {
		return 0
	}
	if f <= c.points[0].Frequency {
		return c.points[0].Gain
	}
	last := c.points[len(c.points)-1]
	if f >= last.Frequency {
		return last.Gain
	}
	// Binary search for the bracketing pair.
	lo, hi := 0, len(c.points)-1
	for lo+1 < hi {
		mid := (lo + hi) / 2
		if c.points[mid].Frequency <= f {
			lo = mid
		} else {
			hi = mid
		}
	}
	p0, p1 := c.points[lo], c.points[hi]
	if p1.Frequency == p0.Frequency {
		return p0.Gain
	}
	t := (f - p0.Frequency) / (p1.Frequency - p0.Frequency)
	return p0.Gain + t*(p1.Gain-p0.Gain)
}

// ToBandResponse projects the curve onto bands by point-sampling the curve
// at each band center, per spec §4.1.
func (c Curve) ToBandResponse(bands *Bands) Response {
	out := make([]float64, bands.Count())
	for i := 0; i < bands.Count(); i++ {
		out[i] = c.valueAt(bands.Center(i))
	}
	return Response{gains: out}
}

// AverageOverBand integrates the piecewise-linear curve between lo and hi
// using the trapezoid rule and divides by the interval, per spec §4.1. It
// returns 0 when hi <= lo.
func (c Curve) AverageOverBand(lo, hi float64) float64 {
	if hi <= lo || len(c.points) == 0 {
		return 0
	}
	// Build the sorted set of integration breakpoints within [lo, hi],
	// including the endpoints themselves.
	xs := []float64{lo}
	for _, p := range c.points {
		if p.Frequency > lo && p.Frequency < hi {
			xs = append(xs, p.Frequency)
		}
	}
	xs = append(xs, hi)

	var integral float64
	for i := 0; i+1 < len(xs); i++ {
		x0, x1 := xs[i], xs[i+1]
		y0, y1 := c.valueAt(x0), c.valueAt(x1)
		integral += 0.5 * (y0 + y1) * (x1 - x0)
	}
	return integral / (hi - lo)
}
