// Package direct implements the direct-path contribution between a
// listener and a source: a cone of visibility-test rays plus distance and
// directivity attenuation (spec §4.9).
package direct

import (
	"math"
	"math/rand"

	"github.com/cwbudde/gosound/band"
	"github.com/cwbudde/gosound/bvh"
	"github.com/cwbudde/gosound/geom"
	"github.com/cwbudde/gosound/medium"
	"github.com/cwbudde/gosound/scene"
	"github.com/cwbudde/gosound/soundpath"
)

// Options controls how a direct path is searched, mirroring the relevant
// subset of a propagation request.
type Options struct {
	NumRays         int
	RayOffset       float64
	AirAbsorption   bool
	UseDirectivity  bool
	Transmission    bool // spec §5 supplemented feature: transmit through occluders instead of failing outright
}

// Result is the direct-path contribution for one (listener, source) pair.
type Result struct {
	Path       soundpath.SoundPath
	Visibility float64
}

// Find searches for the direct-path contribution from listener to source,
// returning ok=false when the source is fully occluded (and transmission
// is disabled).
func Find(listener, source *scene.Detector, idx *bvh.Index, m medium.Medium, bands *band.Bands, rng *rand.Rand, opts Options) (Result, bool) {
	toSource := source.Position.Sub(listener.Position)
	dist := toSource.Len()
	if dist < geom.Epsilon {
		return Result{}, false
	}
	centerDir := toSource.Mul(1 / dist)

	theta := 0.0
	if source.Radius > 0 && dist > source.Radius {
		theta = math.Asin(clamp(source.Radius/dist, 0, 1))
	}

	n := opts.NumRays
	if n < 1 {
		n = 1
	}

	var visibleCount int
	var dirSum, srcDirSum geom.Vec3
	var distSum float64

	for i := 0; i < n; i++ {
		dir := sampleCone(centerDir, theta, rng)
		tHit, ok := sphereHitDistance(listener.Position, dir, source.Position, math.Max(source.Radius, 0))
		if !ok {
			tHit = dist
		}
		ray := geom.Ray{Origin: listener.Position, Dir: dir}
		occluded := idx.IntersectAny(ray.Offset(opts.RayOffset), tHit-opts.RayOffset)
		visible := !occluded
		if !visible && opts.Transmission {
			visible = true // counted as transmitted; no material transmission attenuation is applied
		}
		if !visible {
			continue
		}
		visibleCount++
		dirSum = dirSum.Add(dir)
		srcDirSum = srcDirSum.Add(dir.Mul(-1))
		distSum += tHit
	}

	visibility := float64(visibleCount) / float64(n)
	if visibleCount == 0 {
		return Result{Visibility: 0}, opts.Transmission
	}

	avgDir := dirSum.Mul(1 / float64(visibleCount)).Normalize()
	avgSrcDir := srcDirSum.Mul(1 / float64(visibleCount)).Normalize()
	avgDist := distSum / float64(visibleCount)

	var attenuation band.Response
	if opts.AirAbsorption {
		attenuation = m.DistanceAttenuation(avgDist)
	} else {
		spread := 1.0 / (4.0 * math.Pi * (1.0 + avgDist*avgDist))
		attenuation = band.NewResponse(bands.Count(), spread)
	}
	energy := attenuation.Scale(visibility * source.Power)

	if opts.UseDirectivity && source.Directivity != nil {
		bd := source.EnsureBandDirectivity(bands)
		localDir := geom.WorldToLocalDirection(source.Orientation, avgSrcDir)
		energy = energy.Mul(bd.Evaluate(localDir))
	}

	path := soundpath.SoundPath{
		Hash:            0,
		Flags:           soundpath.FlagDirect,
		Intensity:       energy.NonNegative(),
		Direction:       avgDir,
		SourceDirection: avgSrcDir,
		Distance:        avgDist,
		MediumSpeed:     m.SpeedOfSound,
	}
	return Result{Path: path, Visibility: visibility}, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// sampleCone draws a unit direction uniformly within a cone of half-angle
// theta around center (theta=0 returns center exactly).
func sampleCone(center geom.Vec3, theta float64, rng *rand.Rand) geom.Vec3 {
	if theta <= geom.Epsilon {
		return center
	}
	cosTheta := math.Cos(theta)
	z := 1 - rng.Float64()*(1-cosTheta)
	phi := 2 * math.Pi * rng.Float64()
	sinZ := math.Sqrt(math.Max(0, 1-z*z))
	local := geom.Vec3{sinZ * math.Cos(phi), sinZ * math.Sin(phi), z}

	// Build an orthonormal frame around center and rotate local into it.
	up := geom.Vec3{0, 1, 0}
	if math.Abs(center.Dot(up)) > 0.99 {
		up = geom.Vec3{1, 0, 0}
	}
	tangent := up.Cross(center).Normalize()
	bitangent := center.Cross(tangent)
	return tangent.Mul(local[0]).Add(bitangent.Mul(local[1])).Add(center.Mul(local[2])).Normalize()
}

// sphereHitDistance returns the nearest positive intersection distance of
// the ray (origin,dir) with the sphere (center,radius), or ok=false if the
// ray misses it (radius 0 degenerates to the distance to center).
func sphereHitDistance(origin, dir, center geom.Vec3, radius float64) (float64, bool) {
	oc := origin.Sub(center)
	b := oc.Dot(dir)
	c := oc.Dot(oc) - radius*radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	t := -b - sq
	if t < 0 {
		t = -b + sq
	}
	if t < 0 {
		return 0, false
	}
	return t, true
}
