// Package diffuse implements the Monte-Carlo diffuse sampler: listener-
// and source-origin ray emission with per-hit BRDF bouncing, and a
// detector form factor estimating source visibility from each hit (spec
// §4.8).
package diffuse

import (
	"math"
	"math/rand"

	"github.com/cwbudde/gosound/band"
	"github.com/cwbudde/gosound/bvh"
	"github.com/cwbudde/gosound/geom"
	"github.com/cwbudde/gosound/medium"
	"github.com/cwbudde/gosound/scene"
	"github.com/cwbudde/gosound/soundpath"
	"gonum.org/v1/gonum/stat"
)

// Origin selects which end of a (listener, source) pair diffuse rays are
// emitted from.
type Origin int

const (
	// OriginListener emits rays from the listener and records a
	// contribution whenever a bounce's detector form factor toward a
	// source is non-zero (the default mode).
	OriginListener Origin = iota
	// OriginSource is the symmetric mode: rays originate at the source
	// and contributions are recorded toward the listener.
	OriginSource
)

// Options controls the diffuse sampler.
type Options struct {
	NumDiffuseRays    int
	MaxDiffuseDepth   int
	NumDiffuseSamples int
	RayOffset         float64
	MaxIRLength       float64 // seconds; rays stop once total distance exceeds MaxIRLength*speed
	AirAbsorption     bool
	UseDirectivity    bool
	Origin            Origin
}

// Trace emits opts.NumDiffuseRays rays from emitter, bouncing up to
// opts.MaxDiffuseDepth times, and returns one diffuse contribution per
// (hit, target) pair whose detector form factor toward target is
// non-zero. emitter is the listener in OriginListener mode and the
// source in OriginSource mode; target is the corresponding source or
// listener.
func Trace(emitter, target *scene.Detector, idx *bvh.Index, m medium.Medium, bands *band.Bands, rng *rand.Rand, opts Options) []soundpath.SoundPath {
	n := opts.NumDiffuseRays
	if n < 1 {
		n = 1
	}
	depth := opts.MaxDiffuseDepth
	if depth < 1 {
		depth = 1
	}
	maxDist := math.Inf(1)
	if opts.MaxIRLength > 0 {
		maxDist = opts.MaxIRLength * m.SpeedOfSound
	}

	var out []soundpath.SoundPath
	for i := 0; i < n; i++ {
		emitDir := uniformSphereDirection(rng)
		origin := emitter.Position.Add(emitDir.Mul(emitter.Radius))
		dir := emitDir
		pathLength := 0.0
		gain := band.NewResponse(bands.Count(), 1)

		for d := 0; d < depth; d++ {
			ray := geom.Ray{Origin: origin, Dir: dir}
			hit, ok := idx.IntersectClosest(ray, maxDist-pathLength)
			if !ok {
				break
			}
			pathLength += hit.T
			if pathLength >= maxDist {
				break
			}

			mat := hit.Object.Mesh.TriangleMaterial(hit.Triangle)
			refl := mat.ReflectivityBand(bands)
			scat := mat.ScatteringBand(bands)
			gain = gain.Mul(refl)

			hitPoint := hit.Point.Add(hit.Normal.Mul(opts.RayOffset))
			patchID := hit.Object.Mesh.PatchID(hit.Triangle, hit.U, hit.V)
			if contribution, ok := formFactorContribution(hitPoint, hit.Normal, emitDir, pathLength, target, idx, m, bands, gain, scat, rng, opts); ok {
				contribution.Triangle = hit.Triangle
				contribution.PatchID = patchID
				out = append(out, contribution)
			}

			dir = reflectionDirection(dir, hit.Normal, scat.Sum()/float64(scat.Len()), rng)
			origin = hitPoint
		}
	}
	return out
}

// formFactorContribution estimates the detector form factor toward
// target from hitPoint by casting opts.NumDiffuseSamples rays into the
// cone subtended by target's bounding sphere, using their hit fraction as
// a Monte-Carlo visibility estimate (gonum/stat.Mean over the per-ray
// hit/miss samples).
func formFactorContribution(hitPoint, hitNormal, emitDir geom.Vec3, pathLength float64, target *scene.Detector, idx *bvh.Index, m medium.Medium, bands *band.Bands, gain, scattering band.Response, rng *rand.Rand, opts Options) (soundpath.SoundPath, bool) {
	toTarget := target.Position.Sub(hitPoint)
	dist := toTarget.Len()
	if dist < geom.Epsilon {
		return soundpath.SoundPath{}, false
	}
	centerDir := toTarget.Mul(1 / dist)
	if centerDir.Dot(hitNormal) <= 0 {
		return soundpath.SoundPath{}, false
	}
	theta := 0.0
	if target.Radius > 0 && dist > target.Radius {
		theta = math.Asin(clamp(target.Radius/dist, 0, 1))
	}

	samples := opts.NumDiffuseSamples
	if samples < 1 {
		samples = 1
	}
	weights := make([]float64, samples)
	hits := make([]float64, samples)
	for s := 0; s < samples; s++ {
		dir := sampleCone(centerDir, theta, rng)
		ray := geom.Ray{Origin: hitPoint, Dir: dir}
		weights[s] = 1
		if !idx.IntersectAny(ray.Offset(opts.RayOffset), dist-opts.RayOffset) {
			hits[s] = 1
		}
	}
	visibility := stat.Mean(hits, weights)
	if visibility <= 0 {
		return soundpath.SoundPath{}, false
	}

	totalDist := pathLength + dist
	if opts.MaxIRLength > 0 && totalDist > opts.MaxIRLength*m.SpeedOfSound {
		return soundpath.SoundPath{}, false
	}

	solidAngle := 2 * math.Pi * (1 - math.Cos(theta))
	if theta <= geom.Epsilon {
		solidAngle = 1
	}
	cosineTerm := centerDir.Dot(hitNormal)
	scatterProb := scattering.Sum() / float64(scattering.Len())

	var attenuation band.Response
	if opts.AirAbsorption {
		attenuation = m.DistanceAttenuation(totalDist)
	} else {
		spread := 1.0 / (4.0 * math.Pi * (1.0 + totalDist*totalDist))
		attenuation = band.NewResponse(bands.Count(), spread)
	}

	energy := attenuation.Mul(gain).Scale(visibility * solidAngle * cosineTerm * scatterProb * target.Power).NonNegative()

	sourceDir := hitPoint.Sub(target.Position).Normalize()
	if opts.UseDirectivity && target.Directivity != nil {
		bd := target.EnsureBandDirectivity(bands)
		localDir := geom.WorldToLocalDirection(target.Orientation, sourceDir.Mul(-1))
		energy = energy.Mul(bd.Evaluate(localDir))
	}

	return soundpath.SoundPath{
		Flags:           soundpath.FlagDiffuse,
		Intensity:       energy,
		Direction:       emitDir,
		SourceDirection: sourceDir,
		Distance:        totalDist,
		MediumSpeed:     m.SpeedOfSound,
	}, true
}

// reflectionDirection draws a new bounce direction given the incoming
// direction and hit normal: with probability scatterProb it draws a
// cosine-weighted hemisphere sample (a diffuse lobe reflection), and
// otherwise mirrors incoming specularly. This is the material's BRDF
// (spec §4.8, "material provides reflection(incoming, normal, rng) →
// outgoing").
func reflectionDirection(incoming, normal geom.Vec3, scatterProb float64, rng *rand.Rand) geom.Vec3 {
	if rng.Float64() < scatterProb {
		return cosineWeightedHemisphere(normal, rng)
	}
	return geom.Reflect(incoming, normal).Normalize()
}

func cosineWeightedHemisphere(normal geom.Vec3, rng *rand.Rand) geom.Vec3 {
	u1 := rng.Float64()
	u2 := rng.Float64()
	r := math.Sqrt(u1)
	phi := 2 * math.Pi * u2
	x := r * math.Cos(phi)
	y := r * math.Sin(phi)
	z := math.Sqrt(math.Max(0, 1-u1))

	up := geom.Vec3{0, 1, 0}
	if math.Abs(normal.Dot(up)) > 0.99 {
		up = geom.Vec3{1, 0, 0}
	}
	tangent := up.Cross(normal).Normalize()
	bitangent := normal.Cross(tangent)
	return tangent.Mul(x).Add(bitangent.Mul(y)).Add(normal.Mul(z)).Normalize()
}

func uniformSphereDirection(rng *rand.Rand) geom.Vec3 {
	z := 2*rng.Float64() - 1
	phi := 2 * math.Pi * rng.Float64()
	r := math.Sqrt(math.Max(0, 1-z*z))
	return geom.Vec3{r * math.Cos(phi), r * math.Sin(phi), z}
}

func sampleCone(center geom.Vec3, theta float64, rng *rand.Rand) geom.Vec3 {
	if theta <= geom.Epsilon {
		return center
	}
	cosTheta := math.Cos(theta)
	z := 1 - rng.Float64()*(1-cosTheta)
	phi := 2 * math.Pi * rng.Float64()
	sinZ := math.Sqrt(math.Max(0, 1-z*z))
	local := geom.Vec3{sinZ * math.Cos(phi), sinZ * math.Sin(phi), z}
	up := geom.Vec3{0, 1, 0}
	if math.Abs(center.Dot(up)) > 0.99 {
		up = geom.Vec3{1, 0, 0}
	}
	tangent := up.Cross(center).Normalize()
	bitangent := center.Cross(tangent)
	return tangent.Mul(local[0]).Add(bitangent.Mul(local[1])).Add(center.Mul(local[2])).Normalize()
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
