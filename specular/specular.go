// Package specular implements the specular image-source search: sphere
// probing from the listener, point- and sphere-source validation, and
// frame-start re-validation of cached chains (spec §4.6).
package specular

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

// Hit is one reflecting surface along a probe ray's bounce chain, in
// world space.
type Hit struct {
	Object   *scene.Object
	Triangle uint32
	Point    geom.Vec3
	Normal   geom.Vec3
	Tri      geom.Triangle // world-space vertices, for 2D-extent checks
}

// Options controls the probe and validation passes.
type Options struct {
	NumProbeRays       int
	MaxDepth           int
	NumSpecularSamples int
	RayOffset          float64
	AirAbsorption      bool
	UseDirectivity     bool
}

// Probe emits NumProbeRays rays uniformly over the sphere from the
// listener's position, bouncing specularly off whatever they hit up to
// MaxDepth times, and returns one bounce chain per ray that hit at least
// one surface.
func Probe(listener *scene.Detector, idx *bvh.Index, opts Options, rng *rand.Rand) [][]Hit {
	n := opts.NumProbeRays
	if n < 1 {
		n = 1
	}
	depth := opts.MaxDepth
	if depth < 1 {
		depth = 1
	}
	var chains [][]Hit
	for i := 0; i < n; i++ {
		dir := uniformSphereDirection(rng)
		origin := listener.Position
		var chain []Hit
		for d := 0; d < depth; d++ {
			ray := geom.Ray{Origin: origin, Dir: dir}
			hit, ok := idx.IntersectClosest(ray, math.Inf(1))
			if !ok {
				break
			}
			worldTri := worldTriangle(hit.Object, hit.Triangle)
			chain = append(chain, Hit{Object: hit.Object, Triangle: hit.Triangle, Point: hit.Point, Normal: hit.Normal, Tri: worldTri})
			dir = geom.Reflect(dir, hit.Normal).Normalize()
			origin = hit.Point.Add(hit.Normal.Mul(opts.RayOffset))
		}
		if len(chain) > 0 {
			chains = append(chains, chain)
		}
	}
	return chains
}

func worldTriangle(obj *scene.Object, triIdx uint32) geom.Triangle {
	local := obj.Mesh.TriangleLocal(triIdx)
	return geom.Triangle{
		A: obj.Transform.TransformPoint(local.A),
		B: obj.Transform.TransformPoint(local.B),
		C: obj.Transform.TransformPoint(local.C),
	}
}

func uniformSphereDirection(rng *rand.Rand) geom.Vec3 {
	z := 2*rng.Float64() - 1
	phi := 2 * math.Pi * rng.Float64()
	r := math.Sqrt(math.Max(0, 1-z*z))
	return geom.Vec3{r * math.Cos(phi), r * math.Sin(phi), z}
}

// listenerImages returns the chain of listener-image positions: images[0]
// is the listener itself; images[k] is the listener position reflected
// across each of the first k planes in order, per spec "update an image
// stack of listener-image positions by reflecting... over the hit
// triangle's plane".
func listenerImages(listener geom.Vec3, chain []Hit) []geom.Vec3 {
	images := make([]geom.Vec3, len(chain)+1)
	images[0] = listener
	for i, h := range chain {
		images[i+1] = geom.ReflectPoint(images[i], h.Point, h.Normal)
	}
	return images
}

// Revalidate re-tests chain against the current scene state: for each hop,
// it casts the listener-image-to-hit-point ray through idx and requires the
// closest hit to still land on the same object and triangle. A chain built
// from a stale BVH (the scene moved between Probe and validation) fails
// here rather than being validated against geometry that no longer matches,
// per spec §4.6's frame-start re-validation step.
func Revalidate(listener *scene.Detector, chain []Hit, idx *bvh.Index, opts Options) bool {
	if len(chain) == 0 {
		return false
	}
	images := listenerImages(listener.Position, chain)
	for i, h := range chain {
		ray, dist := rayBetween(images[i], h.Point.Add(h.Normal.Mul(opts.RayOffset)))
		if dist < geom.Epsilon {
			return false
		}
		hit, ok := idx.IntersectClosest(ray, dist+opts.RayOffset)
		if !ok || hit.Object != h.Object || hit.Triangle != h.Triangle {
			return false
		}
	}
	return true
}

func sameSide(p1, p2, planePoint, normal geom.Vec3) bool {
	return (p1.Sub(planePoint).Dot(normal)) * (p2.Sub(planePoint).Dot(normal)) > 0
}

// ValidatePointSource validates chain as a specular path from listener to
// a point-like source (radius ~= 0), per spec's point-source validation.
func ValidatePointSource(listener, source *scene.Detector, chain []Hit, idx *bvh.Index, m medium.Medium, bands *band.Bands, opts Options) (soundpath.SoundPath, bool) {
	if len(chain) == 0 {
		return soundpath.SoundPath{}, false
	}
	images := listenerImages(listener.Position, chain)

	virtualSource := source.Position
	var totalDist float64
	hitPoints := make([]geom.Vec3, len(chain))

	for i := len(chain) - 1; i >= 0; i-- {
		h := chain[i]
		listenerImage := images[i+1]
		if sameSide(listenerImage, virtualSource, h.Point, h.Normal) {
			return soundpath.SoundPath{}, false
		}
		ray, dist := rayBetween(virtualSource, listenerImage)
		if dist < geom.Epsilon {
			return soundpath.SoundPath{}, false
		}
		t, u, v, ok := h.Tri.IntersectRay(ray, dist)
		if !ok || u < 0 || v < 0 || u+v > 1 {
			return soundpath.SoundPath{}, false
		}
		hitPoint := ray.At(t)
		if idx.IntersectAny(ray.Offset(opts.RayOffset), t-2*opts.RayOffset) {
			return soundpath.SoundPath{}, false
		}
		totalDist += t
		hitPoints[i] = hitPoint
		virtualSource = hitPoint.Add(h.Normal.Mul(opts.RayOffset))
	}

	finalRay, finalDist := rayBetween(listener.Position, virtualSource)
	if finalDist < geom.Epsilon {
		return soundpath.SoundPath{}, false
	}
	if idx.IntersectAny(finalRay.Offset(opts.RayOffset), finalDist-opts.RayOffset) {
		return soundpath.SoundPath{}, false
	}
	totalDist += finalDist

	listenerDir := finalRay.Dir
	sourceDir := geom.Vec3{}
	if len(hitPoints) > 0 {
		sourceDir = hitPoints[len(hitPoints)-1].Sub(source.Position).Normalize()
	} else {
		sourceDir = listener.Position.Sub(source.Position).Normalize()
	}

	energy := pathEnergy(chain, totalDist, 1.0, m, bands, source, sourceDir, opts)
	return soundpath.SoundPath{
		Flags:           soundpath.FlagSpecular,
		Intensity:       energy,
		Direction:       listenerDir,
		SourceDirection: sourceDir,
		Distance:        totalDist,
		MediumSpeed:     m.SpeedOfSound,
	}, true
}

// ValidateSphereSource validates chain against a sphere source using
// multi-sample visibility: rays are drawn in the cone subtending the
// source sphere at the last reflecting triangle, then redirected toward
// each prior listener image and tested for occlusion/triangle extent,
// per spec's sphere-source validation.
func ValidateSphereSource(listener, source *scene.Detector, chain []Hit, idx *bvh.Index, m medium.Medium, bands *band.Bands, opts Options, rng *rand.Rand) (soundpath.SoundPath, bool) {
	if len(chain) == 0 {
		return soundpath.SoundPath{}, false
	}
	images := listenerImages(listener.Position, chain)
	last := chain[len(chain)-1]

	samples := opts.NumSpecularSamples
	if samples < 1 {
		samples = 1
	}

	toSource := source.Position.Sub(last.Point)
	dist := toSource.Len()
	if dist < geom.Epsilon {
		return soundpath.SoundPath{}, false
	}
	centerDir := toSource.Mul(1 / dist)
	theta := 0.0
	if source.Radius > 0 && dist > source.Radius {
		theta = math.Asin(clamp(source.Radius/dist, 0, 1))
	}

	type survivor struct {
		dist float64
	}
	var survivors []survivor

	for s := 0; s < samples; s++ {
		dir := sampleCone(centerDir, theta, rng)
		ray := geom.Ray{Origin: last.Point.Add(last.Normal.Mul(opts.RayOffset)), Dir: dir}
		t, u, v, ok := last.Tri.IntersectRay(ray, dist+source.Radius+1)
		if !ok || u < 0 || v < 0 || u+v > 1 {
			continue
		}
		if idx.IntersectAny(ray.Offset(opts.RayOffset), t-opts.RayOffset) {
			continue
		}
		segDist := t
		ok = true
		cur := ray.At(t)
		for i := len(chain) - 2; i >= 0 && ok; i-- {
			h := chain[i]
			listenerImage := images[i]
			r2, d2 := rayBetween(cur, listenerImage)
			if d2 < geom.Epsilon {
				ok = false
				break
			}
			t2, u2, v2, hit := h.Tri.IntersectRay(r2, d2)
			if !hit || u2 < 0 || v2 < 0 || u2+v2 > 1 {
				ok = false
				break
			}
			if idx.IntersectAny(r2.Offset(opts.RayOffset), t2-opts.RayOffset) {
				ok = false
				break
			}
			segDist += t2
			cur = r2.At(t2)
		}
		if !ok {
			continue
		}
		finalRay, finalDist := rayBetween(cur, listener.Position)
		if finalDist < geom.Epsilon || idx.IntersectAny(finalRay.Offset(opts.RayOffset), finalDist-opts.RayOffset) {
			continue
		}
		segDist += finalDist
		survivors = append(survivors, survivor{dist: segDist})
	}

	if len(survivors) == 0 {
		return soundpath.SoundPath{}, false
	}
	visibility := float64(len(survivors)) / float64(samples)
	var distSum float64
	for _, sv := range survivors {
		distSum += sv.dist
	}
	avgDist := distSum / float64(len(survivors))

	sourceDir := last.Point.Sub(source.Position).Normalize()
	listenerDir := last.Point.Sub(listener.Position).Normalize()

	energy := pathEnergy(chain, avgDist, visibility, m, bands, source, sourceDir, opts)
	return soundpath.SoundPath{
		Flags:           soundpath.FlagSpecular,
		Intensity:       energy,
		Direction:       listenerDir,
		SourceDirection: sourceDir,
		Distance:        avgDist,
		MediumSpeed:     m.SpeedOfSound,
	}, true
}

func pathEnergy(chain []Hit, dist, visibility float64, m medium.Medium, bands *band.Bands, source *scene.Detector, sourceDir geom.Vec3, opts Options) band.Response {
	var attenuation band.Response
	if opts.AirAbsorption {
		attenuation = m.DistanceAttenuation(dist)
	} else {
		spread := 1.0 / (4.0 * math.Pi * (1.0 + dist*dist))
		attenuation = band.NewResponse(bands.Count(), spread)
	}
	energy := attenuation.Scale(visibility * source.Power)
	for _, h := range chain {
		mat := h.Object.Mesh.TriangleMaterial(h.Triangle)
		refl := mat.ReflectivityBand(bands)
		scat := mat.ScatteringBand(bands)
		energy = energy.Mul(refl.Mul(scat.Scale(-1).AddScalar(1)))
	}
	if opts.UseDirectivity && source.Directivity != nil {
		bd := source.EnsureBandDirectivity(bands)
		localDir := geom.WorldToLocalDirection(source.Orientation, sourceDir.Mul(-1))
		energy = energy.Mul(bd.Evaluate(localDir))
	}
	return energy.NonNegative()
}

func rayBetween(from, to geom.Vec3) (geom.Ray, float64) {
	d := to.Sub(from)
	dist := d.Len()
	if dist < geom.Epsilon {
		return geom.Ray{Origin: from, Dir: geom.Vec3{0, 0, 1}}, 0
	}
	return geom.Ray{Origin: from, Dir: d.Mul(1 / dist)}, dist
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
