package diffuse

import (
	"math/rand"
	"testing"

	"github.com/cwbudde/gosound/band"
	"github.com/cwbudde/gosound/bvh"
	"github.com/cwbudde/gosound/geom"
	"github.com/cwbudde/gosound/medium"
	"github.com/cwbudde/gosound/scene"
	"github.com/cwbudde/gosound/soundpath"
)

func boxRoom() *scene.Mesh {
	// An inward-facing cube, 20 units across, centred at the origin:
	// enough for diffuse rays from a central listener to bounce off a
	// wall and back toward a central source.
	verts := []geom.Vec3{
		{-10, -10, -10}, {10, -10, -10}, {10, 10, -10}, {-10, 10, -10},
		{-10, -10, 10}, {10, -10, 10}, {10, 10, 10}, {-10, 10, 10},
	}
	mat := scene.NewMaterial(
		band.NewCurve([]band.Point{{Frequency: 0, Gain: 0.9}}),
		band.NewCurve([]band.Point{{Frequency: 0, Gain: 1.0}}),
		band.NewCurve(nil),
		scene.RGBA{},
	)
	quad := func(a, b, c, d int) []scene.Triangle {
		return []scene.Triangle{
			{V0: uint32(a), V1: uint32(b), V2: uint32(c), MaterialIdx: 0},
			{V0: uint32(a), V1: uint32(c), V2: uint32(d), MaterialIdx: 0},
		}
	}
	var tris []scene.Triangle
	tris = append(tris, quad(0, 3, 2, 1)...) // -z face, normal +z (inward)
	tris = append(tris, quad(4, 5, 6, 7)...) // +z face, normal -z
	tris = append(tris, quad(0, 1, 5, 4)...) // -y face
	tris = append(tris, quad(3, 7, 6, 2)...) // +y face
	tris = append(tris, quad(0, 4, 7, 3)...) // -x face
	tris = append(tris, quad(1, 2, 6, 5)...) // +x face
	return scene.NewMesh(verts, tris, []*scene.Material{mat}, nil, nil)
}

func TestTraceListenerOriginProducesDiffuseContributions(t *testing.T) {
	bands := band.DefaultBands()
	m := medium.New(343, band.NewResponse(bands.Count(), 0))
	s := scene.NewScene(m)
	obj := scene.NewObject(boxRoom())
	s.Objects = []*scene.Object{obj}
	idx := bvh.Build(s)

	listener := scene.NewListener(1, geom.Vec3{0, 0, 0})
	source := scene.NewSource(2, geom.Vec3{3, 0, 0}, 1, nil)

	rng := rand.New(rand.NewSource(42))
	opts := Options{
		NumDiffuseRays:    500,
		MaxDiffuseDepth:   2,
		NumDiffuseSamples: 8,
		RayOffset:         1e-4,
		MaxIRLength:       1,
		AirAbsorption:     true,
	}
	paths := Trace(listener, source, idx, m, bands, rng, opts)
	if len(paths) == 0 {
		t.Fatalf("expected at least one diffuse contribution inside a reflective room")
	}
	for _, p := range paths {
		if p.Flags&soundpath.FlagDiffuse == 0 {
			t.Fatalf("expected FlagDiffuse set on every contribution")
		}
		if p.Intensity.At(0) < 0 {
			t.Fatalf("diffuse contribution has negative intensity: %v", p.Intensity.At(0))
		}
		if p.Distance <= 0 {
			t.Fatalf("diffuse contribution has non-positive distance: %v", p.Distance)
		}
	}
}

func TestTraceRespectsMaxIRLength(t *testing.T) {
	bands := band.DefaultBands()
	m := medium.New(343, band.NewResponse(bands.Count(), 0))
	s := scene.NewScene(m)
	obj := scene.NewObject(boxRoom())
	s.Objects = []*scene.Object{obj}
	idx := bvh.Build(s)

	listener := scene.NewListener(1, geom.Vec3{0, 0, 0})
	source := scene.NewSource(2, geom.Vec3{3, 0, 0}, 1, nil)

	rng := rand.New(rand.NewSource(3))
	opts := Options{
		NumDiffuseRays:    200,
		MaxDiffuseDepth:   4,
		NumDiffuseSamples: 4,
		RayOffset:         1e-4,
		MaxIRLength:       0.02, // 0.02*343 ~= 6.9 units of total travel
	}
	paths := Trace(listener, source, idx, m, bands, rng, opts)
	maxDist := opts.MaxIRLength * m.SpeedOfSound
	for _, p := range paths {
		if p.Distance > maxDist+1e-6 {
			t.Fatalf("contribution distance %v exceeds maxIRLength bound %v", p.Distance, maxDist)
		}
	}
}

func TestReflectionDirectionStaysInUpperHemisphereWhenDiffuse(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	normal := geom.Vec3{0, 0, 1}
	for i := 0; i < 100; i++ {
		d := cosineWeightedHemisphere(normal, rng)
		if d.Dot(normal) < -1e-9 {
			t.Fatalf("cosine-weighted sample %v fell below the hemisphere plane", d)
		}
	}
}
