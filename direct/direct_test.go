package direct

import (
	"math"
	"math/rand"
	"testing"

	"github.com/cwbudde/gosound/band"
	"github.com/cwbudde/gosound/bvh"
	"github.com/cwbudde/gosound/geom"
	"github.com/cwbudde/gosound/medium"
	"github.com/cwbudde/gosound/scene"
)

func TestFreeFieldDirectPath(t *testing.T) {
	bands := band.DefaultBands()
	m := medium.New(343, band.NewResponse(bands.Count(), 0))
	s := scene.NewScene(m)
	idx := bvh.Build(s)

	listener := scene.NewListener(1, geom.Vec3{0, 0, 0})
	source := scene.NewSource(2, geom.Vec3{10, 0, 0}, 1, nil)

	rng := rand.New(rand.NewSource(1))
	res, ok := Find(listener, source, idx, m, bands, rng, Options{NumRays: 32, RayOffset: 1e-4, AirAbsorption: true})
	if !ok {
		t.Fatalf("expected a direct path in free field")
	}
	if res.Visibility != 1 {
		t.Fatalf("visibility = %v, want 1 (no occluders)", res.Visibility)
	}
	if diff := res.Path.Distance - 10; diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("distance = %v, want 10", res.Path.Distance)
	}
	want := 1.0 / (4 * math.Pi * 101)
	for i := 0; i < bands.Count(); i++ {
		got := res.Path.Intensity.At(i)
		if diff := got - want; diff > 1e-6 || diff < -1e-6 {
			t.Fatalf("band %d intensity = %v, want %v", i, got, want)
		}
	}
}

func TestOccludedDirectPathWithoutTransmissionFails(t *testing.T) {
	bands := band.DefaultBands()
	m := medium.New(343, band.NewResponse(bands.Count(), 0))
	s := scene.NewScene(m)

	verts := []geom.Vec3{{-100, -100, 5}, {100, -100, 5}, {100, 100, 5}, {-100, 100, 5}}
	mat := scene.NewMaterial(band.NewCurve(nil), band.NewCurve(nil), band.NewCurve(nil), scene.RGBA{})
	tris := []scene.Triangle{{V0: 0, V1: 1, V2: 2, MaterialIdx: 0}, {V0: 0, V1: 2, V2: 3, MaterialIdx: 0}}
	wall := scene.NewMesh(verts, tris, []*scene.Material{mat}, nil, nil)
	obj := scene.NewObject(wall)
	s.Objects = []*scene.Object{obj}
	idx := bvh.Build(s)

	listener := scene.NewListener(1, geom.Vec3{0, 0, 0})
	source := scene.NewSource(2, geom.Vec3{0, 0, 10}, 1, nil)

	rng := rand.New(rand.NewSource(1))
	res, ok := Find(listener, source, idx, m, bands, rng, Options{NumRays: 16, RayOffset: 1e-4, AirAbsorption: true})
	if ok {
		t.Fatalf("expected no direct path through a blocking wall, got visibility=%v", res.Visibility)
	}
}
