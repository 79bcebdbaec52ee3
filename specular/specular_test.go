package specular

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

func TestSingleWallMirrorSpecularPath(t *testing.T) {
	bands := band.DefaultBands()
	m := medium.New(343, band.NewResponse(bands.Count(), 0))
	s := scene.NewScene(m)

	verts := []geom.Vec3{{-100, -100, 0}, {100, -100, 0}, {100, 100, 0}, {-100, 100, 0}}
	mat := scene.NewMaterial(
		band.NewCurve([]band.Point{{Frequency: 0, Gain: 1}}),
		band.NewCurve([]band.Point{{Frequency: 0, Gain: 0}}),
		band.NewCurve(nil),
		scene.RGBA{},
	)
	tris := []scene.Triangle{{V0: 0, V1: 1, V2: 2, MaterialIdx: 0}, {V0: 0, V1: 2, V2: 3, MaterialIdx: 0}}
	wallMesh := scene.NewMesh(verts, tris, []*scene.Material{mat}, nil, nil)
	obj := scene.NewObject(wallMesh)
	s.Objects = []*scene.Object{obj}
	idx := bvh.Build(s)

	listener := scene.NewListener(1, geom.Vec3{2, 0, 1})
	source := scene.NewSource(2, geom.Vec3{0, 0, 1}, 1, nil)

	rng := rand.New(rand.NewSource(7))
	opts := Options{NumProbeRays: 4000, MaxDepth: 1, RayOffset: 1e-4, AirAbsorption: true}
	chains := Probe(listener, idx, opts, rng)

	found := false
	wantDist := math.Sqrt(2*2 + 2*2)
	for _, chain := range chains {
		if len(chain) != 1 {
			continue
		}
		path, ok := ValidatePointSource(listener, source, chain, idx, m, bands, opts)
		if !ok {
			continue
		}
		if diff := path.Distance - wantDist; diff > 1e-3 || diff < -1e-3 {
			continue
		}
		found = true
		if path.Intensity.At(0) <= 0 {
			t.Fatalf("expected positive intensity for a fully-reflective mirror path")
		}
		break
	}
	if !found {
		t.Fatalf("expected at least one validated specular path at distance %.3f among %d probe chains", wantDist, len(chains))
	}
}

func TestValidatePointSourceRejectsEmptyChain(t *testing.T) {
	bands := band.DefaultBands()
	m := medium.New(343, band.NewResponse(bands.Count(), 0))
	s := scene.NewScene(m)
	idx := bvh.Build(s)
	listener := scene.NewListener(1, geom.Vec3{0, 0, 0})
	source := scene.NewSource(2, geom.Vec3{1, 0, 0}, 1, nil)
	if _, ok := ValidatePointSource(listener, source, nil, idx, m, bands, Options{RayOffset: 1e-4}); ok {
		t.Fatalf("expected an empty chain to fail validation")
	}
}
