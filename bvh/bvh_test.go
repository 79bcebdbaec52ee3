package bvh

import (
	"math"
	"testing"

	"github.com/cwbudde/gosound/band"
	"github.com/cwbudde/gosound/geom"
	"github.com/cwbudde/gosound/medium"
	"github.com/cwbudde/gosound/scene"
)

func quadMesh() *scene.Mesh {
	// A large flat quad in the z=0 plane, split into two triangles.
	verts := []geom.Vec3{
		{-100, -100, 0}, {100, -100, 0}, {100, 100, 0}, {-100, 100, 0},
	}
	mat := scene.NewMaterial(band.NewCurve(nil), band.NewCurve(nil), band.NewCurve(nil), scene.RGBA{})
	tris := []scene.Triangle{
		{V0: 0, V1: 1, V2: 2, MaterialIdx: 0},
		{V0: 0, V1: 2, V2: 3, MaterialIdx: 0},
	}
	return scene.NewMesh(verts, tris, []*scene.Material{mat}, nil, nil)
}

func TestMeshBVHIntersectClosest(t *testing.T) {
	m := quadMesh()
	b := BuildMesh(m)
	r := geom.Ray{Origin: geom.Vec3{0, 0, 5}, Dir: geom.Vec3{0, 0, -1}}
	hit, ok := b.IntersectClosest(r, 100)
	if !ok {
		t.Fatalf("expected a hit")
	}
	if math.Abs(hit.T-5) > 1e-9 {
		t.Fatalf("hit.T = %v, want 5", hit.T)
	}
}

func TestMeshBVHIntersectAnyTMaxZeroMisses(t *testing.T) {
	m := quadMesh()
	b := BuildMesh(m)
	r := geom.Ray{Origin: geom.Vec3{0, 0, 5}, Dir: geom.Vec3{0, 0, -1}}
	if b.IntersectAny(r, 0) {
		t.Fatalf("expected no hit with tMax=0")
	}
}

func TestIndexIntersectClosestWithScaledObject(t *testing.T) {
	m := quadMesh()
	obj := scene.NewObject(m)
	obj.SetScale(geom.Vec3{2, 2, 2})
	obj.SetPosition(geom.Vec3{0, 0, -10})

	s := scene.NewScene(medium.New(343, band.NewResponse(band.DefaultCount, 0)))
	s.Objects = []*scene.Object{obj}
	idx := Build(s)

	r := geom.Ray{Origin: geom.Vec3{0, 0, 5}, Dir: geom.Vec3{0, 0, -1}}
	hit, ok := idx.IntersectClosest(r, 100)
	if !ok {
		t.Fatalf("expected a hit through scaled+translated object")
	}
	if math.Abs(hit.T-15) > 1e-6 {
		t.Fatalf("hit.T = %v, want 15", hit.T)
	}
}

func TestIndexEmptySceneNoHit(t *testing.T) {
	s := scene.NewScene(medium.New(343, band.NewResponse(band.DefaultCount, 0)))
	idx := Build(s)
	r := geom.Ray{Origin: geom.Vec3{0, 0, 5}, Dir: geom.Vec3{0, 0, -1}}
	if _, ok := idx.IntersectClosest(r, 100); ok {
		t.Fatalf("expected no hit in an empty scene")
	}
}
