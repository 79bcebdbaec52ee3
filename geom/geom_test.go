package geom

import (
	"math"
	"testing"
)

func TestTriangleIntersectRayHitsCenter(t *testing.T) {
	tri := Triangle{A: Vec3{-1, -1, 0}, B: Vec3{1, -1, 0}, C: Vec3{0, 1, 0}}
	r := Ray{Origin: Vec3{0, 0, 5}, Dir: Vec3{0, 0, -1}}
	hitT, _, _, ok := tri.IntersectRay(r, 100)
	if !ok {
		t.Fatalf("expected a hit")
	}
	if math.Abs(hitT-5) > 1e-9 {
		t.Fatalf("hitT = %v, want 5", hitT)
	}
}

func TestTriangleIntersectRayTMaxZeroMisses(t *testing.T) {
	tri := Triangle{A: Vec3{-1, -1, 0}, B: Vec3{1, -1, 0}, C: Vec3{0, 1, 0}}
	r := Ray{Origin: Vec3{0, 0, 5}, Dir: Vec3{0, 0, -1}}
	_, _, _, ok := tri.IntersectRay(r, 0)
	if ok {
		t.Fatalf("expected no hit with tMax=0")
	}
}

func TestTriangleIntersectRayMissesOutsideExtent(t *testing.T) {
	tri := Triangle{A: Vec3{-1, -1, 0}, B: Vec3{1, -1, 0}, C: Vec3{0, 1, 0}}
	r := Ray{Origin: Vec3{5, 5, 5}, Dir: Vec3{0, 0, -1}}
	_, _, _, ok := tri.IntersectRay(r, 100)
	if ok {
		t.Fatalf("expected no hit outside triangle extent")
	}
}

func TestAABBIntersectRay(t *testing.T) {
	box := AABB{Min: Vec3{-1, -1, -1}, Max: Vec3{1, 1, 1}}
	r := Ray{Origin: Vec3{0, 0, 5}, Dir: Vec3{0, 0, -1}}
	tmin, tmax, ok := box.IntersectRay(r, 100)
	if !ok {
		t.Fatalf("expected a hit")
	}
	if math.Abs(tmin-4) > 1e-9 || math.Abs(tmax-6) > 1e-9 {
		t.Fatalf("tmin=%v tmax=%v, want 4,6", tmin, tmax)
	}
}

func TestReflectPointAcrossPlane(t *testing.T) {
	// Reflect (0,0,1) across the z=0 plane -> (0,0,-1).
	p := Vec3{0, 0, 1}
	got := ReflectPoint(p, Vec3{0, 0, 0}, Vec3{0, 0, 1})
	want := Vec3{0, 0, -1}
	if got.Sub(want).Len() > 1e-9 {
		t.Fatalf("ReflectPoint = %v, want %v", got, want)
	}
}

func TestTransformOrthonormalizesOnSetRotationMatrix(t *testing.T) {
	tr := Identity()
	// A slightly skewed, non-orthonormal basis.
	m := Mat3{1, 0, 0, 0.3, 1, 0, 0, 0, 1}
	tr.SetRotationMatrix(m)
	r := tr.Rotation.Mat4()
	// Columns of the resulting rotation must be unit length.
	for col := 0; col < 3; col++ {
		v := Vec3{r.At(0, col), r.At(1, col), r.At(2, col)}
		if math.Abs(v.Len()-1) > 1e-6 {
			t.Fatalf("column %d not unit length: %v", col, v.Len())
		}
	}
}
