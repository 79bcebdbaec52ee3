package diffraction

import (
	"math"
	"testing"

	"github.com/cwbudde/gosound/band"
	"github.com/cwbudde/gosound/geom"
	"github.com/cwbudde/gosound/scene"
)

func straightEdge() scene.DiffractionEdge {
	return scene.DiffractionEdge{
		V0: 0, V1: 1,
		Plane0: scene.Plane{Normal: geom.Vec3{1, 0, 0}, Offset: 0},
		Plane1: scene.Plane{Normal: geom.Vec3{0, 1, 0}, Offset: 0},
	}
}

func TestInWedgeSignTest(t *testing.T) {
	e := straightEdge()
	if !InWedge(geom.Vec3{1, 1, 0}, e) {
		t.Fatalf("expected a point with x>=0 and y>=0 to be inside the wedge")
	}
	if InWedge(geom.Vec3{-1, 1, 0}, e) {
		t.Fatalf("expected a point with x<0 to be outside the wedge")
	}
}

func TestClosestApproachClampsToSegment(t *testing.T) {
	v0 := geom.Vec3{0, 0, 0}
	v1 := geom.Vec3{10, 0, 0}
	// Line passing near the edge's midpoint.
	a := geom.Vec3{5, -5, 0}
	b := geom.Vec3{5, 5, 0}
	point, tParam := ClosestApproach(v0, v1, a, b)
	if diff := point.X() - 5; math.Abs(diff) > 1e-6 {
		t.Fatalf("closest point x = %v, want 5", point.X())
	}
	if diff := tParam - 5; math.Abs(diff) > 1e-6 {
		t.Fatalf("t = %v, want 5", tParam)
	}

	// A line whose closest approach falls outside [0,10] clamps to an
	// endpoint.
	a2 := geom.Vec3{20, -5, 0}
	b2 := geom.Vec3{20, 5, 0}
	_, tClamped := ClosestApproach(v0, v1, a2, b2)
	if tClamped != 10 {
		t.Fatalf("t = %v, want clamped to 10", tClamped)
	}
}

func TestUTDAttenuationContinuousAtShadowBoundary(t *testing.T) {
	source := geom.Vec3{-1, 0, 1}
	listener := geom.Vec3{1, 0, 1}
	// diffPoint chosen so source/diffPoint/listener are collinear: no
	// path-length excess, i.e. the shadow-boundary reference case.
	diffPoint := geom.Vec3{0, 0, 1}
	resp := UTDAttenuation(source, diffPoint, listener, 343, band.DefaultBands().Centers())
	for i := 0; i < resp.Len(); i++ {
		if diff := resp.At(i) - 1; math.Abs(diff) > 1e-9 {
			t.Fatalf("band %d attenuation at zero path difference = %v, want 1", i, resp.At(i))
		}
	}
}

func TestUTDAttenuationDecreasesWithPathDifferenceAndFrequency(t *testing.T) {
	source := geom.Vec3{-1, 0, 1}
	listener := geom.Vec3{1, 0, 1}
	nearBoundary := geom.Vec3{0, 0, 1}
	deepShadow := geom.Vec3{0, 5, 1}
	centers := band.DefaultBands().Centers()

	a1 := UTDAttenuation(source, nearBoundary, listener, 343, centers)
	a2 := UTDAttenuation(source, deepShadow, listener, 343, centers)
	if a2.At(0) >= a1.At(0) {
		t.Fatalf("expected attenuation to decrease deeper in shadow: %v vs %v", a2.At(0), a1.At(0))
	}
	// Higher-frequency bands should attenuate at least as much as lower ones
	// for the same geometry.
	if a2.At(a2.Len()-1) > a2.At(0)+1e-9 {
		t.Fatalf("expected higher bands to attenuate more or equally: low=%v high=%v", a2.At(0), a2.At(a2.Len()-1))
	}
}
