package propagator

import (
	"log"
	"runtime"
	"testing"

	"github.com/cwbudde/gosound/band"
	"github.com/cwbudde/gosound/geom"
	"github.com/cwbudde/gosound/medium"
	"github.com/cwbudde/gosound/scene"
)

func freeFieldScene() (*scene.Scene, *scene.Detector, *scene.Detector) {
	bands := band.DefaultBands()
	m := medium.New(343, band.NewResponse(bands.Count(), 0))
	s := scene.NewScene(m)
	listener := scene.NewListener(1, geom.Vec3{0, 0, 0})
	source := scene.NewSource(2, geom.Vec3{5, 0, 0}, 1, nil)
	s.Listeners = []*scene.Detector{listener}
	s.Sources = []*scene.Detector{source}
	return s, listener, source
}

func TestRequestSanitizeClampsOutOfRangeFields(t *testing.T) {
	bands := band.DefaultBands()
	req := NewDefaultRequest(bands)
	req.NumThreads = 0
	req.MaxDiffractionOrder = 99
	req.Quality = 1000
	req.OuterClusteringAngle = -1

	req.Sanitize()

	if req.NumThreads < 1 || req.NumThreads > 2*runtime.NumCPU() {
		t.Fatalf("NumThreads = %d, want in [1, %d]", req.NumThreads, 2*runtime.NumCPU())
	}
	if req.MaxDiffractionOrder > 10 {
		t.Fatalf("MaxDiffractionOrder = %d, want <= 10", req.MaxDiffractionOrder)
	}
	if req.Quality > req.effectiveMaxQuality() {
		t.Fatalf("Quality = %v, want <= %v", req.Quality, req.effectiveMaxQuality())
	}
	if req.OuterClusteringAngle < req.InnerClusteringAngle {
		t.Fatalf("OuterClusteringAngle = %v, want >= InnerClusteringAngle = %v", req.OuterClusteringAngle, req.InnerClusteringAngle)
	}
}

func TestRequestSanitizeClampsMaxIRLengthToMinIRLength(t *testing.T) {
	bands := band.DefaultBands()
	req := NewDefaultRequest(bands)
	req.MinIRLength = 1.5
	req.MaxIRLength = 0.5

	req.Sanitize()

	if req.MaxIRLength < req.MinIRLength {
		t.Fatalf("MaxIRLength = %v, want >= MinIRLength = %v", req.MaxIRLength, req.MinIRLength)
	}
}

func TestScaledRayCountsAppliesQuality(t *testing.T) {
	bands := band.DefaultBands()
	req := NewDefaultRequest(bands)
	req.NumDirectRays = 100
	req.NumSpecularRays = 100
	req.NumDiffuseRays = 100
	req.NumVisibilityRays = 100
	req.Quality = 0.5

	direct, specular, diffuse, visibility := req.ScaledRayCounts()
	if direct != 50 || specular != 50 || diffuse != 50 || visibility != 50 {
		t.Fatalf("scaled counts = %d,%d,%d,%d, want all 50", direct, specular, diffuse, visibility)
	}
}

func TestScaledRayCountsNeverRoundsNonzeroDownToZero(t *testing.T) {
	bands := band.DefaultBands()
	req := NewDefaultRequest(bands)
	req.NumDirectRays = 1
	req.Quality = 0.01

	direct, _, _, _ := req.ScaledRayCounts()
	if direct != 1 {
		t.Fatalf("scaled direct rays = %d, want 1 (never rounds a positive budget to zero)", direct)
	}
}

func TestPropagateFreeFieldDirectPath(t *testing.T) {
	s, listener, source := freeFieldScene()
	p := New(s, nil)

	bands := band.DefaultBands()
	req := NewDefaultRequest(bands)
	req.Flags = FlagDirect
	req.NumThreads = 2
	req.Statistics = &Statistics{}

	sceneIR, err := p.Propagate(req)
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}

	res, ok := sceneIR.Lookup(listener.ID, source.ID)
	if !ok {
		t.Fatalf("expected a SceneIR entry for (listener=%d, source=%d)", listener.ID, source.ID)
	}
	if len(res.Paths) == 0 {
		t.Fatalf("expected at least one direct path in free field")
	}
	if req.Statistics.NumDirectRaysTraced == 0 {
		t.Fatalf("expected NumDirectRaysTraced > 0")
	}
	if req.Statistics.NumDirectPathsFound == 0 {
		t.Fatalf("expected NumDirectPathsFound > 0")
	}
}

func TestPropagateTwiceAdvancesFrameWithoutError(t *testing.T) {
	s, _, _ := freeFieldScene()
	p := New(s, log.New(testWriter{}, "", 0))

	bands := band.DefaultBands()
	req := NewDefaultRequest(bands)
	req.Flags = FlagDirect
	req.NumThreads = 1

	if _, err := p.Propagate(req); err != nil {
		t.Fatalf("first Propagate: %v", err)
	}
	first := p.frame

	if _, err := p.Propagate(req); err != nil {
		t.Fatalf("second Propagate: %v", err)
	}
	second := p.frame

	if second != first+1 {
		t.Fatalf("frame counter = %d after second call, want %d", second, first+1)
	}
}

func TestPropagateSampledIRBlendsAcrossFrames(t *testing.T) {
	s, listener, source := freeFieldScene()
	p := New(s, nil)

	bands := band.DefaultBands()
	req := NewDefaultRequest(bands)
	req.Flags = FlagDirect | FlagSampledIR
	req.NumThreads = 1
	req.SampleRate = 4000
	req.ResponseTime = 0.1
	req.Dt = 1.0 / 60

	sceneIR, err := p.Propagate(req)
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	res, ok := sceneIR.Lookup(listener.ID, source.ID)
	if !ok || res.IR == nil {
		t.Fatalf("expected a sampled IR for (listener, source)")
	}
}

func TestPropagateNoEnabledPairsReturnsEmptySceneIR(t *testing.T) {
	bands := band.DefaultBands()
	m := medium.New(343, band.NewResponse(bands.Count(), 0))
	s := scene.NewScene(m)
	p := New(s, nil)

	req := NewDefaultRequest(bands)
	sceneIR, err := p.Propagate(req)
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	if len(sceneIR.Listeners) != 0 {
		t.Fatalf("expected no listener entries, got %d", len(sceneIR.Listeners))
	}
}

func TestPurgeStaleDropsUntouchedPairs(t *testing.T) {
	s, _, _ := freeFieldScene()
	p := New(s, nil)

	bands := band.DefaultBands()
	req := NewDefaultRequest(bands)
	req.Flags = FlagDirect
	req.NumThreads = 1

	if _, err := p.Propagate(req); err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	if len(p.pairs) == 0 {
		t.Fatalf("expected at least one cached pair after a frame")
	}

	p.frame++ // simulate a later frame that never touched this pair
	p.PurgeStale(0)
	if len(p.pairs) != 0 {
		t.Fatalf("expected PurgeStale(0) to drop all pairs last touched on a prior frame, got %d remaining", len(p.pairs))
	}
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }
