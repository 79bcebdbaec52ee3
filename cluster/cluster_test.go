package cluster

import (
	"testing"

	"github.com/cwbudde/gosound/geom"
	"github.com/cwbudde/gosound/scene"
)

func memberSet(cl *scene.SourceCluster) map[scene.DetectorID]bool {
	m := make(map[scene.DetectorID]bool, len(cl.Members))
	for _, id := range cl.Members {
		m[id] = true
	}
	return m
}

func TestUpdateMergesSourcesWithinInnerAngle(t *testing.T) {
	listener := scene.NewListener(1, geom.Vec3{0, 0, 0})
	a := scene.NewSource(2, geom.Vec3{10, 0, 0}, 1, nil)
	b := scene.NewSource(3, geom.Vec3{10, 0.1, 0}, 1, nil) // ~0.57 degrees off a
	far := scene.NewSource(4, geom.Vec3{0, 10, 0}, 1, nil) // 90 degrees off a

	c := NewClusterer(Options{InnerAngle: 0.1, OuterAngle: 0.3})
	clusters := c.Update(listener, []*scene.Detector{a, b, far})

	if len(clusters) != 1 {
		t.Fatalf("expected exactly one cluster, got %d", len(clusters))
	}
	members := memberSet(clusters[0])
	if !members[2] || !members[3] {
		t.Fatalf("expected a and b merged, got members %v", clusters[0].Members)
	}
	if members[4] {
		t.Fatalf("expected far source to remain unclustered")
	}
}

func TestUpdateAppliesHysteresisOnSplit(t *testing.T) {
	listener := scene.NewListener(1, geom.Vec3{0, 0, 0})
	a := scene.NewSource(2, geom.Vec3{10, 0, 0}, 1, nil)
	b := scene.NewSource(3, geom.Vec3{10, 0.1, 0}, 1, nil)

	c := NewClusterer(Options{InnerAngle: 0.1, OuterAngle: 0.3})
	clusters := c.Update(listener, []*scene.Detector{a, b})
	if len(clusters) != 1 {
		t.Fatalf("expected one cluster after initial merge, got %d", len(clusters))
	}

	// Move b to an angle beyond InnerAngle but still within OuterAngle:
	// hysteresis should keep it merged.
	b.Position = geom.Vec3{10, 1.5, 0}
	clusters = c.Update(listener, []*scene.Detector{a, b})
	if len(clusters) != 1 {
		t.Fatalf("expected cluster to survive within the hysteresis band, got %d clusters", len(clusters))
	}

	// Move b far enough to exceed OuterAngle: the cluster should dissolve.
	b.Position = geom.Vec3{0, 10, 0}
	clusters = c.Update(listener, []*scene.Detector{a, b})
	if len(clusters) != 0 {
		t.Fatalf("expected cluster to dissolve past OuterAngle, got %d clusters", len(clusters))
	}
}

func TestWeightedCentroidFavorsHigherPower(t *testing.T) {
	listener := scene.NewListener(1, geom.Vec3{0, 0, 0})
	a := scene.NewSource(2, geom.Vec3{10, 0, 0}, 10, nil)
	b := scene.NewSource(3, geom.Vec3{10, 1, 0}, 1, nil)

	c := NewClusterer(Options{InnerAngle: 0.2, OuterAngle: 0.4})
	clusters := c.Update(listener, []*scene.Detector{a, b})
	if len(clusters) != 1 {
		t.Fatalf("expected one cluster, got %d", len(clusters))
	}
	if clusters[0].Centroid.Y() > 0.5 {
		t.Fatalf("expected centroid biased toward the higher-power source, got y=%v", clusters[0].Centroid.Y())
	}
}
