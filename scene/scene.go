package scene

import (
	"fmt"

	"github.com/cwbudde/gosound/geom"
	"github.com/cwbudde/gosound/medium"
)

// SourceCluster groups several sources that share an IR when the angular
// separation viewed from the listener is below a configurable threshold
// (spec §3, §4.12).
type SourceCluster struct {
	ID        DetectorID
	Members   []DetectorID
	Centroid  geom.Vec3
}

// Scene is the collection of objects, sources, listeners, a medium, and
// optionally precomputed source clusters. The runtime does not build
// diffraction graphs; those arrive precomputed on each Mesh. Per-mesh
// BVHs are built by the bvh package.
type Scene struct {
	Objects   []*Object
	Sources   []*Detector
	Listeners []*Detector
	Clusters  []*SourceCluster
	Medium    medium.Medium
}

// NewScene builds an empty scene with the given medium.
func NewScene(m medium.Medium) *Scene {
	return &Scene{Medium: m}
}

// Validate performs the invalid-input checks named in spec §7 kind 1:
// objects with a NaN transform or a nil mesh are rejected without
// mutating the scene.
func (s *Scene) Validate() error {
	for i, o := range s.Objects {
		if o.Mesh == nil {
			return fmt.Errorf("scene: object %d has a nil mesh", i)
		}
		p := o.Transform.Position
		for axis := 0; axis < 3; axis++ {
			if p[axis] != p[axis] { // NaN check
				return fmt.Errorf("scene: object %d has NaN position", i)
			}
		}
		sc, q := o.Transform.Scale, o.Transform.Rotation
		for axis := 0; axis < 3; axis++ {
			if sc[axis] != sc[axis] || q.V[axis] != q.V[axis] { // NaN check
				return fmt.Errorf("scene: object %d has NaN scale or rotation", i)
			}
		}
		if q.W != q.W {
			return fmt.Errorf("scene: object %d has NaN rotation", i)
		}
	}
	return nil
}

// EnabledObjects returns the subset of objects with the enabled flag set.
func (s *Scene) EnabledObjects() []*Object {
	out := make([]*Object, 0, len(s.Objects))
	for _, o := range s.Objects {
		if o.Enabled() {
			out = append(out, o)
		}
	}
	return out
}

// EnabledSources returns the subset of sources that are enabled.
func (s *Scene) EnabledSources() []*Detector {
	out := make([]*Detector, 0, len(s.Sources))
	for _, d := range s.Sources {
		if d.Enabled {
			out = append(out, d)
		}
	}
	return out
}

// EnabledListeners returns the subset of listeners that are enabled.
func (s *Scene) EnabledListeners() []*Detector {
	out := make([]*Detector, 0, len(s.Listeners))
	for _, d := range s.Listeners {
		if d.Enabled {
			out = append(out, d)
		}
	}
	return out
}
