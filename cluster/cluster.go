// Package cluster implements angular source clustering with hysteresis:
// sources whose angular separation from the listener falls below an
// inner threshold merge into a shared-IR cluster; merged sources only
// split back out once their separation from the cluster exceeds a wider
// outer threshold (spec §4.12).
package cluster

import (
	"math"

	"github.com/cwbudde/gosound/geom"
	"github.com/cwbudde/gosound/scene"
)

// Options controls the inner (merge) and outer (split) angular
// thresholds, in radians. OuterAngle must be >= InnerAngle for the
// hysteresis band to be meaningful.
type Options struct {
	InnerAngle float64
	OuterAngle float64
}

// Clusterer holds the merged-cluster state from the previous frame so
// that Update can apply hysteresis: a source already merged stays merged
// until it drifts past OuterAngle, while an unmerged source only joins a
// cluster once it comes within InnerAngle.
type Clusterer struct {
	opts     Options
	clusters []*scene.SourceCluster
	nextID   scene.DetectorID
}

// NewClusterer builds a clusterer with empty prior state.
func NewClusterer(opts Options) *Clusterer {
	return &Clusterer{opts: opts, nextID: 1}
}

// Update recomputes clusters for listener against sources, given the
// clusterer's prior-frame state, and returns the merged clusters (each
// with >=2 members). Sources not present in any returned cluster remain
// individually propagated by the caller.
func (c *Clusterer) Update(listener *scene.Detector, sources []*scene.Detector) []*scene.SourceCluster {
	byID := make(map[scene.DetectorID]*scene.Detector, len(sources))
	for _, s := range sources {
		byID[s.ID] = s
	}

	remaining := make(map[scene.DetectorID]bool, len(sources))
	for id := range byID {
		remaining[id] = true
	}

	var carried []*scene.SourceCluster
	for _, cl := range c.clusters {
		kept := c.splitDrifted(listener, cl, byID)
		if len(kept.Members) >= 2 {
			carried = append(carried, kept)
			for _, id := range kept.Members {
				delete(remaining, id)
			}
		} else {
			for _, id := range kept.Members {
				delete(remaining, id) // leaves a lone survivor unclustered this frame
			}
		}
	}

	unclustered := make([]*scene.Detector, 0, len(remaining))
	for id := range remaining {
		unclustered = append(unclustered, byID[id])
	}

	merged := c.mergeNearby(listener, unclustered)
	carried = append(carried, merged...)

	c.clusters = carried
	return carried
}

// splitDrifted recomputes cl's centroid from whichever of its members
// still exist, drops members whose angular separation from the
// listener-to-centroid direction exceeds OuterAngle, and returns the
// surviving cluster (its Members/Centroid updated in place).
func (c *Clusterer) splitDrifted(listener *scene.Detector, cl *scene.SourceCluster, byID map[scene.DetectorID]*scene.Detector) *scene.SourceCluster {
	var alive []*scene.Detector
	for _, id := range cl.Members {
		if d, ok := byID[id]; ok {
			alive = append(alive, d)
		}
	}
	if len(alive) == 0 {
		return &scene.SourceCluster{ID: cl.ID}
	}
	centroid := weightedCentroid(alive)
	centroidDir := centroid.Sub(listener.Position)

	var kept []scene.DetectorID
	var keptDetectors []*scene.Detector
	for _, d := range alive {
		dir := d.Position.Sub(listener.Position)
		if angleBetween(dir, centroidDir) <= c.opts.OuterAngle {
			kept = append(kept, d.ID)
			keptDetectors = append(keptDetectors, d)
		}
	}
	if len(keptDetectors) > 0 {
		centroid = weightedCentroid(keptDetectors)
	}
	return &scene.SourceCluster{ID: cl.ID, Members: kept, Centroid: centroid}
}

// mergeNearby greedily groups unclustered sources whose pairwise angular
// separation from the listener is within InnerAngle, seeding each new
// group from the first ungrouped source encountered.
func (c *Clusterer) mergeNearby(listener *scene.Detector, sources []*scene.Detector) []*scene.SourceCluster {
	used := make([]bool, len(sources))
	var out []*scene.SourceCluster

	for i := range sources {
		if used[i] {
			continue
		}
		group := []*scene.Detector{sources[i]}
		used[i] = true
		for j := i + 1; j < len(sources); j++ {
			if used[j] {
				continue
			}
			dirI := sources[i].Position.Sub(listener.Position)
			dirJ := sources[j].Position.Sub(listener.Position)
			if angleBetween(dirI, dirJ) <= c.opts.InnerAngle {
				group = append(group, sources[j])
				used[j] = true
			}
		}
		if len(group) < 2 {
			continue
		}
		ids := make([]scene.DetectorID, len(group))
		for k, d := range group {
			ids[k] = d.ID
		}
		out = append(out, &scene.SourceCluster{
			ID:       c.allocID(),
			Members:  ids,
			Centroid: weightedCentroid(group),
		})
	}
	return out
}

func (c *Clusterer) allocID() scene.DetectorID {
	id := c.nextID
	c.nextID++
	return id
}

// weightedCentroid averages member positions weighted by their acoustic
// power (spec §4.12, "weighted centroid").
func weightedCentroid(members []*scene.Detector) geom.Vec3 {
	var sum geom.Vec3
	var weight float64
	for _, d := range members {
		w := d.Power
		if w <= 0 {
			w = 1
		}
		sum = sum.Add(d.Position.Mul(w))
		weight += w
	}
	if weight <= 0 {
		return sum
	}
	return sum.Mul(1 / weight)
}

func angleBetween(a, b geom.Vec3) float64 {
	la, lb := a.Len(), b.Len()
	if la < geom.Epsilon || lb < geom.Epsilon {
		return 0
	}
	cos := a.Dot(b) / (la * lb)
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos)
}
