// Package diffraction implements edge-diffraction path search: wedge
// sign-testing, the closest-approach point between the edge and the
// listener-to-source line, UTD-style attenuation, and recursion to
// neighbouring edges (spec §4.7).
package diffraction

import (
	"math"

	"github.com/cwbudde/gosound/band"
	"github.com/cwbudde/gosound/bvh"
	"github.com/cwbudde/gosound/geom"
	"github.com/cwbudde/gosound/medium"
	"github.com/cwbudde/gosound/scene"
	"github.com/cwbudde/gosound/soundpath"
)

// Options controls diffraction path search.
type Options struct {
	MaxDepth      int
	MaxOrder      int // capped at 10 per spec §6
	RayOffset     float64
	AirAbsorption bool
}

// InWedge sign-tests a point against both faces of edge, reporting
// whether it lies in the wedge's diffracting region (outside both
// half-spaces bounded by the faces).
func InWedge(p geom.Vec3, edge scene.DiffractionEdge) bool {
	d0 := p.Dot(edge.Plane0.Normal) - edge.Plane0.Offset
	d1 := p.Dot(edge.Plane1.Normal) - edge.Plane1.Offset
	return d0 >= -geom.Epsilon && d1 >= -geom.Epsilon
}

// ClosestApproach finds the point on the edge segment (v0,v1) closest to
// the line through a and b, clamped to the segment, and returns the
// parameter t in [0, edgeLength] along the edge.
func ClosestApproach(v0, v1, a, b geom.Vec3) (point geom.Vec3, t float64) {
	edgeDir := v1.Sub(v0)
	edgeLen := edgeDir.Len()
	if edgeLen < geom.Epsilon {
		return v0, 0
	}
	edgeUnit := edgeDir.Mul(1 / edgeLen)
	lineDir := b.Sub(a)
	lineLen := lineDir.Len()
	if lineLen < geom.Epsilon {
		return v0, 0
	}
	lineUnit := lineDir.Mul(1 / lineLen)

	r := v0.Sub(a)
	d1d2 := edgeUnit.Dot(lineUnit)
	denom := 1 - d1d2*d1d2
	var tEdge float64
	if math.Abs(denom) < 1e-9 {
		tEdge = 0
	} else {
		d1r := edgeUnit.Dot(r)
		d2r := lineUnit.Dot(r)
		tEdge = (d1d2*d2r - d1r) / denom
	}
	if tEdge < 0 {
		tEdge = 0
	} else if tEdge > edgeLen {
		tEdge = edgeLen
	}
	return v0.Add(edgeUnit.Mul(tEdge)), tEdge
}

// UTDAttenuation returns a per-band linear attenuation for a diffraction
// path through diffPoint, approximating the Uniform Theory of
// Diffraction's frequency-dependent falloff via a Fresnel-number style
// path-difference ratio. It equals 1 at the shadow boundary (pathDiff=0)
// and decreases continuously and monotonically with pathDiff and
// frequency, per band.
func UTDAttenuation(source, diffPoint, listener geom.Vec3, speed float64, bandCenters []float64) band.Response {
	direct := source.Sub(listener).Len()
	viaEdge := source.Sub(diffPoint).Len() + diffPoint.Sub(listener).Len()
	pathDiff := viaEdge - direct
	if pathDiff < 0 {
		pathDiff = 0
	}
	out := make([]float64, len(bandCenters))
	for i, f := range bandCenters {
		n := pathDiff * f / speed
		out[i] = 1.0 / (1.0 + 10.0*n)
	}
	return band.NewResponseFrom(out)
}

// Candidate is one edge-diffraction attempt: the edge, the object that
// owns it, the listener-image position carried into this edge from the
// enclosing specular chain (or the raw listener position at order 0),
// and the chain length already walked from the true listener to
// ListenerImage (zero at order 0).
type Candidate struct {
	Object        *scene.Object
	Edge          *scene.DiffractionEdge
	ListenerImage geom.Vec3
	PriorDistance float64
}

// Find attempts to validate a diffraction path for candidate, recursing
// to neighbouring edges up to opts.MaxOrder when direct validation fails
// to reach the source. Higher orders chain the listener image forward:
// each recursive candidate's ListenerImage is the diffraction point just
// computed, per spec §4.7 ("for higher orders the listener image is the
// previous edge's diffraction point"), and the accepted path's Distance
// accumulates every hop of the chain, not just the final edge's segment.
func Find(listener, source *scene.Detector, cand Candidate, mesh *scene.Mesh, idx *bvh.Index, m medium.Medium, bands *band.Bands, opts Options, order int) (soundpath.SoundPath, bool) {
	maxOrder := opts.MaxOrder
	if maxOrder <= 0 || maxOrder > 10 {
		maxOrder = 10
	}
	if order > maxOrder {
		return soundpath.SoundPath{}, false
	}

	e := cand.Edge
	v0 := vertexOf(mesh, e.V0)
	v1 := vertexOf(mesh, e.V1)
	avgNormal := e.Plane0.Normal.Add(e.Plane1.Normal).Normalize()

	if !InWedge(cand.ListenerImage, *e) {
		return soundpath.SoundPath{}, false
	}

	diffPoint, _ := ClosestApproach(v0, v1, cand.ListenerImage, source.Position)
	diffPoint = diffPoint.Add(avgNormal.Mul(opts.RayOffset))

	// toListener tests visibility back to this edge's listener-side image:
	// the true listener at order 0, or the previous edge's diffraction
	// point at higher orders — the actual preceding hop in the chain.
	toListener, distL := rayBetween(diffPoint, cand.ListenerImage)
	if distL < geom.Epsilon || idx.IntersectAny(toListener.Offset(opts.RayOffset), distL-opts.RayOffset) {
		return tryNeighbours(listener, source, cand, mesh, idx, m, bands, opts, order, diffPoint)
	}
	toSource, distS := rayBetween(diffPoint, source.Position)
	if distS < geom.Epsilon || idx.IntersectAny(toSource.Offset(opts.RayOffset), distS-opts.RayOffset) {
		return tryNeighbours(listener, source, cand, mesh, idx, m, bands, opts, order, diffPoint)
	}

	totalDist := cand.PriorDistance + distL + distS
	atten := UTDAttenuation(source.Position, diffPoint, listener.Position, m.SpeedOfSound, bands.Centers())

	var spreadAtten band.Response
	if opts.AirAbsorption {
		spreadAtten = m.DistanceAttenuation(totalDist)
	} else {
		spread := 1.0 / (4.0 * math.Pi * (1.0 + totalDist*totalDist))
		spreadAtten = band.NewResponse(bands.Count(), spread)
	}
	energy := spreadAtten.Mul(atten).Scale(source.Power).NonNegative()

	return soundpath.SoundPath{
		Flags:           soundpath.FlagDiffraction,
		Intensity:       energy,
		Direction:       toListener.Dir.Mul(-1),
		SourceDirection: toSource.Dir.Mul(-1),
		Distance:        totalDist,
		MediumSpeed:     m.SpeedOfSound,
	}, true
}

// tryNeighbours recurses to the edges adjacent to cand.Edge, advancing
// the listener image to diffPoint (the point just computed for cand) and
// carrying its chain distance from the true listener forward, so the
// next order's ClosestApproach and visibility tests run against the
// previous edge's diffraction point rather than the raw listener.
func tryNeighbours(listener, source *scene.Detector, cand Candidate, mesh *scene.Mesh, idx *bvh.Index, m medium.Medium, bands *band.Bands, opts Options, order int, diffPoint geom.Vec3) (soundpath.SoundPath, bool) {
	priorDistance := cand.PriorDistance + diffPoint.Sub(cand.ListenerImage).Len()
	neighbours := mesh.NeighborIndices(cand.Edge)
	for _, ni := range neighbours {
		if int(ni) >= len(mesh.Edges) {
			continue
		}
		next := Candidate{Object: cand.Object, Edge: &mesh.Edges[ni], ListenerImage: diffPoint, PriorDistance: priorDistance}
		if path, ok := Find(listener, source, next, mesh, idx, m, bands, opts, order+1); ok {
			return path, true
		}
	}
	return soundpath.SoundPath{}, false
}

func vertexOf(mesh *scene.Mesh, idx uint32) geom.Vec3 {
	return mesh.Vertices[idx]
}

func rayBetween(from, to geom.Vec3) (geom.Ray, float64) {
	d := to.Sub(from)
	dist := d.Len()
	if dist < geom.Epsilon {
		return geom.Ray{Origin: from, Dir: geom.Vec3{0, 0, 1}}, 0
	}
	return geom.Ray{Origin: from, Dir: d.Mul(1 / dist)}, dist
}
