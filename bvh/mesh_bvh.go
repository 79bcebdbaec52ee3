// Package bvh implements the scene acceleration structure: a 4-wide AABB
// BVH over a mesh's triangles, and a top-level BVH over object world-AABBs
// (spec §4.3).
package bvh

import (
	"sort"

	"github.com/cwbudde/gosound/geom"
	"github.com/cwbudde/gosound/scene"
)

const leafSize = 4

type meshNode struct {
	bounds   geom.AABB
	children [4]int32 // -1 = unused; >=0 internal node index; encoded leaf via leafStart/leafCount below
	isLeaf   bool
	leafStart, leafCount int32
}

// MeshBVH is a 4-wide AABB BVH over one mesh's triangles.
type MeshBVH struct {
	mesh    *scene.Mesh
	nodes   []meshNode
	tris    []uint32 // reordered triangle indices referenced by leaves
}

// BuildMesh constructs a BVH over m's triangles.
func BuildMesh(m *scene.Mesh) *MeshBVH {
	b := &MeshBVH{mesh: m}
	n := len(m.Triangles)
	b.tris = make([]uint32, n)
	for i := range b.tris {
		b.tris[i] = uint32(i)
	}
	if n == 0 {
		b.nodes = append(b.nodes, meshNode{bounds: geom.EmptyAABB(), isLeaf: true})
		return b
	}
	centroids := make([]geom.Vec3, n)
	bounds := make([]geom.AABB, n)
	for i, idx := range b.tris {
		tri := m.TriangleLocal(idx)
		bounds[i] = tri.AABB()
		centroids[i] = tri.Centroid()
	}
	b.build(0, n, bounds, centroids)
	return b
}

// build recursively partitions tris[lo:hi] (in place), appending nodes.
// Returns the node index for this subtree's root.
func (b *MeshBVH) build(lo, hi int, bounds []geom.AABB, centroids []geom.Vec3) int32 {
	box := geom.EmptyAABB()
	for i := lo; i < hi; i++ {
		box = box.Union(bounds[i])
	}
	if hi-lo <= leafSize {
		idx := int32(len(b.nodes))
		b.nodes = append(b.nodes, meshNode{bounds: box, isLeaf: true, leafStart: int32(lo), leafCount: int32(hi - lo)})
		return idx
	}

	axis := box.LongestAxis()
	sort.Slice(b.tris[lo:hi], func(i, j int) bool {
		return centroids[lo+i][axis] < centroids[lo+j][axis]
	})
	// Keep bounds/centroids in sync with the reordered tris slice by
	// re-deriving them from the mesh directly (simpler than permuting
	// three parallel slices identically).
	for i := lo; i < hi; i++ {
		tri := b.mesh.TriangleLocal(b.tris[i])
		bounds[i] = tri.AABB()
		centroids[i] = tri.Centroid()
	}

	quarter := (hi - lo) / 4
	if quarter < 1 {
		quarter = 1
	}
	splits := []int{lo, lo + quarter, lo + 2*quarter, lo + 3*quarter, hi}
	// Deduplicate splits that collapse due to small ranges.
	uniq := splits[:1]
	for _, s := range splits[1:] {
		if s > uniq[len(uniq)-1] {
			uniq = append(uniq, s)
		}
	}
	splits = uniq

	idx := int32(len(b.nodes))
	node := meshNode{bounds: box, isLeaf: false, children: [4]int32{-1, -1, -1, -1}}
	b.nodes = append(b.nodes, node)

	childCount := len(splits) - 1
	if childCount > 4 {
		childCount = 4
	}
	var children [4]int32
	for i := 0; i < 4; i++ {
		children[i] = -1
	}
	for i := 0; i < childCount; i++ {
		cLo, cHi := splits[i], splits[i+1]
		if i == childCount-1 {
			cHi = hi
		}
		if cLo >= cHi {
			continue
		}
		children[i] = b.build(cLo, cHi, bounds, centroids)
	}
	b.nodes[idx].children = children
	return idx
}

// Hit is one triangle intersection result in the mesh's local space.
type Hit struct {
	Triangle uint32
	T        float64
	U, V     float64
}

// IntersectClosest returns the closest-hit triangle along r within
// [0,tMax], in mesh-local space.
func (b *MeshBVH) IntersectClosest(r geom.Ray, tMax float64) (Hit, bool) {
	if len(b.nodes) == 0 {
		return Hit{}, false
	}
	best := Hit{T: tMax}
	found := false
	b.walk(0, r, tMax, func(triIdx uint32) {
		tri := b.mesh.TriangleLocal(triIdx)
		limit := tMax
		if found {
			limit = best.T
		}
		if t, u, v, ok := tri.IntersectRay(r, limit); ok {
			best = Hit{Triangle: triIdx, T: t, U: u, V: v}
			found = true
		}
	})
	return best, found
}

// IntersectAny returns whether any triangle occludes r within [0,tMax]
// (any-hit query, used for visibility tests).
func (b *MeshBVH) IntersectAny(r geom.Ray, tMax float64) bool {
	if len(b.nodes) == 0 {
		return false
	}
	hit := false
	b.walkAny(0, r, tMax, &hit)
	return hit
}

func (b *MeshBVH) walk(nodeIdx int32, r geom.Ray, tMax float64, visit func(uint32)) {
	if nodeIdx < 0 {
		return
	}
	node := &b.nodes[nodeIdx]
	if _, _, ok := node.bounds.IntersectRay(r, tMax); !ok {
		return
	}
	if node.isLeaf {
		for i := node.leafStart; i < node.leafStart+node.leafCount; i++ {
			visit(b.tris[i])
		}
		return
	}
	for _, c := range node.children {
		b.walk(c, r, tMax, visit)
	}
}

func (b *MeshBVH) walkAny(nodeIdx int32, r geom.Ray, tMax float64, hit *bool) {
	if *hit || nodeIdx < 0 {
		return
	}
	node := &b.nodes[nodeIdx]
	if _, _, ok := node.bounds.IntersectRay(r, tMax); !ok {
		return
	}
	if node.isLeaf {
		for i := node.leafStart; i < node.leafStart+node.leafCount; i++ {
			tri := b.mesh.TriangleLocal(b.tris[i])
			if _, _, _, ok := tri.IntersectRay(r, tMax); ok {
				*hit = true
				return
			}
		}
		return
	}
	for _, c := range node.children {
		b.walkAny(c, r, tMax, hit)
		if *hit {
			return
		}
	}
}

// TriangleLocalAt returns the local-space triangle for a triangle index as
// returned by Hit.Triangle.
func (b *MeshBVH) TriangleLocalAt(idx uint32) geom.Triangle {
	return b.mesh.TriangleLocal(idx)
}

// Bounds returns the BVH's object-space root bounds.
func (b *MeshBVH) Bounds() geom.AABB {
	if len(b.nodes) == 0 {
		return geom.EmptyAABB()
	}
	return b.nodes[0].bounds
}
