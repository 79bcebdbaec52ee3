package bvh

import (
	"sort"

	"github.com/cwbudde/gosound/geom"
	"github.com/cwbudde/gosound/scene"
)

type topNode struct {
	bounds   geom.AABB
	children [2]int32
	isLeaf   bool
	objIdx   int32
}

// Index is the scene acceleration structure: a top-level BVH over object
// world-AABBs, plus a per-mesh BVH cache (built lazily, keyed by mesh
// pointer, and shared across every object instancing that mesh — spec
// §4.3 "each object holds a reference to its mesh's pre-built per-mesh
// BVH").
type Index struct {
	scene    *scene.Scene
	objects  []*scene.Object
	meshBVH  map[*scene.Mesh]*MeshBVH
	topNodes []topNode
}

// Build constructs (or rebuilds) the scene's top-level BVH and any missing
// per-mesh BVHs, per spec §4.3 "rebuildBVH()".
func Build(s *scene.Scene) *Index {
	idx := &Index{scene: s, meshBVH: make(map[*scene.Mesh]*MeshBVH)}
	idx.objects = s.EnabledObjects()

	for _, o := range idx.objects {
		if _, ok := idx.meshBVH[o.Mesh]; !ok {
			idx.meshBVH[o.Mesh] = BuildMesh(o.Mesh)
		}
	}

	if len(idx.objects) == 0 {
		idx.topNodes = []topNode{{bounds: geom.EmptyAABB(), isLeaf: true, objIdx: -1}}
		return idx
	}
	boxes := make([]geom.AABB, len(idx.objects))
	order := make([]int32, len(idx.objects))
	for i, o := range idx.objects {
		boxes[i] = o.WorldAABB()
		order[i] = int32(i)
	}
	idx.buildTop(order, boxes)
	return idx
}

func (idx *Index) buildTop(order []int32, boxes []geom.AABB) int32 {
	box := geom.EmptyAABB()
	for _, oi := range order {
		box = box.Union(boxes[oi])
	}
	if len(order) == 1 {
		i := int32(len(idx.topNodes))
		idx.topNodes = append(idx.topNodes, topNode{bounds: box, isLeaf: true, objIdx: order[0]})
		return i
	}
	axis := box.LongestAxis()
	sort.Slice(order, func(i, j int) bool {
		return boxes[order[i]].Center()[axis] < boxes[order[j]].Center()[axis]
	})
	mid := len(order) / 2
	left := append([]int32{}, order[:mid]...)
	right := append([]int32{}, order[mid:]...)

	i := int32(len(idx.topNodes))
	idx.topNodes = append(idx.topNodes, topNode{})
	leftIdx := idx.buildTop(left, boxes)
	rightIdx := idx.buildTop(right, boxes)
	idx.topNodes[i] = topNode{bounds: box, children: [2]int32{leftIdx, rightIdx}}
	return i
}

// WorldHit is a closest-hit or any-hit result expressed in world space.
type WorldHit struct {
	Object   *scene.Object
	Triangle uint32
	T        float64 // world-space ray parameter
	Point    geom.Vec3
	Normal   geom.Vec3
	U, V     float64
}

// IntersectClosest performs a world-space closest-hit query: transforms
// the ray into each candidate object's local space, descends the mesh BVH,
// and translates the hit back to world space, recomputing t from the
// world-space hit point (object scale changes parameter pacing, spec
// §4.3).
func (idx *Index) IntersectClosest(r geom.Ray, tMax float64) (WorldHit, bool) {
	if len(idx.topNodes) == 0 {
		return WorldHit{}, false
	}
	var best WorldHit
	found := false
	limit := tMax

	idx.walkTop(0, r, limit, func(obj *scene.Object) {
		mb := idx.meshBVH[obj.Mesh]
		localRay, scaleOf := worldRayToLocal(r, obj)
		// A local-space tMax bound consistent with the current best.
		localLimit := limit
		if scaleOf > geom.Epsilon {
			localLimit = limit * scaleOf
		}
		hit, ok := mb.IntersectClosest(localRay, localLimit)
		if !ok {
			return
		}
		tri := mb.TriangleLocalAt(hit.Triangle)
		localPoint := tri.PointFromBarycentric(hit.U, hit.V)
		worldPoint := obj.Transform.TransformPoint(localPoint)
		worldT := worldPoint.Sub(r.Origin).Dot(r.Dir)
		if worldT < 0 || worldT > limit {
			return
		}
		if found && worldT >= best.T {
			return
		}
		normal := obj.Transform.TransformDirection(tri.Normal()).Normalize()
		best = WorldHit{Object: obj, Triangle: hit.Triangle, T: worldT, Point: worldPoint, Normal: normal, U: hit.U, V: hit.V}
		found = true
		limit = worldT
	})
	return best, found
}

// IntersectAny performs a world-space any-hit (occlusion) query.
func (idx *Index) IntersectAny(r geom.Ray, tMax float64) bool {
	if len(idx.topNodes) == 0 {
		return false
	}
	hit := false
	idx.walkTop(0, r, tMax, func(obj *scene.Object) {
		if hit {
			return
		}
		mb := idx.meshBVH[obj.Mesh]
		localRay, scaleOf := worldRayToLocal(r, obj)
		localLimit := tMax
		if scaleOf > geom.Epsilon {
			localLimit = tMax * scaleOf
		}
		if mb.IntersectAny(localRay, localLimit) {
			hit = true
		}
	})
	return hit
}

// worldRayToLocal transforms a world-space ray into object-local space via
// the object's inverse transform, and returns an approximate uniform scale
// factor used to rescale tMax bounds between spaces.
func worldRayToLocal(r geom.Ray, obj *scene.Object) (geom.Ray, float64) {
	origin := obj.Transform.InverseTransformPoint(r.Origin)
	dir := obj.Transform.InverseTransformDirection(r.Dir)
	scaleOf := dir.Len()
	if scaleOf < geom.Epsilon {
		return geom.Ray{Origin: origin, Dir: dir}, 0
	}
	return geom.Ray{Origin: origin, Dir: dir.Mul(1.0 / scaleOf)}, scaleOf
}

func (idx *Index) walkTop(nodeIdx int32, r geom.Ray, tMax float64, visit func(*scene.Object)) {
	if nodeIdx < 0 || int(nodeIdx) >= len(idx.topNodes) {
		return
	}
	node := &idx.topNodes[nodeIdx]
	if _, _, ok := node.bounds.IntersectRay(r, tMax); !ok {
		return
	}
	if node.isLeaf {
		if node.objIdx >= 0 {
			visit(idx.objects[node.objIdx])
		}
		return
	}
	idx.walkTop(node.children[0], r, tMax, visit)
	idx.walkTop(node.children[1], r, tMax, visit)
}
