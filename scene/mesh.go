package scene

import (
	"github.com/cwbudde/gosound/geom"
)

// Triangle is a mesh triangle: vertex indices, material index, optional
// diffraction-edge references, and subdivision parameters used to derive a
// deterministic patch ID from a barycentric coordinate (spec §3 "Mesh").
type Triangle struct {
	V0, V1, V2   uint32
	MaterialIdx  uint32
	EdgeIdx      [3]*uint32 // nil = no diffraction edge on that side (Open Question 3)

	// Subdivision parameters for diffuse patch IDs.
	Rows, Cols int
	KeyVertex  uint32
}

// Plane is an oriented plane: unit normal and offset such that
// Normal.Dot(p) == Offset for p on the plane.
type Plane struct {
	Normal geom.Vec3
	Offset float64
}

// DiffractionEdge is a triangle-triangle shared edge flagged as
// diffracting in the preprocessed graph (spec §3 "Diffraction edge").
type DiffractionEdge struct {
	V0, V1            uint32
	Tri0, Tri1        uint32 // incident triangle indices
	EdgeIndexInTri0   uint16
	EdgeIndexInTri1   uint16
	Plane0, Plane1    Plane // outward-from-wedge normals
	NumNeighbors      uint32
	NeighborOffset    uint32
}

// Mesh is an immutable-at-runtime collection of vertices, triangles,
// materials, the diffraction edge graph, and a flat neighbour-index table
// (Open Question 2). Per-mesh BVHs are built and cached by the bvh
// package, keyed by *Mesh, to avoid an import cycle.
type Mesh struct {
	Vertices   []geom.Vec3
	Triangles  []Triangle
	Materials  []*Material
	Edges      []DiffractionEdge
	Neighbors  []uint32 // flat neighbour-index table, addressed by (NumNeighbors, NeighborOffset)

	bounds      geom.AABB
	sphere      geom.BoundingSphere
	boundsValid bool
}

// NewMesh builds a mesh and computes its static bounds.
func NewMesh(vertices []geom.Vec3, triangles []Triangle, materials []*Material, edges []DiffractionEdge, neighbors []uint32) *Mesh {
	m := &Mesh{Vertices: vertices, Triangles: triangles, Materials: materials, Edges: edges, Neighbors: neighbors}
	m.computeBounds()
	return m
}

func (m *Mesh) computeBounds() {
	box := geom.EmptyAABB()
	for _, v := range m.Vertices {
		box = box.Extend(v)
	}
	m.bounds = box
	center := box.Center()
	var r float64
	for _, v := range m.Vertices {
		d := v.Sub(center).Len()
		if d > r {
			r = d
		}
	}
	m.sphere = geom.BoundingSphere{Center: center, Radius: r}
	m.boundsValid = true
}

// Bounds returns the mesh's object-space AABB.
func (m *Mesh) Bounds() geom.AABB { return m.bounds }

// BoundingSphere returns the mesh's object-space bounding sphere.
func (m *Mesh) BoundingSphere() geom.BoundingSphere { return m.sphere }

// TriangleLocal returns the triangle's vertices (object-local, before any
// object transform is applied).
func (m *Mesh) TriangleLocal(idx uint32) geom.Triangle {
	t := m.Triangles[idx]
	return geom.Triangle{A: m.Vertices[t.V0], B: m.Vertices[t.V1], C: m.Vertices[t.V2]}
}

// TriangleMaterial returns the triangle's material.
func (m *Mesh) TriangleMaterial(idx uint32) *Material {
	return m.Materials[m.Triangles[idx].MaterialIdx]
}

// NeighborIndices returns the flat neighbour-index slice for edge e.
func (m *Mesh) NeighborIndices(e *DiffractionEdge) []uint32 {
	if e.NumNeighbors == 0 {
		return nil
	}
	start := e.NeighborOffset
	return m.Neighbors[start : start+e.NumNeighbors]
}

// PatchID derives a deterministic barycentric patch id for a diffuse hit
// at barycentric (u,v) on triangle idx, from its (Rows, Cols, KeyVertex)
// subdivision parameters (spec §3 "Mesh").
func (m *Mesh) PatchID(idx uint32, u, v float64) uint32 {
	t := m.Triangles[idx]
	rows, cols := t.Rows, t.Cols
	if rows <= 0 {
		rows = 1
	}
	if cols <= 0 {
		cols = 1
	}
	w := 1 - u - v
	// Barycentric coordinate relative to the designated key vertex.
	var keyW float64
	switch t.KeyVertex {
	case t.V1:
		keyW = u
	case t.V2:
		keyW = v
	default:
		keyW = w
	}
	row := int(keyW * float64(rows))
	if row >= rows {
		row = rows - 1
	}
	col := int(u * float64(cols))
	if col >= cols {
		col = cols - 1
	}
	return uint32(row*cols + col)
}
