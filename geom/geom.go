// Package geom provides the 3D vector/matrix/transform primitives shared
// by the scene, BVH, and path-search packages.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vec3 is a 3D point or direction.
type Vec3 = mgl64.Vec3

// Mat3 is a 3x3 rotation/scale matrix.
type Mat3 = mgl64.Mat3

// Quat is a unit quaternion used for orthonormalized object orientation.
type Quat = mgl64.Quat

// Ray is a half-line origin + unit direction used for intersection queries.
type Ray struct {
	Origin Vec3
	Dir    Vec3 // unit length
}

// At returns the point at parameter t along the ray.
func (r Ray) At(t float64) Vec3 {
	return r.Origin.Add(r.Dir.Mul(t))
}

// Offset returns a copy of r nudged along Dir by eps, used to avoid
// self-intersection at ray-cast origins (spec's rayOffset).
func (r Ray) Offset(eps float64) Ray {
	return Ray{Origin: r.Origin.Add(r.Dir.Mul(eps)), Dir: r.Dir}
}

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min, Max Vec3
}

// EmptyAABB returns a box in the "nothing added yet" state.
func EmptyAABB() AABB {
	inf := math.Inf(1)
	return AABB{
		Min: Vec3{inf, inf, inf},
		Max: Vec3{-inf, -inf, -inf},
	}
}

// Extend grows the box to include p.
func (a AABB) Extend(p Vec3) AABB {
	return AABB{
		Min: Vec3{math.Min(a.Min[0], p[0]), math.Min(a.Min[1], p[1]), math.Min(a.Min[2], p[2])},
		Max: Vec3{math.Max(a.Max[0], p[0]), math.Max(a.Max[1], p[1]), math.Max(a.Max[2], p[2])},
	}
}

// Union returns the smallest box containing both a and b.
func (a AABB) Union(b AABB) AABB {
	return AABB{
		Min: Vec3{math.Min(a.Min[0], b.Min[0]), math.Min(a.Min[1], b.Min[1]), math.Min(a.Min[2], b.Min[2])},
		Max: Vec3{math.Max(a.Max[0], b.Max[0]), math.Max(a.Max[1], b.Max[1]), math.Max(a.Max[2], b.Max[2])},
	}
}

// Center returns the box's midpoint.
func (a AABB) Center() Vec3 {
	return a.Min.Add(a.Max).Mul(0.5)
}

// SurfaceArea returns the box's surface area, used for BVH split heuristics.
func (a AABB) SurfaceArea() float64 {
	d := a.Max.Sub(a.Min)
	if d[0] < 0 || d[1] < 0 || d[2] < 0 {
		return 0
	}
	return 2 * (d[0]*d[1] + d[1]*d[2] + d[2]*d[0])
}

// LongestAxis returns the index (0,1,2) of the box's longest axis.
func (a AABB) LongestAxis() int {
	d := a.Max.Sub(a.Min)
	axis := 0
	if d[1] > d[axis] {
		axis = 1
	}
	if d[2] > d[axis] {
		axis = 2
	}
	return axis
}

// IntersectRay returns (tMin, tMax, ok) for the slab intersection of r
// with a, clipped to [0, tMax].
func (a AABB) IntersectRay(r Ray, tMax float64) (float64, float64, bool) {
	tmin, tmax := 0.0, tMax
	for i := 0; i < 3; i++ {
		if r.Dir[i] == 0 {
			if r.Origin[i] < a.Min[i] || r.Origin[i] > a.Max[i] {
				return 0, 0, false
			}
			continue
		}
		invD := 1.0 / r.Dir[i]
		t0 := (a.Min[i] - r.Origin[i]) * invD
		t1 := (a.Max[i] - r.Origin[i]) * invD
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > tmin {
			tmin = t0
		}
		if t1 < tmax {
			tmax = t1
		}
		if tmin > tmax {
			return 0, 0, false
		}
	}
	return tmin, tmax, true
}

// BoundingSphere is a world-space sphere used for detector capture radii
// and fast object/source culling.
type BoundingSphere struct {
	Center Vec3
	Radius float64
}

// Transform is a rigid-plus-scale placement: rotation (orthonormalized),
// position, and nonuniform scale.
type Transform struct {
	Position Vec3
	Rotation Quat
	Scale    Vec3
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{Position: Vec3{0, 0, 0}, Rotation: mgl64.QuatIdent(), Scale: Vec3{1, 1, 1}}
}

// SetRotationMatrix orthonormalizes m and stores it as the transform's
// rotation, per spec §3 "Setting orientation orthonormalises".
func (t *Transform) SetRotationMatrix(m Mat3) {
	orth := orthonormalize(m)
	t.Rotation = mgl64.Mat4ToQuat(orth.Mat4())
}

// orthonormalize applies Gram-Schmidt to the columns of m.
func orthonormalize(m Mat3) Mat3 {
	c0 := Vec3{m[0], m[1], m[2]}.Normalize()
	c1 := Vec3{m[3], m[4], m[5]}
	c1 = c1.Sub(c0.Mul(c1.Dot(c0))).Normalize()
	c2 := c0.Cross(c1)
	return Mat3{c0[0], c0[1], c0[2], c1[0], c1[1], c1[2], c2[0], c2[1], c2[2]}
}

// Matrix returns the 4x4 world transform (scale, then rotate, then
// translate).
func (t Transform) Matrix() mgl64.Mat4 {
	s := mgl64.Scale3D(t.Scale[0], t.Scale[1], t.Scale[2])
	r := t.Rotation.Mat4()
	tr := mgl64.Translate3D(t.Position[0], t.Position[1], t.Position[2])
	return tr.Mul4(r).Mul4(s)
}

// Inverse returns the 4x4 inverse world transform, used to bring world-space
// rays into object-local space.
func (t Transform) Inverse() mgl64.Mat4 {
	return t.Matrix().Inv()
}

// TransformPoint applies the transform to a point.
func (t Transform) TransformPoint(p Vec3) Vec3 {
	m := t.Matrix()
	v := m.Mul4x1(mgl64.Vec4{p[0], p[1], p[2], 1})
	return Vec3{v[0], v[1], v[2]}
}

// TransformDirection applies rotation and scale (no translation) to a
// direction.
func (t Transform) TransformDirection(d Vec3) Vec3 {
	m := t.Matrix()
	v := m.Mul4x1(mgl64.Vec4{d[0], d[1], d[2], 0})
	return Vec3{v[0], v[1], v[2]}
}

// InverseTransformPoint maps a world-space point into this transform's
// local space.
func (t Transform) InverseTransformPoint(p Vec3) Vec3 {
	inv := t.Inverse()
	v := inv.Mul4x1(mgl64.Vec4{p[0], p[1], p[2], 1})
	return Vec3{v[0], v[1], v[2]}
}

// InverseTransformDirection maps a world-space direction into this
// transform's local space (rotation+scale only, no translation).
func (t Transform) InverseTransformDirection(d Vec3) Vec3 {
	inv := t.Inverse()
	v := inv.Mul4x1(mgl64.Vec4{d[0], d[1], d[2], 0})
	return Vec3{v[0], v[1], v[2]}
}

// Reflect reflects direction d across a plane with unit normal n.
func Reflect(d, n Vec3) Vec3 {
	return d.Sub(n.Mul(2 * d.Dot(n)))
}

// ReflectPoint reflects point p across the plane through planePoint with
// unit normal n, used to build image-source chains.
func ReflectPoint(p, planePoint, n Vec3) Vec3 {
	dist := p.Sub(planePoint).Dot(n)
	return p.Sub(n.Mul(2 * dist))
}

// WorldToLocalDirection rotates a world-space direction into a frame
// oriented by the orthonormal matrix orientation (its columns are the
// frame's world-space basis vectors), used to evaluate a detector's
// directivity pattern in its own local space.
func WorldToLocalDirection(orientation Mat3, world Vec3) Vec3 {
	return orientation.Transpose().Mul3x1(world)
}

const Epsilon = 1e-9

// NearlyZero reports whether v is within Epsilon of zero.
func NearlyZero(v float64) bool {
	return math.Abs(v) < Epsilon
}
