package scene

import "github.com/cwbudde/gosound/geom"

// ObjectFlags bitset.
type ObjectFlags uint32

const (
	ObjectEnabled ObjectFlags = 1 << iota
)

// Object places a shared, non-owning mesh reference in the world via a
// rigid transform (spec §3 "Object").
type Object struct {
	Mesh      *Mesh
	Transform geom.Transform
	Velocity  geom.Vec3
	Flags     ObjectFlags
	UserData  any

	worldSphere geom.BoundingSphere
	sphereValid bool
}

// NewObject places mesh at the identity transform, enabled by default.
func NewObject(mesh *Mesh) *Object {
	o := &Object{Mesh: mesh, Transform: geom.Identity(), Flags: ObjectEnabled}
	o.invalidateBounds()
	return o
}

// Enabled reports whether the object participates in propagation.
func (o *Object) Enabled() bool { return o.Flags&ObjectEnabled != 0 }

// SetEnabled toggles the object's enabled flag.
func (o *Object) SetEnabled(v bool) {
	if v {
		o.Flags |= ObjectEnabled
	} else {
		o.Flags &^= ObjectEnabled
	}
}

// SetPosition moves the object, invalidating its world bounding sphere.
func (o *Object) SetPosition(p geom.Vec3) {
	o.Transform.Position = p
	o.invalidateBounds()
}

// SetScale rescales the object, invalidating its world bounding sphere.
func (o *Object) SetScale(s geom.Vec3) {
	o.Transform.Scale = s
	o.invalidateBounds()
}

// SetOrientation orthonormalizes m and stores it as the object's rotation.
func (o *Object) SetOrientation(m geom.Mat3) {
	o.Transform.SetRotationMatrix(m)
	o.invalidateBounds()
}

func (o *Object) invalidateBounds() { o.sphereValid = false }

// WorldBoundingSphere returns (and caches) the object's world-space
// bounding sphere, derived from its mesh's local bounding sphere and the
// current transform.
func (o *Object) WorldBoundingSphere() geom.BoundingSphere {
	if o.sphereValid {
		return o.worldSphere
	}
	local := o.Mesh.BoundingSphere()
	center := o.Transform.TransformPoint(local.Center)
	maxScale := maxComponent(o.Transform.Scale)
	o.worldSphere = geom.BoundingSphere{Center: center, Radius: local.Radius * maxScale}
	o.sphereValid = true
	return o.worldSphere
}

// WorldAABB returns the object's world-space AABB, derived from the
// transformed local bounding sphere (a conservative but cheap bound,
// sufficient for the top-level BVH per spec §4.3).
func (o *Object) WorldAABB() geom.AABB {
	s := o.WorldBoundingSphere()
	r := geom.Vec3{s.Radius, s.Radius, s.Radius}
	return geom.AABB{Min: s.Center.Sub(r), Max: s.Center.Add(r)}
}

func maxComponent(v geom.Vec3) float64 {
	m := v[0]
	if v[1] > m {
		m = v[1]
	}
	if v[2] > m {
		m = v[2]
	}
	return m
}
