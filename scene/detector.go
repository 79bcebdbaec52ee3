package scene

import (
	"github.com/cwbudde/gosound/band"
	"github.com/cwbudde/gosound/geom"
)

// DetectorID is a hashable identity for a source or listener, per spec §3
// "Detector...hashable identity".
type DetectorID uint64

// Detector is any sphere-shaped emitter or receiver: a source or a
// listener (spec §3). Listeners leave Directivity nil; Power is the
// hearing-threshold conversion for listeners and the emitted acoustic
// power for sources.
type Detector struct {
	ID          DetectorID
	Position    geom.Vec3
	Orientation geom.Mat3
	Radius      float64 // bounding-sphere radius, also the ray capture radius
	Velocity    geom.Vec3
	Power       float64
	Directivity *Directivity // sources only
	Enabled     bool

	bandDirectivity *BandDirectivity
}

// NewSource builds an enabled source detector.
func NewSource(id DetectorID, position geom.Vec3, power float64, directivity *Directivity) *Detector {
	return &Detector{ID: id, Position: position, Radius: 0, Power: power, Directivity: directivity, Enabled: true, Orientation: identityMat3()}
}

// NewListener builds an enabled listener detector.
func NewListener(id DetectorID, position geom.Vec3) *Detector {
	return &Detector{ID: id, Position: position, Radius: 0, Power: 1, Enabled: true, Orientation: identityMat3()}
}

func identityMat3() geom.Mat3 {
	return geom.Mat3{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// EnsureBandDirectivity lazily computes the source's band directivity
// against the given bands on first use and caches it on the detector.
// Later calls return the cached value unchanged: it is not recomputed
// after the directivity is edited, nor for a different bands layout.
func (d *Detector) EnsureBandDirectivity(bands *band.Bands) *BandDirectivity {
	if d.Directivity == nil {
		return nil
	}
	if d.bandDirectivity == nil {
		d.bandDirectivity = NewBandDirectivity(d.Directivity, bands)
	}
	return d.bandDirectivity
}
