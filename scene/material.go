package scene

import (
	"github.com/cwbudde/gosound/band"
)

// RGBA is a simple color tag carried by materials for presentation.
type RGBA struct {
	R, G, B, A float64
}

// Material describes a triangle's acoustic response. Reflectivity,
// scattering and transmission are curves in [0,1]; each is lazily
// projected onto the active Bands and cached until the active bands
// change (spec §3 "Material").
type Material struct {
	Reflectivity band.Curve
	Scattering   band.Curve
	Transmission band.Curve
	Color        RGBA

	cachedBands        *band.Bands
	reflectivityBand   band.Response
	scatteringBand     band.Response
	transmissionBand   band.Response
}

// NewMaterial builds a material from its three response curves.
func NewMaterial(reflectivity, scattering, transmission band.Curve, color RGBA) *Material {
	return &Material{Reflectivity: reflectivity, Scattering: scattering, Transmission: transmission, Color: color}
}

// clampUnit clamps every band to [0,1], the material response range.
func clampUnit(r band.Response) band.Response {
	out := make([]float64, r.Len())
	for i := 0; i < r.Len(); i++ {
		v := r.At(i)
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		out[i] = v
	}
	return band.NewResponseFrom(out)
}

// ensureProjection recomputes the cached band projections if bands has
// changed since the last call.
func (m *Material) ensureProjection(bands *band.Bands) {
	if m.cachedBands != nil && m.cachedBands.Equal(bands) {
		return
	}
	m.cachedBands = bands
	m.reflectivityBand = clampUnit(m.Reflectivity.ToBandResponse(bands))
	m.scatteringBand = clampUnit(m.Scattering.ToBandResponse(bands))
	m.transmissionBand = clampUnit(m.Transmission.ToBandResponse(bands))
}

// ReflectivityBand returns the material's reflectivity projected onto bands.
func (m *Material) ReflectivityBand(bands *band.Bands) band.Response {
	m.ensureProjection(bands)
	return m.reflectivityBand
}

// ScatteringBand returns the material's scattering projected onto bands.
func (m *Material) ScatteringBand(bands *band.Bands) band.Response {
	m.ensureProjection(bands)
	return m.scatteringBand
}

// TransmissionBand returns the material's transmission projected onto bands.
func (m *Material) TransmissionBand(bands *band.Bands) band.Response {
	m.ensureProjection(bands)
	return m.transmissionBand
}
