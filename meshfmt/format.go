// Package meshfmt implements the binary container format for preprocessed
// meshes: the bit layout a preprocessor emits and the propagation core
// loads, including the diffraction edge graph and per-triangle materials.
package meshfmt

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/cwbudde/gosound/band"
	"github.com/cwbudde/gosound/geom"
	"github.com/cwbudde/gosound/scene"
)

// magic identifies a preprocessed mesh container. Exactly 8 bytes.
var magic = [8]byte{'S', 'O', 'U', 'N', 'D', 'M', 'S', 'H'}

const formatVersion uint16 = 1

// header is the fixed 16-byte file header: magic, version, a single
// endianness/reserved byte pair, and a checksum of the body that follows.
type header struct {
	Magic    [8]byte
	Version  uint16
	Reserved uint16
	Checksum uint32
}

const headerSize = 16

// Save encodes m into the container format.
func Save(m *scene.Mesh) ([]byte, error) {
	body, err := encodeBody(m)
	if err != nil {
		return nil, fmt.Errorf("meshfmt: encode body: %w", err)
	}
	h := header{Magic: magic, Version: formatVersion, Checksum: checksum(body)}
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, h); err != nil {
		return nil, fmt.Errorf("meshfmt: write header: %w", err)
	}
	buf.Write(body)
	return buf.Bytes(), nil
}

// Load decodes a mesh from data, validating the magic, version, and
// checksum before touching the body.
func Load(data []byte) (*scene.Mesh, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("meshfmt: truncated header (%d bytes)", len(data))
	}
	var h header
	if err := binary.Read(bytes.NewReader(data[:headerSize]), binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("meshfmt: read header: %w", err)
	}
	if h.Magic != magic {
		return nil, fmt.Errorf("meshfmt: bad magic %q", h.Magic)
	}
	if h.Version != formatVersion {
		return nil, fmt.Errorf("meshfmt: unsupported version %d", h.Version)
	}
	body := data[headerSize:]
	if got := checksum(body); got != h.Checksum {
		return nil, fmt.Errorf("meshfmt: checksum mismatch: header says %08x, body is %08x", h.Checksum, got)
	}
	m, err := decodeBody(body)
	if err != nil {
		return nil, fmt.Errorf("meshfmt: decode body: %w", err)
	}
	return m, nil
}

// checksum is a plain modulo-2^32 byte sum, not a CRC — matching the
// container's "simple, regenerable on any mismatch" integrity contract.
func checksum(data []byte) uint32 {
	var sum uint32
	for _, b := range data {
		sum += uint32(b)
	}
	return sum
}

type rw struct {
	buf *bytes.Buffer
	err error
}

func (w *rw) writeU32(v uint32) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(w.buf, binary.LittleEndian, v)
}

func (w *rw) writeU16(v uint16) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(w.buf, binary.LittleEndian, v)
}

func (w *rw) writeF64(v float64) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(w.buf, binary.LittleEndian, v)
}

func (w *rw) writeVec3(v geom.Vec3) {
	w.writeF64(v[0])
	w.writeF64(v[1])
	w.writeF64(v[2])
}

// writeEdgeRef encodes an optional diffraction-edge reference using the
// 1-based/0-means-none convention (Open Question 3): nil -> 0, else idx+1.
func (w *rw) writeEdgeRef(idx *uint32) {
	if idx == nil {
		w.writeU32(0)
		return
	}
	w.writeU32(*idx + 1)
}

func (w *rw) writeCurve(c band.Curve) {
	pts := c.Points()
	w.writeU32(uint32(len(pts)))
	for _, p := range pts {
		w.writeF64(p.Frequency)
		w.writeF64(p.Gain)
	}
}

type rr struct {
	r   *bytes.Reader
	err error
}

func (r *rr) readU32() uint32 {
	var v uint32
	if r.err != nil {
		return 0
	}
	r.err = binary.Read(r.r, binary.LittleEndian, &v)
	return v
}

func (r *rr) readU16() uint16 {
	var v uint16
	if r.err != nil {
		return 0
	}
	r.err = binary.Read(r.r, binary.LittleEndian, &v)
	return v
}

func (r *rr) readF64() float64 {
	var v float64
	if r.err != nil {
		return 0
	}
	r.err = binary.Read(r.r, binary.LittleEndian, &v)
	return v
}

func (r *rr) readVec3() geom.Vec3 {
	return geom.Vec3{r.readF64(), r.readF64(), r.readF64()}
}

// readEdgeRef decodes the 1-based/0-means-none convention back into an
// explicit optional (Open Question 3: internal APIs use *uint32, nil for
// "no edge", rather than carrying the sentinel past the codec boundary).
func (r *rr) readEdgeRef() *uint32 {
	v := r.readU32()
	if v == 0 {
		return nil
	}
	idx := v - 1
	return &idx
}

func (r *rr) readCurve() band.Curve {
	n := r.readU32()
	pts := make([]band.Point, n)
	for i := range pts {
		pts[i] = band.Point{Frequency: r.readF64(), Gain: r.readF64()}
	}
	return band.NewCurve(pts)
}

func encodeBody(m *scene.Mesh) ([]byte, error) {
	w := &rw{buf: new(bytes.Buffer)}

	w.writeU32(uint32(len(m.Vertices)))
	for _, v := range m.Vertices {
		w.writeVec3(v)
	}

	w.writeU32(uint32(len(m.Triangles)))
	for _, t := range m.Triangles {
		w.writeU32(t.V0)
		w.writeU32(t.V1)
		w.writeU32(t.V2)
		w.writeU32(t.MaterialIdx)
		w.writeEdgeRef(t.EdgeIdx[0])
		w.writeEdgeRef(t.EdgeIdx[1])
		w.writeEdgeRef(t.EdgeIdx[2])
		w.writeU32(uint32(t.Rows))
		w.writeU32(uint32(t.Cols))
		w.writeU32(t.KeyVertex)
	}

	w.writeU32(uint32(len(m.Materials)))
	for _, mat := range m.Materials {
		w.writeCurve(mat.Reflectivity)
		w.writeCurve(mat.Scattering)
		w.writeCurve(mat.Transmission)
		w.writeF64(mat.Color.R)
		w.writeF64(mat.Color.G)
		w.writeF64(mat.Color.B)
		w.writeF64(mat.Color.A)
	}

	w.writeU32(uint32(len(m.Edges)))
	for _, e := range m.Edges {
		w.writeU32(e.V0)
		w.writeU32(e.V1)
		w.writeU32(e.Tri0)
		w.writeU32(e.Tri1)
		w.writeU16(e.EdgeIndexInTri0)
		w.writeU16(e.EdgeIndexInTri1)
		w.writeVec3(e.Plane0.Normal)
		w.writeF64(e.Plane0.Offset)
		w.writeVec3(e.Plane1.Normal)
		w.writeF64(e.Plane1.Offset)
		w.writeU32(e.NumNeighbors)
		w.writeU32(e.NeighborOffset)
	}

	w.writeU32(uint32(len(m.Neighbors)))
	for _, n := range m.Neighbors {
		w.writeU32(n)
	}

	if w.err != nil {
		return nil, w.err
	}
	return w.buf.Bytes(), nil
}

func decodeBody(data []byte) (*scene.Mesh, error) {
	r := &rr{r: bytes.NewReader(data)}

	nv := r.readU32()
	verts := make([]geom.Vec3, nv)
	for i := range verts {
		verts[i] = r.readVec3()
	}

	nt := r.readU32()
	tris := make([]scene.Triangle, nt)
	for i := range tris {
		tris[i].V0 = r.readU32()
		tris[i].V1 = r.readU32()
		tris[i].V2 = r.readU32()
		tris[i].MaterialIdx = r.readU32()
		tris[i].EdgeIdx[0] = r.readEdgeRef()
		tris[i].EdgeIdx[1] = r.readEdgeRef()
		tris[i].EdgeIdx[2] = r.readEdgeRef()
		tris[i].Rows = int(r.readU32())
		tris[i].Cols = int(r.readU32())
		tris[i].KeyVertex = r.readU32()
	}

	nm := r.readU32()
	mats := make([]*scene.Material, nm)
	for i := range mats {
		refl := r.readCurve()
		scat := r.readCurve()
		trans := r.readCurve()
		color := scene.RGBA{R: r.readF64(), G: r.readF64(), B: r.readF64(), A: r.readF64()}
		mats[i] = scene.NewMaterial(refl, scat, trans, color)
	}

	ne := r.readU32()
	edges := make([]scene.DiffractionEdge, ne)
	for i := range edges {
		edges[i].V0 = r.readU32()
		edges[i].V1 = r.readU32()
		edges[i].Tri0 = r.readU32()
		edges[i].Tri1 = r.readU32()
		edges[i].EdgeIndexInTri0 = r.readU16()
		edges[i].EdgeIndexInTri1 = r.readU16()
		edges[i].Plane0.Normal = r.readVec3()
		edges[i].Plane0.Offset = r.readF64()
		edges[i].Plane1.Normal = r.readVec3()
		edges[i].Plane1.Offset = r.readF64()
		edges[i].NumNeighbors = r.readU32()
		edges[i].NeighborOffset = r.readU32()
	}

	nn := r.readU32()
	neighbors := make([]uint32, nn)
	for i := range neighbors {
		neighbors[i] = r.readU32()
	}

	if r.err != nil {
		return nil, r.err
	}
	return scene.NewMesh(verts, tris, mats, edges, neighbors), nil
}
