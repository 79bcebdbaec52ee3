package meshfmt

import (
	"testing"

	"github.com/cwbudde/gosound/band"
	"github.com/cwbudde/gosound/geom"
	"github.com/cwbudde/gosound/scene"
)

func threeVertexMesh() *scene.Mesh {
	verts := []geom.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	mat := scene.NewMaterial(
		band.NewCurve([]band.Point{{Frequency: 125, Gain: 0.2}, {Frequency: 4000, Gain: 0.8}}),
		band.NewCurve(nil),
		band.NewCurve(nil),
		scene.RGBA{R: 0.5, G: 0.25, B: 0.1, A: 1},
	)
	tris := []scene.Triangle{{V0: 0, V1: 1, V2: 2, MaterialIdx: 0}}
	return scene.NewMesh(verts, tris, []*scene.Material{mat}, nil, nil)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := threeVertexMesh()
	data, err := Save(m)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(got.Vertices) != len(m.Vertices) {
		t.Fatalf("vertex count = %d, want %d", len(got.Vertices), len(m.Vertices))
	}
	for i := range m.Vertices {
		if got.Vertices[i] != m.Vertices[i] {
			t.Fatalf("vertex %d = %v, want %v", i, got.Vertices[i], m.Vertices[i])
		}
	}

	if len(got.Triangles) != 1 {
		t.Fatalf("triangle count = %d, want 1", len(got.Triangles))
	}
	wantTri := m.Triangles[0]
	gotTri := got.Triangles[0]
	if gotTri.V0 != wantTri.V0 || gotTri.V1 != wantTri.V1 || gotTri.V2 != wantTri.V2 || gotTri.MaterialIdx != wantTri.MaterialIdx {
		t.Fatalf("triangle = %+v, want %+v", gotTri, wantTri)
	}
	for i := 0; i < 3; i++ {
		if gotTri.EdgeIdx[i] != nil {
			t.Fatalf("triangle edge %d should decode to nil (no edge), got %v", i, *gotTri.EdgeIdx[i])
		}
	}

	if len(got.Materials) != 1 {
		t.Fatalf("material count = %d, want 1", len(got.Materials))
	}
	wantMat, gotMat := m.Materials[0], got.Materials[0]
	if gotMat.Color != wantMat.Color {
		t.Fatalf("material color = %+v, want %+v", gotMat.Color, wantMat.Color)
	}
	wantPts, gotPts := wantMat.Reflectivity.Points(), gotMat.Reflectivity.Points()
	if len(gotPts) != len(wantPts) {
		t.Fatalf("reflectivity curve length = %d, want %d", len(gotPts), len(wantPts))
	}
	for i := range wantPts {
		if gotPts[i] != wantPts[i] {
			t.Fatalf("reflectivity point %d = %+v, want %+v", i, gotPts[i], wantPts[i])
		}
	}
	if got.Materials[0].Scattering.Len() != 0 || got.Materials[0].Transmission.Len() != 0 {
		t.Fatalf("expected empty scattering/transmission curves to round-trip empty")
	}

	if len(got.Edges) != 0 || len(got.Neighbors) != 0 {
		t.Fatalf("expected no edges/neighbors, got %d/%d", len(got.Edges), len(got.Neighbors))
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	data, err := Save(threeVertexMesh())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	data[0] ^= 0xFF
	if _, err := Load(data); err == nil {
		t.Fatalf("expected an error for corrupted magic")
	}
}

func TestLoadRejectsChecksumMismatch(t *testing.T) {
	data, err := Save(threeVertexMesh())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Flip a byte inside the body without touching the header.
	data[headerSize] ^= 0xFF
	if _, err := Load(data); err == nil {
		t.Fatalf("expected a checksum mismatch error")
	}
}

func TestLoadRejectsTruncatedHeader(t *testing.T) {
	if _, err := Load([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected an error for a truncated header")
	}
}
