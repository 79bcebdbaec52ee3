package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cwbudde/gosound/band"
	"github.com/cwbudde/gosound/propagator"
)

func writeTempFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "request.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("os.WriteFile: %v", err)
	}
	return path
}

func TestLoadJSONAppliesOverridesOntoDefaults(t *testing.T) {
	path := writeTempFile(t, `{
		"num_direct_rays": 64,
		"quality": 2,
		"enable_diffraction": false,
		"enable_specular": true
	}`)

	bands := band.DefaultBands()
	req, err := LoadJSON(path, bands)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if req.NumDirectRays != 64 {
		t.Fatalf("NumDirectRays = %d, want 64", req.NumDirectRays)
	}
	if req.Quality != 2 {
		t.Fatalf("Quality = %v, want 2", req.Quality)
	}
	if req.Flags.Has(propagator.FlagDiffraction) {
		t.Fatalf("expected diffraction disabled by override")
	}
	if !req.Flags.Has(propagator.FlagSpecular) {
		t.Fatalf("expected specular left enabled by override")
	}
	// Fields absent from the override file keep NewDefaultRequest's values.
	def := propagator.NewDefaultRequest(bands)
	if req.MaxSpecularDepth != def.MaxSpecularDepth {
		t.Fatalf("MaxSpecularDepth = %d, want untouched default %d", req.MaxSpecularDepth, def.MaxSpecularDepth)
	}
}

func TestApplyFileRejectsInvalidValues(t *testing.T) {
	bands := band.DefaultBands()
	req := propagator.NewDefaultRequest(bands)

	badQuality := -1.0
	f := &File{Quality: &badQuality}
	if err := ApplyFile(req, f); err == nil {
		t.Fatalf("expected an error for a non-positive quality override")
	}
}

func TestApplyFileNilFileIsANoOp(t *testing.T) {
	bands := band.DefaultBands()
	req := propagator.NewDefaultRequest(bands)
	before := *req

	if err := ApplyFile(req, nil); err != nil {
		t.Fatalf("ApplyFile with nil file: %v", err)
	}
	if *req != before {
		t.Fatalf("request mutated by a nil override file")
	}
}

func TestLoadJSONRejectsMalformedJSON(t *testing.T) {
	path := writeTempFile(t, `{not valid json`)
	if _, err := LoadJSON(path, band.DefaultBands()); err == nil {
		t.Fatalf("expected an error for malformed JSON")
	}
}
