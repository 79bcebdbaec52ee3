// Command gosound-propagate loads a scene description and an optional
// propagation-request override file, runs N propagation frames, and
// reports per-frame statistics — a harness for exercising the pipeline
// end to end, in the spirit of the teacher's single-shot render CLIs.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/cwbudde/gosound/band"
	"github.com/cwbudde/gosound/geom"
	"github.com/cwbudde/gosound/internal/config"
	"github.com/cwbudde/gosound/medium"
	"github.com/cwbudde/gosound/meshfmt"
	"github.com/cwbudde/gosound/propagator"
	"github.com/cwbudde/gosound/scene"
)

// sceneFile is the JSON schema for a scene description: a medium defined
// by ambient conditions, a set of preprocessed meshes placed in the
// world, and the sources and listeners that propagate between them.
type sceneFile struct {
	TemperatureC float64 `json:"temperature_c"`
	PressureKPa  float64 `json:"pressure_kpa"`
	HumidityPct  float64 `json:"humidity_pct"`

	Objects []struct {
		Mesh     string    `json:"mesh"`
		Position geom.Vec3 `json:"position"`
	} `json:"objects"`

	Sources []struct {
		ID       uint64    `json:"id"`
		Position geom.Vec3 `json:"position"`
		Power    float64   `json:"power"`
	} `json:"sources"`

	Listeners []struct {
		ID       uint64    `json:"id"`
		Position geom.Vec3 `json:"position"`
	} `json:"listeners"`
}

func loadScene(path string, bands *band.Bands) (*scene.Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gosound-propagate: read scene %s: %w", path, err)
	}
	var sf sceneFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("gosound-propagate: parse scene %s: %w", path, err)
	}

	c := medium.SpeedOfSound(sf.TemperatureC, sf.PressureKPa, sf.HumidityPct)
	absorption := medium.AirAbsorption(bands, sf.TemperatureC, sf.PressureKPa, sf.HumidityPct)
	s := scene.NewScene(medium.New(c, absorption))

	for _, o := range sf.Objects {
		data, err := os.ReadFile(o.Mesh)
		if err != nil {
			return nil, fmt.Errorf("gosound-propagate: read mesh %s: %w", o.Mesh, err)
		}
		mesh, err := meshfmt.Load(data)
		if err != nil {
			return nil, fmt.Errorf("gosound-propagate: load mesh %s: %w", o.Mesh, err)
		}
		obj := scene.NewObject(mesh)
		obj.SetPosition(o.Position)
		s.Objects = append(s.Objects, obj)
	}

	for _, src := range sf.Sources {
		power := src.Power
		if power <= 0 {
			power = 1
		}
		s.Sources = append(s.Sources, scene.NewSource(scene.DetectorID(src.ID), src.Position, power, nil))
	}
	for _, l := range sf.Listeners {
		s.Listeners = append(s.Listeners, scene.NewListener(scene.DetectorID(l.ID), l.Position))
	}
	return s, nil
}

func main() {
	scenePath := flag.String("scene", "", "scene description JSON path")
	requestPath := flag.String("request", "", "propagation request override JSON path (optional)")
	frames := flag.Int("frames", 1, "number of propagation frames to run")
	threads := flag.Int("threads", 0, "worker thread count override (0 keeps the request's own value)")
	flag.Parse()

	if *scenePath == "" {
		fmt.Fprintln(os.Stderr, "gosound-propagate: -scene is required")
		os.Exit(2)
	}

	bands := band.DefaultBands()

	s, err := loadScene(*scenePath, bands)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var req *propagator.Request
	if *requestPath != "" {
		req, err = config.LoadJSON(*requestPath, bands)
	} else {
		req = propagator.NewDefaultRequest(bands)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *threads > 0 {
		req.NumThreads = *threads
	}
	req.Statistics = &propagator.Statistics{}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	p := propagator.New(s, logger)

	for i := 0; i < *frames; i++ {
		sceneIR, err := p.Propagate(req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gosound-propagate: frame %d: %v\n", i, err)
			os.Exit(1)
		}
		fmt.Printf("frame %d: listeners=%d direct_rays=%d specular_rays=%d diffuse_rays=%d direct_paths=%d specular_paths=%d diffuse_paths=%d diffraction_paths=%d avg_depth=%.2f total=%s\n",
			i, len(sceneIR.Listeners),
			req.Statistics.NumDirectRaysTraced, req.Statistics.NumSpecularRaysTraced, req.Statistics.NumDiffuseRaysTraced,
			req.Statistics.NumDirectPathsFound, req.Statistics.NumSpecularPathsFound, req.Statistics.NumDiffusePathsFound, req.Statistics.NumDiffractionPathsFound,
			req.Statistics.AverageRayDepth, req.Statistics.TotalFrame)
	}

	p.PurgeStale(300)
}
