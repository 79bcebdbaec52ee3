// Package config loads JSON propagation-request overrides on top of
// propagator.NewDefaultRequest, mirroring the teacher's preset loader.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cwbudde/gosound/band"
	"github.com/cwbudde/gosound/propagator"
)

// File is the JSON schema for a propagation request override file. Every
// field is a pointer so an absent key leaves the corresponding
// propagator.Request field at its default.
type File struct {
	NumDirectRays     *int `json:"num_direct_rays"`
	NumSpecularRays   *int `json:"num_specular_rays"`
	NumDiffuseRays    *int `json:"num_diffuse_rays"`
	NumVisibilityRays *int `json:"num_visibility_rays"`

	NumSpecularSamples *int `json:"num_specular_samples"`
	NumDiffuseSamples  *int `json:"num_diffuse_samples"`

	MaxSpecularDepth    *int `json:"max_specular_depth"`
	MaxDiffuseDepth     *int `json:"max_diffuse_depth"`
	MaxDiffractionDepth *int `json:"max_diffraction_depth"`
	MaxDiffractionOrder *int `json:"max_diffraction_order"`

	MinIRLength         *float64 `json:"min_ir_length"`
	MaxIRLength         *float64 `json:"max_ir_length"`
	IRGrowthRate        *float64 `json:"ir_growth_rate"`
	ResponseTime        *float64 `json:"response_time"`
	VisibilityCacheTime *float64 `json:"visibility_cache_time"`

	RayOffset *float64 `json:"ray_offset"`

	SampleRate *float64 `json:"sample_rate"`

	DopplerThreshold *float64 `json:"doppler_threshold"`

	TargetDt *float64 `json:"target_dt"`

	NumThreads *int `json:"num_threads"`

	Quality    *float64 `json:"quality"`
	MinQuality *float64 `json:"min_quality"`
	MaxQuality *float64 `json:"max_quality"`

	InnerClusteringAngle *float64 `json:"inner_clustering_angle"`
	OuterClusteringAngle *float64 `json:"outer_clustering_angle"`

	EnableSpecular         *bool `json:"enable_specular"`
	EnableDiffuse          *bool `json:"enable_diffuse"`
	EnableDiffraction      *bool `json:"enable_diffraction"`
	EnableTransmission     *bool `json:"enable_transmission"`
	EnableSourceClustering *bool `json:"enable_source_clustering"`
	EnableSampledIR        *bool `json:"enable_sampled_ir"`
	EnableStatistics       *bool `json:"enable_statistics"`
}

// LoadJSON reads a request override file and applies it on top of
// propagator.NewDefaultRequest(bands).
func LoadJSON(path string, bands *band.Bands) (*propagator.Request, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	req := propagator.NewDefaultRequest(bands)
	if err := ApplyFile(req, &f); err != nil {
		return nil, fmt.Errorf("config: apply %s: %w", path, err)
	}
	return req, nil
}

// ApplyFile applies a parsed override file onto an existing request,
// validating each field before assignment the way the teacher's
// ApplyFile does.
func ApplyFile(dst *propagator.Request, f *File) error {
	if dst == nil {
		return fmt.Errorf("config: nil destination request")
	}
	if f == nil {
		return nil
	}

	if f.NumDirectRays != nil {
		if *f.NumDirectRays < 0 {
			return fmt.Errorf("num_direct_rays must be >= 0")
		}
		dst.NumDirectRays = *f.NumDirectRays
	}
	if f.NumSpecularRays != nil {
		if *f.NumSpecularRays < 0 {
			return fmt.Errorf("num_specular_rays must be >= 0")
		}
		dst.NumSpecularRays = *f.NumSpecularRays
	}
	if f.NumDiffuseRays != nil {
		if *f.NumDiffuseRays < 0 {
			return fmt.Errorf("num_diffuse_rays must be >= 0")
		}
		dst.NumDiffuseRays = *f.NumDiffuseRays
	}
	if f.NumVisibilityRays != nil {
		if *f.NumVisibilityRays < 0 {
			return fmt.Errorf("num_visibility_rays must be >= 0")
		}
		dst.NumVisibilityRays = *f.NumVisibilityRays
	}
	if f.NumSpecularSamples != nil {
		if *f.NumSpecularSamples <= 0 {
			return fmt.Errorf("num_specular_samples must be > 0")
		}
		dst.NumSpecularSamples = *f.NumSpecularSamples
	}
	if f.NumDiffuseSamples != nil {
		if *f.NumDiffuseSamples <= 0 {
			return fmt.Errorf("num_diffuse_samples must be > 0")
		}
		dst.NumDiffuseSamples = *f.NumDiffuseSamples
	}
	if f.MaxSpecularDepth != nil {
		if *f.MaxSpecularDepth < 0 {
			return fmt.Errorf("max_specular_depth must be >= 0")
		}
		dst.MaxSpecularDepth = *f.MaxSpecularDepth
	}
	if f.MaxDiffuseDepth != nil {
		if *f.MaxDiffuseDepth < 0 {
			return fmt.Errorf("max_diffuse_depth must be >= 0")
		}
		dst.MaxDiffuseDepth = *f.MaxDiffuseDepth
	}
	if f.MaxDiffractionDepth != nil {
		if *f.MaxDiffractionDepth < 0 {
			return fmt.Errorf("max_diffraction_depth must be >= 0")
		}
		dst.MaxDiffractionDepth = *f.MaxDiffractionDepth
	}
	if f.MaxDiffractionOrder != nil {
		if *f.MaxDiffractionOrder < 0 || *f.MaxDiffractionOrder > 10 {
			return fmt.Errorf("max_diffraction_order must be in [0,10]")
		}
		dst.MaxDiffractionOrder = *f.MaxDiffractionOrder
	}
	if f.MinIRLength != nil {
		if *f.MinIRLength < 0 {
			return fmt.Errorf("min_ir_length must be >= 0")
		}
		dst.MinIRLength = *f.MinIRLength
	}
	if f.MaxIRLength != nil {
		if *f.MaxIRLength < 0 {
			return fmt.Errorf("max_ir_length must be >= 0")
		}
		dst.MaxIRLength = *f.MaxIRLength
	}
	if f.IRGrowthRate != nil {
		if *f.IRGrowthRate < 0 {
			return fmt.Errorf("ir_growth_rate must be >= 0")
		}
		dst.IRGrowthRate = *f.IRGrowthRate
	}
	if f.ResponseTime != nil {
		if *f.ResponseTime <= 0 {
			return fmt.Errorf("response_time must be > 0")
		}
		dst.ResponseTime = *f.ResponseTime
	}
	if f.VisibilityCacheTime != nil {
		if *f.VisibilityCacheTime < 0 {
			return fmt.Errorf("visibility_cache_time must be >= 0")
		}
		dst.VisibilityCacheTime = *f.VisibilityCacheTime
	}
	if f.RayOffset != nil {
		if *f.RayOffset <= 0 {
			return fmt.Errorf("ray_offset must be > 0")
		}
		dst.RayOffset = *f.RayOffset
	}
	if f.SampleRate != nil {
		if *f.SampleRate <= 0 {
			return fmt.Errorf("sample_rate must be > 0")
		}
		dst.SampleRate = *f.SampleRate
	}
	if f.DopplerThreshold != nil {
		if *f.DopplerThreshold < 0 {
			return fmt.Errorf("doppler_threshold must be >= 0")
		}
		dst.DopplerThreshold = *f.DopplerThreshold
	}
	if f.TargetDt != nil {
		if *f.TargetDt <= 0 {
			return fmt.Errorf("target_dt must be > 0")
		}
		dst.TargetDt = *f.TargetDt
		dst.Dt = *f.TargetDt
	}
	if f.NumThreads != nil {
		if *f.NumThreads < 0 {
			return fmt.Errorf("num_threads must be >= 0")
		}
		dst.NumThreads = *f.NumThreads
	}
	if f.Quality != nil {
		if *f.Quality <= 0 {
			return fmt.Errorf("quality must be > 0")
		}
		dst.Quality = *f.Quality
	}
	if f.MinQuality != nil {
		if *f.MinQuality <= 0 {
			return fmt.Errorf("min_quality must be > 0")
		}
		dst.MinQuality = *f.MinQuality
	}
	if f.MaxQuality != nil {
		if *f.MaxQuality <= 0 {
			return fmt.Errorf("max_quality must be > 0")
		}
		dst.MaxQuality = *f.MaxQuality
	}
	if f.InnerClusteringAngle != nil {
		if *f.InnerClusteringAngle < 0 {
			return fmt.Errorf("inner_clustering_angle must be >= 0")
		}
		dst.InnerClusteringAngle = *f.InnerClusteringAngle
	}
	if f.OuterClusteringAngle != nil {
		if *f.OuterClusteringAngle < 0 {
			return fmt.Errorf("outer_clustering_angle must be >= 0")
		}
		dst.OuterClusteringAngle = *f.OuterClusteringAngle
	}

	applyFlag(&dst.Flags, propagator.FlagSpecular, f.EnableSpecular)
	applyFlag(&dst.Flags, propagator.FlagDiffuse, f.EnableDiffuse)
	applyFlag(&dst.Flags, propagator.FlagDiffraction, f.EnableDiffraction)
	applyFlag(&dst.Flags, propagator.FlagTransmission, f.EnableTransmission)
	applyFlag(&dst.Flags, propagator.FlagSourceClustering, f.EnableSourceClustering)
	applyFlag(&dst.Flags, propagator.FlagSampledIR, f.EnableSampledIR)
	applyFlag(&dst.Flags, propagator.FlagStatistics, f.EnableStatistics)

	return nil
}

func applyFlag(flags *propagator.Flags, bit propagator.Flags, want *bool) {
	if want == nil {
		return
	}
	if *want {
		*flags |= bit
	} else {
		*flags &^= bit
	}
}
