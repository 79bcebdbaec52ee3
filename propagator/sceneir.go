package propagator

import (
	"github.com/cwbudde/gosound/ir"
	"github.com/cwbudde/gosound/scene"
	"github.com/cwbudde/gosound/soundpath"
)

// SourceResult is one listener's output for one source: the record-form
// path set, a sampled IR, or both, depending on the request's flags
// (spec §6, "Scene IR (output)").
type SourceResult struct {
	Paths []soundpath.SoundPath
	IR    *ir.SampledIR
}

// SceneIR is the per-frame propagation output: per enabled listener, per
// enabled source (or per source cluster, when clustering is enabled), a
// SourceResult.
type SceneIR struct {
	Listeners map[scene.DetectorID]map[scene.DetectorID]*SourceResult
}

func newSceneIR() *SceneIR {
	return &SceneIR{Listeners: make(map[scene.DetectorID]map[scene.DetectorID]*SourceResult)}
}

func (s *SceneIR) entry(listener, source scene.DetectorID) *SourceResult {
	bySource, ok := s.Listeners[listener]
	if !ok {
		bySource = make(map[scene.DetectorID]*SourceResult)
		s.Listeners[listener] = bySource
	}
	res, ok := bySource[source]
	if !ok {
		res = &SourceResult{}
		bySource[source] = res
	}
	return res
}

// Lookup returns the result recorded for (listener, source), if any.
func (s *SceneIR) Lookup(listener, source scene.DetectorID) (*SourceResult, bool) {
	bySource, ok := s.Listeners[listener]
	if !ok {
		return nil, false
	}
	res, ok := bySource[source]
	return res, ok
}
