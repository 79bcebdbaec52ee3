// Package propagator is the per-frame orchestrator: it fans direct,
// specular, diffraction and diffuse searches across a worker pool for
// every enabled (listener, source) pair, drains each worker's
// contributions into the listener's caches on the main goroutine, and
// assembles the frame's SceneIR (spec §2 data flow, §5 concurrency
// model, §6 external interfaces).
package propagator

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/cwbudde/gosound/bvh"
	"github.com/cwbudde/gosound/cache"
	"github.com/cwbudde/gosound/cluster"
	"github.com/cwbudde/gosound/diffraction"
	"github.com/cwbudde/gosound/diffuse"
	"github.com/cwbudde/gosound/direct"
	"github.com/cwbudde/gosound/geom"
	"github.com/cwbudde/gosound/internal/randpool"
	"github.com/cwbudde/gosound/ir"
	"github.com/cwbudde/gosound/scene"
	"github.com/cwbudde/gosound/soundpath"
	"github.com/cwbudde/gosound/specular"
)

// clusterSourceBit marks a synthetic DetectorID minted for a merged
// source cluster, keeping it out of the real source ID space.
const clusterSourceBit = uint64(1) << 48

// pairState holds the caches owned by one (listener, source) pair. Only
// the main goroutine writes these, after a worker's results are
// received (spec §5, "the main thread alone inserts into shared
// caches"); the worker tracing the pair only reads them.
type pairState struct {
	paths      *cache.PathCache
	diffuse    *cache.DiffuseCache
	visibility *cache.VisibilityCache
	lastSeen   uint64
}

func newPairState() *pairState {
	return &pairState{
		paths:      cache.NewPathCache(61, 1.0),
		diffuse:    cache.NewDiffuseCache(nil, 61, 1.0),
		visibility: cache.NewVisibilityCache(61, 1.0),
	}
}

type pairKey struct {
	Listener, Source scene.DetectorID
}

// diffEdgeKey dedups diffraction candidates spawned from specular probe
// hits within a single tracePair call: several chains can hit the same
// triangle, and a triangle's edges should still only spawn one candidate
// apiece per frame.
type diffEdgeKey struct {
	obj  *scene.Object
	edge uint32
}

// Propagator owns the scene's top-level BVH, per-pair caches, per-
// listener IR caches, per-listener source clusterers, and the frame
// counter used to seed each frame's worker RNGs.
type Propagator struct {
	mu sync.Mutex

	scene *scene.Scene

	idx *bvh.Index

	pairs      map[pairKey]*pairState
	irCaches   map[scene.DetectorID]*cache.IRCache
	clusterers map[scene.DetectorID]*cluster.Clusterer

	logger *log.Logger
	frame  uint64
}

// New builds a propagator over s, building its top-level BVH and the
// per-mesh BVHs of the enabled objects immediately (the runtime never
// builds diffraction graphs; those must already be attached to each Mesh).
func New(s *scene.Scene, logger *log.Logger) *Propagator {
	return &Propagator{
		scene:      s,
		idx:        bvh.Build(s),
		pairs:      make(map[pairKey]*pairState),
		irCaches:   make(map[scene.DetectorID]*cache.IRCache),
		clusterers: make(map[scene.DetectorID]*cluster.Clusterer),
		logger:     logger,
	}
}

// RebuildIndex rebuilds the top-level BVH, for use after objects move or
// are added/removed.
func (p *Propagator) RebuildIndex() {
	p.idx = bvh.Build(p.scene)
}

type jobResult struct {
	listener, source *scene.Detector
	ps               *pairState
	paths            []soundpath.SoundPath
	visHits          []cache.ObjTri
	stats            frameStats
}

type frameStats struct {
	directRays, specularRays, diffuseRays, visibilityRays               uint64
	directFound, specularFound, diffuseFound, diffractionFound          uint64
	depthSum, depthCount                                                uint64
}

// Propagate runs one propagation frame for req, returning the resulting
// SceneIR. It validates the scene, sanitizes req, partitions
// (listener, source) work across a worker pool sized
// min(max(1, req.NumThreads), 2*NumCPU), and drains results on the
// caller's goroutine (spec §5).
func (p *Propagator) Propagate(req *Request) (*SceneIR, error) {
	if err := p.scene.Validate(); err != nil {
		return nil, fmt.Errorf("propagator: invalid scene: %w", err)
	}
	req.Sanitize()
	if req.Bands == nil {
		return nil, fmt.Errorf("propagator: request has no frequency bands")
	}

	p.mu.Lock()
	p.frame++
	frame := p.frame
	p.mu.Unlock()

	if req.Statistics != nil {
		req.Statistics.reset()
	}
	start := time.Now()

	numDirect, numSpecular, numDiffuse, numVisibility := req.ScaledRayCounts()

	listeners := p.scene.EnabledListeners()
	sources := p.scene.EnabledSources()

	enabledObjs := p.scene.EnabledObjects()
	objIndex := make(map[*scene.Object]uint32, len(enabledObjs))
	for i, o := range enabledObjs {
		objIndex[o] = uint32(i)
	}

	type job struct {
		listener, source *scene.Detector
		ps               *pairState
	}
	var jobs []job
	for _, l := range listeners {
		srcList := sources
		if req.Flags.Has(FlagSourceClustering) {
			srcList = p.clusteredSources(l, sources, req)
		}
		for _, s := range srcList {
			ps := p.acquirePairState(pairKey{Listener: l.ID, Source: s.ID})
			jobs = append(jobs, job{l, s, ps})
		}
	}
	if len(jobs) == 0 {
		return newSceneIR(), nil
	}

	pool := randpool.New(req.NumThreads, int64(frame))
	jobCh := make(chan job, len(jobs))
	for _, j := range jobs {
		jobCh <- j
	}
	close(jobCh)

	resultsCh := make(chan jobResult, len(jobs))
	var wg sync.WaitGroup
	for w := 0; w < req.NumThreads; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			rng := pool.For(workerID)
			for j := range jobCh {
				paths, visHits, st := p.tracePair(j.listener, j.source, j.ps, objIndex, req, numDirect, numSpecular, numDiffuse, numVisibility, rng)
				resultsCh <- jobResult{listener: j.listener, source: j.source, ps: j.ps, paths: paths, visHits: visHits, stats: st}
			}
		}(w)
	}
	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	sceneIR := newSceneIR()
	var total Statistics
	for res := range resultsCh {
		p.drain(res.listener, res.source, res.ps, res.paths, res.visHits, req, frame, sceneIR)
		total.NumDirectRaysTraced += res.stats.directRays
		total.NumSpecularRaysTraced += res.stats.specularRays
		total.NumDiffuseRaysTraced += res.stats.diffuseRays
		total.NumVisibilityRaysTraced += res.stats.visibilityRays
		total.NumDirectPathsFound += res.stats.directFound
		total.NumSpecularPathsFound += res.stats.specularFound
		total.NumDiffusePathsFound += res.stats.diffuseFound
		total.NumDiffractionPathsFound += res.stats.diffractionFound
		if res.stats.depthCount > 0 {
			total.AverageRayDepth += float64(res.stats.depthSum) / float64(res.stats.depthCount)
		}
		if p.logger != nil {
			p.logger.Printf("[PROPAGATOR] listener=%d source=%d paths=%d", res.listener.ID, res.source.ID, len(res.paths))
		}
	}
	if len(jobs) > 0 {
		total.AverageRayDepth /= float64(len(jobs))
	}

	if req.Statistics != nil {
		total.TotalFrame = time.Since(start)
		*req.Statistics = total
	}
	return sceneIR, nil
}

// acquirePairState returns key's pairState, creating it if this is the
// first frame this (listener, source) pair has been seen. Called on the
// caller's goroutine before any worker is started, so the map itself needs
// no further locking once job dispatch begins; each job's own pairState is
// then only read by its worker and only written back by drain() after that
// worker's job completes (spec §5, "the main thread alone inserts into
// shared caches").
func (p *Propagator) acquirePairState(key pairKey) *pairState {
	p.mu.Lock()
	defer p.mu.Unlock()
	ps, ok := p.pairs[key]
	if !ok {
		ps = newPairState()
		p.pairs[key] = ps
	}
	return ps
}

// tracePair runs every enabled search kind for one (listener, source)
// pair on the calling worker goroutine, returning its contributions, any
// freshly-sampled visibility-cache triangles, and local counters. It reads
// ps's caches (populated by last frame's drain) to prune stale candidates
// and re-validate chains, but never writes them — only drain() does that.
func (p *Propagator) tracePair(listener, source *scene.Detector, ps *pairState, objIndex map[*scene.Object]uint32, req *Request, numDirect, numSpecular, numDiffuse, numVisibility int, rngSrc *rand.Rand) ([]soundpath.SoundPath, []cache.ObjTri, frameStats) {
	var st frameStats
	var paths []soundpath.SoundPath
	var visHits []cache.ObjTri
	m := p.scene.Medium
	airAbsorption := req.Flags.Has(FlagAirAbsorption)
	useDirectivity := req.Flags.Has(FlagSourceDirectivity)

	// (b) refresh the visibility cache: random rays from the source,
	// recording which object-space triangles they actually reach, so
	// `drain` can age the pair's VisibilityCache and tracePair itself can
	// prune reflection candidates to recently-seen surfaces (spec §5 data
	// flow step (b); component 11 "Visibility cache").
	if req.Flags.Has(FlagVisibilityCache) {
		st.visibilityRays += uint64(numVisibility)
		for i := 0; i < numVisibility; i++ {
			dir := uniformSphereDirection(rngSrc)
			ray := geom.Ray{Origin: source.Position, Dir: dir}
			hit, ok := p.idx.IntersectClosest(ray, math.Inf(1))
			if !ok {
				continue
			}
			objIdx, known := objIndex[hit.Object]
			if !known {
				continue
			}
			visHits = append(visHits, cache.ObjTri{Object: objIdx, Triangle: hit.Triangle})
		}
	}
	visible := func(obj *scene.Object, triangle uint32) bool {
		if !req.Flags.Has(FlagVisibilityCache) || ps.visibility.Entries() == 0 {
			return true
		}
		objIdx, known := objIndex[obj]
		return known && ps.visibility.Contains(cache.ObjTri{Object: objIdx, Triangle: triangle})
	}

	if req.Flags.Has(FlagDirect) {
		opts := direct.Options{
			NumRays:        numDirect,
			RayOffset:      req.RayOffset,
			AirAbsorption:  airAbsorption,
			UseDirectivity: useDirectivity,
			Transmission:   req.Flags.Has(FlagTransmission),
		}
		st.directRays += uint64(numDirect)
		if res, ok := direct.Find(listener, source, p.idx, m, req.Bands, rngSrc, opts); ok {
			paths = append(paths, withHash(res.Path, soundpath.PathID{
				SourceID: uint32(source.ID), ListenerID: uint32(listener.ID),
			}))
			st.directFound++
			st.depthSum += 1
			st.depthCount++
		}
	}

	// Diffraction candidates spawn from this frame's specular probe hits
	// (spec §4.7, "at each specular probe hit, for each of the triangle's
	// edges..."), so the probe runs whenever either flag needs it and its
	// chains are shared between the two blocks below.
	var chains [][]specular.Hit
	sopts := specular.Options{
		NumProbeRays:       numSpecular,
		MaxDepth:           req.MaxSpecularDepth,
		NumSpecularSamples: req.NumSpecularSamples,
		RayOffset:          req.RayOffset,
		AirAbsorption:      airAbsorption,
		UseDirectivity:     useDirectivity,
	}
	if req.Flags.Has(FlagSpecular) || req.Flags.Has(FlagDiffraction) {
		st.specularRays += uint64(numSpecular)
		chains = specular.Probe(listener, p.idx, sopts, rngSrc)
	}

	if req.Flags.Has(FlagSpecular) {
		for _, chain := range chains {
			if !specular.Revalidate(listener, chain, p.idx, sopts) {
				continue
			}
			if !visible(chain[len(chain)-1].Object, chain[len(chain)-1].Triangle) {
				continue
			}
			var path soundpath.SoundPath
			var ok bool
			if source.Radius > 0 {
				path, ok = specular.ValidateSphereSource(listener, source, chain, p.idx, m, req.Bands, sopts, rngSrc)
			} else {
				path, ok = specular.ValidatePointSource(listener, source, chain, p.idx, m, req.Bands, sopts)
			}
			if !ok {
				continue
			}
			points := make([]soundpath.PathPoint, len(chain))
			for i, h := range chain {
				points[i] = soundpath.PathPoint{Type: soundpath.PointSpecular, Triangle: h.Triangle}
			}
			paths = append(paths, withHash(path, soundpath.PathID{
				SourceID: uint32(source.ID), ListenerID: uint32(listener.ID), Points: points,
			}))
			st.specularFound++
			st.depthSum += uint64(len(chain))
			st.depthCount++
		}
	}

	if req.Flags.Has(FlagDiffraction) {
		dopts := diffraction.Options{
			MaxDepth:      req.MaxDiffractionDepth,
			MaxOrder:      req.MaxDiffractionOrder,
			RayOffset:     req.RayOffset,
			AirAbsorption: airAbsorption,
		}
		seen := make(map[diffEdgeKey]bool)
		for _, chain := range chains {
			for _, h := range chain {
				if !visible(h.Object, h.Triangle) {
					continue
				}
				mesh := h.Object.Mesh
				tri := mesh.Triangles[h.Triangle]
				for _, eiPtr := range tri.EdgeIdx {
					if eiPtr == nil {
						continue
					}
					ei := *eiPtr
					key := diffEdgeKey{obj: h.Object, edge: ei}
					if seen[key] {
						continue
					}
					seen[key] = true
					cand := diffraction.Candidate{Object: h.Object, Edge: &mesh.Edges[ei], ListenerImage: listener.Position}
					path, ok := diffraction.Find(listener, source, cand, mesh, p.idx, m, req.Bands, dopts, 0)
					if !ok {
						continue
					}
					paths = append(paths, withHash(path, soundpath.PathID{
						SourceID: uint32(source.ID), ListenerID: uint32(listener.ID),
						Points: []soundpath.PathPoint{{Type: soundpath.PointEdgeDiffraction, Triangle: ei}},
					}))
					st.diffractionFound++
					st.depthSum++
					st.depthCount++
				}
			}
		}
	}

	if req.Flags.Has(FlagDiffuse) {
		dopts := diffuse.Options{
			NumDiffuseRays:    numDiffuse,
			MaxDiffuseDepth:   req.MaxDiffuseDepth,
			NumDiffuseSamples: req.NumDiffuseSamples,
			RayOffset:         req.RayOffset,
			MaxIRLength:       req.MaxIRLength,
			AirAbsorption:     airAbsorption,
			UseDirectivity:    useDirectivity,
		}
		st.diffuseRays += uint64(numDiffuse)
		var contributions []soundpath.SoundPath
		if req.Flags.Has(FlagSourceDiffuse) {
			dopts.Origin = diffuse.OriginSource
			contributions = diffuse.Trace(source, listener, p.idx, m, req.Bands, rngSrc, dopts)
		} else {
			contributions = diffuse.Trace(listener, source, p.idx, m, req.Bands, rngSrc, dopts)
		}
		for i := range contributions {
			contributions[i] = withHash(contributions[i], soundpath.PathID{
				SourceID: uint32(source.ID), ListenerID: uint32(listener.ID),
				Points: []soundpath.PathPoint{{Type: soundpath.PointDiffuse, Triangle: contributions[i].Triangle, PointID: contributions[i].PatchID}},
			})
		}
		st.diffuseFound += uint64(len(contributions))
		paths = append(paths, contributions...)
	}

	return paths, visHits, st
}

// withHash stamps a freshly-computed path with its full dedup identity and
// the 64-bit hash derived from it, so per-frame contributions for the same
// physical path correlate across frames (spec §3, §4.5).
func withHash(path soundpath.SoundPath, id soundpath.PathID) soundpath.SoundPath {
	path.ID = id
	path.Hash = id.Hash()
	return path
}

// pathCacheMaxAge returns the frame-age threshold, in frames, past which an
// unconfirmed path- or visibility-cache entry is evicted (spec §4.6,
// "entries older than a frame-age threshold... are evicted"), derived from
// VisibilityCacheTime and the request's frame interval.
func pathCacheMaxAge(req *Request) uint64 {
	if req.Dt <= 0 {
		return 300
	}
	age := req.VisibilityCacheTime / req.Dt
	if age < 1 {
		age = 1
	}
	return uint64(age)
}

// drain runs on the caller's goroutine only: it re-validates ps's path
// cache against this frame's findings, folds diffuse contributions into
// the pair's diffuse cache, refreshes and ages the pair's visibility
// cache, and appends every path to the frame's SceneIR. This is the
// single point of shared-cache mutation per spec §5's ordering guarantee.
func (p *Propagator) drain(listener, source *scene.Detector, ps *pairState, paths []soundpath.SoundPath, visHits []cache.ObjTri, req *Request, frame uint64, out *SceneIR) {
	ps.lastSeen = frame
	maxAge := pathCacheMaxAge(req)

	if req.Flags.Has(FlagVisibilityCache) {
		for _, k := range visHits {
			ps.visibility.AddTriangle(k, frame)
		}
		ps.visibility.RemoveOldTriangles(frame, maxAge)
	}

	res := out.entry(listener.ID, source.ID)
	for _, path := range paths {
		switch {
		case path.Flags&soundpath.FlagDiffuse != 0 && req.Flags.Has(FlagDiffuseCache):
			ps.diffuse.AddContribution(path.Hash, path.Intensity, path.Direction, path.SourceDirection, path.Distance, path.ClosingSpeed, frame)
		case req.Flags.Has(FlagSpecularCache) && path.Flags&(soundpath.FlagSpecular|soundpath.FlagDiffraction) != 0:
			known := ps.paths.ContainsPath(path.ID)
			ps.paths.AddPath(path.ID, frame)
			if !known && p.logger != nil {
				p.logger.Printf("[PROPAGATOR] new path listener=%d source=%d hash=%#x", listener.ID, source.ID, path.Hash)
			}
		}
		res.Paths = append(res.Paths, path)
	}
	if req.Flags.Has(FlagSpecularCache) {
		ps.paths.RemoveOlderThan(frame, maxAge)
	}

	if req.Flags.Has(FlagSampledIR) {
		p.blendIR(listener, source, paths, req, res)
	}
}

// blendIR accumulates paths into a fresh per-frame SampledIR and blends
// it into the listener's persistent IR cache entry for source via the
// temporal IIR law (spec §4.10).
func (p *Propagator) blendIR(listener, source *scene.Detector, paths []soundpath.SoundPath, req *Request, res *SourceResult) {
	p.mu.Lock()
	irc, ok := p.irCaches[listener.ID]
	if !ok {
		sr := req.SampleRate
		bands := req.Bands
		irc = cache.NewIRCache(sr, func() *ir.SampledIR { return ir.New(sr, bands) })
		p.irCaches[listener.ID] = irc
	}
	p.mu.Unlock()

	frameIR := ir.New(req.SampleRate, req.Bands)
	for _, path := range paths {
		delay := path.Distance / path.MediumSpeed
		includeSourceDirs := req.Flags.Has(FlagSampledIRSourceDirections)
		srcDir := path.SourceDirection
		if !includeSourceDirs {
			srcDir = path.Direction
		}
		frameIR.AddImpulse(delay, path.Intensity, path.Direction, srcDir)
	}

	gain := 1.0
	if _, _, numDiffuse, _ := req.ScaledRayCounts(); numDiffuse > 0 {
		gain = 1.0 / float64(numDiffuse)
	}
	if err := irc.Blend(uint32(source.ID), frameIR, req.ResponseTime, req.Dt, gain); err != nil && p.logger != nil {
		p.logger.Printf("[PROPAGATOR] IR blend failed for source=%d: %v", source.ID, err)
	}
	res.IR = irc.Get(uint32(source.ID))
}

// clusteredSources applies this listener's Clusterer to sources,
// replacing each merged group with one synthetic Detector at the
// cluster's weighted centroid (summed power), and passes through
// whatever remains unmerged unchanged (spec §4.12).
func (p *Propagator) clusteredSources(listener *scene.Detector, sources []*scene.Detector, req *Request) []*scene.Detector {
	p.mu.Lock()
	cl, ok := p.clusterers[listener.ID]
	if !ok {
		cl = cluster.NewClusterer(cluster.Options{InnerAngle: req.InnerClusteringAngle, OuterAngle: req.OuterClusteringAngle})
		p.clusterers[listener.ID] = cl
	}
	p.mu.Unlock()

	clusters := cl.Update(listener, sources)
	merged := make(map[scene.DetectorID]bool)
	for _, c := range clusters {
		for _, id := range c.Members {
			merged[id] = true
		}
	}

	byID := make(map[scene.DetectorID]*scene.Detector, len(sources))
	for _, s := range sources {
		byID[s.ID] = s
	}

	out := make([]*scene.Detector, 0, len(sources))
	for _, c := range clusters {
		var power float64
		for _, id := range c.Members {
			power += byID[id].Power
		}
		out = append(out, &scene.Detector{
			ID:       scene.DetectorID(clusterSourceBit | uint64(c.ID)),
			Position: c.Centroid,
			Power:    power,
			Enabled:  true,
		})
	}
	for _, s := range sources {
		if !merged[s.ID] {
			out = append(out, s)
		}
	}
	return out
}

// PurgeStale drops per-pair state (path, diffuse and visibility caches)
// untouched for more than maxAge frames, releasing resources for
// (listener, source) pairs that have disappeared (spec §5, "Resource
// ownership"). Per-listener IR caches and clusterers are not dropped.
func (p *Propagator) PurgeStale(maxAge uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, ps := range p.pairs {
		if p.frame-ps.lastSeen > maxAge {
			delete(p.pairs, k)
		}
	}
}

func uniformSphereDirection(rng *rand.Rand) geom.Vec3 {
	z := 2*rng.Float64() - 1
	phi := 2 * math.Pi * rng.Float64()
	r := math.Sqrt(math.Max(0, 1-z*z))
	return geom.Vec3{r * math.Cos(phi), r * math.Sin(phi), z}
}
