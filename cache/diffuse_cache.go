package cache

import (
	"github.com/cwbudde/gosound/band"
	"github.com/cwbudde/gosound/geom"
)

// DiffuseRecord is a running-sum accumulation of a diffuse path's
// contributions across frames (spec §4.5 "Diffuse path cache").
type DiffuseRecord struct {
	Hash             uint64
	RaysThisWindow   int
	TotalRays        int
	Energy           band.Response
	DirSum           geom.Vec3
	SourceDirSum     geom.Vec3
	DistanceSum      float64
	ClosingSpeedSum  float64
	LastSeen         uint64
}

// MeanDistance returns the mean path distance recorded so far.
func (r DiffuseRecord) MeanDistance() float64 {
	if r.TotalRays == 0 {
		return 0
	}
	return r.DistanceSum / float64(r.TotalRays)
}

// MeanClosingSpeed returns the mean closing speed recorded so far.
func (r DiffuseRecord) MeanClosingSpeed() float64 {
	if r.TotalRays == 0 {
		return 0
	}
	return r.ClosingSpeedSum / float64(r.TotalRays)
}

// DiffuseCache is the diffuse-path cache: hash -> running sum record,
// open-chained and rehashed under the same discipline as PathCache.
type DiffuseCache struct {
	bands      *band.Bands
	buckets    [][]DiffuseRecord
	loadFactor float64
	entries    int
}

// NewDiffuseCache builds a diffuse-path cache over the given band layout.
func NewDiffuseCache(bands *band.Bands, initialBuckets int, loadFactor float64) *DiffuseCache {
	if initialBuckets < 1 {
		initialBuckets = 1
	}
	if loadFactor <= 0 {
		loadFactor = defaultLoadFactor
	}
	return &DiffuseCache{bands: bands, buckets: make([][]DiffuseRecord, initialBuckets), loadFactor: loadFactor}
}

func (c *DiffuseCache) bucketIndex(h uint64) int {
	return int(h % uint64(len(c.buckets)))
}

// AddContribution finds or inserts hash's record and accumulates one
// frame's contribution into it.
func (c *DiffuseCache) AddContribution(hash uint64, energy band.Response, dir, srcDir geom.Vec3, distance, closingSpeed float64, timestamp uint64) {
	idx := c.bucketIndex(hash)
	bucket := c.buckets[idx]
	for i := range bucket {
		if bucket[i].Hash == hash {
			bucket[i].RaysThisWindow++
			bucket[i].TotalRays++
			bucket[i].Energy = bucket[i].Energy.Add(energy)
			bucket[i].DirSum = bucket[i].DirSum.Add(dir)
			bucket[i].SourceDirSum = bucket[i].SourceDirSum.Add(srcDir)
			bucket[i].DistanceSum += distance
			bucket[i].ClosingSpeedSum += closingSpeed
			bucket[i].LastSeen = timestamp
			return
		}
	}
	c.buckets[idx] = append(bucket, DiffuseRecord{
		Hash: hash, RaysThisWindow: 1, TotalRays: 1,
		Energy: energy, DirSum: dir, SourceDirSum: srcDir,
		DistanceSum: distance, ClosingSpeedSum: closingSpeed, LastSeen: timestamp,
	})
	c.entries++
	c.maybeRehash()
}

// Lookup returns hash's record and whether it exists.
func (c *DiffuseCache) Lookup(hash uint64) (DiffuseRecord, bool) {
	bucket := c.buckets[c.bucketIndex(hash)]
	for _, r := range bucket {
		if r.Hash == hash {
			return r, true
		}
	}
	return DiffuseRecord{}, false
}

// Merge sums record-wise for matching hashes, inserting hashes absent
// from c.
func (c *DiffuseCache) Merge(other *DiffuseCache) {
	for _, bucket := range other.buckets {
		for _, r := range bucket {
			idx := c.bucketIndex(r.Hash)
			found := false
			for i := range c.buckets[idx] {
				if c.buckets[idx][i].Hash == r.Hash {
					c.buckets[idx][i].RaysThisWindow += r.RaysThisWindow
					c.buckets[idx][i].TotalRays += r.TotalRays
					c.buckets[idx][i].Energy = c.buckets[idx][i].Energy.Add(r.Energy)
					c.buckets[idx][i].DirSum = c.buckets[idx][i].DirSum.Add(r.DirSum)
					c.buckets[idx][i].SourceDirSum = c.buckets[idx][i].SourceDirSum.Add(r.SourceDirSum)
					c.buckets[idx][i].DistanceSum += r.DistanceSum
					c.buckets[idx][i].ClosingSpeedSum += r.ClosingSpeedSum
					if r.LastSeen > c.buckets[idx][i].LastSeen {
						c.buckets[idx][i].LastSeen = r.LastSeen
					}
					found = true
					break
				}
			}
			if !found {
				c.buckets[idx] = append(c.buckets[idx], r)
				c.entries++
			}
		}
	}
	c.maybeRehash()
}

// ResetWindow zeroes the this-frame-window ray count of every record,
// called once per frame after the window has been consumed.
func (c *DiffuseCache) ResetWindow() {
	for _, bucket := range c.buckets {
		for i := range bucket {
			bucket[i].RaysThisWindow = 0
		}
	}
}

func (c *DiffuseCache) maybeRehash() {
	if float64(c.entries) <= c.loadFactor*float64(len(c.buckets)) {
		return
	}
	newCount := nextPow2Prime(int(float64(c.entries) / c.loadFactor))
	newBuckets := make([][]DiffuseRecord, newCount)
	for _, bucket := range c.buckets {
		for _, r := range bucket {
			idx := int(r.Hash % uint64(newCount))
			newBuckets[idx] = append(newBuckets[idx], r)
		}
	}
	c.buckets = newBuckets
}

// Entries returns the number of distinct hashes currently tracked.
func (c *DiffuseCache) Entries() int { return c.entries }
