// Package cache implements the persistent per-(listener,source) caches:
// sound-path identity, diffuse-path running sums, visibility, and IR
// temporal blend (spec §4.5, §4.10).
package cache

import (
	"github.com/cwbudde/gosound/soundpath"
)

const defaultLoadFactor = 1.0

type pathEntry struct {
	id       soundpath.PathID
	lastSeen uint64
}

// PathCache is the sound-path cache: a hash table of path ID -> last-seen
// timestamp, open-chained per bucket, rehashing to the next
// power-of-two prime when the load factor is exceeded.
type PathCache struct {
	buckets    [][]pathEntry
	loadFactor float64
	entries    int
}

// NewPathCache builds a sound-path cache with the given initial bucket
// count and load-factor threshold.
func NewPathCache(initialBuckets int, loadFactor float64) *PathCache {
	if initialBuckets < 1 {
		initialBuckets = 1
	}
	if loadFactor <= 0 {
		loadFactor = defaultLoadFactor
	}
	return &PathCache{buckets: make([][]pathEntry, initialBuckets), loadFactor: loadFactor}
}

func (c *PathCache) bucketIndex(h uint64) int {
	return int(h % uint64(len(c.buckets)))
}

// ContainsPath linearly scans id's bucket for an exact match.
func (c *PathCache) ContainsPath(id soundpath.PathID) bool {
	bucket := c.buckets[c.bucketIndex(id.Hash())]
	for _, e := range bucket {
		if e.id.Equal(id) {
			return true
		}
	}
	return false
}

// AddPath inserts id with the given timestamp, or refreshes its timestamp
// if already present. Returns true iff this is a newly-seen path.
func (c *PathCache) AddPath(id soundpath.PathID, timestamp uint64) bool {
	h := id.Hash()
	idx := c.bucketIndex(h)
	bucket := c.buckets[idx]
	for i, e := range bucket {
		if e.id.Equal(id) {
			bucket[i].lastSeen = timestamp
			return false
		}
	}
	c.buckets[idx] = append(bucket, pathEntry{id: id, lastSeen: timestamp})
	c.entries++
	c.maybeRehash()
	return true
}

// RemoveOlderThan evicts entries whose last-seen timestamp is more than
// maxAge frames behind now — paths that were not re-validated this frame
// or beyond (spec §4.6, "entries older than a frame-age threshold without
// successful revalidation are evicted").
func (c *PathCache) RemoveOlderThan(now, maxAge uint64) {
	for bi, bucket := range c.buckets {
		kept := bucket[:0]
		for _, e := range bucket {
			if now-e.lastSeen <= maxAge {
				kept = append(kept, e)
			} else {
				c.entries--
			}
		}
		c.buckets[bi] = kept
	}
}

func (c *PathCache) maybeRehash() {
	if float64(c.entries) <= c.loadFactor*float64(len(c.buckets)) {
		return
	}
	newCount := nextPow2Prime(int(float64(c.entries) / c.loadFactor))
	newBuckets := make([][]pathEntry, newCount)
	for _, bucket := range c.buckets {
		for _, e := range bucket {
			idx := int(e.id.Hash() % uint64(newCount))
			newBuckets[idx] = append(newBuckets[idx], e)
		}
	}
	c.buckets = newBuckets
}

// Entries returns the number of distinct paths currently tracked.
func (c *PathCache) Entries() int { return c.entries }

// Buckets returns the current bucket count.
func (c *PathCache) Buckets() int { return len(c.buckets) }
