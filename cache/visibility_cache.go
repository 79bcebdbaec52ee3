package cache

// ObjTri identifies an object-space triangle: the owning object's index in
// the scene's enabled-object list plus its local triangle index.
type ObjTri struct {
	Object   uint32
	Triangle uint32
}

type visEntry struct {
	key      ObjTri
	lastSeen uint64
}

// VisibilityCache is the triangle-visibility cache: object-space triangle
// -> last-seen frame, evicted by age rather than load factor (spec §4.5
// "Visibility cache").
type VisibilityCache struct {
	buckets    [][]visEntry
	loadFactor float64
	entries    int
}

// NewVisibilityCache builds a visibility cache with the given initial
// bucket count and load-factor threshold.
func NewVisibilityCache(initialBuckets int, loadFactor float64) *VisibilityCache {
	if initialBuckets < 1 {
		initialBuckets = 1
	}
	if loadFactor <= 0 {
		loadFactor = defaultLoadFactor
	}
	return &VisibilityCache{buckets: make([][]visEntry, initialBuckets), loadFactor: loadFactor}
}

func (c *VisibilityCache) hash(k ObjTri) uint64 {
	return uint64(k.Object)*1099511628211 + uint64(k.Triangle)
}

func (c *VisibilityCache) bucketIndex(k ObjTri) int {
	return int(c.hash(k) % uint64(len(c.buckets)))
}

// AddTriangle inserts or refreshes k's last-seen timestamp.
func (c *VisibilityCache) AddTriangle(k ObjTri, timestamp uint64) {
	idx := c.bucketIndex(k)
	bucket := c.buckets[idx]
	for i := range bucket {
		if bucket[i].key == k {
			bucket[i].lastSeen = timestamp
			return
		}
	}
	c.buckets[idx] = append(bucket, visEntry{key: k, lastSeen: timestamp})
	c.entries++
	c.maybeRehash()
}

// Contains reports whether k has been seen.
func (c *VisibilityCache) Contains(k ObjTri) bool {
	bucket := c.buckets[c.bucketIndex(k)]
	for _, e := range bucket {
		if e.key == k {
			return true
		}
	}
	return false
}

// RemoveOldTriangles evicts entries whose last-seen timestamp is more than
// maxAge frames behind now.
func (c *VisibilityCache) RemoveOldTriangles(now, maxAge uint64) {
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

func (c *VisibilityCache) maybeRehash() {
	if float64(c.entries) <= c.loadFactor*float64(len(c.buckets)) {
		return
	}
	newCount := nextPow2Prime(int(float64(c.entries) / c.loadFactor))
	newBuckets := make([][]visEntry, newCount)
	for _, bucket := range c.buckets {
		for _, e := range bucket {
			idx := int(c.hash(e.key) % uint64(newCount))
			newBuckets[idx] = append(newBuckets[idx], e)
		}
	}
	c.buckets = newBuckets
}

// Entries returns the number of distinct triangles currently tracked.
func (c *VisibilityCache) Entries() int { return c.entries }
