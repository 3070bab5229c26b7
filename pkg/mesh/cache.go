package mesh

import (
	"sync"

	"volrender/internal/logging"
)

// DefaultCacheCapacity bounds the mesh cache when no capacity is given.
const DefaultCacheCapacity = 10

// Cache is a bounded mesh cache keyed by (structure set, ROI). On
// overflow it evicts the entry with the oldest creation timestamp. It is
// mutated only by the owning rendering session; the mutex guards against
// concurrent readers during eviction, not concurrent writers.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[Key]*cacheEntry
	seq      uint64
}

// cacheEntry pairs a mesh with its insertion sequence number. The
// sequence breaks ties between meshes created within the same clock
// tick; it increases monotonically with creation time.
type cacheEntry struct {
	mesh *Mesh
	seq  uint64
}

// NewCache creates a cache with the given capacity, or
// DefaultCacheCapacity when capacity <= 0.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[Key]*cacheEntry, capacity),
	}
}

// Get returns the cached mesh for key, if present.
func (c *Cache) Get(key Key) (*Mesh, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return e.mesh, true
}

// Put inserts a mesh, evicting the oldest-created entry when the cache is
// full. The cache size never exceeds its capacity.
func (c *Cache) Put(key Key, m *Mesh) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.capacity {
		c.evictOldest()
	}
	c.seq++
	c.entries[key] = &cacheEntry{mesh: m, seq: c.seq}
}

// evictOldest removes the entry with the lowest insertion sequence, which
// is the oldest creation timestamp. Caller holds the lock.
func (c *Cache) evictOldest() {
	var oldestKey Key
	var oldest *cacheEntry
	for k, e := range c.entries {
		if oldest == nil || e.seq < oldest.seq {
			oldestKey = k
			oldest = e
		}
	}
	if oldest != nil {
		delete(c.entries, oldestKey)
		logging.Logger().Debug("mesh cache evicted",
			"structure_set", oldestKey.StructureSetID, "roi", oldestKey.ROINumber)
	}
}

// Invalidate removes one entry.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]*cacheEntry, c.capacity)
}

// Len returns the number of cached meshes.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
