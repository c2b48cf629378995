package engine

import (
	"sync/atomic"
	"time"
)

// CacheStats is a point-in-time snapshot of result cache counters.
type CacheStats struct {
	// Enabled reports whether caching is active.
	Enabled bool `json:"enabled"`

	// Size is the current number of cached entries.
	Size int `json:"size"`

	// MaxEntries is the configured cache ceiling.
	MaxEntries int `json:"max_entries"`

	// Hits is the cumulative cache hit count.
	Hits int64 `json:"hits"`

	// Misses is the cumulative cache miss count.
	Misses int64 `json:"misses"`

	// Lookups is Hits + Misses.
	Lookups int64 `json:"lookups"`

	// HitRatio is Hits/Lookups, 0 when no lookups have happened.
	HitRatio float64 `json:"hit_ratio"`

	// Evictions is the cumulative count of evicted entries.
	Evictions int64 `json:"evictions"`

	// Corruptions is the cumulative count of entries dropped because they
	// did not match the batch that looked them up.
	Corruptions int64 `json:"corruptions"`
}

// cacheEntry is an immutable cached batch output. Entries are evicted
// wholesale, never mutated.
type cacheEntry struct {
	fingerprint   Fingerprint
	operationKeys []string
	artifacts     []Artifact
	storedAt      time.Time
}

// resultCache memoizes batch artifacts keyed by fingerprint with FIFO
// eviction. The entry map and insertion order are owned by the coordinating
// goroutine and must never be touched from workers; flags and counters are
// atomics so stats snapshots are safe from any goroutine.
type resultCache struct {
	entries map[Fingerprint]*cacheEntry
	order   []Fingerprint

	enabled     atomic.Bool
	maxEntries  atomic.Int64
	size        atomic.Int64
	hits        atomic.Int64
	misses      atomic.Int64
	evictions   atomic.Int64
	corruptions atomic.Int64
}

func newResultCache(maxEntries int, enabled bool) *resultCache {
	c := &resultCache{
		entries: make(map[Fingerprint]*cacheEntry),
	}
	c.enabled.Store(enabled)
	c.maxEntries.Store(int64(maxEntries))
	return c
}

// Lookup returns the cached artifacts for the given operations, if present.
// An entry whose recorded operation keys do not match the batch is treated
// as corrupted: it is dropped, counted, reported through the corrupted
// return, and treated as a miss so the batch is recomputed.
func (c *resultCache) Lookup(operations []Operation) (artifacts []Artifact, fp Fingerprint, hit, corrupted bool) {
	fp = FingerprintOperations(operations)
	if !c.enabled.Load() {
		return nil, fp, false, false
	}

	entry, ok := c.entries[fp]
	if !ok {
		c.misses.Add(1)
		return nil, fp, false, false
	}

	if !entry.matches(operations) {
		c.removeEntry(fp)
		c.corruptions.Add(1)
		c.misses.Add(1)
		return nil, fp, false, true
	}

	c.hits.Add(1)
	artifacts = make([]Artifact, len(entry.artifacts))
	copy(artifacts, entry.artifacts)
	return artifacts, fp, true, false
}

// Store records a batch output under its fingerprint, evicting
// oldest-inserted entries when the ceiling is exceeded.
func (c *resultCache) Store(fp Fingerprint, operations []Operation, artifacts []Artifact) {
	if !c.enabled.Load() {
		return
	}
	if _, exists := c.entries[fp]; exists {
		return
	}

	c.entries[fp] = &cacheEntry{
		fingerprint:   fp,
		operationKeys: operationKeys(operations),
		artifacts:     artifacts,
		storedAt:      time.Now(),
	}
	c.order = append(c.order, fp)
	c.size.Store(int64(len(c.entries)))

	if limit := int(c.maxEntries.Load()); len(c.entries) > limit {
		c.EvictOldest(limit)
	}
}

// EvictOldest removes oldest-inserted entries until at most keep remain.
// Returns the number of entries evicted.
func (c *resultCache) EvictOldest(keep int) int {
	if keep < 0 {
		keep = 0
	}
	evicted := 0
	for len(c.order) > keep {
		fp := c.order[0]
		c.order = c.order[1:]
		if _, ok := c.entries[fp]; ok {
			delete(c.entries, fp)
			evicted++
		}
	}
	if evicted > 0 {
		c.evictions.Add(int64(evicted))
		c.size.Store(int64(len(c.entries)))
	}
	return evicted
}

// Clear drops every entry. Counters are preserved.
func (c *resultCache) Clear() {
	c.entries = make(map[Fingerprint]*cacheEntry)
	c.order = nil
	c.size.Store(0)
}

// Stats returns a snapshot of the cache counters. Safe to call from any
// goroutine.
func (c *resultCache) Stats() CacheStats {
	hits := c.hits.Load()
	misses := c.misses.Load()
	lookups := hits + misses

	var ratio float64
	if lookups > 0 {
		ratio = float64(hits) / float64(lookups)
	}

	return CacheStats{
		Enabled:     c.enabled.Load(),
		Size:        int(c.size.Load()),
		MaxEntries:  int(c.maxEntries.Load()),
		Hits:        hits,
		Misses:      misses,
		Lookups:     lookups,
		HitRatio:    ratio,
		Evictions:   c.evictions.Load(),
		Corruptions: c.corruptions.Load(),
	}
}

// removeEntry deletes a single entry and its order slot.
func (c *resultCache) removeEntry(fp Fingerprint) {
	delete(c.entries, fp)
	for i, ordered := range c.order {
		if ordered == fp {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.size.Store(int64(len(c.entries)))
}

// matches verifies the entry was stored for exactly these operations.
func (e *cacheEntry) matches(operations []Operation) bool {
	if len(e.operationKeys) != len(operations) {
		return false
	}
	for i, op := range operations {
		if e.operationKeys[i] != op.Key() {
			return false
		}
	}
	return true
}
