// Package provcache is a small in-memory cache of parsed destination-file
// provenance, adapted from the teacher's internal/cache.MemoryCache
// (ristretto-backed) wrapper. A burst of batches targeting the same URI —
// common when a file manager queues the same folder under several
// flavors in quick succession — would otherwise re-parse the same PNG tEXt
// chunks from disk on every cache-hit probe; this cache short-circuits
// that at the cost of a bounded amount of memory and staleness equal to
// its TTL.
//
// A miss here is never a correctness problem: callers fall back to
// reading the destination file straight off disk, so this cache only ever
// makes the warm path faster, never the source of truth.
package provcache

import (
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/zopieux/rthumbd/internal/fsmeta"
)

// Cache holds recently-parsed fsmeta.FsMeta keyed by destination file path.
type Cache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

// New creates a provenance cache. maxItems bounds roughly how many
// destination paths are tracked at once; ttl bounds how stale a cached
// entry may be before callers start hitting disk again. A ttl of 0 means
// entries never expire and leave only through eviction or Invalidate.
func New(maxItems int64, ttl time.Duration) (*Cache, error) {
	if maxItems <= 0 {
		maxItems = 4096
	}
	rc, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxItems * 10,
		MaxCost:     maxItems,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{cache: rc, ttl: ttl}, nil
}

// Get returns the cached provenance for destPath, if present and unexpired.
func (c *Cache) Get(destPath string) (fsmeta.FsMeta, bool) {
	v, ok := c.cache.Get(destPath)
	if !ok {
		return fsmeta.FsMeta{}, false
	}
	meta, ok := v.(fsmeta.FsMeta)
	return meta, ok
}

// Set records the provenance just read from destPath, cost 1 per entry
// since we're bounding item count, not byte size.
func (c *Cache) Set(destPath string, meta fsmeta.FsMeta) {
	c.cache.SetWithTTL(destPath, meta, 1, c.ttl)
}

// Invalidate drops any cached entry for destPath, used after a provider
// rewrites the destination so a stale hit can't outlive the file it
// describes.
func (c *Cache) Invalidate(destPath string) {
	c.cache.Del(destPath)
}

// Close releases the underlying cache's background goroutines.
func (c *Cache) Close() {
	c.cache.Close()
}
