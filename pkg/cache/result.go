// Package cache holds the process-memory cache tiers: the result cache
// (exact query text to materialized table) and the single-slot byte buffer
// caches refreshed by explicit precompute calls.
//
// Each cache owns its own lock and is never held concurrently with the
// engine section; callers that invalidate on write release the engine first.
package cache

import (
	"strings"
	"sync"

	"github.com/arsdragonfly/ultralogi/pkg/engine"
	"github.com/arsdragonfly/ultralogi/pkg/metrics"
)

// ResultCache maps exact query text to a materialized columnar table.
// Equality is literal string match: two semantically identical but textually
// different queries are distinct keys.
type ResultCache struct {
	mu      sync.Mutex
	entries map[string]*engine.Table
	version uint64
}

// Stats is a point-in-time snapshot of the result cache.
type Stats struct {
	Version   uint64 `json:"version"`
	Entries   int    `json:"entries"`
	TotalRows int    `json:"total_rows"`
}

// NewResultCache returns an empty result cache at version 0.
func NewResultCache() *ResultCache {
	return &ResultCache{
		entries: make(map[string]*engine.Table),
	}
}

// GetOrCompute returns a view of the cached table for query, or runs compute
// on a miss, stores the result, and returns a view of it. compute runs
// without the cache lock held, so concurrent misses may race; the last writer
// wins, which is accepted for this tier.
func (c *ResultCache) GetOrCompute(query string, compute func() (*engine.Table, error)) (*engine.Table, error) {
	c.mu.Lock()
	if t, ok := c.entries[query]; ok {
		c.mu.Unlock()
		metrics.CacheHits.WithLabelValues("result").Inc()
		return t.View(), nil
	}
	c.mu.Unlock()

	metrics.CacheMisses.WithLabelValues("result").Inc()

	t, err := compute()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[query] = t
	c.mu.Unlock()

	return t.View(), nil
}

// InvalidateAll clears every entry and advances the cache version by exactly
// one.
func (c *ResultCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*engine.Table)
	c.version++
	metrics.CacheInvalidations.Inc()
}

// Stats returns the current version, entry count, and total cached rows.
func (c *ResultCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, t := range c.entries {
		total += t.NumRows()
	}

	return Stats{
		Version:   c.version,
		Entries:   len(c.entries),
		TotalRows: total,
	}
}

// writeKeywords are the leading statement keywords that trigger whole-cache
// invalidation. The match is deliberately coarse.
var writeKeywords = []string{"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER"}

// IsWrite reports whether the statement's case-insensitive leading keyword is
// a mutating one.
func IsWrite(sqlText string) bool {
	fields := strings.Fields(sqlText)
	if len(fields) == 0 {
		return false
	}
	for _, kw := range writeKeywords {
		if strings.EqualFold(fields[0], kw) {
			return true
		}
	}
	return false
}
