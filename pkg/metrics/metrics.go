// Package metrics provides performance tracking and observability for the
// ultralogi pipeline using Prometheus metrics. It covers the cache tiers
// (hits, misses, invalidations) and the heavy batch operations (precompute,
// chunk generation).
//
// # Basic Usage
//
//	// Record a result-cache hit
//	metrics.CacheHits.WithLabelValues("result").Inc()
//
//	// Track a precompute pass
//	timer := metrics.NewTimer()
//	precompute()
//	metrics.PrecomputeDuration.WithLabelValues("gpu").Observe(timer.Stop().Seconds())
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts reads served from a cache tier without touching
	// the engine. Labels: tier (result/gpu/raw/chunk).
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ultralogi_cache_hits_total",
			Help: "Total number of cache hits per tier",
		},
		[]string{"tier"},
	)

	// CacheMisses counts reads that had to fall through to the engine.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ultralogi_cache_misses_total",
			Help: "Total number of cache misses per tier",
		},
		[]string{"tier"},
	)

	// CacheInvalidations counts whole-cache invalidations of the result
	// cache, which is also the cache version delta.
	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ultralogi_cache_invalidations_total",
			Help: "Total number of result cache invalidations",
		},
	)

	// StatementsExecuted counts statements routed through the engine.
	// Labels: path (raw/cached).
	StatementsExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ultralogi_statements_executed_total",
			Help: "Total number of SQL statements executed",
		},
		[]string{"path"},
	)

	// PrecomputeDuration tracks full precompute passes.
	// Labels: variant (gpu/raw).
	PrecomputeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ultralogi_precompute_duration_seconds",
			Help:    "Duration of scalar cache precompute passes",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"variant"},
	)

	// ChunkGenerateDuration tracks full chunk regeneration passes.
	ChunkGenerateDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ultralogi_chunk_generate_duration_seconds",
			Help:    "Duration of full chunk store regeneration",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
	)

	// BufferBytes tracks the byte size of the most recently produced
	// buffer per tier.
	BufferBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ultralogi_buffer_bytes",
			Help: "Size in bytes of the last produced buffer per tier",
		},
		[]string{"tier"},
	)

	// ChunksSkipped counts malformed chunk blobs tolerated during
	// aggregation.
	ChunksSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ultralogi_chunks_skipped_total",
			Help: "Total number of malformed chunk blobs skipped",
		},
	)
)

// Timer measures the duration of a single operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed time since the timer was started.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
