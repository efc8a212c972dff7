package gateway

import "sync/atomic"

// CacheMetrics holds the query cache's counters, ported from
// original_source/gateway/query_cache.h's cache_metrics struct. Every
// field is a lock-free atomic, matching the query cache's "metrics
// counters are lock-free atomics and may be updated without the cache
// lock" rule in spec.md §5.
type CacheMetrics struct {
	hits             atomic.Int64
	misses           atomic.Int64
	evictions        atomic.Int64
	expirations      atomic.Int64
	invalidations    atomic.Int64
	puts             atomic.Int64
	skippedTooLarge  atomic.Int64
}

func (m *CacheMetrics) recordHit()            { m.hits.Add(1) }
func (m *CacheMetrics) recordMiss()           { m.misses.Add(1) }
func (m *CacheMetrics) recordEviction()       { m.evictions.Add(1) }
func (m *CacheMetrics) recordExpiration()     { m.expirations.Add(1) }
func (m *CacheMetrics) recordInvalidations(n int) {
	if n > 0 {
		m.invalidations.Add(int64(n))
	}
}
func (m *CacheMetrics) recordPut()            { m.puts.Add(1) }
func (m *CacheMetrics) recordSkippedTooLarge() { m.skippedTooLarge.Add(1) }

// HitRate returns hits / (hits+misses), or 0 with no traffic.
func (m *CacheMetrics) HitRate() float64 {
	hits := m.hits.Load()
	misses := m.misses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// CacheMetricsSnapshot is a plain-data copy for external export.
type CacheMetricsSnapshot struct {
	Hits            int64
	Misses          int64
	Evictions       int64
	Expirations     int64
	Invalidations   int64
	Puts            int64
	SkippedTooLarge int64
	HitRate         float64
}

// Snapshot returns a plain-data copy of the current counters.
func (m *CacheMetrics) Snapshot() CacheMetricsSnapshot {
	return CacheMetricsSnapshot{
		Hits:            m.hits.Load(),
		Misses:          m.misses.Load(),
		Evictions:       m.evictions.Load(),
		Expirations:     m.expirations.Load(),
		Invalidations:   m.invalidations.Load(),
		Puts:            m.puts.Load(),
		SkippedTooLarge: m.skippedTooLarge.Load(),
		HitRate:         m.HitRate(),
	}
}

// Reset zeroes every counter.
func (m *CacheMetrics) Reset() {
	m.hits.Store(0)
	m.misses.Store(0)
	m.evictions.Store(0)
	m.expirations.Store(0)
	m.invalidations.Store(0)
	m.puts.Store(0)
	m.skippedTooLarge.Store(0)
}
