package gateway

import (
	"sync"
	"sync/atomic"
)

// PoolMetrics holds the lock-free counters for the connection pool,
// ported from original_source/pooling/pool_metrics.h's pool_metrics
// struct. Every field is updated with atomics; min/max use CAS retry
// loops, matching the original's record_acquisition.
type PoolMetrics struct {
	totalAcquisitions     atomic.Int64
	successfulAcquisitions atomic.Int64
	failedAcquisitions    atomic.Int64
	timeouts              atomic.Int64
	totalWaitTimeUS       atomic.Int64
	minWaitTimeUS         atomic.Int64
	maxWaitTimeUS         atomic.Int64
	currentActive         atomic.Int64
	currentQueued         atomic.Int64
	peakActive            atomic.Int64
	peakQueued            atomic.Int64
	healthChecksPerformed atomic.Int64
	unhealthyRemoved      atomic.Int64

	priMu              sync.Mutex
	acquisitionsByPrio map[Priority]int64
	waitTimeByPrio     map[Priority]int64
}

// NewPoolMetrics returns a zeroed PoolMetrics with minWaitTimeUS
// initialized to max, mirroring the C++ struct's constructor.
func NewPoolMetrics() *PoolMetrics {
	m := &PoolMetrics{
		acquisitionsByPrio: make(map[Priority]int64),
		waitTimeByPrio:     make(map[Priority]int64),
	}
	m.minWaitTimeUS.Store(math_MaxInt64)
	return m
}

const math_MaxInt64 = 1<<63 - 1

// RecordAcquisition records a successful or failed acquisition and its
// wait time, with optional per-priority breakdown.
func (m *PoolMetrics) RecordAcquisition(success bool, waitUS int64, prio Priority) {
	m.totalAcquisitions.Add(1)
	if success {
		m.successfulAcquisitions.Add(1)
	} else {
		m.failedAcquisitions.Add(1)
	}
	m.totalWaitTimeUS.Add(waitUS)
	casMin(&m.minWaitTimeUS, waitUS)
	casMax(&m.maxWaitTimeUS, waitUS)

	m.priMu.Lock()
	m.acquisitionsByPrio[prio]++
	m.waitTimeByPrio[prio] += waitUS
	m.priMu.Unlock()
}

// RecordTimeout records an acquisition that exceeded acquire_timeout.
func (m *PoolMetrics) RecordTimeout() {
	m.totalAcquisitions.Add(1)
	m.failedAcquisitions.Add(1)
	m.timeouts.Add(1)
}

// UpdateActive adjusts the active-connection gauge and tracks its peak.
func (m *PoolMetrics) UpdateActive(delta int64) {
	v := m.currentActive.Add(delta)
	casMaxPeak(&m.peakActive, v)
}

// UpdateQueued adjusts the queued-acquisition gauge and tracks its peak.
func (m *PoolMetrics) UpdateQueued(delta int64) {
	v := m.currentQueued.Add(delta)
	casMaxPeak(&m.peakQueued, v)
}

// RecordHealthCheck increments the periodic health-check counter and,
// if the check found the connection unhealthy, the eviction counter.
func (m *PoolMetrics) RecordHealthCheck(removedUnhealthy bool) {
	m.healthChecksPerformed.Add(1)
	if removedUnhealthy {
		m.unhealthyRemoved.Add(1)
	}
}

// AverageWaitTimeUS returns total_wait_time_us / total_acquisitions, or
// 0 with no traffic.
func (m *PoolMetrics) AverageWaitTimeUS() float64 {
	total := m.totalAcquisitions.Load()
	if total == 0 {
		return 0
	}
	return float64(m.totalWaitTimeUS.Load()) / float64(total)
}

// SuccessRate returns successful_acquisitions / total_acquisitions, or 0
// with no traffic.
func (m *PoolMetrics) SuccessRate() float64 {
	total := m.totalAcquisitions.Load()
	if total == 0 {
		return 0
	}
	return float64(m.successfulAcquisitions.Load()) / float64(total)
}

// AverageWaitTimeForPriority returns the mean wait time observed for a
// given priority band, or 0 if it has never been recorded.
func (m *PoolMetrics) AverageWaitTimeForPriority(p Priority) float64 {
	m.priMu.Lock()
	defer m.priMu.Unlock()
	n := m.acquisitionsByPrio[p]
	if n == 0 {
		return 0
	}
	return float64(m.waitTimeByPrio[p]) / float64(n)
}

// PoolMetricsSnapshot is a plain-data copy suitable for external export
// (spec.md §6 "read-only snapshots ... via methods returning plain-data
// copies").
type PoolMetricsSnapshot struct {
	TotalAcquisitions      int64
	SuccessfulAcquisitions int64
	FailedAcquisitions     int64
	Timeouts               int64
	AverageWaitTimeUS      float64
	MinWaitTimeUS          int64
	MaxWaitTimeUS          int64
	CurrentActive          int64
	CurrentQueued          int64
	PeakActive             int64
	PeakQueued             int64
	HealthChecksPerformed  int64
	UnhealthyRemoved       int64
	SuccessRate            float64
}

// Snapshot returns a consistent-enough plain-data copy of the counters.
// Individual fields may be read with relaxed ordering, matching the
// atomics-throughout design in spec.md §5.
func (m *PoolMetrics) Snapshot() PoolMetricsSnapshot {
	minWait := m.minWaitTimeUS.Load()
	if minWait == math_MaxInt64 {
		minWait = 0
	}
	return PoolMetricsSnapshot{
		TotalAcquisitions:      m.totalAcquisitions.Load(),
		SuccessfulAcquisitions: m.successfulAcquisitions.Load(),
		FailedAcquisitions:     m.failedAcquisitions.Load(),
		Timeouts:               m.timeouts.Load(),
		AverageWaitTimeUS:      m.AverageWaitTimeUS(),
		MinWaitTimeUS:          minWait,
		MaxWaitTimeUS:          m.maxWaitTimeUS.Load(),
		CurrentActive:          m.currentActive.Load(),
		CurrentQueued:          m.currentQueued.Load(),
		PeakActive:             m.peakActive.Load(),
		PeakQueued:             m.peakQueued.Load(),
		HealthChecksPerformed:  m.healthChecksPerformed.Load(),
		UnhealthyRemoved:       m.unhealthyRemoved.Load(),
		SuccessRate:            m.SuccessRate(),
	}
}

// Reset zeroes every counter, matching pool_metrics::reset.
func (m *PoolMetrics) Reset() {
	m.totalAcquisitions.Store(0)
	m.successfulAcquisitions.Store(0)
	m.failedAcquisitions.Store(0)
	m.timeouts.Store(0)
	m.totalWaitTimeUS.Store(0)
	m.minWaitTimeUS.Store(math_MaxInt64)
	m.maxWaitTimeUS.Store(0)
	m.currentActive.Store(0)
	m.currentQueued.Store(0)
	m.peakActive.Store(0)
	m.peakQueued.Store(0)
	m.healthChecksPerformed.Store(0)
	m.unhealthyRemoved.Store(0)

	m.priMu.Lock()
	m.acquisitionsByPrio = make(map[Priority]int64)
	m.waitTimeByPrio = make(map[Priority]int64)
	m.priMu.Unlock()
}

func casMin(a *atomic.Int64, v int64) {
	for {
		cur := a.Load()
		if v >= cur {
			return
		}
		if a.CompareAndSwap(cur, v) {
			return
		}
	}
}

func casMax(a *atomic.Int64, v int64) {
	for {
		cur := a.Load()
		if v <= cur {
			return
		}
		if a.CompareAndSwap(cur, v) {
			return
		}
	}
}

func casMaxPeak(a *atomic.Int64, v int64) {
	for {
		cur := a.Load()
		if v <= cur {
			return
		}
		if a.CompareAndSwap(cur, v) {
			return
		}
	}
}
