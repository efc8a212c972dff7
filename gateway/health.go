package gateway

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// maxLatencySamples bounds the rolling latency window, matching
// connection_health_monitor.h's MAX_LATENCY_SAMPLES.
const maxLatencySamples = 10

// HealthCheckConfig parameterizes a HealthMonitor, ported from
// original_source/resilience/connection_health_monitor.h's
// health_check_config.
type HealthCheckConfig struct {
	HeartbeatInterval time.Duration
	Timeout           time.Duration
	FailureThreshold  int
	MinHealthScore    int
	EnableHeartbeat   bool
}

// DefaultHealthCheckConfig mirrors the C++ defaults.
func DefaultHealthCheckConfig() HealthCheckConfig {
	return HealthCheckConfig{
		HeartbeatInterval: 5 * time.Second,
		Timeout:           2 * time.Second,
		FailureThreshold:  3,
		MinHealthScore:    50,
		EnableHeartbeat:   true,
	}
}

// HealthStatus is the plain-data snapshot described in spec.md §3.
type HealthStatus struct {
	Healthy           bool
	Score             int
	Latency           time.Duration
	SuccessfulQueries int64
	FailedQueries     int64
	LastCheckTime     time.Time
	Message           string
}

// SuccessRate returns SuccessfulQueries / (SuccessfulQueries+FailedQueries).
func (s HealthStatus) SuccessRate() float64 {
	total := s.SuccessfulQueries + s.FailedQueries
	if total == 0 {
		return 0
	}
	return float64(s.SuccessfulQueries) / float64(total)
}

// Prober is the opaque liveness probe a HealthMonitor runs on its
// heartbeat cadence (e.g. "SELECT 1" on the wrapped backend).
type Prober func(ctx context.Context) error

// HealthMonitor runs a cooperative heartbeat loop for one resilient
// connection, tracking consecutive successes/failures and a rolling
// health score. Grounded on
// original_source/resilience/connection_health_monitor.h.
type HealthMonitor struct {
	config HealthCheckConfig
	prober Prober
	log    *zap.SugaredLogger

	isMonitoring   atomic.Bool
	stopRequested  atomic.Bool

	mu                  sync.Mutex
	current             HealthStatus
	latencyHistory      []time.Duration
	connectionStartTime time.Time

	totalQueries        atomic.Int64
	successfulQueries   atomic.Int64
	failedQueries       atomic.Int64
	consecutiveFailures atomic.Int64
	consecutiveSuccesses atomic.Int64

	stopped chan struct{}
}

// NewHealthMonitor builds a HealthMonitor. prober may be nil if the
// owning ResilientConnection disables heartbeats (config.EnableHeartbeat
// == false); it must be non-nil otherwise.
func NewHealthMonitor(config HealthCheckConfig, prober Prober, log *zap.SugaredLogger) *HealthMonitor {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &HealthMonitor{
		config:              config,
		prober:              prober,
		log:                 log,
		connectionStartTime: time.Now(),
		current:             HealthStatus{Healthy: true, Score: 100},
	}
}

// StartMonitoring launches the heartbeat loop in a new goroutine. It is
// a no-op if heartbeats are disabled or monitoring is already running.
func (h *HealthMonitor) StartMonitoring(ctx context.Context) {
	if !h.config.EnableHeartbeat || !h.isMonitoring.CompareAndSwap(false, true) {
		return
	}
	h.stopRequested.Store(false)
	h.stopped = make(chan struct{})
	go h.monitoringLoop(ctx)
}

// StopMonitoring requests the loop stop and joins it with a 5s cap, the
// same bound spec.md §4.4 requires ("stop() sets the flag and joins with
// a 5 s wait cap").
func (h *HealthMonitor) StopMonitoring() {
	if !h.isMonitoring.Load() {
		return
	}
	h.stopRequested.Store(true)
	select {
	case <-h.stopped:
	case <-time.After(5 * time.Second):
		h.log.Warnw("health monitor stop exceeded join cap")
	}
}

// monitoringLoop polls the stop flag at <=100ms granularity between
// heartbeat_interval probes, per spec.md §4.4.
func (h *HealthMonitor) monitoringLoop(ctx context.Context) {
	defer func() {
		h.isMonitoring.Store(false)
		close(h.stopped)
	}()

	const pollGranularity = 100 * time.Millisecond
	ticker := time.NewTicker(minDuration(pollGranularity, h.config.HeartbeatInterval))
	defer ticker.Stop()

	var elapsed time.Duration
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if h.stopRequested.Load() {
				return
			}
			elapsed += pollGranularity
			if elapsed < h.config.HeartbeatInterval {
				continue
			}
			elapsed = 0
			h.executeHeartbeat(ctx)
		}
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func (h *HealthMonitor) executeHeartbeat(ctx context.Context) {
	if h.prober == nil {
		return
	}
	probeCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	start := time.Now()
	err := h.prober(probeCtx)
	latency := time.Since(start)
	if err != nil {
		h.RecordFailure(err.Error())
		return
	}
	h.RecordSuccess(latency)
}

// RecordSuccess feeds one successful operation (heartbeat or user query)
// into the rolling statistics and recomputes the health score.
func (h *HealthMonitor) RecordSuccess(latency time.Duration) {
	h.totalQueries.Add(1)
	h.successfulQueries.Add(1)
	h.consecutiveSuccesses.Add(1)
	h.consecutiveFailures.Store(0)

	h.mu.Lock()
	h.latencyHistory = append(h.latencyHistory, latency)
	if len(h.latencyHistory) > maxLatencySamples {
		h.latencyHistory = h.latencyHistory[len(h.latencyHistory)-maxLatencySamples:]
	}
	h.recomputeLocked(latency, "")
	h.mu.Unlock()
}

// RecordFailure feeds one failed operation into the rolling statistics.
func (h *HealthMonitor) RecordFailure(msg string) {
	h.totalQueries.Add(1)
	h.failedQueries.Add(1)
	h.consecutiveFailures.Add(1)
	h.consecutiveSuccesses.Store(0)

	h.mu.Lock()
	h.recomputeLocked(0, msg)
	h.mu.Unlock()
}

// recomputeLocked implements the health score formula in spec.md §4.4.
// Caller must hold h.mu.
func (h *HealthMonitor) recomputeLocked(latestLatency time.Duration, failMsg string) {
	total := h.totalQueries.Load()
	successful := h.successfulQueries.Load()
	consecFail := h.consecutiveFailures.Load()
	consecSucc := h.consecutiveSuccesses.Load()

	successScore := 40.0 * float64(successful) / float64(maxInt64(1, total))

	avgLatency := h.averageLatencyLocked()
	var latencyScore float64
	switch {
	case avgLatency < 10*time.Millisecond:
		latencyScore = 30
	case avgLatency < 50*time.Millisecond:
		latencyScore = 25
	case avgLatency < 100*time.Millisecond:
		latencyScore = 15
	default:
		latencyScore = 5
	}

	streakScore := 2.0 * float64(minInt64(consecSucc, 10))
	uptimeMinutes := time.Since(h.connectionStartTime).Minutes()
	uptimeScore := uptimeMinutes / 6
	if uptimeScore > 10 {
		uptimeScore = 10
	}
	penalty := 10.0 * float64(consecFail)

	score := successScore + latencyScore + streakScore + uptimeScore - penalty
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	msg := failMsg
	if msg == "" && consecFail == 0 {
		msg = "healthy"
	}
	h.current = HealthStatus{
		Healthy:           h.isHealthyLocked(int(score)),
		Score:             int(score),
		Latency:           latestLatency,
		SuccessfulQueries: successful,
		FailedQueries:     h.failedQueries.Load(),
		LastCheckTime:     time.Now(),
		Message:           msg,
	}
}

func (h *HealthMonitor) isHealthyLocked(score int) bool {
	return int(h.consecutiveFailures.Load()) < h.config.FailureThreshold && score >= h.config.MinHealthScore
}

func (h *HealthMonitor) averageLatencyLocked() time.Duration {
	if len(h.latencyHistory) == 0 {
		return 0
	}
	var sum time.Duration
	for _, l := range h.latencyHistory {
		sum += l
	}
	return sum / time.Duration(len(h.latencyHistory))
}

// GetHealthStatus returns a copy of the current status.
func (h *HealthMonitor) GetHealthStatus() HealthStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// IsHealthy reports the current health verdict.
func (h *HealthMonitor) IsHealthy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current.Healthy
}

// GetHealthScore returns the current 0..100 score.
func (h *HealthMonitor) GetHealthScore() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current.Score
}

// PredictFailure is the advisory predictive signal from spec.md §4.4,
// restored from original_source's connection_health_monitor::predict_failure
// per SPEC_FULL.md's supplemented-features section.
func (h *HealthMonitor) PredictFailure() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	consecFail := h.consecutiveFailures.Load()
	if int(consecFail) >= h.config.FailureThreshold-1 {
		return true
	}
	if h.current.Score < 60 {
		return true
	}
	if len(h.latencyHistory) == 0 {
		return false
	}
	avg := h.averageLatencyLocked()
	recent := h.latencyHistory[len(h.latencyHistory)-1]
	return avg > 0 && recent > 2*avg
}

// ResetStatistics clears all counters and history, restarting the
// uptime clock.
func (h *HealthMonitor) ResetStatistics() {
	h.totalQueries.Store(0)
	h.successfulQueries.Store(0)
	h.failedQueries.Store(0)
	h.consecutiveFailures.Store(0)
	h.consecutiveSuccesses.Store(0)

	h.mu.Lock()
	h.latencyHistory = nil
	h.connectionStartTime = time.Now()
	h.current = HealthStatus{Healthy: true, Score: 100}
	h.mu.Unlock()
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
