package gateway

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/lordbasex/dbgateway/internal/wire"
)

// RouterConfig parameterizes the Router (spec.md §4.10, ported from
// original_source/gateway/query_router.h's router_config).
type RouterConfig struct {
	DefaultTimeout      time.Duration
	MaxConcurrentQueries int
	EnableMetrics       bool
}

// DefaultRouterConfig mirrors the C++ defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		DefaultTimeout:       30 * time.Second,
		MaxConcurrentQueries: 100,
		EnableMetrics:        true,
	}
}

// RouterMetrics are the router's own counters (spec.md §4.10), separate
// from PoolMetrics and CacheMetrics.
type RouterMetrics struct {
	totalQueries       atomic.Int64
	successfulQueries  atomic.Int64
	failedQueries      atomic.Int64
	timeoutQueries     atomic.Int64
	totalExecutionUS   atomic.Int64
}

// RouterMetricsSnapshot is a plain-data copy for external export.
type RouterMetricsSnapshot struct {
	TotalQueries            int64
	SuccessfulQueries       int64
	FailedQueries           int64
	TimeoutQueries          int64
	AverageExecutionTimeUS  float64
	SuccessRate             float64
}

func (m *RouterMetrics) snapshot() RouterMetricsSnapshot {
	total := m.totalQueries.Load()
	var avg, successRate float64
	if total > 0 {
		avg = float64(m.totalExecutionUS.Load()) / float64(total)
		successRate = float64(m.successfulQueries.Load()) / float64(total)
	}
	return RouterMetricsSnapshot{
		TotalQueries:           total,
		SuccessfulQueries:      m.successfulQueries.Load(),
		FailedQueries:          m.failedQueries.Load(),
		TimeoutQueries:         m.timeoutQueries.Load(),
		AverageExecutionTimeUS: avg,
		SuccessRate:            successRate,
	}
}

// Router is the end-to-end execute path: classify, assign priority,
// acquire a connection, dispatch to a handler, record metrics, release.
// The cache is consulted by the SELECT handler after the connection is
// leased, so a cache hit still holds a connection while it is served.
// Grounded on
// original_source/gateway/query_router.h (public contract) and
// spec.md §4.10/§4.11.
type Router struct {
	pool     *PoolFacade
	cache    *Cache
	handlers *HandlerSet
	config   RouterConfig
	metrics  RouterMetrics
	log      *zap.SugaredLogger
}

// NewRouter constructs a Router. pool is required; cache may be nil to
// disable caching outright (distinct from CacheConfig.Enabled=false,
// which still allocates the structures).
func NewRouter(pool *PoolFacade, cache *Cache, handlers *HandlerSet, config RouterConfig, log *zap.SugaredLogger) *Router {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Router{pool: pool, cache: cache, handlers: handlers, config: config, log: log}
}

// Ready reports whether the router has a bound pool, restored from
// original_source's query_router::is_ready per SPEC_FULL.md.
func (r *Router) Ready() bool {
	return r.pool != nil
}

// Execute implements spec.md §4.10's execute(request) -> response.
func (r *Router) Execute(ctx context.Context, req wire.QueryRequest) wire.QueryResponse {
	if !r.Ready() {
		return errorResponse(req, wire.StatusError, ErrRouterNotReady.Error())
	}

	start := time.Now()
	r.metrics.totalQueries.Add(1)

	prio := PriorityFor(req)
	timeout := req.Options.Timeout(r.config.DefaultTimeout)
	acquireCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := r.pool.Acquire(acquireCtx, prio)
	if err != nil {
		elapsed := time.Since(start)
		r.metrics.totalExecutionUS.Add(elapsed.Microseconds())
		if acquireCtx.Err() != nil {
			r.metrics.timeoutQueries.Add(1)
			return errorResponse(req, wire.StatusTimeout, fmt.Sprintf("acquire timed out after %s", timeout))
		}
		r.metrics.failedQueries.Add(1)
		return errorResponse(req, statusForError(err), err.Error())
	}
	defer r.pool.Release(conn)

	resp := r.handlers.Dispatch(ctx, conn, req, r.cache)
	resp.DurationUS = time.Since(start).Microseconds()
	r.metrics.totalExecutionUS.Add(resp.DurationUS)

	if resp.Status == wire.StatusOK {
		r.metrics.successfulQueries.Add(1)
	} else if resp.Status == wire.StatusTimeout {
		r.metrics.timeoutQueries.Add(1)
	} else {
		r.metrics.failedQueries.Add(1)
	}
	return resp
}

// ExecuteAsync runs Execute on a new goroutine and invokes callback with
// the result; there is no pluggable executor. No ordering is guaranteed
// between concurrent async requests (spec.md §4.10).
func (r *Router) ExecuteAsync(ctx context.Context, req wire.QueryRequest, callback func(wire.QueryResponse)) {
	go func() {
		callback(r.Execute(ctx, req))
	}()
}

// Metrics returns a plain-data snapshot of the router's counters.
func (r *Router) Metrics() RouterMetricsSnapshot { return r.metrics.snapshot() }

func errorResponse(req wire.QueryRequest, status wire.StatusCode, msg string) wire.QueryResponse {
	return wire.QueryResponse{
		CorrelationID: req.ID,
		Status:        status,
		ErrorMessage:  msg,
	}
}
