package gateway

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PoolConfig bounds and times the underlying connection pool, ported
// from original_source/pooling/connection_types.h's
// connection_pool_config.
type PoolConfig struct {
	MinConnections      int
	MaxConnections      int
	AcquireTimeout      time.Duration
	IdleTimeout         time.Duration
	HealthCheckInterval time.Duration
	EnableHealthChecks  bool
}

// DefaultPoolConfig mirrors the C++ defaults (min=2, max=20).
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MinConnections:      2,
		MaxConnections:      20,
		AcquireTimeout:      5 * time.Second,
		IdleTimeout:         30 * time.Second,
		HealthCheckInterval: 60 * time.Second,
		EnableHealthChecks:  true,
	}
}

// Pool is the bounded, lazily-growing connection pool described in
// spec.md §4.6. It is the "underlying" pool the PoolFacade composes
// with the aging queue. Grounded on
// original_source/pooling/connection_types.h's connection_pool (exact
// acquire/release/health_check/shutdown semantics) and stylistically on
// the teacher's worker_pool.go (a mutex-guarded pool of resources;
// blocked Acquire callers wait on per-waiter channels, not a condvar).
type Pool struct {
	config  PoolConfig
	factory BackendFactory
	backCfg BackendConfig
	reconf  ReconnectConfig
	healthCfg HealthCheckConfig
	log     *zap.SugaredLogger
	metrics *PoolMetrics

	mu           sync.Mutex
	idle         *list.List // of *ResilientConnection, front = MRU
	total        int
	shuttingDown bool
	waiters      *list.List // of chan struct{}, one per blocked Acquire
}

// NewPool constructs a Pool. Connections are created lazily up to
// config.MaxConnections; MinConnections is not eagerly warmed (spec.md
// does not require eager warmup, only an invariant once initialized).
func NewPool(config PoolConfig, factory BackendFactory, backCfg BackendConfig, reconf ReconnectConfig, healthCfg HealthCheckConfig, metrics *PoolMetrics, log *zap.SugaredLogger) *Pool {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if metrics == nil {
		metrics = NewPoolMetrics()
	}
	p := &Pool{
		config:    config,
		factory:   factory,
		backCfg:   backCfg,
		reconf:    reconf,
		healthCfg: healthCfg,
		log:       log,
		metrics:   metrics,
		idle:      list.New(),
		waiters:   list.New(),
	}
	return p
}

// wake pops one waiter, if any, and signals it. Caller must hold p.mu.
func (p *Pool) wake() {
	if e := p.waiters.Front(); e != nil {
		p.waiters.Remove(e)
		close(e.Value.(chan struct{}))
	}
}

// wakeAll signals every current waiter. Caller must hold p.mu.
func (p *Pool) wakeAll() {
	for e := p.waiters.Front(); e != nil; e = e.Next() {
		close(e.Value.(chan struct{}))
	}
	p.waiters.Init()
}

// Acquire implements spec.md §4.6's acquire_connection state machine.
func (p *Pool) Acquire(ctx context.Context, prio Priority) (*ResilientConnection, error) {
	start := time.Now()
	p.mu.Lock()

	if p.shuttingDown {
		p.mu.Unlock()
		return nil, ErrPoolShuttingDown
	}

	if e := p.idle.Front(); e != nil {
		conn := p.idle.Remove(e).(*ResilientConnection)
		p.mu.Unlock()
		p.metrics.RecordAcquisition(true, time.Since(start).Microseconds(), prio)
		p.metrics.UpdateActive(1)
		return conn, nil
	}

	if p.total < p.config.MaxConnections {
		p.total++
		p.mu.Unlock()

		conn := NewResilientConnection(p.factory, p.backCfg, p.reconf, p.healthCfg, p.log)
		if err := conn.Initialize(ctx); err != nil {
			p.mu.Lock()
			p.total--
			p.mu.Unlock()
			// fall through to waiting, per spec.md §4.6 step 3: "On
			// creation failure, fall through to waiting."
			return p.waitForIdle(ctx, prio, start)
		}
		p.metrics.RecordAcquisition(true, time.Since(start).Microseconds(), prio)
		p.metrics.UpdateActive(1)
		return conn, nil
	}

	return p.waitForIdle(ctx, prio, start)
}

// waitForIdle blocks on a per-call waiter channel until an idle
// connection is pushed back, the pool shuts down, or the deadline
// (min of acquire_timeout and ctx) expires — spec.md §4.6 step 4.
func (p *Pool) waitForIdle(ctx context.Context, prio Priority, start time.Time) (*ResilientConnection, error) {
	deadline := start.Add(p.config.AcquireTimeout)

	for {
		p.mu.Lock()
		if p.shuttingDown {
			p.mu.Unlock()
			p.metrics.RecordAcquisition(false, time.Since(start).Microseconds(), prio)
			return nil, ErrPoolShuttingDown
		}
		if e := p.idle.Front(); e != nil {
			conn := p.idle.Remove(e).(*ResilientConnection)
			p.mu.Unlock()
			p.metrics.RecordAcquisition(true, time.Since(start).Microseconds(), prio)
			p.metrics.UpdateActive(1)
			return conn, nil
		}

		wait := time.Until(deadline)
		if wait <= 0 {
			p.mu.Unlock()
			p.metrics.RecordTimeout()
			return nil, ErrNoConnection
		}

		waiter := make(chan struct{})
		elem := p.waiters.PushBack(waiter)
		p.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-waiter:
			timer.Stop()
			// Loop around: re-check idle under the lock. Another
			// waiter may have raced us to the connection.
		case <-timer.C:
			p.mu.Lock()
			p.waiters.Remove(elem)
			p.mu.Unlock()
			p.metrics.RecordTimeout()
			return nil, ErrNoConnection
		case <-ctx.Done():
			timer.Stop()
			p.mu.Lock()
			p.waiters.Remove(elem)
			p.mu.Unlock()
			p.metrics.RecordTimeout()
			return nil, fmt.Errorf("%w: %v", ErrNoConnection, ctx.Err())
		}
	}
}

// Release implements spec.md §4.6's release_connection semantics.
func (p *Pool) Release(conn *ResilientConnection) {
	p.metrics.UpdateActive(-1)
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shuttingDown {
		p.total--
		p.wake()
		return
	}

	if conn.IsHealthy() {
		p.idle.PushFront(conn)
		p.wake()
		return
	}

	p.total--
	p.wake()
	go conn.Shutdown(context.Background())
}

// HealthCheck walks idle connections, discarding unhealthy or
// idle-timeout-exceeded ones (spec.md §4.6).
func (p *Pool) HealthCheck(ctx context.Context) {
	p.mu.Lock()
	var toDrop []*ResilientConnection
	var next *list.Element
	for e := p.idle.Front(); e != nil; e = next {
		next = e.Next()
		conn := e.Value.(*ResilientConnection)
		idleExceeded := p.config.IdleTimeout > 0 && time.Since(conn.LastUsed()) > p.config.IdleTimeout
		if !conn.IsHealthy() || idleExceeded {
			p.idle.Remove(e)
			p.total--
			toDrop = append(toDrop, conn)
		}
	}
	p.mu.Unlock()

	for _, conn := range toDrop {
		p.metrics.RecordHealthCheck(true)
		_ = conn.Shutdown(ctx)
	}
	if len(toDrop) == 0 {
		p.metrics.RecordHealthCheck(false)
	}
}

// Shutdown implements spec.md §4.6's shutdown semantics: sets the flag,
// notifies all waiters, empties the idle deque.
func (p *Pool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	p.shuttingDown = true
	var toClose []*ResilientConnection
	for e := p.idle.Front(); e != nil; e = e.Next() {
		toClose = append(toClose, e.Value.(*ResilientConnection))
	}
	p.idle.Init()
	p.wakeAll()
	p.mu.Unlock()

	for _, conn := range toClose {
		_ = conn.Shutdown(ctx)
	}
}

// ActiveConnections returns the current leased count.
func (p *Pool) ActiveConnections() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total - p.idle.Len()
}

// AvailableConnections returns the current idle count.
func (p *Pool) AvailableConnections() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idle.Len()
}

// IsShuttingDown reports whether Shutdown has been called.
func (p *Pool) IsShuttingDown() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shuttingDown
}

// Metrics returns the pool's metrics collector.
func (p *Pool) Metrics() *PoolMetrics { return p.metrics }
