package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/lordbasex/dbgateway/internal/wire"
)

func newTestRouter(t *testing.T, maxConns int, cache *Cache) *Router {
	t.Helper()
	facade := newTestFacade(t, maxConns)
	return NewRouter(facade, cache, NewHandlerSet(), DefaultRouterConfig(), nil)
}

func TestRouterExecuteSelectSuccess(t *testing.T) {
	r := newTestRouter(t, 2, NewCache(CacheConfig{Enabled: true, MaxEntries: 10}))
	req := wire.QueryRequest{ID: "1", Kind: wire.KindSelect, SQL: "SELECT * FROM users"}

	resp := r.Execute(context.Background(), req)
	if resp.Status != wire.StatusOK {
		t.Fatalf("Execute status = %v, want OK", resp.Status)
	}
	if resp.DurationUS < 0 {
		t.Errorf("expected a non-negative DurationUS, got %d", resp.DurationUS)
	}
	snap := r.Metrics()
	if snap.TotalQueries != 1 || snap.SuccessfulQueries != 1 {
		t.Errorf("unexpected metrics snapshot: %+v", snap)
	}
}

func TestRouterExecuteNotReady(t *testing.T) {
	r := NewRouter(nil, nil, NewHandlerSet(), DefaultRouterConfig(), nil)
	resp := r.Execute(context.Background(), wire.QueryRequest{ID: "1", Kind: wire.KindPing})
	if resp.Status != wire.StatusError {
		t.Errorf("status = %v, want StatusError when the router has no pool bound", resp.Status)
	}
}

func TestRouterExecuteAcquireTimeoutSurfacesAsTimeout(t *testing.T) {
	cfg := testPoolConfig()
	cfg.MaxConnections = 1
	pool := newTestPool(t, newFakeBackendFactory(), cfg)
	facade := NewPoolFacade(pool, AgingConfig{Interval: time.Hour, BoostIncrement: 1, Curve: CurveLinear, MaxBoost: float64(Critical - HealthCheck), StarvationThreshold: time.Hour}, 2, nil)
	defer facade.Shutdown(context.Background())

	held, err := facade.Acquire(context.Background(), NormalQuery)
	if err != nil {
		t.Fatalf("Acquire (hold): %v", err)
	}
	defer facade.Release(held)

	routerCfg := DefaultRouterConfig()
	routerCfg.DefaultTimeout = 10 * time.Millisecond
	r := NewRouter(facade, nil, NewHandlerSet(), routerCfg, nil)

	resp := r.Execute(context.Background(), wire.QueryRequest{ID: "1", Kind: wire.KindSelect, SQL: "SELECT 1"})
	if resp.Status != wire.StatusTimeout {
		t.Errorf("status = %v, want StatusTimeout when the pool is exhausted past the request timeout", resp.Status)
	}
	snap := r.Metrics()
	if snap.TimeoutQueries != 1 {
		t.Errorf("TimeoutQueries = %d, want 1", snap.TimeoutQueries)
	}
}

func TestRouterExecuteBackendErrorBecomesError(t *testing.T) {
	cfg := testPoolConfig()
	cfg.MaxConnections = 1
	pool := newTestPool(t, func() Backend { return &fakeBackend{failNext: 100} }, cfg)
	facade := NewPoolFacade(pool, AgingConfig{Interval: time.Hour, BoostIncrement: 1, Curve: CurveLinear, MaxBoost: float64(Critical - HealthCheck), StarvationThreshold: time.Hour}, 2, nil)
	defer facade.Shutdown(context.Background())

	r := NewRouter(facade, nil, NewHandlerSet(), DefaultRouterConfig(), nil)
	resp := r.Execute(context.Background(), wire.QueryRequest{ID: "1", Kind: wire.KindSelect, SQL: "SELECT 1"})
	if resp.Status != wire.StatusError {
		t.Errorf("status = %v, want StatusError for an unclassified backend failure", resp.Status)
	}
	snap := r.Metrics()
	if snap.FailedQueries != 1 {
		t.Errorf("FailedQueries = %d, want 1", snap.FailedQueries)
	}
}

func TestRouterExecuteUsesCacheOnRepeatedSelect(t *testing.T) {
	cache := NewCache(CacheConfig{Enabled: true, MaxEntries: 10})
	r := newTestRouter(t, 1, cache)

	req := wire.QueryRequest{ID: "1", Kind: wire.KindSelect, SQL: "SELECT * FROM widgets"}
	r.Execute(context.Background(), req)
	if cache.Size() != 1 {
		t.Fatalf("expected the first select to populate the cache")
	}

	resp := r.Execute(context.Background(), req)
	if resp.Status != wire.StatusOK {
		t.Fatalf("cached re-execute status = %v, want OK", resp.Status)
	}
}

func TestRouterExecuteAsyncInvokesCallback(t *testing.T) {
	r := newTestRouter(t, 1, nil)
	done := make(chan wire.QueryResponse, 1)
	r.ExecuteAsync(context.Background(), wire.QueryRequest{ID: "1", Kind: wire.KindPing}, func(resp wire.QueryResponse) {
		done <- resp
	})

	select {
	case resp := <-done:
		if resp.Status != wire.StatusOK {
			t.Errorf("async ping status = %v, want OK", resp.Status)
		}
	case <-time.After(time.Second):
		t.Fatal("ExecuteAsync callback never fired")
	}
}
