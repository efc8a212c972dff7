package gateway

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestResilientConn(t *testing.T, factory BackendFactory) *ResilientConnection {
	t.Helper()
	reconnect := ReconnectConfig{
		EnableAutoReconnect: true,
		InitialDelay:        1 * time.Millisecond,
		MaxDelay:            5 * time.Millisecond,
		BackoffMultiplier:   2,
		MaxRetries:          3,
	}
	health := HealthCheckConfig{EnableHeartbeat: false, FailureThreshold: 3, MinHealthScore: 0}
	rc := NewResilientConnection(factory, BackendConfig{}, reconnect, health, nil)
	if err := rc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return rc
}

func TestResilientConnectionInitializeAndSelect(t *testing.T) {
	rc := newTestResilientConn(t, newFakeBackendFactory())
	if rc.State() != StateConnected {
		t.Fatalf("State() = %v, want CONNECTED", rc.State())
	}
	res, err := rc.Select(context.Background(), "SELECT 1", nil, 0)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Errorf("expected one row, got %d", len(res.Rows))
	}
}

func TestResilientConnectionRetryCountResetsAfterSuccess(t *testing.T) {
	rc := newTestResilientConn(t, newFakeBackendFactory())
	if _, err := rc.Select(context.Background(), "SELECT 1", nil, 0); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if rc.RetryCount() != 0 {
		t.Errorf("RetryCount() = %d, want 0 after a clean operation", rc.RetryCount())
	}
}

func TestResilientConnectionTransactionNeverRetried(t *testing.T) {
	fb := &fakeBackend{failNext: 100}
	factory := func() Backend { return fb }
	rc := newTestResilientConn(t, factory)

	if err := rc.BeginTransaction(context.Background()); err != nil {
		t.Fatalf("BeginTransaction: %v", err)
	}
	// fakeBackend.Insert fails every call; inside a transaction this must
	// surface immediately with no reconnect attempt (spec.md §4.5).
	_, err := rc.Insert(context.Background(), "INSERT INTO t VALUES (1)", nil)
	if !errors.Is(err, errFakeOp) {
		t.Errorf("expected the original fake op error to surface unwrapped, got %v", err)
	}
	if rc.State() != StateConnected {
		t.Errorf("a failed in-transaction op must not change connection state, got %v", rc.State())
	}
}

func TestResilientConnectionReconnectsOnceThenRetries(t *testing.T) {
	fb := &fakeBackend{failNext: 1} // fail exactly once, then succeed
	factory := func() Backend { return fb }
	rc := newTestResilientConn(t, factory)

	res, err := rc.Select(context.Background(), "SELECT 1", nil, 0)
	if err != nil {
		t.Fatalf("expected the single failure to be masked by the retry-after-reconnect path: %v", err)
	}
	if res == nil {
		t.Fatal("expected a non-nil result after retry")
	}
}

func TestResilientConnectionMaxRetriesZeroNeverReconnects(t *testing.T) {
	fb := &fakeBackend{failNext: 1} // would succeed on retry if one were attempted
	factory := func() Backend { return fb }
	reconnect := ReconnectConfig{
		EnableAutoReconnect: true,
		InitialDelay:        1 * time.Millisecond,
		MaxDelay:            5 * time.Millisecond,
		BackoffMultiplier:   2,
		MaxRetries:          0,
	}
	health := HealthCheckConfig{EnableHeartbeat: false, FailureThreshold: 3, MinHealthScore: 0}
	rc := NewResilientConnection(factory, BackendConfig{}, reconnect, health, nil)
	if err := rc.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	_, err := rc.Select(context.Background(), "SELECT 1", nil, 0)
	if !errors.Is(err, errFakeOp) {
		t.Errorf("expected the original error with no reconnect attempt when MaxRetries=0, got %v", err)
	}
	if rc.State() != StateFailed {
		t.Errorf("State() = %v, want FAILED after the single failure exhausts MaxRetries=0", rc.State())
	}
}

func TestResilientConnectionSurfacesOriginalErrorNotReconnectError(t *testing.T) {
	fb := &fakeBackend{failNext: 100}
	factory := func() Backend { return fb }
	rc := newTestResilientConn(t, factory)

	_, err := rc.Select(context.Background(), "SELECT 1", nil, 0)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, errFakeOp) {
		t.Errorf("expected the original backend error to surface, got %v", err)
	}
}
