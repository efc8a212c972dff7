package cache

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/lordbasex/dbgateway/internal/wire"
)

// These tests cover only the pure, network-free logic in this package:
// key namespacing and the gob payload round-trip. Fetch/Store/
// InvalidateTable require a live Redis instance and no in-memory Redis
// substitute (e.g. miniredis) appears anywhere in the example corpus
// this repo was grounded on, so those paths are left to integration
// testing against a real broker rather than faked here.

func TestRemoteCacheFullKeyNamespacing(t *testing.T) {
	r := &RemoteCache{namespace: "dbgateway:qc:"}
	if got := r.fullKey("abc123"); got != "dbgateway:qc:abc123" {
		t.Errorf("fullKey(%q) = %q, want %q", "abc123", got, "dbgateway:qc:abc123")
	}
}

func TestDefaultRemoteCacheConfig(t *testing.T) {
	cfg := DefaultRemoteCacheConfig()
	if cfg.Addr == "" {
		t.Error("expected a non-empty default Redis address")
	}
	if cfg.Namespace == "" {
		t.Error("expected a non-empty default namespace")
	}
	if cfg.Timeout <= 0 {
		t.Error("expected a positive default timeout")
	}
}

func TestPayloadGobRoundTrip(t *testing.T) {
	p := payload{
		Response: wire.QueryResponse{
			Status: wire.StatusOK,
			Rows:   [][]wire.Cell{{{Type: wire.TypeInt64, Int: 7}}},
		},
		Tables: []string{"users", "orders"},
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		t.Fatalf("encode: %v", err)
	}

	var got payload
	if err := gob.NewDecoder(&buf).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Response.Status != wire.StatusOK {
		t.Errorf("decoded Status = %v, want StatusOK", got.Response.Status)
	}
	if len(got.Tables) != 2 || got.Tables[0] != "users" || got.Tables[1] != "orders" {
		t.Errorf("decoded Tables = %v, want [users orders]", got.Tables)
	}
	if len(got.Response.Rows) != 1 || got.Response.Rows[0][0].Int != 7 {
		t.Errorf("decoded Rows = %v, want one row with Int=7", got.Response.Rows)
	}
}

func TestNewRemoteCacheAppliesDefaultLogger(t *testing.T) {
	rc := NewRemoteCache(DefaultRemoteCacheConfig(), nil)
	if rc.log == nil {
		t.Error("expected NewRemoteCache to install a no-op logger when none is given")
	}
}
