package gateway

import (
	"context"
	"testing"

	"github.com/lordbasex/dbgateway/internal/wire"
)

func newConnectedTestConn(t *testing.T, fb *fakeBackend) *ResilientConnection {
	t.Helper()
	factory := func() Backend { return fb }
	return newTestResilientConn(t, factory)
}

func TestExtractTablesFindsFromJoinIntoUpdate(t *testing.T) {
	cases := map[string][]string{
		"SELECT * FROM users WHERE id = 1":                    {"users"},
		"SELECT * FROM orders o JOIN users u ON u.id = o.uid": {"orders", "users"},
		"INSERT INTO accounts (id) VALUES (1)":                {"accounts"},
		"UPDATE accounts SET balance = 0":                     {"accounts"},
		"SELECT 1":                                            nil,
	}
	for sql, want := range cases {
		got := ExtractTables(sql)
		if len(got) != len(want) {
			t.Errorf("ExtractTables(%q) = %v, want %v", sql, got, want)
			continue
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("ExtractTables(%q) = %v, want %v", sql, got, want)
				break
			}
		}
	}
}

func TestExtractTablesDedupesCaseInsensitively(t *testing.T) {
	got := ExtractTables("SELECT * FROM Users u JOIN users v ON v.id = u.id")
	if len(got) != 1 || got[0] != "users" {
		t.Errorf("expected a single deduped lowercase table name, got %v", got)
	}
}

func TestHandleSelectCachesOnMissAndServesOnHit(t *testing.T) {
	h := NewHandlerSet()
	fb := &fakeBackend{}
	conn := newConnectedTestConn(t, fb)
	cache := NewCache(CacheConfig{Enabled: true, MaxEntries: 10})

	req := wire.QueryRequest{ID: "1", Kind: wire.KindSelect, SQL: "SELECT * FROM users"}
	resp1 := h.Dispatch(context.Background(), conn, req, cache)
	if resp1.Status != wire.StatusOK {
		t.Fatalf("first dispatch status = %v, want OK", resp1.Status)
	}
	if cache.Size() != 1 {
		t.Fatalf("expected the select result to populate the cache, size=%d", cache.Size())
	}

	// Flip the backend's select result so we can tell a served response
	// apart from a freshly executed one.
	fb.mu.Lock()
	fb.selectResult = &QueryResult{
		Columns:      []wire.ColumnDescriptor{{Name: "id", TypeName: "BIGINT"}},
		Rows:         [][]wire.Cell{{{Type: wire.TypeString, Str: "flipped"}}},
		RowsAffected: 1,
	}
	fb.mu.Unlock()
	resp2 := h.Dispatch(context.Background(), conn, req, cache)
	if len(resp2.Rows) != 1 || resp2.Rows[0][0].Str != "1" {
		t.Errorf("expected the second select to be served from the cache, got rows %v", resp2.Rows)
	}
	if resp2.CorrelationID != req.ID {
		t.Errorf("expected correlation ID to be stamped on the cached hit")
	}
}

func TestHandleWriteInvalidatesAffectedTable(t *testing.T) {
	h := NewHandlerSet()
	conn := newConnectedTestConn(t, &fakeBackend{})
	cache := NewCache(CacheConfig{Enabled: true, MaxEntries: 10})

	selectReq := wire.QueryRequest{ID: "1", Kind: wire.KindSelect, SQL: "SELECT * FROM users"}
	h.Dispatch(context.Background(), conn, selectReq, cache)
	if cache.Size() != 1 {
		t.Fatalf("expected select to populate cache")
	}

	updateReq := wire.QueryRequest{ID: "2", Kind: wire.KindUpdate, SQL: "UPDATE users SET name = 'x'"}
	resp := h.Dispatch(context.Background(), conn, updateReq, cache)
	if resp.Status != wire.StatusOK {
		t.Fatalf("update status = %v, want OK", resp.Status)
	}
	if cache.Size() != 0 {
		t.Errorf("expected the write to invalidate the users-table cache entry, size=%d", cache.Size())
	}
}

func TestHandlePingNeverTouchesBackend(t *testing.T) {
	h := NewHandlerSet()
	req := wire.QueryRequest{ID: "1", Kind: wire.KindPing}
	resp := h.handlePing(req)
	if resp.Status != wire.StatusOK {
		t.Errorf("ping status = %v, want OK", resp.Status)
	}
}

func TestDispatchUnrecognizedKind(t *testing.T) {
	h := NewHandlerSet()
	conn := newConnectedTestConn(t, &fakeBackend{})
	req := wire.QueryRequest{ID: "1", Kind: wire.QueryKind(99)}
	resp := h.Dispatch(context.Background(), conn, req, nil)
	if resp.Status != wire.StatusInvalidQuery {
		t.Errorf("status = %v, want StatusInvalidQuery", resp.Status)
	}
}

func TestHandleBatchStopsOnFirstFailure(t *testing.T) {
	h := NewHandlerSet()
	// Two failures: the first attempt and its one retry after reconnect.
	fb := &fakeBackend{failNext: 2}
	conn := newConnectedTestConn(t, fb)

	req := wire.QueryRequest{
		ID:   "1",
		Kind: wire.KindBatch,
		Params: []wire.Param{
			{Type: wire.TypeString, Str: "INSERT INTO a VALUES (1)"},
			{Type: wire.TypeString, Str: "INSERT INTO b VALUES (2)"},
		},
	}
	resp := h.Dispatch(context.Background(), conn, req, nil)
	if resp.Status == wire.StatusOK {
		t.Fatal("expected the batch to surface the first member's failure")
	}
}

func TestHandleBatchSumsRowsAffectedOnSuccess(t *testing.T) {
	h := NewHandlerSet()
	conn := newConnectedTestConn(t, &fakeBackend{})

	req := wire.QueryRequest{
		ID:   "1",
		Kind: wire.KindBatch,
		Params: []wire.Param{
			{Type: wire.TypeString, Str: "INSERT INTO a VALUES (1)"},
			{Type: wire.TypeString, Str: "INSERT INTO a VALUES (2)"},
		},
	}
	resp := h.Dispatch(context.Background(), conn, req, nil)
	if resp.Status != wire.StatusOK {
		t.Fatalf("status = %v, want OK", resp.Status)
	}
	if resp.RowsAffected != 2 {
		t.Errorf("RowsAffected = %d, want 2 (one per successful insert)", resp.RowsAffected)
	}
}

func TestClassifyStatement(t *testing.T) {
	cases := map[string]wire.QueryKind{
		"select * from t": wire.KindSelect,
		"INSERT INTO t ":  wire.KindInsert,
		"update t set x":  wire.KindUpdate,
		"delete from t":   wire.KindDelete,
		"create table t":  wire.KindExecute,
	}
	for sql, want := range cases {
		if got := classifyStatement(sql); got != want {
			t.Errorf("classifyStatement(%q) = %v, want %v", sql, got, want)
		}
	}
}
