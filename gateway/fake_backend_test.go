package gateway

import (
	"context"
	"sync"

	"github.com/lordbasex/dbgateway/internal/wire"
)

// fakeBackend is an in-memory Backend test double: no network, no
// driver, just enough behavior (configurable failures, a trivial
// select result) to exercise ResilientConnection/Pool/Router without a
// real MySQL instance.
type fakeBackend struct {
	mu          sync.Mutex
	initialized bool
	inTx        bool
	lastErr     error

	failInitialize bool
	failNext       int // number of subsequent operations to fail
	selectResult   *QueryResult
}

func newFakeBackendFactory() BackendFactory {
	return func() Backend { return &fakeBackend{} }
}

func (f *fakeBackend) Type() string { return "fake" }

func (f *fakeBackend) Initialize(ctx context.Context, config BackendConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInitialize {
		return errFakeInit
	}
	f.initialized = true
	return nil
}

func (f *fakeBackend) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initialized = false
	return nil
}

func (f *fakeBackend) IsInitialized() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initialized
}

func (f *fakeBackend) consumeFailure() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return true
	}
	return false
}

func (f *fakeBackend) InsertQuery(ctx context.Context, sql string, params []wire.Param) (int64, error) {
	if f.consumeFailure() {
		return 0, errFakeOp
	}
	return 1, nil
}

func (f *fakeBackend) UpdateQuery(ctx context.Context, sql string, params []wire.Param) (int64, error) {
	if f.consumeFailure() {
		return 0, errFakeOp
	}
	return 1, nil
}

func (f *fakeBackend) DeleteQuery(ctx context.Context, sql string, params []wire.Param) (int64, error) {
	if f.consumeFailure() {
		return 0, errFakeOp
	}
	return 1, nil
}

func (f *fakeBackend) SelectQuery(ctx context.Context, sql string, params []wire.Param, maxRows int64) (*QueryResult, error) {
	if f.consumeFailure() {
		return nil, errFakeOp
	}
	f.mu.Lock()
	res := f.selectResult
	f.mu.Unlock()
	if res != nil {
		return res, nil
	}
	return &QueryResult{
		Columns:      []wire.ColumnDescriptor{{Name: "id", TypeName: "BIGINT"}},
		Rows:         [][]wire.Cell{{{Type: wire.TypeString, Str: "1"}}},
		RowsAffected: 1,
	}, nil
}

func (f *fakeBackend) ExecuteQuery(ctx context.Context, sql string, params []wire.Param) (*QueryResult, error) {
	if f.consumeFailure() {
		return nil, errFakeOp
	}
	return &QueryResult{RowsAffected: 1}, nil
}

func (f *fakeBackend) BeginTransaction(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inTx = true
	return nil
}

func (f *fakeBackend) CommitTransaction(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inTx = false
	return nil
}

func (f *fakeBackend) RollbackTransaction(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inTx = false
	return nil
}

func (f *fakeBackend) InTransaction() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inTx
}

func (f *fakeBackend) LastError() error { return f.lastErr }

func (f *fakeBackend) ConnectionInfo() map[string]string { return map[string]string{"driver": "fake"} }

var errFakeInit = fakeErr("fake backend: initialize failed")
var errFakeOp = fakeErr("fake backend: operation failed")

type fakeErr string

func (e fakeErr) Error() string { return string(e) }
