package gateway

import (
	"context"

	"github.com/lordbasex/dbgateway/internal/wire"
)

// BackendError carries a structured backend failure, matching spec.md
// §6's "{code, message, source}" error record.
type BackendError struct {
	Code    string
	Message string
	Source  error
}

func (e *BackendError) Error() string { return e.Message }
func (e *BackendError) Unwrap() error  { return e.Source }

// Backend is the driver contract the core consumes (spec.md §6). It is
// intentionally narrow: the core never reaches past this interface into
// a concrete driver. internal/backend provides the MySQL implementation.
type Backend interface {
	Type() string
	Initialize(ctx context.Context, config BackendConfig) error
	Shutdown(ctx context.Context) error
	IsInitialized() bool

	InsertQuery(ctx context.Context, sql string, params []wire.Param) (rowsAffected int64, err error)
	UpdateQuery(ctx context.Context, sql string, params []wire.Param) (rowsAffected int64, err error)
	DeleteQuery(ctx context.Context, sql string, params []wire.Param) (rowsAffected int64, err error)
	SelectQuery(ctx context.Context, sql string, params []wire.Param, maxRows int64) (*QueryResult, error)
	ExecuteQuery(ctx context.Context, sql string, params []wire.Param) (*QueryResult, error)

	BeginTransaction(ctx context.Context) error
	CommitTransaction(ctx context.Context) error
	RollbackTransaction(ctx context.Context) error
	InTransaction() bool

	LastError() error
	ConnectionInfo() map[string]string
}

// QueryResult is a backend-level result set, pre-wire-encoding.
type QueryResult struct {
	Columns      []wire.ColumnDescriptor
	Rows         [][]wire.Cell
	RowsAffected int64
}

// BackendConfig is the stored connection configuration a Backend needs
// to (re)initialize itself, used by ResilientConnection.attemptReconnect.
type BackendConfig struct {
	DSN string
	// Extra carries driver-specific options beyond the DSN (e.g. max
	// idle conns for the MySQL driver's pooled *sql.DB).
	Extra map[string]string
}

// BackendFactory constructs a fresh Backend instance from its config,
// matching spec.md §4.6's pool "factory()" collaborator.
type BackendFactory func() Backend
