// Package backend provides concrete gateway.Backend implementations.
package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	_ "github.com/go-sql-driver/mysql"

	"github.com/lordbasex/dbgateway/gateway"
	"github.com/lordbasex/dbgateway/internal/wire"
)

// MySQL implements gateway.Backend over database/sql with the
// go-sql-driver/mysql driver, the teacher's own driver of choice.
// Grounded on server/server.go's handleSQL/convertDatabaseValue (query
// execution and MySQL-type-aware cell conversion), generalized from a
// single ad hoc query path into the full Backend contract spec.md §6
// requires (insert/update/delete/select/execute/transactions).
type MySQL struct {
	dsn string

	mu   sync.Mutex
	db   *sql.DB
	tx   *sql.Tx
	last error
}

// NewMySQL returns a gateway.BackendFactory bound to dsn, suitable for
// passing to gateway.NewPool / gateway.NewResilientConnection.
func NewMySQL(dsn string) gateway.BackendFactory {
	return func() gateway.Backend {
		return &MySQL{dsn: dsn}
	}
}

func (m *MySQL) Type() string { return "mysql" }

func (m *MySQL) Initialize(ctx context.Context, config gateway.BackendConfig) error {
	dsn := m.dsn
	if config.DSN != "" {
		dsn = config.DSN
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return err
	}
	m.mu.Lock()
	m.db = db
	m.mu.Unlock()
	return nil
}

func (m *MySQL) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}

func (m *MySQL) IsInitialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db != nil
}

func paramsToArgs(params []wire.Param) []any {
	args := make([]any, len(params))
	for i, p := range params {
		switch p.Type {
		case wire.TypeNull:
			args[i] = nil
		case wire.TypeBool:
			args[i] = p.Bool
		case wire.TypeInt64:
			args[i] = p.Int
		case wire.TypeFloat64:
			args[i] = p.Float
		case wire.TypeString:
			args[i] = p.Str
		case wire.TypeBytes:
			args[i] = p.Bytes
		}
	}
	return args
}

func (m *MySQL) execContext(ctx context.Context, sqlText string, params []wire.Param) (sql.Result, error) {
	m.mu.Lock()
	tx, db := m.tx, m.db
	m.mu.Unlock()

	args := paramsToArgs(params)
	var res sql.Result
	var err error
	if tx != nil {
		res, err = tx.ExecContext(ctx, sqlText, args...)
	} else if db != nil {
		res, err = db.ExecContext(ctx, sqlText, args...)
	} else {
		err = errors.New("mysql backend not initialized")
	}
	m.recordErr(err)
	return res, err
}

func (m *MySQL) recordErr(err error) {
	if err != nil {
		m.mu.Lock()
		m.last = err
		m.mu.Unlock()
	}
}

func (m *MySQL) InsertQuery(ctx context.Context, sqlText string, params []wire.Param) (int64, error) {
	res, err := m.execContext(ctx, sqlText, params)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return res.RowsAffected()
	}
	return id, nil
}

func (m *MySQL) UpdateQuery(ctx context.Context, sqlText string, params []wire.Param) (int64, error) {
	res, err := m.execContext(ctx, sqlText, params)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (m *MySQL) DeleteQuery(ctx context.Context, sqlText string, params []wire.Param) (int64, error) {
	res, err := m.execContext(ctx, sqlText, params)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (m *MySQL) SelectQuery(ctx context.Context, sqlText string, params []wire.Param, maxRows int64) (*gateway.QueryResult, error) {
	m.mu.Lock()
	tx, db := m.tx, m.db
	m.mu.Unlock()

	args := paramsToArgs(params)
	var rows *sql.Rows
	var err error
	if tx != nil {
		rows, err = tx.QueryContext(ctx, sqlText, args...)
	} else if db != nil {
		rows, err = db.QueryContext(ctx, sqlText, args...)
	} else {
		err = errors.New("mysql backend not initialized")
	}
	if err != nil {
		m.recordErr(err)
		return nil, err
	}
	defer rows.Close()

	return scanRows(rows, maxRows)
}

func (m *MySQL) ExecuteQuery(ctx context.Context, sqlText string, params []wire.Param) (*gateway.QueryResult, error) {
	if looksLikeSelect(sqlText) {
		return m.SelectQuery(ctx, sqlText, params, 0)
	}
	res, err := m.execContext(ctx, sqlText, params)
	if err != nil {
		return nil, err
	}
	affected, _ := res.RowsAffected()
	return &gateway.QueryResult{RowsAffected: affected}, nil
}

// scanRows materializes a *sql.Rows into a gateway.QueryResult. Every
// non-NULL cell is carried as wire.TypeString holding the driver's raw
// text, the way server/server.go's convertDatabaseValue keeps numeric
// and decimal payloads as driver-reported strings rather than re-parsing
// them, preserving MySQL's own precision handling.
func scanRows(rows *sql.Rows, maxRows int64) (*gateway.QueryResult, error) {
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	cols := make([]wire.ColumnDescriptor, len(colTypes))
	for i, ct := range colTypes {
		cols[i] = wire.ColumnDescriptor{Name: ct.Name(), TypeName: ct.DatabaseTypeName()}
	}

	var result [][]wire.Cell
	scanDest := make([]any, len(colTypes))
	scanBuf := make([]sql.RawBytes, len(colTypes))
	for i := range scanDest {
		scanDest[i] = &scanBuf[i]
	}

	var n int64
	for rows.Next() {
		if maxRows > 0 && n >= maxRows {
			break
		}
		if err := rows.Scan(scanDest...); err != nil {
			return nil, err
		}
		row := make([]wire.Cell, len(colTypes))
		for i, raw := range scanBuf {
			row[i] = cellFromRaw(raw, colTypes[i].DatabaseTypeName())
		}
		result = append(result, row)
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &gateway.QueryResult{Columns: cols, Rows: result, RowsAffected: int64(len(result))}, nil
}

func cellFromRaw(raw sql.RawBytes, dbType string) wire.Cell {
	if raw == nil {
		return wire.Cell{Type: wire.TypeNull}
	}
	switch dbType {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT":
		return wire.Cell{Type: wire.TypeString, Str: string(raw)}
	case "DECIMAL", "NUMERIC", "FLOAT", "DOUBLE", "REAL":
		return wire.Cell{Type: wire.TypeString, Str: string(raw)}
	default:
		return wire.Cell{Type: wire.TypeString, Str: string(raw)}
	}
}

func (m *MySQL) BeginTransaction(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return errors.New("mysql backend not initialized")
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		m.last = err
		return err
	}
	m.tx = tx
	return nil
}

func (m *MySQL) CommitTransaction(ctx context.Context) error {
	m.mu.Lock()
	tx := m.tx
	m.tx = nil
	m.mu.Unlock()
	if tx == nil {
		return fmt.Errorf("no transaction in progress")
	}
	return tx.Commit()
}

func (m *MySQL) RollbackTransaction(ctx context.Context) error {
	m.mu.Lock()
	tx := m.tx
	m.tx = nil
	m.mu.Unlock()
	if tx == nil {
		return fmt.Errorf("no transaction in progress")
	}
	return tx.Rollback()
}

func (m *MySQL) InTransaction() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tx != nil
}

func (m *MySQL) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func (m *MySQL) ConnectionInfo() map[string]string {
	return map[string]string{"driver": "mysql"}
}

func looksLikeSelect(sqlText string) bool {
	trimmed := strings.TrimSpace(sqlText)
	return len(trimmed) >= 6 && strings.EqualFold(trimmed[:6], "SELECT")
}
