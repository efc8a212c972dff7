package client

import (
	"context"
	"database/sql/driver"
	"fmt"

	"github.com/lordbasex/dbgateway/internal/wire"
)

// Stmt implements database/sql/driver.Stmt. Since the gateway takes SQL
// as opaque text plus typed parameters (spec.md Non-goals: "no query
// parsing or optimization"), "preparing" a statement here is purely
// client-side bookkeeping — each Exec/Query still round-trips the full
// SQL text, same as the teacher's implementation.
type Stmt struct {
	conn     *Conn
	query    string
	numInput int
	closed   bool
}

func (s *Stmt) Close() error {
	s.closed = true
	s.conn.logf("prepared statement closed: %s", s.query)
	return nil
}

func (s *Stmt) NumInput() int {
	return s.numInput
}

func (s *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	if s.closed {
		return nil, fmt.Errorf("statement is closed")
	}
	if len(args) != s.numInput {
		return nil, fmt.Errorf("expected %d parameters, got %d", s.numInput, len(args))
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.conn.config.Timeout)
	defer cancel()
	rows, err := s.conn.queryRPC(ctx, classifyStatement(s.query), s.query, valuesToNamed(args), wire.Options{})
	if err != nil {
		return nil, err
	}
	return &Result{affectedRows: rows.rowsAffected}, nil
}

func (s *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	if s.closed {
		return nil, fmt.Errorf("statement is closed")
	}
	if len(args) != s.numInput {
		return nil, fmt.Errorf("expected %d parameters, got %d", s.numInput, len(args))
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.conn.config.Timeout)
	defer cancel()
	return s.conn.queryRPC(ctx, classifyStatement(s.query), s.query, valuesToNamed(args), wire.Options{})
}

func (s *Stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	if s.closed {
		return nil, fmt.Errorf("statement is closed")
	}
	if len(args) != s.numInput {
		return nil, fmt.Errorf("expected %d parameters, got %d", s.numInput, len(args))
	}
	rows, err := s.conn.queryRPC(ctx, classifyStatement(s.query), s.query, args, wire.Options{})
	if err != nil {
		return nil, err
	}
	return &Result{affectedRows: rows.rowsAffected}, nil
}

func (s *Stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	if s.closed {
		return nil, fmt.Errorf("statement is closed")
	}
	if len(args) != s.numInput {
		return nil, fmt.Errorf("expected %d parameters, got %d", s.numInput, len(args))
	}
	return s.conn.queryRPC(ctx, classifyStatement(s.query), s.query, args, wire.Options{})
}

// Result implements database/sql/driver.Result from a gateway response's
// RowsAffected; the gateway's QueryResponse has no LastInsertId field
// (spec.md's data model doesn't carry one), so it always reads as 0.
type Result struct {
	affectedRows int64
}

func (r *Result) LastInsertId() (int64, error) {
	return 0, nil
}

func (r *Result) RowsAffected() (int64, error) {
	return r.affectedRows, nil
}

// countPlaceholders counts '?' placeholders outside of quoted string
// literals, used to validate the caller supplies the right number of
// bound parameters.
func countPlaceholders(query string) int {
	count := 0
	inString := false
	escaped := false
	for _, char := range query {
		switch {
		case escaped:
			escaped = false
		case char == '\\':
			escaped = true
		case char == '\'' && !escaped:
			inString = !inString
		case char == '?' && !inString && !escaped:
			count++
		}
	}
	return count
}
