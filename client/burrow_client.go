// Package client provides a thin wrapper around database/sql for
// talking to a dbgateway instance, plus the "dbgateway" driver itself
// (see driver.go). Adapted from the teacher's BurrowClient: the
// COMMAND:/FUNCTION: remote-execution methods are dropped since the
// gateway this client targets treats SQL as opaque text only (spec.md
// Non-goals) and has no remote-command or custom-function RPC surface.
package client

import (
	"database/sql"
	"fmt"
)

// GatewayClient wraps a standard database/sql.DB connection opened
// against the "dbgateway" driver.
type GatewayClient struct {
	db *sql.DB
}

// NewGatewayClient opens a new GatewayClient for the given DSN (see
// driver.go for the DSN format).
func NewGatewayClient(dsn string) (*GatewayClient, error) {
	db, err := sql.Open("dbgateway", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open gateway connection: %w", err)
	}
	return &GatewayClient{db: db}, nil
}

// DB returns the underlying sql.DB for direct access to standard
// database/sql operations.
func (gc *GatewayClient) DB() *sql.DB {
	return gc.db
}

func (gc *GatewayClient) Close() error {
	return gc.db.Close()
}

func (gc *GatewayClient) Ping() error {
	return gc.db.Ping()
}

func (gc *GatewayClient) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return gc.db.Query(query, args...)
}

func (gc *GatewayClient) QueryRow(query string, args ...interface{}) *sql.Row {
	return gc.db.QueryRow(query, args...)
}

func (gc *GatewayClient) Exec(query string, args ...interface{}) (sql.Result, error) {
	return gc.db.Exec(query, args...)
}

func (gc *GatewayClient) Begin() (*sql.Tx, error) {
	return gc.db.Begin()
}

func (gc *GatewayClient) Prepare(query string) (*sql.Stmt, error) {
	return gc.db.Prepare(query)
}
