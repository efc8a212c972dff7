package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/lordbasex/dbgateway/internal/wire"
)

func newMockedMySQL(t *testing.T) (*MySQL, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &MySQL{db: db}, mock
}

func TestMySQLInsertQueryReturnsLastInsertID(t *testing.T) {
	m, mock := newMockedMySQL(t)
	mock.ExpectExec("INSERT INTO users").WithArgs("alice").WillReturnResult(sqlmock.NewResult(42, 1))

	id, err := m.InsertQuery(context.Background(), "INSERT INTO users (name) VALUES (?)", []wire.Param{{Type: wire.TypeString, Str: "alice"}})
	if err != nil {
		t.Fatalf("InsertQuery: %v", err)
	}
	if id != 42 {
		t.Errorf("InsertQuery id = %d, want 42", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMySQLUpdateQueryReturnsRowsAffected(t *testing.T) {
	m, mock := newMockedMySQL(t)
	mock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := m.UpdateQuery(context.Background(), "UPDATE users SET active = 1", nil)
	if err != nil {
		t.Fatalf("UpdateQuery: %v", err)
	}
	if affected != 3 {
		t.Errorf("UpdateQuery affected = %d, want 3", affected)
	}
}

func TestMySQLDeleteQueryReturnsRowsAffected(t *testing.T) {
	m, mock := newMockedMySQL(t)
	mock.ExpectExec("DELETE FROM users").WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := m.DeleteQuery(context.Background(), "DELETE FROM users WHERE id = 1", nil)
	if err != nil {
		t.Fatalf("DeleteQuery: %v", err)
	}
	if affected != 1 {
		t.Errorf("DeleteQuery affected = %d, want 1", affected)
	}
}

func TestMySQLSelectQueryScansRows(t *testing.T) {
	m, mock := newMockedMySQL(t)
	rows := sqlmock.NewRows([]string{"id", "name"}).
		AddRow("1", "alice").
		AddRow("2", "bob")
	mock.ExpectQuery("SELECT id, name FROM users").WillReturnRows(rows)

	res, err := m.SelectQuery(context.Background(), "SELECT id, name FROM users", nil, 0)
	if err != nil {
		t.Fatalf("SelectQuery: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(res.Rows))
	}
	if res.Rows[0][1].Str != "alice" {
		t.Errorf("row 0 col 1 = %q, want \"alice\"", res.Rows[0][1].Str)
	}
}

func TestMySQLSelectQueryRespectsMaxRows(t *testing.T) {
	m, mock := newMockedMySQL(t)
	rows := sqlmock.NewRows([]string{"id"}).AddRow("1").AddRow("2").AddRow("3")
	mock.ExpectQuery("SELECT id FROM users").WillReturnRows(rows)

	res, err := m.SelectQuery(context.Background(), "SELECT id FROM users", nil, 2)
	if err != nil {
		t.Fatalf("SelectQuery: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Errorf("expected SelectQuery to cap at maxRows=2, got %d rows", len(res.Rows))
	}
}

func TestMySQLExecuteQueryRoutesSelectThroughScan(t *testing.T) {
	m, mock := newMockedMySQL(t)
	rows := sqlmock.NewRows([]string{"id"}).AddRow("7")
	mock.ExpectQuery("SELECT id FROM t").WillReturnRows(rows)

	res, err := m.ExecuteQuery(context.Background(), "SELECT id FROM t", nil)
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	if len(res.Rows) != 1 || res.Rows[0][0].Str != "7" {
		t.Errorf("unexpected ExecuteQuery result for a SELECT statement: %+v", res)
	}
}

func TestMySQLExecuteQueryRoutesNonSelectThroughExec(t *testing.T) {
	m, mock := newMockedMySQL(t)
	mock.ExpectExec("CREATE TABLE t").WillReturnResult(sqlmock.NewResult(0, 0))

	res, err := m.ExecuteQuery(context.Background(), "CREATE TABLE t (id INT)", nil)
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	if res.RowsAffected != 0 {
		t.Errorf("unexpected RowsAffected for a DDL statement: %d", res.RowsAffected)
	}
}

func TestMySQLTransactionLifecycle(t *testing.T) {
	m, mock := newMockedMySQL(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO t").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := m.BeginTransaction(context.Background()); err != nil {
		t.Fatalf("BeginTransaction: %v", err)
	}
	if !m.InTransaction() {
		t.Fatal("expected InTransaction() to be true after BeginTransaction")
	}
	if _, err := m.InsertQuery(context.Background(), "INSERT INTO t VALUES (1)", nil); err != nil {
		t.Fatalf("InsertQuery within transaction: %v", err)
	}
	if err := m.CommitTransaction(context.Background()); err != nil {
		t.Fatalf("CommitTransaction: %v", err)
	}
	if m.InTransaction() {
		t.Error("expected InTransaction() to be false after commit")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMySQLRollbackClearsTransaction(t *testing.T) {
	m, mock := newMockedMySQL(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	if err := m.BeginTransaction(context.Background()); err != nil {
		t.Fatalf("BeginTransaction: %v", err)
	}
	if err := m.RollbackTransaction(context.Background()); err != nil {
		t.Fatalf("RollbackTransaction: %v", err)
	}
	if m.InTransaction() {
		t.Error("expected InTransaction() to be false after rollback")
	}
}

func TestMySQLCommitWithoutTransactionErrors(t *testing.T) {
	m, _ := newMockedMySQL(t)
	if err := m.CommitTransaction(context.Background()); err == nil {
		t.Error("expected an error committing with no open transaction")
	}
}

func TestMySQLLastErrorRecordsFailures(t *testing.T) {
	m, mock := newMockedMySQL(t)
	mock.ExpectExec("INSERT INTO t").WillReturnError(errDriverFailure)

	if _, err := m.InsertQuery(context.Background(), "INSERT INTO t VALUES (1)", nil); err == nil {
		t.Fatal("expected InsertQuery to surface the driver error")
	}
	if m.LastError() == nil {
		t.Error("expected LastError() to record the failure")
	}
}

func TestMySQLIsInitializedReflectsDB(t *testing.T) {
	m := &MySQL{}
	if m.IsInitialized() {
		t.Error("a zero-value MySQL backend should not report initialized")
	}
	m2, _ := newMockedMySQL(t)
	if !m2.IsInitialized() {
		t.Error("expected IsInitialized() to be true once db is set")
	}
}

var errDriverFailure = errors.New("mysql: driver failure")
