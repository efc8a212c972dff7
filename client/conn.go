package client

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/lordbasex/dbgateway/internal/wire"
)

// queueName is the single request queue cmd/gateway's AMQP listener
// consumes from (see cmd/gateway/main.go's runListener).
const queueName = "dbgateway"

// Conn implements database/sql/driver.Conn over an AMQP request/reply
// round trip against the gateway's single "dbgateway" queue.
type Conn struct {
	clientID string
	token    string
	connMgr  *ConnectionManager
	config   *DSNConfig

	heartbeat *HeartbeatManager

	mu       sync.Mutex
	activeTx *Tx
}

func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return &Stmt{conn: c, query: query, numInput: countPlaceholders(query)}, nil
}

func (c *Conn) Close() error {
	if c.heartbeat != nil {
		c.heartbeat.Stop()
	}
	return c.connMgr.Close()
}

func (c *Conn) Begin() (driver.Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeTx != nil {
		return nil, errors.New("a transaction is already active on this connection")
	}
	tx := newTransaction(c)
	if err := tx.begin(); err != nil {
		return nil, err
	}
	c.activeTx = tx
	return tx, nil
}

func (c *Conn) clearFinishedTransaction() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeTx = nil
}

func (c *Conn) Query(query string, args []driver.Value) (driver.Rows, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()
	return c.queryRPC(ctx, classifyStatement(query), query, valuesToNamed(args), wire.Options{})
}

func (c *Conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	return c.queryRPC(ctx, classifyStatement(query), query, args, wire.Options{})
}

func (c *Conn) Exec(query string, args []driver.Value) (driver.Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()
	rows, err := c.queryRPC(ctx, classifyStatement(query), query, valuesToNamed(args), wire.Options{})
	if err != nil {
		return nil, err
	}
	return &Result{affectedRows: rows.rowsAffected}, nil
}

func (c *Conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	rows, err := c.queryRPC(ctx, classifyStatement(query), query, args, wire.Options{})
	if err != nil {
		return nil, err
	}
	return &Result{affectedRows: rows.rowsAffected}, nil
}

// queryRPC publishes one wire.QueryRequest to the gateway's request
// queue and blocks for the matching reply, mirroring the teacher's
// queryRPC (client/conn.go) but carrying a typed envelope instead of a
// bare JSON map.
func (c *Conn) queryRPC(ctx context.Context, kind wire.QueryKind, query string, args []driver.NamedValue, opts wire.Options) (*Rows, error) {
	if c.heartbeat != nil {
		c.heartbeat.ActivateHeartbeat()
	}

	conn, err := c.connMgr.GetConnection()
	if err != nil {
		return nil, fmt.Errorf("no active connection: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	defer ch.Close()

	replyQueue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, err
	}

	corrID := wire.NewCorrelationID()
	env := wire.Envelope{
		Header: wire.NowHeader(0, corrID),
		Auth:   wire.AuthToken{Token: c.token, ClientID: c.clientID},
		Request: wire.QueryRequest{
			ID:      corrID,
			Kind:    kind,
			SQL:     query,
			Params:  namedValuesToParams(args),
			Options: opts,
		},
	}
	body, err := encodeEnvelope(env)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	if err := ch.PublishWithContext(ctx, "", queueName, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: corrID,
		ReplyTo:       replyQueue.Name,
		Body:          body,
	}); err != nil {
		return nil, err
	}

	msgs, err := ch.Consume(replyQueue.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, errors.New("timeout waiting for gateway response")
	case msg := <-msgs:
		if msg.CorrelationId != corrID {
			return nil, errors.New("correlation id mismatch")
		}
		resp, err := decodeResponse(msg.Body)
		if err != nil {
			return nil, err
		}
		if resp.Status != wire.StatusOK {
			return nil, fmt.Errorf("gateway error (%s): %s", resp.Status, resp.ErrorMessage)
		}
		columns := make([]string, len(resp.Columns))
		for i, col := range resp.Columns {
			columns[i] = col.Name
		}
		return &Rows{columns: columns, rows: resp.Rows, rowsAffected: resp.RowsAffected}, nil
	}
}

func valuesToNamed(args []driver.Value) []driver.NamedValue {
	named := make([]driver.NamedValue, len(args))
	for i, v := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return named
}

// classifyStatement guesses a statement's QueryKind from its leading
// keyword, mirroring gateway/handlers.go's classifyStatement used
// server-side for BATCH members.
func classifyStatement(sql string) wire.QueryKind {
	trimmed := sql
	for len(trimmed) > 0 && (trimmed[0] == ' ' || trimmed[0] == '\t' || trimmed[0] == '\n') {
		trimmed = trimmed[1:]
	}
	upper := toUpperASCII(trimmed)
	switch {
	case hasPrefix(upper, "SELECT"):
		return wire.KindSelect
	case hasPrefix(upper, "INSERT"):
		return wire.KindInsert
	case hasPrefix(upper, "UPDATE"):
		return wire.KindUpdate
	case hasPrefix(upper, "DELETE"):
		return wire.KindDelete
	case hasPrefix(upper, "PING"):
		return wire.KindPing
	default:
		return wire.KindExecute
	}
}

func toUpperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func (c *Conn) logf(format string, args ...interface{}) {
	if c.config != nil && c.config.Debug {
		log.Printf("[client] "+format, args...)
	}
}

func (c *Conn) setupHeartbeat() {
	if c.config == nil || !c.config.HeartbeatEnabled {
		return
	}
	c.heartbeat = NewHeartbeatManager(c.connMgr, c.clientID, c.token, c.config.HeartbeatConfig)
	c.heartbeat.SetCallbacks(func(err error) {
		c.logf("heartbeat reports connection dead: %v", err)
	}, nil)
}
