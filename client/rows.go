package client

import (
	"database/sql/driver"
	"io"

	"github.com/lordbasex/dbgateway/internal/wire"
)

// Rows implements database/sql/driver.Rows over a decoded
// wire.QueryResponse.
type Rows struct {
	columns      []string
	rows         [][]wire.Cell
	rowsAffected int64
	pos          int
}

func (r *Rows) Columns() []string {
	return r.columns
}

func (r *Rows) Next(dest []driver.Value) error {
	if r.pos >= len(r.rows) {
		return io.EOF
	}
	row := r.rows[r.pos]
	for i, cell := range row {
		dest[i] = cellToValue(cell)
	}
	r.pos++
	return nil
}

func (r *Rows) Close() error {
	return nil
}
