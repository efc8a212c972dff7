package client

import (
	"encoding/json"
	"fmt"

	"github.com/lordbasex/dbgateway/internal/wire"
)

// This file mirrors, from the client side, the JSON shape
// internal/wire/jsoncodec.go's JSONCodec produces and consumes on the
// gateway side. The core's wire.Codec interface only defines the
// server-facing DecodeRequest/EncodeResponse pair (spec.md §6 treats the
// codec as an external collaborator of the *gateway*); a client talking
// to the gateway needs the other two directions, so they live here
// rather than growing the core's Codec interface for a concern the core
// itself never performs.

type wireParam struct {
	Name  string  `json:"name,omitempty"`
	Type  string  `json:"type"`
	Bool  bool    `json:"bool,omitempty"`
	Int   int64   `json:"int,omitempty"`
	Float float64 `json:"float,omitempty"`
	Str   string  `json:"str,omitempty"`
	Bytes []byte  `json:"bytes,omitempty"`
}

type wireCell struct {
	Type  string  `json:"type"`
	Bool  bool    `json:"bool,omitempty"`
	Int   int64   `json:"int,omitempty"`
	Float float64 `json:"float,omitempty"`
	Str   string  `json:"str,omitempty"`
	Bytes []byte  `json:"bytes,omitempty"`
}

var cellTypeNames = map[wire.CellType]string{
	wire.TypeNull: "null", wire.TypeBool: "bool", wire.TypeInt64: "int64",
	wire.TypeFloat64: "float64", wire.TypeString: "string", wire.TypeBytes: "bytes",
}

var cellTypeValues = map[string]wire.CellType{
	"null": wire.TypeNull, "bool": wire.TypeBool, "int64": wire.TypeInt64,
	"float64": wire.TypeFloat64, "string": wire.TypeString, "bytes": wire.TypeBytes,
}

func paramToWire(p wire.Param) wireParam {
	return wireParam{Name: p.Name, Type: cellTypeNames[p.Type], Bool: p.Bool, Int: p.Int, Float: p.Float, Str: p.Str, Bytes: p.Bytes}
}

func wireToCell(c wireCell) wire.Cell {
	return wire.Cell{Type: cellTypeValues[c.Type], Bool: c.Bool, Int: c.Int, Float: c.Float, Str: c.Str, Bytes: c.Bytes}
}

type jsonRequest struct {
	Header  wire.Header    `json:"header"`
	Auth    wire.AuthToken `json:"auth"`
	ID      string         `json:"id"`
	Kind    string         `json:"kind"`
	SQL     string         `json:"sql"`
	Params  []wireParam    `json:"params,omitempty"`
	Options wire.Options   `json:"options"`
}

type jsonResponse struct {
	Header        wire.Header              `json:"header"`
	CorrelationID string                   `json:"correlation_id"`
	Status        string                   `json:"status"`
	Columns       []wire.ColumnDescriptor  `json:"columns,omitempty"`
	Rows          [][]wireCell             `json:"rows,omitempty"`
	RowsAffected  int64                    `json:"rows_affected"`
	ErrorMessage  string                   `json:"error_message,omitempty"`
	DurationUS    int64                    `json:"duration_us"`
}

var statusValues = map[string]wire.StatusCode{
	"OK": wire.StatusOK, "ERROR": wire.StatusError, "TIMEOUT": wire.StatusTimeout,
	"CONNECTION_FAILED": wire.StatusConnectionFailed, "AUTH_FAILED": wire.StatusAuthFailed,
	"INVALID_QUERY": wire.StatusInvalidQuery, "NO_CONNECTION": wire.StatusNoConnection,
	"RATE_LIMITED": wire.StatusRateLimited, "SERVER_BUSY": wire.StatusServerBusy,
	"NOT_FOUND": wire.StatusNotFound, "PERMISSION_DENIED": wire.StatusPermissionDenied,
}

// encodeEnvelope serializes an outgoing request envelope the way the
// gateway's JSONCodec.DecodeRequest expects to read it.
func encodeEnvelope(env wire.Envelope) ([]byte, error) {
	params := make([]wireParam, len(env.Request.Params))
	for i, p := range env.Request.Params {
		params[i] = paramToWire(p)
	}
	jr := jsonRequest{
		Header:  env.Header,
		Auth:    env.Auth,
		ID:      env.Request.ID,
		Kind:    env.Request.Kind.String(),
		SQL:     env.Request.SQL,
		Params:  params,
		Options: env.Request.Options,
	}
	data, err := json.Marshal(jr)
	if err != nil {
		return nil, fmt.Errorf("client: encoding request: %w", err)
	}
	return data, nil
}

// decodeResponse deserializes a gateway reply the way JSONCodec.
// EncodeResponse on the server side produced it.
func decodeResponse(payload []byte) (wire.QueryResponse, error) {
	var jr jsonResponse
	if err := json.Unmarshal(payload, &jr); err != nil {
		return wire.QueryResponse{}, fmt.Errorf("client: decoding response: %w", err)
	}
	rows := make([][]wire.Cell, len(jr.Rows))
	for i, row := range jr.Rows {
		cells := make([]wire.Cell, len(row))
		for j, c := range row {
			cells[j] = wireToCell(c)
		}
		rows[i] = cells
	}
	return wire.QueryResponse{
		CorrelationID: jr.CorrelationID,
		Status:        statusValues[jr.Status],
		Columns:       jr.Columns,
		Rows:          rows,
		RowsAffected:  jr.RowsAffected,
		ErrorMessage:  jr.ErrorMessage,
		DurationUS:    jr.DurationUS,
	}, nil
}
