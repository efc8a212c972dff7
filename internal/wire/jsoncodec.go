package wire

import (
	"encoding/json"
	"fmt"
)

// jsonParam/jsonCell mirror Param/Cell with JSON-friendly tags; keeping
// them separate from the wire types lets the core stay codec-agnostic
// while this codec still matches the teacher's plain encoding/json
// RPCRequest/RPCResponse style (server/types.go).
type jsonParam struct {
	Name  string  `json:"name,omitempty"`
	Type  string  `json:"type"`
	Bool  bool    `json:"bool,omitempty"`
	Int   int64   `json:"int,omitempty"`
	Float float64 `json:"float,omitempty"`
	Str   string  `json:"str,omitempty"`
	Bytes []byte  `json:"bytes,omitempty"`
}

var cellTypeNames = map[CellType]string{
	TypeNull: "null", TypeBool: "bool", TypeInt64: "int64",
	TypeFloat64: "float64", TypeString: "string", TypeBytes: "bytes",
}

var cellTypeValues = map[string]CellType{
	"null": TypeNull, "bool": TypeBool, "int64": TypeInt64,
	"float64": TypeFloat64, "string": TypeString, "bytes": TypeBytes,
}

func (p Param) toJSON() jsonParam {
	return jsonParam{Name: p.Name, Type: cellTypeNames[p.Type], Bool: p.Bool, Int: p.Int, Float: p.Float, Str: p.Str, Bytes: p.Bytes}
}

func (jp jsonParam) toParam() Param {
	return Param{Name: jp.Name, Type: cellTypeValues[jp.Type], Bool: jp.Bool, Int: jp.Int, Float: jp.Float, Str: jp.Str, Bytes: jp.Bytes}
}

type jsonCell struct {
	Type  string  `json:"type"`
	Bool  bool    `json:"bool,omitempty"`
	Int   int64   `json:"int,omitempty"`
	Float float64 `json:"float,omitempty"`
	Str   string  `json:"str,omitempty"`
	Bytes []byte  `json:"bytes,omitempty"`
}

func (c Cell) toJSON() jsonCell {
	return jsonCell{Type: cellTypeNames[c.Type], Bool: c.Bool, Int: c.Int, Float: c.Float, Str: c.Str, Bytes: c.Bytes}
}

func (jc jsonCell) toCell() Cell {
	return Cell{Type: cellTypeValues[jc.Type], Bool: jc.Bool, Int: jc.Int, Float: jc.Float, Str: jc.Str, Bytes: jc.Bytes}
}

type jsonRequest struct {
	Header  Header      `json:"header"`
	Auth    AuthToken   `json:"auth"`
	ID      string      `json:"id"`
	Kind    string      `json:"kind"`
	SQL     string      `json:"sql"`
	Params  []jsonParam `json:"params,omitempty"`
	Options Options     `json:"options"`
}

type jsonResponse struct {
	Header        Header       `json:"header"`
	CorrelationID string       `json:"correlation_id"`
	Status        string       `json:"status"`
	Columns       []ColumnDescriptor `json:"columns,omitempty"`
	Rows          [][]jsonCell `json:"rows,omitempty"`
	RowsAffected  int64        `json:"rows_affected"`
	ErrorMessage  string       `json:"error_message,omitempty"`
	DurationUS    int64        `json:"duration_us"`
}

var statusNames = map[StatusCode]string{
	StatusOK: "OK", StatusError: "ERROR", StatusTimeout: "TIMEOUT",
	StatusConnectionFailed: "CONNECTION_FAILED", StatusAuthFailed: "AUTH_FAILED",
	StatusInvalidQuery: "INVALID_QUERY", StatusNoConnection: "NO_CONNECTION",
	StatusRateLimited: "RATE_LIMITED", StatusServerBusy: "SERVER_BUSY",
	StatusNotFound: "NOT_FOUND", StatusPermissionDenied: "PERMISSION_DENIED",
}

// JSONCodec implements Codec with plain encoding/json, the same
// serialization choice the teacher makes for its RPCRequest/RPCResponse
// pair (server/types.go, client/*.go).
type JSONCodec struct{}

// DecodeRequest implements Codec.
func (JSONCodec) DecodeRequest(payload []byte) (Envelope, error) {
	var jr jsonRequest
	if err := json.Unmarshal(payload, &jr); err != nil {
		return Envelope{}, fmt.Errorf("wire: decoding request: %w", err)
	}
	params := make([]Param, len(jr.Params))
	for i, jp := range jr.Params {
		params[i] = jp.toParam()
	}
	return Envelope{
		Header: jr.Header,
		Auth:   jr.Auth,
		Request: QueryRequest{
			ID:      jr.ID,
			Kind:    ParseQueryKind(jr.Kind),
			SQL:     jr.SQL,
			Params:  params,
			Options: jr.Options,
		},
	}, nil
}

// EncodeResponse implements Codec.
func (JSONCodec) EncodeResponse(h Header, resp QueryResponse) ([]byte, error) {
	rows := make([][]jsonCell, len(resp.Rows))
	for i, row := range resp.Rows {
		jrow := make([]jsonCell, len(row))
		for j, c := range row {
			jrow[j] = c.toJSON()
		}
		rows[i] = jrow
	}
	jr := jsonResponse{
		Header:        h,
		CorrelationID: resp.CorrelationID,
		Status:        statusNames[resp.Status],
		Columns:       resp.Columns,
		Rows:          rows,
		RowsAffected:  resp.RowsAffected,
		ErrorMessage:  resp.ErrorMessage,
		DurationUS:    resp.DurationUS,
	}
	data, err := json.Marshal(jr)
	if err != nil {
		return nil, fmt.Errorf("wire: encoding response: %w", err)
	}
	return data, nil
}
