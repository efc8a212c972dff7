// Package wire defines the on-the-wire data model shared between the
// gateway core and its transport/codec layer: query requests and
// responses, typed parameters and cells, and the status code taxonomy.
// The core treats these as plain data; encoding/decoding them onto an
// actual transport is the codec's job, not this package's.
package wire

import "time"

// QueryKind classifies a request. The zero value is KindUnknown so a
// zero-valued QueryRequest is never mistaken for a PING.
type QueryKind int

const (
	KindUnknown QueryKind = iota
	KindSelect
	KindInsert
	KindUpdate
	KindDelete
	KindExecute
	KindBatch
	KindPing
)

func (k QueryKind) String() string {
	switch k {
	case KindSelect:
		return "SELECT"
	case KindInsert:
		return "INSERT"
	case KindUpdate:
		return "UPDATE"
	case KindDelete:
		return "DELETE"
	case KindExecute:
		return "EXECUTE"
	case KindBatch:
		return "BATCH"
	case KindPing:
		return "PING"
	default:
		return "UNKNOWN"
	}
}

// ParseQueryKind parses the String() form back into a QueryKind. Unknown
// input yields KindUnknown.
func ParseQueryKind(s string) QueryKind {
	switch s {
	case "SELECT":
		return KindSelect
	case "INSERT":
		return KindInsert
	case "UPDATE":
		return KindUpdate
	case "DELETE":
		return KindDelete
	case "EXECUTE":
		return KindExecute
	case "BATCH":
		return KindBatch
	case "PING":
		return KindPing
	default:
		return KindUnknown
	}
}

// IsWrite reports whether the kind mutates backend state.
func (k QueryKind) IsWrite() bool {
	switch k {
	case KindInsert, KindUpdate, KindDelete:
		return true
	default:
		return false
	}
}

// StatusCode is the response-side result taxonomy. Ordinals match the
// wire protocol's status_code field (0..10).
type StatusCode int

const (
	StatusOK StatusCode = iota
	StatusError
	StatusTimeout
	StatusConnectionFailed
	StatusAuthFailed
	StatusInvalidQuery
	StatusNoConnection
	StatusRateLimited
	StatusServerBusy
	StatusNotFound
	StatusPermissionDenied
)

func (s StatusCode) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	case StatusTimeout:
		return "TIMEOUT"
	case StatusConnectionFailed:
		return "CONNECTION_FAILED"
	case StatusAuthFailed:
		return "AUTH_FAILED"
	case StatusInvalidQuery:
		return "INVALID_QUERY"
	case StatusNoConnection:
		return "NO_CONNECTION"
	case StatusRateLimited:
		return "RATE_LIMITED"
	case StatusServerBusy:
		return "SERVER_BUSY"
	case StatusNotFound:
		return "NOT_FOUND"
	case StatusPermissionDenied:
		return "PERMISSION_DENIED"
	default:
		return "UNKNOWN"
	}
}

// CellType tags the variant held by a Param or Cell. Ordinals match the
// wire protocol's type_tag field (0..5).
type CellType int

const (
	TypeNull CellType = iota
	TypeBool
	TypeInt64
	TypeFloat64
	TypeString
	TypeBytes
)

// Param is one typed, optionally named query parameter.
type Param struct {
	Name  string
	Type  CellType
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Bytes []byte
}

// Cell is one typed value in a result row. Shares CellType with Param.
type Cell struct {
	Type  CellType
	Bool  bool
	Int   int64
	Float float64
	Str   string
	Bytes []byte
}

// Options carries per-request execution hints.
type Options struct {
	TimeoutMS       int64
	ReadOnly        bool
	IsolationLevel  string
	MaxRows         int64
	IncludeMetadata bool
}

// Timeout returns Options.TimeoutMS as a time.Duration, or fallback if
// TimeoutMS is zero.
func (o Options) Timeout(fallback time.Duration) time.Duration {
	if o.TimeoutMS <= 0 {
		return fallback
	}
	return time.Duration(o.TimeoutMS) * time.Millisecond
}

// QueryRequest is one unit of gateway work.
type QueryRequest struct {
	ID        string
	Timestamp time.Time
	Kind      QueryKind
	SQL       string
	Params    []Param
	Options   Options

	// Priority, when non-nil, overrides the default kind->priority
	// mapping (spec.md §4.1: "An explicit priority on the request
	// overrides the mapping").
	Priority *int
}

// ColumnDescriptor describes one result column.
type ColumnDescriptor struct {
	Name     string
	TypeName string
}

// QueryResponse is the gateway's answer to a QueryRequest.
type QueryResponse struct {
	CorrelationID string
	Status        StatusCode
	Columns       []ColumnDescriptor
	Rows          [][]Cell
	RowsAffected  int64
	ErrorMessage  string
	DurationUS    int64
}

// EstimatedSize returns an advisory, monotone byte-size estimate used by
// the query cache's max_result_size_bytes accounting (spec.md §4.9).
func (r QueryResponse) EstimatedSize() int64 {
	const fixedOverhead = 64
	size := int64(fixedOverhead + len(r.ErrorMessage))
	for _, c := range r.Columns {
		size += int64(len(c.Name) + len(c.TypeName))
	}
	for _, row := range r.Rows {
		for _, cell := range row {
			size += cellSize(cell)
		}
	}
	return size
}

func cellSize(c Cell) int64 {
	switch c.Type {
	case TypeString:
		return int64(len(c.Str))
	case TypeBytes:
		return int64(len(c.Bytes))
	case TypeBool:
		return 1
	case TypeInt64, TypeFloat64:
		return 8
	default:
		return 1
	}
}
