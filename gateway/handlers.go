package gateway

import (
	"context"
	"regexp"
	"strings"

	"github.com/lordbasex/dbgateway/internal/wire"
)

// tableExtractPatterns implements spec.md §4.11's best-effort table
// extraction: "FROM <ident>", "JOIN <ident>", "INTO <ident>" (INSERT),
// "UPDATE <ident>". Style grounded on the teacher's
// server/sql_validator.go, which compiles a similar family of
// identifier-matching regexes at package init.
var tableExtractPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bFROM\s+([a-zA-Z_][a-zA-Z0-9_.]*)`),
	regexp.MustCompile(`(?i)\bJOIN\s+([a-zA-Z_][a-zA-Z0-9_.]*)`),
	regexp.MustCompile(`(?i)\bINTO\s+([a-zA-Z_][a-zA-Z0-9_.]*)`),
	regexp.MustCompile(`(?i)\bUPDATE\s+([a-zA-Z_][a-zA-Z0-9_.]*)`),
}

// ExtractTables is the best-effort regex extractor named in spec.md
// §4.11 and flagged as an open question in §9: false positives (extra
// invalidations) are tolerable, false negatives are a correctness
// hazard. Deployments that cannot tolerate that should supply explicit
// table annotations on the request instead of relying on this.
func ExtractTables(sql string) []string {
	seen := make(map[string]struct{})
	var tables []string
	for _, re := range tableExtractPatterns {
		for _, m := range re.FindAllStringSubmatch(sql, -1) {
			name := strings.ToLower(m[1])
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				tables = append(tables, name)
			}
		}
	}
	return tables
}

// HandlerSet implements spec.md §4.11's per-query-kind behavior: select
// caches, writes invalidate, ping short-circuits, execute passes
// through, batch runs sequentially on one leased connection. Expressed
// as a single dispatch site per spec.md §9's design note ("re-express as
// a tagged variant ... or as an interface with one concrete
// implementation per kind — whichever the target language renders more
// naturally"); Go renders the tagged-switch form most naturally here.
type HandlerSet struct{}

// NewHandlerSet constructs a HandlerSet. It is stateless; all state
// lives on the leased connection and the cache.
func NewHandlerSet() *HandlerSet { return &HandlerSet{} }

// Dispatch routes req to its kind's handler.
func (h *HandlerSet) Dispatch(ctx context.Context, conn *ResilientConnection, req wire.QueryRequest, cache *Cache) wire.QueryResponse {
	switch req.Kind {
	case wire.KindSelect:
		return h.handleSelect(ctx, conn, req, cache)
	case wire.KindInsert:
		return h.handleWrite(ctx, conn, req, cache, conn.Insert)
	case wire.KindUpdate:
		return h.handleWrite(ctx, conn, req, cache, conn.Update)
	case wire.KindDelete:
		return h.handleWrite(ctx, conn, req, cache, conn.Delete)
	case wire.KindExecute:
		return h.handleExecute(ctx, conn, req)
	case wire.KindPing:
		return h.handlePing(req)
	case wire.KindBatch:
		return h.handleBatch(ctx, conn, req, cache)
	default:
		return wire.QueryResponse{
			CorrelationID: req.ID,
			Status:        wire.StatusInvalidQuery,
			ErrorMessage:  "unrecognized query kind",
		}
	}
}

func (h *HandlerSet) handleSelect(ctx context.Context, conn *ResilientConnection, req wire.QueryRequest, cache *Cache) wire.QueryResponse {
	var key string
	cacheUsable := cache != nil
	if cacheUsable {
		key = MakeKey(req)
		if resp, hit := cache.Get(key); hit {
			resp.CorrelationID = req.ID
			return resp
		}
	}

	result, err := conn.Select(ctx, req.SQL, req.Params, req.Options.MaxRows)
	if err != nil {
		return errResp(req, err)
	}
	resp := wire.QueryResponse{
		CorrelationID: req.ID,
		Status:        wire.StatusOK,
		Columns:       result.Columns,
		Rows:          result.Rows,
		RowsAffected:  result.RowsAffected,
	}
	if cacheUsable {
		cache.Put(key, resp, ExtractTables(req.SQL))
	}
	return resp
}

type writeOp func(ctx context.Context, sql string, params []wire.Param) (int64, error)

func (h *HandlerSet) handleWrite(ctx context.Context, conn *ResilientConnection, req wire.QueryRequest, cache *Cache, do writeOp) wire.QueryResponse {
	affected, err := do(ctx, req.SQL, req.Params)
	if err != nil {
		return errResp(req, err)
	}
	if cache != nil {
		for _, t := range ExtractTables(req.SQL) {
			cache.Invalidate(t)
		}
	}
	return wire.QueryResponse{
		CorrelationID: req.ID,
		Status:        wire.StatusOK,
		RowsAffected:  affected,
	}
}

func (h *HandlerSet) handleExecute(ctx context.Context, conn *ResilientConnection, req wire.QueryRequest) wire.QueryResponse {
	result, err := conn.Execute(ctx, req.SQL, req.Params)
	if err != nil {
		return errResp(req, err)
	}
	return wire.QueryResponse{
		CorrelationID: req.ID,
		Status:        wire.StatusOK,
		Columns:       result.Columns,
		Rows:          result.Rows,
		RowsAffected:  result.RowsAffected,
	}
}

// handlePing never acquires a connection (spec.md §4.11): Router.Execute
// always leases one first, but the ping handler itself performs no
// backend I/O on it, keeping the lease duration negligible.
func (h *HandlerSet) handlePing(req wire.QueryRequest) wire.QueryResponse {
	return wire.QueryResponse{
		CorrelationID: req.ID,
		Status:        wire.StatusOK,
		Rows:          nil,
	}
}

// handleBatch executes member queries sequentially on one leased
// connection; the composite response carries the first non-OK status,
// if any (spec.md §4.11). Member statements are taken from
// req.Params[i].Str, one parameter per statement, by convention of the
// BATCH kind.
func (h *HandlerSet) handleBatch(ctx context.Context, conn *ResilientConnection, req wire.QueryRequest, cache *Cache) wire.QueryResponse {
	var totalAffected int64
	for _, p := range req.Params {
		if p.Type != wire.TypeString {
			continue
		}
		sub := wire.QueryRequest{
			ID:      req.ID,
			Kind:    classifyStatement(p.Str),
			SQL:     p.Str,
			Options: req.Options,
		}
		resp := h.Dispatch(ctx, conn, sub, cache)
		totalAffected += resp.RowsAffected
		if resp.Status != wire.StatusOK {
			resp.RowsAffected = totalAffected
			return resp
		}
	}
	return wire.QueryResponse{
		CorrelationID: req.ID,
		Status:        wire.StatusOK,
		RowsAffected:  totalAffected,
	}
}

// classifyStatement guesses a batch member statement's kind from its
// leading keyword, since BATCH members don't carry their own Kind field
// on the wire.
func classifyStatement(sql string) wire.QueryKind {
	trimmed := strings.TrimSpace(strings.ToUpper(sql))
	switch {
	case strings.HasPrefix(trimmed, "SELECT"):
		return wire.KindSelect
	case strings.HasPrefix(trimmed, "INSERT"):
		return wire.KindInsert
	case strings.HasPrefix(trimmed, "UPDATE"):
		return wire.KindUpdate
	case strings.HasPrefix(trimmed, "DELETE"):
		return wire.KindDelete
	default:
		return wire.KindExecute
	}
}

func errResp(req wire.QueryRequest, err error) wire.QueryResponse {
	return wire.QueryResponse{
		CorrelationID: req.ID,
		Status:        statusForError(err),
		ErrorMessage:  err.Error(),
	}
}
