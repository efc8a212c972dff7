package gateway

import (
	"errors"

	"github.com/lordbasex/dbgateway/internal/wire"
)

// Sentinel errors surfaced by the core. Callers test against these with
// errors.Is; the router translates them into wire.StatusCode at the
// response boundary (spec.md §7).
var (
	ErrPoolShuttingDown  = errors.New("gateway: pool is shutting down")
	ErrNoConnection      = errors.New("gateway: no connection available within timeout")
	ErrConnectionFailed  = errors.New("gateway: connection failed")
	ErrRouterNotReady    = errors.New("gateway: router not ready")
	ErrTimeout           = errors.New("gateway: operation timed out")
	ErrInvalidQuery      = errors.New("gateway: invalid query")
	ErrAuthFailed        = errors.New("gateway: authentication failed")
	ErrPermissionDenied  = errors.New("gateway: permission denied")
	ErrRateLimited       = errors.New("gateway: rate limited")
	ErrDoubleRelease     = errors.New("gateway: connection released twice (bug)")
	ErrCacheInvariant    = errors.New("gateway: cache invariant violated (bug)")
	ErrImpossibleState   = errors.New("gateway: impossible resilient-connection state transition (bug)")
)

// statusForError classifies an error into the response-side status
// taxonomy, matching spec.md §7's propagation rules: "Backend errors
// become ERROR unless they match a more specific case".
func statusForError(err error) wire.StatusCode {
	switch {
	case err == nil:
		return wire.StatusOK
	case errors.Is(err, ErrTimeout):
		return wire.StatusTimeout
	case errors.Is(err, ErrNoConnection):
		return wire.StatusNoConnection
	case errors.Is(err, ErrConnectionFailed):
		return wire.StatusConnectionFailed
	case errors.Is(err, ErrAuthFailed):
		return wire.StatusAuthFailed
	case errors.Is(err, ErrPermissionDenied):
		return wire.StatusPermissionDenied
	case errors.Is(err, ErrRateLimited):
		return wire.StatusRateLimited
	case errors.Is(err, ErrInvalidQuery):
		return wire.StatusInvalidQuery
	case errors.Is(err, ErrRouterNotReady):
		return wire.StatusError
	default:
		return wire.StatusError
	}
}
