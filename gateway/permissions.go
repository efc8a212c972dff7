package gateway

import "github.com/lordbasex/dbgateway/internal/wire"

// PermissionFor returns the permission name a caller must hold to
// issue a request of this kind, restoring auth_middleware.h's
// per-operation permission scoping (SPEC_FULL.md's supplemented
// features) now that AUTH_FAILED and PERMISSION_DENIED are distinct
// outcomes. The transport layer checks this against auth.Result before
// ever calling Router.Execute — the core itself trusts its caller.
func PermissionFor(kind wire.QueryKind) string {
	switch kind {
	case wire.KindSelect:
		return "query:read"
	case wire.KindInsert, wire.KindUpdate, wire.KindDelete, wire.KindExecute, wire.KindBatch:
		return "query:write"
	case wire.KindPing:
		return "query:ping"
	default:
		return "query:read"
	}
}
