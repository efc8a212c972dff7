package gateway

import (
	"testing"

	"github.com/lordbasex/dbgateway/internal/wire"
)

func TestPermissionFor(t *testing.T) {
	cases := map[wire.QueryKind]string{
		wire.KindSelect:  "query:read",
		wire.KindInsert:  "query:write",
		wire.KindUpdate:  "query:write",
		wire.KindDelete:  "query:write",
		wire.KindExecute: "query:write",
		wire.KindBatch:   "query:write",
		wire.KindPing:    "query:ping",
	}
	for kind, want := range cases {
		if got := PermissionFor(kind); got != want {
			t.Errorf("PermissionFor(%v) = %q, want %q", kind, got, want)
		}
	}
}

func TestPermissionForUnknownKindDefaultsToRead(t *testing.T) {
	if got := PermissionFor(wire.QueryKind(99)); got != "query:read" {
		t.Errorf("PermissionFor(unknown) = %q, want \"query:read\"", got)
	}
}
