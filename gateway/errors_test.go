package gateway

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lordbasex/dbgateway/internal/wire"
)

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want wire.StatusCode
	}{
		{nil, wire.StatusOK},
		{ErrTimeout, wire.StatusTimeout},
		{ErrNoConnection, wire.StatusNoConnection},
		{ErrConnectionFailed, wire.StatusConnectionFailed},
		{ErrAuthFailed, wire.StatusAuthFailed},
		{ErrPermissionDenied, wire.StatusPermissionDenied},
		{ErrRateLimited, wire.StatusRateLimited},
		{ErrInvalidQuery, wire.StatusInvalidQuery},
		{ErrRouterNotReady, wire.StatusError},
		{errors.New("unclassified"), wire.StatusError},
	}
	for _, c := range cases {
		if got := statusForError(c.err); got != c.want {
			t.Errorf("statusForError(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestStatusForErrorUnwrapsWrapped(t *testing.T) {
	wrapped := fmt.Errorf("select failed: %w", ErrConnectionFailed)
	if got := statusForError(wrapped); got != wire.StatusConnectionFailed {
		t.Errorf("statusForError(wrapped) = %v, want StatusConnectionFailed", got)
	}
}
