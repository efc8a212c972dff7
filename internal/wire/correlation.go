package wire

import "github.com/google/uuid"

// NewCorrelationID returns a fresh request correlation id. Restored per
// SPEC_FULL.md's supplemented features from
// original_source/session/session_id_generator.h, which mints a unique
// id per inbound request for logging and response matching; here it is
// backed by google/uuid rather than a hand-rolled generator.
func NewCorrelationID() string {
	return uuid.NewString()
}
