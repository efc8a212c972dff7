// Package auth defines the authentication and rate-limiting
// collaborators the gateway core consumes as interfaces (spec.md §6:
// "the core trusts an injected validator ... The core itself never
// decodes the token"), plus one concrete rate limiter implementation.
package auth

import "context"

// Result is what Validate returns: success plus enough context for the
// router to produce AUTH_FAILED or PERMISSION_DENIED.
type Result struct {
	Success     bool
	Code        string
	Message     string
	ClientID    string
	Permissions []string
}

// Validator authenticates an opaque wire token. The core never decodes
// token itself — this interface is the sole decoder.
type Validator interface {
	Validate(ctx context.Context, token string) (Result, error)
}

// HasPermission reports whether a Result's permission list grants name,
// used by cmd/gateway's request handler to distinguish PERMISSION_DENIED
// from AUTH_FAILED per SPEC_FULL.md's restored auth_middleware.h
// distinction.
func (r Result) HasPermission(name string) bool {
	for _, p := range r.Permissions {
		if p == name || p == "*" {
			return true
		}
	}
	return false
}

// RateLimiter gates traffic per client. allow(client_id) -> bool per
// spec.md §6.
type RateLimiter interface {
	Allow(clientID string) bool
}
