package auth

import "context"

// StaticValidator validates tokens against a fixed, in-memory map. It
// is the gateway's bundled default Validator — a config-driven stand-in
// for a real identity provider, the same role the teacher's device-ID
// allow-list plays for queue access in server/config.go.
type StaticValidator struct {
	tokens map[string]Result
}

// NewStaticValidator builds a StaticValidator from a token->Result map.
// Every Result's Success should be true; reject by omitting the token.
func NewStaticValidator(tokens map[string]Result) *StaticValidator {
	cp := make(map[string]Result, len(tokens))
	for k, v := range tokens {
		cp[k] = v
	}
	return &StaticValidator{tokens: cp}
}

// Validate implements Validator.
func (v *StaticValidator) Validate(ctx context.Context, token string) (Result, error) {
	if token == "" {
		return Result{Success: false, Code: "AUTH_FAILED", Message: "missing token"}, nil
	}
	res, ok := v.tokens[token]
	if !ok {
		return Result{Success: false, Code: "AUTH_FAILED", Message: "unknown token"}, nil
	}
	return res, nil
}
