package auth

import (
	"context"
	"testing"
)

func TestStaticValidatorMissingToken(t *testing.T) {
	v := NewStaticValidator(nil)
	res, err := v.Validate(context.Background(), "")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Success || res.Code != "AUTH_FAILED" {
		t.Errorf("expected AUTH_FAILED for a missing token, got %+v", res)
	}
}

func TestStaticValidatorUnknownToken(t *testing.T) {
	v := NewStaticValidator(map[string]Result{"good": {Success: true, ClientID: "c1"}})
	res, err := v.Validate(context.Background(), "bad")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Success || res.Code != "AUTH_FAILED" {
		t.Errorf("expected AUTH_FAILED for an unknown token, got %+v", res)
	}
}

func TestStaticValidatorKnownToken(t *testing.T) {
	want := Result{Success: true, ClientID: "c1", Permissions: []string{"query:read"}}
	v := NewStaticValidator(map[string]Result{"good": want})
	res, err := v.Validate(context.Background(), "good")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Success != want.Success || res.ClientID != want.ClientID {
		t.Errorf("Validate(good) = %+v, want %+v", res, want)
	}
}

func TestStaticValidatorDefensiveCopy(t *testing.T) {
	tokens := map[string]Result{"good": {Success: true, ClientID: "c1"}}
	v := NewStaticValidator(tokens)
	tokens["good"] = Result{Success: false, ClientID: "mutated"}

	res, _ := v.Validate(context.Background(), "good")
	if res.ClientID != "c1" {
		t.Errorf("expected NewStaticValidator to defensively copy its input map, got ClientID=%q", res.ClientID)
	}
}

func TestResultHasPermission(t *testing.T) {
	r := Result{Permissions: []string{"query:read"}}
	if !r.HasPermission("query:read") {
		t.Error("expected an exact permission match to grant")
	}
	if r.HasPermission("query:write") {
		t.Error("expected a non-matching permission to be denied")
	}

	wildcard := Result{Permissions: []string{"*"}}
	if !wildcard.HasPermission("anything") {
		t.Error("expected a wildcard permission to grant everything")
	}
}
