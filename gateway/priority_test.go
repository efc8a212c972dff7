package gateway

import (
	"testing"
	"time"

	"github.com/lordbasex/dbgateway/internal/wire"
)

func TestDefaultPriority(t *testing.T) {
	cases := map[wire.QueryKind]Priority{
		wire.KindSelect:  NormalQuery,
		wire.KindInsert:  Transaction,
		wire.KindUpdate:  Transaction,
		wire.KindDelete:  Transaction,
		wire.KindExecute: Transaction,
		wire.KindBatch:   Transaction,
		wire.KindPing:    HealthCheck,
	}
	for kind, want := range cases {
		if got := DefaultPriority(kind); got != want {
			t.Errorf("DefaultPriority(%v) = %v, want %v", kind, got, want)
		}
	}
}

func TestPriorityForExplicitOverride(t *testing.T) {
	explicit := int(Critical)
	req := wire.QueryRequest{Kind: wire.KindSelect, Priority: &explicit}
	if got := PriorityFor(req); got != Critical {
		t.Errorf("PriorityFor with explicit priority = %v, want Critical", got)
	}
}

func TestPriorityForDefaultsWhenNoOverride(t *testing.T) {
	req := wire.QueryRequest{Kind: wire.KindSelect}
	if got := PriorityFor(req); got != NormalQuery {
		t.Errorf("PriorityFor without override = %v, want NormalQuery", got)
	}
}

func TestAgingBoostZeroBeforeInterval(t *testing.T) {
	cfg := DefaultAgingConfig()
	if b := cfg.boost(cfg.Interval / 2); b != 0 {
		t.Errorf("boost before interval elapsed = %v, want 0", b)
	}
}

func TestAgingBoostLinearGrowsWithWait(t *testing.T) {
	cfg := AgingConfig{Interval: 10 * time.Millisecond, BoostIncrement: 1, Curve: CurveLinear, MaxBoost: 100}
	b1 := cfg.boost(20 * time.Millisecond)
	b2 := cfg.boost(40 * time.Millisecond)
	if !(b2 > b1) {
		t.Errorf("expected longer wait to produce larger boost: b1=%v b2=%v", b1, b2)
	}
}

func TestAgingBoostCappedAtMax(t *testing.T) {
	cfg := AgingConfig{Interval: 1 * time.Millisecond, BoostIncrement: 1, Curve: CurveExponential, MaxBoost: 2}
	if b := cfg.boost(1 * time.Second); b != 2 {
		t.Errorf("boost = %v, want capped at MaxBoost=2", b)
	}
}

func TestParseAgingCurve(t *testing.T) {
	if ParseAgingCurve("exponential") != CurveExponential {
		t.Error("expected exponential")
	}
	if ParseAgingCurve("logarithmic") != CurveLogarithmic {
		t.Error("expected logarithmic")
	}
	if ParseAgingCurve("bogus") != CurveLinear {
		t.Error("expected fallback to linear on unrecognized input")
	}
}
