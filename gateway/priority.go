package gateway

import (
	"math"
	"time"

	"github.com/lordbasex/dbgateway/internal/wire"
)

// Priority is one of the four aging-queue bands. Higher values are
// served first, subject to the aging boost (see AgingConfig).
type Priority int

const (
	HealthCheck Priority = iota
	NormalQuery
	Transaction
	Critical
)

func (p Priority) String() string {
	switch p {
	case HealthCheck:
		return "HEALTH_CHECK"
	case NormalQuery:
		return "NORMAL_QUERY"
	case Transaction:
		return "TRANSACTION"
	case Critical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// DefaultPriority maps a query kind to its default band (spec.md §4.1).
// SELECT -> NORMAL, writes and EXECUTE/BATCH -> TRANSACTION, PING -> HEALTH_CHECK.
func DefaultPriority(k wire.QueryKind) Priority {
	switch k {
	case wire.KindSelect:
		return NormalQuery
	case wire.KindInsert, wire.KindUpdate, wire.KindDelete, wire.KindExecute, wire.KindBatch:
		return Transaction
	case wire.KindPing:
		return HealthCheck
	default:
		return NormalQuery
	}
}

// PriorityFor resolves a request's effective base priority: an explicit
// request.Priority always wins over the kind-derived default.
func PriorityFor(req wire.QueryRequest) Priority {
	if req.Priority != nil {
		return Priority(*req.Priority)
	}
	return DefaultPriority(req.Kind)
}

// AgingCurve shapes how wait time converts into a priority boost.
type AgingCurve int

const (
	CurveLinear AgingCurve = iota
	CurveExponential
	CurveLogarithmic
)

// apply evaluates the curve at x = wait/interval, x >= 0.
func (c AgingCurve) apply(x float64) float64 {
	switch c {
	case CurveExponential:
		return math.Exp(x) - 1
	case CurveLogarithmic:
		if x < 1 {
			return 0
		}
		return math.Log(x)
	default: // CurveLinear
		return x
	}
}

// ParseAgingCurve parses a config string into an AgingCurve, defaulting
// to CurveLinear on unrecognized input.
func ParseAgingCurve(s string) AgingCurve {
	switch s {
	case "exponential":
		return CurveExponential
	case "logarithmic":
		return CurveLogarithmic
	default:
		return CurveLinear
	}
}

// AgingConfig parameterizes the background sweeper (spec.md §4.1).
type AgingConfig struct {
	Interval            time.Duration
	BoostIncrement       float64
	Curve               AgingCurve
	MaxBoost            float64
	StarvationThreshold time.Duration
}

// DefaultAgingConfig mirrors the original_source defaults scaled to this
// gateway's sub-millisecond pool targets.
func DefaultAgingConfig() AgingConfig {
	return AgingConfig{
		Interval:            50 * time.Millisecond,
		BoostIncrement:      1.0,
		Curve:               CurveLinear,
		MaxBoost:            float64(Critical - HealthCheck),
		StarvationThreshold: 2 * time.Second,
	}
}

// boost computes the priority boost for an entry that has waited for
// the given duration, capped at MaxBoost.
func (c AgingConfig) boost(wait time.Duration) float64 {
	if c.Interval <= 0 || wait <= c.Interval {
		return 0
	}
	x := float64(wait) / float64(c.Interval)
	b := c.Curve.apply(x) * c.BoostIncrement
	if b > c.MaxBoost {
		b = c.MaxBoost
	}
	if b < 0 {
		b = 0
	}
	return b
}
