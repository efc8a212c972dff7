package config

import (
	"testing"

	"github.com/lordbasex/dbgateway/gateway"
	"github.com/lordbasex/dbgateway/internal/auth"
)

func TestToPoolConfigCarriesOverValues(t *testing.T) {
	cfg := Default()
	pc := cfg.ToPoolConfig()
	if pc.MinConnections != cfg.PoolMinConnections || pc.MaxConnections != cfg.PoolMaxConnections {
		t.Errorf("ToPoolConfig() = %+v, want fields sourced from Config", pc)
	}
	if !pc.EnableHealthChecks {
		t.Error("expected ToPoolConfig to always enable health checks")
	}
}

func TestToAgingConfigParsesCurve(t *testing.T) {
	cfg := Default()
	cfg.AgingCurve = "exponential"
	ac := cfg.ToAgingConfig()
	if ac.Curve != gateway.CurveExponential {
		t.Errorf("ToAgingConfig().Curve = %v, want CurveExponential", ac.Curve)
	}
}

func TestToCacheConfigCarriesOverValues(t *testing.T) {
	cfg := Default()
	cc := cfg.ToCacheConfig()
	if cc.Enabled != cfg.CacheEnabled || cc.MaxEntries != cfg.CacheMaxEntries || cc.TTL != cfg.CacheTTL {
		t.Errorf("ToCacheConfig() = %+v, want fields sourced from Config", cc)
	}
}

func TestToReconnectConfigCarriesOverValues(t *testing.T) {
	cfg := Default()
	rc := cfg.ToReconnectConfig()
	if rc.EnableAutoReconnect != cfg.ReconnectEnabled || rc.MaxRetries != cfg.ReconnectMaxRetries {
		t.Errorf("ToReconnectConfig() = %+v, want fields sourced from Config", rc)
	}
}

func TestToHealthCheckConfigCarriesOverValues(t *testing.T) {
	cfg := Default()
	hc := cfg.ToHealthCheckConfig()
	if hc.FailureThreshold != cfg.HealthFailureThreshold || hc.MinHealthScore != cfg.HealthMinScore {
		t.Errorf("ToHealthCheckConfig() = %+v, want fields sourced from Config", hc)
	}
}

func TestToRouterConfigCarriesOverValues(t *testing.T) {
	cfg := Default()
	rc := cfg.ToRouterConfig()
	if rc.DefaultTimeout != cfg.RouterDefaultTimeout || rc.MaxConcurrentQueries != cfg.RouterMaxConcurrentQueries {
		t.Errorf("ToRouterConfig() = %+v, want fields sourced from Config", rc)
	}
}

func TestToRateLimiterConfigOverridesRateAndBurstOnly(t *testing.T) {
	cfg := Default()
	cfg.RateLimitRequestsPerSecond = 5
	cfg.RateLimitBurstSize = 15
	rl := cfg.ToRateLimiterConfig()
	if rl.RequestsPerSecond != 5 || rl.BurstSize != 15 {
		t.Errorf("ToRateLimiterConfig() = %+v, want RequestsPerSecond=5 BurstSize=15", rl)
	}
	def := auth.DefaultTokenBucketConfig()
	if rl.CleanupInterval != def.CleanupInterval || rl.InactiveCutoff != def.InactiveCutoff {
		t.Errorf("expected cleanup/cutoff to keep the library defaults, got %+v", rl)
	}
}
