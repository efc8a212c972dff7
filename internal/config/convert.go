package config

import (
	"github.com/lordbasex/dbgateway/gateway"
	"github.com/lordbasex/dbgateway/internal/auth"
)

// ToPoolConfig converts Config to gateway.PoolConfig.
func (c *Config) ToPoolConfig() gateway.PoolConfig {
	return gateway.PoolConfig{
		MinConnections:      c.PoolMinConnections,
		MaxConnections:      c.PoolMaxConnections,
		AcquireTimeout:      c.PoolAcquireTimeout,
		IdleTimeout:         c.PoolIdleTimeout,
		HealthCheckInterval: c.PoolHealthCheckInterval,
		EnableHealthChecks:  true,
	}
}

// ToAgingConfig converts Config to gateway.AgingConfig.
func (c *Config) ToAgingConfig() gateway.AgingConfig {
	return gateway.AgingConfig{
		Interval:            c.AgingInterval,
		BoostIncrement:      c.AgingBoostIncrement,
		Curve:               gateway.ParseAgingCurve(c.AgingCurve),
		MaxBoost:            c.AgingMaxBoost,
		StarvationThreshold: c.AgingStarvationThreshold,
	}
}

// ToCacheConfig converts Config to gateway.CacheConfig.
func (c *Config) ToCacheConfig() gateway.CacheConfig {
	return gateway.CacheConfig{
		Enabled:            c.CacheEnabled,
		MaxEntries:         c.CacheMaxEntries,
		TTL:                c.CacheTTL,
		MaxResultSizeBytes: c.CacheMaxResultSizeBytes,
		EnableLRU:          c.CacheEnableLRU,
	}
}

// ToReconnectConfig converts Config to gateway.ReconnectConfig.
func (c *Config) ToReconnectConfig() gateway.ReconnectConfig {
	return gateway.ReconnectConfig{
		EnableAutoReconnect: c.ReconnectEnabled,
		InitialDelay:        c.ReconnectInitialMS,
		MaxDelay:            c.ReconnectMaxMS,
		BackoffMultiplier:   c.ReconnectBackoff,
		MaxRetries:          c.ReconnectMaxRetries,
	}
}

// ToHealthCheckConfig converts Config to gateway.HealthCheckConfig.
func (c *Config) ToHealthCheckConfig() gateway.HealthCheckConfig {
	return gateway.HealthCheckConfig{
		HeartbeatInterval: c.HealthHeartbeatInterval,
		Timeout:           c.HealthTimeout,
		FailureThreshold:  c.HealthFailureThreshold,
		MinHealthScore:    c.HealthMinScore,
		EnableHeartbeat:   c.HealthEnableHeartbeat,
	}
}

// ToRouterConfig converts Config to gateway.RouterConfig.
func (c *Config) ToRouterConfig() gateway.RouterConfig {
	return gateway.RouterConfig{
		DefaultTimeout:       c.RouterDefaultTimeout,
		MaxConcurrentQueries: c.RouterMaxConcurrentQueries,
		EnableMetrics:        c.RouterEnableMetrics,
	}
}

// ToRateLimiterConfig converts Config to auth.TokenBucketConfig.
func (c *Config) ToRateLimiterConfig() auth.TokenBucketConfig {
	cfg := auth.DefaultTokenBucketConfig()
	cfg.RequestsPerSecond = c.RateLimitRequestsPerSecond
	cfg.BurstSize = c.RateLimitBurstSize
	return cfg
}
