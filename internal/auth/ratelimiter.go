package auth

import (
	"sync"
	"time"
)

// TokenBucketConfig configures TokenBucketLimiter. Adapted from the
// teacher's server/rate_limiter.go RateLimiterConfig.
type TokenBucketConfig struct {
	RequestsPerSecond int
	BurstSize         int
	CleanupInterval   time.Duration
	InactiveCutoff    time.Duration
}

// DefaultTokenBucketConfig mirrors the teacher's defaults.
func DefaultTokenBucketConfig() TokenBucketConfig {
	return TokenBucketConfig{
		RequestsPerSecond: 10,
		BurstSize:         20,
		CleanupInterval:   5 * time.Minute,
		InactiveCutoff:    10 * time.Minute,
	}
}

type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64
	lastRefill time.Time
}

func newTokenBucket(capacity, refillRate float64) *tokenBucket {
	return &tokenBucket{tokens: capacity, capacity: capacity, refillRate: refillRate, lastRefill: time.Now()}
}

func (tb *tokenBucket) allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens += elapsed * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true
	}
	return false
}

// TokenBucketLimiter is the one concrete RateLimiter implementation,
// one token bucket per client id. Ported from the teacher's
// server/rate_limiter.go RateLimiter, generalized from client-IP keys
// to the gateway's auth.Result.ClientID.
type TokenBucketLimiter struct {
	config  TokenBucketConfig
	mu      sync.RWMutex
	buckets map[string]*tokenBucket
	stopCh  chan struct{}
}

// NewTokenBucketLimiter constructs a TokenBucketLimiter and starts its
// background cleanup loop.
func NewTokenBucketLimiter(config TokenBucketConfig) *TokenBucketLimiter {
	rl := &TokenBucketLimiter{
		config:  config,
		buckets: make(map[string]*tokenBucket),
		stopCh:  make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Allow implements RateLimiter.
func (rl *TokenBucketLimiter) Allow(clientID string) bool {
	if clientID == "" {
		clientID = "unknown"
	}

	rl.mu.RLock()
	bucket, ok := rl.buckets[clientID]
	rl.mu.RUnlock()

	if !ok {
		rl.mu.Lock()
		bucket, ok = rl.buckets[clientID]
		if !ok {
			bucket = newTokenBucket(float64(rl.config.BurstSize), float64(rl.config.RequestsPerSecond))
			rl.buckets[clientID] = bucket
		}
		rl.mu.Unlock()
	}

	return bucket.allow()
}

func (rl *TokenBucketLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.performCleanup()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *TokenBucketLimiter) performCleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for clientID, bucket := range rl.buckets {
		bucket.mu.Lock()
		inactive := now.Sub(bucket.lastRefill) > rl.config.InactiveCutoff
		bucket.mu.Unlock()
		if inactive {
			delete(rl.buckets, clientID)
		}
	}
}

// Stop shuts down the background cleanup loop.
func (rl *TokenBucketLimiter) Stop() {
	close(rl.stopCh)
}

// ActiveClients returns the number of clients with a live bucket.
func (rl *TokenBucketLimiter) ActiveClients() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.buckets)
}
