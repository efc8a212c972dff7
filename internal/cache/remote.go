// Package cache provides the gateway's optional L2 cache tier, backed
// by Redis. SPEC_FULL.md's domain stack names this component; spec.md
// itself only describes the local, in-process LRU (gateway.Cache).
package cache

import (
	"bytes"
	"context"
	"encoding/gob"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lordbasex/dbgateway/internal/wire"
)

// payload is the gob-encoded unit stored in Redis: the cached response
// plus the table set needed to keep Cache.Invalidate's local index
// consistent once an L2 entry is pulled back into the L1 LRU.
type payload struct {
	Response wire.QueryResponse
	Tables   []string
}

// RemoteCache implements gateway.RemoteStore over a Redis client,
// namespacing every key so the gateway can share a Redis instance with
// other tenants. Grounded on the teacher's connection-wrapper style
// (client/reconnect.go) for the request-timeout discipline around every
// network call; the go-redis/v9 client itself supplies its own
// connection pool and retry, so no reconnect logic is duplicated here.
type RemoteCache struct {
	client    *redis.Client
	namespace string
	timeout   time.Duration
	log       *zap.SugaredLogger
}

// RemoteCacheConfig configures RemoteCache's connection and behavior.
type RemoteCacheConfig struct {
	Addr      string
	Password  string
	DB        int
	Namespace string
	Timeout   time.Duration
}

// DefaultRemoteCacheConfig returns sane defaults for a local Redis.
func DefaultRemoteCacheConfig() RemoteCacheConfig {
	return RemoteCacheConfig{
		Addr:      "localhost:6379",
		Namespace: "dbgateway:qc:",
		Timeout:   250 * time.Millisecond,
	}
}

// NewRemoteCache constructs a RemoteCache. The Redis connection is
// lazy (go-redis dials on first use), so construction never blocks.
func NewRemoteCache(config RemoteCacheConfig, log *zap.SugaredLogger) *RemoteCache {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	return &RemoteCache{client: client, namespace: config.Namespace, timeout: config.Timeout, log: log}
}

func (r *RemoteCache) fullKey(key string) string {
	return r.namespace + key
}

// Fetch implements gateway.RemoteStore. Any Redis error (including a
// timeout or a down broker) is treated as a miss: the L2 tier is
// strictly best-effort and must never surface as a query failure.
func (r *RemoteCache) Fetch(key string) (wire.QueryResponse, []string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.fullKey(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.log.Debugw("remote cache fetch failed", "error", err)
		}
		return wire.QueryResponse{}, nil, false
	}

	var p payload
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
		r.log.Warnw("remote cache entry corrupt, discarding", "error", err)
		return wire.QueryResponse{}, nil, false
	}
	return p.Response, p.Tables, true
}

// Store implements gateway.RemoteStore. ttl of 0 stores without
// expiration, matching the local Cache's "0 disables expiration"
// convention.
func (r *RemoteCache) Store(key string, response wire.QueryResponse, tables []string, ttl time.Duration) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(payload{Response: response, Tables: tables}); err != nil {
		r.log.Warnw("remote cache encode failed", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.client.Set(ctx, r.fullKey(key), buf.Bytes(), ttl).Err(); err != nil {
		r.log.Debugw("remote cache store failed", "error", err)
	}
}

// InvalidateTable best-effort mirrors gateway.Cache.Invalidate onto the
// L2 tier. Unlike the local cache, Redis holds no table->keys secondary
// index, so this SCANs every namespaced key, decodes its stored table
// set, and deletes the ones that mention table. Acceptable because
// cross-process invalidation is an administrative path, not a hot one.
func (r *RemoteCache) InvalidateTable(ctx context.Context, table string) error {
	pattern := r.namespace + "*"
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	var toDelete []string
	for iter.Next(ctx) {
		fullKey := iter.Val()
		data, err := r.client.Get(ctx, fullKey).Bytes()
		if err != nil {
			continue
		}
		var p payload
		if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p); err != nil {
			continue
		}
		for _, t := range p.Tables {
			if t == table {
				toDelete = append(toDelete, fullKey)
				break
			}
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(toDelete) == 0 {
		return nil
	}
	return r.client.Del(ctx, toDelete...).Err()
}

// Close releases the underlying Redis connection pool.
func (r *RemoteCache) Close() error {
	return r.client.Close()
}
