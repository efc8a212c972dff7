package gateway

import (
	"container/list"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sync"
	"time"

	"github.com/lordbasex/dbgateway/internal/wire"
)

// CacheConfig parameterizes the query cache (spec.md §4.9, ported from
// original_source/gateway/query_cache.h's cache_config).
type CacheConfig struct {
	Enabled            bool
	MaxEntries         int
	TTL                time.Duration // 0 disables expiration
	MaxResultSizeBytes int64
	EnableLRU          bool
}

// DefaultCacheConfig mirrors the C++ defaults (disabled by default).
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:            false,
		MaxEntries:         10000,
		TTL:                300 * time.Second,
		MaxResultSizeBytes: 1 << 20,
		EnableLRU:          true,
	}
}

// cacheEntry is one cached response. Held by a single *list.Element in
// lru (the owning structure); keyIndex maps each key to that element and
// tableIndex maps each table name to the set of keys that mention it, so
// no structure holds a second copy of the entry. Go's garbage
// collector makes the arena/handle indirection spec.md §9 describes for
// value-semantics languages unnecessary here — a plain pointer graph has
// no leak or use-after-free risk.
type cacheEntry struct {
	key           string
	response      wire.QueryResponse
	expiresAt     time.Time
	hasExpiry     bool
	tables        map[string]struct{}
	estimatedSize int64
}

// RemoteStore is the optional L2 tier consulted on a local-LRU miss and
// written through to on every local Put, letting a cold gateway process
// (fresh LRU) rejoin a warm cache instead of stampeding the backend.
// internal/cache.RemoteCache is the one concrete implementation, backed
// by Redis.
type RemoteStore interface {
	Fetch(key string) (response wire.QueryResponse, tables []string, ok bool)
	Store(key string, response wire.QueryResponse, tables []string, ttl time.Duration)
}

// Cache is the bounded LRU + TTL + table-invalidating query cache
// (spec.md §4.9 / §3). Grounded on the teacher's server/query_cache.go
// (doubly-linked LRU + key map shape) and
// original_source/gateway/query_cache.h (exact config/metrics/semantics,
// including the table_map secondary index).
type Cache struct {
	config  CacheConfig
	metrics CacheMetrics
	remote  RemoteStore

	mu         sync.RWMutex
	lru        *list.List // front = most recently used; elements hold *cacheEntry
	keyIndex   map[string]*list.Element
	tableIndex map[string]map[string]struct{} // table -> set of keys
}

// NewCache constructs a Cache from config.
func NewCache(config CacheConfig) *Cache {
	return &Cache{
		config:     config,
		lru:        list.New(),
		keyIndex:   make(map[string]*list.Element),
		tableIndex: make(map[string]map[string]struct{}),
	}
}

// SetRemote attaches an L2 store. Must be called before concurrent use
// begins; nil disables the L2 tier (the default).
func (c *Cache) SetRemote(remote RemoteStore) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remote = remote
}

// MakeKey implements spec.md §4.9's make_key: a deterministic hash over
// the SQL text, each parameter's name/type/value in order, and
// options.max_rows, rendered as lowercase hex.
func MakeKey(req wire.QueryRequest) string {
	h := sha256.New()
	h.Write([]byte(req.SQL))
	for _, p := range req.Params {
		h.Write([]byte{0}) // field separator
		h.Write([]byte(p.Name))
		h.Write([]byte{byte(p.Type)})
		switch p.Type {
		case wire.TypeNull:
		case wire.TypeBool:
			if p.Bool {
				h.Write([]byte{1})
			} else {
				h.Write([]byte{0})
			}
		case wire.TypeInt64:
			var buf [8]byte
			binary.BigEndian.PutUint64(buf[:], uint64(p.Int))
			h.Write(buf[:])
		case wire.TypeFloat64:
			var buf [8]byte
			binary.BigEndian.PutUint64(buf[:], math.Float64bits(p.Float))
			h.Write(buf[:])
		case wire.TypeString:
			h.Write([]byte(p.Str))
		case wire.TypeBytes:
			h.Write(p.Bytes)
		}
	}
	var maxRowsBuf [8]byte
	binary.BigEndian.PutUint64(maxRowsBuf[:], uint64(req.Options.MaxRows))
	h.Write(maxRowsBuf[:])
	return hex.EncodeToString(h.Sum(nil))
}

// Get implements spec.md §4.9's get(key): disabled caches never record;
// expired entries are removed and counted as a miss-via-expiration. On a
// local miss, an attached L2 RemoteStore is consulted and, on a hit,
// used to repopulate the local LRU (SPEC_FULL.md's L2 cache addition;
// spec.md's own get(key) contract only describes the local tier).
func (c *Cache) Get(key string) (wire.QueryResponse, bool) {
	if !c.config.Enabled {
		return wire.QueryResponse{}, false
	}

	c.mu.Lock()
	elem, ok := c.keyIndex[key]
	if ok {
		entry := elem.Value.(*cacheEntry)
		if entry.hasExpiry && time.Now().After(entry.expiresAt) {
			c.removeElementLocked(elem)
			c.metrics.recordExpiration()
			ok = false
		} else {
			c.metrics.recordHit()
			if c.config.EnableLRU {
				c.lru.MoveToFront(elem)
			}
			resp := entry.response
			c.mu.Unlock()
			return resp, true
		}
	}
	remote := c.remote
	c.mu.Unlock()

	if remote != nil {
		if resp, tables, hit := remote.Fetch(key); hit {
			c.metrics.recordHit()
			c.putLocal(key, resp, tables, false)
			return resp, true
		}
	}
	c.metrics.recordMiss()
	return wire.QueryResponse{}, false
}

// Put implements spec.md §4.9's put(key, response, tables), then writes
// through to the attached L2 RemoteStore, if any.
func (c *Cache) Put(key string, response wire.QueryResponse, tables []string) {
	if !c.config.Enabled || response.Status != wire.StatusOK {
		return
	}

	size := response.EstimatedSize()
	if c.config.MaxResultSizeBytes > 0 && size > c.config.MaxResultSizeBytes {
		c.metrics.recordSkippedTooLarge()
		return
	}

	c.putLocal(key, response, tables, true)

	c.mu.RLock()
	remote := c.remote
	c.mu.RUnlock()
	if remote != nil {
		remote.Store(key, response, tables, c.config.TTL)
	}
}

// putLocal inserts into the local LRU without the L2 write-through,
// shared by Put (new result) and Get's L2-hit backfill path.
func (c *Cache) putLocal(key string, response wire.QueryResponse, tables []string, recordMetric bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.keyIndex[key]; ok {
		c.removeElementLocked(existing)
	}

	for c.lru.Len() >= c.config.MaxEntries && c.config.MaxEntries > 0 {
		tail := c.lru.Back()
		if tail == nil {
			break
		}
		c.removeElementLocked(tail)
		c.metrics.recordEviction()
	}
	if c.config.MaxEntries == 0 {
		return
	}

	size := response.EstimatedSize()
	tableSet := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		tableSet[t] = struct{}{}
		if c.tableIndex[t] == nil {
			c.tableIndex[t] = make(map[string]struct{})
		}
		c.tableIndex[t][key] = struct{}{}
	}

	entry := &cacheEntry{
		key:           key,
		response:      response,
		tables:        tableSet,
		estimatedSize: size,
	}
	if c.config.TTL > 0 {
		entry.hasExpiry = true
		entry.expiresAt = time.Now().Add(c.config.TTL)
	}

	elem := c.lru.PushFront(entry)
	c.keyIndex[key] = elem
	if recordMetric {
		c.metrics.recordPut()
	}
}

// Invalidate implements spec.md §4.9's invalidate(table): removes every
// entry mentioning table and erases the table's index entry.
func (c *Cache) Invalidate(table string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.tableIndex[table]
	if len(keys) == 0 {
		return
	}
	n := 0
	for key := range keys {
		if elem, ok := c.keyIndex[key]; ok {
			c.removeElementLocked(elem)
			n++
		}
	}
	delete(c.tableIndex, table)
	c.metrics.recordInvalidations(n)
}

// InvalidateKey implements spec.md §4.9's invalidate_key(key).
func (c *Cache) InvalidateKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.keyIndex[key]; ok {
		c.removeElementLocked(elem)
		c.metrics.recordInvalidations(1)
	}
}

// Clear drops all structures.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Init()
	c.keyIndex = make(map[string]*list.Element)
	c.tableIndex = make(map[string]map[string]struct{})
}

// Size returns the current entry count.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Len()
}

// Metrics returns the cache's metrics collector.
func (c *Cache) Metrics() *CacheMetrics { return &c.metrics }

// removeElementLocked unlinks an entry from the LRU list, key index,
// and every table index set it participates in. Caller must hold c.mu.
func (c *Cache) removeElementLocked(elem *list.Element) {
	entry := elem.Value.(*cacheEntry)
	c.lru.Remove(elem)
	delete(c.keyIndex, entry.key)
	for t := range entry.tables {
		if set, ok := c.tableIndex[t]; ok {
			delete(set, entry.key)
			if len(set) == 0 {
				delete(c.tableIndex, t)
			}
		}
	}
}
