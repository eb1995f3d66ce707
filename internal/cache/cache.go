package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity bounds the number of cached query results.
const DefaultCapacity = 512

// DefaultTTL is how long a cached result stays fresh.
const DefaultTTL = 60 * time.Second

// QueryCache is a bounded TTL cache for query results. Entries are scoped
// to the corpus version they were computed against: a version bump makes
// older entries unreachable (keys embed the version) and any entry read
// back stale is evicted lazily.
type QueryCache[V any] struct {
	entries *lru.Cache[string, entry[V]]
	ttl     time.Duration
	version *Version

	hits   atomic.Uint64
	misses atomic.Uint64
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
	version   uint64
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits   uint64
	Misses uint64
	Len    int
}

// NewQueryCache creates a query cache with the given capacity and default
// TTL (used when Put is called with a zero ttl). Zero values take defaults.
// The version counter is shared with whoever mutates the corpus.
func NewQueryCache[V any](capacity int, ttl time.Duration, version *Version) (*QueryCache[V], error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if version == nil {
		return nil, fmt.Errorf("query cache requires a version counter")
	}
	entries, err := lru.New[string, entry[V]](capacity)
	if err != nil {
		return nil, fmt.Errorf("create query cache: %w", err)
	}
	return &QueryCache[V]{entries: entries, ttl: ttl, version: version}, nil
}

// Key derives the cache key for a query under the given corpus version.
// Extra parts fold in anything that changes the result shape (k, weights).
func Key(query string, version uint64, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(query))
	h.Write([]byte{0})
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], version)
	h.Write(buf[:])
	for _, part := range parts {
		h.Write([]byte{0})
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached value for key if it is still fresh. Expired or
// version-stale entries are evicted on the way out.
func (c *QueryCache[V]) Get(key string) (V, bool) {
	var zero V
	e, ok := c.entries.Get(key)
	if !ok {
		c.misses.Add(1)
		return zero, false
	}
	if e.version != c.version.Current() || time.Now().After(e.expiresAt) {
		c.entries.Remove(key)
		c.misses.Add(1)
		return zero, false
	}
	c.hits.Add(1)
	return e.value, true
}

// Put stores a value under key, fresh for ttl (0 takes the cache default)
// and scoped to the corpus version the value was computed against. Callers
// pass the version they snapshotted before computing, so an entry written
// after a concurrent bump is already stale and never served.
func (c *QueryCache[V]) Put(key string, value V, ttl time.Duration, version uint64) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.entries.Add(key, entry[V]{
		value:     value,
		expiresAt: time.Now().Add(ttl),
		version:   version,
	})
}

// Invalidate drops every cached entry. Version bumps make this unnecessary
// for correctness; it exists for explicit flushes.
func (c *QueryCache[V]) Invalidate() {
	c.entries.Purge()
}

// Stats returns hit/miss counters and the current entry count.
func (c *QueryCache[V]) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Len:    c.entries.Len(),
	}
}
