package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, capacity int, ttl time.Duration) (*QueryCache[string], *Version) {
	t.Helper()
	version := &Version{}
	c, err := NewQueryCache[string](capacity, ttl, version)
	require.NoError(t, err)
	return c, version
}

func TestQueryCacheHit(t *testing.T) {
	c, version := newTestCache(t, 8, time.Minute)

	key := Key("some query", version.Current(), "k=10")
	c.Put(key, "cached response", 0, version.Current())

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "cached response", got)
}

func TestQueryCacheMiss(t *testing.T) {
	c, _ := newTestCache(t, 8, time.Minute)

	_, ok := c.Get("never stored")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, uint64(0), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestQueryCacheTTLExpiry(t *testing.T) {
	c, version := newTestCache(t, 8, 10*time.Millisecond)

	key := Key("query", version.Current())
	c.Put(key, "value", 0, version.Current())

	_, ok := c.Get(key)
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	// Expired entries are evicted lazily on read.
	_, ok = c.Get(key)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats().Len)
}

func TestQueryCachePerEntryTTL(t *testing.T) {
	// Given: a cache whose default TTL is long
	c, version := newTestCache(t, 8, time.Minute)

	short := Key("short-lived", version.Current())
	long := Key("long-lived", version.Current())
	c.Put(short, "s", 10*time.Millisecond, version.Current())
	c.Put(long, "l", 0, version.Current())

	time.Sleep(20 * time.Millisecond)

	// Then: only the entry stored with its own short TTL has expired
	_, ok := c.Get(short)
	assert.False(t, ok, "entry must expire against its own TTL, not the cache default")
	_, ok = c.Get(long)
	assert.True(t, ok)
}

func TestQueryCachePutKeepsSnapshotVersion(t *testing.T) {
	// Given: a key and version snapshotted before a corpus mutation
	c, version := newTestCache(t, 8, time.Minute)
	snapshot := version.Current()
	key := Key("query", snapshot)

	// When: the mutation commits before the put lands
	version.Bump()
	c.Put(key, "computed against the old corpus", 0, snapshot)

	// Then: the entry is already stale and never served
	_, ok := c.Get(key)
	assert.False(t, ok)
}

func TestQueryCacheVersionInvalidation(t *testing.T) {
	// Given: an entry stored at the current corpus version
	c, version := newTestCache(t, 8, time.Minute)
	key := Key("query", version.Current())
	c.Put(key, "stale soon", 0, version.Current())

	// When: a corpus mutation bumps the version
	version.Bump()

	// Then: the entry is never returned, even under its original key
	_, ok := c.Get(key)
	assert.False(t, ok)
}

func TestQueryCacheLRUEviction(t *testing.T) {
	c, version := newTestCache(t, 2, time.Minute)

	k1 := Key("one", version.Current())
	k2 := Key("two", version.Current())
	k3 := Key("three", version.Current())

	c.Put(k1, "1", 0, version.Current())
	c.Put(k2, "2", 0, version.Current())
	_, _ = c.Get(k1) // touch k1 so k2 is least recently used
	c.Put(k3, "3", 0, version.Current())

	_, ok := c.Get(k2)
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get(k1)
	assert.True(t, ok)
	_, ok = c.Get(k3)
	assert.True(t, ok)
}

func TestQueryCacheInvalidate(t *testing.T) {
	c, version := newTestCache(t, 8, time.Minute)
	c.Put(Key("q", version.Current()), "v", 0, version.Current())

	c.Invalidate()
	assert.Equal(t, 0, c.Stats().Len)
}

func TestKeyDeterminismAndSensitivity(t *testing.T) {
	assert.Equal(t, Key("q", 1, "k=10"), Key("q", 1, "k=10"))
	assert.NotEqual(t, Key("q", 1, "k=10"), Key("q", 2, "k=10"))
	assert.NotEqual(t, Key("q", 1, "k=10"), Key("q", 1, "k=20"))
	assert.NotEqual(t, Key("qa", 1), Key("q", 1, "a"))
}

func TestVersionMonotonic(t *testing.T) {
	v := &Version{}
	assert.Equal(t, uint64(0), v.Current())
	assert.Equal(t, uint64(1), v.Bump())
	assert.Equal(t, uint64(2), v.Bump())
	assert.Equal(t, uint64(2), v.Current())
}

func TestQueryCacheConcurrentReadsAndBumps(t *testing.T) {
	// A get racing an invalidation must never return an entry stored
	// under an older version once the bump is visible.
	c, version := newTestCache(t, 128, time.Minute)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				query := fmt.Sprintf("worker-%d-%d", w, i)
				v := version.Current()
				key := Key(query, v)
				c.Put(key, query, 0, v)
				if got, ok := c.Get(key); ok {
					// A hit may only ever serve the value stored
					// under that exact key.
					assert.Equal(t, query, got)
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			version.Bump()
		}
	}()
	wg.Wait()
}
