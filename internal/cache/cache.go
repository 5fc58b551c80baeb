// Package cache provides the in-process TTL cache for GitHub API responses.
// It avoids redundant API calls when multiple tools fetch the same data
// within a short window (e.g. list threads followed by bulk resolve).
//
// Reads are cached with a short TTL; any mutation clears the entire cache,
// because resolving one thread can change the result of unrelated reads.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// DefaultTTL is the cache entry lifetime when none is configured.
const DefaultTTL = 30 * time.Second

type entry struct {
	storedAt time.Time
	value    []byte
}

// Cache is a mutex-guarded TTL map keyed by request fingerprint. It is safe
// for concurrent use across tool invocations. Values are raw response bytes;
// callers re-decode on hit so cached data is never aliased.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time // injectable for tests
}

// New creates a cache with the given TTL. A non-positive TTL falls back to
// DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Key builds a stable fingerprint from the call parameters.
func Key(parts ...any) string {
	raw, err := json.Marshal(parts)
	if err != nil {
		// Parts are strings and plain maps in practice; an unmarshalable part
		// still deserves a distinct (uncacheable-collision-free) key.
		raw = []byte(time.Now().String())
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:8])
}

// Get returns the cached bytes for key and whether they were present and fresh.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) >= c.ttl {
		delete(c.entries, key)
		slog.Debug("cache expired", "key", key)
		return nil, false
	}
	slog.Debug("cache hit", "key", key)
	return e.value, true
}

// Put stores value under key with the current timestamp.
func (c *Cache) Put(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{storedAt: c.now(), value: value}
}

// Clear drops every entry. Called after any mutation.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) > 0 {
		slog.Debug("cache cleared", "entries", len(c.entries))
	}
	c.entries = make(map[string]entry)
}

// Len returns the number of entries currently held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
