// SPDX-License-Identifier: MIT

// Package cache stores rendered page HTML keyed by slug and content hash.
// A render is only repeated when the underlying Markdown changed.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"
)

// Cache provides thread-safe byte caching with expiration support.
type Cache interface {
	// Get retrieves a value. Returns false if not found or expired.
	Get(key string) ([]byte, bool)
	// Set stores a value with the specified TTL.
	Set(key string, value []byte, ttl time.Duration)
	// Delete removes a value.
	Delete(key string)
	// Clear removes all values.
	Clear()
	// Stats returns cache statistics.
	Stats() Stats
	// Close releases backend resources.
	Close() error
}

// Stats holds cache performance counters.
type Stats struct {
	Backend     string `json:"backend"`
	Hits        int64  `json:"hits"`
	Misses      int64  `json:"misses"`
	Sets        int64  `json:"sets"`
	Evictions   int64  `json:"evictions"`
	CurrentSize int    `json:"currentSize"`
}

// PageKey builds the cache key for one rendered page. The content hash and
// a fingerprint of the shell configuration are both part of the key, so
// neither changed source nor a hot-reloaded site title can surface a stale
// entry.
func PageKey(slug, hash, shell string) string {
	return "page:" + slug + ":" + hash + ":" + shell
}

// ShellFingerprint condenses the configuration that feeds the page shell
// into a short key component.
func ShellFingerprint(siteTitle string) string {
	sum := sha256.Sum256([]byte(siteTitle))
	return hex.EncodeToString(sum[:4])
}

type entry struct {
	value      []byte
	expiration time.Time
}

func (e *entry) isExpired() bool {
	return time.Now().After(e.expiration)
}

type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	janitor *janitor

	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	evictions atomic.Int64
}

// NewMemoryCache creates an in-memory cache. When cleanupInterval is
// positive, a background janitor removes expired entries.
func NewMemoryCache(cleanupInterval time.Duration) Cache {
	c := &memoryCache{
		entries: make(map[string]*entry),
	}

	if cleanupInterval > 0 {
		c.janitor = &janitor{
			interval: cleanupInterval,
			stop:     make(chan struct{}),
		}
		go c.janitor.run(c)
	}

	return c
}

func (c *memoryCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	e, found := c.entries[key]
	c.mu.RUnlock()

	if !found || e.isExpired() {
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return e.value, true
}

func (c *memoryCache) Set(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = &entry{
		value:      value,
		expiration: time.Now().Add(ttl),
	}
	c.mu.Unlock()
	c.sets.Add(1)
}

func (c *memoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *memoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

func (c *memoryCache) Stats() Stats {
	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()

	return Stats{
		Backend:     "memory",
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Sets:        c.sets.Load(),
		Evictions:   c.evictions.Load(),
		CurrentSize: size,
	}
}

// deleteExpired removes all expired entries. Returns the number removed.
func (c *memoryCache) deleteExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key, e := range c.entries {
		if e.isExpired() {
			delete(c.entries, key)
			count++
		}
	}

	c.evictions.Add(int64(count))
	return count
}

// Close stops the background janitor.
func (c *memoryCache) Close() error {
	if c.janitor != nil {
		c.janitor.stop <- struct{}{}
	}
	return nil
}

// janitor performs periodic cleanup of expired entries.
type janitor struct {
	interval time.Duration
	stop     chan struct{}
}

func (j *janitor) run(c *memoryCache) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.deleteExpired()
		case <-j.stop:
			return
		}
	}
}

// noOpCache disables caching entirely.
type noOpCache struct{}

// NewNoOpCache creates a cache that doesn't cache anything.
func NewNoOpCache() Cache {
	return &noOpCache{}
}

func (c *noOpCache) Get(string) ([]byte, bool)         { return nil, false }
func (c *noOpCache) Set(string, []byte, time.Duration) {}
func (c *noOpCache) Delete(string)                     {}
func (c *noOpCache) Clear()                            {}
func (c *noOpCache) Stats() Stats                      { return Stats{Backend: "none"} }
func (c *noOpCache) Close() error                      { return nil }
