// Package cache provides the ephemeral flow-status cache. Status
// lookups hit this cache first so the durable store is only consulted
// on a miss.
package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultTTL is the default lifetime of a cached status entry.
const DefaultTTL = time.Hour

// StatusCache stores terse flow status strings keyed by flow ID.
type StatusCache interface {
	// Set stores the status with the given TTL. A non-positive TTL
	// falls back to DefaultTTL.
	Set(ctx context.Context, flowID, status string, ttl time.Duration) error

	// Get returns the cached status, or ok=false on a miss or an
	// expired entry.
	Get(ctx context.Context, flowID string) (status string, ok bool)
}

type entry struct {
	status    string
	expiresAt time.Time
}

// MemoryCache is an in-process StatusCache with TTL expiry. A janitor
// goroutine sweeps expired entries; Get also checks expiry so a stale
// entry is never returned between sweeps.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	done    chan struct{}
	once    sync.Once
}

// NewMemoryCache creates a cache and starts its janitor.
func NewMemoryCache(sweepInterval time.Duration) *MemoryCache {
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}

	c := &MemoryCache{
		entries: make(map[string]entry),
		done:    make(chan struct{}),
	}
	go c.janitor(sweepInterval)
	return c
}

// Set stores the status with the given TTL.
func (c *MemoryCache) Set(ctx context.Context, flowID, status string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[flowID] = entry{
		status:    status,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Get returns the cached status if present and unexpired.
func (c *MemoryCache) Get(ctx context.Context, flowID string) (string, bool) {
	c.mu.RLock()
	e, ok := c.entries[flowID]
	c.mu.RUnlock()

	if !ok || time.Now().After(e.expiresAt) {
		return "", false
	}
	return e.status, true
}

// Close stops the janitor goroutine.
func (c *MemoryCache) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *MemoryCache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for id, e := range c.entries {
				if now.After(e.expiresAt) {
					delete(c.entries, id)
				}
			}
			c.mu.Unlock()
		case <-c.done:
			return
		}
	}
}
