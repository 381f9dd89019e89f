// Package memory provides an in-process replay.NonceCache. It is suitable
// for a single dispatcher instance; use the redis cache when several
// instances share traffic.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/rhuss/authgate/pkg/replay"
)

// Cache is an in-memory NonceCache. Expired entries are swept lazily on
// writes once the sweep interval has passed.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]time.Time
	now       func() time.Time
	lastSweep time.Time
}

var _ replay.NonceCache = (*Cache)(nil)

const sweepInterval = time.Minute

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]time.Time), now: time.Now}
}

// Check implements replay.NonceCache.
func (c *Cache) Check(_ context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if exp, ok := c.entries[key]; ok && now.Before(exp) {
		return true, nil
	}

	c.entries[key] = now.Add(ttl)
	if now.Sub(c.lastSweep) >= sweepInterval {
		c.sweep(now)
	}
	return false, nil
}

// Len returns the number of unexpired entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweep(c.now())
	return len(c.entries)
}

func (c *Cache) sweep(now time.Time) {
	for k, exp := range c.entries {
		if !now.Before(exp) {
			delete(c.entries, k)
		}
	}
	c.lastSweep = now
}
