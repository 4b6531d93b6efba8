package rbac

import (
	"sync"
	"time"
)

type cacheEntry struct {
	set        PermissionSet
	computedAt time.Time
}

// Cache is the in-process, time-bounded store of resolved permission sets,
// keyed by user id. It is owned by the service container rather than being a
// package-level map so tests can construct isolated instances.
//
// A revoked grant may survive in the cache for up to the TTL unless the
// owning mutation invalidates explicitly; that staleness window is accepted.
type Cache struct {
	mu      sync.RWMutex
	entries map[int64]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewCache constructs a cache with the given TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[int64]cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached set when present and younger than the TTL.
func (c *Cache) Get(userID int64) (PermissionSet, bool) {
	c.mu.RLock()
	entry, ok := c.entries[userID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.computedAt) >= c.ttl {
		return nil, false
	}
	return entry.set, true
}

// Put stores the set, overwriting any prior entry for the user.
func (c *Cache) Put(userID int64, set PermissionSet) {
	c.mu.Lock()
	c.entries[userID] = cacheEntry{set: set, computedAt: c.now()}
	c.mu.Unlock()
}

// Invalidate removes the entry for one user. Used when that user's own role
// assignments change.
func (c *Cache) Invalidate(userID int64) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}

// InvalidateAll clears every entry. Used when a role's permission set
// changes, since an unknown number of users may hold that role.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[int64]cacheEntry)
	c.mu.Unlock()
}

// TTL exposes the configured entry lifetime.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Len reports the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
