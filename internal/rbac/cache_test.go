package rbac

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(ttl time.Duration) (*Cache, *time.Time) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewCache(ttl)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestCacheHitWithinTTL(t *testing.T) {
	c, now := newTestCache(5 * time.Minute)
	set := NewPermissionSet(Permission{Module: "orders", Action: "read"})
	c.Put(7, set)

	*now = now.Add(4 * time.Minute)

	got, ok := c.Get(7)
	require.True(t, ok)
	assert.True(t, got.Has("orders:read"))
}

func TestCacheExpiresAtTTLBoundary(t *testing.T) {
	c, now := newTestCache(5 * time.Minute)
	c.Put(7, NewPermissionSet())

	// An entry of age exactly TTL is already stale.
	*now = now.Add(5 * time.Minute)
	_, ok := c.Get(7)
	assert.False(t, ok)
}

func TestCacheMissForUnknownUser(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	_, ok := c.Get(42)
	assert.False(t, ok)
}

func TestCachePutOverwrites(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Put(7, NewPermissionSet(Permission{Module: "orders", Action: "read"}))
	c.Put(7, NewPermissionSet(Permission{Module: "orders", Action: "update"}))

	got, ok := c.Get(7)
	require.True(t, ok)
	assert.False(t, got.Has("orders:read"))
	assert.True(t, got.Has("orders:update"))
}

func TestCacheInvalidate(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Put(1, NewPermissionSet())
	c.Put(2, NewPermissionSet())

	c.Invalidate(1)

	_, ok := c.Get(1)
	assert.False(t, ok)
	_, ok = c.Get(2)
	assert.True(t, ok)
}

func TestCacheInvalidateAll(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Put(1, NewPermissionSet())
	c.Put(2, NewPermissionSet())

	c.InvalidateAll()

	assert.Equal(t, 0, c.Len())
}

func TestCacheInvalidateUnknownUserIsNoop(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	c.Put(1, NewPermissionSet())

	c.Invalidate(99)

	assert.Equal(t, 1, c.Len())
}
