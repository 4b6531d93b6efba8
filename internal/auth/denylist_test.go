package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foundry-erp/foundry-erp/internal/auth"
)

func newDenylist(t *testing.T) (*auth.Denylist, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return auth.NewDenylist(client), mr
}

func TestDenylistRevoke(t *testing.T) {
	denylist, _ := newDenylist(t)
	ctx := context.Background()

	revoked, err := denylist.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, denylist.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)))

	revoked, err = denylist.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestDenylistSkipsExpiredTokens(t *testing.T) {
	denylist, mr := newDenylist(t)
	ctx := context.Background()

	require.NoError(t, denylist.Revoke(ctx, "jti-old", time.Now().Add(-time.Minute)))
	assert.Equal(t, 0, len(mr.Keys()))
}

func TestDenylistEntryExpiresWithToken(t *testing.T) {
	denylist, mr := newDenylist(t)
	ctx := context.Background()

	require.NoError(t, denylist.Revoke(ctx, "jti-2", time.Now().Add(time.Minute)))
	mr.FastForward(2 * time.Minute)

	revoked, err := denylist.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestDenylistPropagatesBackendErrors(t *testing.T) {
	denylist, mr := newDenylist(t)
	mr.Close()

	_, err := denylist.IsRevoked(context.Background(), "jti-3")
	assert.Error(t, err)
}
