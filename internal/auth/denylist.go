package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Denylist tracks revoked token ids in Redis until their natural expiry, so
// a logout takes effect before the token's exp claim does.
type Denylist struct {
	client *redis.Client
}

// NewDenylist constructs a Denylist.
func NewDenylist(client *redis.Client) *Denylist {
	return &Denylist{client: client}
}

func denylistKey(jti string) string {
	return "auth:revoked:" + jti
}

// Revoke marks the token id revoked until expiresAt.
func (d *Denylist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// Already expired, nothing to remember.
		return nil
	}
	return d.client.Set(ctx, denylistKey(jti), "1", ttl).Err()
}

// IsRevoked reports whether the token id has been revoked. Errors propagate
// so the caller can fail closed.
func (d *Denylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := d.client.Get(ctx, denylistKey(jti)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
