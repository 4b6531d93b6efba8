package shared

import (
	"context"
	"time"
)

// Identity describes the authenticated caller established by the auth guard.
type Identity struct {
	UserID   int64
	Username string
	// Role is the primary role name carried for display purposes only.
	Role   string
	RoleID *int64
	// Permissions is the snapshot embedded in the token at issuance time.
	// It is advisory; authorization always consults the live resolver.
	Permissions []string
	TokenID     string
	TokenExpiry time.Time
}

type identityContextKey struct{}

// ContextWithIdentity stores the identity in context.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity from context, nil when absent.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey{}).(*Identity)
	return id
}
