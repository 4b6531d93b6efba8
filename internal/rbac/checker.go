package rbac

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/singleflight"
)

// Reason classifies an authorization decision.
type Reason string

const (
	// ReasonGranted means the permission set covered the requested triple.
	ReasonGranted Reason = "granted"
	// ReasonDenied means the set did not cover the triple.
	ReasonDenied Reason = "denied"
	// ReasonError means resolution failed and the check fails closed.
	ReasonError Reason = "error"
	// ReasonUnauthenticated means no identity was present to check.
	ReasonUnauthenticated Reason = "unauthenticated"
)

// Decision is the structured result consumed by route collaborators.
type Decision struct {
	Allowed bool
	Reason  Reason
}

// Resolver computes the currently-valid permission set for a user.
type Resolver interface {
	UserPermissions(ctx context.Context, userID int64) (PermissionSet, error)
}

// Checker is the single choke point for authorization decisions. It consults
// the cache first and falls back to the resolver on a miss, collapsing
// concurrent misses for the same user into one query.
type Checker struct {
	resolver Resolver
	cache    *Cache
	group    singleflight.Group
}

// NewChecker constructs a Checker.
func NewChecker(resolver Resolver, cache *Cache) *Checker {
	return &Checker{resolver: resolver, cache: cache}
}

// Resolve returns the user's permission set, via the cache when possible.
// An unknown user resolves to an empty set, not an error.
func (c *Checker) Resolve(ctx context.Context, userID int64) (PermissionSet, error) {
	if set, ok := c.cache.Get(userID); ok {
		return set, nil
	}
	v, err, _ := c.group.Do(strconv.FormatInt(userID, 10), func() (any, error) {
		set, err := c.resolver.UserPermissions(ctx, userID)
		if err != nil {
			return nil, err
		}
		c.cache.Put(userID, set)
		return set, nil
	})
	if err != nil {
		return nil, fmt.Errorf("rbac: resolve user %d: %w", userID, err)
	}
	return v.(PermissionSet), nil
}

// Authorize decides whether the user may perform (module, action, resource).
// Any resolution failure yields a deny decision alongside the error; callers
// must never treat an errored check as an allow.
func (c *Checker) Authorize(ctx context.Context, userID int64, module, action string, resource Resource) (Decision, error) {
	set, err := c.Resolve(ctx, userID)
	if err != nil {
		return Decision{Allowed: false, Reason: ReasonError}, err
	}
	if set.Allows(module, action, resource) {
		return Decision{Allowed: true, Reason: ReasonGranted}, nil
	}
	return Decision{Allowed: false, Reason: ReasonDenied}, nil
}
