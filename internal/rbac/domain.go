package rbac

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Resource scopes a permission below its module:action pair. The zero value
// matches any resource, which keeps wildcard handling out of string sentinels.
type Resource struct {
	name string
}

// AnyResource returns the wildcard resource.
func AnyResource() Resource {
	return Resource{}
}

// ExactResource returns a resource matching only the given name.
func ExactResource(name string) Resource {
	return Resource{name: strings.ToLower(strings.TrimSpace(name))}
}

// IsAny reports whether the resource is the wildcard.
func (r Resource) IsAny() bool {
	return r.name == ""
}

// Name returns the concrete resource name, empty for the wildcard.
func (r Resource) Name() string {
	return r.name
}

// Permission is an atomic capability descriptor.
type Permission struct {
	ID          int64
	Module      string
	Action      string
	Resource    Resource
	Description string
}

// String renders the wire form: module:action, or module:action:resource for
// an exact resource. Segments are lowercase and colon-delimited.
func (p Permission) String() string {
	return permissionKey(p.Module, p.Action, p.Resource)
}

// ParsePermission parses the wire form produced by String.
func ParsePermission(s string) (Permission, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), ":")
	switch len(parts) {
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return Permission{}, fmt.Errorf("rbac: malformed permission %q", s)
		}
		return Permission{Module: parts[0], Action: parts[1], Resource: AnyResource()}, nil
	case 3:
		if parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return Permission{}, fmt.Errorf("rbac: malformed permission %q", s)
		}
		if parts[2] == "*" {
			return Permission{Module: parts[0], Action: parts[1], Resource: AnyResource()}, nil
		}
		return Permission{Module: parts[0], Action: parts[1], Resource: ExactResource(parts[2])}, nil
	default:
		return Permission{}, fmt.Errorf("rbac: malformed permission %q", s)
	}
}

func permissionKey(module, action string, resource Resource) string {
	module = strings.ToLower(strings.TrimSpace(module))
	action = strings.ToLower(strings.TrimSpace(action))
	if resource.IsAny() {
		return module + ":" + action
	}
	return module + ":" + action + ":" + resource.Name()
}

// Role represents a named, administrator-managed bundle of permissions.
type Role struct {
	ID          int64
	Name        string
	Description string
	IsSystem    bool
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Assignment links a user to a role with temporal bounds.
type Assignment struct {
	UserID     int64
	RoleID     int64
	RoleName   string
	AssignedAt time.Time
	AssignedBy int64
	ExpiresAt  *time.Time
	IsActive   bool
	RevokedBy  *int64
	RevokedAt  *time.Time
}

// Valid reports whether the assignment currently grants its role. The role's
// own active flag is checked separately where the role is loaded.
func (a Assignment) Valid(now time.Time) bool {
	if !a.IsActive {
		return false
	}
	if a.ExpiresAt != nil && !a.ExpiresAt.After(now) {
		return false
	}
	return true
}

// PermissionSet is the deduplicated set of permission strings a user holds.
// Sets are treated as immutable once published to the cache.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from permissions.
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p.String()] = struct{}{}
	}
	return set
}

// ParsePermissionSet builds a set from wire-form strings, skipping blanks.
func ParsePermissionSet(raw []string) (PermissionSet, error) {
	set := make(PermissionSet, len(raw))
	for _, s := range raw {
		if strings.TrimSpace(s) == "" {
			continue
		}
		p, err := ParsePermission(s)
		if err != nil {
			return nil, err
		}
		set[p.String()] = struct{}{}
	}
	return set, nil
}

// Has reports whether the exact wire-form string is present.
func (s PermissionSet) Has(perm string) bool {
	_, ok := s[perm]
	return ok
}

// Allows decides a (module, action, resource) check. Precedence: an exact
// module:action:resource entry wins, then the module:action wildcard tier,
// otherwise deny. A wildcard request checks only the wildcard tier.
func (s PermissionSet) Allows(module, action string, resource Resource) bool {
	if !resource.IsAny() && s.Has(permissionKey(module, action, resource)) {
		return true
	}
	return s.Has(permissionKey(module, action, AnyResource()))
}

// Strings returns the sorted wire forms, for token snapshots and responses.
func (s PermissionSet) Strings() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
