package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a uniqueness conflict.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated occurs when the bearer credential is missing or invalid.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden occurs when the caller lacks the required permission.
	ErrForbidden = errors.New("forbidden")
	// ErrSystemRole occurs on attempts to delete or rename a system role.
	ErrSystemRole = errors.New("system role is protected")
)
