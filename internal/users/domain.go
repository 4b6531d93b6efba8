package users

import "time"

// User represents a user account for management. Password hashes never leave
// the repository layer.
type User struct {
	ID        int64
	Username  string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
