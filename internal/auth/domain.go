package auth

import "time"

// User represents an account in the users relation.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PrimaryRole is the display role carried in token claims. Authorization
// never consults it; the permission resolver is the source of truth.
type PrimaryRole struct {
	ID   *int64
	Name string
}
