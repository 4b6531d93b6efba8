package activity

import "time"

// Entry is one recorded authorized request.
type Entry struct {
	ID         int64
	UserID     int64
	Username   string
	Permission string
	Method     string
	Path       string
	OccurredAt time.Time
}
