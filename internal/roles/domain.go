package roles

import "time"

// Role represents a role for management. Key is immutable once seeded.
type Role struct {
	ID        int64
	Key       string
	Name      string
	CreatedAt time.Time
}
