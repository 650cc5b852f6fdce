package users

import (
	"time"

	"github.com/smartsprint/smartsprint/internal/shared"
)

// User represents a user account for management. RoleKey and RoleName are
// nil when the user has no role.
type User struct {
	ID            int64
	Email         string
	FirstName     string
	LastName      string
	AvatarURL     *string
	IsActive      bool
	EmailVerified bool
	LastLogin     *time.Time
	RoleID        *int64
	RoleKey       *string
	RoleName      *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ListFilters narrows a user listing. A blank RoleKey matches every role.
type ListFilters struct {
	Page     shared.Page
	IsActive *bool
	RoleKey  string
}
