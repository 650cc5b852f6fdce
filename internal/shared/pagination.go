package shared

import "fmt"

// Listing bounds for offset pagination.
const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// Page is an offset window over a listing.
type Page struct {
	Skip  int
	Limit int
}

// NewPage validates skip and limit. A zero limit falls back to DefaultLimit.
func NewPage(skip, limit int) (Page, error) {
	if skip < 0 {
		return Page{}, fmt.Errorf("skip must not be negative: %w", ErrValidation)
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 0 || limit > MaxLimit {
		return Page{}, fmt.Errorf("limit must be between 1 and %d: %w", MaxLimit, ErrValidation)
	}
	return Page{Skip: skip, Limit: limit}, nil
}
