package shared

import "errors"

// Error kinds shared by every domain package. Callers wrap them with context via
// fmt.Errorf("...: %w", ErrX) and match with errors.Is.
var (
	// ErrNotFound indicates a referenced role, user, permission or key does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a uniqueness clash.
	ErrConflict = errors.New("conflict")
	// ErrPersistence indicates the underlying storage operation failed.
	ErrPersistence = errors.New("persistence failure")
)

// Kind returns the stable name of the error kind carried by err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "persistence_failure"
	}
}

// UserSafeMessage returns a message that can be shown to API clients.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrValidation), errors.Is(err, ErrConflict):
		return err.Error()
	default:
		return "internal error"
	}
}
