package rbac

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/smartsprint/smartsprint/internal/shared"
)

// UnknownPermissionsError lists permission ids that do not resolve to a catalog entry.
type UnknownPermissionsError struct {
	IDs []int64
}

func (e *UnknownPermissionsError) Error() string {
	parts := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("rbac: unknown permission ids: %s", strings.Join(parts, ", "))
}

// Is makes the error match shared.ErrValidation.
func (e *UnknownPermissionsError) Is(target error) bool {
	return target == shared.ErrValidation
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("rbac: "+format+": %w", append(args, shared.ErrValidation)...)
}
