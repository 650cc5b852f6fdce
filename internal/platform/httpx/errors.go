// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/smartsprint/smartsprint/internal/shared"
)

// Sentinel errors owned by the HTTP layer.
var (
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, shared.Kind(err), "Not Found", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, shared.Kind(err), "Validation Failed", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, shared.Kind(err), "Conflict", shared.UserSafeMessage(err))
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "forbidden", "Forbidden", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "unauthorized", "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "persistence_failure", "Internal Error", "")
	}
}
