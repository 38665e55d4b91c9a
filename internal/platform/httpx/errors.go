package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflicting update")
)

// RespondError maps domain errors to HTTP responses.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Fail(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
	case errors.Is(err, ErrDuplicate):
		Fail(w, http.StatusConflict, "DUPLICATE", err.Error())
	case errors.Is(err, ErrConflict):
		Fail(w, http.StatusConflict, "CONFLICT", err.Error())
	case errors.Is(err, ErrValidation):
		Fail(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
	case errors.Is(err, ErrForbidden):
		Fail(w, http.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Fail(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
	default:
		Fail(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
