package certification

import (
	"errors"
	"net/http"
)

// Domain errors for certification lifecycle operations.
var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicate      = errors.New("already exists")
	ErrValidation     = errors.New("validation failed")
	ErrConflict       = errors.New("conflict")
	ErrNotAllowed     = errors.New("not allowed")
	ErrArchived       = errors.New("archived")
	ErrNotRevoked     = errors.New("period is not revoked")
	ErrHasAssignments = errors.New("assignments exist")

	// ErrInvariant reports a caller bug such as mismatched identifiers.
	// It is returned to the caller and never recovered from.
	ErrInvariant = errors.New("invariant violated")
)

// MapHTTPStatus maps certification domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrDuplicate),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrHasAssignments),
		errors.Is(err, ErrNotRevoked),
		errors.Is(err, ErrArchived):
		return http.StatusConflict
	case errors.Is(err, ErrNotAllowed):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}
