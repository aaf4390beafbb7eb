package http

import (
	"errors"
	"net/http"

	"expensetracker/internal/auth"
	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/services"
)

// writeError maps domain errors onto status codes. Anything unrecognised is
// logged and reported as a bare 500.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		ErrorResponse(http.StatusRequestEntityTooLarge, err.Error()).Write(w)
	case errors.Is(err, core.ErrZeroDate),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrInvalidBudget),
		errors.Is(err, services.ErrReceiptEmpty),
		errors.Is(err, services.ErrReceiptNoDate),
		errors.Is(err, auth.ErrEmptyUsername),
		errors.Is(err, auth.ErrEmptyPassword):
		UnprocessableEntityError(err.Error()).Write(w)
	case errors.Is(err, auth.ErrInvalidCredentials):
		ErrorResponse(http.StatusUnauthorized, err.Error()).Write(w)
	case errors.Is(err, auth.ErrUserExists):
		ErrorResponse(http.StatusConflict, err.Error()).Write(w)
	case errors.Is(err, services.ErrCategoryNotFound):
		NotFoundError(err.Error()).Write(w)
	case errors.Is(err, services.ErrBackupUnsupported):
		ErrorResponse(http.StatusNotImplemented, err.Error()).Write(w)
	case errors.Is(err, services.ErrNoExtractor):
		ErrorResponse(http.StatusServiceUnavailable, err.Error()).Write(w)
	default:
		applog.LogError(r.Context(), "Request failed", err, op, nil)
		InternalServerError().Write(w)
	}
}
