package handler

import (
	"errors"
	"net/http"

	"github.com/securevoting/backend/internal/domain"
)

// statusFor maps domain sentinel errors to HTTP status codes. Services wrap
// their failures around these sentinels, so handlers never inspect error
// strings.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError writes the error with its mapped status. Internal faults
// are masked; integrity violations keep their message since auditors need to
// see where the chain broke.
func writeDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError && !errors.Is(err, domain.ErrIntegrity) {
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}
