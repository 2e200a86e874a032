package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/vminventory/vminventory/internal/shared"
)

// StatusFor maps a domain error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrUnauthorized), errors.Is(err, shared.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// RespondError converts err into the response envelope. 4xx answers carry
// {message}; 5xx answers carry {error} and the cause is logged.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := StatusFor(err)
	if status < http.StatusInternalServerError {
		Message(w, status, err.Error())
		return
	}
	if logger != nil {
		logger.Error("request failed", slog.Any("error", err))
	}
	JSON(w, status, ErrorBody{Error: shared.UserSafeMessage(err)})
}
