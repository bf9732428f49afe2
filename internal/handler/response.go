// Package handler contains the HTTP boundary: it decodes requests, calls
// services, and writes JSON responses or browser redirects. Domain rules
// live in the service layer; handlers only translate.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/knowledgebase/internal/apperror"
)

// ErrorResponse is the error shape every endpoint returns.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status. Unknown errors
// become a generic 500; the raw message never reaches the client.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrProtected):
			status = http.StatusForbidden
			errorType = "protected"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		case errors.Is(err, apperror.ErrInvalidToken):
			status = http.StatusBadRequest
			errorType = "invalid_token"
		case errors.Is(err, apperror.ErrTooSoon):
			status = http.StatusTooManyRequests
			errorType = "too_soon"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
			Field:   appErr.Field,
		})
		return
	}

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// flash carries a one-line status message alongside a redirect target,
// for endpoints a browser form posts to.
type flash struct {
	Message  string `json:"message"`
	Location string `json:"location"`
}

// redirect answers a browser navigation: 303 See Other plus a tiny JSON
// body so API clients get the same information without following it.
func redirect(w http.ResponseWriter, location, message string) {
	w.Header().Set("Location", location)
	writeJSON(w, http.StatusSeeOther, flash{Message: message, Location: location})
}
