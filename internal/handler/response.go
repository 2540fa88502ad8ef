package handler

// RESPONSE HELPERS:
// Every handler sends JSON through these two functions, so every error
// response in the API has the same shape:
//
//	{"error": "conflict", "message": "score update for user abc lost a version race"}
//
// The frontend always knows what fields to expect, regardless of whether
// it's a 400, 409, or 503.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nafis/campus-hub/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // machine-readable kind (e.g., "not_found")
	Message string `json:"message"` // human-readable description
}

// writeJSON sends a JSON response with the given status code.
//
// Headers and status MUST be set before the body: once Encode writes, the
// headers are on the wire and any later change is silently ignored.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers already sent — nothing left to do but log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status and sends it.
//
// This is the single place domain errors become status codes. The service
// layer deals in apperror sentinels and knows nothing about HTTP; the
// mapping lives here so a different transport could map the same errors
// its own way.
//
// THE MAPPING:
//
//	ErrValidation  → 400   bad input
//	ErrNotFound    → 404   no such user/entry
//	ErrForbidden   → 403   capability denied
//	ErrConflict    → 409   duplicate email, or a score write that lost the
//	                       version race more times than we retry
//	ErrAuthContext → 503   the identity infrastructure is down — emphatically
//	                       NOT 401: the caller's credential might be fine,
//	                       we just can't check it right now
//
// errors.Is walks the whole wrap chain, so a service error like
// fmt.Errorf("aggregating user %s: %w", id, apperror.VersionConflict(id))
// still matches its sentinel.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		case errors.Is(err, apperror.ErrAuthContext):
			status = http.StatusServiceUnavailable
			errorType = "auth_unavailable"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
		})
		return
	}

	// Unknown error — generic 500. Never leak internal details (SQL, file
	// paths) to the client.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// decode parses a JSON request body into dst, rejecting unknown fields so a
// misspelled field fails loudly instead of being silently dropped.
func decode(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "invalid JSON request body")
	}
	return nil
}
