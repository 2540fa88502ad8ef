package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("Validation Error")
	ErrConflict    = errors.New("conflict")
	ErrForbidden   = errors.New("forbidden")
	ErrAuthContext = errors.New("auth context unavailable")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
//
// Note that a capability DENIAL is not an error at the authorization gate —
// the gate returns a normal deny decision. Handlers construct this error
// only when they need to render that decision as an HTTP response.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// AuthContext returns an AppError for an unreachable credential or user
// store. This is an infrastructure failure, deliberately distinct from
// "not logged in" (which resolves to an anonymous identity, not an error).
// HTTP handlers map this to 503 Service Unavailable.
func AuthContext(err error) *AppError {
	return &AppError{
		Err:     ErrAuthContext,
		Message: fmt.Sprintf("identity could not be resolved: %v", err),
	}
}

// VersionConflict returns an AppError for a score projection write that lost
// the optimistic-versioning race. The aggregator retries these internally a
// bounded number of times; only an exhausted retry budget surfaces to the
// caller, mapped to 409 Conflict.
func VersionConflict(userID string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("score update for user %s lost a version race", userID),
	}
}
