// Package apperr defines the error kinds shared by the services and the HTTP layer.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrValidation is returned for missing or malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when a uniqueness rule would be violated.
	ErrConflict = errors.New("conflict")

	// ErrCredentials is returned when a username/email and password pair does not verify.
	ErrCredentials = errors.New("invalid credentials")

	// ErrUnauthorized is returned for a missing, malformed or expired bearer token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the caller lacks ownership or the admin role.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned when an entity does not exist.
	ErrNotFound = errors.New("not found")
)

// Error carries a user-facing message alongside its kind and an optional cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Validation(msg string) *Error   { return newError(ErrValidation, msg) }
func Conflict(msg string) *Error     { return newError(ErrConflict, msg) }
func Credentials(msg string) *Error  { return newError(ErrCredentials, msg) }
func Unauthorized(msg string) *Error { return newError(ErrUnauthorized, msg) }
func Forbidden(msg string) *Error    { return newError(ErrForbidden, msg) }
func NotFound(msg string) *Error     { return newError(ErrNotFound, msg) }

// Wrap attaches a cause to a kind.
func Wrap(kind error, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Status maps an error to the HTTP status the API answers with.
// Conflicts and bad credentials answer 400, matching what the client expects.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConflict), errors.Is(err, ErrCredentials):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the user-facing text of err. Unclassified errors get a
// generic message so internals never leak to clients.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && Status(err) < http.StatusInternalServerError {
		return e.Message
	}
	return "Something went wrong!"
}
