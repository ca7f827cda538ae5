// Package apperr defines the application error taxonomy and the single
// boundary mapping from domain errors to HTTP responses. Services return
// *Error values; nothing else is allowed to cross into a response body.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Error struct {
	Status int
	Code   string
	Detail string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Detail, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Detail)
}

func (e *Error) Unwrap() error { return e.cause }

// WithCause attaches an underlying error for logs. The cause is never
// serialized to the client.
func (e *Error) WithCause(err error) *Error {
	return &Error{Status: e.Status, Code: e.Code, Detail: e.Detail, cause: err}
}

func Validation(detail string) *Error {
	return &Error{Status: http.StatusUnprocessableEntity, Code: "VALIDATION_ERROR", Detail: detail}
}

func BadRequest(detail string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: "BAD_REQUEST", Detail: detail}
}

func Unauthorized(detail string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: "UNAUTHORIZED", Detail: detail}
}

func InvalidToken(detail string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: "INVALID_TOKEN", Detail: detail}
}

func Forbidden(detail string) *Error {
	return &Error{Status: http.StatusForbidden, Code: "FORBIDDEN", Detail: detail}
}

func InactiveAccount() *Error {
	return &Error{Status: http.StatusForbidden, Code: "INACTIVE_ACCOUNT", Detail: "user account is deactivated"}
}

func NotFound(resource string, id string) *Error {
	detail := resource + " not found"
	if id != "" {
		detail = fmt.Sprintf("%s with id %q not found", resource, id)
	}
	return &Error{Status: http.StatusNotFound, Code: "NOT_FOUND", Detail: detail}
}

func Conflict(detail string) *Error {
	return &Error{Status: http.StatusConflict, Code: "CONFLICT", Detail: detail}
}

func RateLimited() *Error {
	return &Error{Status: http.StatusTooManyRequests, Code: "RATE_LIMITED", Detail: "too many requests, try again later"}
}

func FileTooLarge(maxMB int) *Error {
	return &Error{
		Status: http.StatusRequestEntityTooLarge,
		Code:   "FILE_TOO_LARGE",
		Detail: fmt.Sprintf("file exceeds maximum allowed size of %d MB", maxMB),
	}
}

func Internal(err error) *Error {
	return &Error{
		Status: http.StatusInternalServerError,
		Code:   "INTERNAL_SERVER_ERROR",
		Detail: "an unexpected internal server error occurred",
		cause:  err,
	}
}

// As extracts an *Error from an error chain.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
