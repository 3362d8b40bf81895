// ABOUTME: Structured error type shared by the RPC server and client.
// ABOUTME: Maps error codes to HTTP statuses and carries field-keyed validation messages.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies the class of a procedure failure on the wire.
type Code string

const (
	CodeBadRequest      Code = "BAD_REQUEST"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeTooManyRequests Code = "TOO_MANY_REQUESTS"
	CodeInternal        Code = "INTERNAL_SERVER_ERROR"
)

// HTTPStatus returns the HTTP status code the server answers with for c.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Data holds structured details attached to an Error.
type Data struct {
	FieldErrors map[string][]string `json:"fieldErrors,omitempty"`
}

// Error is a procedure failure. It is encoded verbatim in the response envelope.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Data    *Data  `json:"data,omitempty"`

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// HTTPStatus returns the status code for this error's code.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// FieldError returns the first validation message recorded for field.
func (e *Error) FieldError(field string) (string, bool) {
	if e == nil || e.Data == nil {
		return "", false
	}
	msgs := e.Data.FieldErrors[field]
	if len(msgs) == 0 || msgs[0] == "" {
		return "", false
	}
	return msgs[0], true
}

// New creates an error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// BadRequest reports malformed input that is not tied to a single field.
func BadRequest(message string) *Error {
	return New(CodeBadRequest, message)
}

// Validation reports field-keyed validation failures.
func Validation(fieldErrors map[string][]string) *Error {
	return &Error{
		Code:    CodeBadRequest,
		Message: "validation failed",
		Data:    &Data{FieldErrors: fieldErrors},
	}
}

// Unauthorized reports a missing or invalid session.
func Unauthorized(message string) *Error {
	if message == "" {
		message = "not signed in"
	}
	return New(CodeUnauthorized, message)
}

// NotFound reports a missing resource or procedure.
func NotFound(message string) *Error {
	return New(CodeNotFound, message)
}

// TooManyRequests reports a rate limited caller.
func TooManyRequests(message string) *Error {
	return New(CodeTooManyRequests, message)
}

// Internal wraps an unexpected failure. The cause is never sent over the wire.
func Internal(message string, cause error) *Error {
	return &Error{Code: CodeInternal, Message: message, cause: cause}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// From converts any error into an *Error, treating unknown errors as internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}
	return Internal("internal server error", err)
}
