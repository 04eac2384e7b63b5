// Package apperrors defines the uniform error envelope returned by every endpoint.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

type Type string

const (
	TypeValidation      Type = "validation_error"
	TypeAuthentication  Type = "authentication_error"
	TypeNotFound        Type = "not_found"
	TypePayloadTooLarge Type = "payload_too_large"
	TypeBackend         Type = "backend_error"
	TypeInternal        Type = "internal_error"
)

// Error is a failure normalized for the UI.
type Error struct {
	Message   string    `json:"message"`
	Type      Type      `json:"type"`
	Status    int       `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Err       error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Envelope is the JSON body written for an Error.
type Envelope struct {
	Success bool   `json:"success"`
	Error   *Error `json:"error"`
}

func (e *Error) Envelope() Envelope {
	return Envelope{Success: false, Error: e}
}

func New(t Type, status int, message string) *Error {
	return &Error{Message: message, Type: t, Status: status, Timestamp: time.Now().UTC()}
}

func Wrap(t Type, status int, message string, err error) *Error {
	e := New(t, status, message)
	e.Err = err
	return e
}

func Validation(message string) *Error {
	return New(TypeValidation, http.StatusBadRequest, message)
}

func Unauthorized(message string) *Error {
	return New(TypeAuthentication, http.StatusUnauthorized, message)
}

func NotFound(message string) *Error {
	return New(TypeNotFound, http.StatusNotFound, message)
}

func PayloadTooLarge(message string) *Error {
	return New(TypePayloadTooLarge, http.StatusRequestEntityTooLarge, message)
}

// Backend normalizes a failed call to the hosted backend. Statuses outside the
// error range are reported as 502.
func Backend(status int, message string, err error) *Error {
	if status < 400 || status > 599 {
		status = http.StatusBadGateway
	}
	t := TypeBackend
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		t = TypeAuthentication
	case http.StatusNotFound:
		t = TypeNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		t = TypeValidation
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return Wrap(t, status, message, err)
}

func Internal(message string, err error) *Error {
	return Wrap(TypeInternal, http.StatusInternalServerError, message, err)
}

// From returns err as an *Error, wrapping anything else as an internal error.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("Internal server error", err)
}

// IsType reports whether err carries the given type.
func IsType(err error, t Type) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Type == t
}
