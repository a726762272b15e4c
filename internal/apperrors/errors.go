// Package apperrors is the error taxonomy shared by services and transports.
// Storage returns the bare kinds; services attach a client-facing message.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotAcceptable   = errors.New("not acceptable")
	ErrInvalid         = errors.New("invalid")
	ErrTooManyRequests = errors.New("too many requests")
)

type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func New(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error     { return New(ErrNotFound, format, args...) }
func Conflict(format string, args ...any) *Error     { return New(ErrConflict, format, args...) }
func Unauthorized(format string, args ...any) *Error { return New(ErrUnauthorized, format, args...) }
func NotAcceptable(format string, args ...any) *Error {
	return New(ErrNotAcceptable, format, args...)
}
func Invalid(format string, args ...any) *Error { return New(ErrInvalid, format, args...) }
func TooManyRequests(format string, args ...any) *Error {
	return New(ErrTooManyRequests, format, args...)
}

// PublicMessage returns the message safe to show a client, or fallback for
// errors outside the taxonomy.
func PublicMessage(err error, fallback string) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return fallback
}

// Kind reports which taxonomy kind err belongs to, nil if none.
func Kind(err error) error {
	for _, k := range []error{ErrNotFound, ErrConflict, ErrUnauthorized, ErrNotAcceptable, ErrInvalid, ErrTooManyRequests} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
