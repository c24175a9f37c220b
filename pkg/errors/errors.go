// Package errors defines the coded error type shared by the live tracking
// core. Codes travel to clients verbatim (websocket error frames, HTTP
// bodies); messages are safe for end users and never include internal detail.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeUnauthenticated    Code = "unauthenticated"
	CodeForbidden          Code = "forbidden"
	CodeValidation         Code = "validation"
	CodeRateLimited        Code = "rate_limited"
	CodeInvalidTransition  Code = "invalid_transition"
	CodeTransportNotActive Code = "transport_not_active"
	CodePersistence        Code = "persistence"
	CodeNotFound           Code = "not_found"
	CodeInternal           Code = "internal"
)

// Error is the domain error carried across component boundaries. It is
// compared by code, never by message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e Error) Unwrap() error { return e.Err }

func New(code Code, message string) error {
	return Error{Code: code, Message: message}
}

func Wrap(code Code, message string, err error) error {
	return Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the domain code from any error in the chain, defaulting to
// CodeInternal for errors that did not originate here.
func CodeOf(err error) Code {
	var de Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the user-safe message, falling back to a generic one for
// foreign errors so internals never leak to clients.
func MessageOf(err error) string {
	var de Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// HasCode reports whether err carries the given domain code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// ToHTTPStatus maps domain codes to HTTP statuses for the thin HTTP surface.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeValidation, CodeInvalidTransition, CodeTransportNotActive:
		return http.StatusBadRequest
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeNotFound:
		return http.StatusNotFound
	case CodePersistence:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
