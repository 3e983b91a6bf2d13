// Package domainerrors provides coded errors shared across services and
// transports. Services create or wrap errors with a Code; the HTTP layer maps
// codes to status lines and JSON envelopes without inspecting error text.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an error category. Codes are stable API surface: they appear
// in HTTP responses and audit detail, so renaming one is a breaking change.
type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeTimeout      Code = "timeout"
	CodeInternal     Code = "internal_error"

	// Certification-domain codes.
	CodeUnsupportedDocumentType Code = "unsupported_document_type"
	CodeScanCancelled           Code = "scan_cancelled"
	CodeNotVerified             Code = "not_verified"
	CodeInvalidTransition       Code = "invalid_transition"
	CodeMalformedPayload        Code = "malformed_payload"
	CodeVerificationFailed      Code = "verification_failed"
)

// Error carries a code, a human-readable message, and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err returns
// nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for errors
// that did not originate from this package.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to its HTTP status. Unknown codes map to 500 so a
// forgotten mapping fails closed.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeInvalidInput, CodeUnsupportedDocumentType, CodeMalformedPayload:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvalidTransition:
		return http.StatusConflict
	case CodeNotVerified, CodeVerificationFailed:
		return http.StatusUnprocessableEntity
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
