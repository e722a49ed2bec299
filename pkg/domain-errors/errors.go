// Package domainerrors defines coded errors shared across the lien service.
//
// Services attach a Code to every error they return so transport layers can
// translate consistently and callers can branch on failure class without
// string matching. Stores and the settlement gateway return sentinel errors
// (pkg/platform/sentinel); services wrap those into coded errors here.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error. The value doubles as the wire-level error
// slug in JSON responses.
type Code string

const (
	// CodeValidation covers bad issuance fields and amounts.
	CodeValidation Code = "validation_error"
	// CodeBadRequest covers malformed requests before field validation runs.
	CodeBadRequest Code = "bad_request"
	// CodeInvalidInput covers identifiers that fail parsing at trust
	// boundaries.
	CodeInvalidInput Code = "invalid_input"
	// CodeUnauthorized covers missing or wrong caller identity.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden covers authenticated callers lacking the required role.
	CodeForbidden Code = "forbidden"
	// CodeNotFound covers references to unknown or already-settled liens.
	CodeNotFound Code = "not_found"
	// CodeInvalidState covers illegal status transitions and settlement
	// attempts against a record not in the required status.
	CodeInvalidState Code = "invalid_state"
	// CodeInsufficientFunds covers payments below the required total and
	// gateway balance shortfalls.
	CodeInsufficientFunds Code = "insufficient_funds"
	// CodeOverflow covers arithmetic that would exceed the ledger unit width.
	CodeOverflow Code = "overflow"
	// CodeConflict covers lifecycle conflicts such as double initialization.
	CodeConflict Code = "conflict"
	// CodeInvariantViolation covers attempts to construct records that break
	// model invariants. Usually surfaced to callers as validation errors.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeInternal covers unexpected infrastructure failures. Details are
	// never exposed on the wire.
	CodeInternal Code = "internal_error"
	// CodeTimeout covers aborted transactions.
	CodeTimeout Code = "timeout"
)

// Error is a coded domain error. Use New or Wrap rather than constructing
// directly.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/As chains.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		if err == nil {
			break
		}
	}
	return false
}

// CodeOf returns the outermost code on err, or CodeInternal if err carries
// none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the outermost message on err, or an empty string.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}

// ToHTTPStatus maps a code to its HTTP response status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeBadRequest, CodeInvalidInput, CodeInvariantViolation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidState, CodeConflict:
		return http.StatusConflict
	case CodeInsufficientFunds:
		return http.StatusPaymentRequired
	case CodeOverflow:
		return http.StatusUnprocessableEntity
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
