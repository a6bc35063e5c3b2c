// internal/apperrors/errors.go
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the HTTP layer can pick a status code without
// inspecting messages.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindInternal   Kind = "internal"
)

// Reasons carried by conflict errors.
const (
	ReasonAlreadyActivated    = "already_activated"
	ReasonSystemAlreadyActive = "system_already_activated"
	ReasonKeyBoundElsewhere   = "key_bound_elsewhere"
	ReasonKeyMismatch         = "key_mismatch"
	ReasonLicenseExpired      = "license_expired"
	ReasonDuplicateDevice     = "duplicate_device"
	ReasonDuplicateKey        = "duplicate_key"
	ReasonInvalidTransition   = "invalid_transition"
	ReasonPaymentDeclined     = "payment_declined"
	ReasonSlugTaken           = "slug_taken"
	ReasonUserExists          = "user_exists"
)

// Error is the tagged error returned by services.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func Validationf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Conflict(reason, message string) *Error {
	return &Error{Kind: KindConflict, Reason: reason, Message: message}
}

// Expired is a conflict raised when a license is past its expiration date.
func Expired(message string) *Error {
	return &Error{Kind: KindConflict, Reason: ReasonLicenseExpired, Message: message}
}

func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, Cause: cause}
}

// WithCause attaches the underlying error and returns e.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// KindOf returns the kind of err, or KindInternal for untagged errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// ReasonOf returns the reason attached to err, if any.
func ReasonOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Reason
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// IsExpired reports whether err is the license expired conflict.
func IsExpired(err error) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == KindConflict && appErr.Reason == ReasonLicenseExpired
}
