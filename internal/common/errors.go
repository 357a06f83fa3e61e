// Package common defines the error taxonomy and shared constants used across
// the server layers. Callers should use errors.Is to match sentinel values
// and KindOf to classify an arbitrary error.
package common

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a sentinel carrying a kind and a stable machine-readable code.
type Error struct {
	Kind Kind
	Code string
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

var (
	// Repository-level errors.
	ErrorNotFound = newError(KindNotFound, "not_found", "not found")
	ErrorConflict = newError(KindConflict, "conflict", "already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = newError(KindInternal, "internal_error", "internal error")
	ErrorUnauthorized = newError(KindAuthentication, "unauthorized", "unauthorized")
	ErrorForbidden    = newError(KindAuthorization, "access_denied", "access denied")
	ErrorValidation   = newError(KindValidation, "validation_error", "validation error")

	// Token errors.
	ErrTokenMissing      = newError(KindAuthentication, "token_missing", "missing bearer token")
	ErrInvalidToken      = newError(KindAuthentication, "token_invalid", "invalid token")
	ErrTokenExpired      = newError(KindAuthentication, "token_expired", "token expired")
	ErrTokenWrongPurpose = newError(KindAuthentication, "token_invalid", "token issued for another purpose")
	ErrTokenRevoked      = newError(KindAuthentication, "token_revoked", "token revoked")
	ErrTokenUserNotFound = newError(KindAuthentication, "user_not_found", "token subject does not exist")

	// Account errors.
	ErrUserNotFound       = newError(KindNotFound, "user_not_found", "user not found")
	ErrEmailTaken         = newError(KindConflict, "email_taken", "email already registered")
	ErrEmailNotVerified   = newError(KindAuthorization, "email_not_verified", "email not verified")
	ErrAccountBanned      = newError(KindAuthorization, "account_banned", "account banned")
	ErrInvalidCredentials = newError(KindAuthentication, "invalid_credentials", "invalid credentials")
	ErrWeakPassword       = newError(KindValidation, "weak_password",
		"password must be at least 8 characters and contain an uppercase letter, a digit and a special character")
	ErrLinkInvalid = newError(KindValidation, "link_invalid", "link invalid or expired")

	// Self-action prevention.
	ErrCannotActOnSelf  = newError(KindAuthorization, "cannot_act_on_self", "you cannot perform this action on your own account")
	ErrCannotTouchAdmin = newError(KindAuthorization, "cannot_act_on_admin", "you cannot perform this action on another administrator")
)

// Validation returns a validation error wrapping ErrorValidation with a
// message suitable for the client.
func Validation(format string, args ...any) error {
	return &detailError{base: ErrorValidation, msg: fmt.Sprintf(format, args...)}
}

// NotFound returns an error wrapping ErrorNotFound that names what is missing.
func NotFound(format string, args ...any) error {
	return &detailError{base: ErrorNotFound, msg: fmt.Sprintf(format, args...)}
}

// detailError replaces the public message of a sentinel.
type detailError struct {
	base *Error
	msg  string
}

func (e *detailError) Error() string { return e.msg }
func (e *detailError) Unwrap() error { return e.base }

// KindOf classifies err. Unknown errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the machine-readable code for err.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrorInternal.Code
}

// PublicMessage returns the text that may be shown to a client. Internal
// errors never leak their details.
func PublicMessage(err error) string {
	if KindOf(err) == KindInternal {
		return ErrorInternal.Msg
	}
	var d *detailError
	if errors.As(err, &d) {
		return d.msg
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return ErrorInternal.Msg
}
