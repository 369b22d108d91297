package domainerrors

import "errors"

// Code represents a domain error category independent of transport layer.
// These codes describe what went wrong in business logic terms, not HTTP terms.
type Code string

const (
	CodeNotFound     Code = "not_found"
	CodeInvalidInput Code = "invalid_input"
	CodeInternal     Code = "internal_error"
	CodeConflict     Code = "conflict"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeTimeout      Code = "timeout"
	CodeUnavailable  Code = "unavailable"

	// Authentication lifecycle codes.
	CodeInvalidCredentials Code = "invalid_credentials" // wrong email/password combination
	CodeAccountLocked      Code = "account_locked"      // failed-login lockout in effect
	CodeTokenExpired       Code = "token_expired"       // access token past its expiry
	CodeTokenInvalid       Code = "token_invalid"       // bad signature, claims, or format
	CodeTokenRevoked       Code = "token_revoked"       // token is blacklisted or session-revoked
	CodeInvalidRefresh     Code = "invalid_refresh"     // refresh token unknown, revoked, or expired

	// Throughput and consistency codes.
	CodeTooManyRequests Code = "too_many_requests" // rate limit exceeded, carries retry-after
	CodeCircuitOpen     Code = "circuit_open"      // downstream dependency circuit is open
	CodeStaleVersion    Code = "stale_version"     // optimistic concurrency conflict
	CodeChainBroken     Code = "chain_broken"      // audit hash chain integrity failure
)

// Error wraps domain or infrastructure failures with a stable code.
// It is transport-agnostic and can be used across service, store, and other layers.
// Details carries optional machine-readable fields (retry delays, remaining
// attempts) for the transport layer to surface alongside the message.
type Error struct {
	Code    Code
	Message string
	Details map[string]string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// WithDetails creates a new domain error carrying machine-readable fields.
func WithDetails(code Code, msg string, details map[string]string) error {
	return &Error{Code: code, Message: msg, Details: details}
}

// DetailsOf extracts the detail map from an error chain, or nil.
func DetailsOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		// Preserve the original domain code, update message
		return &Error{Code: existing.Code, Message: msg, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf extracts the domain code from an error chain, or CodeInternal
// when the error carries no domain code.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
