// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apperr defines the centralized error taxonomy for Sugarmill.

It provides a rich error type that bridges the gap between low-level Domain/Storage
errors and high-level HTTP responses.

Architecture:

  - AppError: A struct containing a machine-readable Code and a client-safe message.
  - Taxonomy: One constructor per failure kind of the identity core
    (validation, duplicate identity, unauthenticated, locked, not active, ...).
  - Mapping: Every constructor fixes the HTTP status code for its kind.

Every error that leaves the service layer should be wrapped as an [AppError] to ensure
consistent API responses.
*/
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// # Stable Codes

// Machine-readable codes. Clients branch on these, so they never change.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeDuplicateIdentity  = "DUPLICATE_IDENTITY"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeRoleMismatch       = "ROLE_MISMATCH"
	CodeDepartmentMismatch = "DEPARTMENT_MISMATCH"
	CodeAccountLocked      = "ACCOUNT_LOCKED"
	CodePendingApproval    = "PENDING_APPROVAL"
	CodeAccountSuspended   = "ACCOUNT_SUSPENDED"
	CodeAccountRejected    = "ACCOUNT_REJECTED"
	CodeAccountNotActive   = "ACCOUNT_NOT_ACTIVE"
	CodeForbidden          = "FORBIDDEN"
	CodeEmailNotVerified   = "EMAIL_NOT_VERIFIED"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidTransition  = "INVALID_TRANSITION"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeUnavailable        = "SERVICE_UNAVAILABLE"
)

// AppError is the canonical error type for the Sugarmill API.
//
// It carries an HTTP status code, a machine-readable code, a client-safe
// message, and an optional slice of field-level validation errors.
//
// # Security
//
// The Cause field is for server-side logging only. It reaches clients solely when
// the server runs with error exposure enabled (development).
type AppError struct {
	// Code is a machine-readable error identifier (e.g. "NOT_FOUND", "ACCOUNT_LOCKED").
	Code string `json:"code"`
	// Message is a human-readable description safe to return to the client.
	Message string `json:"error"`
	// HTTPStatus is the HTTP response status code.
	HTTPStatus int `json:"-"`
	// Cause is the underlying error, used for server-side logging only.
	Cause error `json:"-"`
	// Details holds per-field validation errors or structured context (e.g. required roles).
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a single field-level failure or a named detail.
type FieldError struct {
	// Field is the JSON field name that failed validation.
	Field string `json:"field"`
	// Message is the human-readable description of the failure.
	Message string `json:"message"`
}

// Error implements the error interface. It returns the client-safe message.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause returns a copy of e carrying cause for server-side diagnostics.
func (e *AppError) WithCause(cause error) *AppError {
	clone := *e
	clone.Cause = cause
	return &clone
}

// # Client Errors (4xx)

// ValidationError creates a 400 [AppError] with optional per-field details.
func ValidationError(msg string, details ...FieldError) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// DuplicateIdentity creates a 400 [AppError] for a unique-field collision at registration.
func DuplicateIdentity(msg string) *AppError {
	return &AppError{
		Code:       CodeDuplicateIdentity,
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
	}
}

// Unauthorized creates a 401 [AppError] for missing or unusable credentials.
func Unauthorized(msg string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// TokenExpired creates a 401 [AppError] telling the client to refresh rather than re-login.
func TokenExpired() *AppError {
	return &AppError{
		Code:       CodeTokenExpired,
		Message:    "Token has expired",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// TokenInvalid creates a 401 [AppError] for a token that failed verification or was rotated out.
func TokenInvalid(msg string) *AppError {
	return &AppError{
		Code:       CodeTokenInvalid,
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// InvalidCredentials creates a 401 [AppError].
//
// The message is identical whether the email or the password was wrong.
func InvalidCredentials() *AppError {
	return &AppError{
		Code:       CodeInvalidCredentials,
		Message:    "Invalid email or password",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Mismatch creates a 401 [AppError] for a login whose role or department hint
// does not match the account.
func Mismatch(code, msg string) *AppError {
	return &AppError{
		Code:       code,
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// AccountLocked creates a 423 [AppError]. The unlock time is never disclosed.
func AccountLocked() *AppError {
	return &AppError{
		Code:       CodeAccountLocked,
		Message:    "Account is temporarily locked due to too many failed login attempts. Please try again later",
		HTTPStatus: http.StatusLocked,
	}
}

// AccountNotActive creates a 403 [AppError] naming the blocking account status.
func AccountNotActive(status string) *AppError {
	code := CodeAccountNotActive
	switch status {
	case "pending":
		code = CodePendingApproval
	case "suspended":
		code = CodeAccountSuspended
	case "rejected":
		code = CodeAccountRejected
	}

	return &AppError{
		Code:       code,
		Message:    fmt.Sprintf("Account is %s", status),
		HTTPStatus: http.StatusForbidden,
		Details:    []FieldError{{Field: "status", Message: status}},
	}
}

// Forbidden creates a 403 [AppError].
func Forbidden(msg string, details ...FieldError) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    msg,
		HTTPStatus: http.StatusForbidden,
		Details:    details,
	}
}

// InsufficientRole creates a 403 [AppError] naming the required roles and the actual role.
func InsufficientRole(required []string, actual string) *AppError {
	return Forbidden("Insufficient permissions",
		FieldError{Field: "required_roles", Message: strings.Join(required, ",")},
		FieldError{Field: "role", Message: actual},
	)
}

// EmailNotVerified creates a 403 [AppError].
func EmailNotVerified() *AppError {
	return &AppError{
		Code:       CodeEmailNotVerified,
		Message:    "Email address must be verified first",
		HTTPStatus: http.StatusForbidden,
	}
}

// NotFound creates a 404 [AppError] for a named resource.
//
// Example:
//
//	apperr.NotFound("Principal") // Returns "Principal not found"
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    resource + " not found",
		HTTPStatus: http.StatusNotFound,
	}
}

// InvalidTransition creates a 400 [AppError] for a workflow action on a principal
// that is not in the required state.
func InvalidTransition(msg string) *AppError {
	return &AppError{
		Code:       CodeInvalidTransition,
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
	}
}

// RateLimited creates a 429 [AppError].
func RateLimited(retryAfterSeconds int) *AppError {
	return &AppError{
		Code:       CodeRateLimited,
		Message:    fmt.Sprintf("Too many requests. Try again in %ds.", retryAfterSeconds),
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// # Server Errors (5xx)

// Internal creates a 500 [AppError] wrapping an unexpected server-side error.
// The cause is stored for logging but is never sent to the client.
func Internal(cause error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "An unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// ServiceUnavailable creates a 503 [AppError].
func ServiceUnavailable(msg string) *AppError {
	return &AppError{
		Code:       CodeUnavailable,
		Message:    msg,
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

// # Helpers

// IsAppError reports whether err (or any error in its chain) is an [*AppError].
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// As extracts the [*AppError] from err's chain. It returns nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// HasCode reports whether err carries an [*AppError] with the given code.
func HasCode(err error, code string) bool {
	ae := As(err)
	return ae != nil && ae.Code == code
}
