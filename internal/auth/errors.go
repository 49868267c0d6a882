package auth

import (
	"errors"
	"fmt"
)

// Error codes for session failures
const (
	ErrInvalidCredentials   = "AUTH_INVALID_CREDENTIALS"
	ErrRegistrationFailed   = "AUTH_REGISTRATION_FAILED"
	ErrAlreadyAuthenticated = "AUTH_ALREADY_AUTHENTICATED"
	ErrSessionLoading       = "AUTH_SESSION_LOADING"
	ErrNotAuthenticated     = "AUTH_NOT_AUTHENTICATED"
	ErrSessionExpired       = "AUTH_SESSION_EXPIRED"
)

// Uniform messages shown for login and registration failures. Server detail
// is kept in Cause for logs only.
const (
	MsgInvalidCredentials = "Invalid credentials. Please try again."
	MsgRegistrationFailed = "Registration failed. Please try again."
)

// AuthError represents a session error with code and context.
type AuthError struct {
	// Code is the error code (e.g., AUTH_INVALID_CREDENTIALS)
	Code string

	// Message is the user-facing message
	Message string

	// Context provides additional details about the error
	Context map[string]any

	// Cause is the underlying error. It is never part of Error() so server
	// detail does not leak into user-facing output.
	Cause error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Cause
}

// NewError creates a new AuthError.
func NewError(code, message string, context map[string]any) *AuthError {
	return &AuthError{
		Code:    code,
		Message: message,
		Context: context,
	}
}

// WrapError wraps an existing error with an AuthError.
func WrapError(code, message string, cause error, context map[string]any) *AuthError {
	return &AuthError{
		Code:    code,
		Message: message,
		Context: context,
		Cause:   cause,
	}
}

// IsAuthError checks if err, or any error it wraps, is an AuthError with
// the given code.
func IsAuthError(err error, code string) bool {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Code == code
	}
	return false
}

func invalidCredentials(cause error) *AuthError {
	return WrapError(ErrInvalidCredentials, MsgInvalidCredentials, cause, nil)
}

func registrationFailed(cause error) *AuthError {
	return WrapError(ErrRegistrationFailed, MsgRegistrationFailed, cause, nil)
}

func statusError(s Status) *AuthError {
	switch s {
	case StatusLoading:
		return NewError(ErrSessionLoading, "session is still loading", nil)
	case StatusAuthenticated:
		return NewError(ErrAlreadyAuthenticated, "already logged in, log out first", nil)
	default:
		return NewError(ErrNotAuthenticated, "not logged in", nil)
	}
}
