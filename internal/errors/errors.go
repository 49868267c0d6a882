package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Authentication errors (AUTH-001 to AUTH-099)
	ErrCodeInvalidCredentials   ErrorCode = "AUTH-001"
	ErrCodeRegistrationFailed   ErrorCode = "AUTH-002"
	ErrCodeNotAuthenticated     ErrorCode = "AUTH-003"
	ErrCodeAlreadyAuthenticated ErrorCode = "AUTH-004"

	// Session errors (SESSION-001 to SESSION-099)
	ErrCodeSessionExpired ErrorCode = "SESSION-001"
	ErrCodeSessionLoading ErrorCode = "SESSION-002"

	// Network errors (NET-001 to NET-099)
	ErrCodeNetworkUnavailable ErrorCode = "NET-001"
	ErrCodeServerError        ErrorCode = "NET-002"

	// Credential storage errors (STORE-001 to STORE-099)
	ErrCodeStoreUnknownBackend ErrorCode = "STORE-001"
	ErrCodeStoreUnavailable    ErrorCode = "STORE-002"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigInvalid ErrorCode = "CONFIG-001"
	ErrCodeConfigKey     ErrorCode = "CONFIG-002"

	// Diagnostics (DOCTOR-001 to DOCTOR-099)
	ErrCodeChecksFailed ErrorCode = "DOCTOR-001"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound  ErrorCode = "IO-001"
	ErrCodeFileUnmarshal ErrorCode = "IO-002"
)

// TrueMatchError is a user-facing error with a code and recovery suggestions
type TrueMatchError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	Cause       error
}

// Error implements the error interface
func (e *TrueMatchError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)

	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			fmt.Fprintf(&b, "\n  • %s", suggestion)
		}
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *TrueMatchError) Unwrap() error {
	return e.Cause
}

// New creates a new TrueMatchError
func New(code ErrorCode, message string) *TrueMatchError {
	return &TrueMatchError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new TrueMatchError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *TrueMatchError {
	return &TrueMatchError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *TrueMatchError) WithSuggestion(suggestion string) *TrueMatchError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// Hide drops the cause from the rendered message while keeping it for
// errors.Is/As and logging. Login and registration failures must not tell
// the user which field the server rejected.
func (e *TrueMatchError) Hide() *TrueMatchError {
	out := &TrueMatchError{
		Code:        e.Code,
		Message:     e.Message,
		Suggestions: e.Suggestions,
	}
	if e.Cause != nil {
		out.Cause = hidden{e.Cause}
	}
	return out
}

type hidden struct{ err error }

func (h hidden) Error() string { return "details withheld" }

func (h hidden) Unwrap() error { return h.err }

// HasCode reports whether err (or anything it wraps) is a TrueMatchError with code.
func HasCode(err error, code ErrorCode) bool {
	var tmErr *TrueMatchError
	for err != nil {
		if !stderrors.As(err, &tmErr) {
			return false
		}
		if tmErr.Code == code {
			return true
		}
		err = tmErr.Cause
	}
	return false
}

// CodeOf returns the outermost error code in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var tmErr *TrueMatchError
	if stderrors.As(err, &tmErr) {
		return tmErr.Code
	}
	return ""
}

// NewInvalidCredentialsError is the single message shown for any login failure
func NewInvalidCredentialsError(cause error) *TrueMatchError {
	return Wrap(ErrCodeInvalidCredentials, "Invalid credentials. Please try again.", cause).
		Hide().
		WithSuggestion("Check your email and password").
		WithSuggestion("Create an account with 'truematch auth register' if you don't have one")
}

// NewRegistrationFailedError is the single message shown for any registration failure
func NewRegistrationFailedError(cause error) *TrueMatchError {
	return Wrap(ErrCodeRegistrationFailed, "Registration failed. Please try again.", cause).
		Hide()
}

// NewNotAuthenticatedError is returned by commands that require a session
func NewNotAuthenticatedError() *TrueMatchError {
	return New(ErrCodeNotAuthenticated, "you are not logged in").
		WithSuggestion("Run 'truematch auth login' to sign in")
}

// NewSessionExpiredError is returned when a refresh failed mid-command
func NewSessionExpiredError(cause error) *TrueMatchError {
	return Wrap(ErrCodeSessionExpired, "your session has expired", cause).
		WithSuggestion("Run 'truematch auth login' to sign in again")
}

// NewNetworkError wraps a transport failure
func NewNetworkError(cause error) *TrueMatchError {
	return Wrap(ErrCodeNetworkUnavailable, "could not reach the TrueMatch service", cause).
		WithSuggestion("Check your network connection").
		WithSuggestion("Verify api.base_url with 'truematch config get api.base_url'")
}

// NewFileNotFoundError creates a file not found error
func NewFileNotFoundError(path string) *TrueMatchError {
	return New(ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", path)).
		WithSuggestion("Check if the file path is correct")
}

// NewFileUnmarshalError creates an unmarshal error
func NewFileUnmarshalError(path string, format string, cause error) *TrueMatchError {
	return Wrap(ErrCodeFileUnmarshal, fmt.Sprintf("failed to parse %s file: %s", format, path), cause).
		WithSuggestion(fmt.Sprintf("Ensure the file is valid %s", format))
}
