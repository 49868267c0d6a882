package exitcode

import (
	"os"
	"strings"

	"github.com/felixgeelhaar/truematch/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// AuthError indicates an authentication or session failure
	AuthError = 5

	// NetworkError indicates a network connectivity issue
	NetworkError = 6

	// Interrupted indicates the user cancelled the operation
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

// DetermineExitCode analyzes an error and returns the appropriate exit code.
// Coded errors are classified by code; anything else falls back to message matching.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	switch code := string(errors.CodeOf(err)); {
	case strings.HasPrefix(code, "AUTH-"), strings.HasPrefix(code, "SESSION-"):
		return AuthError
	case strings.HasPrefix(code, "NET-"):
		return NetworkError
	case strings.HasPrefix(code, "CONFIG-"):
		return UsageError
	case code != "":
		return GeneralError
	}

	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "unauthorized") || strings.Contains(errMsg, "not logged in") {
		return AuthError
	}

	if strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no such host") {
		return NetworkError
	}
	if strings.Contains(errMsg, "timeout") {
		return NetworkError
	}

	if strings.Contains(errMsg, "unknown flag") || strings.Contains(errMsg, "unknown command") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "accepts") {
		return UsageError
	}

	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case AuthError:
		return "Authentication error"
	case NetworkError:
		return "Network error"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
