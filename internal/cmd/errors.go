package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/felixgeelhaar/truematch/internal/auth"
	tmerrors "github.com/felixgeelhaar/truematch/internal/errors"
	"github.com/felixgeelhaar/truematch/internal/platform"
)

// presentError converts session and transport errors into coded errors
// with recovery suggestions. Login and registration failures keep their
// uniform message; the server detail stays in the chain for logs only.
func presentError(err error) error {
	if err == nil {
		return nil
	}

	var tmErr *tmerrors.TrueMatchError
	if errors.As(err, &tmErr) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var authErr *auth.AuthError
	if errors.As(err, &authErr) {
		switch authErr.Code {
		case auth.ErrInvalidCredentials:
			return tmerrors.NewInvalidCredentialsError(err)
		case auth.ErrRegistrationFailed:
			return tmerrors.NewRegistrationFailedError(err)
		case auth.ErrAlreadyAuthenticated:
			return tmerrors.New(tmerrors.ErrCodeAlreadyAuthenticated, "you are already logged in").
				WithSuggestion("Run 'truematch auth logout' first to switch accounts")
		case auth.ErrSessionLoading:
			return tmerrors.New(tmerrors.ErrCodeSessionLoading, "the session is still being restored")
		case auth.ErrSessionExpired:
			return tmerrors.NewSessionExpiredError(nil)
		case auth.ErrNotAuthenticated:
			return tmerrors.NewNotAuthenticatedError()
		}
	}

	if errors.Is(err, platform.ErrRefreshFailed) || platform.IsUnauthorized(err) {
		return tmerrors.NewSessionExpiredError(err)
	}
	if errors.Is(err, platform.ErrTransport) {
		return tmerrors.NewNetworkError(err)
	}

	var apiErr *platform.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= http.StatusInternalServerError {
		return tmerrors.Wrap(tmerrors.ErrCodeServerError, "the TrueMatch service failed to handle the request", err).
			WithSuggestion("Try again in a moment")
	}

	return err
}

func configError(key, value, valid string) error {
	return tmerrors.New(tmerrors.ErrCodeConfigInvalid, fmt.Sprintf("invalid value for %s: %q", key, value)).
		WithSuggestion("Valid values: " + valid)
}

func unknownKeyError(key string) error {
	return tmerrors.New(tmerrors.ErrCodeConfigKey, fmt.Sprintf("unknown configuration key: %s", key)).
		WithSuggestion("List the keys with 'truematch config view'")
}

func missingInputError(flag string) error {
	return tmerrors.New(tmerrors.ErrCodeConfigInvalid, fmt.Sprintf("--%s is required when not running interactively", flag)).
		WithSuggestion("Run the command in a terminal to be prompted")
}
