package auth

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthError(t *testing.T) {
	cause := fmt.Errorf("server said: user not found")
	err := invalidCredentials(cause)

	assert.Equal(t, "AUTH_INVALID_CREDENTIALS: "+MsgInvalidCredentials, err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsAuthError(err, ErrInvalidCredentials))
	assert.True(t, IsAuthError(fmt.Errorf("login: %w", err), ErrInvalidCredentials))
	assert.False(t, IsAuthError(err, ErrRegistrationFailed))
	assert.False(t, IsAuthError(cause, ErrInvalidCredentials))
}

func TestStatusError(t *testing.T) {
	assert.Equal(t, ErrSessionLoading, statusError(StatusLoading).Code)
	assert.Equal(t, ErrAlreadyAuthenticated, statusError(StatusAuthenticated).Code)
	assert.Equal(t, ErrNotAuthenticated, statusError(StatusAnonymous).Code)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "loading", StatusLoading.String())
	assert.Equal(t, "authenticated", StatusAuthenticated.String())
	assert.Equal(t, "anonymous", StatusAnonymous.String())
	assert.Equal(t, "unknown", Status(9).String())
}
