package platform

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnauthorized is a terminal authentication failure: the request was
	// rejected and no further refresh will be attempted for it.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRefreshFailed means the refresh endpoint did not mint a new token.
	// The token store has been cleared when this is returned.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrTransport means no HTTP response was received.
	ErrTransport = errors.New("transport failure")
)

// ErrorResponse is the error body returned by the TrueMatch API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// APIError is a non-2xx response from the TrueMatch API.
type APIError struct {
	StatusCode int
	Message    string

	err error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// Unwrap exposes ErrUnauthorized for terminal 401 responses.
func (e *APIError) Unwrap() error {
	return e.err
}

// newAPIError builds an APIError from a response, preferring the server's
// error field, then its message field, then the raw body.
func newAPIError(resp *Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if resp.StatusCode == http.StatusUnauthorized {
		apiErr.err = ErrUnauthorized
	}

	var body ErrorResponse
	if err := json.Unmarshal(resp.Body, &body); err == nil {
		switch {
		case body.Error != "":
			apiErr.Message = body.Error
			return apiErr
		case body.Message != "":
			apiErr.Message = body.Message
			return apiErr
		}
	}

	raw := strings.TrimSpace(string(resp.Body))
	if len(raw) > 200 {
		raw = raw[:200]
	}
	if raw == "" {
		raw = http.StatusText(resp.StatusCode)
	}
	apiErr.Message = raw
	return apiErr
}

// IsUnauthorized reports whether err is a terminal authentication failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
