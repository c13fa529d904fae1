package o365

import (
	"errors"
	"net/http"
)

// Error types for Office 365 API responses.
var (
	// ErrNotConfigured indicates the connection has no authentication
	// configured. Use NewBasicConnection or NewOAuthConnection first.
	ErrNotConfigured = errors.New("o365: connection is not configured, " +
		"authenticate with NewBasicConnection or NewOAuthConnection")

	// ErrUnexpectedPayload indicates the response body lacked the expected
	// "value" array.
	ErrUnexpectedPayload = errors.New("o365: unexpected response payload")

	// ErrUnauthorised indicates the credentials or access token were rejected.
	ErrUnauthorised = errors.New("o365: unauthorised")

	// ErrForbidden indicates the account lacks permission for the requested resource.
	ErrForbidden = errors.New("o365: forbidden")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("o365: not found")

	// ErrRateLimited indicates the request was throttled by the API.
	ErrRateLimited = errors.New("o365: rate limited")

	// ErrBadRequest indicates the request was malformed.
	ErrBadRequest = errors.New("o365: bad request")

	// ErrServerError indicates a server-side error from the API.
	ErrServerError = errors.New("o365: server error")
)

// WrapStatus converts an HTTP status code to an appropriate error.
// It returns nil for success statuses.
func WrapStatus(statusCode int) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorised
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusBadRequest:
		return ErrBadRequest
	default:
		if statusCode >= 500 {
			return ErrServerError
		}
		return nil
	}
}

// IsUnauthorised checks if the status code indicates an authentication failure.
func IsUnauthorised(statusCode int) bool {
	return statusCode == http.StatusUnauthorized
}
