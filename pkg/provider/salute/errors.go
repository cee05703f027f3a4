package salute

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNoAuthKey is returned by [NewTokenCache] when the authorization key is missing.
	ErrNoAuthKey = errors.New("salute: authorization key required")

	// ErrEmptyToken is returned when the token endpoint answers successfully
	// but without an access token.
	ErrEmptyToken = errors.New("salute: token response carries no access token")

	// ErrUntrusted is returned by [EnsureTrust] when the auth endpoint's
	// certificate chain cannot be verified even after installing the
	// configured CA.
	ErrUntrusted = errors.New("salute: server certificate not trusted")
)

// APIError represents a non-success response from a SaluteSpeech endpoint.
type APIError struct {
	// Op names the failed operation: "token", "recognize" or "synthesize".
	Op string

	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the (truncated) response body.
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("salute: %s: API error %d: %s", e.Op, e.StatusCode, e.Message)
}

// IsUnauthorized returns true if this is an authentication error (HTTP 401).
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401
}

// IsRateLimited returns true if this is a rate limit error (HTTP 429).
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsServerError returns true if this is a server-side error (HTTP 5xx).
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsServiceFailure reports whether err indicates the remote service itself is
// unhealthy: transport errors, 5xx and 429 responses. Client-side mistakes
// (other 4xx) and caller cancellation are not service failures. It is meant
// as the failure classifier of a circuit breaker around [Client].
func IsServiceFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsServerError() || apiErr.IsRateLimited()
	}
	return true
}
