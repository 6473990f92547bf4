package bond

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors for the Bond integration.
var (
	// ErrNotConfigured is returned when no bridge host is configured.
	ErrNotConfigured = errors.New("bond: bridge not configured")

	// ErrRequestFailed is returned when a request fails after all retries.
	ErrRequestFailed = errors.New("bond: request failed")

	// ErrUnauthorized is returned when the bridge rejects the API token.
	ErrUnauthorized = errors.New("bond: unauthorized")

	// ErrInvalidResponse is returned when a response body cannot be decoded.
	ErrInvalidResponse = errors.New("bond: invalid response")
)

// StatusError reports a non-2xx response from the bridge.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("bond: bridge returned status %d", e.Status)
	}
	return fmt.Sprintf("bond: bridge returned status %d: %s", e.Status, e.Body)
}

// Unwrap maps authentication failures onto ErrUnauthorized.
func (e *StatusError) Unwrap() error {
	if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden {
		return ErrUnauthorized
	}
	return nil
}

// retryable reports whether the status is worth retrying.
func (e *StatusError) retryable() bool {
	return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}
