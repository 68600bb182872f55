package hardcover

import (
	"errors"
	"fmt"
)

// ErrUnauthorized indicates the API token is invalid or expired. It is fatal
// for a whole sync run and is never retried.
var ErrUnauthorized = errors.New("invalid or expired Hardcover token")

// ErrRateLimited indicates the API rate limit was exceeded. Callers retry
// with backoff up to the configured retry limit.
var ErrRateLimited = errors.New("hardcover API rate limit exceeded")

// APIError represents a non-retryable error reported by the Hardcover API
// (validation failure, server error, malformed query).
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("hardcover API error (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("hardcover API error: %s", e.Message)
}

// IsRateLimited reports whether the error is a rate-limit signal.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsUnauthorized reports whether the error is an authentication failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
