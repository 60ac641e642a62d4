package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by single fetch attempts.
var (
	// ErrNotFound indicates the source has no record for the identifier.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited indicates the source rejected the request for rate limiting.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrNetworkError indicates a transport failure or timeout.
	ErrNetworkError = errors.New("network error")

	// ErrInvalidResponse indicates a body that could not be used.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrBreakerOpen indicates the source's circuit breaker rejected the call.
	ErrBreakerOpen = errors.New("circuit breaker open")
)

// APIError represents a non-success HTTP status from a source.
type APIError struct {
	Source     string
	StatusCode int
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s returned status %d for %s", e.Source, e.StatusCode, e.URL)
}

// checkStatus returns an error if the HTTP response indicates a problem.
func checkStatus(source, url string, resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, &APIError{Source: source, StatusCode: resp.StatusCode, URL: url})
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, &APIError{Source: source, StatusCode: resp.StatusCode, URL: url})
	default:
		return &APIError{Source: source, StatusCode: resp.StatusCode, URL: url}
	}
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// IsRetryable returns true if another attempt may succeed. Every failure
// from a source is retried; only an open breaker or an ended context stops.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrBreakerOpen) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}
