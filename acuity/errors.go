/*
errors.go - Error types for scheduling API calls

ERROR CATEGORIES:
  1. Sentinel errors   - Stable conditions callers branch on with errors.Is()
  2. StatusError       - Non-2xx responses, carries method/path/status
  3. Classification    - IsRetryable / IsClientError helpers used by the
                         client's retry loop and by the reconciliation driver
                         to decide between retry, per-client skip, and abort.

SEE ALSO:
  - client.go: produces these errors
  - reconcile/driver.go: consumes the classification helpers
*/
package acuity

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrNotFound is returned when the API responds 404 for a resource
	// lookup (order, appointment).
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyPaid is returned when a certificate application targets an
	// appointment that is already marked paid. Callers treat this as a
	// no-op, not a failure, so re-runs after a partial failure are safe.
	ErrAlreadyPaid = errors.New("appointment already paid")
)

// StatusError is a non-2xx response from the scheduling API.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// IsRetryable reports whether a call may succeed if repeated: network
// failures, timeouts, and 5xx responses (including 429 rate limiting).
func IsRetryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsClientError reports whether the API rejected the request itself (4xx).
// These do not resolve on retry; the driver skips the affected client.
func IsClientError(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 &&
			statusErr.StatusCode != http.StatusTooManyRequests
	}
	return errors.Is(err, ErrNotFound)
}
