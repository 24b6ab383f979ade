package transport

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Typed failures of the remote save service. Auth failures are fatal and
// propagate to the caller for explicit handling; the retryable classes are
// consumed by the retry loop.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrRateLimited  = errors.New("rate limited")
	ErrServer       = errors.New("server error")
)

// NetworkError wraps a connectivity-level failure: an unreachable host, a
// reset connection, or a per-attempt timeout. Network errors are always
// retryable.
type NetworkError struct {
	Err error
}

// Error implements the error interface.
func (e *NetworkError) Error() string { return fmt.Sprintf("network error: %s", e.Err) }

// Unwrap returns the wrapped failure.
func (e *NetworkError) Unwrap() error { return e.Err }

// IsRetryable returns whether |err| may succeed on a later attempt.
func IsRetryable(err error) bool {
	var cause = errors.Cause(err)
	if _, ok := cause.(*NetworkError); ok {
		return true
	}
	return cause == ErrServer || cause == ErrRateLimited
}

// IsAuth returns whether |err| is a fatal authentication or authorization
// failure.
func IsAuth(err error) bool {
	var cause = errors.Cause(err)
	return cause == ErrUnauthorized || cause == ErrForbidden
}

// classifyStatus maps a non-2xx HTTP status to its typed error.
func classifyStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusConflict:
		return ErrConflict
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code >= 500:
		return ErrServer
	default:
		return errors.Errorf("unexpected status %d", code)
	}
}
