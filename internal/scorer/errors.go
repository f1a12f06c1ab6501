package scorer

import (
	"errors"
	"fmt"
	"net"
)

// UnavailableError reports that the scoring backend could not produce a
// result for a batch (resource exhaustion, backend failure, model loading).
// The run halts; rows aggregated before the failure remain valid.
type UnavailableError struct {
	Backend    string
	StatusCode int
	Err        error
}

func (e *UnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("scorer: %s backend unavailable (status %d): %v", e.Backend, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("scorer: %s backend unavailable: %v", e.Backend, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// IsUnavailable reports whether the error chain contains an UnavailableError.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// isTransportError reports whether the error is a network-level failure
// (timeout, refused connection, DNS) rather than a malformed request.
func isTransportError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// isTransientStatus reports whether the HTTP status indicates a server-side
// condition that a later retry could clear.
func isTransientStatus(status int) bool {
	switch status {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}
