// file: internal/profile/errors.go
package profile

import (
	"fmt"
)

// HTTPStatusError is returned when the profile service answers with a non-2xx status.
type HTTPStatusError struct {
	StatusCode int
	Status     string
	URL        string
	Body       []byte
}

// Error implements the error interface.
func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s for url: %s", e.Status, e.URL)
}

// TransportError wraps failures that happen before a response arrives:
// DNS, connection refused, TLS, or the per-call timeout.
type TransportError struct {
	URL     string
	Cause   error
	timeout bool
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.timeout {
		return fmt.Sprintf("request to %s timed out: %v", e.URL, e.Cause)
	}
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Cause)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// Timeout reports whether the request was abandoned because the timeout elapsed.
func (e *TransportError) Timeout() bool {
	return e.timeout
}

// DecodeError is returned when a 2xx response body is not valid JSON.
type DecodeError struct {
	URL  string
	Body []byte
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("response from %s is not valid JSON (%d bytes)", e.URL, len(e.Body))
}
