package httpclient

import (
	"errors"
	"fmt"

	"github.com/Triple-C-BE/wimood/internal/domain/shared"
)

// NetworkError is returned when a request did not produce a successful
// response after all retries.
type NetworkError struct {
	Method     string
	URL        string
	StatusCode int
	Attempts   int
	// Body is a prefix of the last response body, if any.
	Body string
	Err  error
}

func (e *NetworkError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("httpclient: %s %s: status %d after %d attempt(s): %v", e.Method, e.URL, e.StatusCode, e.Attempts, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("httpclient: %s %s: status %d after %d attempt(s)", e.Method, e.URL, e.StatusCode, e.Attempts)
	default:
		return fmt.Sprintf("httpclient: %s %s failed after %d attempt(s): %v", e.Method, e.URL, e.Attempts, e.Err)
	}
}

func (e *NetworkError) Unwrap() []error {
	if e.Err == nil {
		return []error{shared.ErrNetwork}
	}
	return []error{shared.ErrNetwork, e.Err}
}

// StatusCodeOf returns the HTTP status carried by a NetworkError, or 0
func StatusCodeOf(err error) int {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.StatusCode
	}
	return 0
}
