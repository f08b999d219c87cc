package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrBodyTooLarge reports a response body over the configured size cap.
var ErrBodyTooLarge = errors.New("response body too large")

// StatusError carries a non-2xx HTTP status so retry classification can
// separate server faults from client faults.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, e.URL)
}

// ExhaustedError reports that every endpoint failed in every retry
// round. It wraps the last observed cause.
type ExhaustedError struct {
	Language string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all endpoints for %q failed after %d attempts: %v", e.Language, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// retryable classifies fetch failures: transport errors, timeouts and
// 5xx responses are worth another round, 4xx responses and oversized
// bodies are not.
func retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= http.StatusInternalServerError
	}
	if errors.Is(err, ErrBodyTooLarge) {
		return false
	}
	return true
}
