package upstream

import (
	"errors"
	"fmt"
)

// ErrEmptyInput is returned for empty or whitespace-only prompts; no network
// call is made.
var ErrEmptyInput = errors.New("empty input")

// ErrTimeout marks an attempt that hit the per-request deadline (as opposed
// to the caller cancelling the whole request).
var ErrTimeout = errors.New("upstream timeout")

// APIError is an error the upstream service itself reported.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream error (status %d)", e.Status)
	}
	return fmt.Sprintf("upstream error (status %d): %s", e.Status, e.Message)
}

// TransportError wraps an unexpected network-level failure.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string { return fmt.Sprintf("upstream transport: %v", e.Cause) }
func (e *TransportError) Unwrap() error { return e.Cause }

// ExhaustedError is the terminal result after every retry attempt failed.
// Last carries the final attempt's classified error.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d attempts failed: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }
