package fetch

import (
	"errors"
	"fmt"
)

var errBadCursor = errors.New("unknown continuation cursor")

// TransientError indicates a retryable fetch failure: a timeout, a
// network error, throttling, or a 5xx response from the source. The
// fetcher retries these with exponential backoff, up to its retry cap.
type TransientError struct {
	Status int // HTTP status, 0 when the failure happened below HTTP
	Err    error
}

func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transient fetch error (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("transient fetch error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// FatalError indicates a non-retryable fetch failure such as an
// authentication or bad-request response. It aborts the run.
type FatalError struct {
	Status int
	Err    error
}

func (e *FatalError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fatal fetch error (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("fatal fetch error: %v", e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }
