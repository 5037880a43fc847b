package gateway

import (
	"errors"
	"fmt"
)

// ErrExhaustedRetries is matched by an ExternalServiceError produced after
// every attempt failed.
var ErrExhaustedRetries = errors.New("retries exhausted")

// ExternalServiceError is returned by every Gateway operation that did not
// complete. The action must be treated as not performed.
type ExternalServiceError struct {
	Op        string
	Attempts  int
	Exhausted bool
	Err       error
}

func (e *ExternalServiceError) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

func (e *ExternalServiceError) Is(target error) bool {
	return target == ErrExhaustedRetries && e.Exhausted
}
