package breaker

import (
	"fmt"
	"time"
)

// OpenError is returned when a call is rejected because the circuit is open
// or no half-open probe permit is available. It is recoverable: the caller
// should fall back to another provider or retry after the recovery timeout.
type OpenError struct {
	Name string
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is open", e.Name)
}

// TimeoutError is returned when an operation exceeds the configured request
// timeout. The call is recorded as a failure before the error surfaces.
type TimeoutError struct {
	Name  string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("circuit breaker %q: request timed out after %s", e.Name, e.After)
}
