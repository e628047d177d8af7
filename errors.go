package pelorus

import (
	"errors"
	"strings"
)

// ErrNoProviders is returned when a completion is attempted before any
// provider has been registered, or when every registered provider is
// excluded by its health cool-off.
var ErrNoProviders = errors.New("pelorus: no providers available")

// Attempt records the outcome of trying one provider during fallback.
type Attempt struct {
	Provider string
	Err      error
}

// ExhaustedError is returned when every candidate provider was tried and
// none produced a response. It preserves the per-provider errors in the
// order they were attempted.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	var sb strings.Builder
	sb.WriteString("pelorus: all providers failed")
	for _, a := range e.Attempts {
		sb.WriteString("; ")
		sb.WriteString(a.Provider)
		sb.WriteString(": ")
		sb.WriteString(a.Err.Error())
	}
	return sb.String()
}

// Unwrap exposes the underlying attempt errors to errors.Is and errors.As.
func (e *ExhaustedError) Unwrap() []error {
	errs := make([]error, len(e.Attempts))
	for i, a := range e.Attempts {
		errs[i] = a.Err
	}
	return errs
}
