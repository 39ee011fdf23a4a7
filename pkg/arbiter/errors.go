package arbiter

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig indicates invalid engine configuration.
	ErrInvalidConfig = errors.New("invalid engine configuration")

	// ErrNilStore is returned by New when no policy store is given.
	ErrNilStore = errors.New("policy store cannot be nil")
)

// StoreError wraps a failed policy store read. The engine never returns it
// to callers; it is logged and turned into a fail-closed verdict.
type StoreError struct {
	AgentID string
	Route   string
	Cause   error
}

// Error returns the error message.
func (e *StoreError) Error() string {
	return fmt.Sprintf("policy store read for agent %q route %q: %v", e.AgentID, e.Route, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StoreError) Unwrap() error {
	return e.Cause
}
