package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrTimeout marks a completion call that exceeded its deadline. Callers
// distinguish it from other backend failures.
var ErrTimeout = errors.New("llm completion timed out")

// ServiceError wraps a failure returned by a model backend.
type ServiceError struct {
	Provider string
	Err      error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("llm backend '%s' failed: %v", e.Provider, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// wrapErr classifies a backend failure, mapping deadline expiry to
// ErrTimeout.
func wrapErr(ctx context.Context, provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return &ServiceError{Provider: provider, Err: err}
}
