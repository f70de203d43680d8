package embedding

import "fmt"

// ServiceError wraps a failure returned by an embedding backend. Jobs
// that hit one stay retryable.
type ServiceError struct {
	Provider string
	Err      error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("embedding backend '%s' failed: %v", e.Provider, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }
