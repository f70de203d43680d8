package store

import "errors"

var (
	// ErrNotFound marks a lookup that matched no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateName marks a create that collides with an existing name.
	ErrDuplicateName = errors.New("name already exists")
	// ErrDefaultKnowledgeBase marks an attempt to delete the default
	// knowledge base.
	ErrDefaultKnowledgeBase = errors.New("default knowledge base cannot be deleted")
	// ErrKnowledgeBaseNotEmpty marks an attempt to delete a knowledge
	// base that still holds documents.
	ErrKnowledgeBaseNotEmpty = errors.New("knowledge base still holds documents")
	// ErrRetryExhausted marks a retry request for a job that has used up
	// its attempt budget.
	ErrRetryExhausted = errors.New("job attempts exhausted")
	// ErrJobNotRetryable marks a retry request for a job that is not in
	// the failed state.
	ErrJobNotRetryable = errors.New("only failed jobs can be retried")
)
