package api

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"notes-api/domain"
)

// Repository abstracts note persistence for handlers.
type Repository interface {
	Create(ctx context.Context, in domain.CreateNoteInput) (domain.Note, error)
	Find(ctx context.Context, id uuid.UUID) (domain.Note, bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// timeoutError is implemented by repository errors caused by an expired deadline.
type timeoutError interface {
	error
	Timeout() bool
}

// IdempotencyStore remembers the outcome of create requests carrying an
// Idempotency-Key header so retried invocations do not create duplicates.
type IdempotencyStore interface {
	// Claim reserves key. When the key is already taken it returns false and
	// the stored response, which is nil while the first request is running.
	Claim(ctx context.Context, key string) (bool, []byte, error)
	// Complete stores the response for a claimed key.
	Complete(ctx context.Context, key string, response []byte) error
	// Release frees a claimed key after a failed request so it can be retried.
	Release(ctx context.Context, key string) error
}

// ValidationError reports a malformed request. It never reaches the repository.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}
