package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"notes-api/domain"
)

// DefaultQueryTimeout bounds a single repository call when no timeout is configured.
const DefaultQueryTimeout = 5 * time.Second

// NoteRepository is the only component that knows how notes are stored.
// Every call issues exactly one statement against the backing store.
type NoteRepository interface {
	// Create stores a new note under a freshly generated identifier.
	Create(ctx context.Context, in domain.CreateNoteInput) (domain.Note, error)
	// Find returns the note with the given id. A missing note is reported
	// through the boolean, never as an error.
	Find(ctx context.Context, id uuid.UUID) (domain.Note, bool, error)
	// Delete ensures no note with the given id exists.
	Delete(ctx context.Context, id uuid.UUID) error
}

// Migrator is implemented by repositories able to create their own schema.
// Migrate must be safe to run on every start.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// Kind classifies repository failures.
type Kind int

const (
	// KindDatabase covers failures after connectivity was established:
	// constraint violations, dropped connections, malformed rows.
	KindDatabase Kind = iota
	// KindTimeout is reported when a call exceeded its deadline.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	default:
		return "database"
	}
}

var (
	// ErrDatabase matches every *Error of KindDatabase via errors.Is.
	ErrDatabase = errors.New("database error")
	// ErrTimeout matches every *Error of KindTimeout via errors.Is.
	ErrTimeout = errors.New("database timeout")
)

// Error is the single error type returned by NoteRepository implementations.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("notes %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets callers match on the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrDatabase:
		return e.Kind == KindDatabase
	}
	return false
}

// Timeout reports whether the call failed because it ran out of time.
func (e *Error) Timeout() bool { return e.Kind == KindTimeout }

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	return &Error{Op: op, Kind: classify(err), Err: err}
}

func classify(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindDatabase
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// rowScanner is satisfied by pgx.Row and *sql.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanNote maps an (id, content, confidential) row into a Note.
func scanNote(row rowScanner) (domain.Note, error) {
	var (
		rawID string
		note  domain.Note
	)
	if err := row.Scan(&rawID, &note.Content, &note.Confidential); err != nil {
		return domain.Note{}, err
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return domain.Note{}, fmt.Errorf("invalid note id %q in row: %w", rawID, err)
	}
	note.ID = id
	return note, nil
}
