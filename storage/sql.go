package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"notes-api/domain"
)

// SQL is the database/sql NoteRepository binding. It speaks either the
// Postgres or the SQLite dialect depending on the driver behind db.
type SQL struct {
	db      *sql.DB
	dialect Dialect
	stmts   statements
	timeout time.Duration
	newID   func() uuid.UUID
}

// NewSQL creates a repository over an open database/sql pool.
func NewSQL(db *sql.DB, dialect Dialect, timeout time.Duration) *SQL {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &SQL{
		db:      db,
		dialect: dialect,
		stmts:   statementsFor(dialect),
		timeout: timeout,
		newID:   uuid.New,
	}
}

func (s *SQL) Create(ctx context.Context, in domain.CreateNoteInput) (domain.Note, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	note, err := scanNote(s.db.QueryRowContext(ctx, s.stmts.insert, s.newID().String(), in.Content, in.Confidential))
	if err != nil {
		return domain.Note{}, wrapErr("create", err)
	}
	return note, nil
}

func (s *SQL) Find(ctx context.Context, id uuid.UUID) (domain.Note, bool, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	note, err := scanNote(s.db.QueryRowContext(ctx, s.stmts.selectByID, id.String()))
	if err != nil {
		if isNoRows(err) {
			return domain.Note{}, false, nil
		}
		return domain.Note{}, false, wrapErr("find", err)
	}
	return note, true, nil
}

func (s *SQL) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, s.stmts.deleteByID, id.String()); err != nil {
		return wrapErr("delete", err)
	}
	return nil
}

// Migrate creates the notes table if it does not exist yet.
func (s *SQL) Migrate(ctx context.Context) error {
	return migrate(ctx, s.dialect, func(ctx context.Context, stmt string) error {
		_, err := s.db.ExecContext(ctx, stmt)
		return err
	})
}
