package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"notes-api/domain"
)

// pgxQuerier is the subset of *pgxpool.Pool used by the Postgres binding.
// Each call acquires a pooled connection and releases it when the row is
// scanned or the command completes, including on error.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres is the pooled NoteRepository binding.
type Postgres struct {
	db      pgxQuerier
	stmts   statements
	timeout time.Duration
	newID   func() uuid.UUID
}

// NewPostgres creates a repository over the given pool. A non-positive
// timeout falls back to DefaultQueryTimeout.
func NewPostgres(db pgxQuerier, timeout time.Duration) *Postgres {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &Postgres{
		db:      db,
		stmts:   statementsFor(DialectPostgres),
		timeout: timeout,
		newID:   uuid.New,
	}
}

func (p *Postgres) Create(ctx context.Context, in domain.CreateNoteInput) (domain.Note, error) {
	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	note, err := scanNote(p.db.QueryRow(ctx, p.stmts.insert, p.newID().String(), in.Content, in.Confidential))
	if err != nil {
		return domain.Note{}, wrapErr("create", err)
	}
	return note, nil
}

func (p *Postgres) Find(ctx context.Context, id uuid.UUID) (domain.Note, bool, error) {
	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	note, err := scanNote(p.db.QueryRow(ctx, p.stmts.selectByID, id.String()))
	if err != nil {
		if isNoRows(err) {
			return domain.Note{}, false, nil
		}
		return domain.Note{}, false, wrapErr("find", err)
	}
	return note, true, nil
}

func (p *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	// Zero affected rows is fine: delete means "ensure absence".
	if _, err := p.db.Exec(ctx, p.stmts.deleteByID, id.String()); err != nil {
		return wrapErr("delete", err)
	}
	return nil
}

// Migrate creates the notes table if it does not exist yet.
func (p *Postgres) Migrate(ctx context.Context) error {
	return migrate(ctx, DialectPostgres, func(ctx context.Context, stmt string) error {
		_, err := p.db.Exec(ctx, stmt)
		return err
	})
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}
