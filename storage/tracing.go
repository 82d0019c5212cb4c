package storage

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"notes-api/domain"
)

const tracerName = "notes-api/storage"

// Traced records one span per repository call around another binding.
type Traced struct {
	next    NoteRepository
	backend string
	tracer  trace.Tracer
}

// NewTraced wraps next. backend names the storage system on every span.
func NewTraced(next NoteRepository, backend string) *Traced {
	return &Traced{next: next, backend: backend, tracer: otel.Tracer(tracerName)}
}

func (t *Traced) start(ctx context.Context, op string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "notes.repository."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", t.backend),
			attribute.String("db.operation", op),
		))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func (t *Traced) Create(ctx context.Context, in domain.CreateNoteInput) (domain.Note, error) {
	ctx, span := t.start(ctx, "create")
	note, err := t.next.Create(ctx, in)
	if err == nil {
		span.SetAttributes(attribute.String("note.id", note.ID.String()))
	}
	finish(span, err)
	return note, err
}

func (t *Traced) Find(ctx context.Context, id uuid.UUID) (domain.Note, bool, error) {
	ctx, span := t.start(ctx, "find")
	span.SetAttributes(attribute.String("note.id", id.String()))
	note, found, err := t.next.Find(ctx, id)
	span.SetAttributes(attribute.Bool("note.found", found))
	finish(span, err)
	return note, found, err
}

func (t *Traced) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := t.start(ctx, "delete")
	span.SetAttributes(attribute.String("note.id", id.String()))
	err := t.next.Delete(ctx, id)
	finish(span, err)
	return err
}

// Migrate forwards to the wrapped binding when it manages its own schema.
func (t *Traced) Migrate(ctx context.Context) error {
	m, ok := t.next.(Migrator)
	if !ok {
		return nil
	}
	ctx, span := t.start(ctx, "migrate")
	err := m.Migrate(ctx)
	finish(span, err)
	return err
}
