package api

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName        = "notes-api/api"
	notesMetricsEvent = "notes.request.metrics"
)

type noteRequestMetrics struct {
	logger         *log.Logger
	span           trace.Span
	route          string
	operation      string
	start          time.Time
	repoDuration   time.Duration
	decodeDuration time.Duration
	noteID         string
	replayed       bool
	errorStage     string
	err            error
}

// newNoteRequestMetrics starts the request span. The returned context carries
// it so repository spans nest underneath.
func newNoteRequestMetrics(ctx context.Context, logger *log.Logger, route, operation string) (*noteRequestMetrics, context.Context) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "notes."+operation,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("http.route", route)))
	return &noteRequestMetrics{
		logger:    logger,
		span:      span,
		route:     route,
		operation: operation,
		start:     time.Now(),
	}, ctx
}

func (m *noteRequestMetrics) ObserveRepository(d time.Duration) {
	if d <= 0 {
		return
	}
	m.repoDuration += d
}

func (m *noteRequestMetrics) ObserveDecode(d time.Duration) {
	if d <= 0 {
		return
	}
	m.decodeDuration = d
}

func (m *noteRequestMetrics) SetNoteID(id string) {
	m.noteID = id
}

func (m *noteRequestMetrics) SetReplayed(replayed bool) {
	m.replayed = replayed
}

// Fail records where the request stopped and why. The first failure wins.
func (m *noteRequestMetrics) Fail(stage string, err error) {
	if m.errorStage != "" {
		return
	}
	m.errorStage = stage
	m.err = err
}

// Log ends the span and writes one structured record for the request.
func (m *noteRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	total := time.Since(m.start)
	if err == nil {
		err = m.err
	}

	attrs := []attribute.KeyValue{
		attribute.Int("http.status_code", status),
		attribute.Float64("notes.total_ms", durationToMillis(total)),
	}
	if m.noteID != "" {
		attrs = append(attrs, attribute.String("note.id", m.noteID))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("notes.error_stage", m.errorStage))
	}
	if m.replayed {
		attrs = append(attrs, attribute.Bool("notes.idempotent_replay", true))
	}
	if m.span != nil {
		m.span.SetAttributes(attrs...)
		switch {
		case err != nil:
			m.span.RecordError(err)
			m.span.SetStatus(codes.Error, err.Error())
		case status >= http.StatusInternalServerError:
			m.span.SetStatus(codes.Error, http.StatusText(status))
		default:
			m.span.SetStatus(codes.Ok, "")
		}
		m.span.End()
	}

	if m.logger == nil {
		return
	}
	fields := log.Fields{
		"route":     m.route,
		"operation": m.operation,
		"status":    status,
		"total_ms":  durationToMillis(total),
	}
	if m.repoDuration > 0 {
		fields["repository_ms"] = durationToMillis(m.repoDuration)
	}
	if m.decodeDuration > 0 {
		fields["decode_ms"] = durationToMillis(m.decodeDuration)
	}
	if m.noteID != "" {
		fields["note_id"] = m.noteID
	}
	if m.replayed {
		fields["idempotent_replay"] = true
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if m.span != nil {
		if sc := m.span.SpanContext(); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
		}
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	entry := m.logger.WithFields(fields)
	if status >= http.StatusInternalServerError {
		entry.Error(notesMetricsEvent)
		return
	}
	entry.Info(notesMetricsEvent)
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
