package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"notes-api/domain"
)

const (
	routeNotes    = "/api/notes"
	routeNoteByID = "/api/notes/:id"
)

var errRequestInFlight = errors.New("idempotent request in flight")

// Register wires up all API routes on the provided Echo instance. idem may be
// nil, in which case Idempotency-Key headers are ignored.
func Register(e *echo.Echo, repo Repository, idem IdempotencyStore, logger *log.Logger) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	e.JSONSerializer = JSONSerializer{}

	e.GET(routeNoteByID, getNote(repo, logger))
	e.POST(routeNotes, postNote(repo, idem, logger))
	e.DELETE(routeNoteByID, deleteNote(repo, logger))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func getNote(repo Repository, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := newNoteRequestMetrics(c.Request().Context(), logger, routeNoteByID, "get")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		id, verr := parseNoteID(c.Param("id"))
		if verr != nil {
			metrics.Fail("validation", verr)
			return c.String(http.StatusBadRequest, verr.Error())
		}
		metrics.SetNoteID(id.String())

		start := time.Now()
		note, found, ferr := repo.Find(ctx, id)
		metrics.ObserveRepository(time.Since(start))
		if ferr != nil {
			metrics.Fail("repository", ferr)
			return writeRepositoryError(c, ferr)
		}
		if !found {
			metrics.Fail("not_found", nil)
			return c.String(http.StatusNotFound, "note not found")
		}
		return c.JSON(http.StatusOK, note)
	}
}

func postNote(repo Repository, idem IdempotencyStore, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := newNoteRequestMetrics(c.Request().Context(), logger, routeNotes, "create")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		key := strings.TrimSpace(c.Request().Header.Get(headerIdempotencyKey))
		if len(key) > idempotencyKeyMaxLen {
			verr := ValidationError{Field: headerIdempotencyKey, Reason: "too long"}
			metrics.Fail("validation", verr)
			return c.String(http.StatusBadRequest, verr.Error())
		}

		decodeStart := time.Now()
		in, verr := decodeCreateNote(c.Request().Body)
		metrics.ObserveDecode(time.Since(decodeStart))
		if verr != nil {
			metrics.Fail("validation", verr)
			return c.String(http.StatusBadRequest, verr.Error())
		}

		claimed := false
		if idem != nil && key != "" {
			ok, stored, cerr := idem.Claim(ctx, key)
			switch {
			case cerr != nil:
				logger.WithError(cerr).Warn("idempotency store unavailable; creating without replay protection")
			case ok:
				claimed = true
			case stored != nil:
				metrics.SetReplayed(true)
				return c.JSONBlob(http.StatusOK, stored)
			default:
				metrics.Fail("idempotency", errRequestInFlight)
				return c.String(http.StatusConflict, "a request with this idempotency key is in progress")
			}
		}

		start := time.Now()
		note, cerr := repo.Create(ctx, in)
		metrics.ObserveRepository(time.Since(start))
		if cerr != nil {
			metrics.Fail("repository", cerr)
			if claimed {
				if rerr := idem.Release(context.WithoutCancel(ctx), key); rerr != nil {
					logger.Errorf("idempotency release failed, err: %v, key: %s", rerr, key)
				}
			}
			return writeRepositoryError(c, cerr)
		}
		metrics.SetNoteID(note.ID.String())

		// Replays are served from these exact bytes.
		payload, merr := sonic.Marshal(createNoteResponse{ID: note.ID.String(), Content: note.Content})
		if merr != nil {
			metrics.Fail("encode", merr)
			if claimed {
				if rerr := idem.Release(context.WithoutCancel(ctx), key); rerr != nil {
					logger.Errorf("idempotency release failed, err: %v, key: %s", rerr, key)
				}
			}
			return c.String(http.StatusInternalServerError, "encoding error")
		}
		if claimed {
			if cerr := idem.Complete(context.WithoutCancel(ctx), key, payload); cerr != nil {
				logger.Errorf("idempotency complete failed, err: %v, key: %s", cerr, key)
			}
		}
		return c.JSONBlob(http.StatusCreated, payload)
	}
}

func deleteNote(repo Repository, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, ctx := newNoteRequestMetrics(c.Request().Context(), logger, routeNoteByID, "delete")
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		id, verr := parseNoteID(c.Param("id"))
		if verr != nil {
			metrics.Fail("validation", verr)
			return c.String(http.StatusBadRequest, verr.Error())
		}
		metrics.SetNoteID(id.String())

		start := time.Now()
		derr := repo.Delete(ctx, id)
		metrics.ObserveRepository(time.Since(start))
		if derr != nil {
			metrics.Fail("repository", derr)
			return writeRepositoryError(c, derr)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func parseNoteID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ValidationError{Field: "id", Reason: "invalid note id"}
	}
	return id, nil
}

// strictJSON rejects unknown fields and anything after the first document.
var strictJSON = sonic.Config{
	EscapeHTML:            true,
	SortMapKeys:           true,
	CompactMarshaler:      true,
	CopyString:            true,
	ValidateString:        true,
	DisallowUnknownFields: true,
}.Froze()

func decodeCreateNote(body io.Reader) (domain.CreateNoteInput, error) {
	data, err := io.ReadAll(io.LimitReader(body, postNoteMaxSize+1))
	if err != nil {
		return domain.CreateNoteInput{}, ValidationError{Reason: "invalid body"}
	}
	if len(data) > postNoteMaxSize {
		return domain.CreateNoteInput{}, ValidationError{Reason: "body too large"}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return domain.CreateNoteInput{}, ValidationError{Reason: "invalid body"}
	}

	var req createNoteRequest
	if err := strictJSON.Unmarshal(data, &req); err != nil {
		return domain.CreateNoteInput{}, ValidationError{Reason: "invalid body"}
	}
	if req.Content == nil {
		return domain.CreateNoteInput{}, ValidationError{Field: "content", Reason: "required"}
	}
	if req.Confidential == nil {
		return domain.CreateNoteInput{}, ValidationError{Field: "confidential", Reason: "required"}
	}
	return domain.CreateNoteInput{Content: *req.Content, Confidential: *req.Confidential}, nil
}

func writeRepositoryError(c echo.Context, err error) error {
	var te timeoutError
	if errors.As(err, &te) && te.Timeout() {
		return c.String(http.StatusServiceUnavailable, "database timeout")
	}
	return c.String(http.StatusInternalServerError, "database error")
}
