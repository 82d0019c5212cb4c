package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"notes-api/domain"
)

type repoTimeoutErr struct{}

func (repoTimeoutErr) Error() string { return "deadline exceeded" }
func (repoTimeoutErr) Timeout() bool { return true }

type mockRepo struct {
	mu      sync.Mutex
	notes   map[uuid.UUID]domain.Note
	err     error
	creates int
	lastIn  domain.CreateNoteInput
	deleted []uuid.UUID
}

func newMockRepo() *mockRepo {
	return &mockRepo{notes: map[uuid.UUID]domain.Note{}}
}

func (m *mockRepo) Create(_ context.Context, in domain.CreateNoteInput) (domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	m.lastIn = in
	if m.err != nil {
		return domain.Note{}, m.err
	}
	note := domain.Note{ID: uuid.New(), Content: in.Content, Confidential: in.Confidential}
	m.notes[note.ID] = note
	return note, nil
}

func (m *mockRepo) Find(_ context.Context, id uuid.UUID) (domain.Note, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.Note{}, false, m.err
	}
	note, ok := m.notes[id]
	return note, ok, nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.deleted = append(m.deleted, id)
	delete(m.notes, id)
	return nil
}

func newNoteContext(method, target, body, id string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.JSONSerializer = JSONSerializer{}
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if id != "" {
		c.SetParamNames("id")
		c.SetParamValues(id)
	}
	return c, rec
}

func TestGetNote(t *testing.T) {
	repo := newMockRepo()
	note := domain.Note{ID: uuid.New(), Content: "Hello world", Confidential: true}
	repo.notes[note.ID] = note

	c, rec := newNoteContext(http.MethodGet, "/api/notes/"+note.ID.String(), "", note.ID.String())
	if err := getNote(repo, log.New())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var got domain.Note
	if err := sonic.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if got != note {
		t.Fatalf("got %+v, want %+v", got, note)
	}
}

func TestGetNoteNotFound(t *testing.T) {
	id := uuid.NewString()
	c, rec := newNoteContext(http.MethodGet, "/api/notes/"+id, "", id)
	if err := getNote(newMockRepo(), log.New())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 got %d", rec.Code)
	}
}

func TestGetNoteInvalidID(t *testing.T) {
	testCases := map[string]string{
		"word":      "abc",
		"truncated": "6f1c1a3e-8a7b-4c1e-9d2f",
		"numeric":   "42",
	}
	for name, id := range testCases {
		t.Run(name, func(t *testing.T) {
			repo := newMockRepo()
			repo.err = errors.New("repository must not be called")
			c, rec := newNoteContext(http.MethodGet, "/api/notes/"+id, "", id)
			if err := getNote(repo, log.New())(c); err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400 got %d", rec.Code)
			}
		})
	}
}

func TestGetNoteRepositoryErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "database", err: errors.New("connection reset"), want: http.StatusInternalServerError},
		{name: "timeout", err: repoTimeoutErr{}, want: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepo()
			repo.err = tt.err
			id := uuid.NewString()
			c, rec := newNoteContext(http.MethodGet, "/api/notes/"+id, "", id)
			if err := getNote(repo, log.New())(c); err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if rec.Code != tt.want {
				t.Fatalf("expected status %d got %d", tt.want, rec.Code)
			}
			if strings.Contains(rec.Body.String(), tt.err.Error()) {
				t.Fatalf("response leaked repository error: %q", rec.Body.String())
			}
		})
	}
}

func TestPostNote(t *testing.T) {
	repo := newMockRepo()
	c, rec := newNoteContext(http.MethodPost, "/api/notes", `{"content":"Hello world","confidential":true}`, "")
	if err := postNote(repo, nil, log.New())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d", rec.Code)
	}
	var resp createNoteResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	id, err := uuid.Parse(resp.ID)
	if err != nil {
		t.Fatalf("response id is not a uuid: %q", resp.ID)
	}
	if resp.Content != "Hello world" {
		t.Fatalf("unexpected content: %q", resp.Content)
	}
	if stored := repo.notes[id]; !stored.Confidential {
		t.Fatalf("expected confidential flag to be forwarded, got %+v", stored)
	}
}

func TestPostNoteEmptyContent(t *testing.T) {
	repo := newMockRepo()
	c, rec := newNoteContext(http.MethodPost, "/api/notes", `{"content":"","confidential":false}`, "")
	if err := postNote(repo, nil, log.New())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d", rec.Code)
	}
	if repo.lastIn != (domain.CreateNoteInput{}) {
		t.Fatalf("unexpected input: %+v", repo.lastIn)
	}
}

func TestPostNoteMalformedBody(t *testing.T) {
	testCases := map[string]string{
		"not_json":           `content=hi`,
		"missing_content":    `{"confidential":true}`,
		"missing_flag":       `{"content":"hi"}`,
		"wrong_type":         `{"content":1,"confidential":true}`,
		"unknown_field":      `{"content":"hi","confidential":true,"id":"6f1c1a3e-8a7b-4c1e-9d2f-0a1b2c3d4e5f"}`,
		"null":               `null`,
		"string_flag":        `{"content":"hi","confidential":"yes"}`,
		"truncated_document": `{"content":"hi",`,
		"trailing_garbage":   `{"content":"a","confidential":true} xyz`,
		"second_document":    `{"content":"a","confidential":true}{"content":"b"}`,
		"empty":              ``,
		"oversized":          `{"content":"` + strings.Repeat("x", postNoteMaxSize) + `","confidential":true}`,
	}
	for name, body := range testCases {
		t.Run(name, func(t *testing.T) {
			repo := newMockRepo()
			c, rec := newNoteContext(http.MethodPost, "/api/notes", body, "")
			if err := postNote(repo, nil, log.New())(c); err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400 got %d", rec.Code)
			}
			if repo.creates != 0 {
				t.Fatalf("expected repository not to be called, got %d creates", repo.creates)
			}
		})
	}
}

func TestPostNoteRepositoryTimeout(t *testing.T) {
	repo := newMockRepo()
	repo.err = repoTimeoutErr{}
	c, rec := newNoteContext(http.MethodPost, "/api/notes", `{"content":"x","confidential":false}`, "")
	if err := postNote(repo, nil, log.New())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503 got %d", rec.Code)
	}
}

func TestDeleteNote(t *testing.T) {
	repo := newMockRepo()
	id := uuid.New()
	for i := 0; i < 2; i++ {
		c, rec := newNoteContext(http.MethodDelete, "/api/notes/"+id.String(), "", id.String())
		if err := deleteNote(repo, log.New())(c); err != nil {
			t.Fatalf("handler returned error: %v", err)
		}
		if rec.Code != http.StatusNoContent {
			t.Fatalf("delete #%d: expected status 204 got %d", i+1, rec.Code)
		}
	}
	if len(repo.deleted) != 2 || repo.deleted[0] != id {
		t.Fatalf("unexpected deletes: %v", repo.deleted)
	}
}

func TestDeleteNoteInvalidID(t *testing.T) {
	repo := newMockRepo()
	c, rec := newNoteContext(http.MethodDelete, "/api/notes/nope", "", "nope")
	if err := deleteNote(repo, log.New())(c); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
	if len(repo.deleted) != 0 {
		t.Fatal("expected repository not to be called")
	}
}

func TestRegisterRoutesEndToEnd(t *testing.T) {
	e := echo.New()
	repo := newMockRepo()
	Register(e, repo, nil, log.New())

	req := httptest.NewRequest(http.MethodPost, "/api/notes", strings.NewReader(`{"content":"Hello world","confidential":true}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201 got %d", rec.Code)
	}
	var created createNoteResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid json: %v", err)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notes/"+created.ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200 got %d", rec.Code)
	}
	var found domain.Note
	if err := sonic.Unmarshal(rec.Body.Bytes(), &found); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if found.ID.String() != created.ID || found.Content != "Hello world" || !found.Confidential {
		t.Fatalf("unexpected note: %+v", found)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/notes/"+created.ID, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204 got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notes/"+created.ID, nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404 got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200 got %d", rec.Code)
	}
}
