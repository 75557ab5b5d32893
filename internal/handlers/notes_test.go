package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"notes-api/internal/middleware"
	"notes-api/internal/models"
	"notes-api/internal/query"
	"notes-api/internal/repository"
	"notes-api/pkg/cache"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubNotes struct {
	repository.NoteRepository
	listCalls int
	listErr   error
	notes     []*models.Note
}

func (s *stubNotes) List(_ context.Context, _ int64, q query.Query) ([]*models.Note, int, error) {
	s.listCalls++
	if s.listErr != nil {
		return nil, 0, s.listErr
	}
	return s.notes, len(s.notes), nil
}

func (s *stubNotes) Create(_ context.Context, ownerID int64, req *models.CreateNoteRequest) (*models.Note, error) {
	note := &models.Note{ID: int64(len(s.notes) + 1), Owner: ownerID, Title: req.Title, Tags: req.Tags, Priority: req.Priority}
	s.notes = append(s.notes, note)
	return note, nil
}

func newNoteRouter(h *NoteHandler) *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandler(true))
	r.Use(func(c *gin.Context) {
		c.Set(middleware.AuthUserKey, &models.User{ID: 1, Username: "ada"})
		c.Next()
	})
	r.GET("/notes", h.GetNotes)
	r.POST("/notes", h.CreateNote)
	r.GET("/notes/:id", h.GetNote)
	return r
}

func serve(t *testing.T, r *gin.Engine, method, path, body string) (int, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	return w.Code, decoded
}

func TestListingIsServedFromCacheUntilAWrite(t *testing.T) {
	notes := &stubNotes{notes: []*models.Note{{ID: 1, Owner: 1, Title: "Cached", Tags: []string{}}}}
	r := newNoteRouter(NewNoteHandler(notes, cache.NewNoteCache(cache.NewMemoryStore(), 0)))

	code, body := serve(t, r, http.MethodGet, "/notes", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Len(t, body["notes"], 1)

	_, body = serve(t, r, http.MethodGet, "/notes", "")
	assert.Len(t, body["notes"], 1)
	assert.Equal(t, 1, notes.listCalls)

	code, _ = serve(t, r, http.MethodPost, "/notes", `{"title":"Fresh"}`)
	require.Equal(t, http.StatusCreated, code)

	_, body = serve(t, r, http.MethodGet, "/notes", "")
	assert.Len(t, body["notes"], 2)
	assert.Equal(t, 2, notes.listCalls)
}

func TestListingWithoutCache(t *testing.T) {
	notes := &stubNotes{}
	r := newNoteRouter(NewNoteHandler(notes, nil))

	code, body := serve(t, r, http.MethodGet, "/notes?page=3", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{}, body["notes"])
	assert.Equal(t, float64(3), body["page"])
	assert.Equal(t, float64(0), body["totalPages"])

	serve(t, r, http.MethodGet, "/notes?page=3", "")
	assert.Equal(t, 2, notes.listCalls)
}

func TestStoreFailureIsAServerError(t *testing.T) {
	notes := &stubNotes{listErr: errors.New("database is locked")}
	r := newNoteRouter(NewNoteHandler(notes, nil))

	code, body := serve(t, r, http.MethodGet, "/notes", "")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, false, body["success"])
	assert.NotContains(t, body["message"], "locked")
	assert.NotContains(t, body, "stack")
}

func TestMalformedNoteIDIsNotFound(t *testing.T) {
	r := newNoteRouter(NewNoteHandler(&stubNotes{}, nil))

	code, body := serve(t, r, http.MethodGet, "/notes/0", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Note not found", body["message"])
}
