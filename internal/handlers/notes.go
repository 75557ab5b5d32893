package handlers

import (
	"strconv"

	"notes-api/internal/apperr"
	"notes-api/internal/middleware"
	"notes-api/internal/models"
	"notes-api/internal/query"
	"notes-api/internal/repository"
	"notes-api/pkg/cache"
	"notes-api/pkg/response"

	"github.com/gin-gonic/gin"
)

var sortMessages = map[query.SortMode]string{
	query.SortPriority: "Notes sorted by priority",
	query.SortDate:     "Notes sorted by date",
	query.SortTitle:    "Notes sorted by title",
	query.SortPinned:   "Notes sorted by pin",
	query.SortMulti:    "Notes sorted by multiple fields (custom priority)",
}

type NoteHandler struct {
	noteRepo repository.NoteRepository
	cache    *cache.NoteCache
}

// NewNoteHandler accepts a nil cache.
func NewNoteHandler(noteRepo repository.NoteRepository, noteCache *cache.NoteCache) *NoteHandler {
	return &NoteHandler{noteRepo: noteRepo, cache: noteCache}
}

// noteID parses the :id path parameter. A malformed id cannot name one of
// the caller's notes, so it is reported as a missing note.
func noteID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.NotFound("Note not found")
	}
	return id, nil
}

func currentUserID(c *gin.Context) (int64, bool) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.Error(apperr.Unauthenticated("No token provided")) //nolint: errcheck
	}
	return userID, ok
}

func (h *NoteHandler) CreateNote(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req models.CreateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err) //nolint: errcheck
		return
	}
	if err := req.Normalize(); err != nil {
		c.Error(err) //nolint: errcheck
		return
	}

	note, err := h.noteRepo.Create(c.Request.Context(), userID, &req)
	if err != nil {
		c.Error(err) //nolint: errcheck
		return
	}

	h.cache.InvalidateUser(c.Request.Context(), userID)
	response.Created(c, "Note created successfully", gin.H{"note": note})
}

func (h *NoteHandler) GetNote(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, err := noteID(c)
	if err != nil {
		c.Error(err) //nolint: errcheck
		return
	}

	ctx := c.Request.Context()
	if note, hit := h.cache.GetNote(ctx, id, userID); hit {
		response.OK(c, "Note fetched successfully", gin.H{"note": note})
		return
	}

	note, err := h.noteRepo.GetByID(ctx, id, userID)
	if err != nil {
		c.Error(err) //nolint: errcheck
		return
	}

	h.cache.SetNote(ctx, note)
	response.OK(c, "Note fetched successfully", gin.H{"note": note})
}

// GetNotes lists the caller's notes in insertion order, one page at a time.
func (h *NoteHandler) GetNotes(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	q := query.Query{Page: query.ParsePage(c.Request.URL.Query())}
	h.listNotes(c, userID, "all", q, "Notes fetched successfully", "Notes fetched successfully")
}

func (h *NoteHandler) SearchNotes(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	q, err := query.ParseSearch(c.Request.URL.Query())
	if err != nil {
		c.Error(err) //nolint: errcheck
		return
	}
	h.listNotes(c, userID, "search", q, "Notes fetched successfully", "No results")
}

func (h *NoteHandler) SortNotes(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	sort, err := query.ParseSort(c.Param("mode"), c.Query("order"))
	if err != nil {
		c.Error(err) //nolint: errcheck
		return
	}

	q := query.Query{Sort: sort, Page: query.ParsePage(c.Request.URL.Query())}
	message := sortMessages[sort.Mode]
	h.listNotes(c, userID, "sort:"+string(sort.Mode), q, message, message)
}

// listNotes serves one page of a listing from the cache when possible.
// emptyMessage replaces message when the caller owns no matching note.
func (h *NoteHandler) listNotes(c *gin.Context, userID int64, scope string, q query.Query, message, emptyMessage string) {
	ctx := c.Request.Context()
	key := cache.ListKey(userID, scope, c.Request.URL.Query())

	list, hit := h.cache.GetList(ctx, key)
	if !hit {
		notes, total, err := h.noteRepo.List(ctx, userID, q)
		if err != nil {
			c.Error(err) //nolint: errcheck
			return
		}
		list = &cache.NoteList{Notes: notes, Meta: query.NewPageMeta(q.Page, total)}
		h.cache.SetList(ctx, userID, key, list)
	}

	if list.Notes == nil {
		list.Notes = []*models.Note{}
	}
	if list.Meta.TotalNotes == 0 {
		message = emptyMessage
	}
	response.Paginated(c, message, list.Notes, list.Meta)
}

func (h *NoteHandler) UpdateNote(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, err := noteID(c)
	if err != nil {
		c.Error(err) //nolint: errcheck
		return
	}

	var req models.UpdateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(err) //nolint: errcheck
		return
	}
	if err := req.Normalize(); err != nil {
		c.Error(err) //nolint: errcheck
		return
	}

	ctx := c.Request.Context()
	var note *models.Note
	if req.IsEmpty() {
		note, err = h.noteRepo.GetByID(ctx, id, userID)
	} else {
		note, err = h.noteRepo.Update(ctx, id, userID, &req)
	}
	if err != nil {
		c.Error(err) //nolint: errcheck
		return
	}

	h.cache.InvalidateUser(ctx, userID)
	response.OK(c, "Note updated successfully", gin.H{"note": note})
}

func (h *NoteHandler) DeleteNote(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, err := noteID(c)
	if err != nil {
		c.Error(err) //nolint: errcheck
		return
	}

	if err := h.noteRepo.Delete(c.Request.Context(), id, userID); err != nil {
		c.Error(err) //nolint: errcheck
		return
	}

	h.cache.InvalidateUser(c.Request.Context(), userID)
	response.OK(c, "Note deleted successfully", nil)
}

func (h *NoteHandler) TogglePin(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, err := noteID(c)
	if err != nil {
		c.Error(err) //nolint: errcheck
		return
	}

	note, err := h.noteRepo.TogglePin(c.Request.Context(), id, userID)
	if err != nil {
		c.Error(err) //nolint: errcheck
		return
	}

	h.cache.InvalidateUser(c.Request.Context(), userID)
	response.OK(c, "Pin status successfully changed", gin.H{"note": note})
}

// GetTags returns the distinct tags used across the caller's notes.
func (h *NoteHandler) GetTags(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if tags, hit := h.cache.GetTags(ctx, userID); hit {
		response.OK(c, "Tags fetched successfully", gin.H{"tags": tags})
		return
	}

	tags, err := h.noteRepo.ListTags(ctx, userID)
	if err != nil {
		c.Error(err) //nolint: errcheck
		return
	}

	h.cache.SetTags(ctx, userID, tags)
	response.OK(c, "Tags fetched successfully", gin.H{"tags": tags})
}
