package handlers

import (
	"strconv"

	"notes-api/internal/apperr"
	"notes-api/internal/middleware"
	"notes-api/internal/models"
	"notes-api/internal/repository"
	"notes-api/pkg/cache"
	"notes-api/pkg/response"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type AdminHandler struct {
	userRepo repository.UserRepository
	noteRepo repository.NoteRepository
	cache    *cache.NoteCache
}

func NewAdminHandler(userRepo repository.UserRepository, noteRepo repository.NoteRepository, noteCache *cache.NoteCache) *AdminHandler {
	return &AdminHandler{userRepo: userRepo, noteRepo: noteRepo, cache: noteCache}
}

// ListUsers returns every user together with their notes. Notes are fetched
// in one query for the whole user set and grouped by owner.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	ctx := c.Request.Context()

	users, err := h.userRepo.List(ctx)
	if err != nil {
		c.Error(err) //nolint: errcheck
		return
	}

	notes, err := h.noteRepo.ListByOwners(ctx, lo.Map(users, func(u *models.User, _ int) int64 { return u.ID }))
	if err != nil {
		c.Error(err) //nolint: errcheck
		return
	}
	byOwner := lo.GroupBy(notes, func(n *models.Note) int64 { return n.Owner })

	result := lo.Map(users, func(u *models.User, _ int) *models.UserWithNotes {
		owned := byOwner[u.ID]
		if owned == nil {
			owned = []*models.Note{}
		}
		return &models.UserWithNotes{UserResponse: u.ToResponse(), Notes: owned}
	})

	response.OK(c, "Users fetched successfully", gin.H{"users": result})
}

func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.Error(apperr.NotFound("User not found")) //nolint: errcheck
		return
	}

	if err := h.userRepo.Delete(c.Request.Context(), id); err != nil {
		c.Error(err) //nolint: errcheck
		return
	}
	h.cache.InvalidateUser(c.Request.Context(), id)

	adminID, _ := middleware.CurrentUserID(c)
	log.Info("Admin deleted user", "admin_id", adminID, "user_id", id)
	response.OK(c, "User deleted successfully", gin.H{"user": id})
}
