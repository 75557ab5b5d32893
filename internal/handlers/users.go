package handlers

import (
	"notes-api/internal/apperr"
	"notes-api/internal/middleware"
	"notes-api/internal/models"
	"notes-api/internal/repository"
	"notes-api/pkg/auth"
	"notes-api/pkg/cache"
	"notes-api/pkg/response"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// UserHandler serves the signed in user's own account.
type UserHandler struct {
	userRepo repository.UserRepository
	cache    *cache.NoteCache
	cookie   *middleware.SessionCookie
}

func NewUserHandler(userRepo repository.UserRepository, noteCache *cache.NoteCache, cookie *middleware.SessionCookie) *UserHandler {
	return &UserHandler{userRepo: userRepo, cache: noteCache, cookie: cookie}
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.Error(apperr.Unauthenticated("No token provided")) //nolint: errcheck
		return
	}

	var req models.UpdateProfileRequest
	if err := bindTolerant(c, &req); err != nil {
		c.Error(err) //nolint: errcheck
		return
	}
	req.Normalize()
	if err := binding.Validator.ValidateStruct(&req); err != nil {
		c.Error(err) //nolint: errcheck
		return
	}
	if (req.Username != nil && *req.Username == "") || (req.Email != nil && *req.Email == "") ||
		(req.Password != nil && *req.Password == "") {
		c.Error(apperr.Validation("Fields cannot be empty")) //nolint: errcheck
		return
	}

	ctx := c.Request.Context()
	if req.IsEmpty() {
		response.OK(c, "User updated successfully", gin.H{"user": user.ToResponse()})
		return
	}

	if req.Username != nil {
		taken, err := h.userRepo.UsernameExists(ctx, *req.Username, user.ID)
		if err != nil {
			c.Error(err) //nolint: errcheck
			return
		}
		if taken {
			c.Error(apperr.Conflict("Username already taken")) //nolint: errcheck
			return
		}
	}
	if req.Email != nil {
		taken, err := h.userRepo.EmailExists(ctx, *req.Email, user.ID)
		if err != nil {
			c.Error(err) //nolint: errcheck
			return
		}
		if taken {
			c.Error(apperr.Conflict("User already exists")) //nolint: errcheck
			return
		}
	}

	update := models.ProfileUpdate{Username: req.Username, Email: req.Email}
	if req.Password != nil {
		hashed, err := auth.HashPassword(*req.Password)
		if err != nil {
			c.Error(apperr.Internal("failed to hash password", err)) //nolint: errcheck
			return
		}
		update.PasswordHash = &hashed
	}

	updated, err := h.userRepo.UpdateProfile(ctx, user.ID, update)
	if err != nil {
		c.Error(err) //nolint: errcheck
		return
	}

	response.OK(c, "User updated successfully", gin.H{"user": updated.ToResponse()})
}

func (h *UserHandler) DeleteMe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.userRepo.Delete(c.Request.Context(), userID); err != nil {
		c.Error(err) //nolint: errcheck
		return
	}

	h.cache.InvalidateUser(c.Request.Context(), userID)
	h.cookie.Clear(c)

	log.Info("User deleted their account", "user_id", userID)
	response.OK(c, "User deleted successfully", nil)
}
