package handlers

import (
	"context"
	"errors"
	"io"
	"time"

	"notes-api/internal/apperr"
	"notes-api/internal/middleware"
	"notes-api/internal/models"
	"notes-api/internal/repository"
	"notes-api/pkg/auth"
	"notes-api/pkg/email"
	"notes-api/pkg/response"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// TokenRevoker remembers a token id until ttl elapses.
type TokenRevoker interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
}

type AuthHandler struct {
	userRepo repository.UserRepository
	jwt      *auth.JWTManager
	revoker  TokenRevoker
	cookie   *middleware.SessionCookie
	mailer   email.Sender
	appName  string
	appURL   string
}

func NewAuthHandler(
	userRepo repository.UserRepository,
	jwt *auth.JWTManager,
	revoker TokenRevoker,
	cookie *middleware.SessionCookie,
	mailer email.Sender,
	appName, appURL string,
) *AuthHandler {
	return &AuthHandler{
		userRepo: userRepo,
		jwt:      jwt,
		revoker:  revoker,
		cookie:   cookie,
		mailer:   mailer,
		appName:  appName,
		appURL:   appURL,
	}
}

// bindTolerant decodes the body but lets field validation failures through,
// so that handlers can check for missing fields first and re-validate after
// normalization.
func bindTolerant(c *gin.Context, obj any) error {
	err := c.ShouldBindJSON(obj)
	var verrs validator.ValidationErrors
	if err == nil || errors.Is(err, io.EOF) || errors.As(err, &verrs) {
		return nil
	}
	return err
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := bindTolerant(c, &req); err != nil {
		c.Error(err) //nolint: errcheck
		return
	}

	req.Normalize()
	if !req.Complete() {
		c.Error(apperr.Validation("All fields are required")) //nolint: errcheck
		return
	}
	if err := binding.Validator.ValidateStruct(&req); err != nil {
		c.Error(err) //nolint: errcheck
		return
	}

	ctx := c.Request.Context()

	exists, err := h.userRepo.UsernameExists(ctx, req.Username, 0)
	if err != nil {
		c.Error(err) //nolint: errcheck
		return
	}
	if exists {
		c.Error(apperr.Conflict("Username already taken")) //nolint: errcheck
		return
	}

	exists, err = h.userRepo.EmailExists(ctx, req.Email, 0)
	if err != nil {
		c.Error(err) //nolint: errcheck
		return
	}
	if exists {
		c.Error(apperr.Conflict("User already exists")) //nolint: errcheck
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		c.Error(apperr.Internal("failed to hash password", err)) //nolint: errcheck
		return
	}

	user, err := h.userRepo.Create(ctx, req.Username, req.Email, hashedPassword)
	if err != nil {
		c.Error(err) //nolint: errcheck
		return
	}

	if err := h.startSession(c, user); err != nil {
		c.Error(err) //nolint: errcheck
		return
	}

	email.SendWelcomeAsync(h.mailer, email.WelcomeEmailData{
		Username: user.Username,
		Email:    user.Email,
		AppName:  h.appName,
		AppURL:   h.appURL,
	})

	log.Info("User registered", "user_id", user.ID, "admin", user.IsAdmin)
	response.Created(c, "User created successfully", gin.H{"user": user.ToResponse()})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := bindTolerant(c, &req); err != nil {
		c.Error(err) //nolint: errcheck
		return
	}

	req.Email = models.NormalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		c.Error(apperr.Validation("Email and password are required")) //nolint: errcheck
		return
	}

	user, err := h.userRepo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			err = apperr.Unauthenticated("Invalid credentials")
		}
		c.Error(err) //nolint: errcheck
		return
	}

	ok, err := auth.CheckPassword(user.PasswordHash, req.Password)
	if err != nil {
		c.Error(apperr.Internal("failed to verify password", err)) //nolint: errcheck
		return
	}
	if !ok {
		c.Error(apperr.Unauthenticated("Invalid credentials")) //nolint: errcheck
		return
	}

	if err := h.startSession(c, user); err != nil {
		c.Error(err) //nolint: errcheck
		return
	}

	response.OK(c, "User logged in successfully", gin.H{"user": user.ToResponse()})
}

// Logout always succeeds. A still valid token is revoked for the rest of its
// lifetime so a copy of the cookie cannot be replayed.
func (h *AuthHandler) Logout(c *gin.Context) {
	if token := h.cookie.Read(c); token != "" && h.revoker != nil {
		if claims, err := h.jwt.ValidateToken(token); err == nil {
			if err := h.revoker.Revoke(c.Request.Context(), claims.ID, claims.ExpiresIn()); err != nil {
				log.Warn("Failed to revoke token on logout", "user_id", claims.UserID, "error", err)
			}
		}
	}

	h.cookie.Clear(c)
	response.OK(c, "User logged out successfully", nil)
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.Error(apperr.Unauthenticated("No token provided")) //nolint: errcheck
		return
	}

	response.OK(c, "User data fetched successfully", gin.H{"user": user.ToResponse()})
}

func (h *AuthHandler) startSession(c *gin.Context, user *models.User) error {
	token, _, err := h.jwt.GenerateToken(user.ID)
	if err != nil {
		return apperr.Internal("failed to generate token", err)
	}
	h.cookie.Set(c, token, h.jwt.Expiry())
	return nil
}
