// Package server assembles the HTTP routes of the notes API.
package server

import (
	"context"
	"database/sql"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"notes-api/internal/config"
	"notes-api/internal/handlers"
	"notes-api/internal/middleware"
	"notes-api/internal/repository"
	"notes-api/pkg/auth"
	"notes-api/pkg/cache"
	"notes-api/pkg/email"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Deps are the collaborators the routes are built from. NoteCache and
// Mailer may be nil.
type Deps struct {
	Config      *config.Config
	DB          *sql.DB
	Cache       *cache.Store
	Users       repository.UserRepository
	Notes       repository.NoteRepository
	JWT         *auth.JWTManager
	Revocations *cache.RevocationList
	NoteCache   *cache.NoteCache
	Mailer      email.Sender
}

var registerValidationOnce sync.Once

// registerValidation makes validation errors name fields by their JSON key.
func registerValidation() {
	registerValidationOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// NewRouter builds the gin engine. ctx bounds background work owned by the
// router, such as the rate limiter cleanup.
func NewRouter(ctx context.Context, d Deps) *gin.Engine {
	registerValidation()

	cfg := d.Config
	cookie := &middleware.SessionCookie{Name: cfg.CookieName, Secure: cfg.CookieSecure}

	// A nil *RevocationList must not end up inside a non-nil interface.
	var (
		revoker handlers.TokenRevoker
		revoked middleware.RevocationChecker
	)
	if d.Revocations != nil {
		revoker, revoked = d.Revocations, d.Revocations
	}

	authHandler := handlers.NewAuthHandler(d.Users, d.JWT, revoker, cookie, d.Mailer, cfg.AppName, cfg.AppURL)
	noteHandler := handlers.NewNoteHandler(d.Notes, d.NoteCache)
	userHandler := handlers.NewUserHandler(d.Users, d.NoteCache, cookie)
	adminHandler := handlers.NewAdminHandler(d.Users, d.Notes, d.NoteCache)

	r := gin.New()
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(cfg.ClientURL))
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(middleware.ErrorHandler(cfg.IsProduction()))

	r.GET("/health", health(d.DB, d.Cache, cfg.AppName))

	api := r.Group("/api/v1")

	limiter := middleware.NewRateLimiter(ctx, cfg.AuthRateLimit, cfg.AuthRateWindow, cfg.AuthRateCleanup)
	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", middleware.RateLimitMiddleware(limiter), authHandler.Register)
		authRoutes.POST("/login", middleware.RateLimitMiddleware(limiter), authHandler.Login)
		authRoutes.POST("/logout", authHandler.Logout)
	}

	requireAuth := middleware.AuthMiddleware(d.JWT, d.Users, revoked, cookie)

	protected := api.Group("")
	protected.Use(requireAuth)
	{
		protected.GET("/auth/me", authHandler.Me)

		notes := protected.Group("/notes")
		{
			notes.POST("", noteHandler.CreateNote)
			notes.GET("", noteHandler.GetNotes)
			notes.GET("/search", noteHandler.SearchNotes)
			notes.GET("/tags", noteHandler.GetTags)
			notes.GET("/sort/:mode", noteHandler.SortNotes)
			notes.GET("/:id", noteHandler.GetNote)
			notes.PATCH("/:id", noteHandler.UpdateNote)
			notes.DELETE("/:id", noteHandler.DeleteNote)
			notes.PATCH("/:id/pin", noteHandler.TogglePin)
		}

		users := protected.Group("/users")
		{
			users.PATCH("/me", userHandler.UpdateMe)
			users.DELETE("/me", userHandler.DeleteMe)
		}

		admin := protected.Group("/admin")
		admin.Use(middleware.AdminOnly())
		{
			admin.GET("/users", adminHandler.ListUsers)
			admin.DELETE("/users/:id", adminHandler.DeleteUser)
		}
	}

	return r
}

// health reports 503 when the database or the redis cache cannot be reached.
func health(db *sql.DB, store *cache.Store, service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				log.Error("Health check failed", "component", "database", "error", err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": service})
				return
			}
		}
		if err := store.Health(ctx); err != nil {
			log.Error("Health check failed", "component", "cache", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": service})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": service})
	}
}
