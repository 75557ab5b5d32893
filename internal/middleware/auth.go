package middleware

import (
	"context"
	"net/http"

	"notes-api/internal/apperr"
	"notes-api/internal/models"
	"notes-api/pkg/auth"
	"notes-api/pkg/response"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

const (
	AuthUserKey   = "auth_user"
	AuthClaimsKey = "auth_claims"
)

type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) bool
}

// AuthMiddleware authenticates the request from the session cookie and
// attaches the user and the token claims to the context. Nothing is read from
// the user store unless the token is valid.
func AuthMiddleware(tokens TokenValidator, users UserLookup, revoked RevocationChecker, cookie *SessionCookie) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := cookie.Read(c)
		if token == "" {
			response.AbortWithError(c, http.StatusUnauthorized, "No token provided")
			return
		}

		claims, err := tokens.ValidateToken(token)
		if err != nil {
			log.Debug("Rejected session token", "error", err)
			response.AbortWithError(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		if revoked != nil && revoked.IsRevoked(c.Request.Context(), claims.ID) {
			response.AbortWithError(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		user, err := users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				response.AbortWithError(c, http.StatusUnauthorized, "Authentication failed: user not found")
				return
			}
			c.Error(apperr.Wrap(err, "failed to load session user")) //nolint: errcheck
			c.Abort()
			return
		}

		c.Set(AuthUserKey, user)
		c.Set(AuthClaimsKey, claims)
		c.Next()
	}
}

// AdminOnly must run after AuthMiddleware.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			response.AbortWithError(c, http.StatusUnauthorized, "No token provided")
			return
		}
		if !user.IsAdmin {
			response.AbortWithError(c, http.StatusForbidden, "Access forbidden: Admins only")
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(AuthUserKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}

func CurrentUserID(c *gin.Context) (int64, bool) {
	user, ok := CurrentUser(c)
	if !ok {
		return 0, false
	}
	return user.ID, true
}

func CurrentClaims(c *gin.Context) (*auth.Claims, bool) {
	value, exists := c.Get(AuthClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*auth.Claims)
	return claims, ok
}
