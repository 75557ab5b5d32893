package response

import (
	"net/http"

	"notes-api/internal/apperr"
	"notes-api/internal/query"

	"github.com/gin-gonic/gin"
)

// Every body is a flat object: success and message, plus the payload keys
// of the endpoint (note, notes, user, users, tags, page, ...).
func write(c *gin.Context, status int, success bool, message string, payload gin.H) {
	body := gin.H{}
	for k, v := range payload {
		body[k] = v
	}
	body["success"] = success
	body["message"] = message
	c.JSON(status, body)
}

func OK(c *gin.Context, message string, payload gin.H) {
	write(c, http.StatusOK, true, message, payload)
}

func Created(c *gin.Context, message string, payload gin.H) {
	write(c, http.StatusCreated, true, message, payload)
}

// Paginated writes a page of notes with its pagination fields.
func Paginated(c *gin.Context, message string, notes any, meta query.PageMeta) {
	OK(c, message, gin.H{
		"notes":      notes,
		"page":       meta.Page,
		"limit":      meta.Limit,
		"totalPages": meta.TotalPages,
		"totalNotes": meta.TotalNotes,
	})
}

func Error(c *gin.Context, status int, message string, extra gin.H) {
	write(c, status, false, message, extra)
}

func AbortWithError(c *gin.Context, status int, message string) {
	Error(c, status, message, nil)
	c.Abort()
}

func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
