package apihandlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"cinematch/internal/models"
)

// Example: { "error": "movie 12: not found", "code": "not_found" }
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// JSONError sends an error response and aborts the handler chain.
func JSONError(ctx *gin.Context, status int, code, msg string) {
	ctx.AbortWithStatusJSON(status, errorResponse{Error: msg, Code: code})
}

func BadRequest(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusBadRequest, "bad_request", msg)
}

func NotFound(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusNotFound, "not_found", msg)
}

func Internal(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusInternalServerError, "internal_error", msg)
}

// Fail maps err onto a status code by its sentinel.
func Fail(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		NotFound(ctx, err.Error())
	case errors.Is(err, models.ErrConfiguration), errors.Is(err, models.ErrValidation):
		BadRequest(ctx, err.Error())
	default:
		log.Errorf("ERROR: %s %s: %v", ctx.Request.Method, ctx.Request.URL.Path, err)
		Internal(ctx, err.Error())
	}
}
