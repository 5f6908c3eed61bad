package apihandlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"corpus/internal/models"
	"corpus/internal/store"
)

// APIError defines standard error response
// Example: { "error": { "code": "bad_request", "message": "Invalid ID" } }
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error APIError `json:"error"`
}

// JSONError sends a structured error response
func JSONError(ctx *gin.Context, status int, code, msg string) {
	ctx.JSON(status, errorResponse{Error: APIError{Code: code, Message: msg}})
}

// Convenience wrappers
func BadRequest(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusBadRequest, "bad_request", msg)
}

func NotFound(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusNotFound, "not_found", msg)
}

func Forbidden(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusForbidden, "forbidden", msg)
}

func Internal(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusInternalServerError, "internal_error", msg)
}

func Conflict(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusConflict, "conflict", msg)
}

// RespondError maps a service error onto the HTTP envelope.
func RespondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound) || errors.Is(err, models.ErrNotFound):
		NotFound(ctx, err.Error())
	case models.IsNoPermissionError(err):
		Forbidden(ctx, err.Error())
	case models.IsDocumentIndexingError(err):
		JSONError(ctx, http.StatusBadRequest, "invalid_action", err.Error())
	case errors.Is(err, models.ErrValidation):
		BadRequest(ctx, err.Error())
	case errors.Is(err, models.ErrConflict):
		Conflict(ctx, err.Error())
	default:
		Internal(ctx, err.Error())
	}
}
