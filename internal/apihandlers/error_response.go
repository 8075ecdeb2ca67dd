package apihandlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"triage/internal/models"
	"triage/internal/requestctx"
	"triage/internal/store"
)

// APIError defines standard error response
// Example: { "error": { "code": "invalid_input", "message": "message: must not be empty" } }
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error APIError `json:"error"`
}

// JSONError sends a structured error response
func JSONError(ctx *gin.Context, status int, code, msg string) {
	ctx.AbortWithStatusJSON(status, errorResponse{Error: APIError{Code: code, Message: msg}})
}

// Convenience wrappers
func BadRequest(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusBadRequest, "invalid_input", msg)
}

func NotFound(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusNotFound, "not_found", msg)
}

func Internal(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusInternalServerError, "internal_error", msg)
}

func Unavailable(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusServiceUnavailable, "unavailable", msg)
}

// RespondError maps a service error onto a status code and error code.
func RespondError(ctx *gin.Context, err error) {
	status, code := classifyError(err)
	entry := log.WithFields(log.Fields{
		"request_id": requestctx.RequestID(ctx.Request.Context()),
		"status":     status,
	})
	if status >= http.StatusInternalServerError {
		entry.Errorf("Request failed: %v", err)
	} else {
		entry.Infof("Request rejected: %v", err)
	}
	JSONError(ctx, status, code, err.Error())
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrInputValidation):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, models.ErrOutputValidation):
		return http.StatusBadGateway, "output_validation_error"
	case errors.Is(err, models.ErrExternalService):
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout, "timeout"
		}
		return http.StatusBadGateway, "external_service_error"
	case errors.Is(err, store.ErrNotFound), errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, store.ErrNotConfigured):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal_error"
}
