package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"task-manager/internal/domain"
	"task-manager/internal/service"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code"`
	RequestID  string `json:"request_id"`
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindAuth:
		return http.StatusUnauthorized
	case domain.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// fail translates err into the uniform error body and aborts the request.
// Anything that is not a client-facing domain error is logged and reported as
// a bare 500.
func (h *Handler) fail(c *gin.Context, err error) {
	var (
		status  int
		message string
		derr    *domain.Error
	)

	switch {
	case errors.Is(err, service.ErrExportDisabled):
		status, message = http.StatusServiceUnavailable, "Task export is not configured"
	case errors.As(err, &derr) && derr.Kind != domain.KindInternal:
		status, message = statusFor(derr.Kind), derr.Message
	default:
		status, message = http.StatusInternalServerError, "Internal Server Error"
		logEntry(c, h.logger).WithError(err).Error("unhandled error")
	}

	if status == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", `Bearer realm="api"`)
	}
	abortWithError(c, status, message)
}

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:      message,
		StatusCode: status,
		RequestID:  requestID(c),
	})
}

func (h *Handler) badJSON(c *gin.Context, err error) {
	logEntry(c, h.logger).WithError(err).Debug("invalid request body")
	abortWithError(c, http.StatusBadRequest, "Invalid JSON body")
}
