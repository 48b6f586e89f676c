package http

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"task-manager/internal/auth"
	"task-manager/internal/domain"
	"task-manager/internal/ratelimit"
)

const (
	requestIDHeader = "X-Request-ID"
	ctxRequestID    = "request_id"
	ctxUserID       = "user_id"
)

func requestID(c *gin.Context) string {
	if id := c.GetString(ctxRequestID); id != "" {
		return id
	}
	return "no-request"
}

func userID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

func logEntry(c *gin.Context, logger *logrus.Logger) *logrus.Entry {
	fields := logrus.Fields{"request_id": requestID(c)}
	if uid := userID(c); uid != "" {
		fields["user_id"] = uid
	}
	return logger.WithFields(fields)
}

// requestIDMiddleware tags every request with a fresh id, echoed back in X-Request-ID.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set(ctxRequestID, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLogMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := logEntry(c, logger).WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    status,
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		})
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Info("request handled")
		}
	}
}

func recoveryMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logEntry(c, logger).WithField("panic", recovered).Error("panic recovered")
		abortWithError(c, http.StatusInternalServerError, "Internal Server Error")
	})
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requireAuth verifies the bearer token and stores the caller id on the context.
func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			h.fail(c, domain.Auth("Missing or invalid authorization header"))
			return
		}

		uid, err := h.users.VerifyToken(token)
		if err != nil {
			logEntry(c, h.logger).WithError(err).Debug("token rejected")
			h.fail(c, err)
			return
		}

		c.Set(ctxUserID, uid)
		c.Next()
	}
}

// rateLimit charges one event, keyed by client address, to every non-nil
// limiter. A rejected request is charged to none of them.
func (h *Handler) rateLimit(limiters ...*ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, wait := ratelimit.AllowAll(c.ClientIP(), limiters...)
		if !ok {
			seconds := int(math.Ceil(wait.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			logEntry(c, h.logger).WithField("client_ip", c.ClientIP()).Info("rate limit exceeded")
			abortWithError(c, http.StatusTooManyRequests, "Too Many Requests")
			return
		}
		c.Next()
	}
}
