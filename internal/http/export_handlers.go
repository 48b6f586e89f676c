package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"task-manager/internal/service"
)

type ExportResponse struct {
	Key       string  `json:"key"`
	URL       string  `json:"url,omitempty"`
	Size      int64   `json:"size"`
	CreatedAt *string `json:"created_at,omitempty"`
}

func exportToResponse(e service.Export) ExportResponse {
	resp := ExportResponse{Key: e.Key, URL: e.URL, Size: e.Size}
	if e.CreatedAt != nil && !e.CreatedAt.IsZero() {
		v := e.CreatedAt.UTC().Format(time.RFC3339)
		resp.CreatedAt = &v
	}
	return resp
}

func (h *Handler) createExport(c *gin.Context) {
	export, err := h.exports.Export(c.Request.Context(), userID(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	logEntry(c, h.logger).WithField("key", export.Key).Info("tasks exported")
	c.JSON(http.StatusCreated, exportToResponse(*export))
}

func (h *Handler) listExports(c *gin.Context) {
	exports, err := h.exports.List(c.Request.Context(), userID(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := make([]ExportResponse, len(exports))
	for i := range exports {
		resp[i] = exportToResponse(exports[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) purgeExports(c *gin.Context) {
	n, err := h.exports.Purge(c.Request.Context(), userID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}
