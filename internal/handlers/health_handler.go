package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Version is the reported service version.
const Version = "1.0.0"

// HealthHandler serves liveness and service identity endpoints.
type HealthHandler struct {
	startedAt time.Time
}

// NewHealthHandler creates a health handler anchored at process start.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{startedAt: time.Now()}
}

// Health handles GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"uptime_s": int64(time.Since(h.startedAt).Seconds()),
	})
}

// Root handles GET /.
func (h *HealthHandler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "SurakshaNet threat analysis service",
		"version": Version,
	})
}
