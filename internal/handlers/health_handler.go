package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves health and version information
type HealthHandler struct {
	db      Pinger
	version string
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db may be nil when running
// without MongoDB.
func NewHealthHandler(db Pinger, version string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, version: version, logger: logger}
}

// Health handles GET /api/health
func (h *HealthHandler) Health(c *gin.Context) {
	database := "in-memory"
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			h.logger.Error("health check failed", zap.Error(err))
			respondError(c, http.StatusInternalServerError, "HEALTH_CHECK_FAILED", "System health check failed", nil)
			return
		}
		database = "connected"
	}

	respondOK(c, "System is healthy", gin.H{
		"status": "healthy",
		"services": gin.H{
			"database": database,
			"api":      "running",
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Version handles GET /api/version
func (h *HealthHandler) Version(c *gin.Context) {
	respondOK(c, "Version information retrieved", gin.H{
		"version":     h.version,
		"name":        "Kuwait Medical Clinic API",
		"description": "Clinic membership backend",
	})
}
