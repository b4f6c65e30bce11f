package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger reports the health of an optional dependency
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports service liveness
type HealthHandler struct {
	cache    Pinger
	sessions func() int
}

// NewHealthHandler creates a HealthHandler. cache may be nil when Redis is disabled.
func NewHealthHandler(cache Pinger, sessions func() int) *HealthHandler {
	return &HealthHandler{cache: cache, sessions: sessions}
}

// Health godoc
// @Summary      Health check
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	cacheStatus := "disabled"
	if h.cache != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()
		cacheStatus = "ok"
		if err := h.cache.Ping(ctx); err != nil {
			cacheStatus = "unavailable"
		}
	}

	sessions := 0
	if h.sessions != nil {
		sessions = h.sessions()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"service":  "clouseau-dashboard",
		"cache":    cacheStatus,
		"sessions": sessions,
		"time":     time.Now().Unix(),
	})
}
