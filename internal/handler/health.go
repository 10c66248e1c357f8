package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tradelens/internal/repository"
)

// HealthHandler reports liveness, and readiness of the archive when one is
// configured. Without an archive the service is ready as soon as it is up.
type HealthHandler struct {
	Repo repository.Repository
}

func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)
	r.GET("/readyz", h.ready)
}

func (h *HealthHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) ready(c *gin.Context) {
	if h.Repo == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready", "archive": "disabled"})
		return
	}
	if err := h.Repo.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
