package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockwatch/internal/db"
)

type HealthHandler struct {
	DB *db.DB
}

func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)
	r.GET("/readyz", h.ready)
}

func (h *HealthHandler) health(c *gin.Context) {
	Ok(c, gin.H{"status": "ok"}, nil)
}

func (h *HealthHandler) ready(c *gin.Context) {
	if h.DB == nil {
		Error(c, http.StatusServiceUnavailable, "db not configured", nil)
		return
	}
	if err := db.Ping(h.DB); err != nil {
		Error(c, http.StatusServiceUnavailable, "db unreachable", nil)
		return
	}
	Ok(c, gin.H{"status": "ready"}, nil)
}
