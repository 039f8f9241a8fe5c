package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/labdocs/backend/internal/interfaces/http/dto"
	"github.com/labdocs/backend/internal/interfaces/http/router"
)

// HealthHandler reports liveness and the configured rendering setup
type HealthHandler struct {
	version   string
	engine    string
	languages []string
	startTime time.Time
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(version, engine string, languages []string) *HealthHandler {
	return &HealthHandler{
		version:   version,
		engine:    engine,
		languages: languages,
		startTime: time.Now(),
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.HealthResponse{
		Status:    "ok",
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Engine:    h.engine,
		Languages: h.languages,
	}))
}

// HealthRoutes mounts GET /health
func HealthRoutes(h *HealthHandler) *router.DomainGroup {
	return router.NewDomainGroup("health", "/health").GET("", h.Health)
}
