// Package v1 provides the public HTTP handlers.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/adam-a-i/ruya/internal/service"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers external routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Call sessions
	e.POST("/v1/sessions", h.StartSession)
	e.GET("/v1/sessions/:session_id", h.GetSession)
	e.POST("/v1/sessions/:session_id/turns", h.NextTurn)
	e.POST("/v1/sessions/:session_id/end", h.EndSession)
	e.POST("/v1/sessions/:session_id/transcript", h.AppendTranscript)
	e.GET("/v1/sessions/:session_id/transcript", h.GetTranscript)
	e.POST("/v1/sessions/:session_id/evaluate", h.Evaluate)
	e.POST("/v1/sessions/:session_id/refine", h.Refine)

	// Strategy and stats
	e.GET("/v1/strategy/current", h.CurrentStrategy)
	e.GET("/v1/strategy/compare", h.CompareVersions)
	e.GET("/v1/stats/overall", h.OverallStats)
	e.GET("/v1/stats/versions", h.ListVersions)
	e.GET("/v1/calls/recent", h.RecentCalls)
	e.GET("/v1/learnings/trends", h.LearningTrends)

	e.POST("/v1/speech", h.Synthesize)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": Version,
	})
}
