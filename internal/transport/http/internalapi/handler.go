// Package internalapi provides HTTP handlers for operator-only endpoints.
// These are served on the internal port and must not be exposed publicly.
package internalapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/adam-a-i/ruya/internal/domain"
	"github.com/adam-a-i/ruya/internal/service"
	"github.com/adam-a-i/ruya/internal/transport/http/apierr"
)

// Handler handles internal HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new internal API handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers internal routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/strategy/mutate", h.Mutate)
	e.PATCH("/v1/calls/:call_id/outcome", h.UpdateOutcome)
	e.GET("/v1/jobs/:job_id", h.GetJob)
}

// Mutate runs a mutation check now. With force the threshold is ignored.
// POST /v1/strategy/mutate
func (h *Handler) Mutate(c echo.Context) error {
	var req domain.MutateRequest
	if err := c.Bind(&req); err != nil {
		return apierr.BadRequest(c, "invalid request body")
	}

	res, err := h.service.MutateStrategy(c.Request().Context(), req)
	if err != nil {
		return apierr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// UpdateOutcome corrects the outcome of a call.
// PATCH /v1/calls/:call_id/outcome
func (h *Handler) UpdateOutcome(c echo.Context) error {
	var req domain.OutcomeUpdateRequest
	if err := c.Bind(&req); err != nil {
		return apierr.BadRequest(c, "invalid request body")
	}

	resp, err := h.service.UpdateCallOutcome(c.Request().Context(), c.Param("call_id"), req)
	if err != nil {
		return apierr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// GetJob returns the status of a pipeline job.
// GET /v1/jobs/:job_id
func (h *Handler) GetJob(c echo.Context) error {
	job, err := h.service.GetJob(c.Request().Context(), c.Param("job_id"))
	if err != nil {
		return apierr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, job)
}
