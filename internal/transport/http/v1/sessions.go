package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/adam-a-i/ruya/internal/domain"
	"github.com/adam-a-i/ruya/internal/transport/http/apierr"
)

// StartSession creates a call session and optionally rings the contact.
// POST /v1/sessions
func (h *Handler) StartSession(c echo.Context) error {
	var req domain.StartSessionRequest
	if err := c.Bind(&req); err != nil {
		return apierr.BadRequest(c, "invalid request body")
	}

	resp, err := h.service.StartSession(c.Request().Context(), req)
	if err != nil {
		return apierr.JSON(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// GetSession returns a session.
// GET /v1/sessions/:session_id
func (h *Handler) GetSession(c echo.Context) error {
	session, err := h.service.GetSession(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return apierr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

// NextTurn returns the agent's next reply.
// POST /v1/sessions/:session_id/turns
func (h *Handler) NextTurn(c echo.Context) error {
	var req domain.TurnRequest
	if err := c.Bind(&req); err != nil {
		return apierr.BadRequest(c, "invalid request body")
	}

	resp, err := h.service.NextAgentTurn(c.Request().Context(), c.Param("session_id"), req)
	if err != nil {
		return apierr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// EndSession ends a session. Ending twice is not an error.
// POST /v1/sessions/:session_id/end
func (h *Handler) EndSession(c echo.Context) error {
	session, err := h.service.EndSession(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return apierr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

// AppendTranscript appends transcript lines.
// POST /v1/sessions/:session_id/transcript
func (h *Handler) AppendTranscript(c echo.Context) error {
	var req domain.AppendTranscriptRequest
	if err := c.Bind(&req); err != nil {
		return apierr.BadRequest(c, "invalid request body")
	}

	resp, err := h.service.AppendTranscript(c.Request().Context(), c.Param("session_id"), req)
	if err != nil {
		return apierr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// GetTranscript lists a session's transcript in order.
// GET /v1/sessions/:session_id/transcript
func (h *Handler) GetTranscript(c echo.Context) error {
	sessionID := c.Param("session_id")
	lines, err := h.service.GetTranscript(c.Request().Context(), sessionID)
	if err != nil {
		return apierr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"lines":      lines,
	})
}

// Evaluate analyses an ended session and records its outcome.
// POST /v1/sessions/:session_id/evaluate
func (h *Handler) Evaluate(c echo.Context) error {
	resp, err := h.service.Evaluate(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return apierr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Refine returns coaching for the next pitch. Without a reasoning service the
// fallback payload is returned with 503.
// POST /v1/sessions/:session_id/refine
func (h *Handler) Refine(c echo.Context) error {
	resp, err := h.service.Refine(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		if resp != nil && errors.Is(err, domain.ErrServiceUnavailable) {
			return c.JSON(http.StatusServiceUnavailable, resp)
		}
		return apierr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}
