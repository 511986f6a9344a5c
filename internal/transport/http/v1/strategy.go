package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/adam-a-i/ruya/internal/domain"
	"github.com/adam-a-i/ruya/internal/transport/http/apierr"
)

// CurrentStrategy returns the active version and its rendered prompt.
// GET /v1/strategy/current
func (h *Handler) CurrentStrategy(c echo.Context) error {
	resp, err := h.service.CurrentStrategy(c.Request().Context())
	if err != nil {
		return apierr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// CompareVersions compares the conversion rates of two version tags.
// GET /v1/strategy/compare?version1=v1.0&version2=v1.1
func (h *Handler) CompareVersions(c echo.Context) error {
	tag1, tag2 := c.QueryParam("version1"), c.QueryParam("version2")
	if tag1 == "" || tag2 == "" {
		return apierr.BadRequest(c, "version1 and version2 are required")
	}

	resp, err := h.service.CompareVersions(c.Request().Context(), tag1, tag2)
	if err != nil {
		return apierr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// OverallStats aggregates counters over every version.
// GET /v1/stats/overall
func (h *Handler) OverallStats(c echo.Context) error {
	stats, err := h.service.OverallStats(c.Request().Context())
	if err != nil {
		return apierr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// ListVersions lists every strategy version.
// GET /v1/stats/versions
func (h *Handler) ListVersions(c echo.Context) error {
	versions, err := h.service.ListVersions(c.Request().Context())
	if err != nil {
		return apierr.JSON(c, err)
	}
	if versions == nil {
		versions = []domain.StrategyVersion{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"versions": versions,
	})
}

// RecentCalls lists the newest call records.
// GET /v1/calls/recent?limit=20
func (h *Handler) RecentCalls(c echo.Context) error {
	limit := 0
	if l := c.QueryParam("limit"); l != "" {
		val, err := strconv.Atoi(l)
		if err != nil {
			return apierr.BadRequest(c, "limit must be a number")
		}
		limit = val
	}

	calls, err := h.service.RecentCalls(c.Request().Context(), limit)
	if err != nil {
		return apierr.JSON(c, err)
	}
	if calls == nil {
		calls = []domain.CallRecord{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"calls": calls,
	})
}

// LearningTrends reports whether conversion is improving.
// GET /v1/learnings/trends
func (h *Handler) LearningTrends(c echo.Context) error {
	report, err := h.service.LearningTrends(c.Request().Context())
	if err != nil {
		return apierr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, report)
}

// Synthesize returns spoken audio for text.
// POST /v1/speech
func (h *Handler) Synthesize(c echo.Context) error {
	var req domain.SpeechRequest
	if err := c.Bind(&req); err != nil {
		return apierr.BadRequest(c, "invalid request body")
	}

	out, err := h.service.Synthesize(c.Request().Context(), req)
	if err != nil {
		return apierr.JSON(c, err)
	}
	return c.Blob(http.StatusOK, out.ContentType, out.Audio)
}
