// Package webhook receives call-completed events from the voice platform.
package webhook

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/adam-a-i/ruya/internal/domain"
	"github.com/adam-a-i/ruya/internal/logger"
	"github.com/adam-a-i/ruya/internal/service"
	"github.com/adam-a-i/ruya/internal/transport/http/apierr"
)

// SecretHeader carries the shared webhook secret.
const SecretHeader = "X-Vapi-Secret"

const maxBodyBytes = 4 << 20

// Handler handles call-completed webhooks.
type Handler struct {
	service *service.Service
	secret  string
	log     *logger.Logger
}

// NewHandler creates a webhook handler. An empty secret disables the check.
func NewHandler(service *service.Service, secret string, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		secret:  secret,
		log:     log.With("component", "webhook"),
	}
}

// RegisterRoutes registers the webhook route.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/webhook/call-completed", h.CallCompleted)
}

// CallCompleted stores the call and queues its analysis. It acknowledges
// before any analysis runs.
// POST /webhook/call-completed
func (h *Handler) CallCompleted(c echo.Context) error {
	if h.secret != "" {
		got := c.Request().Header.Get(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			h.log.Warn("webhook rejected", "reason", "bad secret", "remote_ip", c.RealIP())
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid webhook secret"})
		}
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		return apierr.BadRequest(c, "failed to read request body")
	}
	var ev domain.CallCompletedEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return apierr.BadRequest(c, "invalid request body")
	}

	ack, err := h.service.HandleCallCompleted(c.Request().Context(), ev, json.RawMessage(raw))
	if err != nil {
		h.log.Error("failed to handle call completed", "error", err)
		return apierr.JSON(c, err)
	}
	return c.JSON(http.StatusOK, ack)
}
