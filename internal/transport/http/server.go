// Package http provides the HTTP servers for the voice sales agent.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/adam-a-i/ruya/internal/config"
	"github.com/adam-a-i/ruya/internal/logger"
	"github.com/adam-a-i/ruya/internal/service"
	"github.com/adam-a-i/ruya/internal/transport/http/internalapi"
	v1 "github.com/adam-a-i/ruya/internal/transport/http/v1"
	"github.com/adam-a-i/ruya/internal/transport/http/webhook"
	"github.com/adam-a-i/ruya/internal/transport/ws"
)

// NewExternalServer creates the public server: the session API, stats, speech,
// the call-completed webhook and the live session socket.
func NewExternalServer(svc *service.Service, cfg *config.Config, log *logger.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(requestLogger(log.With("server", "external")))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	v1Handler := v1.NewHandler(svc)
	webhookHandler := webhook.NewHandler(svc, cfg.WebhookSecret, log)
	liveHandler := ws.NewHandler(svc, log)

	// Register Routes
	v1Handler.RegisterRoutes(e)
	webhookHandler.RegisterRoutes(e)
	liveHandler.RegisterRoutes(e)

	return e
}

// NewInternalServer creates the operator server for mutation triggers, outcome
// corrections and job lookups.
func NewInternalServer(svc *service.Service, log *logger.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(requestLogger(log.With("server", "internal")))
	e.Use(middleware.Recover())

	internalapi.NewHandler(svc).RegisterRoutes(e)

	return e
}

func requestLogger(log *logger.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				log.Warn("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency, "error", v.Error)
				return nil
			}
			log.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	})
}
