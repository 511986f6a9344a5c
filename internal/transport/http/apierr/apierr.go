// Package apierr maps service errors onto HTTP responses.
package apierr

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/adam-a-i/ruya/internal/domain"
)

// Status returns the HTTP status for err.
func Status(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionEnded),
		errors.Is(err, domain.ErrTurnInFlight),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrActiveVersionChanged):
		return http.StatusConflict
	case errors.Is(err, domain.ErrServiceUnavailable),
		errors.Is(err, domain.ErrNoActiveVersion):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrBadCollaboratorReply):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// JSON writes err as {"error": "..."} with its mapped status.
func JSON(c echo.Context, err error) error {
	return c.JSON(Status(err), map[string]string{"error": err.Error()})
}

// BadRequest writes a 400 with msg.
func BadRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}
