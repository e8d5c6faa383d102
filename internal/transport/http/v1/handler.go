// Package v1 provides the public HTTP handlers.
package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/namanjain27/EchoPilot/internal/agent"
	"github.com/namanjain27/EchoPilot/internal/domain"
	"github.com/namanjain27/EchoPilot/internal/logger"
	"github.com/namanjain27/EchoPilot/internal/service"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
	log     *logger.Logger
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		service: service,
		log:     log,
	}
}

// RegisterRoutes registers public routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Sessions
	e.POST("/v1/sessions/:session_id/messages", h.PostMessage)
	e.GET("/v1/sessions/:session_id/messages", h.GetSessionMessages)
	e.GET("/v1/sessions/:session_id/events", h.GetSessionEvents)
	e.POST("/v1/sessions/:session_id/end", h.EndSession)

	// Tickets
	e.GET("/v1/tickets", h.ListTickets)
	e.GET("/v1/tickets/summary", h.TicketSummary)
	e.GET("/v1/tickets/:ticket_id", h.GetTicket)

	// Tools
	e.GET("/v1/tools", h.ListTools)

	e.GET("/health", h.Health)
}

// Health reports "degraded" with the failing dependencies once any of them
// crossed the consecutive-failure threshold.
func (h *Handler) Health(c echo.Context) error {
	resp := map[string]interface{}{
		"status":  "healthy",
		"version": Version,
	}
	if down := h.service.Unhealthy(); len(down) > 0 {
		resp["status"] = "degraded"
		resp["dependencies"] = down
	}
	return c.JSON(http.StatusOK, resp)
}

// errorJSON maps domain errors onto statuses. Anything else is logged and
// answered with the apology so storage or provider details stay server side.
func (h *Handler) errorJSON(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrTicketNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrSessionScope):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrSessionEnded):
		status = http.StatusConflict
	default:
		h.log.Error("request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"session_id", c.Param("session_id"),
			"error", err,
		)
		return c.JSON(status, map[string]string{"error": agent.ApologyMessage})
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}
