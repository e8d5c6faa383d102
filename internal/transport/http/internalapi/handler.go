// Package internalapi provides HTTP handlers for operator APIs. These are
// served on the internal port only.
package internalapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/namanjain27/EchoPilot/internal/domain"
	"github.com/namanjain27/EchoPilot/internal/service"
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
	// Ticket lifecycle
	e.POST("/internal/tickets/:ticket_id/status", h.UpdateTicketStatus)

	// Knowledge ingestion
	e.POST("/internal/documents", h.IngestDocument)

	// Session management
	e.POST("/internal/sessions/sweep", h.SweepSessions)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// UpdateTicketStatus moves a ticket forward.
// POST /internal/tickets/:ticket_id/status
func (h *Handler) UpdateTicketStatus(c echo.Context) error {
	var req domain.TicketStatusRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Status == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "status is required"})
	}

	ticket, err := h.service.TransitionTicket(c.Request().Context(), c.Param("ticket_id"), req.Status)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTicketNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, domain.ErrInvalidTransition):
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, ticket)
}

// IngestDocument indexes a file readable by the server.
// POST /internal/documents
func (h *Handler) IngestDocument(c echo.Context) error {
	var req domain.IngestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	resp, err := h.service.IngestDocument(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		var ext *domain.ExternalCallError
		if errors.As(err, &ext) {
			return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, resp)
}

// SweepSessions evicts idle sessions now instead of waiting for the monitor.
// POST /internal/sessions/sweep
func (h *Handler) SweepSessions(c echo.Context) error {
	n := h.service.SweepIdle(c.Request().Context())
	return c.JSON(http.StatusOK, domain.SweepResponse{Evicted: n})
}
