package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/namanjain27/EchoPilot/internal/domain"
)

// ListTickets lists tickets, newest first.
// GET /v1/tickets?tenant_id=&status=&type=&limit=
func (h *Handler) ListTickets(c echo.Context) error {
	filter := domain.TicketFilter{
		TenantID: c.QueryParam("tenant_id"),
		Status:   domain.TicketStatus(c.QueryParam("status")),
		Type:     domain.TicketType(c.QueryParam("type")),
		Limit:    100,
	}
	if filter.Status != "" && filter.Status.Rank() < 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown status"})
	}
	if l := c.QueryParam("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil {
			filter.Limit = val
		}
	}

	list, err := h.service.ListTickets(c.Request().Context(), filter)
	if err != nil {
		return h.errorJSON(c, err)
	}
	if list == nil {
		list = []domain.Ticket{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tickets": list,
	})
}

// TicketSummary counts tickets by status and type.
// GET /v1/tickets/summary?tenant_id=
func (h *Handler) TicketSummary(c echo.Context) error {
	summary, err := h.service.TicketSummary(c.Request().Context(), c.QueryParam("tenant_id"))
	if err != nil {
		return h.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

// GetTicket returns one ticket.
// GET /v1/tickets/:ticket_id
func (h *Handler) GetTicket(c echo.Context) error {
	ticket, err := h.service.GetTicket(c.Request().Context(), c.Param("ticket_id"))
	if err != nil {
		return h.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, ticket)
}
