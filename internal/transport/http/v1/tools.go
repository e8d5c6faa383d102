package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/namanjain27/EchoPilot/internal/domain"
)

// ListTools lists the tools a role may use.
// GET /v1/tools?role=customer
func (h *Handler) ListTools(c echo.Context) error {
	role := domain.UserRole(c.QueryParam("role"))
	if role == "" {
		role = domain.UserRoleCustomer
	}

	specs, err := h.service.ListTools(c.Request().Context(), role)
	if err != nil {
		return h.errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"role":  role,
		"tools": specs,
	})
}
