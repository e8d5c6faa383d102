// Package http provides the HTTP servers of the support engine.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/namanjain27/EchoPilot/internal/config"
	"github.com/namanjain27/EchoPilot/internal/logger"
	"github.com/namanjain27/EchoPilot/internal/service"
	"github.com/namanjain27/EchoPilot/internal/transport/http/internalapi"
	v1 "github.com/namanjain27/EchoPilot/internal/transport/http/v1"
	"github.com/namanjain27/EchoPilot/internal/transport/ws"
)

// NewExternalServer creates the public server: chat sessions over HTTP and
// WebSocket, tickets, tools and health.
func NewExternalServer(svc *service.Service, cfg *config.Config, log *logger.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	v1.NewHandler(svc, log.With("component", "http")).RegisterRoutes(e)
	e.GET("/v1/ws", ws.NewServer(svc, cfg.WebSocket, log.With("component", "ws")).HandleWebSocket)
	return e
}

// NewInternalServer creates the operator server: ticket status changes,
// document ingestion, session sweeps and metrics.
func NewInternalServer(svc *service.Service) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	internalapi.NewHandler(svc).RegisterRoutes(e)
	return e
}
