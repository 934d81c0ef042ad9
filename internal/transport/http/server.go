// Package http provides the HTTP server implementation for the analyst
// service.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/datapilot/analyst/internal/agent"
	"github.com/datapilot/analyst/internal/repository"
	"github.com/datapilot/analyst/internal/session"
	v1 "github.com/datapilot/analyst/internal/transport/http/v1"
)

// NewServer creates and configures the HTTP server.
func NewServer(agents *agent.Manager, sessions *session.Manager, archive *repository.SQLiteArchive, enableOptimization, enableImpactAnalysis bool) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	handler := v1.NewHandler(agents, sessions, archive, enableOptimization, enableImpactAnalysis)
	handler.RegisterRoutes(e)

	return e
}
