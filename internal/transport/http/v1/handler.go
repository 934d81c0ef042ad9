// Package v1 provides the public HTTP handlers for the analyst service.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/datapilot/analyst/internal/agent"
	"github.com/datapilot/analyst/internal/repository"
	"github.com/datapilot/analyst/internal/session"
)

// Handler handles HTTP requests.
type Handler struct {
	agents   *agent.Manager
	sessions *session.Manager
	archive  *repository.SQLiteArchive

	enableOptimization   bool
	enableImpactAnalysis bool
}

// NewHandler creates a new handler. The enable flags are the workflow
// defaults applied when a chat request does not override them.
func NewHandler(agents *agent.Manager, sessions *session.Manager, archive *repository.SQLiteArchive, enableOptimization, enableImpactAnalysis bool) *Handler {
	return &Handler{
		agents:               agents,
		sessions:             sessions,
		archive:              archive,
		enableOptimization:   enableOptimization,
		enableImpactAnalysis: enableImpactAnalysis,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Chat API
	e.POST("/v1/chat", h.Chat)

	// Session API
	e.POST("/v1/sessions", h.CreateSession)
	e.GET("/v1/sessions/:session_id", h.GetSession)
	e.GET("/v1/sessions/:session_id/history", h.GetSessionHistory)
	e.DELETE("/v1/sessions/:session_id", h.DeleteSession)
	e.GET("/v1/sessions/stats", h.SessionStats)

	// Agent API
	e.GET("/v1/agents/:agent_id/status", h.AgentStatus)
	e.GET("/v1/agents/active", h.ActiveAgents)
	e.GET("/v1/agents/history", h.AgentHistory)
	e.GET("/v1/agents/statistics", h.AgentStatistics)
	e.POST("/v1/agents/cleanup", h.CleanupHistory)
	e.GET("/v1/agents/archive", h.ArchivedRuns)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
