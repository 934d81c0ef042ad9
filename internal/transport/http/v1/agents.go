package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// AgentStatus returns the status of an active or recently finished
// workflow.
// GET /v1/agents/:agent_id/status
func (h *Handler) AgentStatus(c echo.Context) error {
	agentID := c.Param("agent_id")

	resp, ok := h.agents.AgentStatus(agentID)
	if !ok && h.archive != nil {
		archived, err := h.archive.GetRun(c.Request().Context(), agentID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		if archived != nil {
			resp, ok = archived, true
		}
	}
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "agent not found"})
	}
	return c.JSON(http.StatusOK, resp)
}

// ActiveAgents lists all currently running workflows.
// GET /v1/agents/active
func (h *Handler) ActiveAgents(c echo.Context) error {
	agents := h.agents.ActiveAgents()
	return c.JSON(http.StatusOK, map[string]any{
		"agents": agents,
		"count":  len(agents),
	})
}

// AgentHistory lists finished workflows, newest first.
// GET /v1/agents/history
func (h *Handler) AgentHistory(c echo.Context) error {
	sessionID := c.QueryParam("session_id")
	limit := intQueryParam(c, "limit", 0)

	history := h.agents.History(sessionID, limit)
	return c.JSON(http.StatusOK, map[string]any{
		"history": history,
		"count":   len(history),
	})
}

// AgentStatistics returns aggregate execution counters.
// GET /v1/agents/statistics
func (h *Handler) AgentStatistics(c echo.Context) error {
	return c.JSON(http.StatusOK, h.agents.Statistics())
}

// CleanupHistory drops in-memory history entries older than max_age_ms.
// POST /v1/agents/cleanup
func (h *Handler) CleanupHistory(c echo.Context) error {
	maxAge := time.Duration(intQueryParam(c, "max_age_ms", int((24*time.Hour).Milliseconds()))) * time.Millisecond
	removed := h.agents.CleanupHistory(maxAge)
	return c.JSON(http.StatusOK, map[string]any{
		"removed": removed,
	})
}

// ArchivedRuns lists archived runs from the database.
// GET /v1/agents/archive
func (h *Handler) ArchivedRuns(c echo.Context) error {
	if h.archive == nil {
		return c.JSON(http.StatusNotImplemented, map[string]string{"error": "archive not configured"})
	}
	sessionID := c.QueryParam("session_id")
	limit := intQueryParam(c, "limit", 50)

	runs, err := h.archive.ListRuns(c.Request().Context(), sessionID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}
