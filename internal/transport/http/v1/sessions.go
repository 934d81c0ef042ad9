package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// SessionCreateRequest is the request to create a session.
type SessionCreateRequest struct {
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// CreateSession creates a new conversation session.
// POST /v1/sessions
func (h *Handler) CreateSession(c echo.Context) error {
	var req SessionCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	sessionID := h.sessions.Create(req.SessionID, req.UserID)
	return c.JSON(http.StatusOK, map[string]string{
		"session_id": sessionID,
	})
}

// GetSession returns the session state.
// GET /v1/sessions/:session_id
func (h *Handler) GetSession(c echo.Context) error {
	sessionID := c.Param("session_id")

	s, ok := h.sessions.Get(sessionID)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}
	return c.JSON(http.StatusOK, s)
}

// GetSessionHistory returns the session's conversation history.
// GET /v1/sessions/:session_id/history
func (h *Handler) GetSessionHistory(c echo.Context) error {
	sessionID := c.Param("session_id")
	limit := intQueryParam(c, "limit", 0)

	messages, ok := h.sessions.History(sessionID, limit)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"session_id": sessionID,
		"messages":   messages,
	})
}

// DeleteSession removes a session.
// DELETE /v1/sessions/:session_id
func (h *Handler) DeleteSession(c echo.Context) error {
	sessionID := c.Param("session_id")

	if !h.sessions.Delete(sessionID) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}
	return c.JSON(http.StatusOK, map[string]any{"ok": true})
}

// SessionStats returns aggregate session counters.
// GET /v1/sessions/stats
func (h *Handler) SessionStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sessions.Stats())
}

func intQueryParam(c echo.Context, name string, defaultVal int) int {
	if val := c.QueryParam(name); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}
