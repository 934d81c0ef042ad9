package v1

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

// runChat drives a workflow through the chat handler so the agent
// endpoints have something to report on.
func runChat(t *testing.T, e *echo.Echo, h *Handler) string {
	t.Helper()

	body := `{"message":"how is revenue trending"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Chat(c); err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("chat returned %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid chat response: %v", err)
	}
	meta, _ := resp["agent_metadata"].(map[string]any)
	agentID, _ := meta["agent_id"].(string)
	if agentID == "" {
		t.Fatalf("chat response missing agent_id: %v", resp)
	}
	return agentID
}

func TestAgentStatusFromHistory(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)
	agentID := runChat(t, e, h)

	req := httptest.NewRequest(http.MethodGet, "/v1/agents/"+agentID+"/status", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("agent_id")
	c.SetParamValues(agentID)

	if err := h.AgentStatus(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp["agent_id"] != agentID {
		t.Fatalf("unexpected agent: %v", resp["agent_id"])
	}
	if resp["status"] != "completed" {
		t.Fatalf("unexpected status: %v", resp["status"])
	}
}

func TestAgentStatusNotFound(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/agents/missing/status", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("agent_id")
	c.SetParamValues("missing")

	if err := h.AgentStatus(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestActiveAgentsEmpty(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/agents/active", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ActiveAgents(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp["count"] != float64(0) {
		t.Fatalf("expected no active agents, got %v", resp["count"])
	}
}

func TestAgentHistoryEndpoint(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)
	agentID := runChat(t, e, h)

	req := httptest.NewRequest(http.MethodGet, "/v1/agents/history", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.AgentHistory(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Count   int `json:"count"`
		History []struct {
			AgentID string `json:"agent_id"`
		} `json:"history"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Count != 1 || resp.History[0].AgentID != agentID {
		t.Fatalf("unexpected history: %+v", resp)
	}
}

func TestAgentStatisticsEndpoint(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)
	runChat(t, e, h)

	req := httptest.NewRequest(http.MethodGet, "/v1/agents/statistics", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.AgentStatistics(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp["total_agents_executed"] != float64(1) {
		t.Fatalf("unexpected total_agents_executed: %v", resp["total_agents_executed"])
	}
	if resp["success_rate_percent"] != float64(100) {
		t.Fatalf("unexpected success_rate_percent: %v", resp["success_rate_percent"])
	}
}

func TestCleanupHistoryEndpoint(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)
	runChat(t, e, h)

	req := httptest.NewRequest(http.MethodPost, "/v1/agents/cleanup?max_age_ms=3600000", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CleanupHistory(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	// Fresh entries survive an hour cutoff.
	if resp["removed"] != float64(0) {
		t.Fatalf("unexpected removed: %v", resp["removed"])
	}
}

func TestArchivedRunsEndpoint(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)
	agentID := runChat(t, e, h)

	req := httptest.NewRequest(http.MethodGet, "/v1/agents/archive", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ArchivedRuns(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Count int `json:"count"`
		Runs  []struct {
			AgentID string `json:"agent_id"`
		} `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Count != 1 || resp.Runs[0].AgentID != agentID {
		t.Fatalf("unexpected archive listing: %+v", resp)
	}
}
