package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/datapilot/analyst/internal/adapter/llm"
	"github.com/datapilot/analyst/internal/adapter/warehouse"
	"github.com/datapilot/analyst/internal/agent"
	"github.com/datapilot/analyst/internal/session"
	"github.com/datapilot/analyst/policy"
	"github.com/datapilot/analyst/tests/helpers"
)

func newTestHandler(t *testing.T) (*Handler, *session.Manager) {
	t.Helper()

	archive := helpers.NewTestArchive(t)
	sessions := session.NewManager(time.Hour)

	policyEngine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	agents := agent.NewManager(agent.Deps{
		Advisor:   llm.NewMockAdvisor(),
		Warehouse: warehouse.NewMockExecutor(),
		Policy:    policyEngine,
		Sessions:  sessions,
		Synthesis: agent.DefaultSynthesisConfig(),
		MaxRows:   100,
	}, archive, time.Minute, 10)

	return NewHandler(agents, sessions, archive, true, true), sessions
}

func TestChatMissingMessage(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewBufferString(`{"message":""}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Chat(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestChatSuccess(t *testing.T) {
	e := echo.New()
	h, sessions := newTestHandler(t)

	body := `{"message":"how is revenue trending"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Chat(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	sessionID, _ := resp["session_id"].(string)
	if sessionID == "" {
		t.Fatalf("expected a session_id in the response")
	}
	if resp["response"] == "" {
		t.Fatalf("expected a non-empty response text")
	}
	if resp["query_result"] == nil {
		t.Fatalf("expected query_result in the response")
	}

	// The session was created implicitly and holds the conversation.
	msgs, ok := sessions.History(sessionID, 0)
	if !ok {
		t.Fatalf("session %s not found", sessionID)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages on the session, got %d", len(msgs))
	}
}

func TestChatReusesExistingSession(t *testing.T) {
	e := echo.New()
	h, sessions := newTestHandler(t)
	sessionID := sessions.Create("", "u1")

	body := `{"message":"how is revenue trending","session_id":"` + sessionID + `"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Chat(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp["session_id"] != sessionID {
		t.Fatalf("expected session %s, got %v", sessionID, resp["session_id"])
	}
}

func TestChatDisableOptionalStages(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	body := `{"message":"how is revenue trending","enable_optimization":false,"enable_impact_analysis":false}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Chat(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp["impact_analysis"] != nil {
		t.Fatalf("impact analysis should be absent when disabled")
	}
}

func TestHealth(t *testing.T) {
	e := echo.New()
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Health(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
