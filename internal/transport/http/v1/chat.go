package v1

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/datapilot/analyst/internal/agent"
	"github.com/datapilot/analyst/internal/domain"
)

// Chat answers a natural-language business question by running the
// coordinator workflow.
// POST /v1/chat
func (h *Handler) Chat(c echo.Context) error {
	ctx := c.Request().Context()

	var req domain.ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.Message) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "message is required"})
	}

	sessionID := req.SessionID
	if sessionID == "" || !h.sessions.Exists(sessionID) {
		sessionID = h.sessions.Create(sessionID, req.UserID)
	}

	enableOptimization := h.enableOptimization
	if req.EnableOptimization != nil {
		enableOptimization = *req.EnableOptimization
	}
	enableImpactAnalysis := h.enableImpactAnalysis
	if req.EnableImpactAnalysis != nil {
		enableImpactAnalysis = *req.EnableImpactAnalysis
	}

	requestID := uuid.New().String()
	resp := h.agents.ExecuteQuery(ctx, sessionID, requestID, &agent.CoordinatorInput{
		Query:                req.Message,
		Context:              req.Context,
		EnableOptimization:   enableOptimization,
		EnableImpactAnalysis: enableImpactAnalysis,
	})

	if !resp.IsSuccessful() {
		status := http.StatusInternalServerError
		body := map[string]any{
			"error":      "analysis failed",
			"session_id": sessionID,
			"agent_id":   resp.AgentID,
		}
		if resp.Error != nil {
			body["error"] = resp.Error.Message
			body["error_code"] = resp.Error.Code
			if resp.Error.Type == "invalid_input" {
				status = http.StatusBadRequest
			}
		}
		return c.JSON(status, body)
	}

	return c.JSON(http.StatusOK, buildChatResponse(sessionID, resp))
}

// buildChatResponse flattens a coordinator response into the chat API
// shape.
func buildChatResponse(sessionID string, resp *domain.AgentResponse) *domain.ChatResponse {
	chat := &domain.ChatResponse{
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		AgentMetadata: map[string]any{
			"agent_id":          resp.AgentID,
			"total_duration_ms": resp.TotalDurationMs,
		},
	}

	result, ok := resp.Result.(*agent.CoordinatorResult)
	if !ok || result.Synthesized == nil {
		chat.Response = "Analysis completed successfully."
		return chat
	}

	chat.Response = result.Synthesized.UserResponse
	chat.AgentMetadata["execution_summary"] = result.ExecutionSummary

	if s := result.Synthesized.QuerySummary; s != nil {
		chat.QueryResult = &domain.ChatQueryResult{
			SQLQuery:        s.SQLQuery,
			ExecutionTimeMs: s.ExecutionTimeMs,
			RowCount:        s.RowCount,
			DataPreview:     s.DataPreview,
		}
	}

	if s := result.Synthesized.ImpactSummary; s != nil {
		impact := &domain.ChatImpactAnalysis{
			ImpactScore:     s.OverallImpactScore,
			ConfidenceLevel: s.ConfidenceLevel,
		}
		if result.ImpactResult != nil {
			impact.Recommendations = result.ImpactResult.Recommendations
			if len(result.ImpactResult.Insights) > 0 {
				impact.ImpactDescription = result.ImpactResult.Insights[0]
			}
		}
		chat.ImpactAnalysis = impact
	}

	return chat
}
