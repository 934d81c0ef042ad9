package domain

import "time"

// ChatRequest is the inbound chat message from the client.
type ChatRequest struct {
	SessionID            string         `json:"session_id,omitempty"`
	UserID               string         `json:"user_id,omitempty"`
	Message              string         `json:"message"`
	Context              map[string]any `json:"context,omitempty"`
	EnableOptimization   *bool          `json:"enable_optimization,omitempty"`
	EnableImpactAnalysis *bool          `json:"enable_impact_analysis,omitempty"`
}

// ChatQueryResult carries the query-stage details of a chat response.
type ChatQueryResult struct {
	SQLQuery        string           `json:"sql_query"`
	ExecutionTimeMs float64          `json:"execution_time_ms"`
	RowCount        int              `json:"row_count"`
	DataPreview     []map[string]any `json:"data_preview"`
}

// ChatImpactAnalysis carries the impact-stage details of a chat response.
type ChatImpactAnalysis struct {
	ImpactScore       float64  `json:"impact_score"`
	ImpactDescription string   `json:"impact_description"`
	Recommendations   []string `json:"recommendations"`
	ConfidenceLevel   float64  `json:"confidence_level"`
}

// ChatResponse is the outbound answer to a chat request.
type ChatResponse struct {
	Response       string              `json:"response"`
	SessionID      string              `json:"session_id"`
	Timestamp      time.Time           `json:"timestamp"`
	AgentMetadata  map[string]any      `json:"agent_metadata,omitempty"`
	QueryResult    *ChatQueryResult    `json:"query_result,omitempty"`
	ImpactAnalysis *ChatImpactAnalysis `json:"impact_analysis,omitempty"`
}
