// Package domain defines the core domain models for the analyst service.
package domain

import (
	"time"
)

// AgentState represents the lifecycle state of an agent.
type AgentState string

const (
	StateIdle            AgentState = "idle"
	StateProcessing      AgentState = "processing"
	StateExecutingQuery  AgentState = "executing_query"
	StateAnalyzingImpact AgentState = "analyzing_impact"
	StateCompleted       AgentState = "completed"
	StateError           AgentState = "error"
	StateTimeout         AgentState = "timeout"
)

// AgentType identifies the concrete agent variant.
type AgentType string

const (
	TypeQueryAgent          AgentType = "query_agent"
	TypeOptimizationAgent   AgentType = "optimization_agent"
	TypeImpactAnalysisAgent AgentType = "impact_analysis_agent"
	TypeCoordinatorAgent    AgentType = "coordinator_agent"
)

// AgentStatus represents the execution status of an agent run.
type AgentStatus string

const (
	StatusPending   AgentStatus = "pending"
	StatusRunning   AgentStatus = "running"
	StatusCompleted AgentStatus = "completed"
	StatusFailed    AgentStatus = "failed"
	StatusTimeout   AgentStatus = "timeout"
)

// StepStatus represents the status of a single processing step.
type StepStatus string

const (
	StepInProgress StepStatus = "in_progress"
	StepSuccess    StepStatus = "success"
	StepError      StepStatus = "error"
	StepWarning    StepStatus = "warning"
)

// AgentError describes a failure attached to a step or to the agent itself.
// Immutable once constructed.
type AgentError struct {
	Type      string         `json:"error_type"`
	Message   string         `json:"error_message"`
	Code      string         `json:"error_code,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Context   map[string]any `json:"context,omitempty"`
}

// NewAgentError constructs an AgentError stamped with the current time.
func NewAgentError(errType, message, code string, context map[string]any) *AgentError {
	if context == nil {
		context = map[string]any{}
	}
	return &AgentError{
		Type:      errType,
		Message:   message,
		Code:      code,
		Timestamp: time.Now().UTC(),
		Context:   context,
	}
}

func (e *AgentError) Error() string {
	return e.Message
}

// AgentStep is one named, timed action within an agent run.
type AgentStep struct {
	Name       string         `json:"step_name"`
	Type       string         `json:"step_type"`
	StartTime  time.Time      `json:"start_time"`
	EndTime    *time.Time     `json:"end_time,omitempty"`
	DurationMs float64        `json:"duration_ms,omitempty"`
	Status     StepStatus     `json:"status"`
	Output     map[string]any `json:"output,omitempty"`
	Error      *AgentError    `json:"error,omitempty"`
}

// AgentResponse is the exported snapshot of an agent run. Read-only to
// all consumers; produced by the owning run's projection.
type AgentResponse struct {
	AgentID   string      `json:"agent_id"`
	AgentType AgentType   `json:"agent_type"`
	State     AgentState  `json:"state"`
	Status    AgentStatus `json:"status"`
	SessionID string      `json:"session_id"`
	RequestID string      `json:"request_id"`

	Steps           []AgentStep `json:"steps"`
	TotalDurationMs float64     `json:"total_duration_ms,omitempty"`

	Result any         `json:"result,omitempty"`
	Error  *AgentError `json:"error,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// IsSuccessful reports whether the run completed with no error attached.
func (r *AgentResponse) IsSuccessful() bool {
	return r.State == StateCompleted && r.Error == nil
}
