// Package agent implements the query, optimization, impact analysis and
// coordinator agents plus the shared run bookkeeping they build on.
package agent

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/datapilot/analyst/internal/domain"
)

// Run tracks the lifecycle of a single agent execution: its state, the
// ordered steps it performed, the result and any error. All methods are
// safe for concurrent use. Once a run is abandoned, mutators become
// no-ops so a late worker cannot corrupt a snapshot already handed out.
type Run struct {
	mu sync.Mutex

	agentID   string
	agentType domain.AgentType
	sessionID string
	requestID string

	state  domain.AgentState
	status domain.AgentStatus
	steps  []domain.AgentStep

	startTime time.Time
	endTime   *time.Time

	result   any
	err      *domain.AgentError
	metadata map[string]any

	abandoned bool
}

// NewRun creates an idle run for the given agent type.
func NewRun(agentType domain.AgentType, sessionID, requestID string) *Run {
	return &Run{
		agentID:   uuid.New().String(),
		agentType: agentType,
		sessionID: sessionID,
		requestID: requestID,
		state:     domain.StateIdle,
		status:    domain.StatusPending,
		startTime: time.Now().UTC(),
		metadata:  map[string]any{},
	}
}

// AgentID returns the run's generated identifier.
func (r *Run) AgentID() string {
	return r.agentID
}

// SessionID returns the session this run belongs to.
func (r *Run) SessionID() string {
	return r.sessionID
}

// MarkStarted moves the run into the processing state.
func (r *Run) MarkStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.abandoned {
		return
	}
	r.state = domain.StateProcessing
	r.status = domain.StatusRunning
	r.startTime = time.Now().UTC()
}

// SetState updates the lifecycle state without touching the status.
func (r *Run) SetState(state domain.AgentState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.abandoned {
		return
	}
	r.state = state
}

// AddStep appends a new in-progress step and returns its name.
func (r *Run) AddStep(name, stepType string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.abandoned {
		return name
	}
	r.steps = append(r.steps, domain.AgentStep{
		Name:      name,
		Type:      stepType,
		StartTime: time.Now().UTC(),
		Status:    domain.StepInProgress,
	})
	return name
}

// UpdateStep finishes the first step with the given name, stamping its
// end time and duration. Returns false when no such step exists.
func (r *Run) UpdateStep(name string, status domain.StepStatus, output map[string]any, stepErr *domain.AgentError) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.abandoned {
		return false
	}
	for i := range r.steps {
		if r.steps[i].Name != name {
			continue
		}
		now := time.Now().UTC()
		r.steps[i].EndTime = &now
		r.steps[i].DurationMs = float64(now.Sub(r.steps[i].StartTime)) / float64(time.Millisecond)
		r.steps[i].Status = status
		r.steps[i].Output = output
		r.steps[i].Error = stepErr
		return true
	}
	return false
}

// SetResult records the run's final payload.
func (r *Run) SetResult(result any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.abandoned {
		return
	}
	r.result = result
}

// SetError records a failure and moves the run to the error state.
func (r *Run) SetError(agentErr *domain.AgentError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.abandoned {
		return
	}
	r.err = agentErr
	r.state = domain.StateError
	r.status = domain.StatusFailed
}

// SetMetadata attaches a metadata value to the run.
func (r *Run) SetMetadata(key string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.abandoned {
		return
	}
	r.metadata[key] = value
}

// Finish marks the run completed. It does not override a run that has
// already failed or timed out.
func (r *Run) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.abandoned {
		return
	}
	now := time.Now().UTC()
	r.endTime = &now
	if r.status == domain.StatusFailed || r.status == domain.StatusTimeout {
		return
	}
	r.state = domain.StateCompleted
	r.status = domain.StatusCompleted
}

// MarkTimedOut stamps the run as timed out after the given duration.
// State and status stay timeout; the attached error carries the limit.
func (r *Run) MarkTimedOut(timeout time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.abandoned {
		return
	}
	now := time.Now().UTC()
	r.endTime = &now
	r.state = domain.StateTimeout
	r.status = domain.StatusTimeout
	r.err = domain.NewAgentError(
		"timeout_error",
		fmt.Sprintf("agent execution exceeded %s timeout", timeout),
		"AGENT_TIMEOUT",
		map[string]any{"timeout_seconds": timeout.Seconds()},
	)
}

// Abandon detaches the run from its worker. Subsequent mutations are
// ignored.
func (r *Run) Abandon() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.abandoned = true
}

// Abandoned reports whether the run has been abandoned.
func (r *Run) Abandoned() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.abandoned
}

// Duration returns the elapsed run time in milliseconds. For a live run
// this is the time since start.
func (r *Run) Duration() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.durationLocked()
}

func (r *Run) durationLocked() float64 {
	end := time.Now().UTC()
	if r.endTime != nil {
		end = *r.endTime
	}
	return float64(end.Sub(r.startTime)) / float64(time.Millisecond)
}

// IsCompleted reports whether the run has reached a terminal status.
func (r *Run) IsCompleted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.status {
	case domain.StatusCompleted, domain.StatusFailed, domain.StatusTimeout:
		return true
	}
	return false
}

// IsSuccessful reports whether the run completed without an error.
func (r *Run) IsSuccessful() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == domain.StateCompleted && r.err == nil
}

// StepByName returns a copy of the first step with the given name.
func (r *Run) StepByName(name string) (domain.AgentStep, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.steps {
		if r.steps[i].Name == name {
			return r.steps[i], true
		}
	}
	return domain.AgentStep{}, false
}

// StepsByType returns copies of all steps with the given type.
func (r *Run) StepsByType(stepType string) []domain.AgentStep {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AgentStep
	for i := range r.steps {
		if r.steps[i].Type == stepType {
			out = append(out, r.steps[i])
		}
	}
	return out
}

// ToResponse projects the run into an immutable snapshot. Steps are
// copied so later mutations cannot leak into the snapshot.
func (r *Run) ToResponse() *domain.AgentResponse {
	r.mu.Lock()
	defer r.mu.Unlock()

	steps := make([]domain.AgentStep, len(r.steps))
	copy(steps, r.steps)

	metadata := make(map[string]any, len(r.metadata))
	for k, v := range r.metadata {
		metadata[k] = v
	}

	updatedAt := time.Now().UTC()
	if r.endTime != nil {
		updatedAt = *r.endTime
	}

	return &domain.AgentResponse{
		AgentID:         r.agentID,
		AgentType:       r.agentType,
		State:           r.state,
		Status:          r.status,
		SessionID:       r.sessionID,
		RequestID:       r.requestID,
		Steps:           steps,
		TotalDurationMs: r.durationLocked(),
		Result:          r.result,
		Error:           r.err,
		CreatedAt:       r.startTime,
		UpdatedAt:       updatedAt,
		Metadata:        metadata,
	}
}
