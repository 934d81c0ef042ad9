package agent

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/datapilot/analyst/internal/domain"
)

// Archive persists finished agent runs. Satisfied by the sqlite
// repository.
type Archive interface {
	SaveRun(ctx context.Context, resp *domain.AgentResponse) error
}

// ManagerStatistics aggregates counters over the manager's lifetime.
type ManagerStatistics struct {
	TotalAgentsExecuted    int     `json:"total_agents_executed"`
	ActiveAgents           int     `json:"active_agents"`
	SuccessRatePercent     float64 `json:"success_rate_percent"`
	AverageExecutionTimeMs float64 `json:"average_execution_time_ms"`
	HistorySize            int     `json:"history_size"`
}

// Manager owns coordinator executions: it tracks live runs, keeps a
// bounded in-memory history and archives finished runs. Safe for
// concurrent use.
type Manager struct {
	mu      sync.RWMutex
	active  map[string]*Run
	history []*domain.AgentResponse

	deps       Deps
	archive    Archive
	timeout    time.Duration
	maxHistory int

	totalExecuted int
	totalSuccess  int
	totalTimeMs   float64
}

// NewManager creates an agent manager. The archive may be nil, in which
// case finished runs are only kept in memory.
func NewManager(deps Deps, archive Archive, timeout time.Duration, maxHistory int) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxHistory <= 0 {
		maxHistory = 100
	}
	return &Manager{
		active:     make(map[string]*Run),
		deps:       deps,
		archive:    archive,
		timeout:    timeout,
		maxHistory: maxHistory,
	}
}

// ExecuteQuery runs a full coordinator workflow for one user query and
// returns its response snapshot. Never panics: internal failures are
// converted into a failed response.
func (m *Manager) ExecuteQuery(ctx context.Context, sessionID, requestID string, in *CoordinatorInput) (resp *domain.AgentResponse) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("ERROR: agent manager panicked: %v", rec)
			resp = &domain.AgentResponse{
				AgentType: domain.TypeCoordinatorAgent,
				State:     domain.StateError,
				Status:    domain.StatusFailed,
				SessionID: sessionID,
				RequestID: requestID,
				Error: domain.NewAgentError(
					"execution_error",
					"agent manager failed to execute workflow",
					"AGENT_MANAGER_ERROR",
					nil,
				),
				CreatedAt: time.Now().UTC(),
				UpdatedAt: time.Now().UTC(),
			}
		}
	}()

	coordinator := NewCoordinatorAgent(m.deps, sessionID, requestID)
	run := coordinator.Run()

	m.mu.Lock()
	m.active[run.AgentID()] = run
	m.mu.Unlock()

	if m.deps.Sessions != nil {
		m.deps.Sessions.AddMessage(sessionID, "user", in.Query)
	}

	resp = RunWithTimeout(ctx, coordinator, in, m.timeout)

	m.mu.Lock()
	delete(m.active, run.AgentID())
	m.history = append([]*domain.AgentResponse{resp}, m.history...)
	if len(m.history) > m.maxHistory {
		m.history = m.history[:m.maxHistory]
	}
	m.totalExecuted++
	m.totalTimeMs += resp.TotalDurationMs
	if resp.IsSuccessful() {
		m.totalSuccess++
	}
	m.mu.Unlock()

	if m.deps.Sessions != nil && resp.IsSuccessful() {
		if result, ok := resp.Result.(*CoordinatorResult); ok && result.Synthesized != nil {
			m.deps.Sessions.AddMessage(sessionID, "assistant", result.Synthesized.UserResponse)
		}
	}

	if m.archive != nil {
		if err := m.archive.SaveRun(ctx, resp); err != nil {
			log.Printf("WARN: failed to archive run %s: %v", resp.AgentID, err)
		}
	}

	return resp
}

// AgentStatus returns the live snapshot of an active run, or the
// archived history entry for a finished one.
func (m *Manager) AgentStatus(agentID string) (*domain.AgentResponse, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if run, ok := m.active[agentID]; ok {
		return run.ToResponse(), true
	}
	for _, resp := range m.history {
		if resp.AgentID == agentID {
			return resp, true
		}
	}
	return nil, false
}

// ActiveAgents returns snapshots of all currently running workflows.
func (m *Manager) ActiveAgents() []*domain.AgentResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.AgentResponse, 0, len(m.active))
	for _, run := range m.active {
		out = append(out, run.ToResponse())
	}
	return out
}

// History returns finished runs, newest first. A non-empty sessionID
// filters to that session; limit caps the result when positive.
func (m *Manager) History(sessionID string, limit int) []*domain.AgentResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.AgentResponse
	for _, resp := range m.history {
		if sessionID != "" && resp.SessionID != sessionID {
			continue
		}
		out = append(out, resp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// CleanupHistory drops history entries older than maxAge and returns
// how many were removed.
func (m *Manager) CleanupHistory(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.history[:0]
	removed := 0
	for _, resp := range m.history {
		if resp.UpdatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, resp)
	}
	m.history = kept
	return removed
}

// RunCleanupLoop sweeps aged history entries on the given interval
// until the context is cancelled.
func (m *Manager) RunCleanupLoop(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.CleanupHistory(maxAge); n > 0 {
				log.Printf("INFO: cleaned up %d aged history entries", n)
			}
		}
	}
}

// Statistics returns aggregate execution counters.
func (m *Manager) Statistics() ManagerStatistics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := ManagerStatistics{
		TotalAgentsExecuted: m.totalExecuted,
		ActiveAgents:        len(m.active),
		HistorySize:         len(m.history),
	}
	if m.totalExecuted > 0 {
		stats.SuccessRatePercent = float64(m.totalSuccess) / float64(m.totalExecuted) * 100
		stats.AverageExecutionTimeMs = m.totalTimeMs / float64(m.totalExecuted)
	}
	return stats
}
