package agent

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/datapilot/analyst/internal/domain"
)

// DefaultTimeout bounds an agent execution when no explicit limit is
// configured.
const DefaultTimeout = 300 * time.Second

// Agent is a unit of work that records its progress on a Run and
// produces a response snapshot.
type Agent interface {
	// Run returns the bookkeeping run backing this agent.
	Run() *Run

	// Execute performs the agent's work and returns the final snapshot.
	Execute(ctx context.Context, input any) *domain.AgentResponse
}

// RunWithTimeout executes the agent in a worker goroutine, bounded by
// the given timeout. On timeout the run is stamped as timed out,
// snapshotted and abandoned; the still-running worker can no longer
// touch it. A worker panic is converted into an execution error.
func RunWithTimeout(ctx context.Context, a Agent, input any, timeout time.Duration) *domain.AgentResponse {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan *domain.AgentResponse, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				run := a.Run()
				log.Printf("ERROR: agent %s panicked: %v", run.AgentID(), rec)
				run.SetError(domain.NewAgentError(
					"execution_error",
					fmt.Sprintf("agent panicked: %v", rec),
					"AGENT_EXECUTION_ERROR",
					map[string]any{"exception_type": fmt.Sprintf("%T", rec)},
				))
				run.Finish()
				done <- run.ToResponse()
			}
		}()
		done <- a.Execute(ctx, input)
	}()

	select {
	case resp := <-done:
		return resp
	case <-ctx.Done():
		run := a.Run()
		log.Printf("WARN: agent %s timed out after %s", run.AgentID(), timeout)
		run.MarkTimedOut(timeout)
		resp := run.ToResponse()
		run.Abandon()
		return resp
	}
}
