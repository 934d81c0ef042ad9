package agent

import (
	"testing"

	"github.com/datapilot/analyst/internal/domain"
)

func TestRunStepLifecycle(t *testing.T) {
	run := NewRun(domain.TypeQueryAgent, "s1", "r1")
	run.MarkStarted()

	run.AddStep("sql_generation", "nlp_to_sql")
	if !run.UpdateStep("sql_generation", domain.StepSuccess, map[string]any{"sql_query": "SELECT 1"}, nil) {
		t.Fatalf("expected update to find the step")
	}

	step, ok := run.StepByName("sql_generation")
	if !ok {
		t.Fatalf("step not found")
	}
	if step.Status != domain.StepSuccess {
		t.Fatalf("expected success status, got %s", step.Status)
	}
	if step.EndTime == nil {
		t.Fatalf("expected end time to be stamped")
	}
	if step.Output["sql_query"] != "SELECT 1" {
		t.Fatalf("unexpected output: %+v", step.Output)
	}
}

func TestRunUpdateUnknownStep(t *testing.T) {
	run := NewRun(domain.TypeQueryAgent, "s1", "r1")
	if run.UpdateStep("missing", domain.StepSuccess, nil, nil) {
		t.Fatalf("expected false for unknown step")
	}
}

func TestRunDuplicateStepNamesFirstMatch(t *testing.T) {
	run := NewRun(domain.TypeQueryAgent, "s1", "r1")
	run.AddStep("retry", "attempt")
	run.AddStep("retry", "attempt")

	if !run.UpdateStep("retry", domain.StepError, nil, nil) {
		t.Fatalf("expected update to succeed")
	}

	resp := run.ToResponse()
	if resp.Steps[0].Status != domain.StepError {
		t.Fatalf("expected first step updated, got %s", resp.Steps[0].Status)
	}
	if resp.Steps[1].Status != domain.StepInProgress {
		t.Fatalf("expected second step untouched, got %s", resp.Steps[1].Status)
	}
}

func TestRunFinishDoesNotOverrideFailure(t *testing.T) {
	run := NewRun(domain.TypeQueryAgent, "s1", "r1")
	run.MarkStarted()
	run.SetError(domain.NewAgentError("execution_error", "boom", "AGENT_EXECUTION_ERROR", nil))
	run.Finish()

	resp := run.ToResponse()
	if resp.State != domain.StateError {
		t.Fatalf("expected error state, got %s", resp.State)
	}
	if resp.Status != domain.StatusFailed {
		t.Fatalf("expected failed status, got %s", resp.Status)
	}
	if resp.IsSuccessful() {
		t.Fatalf("failed run must not be successful")
	}
}

func TestRunResponseSnapshotIsolation(t *testing.T) {
	run := NewRun(domain.TypeCoordinatorAgent, "s1", "r1")
	run.MarkStarted()
	run.AddStep("first", "setup")

	resp := run.ToResponse()
	run.AddStep("second", "setup")

	if len(resp.Steps) != 1 {
		t.Fatalf("snapshot must not grow with later steps, got %d", len(resp.Steps))
	}
}

func TestRunAbandonedMutatorsAreNoOps(t *testing.T) {
	run := NewRun(domain.TypeQueryAgent, "s1", "r1")
	run.MarkStarted()
	run.AddStep("work", "setup")
	run.MarkTimedOut(DefaultTimeout)
	run.Abandon()

	run.AddStep("late", "setup")
	run.UpdateStep("work", domain.StepSuccess, nil, nil)
	run.SetResult("late result")
	run.SetError(domain.NewAgentError("execution_error", "late", "AGENT_EXECUTION_ERROR", nil))
	run.Finish()

	resp := run.ToResponse()
	if len(resp.Steps) != 1 {
		t.Fatalf("abandoned run accepted a step: %d", len(resp.Steps))
	}
	if resp.State != domain.StateTimeout || resp.Status != domain.StatusTimeout {
		t.Fatalf("abandoned run state changed: %s/%s", resp.State, resp.Status)
	}
	if resp.Result != nil {
		t.Fatalf("abandoned run accepted a result")
	}
	if resp.Error == nil || resp.Error.Code != "AGENT_TIMEOUT" {
		t.Fatalf("expected timeout error preserved, got %+v", resp.Error)
	}
}

func TestRunIsCompleted(t *testing.T) {
	run := NewRun(domain.TypeQueryAgent, "s1", "r1")
	if run.IsCompleted() {
		t.Fatalf("pending run must not be completed")
	}
	run.MarkStarted()
	if run.IsCompleted() {
		t.Fatalf("running run must not be completed")
	}
	run.Finish()
	if !run.IsCompleted() {
		t.Fatalf("finished run must be completed")
	}
}
