package agent

import (
	"context"
	"testing"
	"time"

	"github.com/datapilot/analyst/internal/domain"
)

// fakeAgent runs the given function as its body.
type fakeAgent struct {
	run  *Run
	body func(ctx context.Context, run *Run) *domain.AgentResponse
}

func (f *fakeAgent) Run() *Run {
	return f.run
}

func (f *fakeAgent) Execute(ctx context.Context, input any) *domain.AgentResponse {
	return f.body(ctx, f.run)
}

func TestRunWithTimeoutCompletes(t *testing.T) {
	a := &fakeAgent{
		run: NewRun(domain.TypeQueryAgent, "s1", "r1"),
		body: func(ctx context.Context, run *Run) *domain.AgentResponse {
			run.MarkStarted()
			run.SetResult("done")
			run.Finish()
			return run.ToResponse()
		},
	}

	resp := RunWithTimeout(context.Background(), a, nil, time.Second)
	if !resp.IsSuccessful() {
		t.Fatalf("expected success, got %s/%+v", resp.State, resp.Error)
	}
	if resp.Result != "done" {
		t.Fatalf("unexpected result: %v", resp.Result)
	}
}

func TestRunWithTimeoutTimesOut(t *testing.T) {
	started := make(chan struct{})
	a := &fakeAgent{
		run: NewRun(domain.TypeQueryAgent, "s1", "r1"),
		body: func(ctx context.Context, run *Run) *domain.AgentResponse {
			run.MarkStarted()
			close(started)
			<-ctx.Done()
			time.Sleep(50 * time.Millisecond)
			run.SetResult("too late")
			run.Finish()
			return run.ToResponse()
		},
	}

	resp := RunWithTimeout(context.Background(), a, nil, 20*time.Millisecond)
	<-started

	if resp.State != domain.StateTimeout {
		t.Fatalf("expected timeout state, got %s", resp.State)
	}
	if resp.Status != domain.StatusTimeout {
		t.Fatalf("expected timeout status, got %s", resp.Status)
	}
	if resp.Error == nil || resp.Error.Code != "AGENT_TIMEOUT" {
		t.Fatalf("expected AGENT_TIMEOUT error, got %+v", resp.Error)
	}
	if resp.Result != nil {
		t.Fatalf("timed out run must not carry a result")
	}

	// Give the abandoned worker time to finish; its writes must not
	// leak into the run.
	time.Sleep(100 * time.Millisecond)
	late := a.run.ToResponse()
	if late.State != domain.StateTimeout || late.Result != nil {
		t.Fatalf("abandoned worker corrupted the run: %s/%v", late.State, late.Result)
	}
}

func TestRunWithTimeoutRecoversPanic(t *testing.T) {
	a := &fakeAgent{
		run: NewRun(domain.TypeQueryAgent, "s1", "r1"),
		body: func(ctx context.Context, run *Run) *domain.AgentResponse {
			run.MarkStarted()
			panic("boom")
		},
	}

	resp := RunWithTimeout(context.Background(), a, nil, time.Second)
	if resp.State != domain.StateError {
		t.Fatalf("expected error state, got %s", resp.State)
	}
	if resp.Error == nil || resp.Error.Code != "AGENT_EXECUTION_ERROR" {
		t.Fatalf("expected AGENT_EXECUTION_ERROR, got %+v", resp.Error)
	}
	if resp.Error.Context["exception_type"] != "string" {
		t.Fatalf("expected the fault type in the error context, got %v", resp.Error.Context)
	}
}

func TestRunWithTimeoutDefaultsTimeout(t *testing.T) {
	a := &fakeAgent{
		run: NewRun(domain.TypeQueryAgent, "s1", "r1"),
		body: func(ctx context.Context, run *Run) *domain.AgentResponse {
			deadline, ok := ctx.Deadline()
			if !ok {
				t.Errorf("expected a deadline on the context")
			}
			if remaining := time.Until(deadline); remaining > DefaultTimeout {
				t.Errorf("deadline beyond default timeout: %s", remaining)
			}
			run.MarkStarted()
			run.Finish()
			return run.ToResponse()
		},
	}

	RunWithTimeout(context.Background(), a, nil, 0)
}
