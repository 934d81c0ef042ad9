package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/datapilot/analyst/internal/adapter/llm"
	"github.com/datapilot/analyst/internal/adapter/warehouse"
	"github.com/datapilot/analyst/internal/domain"
	"github.com/datapilot/analyst/internal/session"
)

func newTestDeps(exec warehouse.Executor, advisor llm.Advisor) (Deps, string) {
	sessions := session.NewManager(0)
	sessionID := sessions.Create("", "u1")
	if exec == nil {
		exec = warehouse.NewMockExecutor()
	}
	if advisor == nil {
		advisor = llm.NewMockAdvisor()
	}
	return Deps{
		Advisor:   advisor,
		Warehouse: exec,
		Policy:    &stubPolicy{},
		Sessions:  sessions,
		Synthesis: DefaultSynthesisConfig(),
		MaxRows:   100,
	}, sessionID
}

// savingsExecutor prices statements so the optimized rewrite shows the
// given savings percentage.
func savingsExecutor(savingsPercent float64) *warehouse.MockExecutor {
	exec := warehouse.NewMockExecutor()
	exec.ValidateQueryFn = func(ctx context.Context, sql string) (*domain.QueryValidation, error) {
		cost := 1.0
		if strings.Contains(sql, "LIMIT") {
			cost = 1.0 - savingsPercent/100
		}
		return &domain.QueryValidation{
			Valid:               true,
			TotalBytesProcessed: 1 << 20,
			TotalBytesBilled:    1 << 20,
			EstimatedCostUSD:    cost,
		}, nil
	}
	return exec
}

func TestCoordinatorMissingQuery(t *testing.T) {
	deps, sessionID := newTestDeps(nil, nil)
	a := NewCoordinatorAgent(deps, sessionID, "r1")

	resp := a.Execute(context.Background(), &CoordinatorInput{Query: ""})
	assert.Equal(t, domain.StateError, resp.State)
	assert.Equal(t, "MISSING_QUERY", resp.Error.Code)
	assert.Empty(t, resp.Steps, "no sub-agents should be spawned")
}

func TestCoordinatorFullWorkflow(t *testing.T) {
	deps, sessionID := newTestDeps(savingsExecutor(15.5), nil)
	a := NewCoordinatorAgent(deps, sessionID, "r1")

	resp := a.Execute(context.Background(), &CoordinatorInput{
		Query:                "how is revenue trending",
		EnableOptimization:   true,
		EnableImpactAnalysis: true,
	})
	if !resp.IsSuccessful() {
		t.Fatalf("expected success, got %+v", resp.Error)
	}

	result := resp.Result.(*CoordinatorResult)
	assert.NotNil(t, result.QueryResult)
	assert.NotNil(t, result.OptimizationResult)
	assert.NotNil(t, result.ImpactResult)
	assert.Equal(t, []string{"query_agent", "optimization_agent", "impact_analysis_agent"}, result.Workflow.ExecutionPlan)
	assert.Equal(t, "workflow_"+resp.AgentID, result.Workflow.WorkflowID)

	synthesized := result.Synthesized
	assert.Equal(t, 3, synthesized.Metadata.TotalAgentsExecuted)
	assert.InDelta(t, 1.0, synthesized.Metadata.ExecutionSuccessRate, 0.001)

	// Cost savings above threshold appear in the rendered answer.
	assert.Contains(t, synthesized.UserResponse, "Query optimization could save 15.5% in costs.")
	// Default mock impact score 0.625 is above the 0.5 threshold.
	assert.Contains(t, synthesized.UserResponse, "62.5% business impact score")
	assert.Contains(t, synthesized.UserResponse, "Key recommendations:")
	assert.Contains(t, synthesized.UserResponse, "1. ")

	// Execution summary covers every stage.
	for _, stage := range []string{"query_agent", "optimization_agent", "impact_analysis_agent"} {
		summary, ok := result.ExecutionSummary[stage]
		if !ok {
			t.Fatalf("missing execution summary for %s", stage)
		}
		assert.Equal(t, string(domain.StateCompleted), summary.Status)
	}

	// Session context carries the workflow outcome.
	if _, ok := deps.Sessions.GetVariable(sessionID, "last_query_results"); !ok {
		t.Fatalf("expected last_query_results on session")
	}
	if _, ok := deps.Sessions.GetVariable(sessionID, "pending_recommendations"); !ok {
		t.Fatalf("expected pending_recommendations on session")
	}
	if _, ok := deps.Sessions.GetVariable(sessionID, "recent_insights"); !ok {
		t.Fatalf("expected recent_insights on session")
	}
}

func TestCoordinatorQueryFailureIsFatal(t *testing.T) {
	advisor := llm.NewMockAdvisor()
	advisor.GenerateSQLQueryFn = func(ctx context.Context, query string, schema *domain.SchemaInfo, analysis *llm.IntentAnalysis) (string, error) {
		return "", errors.New("model unavailable")
	}
	deps, sessionID := newTestDeps(nil, advisor)
	a := NewCoordinatorAgent(deps, sessionID, "r1")

	resp := a.Execute(context.Background(), &CoordinatorInput{
		Query:                "how is revenue trending",
		EnableOptimization:   true,
		EnableImpactAnalysis: true,
	})
	assert.Equal(t, domain.StateError, resp.State)
	assert.Equal(t, "QUERY_AGENT_ERROR", resp.Error.Code)
	assert.Equal(t, "query_agent_failed", resp.Error.Type)

	// Optional stages never ran.
	if _, ok := a.Run().StepByName("optimization_execution"); ok {
		t.Fatalf("optimization must not run after query failure")
	}
	if _, ok := a.Run().StepByName("impact_analysis_execution"); ok {
		t.Fatalf("impact analysis must not run after query failure")
	}
}

func TestCoordinatorOptimizationFailureIsSoft(t *testing.T) {
	exec := warehouse.NewMockExecutor()
	validateCalls := 0
	exec.ValidateQueryFn = func(ctx context.Context, sql string) (*domain.QueryValidation, error) {
		validateCalls++
		if validateCalls > 1 {
			// First call is the query agent's validation; later calls
			// belong to the optimization agent.
			return nil, errors.New("warehouse unavailable")
		}
		return &domain.QueryValidation{Valid: true, EstimatedCostUSD: 0.01}, nil
	}
	deps, sessionID := newTestDeps(exec, nil)
	a := NewCoordinatorAgent(deps, sessionID, "r1")

	resp := a.Execute(context.Background(), &CoordinatorInput{
		Query:                "how is revenue trending",
		EnableOptimization:   true,
		EnableImpactAnalysis: true,
	})
	if !resp.IsSuccessful() {
		t.Fatalf("workflow should complete despite optimization failure, got %+v", resp.Error)
	}

	result := resp.Result.(*CoordinatorResult)
	assert.Nil(t, result.OptimizationResult)
	assert.NotNil(t, result.ImpactResult)

	step, ok := a.Run().StepByName("optimization_execution")
	if !ok {
		t.Fatalf("optimization_execution step missing")
	}
	assert.Equal(t, domain.StepWarning, step.Status)

	// Two of three attempted stages succeeded.
	assert.InDelta(t, 2.0/3.0, result.Synthesized.Metadata.ExecutionSuccessRate, 0.001)
}

func TestCoordinatorOptionalStagesDisabled(t *testing.T) {
	deps, sessionID := newTestDeps(nil, nil)
	a := NewCoordinatorAgent(deps, sessionID, "r1")

	resp := a.Execute(context.Background(), &CoordinatorInput{Query: "how is revenue trending"})
	if !resp.IsSuccessful() {
		t.Fatalf("expected success, got %+v", resp.Error)
	}

	result := resp.Result.(*CoordinatorResult)
	assert.Equal(t, "not_executed", result.ExecutionSummary["optimization_agent"].Status)
	assert.Equal(t, "not_executed", result.ExecutionSummary["impact_analysis_agent"].Status)
	assert.Equal(t, 1, result.Synthesized.Metadata.TotalAgentsExecuted)
	assert.InDelta(t, 1.0, result.Synthesized.Metadata.ExecutionSuccessRate, 0.001)
	assert.Nil(t, result.Synthesized.OptimizationSummary)
	assert.Nil(t, result.Synthesized.ImpactSummary)
}

func TestRenderResponseFallback(t *testing.T) {
	deps, sessionID := newTestDeps(nil, nil)
	a := NewCoordinatorAgent(deps, sessionID, "r1")

	got := a.renderResponse(&domain.SynthesizedResult{})
	assert.Equal(t, "Analysis completed successfully.", got)
}
