package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/datapilot/analyst/internal/adapter/llm"
	"github.com/datapilot/analyst/internal/adapter/warehouse"
	"github.com/datapilot/analyst/internal/domain"
	"github.com/datapilot/analyst/internal/session"
)

// CoordinatorInput is the input to the coordinator agent.
type CoordinatorInput struct {
	Query                string         `json:"query"`
	Context              map[string]any `json:"context,omitempty"`
	EnableOptimization   bool           `json:"enable_optimization"`
	EnableImpactAnalysis bool           `json:"enable_impact_analysis"`
}

// StageTimeouts bounds each sub-agent execution. Zero values fall back
// to DefaultTimeout.
type StageTimeouts struct {
	Query        time.Duration
	Optimization time.Duration
	Impact       time.Duration
}

// SynthesisConfig tunes how the merged user response is rendered.
type SynthesisConfig struct {
	CostSavingsThresholdPercent float64
	ImpactScoreThreshold        float64
	MaxRecommendations          int
}

// DefaultSynthesisConfig returns the standard rendering thresholds.
func DefaultSynthesisConfig() SynthesisConfig {
	return SynthesisConfig{
		CostSavingsThresholdPercent: 10,
		ImpactScoreThreshold:        0.5,
		MaxRecommendations:          3,
	}
}

// Deps carries everything the coordinator needs to drive a workflow.
type Deps struct {
	Advisor   llm.Advisor
	Warehouse warehouse.Executor
	Policy    PolicyGate
	Sessions  *session.Manager
	Timeouts  StageTimeouts
	Synthesis SynthesisConfig
	MaxRows   int
}

// WorkflowConfig records which stages a workflow will run.
type WorkflowConfig struct {
	WorkflowID    string          `json:"workflow_id"`
	SessionID     string          `json:"session_id"`
	RequestID     string          `json:"request_id"`
	AgentsEnabled map[string]bool `json:"agents_enabled"`
	ExecutionPlan []string        `json:"execution_plan"`
	CreatedAt     time.Time       `json:"created_at"`
}

// StageSummary records how one sub-agent fared.
type StageSummary struct {
	AgentID    string  `json:"agent_id,omitempty"`
	Status     string  `json:"status"`
	DurationMs float64 `json:"duration_ms,omitempty"`
}

// CoordinatorResult is the coordinator agent's final payload.
type CoordinatorResult struct {
	Workflow           *WorkflowConfig           `json:"workflow_config"`
	QueryResult        *QueryAgentResult         `json:"query_result,omitempty"`
	OptimizationResult *OptimizationResult       `json:"optimization_result,omitempty"`
	ImpactResult       *ImpactResult             `json:"impact_result,omitempty"`
	Synthesized        *domain.SynthesizedResult `json:"synthesized_result"`
	ExecutionSummary   map[string]StageSummary   `json:"agent_execution_summary"`
}

// CoordinatorAgent orchestrates the query, optimization and impact
// analysis agents for one request and synthesizes their results. The
// query stage is mandatory; the optional stages fail soft.
type CoordinatorAgent struct {
	run  *Run
	deps Deps
}

var _ Agent = (*CoordinatorAgent)(nil)

// NewCoordinatorAgent creates a coordinator bound to the given session.
func NewCoordinatorAgent(deps Deps, sessionID, requestID string) *CoordinatorAgent {
	if deps.Synthesis == (SynthesisConfig{}) {
		deps.Synthesis = DefaultSynthesisConfig()
	}
	return &CoordinatorAgent{
		run:  NewRun(domain.TypeCoordinatorAgent, sessionID, requestID),
		deps: deps,
	}
}

// Run returns the bookkeeping run backing this agent.
func (a *CoordinatorAgent) Run() *Run {
	return a.run
}

// Execute drives the full workflow.
func (a *CoordinatorAgent) Execute(ctx context.Context, input any) *domain.AgentResponse {
	a.run.MarkStarted()

	in, ok := input.(*CoordinatorInput)
	if !ok || strings.TrimSpace(in.Query) == "" {
		a.run.SetError(domain.NewAgentError(
			"invalid_input",
			"no query provided",
			"MISSING_QUERY",
			nil,
		))
		a.run.Finish()
		return a.run.ToResponse()
	}

	a.run.AddStep("workflow_initialization", "coordination_setup")
	workflow := a.initializeWorkflow(in)
	a.run.UpdateStep("workflow_initialization", domain.StepSuccess, map[string]any{
		"workflow_id":    workflow.WorkflowID,
		"execution_plan": workflow.ExecutionPlan,
	}, nil)

	result := &CoordinatorResult{
		Workflow:         workflow,
		ExecutionSummary: map[string]StageSummary{},
	}

	// Mandatory query stage. A failure here aborts the workflow.
	a.run.AddStep("query_execution", "agent_orchestration")
	queryAgent := NewQueryAgent(a.deps.Advisor, a.deps.Warehouse, a.deps.Policy, a.deps.Sessions, a.run.SessionID(), a.run.requestID, a.deps.MaxRows)
	queryResp := RunWithTimeout(ctx, queryAgent, &QueryInput{Query: in.Query, Context: in.Context}, a.deps.Timeouts.Query)
	result.ExecutionSummary["query_agent"] = stageSummary(queryResp)

	if !queryResp.IsSuccessful() {
		a.run.UpdateStep("query_execution", domain.StepError, nil, queryResp.Error)
		a.run.SetError(domain.NewAgentError(
			"query_agent_failed",
			"query agent execution failed",
			"QUERY_AGENT_ERROR",
			map[string]any{"query_agent_id": queryResp.AgentID},
		))
		a.run.Finish()
		return a.run.ToResponse()
	}
	queryResult, _ := queryResp.Result.(*QueryAgentResult)
	result.QueryResult = queryResult
	a.run.UpdateStep("query_execution", domain.StepSuccess, map[string]any{
		"query_agent_id": queryResp.AgentID,
	}, nil)

	// Optional optimization stage. A failure leaves a warning step and
	// a nil result; the workflow continues.
	var optimizationResp *domain.AgentResponse
	if in.EnableOptimization {
		a.run.AddStep("optimization_execution", "agent_orchestration")
		optimizationResp = a.runOptimization(ctx, queryResult, in)
		result.ExecutionSummary["optimization_agent"] = stageSummary(optimizationResp)
		if optimizationResp.IsSuccessful() {
			result.OptimizationResult, _ = optimizationResp.Result.(*OptimizationResult)
			a.run.UpdateStep("optimization_execution", domain.StepSuccess, map[string]any{
				"optimization_agent_id": optimizationResp.AgentID,
			}, nil)
		} else {
			a.run.UpdateStep("optimization_execution", domain.StepWarning, map[string]any{
				"message": "optimization agent failed or disabled",
			}, nil)
		}
	} else {
		result.ExecutionSummary["optimization_agent"] = StageSummary{Status: "not_executed"}
	}

	// Optional impact analysis stage, same fail-soft rule.
	var impactResp *domain.AgentResponse
	if in.EnableImpactAnalysis {
		a.run.AddStep("impact_analysis_execution", "agent_orchestration")
		impactResp = a.runImpactAnalysis(ctx, queryResult, in)
		result.ExecutionSummary["impact_analysis_agent"] = stageSummary(impactResp)
		if impactResp.IsSuccessful() {
			result.ImpactResult, _ = impactResp.Result.(*ImpactResult)
			a.run.UpdateStep("impact_analysis_execution", domain.StepSuccess, map[string]any{
				"impact_agent_id": impactResp.AgentID,
			}, nil)
		} else {
			a.run.UpdateStep("impact_analysis_execution", domain.StepWarning, map[string]any{
				"message": "impact analysis agent failed or disabled",
			}, nil)
		}
	} else {
		result.ExecutionSummary["impact_analysis_agent"] = StageSummary{Status: "not_executed"}
	}

	a.run.AddStep("result_synthesis", "coordination_synthesis")
	synthesized := a.synthesize(queryResp, result.QueryResult, optimizationResp, result.OptimizationResult, impactResp, result.ImpactResult)
	result.Synthesized = synthesized
	a.run.UpdateStep("result_synthesis", domain.StepSuccess, map[string]any{
		"execution_success_rate": synthesized.Metadata.ExecutionSuccessRate,
	}, nil)

	a.run.AddStep("session_update", "context_management")
	a.updateSessionContext(synthesized)
	a.run.UpdateStep("session_update", domain.StepSuccess, nil, nil)

	a.run.SetResult(result)
	a.run.Finish()
	return a.run.ToResponse()
}

func (a *CoordinatorAgent) initializeWorkflow(in *CoordinatorInput) *WorkflowConfig {
	plan := []string{string(domain.TypeQueryAgent)}
	if in.EnableOptimization {
		plan = append(plan, string(domain.TypeOptimizationAgent))
	}
	if in.EnableImpactAnalysis {
		plan = append(plan, string(domain.TypeImpactAnalysisAgent))
	}
	return &WorkflowConfig{
		WorkflowID: "workflow_" + a.run.AgentID(),
		SessionID:  a.run.SessionID(),
		RequestID:  a.run.requestID,
		AgentsEnabled: map[string]bool{
			string(domain.TypeQueryAgent):          true,
			string(domain.TypeOptimizationAgent):   in.EnableOptimization,
			string(domain.TypeImpactAnalysisAgent): in.EnableImpactAnalysis,
		},
		ExecutionPlan: plan,
		CreatedAt:     time.Now().UTC(),
	}
}

func (a *CoordinatorAgent) runOptimization(ctx context.Context, queryResult *QueryAgentResult, in *CoordinatorInput) *domain.AgentResponse {
	agent := NewOptimizationAgent(a.deps.Warehouse, a.run.SessionID(), a.run.requestID)
	return RunWithTimeout(ctx, agent, &OptimizationInput{
		SQLQuery:      queryResult.SQLQuery,
		OriginalQuery: queryResult.OriginalQuery,
		Context:       in.Context,
	}, a.deps.Timeouts.Optimization)
}

func (a *CoordinatorAgent) runImpactAnalysis(ctx context.Context, queryResult *QueryAgentResult, in *CoordinatorInput) *domain.AgentResponse {
	agent := NewImpactAnalysisAgent(a.deps.Advisor, a.run.SessionID(), a.run.requestID)
	return RunWithTimeout(ctx, agent, &ImpactInput{
		OriginalQuery: queryResult.OriginalQuery,
		SQLQuery:      queryResult.SQLQuery,
		QueryResults:  queryResult.Formatted,
		Context:       in.Context,
	}, a.deps.Timeouts.Impact)
}

// synthesize merges the stage results into one user-facing answer. The
// success rate counts only stages that were actually attempted.
func (a *CoordinatorAgent) synthesize(
	queryResp *domain.AgentResponse, queryResult *QueryAgentResult,
	optimizationResp *domain.AgentResponse, optimizationResult *OptimizationResult,
	impactResp *domain.AgentResponse, impactResult *ImpactResult,
) *domain.SynthesizedResult {
	synthesized := &domain.SynthesizedResult{
		Recommendations: []domain.Recommendation{},
		Insights:        []string{},
		Metadata: domain.SynthesisMetadata{
			TotalAgentsExecuted: 1,
			SynthesisTimestamp:  time.Now().UTC(),
		},
	}

	if queryResult != nil {
		var preview []map[string]any
		rowCount := 0
		executionTime := 0.0
		if queryResult.Formatted != nil {
			preview = queryResult.Formatted.Data
			if len(preview) > 5 {
				preview = preview[:5]
			}
			rowCount = queryResult.Formatted.RowCount
			executionTime = queryResult.Formatted.ExecutionTimeMs
		}
		synthesized.QuerySummary = &domain.QuerySummary{
			SQLQuery:        queryResult.SQLQuery,
			DataPreview:     preview,
			RowCount:        rowCount,
			ExecutionTimeMs: executionTime,
		}
		if queryResult.Formatted != nil {
			synthesized.UserResponse = queryResult.Formatted.Summary
		}
	}

	if optimizationResult != nil {
		savings := 0.0
		if optimizationResult.PerformanceComparison != nil {
			savings = optimizationResult.PerformanceComparison.CostSavingsPercent
		}
		synthesized.OptimizationSummary = &domain.OptimizationSummary{
			OptimizedSQL:       optimizationResult.OptimizedSQL,
			CostSavingsPercent: savings,
			Recommendations:    optimizationResult.Recommendations,
		}
		synthesized.Metadata.TotalAgentsExecuted++
		synthesized.Recommendations = appendRecommendations(synthesized.Recommendations, optimizationResult.Recommendations...)
	}

	if impactResult != nil {
		synthesized.ImpactSummary = &domain.ImpactSummary{
			OverallImpactScore: impactResult.OverallImpactScore,
			RiskLevel:          impactResult.RiskLevel,
			ConfidenceLevel:    impactResult.ConfidenceLevel,
		}
		synthesized.Metadata.TotalAgentsExecuted++
		synthesized.Insights = append(synthesized.Insights, impactResult.Insights...)
		for _, rec := range impactResult.Recommendations {
			synthesized.Recommendations = appendRecommendations(synthesized.Recommendations, domain.Recommendation{
				Source:      "impact_analysis",
				Description: rec,
			})
		}
	}

	attempted, successful := 1, 0
	if queryResp.IsSuccessful() {
		successful++
	}
	if optimizationResp != nil {
		attempted++
		if optimizationResp.IsSuccessful() {
			successful++
		}
	}
	if impactResp != nil {
		attempted++
		if impactResp.IsSuccessful() {
			successful++
		}
	}
	synthesized.Metadata.ExecutionSuccessRate = float64(successful) / float64(attempted)

	synthesized.UserResponse = a.renderResponse(synthesized)
	return synthesized
}

// renderResponse builds the final prose answer from the synthesized
// parts, applying the configured thresholds.
func (a *CoordinatorAgent) renderResponse(synthesized *domain.SynthesizedResult) string {
	var parts []string

	if synthesized.UserResponse != "" {
		parts = append(parts, synthesized.UserResponse)
	}

	if s := synthesized.OptimizationSummary; s != nil && s.CostSavingsPercent > a.deps.Synthesis.CostSavingsThresholdPercent {
		parts = append(parts, fmt.Sprintf("Query optimization could save %.1f%% in costs.", s.CostSavingsPercent))
	}

	if s := synthesized.ImpactSummary; s != nil && s.OverallImpactScore > a.deps.Synthesis.ImpactScoreThreshold {
		parts = append(parts, fmt.Sprintf("This query has a %g%% business impact score.", s.OverallImpactScore*100))
	}

	if len(synthesized.Recommendations) > 0 {
		parts = append(parts, "Key recommendations:")
		limit := a.deps.Synthesis.MaxRecommendations
		for i, rec := range synthesized.Recommendations {
			if limit > 0 && i >= limit {
				break
			}
			parts = append(parts, fmt.Sprintf("%d. %s", i+1, rec.Description))
		}
	}

	if len(parts) == 0 {
		return "Analysis completed successfully."
	}
	return strings.Join(parts, " ")
}

// updateSessionContext persists the workflow outcome onto the session.
// Best effort: a missing session is logged, not fatal.
func (a *CoordinatorAgent) updateSessionContext(synthesized *domain.SynthesizedResult) {
	if a.deps.Sessions == nil || a.run.Abandoned() {
		return
	}
	sessionID := a.run.SessionID()

	if synthesized.QuerySummary != nil {
		if !a.deps.Sessions.SetVariable(sessionID, "last_query_results", synthesized.QuerySummary) {
			log.Printf("WARN: failed to update session %s with query results", sessionID)
		}
	}
	if len(synthesized.Recommendations) > 0 {
		if !a.deps.Sessions.SetVariable(sessionID, "pending_recommendations", synthesized.Recommendations) {
			log.Printf("WARN: failed to update session %s with recommendations", sessionID)
		}
	}
	if len(synthesized.Insights) > 0 {
		if !a.deps.Sessions.SetVariable(sessionID, "recent_insights", synthesized.Insights) {
			log.Printf("WARN: failed to update session %s with insights", sessionID)
		}
	}
}

// appendRecommendations appends recs, dropping any whose description is
// already present.
func appendRecommendations(existing []domain.Recommendation, recs ...domain.Recommendation) []domain.Recommendation {
	for _, rec := range recs {
		duplicate := false
		for _, have := range existing {
			if have.Description == rec.Description {
				duplicate = true
				break
			}
		}
		if !duplicate {
			existing = append(existing, rec)
		}
	}
	return existing
}

func stageSummary(resp *domain.AgentResponse) StageSummary {
	if resp == nil {
		return StageSummary{Status: "not_executed"}
	}
	return StageSummary{
		AgentID:    resp.AgentID,
		Status:     string(resp.State),
		DurationMs: resp.TotalDurationMs,
	}
}
