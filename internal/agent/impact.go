package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/datapilot/analyst/internal/adapter/llm"
	"github.com/datapilot/analyst/internal/domain"
)

// ImpactInput is the input to the impact analysis agent.
type ImpactInput struct {
	OriginalQuery string                  `json:"original_query"`
	SQLQuery      string                  `json:"sql_query,omitempty"`
	QueryResults  *domain.FormattedResult `json:"query_result"`
	Context       map[string]any          `json:"context,omitempty"`
}

// ImpactResult is the impact analysis agent's final payload. The three
// derived headline fields summarize the per-dimension scores.
type ImpactResult struct {
	IntentAnalysis  *llm.BusinessIntent       `json:"intent_analysis"`
	KeyMetrics      *llm.KeyMetrics           `json:"key_metrics"`
	ImpactScores    *llm.ImpactScores         `json:"impact_scores"`
	Insights        []string                  `json:"insights"`
	Recommendations []string                  `json:"recommendations"`
	Confidence      *llm.ConfidenceAssessment `json:"confidence"`

	OverallImpactScore float64   `json:"overall_impact_score"`
	RiskLevel          string    `json:"risk_level"`
	ConfidenceLevel    float64   `json:"confidence_level"`
	Timestamp          time.Time `json:"timestamp"`
}

// ImpactAnalysisAgent scores the business impact of a query's findings
// and produces insights and recommendations.
type ImpactAnalysisAgent struct {
	run     *Run
	advisor llm.Advisor
}

var _ Agent = (*ImpactAnalysisAgent)(nil)

// NewImpactAnalysisAgent creates an impact analysis agent bound to the
// given session.
func NewImpactAnalysisAgent(advisor llm.Advisor, sessionID, requestID string) *ImpactAnalysisAgent {
	return &ImpactAnalysisAgent{
		run:     NewRun(domain.TypeImpactAnalysisAgent, sessionID, requestID),
		advisor: advisor,
	}
}

// Run returns the bookkeeping run backing this agent.
func (a *ImpactAnalysisAgent) Run() *Run {
	return a.run
}

// Execute runs the full impact analysis pipeline.
func (a *ImpactAnalysisAgent) Execute(ctx context.Context, input any) *domain.AgentResponse {
	a.run.MarkStarted()

	in, ok := input.(*ImpactInput)
	if !ok || in.OriginalQuery == "" || in.QueryResults == nil {
		a.run.SetError(domain.NewAgentError(
			"invalid_input",
			"missing query or results",
			"MISSING_DATA",
			nil,
		))
		a.run.Finish()
		return a.run.ToResponse()
	}

	a.run.SetState(domain.StateAnalyzingImpact)
	result := &ImpactResult{}

	a.run.AddStep("intent_analysis", "business_intent")
	intent, err := a.advisor.AnalyzeBusinessIntent(ctx, in.OriginalQuery, in.SQLQuery, in.Context)
	if err != nil {
		return a.fail("intent_analysis", err)
	}
	result.IntentAnalysis = intent
	a.run.UpdateStep("intent_analysis", domain.StepSuccess, map[string]any{
		"business_objective": intent.BusinessObjective,
		"business_domain":    intent.BusinessDomain,
	}, nil)

	a.run.AddStep("metric_extraction", "kpi_identification")
	metrics, err := a.advisor.ExtractKeyMetrics(ctx, in.QueryResults, intent)
	if err != nil {
		return a.fail("metric_extraction", err)
	}
	result.KeyMetrics = metrics
	a.run.UpdateStep("metric_extraction", domain.StepSuccess, map[string]any{
		"primary_metrics": len(metrics.PrimaryMetrics),
	}, nil)

	a.run.AddStep("impact_calculation", "impact_scoring")
	scores, err := a.advisor.ScoreImpact(ctx, metrics, intent)
	if err != nil {
		return a.fail("impact_calculation", err)
	}
	result.ImpactScores = scores
	a.run.UpdateStep("impact_calculation", domain.StepSuccess, map[string]any{
		"overall_impact": scores.OverallImpact,
	}, nil)

	a.run.AddStep("insight_generation", "business_insights")
	insights, err := a.advisor.GenerateImpactInsights(ctx, in.QueryResults, intent, metrics)
	if err != nil {
		return a.fail("insight_generation", err)
	}
	result.Insights = insights
	a.run.UpdateStep("insight_generation", domain.StepSuccess, map[string]any{
		"insights": len(insights),
	}, nil)

	a.run.AddStep("recommendation_generation", "action_items")
	recommendations, err := a.advisor.GenerateImpactRecommendations(ctx, insights, scores)
	if err != nil {
		return a.fail("recommendation_generation", err)
	}
	result.Recommendations = recommendations
	a.run.UpdateStep("recommendation_generation", domain.StepSuccess, map[string]any{
		"recommendations": len(recommendations),
	}, nil)

	a.run.AddStep("confidence_assessment", "reliability_check")
	confidence, err := a.advisor.AssessConfidence(ctx, in.QueryResults, intent)
	if err != nil {
		return a.fail("confidence_assessment", err)
	}
	result.Confidence = confidence
	a.run.UpdateStep("confidence_assessment", domain.StepSuccess, map[string]any{
		"overall_confidence": confidence.OverallConfidence,
	}, nil)

	result.OverallImpactScore = overallImpactScore(scores)
	result.RiskLevel = riskLevel(scores)
	result.ConfidenceLevel = confidenceLevel(confidence)
	result.Timestamp = time.Now().UTC()

	a.run.SetResult(result)
	a.run.Finish()
	return a.run.ToResponse()
}

func (a *ImpactAnalysisAgent) fail(stepName string, err error) *domain.AgentResponse {
	agentErr := domain.NewAgentError(
		"execution_error",
		fmt.Sprintf("%s failed: %v", stepName, err),
		"IMPACT_ANALYSIS_ERROR",
		nil,
	)
	a.run.UpdateStep(stepName, domain.StepError, nil, agentErr)
	a.run.SetError(agentErr)
	a.run.Finish()
	return a.run.ToResponse()
}

// overallImpactScore is the mean of the four dimension scores mapped
// onto a 0-1 scale.
func overallImpactScore(scores *llm.ImpactScores) float64 {
	sum := scores.FinancialImpact.Score +
		scores.OperationalImpact.Score +
		scores.StrategicImpact.Score +
		scores.RiskImpact.Score
	return float64(sum) / 4 / 10
}

func riskLevel(scores *llm.ImpactScores) string {
	switch {
	case scores.RiskImpact.Score >= 7:
		return "high"
	case scores.RiskImpact.Score >= 4:
		return "medium"
	default:
		return "low"
	}
}

// confidenceLevel is the mean of the three reliability scores mapped
// onto a 0-1 scale.
func confidenceLevel(confidence *llm.ConfidenceAssessment) float64 {
	sum := confidence.DataQualityScore +
		confidence.SampleAdequacyScore +
		confidence.MethodologyScore
	return float64(sum) / 3 / 10
}
