package domain

import "time"

// Recommendation is a normalized action item surfaced to the user.
// Source names the stage that produced it.
type Recommendation struct {
	Source      string `json:"source"`
	Type        string `json:"type,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Description string `json:"description"`
	Impact      string `json:"impact,omitempty"`
	Action      string `json:"action,omitempty"`
}

// QuerySummary condenses the query stage for the synthesized result.
type QuerySummary struct {
	SQLQuery        string           `json:"sql_query"`
	DataPreview     []map[string]any `json:"data_preview"`
	RowCount        int              `json:"row_count"`
	ExecutionTimeMs float64          `json:"execution_time_ms"`
}

// OptimizationSummary condenses the optimization stage.
type OptimizationSummary struct {
	OptimizedSQL       string           `json:"optimized_sql"`
	CostSavingsPercent float64          `json:"cost_savings_percent"`
	Recommendations    []Recommendation `json:"recommendations"`
}

// ImpactSummary condenses the impact analysis stage.
type ImpactSummary struct {
	OverallImpactScore float64 `json:"overall_impact_score"`
	RiskLevel          string  `json:"risk_level"`
	ConfidenceLevel    float64 `json:"confidence_level"`
}

// SynthesisMetadata carries bookkeeping about the merge.
type SynthesisMetadata struct {
	TotalAgentsExecuted  int       `json:"total_agents_executed"`
	ExecutionSuccessRate float64   `json:"execution_success_rate"`
	SynthesisTimestamp   time.Time `json:"synthesis_timestamp"`
}

// SynthesizedResult is the coordinator's merge of all stage results into
// one user-facing answer plus structured summaries.
type SynthesizedResult struct {
	UserResponse        string               `json:"user_response"`
	QuerySummary        *QuerySummary        `json:"query_summary,omitempty"`
	OptimizationSummary *OptimizationSummary `json:"optimization_summary,omitempty"`
	ImpactSummary       *ImpactSummary       `json:"impact_summary,omitempty"`
	Recommendations     []Recommendation     `json:"recommendations"`
	Insights            []string             `json:"insights"`
	Metadata            SynthesisMetadata    `json:"metadata"`
}
