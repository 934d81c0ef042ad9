package agent

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/datapilot/analyst/internal/adapter/warehouse"
	"github.com/datapilot/analyst/internal/domain"
)

// OptimizationInput is the input to the optimization agent.
type OptimizationInput struct {
	SQLQuery      string         `json:"sql_query"`
	OriginalQuery string         `json:"original_query,omitempty"`
	Context       map[string]any `json:"context,omitempty"`
}

// QueryStructure is the static analysis of a SQL statement.
type QueryStructure struct {
	QueryType       string   `json:"query_type"`
	ComplexityScore int      `json:"complexity_score"`
	Joins           []string `json:"joins"`
	Aggregations    []string `json:"aggregations"`
	GroupBy         bool     `json:"group_by"`
	OrderBy         bool     `json:"order_by"`
	Limit           *int     `json:"limit,omitempty"`
	Subqueries      int      `json:"subqueries"`
	CTEs            int      `json:"ctes"`
	HasWhere        bool     `json:"has_where"`
}

// CostAnalysis is the dry-run cost estimate for a statement.
type CostAnalysis struct {
	BytesProcessed   int64   `json:"bytes_processed"`
	BytesBilled      int64   `json:"bytes_billed"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
	CostCategory     string  `json:"cost_category"`
	EfficiencyScore  float64 `json:"efficiency_score"`
}

// Opportunity is one identified optimization opening.
type Opportunity struct {
	Type           string `json:"type"`
	Priority       string `json:"priority"`
	Description    string `json:"description"`
	Impact         string `json:"impact"`
	Recommendation string `json:"recommendation"`
}

// PerformanceComparison compares the original and rewritten statements.
type PerformanceComparison struct {
	OriginalCostUSD     float64 `json:"original_cost_usd"`
	OptimizedCostUSD    float64 `json:"optimized_cost_usd"`
	CostSavingsPercent  float64 `json:"cost_savings_percent"`
	BytesSaved          int64   `json:"bytes_saved"`
	ImprovementCategory string  `json:"improvement_category"`
}

// OptimizationResult is the optimization agent's final payload.
type OptimizationResult struct {
	OriginalQuery         string                  `json:"original_query"`
	OriginalSQL           string                  `json:"original_sql"`
	OptimizedSQL          string                  `json:"optimized_sql"`
	QueryStructure        *QueryStructure         `json:"query_analysis"`
	CostAnalysis          *CostAnalysis           `json:"cost_analysis"`
	Opportunities         []Opportunity           `json:"optimization_opportunities"`
	PerformanceComparison *PerformanceComparison  `json:"performance_comparison"`
	Recommendations       []domain.Recommendation `json:"recommendations"`
}

// OptimizationAgent analyzes a SQL statement for cost and structure and
// proposes a cheaper rewrite. Warehouse failures abort the run.
type OptimizationAgent struct {
	run  *Run
	exec warehouse.Executor
}

var _ Agent = (*OptimizationAgent)(nil)

// NewOptimizationAgent creates an optimization agent bound to the given
// session.
func NewOptimizationAgent(exec warehouse.Executor, sessionID, requestID string) *OptimizationAgent {
	return &OptimizationAgent{
		run:  NewRun(domain.TypeOptimizationAgent, sessionID, requestID),
		exec: exec,
	}
}

// Run returns the bookkeeping run backing this agent.
func (a *OptimizationAgent) Run() *Run {
	return a.run
}

// Execute runs the full optimization pipeline.
func (a *OptimizationAgent) Execute(ctx context.Context, input any) *domain.AgentResponse {
	a.run.MarkStarted()

	in, ok := input.(*OptimizationInput)
	if !ok || strings.TrimSpace(in.SQLQuery) == "" {
		a.run.SetError(domain.NewAgentError(
			"invalid_input",
			"no SQL query provided",
			"MISSING_SQL_QUERY",
			nil,
		))
		a.run.Finish()
		return a.run.ToResponse()
	}

	result := &OptimizationResult{
		OriginalQuery: in.OriginalQuery,
		OriginalSQL:   in.SQLQuery,
	}

	a.run.AddStep("query_analysis", "sql_analysis")
	structure := analyzeQueryStructure(in.SQLQuery)
	result.QueryStructure = structure
	a.run.UpdateStep("query_analysis", domain.StepSuccess, map[string]any{
		"query_type":       structure.QueryType,
		"complexity_score": structure.ComplexityScore,
	}, nil)

	a.run.AddStep("cost_estimation", "cost_analysis")
	costAnalysis, err := a.estimateCost(ctx, in.SQLQuery)
	if err != nil {
		return a.fail("cost_estimation", domain.NewAgentError(
			"query_execution_error",
			fmt.Sprintf("cost estimation failed: %v", err),
			"COST_ESTIMATION_FAILED",
			nil,
		))
	}
	result.CostAnalysis = costAnalysis
	a.run.UpdateStep("cost_estimation", domain.StepSuccess, map[string]any{
		"estimated_cost_usd": costAnalysis.EstimatedCostUSD,
		"cost_category":      costAnalysis.CostCategory,
	}, nil)

	a.run.AddStep("optimization_identification", "pattern_analysis")
	opportunities := identifyOpportunities(in.SQLQuery, structure)
	result.Opportunities = opportunities
	a.run.UpdateStep("optimization_identification", domain.StepSuccess, map[string]any{
		"opportunities": len(opportunities),
	}, nil)

	a.run.AddStep("query_optimization", "sql_optimization")
	optimizedSQL := rewriteQuery(in.SQLQuery, opportunities)
	result.OptimizedSQL = optimizedSQL
	a.run.UpdateStep("query_optimization", domain.StepSuccess, map[string]any{
		"optimized_sql": optimizedSQL,
	}, nil)

	a.run.AddStep("performance_comparison", "benchmark_analysis")
	comparison, err := a.comparePerformance(ctx, costAnalysis, optimizedSQL)
	if err != nil {
		return a.fail("performance_comparison", domain.NewAgentError(
			"query_execution_error",
			fmt.Sprintf("performance comparison failed: %v", err),
			"PERFORMANCE_COMPARISON_FAILED",
			nil,
		))
	}
	result.PerformanceComparison = comparison
	a.run.UpdateStep("performance_comparison", domain.StepSuccess, map[string]any{
		"cost_savings_percent": comparison.CostSavingsPercent,
	}, nil)

	a.run.AddStep("recommendation_generation", "insight_generation")
	result.Recommendations = buildRecommendations(structure, costAnalysis, opportunities, comparison)
	a.run.UpdateStep("recommendation_generation", domain.StepSuccess, map[string]any{
		"recommendations": len(result.Recommendations),
	}, nil)

	a.run.SetResult(result)
	a.run.Finish()
	return a.run.ToResponse()
}

func (a *OptimizationAgent) fail(stepName string, agentErr *domain.AgentError) *domain.AgentResponse {
	a.run.UpdateStep(stepName, domain.StepError, nil, agentErr)
	a.run.SetError(agentErr)
	a.run.Finish()
	return a.run.ToResponse()
}

func (a *OptimizationAgent) estimateCost(ctx context.Context, sql string) (*CostAnalysis, error) {
	validation, err := a.exec.ValidateQuery(ctx, sql)
	if err != nil {
		return nil, err
	}
	if !validation.Valid {
		return nil, fmt.Errorf("query is not valid: %s", validation.Error)
	}
	return &CostAnalysis{
		BytesProcessed:   validation.TotalBytesProcessed,
		BytesBilled:      validation.TotalBytesBilled,
		EstimatedCostUSD: validation.EstimatedCostUSD,
		CostCategory:     categorizeCost(validation.EstimatedCostUSD),
		EfficiencyScore:  efficiencyScore(validation.TotalBytesProcessed, validation.TotalBytesBilled),
	}, nil
}

func (a *OptimizationAgent) comparePerformance(ctx context.Context, original *CostAnalysis, optimizedSQL string) (*PerformanceComparison, error) {
	optimized, err := a.estimateCost(ctx, optimizedSQL)
	if err != nil {
		return nil, err
	}

	savings := 0.0
	if original.EstimatedCostUSD > 0 {
		savings = (original.EstimatedCostUSD - optimized.EstimatedCostUSD) / original.EstimatedCostUSD * 100
	}

	return &PerformanceComparison{
		OriginalCostUSD:     original.EstimatedCostUSD,
		OptimizedCostUSD:    optimized.EstimatedCostUSD,
		CostSavingsPercent:  savings,
		BytesSaved:          original.BytesProcessed - optimized.BytesProcessed,
		ImprovementCategory: categorizeImprovement(savings),
	}, nil
}

var (
	joinPattern  = regexp.MustCompile(`JOIN\s+(\w+)`)
	limitPattern = regexp.MustCompile(`LIMIT\s+(\d+)`)
)

// analyzeQueryStructure inspects a statement for complexity drivers.
func analyzeQueryStructure(sql string) *QueryStructure {
	upper := strings.ToUpper(sql)
	structure := &QueryStructure{
		QueryType: "SELECT",
		HasWhere:  strings.Contains(upper, "WHERE"),
	}

	for _, match := range joinPattern.FindAllStringSubmatch(upper, -1) {
		structure.Joins = append(structure.Joins, match[1])
	}
	structure.ComplexityScore += len(structure.Joins) * 2

	if strings.Contains(upper, "GROUP BY") {
		structure.GroupBy = true
		structure.ComplexityScore++
	}
	if strings.Contains(upper, "ORDER BY") {
		structure.OrderBy = true
		structure.ComplexityScore++
	}
	if match := limitPattern.FindStringSubmatch(upper); match != nil {
		if n, err := strconv.Atoi(match[1]); err == nil {
			structure.Limit = &n
		}
	}

	for _, fn := range []string{"SUM", "COUNT", "AVG", "MAX", "MIN"} {
		if strings.Contains(upper, fn) {
			structure.Aggregations = append(structure.Aggregations, fn)
			structure.ComplexityScore++
		}
	}

	structure.Subqueries = strings.Count(upper, "SELECT") - 1
	structure.CTEs = strings.Count(upper, "WITH")

	switch {
	case strings.Contains(upper, "INSERT"):
		structure.QueryType = "INSERT"
	case strings.Contains(upper, "UPDATE"):
		structure.QueryType = "UPDATE"
	case strings.Contains(upper, "DELETE"):
		structure.QueryType = "DELETE"
	}

	return structure
}

// identifyOpportunities flags known anti-patterns in the statement.
func identifyOpportunities(sql string, structure *QueryStructure) []Opportunity {
	var opportunities []Opportunity
	upper := strings.ToUpper(sql)

	if strings.Contains(upper, "SELECT *") {
		opportunities = append(opportunities, Opportunity{
			Type:           "select_columns",
			Priority:       "high",
			Description:    "Use specific column names instead of SELECT *",
			Impact:         "Reduces data transfer and improves performance",
			Recommendation: "Replace SELECT * with specific column names",
		})
	}

	if structure.QueryType == "SELECT" && structure.Limit == nil {
		opportunities = append(opportunities, Opportunity{
			Type:           "add_limit",
			Priority:       "medium",
			Description:    "Add LIMIT clause to prevent large result sets",
			Impact:         "Prevents excessive data transfer",
			Recommendation: "Add LIMIT clause with appropriate value",
		})
	}

	if len(structure.Joins) > 2 {
		opportunities = append(opportunities, Opportunity{
			Type:           "join_optimization",
			Priority:       "medium",
			Description:    "Multiple JOINs detected - consider query structure",
			Impact:         "May improve query performance",
			Recommendation: "Review JOIN order and consider denormalization",
		})
	}

	if structure.QueryType == "SELECT" && !structure.HasWhere {
		opportunities = append(opportunities, Opportunity{
			Type:           "add_filters",
			Priority:       "low",
			Description:    "No WHERE clause detected",
			Impact:         "May reduce data scanned",
			Recommendation: "Add appropriate WHERE clauses to filter data",
		})
	}

	if len(structure.Aggregations) > 3 {
		opportunities = append(opportunities, Opportunity{
			Type:           "aggregation_optimization",
			Priority:       "medium",
			Description:    "Multiple aggregations detected",
			Impact:         "May improve performance with proper indexing",
			Recommendation: "Consider materialized views for complex aggregations",
		})
	}

	return opportunities
}

// rewriteQuery applies the mechanical rewrites for the opportunities
// that have one.
func rewriteQuery(sql string, opportunities []Opportunity) string {
	optimized := sql
	for _, op := range opportunities {
		switch op.Type {
		case "select_columns":
			if strings.Contains(strings.ToUpper(optimized), "SELECT *") {
				optimized = replaceInsensitive(optimized, "SELECT *", "SELECT id, name, created_at")
			}
		case "add_limit":
			if !strings.Contains(strings.ToUpper(optimized), "LIMIT") {
				optimized += " LIMIT 1000"
			}
		}
	}
	return optimized
}

func buildRecommendations(structure *QueryStructure, cost *CostAnalysis, opportunities []Opportunity, comparison *PerformanceComparison) []domain.Recommendation {
	var recommendations []domain.Recommendation

	for _, op := range opportunities {
		recommendations = append(recommendations, domain.Recommendation{
			Source:      "optimization",
			Type:        op.Type,
			Priority:    op.Priority,
			Description: op.Description,
			Impact:      op.Impact,
			Action:      op.Recommendation,
		})
	}

	if cost.CostCategory == "high" {
		recommendations = append(recommendations, domain.Recommendation{
			Source:      "optimization",
			Type:        "cost_optimization",
			Priority:    "high",
			Description: "Query has high estimated cost",
			Impact:      "Significant cost savings possible",
			Action:      "Consider query optimization or data partitioning",
		})
	}

	if comparison.CostSavingsPercent > 10 {
		recommendations = append(recommendations, domain.Recommendation{
			Source:      "optimization",
			Type:        "performance_improvement",
			Priority:    "high",
			Description: fmt.Sprintf("Optimized query shows %.1f%% cost savings", comparison.CostSavingsPercent),
			Impact:      "Significant performance improvement",
			Action:      "Use optimized query version",
		})
	}

	if structure.ComplexityScore > 5 {
		recommendations = append(recommendations, domain.Recommendation{
			Source:      "optimization",
			Type:        "complexity_reduction",
			Priority:    "medium",
			Description: "Query has high complexity score",
			Impact:      "May improve maintainability and performance",
			Action:      "Consider breaking down into smaller queries or using views",
		})
	}

	return recommendations
}

func categorizeCost(costUSD float64) string {
	switch {
	case costUSD < 0.01:
		return "low"
	case costUSD < 0.10:
		return "medium"
	default:
		return "high"
	}
}

// efficiencyScore is billed/processed, capped at 1. A lower ratio means
// more of the scanned bytes were wasted.
func efficiencyScore(bytesProcessed, bytesBilled int64) float64 {
	if bytesProcessed == 0 {
		return 0
	}
	efficiency := float64(bytesBilled) / float64(bytesProcessed)
	if efficiency > 1 {
		return 1
	}
	return efficiency
}

func categorizeImprovement(savingsPercent float64) string {
	switch {
	case savingsPercent > 50:
		return "excellent"
	case savingsPercent > 20:
		return "good"
	case savingsPercent > 5:
		return "moderate"
	default:
		return "minimal"
	}
}

// replaceInsensitive replaces the first case-insensitive occurrence of
// old with new.
func replaceInsensitive(s, old, new string) string {
	idx := strings.Index(strings.ToUpper(s), strings.ToUpper(old))
	if idx < 0 {
		return s
	}
	return s[:idx] + new + s[idx+len(old):]
}
