package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/datapilot/analyst/internal/adapter/llm"
	"github.com/datapilot/analyst/internal/adapter/warehouse"
	"github.com/datapilot/analyst/internal/domain"
	"github.com/datapilot/analyst/internal/session"
)

// PolicyGate evaluates generated SQL before it reaches the warehouse.
// Satisfied by *policy.Engine.
type PolicyGate interface {
	Evaluate(ctx context.Context, input any) (string, string, error)
}

// QueryInput is the input to the query agent.
type QueryInput struct {
	Query   string         `json:"query"`
	Context map[string]any `json:"context,omitempty"`
}

// QueryAgentResult is the query agent's final payload.
type QueryAgentResult struct {
	OriginalQuery string                  `json:"original_query"`
	SQLQuery      string                  `json:"sql_query"`
	Analysis      *llm.IntentAnalysis     `json:"analysis,omitempty"`
	Validation    *domain.QueryValidation `json:"validation,omitempty"`
	Execution     *domain.QueryResult     `json:"execution,omitempty"`
	Formatted     *domain.FormattedResult `json:"formatted,omitempty"`
}

// QueryAgent turns a natural-language question into SQL, runs it against
// the warehouse and formats the answer. Stages fail fast: the first
// failed step aborts the run.
type QueryAgent struct {
	run      *Run
	advisor  llm.Advisor
	exec     warehouse.Executor
	policy   PolicyGate
	sessions *session.Manager
	maxRows  int
}

var _ Agent = (*QueryAgent)(nil)

// NewQueryAgent creates a query agent bound to the given session.
func NewQueryAgent(advisor llm.Advisor, exec warehouse.Executor, gate PolicyGate, sessions *session.Manager, sessionID, requestID string, maxRows int) *QueryAgent {
	if maxRows <= 0 {
		maxRows = 1000
	}
	return &QueryAgent{
		run:      NewRun(domain.TypeQueryAgent, sessionID, requestID),
		advisor:  advisor,
		exec:     exec,
		policy:   gate,
		sessions: sessions,
		maxRows:  maxRows,
	}
}

// Run returns the bookkeeping run backing this agent.
func (a *QueryAgent) Run() *Run {
	return a.run
}

// Execute runs the full query pipeline.
func (a *QueryAgent) Execute(ctx context.Context, input any) *domain.AgentResponse {
	a.run.MarkStarted()

	in, ok := input.(*QueryInput)
	if !ok || strings.TrimSpace(in.Query) == "" {
		a.run.SetError(domain.NewAgentError(
			"invalid_input",
			"query text is required",
			"MISSING_QUERY",
			nil,
		))
		a.run.Finish()
		return a.run.ToResponse()
	}

	result := &QueryAgentResult{OriginalQuery: in.Query}

	// Understand what the user is asking for.
	a.run.AddStep("query_understanding", "nlp_analysis")
	analysis, err := a.advisor.AnalyzeQueryIntent(ctx, in.Query, in.Context)
	if err != nil {
		return a.fail("query_understanding", domain.NewAgentError(
			"execution_error",
			fmt.Sprintf("intent analysis failed: %v", err),
			"AGENT_EXECUTION_ERROR",
			nil,
		))
	}
	result.Analysis = analysis
	a.run.UpdateStep("query_understanding", domain.StepSuccess, map[string]any{
		"intent":   analysis.Intent,
		"entities": analysis.Entities,
	}, nil)

	// Fetch the schema, preferring the session cache.
	a.run.AddStep("schema_retrieval", "schema_lookup")
	schema, err := a.schemaInfo(ctx)
	if err != nil {
		return a.fail("schema_retrieval", domain.NewAgentError(
			"execution_error",
			fmt.Sprintf("schema retrieval failed: %v", err),
			"AGENT_EXECUTION_ERROR",
			nil,
		))
	}
	a.run.UpdateStep("schema_retrieval", domain.StepSuccess, map[string]any{
		"tables": len(schema.Tables),
	}, nil)

	// Generate the SQL statement.
	a.run.AddStep("sql_generation", "nlp_to_sql")
	sqlQuery, err := a.advisor.GenerateSQLQuery(ctx, in.Query, schema, analysis)
	if err != nil || strings.TrimSpace(sqlQuery) == "" {
		msg := "model returned no SQL"
		if err != nil {
			msg = fmt.Sprintf("SQL generation failed: %v", err)
		}
		return a.fail("sql_generation", domain.NewAgentError(
			"execution_error", msg, "MISSING_SQL_QUERY", nil,
		))
	}
	result.SQLQuery = sqlQuery
	a.run.UpdateStep("sql_generation", domain.StepSuccess, map[string]any{
		"sql_query": sqlQuery,
	}, nil)

	// Gate the statement through the SQL policy.
	a.run.AddStep("policy_check", "policy_evaluation")
	decision, reason, err := a.policy.Evaluate(ctx, map[string]any{
		"sql":            sqlQuery,
		"statement_type": statementType(sqlQuery),
		"session_id":     a.run.SessionID(),
	})
	if err != nil {
		return a.fail("policy_check", domain.NewAgentError(
			"execution_error",
			fmt.Sprintf("policy evaluation failed: %v", err),
			"AGENT_EXECUTION_ERROR",
			nil,
		))
	}
	if decision != "allow" {
		return a.fail("policy_check", domain.NewAgentError(
			"sql_validation_error",
			fmt.Sprintf("SQL blocked by policy: %s", reason),
			"SQL_POLICY_BLOCKED",
			map[string]any{"decision": decision, "reason": reason},
		))
	}
	a.run.UpdateStep("policy_check", domain.StepSuccess, map[string]any{
		"decision": decision,
	}, nil)

	// Dry run the statement for validity and cost.
	a.run.AddStep("sql_validation", "query_validation")
	validation, err := a.exec.ValidateQuery(ctx, sqlQuery)
	if err != nil {
		return a.fail("sql_validation", domain.NewAgentError(
			"sql_validation_error",
			fmt.Sprintf("query validation failed: %v", err),
			"SQL_VALIDATION_FAILED",
			nil,
		))
	}
	if !validation.Valid {
		return a.fail("sql_validation", domain.NewAgentError(
			"sql_validation_error",
			fmt.Sprintf("generated SQL is invalid: %s", validation.Error),
			"SQL_VALIDATION_FAILED",
			map[string]any{"sql_query": sqlQuery},
		))
	}
	result.Validation = validation
	a.run.UpdateStep("sql_validation", domain.StepSuccess, map[string]any{
		"estimated_cost_usd": validation.EstimatedCostUSD,
	}, nil)

	// Execute against the warehouse.
	a.run.SetState(domain.StateExecutingQuery)
	a.run.AddStep("query_execution", "warehouse_query")
	execResult, err := a.exec.ExecuteQuery(ctx, sqlQuery, a.maxRows)
	if err != nil {
		return a.fail("query_execution", domain.NewAgentError(
			"query_execution_error",
			fmt.Sprintf("query execution failed: %v", err),
			"QUERY_EXECUTION_FAILED",
			nil,
		))
	}
	if !execResult.Success {
		return a.fail("query_execution", domain.NewAgentError(
			"query_execution_error",
			fmt.Sprintf("warehouse rejected query: %s", execResult.Error),
			"QUERY_EXECUTION_FAILED",
			nil,
		))
	}
	result.Execution = execResult
	a.run.UpdateStep("query_execution", domain.StepSuccess, map[string]any{
		"row_count":         execResult.RowCount,
		"execution_time_ms": execResult.ExecutionTimeMs,
	}, nil)

	// Format the answer for the user.
	a.run.AddStep("result_formatting", "data_formatting")
	formatted, err := a.format(ctx, execResult, in.Query)
	if err != nil {
		return a.fail("result_formatting", domain.NewAgentError(
			"execution_error",
			fmt.Sprintf("result formatting failed: %v", err),
			"AGENT_EXECUTION_ERROR",
			nil,
		))
	}
	result.Formatted = formatted
	a.run.UpdateStep("result_formatting", domain.StepSuccess, map[string]any{
		"insights": len(formatted.Insights),
	}, nil)

	a.run.SetResult(result)
	a.run.Finish()
	return a.run.ToResponse()
}

func (a *QueryAgent) fail(stepName string, agentErr *domain.AgentError) *domain.AgentResponse {
	a.run.UpdateStep(stepName, domain.StepError, nil, agentErr)
	a.run.SetError(agentErr)
	a.run.Finish()
	return a.run.ToResponse()
}

func (a *QueryAgent) schemaInfo(ctx context.Context) (*domain.SchemaInfo, error) {
	if a.sessions != nil {
		if cached, ok := a.sessions.SchemaInfo(a.run.SessionID()); ok {
			return cached, nil
		}
	}
	schema, err := a.exec.SchemaInfo(ctx, nil)
	if err != nil {
		return nil, err
	}
	// An abandoned run must not write session state.
	if a.sessions != nil && !a.run.Abandoned() {
		a.sessions.UpdateSchemaInfo(a.run.SessionID(), schema)
	}
	return schema, nil
}

func (a *QueryAgent) format(ctx context.Context, execResult *domain.QueryResult, originalQuery string) (*domain.FormattedResult, error) {
	formatted := &domain.FormattedResult{
		Data:            execResult.Data,
		RowCount:        execResult.RowCount,
		ExecutionTimeMs: execResult.ExecutionTimeMs,
	}
	if execResult.RowCount == 0 {
		formatted.Summary = "The query returned no rows."
		return formatted, nil
	}

	summary, err := a.advisor.GenerateSummary(ctx, execResult, originalQuery)
	if err != nil {
		return nil, err
	}
	formatted.Summary = summary

	insights, err := a.advisor.GenerateInsights(ctx, execResult, originalQuery)
	if err != nil {
		return nil, err
	}
	formatted.Insights = insights
	return formatted, nil
}

// statementType returns the lowercased leading keyword of a SQL
// statement, used as the policy input.
func statementType(sql string) string {
	fields := strings.Fields(strings.TrimSpace(sql))
	if len(fields) == 0 {
		return ""
	}
	first := strings.ToLower(fields[0])
	if first == "with" {
		return "select"
	}
	return first
}
