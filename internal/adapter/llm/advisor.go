package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/datapilot/analyst/internal/domain"
)

// IntentAnalysis is the model's reading of a natural-language query.
type IntentAnalysis struct {
	Intent      string   `json:"intent"`
	Entities    []string `json:"entities"`
	Metrics     []string `json:"metrics"`
	TimeRange   string   `json:"time_range,omitempty"`
	Aggregation string   `json:"aggregation,omitempty"`
	Filters     []string `json:"filters,omitempty"`
	NeedsSchema bool     `json:"needs_schema"`
}

// BusinessIntent is the business reading of a query for impact analysis.
type BusinessIntent struct {
	BusinessObjective   string   `json:"business_objective"`
	Stakeholder         string   `json:"stakeholder"`
	DecisionImpact      string   `json:"decision_impact"`
	BusinessDomain      string   `json:"business_domain"`
	UrgencyLevel        string   `json:"urgency_level"`
	StrategicImportance string   `json:"strategic_importance"`
	DataComplexity      string   `json:"data_complexity"`
	BusinessMetrics     []string `json:"business_metrics"`
	TimeDimension       string   `json:"time_dimension"`
	ComparisonType      string   `json:"comparison_type"`
}

// PrimaryMetric is one headline number pulled out of a result set.
type PrimaryMetric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Trend string  `json:"trend"`
}

// KeyMetrics are the KPIs extracted from query results.
type KeyMetrics struct {
	PrimaryMetrics        []PrimaryMetric `json:"primary_metrics"`
	Trends                []string        `json:"trends"`
	Anomalies             []string        `json:"anomalies"`
	PerformanceIndicators []string        `json:"performance_indicators"`
	BusinessImplications  []string        `json:"business_implications"`
}

// DimensionScore is a 1-10 impact score with its reasoning.
type DimensionScore struct {
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
}

// ImpactScores holds the per-dimension business impact scoring.
type ImpactScores struct {
	FinancialImpact   DimensionScore `json:"financial_impact"`
	OperationalImpact DimensionScore `json:"operational_impact"`
	StrategicImpact   DimensionScore `json:"strategic_impact"`
	RiskImpact        DimensionScore `json:"risk_impact"`
	OverallImpact     string         `json:"overall_impact"`
}

// ConfidenceAssessment holds the reliability scoring of an analysis.
type ConfidenceAssessment struct {
	DataQualityScore    int      `json:"data_quality_score"`
	SampleAdequacyScore int      `json:"sample_adequacy_score"`
	MethodologyScore    int      `json:"methodology_score"`
	OverallConfidence   string   `json:"overall_confidence"`
	Limitations         []string `json:"limitations"`
}

// Advisor is the reasoning surface the agents consume. It takes prompts
// to the model and returns structured or free-text content.
type Advisor interface {
	AnalyzeQueryIntent(ctx context.Context, query string, reqContext map[string]any) (*IntentAnalysis, error)
	GenerateSQLQuery(ctx context.Context, query string, schema *domain.SchemaInfo, analysis *IntentAnalysis) (string, error)
	GenerateSummary(ctx context.Context, result *domain.QueryResult, originalQuery string) (string, error)
	GenerateInsights(ctx context.Context, result *domain.QueryResult, originalQuery string) ([]string, error)

	AnalyzeBusinessIntent(ctx context.Context, originalQuery, sqlQuery string, reqContext map[string]any) (*BusinessIntent, error)
	ExtractKeyMetrics(ctx context.Context, results *domain.FormattedResult, intent *BusinessIntent) (*KeyMetrics, error)
	ScoreImpact(ctx context.Context, metrics *KeyMetrics, intent *BusinessIntent) (*ImpactScores, error)
	GenerateImpactInsights(ctx context.Context, results *domain.FormattedResult, intent *BusinessIntent, metrics *KeyMetrics) ([]string, error)
	GenerateImpactRecommendations(ctx context.Context, insights []string, scores *ImpactScores) ([]string, error)
	AssessConfidence(ctx context.Context, results *domain.FormattedResult, intent *BusinessIntent) (*ConfidenceAssessment, error)
}

// ModelAdvisor implements Advisor on top of a chat completion Client.
type ModelAdvisor struct {
	client Client
	model  string
}

var _ Advisor = (*ModelAdvisor)(nil)

// NewModelAdvisor creates an advisor using the given chat client and model.
func NewModelAdvisor(client Client, model string) *ModelAdvisor {
	return &ModelAdvisor{client: client, model: model}
}

func (a *ModelAdvisor) complete(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	req := &ChatCompletionRequest{
		Model: a.model,
		Messages: []ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}
	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return "", fmt.Errorf("empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (a *ModelAdvisor) completeJSON(ctx context.Context, system, user string, maxTokens int, out any) error {
	content, err := a.complete(ctx, system, user, 0.2, maxTokens)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(extractJSON(content)), out); err != nil {
		return fmt.Errorf("failed to parse model JSON: %w", err)
	}
	return nil
}

// AnalyzeQueryIntent asks the model what the user is trying to find out.
func (a *ModelAdvisor) AnalyzeQueryIntent(ctx context.Context, query string, reqContext map[string]any) (*IntentAnalysis, error) {
	system := `You are a data analyst. Analyze the user's natural-language question to understand intent and requirements.
Respond with a JSON object:
{
    "intent": "string",
    "entities": ["table1", "table2"],
    "metrics": ["metric1"],
    "time_range": "string",
    "aggregation": "string",
    "filters": ["filter1"]
}`
	user := fmt.Sprintf("Query: %s\nContext: %s\n\nAnalyze the intent:", query, formatContext(reqContext))

	var analysis IntentAnalysis
	if err := a.completeJSON(ctx, system, user, 400, &analysis); err != nil {
		return nil, err
	}
	analysis.NeedsSchema = len(analysis.Entities) > 0
	return &analysis, nil
}

// GenerateSQLQuery asks the model for a SQL statement answering the query.
func (a *ModelAdvisor) GenerateSQLQuery(ctx context.Context, query string, schema *domain.SchemaInfo, analysis *IntentAnalysis) (string, error) {
	system := `You are a SQL expert. Generate a single syntactically valid SQL SELECT statement that answers the user's question against the given schema.
Return only the SQL statement, no explanation and no markdown fences.`
	user := fmt.Sprintf("Question: %s\n\nSchema:\n%s\n\nIntent: %s\n\nSQL:", query, formatSchema(schema), marshalCompact(analysis))

	content, err := a.complete(ctx, system, user, 0.1, 600)
	if err != nil {
		return "", err
	}
	sql := strings.TrimSpace(stripFences(content))
	if sql == "" {
		return "", fmt.Errorf("model returned empty SQL")
	}
	return sql, nil
}

// GenerateSummary asks the model for a one-paragraph answer summary.
func (a *ModelAdvisor) GenerateSummary(ctx context.Context, result *domain.QueryResult, originalQuery string) (string, error) {
	system := `You are a business analyst. Summarize the query results in 1-2 plain sentences that directly answer the user's question. No markdown.`
	user := fmt.Sprintf("Question: %s\n\nResults:\n%s\n\nSummary:", originalQuery, formatResultData(result.Data, 5))

	content, err := a.complete(ctx, system, user, 0.3, 300)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// GenerateInsights asks the model for notable findings in the data.
func (a *ModelAdvisor) GenerateInsights(ctx context.Context, result *domain.QueryResult, originalQuery string) ([]string, error) {
	system := `You are a business analyst. List 2-4 short, concrete insights from the query results, one per line. No numbering, no markdown.`
	user := fmt.Sprintf("Question: %s\n\nResults:\n%s\n\nInsights:", originalQuery, formatResultData(result.Data, 5))

	content, err := a.complete(ctx, system, user, 0.3, 300)
	if err != nil {
		return nil, err
	}
	return splitLines(content), nil
}

// AnalyzeBusinessIntent asks the model for the business reading of a query.
func (a *ModelAdvisor) AnalyzeBusinessIntent(ctx context.Context, originalQuery, sqlQuery string, reqContext map[string]any) (*BusinessIntent, error) {
	system := `You are a business analyst with deep understanding of data structures and business intelligence.
Analyze the user's query to understand the business objective, stakeholder, decision impact, domain, urgency, and metrics involved.
Respond with a JSON object:
{
    "business_objective": "string",
    "stakeholder": "string",
    "decision_impact": "string",
    "business_domain": "string",
    "urgency_level": "high|medium|low",
    "strategic_importance": "high|medium|low",
    "data_complexity": "simple|moderate|complex",
    "business_metrics": ["metric1", "metric2"],
    "time_dimension": "historical|current|trending|forecasting",
    "comparison_type": "absolute|relative|trend|benchmark"
}`
	user := fmt.Sprintf("Original Query: %s\nSQL Query: %s\nContext: %s\n\nAnalyze the business intent:", originalQuery, sqlQuery, formatContext(reqContext))

	var intent BusinessIntent
	if err := a.completeJSON(ctx, system, user, 500, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// ExtractKeyMetrics asks the model for KPIs in the result set.
func (a *ModelAdvisor) ExtractKeyMetrics(ctx context.Context, results *domain.FormattedResult, intent *BusinessIntent) (*KeyMetrics, error) {
	system := `You are a data analyst. Extract key metrics and KPIs from the query results.
Respond with a JSON object:
{
    "primary_metrics": [{"name": "string", "value": 0, "trend": "up|down|stable"}],
    "trends": ["trend1"],
    "anomalies": ["anomaly1"],
    "performance_indicators": ["kpi1"],
    "business_implications": ["implication1"]
}`
	user := fmt.Sprintf("Query Results:\n%s\n\nBusiness Intent: %s\n\nExtract key metrics:", formatResultData(results.Data, 5), marshalCompact(intent))

	var metrics KeyMetrics
	if err := a.completeJSON(ctx, system, user, 500, &metrics); err != nil {
		return nil, err
	}
	return &metrics, nil
}

// ScoreImpact asks the model to score business impact per dimension.
func (a *ModelAdvisor) ScoreImpact(ctx context.Context, metrics *KeyMetrics, intent *BusinessIntent) (*ImpactScores, error) {
	system := `You are a business impact analyst. Score the financial, operational, strategic and risk impact of the findings from 1-10 (10 highest).
Respond with a JSON object:
{
    "financial_impact": {"score": 1, "reasoning": "string"},
    "operational_impact": {"score": 1, "reasoning": "string"},
    "strategic_impact": {"score": 1, "reasoning": "string"},
    "risk_impact": {"score": 1, "reasoning": "string"},
    "overall_impact": "high|medium|low"
}`
	user := fmt.Sprintf("Key Metrics: %s\nBusiness Intent: %s\n\nCalculate impact scores:", marshalCompact(metrics), marshalCompact(intent))

	var scores ImpactScores
	if err := a.completeJSON(ctx, system, user, 400, &scores); err != nil {
		return nil, err
	}
	return &scores, nil
}

// GenerateImpactInsights asks the model for business insights.
func (a *ModelAdvisor) GenerateImpactInsights(ctx context.Context, results *domain.FormattedResult, intent *BusinessIntent, metrics *KeyMetrics) ([]string, error) {
	system := `You are a business analyst. Generate 3-5 key business insights from the data, one per line. Keep them concise and actionable. No numbering.`
	user := fmt.Sprintf("Query Results:\n%s\n\nBusiness Intent: %s\nKey Metrics: %s\n\nGenerate business insights:", formatResultData(results.Data, 5), marshalCompact(intent), marshalCompact(metrics))

	content, err := a.complete(ctx, system, user, 0.3, 400)
	if err != nil {
		return nil, err
	}
	return splitLines(content), nil
}

// GenerateImpactRecommendations asks the model for actionable recommendations.
func (a *ModelAdvisor) GenerateImpactRecommendations(ctx context.Context, insights []string, scores *ImpactScores) ([]string, error) {
	system := `You are a business consultant. Generate 3-5 actionable recommendations based on the insights, one per line. Make them practical and implementable. No numbering.`
	user := fmt.Sprintf("Business Insights: %s\nImpact Scores: %s\n\nGenerate actionable recommendations:", strings.Join(insights, "; "), marshalCompact(scores))

	content, err := a.complete(ctx, system, user, 0.3, 400)
	if err != nil {
		return nil, err
	}
	return splitLines(content), nil
}

// AssessConfidence asks the model to rate the reliability of the analysis.
func (a *ModelAdvisor) AssessConfidence(ctx context.Context, results *domain.FormattedResult, intent *BusinessIntent) (*ConfidenceAssessment, error) {
	system := `You are a data quality analyst. Assess the confidence and reliability of the analysis considering data quality, sample size and methodology. Score each from 1-10.
Respond with a JSON object:
{
    "data_quality_score": 1,
    "sample_adequacy_score": 1,
    "methodology_score": 1,
    "overall_confidence": "high|medium|low",
    "limitations": ["limitation1"]
}`
	user := fmt.Sprintf("Data points: %d\nColumns: %s\nBusiness Intent: %s\n\nAssess confidence and reliability:", results.RowCount, strings.Join(columnNames(results.Data), ", "), marshalCompact(intent))

	var confidence ConfidenceAssessment
	if err := a.completeJSON(ctx, system, user, 400, &confidence); err != nil {
		return nil, err
	}
	return &confidence, nil
}

// extractJSON strips markdown fences and surrounding prose, returning the
// outermost JSON object in the content.
func extractJSON(content string) string {
	content = stripFences(content)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return strings.TrimSpace(content)
}

func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```")
	if idx := strings.Index(content, "\n"); idx >= 0 {
		content = content[idx+1:]
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}

func splitLines(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*0123456789. "))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func marshalCompact(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func formatContext(reqContext map[string]any) string {
	if len(reqContext) == 0 {
		return "{}"
	}
	return marshalCompact(reqContext)
}

func formatSchema(schema *domain.SchemaInfo) string {
	if schema == nil || len(schema.Tables) == 0 {
		return "No schema information available."
	}
	names := make([]string, 0, len(schema.Tables))
	for name := range schema.Tables {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		table := schema.Tables[name]
		fmt.Fprintf(&b, "Table %s", name)
		if table.Description != "" {
			fmt.Fprintf(&b, " (%s)", table.Description)
		}
		b.WriteString(":\n")
		for _, col := range table.Columns {
			fmt.Fprintf(&b, "  %s %s", col.Name, col.Type)
			if col.Description != "" {
				fmt.Fprintf(&b, " -- %s", col.Description)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func formatResultData(data []map[string]any, limit int) string {
	if len(data) == 0 {
		return "No data returned"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Rows returned: %d\n", len(data))
	fmt.Fprintf(&b, "Columns: %s\n", strings.Join(columnNames(data), ", "))
	for i, row := range data {
		if i >= limit {
			break
		}
		fmt.Fprintf(&b, "Row %d: %s\n", i+1, marshalCompact(row))
	}
	return b.String()
}

func columnNames(data []map[string]any) []string {
	if len(data) == 0 {
		return nil
	}
	cols := make([]string, 0, len(data[0]))
	for k := range data[0] {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}
