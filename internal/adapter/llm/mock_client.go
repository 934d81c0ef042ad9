package llm

import (
	"context"
	"time"

	"github.com/datapilot/analyst/internal/domain"
)

// MockClient is a mock implementation of the Client interface for testing.
type MockClient struct {
	CreateChatCompletionFn func(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)
	ListModelsFn           func(ctx context.Context) ([]Model, error)
}

var _ Client = (*MockClient)(nil)

// NewMockClient creates a new mock client with default behaviors.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// CreateChatCompletion returns a canned completion unless overridden.
func (m *MockClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if m.CreateChatCompletionFn != nil {
		return m.CreateChatCompletionFn(ctx, req)
	}
	return &ChatCompletionResponse{
		ID:      "chatcmpl-mock",
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []Choice{
			{
				Index:        0,
				Message:      &ChatMessage{Role: "assistant", Content: "mock response"},
				FinishReason: "stop",
			},
		},
		Usage: &Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

// ListModels returns a canned model list unless overridden.
func (m *MockClient) ListModels(ctx context.Context) ([]Model, error) {
	if m.ListModelsFn != nil {
		return m.ListModelsFn(ctx)
	}
	return []Model{
		{ID: "mock-model", Object: "model", Created: time.Now().Unix(), OwnedBy: "mock"},
	}, nil
}

// MockAdvisor is a mock implementation of the Advisor interface for testing.
// Each method returns a deterministic default unless its Fn field is set.
type MockAdvisor struct {
	AnalyzeQueryIntentFn            func(ctx context.Context, query string, reqContext map[string]any) (*IntentAnalysis, error)
	GenerateSQLQueryFn              func(ctx context.Context, query string, schema *domain.SchemaInfo, analysis *IntentAnalysis) (string, error)
	GenerateSummaryFn               func(ctx context.Context, result *domain.QueryResult, originalQuery string) (string, error)
	GenerateInsightsFn              func(ctx context.Context, result *domain.QueryResult, originalQuery string) ([]string, error)
	AnalyzeBusinessIntentFn         func(ctx context.Context, originalQuery, sqlQuery string, reqContext map[string]any) (*BusinessIntent, error)
	ExtractKeyMetricsFn             func(ctx context.Context, results *domain.FormattedResult, intent *BusinessIntent) (*KeyMetrics, error)
	ScoreImpactFn                   func(ctx context.Context, metrics *KeyMetrics, intent *BusinessIntent) (*ImpactScores, error)
	GenerateImpactInsightsFn        func(ctx context.Context, results *domain.FormattedResult, intent *BusinessIntent, metrics *KeyMetrics) ([]string, error)
	GenerateImpactRecommendationsFn func(ctx context.Context, insights []string, scores *ImpactScores) ([]string, error)
	AssessConfidenceFn              func(ctx context.Context, results *domain.FormattedResult, intent *BusinessIntent) (*ConfidenceAssessment, error)
}

var _ Advisor = (*MockAdvisor)(nil)

// NewMockAdvisor creates a new mock advisor with default behaviors.
func NewMockAdvisor() *MockAdvisor {
	return &MockAdvisor{}
}

func (m *MockAdvisor) AnalyzeQueryIntent(ctx context.Context, query string, reqContext map[string]any) (*IntentAnalysis, error) {
	if m.AnalyzeQueryIntentFn != nil {
		return m.AnalyzeQueryIntentFn(ctx, query, reqContext)
	}
	return &IntentAnalysis{
		Intent:      "aggregate revenue by month",
		Entities:    []string{"orders"},
		Metrics:     []string{"revenue"},
		Aggregation: "sum",
		NeedsSchema: true,
	}, nil
}

func (m *MockAdvisor) GenerateSQLQuery(ctx context.Context, query string, schema *domain.SchemaInfo, analysis *IntentAnalysis) (string, error) {
	if m.GenerateSQLQueryFn != nil {
		return m.GenerateSQLQueryFn(ctx, query, schema, analysis)
	}
	return "SELECT month, SUM(revenue) AS revenue FROM orders GROUP BY month", nil
}

func (m *MockAdvisor) GenerateSummary(ctx context.Context, result *domain.QueryResult, originalQuery string) (string, error) {
	if m.GenerateSummaryFn != nil {
		return m.GenerateSummaryFn(ctx, result, originalQuery)
	}
	return "Revenue grew steadily over the selected period.", nil
}

func (m *MockAdvisor) GenerateInsights(ctx context.Context, result *domain.QueryResult, originalQuery string) ([]string, error) {
	if m.GenerateInsightsFn != nil {
		return m.GenerateInsightsFn(ctx, result, originalQuery)
	}
	return []string{"Revenue peaked in the most recent month."}, nil
}

func (m *MockAdvisor) AnalyzeBusinessIntent(ctx context.Context, originalQuery, sqlQuery string, reqContext map[string]any) (*BusinessIntent, error) {
	if m.AnalyzeBusinessIntentFn != nil {
		return m.AnalyzeBusinessIntentFn(ctx, originalQuery, sqlQuery, reqContext)
	}
	return &BusinessIntent{
		BusinessObjective:   "track revenue performance",
		Stakeholder:         "finance",
		DecisionImpact:      "budget allocation",
		BusinessDomain:      "sales",
		UrgencyLevel:        "medium",
		StrategicImportance: "high",
		DataComplexity:      "moderate",
		BusinessMetrics:     []string{"revenue"},
		TimeDimension:       "trending",
		ComparisonType:      "trend",
	}, nil
}

func (m *MockAdvisor) ExtractKeyMetrics(ctx context.Context, results *domain.FormattedResult, intent *BusinessIntent) (*KeyMetrics, error) {
	if m.ExtractKeyMetricsFn != nil {
		return m.ExtractKeyMetricsFn(ctx, results, intent)
	}
	return &KeyMetrics{
		PrimaryMetrics:       []PrimaryMetric{{Name: "revenue", Value: 125000, Trend: "up"}},
		Trends:               []string{"monthly revenue is increasing"},
		BusinessImplications: []string{"growth trajectory supports expansion"},
	}, nil
}

func (m *MockAdvisor) ScoreImpact(ctx context.Context, metrics *KeyMetrics, intent *BusinessIntent) (*ImpactScores, error) {
	if m.ScoreImpactFn != nil {
		return m.ScoreImpactFn(ctx, metrics, intent)
	}
	return &ImpactScores{
		FinancialImpact:   DimensionScore{Score: 8, Reasoning: "direct revenue visibility"},
		OperationalImpact: DimensionScore{Score: 6, Reasoning: "informs planning"},
		StrategicImpact:   DimensionScore{Score: 8, Reasoning: "supports growth strategy"},
		RiskImpact:        DimensionScore{Score: 3, Reasoning: "low downside"},
		OverallImpact:     "high",
	}, nil
}

func (m *MockAdvisor) GenerateImpactInsights(ctx context.Context, results *domain.FormattedResult, intent *BusinessIntent, metrics *KeyMetrics) ([]string, error) {
	if m.GenerateImpactInsightsFn != nil {
		return m.GenerateImpactInsightsFn(ctx, results, intent, metrics)
	}
	return []string{"Revenue growth is concentrated in the latest quarter."}, nil
}

func (m *MockAdvisor) GenerateImpactRecommendations(ctx context.Context, insights []string, scores *ImpactScores) ([]string, error) {
	if m.GenerateImpactRecommendationsFn != nil {
		return m.GenerateImpactRecommendationsFn(ctx, insights, scores)
	}
	return []string{"Monitor revenue trends monthly."}, nil
}

func (m *MockAdvisor) AssessConfidence(ctx context.Context, results *domain.FormattedResult, intent *BusinessIntent) (*ConfidenceAssessment, error) {
	if m.AssessConfidenceFn != nil {
		return m.AssessConfidenceFn(ctx, results, intent)
	}
	return &ConfidenceAssessment{
		DataQualityScore:    8,
		SampleAdequacyScore: 7,
		MethodologyScore:    8,
		OverallConfidence:   "high",
	}, nil
}
