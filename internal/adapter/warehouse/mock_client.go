package warehouse

import (
	"context"

	"github.com/datapilot/analyst/internal/domain"
)

// MockExecutor is a mock implementation of the Executor interface for
// testing. Each method returns a deterministic default unless its Fn
// field is set.
type MockExecutor struct {
	ValidateQueryFn func(ctx context.Context, sql string) (*domain.QueryValidation, error)
	ExecuteQueryFn  func(ctx context.Context, sql string, maxRows int) (*domain.QueryResult, error)
	ListTablesFn    func(ctx context.Context) ([]string, error)
	SchemaInfoFn    func(ctx context.Context, tables []string) (*domain.SchemaInfo, error)
}

var _ Executor = (*MockExecutor)(nil)

// NewMockExecutor creates a new mock executor with default behaviors.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{}
}

func (m *MockExecutor) ValidateQuery(ctx context.Context, sql string) (*domain.QueryValidation, error) {
	if m.ValidateQueryFn != nil {
		return m.ValidateQueryFn(ctx, sql)
	}
	return &domain.QueryValidation{
		Valid:               true,
		TotalBytesProcessed: 1 << 20,
		TotalBytesBilled:    1 << 20,
		EstimatedCostUSD:    0.005,
	}, nil
}

func (m *MockExecutor) ExecuteQuery(ctx context.Context, sql string, maxRows int) (*domain.QueryResult, error) {
	if m.ExecuteQueryFn != nil {
		return m.ExecuteQueryFn(ctx, sql, maxRows)
	}
	return &domain.QueryResult{
		Success: true,
		Data: []map[string]any{
			{"month": "2026-01", "revenue": 100000.0},
			{"month": "2026-02", "revenue": 125000.0},
		},
		RowCount:        2,
		ExecutionTimeMs: 42,
	}, nil
}

func (m *MockExecutor) ListTables(ctx context.Context) ([]string, error) {
	if m.ListTablesFn != nil {
		return m.ListTablesFn(ctx)
	}
	return []string{"orders", "customers"}, nil
}

func (m *MockExecutor) SchemaInfo(ctx context.Context, tables []string) (*domain.SchemaInfo, error) {
	if m.SchemaInfoFn != nil {
		return m.SchemaInfoFn(ctx, tables)
	}
	return &domain.SchemaInfo{
		Tables: map[string]domain.TableSchema{
			"orders": {
				Description: "Customer orders",
				Columns: []domain.ColumnSchema{
					{Name: "id", Type: "INTEGER"},
					{Name: "month", Type: "TEXT"},
					{Name: "revenue", Type: "REAL"},
				},
			},
		},
		AvailableTables: []string{"orders", "customers"},
	}, nil
}
