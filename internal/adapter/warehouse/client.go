// Package warehouse provides the client for the analytics warehouse
// service that validates and executes generated SQL.
package warehouse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/datapilot/analyst/internal/domain"
)

// Executor defines the interface for warehouse query operations.
type Executor interface {
	// ValidateQuery dry runs a SQL statement and estimates its cost.
	ValidateQuery(ctx context.Context, sql string) (*domain.QueryValidation, error)

	// ExecuteQuery runs a SQL statement and returns its rows.
	ExecuteQuery(ctx context.Context, sql string, maxRows int) (*domain.QueryResult, error)

	// ListTables returns the tables visible to the service account.
	ListTables(ctx context.Context) ([]string, error)

	// SchemaInfo returns column metadata for the given tables. An empty
	// list means all available tables.
	SchemaInfo(ctx context.Context, tables []string) (*domain.SchemaInfo, error)
}

// HTTPExecutor talks to the warehouse gateway over HTTP.
type HTTPExecutor struct {
	baseURL    string
	httpClient *http.Client
}

var _ Executor = (*HTTPExecutor)(nil)

// NewHTTPExecutor creates a new warehouse client.
func NewHTTPExecutor(baseURL string, timeout time.Duration) *HTTPExecutor {
	return &HTTPExecutor{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type queryRequest struct {
	SQL     string `json:"sql"`
	MaxRows int    `json:"max_rows,omitempty"`
}

type schemaRequest struct {
	Tables []string `json:"tables,omitempty"`
}

type tablesResponse struct {
	Tables []string `json:"tables"`
}

// ValidateQuery dry runs a SQL statement and estimates its cost.
func (c *HTTPExecutor) ValidateQuery(ctx context.Context, sql string) (*domain.QueryValidation, error) {
	var result domain.QueryValidation
	if err := c.post(ctx, "/v1/query/validate", queryRequest{SQL: sql}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ExecuteQuery runs a SQL statement and returns its rows.
func (c *HTTPExecutor) ExecuteQuery(ctx context.Context, sql string, maxRows int) (*domain.QueryResult, error) {
	var result domain.QueryResult
	if err := c.post(ctx, "/v1/query/execute", queryRequest{SQL: sql, MaxRows: maxRows}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListTables returns the tables visible to the service account.
func (c *HTTPExecutor) ListTables(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/tables", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	respBody, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	var result tablesResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return result.Tables, nil
}

// SchemaInfo returns column metadata for the given tables.
func (c *HTTPExecutor) SchemaInfo(ctx context.Context, tables []string) (*domain.SchemaInfo, error) {
	var result domain.SchemaInfo
	if err := c.post(ctx, "/v1/schema", schemaRequest{Tables: tables}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPExecutor) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	respBody, err := c.do(httpReq)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func (c *HTTPExecutor) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("warehouse API error [%d]: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
