package domain

// QueryValidation is the result of a warehouse dry run.
type QueryValidation struct {
	Valid               bool    `json:"valid"`
	Error               string  `json:"error,omitempty"`
	TotalBytesProcessed int64   `json:"total_bytes_processed"`
	TotalBytesBilled    int64   `json:"total_bytes_billed"`
	EstimatedCostUSD    float64 `json:"estimated_cost_usd"`
}

// QueryResult is the raw result of executing a SQL query.
type QueryResult struct {
	Success         bool             `json:"success"`
	Data            []map[string]any `json:"data"`
	RowCount        int              `json:"row_count"`
	ExecutionTimeMs float64          `json:"execution_time_ms"`
	Error           string           `json:"error,omitempty"`
}

// FormattedResult is a query result prepared for user consumption.
type FormattedResult struct {
	Summary         string           `json:"summary"`
	Data            []map[string]any `json:"data"`
	Insights        []string         `json:"insights"`
	RowCount        int              `json:"row_count"`
	ExecutionTimeMs float64          `json:"execution_time_ms"`
}

// ColumnSchema describes a single warehouse column.
type ColumnSchema struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// TableSchema describes a single warehouse table.
type TableSchema struct {
	Description string         `json:"description,omitempty"`
	Columns     []ColumnSchema `json:"columns"`
	RowCount    int64          `json:"row_count,omitempty"`
}

// SchemaInfo is the warehouse schema description cached per session.
type SchemaInfo struct {
	Tables          map[string]TableSchema `json:"tables"`
	AvailableTables []string               `json:"available_tables"`
}
