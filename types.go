package dwmcp

import "github.com/warelens/dwmcp/internal/resolve"

// QueryInput is the input for the ad-hoc Query tool.
type QueryInput struct {
	SQL string `json:"sql"`
}

// QueryOutput is the output of the ad-hoc Query tool. All errors (guard
// rejections, pool errors, store errors) are placed in Error; Hint carries
// matched guidance and Suggestions carries resolver proposals when the
// error looks like a missing relation.
type QueryOutput struct {
	Columns      []string         `json:"columns"`
	Rows         []map[string]any `json:"rows"`
	RowCount     int              `json:"row_count"`
	AppliedLimit bool             `json:"applied_limit,omitempty"`
	Error        string           `json:"error,omitempty"`
	Hint         string           `json:"hint,omitempty"`
	Suggestions  []string         `json:"suggestions,omitempty"`
}

// ReportInput is a structured aggregate query: validated parameters
// instead of free SQL text.
type ReportInput struct {
	FromMonth   string            `json:"from_month"`
	ToMonth     string            `json:"to_month"`
	GroupBy     []string          `json:"group_by"`
	Metrics     []string          `json:"metrics"`
	ProductName string            `json:"product_name,omitempty"`
	Filters     map[string]string `json:"filters,omitempty"`
}

// ReportOutput is the output of the Report tool.
type ReportOutput struct {
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
	Error    string           `json:"error,omitempty"`
}

// ResolveTableInput is the input for the ResolveTable tool.
type ResolveTableInput struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`
}

// ResolveTableOutput is the resolver's advisory answer.
type ResolveTableOutput = resolve.Result

// Metadata kinds accepted by GetMetadata.
const (
	MetadataSchemas      = "schemas"
	MetadataTables       = "tables"
	MetadataTableSchemas = "table_schemas"
)

// MetadataInput selects which slice of cached metadata to return.
// Kind is one of the Metadata* constants; Schema is required for "tables"
// and Table for "table_schemas".
type MetadataInput struct {
	Kind         string `json:"kind"`
	Schema       string `json:"schema,omitempty"`
	Table        string `json:"table,omitempty"`
	ForceRefresh bool   `json:"force_refresh,omitempty"`
}

// MetadataOutput is the output of GetMetadata. Exactly one of the slice
// fields is populated, matching the requested kind.
type MetadataOutput struct {
	Schemas      []string `json:"schemas,omitempty"`
	Tables       []string `json:"tables,omitempty"`
	TableSchemas []string `json:"table_schemas,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// ListTablesInput is the input for the ListTables tool.
type ListTablesInput struct {
	Schema string `json:"schema"`
}

// TableEntry is a single table in the ListTables output, with the planner's
// row estimate and the curated description when one exists.
type TableEntry struct {
	Name        string `json:"table_name"`
	RowEstimate int64  `json:"row_estimate"`
	Description string `json:"description"`
}

// ListTablesOutput is the output of the ListTables tool.
type ListTablesOutput struct {
	Schema string       `json:"schema"`
	Tables []TableEntry `json:"tables"`
	Error  string       `json:"error,omitempty"`
}

// DescribeTableInput is the input for the DescribeTable tool.
type DescribeTableInput struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`
}

// ColumnInfo describes a single column.
type ColumnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"data_type"`
	Nullable bool   `json:"nullable"`
}

// ColumnMeta is a curated dimension or measure from the metadata schema.
type ColumnMeta struct {
	Name        string `json:"name"`
	Type        string `json:"data_type,omitempty"`
	Description string `json:"description,omitempty"`
}

// ColumnStats holds sample statistics for one column.
type ColumnStats struct {
	Column        string `json:"column"`
	Type          string `json:"data_type"`
	Min           any    `json:"min"`
	Max           any    `json:"max"`
	DistinctCount *int64 `json:"distinct_count"`
}

// DescribeTableOutput is the output of the DescribeTable tool.
type DescribeTableOutput struct {
	Schema        string        `json:"schema"`
	Table         string        `json:"table"`
	Description   string        `json:"description"`
	Grain         string        `json:"grain"`
	Columns       []ColumnInfo  `json:"columns"`
	Dimensions    []ColumnMeta  `json:"dimensions"`
	Measures      []ColumnMeta  `json:"measures"`
	SampleColumns []ColumnStats `json:"sample_columns"`
	Error         string        `json:"error,omitempty"`
	Hint          string        `json:"hint,omitempty"`
	Suggestions   []string      `json:"suggestions,omitempty"`
}

// PreviewRowsInput is the input for the PreviewRows tool.
type PreviewRowsInput struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Limit  int    `json:"limit,omitempty"`
}

// PreviewRowsOutput is the output of the PreviewRows tool.
type PreviewRowsOutput struct {
	Schema      string           `json:"schema"`
	Table       string           `json:"table"`
	Columns     []string         `json:"columns"`
	Rows        []map[string]any `json:"rows"`
	RowCount    int              `json:"row_count"`
	Error       string           `json:"error,omitempty"`
	Hint        string           `json:"hint,omitempty"`
	Suggestions []string         `json:"suggestions,omitempty"`
}

// RowCountInput is the input for the RowCount tool.
type RowCountInput struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`
}

// RowCountOutput carries the planner estimate and, when the count succeeds,
// the exact row count. RowExact is nil when the exact count failed.
type RowCountOutput struct {
	Schema      string   `json:"schema"`
	Table       string   `json:"table"`
	RowEstimate int64    `json:"row_estimate"`
	RowExact    *int64   `json:"row_exact"`
	Error       string   `json:"error,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// SearchInput is the input for the Search tool.
type SearchInput struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

// ColumnMatch is a column-level search hit.
type ColumnMatch struct {
	Schema      string `json:"schema"`
	Table       string `json:"table"`
	Column      string `json:"column"`
	DataType    string `json:"data_type,omitempty"`
	Description string `json:"description,omitempty"`
	MatchedIn   string `json:"matched_in,omitempty"`
}

// SearchOutput is the output of the Search tool.
type SearchOutput struct {
	Query               string             `json:"query"`
	Keywords            []string           `json:"keywords"`
	UsedSessionFallback bool               `json:"used_session_fallback,omitempty"`
	Schemas             []string           `json:"schemas"`
	Tables              []resolve.TableRef `json:"tables"`
	Columns             []ColumnMatch      `json:"columns"`
	Error               string             `json:"error,omitempty"`
}
