package dwmcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterMCPTools registers the warehouse exploration and query tools on
// the given MCP server. Domain failures (unknown table, rejected query) are
// returned as tool text so the calling agent sees the hints and suggestions
// in the payload; only missing parameters produce a tool error.
func RegisterMCPTools(mcpServer *server.MCPServer, wm *WarehouseMcp) {
	// Query tool
	queryTool := mcp.NewTool("query",
		mcp.WithDescription("Execute a read-only SQL query against the warehouse. Only SELECT statements are accepted; a LIMIT is appended when the query has none. Returns results as JSON, with hints and table suggestions on failure."),
		mcp.WithString("sql",
			mcp.Required(),
			mcp.Description("The SELECT query to execute"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(queryTool, wm.loggedToolHandler("query", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sql, err := req.RequireString("sql")
		if err != nil {
			return mcp.NewToolResultError("sql parameter is required"), nil
		}
		return marshalToolResult(wm.Query(ctx, QueryInput{SQL: sql}))
	}))

	// Report tool
	reportTool := mcp.NewTool("report",
		mcp.WithDescription("Build and run an aggregation over the monthly portfolio metrics table from a structured request. Safer than raw SQL for standard reporting questions."),
		mcp.WithString("from_month",
			mcp.Required(),
			mcp.Description("Start month, inclusive, in YYYY-MM format"),
		),
		mcp.WithString("to_month",
			mcp.Required(),
			mcp.Description("End month, inclusive, in YYYY-MM format"),
		),
		mcp.WithArray("group_by",
			mcp.Required(),
			mcp.Description("Dimensions to group by: region, product, channel, portfolio, month"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithArray("metrics",
			mcp.Required(),
			mcp.Description("Metrics to aggregate: pos, recovered_amount, accounts, recovery_rate, contact_rate"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("product_name",
			mcp.Description("Optional exact product name filter"),
		),
		mcp.WithObject("filters",
			mcp.Description("Optional dimension filters as {\"dimension\": \"value\"}; unknown dimensions are ignored"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(reportTool, wm.loggedToolHandler("report", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		fromMonth, err := req.RequireString("from_month")
		if err != nil {
			return mcp.NewToolResultError("from_month parameter is required"), nil
		}
		toMonth, err := req.RequireString("to_month")
		if err != nil {
			return mcp.NewToolResultError("to_month parameter is required"), nil
		}
		input := ReportInput{
			FromMonth:   fromMonth,
			ToMonth:     toMonth,
			GroupBy:     req.GetStringSlice("group_by", nil),
			Metrics:     req.GetStringSlice("metrics", nil),
			ProductName: req.GetString("product_name", ""),
			Filters:     stringMapArgument(req, "filters"),
		}
		return marshalToolResult(wm.Report(ctx, input))
	}))

	// ResolveTable tool
	resolveTool := mcp.NewTool("resolve_table",
		mcp.WithDescription("Check whether a table exists in a schema. Returns close-match suggestions and other schemas holding a table of that name when it does not."),
		mcp.WithString("schema",
			mcp.Required(),
			mcp.Description("The schema to look in"),
		),
		mcp.WithString("table",
			mcp.Required(),
			mcp.Description("The table name to resolve"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(resolveTool, wm.loggedToolHandler("resolve_table", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		schema, err := req.RequireString("schema")
		if err != nil {
			return mcp.NewToolResultError("schema parameter is required"), nil
		}
		table, err := req.RequireString("table")
		if err != nil {
			return mcp.NewToolResultError("table parameter is required"), nil
		}
		return marshalToolResult(wm.ResolveTable(ctx, ResolveTableInput{Schema: schema, Table: table}))
	}))

	// ListSchemas tool
	listSchemasTool := mcp.NewTool("list_schemas",
		mcp.WithDescription("List the warehouse schemas available for exploration. Served from a short-lived cache; set force_refresh to bypass it."),
		mcp.WithBoolean("force_refresh",
			mcp.Description("Bypass the cache and reload from the database"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(listSchemasTool, wm.loggedToolHandler("list_schemas", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		input := MetadataInput{Kind: MetadataSchemas, ForceRefresh: req.GetBool("force_refresh", false)}
		return marshalToolResult(wm.GetMetadata(ctx, input))
	}))

	// ListTables tool
	listTablesTool := mcp.NewTool("list_tables",
		mcp.WithDescription("List the tables in a schema with estimated row counts and curated descriptions where available."),
		mcp.WithString("schema",
			mcp.Required(),
			mcp.Description("The schema to list tables for"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(listTablesTool, wm.loggedToolHandler("list_tables", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		schema, err := req.RequireString("schema")
		if err != nil {
			return mcp.NewToolResultError("schema parameter is required"), nil
		}
		return marshalToolResult(wm.ListTables(ctx, ListTablesInput{Schema: schema}))
	}))

	// FindTable tool
	findTableTool := mcp.NewTool("find_table",
		mcp.WithDescription("Find which schemas contain a table with the given name."),
		mcp.WithString("table",
			mcp.Required(),
			mcp.Description("The table name to search for"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(findTableTool, wm.loggedToolHandler("find_table", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		table, err := req.RequireString("table")
		if err != nil {
			return mcp.NewToolResultError("table parameter is required"), nil
		}
		input := MetadataInput{Kind: MetadataTableSchemas, Table: table}
		return marshalToolResult(wm.GetMetadata(ctx, input))
	}))

	// DescribeTable tool
	describeTableTool := mcp.NewTool("describe_table",
		mcp.WithDescription("Describe a table: columns and types, curated dimension/measure metadata, and sample min/max/distinct statistics for its first columns."),
		mcp.WithString("schema",
			mcp.Required(),
			mcp.Description("The schema name"),
		),
		mcp.WithString("table",
			mcp.Required(),
			mcp.Description("The table name to describe"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(describeTableTool, wm.loggedToolHandler("describe_table", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		schema, err := req.RequireString("schema")
		if err != nil {
			return mcp.NewToolResultError("schema parameter is required"), nil
		}
		table, err := req.RequireString("table")
		if err != nil {
			return mcp.NewToolResultError("table parameter is required"), nil
		}
		return marshalToolResult(wm.DescribeTable(ctx, DescribeTableInput{Schema: schema, Table: table}))
	}))

	// PreviewRows tool
	previewTool := mcp.NewTool("preview_rows",
		mcp.WithDescription("Fetch a handful of rows from a table to see what the data looks like."),
		mcp.WithString("schema",
			mcp.Required(),
			mcp.Description("The schema name"),
		),
		mcp.WithString("table",
			mcp.Required(),
			mcp.Description("The table name to preview"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Number of rows to return (default 10)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(previewTool, wm.loggedToolHandler("preview_rows", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		schema, err := req.RequireString("schema")
		if err != nil {
			return mcp.NewToolResultError("schema parameter is required"), nil
		}
		table, err := req.RequireString("table")
		if err != nil {
			return mcp.NewToolResultError("table parameter is required"), nil
		}
		input := PreviewRowsInput{Schema: schema, Table: table, Limit: req.GetInt("limit", 0)}
		return marshalToolResult(wm.PreviewRows(ctx, input))
	}))

	// RowCount tool
	rowCountTool := mcp.NewTool("row_count",
		mcp.WithDescription("Get a table's row count: the planner's estimate always, plus an exact count when it finishes quickly."),
		mcp.WithString("schema",
			mcp.Required(),
			mcp.Description("The schema name"),
		),
		mcp.WithString("table",
			mcp.Required(),
			mcp.Description("The table name to count"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(rowCountTool, wm.loggedToolHandler("row_count", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		schema, err := req.RequireString("schema")
		if err != nil {
			return mcp.NewToolResultError("schema parameter is required"), nil
		}
		table, err := req.RequireString("table")
		if err != nil {
			return mcp.NewToolResultError("table parameter is required"), nil
		}
		return marshalToolResult(wm.RowCount(ctx, RowCountInput{Schema: schema, Table: table}))
	}))

	// Search tool
	searchTool := mcp.NewTool("search",
		mcp.WithDescription("Search schema, table, and column names (and curated descriptions) for the keywords of a free-text question. Use this when you do not know where some data lives."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("A free-text question or set of keywords"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum column matches to return"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	mcpServer.AddTool(searchTool, wm.loggedToolHandler("search", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query parameter is required"), nil
		}
		input := SearchInput{Query: query, MaxResults: req.GetInt("max_results", 0)}
		return marshalToolResult(wm.Search(ctx, input))
	}))
}

// marshalToolResult encodes a tool output struct as JSON text.
func marshalToolResult(output any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return mcp.NewToolResultError("failed to marshal tool result"), nil
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// stringMapArgument reads an object argument as a string-to-string map,
// dropping non-string values.
func stringMapArgument(req mcp.CallToolRequest, key string) map[string]string {
	args := req.GetArguments()
	raw, ok := args[key].(map[string]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// loggedToolHandler wraps a tool handler to log request and response lengths.
func (p *WarehouseMcp) loggedToolHandler(tool string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reqLen := requestLength(req)
		result, err := handler(ctx, req)
		respLen := resultLength(result)
		p.logger.Info().
			Str("tool", tool).
			Int("request_bytes", reqLen).
			Int("response_bytes", respLen).
			Msg("tool call")
		return result, err
	}
}

// requestLength returns the JSON-encoded byte length of the request arguments.
func requestLength(req mcp.CallToolRequest) int {
	args := req.GetArguments()
	if len(args) == 0 {
		return 0
	}
	b, err := json.Marshal(args)
	if err != nil {
		return 0
	}
	return len(b)
}

// resultLength returns the total byte length of text content in a CallToolResult.
func resultLength(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	total := 0
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			total += len(tc.Text)
		}
	}
	return total
}
