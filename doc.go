// Package dwmcp provides safe, guided data-warehouse exploration for AI
// agents through the Model Context Protocol (MCP).
//
// It exposes exploration tools (list_schemas, list_tables, find_table,
// describe_table, preview_rows, row_count, search), a read-only query tool
// with keyword and pattern guarding, and a structured report tool that
// builds whitelisted aggregations over a metrics table without the agent
// writing SQL at all.
//
// Safety comes in layers. Sessions are opened read-only at the connection
// level (default_transaction_read_only), the query guard accepts only
// SELECT statements and rejects known-dangerous keywords and patterns, a
// LIMIT is appended to unbounded queries, and concurrency is capped by a
// semaphore sized to the pool. Schema and table metadata is cached with a
// TTL, and a table resolver turns typos like "custmers" into concrete
// suggestions instead of raw SQL errors.
//
// # Library Usage
//
//	wm, err := dwmcp.New(ctx, connString, dwmcp.Config{
//		Pool: dwmcp.PoolConfig{MaxConns: 10},
//		Cache: dwmcp.CacheConfig{
//			TTLSeconds:     300,
//			SchemaPrefixes: []string{"collections_", "recovery_"},
//			SchemaNames:    []string{"gold"},
//		},
//		Query: dwmcp.QueryConfig{DefaultLimit: 200},
//	}, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer wm.Close(ctx)
//
//	// Use directly
//	output := wm.Query(ctx, dwmcp.QueryInput{SQL: "SELECT * FROM gold.monthly_portfolio_metrics"})
//
//	// Or register as MCP tools
//	dwmcp.RegisterMCPTools(mcpServer, wm)
//
// The database pool is created lazily on first use, so New succeeds even
// when the warehouse is briefly unreachable at startup.
package dwmcp
