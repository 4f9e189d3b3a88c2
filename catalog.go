package dwmcp

import (
	"context"
	"fmt"
	"strings"
)

const schemasForTableSQL = `
SELECT table_schema
FROM information_schema.tables
WHERE table_name = $1
  AND table_schema NOT IN ('information_schema', 'pg_catalog', 'pg_toast')
ORDER BY table_schema;
`

const tableNamesSQL = `
SELECT table_name
FROM information_schema.tables
WHERE table_schema = $1
  AND table_type = 'BASE TABLE'
ORDER BY table_name;
`

// pgCatalog implements metacache.Catalog on top of the engine's pool.
// Each call borrows one connection for the duration of one catalog scan.
type pgCatalog struct {
	engine *WarehouseMcp
}

// SchemaNames returns schemas matching the interesting-schema naming
// convention from config: any configured prefix or exact name.
func (c *pgCatalog) SchemaNames(ctx context.Context) ([]string, error) {
	p := c.engine

	var conds []string
	var params []any
	for _, prefix := range p.config.Cache.SchemaPrefixes {
		params = append(params, prefix+"%")
		conds = append(conds, fmt.Sprintf("schema_name LIKE $%d", len(params)))
	}
	for _, name := range p.config.Cache.SchemaNames {
		params = append(params, name)
		conds = append(conds, fmt.Sprintf("schema_name = $%d", len(params)))
	}
	sql := fmt.Sprintf(
		"SELECT schema_name FROM information_schema.schemata WHERE %s ORDER BY schema_name;",
		strings.Join(conds, " OR "),
	)
	return c.queryStrings(ctx, sql, params...)
}

// TableNames returns the base table names in schema.
func (c *pgCatalog) TableNames(ctx context.Context, schema string) ([]string, error) {
	return c.queryStrings(ctx, tableNamesSQL, schema)
}

// SchemasForTable scans all non-system schemas for a table with exactly
// this name.
func (c *pgCatalog) SchemasForTable(ctx context.Context, table string) ([]string, error) {
	return c.queryStrings(ctx, schemasForTableSQL, table)
}

func (c *pgCatalog) queryStrings(ctx context.Context, sql string, params ...any) ([]string, error) {
	p := c.engine

	queryCtx, cancel := context.WithTimeout(ctx, p.metadataTimeout())
	defer cancel()

	conn, err := p.db.Acquire(queryCtx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(queryCtx, sql, params...)
	if err != nil {
		return nil, fmt.Errorf("catalog query failed: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("catalog scan failed: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
