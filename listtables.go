package dwmcp

import (
	"context"
	"time"
)

const tableEstimatesSQL = `
SELECT c.relname AS table_name,
       c.reltuples::bigint AS row_estimate
FROM pg_catalog.pg_class c
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1 AND c.relkind = 'r'
ORDER BY c.relname;
`

const tableDescriptionsSQL = `
SELECT table_name, description
FROM metadata.table_description
WHERE schema_name = $1;
`

// ListTables returns the tables in a schema with planner row estimates and
// curated descriptions. Discovered names are merged into the metadata cache
// so later resolutions benefit from this listing.
func (p *WarehouseMcp) ListTables(ctx context.Context, input ListTablesInput) *ListTablesOutput {
	startTime := time.Now()
	output := &ListTablesOutput{Schema: input.Schema, Tables: []TableEntry{}}

	if input.Schema == "" {
		output.Error = "schema is required"
		return output
	}

	release, err := p.acquireSlot(ctx, "ListTables")
	if err != nil {
		output.Error = err.Error()
		return output
	}
	defer release()

	queryCtx, cancel := context.WithTimeout(ctx, p.metadataTimeout())
	defer cancel()

	conn, err := p.db.Acquire(queryCtx)
	if err != nil {
		output.Error = err.Error()
		return output
	}
	defer conn.Release()

	// Curated descriptions live in an optional metadata schema; absence is
	// not an error.
	descriptions := make(map[string]string)
	if rows, err := conn.Query(queryCtx, tableDescriptionsSQL, input.Schema); err == nil {
		for rows.Next() {
			var name, desc string
			if err := rows.Scan(&name, &desc); err != nil {
				break
			}
			descriptions[name] = desc
		}
		rows.Close()
	}

	rows, err := conn.Query(queryCtx, tableEstimatesSQL, input.Schema)
	if err != nil {
		output.Error = err.Error()
		return output
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var entry TableEntry
		if err := rows.Scan(&entry.Name, &entry.RowEstimate); err != nil {
			output.Error = err.Error()
			return output
		}
		entry.Description = descriptions[entry.Name]
		output.Tables = append(output.Tables, entry)
		names = append(names, entry.Name)
	}
	if err := rows.Err(); err != nil {
		output.Error = err.Error()
		return output
	}

	// Opportunistic cache improvement: this listing just proved these
	// tables exist.
	p.cache.MergeKnownTables(input.Schema, names)
	p.session.Update(input.Schema, "")

	p.logger.Info().
		Str("schema", input.Schema).
		Dur("duration", time.Since(startTime)).
		Int("table_count", len(output.Tables)).
		Msg("ListTables executed")

	return output
}
