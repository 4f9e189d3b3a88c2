package dwmcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const columnsSQL = `
SELECT column_name,
       data_type,
       CASE is_nullable WHEN 'YES' THEN true ELSE false END AS nullable
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position;
`

const tableDescriptionSQL = `
SELECT description, grain
FROM metadata.table_description
WHERE schema_name = $1 AND table_name = $2;
`

const columnRolesSQL = `
SELECT column_name, description, role
FROM metadata.column_description
WHERE schema_name = $1 AND table_name = $2;
`

const sampleColumnCount = 5

// DescribeTable returns a table's columns, curated dimension/measure
// metadata, and sample statistics for its first columns. A missing table is
// answered with resolver suggestions instead of a bare error.
func (p *WarehouseMcp) DescribeTable(ctx context.Context, input DescribeTableInput) *DescribeTableOutput {
	startTime := time.Now()

	output := &DescribeTableOutput{
		Schema:        input.Schema,
		Table:         input.Table,
		Columns:       []ColumnInfo{},
		Dimensions:    []ColumnMeta{},
		Measures:      []ColumnMeta{},
		SampleColumns: []ColumnStats{},
	}

	release, err := p.acquireSlot(ctx, "DescribeTable")
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

	// 1. Columns. An empty result means the table does not exist under this
	// name — enrich with resolver suggestions instead of guessing.
	rows, err := conn.Query(queryCtx, columnsSQL, input.Schema, input.Table)
	if err != nil {
		output.Error = err.Error()
		output.Hint = p.errPrompts.Match(output.Error)
		return output
	}
	for rows.Next() {
		var col ColumnInfo
		if err := rows.Scan(&col.Name, &col.Type, &col.Nullable); err != nil {
			rows.Close()
			output.Error = err.Error()
			return output
		}
		output.Columns = append(output.Columns, col)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		output.Error = err.Error()
		return output
	}

	if len(output.Columns) == 0 {
		result := p.resolver.Resolve(ctx, input.Schema, input.Table)
		output.Error = fmt.Sprintf("table not found: %s.%s", input.Schema, input.Table)
		output.Hint = result.Message
		output.Suggestions = result.Suggestions
		return output
	}

	// 2. Curated metadata. The metadata schema is optional; failures here
	// are swallowed and the fields stay empty.
	p.fetchTableMeta(queryCtx, conn, input, output)
	p.fetchColumnRoles(queryCtx, conn, input, output)

	// 3. Sample stats on the first columns. Per-column failures (e.g. a
	// type without MIN/MAX) leave nil stats for that column.
	p.fetchSampleStats(queryCtx, conn, input, output)

	p.session.Update(input.Schema, input.Table)

	p.logger.Info().
		Str("schema", input.Schema).
		Str("table", input.Table).
		Dur("duration", time.Since(startTime)).
		Int("column_count", len(output.Columns)).
		Msg("DescribeTable executed")

	return output
}

func (p *WarehouseMcp) fetchTableMeta(ctx context.Context, conn *pgxpool.Conn, input DescribeTableInput, output *DescribeTableOutput) {
	var description, grain string
	err := conn.QueryRow(ctx, tableDescriptionSQL, input.Schema, input.Table).Scan(&description, &grain)
	if err != nil {
		if err != pgx.ErrNoRows {
			p.logger.Debug().Err(err).Msg("table description lookup failed")
		}
		return
	}
	output.Description = description
	output.Grain = grain
}

func (p *WarehouseMcp) fetchColumnRoles(ctx context.Context, conn *pgxpool.Conn, input DescribeTableInput, output *DescribeTableOutput) {
	rows, err := conn.Query(ctx, columnRolesSQL, input.Schema, input.Table)
	if err != nil {
		p.logger.Debug().Err(err).Msg("column description lookup failed")
		return
	}
	defer rows.Close()

	types := make(map[string]string, len(output.Columns))
	for _, col := range output.Columns {
		types[col.Name] = col.Type
	}

	for rows.Next() {
		var name, description, role string
		if err := rows.Scan(&name, &description, &role); err != nil {
			return
		}
		meta := ColumnMeta{Name: name, Type: types[name], Description: description}
		if role == "dimension" {
			output.Dimensions = append(output.Dimensions, meta)
		} else {
			output.Measures = append(output.Measures, meta)
		}
	}
}

func (p *WarehouseMcp) fetchSampleStats(ctx context.Context, conn *pgxpool.Conn, input DescribeTableInput, output *DescribeTableOutput) {
	sample := output.Columns
	if len(sample) > sampleColumnCount {
		sample = sample[:sampleColumnCount]
	}

	qualName := quoteIdent(input.Schema) + "." + quoteIdent(input.Table)
	for _, col := range sample {
		stats := ColumnStats{Column: col.Name, Type: col.Type}
		ident := quoteIdent(col.Name)
		sql := fmt.Sprintf("SELECT MIN(%s), MAX(%s), COUNT(DISTINCT %s) FROM %s;", ident, ident, ident, qualName)

		var minVal, maxVal any
		var distinct int64
		if err := conn.QueryRow(ctx, sql).Scan(&minVal, &maxVal, &distinct); err == nil {
			stats.Min = convertValue(minVal)
			stats.Max = convertValue(maxVal)
			stats.DistinctCount = &distinct
		}
		output.SampleColumns = append(output.SampleColumns, stats)
	}
}

// quoteIdent escapes a SQL identifier: doubles embedded double-quotes and
// wraps in double-quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
