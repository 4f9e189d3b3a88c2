package dwmcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const rowEstimateSQL = `
SELECT COALESCE(c.reltuples, -1)::bigint
FROM pg_catalog.pg_class c
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1 AND c.relname = $2;
`

// PreviewRows returns up to input.Limit rows from a table, capped by the
// configured preview maximum. The table is checked against the resolver
// first so a typo comes back with suggestions instead of a raw SQL error.
func (p *WarehouseMcp) PreviewRows(ctx context.Context, input PreviewRowsInput) *PreviewRowsOutput {
	startTime := time.Now()

	output := &PreviewRowsOutput{
		Schema: input.Schema,
		Table:  input.Table,
		Rows:   []map[string]any{},
	}

	release, err := p.acquireSlot(ctx, "PreviewRows")
	if err != nil {
		output.Error = err.Error()
		return output
	}
	defer release()

	result := p.resolver.Resolve(ctx, input.Schema, input.Table)
	if result.Error != "" {
		output.Error = result.Error
		return output
	}
	if !result.Exists {
		output.Error = fmt.Sprintf("table not found: %s.%s", input.Schema, input.Table)
		output.Hint = result.Message
		output.Suggestions = result.Suggestions
		return output
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > p.config.Query.PreviewMaxRows {
		limit = p.config.Query.PreviewMaxRows
	}

	conn, err := p.db.Acquire(ctx)
	if err != nil {
		output.Error = err.Error()
		return output
	}
	defer conn.Release()

	sql := fmt.Sprintf("SELECT * FROM %s.%s LIMIT $1;", quoteIdent(input.Schema), quoteIdent(input.Table))
	rows, err := conn.Query(ctx, sql, limit)
	if err != nil {
		output.Error = err.Error()
		output.Hint = p.errPrompts.Match(output.Error)
		return output
	}
	collected, err := collectRows(rows)
	if err != nil {
		output.Error = err.Error()
		return output
	}
	collected.Rows = p.masker.Rows(collected.Rows)

	output.Columns = collected.Columns
	output.Rows = collected.Rows
	output.RowCount = collected.RowCount

	p.session.Update(input.Schema, input.Table)

	p.logger.Info().
		Str("schema", input.Schema).
		Str("table", input.Table).
		Int("limit", limit).
		Int("row_count", output.RowCount).
		Dur("duration", time.Since(startTime)).
		Msg("PreviewRows executed")

	return output
}

// rowEstimateMissing reports whether the estimate lookup came back empty,
// meaning the table does not exist under this name, as opposed to the
// lookup itself failing.
func rowEstimateMissing(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// RowCount reports the planner's row estimate for a table, plus an exact
// COUNT(*) when it completes within the metadata timeout. The exact count is
// best-effort: on large tables it may time out and only the estimate is
// returned.
func (p *WarehouseMcp) RowCount(ctx context.Context, input RowCountInput) *RowCountOutput {
	startTime := time.Now()

	output := &RowCountOutput{
		Schema:      input.Schema,
		Table:       input.Table,
		RowEstimate: -1,
	}

	release, err := p.acquireSlot(ctx, "RowCount")
	if err != nil {
		output.Error = err.Error()
		return output
	}
	defer release()

	conn, err := p.db.Acquire(ctx)
	if err != nil {
		output.Error = err.Error()
		return output
	}
	defer conn.Release()

	metaCtx, cancel := context.WithTimeout(ctx, p.metadataTimeout())
	err = conn.QueryRow(metaCtx, rowEstimateSQL, input.Schema, input.Table).Scan(&output.RowEstimate)
	cancel()
	if err != nil {
		// Only an empty estimate result means the table is absent; a pool
		// error or timeout is reported as what it is.
		if !rowEstimateMissing(err) {
			output.Error = err.Error()
			return output
		}
		result := p.resolver.Resolve(ctx, input.Schema, input.Table)
		output.Error = fmt.Sprintf("table not found: %s.%s", input.Schema, input.Table)
		if result.Error != "" {
			output.Error = result.Error
		}
		output.Suggestions = result.Suggestions
		return output
	}

	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s.%s;", quoteIdent(input.Schema), quoteIdent(input.Table))
	countCtx, cancel := context.WithTimeout(ctx, p.metadataTimeout())
	var exact int64
	err = conn.QueryRow(countCtx, countSQL).Scan(&exact)
	cancel()
	if err == nil {
		output.RowExact = &exact
	} else {
		p.logger.Debug().Err(err).
			Str("schema", input.Schema).
			Str("table", input.Table).
			Msg("exact row count skipped")
	}

	p.session.Update(input.Schema, input.Table)

	p.logger.Info().
		Str("schema", input.Schema).
		Str("table", input.Table).
		Int64("row_estimate", output.RowEstimate).
		Dur("duration", time.Since(startTime)).
		Msg("RowCount executed")

	return output
}
