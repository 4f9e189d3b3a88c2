package dwmcp

import (
	"context"
	"time"

	"github.com/warelens/dwmcp/internal/report"
)

// Report builds and executes a structured aggregate query against the
// configured fact table. Validation failures and store errors are returned
// in output.Error; an invalid spec never reaches the database.
func (p *WarehouseMcp) Report(ctx context.Context, input ReportInput) *ReportOutput {
	startTime := time.Now()

	release, err := p.acquireSlot(ctx, "Report")
	if err != nil {
		return &ReportOutput{Error: err.Error()}
	}
	defer release()

	sql, params, err := p.builder.Build(report.Spec{
		FromMonth:   input.FromMonth,
		ToMonth:     input.ToMonth,
		GroupBy:     input.GroupBy,
		Metrics:     input.Metrics,
		ProductName: input.ProductName,
		Filters:     input.Filters,
	})
	if err != nil {
		p.logger.Error().Err(err).Msg("report spec rejected")
		return &ReportOutput{Error: err.Error()}
	}

	conn, err := p.db.Acquire(ctx)
	if err != nil {
		return &ReportOutput{Error: err.Error()}
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, sql, params...)
	if err != nil {
		p.logger.Error().Err(err).Str("sql", sql).Msg("report query failed")
		return &ReportOutput{Error: err.Error()}
	}

	collected, err := collectRows(rows)
	if err != nil {
		return &ReportOutput{Error: err.Error()}
	}
	collected.Rows = p.masker.Rows(collected.Rows)

	p.logger.Info().
		Dur("duration", time.Since(startTime)).
		Strs("group_by", input.GroupBy).
		Strs("metrics", input.Metrics).
		Int("row_count", collected.RowCount).
		Msg("report executed")

	return &ReportOutput{
		Columns:  collected.Columns,
		Rows:     collected.Rows,
		RowCount: collected.RowCount,
	}
}
