package dwmcp

import (
	"context"
	"time"
)

// ResolveTable checks whether schema.table exists and, on a miss, proposes
// ranked alternatives. Advisory: store errors degrade to an empty answer
// inside the result rather than failing the call.
func (p *WarehouseMcp) ResolveTable(ctx context.Context, input ResolveTableInput) *ResolveTableOutput {
	startTime := time.Now()

	result := p.resolver.Resolve(ctx, input.Schema, input.Table)
	if result.Exists {
		p.session.Update(result.CanonicalSchema, input.Table)
	}

	p.logger.Info().
		Str("schema", input.Schema).
		Str("table", input.Table).
		Dur("duration", time.Since(startTime)).
		Bool("exists", result.Exists).
		Int("suggestion_count", len(result.Suggestions)).
		Msg("ResolveTable executed")

	return result
}
