package dwmcp

import (
	"context"
	"fmt"
	"time"
)

// GetMetadata is a thin pass-through to the metadata cache. Store errors
// are reported in output.Error alongside whatever the cache could still
// answer — metadata exploration never hard-fails an operation that has a
// sensible empty answer.
func (p *WarehouseMcp) GetMetadata(ctx context.Context, input MetadataInput) *MetadataOutput {
	startTime := time.Now()
	output := &MetadataOutput{}

	switch input.Kind {
	case MetadataSchemas:
		schemas, err := p.cache.ListSchemas(ctx, input.ForceRefresh)
		if err != nil {
			output.Error = err.Error()
		}
		output.Schemas = emptyIfNil(schemas)

	case MetadataTables:
		if input.Schema == "" {
			output.Error = "schema is required for kind 'tables'"
			break
		}
		tables, err := p.cache.ListTables(ctx, input.Schema, input.ForceRefresh)
		if err != nil {
			output.Error = err.Error()
		}
		output.Tables = emptyIfNil(tables)
		if err == nil {
			p.session.Update(input.Schema, "")
		}

	case MetadataTableSchemas:
		if input.Table == "" {
			output.Error = "table is required for kind 'table_schemas'"
			break
		}
		schemas, err := p.cache.FindSchemasForTable(ctx, input.Table)
		if err != nil {
			output.Error = err.Error()
		}
		output.TableSchemas = emptyIfNil(schemas)

	default:
		output.Error = fmt.Sprintf("unknown metadata kind %q: use %q, %q, or %q",
			input.Kind, MetadataSchemas, MetadataTables, MetadataTableSchemas)
	}

	p.logger.Info().
		Str("kind", input.Kind).
		Dur("duration", time.Since(startTime)).
		Bool("force_refresh", input.ForceRefresh).
		Msg("GetMetadata executed")

	return output
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
