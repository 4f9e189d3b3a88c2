package dwmcp

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warelens/dwmcp/internal/resolve"
)

const (
	searchSchemaLimit = 20
	searchTableLimit  = 30
	searchColumnLimit = 50
	minKeywordLength  = 4
)

const searchSchemasSQL = `
SELECT schema_name
FROM information_schema.schemata
WHERE schema_name ILIKE $1
ORDER BY schema_name
LIMIT $2;
`

const searchTablesSQL = `
SELECT table_schema, table_name
FROM information_schema.tables
WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
  AND table_name ILIKE $1
ORDER BY table_schema, table_name
LIMIT $2;
`

const searchColumnsSQL = `
SELECT table_schema, table_name, column_name, data_type
FROM information_schema.columns
WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
  AND column_name ILIKE $1
ORDER BY table_schema, table_name, ordinal_position
LIMIT $2;
`

const searchDescriptionsSQL = `
SELECT schema_name, table_name, column_name, description
FROM metadata.column_description
WHERE description ILIKE $1
LIMIT $2;
`

// Search finds schemas, tables, and columns whose names (or curated
// descriptions) match the keywords of a free-text question. When the
// question yields no usable keywords the session's last table is searched
// instead, so follow-up questions like "describe it further" still land
// somewhere sensible.
func (p *WarehouseMcp) Search(ctx context.Context, input SearchInput) *SearchOutput {
	startTime := time.Now()

	output := &SearchOutput{
		Query:    input.Query,
		Keywords: []string{},
		Schemas:  []string{},
		Tables:   []resolve.TableRef{},
		Columns:  []ColumnMatch{},
	}

	output.Keywords = extractKeywords(input.Query)
	if len(output.Keywords) == 0 {
		fallback := p.session.LastTable()
		if fallback == "" {
			fallback = p.session.LastSchema()
		}
		if fallback == "" {
			output.Error = "no search keywords found and no session context to fall back on"
			return output
		}
		output.Keywords = []string{fallback}
		output.UsedSessionFallback = true
	}

	maxResults := input.MaxResults
	if maxResults <= 0 || maxResults > searchColumnLimit {
		maxResults = searchColumnLimit
	}

	release, err := p.acquireSlot(ctx, "Search")
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

	queryCtx, cancel := context.WithTimeout(ctx, p.metadataTimeout())
	defer cancel()

	seenSchemas := map[string]struct{}{}
	seenTables := map[resolve.TableRef]struct{}{}
	seenColumns := map[string]struct{}{}

	for _, keyword := range output.Keywords {
		pattern := "%" + keyword + "%"

		rows, err := conn.Query(queryCtx, searchSchemasSQL, pattern, searchSchemaLimit)
		if err != nil {
			output.Error = err.Error()
			return output
		}
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				rows.Close()
				output.Error = err.Error()
				return output
			}
			if _, ok := seenSchemas[name]; !ok && len(output.Schemas) < searchSchemaLimit {
				seenSchemas[name] = struct{}{}
				output.Schemas = append(output.Schemas, name)
			}
		}
		rows.Close()

		rows, err = conn.Query(queryCtx, searchTablesSQL, pattern, searchTableLimit)
		if err != nil {
			output.Error = err.Error()
			return output
		}
		for rows.Next() {
			var ref resolve.TableRef
			if err := rows.Scan(&ref.Schema, &ref.Table); err != nil {
				rows.Close()
				output.Error = err.Error()
				return output
			}
			if _, ok := seenTables[ref]; !ok && len(output.Tables) < searchTableLimit {
				seenTables[ref] = struct{}{}
				output.Tables = append(output.Tables, ref)
			}
		}
		rows.Close()

		rows, err = conn.Query(queryCtx, searchColumnsSQL, pattern, searchColumnLimit)
		if err != nil {
			output.Error = err.Error()
			return output
		}
		for rows.Next() {
			var match ColumnMatch
			if err := rows.Scan(&match.Schema, &match.Table, &match.Column, &match.DataType); err != nil {
				rows.Close()
				output.Error = err.Error()
				return output
			}
			match.MatchedIn = "name"
			key := match.Schema + "." + match.Table + "." + match.Column
			if _, ok := seenColumns[key]; !ok && len(output.Columns) < maxResults {
				seenColumns[key] = struct{}{}
				output.Columns = append(output.Columns, match)
			}
		}
		rows.Close()

		// Curated descriptions are optional; a missing metadata schema is
		// not an error.
		p.searchDescriptions(queryCtx, conn, pattern, maxResults, seenColumns, output)
	}

	p.mergeSearchHits(output)

	p.logger.Info().
		Strs("keywords", output.Keywords).
		Bool("session_fallback", output.UsedSessionFallback).
		Int("schema_hits", len(output.Schemas)).
		Int("table_hits", len(output.Tables)).
		Int("column_hits", len(output.Columns)).
		Dur("duration", time.Since(startTime)).
		Msg("Search executed")

	return output
}

func (p *WarehouseMcp) searchDescriptions(ctx context.Context, conn *pgxpool.Conn, pattern string, maxResults int, seen map[string]struct{}, output *SearchOutput) {
	rows, err := conn.Query(ctx, searchDescriptionsSQL, pattern, searchColumnLimit)
	if err != nil {
		p.logger.Debug().Err(err).Msg("description search skipped")
		return
	}
	defer rows.Close()
	for rows.Next() {
		var match ColumnMatch
		if err := rows.Scan(&match.Schema, &match.Table, &match.Column, &match.Description); err != nil {
			return
		}
		match.MatchedIn = "description"
		key := match.Schema + "." + match.Table + "." + match.Column
		if _, ok := seen[key]; !ok && len(output.Columns) < maxResults {
			seen[key] = struct{}{}
			output.Columns = append(output.Columns, match)
		}
	}
}

// extractKeywords lowercases a question and keeps the words long enough to
// be meaningful search terms.
func extractKeywords(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r != '_'
	})
	seen := map[string]struct{}{}
	keywords := []string{}
	for _, f := range fields {
		if len(f) < minKeywordLength {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		keywords = append(keywords, f)
	}
	return keywords
}

// mergeSearchHits feeds discovered tables into the metadata cache so later
// resolver calls know about them without another catalog round trip.
func (p *WarehouseMcp) mergeSearchHits(output *SearchOutput) {
	bySchema := map[string][]string{}
	for _, ref := range output.Tables {
		bySchema[ref.Schema] = append(bySchema[ref.Schema], ref.Table)
	}
	for _, match := range output.Columns {
		bySchema[match.Schema] = append(bySchema[match.Schema], match.Table)
	}
	schemas := make([]string, 0, len(bySchema))
	for schema := range bySchema {
		schemas = append(schemas, schema)
	}
	sort.Strings(schemas)
	for _, schema := range schemas {
		p.cache.MergeKnownTables(schema, bySchema[schema])
	}
}
