package dwmcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/warelens/dwmcp/internal/guard"
)

// Query executes the full ad-hoc pipeline and returns only QueryOutput.
// All errors (guard rejections, pool errors, store errors) are converted to
// output.Error, enriched with error-prompt hints and — for missing-relation
// errors — resolver suggestions. Callers only need to check output.Error.
func (p *WarehouseMcp) Query(ctx context.Context, input QueryInput) *QueryOutput {
	startTime := time.Now()
	sql := input.SQL

	// 1. Acquire semaphore (respects context cancellation to prevent deadlock)
	release, err := p.acquireSlot(ctx, "Query")
	if err != nil {
		return p.handleQueryError(ctx, sql, err)
	}
	defer release()

	// 2. Check SQL length before any processing
	if len(sql) > p.config.Query.MaxSQLLength {
		return p.handleQueryError(ctx, sql, fmt.Errorf("SQL query too long: %d bytes exceeds maximum of %d bytes", len(sql), p.config.Query.MaxSQLLength))
	}

	// 3. Guard: SELECT-only, denylists, LIMIT injection
	safe, err := p.guard.Sanitize(sql)
	if err != nil {
		return p.handleQueryError(ctx, sql, err)
	}

	// 4. Acquire connection and execute. No explicit transaction — sessions
	// are autocommit read-only, so a failed statement cannot leave the
	// connection aborted for the next borrower.
	conn, err := p.db.Acquire(ctx)
	if err != nil {
		return p.handleQueryError(ctx, sql, err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, safe.Cleaned)
	if err != nil {
		return p.handleQueryError(ctx, sql, err)
	}

	// 5. Collect results
	result, err := collectRows(rows)
	if err != nil {
		return p.handleQueryError(ctx, sql, err)
	}
	result.AppliedLimit = safe.AppliedLimit

	// 6. Apply masking (per-field, recursive into JSONB/arrays)
	result.Rows = p.masker.Rows(result.Rows)

	// 7. Apply max result length truncation
	p.truncateIfNeeded(result)

	// 8. Remember the table this query touched for follow-up disambiguation
	if schema, table, ok := extractTableRef(safe.Cleaned); ok {
		p.session.Update(schema, table)
	}

	logEvent := p.logger.Info().
		Str("sql", truncateForLog(safe.Cleaned, 200)).
		Dur("duration", time.Since(startTime)).
		Int("row_count", result.RowCount)
	if safe.AppliedLimit {
		logEvent = logEvent.Bool("applied_limit", true)
	}
	if p.masker.HasRules() {
		logEvent = logEvent.Bool("masked", true)
	}
	logEvent.Msg("query executed")

	return result
}

// collectRows reads all rows from pgx.Rows into a QueryOutput.
func collectRows(rows pgx.Rows) (*QueryOutput, error) {
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		columns[i] = fd.Name
	}

	resultRows := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = convertValue(values[i])
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &QueryOutput{Columns: columns, Rows: resultRows, RowCount: len(resultRows)}, nil
}

// convertValue converts a pgx-returned value to a JSON-friendly Go type.
func convertValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case float32:
		return convertFloat(float64(val))
	case float64:
		return convertFloat(val)
	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		if val.NaN {
			return "NaN"
		}
		if val.InfinityModifier == pgtype.Infinity {
			return "Infinity"
		}
		if val.InfinityModifier == pgtype.NegativeInfinity {
			return "-Infinity"
		}
		b, err := val.MarshalJSON()
		if err != nil {
			return nil
		}
		return string(b)
	case [16]byte:
		// UUID
		return fmt.Sprintf("%x-%x-%x-%x-%x", val[0:4], val[4:6], val[6:8], val[8:10], val[10:16])
	case []byte:
		// bytea — base64 encode
		return base64.StdEncoding.EncodeToString(val)
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, inner := range val {
			result[k] = convertValue(inner)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, inner := range val {
			result[i] = convertValue(inner)
		}
		return result
	default:
		return val
	}
}

func convertFloat(f float64) any {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	return f
}

// missingRelationRe matches the store's "relation ... does not exist" error
// shape; the capture may be schema-qualified or bare.
var missingRelationRe = regexp.MustCompile(`relation "([^"]+)" does not exist`)

// tableRefRe extracts the first schema.table reference after FROM.
var tableRefRe = regexp.MustCompile(`(?i)\bfrom\s+([a-zA-Z_][\w$]*)\.([a-zA-Z_][\w$]*)`)

func extractTableRef(sql string) (schema, table string, ok bool) {
	m := tableRefRe.FindStringSubmatch(sql)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// handleQueryError converts any error into a QueryOutput. The message is
// evaluated against error prompts; a missing-relation error additionally
// re-invokes the resolver so the caller gets ranked alternatives.
func (p *WarehouseMcp) handleQueryError(ctx context.Context, sql string, err error) *QueryOutput {
	errMsg := err.Error()
	output := &QueryOutput{Error: errMsg}

	if hint := p.errPrompts.Match(errMsg); hint != "" {
		output.Hint = hint
	}

	// Guard rejections carry their own actionable reason; nothing to enrich.
	var rejected *guard.RejectedQueryError
	if errors.As(err, &rejected) {
		p.logger.Error().Err(err).Msg("query rejected")
		return output
	}

	if m := missingRelationRe.FindStringSubmatch(errMsg); m != nil {
		schema, table := splitQualified(m[1])
		if schema == "" {
			// Bare relation name: fall back to the query text, then the
			// session's last schema.
			if s, _, ok := extractTableRef(sql); ok {
				schema = s
			} else {
				schema = p.session.LastSchema()
			}
		}
		if schema != "" {
			result := p.resolver.Resolve(ctx, schema, table)
			output.Suggestions = result.Suggestions
			if result.Message != "" {
				if output.Hint != "" {
					output.Hint += "\n"
				}
				output.Hint += result.Message
			}
		}
	}

	logEvent := p.logger.Error().Err(err)
	if patterns := p.errPrompts.MatchedPatterns(errMsg); len(patterns) > 0 {
		logEvent = logEvent.Strs("error_prompts", patterns)
	}
	logEvent.Msg("query error")

	return output
}

// splitQualified splits "schema.table" into its parts; schema is empty when
// the name is unqualified.
func splitQualified(name string) (schema, table string) {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// truncateIfNeeded truncates query output rows if their JSON encoding
// exceeds MaxResultLength characters.
func (p *WarehouseMcp) truncateIfNeeded(output *QueryOutput) {
	jsonBytes, _ := json.Marshal(output.Rows)
	jsonStr := string(jsonBytes)
	if utf8.RuneCountInString(jsonStr) <= p.config.Query.MaxResultLength {
		return
	}
	runes := []rune(jsonStr)
	truncated := string(runes[:p.config.Query.MaxResultLength])
	output.Rows = nil
	output.Error = truncated + "...[truncated] Result is too long! Add limits in your query!"
}

// truncateForLog truncates a string for log output to avoid oversized log
// entries.
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	truncateAt := maxLen
	for truncateAt > 0 && !utf8.RuneStart(s[truncateAt]) {
		truncateAt--
	}
	return s[:truncateAt] + "...[truncated]"
}
