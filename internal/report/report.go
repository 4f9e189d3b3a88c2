// Package report builds parameterized aggregate SQL from an allow-listed
// query spec. Validation is the inverse of the ad-hoc guard's: instead of
// denying known-bad text, only identifiers drawn from closed, statically
// declared lists are ever interpolated. Every value is a bound parameter.
package report

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ValidationError reports a rejected spec field together with the allowed
// values, so a calling agent has an actionable next step.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// dimension maps a caller-facing dimension name to its column. The column
// side is what gets interpolated, and only after the name passed the
// allow-list — the single context in this system where identifier
// interpolation is safe.
var dimensions = map[string]string{
	"region":    "region",
	"product":   "product_name",
	"channel":   "channel",
	"portfolio": "portfolio",
	"month":     "month",
}

// metric maps a caller-facing metric name to a fixed aggregation over a
// column: SUM for additive measures, AVG for rate measures. The mapping is
// static and never caller-influenced.
type metric struct {
	column string
	agg    string
}

var metrics = map[string]metric{
	"pos":              {column: "pos", agg: "SUM"},
	"recovered_amount": {column: "recovered_amount", agg: "SUM"},
	"accounts":         {column: "accounts", agg: "SUM"},
	"recovery_rate":    {column: "recovery_rate", agg: "AVG"},
	"contact_rate":     {column: "contact_rate", agg: "AVG"},
}

// productNameFilter is the one filter key that is not a dimension.
const productNameFilter = "productName"

var monthRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// Spec is a structured aggregate query: validated parameters instead of
// free SQL text.
type Spec struct {
	FromMonth   string            `json:"from_month"`
	ToMonth     string            `json:"to_month"`
	GroupBy     []string          `json:"group_by"`
	Metrics     []string          `json:"metrics"`
	ProductName string            `json:"product_name,omitempty"`
	Filters     map[string]string `json:"filters,omitempty"`
}

// Builder constructs aggregate SQL against one fixed target table. The
// table is set at construction, never caller-supplied.
type Builder struct {
	targetTable string
}

// New creates a Builder for the given fact table.
func New(targetTable string) *Builder {
	if targetTable == "" {
		panic("report: target table must be non-empty")
	}
	return &Builder{targetTable: targetTable}
}

// AllowedDimensions returns the caller-facing dimension names, sorted.
func AllowedDimensions() []string {
	return sortedNames(dimensions)
}

// AllowedMetrics returns the caller-facing metric names, sorted.
func AllowedMetrics() []string {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build validates spec and returns the SQL text plus bound parameters.
// Validation is fail-fast; no SQL is constructed for an invalid spec.
func (b *Builder) Build(spec Spec) (string, []any, error) {
	if len(spec.GroupBy) == 0 {
		return "", nil, &ValidationError{Field: "group_by", Reason: "must not be empty; allowed dimensions: " + strings.Join(AllowedDimensions(), ", ")}
	}
	groupCols := make([]string, 0, len(spec.GroupBy))
	for _, name := range spec.GroupBy {
		col, ok := dimensions[name]
		if !ok {
			return "", nil, &ValidationError{Field: "group_by", Reason: fmt.Sprintf("unknown dimension %q; allowed: %s", name, strings.Join(AllowedDimensions(), ", "))}
		}
		groupCols = append(groupCols, col)
	}

	if len(spec.Metrics) == 0 {
		return "", nil, &ValidationError{Field: "metrics", Reason: "must not be empty; allowed metrics: " + strings.Join(AllowedMetrics(), ", ")}
	}
	aggExprs := make([]string, 0, len(spec.Metrics))
	for _, name := range spec.Metrics {
		m, ok := metrics[name]
		if !ok {
			return "", nil, &ValidationError{Field: "metrics", Reason: fmt.Sprintf("unknown metric %q; allowed: %s", name, strings.Join(AllowedMetrics(), ", "))}
		}
		aggExprs = append(aggExprs, fmt.Sprintf("%s(%s) AS %s", m.agg, m.column, m.column))
	}

	if !monthRe.MatchString(spec.FromMonth) {
		return "", nil, &ValidationError{Field: "from_month", Reason: fmt.Sprintf("%q does not match YYYY-MM", spec.FromMonth)}
	}
	if !monthRe.MatchString(spec.ToMonth) {
		return "", nil, &ValidationError{Field: "to_month", Reason: fmt.Sprintf("%q does not match YYYY-MM", spec.ToMonth)}
	}

	params := []any{spec.FromMonth, spec.ToMonth}
	where := []string{"month >= $1", "month <= $2"}

	addFilter := func(column, value string) {
		params = append(params, value)
		where = append(where, fmt.Sprintf("%s = $%d", column, len(params)))
	}

	if spec.ProductName != "" {
		addFilter("product_name", spec.ProductName)
	}
	// Unknown filter keys are silently dropped: filters are optional
	// refinements, not primary query shape. Iterate in sorted order so the
	// generated SQL is deterministic.
	for _, key := range sortedNames(spec.Filters) {
		value := spec.Filters[key]
		if key == productNameFilter {
			if spec.ProductName == "" {
				addFilter("product_name", value)
			}
			continue
		}
		if col, ok := dimensions[key]; ok {
			addFilter(col, value)
		}
	}

	groupList := strings.Join(groupCols, ", ")
	sql := fmt.Sprintf(
		"SELECT %s, %s FROM %s WHERE %s GROUP BY %s ORDER BY %s",
		groupList,
		strings.Join(aggExprs, ", "),
		b.targetTable,
		strings.Join(where, " AND "),
		groupList,
		groupList,
	)
	return sql, params, nil
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
