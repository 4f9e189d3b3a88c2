// Package guard validates caller-supplied SELECT text before execution.
// It is a denylist plus heuristics, deliberately not a SQL parser: keyword
// checks are raw substring matches that also fire inside string literals and
// identifiers, trading false positives for simplicity. The rule set is data —
// extending it never touches control flow.
package guard

import (
	"fmt"
	"regexp"
	"strings"
)

// RejectedQueryError is returned when a query fails a guard rule. It is
// always surfaced to the caller and the query is never executed.
type RejectedQueryError struct {
	Reason string
}

func (e *RejectedQueryError) Error() string {
	return "query rejected: " + e.Reason
}

// SafeQuery is the guard's only product. Cleaned always begins with SELECT,
// contains no denylisted keyword or pattern, and always carries a LIMIT
// clause (injected when absent).
type SafeQuery struct {
	Original     string
	Cleaned      string
	AppliedLimit bool
}

// keywordRule blocks a statement keyword as a raw substring.
type keywordRule struct {
	keyword string
	reason  string
}

// patternRule blocks a structural shape.
type patternRule struct {
	pattern *regexp.Regexp
	reason  string
}

var denyKeywords = []keywordRule{
	{keyword: "update", reason: "operation 'update' is not allowed"},
	{keyword: "delete", reason: "operation 'delete' is not allowed"},
	{keyword: "insert", reason: "operation 'insert' is not allowed"},
	{keyword: "alter", reason: "operation 'alter' is not allowed"},
	{keyword: "drop", reason: "operation 'drop' is not allowed"},
	{keyword: "truncate", reason: "operation 'truncate' is not allowed"},
	{keyword: "create", reason: "operation 'create' is not allowed"},
}

// denyPatterns block shapes that can explode result cardinality: explicit
// CROSS JOINs and a comma-separated identifier list immediately following an
// identifier (a blunt proxy for implicit/legacy joins — it will also
// false-positive on some multi-column phrasings; known approximation).
var denyPatterns = []patternRule{
	{pattern: regexp.MustCompile(`cross\s+join`), reason: "query blocked for safety"},
	{pattern: regexp.MustCompile(`\w\s*,\s*\w+`), reason: "query blocked for safety"},
}

// Guard validates and transforms ad-hoc query text. Stateless after
// construction; safe for concurrent use.
type Guard struct {
	defaultLimit int
}

// New creates a Guard that injects the given row limit when the query has
// none. defaultLimit must be > 0.
func New(defaultLimit int) *Guard {
	if defaultLimit <= 0 {
		panic(fmt.Sprintf("guard: default limit must be > 0, got %d", defaultLimit))
	}
	return &Guard{defaultLimit: defaultLimit}
}

// Sanitize applies the rules in order: SELECT-only prefix, keyword denylist,
// pattern denylist, then LIMIT injection. The lower-cased working copy is
// used for inspection only — the executed text preserves the caller's
// casing and content except for the LIMIT append.
func (g *Guard) Sanitize(sql string) (*SafeQuery, error) {
	trimmed := strings.TrimSpace(sql)
	normalized := strings.ToLower(trimmed)

	if !strings.HasPrefix(normalized, "select") {
		return nil, &RejectedQueryError{Reason: "only SELECT queries allowed"}
	}

	for _, rule := range denyKeywords {
		if strings.Contains(normalized, rule.keyword) {
			return nil, &RejectedQueryError{Reason: rule.reason}
		}
	}

	for _, rule := range denyPatterns {
		if rule.pattern.MatchString(normalized) {
			return nil, &RejectedQueryError{Reason: rule.reason}
		}
	}

	cleaned := trimmed
	appliedLimit := false
	if !strings.Contains(normalized, "limit") {
		cleaned = strings.TrimRight(cleaned, "; \t\n") + fmt.Sprintf(" LIMIT %d", g.defaultLimit)
		appliedLimit = true
	}

	return &SafeQuery{Original: sql, Cleaned: cleaned, AppliedLimit: appliedLimit}, nil
}
