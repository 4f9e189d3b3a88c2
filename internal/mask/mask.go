// Package mask applies regex-based masking to result row values before they
// leave the server. Warehouse rows routinely carry account numbers and
// contact details that an exploring agent has no business seeing verbatim.
package mask

import (
	"fmt"
	"regexp"
)

// Rule is a regex replacement applied to every string value in a result set.
type Rule struct {
	Pattern     string
	Replacement string
}

type compiledRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Masker applies masking rules to result rows. Immutable after
// construction; safe for concurrent use.
type Masker struct {
	rules []compiledRule
}

// New compiles the rules. Returns an error on an invalid pattern.
func New(rules []Rule) (*Masker, error) {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("mask: invalid regex pattern %q: %v", r.Pattern, err)
		}
		compiled[i] = compiledRule{pattern: re, replacement: r.Replacement}
	}
	return &Masker{rules: compiled}, nil
}

// HasRules reports whether any rule is configured.
func (m *Masker) HasRules() bool {
	return len(m.rules) > 0
}

// Rows masks every field value in place and returns rows for chaining.
// Recurses into JSONB objects and arrays down to their primitive values.
func (m *Masker) Rows(rows []map[string]any) []map[string]any {
	if !m.HasRules() {
		return rows
	}
	for _, row := range rows {
		for k, v := range row {
			row[k] = m.value(v)
		}
	}
	return rows
}

func (m *Masker) value(v any) any {
	switch val := v.(type) {
	case string:
		out := val
		for _, rule := range m.rules {
			out = rule.pattern.ReplaceAllString(out, rule.replacement)
		}
		return out
	case map[string]any:
		for k, inner := range val {
			val[k] = m.value(inner)
		}
		return val
	case []any:
		for i, inner := range val {
			val[i] = m.value(inner)
		}
		return val
	default:
		// Numbers, bools, nil pass through untouched.
		return v
	}
}
