// Package errprompt turns raw store errors into actionable guidance.
// Error messages are matched against regex rules; every matching rule
// contributes a hint that is appended to the message a caller sees, so an
// agent always has a next step instead of a bare internal value.
package errprompt

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule maps an error message pattern to a guidance message.
type Rule struct {
	Pattern string
	Message string
}

// DefaultRules are the built-in hints for the errors an exploratory agent
// hits most. Config-supplied rules are appended after these.
func DefaultRules() []Rule {
	return []Rule{
		{
			Pattern: `(?i)relation .* does not exist`,
			Message: "The table does not exist under that name. Use list_tables or resolve_table to find the right one.",
		},
		{
			Pattern: `(?i)column .* does not exist`,
			Message: "The column does not exist. Use describe_table to see the available columns.",
		},
		{
			Pattern: `(?i)permission denied`,
			Message: "You do not have sufficient privileges for this object. Ask the user to check grants.",
		},
	}
}

type compiledRule struct {
	pattern *regexp.Regexp
	message string
}

// Matcher checks error messages against rules and returns guidance prompts.
// Immutable after construction; safe for concurrent use.
type Matcher struct {
	rules []compiledRule
}

// NewMatcher compiles the rules. Returns an error on an invalid pattern.
func NewMatcher(rules []Rule) (*Matcher, error) {
	compiled := make([]compiledRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("errprompt: invalid regex pattern %q: %v", r.Pattern, err)
		}
		compiled[i] = compiledRule{pattern: re, message: r.Message}
	}
	return &Matcher{rules: compiled}, nil
}

// Match returns all matching prompt messages, top to bottom, joined with
// newlines. Empty string when nothing matches.
func (m *Matcher) Match(errMsg string) string {
	var matches []string
	for _, rule := range m.rules {
		if rule.pattern.MatchString(errMsg) {
			matches = append(matches, rule.message)
		}
	}
	return strings.Join(matches, "\n")
}

// MatchedPatterns returns the patterns that matched, for logging.
func (m *Matcher) MatchedPatterns(errMsg string) []string {
	var patterns []string
	for _, rule := range m.rules {
		if rule.pattern.MatchString(errMsg) {
			patterns = append(patterns, rule.pattern.String())
		}
	}
	return patterns
}
