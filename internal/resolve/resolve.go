// Package resolve answers "does this table exist?" with fuzzy fallback.
// A miss produces ranked alternatives: substring matches and
// similarity-ranked names within the same schema, plus exact-name hits in
// other schemas. Resolution is advisory — store errors degrade to an empty
// answer instead of propagating.
package resolve

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

const (
	maxSimilarityCandidates = 5
	maxSuggestions          = 15
)

// Lookup is the cache-facing side of the resolver.
type Lookup interface {
	ListTables(ctx context.Context, schema string, forceRefresh bool) ([]string, error)
	FindSchemasForTable(ctx context.Context, table string) ([]string, error)
}

// TableRef is a schema-qualified table reference.
type TableRef struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`
}

// Result is the outcome of resolving a (schema, table) pair.
// If Exists is true, Suggestions is empty.
type Result struct {
	Exists          bool       `json:"exists"`
	CanonicalSchema string     `json:"canonical_schema,omitempty"`
	Suggestions     []string   `json:"suggestions"`
	FoundElsewhere  []TableRef `json:"found_elsewhere,omitempty"`
	Message         string     `json:"message,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// Resolver determines table existence against cached metadata and proposes
// alternatives on a miss. Safe for concurrent use.
type Resolver struct {
	lookup Lookup
}

// New creates a Resolver backed by the given metadata lookup.
func New(lookup Lookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve checks whether schema.table exists. On a miss it returns ranked
// suggestions: same-schema candidates first (substring containment, then
// similarity ranking), then exact-name matches found in other schemas.
// Any store error degrades to a non-existent result with the error recorded;
// it never prevents the caller from receiving a structured answer.
func (r *Resolver) Resolve(ctx context.Context, schema, table string) *Result {
	known, err := r.lookup.ListTables(ctx, schema, false)
	if err != nil {
		return &Result{Exists: false, Suggestions: []string{}, Error: err.Error()}
	}

	for _, name := range known {
		if name == table {
			return &Result{Exists: true, CanonicalSchema: schema, Suggestions: []string{}}
		}
	}

	sameSchema := substringCandidates(table, known)
	if len(sameSchema) == 0 {
		sameSchema = similarityCandidates(table, known)
	}

	// An exact-name hit in another schema is a stronger signal than a fuzzy
	// match, so it is surfaced distinctly.
	var elsewhere []TableRef
	otherSchemas, err := r.lookup.FindSchemasForTable(ctx, table)
	if err == nil {
		for _, s := range otherSchemas {
			if s == schema {
				continue
			}
			elsewhere = append(elsewhere, TableRef{Schema: s, Table: table})
		}
	}

	suggestions := make([]string, 0, len(sameSchema)+len(elsewhere))
	seen := make(map[string]struct{})
	add := func(qualified string) {
		if _, dup := seen[qualified]; dup || len(suggestions) >= maxSuggestions {
			return
		}
		seen[qualified] = struct{}{}
		suggestions = append(suggestions, qualified)
	}
	for _, name := range sameSchema {
		add(schema + "." + name)
	}
	for _, ref := range elsewhere {
		add(ref.Schema + "." + ref.Table)
	}

	return &Result{
		Exists:         false,
		Suggestions:    suggestions,
		FoundElsewhere: elsewhere,
		Message:        guidanceMessage(schema, table, elsewhere, sameSchema),
	}
}

// substringCandidates returns known table names containing the query name,
// case-insensitive, in their original order.
func substringCandidates(table string, known []string) []string {
	needle := strings.ToLower(table)
	var out []string
	for _, name := range known {
		if strings.Contains(strings.ToLower(name), needle) {
			out = append(out, name)
		}
	}
	return out
}

// similarityCandidates ranks all known names by normalized edit-distance
// similarity against the query, descending, and returns the top 5.
func similarityCandidates(table string, known []string) []string {
	type scored struct {
		name  string
		score float64
	}
	ranked := make([]scored, 0, len(known))
	for _, name := range known {
		ranked = append(ranked, scored{name: name, score: similarity(table, name)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	n := len(ranked)
	if n > maxSimilarityCandidates {
		n = maxSimilarityCandidates
	}
	out := make([]string, 0, n)
	for _, s := range ranked[:n] {
		out = append(out, s.name)
	}
	return out
}

// similarity is a normalized edit-distance ratio in [0,1]; 1 means equal.
func similarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	dist := fuzzy.LevenshteinDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// guidanceMessage builds a human-readable hint, favoring "found in another
// schema" over "similar name" when both are present.
func guidanceMessage(schema, table string, elsewhere []TableRef, similar []string) string {
	if len(elsewhere) > 0 {
		refs := make([]string, len(elsewhere))
		for i, ref := range elsewhere {
			refs[i] = ref.Schema + "." + ref.Table
		}
		return fmt.Sprintf("table %q not found in schema %q, but a table with this exact name exists in: %s",
			table, schema, strings.Join(refs, ", "))
	}
	if len(similar) > 0 {
		qualified := make([]string, len(similar))
		for i, name := range similar {
			qualified[i] = schema + "." + name
		}
		return fmt.Sprintf("table %q not found in schema %q. Did you mean one of these: %s",
			table, schema, strings.Join(qualified, ", "))
	}
	return fmt.Sprintf("table %q not found in schema %q and no similar table is known", table, schema)
}
