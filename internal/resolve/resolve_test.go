package resolve

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

type fakeLookup struct {
	tablesBySchema map[string][]string
	err            error
}

func (f *fakeLookup) ListTables(ctx context.Context, schema string, forceRefresh bool) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tablesBySchema[schema], nil
}

func (f *fakeLookup) FindSchemasForTable(ctx context.Context, table string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	var schemas []string
	for schema, tables := range f.tablesBySchema {
		for _, t := range tables {
			if t == table {
				schemas = append(schemas, schema)
			}
		}
	}
	return schemas, nil
}

func TestResolveExactMatch(t *testing.T) {
	t.Parallel()
	r := New(&fakeLookup{tablesBySchema: map[string][]string{
		"sales": {"customers", "orders"},
	}})

	result := r.Resolve(context.Background(), "sales", "customers")
	if !result.Exists {
		t.Fatal("expected table to exist")
	}
	if result.CanonicalSchema != "sales" {
		t.Fatalf("unexpected canonical schema: %s", result.CanonicalSchema)
	}
	if len(result.Suggestions) != 0 {
		t.Fatalf("expected no suggestions for an exact match, got: %v", result.Suggestions)
	}
}

func TestResolveTypoSuggestsSimilar(t *testing.T) {
	t.Parallel()
	r := New(&fakeLookup{tablesBySchema: map[string][]string{
		"sales": {"customers", "orders", "invoices"},
	}})

	result := r.Resolve(context.Background(), "sales", "custmers")
	if result.Exists {
		t.Fatal("expected miss for typo")
	}
	found := false
	for _, s := range result.Suggestions {
		if s == "sales.customers" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected sales.customers in suggestions, got: %v", result.Suggestions)
	}
	if result.Message == "" {
		t.Fatal("expected a guidance message")
	}
}

func TestResolveSubstringBeatsSimilarity(t *testing.T) {
	t.Parallel()
	r := New(&fakeLookup{tablesBySchema: map[string][]string{
		"gold": {"monthly_portfolio_metrics", "daily_portfolio_metrics", "snapshots"},
	}})

	result := r.Resolve(context.Background(), "gold", "portfolio")
	if result.Exists {
		t.Fatal("expected miss")
	}
	want := []string{"gold.monthly_portfolio_metrics", "gold.daily_portfolio_metrics"}
	if !reflect.DeepEqual(result.Suggestions, want) {
		t.Fatalf("expected substring candidates %v, got %v", want, result.Suggestions)
	}
}

func TestResolveFoundElsewhere(t *testing.T) {
	t.Parallel()
	r := New(&fakeLookup{tablesBySchema: map[string][]string{
		"collections_us": {"payments"},
		"collections_uk": {"accounts"},
	}})

	result := r.Resolve(context.Background(), "collections_us", "accounts")
	if result.Exists {
		t.Fatal("expected miss in requested schema")
	}
	if len(result.FoundElsewhere) != 1 || result.FoundElsewhere[0].Schema != "collections_uk" {
		t.Fatalf("expected exact-name hit in collections_uk, got: %v", result.FoundElsewhere)
	}
	found := false
	for _, s := range result.Suggestions {
		if s == "collections_uk.accounts" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected qualified elsewhere suggestion, got: %v", result.Suggestions)
	}
	if !strings.Contains(result.Message, "exact name exists in") {
		t.Fatalf("expected message to favor the elsewhere hit, got: %s", result.Message)
	}
}

func TestResolveElsewhereSkipsRequestedSchema(t *testing.T) {
	t.Parallel()
	r := New(&fakeLookup{tablesBySchema: map[string][]string{
		"gold": {"metrics"},
	}})

	// Same table name only in the requested schema: the elsewhere list must
	// not echo the schema the caller already tried.
	result := r.Resolve(context.Background(), "gold", "Metrics")
	if result.Exists {
		t.Fatal("expected case-sensitive miss")
	}
	for _, ref := range result.FoundElsewhere {
		if ref.Schema == "gold" {
			t.Fatalf("elsewhere list contains the requested schema: %v", result.FoundElsewhere)
		}
	}
}

func TestResolveCapsSimilarityCandidates(t *testing.T) {
	t.Parallel()
	tables := []string{"aaa1", "aaa2", "aaa3", "aaa4", "aaa5", "aaa6", "aaa7", "aaa8"}
	r := New(&fakeLookup{tablesBySchema: map[string][]string{"s": tables}})

	result := r.Resolve(context.Background(), "s", "zzz")
	if len(result.Suggestions) > 5 {
		t.Fatalf("expected at most 5 similarity suggestions, got %d: %v", len(result.Suggestions), result.Suggestions)
	}
}

func TestResolveDeduplicatesSuggestions(t *testing.T) {
	t.Parallel()
	r := New(&fakeLookup{tablesBySchema: map[string][]string{
		"sales": {"customers_archive"},
		"audit": {"customers"},
	}})

	result := r.Resolve(context.Background(), "sales", "customers")
	seen := map[string]struct{}{}
	for _, s := range result.Suggestions {
		if _, dup := seen[s]; dup {
			t.Fatalf("duplicate suggestion %q in %v", s, result.Suggestions)
		}
		seen[s] = struct{}{}
	}
}

func TestResolveStoreErrorDegrades(t *testing.T) {
	t.Parallel()
	r := New(&fakeLookup{err: errors.New("connection refused")})

	result := r.Resolve(context.Background(), "sales", "customers")
	if result.Exists {
		t.Fatal("expected non-existent result on store error")
	}
	if result.Error == "" {
		t.Fatal("expected the store error to be recorded")
	}
	if result.Suggestions == nil || len(result.Suggestions) != 0 {
		t.Fatalf("expected empty non-nil suggestions, got: %v", result.Suggestions)
	}
}

func TestResolveNoSimilarTables(t *testing.T) {
	t.Parallel()
	r := New(&fakeLookup{tablesBySchema: map[string][]string{}})

	result := r.Resolve(context.Background(), "empty", "anything")
	if result.Exists {
		t.Fatal("expected miss in empty schema")
	}
	if !strings.Contains(result.Message, "no similar table is known") {
		t.Fatalf("unexpected message: %s", result.Message)
	}
}

func TestSimilarity(t *testing.T) {
	t.Parallel()
	if got := similarity("customers", "customers"); got != 1 {
		t.Fatalf("expected identical strings to score 1, got %f", got)
	}
	if got := similarity("", ""); got != 1 {
		t.Fatalf("expected empty strings to score 1, got %f", got)
	}
	near := similarity("custmers", "customers")
	far := similarity("custmers", "invoices")
	if near <= far {
		t.Fatalf("expected typo to score higher than unrelated name: %f vs %f", near, far)
	}
}
