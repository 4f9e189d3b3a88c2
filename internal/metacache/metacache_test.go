package metacache

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

// fakeCatalog counts store round-trips so tests can assert the TTL policy.
type fakeCatalog struct {
	mu sync.Mutex

	schemas        []string
	tablesBySchema map[string][]string
	err            error

	schemaCalls int
	tableCalls  int
	scanCalls   int
}

func (f *fakeCatalog) SchemaNames(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schemaCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.schemas, nil
}

func (f *fakeCatalog) TableNames(ctx context.Context, schema string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tableCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.tablesBySchema[schema], nil
}

func (f *fakeCatalog) SchemasForTable(ctx context.Context, table string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanCalls++
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

func (f *fakeCatalog) counts() (int, int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.schemaCalls, f.tableCalls, f.scanCalls
}

func newTestCache(catalog Catalog, ttl time.Duration) (*Cache, *time.Time) {
	c := New(catalog, ttl)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestListSchemasCachesWithinTTL(t *testing.T) {
	t.Parallel()
	catalog := &fakeCatalog{schemas: []string{"gold", "collections_us"}}
	c, _ := newTestCache(catalog, 300*time.Second)

	first, err := c.ListSchemas(context.Background(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := c.ListSchemas(context.Background(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results, got %v and %v", first, second)
	}
	if calls, _, _ := catalog.counts(); calls != 1 {
		t.Fatalf("expected 1 store call within TTL, got %d", calls)
	}
}

func TestListSchemasRefreshesAfterTTL(t *testing.T) {
	t.Parallel()
	catalog := &fakeCatalog{schemas: []string{"gold"}}
	c, now := newTestCache(catalog, 300*time.Second)

	if _, err := c.ListSchemas(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	*now = now.Add(301 * time.Second)
	if _, err := c.ListSchemas(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls, _, _ := catalog.counts(); calls != 2 {
		t.Fatalf("expected refresh after TTL, got %d store calls", calls)
	}
}

func TestListSchemasForceRefresh(t *testing.T) {
	t.Parallel()
	catalog := &fakeCatalog{schemas: []string{"gold"}}
	c, _ := newTestCache(catalog, 300*time.Second)

	c.ListSchemas(context.Background(), false)
	c.ListSchemas(context.Background(), true)
	if calls, _, _ := catalog.counts(); calls != 2 {
		t.Fatalf("expected force refresh to hit the store, got %d calls", calls)
	}
}

func TestListSchemasReturnsSorted(t *testing.T) {
	t.Parallel()
	catalog := &fakeCatalog{schemas: []string{"recovery_eu", "collections_us", "gold"}}
	c, _ := newTestCache(catalog, 300*time.Second)

	got, err := c.ListSchemas(context.Background(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"collections_us", "gold", "recovery_eu"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected sorted schemas %v, got %v", want, got)
	}
}

func TestListTablesCachesPerSchema(t *testing.T) {
	t.Parallel()
	catalog := &fakeCatalog{tablesBySchema: map[string][]string{
		"gold":           {"monthly_portfolio_metrics"},
		"collections_us": {"accounts", "payments"},
	}}
	c, _ := newTestCache(catalog, 300*time.Second)

	c.ListTables(context.Background(), "gold", false)
	c.ListTables(context.Background(), "gold", false)
	c.ListTables(context.Background(), "collections_us", false)
	if _, calls, _ := catalog.counts(); calls != 2 {
		t.Fatalf("expected one store call per schema, got %d", calls)
	}
}

func TestListTablesPopulatesReverseIndex(t *testing.T) {
	t.Parallel()
	catalog := &fakeCatalog{tablesBySchema: map[string][]string{
		"collections_us": {"accounts"},
		"collections_uk": {"accounts"},
	}}
	c, _ := newTestCache(catalog, 300*time.Second)

	c.ListTables(context.Background(), "collections_us", false)
	c.ListTables(context.Background(), "collections_uk", false)

	schemas, err := c.FindSchemasForTable(context.Background(), "accounts")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"collections_uk", "collections_us"}
	if !reflect.DeepEqual(schemas, want) {
		t.Fatalf("expected %v from index, got %v", want, schemas)
	}
	if _, _, scans := catalog.counts(); scans != 0 {
		t.Fatalf("expected index hit without a catalog scan, got %d scans", scans)
	}
}

func TestFindSchemasForTableScansOnMiss(t *testing.T) {
	t.Parallel()
	catalog := &fakeCatalog{tablesBySchema: map[string][]string{
		"recovery_eu": {"settlements"},
	}}
	c, _ := newTestCache(catalog, 300*time.Second)

	schemas, err := c.FindSchemasForTable(context.Background(), "settlements")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(schemas, []string{"recovery_eu"}) {
		t.Fatalf("unexpected schemas: %v", schemas)
	}
	if _, _, scans := catalog.counts(); scans != 1 {
		t.Fatalf("expected exactly one catalog scan, got %d", scans)
	}

	// The scan result is merged back, so a second lookup hits the index.
	c.FindSchemasForTable(context.Background(), "settlements")
	if _, _, scans := catalog.counts(); scans != 1 {
		t.Fatalf("expected second lookup to hit the index, got %d scans", scans)
	}
}

func TestMergeKnownTablesUpdatesIndexWithoutRefreshing(t *testing.T) {
	t.Parallel()
	catalog := &fakeCatalog{tablesBySchema: map[string][]string{
		"gold": {"monthly_portfolio_metrics"},
	}}
	c, _ := newTestCache(catalog, 300*time.Second)

	c.MergeKnownTables("gold", []string{"daily_snapshot"})

	schemas, err := c.FindSchemasForTable(context.Background(), "daily_snapshot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(schemas, []string{"gold"}) {
		t.Fatalf("expected merged table in index, got %v", schemas)
	}

	// A merge is not a refresh: the next ListTables still does a refill.
	c.ListTables(context.Background(), "gold", false)
	if _, calls, _ := catalog.counts(); calls != 1 {
		t.Fatalf("expected ListTables to refill after merge-only entry, got %d calls", calls)
	}
}

func TestMergeIsAdditive(t *testing.T) {
	t.Parallel()
	catalog := &fakeCatalog{tablesBySchema: map[string][]string{
		"gold": {"monthly_portfolio_metrics"},
	}}
	c, _ := newTestCache(catalog, 300*time.Second)

	c.ListTables(context.Background(), "gold", false)
	c.MergeKnownTables("gold", []string{"extra_table"})

	tables, err := c.ListTables(context.Background(), "gold", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"extra_table", "monthly_portfolio_metrics"}
	if !reflect.DeepEqual(tables, want) {
		t.Fatalf("expected merged table set %v, got %v", want, tables)
	}
}

func TestStoreErrorsPropagate(t *testing.T) {
	t.Parallel()
	storeErr := errors.New("connection refused")
	catalog := &fakeCatalog{err: storeErr}
	c, _ := newTestCache(catalog, 300*time.Second)

	if _, err := c.ListSchemas(context.Background(), false); !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got: %v", err)
	}
	if _, err := c.ListTables(context.Background(), "gold", false); !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got: %v", err)
	}
	if _, err := c.FindSchemasForTable(context.Background(), "x"); !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got: %v", err)
	}
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()
	catalog := &fakeCatalog{
		schemas: []string{"gold"},
		tablesBySchema: map[string][]string{
			"gold": {"monthly_portfolio_metrics"},
		},
	}
	c := New(catalog, 300*time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c.ListSchemas(context.Background(), false)
				c.ListTables(context.Background(), "gold", false)
				c.MergeKnownTables("gold", []string{"merged"})
				c.FindSchemasForTable(context.Background(), "merged")
			}
		}()
	}
	wg.Wait()
}
