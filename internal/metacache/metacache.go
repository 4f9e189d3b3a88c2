// Package metacache caches warehouse catalog metadata with a TTL. Catalog
// scans (information_schema style queries) are expensive and change rarely;
// a short TTL trades a small staleness window for a large reduction in scan
// load under repeated exploratory calls.
package metacache

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Catalog is the store-facing side of the cache: it issues the actual
// catalog queries on a cache miss.
type Catalog interface {
	// SchemaNames returns the schemas matching the interesting-schema
	// naming convention.
	SchemaNames(ctx context.Context) ([]string, error)
	// TableNames returns the table names in the given schema.
	TableNames(ctx context.Context, schema string) ([]string, error)
	// SchemasForTable scans all non-system schemas for a table with
	// exactly this name.
	SchemasForTable(ctx context.Context, table string) ([]string, error)
}

type entry[T any] struct {
	data      T
	fetchedAt time.Time
}

// Cache is a TTL-based cache of schema names, per-schema table names, and a
// table→schemas reverse index. The index is only ever additively merged —
// it is never TTL-expired, so it may over-report schemas after a table is
// dropped in the database. Documented staleness, not a bug.
//
// All methods are safe for concurrent use. Lookups vastly outnumber
// refreshes, so a single reader-writer lock over the three structures is
// enough.
type Cache struct {
	catalog Catalog
	ttl     time.Duration

	mu         sync.RWMutex
	schemas    *entry[[]string]
	tables     map[string]*entry[map[string]struct{}]
	tableIndex map[string]map[string]struct{}

	now func() time.Time // injectable for tests
}

// New creates a Cache that refills through catalog using the given TTL.
func New(catalog Catalog, ttl time.Duration) *Cache {
	return &Cache{
		catalog:    catalog,
		ttl:        ttl,
		tables:     make(map[string]*entry[map[string]struct{}]),
		tableIndex: make(map[string]map[string]struct{}),
		now:        time.Now,
	}
}

func (c *Cache) fresh(fetchedAt time.Time) bool {
	return c.now().Sub(fetchedAt) < c.ttl
}

// ListSchemas returns the cached schema list, refilling from the catalog if
// the entry is stale, missing, or forceRefresh is set.
func (c *Cache) ListSchemas(ctx context.Context, forceRefresh bool) ([]string, error) {
	if !forceRefresh {
		c.mu.RLock()
		if c.schemas != nil && c.fresh(c.schemas.fetchedAt) {
			cached := c.schemas.data
			c.mu.RUnlock()
			return cached, nil
		}
		c.mu.RUnlock()
	}

	names, err := c.catalog.SchemaNames(ctx)
	if err != nil {
		return nil, err
	}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	c.mu.Lock()
	c.schemas = &entry[[]string]{data: sorted, fetchedAt: c.now()}
	c.mu.Unlock()
	return sorted, nil
}

// ListTables returns the cached table list for schema, refilling from the
// catalog when stale. A refill also merges the result into the reverse
// index.
func (c *Cache) ListTables(ctx context.Context, schema string, forceRefresh bool) ([]string, error) {
	if !forceRefresh {
		c.mu.RLock()
		if e, ok := c.tables[schema]; ok && c.fresh(e.fetchedAt) {
			names := sortedKeys(e.data)
			c.mu.RUnlock()
			return names, nil
		}
		c.mu.RUnlock()
	}

	names, err := c.catalog.TableNames(ctx, schema)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}

	c.mu.Lock()
	c.tables[schema] = &entry[map[string]struct{}]{data: set, fetchedAt: c.now()}
	for _, name := range names {
		c.indexLocked(schema, name)
	}
	c.mu.Unlock()

	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return sorted, nil
}

// MergeKnownTables unions tableNames into both the per-schema table set and
// the reverse index. Called whenever another operation incidentally
// discovers table names, so cache correctness improves opportunistically
// without a dedicated refresh pass. The entry's timestamp is not touched —
// a merge is not a refresh.
func (c *Cache) MergeKnownTables(schema string, tableNames []string) {
	if len(tableNames) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.tables[schema]
	if !ok {
		// No base entry yet: create one that is already expired so the next
		// ListTables still does a full refill, but the index gains the names.
		e = &entry[map[string]struct{}]{data: make(map[string]struct{}), fetchedAt: time.Time{}}
		c.tables[schema] = e
	}
	for _, name := range tableNames {
		e.data[name] = struct{}{}
		c.indexLocked(schema, name)
	}
}

// FindSchemasForTable returns the schemas known to contain table. The
// reverse index is consulted first; only on a complete miss is a catalog
// scan across all non-system schemas issued, with the result merged back.
func (c *Cache) FindSchemasForTable(ctx context.Context, table string) ([]string, error) {
	c.mu.RLock()
	if schemas, ok := c.tableIndex[table]; ok && len(schemas) > 0 {
		names := sortedKeys(schemas)
		c.mu.RUnlock()
		return names, nil
	}
	c.mu.RUnlock()

	schemas, err := c.catalog.SchemasForTable(ctx, table)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	for _, schema := range schemas {
		c.indexLocked(schema, table)
	}
	c.mu.Unlock()

	sorted := append([]string(nil), schemas...)
	sort.Strings(sorted)
	return sorted, nil
}

func (c *Cache) indexLocked(schema, table string) {
	schemas, ok := c.tableIndex[table]
	if !ok {
		schemas = make(map[string]struct{})
		c.tableIndex[table] = schemas
	}
	schemas[schema] = struct{}{}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
