package dwmcp

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/warelens/dwmcp/internal/dbpool"
	"github.com/warelens/dwmcp/internal/errprompt"
	"github.com/warelens/dwmcp/internal/guard"
	"github.com/warelens/dwmcp/internal/mask"
	"github.com/warelens/dwmcp/internal/metacache"
	"github.com/warelens/dwmcp/internal/report"
	"github.com/warelens/dwmcp/internal/resolve"
	"github.com/warelens/dwmcp/internal/session"
)

// WarehouseMcp is the core engine: a guarded metadata-cache-and-query-safety
// layer between an exploring agent and the warehouse. All exported methods
// are safe for concurrent use from multiple goroutines.
type WarehouseMcp struct {
	config     Config
	db         *dbpool.Pool
	semaphore  chan struct{}
	cache      *metacache.Cache
	resolver   *resolve.Resolver
	guard      *guard.Guard
	builder    *report.Builder
	session    *session.Context
	masker     *mask.Masker
	errPrompts *errprompt.Matcher
	logger     zerolog.Logger
}

// New creates a WarehouseMcp instance. connString is the PostgreSQL
// connection string (must include credentials). Panics on invalid config;
// returns an error only for runtime failures. The pool itself connects
// lazily on first use.
func New(ctx context.Context, connString string, config Config, logger zerolog.Logger) (*WarehouseMcp, error) {
	// --- Config validation (panics on invalid config) ---

	if connString == "" {
		panic("dwmcp: connString must be non-empty")
	}
	if config.Pool.MaxConns <= 0 {
		panic("dwmcp: pool.max_conns must be > 0")
	}

	// Apply defaults for zero values
	if config.Pool.AcquireTimeoutSeconds == 0 {
		config.Pool.AcquireTimeoutSeconds = 30
	}
	if config.Cache.TTLSeconds == 0 {
		config.Cache.TTLSeconds = 300
	}
	if config.Query.DefaultLimit == 0 {
		config.Query.DefaultLimit = 200
	}
	if config.Query.MaxSQLLength == 0 {
		config.Query.MaxSQLLength = 100000
	}
	if config.Query.MaxResultLength == 0 {
		config.Query.MaxResultLength = 100000
	}
	if config.Query.MetadataTimeoutSeconds == 0 {
		config.Query.MetadataTimeoutSeconds = 10
	}
	if config.Query.PreviewMaxRows == 0 {
		config.Query.PreviewMaxRows = 100
	}
	if len(config.Cache.SchemaPrefixes) == 0 && len(config.Cache.SchemaNames) == 0 {
		config.Cache.SchemaPrefixes = []string{"collections_", "recovery_"}
		config.Cache.SchemaNames = []string{"gold"}
	}
	if config.Report.TargetTable == "" {
		config.Report.TargetTable = "gold.monthly_portfolio_metrics"
	}

	if config.Pool.AcquireTimeoutSeconds < 0 {
		panic("dwmcp: pool.acquire_timeout_seconds must be > 0")
	}
	if config.Cache.TTLSeconds < 0 {
		panic("dwmcp: cache.ttl_seconds must be > 0")
	}
	if config.Query.DefaultLimit < 0 {
		panic("dwmcp: query.default_limit must be > 0")
	}
	if config.Query.MaxSQLLength < 0 {
		panic("dwmcp: query.max_sql_length must be > 0")
	}
	if config.Query.MaxResultLength < 0 {
		panic("dwmcp: query.max_result_length must be > 0")
	}
	if config.Query.MetadataTimeoutSeconds < 0 {
		panic("dwmcp: query.metadata_timeout_seconds must be > 0")
	}
	if config.Query.PreviewMaxRows < 0 {
		panic("dwmcp: query.preview_max_rows must be > 0")
	}

	// --- Pool (lazy; connects on first acquire) ---

	parseDuration := func(field, value string) time.Duration {
		if value == "" {
			return 0
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			panic(fmt.Sprintf("dwmcp: invalid %s %q: %v", field, value, err))
		}
		return d
	}

	db, err := dbpool.New(dbpool.Config{
		ConnString:        connString,
		MaxConns:          config.Pool.MaxConns,
		MinConns:          config.Pool.MinConns,
		MaxConnLifetime:   parseDuration("pool.max_conn_lifetime", config.Pool.MaxConnLifetime),
		MaxConnIdleTime:   parseDuration("pool.max_conn_idle_time", config.Pool.MaxConnIdleTime),
		HealthCheckPeriod: parseDuration("pool.health_check_period", config.Pool.HealthCheckPeriod),
		AcquireTimeout:    time.Duration(config.Pool.AcquireTimeoutSeconds) * time.Second,
		Timezone:          config.Timezone,
	})
	if err != nil {
		panic("dwmcp: " + err.Error())
	}

	// --- Internal components ---

	masker, err := mask.New(mapMaskingRules(config.Masking))
	if err != nil {
		return nil, err
	}

	promptRules := errprompt.DefaultRules()
	for _, r := range config.ErrorPrompts {
		promptRules = append(promptRules, errprompt.Rule{Pattern: r.Pattern, Message: r.Message})
	}
	matcher, err := errprompt.NewMatcher(promptRules)
	if err != nil {
		return nil, err
	}

	p := &WarehouseMcp{
		config:     config,
		db:         db,
		semaphore:  make(chan struct{}, config.Pool.MaxConns),
		guard:      guard.New(config.Query.DefaultLimit),
		builder:    report.New(config.Report.TargetTable),
		session:    session.New(),
		masker:     masker,
		errPrompts: matcher,
		logger:     logger,
	}
	p.cache = metacache.New(
		&pgCatalog{engine: p},
		time.Duration(config.Cache.TTLSeconds)*time.Second,
	)
	p.resolver = resolve.New(p.cache)
	return p, nil
}

// Ping verifies database connectivity.
func (p *WarehouseMcp) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

// Close closes the connection pool.
func (p *WarehouseMcp) Close(ctx context.Context) {
	p.db.Close()
}

// acquireSlot takes a semaphore slot, respecting context cancellation so a
// saturated engine cannot deadlock waiting callers. The returned release
// func must be called on every exit path.
func (p *WarehouseMcp) acquireSlot(ctx context.Context, op string) (func(), error) {
	select {
	case p.semaphore <- struct{}{}:
		return func() { <-p.semaphore }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: failed to acquire query slot: all %d connection slots are in use, context cancelled while waiting: %w",
			op, cap(p.semaphore), ctx.Err())
	}
}

func (p *WarehouseMcp) metadataTimeout() time.Duration {
	return time.Duration(p.config.Query.MetadataTimeoutSeconds) * time.Second
}

func mapMaskingRules(rules []MaskingRule) []mask.Rule {
	result := make([]mask.Rule, len(rules))
	for i, r := range rules {
		result[i] = mask.Rule{Pattern: r.Pattern, Replacement: r.Replacement}
	}
	return result
}
