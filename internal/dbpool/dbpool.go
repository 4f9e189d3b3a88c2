// Package dbpool wraps pgxpool with lazy, once-guarded initialization and a
// bounded acquire wait. Every session it hands out is autocommit and forced
// read-only, so a failed statement never leaves an aborted transaction behind
// for the next borrower.
package dbpool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrPoolExhausted is returned when no connection becomes available within
// the configured acquire timeout. Transient — the caller may retry.
var ErrPoolExhausted = errors.New("dbpool: no connection available within acquire timeout")

// ErrConnection wraps failures to establish or initialize a connection.
// Fatal to the operation; the pool does not retry on the caller's behalf.
var ErrConnection = errors.New("dbpool: connection error")

// Config holds pool settings.
type Config struct {
	ConnString        string
	MaxConns          int
	MinConns          int
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	AcquireTimeout    time.Duration
	Timezone          string
}

// Pool owns a bounded set of live database connections. The underlying
// pgxpool is created on first Acquire, guarded so that concurrent first
// callers do not race-create multiple pools. Safe for concurrent use.
type Pool struct {
	config Config

	initOnce sync.Once
	pool     *pgxpool.Pool
	initErr  error
}

// New validates config and returns an uninitialized pool. No connection is
// attempted until the first Acquire.
func New(config Config) (*Pool, error) {
	if config.ConnString == "" {
		return nil, fmt.Errorf("dbpool: conn string must be non-empty")
	}
	if config.MaxConns <= 0 {
		return nil, fmt.Errorf("dbpool: max conns must be > 0, got %d", config.MaxConns)
	}
	if config.AcquireTimeout <= 0 {
		return nil, fmt.Errorf("dbpool: acquire timeout must be > 0, got %s", config.AcquireTimeout)
	}
	return &Pool{config: config}, nil
}

func (p *Pool) init(ctx context.Context) {
	poolConfig, err := pgxpool.ParseConfig(p.config.ConnString)
	if err != nil {
		p.initErr = fmt.Errorf("%w: failed to parse connection string: %v", ErrConnection, err)
		return
	}

	poolConfig.MaxConns = int32(p.config.MaxConns)
	poolConfig.MinConns = int32(p.config.MinConns)
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec
	if p.config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = p.config.MaxConnLifetime
	}
	if p.config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = p.config.MaxConnIdleTime
	}
	if p.config.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = p.config.HealthCheckPeriod
	}

	// Every session is read-only autocommit. Statements run outside explicit
	// transactions, so a failed query cannot poison the connection for the
	// next borrower.
	timezone := p.config.Timezone
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, "SET default_transaction_read_only = on"); err != nil {
			return fmt.Errorf("failed to SET default_transaction_read_only: %w", err)
		}
		if timezone != "" {
			escaped := strings.ReplaceAll(timezone, "'", "''")
			if _, err := conn.Exec(ctx, fmt.Sprintf("SET timezone = '%s'", escaped)); err != nil {
				return fmt.Errorf("failed to SET timezone: %w", err)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		p.initErr = fmt.Errorf("%w: failed to create connection pool: %v", ErrConnection, err)
		return
	}
	p.pool = pool
}

// Acquire borrows a connection, blocking until one is available or the
// acquire timeout elapses. The caller must Release the returned connection
// on every exit path.
func (p *Pool) Acquire(ctx context.Context) (*pgxpool.Conn, error) {
	p.initOnce.Do(func() { p.init(ctx) })
	if p.initErr != nil {
		return nil, p.initErr
	}

	acquireCtx, cancel := context.WithTimeout(ctx, p.config.AcquireTimeout)
	defer cancel()

	conn, err := p.pool.Acquire(acquireCtx)
	if err != nil {
		return nil, translateAcquireError(err, acquireCtx, ctx)
	}
	return conn, nil
}

// translateAcquireError maps a pgxpool acquire failure onto the pool's error
// taxonomy: a timed-out wait is ErrPoolExhausted, everything else is a
// connection establishment failure.
func translateAcquireError(err error, acquireCtx, parentCtx context.Context) error {
	if errors.Is(err, context.DeadlineExceeded) && acquireCtx.Err() != nil && parentCtx.Err() == nil {
		return fmt.Errorf("%w: %v", ErrPoolExhausted, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("dbpool: acquire cancelled: %w", err)
	}
	return fmt.Errorf("%w: %v", ErrConnection, err)
}

// Ping verifies database connectivity, initializing the pool if needed.
func (p *Pool) Ping(ctx context.Context) error {
	p.initOnce.Do(func() { p.init(ctx) })
	if p.initErr != nil {
		return p.initErr
	}
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

// Close tears down the underlying pool if it was ever initialized.
func (p *Pool) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// MaxConns returns the configured connection bound.
func (p *Pool) MaxConns() int {
	return p.config.MaxConns
}
