package db

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// The pool is a process-wide singleton built on first use, never at startup.
// Serverless cold starts must be able to serve /health before the database is
// reachable, and a bootstrap-time connect failure must not take the process
// down. A failed construction is not cached: the next caller tries again.

var (
	// ErrPoolUnavailable means the pool could not be constructed at all.
	ErrPoolUnavailable = errors.New("database pool unavailable")
	// ErrPoolTimeout means the pool exists but no connection freed up within
	// the configured acquire timeout.
	ErrPoolTimeout = errors.New("timed out waiting for a database connection")
)

type Config struct {
	URL            string
	MaxConns       int32         // steady pool plus burst capacity
	MinConns       int32         // connections kept warm
	AcquireTimeout time.Duration // max wait for a free connection
	ConnRecycle    time.Duration // forced replacement age for a physical connection
	PrePing        bool          // liveness-check a connection before handing it out
}

var (
	mu         sync.Mutex
	cfg        Config
	configured bool
	pool       *pgxpool.Pool
)

// Configure records the pool settings without opening anything.
func Configure(c Config) {
	mu.Lock()
	defer mu.Unlock()
	cfg = c
	configured = true
}

// Get returns the shared pool, constructing it on first call. Safe for
// concurrent first use; exactly one caller builds the pool.
func Get(ctx context.Context) (*pgxpool.Pool, error) {
	mu.Lock()
	defer mu.Unlock()

	if pool != nil {
		return pool, nil
	}
	if !configured {
		return nil, fmt.Errorf("%w: pool is not configured", ErrPoolUnavailable)
	}

	built, err := build(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPoolUnavailable, err)
	}

	pool = built
	return pool, nil
}

func build(ctx context.Context, c Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(c.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if c.MaxConns > 0 {
		poolConfig.MaxConns = c.MaxConns
	}
	if c.MinConns > 0 {
		poolConfig.MinConns = c.MinConns
	}
	if c.ConnRecycle > 0 {
		poolConfig.MaxConnLifetime = c.ConnRecycle
	}
	if c.PrePing {
		poolConfig.BeforeAcquire = func(ctx context.Context, conn *pgx.Conn) bool {
			return conn.Ping(ctx) == nil
		}
	}

	// No statement_timeout here: serverless Postgres poolers reject
	// per-connection settings. Deadlines are enforced at the request layer.
	return pgxpool.NewWithConfig(ctx, poolConfig)
}

// Acquire checks a connection out of the pool, bounding the wait by the
// configured acquire timeout. Callers must Release the connection.
func Acquire(ctx context.Context) (*pgxpool.Conn, error) {
	p, err := Get(ctx)
	if err != nil {
		return nil, err
	}

	timeout := acquireTimeout()
	acquireCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := p.Acquire(acquireCtx)
	if err != nil {
		if errors.Is(acquireCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, ErrPoolTimeout
		}
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	return conn, nil
}

// Ping performs one trivial round-trip. Used by /ready, never by /health.
func Ping(ctx context.Context) error {
	p, err := Get(ctx)
	if err != nil {
		return err
	}
	return p.Ping(ctx)
}

// Close tears the singleton down. The next Get rebuilds it; tests and the
// runtime shutdown path use this.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if pool != nil {
		pool.Close()
		pool = nil
	}
}

func acquireTimeout() time.Duration {
	mu.Lock()
	defer mu.Unlock()
	if cfg.AcquireTimeout > 0 {
		return cfg.AcquireTimeout
	}
	return 5 * time.Second
}
