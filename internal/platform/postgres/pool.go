// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package postgres provides the managed PostgreSQL connection pool backing the
// credential store.
//
// # Architecture
//
// This package is part of the Infrastructure layer. It owns the physical
// database connections (pgxpool); repositories receive the pool through their
// constructors and never open connections themselves.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/sugarmill/internal/platform/constants"
)

// # Pool Settings

// PoolSettings tunes the pool. Zero fields take the defaults from [DefaultPoolSettings].
type PoolSettings struct {
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	StatementTimeout time.Duration
}

// DefaultPoolSettings returns the settings sized for the identity workload:
// short queries, bursty logins.
func DefaultPoolSettings() PoolSettings {
	return PoolSettings{
		MaxConns:         20,
		MinConns:         2,
		MaxConnLifetime:  60 * time.Minute,
		MaxConnIdleTime:  10 * time.Minute,
		StatementTimeout: constants.GlobalRequestTimeout,
	}
}

const (
	// healthCheckPeriod is the frequency of background connection health checks.
	healthCheckPeriod = 1 * time.Minute
	// connectTimeout is the maximum time allowed to establish a new connection.
	connectTimeout = 5 * time.Second
	// pingTimeout is the maximum duration for a health check ping.
	pingTimeout = 2 * time.Second
)

// # Construction

// NewPool creates and validates a new PostgreSQL connection pool.
//
// # Parameters
//   - ctx: Context for the initial connection attempt.
//   - dsn: A libpq-compatible connection string or postgres:// URL.
//   - settings: Pool tuning; zero fields fall back to defaults.
//   - logger: Structured logger for pool-level events.
func NewPool(ctx context.Context, dsn string, settings PoolSettings, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := ParseConfig(dsn, settings)
	if err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create pool: %w", err)
	}

	// Validate that we can actually reach the database.
	if err := Ping(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	stats := pool.Stat()
	logger.Info("postgres_pool_connected",
		slog.String("host", poolConfig.ConnConfig.Host),
		slog.String("database", poolConfig.ConnConfig.Database),
		slog.Int("max_conns", int(stats.MaxConns())),
	)

	return pool, nil
}

// ParseConfig builds the pgxpool configuration for dsn with settings applied.
func ParseConfig(dsn string, settings PoolSettings) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: invalid DSN: %w", err)
	}

	settings = settings.withDefaults()

	poolConfig.MaxConns = settings.MaxConns
	poolConfig.MinConns = settings.MinConns
	poolConfig.MaxConnLifetime = settings.MaxConnLifetime
	poolConfig.MaxConnIdleTime = settings.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = healthCheckPeriod
	poolConfig.ConnConfig.ConnectTimeout = connectTimeout

	// Every physical connection gets the statement timeout.
	timeoutQuery := statementTimeoutQuery(settings.StatementTimeout)
	poolConfig.AfterConnect = func(ctx context.Context, connection *pgx.Conn) error {
		_, err := connection.Exec(ctx, timeoutQuery)
		return err
	}

	return poolConfig, nil
}

// Ping verifies that the PostgreSQL connection pool is healthy.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("postgres: ping failed: %w", err)
	}

	return nil
}

func (settings PoolSettings) withDefaults() PoolSettings {
	defaults := DefaultPoolSettings()
	if settings.MaxConns <= 0 {
		settings.MaxConns = defaults.MaxConns
	}
	if settings.MinConns <= 0 {
		settings.MinConns = defaults.MinConns
	}
	if settings.MinConns > settings.MaxConns {
		settings.MinConns = settings.MaxConns
	}
	if settings.MaxConnLifetime <= 0 {
		settings.MaxConnLifetime = defaults.MaxConnLifetime
	}
	if settings.MaxConnIdleTime <= 0 {
		settings.MaxConnIdleTime = defaults.MaxConnIdleTime
	}
	if settings.StatementTimeout <= 0 {
		settings.StatementTimeout = defaults.StatementTimeout
	}
	return settings
}

// statementTimeoutQuery renders the per-connection statement timeout in milliseconds.
func statementTimeoutQuery(timeout time.Duration) string {
	return fmt.Sprintf("SET statement_timeout = %d", timeout.Milliseconds())
}
