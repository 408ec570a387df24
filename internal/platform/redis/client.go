// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package redis provides the managed client for volatile data storage.

Sugarmill keeps two kinds of short-lived state here:

  - Single-use email tokens (verification and password reset) with their TTL.
  - Fixed-window rate-limit counters shared by every API process.

Consumers depend on [redis.UniversalClient], so a standalone server, a sentinel
setup or a cluster can be swapped in without touching the repositories.
*/
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default timeouts for Redis operations.
const (
	dialTimeout  = 3 * time.Second
	readTimeout  = 2 * time.Second
	writeTimeout = 2 * time.Second
	pingTimeout  = 2 * time.Second
)

// NewClient parses a Redis URL and returns a connected client.
//
// # Parameters
//   - ctx: Context for the initial ping.
//   - redisURL: Redis connection URL (redis:// or rediss://).
//   - logger: Structured logger for connection events.
func NewClient(ctx context.Context, redisURL string, logger *slog.Logger) (redis.UniversalClient, error) {
	options, err := ParseOptions(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(options)

	// Validate connectivity immediately at startup.
	if err := Ping(ctx, client); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("redis_client_connected",
		slog.String("addr", options.Addr),
		slog.Int("db", options.DB),
		slog.Int("pool_size", options.PoolSize),
	)

	return client, nil
}

// ParseOptions parses redisURL and applies the pool and timeout settings.
func ParseOptions(redisURL string) (*redis.Options, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}

	options.PoolSize = 10
	options.MinIdleConns = 2
	options.MaxIdleConns = 5

	options.DialTimeout = dialTimeout
	options.ReadTimeout = readTimeout
	options.WriteTimeout = writeTimeout

	return options, nil
}

// Ping verifies that the Redis client is healthy.
func Ping(ctx context.Context, client redis.UniversalClient) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis: ping failed: %w", err)
	}

	return nil
}
