// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/taibuivan/sugarmill/internal/api"
	"github.com/taibuivan/sugarmill/internal/platform/config"
	"github.com/taibuivan/sugarmill/internal/platform/constants"
	"github.com/taibuivan/sugarmill/internal/platform/events"
	"github.com/taibuivan/sugarmill/internal/platform/middleware"
	"github.com/taibuivan/sugarmill/internal/platform/migration"
	pgstore "github.com/taibuivan/sugarmill/internal/platform/postgres"
	"github.com/taibuivan/sugarmill/internal/platform/ratelimit"
	redisstore "github.com/taibuivan/sugarmill/internal/platform/redis"
	"github.com/taibuivan/sugarmill/internal/platform/sec"
	"github.com/taibuivan/sugarmill/internal/users/account"
	"github.com/taibuivan/sugarmill/internal/users/auth"
)

// startupTimeout bounds connecting to every dependency.
const startupTimeout = 30 * time.Second

func newServeCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
	command.Flags().Bool("migrate", true, "Apply pending migrations before serving")
	return command
}

// runServe performs the startup sequence:
//
//  1. Load configuration and build the logger.
//  2. Connect to PostgreSQL and Redis.
//  3. Apply migrations (idempotent).
//  4. Wire security, notification and domain services.
//  5. Serve until a signal arrives, then drain in-flight requests.
func runServe(cmd *cobra.Command, _ []string) error {

	// ── 1. Configuration & Logger ─────────────────────────────────────────
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	// Root context lives as long as the process; the startup context only
	// guards dependency dials so misconfiguration fails fast.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	startupCtx, startupCancel := context.WithTimeout(rootCtx, startupTimeout)
	defer startupCancel()

	// ── 2. PostgreSQL & Redis ─────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, pgstore.DefaultPoolSettings(), log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing_postgres_pool")
		pool.Close()
	}()

	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing_redis_client")
		if closeErr := rdb.Close(); closeErr != nil {
			log.Error("redis_close_failed", slog.Any("error", closeErr))
		}
	}()

	// ── 3. Migrations ─────────────────────────────────────────────────────
	if runMigrations, _ := cmd.Flags().GetBool("migrate"); runMigrations {
		if err := migration.NewRunner(cfg.DatabaseURL, cfg.MigrationPath, log).Up(); err != nil {
			return err
		}
	}

	// ── 4. Security & Notification ────────────────────────────────────────
	tokens, err := sec.NewTokenService(sec.TokenConfig{
		AccessSecret:  []byte(cfg.JWTAccessSecret),
		RefreshSecret: []byte(cfg.JWTRefreshSecret),
		Issuer:        cfg.JWTIssuer,
		Audience:      cfg.JWTAudience,
		AccessTTL:     auth.AccessTokenTTL,
		RefreshTTL:    auth.RefreshTokenTTL,
	})
	if err != nil {
		return err
	}

	notifier, closeNotifier, err := newNotifier(cfg, log)
	if err != nil {
		return err
	}
	defer closeNotifier()

	limiter := newLimiter(rootCtx, cfg, rdb)

	// ── 5. Domain Wiring ──────────────────────────────────────────────────
	store := auth.NewCredentialStore(pool)
	authService := auth.NewService(auth.Dependencies{
		Store:              store,
		VerificationTokens: auth.NewVerificationTokenRepository(rdb),
		ResetTokens:        auth.NewResetTokenRepository(rdb),
		Tokens:             tokens,
		Hasher:             sec.NewPasswordHasher(cfg.BcryptCost),
		Notifier:           notifier,
		Lockout:            auth.LockoutPolicy{Threshold: cfg.LockoutThreshold, Duration: cfg.LockoutDuration},
		Logger:             log,
	})
	accountService := account.NewService(store, account.NewAccountRepository(pool), notifier, log)

	liveness, readiness := api.NewHealthHandlers(healthProbes(pool, rdb), log)

	server := api.NewServer(cfg, log, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(authService, tokens, limiter),
		Account:   account.NewHandler(accountService, middleware.Authenticate(tokens, authService)),
	})

	// ── 6. Serve & Graceful Shutdown ──────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_failed", slog.Any("error", err))
		return err
	}

	log.Info("server_shutting_down", slog.Duration("timeout", constants.ShutdownTimeout))
	if err := server.Shutdown(constants.ShutdownTimeout); err != nil {
		return err
	}

	log.Info("server_stopped")
	return nil
}

// newNotifier publishes to RabbitMQ when a broker is configured and falls back
// to structured log lines otherwise. The returned func closes the broker channel.
func newNotifier(cfg *config.Config, log *slog.Logger) (auth.Notifier, func(), error) {
	if cfg.AMQPURL == "" {
		log.Warn("notifier_broker_disabled")
		return events.NewLogPublisher(log), func() {}, nil
	}

	publisher, err := events.NewRabbitPublisher(cfg.AMQPURL, cfg.NotifyQueue, log)
	if err != nil {
		return nil, nil, err
	}

	return publisher, func() {
		if err := publisher.Close(); err != nil {
			log.Error("notifier_close_failed", slog.Any("error", err))
		}
	}, nil
}

// newLimiter selects the shared Redis counter or the per-process memory limiter.
func newLimiter(ctx context.Context, cfg *config.Config, rdb redis.UniversalClient) ratelimit.Limiter {
	policy := ratelimit.Policy{Requests: cfg.RateLimitRequests, Window: cfg.RateLimitWindow}
	if cfg.RateLimitBackend == "memory" {
		return ratelimit.NewMemoryLimiter(ctx, policy)
	}
	return ratelimit.NewRedisLimiter(rdb, policy)
}

func healthProbes(pool *pgxpool.Pool, rdb redis.UniversalClient) []api.Probe {
	return []api.Probe{
		{Name: "postgres", Check: func(ctx context.Context) error { return pgstore.Ping(ctx, pool) }},
		{Name: "redis", Check: func(ctx context.Context) error { return redisstore.Ping(ctx, rdb) }},
	}
}
