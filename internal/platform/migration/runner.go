// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package migration provides a thin wrapper around golang-migrate for
// the credential store schema.
//
// # Architecture
//
// This package belongs to the Infrastructure layer. It is driven by the
// "migrate" CLI command and refuses to touch a database left dirty by a
// failed run.
package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	// pgx5 driver registers "pgx5" scheme for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	// file source reads .sql files from disk.
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Runner applies SQL migrations from a directory to one database.
type Runner struct {
	sourceURL   string
	databaseURL string
	logger      *slog.Logger
}

// NewRunner prepares a runner for dsn and the migrations under migrationsPath.
func NewRunner(dsn, migrationsPath string, logger *slog.Logger) *Runner {
	return &Runner{
		sourceURL:   "file://" + migrationsPath,
		databaseURL: toPgx5DSN(dsn),
		logger:      logger,
	}
}

// Up applies all pending migrations.
func (runner *Runner) Up() error {
	return runner.run("up", func(migrator *migrate.Migrate) error { return migrator.Up() })
}

// Down rolls back the given number of migrations.
func (runner *Runner) Down(steps int) error {
	if steps < 1 {
		return fmt.Errorf("migration: down requires a positive step count, got %d", steps)
	}
	return runner.run("down", func(migrator *migrate.Migrate) error { return migrator.Steps(-steps) })
}

// Version reports the current schema version and whether it is dirty.
// A database without any applied migration reports version 0.
func (runner *Runner) Version() (uint, bool, error) {
	migrator, err := runner.open()
	if err != nil {
		return 0, false, err
	}
	defer runner.close(migrator)

	version, dirty, err := migrator.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("migration: failed to get current version: %w", err)
	}
	return version, dirty, nil
}

// run opens the migrator, refuses dirty databases and executes step.
func (runner *Runner) run(direction string, step func(*migrate.Migrate) error) error {
	migrator, err := runner.open()
	if err != nil {
		return err
	}
	defer runner.close(migrator)

	currentVersion, isDirty, err := migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("migration: failed to get current version: %w", err)
	}

	if isDirty {
		return fmt.Errorf("migration: database is in a dirty state at version %d (manual intervention required)", currentVersion)
	}

	runner.logger.Info("migration_started",
		slog.String("direction", direction),
		slog.Int("current_version", int(currentVersion)),
	)

	if err := step(migrator); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			runner.logger.Info("migration_already_up_to_date")
			return nil
		}
		return fmt.Errorf("migration: %s failed: %w", direction, err)
	}

	newVersion, _, _ := migrator.Version()
	runner.logger.Info("migration_successful",
		slog.String("direction", direction),
		slog.Int("from_version", int(currentVersion)),
		slog.Int("to_version", int(newVersion)),
	)

	return nil
}

func (runner *Runner) open() (*migrate.Migrate, error) {
	migrator, err := migrate.New(runner.sourceURL, runner.databaseURL)
	if err != nil {
		return nil, fmt.Errorf("migration: failed to initialize: %w", err)
	}
	migrator.Log = &migrateLogger{logger: runner.logger}
	return migrator, nil
}

func (runner *Runner) close(migrator *migrate.Migrate) {
	sourceError, dbError := migrator.Close()
	if sourceError != nil {
		runner.logger.Error("migration_source_close_failed", slog.Any("error", sourceError))
	}
	if dbError != nil {
		runner.logger.Error("migration_db_close_failed", slog.Any("error", dbError))
	}
}

// toPgx5DSN rewrites postgres:// and postgresql:// URLs to the pgx5:// scheme
// expected by the golang-migrate pgx/v5 driver.
func toPgx5DSN(dsn string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if rest, ok := strings.CutPrefix(dsn, prefix); ok {
			return "pgx5://" + rest
		}
	}
	return dsn
}

// migrateLogger adapts golang-migrate's logger interface to slog.
type migrateLogger struct {
	logger *slog.Logger
}

// Printf implements migrate.Logger.
func (l *migrateLogger) Printf(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Verbose implements migrate.Logger.
func (l *migrateLogger) Verbose() bool {
	return l.logger.Enabled(context.Background(), slog.LevelDebug)
}
