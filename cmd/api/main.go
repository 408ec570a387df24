// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Sugarmill identity API.
//
// # Commands
//
//   - serve: run the HTTP API with graceful shutdown.
//   - migrate: apply, roll back or inspect the SQL schema.
//   - create-admin: enroll the first active administrator.
//   - version: print the build version.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/taibuivan/sugarmill/internal/platform/config"
	"github.com/taibuivan/sugarmill/internal/platform/constants"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "sugarmill",
		Short:         "Sugarmill identity and access API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("env-file", "", "Optional .env file loaded before the environment")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", constants.AppName, constants.AppVersion)
		},
	})

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newCreateAdminCommand())

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command_failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// # Shared Bootstrap

// loadConfig reads configuration, honoring the --env-file flag.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		return config.Load(envFile)
	}
	return config.Load()
}

// newLogger builds the JSON logger every command writes through.
//
// Debug level is enabled only when the configuration asks for it.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With(slog.String("app", constants.AppName))
	slog.SetDefault(logger)

	return logger
}
