// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taibuivan/sugarmill/internal/platform/migration"
)

func newMigrateCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the credential store schema",
	}

	command.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := newRunner(cmd)
			if err != nil {
				return err
			}
			return runner.Up()
		},
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := newRunner(cmd)
			if err != nil {
				return err
			}
			steps, _ := cmd.Flags().GetInt("steps")
			return runner.Down(steps)
		},
	}
	down.Flags().Int("steps", 1, "Number of migrations to roll back")
	command.AddCommand(down)

	command.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := newRunner(cmd)
			if err != nil {
				return err
			}
			version, dirty, err := runner.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
			return nil
		},
	})

	return command
}

func newRunner(cmd *cobra.Command) (*migration.Runner, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return migration.NewRunner(cfg.DatabaseURL, cfg.MigrationPath, newLogger(cfg)), nil
}
