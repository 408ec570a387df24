// Copyright (c) 2026 Sugarmill. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	pgstore "github.com/taibuivan/sugarmill/internal/platform/postgres"
	"github.com/taibuivan/sugarmill/internal/platform/sec"
	"github.com/taibuivan/sugarmill/internal/users/auth"
)

// adminPasswordEnv lets scripts pass the password without exposing it in argv.
const adminPasswordEnv = "SUGARMILL_ADMIN_PASSWORD"

func newCreateAdminCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an active administrator",
		Long: "Create an active, verified administrator. Approvals require an admin, " +
			"so the first one has to be enrolled out of band.",
		RunE: runCreateAdmin,
	}
	command.Flags().String("name", "", "Display name")
	command.Flags().String("email", "", "Login email")
	command.Flags().String("password", "", "Password (defaults to $"+adminPasswordEnv+")")
	_ = command.MarkFlagRequired("name")
	_ = command.MarkFlagRequired("email")
	return command
}

func runCreateAdmin(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	name, _ := cmd.Flags().GetString("name")
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv(adminPasswordEnv)
	}
	if password == "" {
		return errors.New("create-admin: --password or " + adminPasswordEnv + " is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL, pgstore.DefaultPoolSettings(), log)
	if err != nil {
		return err
	}
	defer pool.Close()

	service := auth.NewService(auth.Dependencies{
		Store:  auth.NewCredentialStore(pool),
		Hasher: sec.NewPasswordHasher(cfg.BcryptCost),
		Logger: log,
	})

	principal, err := service.CreateAdmin(ctx, auth.AdminInput{Name: name, Email: email, Password: password})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "admin created: id=%s email=%s\n", principal.ID, principal.Email)
	return nil
}
