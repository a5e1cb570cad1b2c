// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/store"
)

// newMigrateCmd creates the migrate subcommand.
func newMigrateCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply pending schema migrations to the PostgreSQL database.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, configFile)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "config file path")
	cmd.AddCommand(newMigrateStatusCmd(&configFile))
	cmd.AddCommand(newMigrateDownCmd(&configFile))

	return cmd
}

func newMigrateStatusCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current migration version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			migrator, err := openMigrator(*configFile)
			if err != nil {
				return err
			}
			defer migrator.Close() //nolint:errcheck // read-only command

			version, dirty, err := migrator.Version()
			if err != nil {
				return oops.Code("MIGRATION_FAILED").With("operation", "read version").Wrap(err)
			}
			if version == 0 {
				cmd.Println("No migrations applied")
				return nil
			}
			cmd.Printf("Version: %d (dirty: %v)\n", version, dirty)
			return nil
		},
	}
}

func newMigrateDownCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			migrator, err := openMigrator(*configFile)
			if err != nil {
				return err
			}

			if err := migrator.Steps(-1); err != nil {
				_ = migrator.Close()
				return oops.Code("MIGRATION_FAILED").With("operation", "roll back").Wrap(err)
			}

			cmd.Println("Rolled back one migration")
			return migrator.Close()
		},
	}
}

func runMigrate(cmd *cobra.Command, configFile string) error {
	migrator, err := openMigrator(configFile)
	if err != nil {
		return err
	}

	cmd.Println("Running migrations...")
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}

	cmd.Println("Migrations completed successfully")
	return migrator.Close()
}

// openMigrator resolves the database URL from the config file or the
// DATABASE_URL environment variable and opens a migrator against it.
func openMigrator(configFile string) (*store.Migrator, error) {
	databaseURL := os.Getenv("DATABASE_URL")

	if configFile != "" {
		cfg, err := config.Load(configFile, nil)
		if err != nil {
			return nil, err
		}
		databaseURL = cfg.Database.URL
	}

	if databaseURL == "" {
		return nil, oops.Code("CONFIG_INVALID").
			Errorf("database URL is required (set DATABASE_URL or --config)")
	}

	return store.NewMigrator(databaseURL)
}
