// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 XO Arena Contributors

package main

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/xoarena/xoarena/internal/store"
)

// NewMigrateCmd creates the migrate subcommand with its actions.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back, and inspect schema migrations for the PostgreSQL database.`,
	}

	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string (default: DATABASE_URL)")

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateDownCmd())
	cmd.AddCommand(newMigrateStepsCmd())
	cmd.AddCommand(newMigrateVersionCmd())
	cmd.AddCommand(newMigrateForceCmd())

	return cmd
}

// openMigrator builds a Migrator from the --database-url flag or the
// DATABASE_URL environment variable.
func openMigrator(cmd *cobra.Command) (*store.Migrator, error) {
	url, err := cmd.Flags().GetString("database-url")
	if err != nil {
		return nil, oops.Wrap(err)
	}
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("database URL is required (--database-url or DATABASE_URL)")
	}

	return store.NewMigrator(url)
}

// closeMigrator releases the migrator, logging close failures instead of
// masking the command's own error.
func closeMigrator(m *store.Migrator) {
	if err := m.Close(); err != nil {
		slog.Warn("error closing migrator", "error", err)
	}
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer closeMigrator(m)

			pending, err := m.PendingMigrations()
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				cmd.Println("No pending migrations")
				return nil
			}

			for _, version := range pending {
				name, err := store.MigrationName(version)
				if err != nil {
					return err
				}
				cmd.Printf("Applying %s...\n", name)
			}

			if err := m.Up(); err != nil {
				return err
			}

			cmd.Println("Migrations completed successfully")
			return nil
		},
	}
}

func newMigrateDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations (destructive)",
		Long:  `Roll back every applied migration, dropping all tables and data.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer closeMigrator(m)

			cmd.Println("Rolling back all migrations...")
			if err := m.Down(); err != nil {
				return err
			}

			cmd.Println("Rollback completed")
			return nil
		},
	}
}

func newMigrateStepsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "steps <n>",
		Short: "Apply n migrations (negative n rolls back)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return oops.Code("INVALID_STEPS").With("input", args[0]).
					Errorf("steps must be an integer")
			}
			if n == 0 {
				return oops.Code("INVALID_STEPS").Errorf("steps must be non-zero")
			}

			m, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer closeMigrator(m)

			if err := m.Steps(n); err != nil {
				return err
			}

			cmd.Printf("Applied %d step(s)\n", n)
			return nil
		},
	}
}

func newMigrateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the current migration version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer closeMigrator(m)

			version, dirty, err := m.Version()
			if err != nil {
				return err
			}

			if version == 0 {
				cmd.Println("No migrations applied")
			} else {
				name, err := store.MigrationName(version)
				if err != nil {
					return err
				}
				cmd.Printf("Current version: %d (%s)\n", version, name)
			}
			if dirty {
				cmd.Println("WARNING: database is dirty; fix manually and run 'migrate force'")
			}

			pending, err := m.PendingMigrations()
			if err != nil {
				return err
			}
			cmd.Printf("Pending migrations: %d\n", len(pending))
			return nil
		},
	}
}

func newMigrateForceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "force <version>",
		Short: "Set the migration version without running migrations",
		Long: `Set the recorded migration version without executing any migrations.
Use only to recover from a dirty state after fixing the database manually.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil || version < 0 {
				return oops.Code("INVALID_VERSION").With("input", args[0]).
					Errorf("version must be a non-negative integer")
			}

			m, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer closeMigrator(m)

			if err := m.Force(version); err != nil {
				return err
			}

			cmd.Printf("Forced version to %d\n", version)
			return nil
		},
	}
}
