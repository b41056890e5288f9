package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"warish/internal/platform/config"
	"warish/internal/platform/postgres"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: withDB(func(cmd *cobra.Command, db *sql.DB) error {
				if err := postgres.Migrate(cmd.Context(), db); err != nil {
					return err
				}
				return printVersion(cmd, db)
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Revert the most recent migration",
			RunE: withDB(func(cmd *cobra.Command, db *sql.DB) error {
				if err := postgres.Rollback(cmd.Context(), db); err != nil {
					return err
				}
				return printVersion(cmd, db)
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			RunE:  withDB(printVersion),
		},
	)
	return cmd
}

func withDB(fn func(*cobra.Command, *sql.DB) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Use()
		if err != nil {
			return err
		}
		if cfg.Database.URL == "" {
			return errors.New("DATABASE_URL is required for migrations")
		}
		db, err := postgres.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		return fn(cmd, db)
	}
}

func printVersion(cmd *cobra.Command, db *sql.DB) error {
	v, err := postgres.Version(cmd.Context(), db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	cmd.Printf("schema version %d\n", v)
	return nil
}
