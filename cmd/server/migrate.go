package main

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"heritage-gallery-backend/internal/config"
	"heritage-gallery-backend/internal/database"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres session schema",
		Long: `Apply or roll back the embedded session schema migrations.

Requires DATABASE_URL.

Examples:
  server migrate up             # Apply all pending migrations
  server migrate down --steps 1 # Roll back the latest migration
  server migrate version        # Show the applied version`,
	}

	cmd.AddCommand(
		migrateUpCmd(),
		migrateDownCmd(),
		migrateVersionCmd(),
	)
	return cmd
}

func migrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m *database.Migrator) error {
				return m.Up()
			})
		},
	}
}

func migrateDownCmd() *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m *database.Migrator) error {
				return m.Down(steps)
			})
		},
	}
	cmd.Flags().IntVarP(&steps, "steps", "n", 1, "number of migrations to roll back")
	return cmd
}

func migrateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the applied migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(m *database.Migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %v)\n", version, dirty)
				return nil
			})
		},
	}
}

func withMigrator(fn func(*database.Migrator) error) error {
	cfg, err := config.Parse()
	if err != nil {
		return err
	}
	setupLogging(cfg)
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for migrations")
	}

	m, err := openMigrator(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	return fn(m)
}

// openMigrator uses its own connection; closing the migrator closes it.
func openMigrator(databaseURL string) (*database.Migrator, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	m, err := database.NewMigrator(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return m, nil
}
