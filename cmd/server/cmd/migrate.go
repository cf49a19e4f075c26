package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Togather-Foundation/registration/internal/storage/postgres"
)

var errNoDatabase = errors.New("DATABASE_URL is required")

func newMigrateCommand() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Apply or roll back the SQL migrations that create the registrations
and settings tables.

Examples:
  server migrate up
  server migrate down --steps 1
  server migrate status`,
	}
	cmd.PersistentFlags().StringVar(&path, "path", postgres.DefaultMigrationsPath, "migrations directory")

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbURL, err := databaseURL()
			if err != nil {
				return err
			}
			if err := postgres.MigrateUp(dbURL, path); err != nil {
				return err
			}
			return printMigrationVersion(cmd, dbURL, path)
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbURL, err := databaseURL()
			if err != nil {
				return err
			}
			if err := postgres.MigrateDown(dbURL, path, steps); err != nil {
				return err
			}
			return printMigrationVersion(cmd, dbURL, path)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	status := &cobra.Command{
		Use:   "status",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbURL, err := databaseURL()
			if err != nil {
				return err
			}
			return printMigrationVersion(cmd, dbURL, path)
		},
	}

	cmd.AddCommand(up, down, status)
	return cmd
}

func databaseURL() (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", fmt.Errorf("config error: %w", err)
	}
	if !cfg.StoreConfigured() {
		return "", errNoDatabase
	}
	return cfg.Database.URL, nil
}

func printMigrationVersion(cmd *cobra.Command, dbURL, path string) error {
	version, dirty, err := postgres.MigrationVersion(dbURL, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d", version)
	if dirty {
		fmt.Fprint(cmd.OutOrStdout(), " (dirty)")
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}
