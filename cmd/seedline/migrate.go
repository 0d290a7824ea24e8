package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/seedline/internal/reco/storage/sqlite"
)

func newMigrateCmd() *cobra.Command {
	var dbPath string

	withDB := func(fn func(cmd *cobra.Command, db *sqlite.DB) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return errors.New("--db is required")
			}
			db, err := sqlite.Connect(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			return fn(cmd, db)
		}
	}
	printVersion := func(cmd *cobra.Command, db *sqlite.DB) error {
		version, dirty, err := db.MigrateVersion()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
		return nil
	}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the run database schema",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: withDB(func(cmd *cobra.Command, db *sqlite.DB) error {
				if err := db.MigrateUp(); err != nil {
					return err
				}
				return printVersion(cmd, db)
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: withDB(func(cmd *cobra.Command, db *sqlite.DB) error {
				if err := db.MigrateDown(); err != nil {
					return err
				}
				return printVersion(cmd, db)
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the current schema version",
			RunE:  withDB(printVersion),
		},
	)
	return cmd
}
