package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/yourusername/quail/internal/database"
)

var migrateStatusOnly bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		cfg, log, err := bootstrap(ctx)
		if err != nil {
			return err
		}

		db, err := database.NewDB(ctx, &cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		if migrateStatusOnly {
			pending, err := db.PendingMigrations(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d pending migration(s)\n", pending)
			return nil
		}

		applied, err := db.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
		for _, name := range applied {
			log.WithField("migration", name).Info("Applied migration")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s)\n", len(applied))
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateStatusOnly, "status", false, "only report the number of pending migrations")
	rootCmd.AddCommand(migrateCmd)
}
