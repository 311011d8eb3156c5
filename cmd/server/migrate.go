package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := commonRun()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			db, closeDB, err := openStore(cfg, logger)
			if err != nil {
				return err
			}
			defer closeDB()

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()
			if err := db.RunMigrations(ctx); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}

			logger.Info("migrations complete", "driver", cfg.Database.Driver)
			return nil
		},
	}
}
