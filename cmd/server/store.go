package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slanderboard/internal/config"
	"github.com/slanderboard/internal/identity"
	"github.com/slanderboard/internal/postgres"
	"github.com/slanderboard/internal/service"
	"github.com/slanderboard/internal/sqlite"
	"github.com/slanderboard/internal/worker"
)

// store is everything the server needs from a storage backend
type store interface {
	service.VoteReader
	service.SubmissionReader
	service.VoteWriter
	service.SubmissionWriter
	service.ProfileStore
	identity.UserStore
	worker.OutboxStore
	Ping(ctx context.Context) error
	RunMigrations(ctx context.Context) error
	RecordLedgerEvents(enabled bool)
}

// openStore connects to the configured backend and returns it with a
// close function.
func openStore(cfg *config.Config, logger *slog.Logger) (store, func(), error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		path := cfg.SQLite.Path
		if path == "" {
			path = ":memory:"
		}
		logger.Info("opening SQLite database", "path", path)
		s, err := sqlite.New(&cfg.SQLite, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite: %w", err)
		}
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Error("failed to close sqlite", "error", err)
			}
		}, nil
	case config.DriverPostgres:
		logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		repo, err := postgres.NewRepository(&cfg.Postgres, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		logger.Info("connected to PostgreSQL")
		return repo, repo.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}
