package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/slanderboard/internal/access"
	"github.com/slanderboard/internal/handler"
	"github.com/slanderboard/internal/identity"
	"github.com/slanderboard/internal/kafka"
	"github.com/slanderboard/internal/metrics"
	"github.com/slanderboard/internal/redis"
	"github.com/slanderboard/internal/service"
	"github.com/slanderboard/internal/validate"
	"github.com/slanderboard/internal/worker"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE:  serveRun,
	}
}

func serveRun(cmd *cobra.Command, _ []string) error {
	logger := commonRun()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, closeDB, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	if err := db.RunMigrations(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	relayEnabled := cfg.Kafka.Enabled && cfg.Relay.Enabled
	db.RecordLedgerEvents(relayEnabled)

	logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
	sessions, err := redis.NewSessionStore(&cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer sessions.Close()
	logger.Info("connected to Redis")

	provider, err := identity.NewProvider(&cfg.Auth, sessions, db, identity.NewLogMailer(logger), logger)
	if err != nil {
		return fmt.Errorf("creating identity provider: %w", err)
	}

	m := metrics.New()
	v := validate.New()
	profiles := service.NewProfileService(db, v)

	// Ledger events are only recorded when something relays them
	if relayEnabled {
		producer, err := kafka.NewProducer(&cfg.Kafka, logger)
		if err != nil {
			return fmt.Errorf("creating kafka producer: %w", err)
		}
		defer producer.Close()

		relay := worker.NewOutboxRelay(db, producer, m, &cfg.Relay, logger)
		if err := relay.Start(ctx); err != nil {
			return fmt.Errorf("starting outbox relay: %w", err)
		}
		defer func() {
			if err := relay.Stop(); err != nil {
				logger.Error("failed to stop outbox relay", "error", err)
			}
		}()
	}

	httpHandler := handler.NewHandler(handler.Deps{
		Config:      cfg,
		Leaderboard: service.NewLeaderboardService(db, db, &cfg.Leaderboard, logger),
		Ledger:      service.NewLedgerService(db, logger),
		Submissions: service.NewSubmissionService(db, v, logger),
		Profiles:    profiles,
		Players:     service.NewPlayerService(db, db, &cfg.Leaderboard),
		Identity:    provider,
		Resolver:    identity.NewResolver(provider, &cfg.Auth, logger),
		Policy:      access.NewPolicy(profiles),
		Validator:   v,
		Metrics:     m,
		Database:    db,
		Redis:       sessions,
	}, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	logger.Info("server stopped")
	return nil
}
