// Package sqlite implements the slanderboard store on SQLite through gorm.
// It backs local development and the storage-backed tests.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/slanderboard/internal/config"
	"github.com/slanderboard/internal/domain"
)

// Store provides SQLite-based data access
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
	events bool
}

// New opens the SQLite database at cfg.Path. An empty path opens a private
// in-memory database.
func New(cfg *config.SQLiteConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", cfg.Path)
	if cfg.Path == "" {
		// Each store gets its own named in-memory database
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Discard,
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database handle: %w", err)
	}
	// A single connection serializes writers and keeps the in-memory
	// database alive.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	return &Store{db: db, logger: logger}, nil
}

// RecordLedgerEvents toggles writing ledger events to the outbox table
func (s *Store) RecordLedgerEvents(enabled bool) {
	s.events = enabled
}

// RunMigrations creates the table schemas
func (s *Store) RunMigrations(ctx context.Context) error {
	for _, model := range models {
		s.logger.Debug(fmt.Sprintf("creating table: %T", model))
		if err := s.db.WithContext(ctx).AutoMigrate(model); err != nil {
			return fmt.Errorf("migrating %T: %w", model, err)
		}
	}
	s.logger.Info("database migrations completed")
	return nil
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	return sqlDB.Close()
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func queryError(op string, err error) error {
	if err == nil {
		return nil
	}
	return domain.NewQueryError(op, fmt.Errorf("%s: %w", op, err))
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}
