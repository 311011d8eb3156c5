package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slanderboard/internal/config"
	"github.com/slanderboard/internal/domain"
)

// PostgreSQL error codes mapped to domain errors
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Repository provides PostgreSQL-based data access
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	events bool
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// RecordLedgerEvents toggles writing ledger events to the outbox table in the
// same transaction as each vote or submission.
func (r *Repository) RecordLedgerEvents(enabled bool) {
	r.events = enabled
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Ping checks database connectivity
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			email TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS profiles (
			user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			username TEXT UNIQUE CHECK (username ~ '^[a-z0-9_]{3,20}$'),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS players (
			id BIGSERIAL PRIMARY KEY,
			full_name TEXT NOT NULL CHECK (char_length(full_name) BETWEEN 2 AND 64),
			league TEXT NOT NULL CHECK (league IN ('EPL', 'LaLiga', 'SerieA', 'Bundesliga', 'Ligue1')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_players_name_league ON players (lower(full_name), league)`,
		`CREATE TABLE IF NOT EXISTS slander_names (
			id BIGSERIAL PRIMARY KEY,
			text TEXT NOT NULL CHECK (char_length(text) BETWEEN 2 AND 64),
			player_id BIGINT REFERENCES players(id) ON DELETE SET NULL,
			submitted_by UUID REFERENCES users(id) ON DELETE SET NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_slander_names_created ON slander_names (created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_slander_names_player ON slander_names (player_id)`,
		`CREATE TABLE IF NOT EXISTS votes (
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			slander_id BIGINT NOT NULL REFERENCES slander_names(id) ON DELETE CASCADE,
			vote SMALLINT NOT NULL CHECK (vote IN (-1, 1)),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, slander_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_votes_created ON votes (created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_votes_slander ON votes (slander_id)`,
		`CREATE TABLE IF NOT EXISTS ledger_events (
			id BIGSERIAL PRIMARY KEY,
			kind TEXT NOT NULL,
			user_id UUID NOT NULL,
			slander_id BIGINT NOT NULL,
			value SMALLINT NOT NULL DEFAULT 0,
			payload JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			published_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_events_pending ON ledger_events (id) WHERE published_at IS NULL`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// queryError maps driver errors onto domain errors
func queryError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			if pgErr.TableName == "profiles" {
				return domain.ErrUsernameTaken
			}
		case codeForeignKeyViolation:
			if pgErr.ConstraintName == "votes_slander_id_fkey" {
				return domain.ErrSubmissionNotFound
			}
		}
	}
	return domain.NewQueryError(op, fmt.Errorf("%s: %w", op, err))
}

// execer is the subset of pgx shared by the pool and transactions
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}
