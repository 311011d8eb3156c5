package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides
const EnvPrefix = "SLANDER"

// Config represents the application configuration
type Config struct {
	Environment string            `yaml:"environment"`
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	SQLite      SQLiteConfig      `yaml:"sqlite"`
	Redis       RedisConfig       `yaml:"redis"`
	Auth        AuthConfig        `yaml:"auth"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Relay       RelayConfig       `yaml:"relay"`
	Leaderboard LeaderboardConfig `yaml:"leaderboard"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout time.Duration `yaml:"write_timeout" split_words:"true"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" split_words:"true"`
	// StaticDir holds the pre-built UI bundle served for page routes.
	StaticDir string `yaml:"static_dir" split_words:"true"`
}

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig selects the storage backend
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	URL             string        `yaml:"url"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode" split_words:"true"`
	MaxConnections  int           `yaml:"max_connections" split_words:"true"`
	MinConnections  int           `yaml:"min_connections" split_words:"true"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" split_words:"true"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" split_words:"true"`
}

// ConnectionString returns the PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

// SQLiteConfig holds the SQLite database location. An empty path keeps the
// database in memory.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size" split_words:"true"`
	MinIdleConns int           `yaml:"min_idle_conns" split_words:"true"`
	DialTimeout  time.Duration `yaml:"dial_timeout" split_words:"true"`
	ReadTimeout  time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout time.Duration `yaml:"write_timeout" split_words:"true"`
}

// AuthConfig holds identity provider and session cookie configuration
type AuthConfig struct {
	Secret        string        `yaml:"secret"`
	Issuer        string        `yaml:"issuer"`
	AccessTTL     time.Duration `yaml:"access_ttl" split_words:"true"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl" split_words:"true"`
	SignInCodeTTL time.Duration `yaml:"signin_code_ttl" split_words:"true"`
	// RefreshReuseWindow is how long a rotated refresh token still resolves
	// to the pair it was rotated to, for requests racing the rotation.
	RefreshReuseWindow time.Duration `yaml:"refresh_reuse_window" split_words:"true"`
	BaseURL       string        `yaml:"base_url" split_words:"true"`
	CookieSecure  bool          `yaml:"cookie_secure" split_words:"true"`
	CookieDomain  string        `yaml:"cookie_domain" split_words:"true"`
}

// KafkaConfig holds Kafka connection configuration
type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	GroupID      string        `yaml:"group_id" split_words:"true"`
	BatchSize    int           `yaml:"batch_size" split_words:"true"`
	BatchTimeout time.Duration `yaml:"batch_timeout" split_words:"true"`
}

// RelayConfig holds the ledger event outbox relay configuration
type RelayConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Interval  time.Duration `yaml:"interval"`
	BatchSize int           `yaml:"batch_size" split_words:"true"`
}

// LeaderboardConfig holds aggregation limits
type LeaderboardConfig struct {
	PageSize              int `yaml:"page_size" split_words:"true"`
	VoteScanLimit         int `yaml:"vote_scan_limit" split_words:"true"`
	CandidateLimit        int `yaml:"candidate_limit" split_words:"true"`
	PlayerSubmissionLimit int `yaml:"player_submission_limit" split_words:"true"`
	PlayerVoteLimit       int `yaml:"player_vote_limit" split_words:"true"`
}

// Load reads configuration from a YAML file, then applies SLANDER_*
// environment overrides and defaults. An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		// Expand environment variables
		data = []byte(os.ExpandEnv(string(data)))

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that have no usable default
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("invalid database driver %q (must be %q or %q)", c.Database.Driver, DriverPostgres, DriverSQLite)
	}
	if c.Auth.Secret == "" && c.Environment == "production" {
		return errors.New("auth secret is required in production")
	}
	if c.Relay.Interval <= 0 {
		return fmt.Errorf("relay interval must be positive, got %s", c.Relay.Interval)
	}
	if c.Auth.RefreshReuseWindow < 0 {
		return fmt.Errorf("auth refresh reuse window must not be negative, got %s", c.Auth.RefreshReuseWindow)
	}
	limits := []struct {
		name  string
		value int
	}{
		{"leaderboard page_size", c.Leaderboard.PageSize},
		{"leaderboard vote_scan_limit", c.Leaderboard.VoteScanLimit},
		{"leaderboard candidate_limit", c.Leaderboard.CandidateLimit},
		{"leaderboard player_submission_limit", c.Leaderboard.PlayerSubmissionLimit},
		{"leaderboard player_vote_limit", c.Leaderboard.PlayerVoteLimit},
	}
	for _, l := range limits {
		if l.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", l.name, l.value)
		}
	}
	return nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}

	// PostgreSQL defaults
	if c.Postgres.Host == "" {
		c.Postgres.Host = "localhost"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.Database == "" {
		c.Postgres.Database = "slanderboard"
	}
	if c.Postgres.MaxConnections == 0 {
		c.Postgres.MaxConnections = 20
	}
	if c.Postgres.MinConnections == 0 {
		c.Postgres.MinConnections = 2
	}
	if c.Postgres.MaxConnLifetime == 0 {
		c.Postgres.MaxConnLifetime = 1 * time.Hour
	}
	if c.Postgres.MaxConnIdleTime == 0 {
		c.Postgres.MaxConnIdleTime = 30 * time.Minute
	}

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 50
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 5
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}

	// Auth defaults
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "slanderboard"
	}
	if c.Auth.AccessTTL == 0 {
		c.Auth.AccessTTL = 1 * time.Hour
	}
	if c.Auth.RefreshTTL == 0 {
		c.Auth.RefreshTTL = 30 * 24 * time.Hour
	}
	if c.Auth.SignInCodeTTL == 0 {
		c.Auth.SignInCodeTTL = 15 * time.Minute
	}
	if c.Auth.RefreshReuseWindow == 0 {
		c.Auth.RefreshReuseWindow = 10 * time.Second
	}
	if c.Auth.BaseURL == "" {
		c.Auth.BaseURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}

	// Kafka defaults
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "slander-ledger"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "slander-event-tail"
	}
	if c.Kafka.BatchSize == 0 {
		c.Kafka.BatchSize = 100
	}
	if c.Kafka.BatchTimeout == 0 {
		c.Kafka.BatchTimeout = 1 * time.Second
	}

	// Relay defaults
	if c.Relay.Interval == 0 {
		c.Relay.Interval = 5 * time.Second
	}
	if c.Relay.BatchSize == 0 {
		c.Relay.BatchSize = 500
	}

	// Leaderboard defaults
	if c.Leaderboard.PageSize == 0 {
		c.Leaderboard.PageSize = 50
	}
	if c.Leaderboard.VoteScanLimit == 0 {
		c.Leaderboard.VoteScanLimit = 5000
	}
	if c.Leaderboard.CandidateLimit == 0 {
		c.Leaderboard.CandidateLimit = 2 * c.Leaderboard.PageSize
	}
	if c.Leaderboard.PlayerSubmissionLimit == 0 {
		c.Leaderboard.PlayerSubmissionLimit = 500
	}
	if c.Leaderboard.PlayerVoteLimit == 0 {
		c.Leaderboard.PlayerVoteLimit = 10000
	}
}

// DefaultConfig returns a configuration with all defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
