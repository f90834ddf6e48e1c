// Package config provides centralized configuration management for the
// inference worker. It loads configuration from environment variables
// with sensible defaults and validates all settings on startup to fail
// fast on misconfiguration.
package config

import "time"

// Config holds all worker configuration. All settings can be configured
// via environment variables.
type Config struct {
	Database  DatabaseConfig
	Inference InferenceConfig
	Worker    WorkerConfig
	Lock      LockConfig
	Logging   LoggingConfig
}

// DatabaseConfig holds PostgreSQL connection settings for internal/pgrepo.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required).
	// Supports both DATABASE_URL and DB_URL env vars for compatibility.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// InferenceConfig holds the tunables spec.md §3-4 leaves to the caller:
// chunk size, backoff bounds, and the defaults applied to a new Schema.
type InferenceConfig struct {
	// ChunkSize is rows read from the repository per cycle (spec §4.5: 1000).
	ChunkSize int `env:"INFERENCE_CHUNK_SIZE" default:"1000"`

	// BackoffInitial is the starting empty-read backoff (spec §4.5: 1s).
	BackoffInitial time.Duration `env:"INFERENCE_BACKOFF_INITIAL" default:"1s"`

	// BackoffMax is the backoff ceiling that ends the run (spec §4.5: 60s).
	BackoffMax time.Duration `env:"INFERENCE_BACKOFF_MAX" default:"60s"`

	// DefaultTolerance is the per-type failure tolerance Selector uses when
	// a caller doesn't supply one (spec §4.3).
	DefaultTolerance int `env:"INFERENCE_DEFAULT_TOLERANCE" default:"0"`

	// DefaultMaxCategories caps unique values before Category is
	// disqualified (spec §3: default 100).
	DefaultMaxCategories int `env:"INFERENCE_DEFAULT_MAX_CATEGORIES" default:"100"`
}

// WorkerConfig bounds how many datasets a single process drives concurrently.
type WorkerConfig struct {
	// MaxConcurrentDatasets is the maximum number of BatchedDriver.Run
	// goroutines active at once (default: 5).
	MaxConcurrentDatasets int `env:"WORKER_MAX_CONCURRENT_DATASETS" default:"5"`

	// MaxWaitTime is how long the worker pauses between polls of
	// EnumerateDatasets for incomplete datasets (default: 30s). It does not
	// bound how long a job waits for a coordinator slot.
	MaxWaitTime time.Duration `env:"WORKER_MAX_WAIT_TIME" default:"30s"`
}

// LockConfig holds the Redis-backed per-(user, dataset) advisory lock settings.
type LockConfig struct {
	// RedisAddr is the Redis server address (default: localhost:6379)
	RedisAddr string `env:"LOCK_REDIS_ADDR" default:"localhost:6379"`

	// TTL is how long a lock is held before it auto-expires, guarding
	// against a crashed worker leaving a dataset permanently locked
	// (default: 5m).
	TTL time.Duration `env:"LOCK_TTL" default:"5m"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}
