// Package config defines process configuration and its loading.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults.
// - Load layers a YAML file and the environment on top of the defaults.
// - Errors are wrapped with this package's sentinels.
package config

import (
	"context"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// DryRun plans merges without writing.
	DryRun bool `koanf:"dry_run"`

	// FailOnGroupError makes the process exit non-zero when any group failed.
	FailOnGroupError bool `koanf:"fail_on_group_error"`

	Store   StoreConfig   `koanf:"store"`
	Metrics MetricsConfig `koanf:"metrics"`
}

// StoreConfig selects and tunes the score collection backend.
type StoreConfig struct {
	// Driver is one of memory, sqlite, postgres.
	Driver string `koanf:"driver"`

	// DSN is a file path for sqlite, a connection string for postgres, and
	// an optional YAML fixture for memory.
	DSN string `koanf:"dsn"`

	// Table holds the score records for SQL drivers.
	Table string `koanf:"table"`

	// OpsPerSecond caps writes and deletes; zero disables throttling.
	OpsPerSecond float64 `koanf:"ops_per_second"`

	// MaxConns bounds the postgres pool.
	MaxConns int32 `koanf:"max_conns"`
}

// MetricsConfig controls the batch metrics export.
type MetricsConfig struct {
	// Textfile is where metrics are written after the run; empty skips export.
	Textfile string `koanf:"textfile"`

	Namespace string `koanf:"namespace"`

	// Enabled turns collection off entirely when false.
	Enabled bool `koanf:"enabled"`

	// Labels are attached as constant labels to every series, e.g. env or job.
	Labels map[string]string `koanf:"labels"`
}

// New creates a Config with defaults. Context is accepted first to follow
// the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel: "info",
		Store: StoreConfig{
			Driver:   DriverMemory,
			Table:    "scores",
			MaxConns: 4,
		},
		Metrics: MetricsConfig{
			Namespace: "scorefix",
			Enabled:   true,
		},
	}
}
