// Package config defines the service configuration, loaded from YAML with
// defaults, validation, environment overrides, and optional hot reload of
// the gateway section.
package config

import (
	"time"

	"mercator-hq/ganymede/pkg/gateway"
)

// Config is the root configuration for the service.
type Config struct {
	// Server configures the HTTP listener
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging
	Logging LoggingConfig `yaml:"logging"`

	// Providers configures the vendor adapters. Providers without an API
	// key are skipped at startup.
	Providers []ProviderConfig `yaml:"providers"`

	// Gateway configures resilience behavior
	Gateway gateway.Options `yaml:"gateway"`

	// Tasks configures the background task manager
	Tasks TasksConfig `yaml:"tasks"`

	// Catalog configures periodic model catalog refresh
	Catalog CatalogConfig `yaml:"catalog"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// ListenAddress is the host:port the server binds to
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout bounds request header and body reads
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds response writes. It must exceed the longest
	// expected completion stream; zero disables it.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error")
	Level string `yaml:"level"`

	// Format is the output format ("json", "text")
	Format string `yaml:"format"`

	// AddSource includes file and line number in logs
	AddSource bool `yaml:"add_source"`
}

// ProviderConfig configures one vendor adapter.
type ProviderConfig struct {
	// Name identifies the adapter: openai, anthropic, google, xai,
	// or openrouter
	Name string `yaml:"name"`

	// BaseURL overrides the adapter's default endpoint
	BaseURL string `yaml:"base_url"`

	// APIKey is the authentication key. The GANYMEDE_<NAME>_API_KEY
	// environment variable takes precedence.
	APIKey string `yaml:"api_key"`

	// Timeout is the per-request timeout
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the adapter-internal retry count for transient errors
	MaxRetries int `yaml:"max_retries"`
}

// TasksConfig configures the background task manager.
type TasksConfig struct {
	// StorePath is the SQLite database path for durable task storage.
	// Empty keeps tasks in memory only.
	StorePath string `yaml:"store_path"`

	// PruneAfter is how long terminal tasks are retained
	PruneAfter time.Duration `yaml:"prune_after"`

	// PruneSchedule is the cron schedule for pruning terminal tasks
	PruneSchedule string `yaml:"prune_schedule"`
}

// CatalogConfig configures model catalog refresh.
type CatalogConfig struct {
	// RefreshSchedule is the cron schedule for refreshing the model
	// catalog from the universal provider. Empty disables refresh.
	RefreshSchedule string `yaml:"refresh_schedule"`
}
