package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSupabase = "supabase"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

type Config struct {
	// Supabase
	SupabaseURL            string `env:"SUPABASE_URL"`
	SupabasePublishableKey string `env:"SUPABASE_PUBLISHABLE_KEY"`
	SupabaseServiceRoleKey string `env:"SUPABASE_SERVICE_ROLE_KEY"`
	SupabaseJWTSecret      string `env:"SUPABASE_JWT_SECRET"`
	SupabaseStorageBucket  string `env:"SUPABASE_STORAGE_BUCKET" envDefault:"gallery-images"`

	// Session store
	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"gallery.db"`
	// ChangeFeed enables LISTEN/NOTIFY session change events on Postgres.
	ChangeFeed bool `env:"CHANGE_FEED" envDefault:"true"`

	// External services
	RestorationAPIBaseURL  string `env:"RESTORATION_API_BASE_URL"`
	// AllowPrivateImageHosts lets processing fetch originals from loopback
	// or private addresses, such as a local storage emulator.
	AllowPrivateImageHosts bool   `env:"ALLOW_PRIVATE_IMAGE_HOSTS" envDefault:"false"`
	GeminiAPIKey           string `env:"GEMINI_API_KEY"`
	GeminiModel            string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`

	// Gallery refresh
	GalleryPollInterval        time.Duration `env:"GALLERY_POLL_INTERVAL" envDefault:"30s"`
	GalleryVisibilityThreshold time.Duration `env:"GALLERY_VISIBILITY_THRESHOLD" envDefault:"10s"`

	// Server
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads a .env file when present and then the process environment.
func Load() (*Config, error) {
	cfg, err := Parse()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Parse is Load without validation, for commands that need only part of
// the configuration.
func Parse() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}

	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s store", c.StoreDriver)
		}
	case DriverSupabase:
		if c.SupabaseURL == "" {
			return fmt.Errorf("SUPABASE_URL is required for the %s store", c.StoreDriver)
		}
		if c.SupabaseServiceRoleKey == "" && c.SupabasePublishableKey == "" {
			return fmt.Errorf("SUPABASE_SERVICE_ROLE_KEY or SUPABASE_PUBLISHABLE_KEY is required for the %s store", c.StoreDriver)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the %s store", c.StoreDriver)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.GalleryPollInterval <= 0 {
		return errors.New("GALLERY_POLL_INTERVAL must be positive")
	}
	if c.GalleryVisibilityThreshold <= 0 {
		return errors.New("GALLERY_VISIBILITY_THRESHOLD must be positive")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// StorageKey is the key used for object storage, preferring the service
// role key.
func (c *Config) StorageKey() string {
	if c.SupabaseServiceRoleKey != "" {
		return c.SupabaseServiceRoleKey
	}
	return c.SupabasePublishableKey
}

// StorageEnabled reports whether Supabase Storage is configured.
func (c *Config) StorageEnabled() bool {
	return c.SupabaseURL != "" && c.StorageKey() != ""
}

// ChangeFeedEnabled reports whether session change notifications can be
// received. Both Postgres-backed drivers write the notifying tables.
func (c *Config) ChangeFeedEnabled() bool {
	if !c.ChangeFeed || c.DatabaseURL == "" {
		return false
	}
	return c.StoreDriver == DriverPostgres || c.StoreDriver == DriverSupabase
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel)
	}
	return level, nil
}
