package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Database drivers understood by the storage layer.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds the application configuration
type Config struct {
	HTTPAddr         string        `env:"HTTP_ADDR" envDefault:":8080"`
	AllowedOrigins   []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestBodyLimit int64         `env:"REQUEST_BODY_LIMIT" envDefault:"65536"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY"`

	DatabaseDriver        string `env:"DATABASE_DRIVER" envDefault:"postgres"`
	PostgresPrismaURL     string `env:"POSTGRES_PRISMA_URL"`
	PostgresURL           string `env:"POSTGRES_URL"`
	PostgresURLNonPooling string `env:"POSTGRES_URL_NON_POOLING"`
	DatabaseURL           string `env:"DATABASE_URL"`
	AutoMigrate           bool   `env:"AUTO_MIGRATE"`

	PartyName     string `env:"PARTY_NAME" envDefault:"Birthday Party"`
	PartyDate     string `env:"PARTY_DATE" envDefault:"TBD"`
	PartyLocation string `env:"PARTY_LOCATION" envDefault:"Venue TBD"`
	HostName      string `env:"HOST_NAME" envDefault:"Host"`

	WhatsAppEnabled bool   `env:"WHATSAPP_ENABLED"`
	WhatsAppDataDir string `env:"WHATSAPP_DATA_DIR" envDefault:"data"`
}

// LoadConfig loads configuration from environment variables or defaults
func LoadConfig() (*Config, error) {
	return parse(env.Options{})
}

// LoadConfigFrom parses configuration from the given variables instead of the
// process environment.
func LoadConfigFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))
	switch cfg.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}
	if cfg.RequestBodyLimit <= 0 {
		return nil, fmt.Errorf("REQUEST_BODY_LIMIT must be positive, got %d", cfg.RequestBodyLimit)
	}
	return &cfg, nil
}

// DSN returns the first non-empty connection string, in the order the
// hosting provider populates them.
func (c *Config) DSN() string {
	for _, v := range []string{c.PostgresPrismaURL, c.PostgresURL, c.PostgresURLNonPooling, c.DatabaseURL} {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// DatabaseConfigured reports whether connection parameters are present.
func (c *Config) DatabaseConfigured() bool {
	return c.DSN() != ""
}
