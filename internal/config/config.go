// Package config loads combatlog settings from the environment.
//
// Values come from COMBATLOG_* environment variables, optionally seeded
// from a .env file. Command-line flags override them.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds process-wide settings.
type Config struct {
	// DBPath is the SQLite event-log store.
	DBPath string `env:"COMBATLOG_DB_PATH" envDefault:"combatlog.db"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"COMBATLOG_LOG_LEVEL" envDefault:"info"`

	// LogFormat is text or json.
	LogFormat string `env:"COMBATLOG_LOG_FORMAT" envDefault:"text"`

	// MaxEvents is the per-run event budget, 0 for unlimited.
	MaxEvents int `env:"COMBATLOG_MAX_EVENTS" envDefault:"0"`

	// Workers bounds concurrent per-entity runs.
	Workers int `env:"COMBATLOG_WORKERS" envDefault:"4"`
}

// Load reads a .env file when one exists, then parses the environment.
// Variables already set in the environment win over the .env file.
// A missing .env file is not an error.
func Load(dotenv ...string) (Config, error) {
	if err := godotenv.Load(dotenv...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse loads configuration from environment variables only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", c.LogFormat)
	}
	if c.MaxEvents < 0 {
		return fmt.Errorf("invalid max events %d: must be >= 0", c.MaxEvents)
	}
	if c.Workers < 1 {
		return fmt.Errorf("invalid workers %d: must be >= 1", c.Workers)
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: must be debug, info, warn or error", s)
	}
	return level, nil
}
