// Package config loads server configuration from defaults, an optional YAML
// file and environment overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration.
type Config struct {
	HTTPAddr string `yaml:"http_addr"`

	DB  DBConfig  `yaml:"db"`
	Log LogConfig `yaml:"log"`

	// JWTSecret signs bearer tokens. Empty disables authentication.
	JWTSecret string `yaml:"jwt_secret"`

	// Timezone decides which calendar day "today" is for overdue rules.
	Timezone string `yaml:"timezone"`
}

// DBConfig selects the storage backend.
type DBConfig struct {
	// Driver is "sqlite" or "pgx".
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level string `yaml:"level"`
	// Format is "text" (colored) or "json".
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddr: ":8080",
		DB: DBConfig{
			Driver: "sqlite",
			DSN:    "./data/receivables.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Timezone: "America/Sao_Paulo",
	}
}

// Load reads the file named by CONFIG_PATH, if any, then applies
// environment overrides and validates the result.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	override(&cfg.DB.Driver, "DB_DRIVER")
	override(&cfg.DB.DSN, "DB_DSN")
	override(&cfg.HTTPAddr, "HTTP_ADDR")
	override(&cfg.JWTSecret, "JWT_SECRET")
	override(&cfg.Log.Level, "LOG_LEVEL")
	override(&cfg.Log.Format, "LOG_FORMAT")
	override(&cfg.Timezone, "TIMEZONE")

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func override(dst *string, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*dst = value
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.DB.Driver {
	case "sqlite", "pgx", "postgres":
	default:
		return fmt.Errorf("config: unknown db driver %q", c.DB.Driver)
	}
	if c.DB.DSN == "" {
		return errors.New("config: db dsn required")
	}
	if c.HTTPAddr == "" {
		return errors.New("config: http addr required")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone, defaulting to UTC when empty.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
