package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when no config path is supplied.
const DefaultConfigPath = "config.yaml"

// Config is the process configuration loaded from YAML.
type Config struct {
	Listen   string         `yaml:"listen"`   // HTTP listen address, e.g. ":8318".
	Database DatabaseConfig `yaml:"database"` // Database settings.
	JWT      JWTConfig      `yaml:"jwt"`      // Token signing settings.
	Redis    RedisConfig    `yaml:"redis"`    // Optional summary cache backend.
	Log      LogConfig      `yaml:"log"`      // Logging settings.
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // Postgres or SQLite DSN.
}

// JWTConfig holds token signing settings. The secret has no baked-in
// default; a missing secret is a startup error.
type JWTConfig struct {
	Secret      string `yaml:"secret"`       // HS256 signing secret, mandatory.
	ExpiryHours int    `yaml:"expiry-hours"` // Token lifetime in hours.
}

// Expiry returns the token lifetime.
func (c JWTConfig) Expiry() time.Duration {
	if c.ExpiryHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.ExpiryHours) * time.Hour
}

// RedisConfig holds optional Redis settings; an empty addr disables the
// summary cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`     // host:port, empty disables caching.
	Password string `yaml:"password"` // Optional auth password.
	DB       int    `yaml:"db"`       // Logical database index.
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `yaml:"level"`       // logrus level name, default "info".
	File       string `yaml:"file"`        // Rotated log file path; empty logs to stdout only.
	MaxSizeMB  int    `yaml:"max-size"`    // Rotation threshold in megabytes.
	MaxBackups int    `yaml:"max-backups"` // Rotated files to retain.
	MaxAgeDays int    `yaml:"max-age"`     // Days to retain rotated files.
}

// ResolveConfigPath picks the effective config path, honoring the
// B2BQUOTA_CONFIG environment variable when the argument is empty.
func ResolveConfigPath(path string) string {
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		return trimmed
	}
	if env := strings.TrimSpace(os.Getenv("B2BQUOTA_CONFIG")); env != "" {
		return env
	}
	return DefaultConfigPath
}

// Load reads and validates the YAML config at path. Environment variables
// B2BQUOTA_DSN and B2BQUOTA_JWT_SECRET override the file values so secrets
// can stay out of the file entirely.
func Load(path string) (*Config, error) {
	raw, errRead := os.ReadFile(path)
	if errRead != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}

	var cfg Config
	if errDecode := yaml.Unmarshal(raw, &cfg); errDecode != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, errDecode)
	}

	if env := strings.TrimSpace(os.Getenv("B2BQUOTA_DSN")); env != "" {
		cfg.Database.DSN = env
	}
	if env := strings.TrimSpace(os.Getenv("B2BQUOTA_JWT_SECRET")); env != "" {
		cfg.JWT.Secret = env
	}

	if strings.TrimSpace(cfg.Listen) == "" {
		cfg.Listen = ":8318"
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, fmt.Errorf("config: database.dsn is required")
	}
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return nil, fmt.Errorf("config: jwt.secret is required (set it in the file or B2BQUOTA_JWT_SECRET)")
	}

	return &cfg, nil
}
