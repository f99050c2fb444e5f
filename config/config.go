// Package config provides configuration for the restore request store
// loaded from environment variables with defaults and validation. It
// replaces per-call environment reads with a single explicit struct
// handed to constructors.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the restore request store
// and its consumers.
type Config struct {
	Region             string        // AWS_REGION
	TableName          string        // RESTORE_TABLE_NAME
	StatusLocationBase string        // RESTORE_STATUS_LOCATION_BASE
	PollInterval       time.Duration // RESTORE_POLL_INTERVAL (e.g. 5s)
	LogLevel           string        // LOG_LEVEL: debug|info|warn|error
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables, applies defaults,
// and validates the result. A .env file in the working directory is
// loaded first when present; real environment variables take precedence.
func Load() (Config, error) {
	// Missing .env files are fine; the environment is authoritative.
	_ = godotenv.Load()

	cfg := Config{
		Region:             getenv("AWS_REGION", ""),
		TableName:          getenv("RESTORE_TABLE_NAME", ""),
		StatusLocationBase: getenv("RESTORE_STATUS_LOCATION_BASE", "/restore/requests"),
		PollInterval:       getdur("RESTORE_POLL_INTERVAL", 5*time.Second),
		LogLevel:           strings.ToLower(getenv("LOG_LEVEL", "info")),
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	cfg.StatusLocationBase = strings.TrimRight(cfg.StatusLocationBase, "/")

	// --- validation ---
	if strings.TrimSpace(cfg.Region) == "" {
		return cfg, errors.New("AWS_REGION must not be empty")
	}
	if strings.TrimSpace(cfg.TableName) == "" {
		return cfg, errors.New("RESTORE_TABLE_NAME must not be empty")
	}
	if strings.TrimSpace(cfg.StatusLocationBase) == "" {
		return cfg, errors.New("RESTORE_STATUS_LOCATION_BASE must not be empty")
	}
	if cfg.PollInterval <= 0 {
		return cfg, errors.New("RESTORE_POLL_INTERVAL must be a positive duration")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	return cfg, nil
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
