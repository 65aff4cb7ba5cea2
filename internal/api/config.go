package api

import (
	"os"
	"strconv"
	"time"
)

// Config holds the server configuration, loaded from environment variables.
type Config struct {
	ListenAddr      string
	DBPath          string
	APIKey          string // shared bearer key; empty disables auth (local dev)
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
	LogFormat       string // "json" (default) or "text"
	LogLevel        string // "debug", "info" (default), "warn", "error"
}

// LoadConfig reads configuration from environment variables with sensible defaults.
func LoadConfig() Config {
	cfg := Config{
		ListenAddr:      ":8080",
		DBPath:          "./data/lift-sync.db",
		ShutdownTimeout: 30 * time.Second,
		MaxBodyBytes:    4 << 20,
		LogFormat:       "json",
		LogLevel:        "info",
	}

	if v := os.Getenv("LIFT_SYNC_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("LIFT_SYNC_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("LIFT_SYNC_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("LIFT_SYNC_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ShutdownTimeout = d
		}
	}
	if v := os.Getenv("LIFT_SYNC_MAX_BODY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxBodyBytes = n
		}
	}
	if v := os.Getenv("LIFT_SYNC_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("LIFT_SYNC_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg
}
