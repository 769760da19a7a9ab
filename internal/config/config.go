package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultAppEnv   = "development"
	defaultDBPath   = "./dev.db"
	defaultPort     = "8080"
	defaultLogLevel = "info"
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	AppEnv         string
	Port           string
	DBPath         string
	LogLevel       string
	AccessPassword string
	SessionSecret  string
	OTLPEndpoint   string
}

// Load reads environment variables and returns a populated Config.
func Load() Config {
	// Best-effort: load local dev environment variables.
	// We don't fail if the file is missing; production should use real env injection.
	_ = loadDotEnv(".env")

	cfg := Config{
		AppEnv:         os.Getenv("APP_ENV"),
		Port:           os.Getenv("PORT"),
		DBPath:         os.Getenv("DB_PATH"),
		LogLevel:       os.Getenv("LOG_LEVEL"),
		AccessPassword: os.Getenv("ACCESS_PASSWORD"),
		SessionSecret:  os.Getenv("SESSION_SECRET"),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if cfg.AppEnv == "" {
		cfg.AppEnv = defaultAppEnv
	}
	if cfg.DBPath == "" {
		cfg.DBPath = defaultDBPath
	}
	if cfg.Port == "" {
		cfg.Port = defaultPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}

	return cfg
}

// IsDev reports whether the app runs in a development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "", "dev", "development", "local":
		return true
	}
	return false
}

// Warnings lists settings that are missing or unsafe for the current environment.
func (c Config) Warnings() []string {
	var out []string
	if c.AccessPassword == "" {
		out = append(out, "ACCESS_PASSWORD is not set; the API is open to anyone who can reach it")
	}
	if c.AccessPassword != "" && c.SessionSecret == "" {
		out = append(out, "SESSION_SECRET is not set; sessions will not survive a restart")
	}
	return out
}

// loadDotEnv loads environment variables from path when present.
// Existing process environment variables are not overridden.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}

	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return fmt.Errorf("load %s: %w", path, err)
}
