// Package config loads server settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/warp/leave-engine/holiday"
)

type Config struct {
	Addr             string
	SQLitePath       string
	DatabaseURL      string
	JWTSecret        string
	Environment      string
	LogLevel         string
	TenantConfig     string
	DefaultLocale    string
	DefaultTotalDays float64
	RolloverSchedule string
	SchedulerEnabled bool
	CORSOrigins      []string
	LoadDemoData     bool
}

// LoadDotEnv reads an optional .env file into the process environment.
// Variables that are already set win. It reports whether a file was read.
func LoadDotEnv(paths ...string) bool {
	return godotenv.Load(paths...) == nil
}

func Load() Config {
	return Config{
		Addr:             getEnv("APP_ADDR", ":8080"),
		SQLitePath:       getEnv("SQLITE_PATH", "./leave.db"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		Environment:      getEnv("APP_ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		TenantConfig:     getEnv("TENANT_CONFIG", ""),
		DefaultLocale:    getEnv("DEFAULT_LOCALE", holiday.LocaleCZ),
		DefaultTotalDays: getEnvFloat("DEFAULT_TOTAL_DAYS", 20),
		RolloverSchedule: getEnv("ROLLOVER_SCHEDULE", "0 5 1 1 *"),
		SchedulerEnabled: getEnvBool("SCHEDULER_ENABLED", true),
		CORSOrigins:      getEnvList("CORS_ORIGINS", nil),
		LoadDemoData:     getEnvBool("LOAD_DEMO_DATA", false),
	}
}

func (c Config) IsProduction() bool { return c.Environment == "production" }

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" && strings.TrimSpace(c.SQLitePath) == "" {
		return fmt.Errorf("either DATABASE_URL or SQLITE_PATH is required")
	}
	if c.IsProduction() {
		if strings.TrimSpace(c.JWTSecret) == "" {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if c.LoadDemoData {
			return fmt.Errorf("LOAD_DEMO_DATA must be disabled in production")
		}
	}
	if c.DefaultLocale != "" {
		if _, err := holiday.LookupLocale(c.DefaultLocale); err != nil {
			return fmt.Errorf("DEFAULT_LOCALE: %w", err)
		}
	}
	if c.DefaultTotalDays < 0 {
		return fmt.Errorf("DEFAULT_TOTAL_DAYS must not be negative")
	}
	if c.SchedulerEnabled {
		if _, err := cron.ParseStandard(c.RolloverSchedule); err != nil {
			return fmt.Errorf("ROLLOVER_SCHEDULE: %w", err)
		}
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error")
	}
	return nil
}
