package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"APP_ADDR", "APP_ENV", "DEFAULT_TOTAL_DAYS", "CORS_ORIGINS", "SCHEDULER_ENABLED"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 20.0, cfg.DefaultTotalDays)
	assert.Empty(t, cfg.CORSOrigins, "router falls back to localhost origins")
	assert.True(t, cfg.SchedulerEnabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("APP_ADDR", ":9090")
	t.Setenv("DEFAULT_TOTAL_DAYS", "25.5")
	t.Setenv("CORS_ORIGINS", "https://a.test, https://b.test,")
	t.Setenv("SCHEDULER_ENABLED", "false")
	t.Setenv("LOAD_DEMO_DATA", "not-a-bool")

	cfg := Load()
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 25.5, cfg.DefaultTotalDays)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.CORSOrigins)
	assert.False(t, cfg.SchedulerEnabled)
	assert.False(t, cfg.LoadDemoData)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			SQLitePath:       "./leave.db",
			Environment:      "development",
			LogLevel:         "info",
			DefaultLocale:    "cz",
			DefaultTotalDays: 20,
			RolloverSchedule: "0 5 1 1 *",
			SchedulerEnabled: true,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no storage", func(c *Config) { c.SQLitePath = "" }},
		{"production without secret", func(c *Config) { c.Environment = "production" }},
		{"production with demo data", func(c *Config) { c.Environment = "production"; c.JWTSecret = "s"; c.LoadDemoData = true }},
		{"unknown locale", func(c *Config) { c.DefaultLocale = "atlantis" }},
		{"negative days", func(c *Config) { c.DefaultTotalDays = -1 }},
		{"bad schedule", func(c *Config) { c.RolloverSchedule = "every new year" }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}

	// A bad schedule is fine while the scheduler is off.
	c := valid()
	c.RolloverSchedule = "nonsense"
	c.SchedulerEnabled = false
	assert.NoError(t, c.Validate())
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LEAVE_TEST_ONLY=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("LEAVE_TEST_ONLY") })

	assert.True(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("LEAVE_TEST_ONLY"))
	assert.False(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}
