/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env and environment into config.Config, apply flag overrides
  2. Open the store (PostgreSQL when DATABASE_URL is set, SQLite otherwise)
  3. Build the holiday registry and policies, apply the tenant file
  4. Create the service, activate persisted holiday tables
  5. Start the rollover scheduler
  6. Start the HTTP server with graceful shutdown

COMMAND-LINE FLAGS:
  -addr    Listen address (overrides APP_ADDR)
  -db      SQLite database path (overrides SQLITE_PATH)
           Use ":memory:" for an in-memory database
  -tenants Tenant YAML file (overrides TENANT_CONFIG)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close the store

SEE ALSO:
  - config/config.go: Environment keys
  - api/server.go: Router configuration
  - factory/tenant.go: Tenant file format
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/factory"
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/holiday"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/postgres"
	"github.com/warp/leave-engine/store/sqlite"
)

// backend is what every store implementation provides.
type backend interface {
	leave.Store
	api.Resetter
	Close() error
}

func main() {
	loadedEnv := config.LoadDotEnv()
	cfg := config.Load()

	// Flags
	addr := flag.String("addr", cfg.Addr, "HTTP listen address")
	dbPath := flag.String("db", cfg.SQLitePath, "SQLite database path")
	tenants := flag.String("tenants", cfg.TenantConfig, "Tenant configuration file (YAML)")
	flag.Parse()
	cfg.Addr, cfg.SQLitePath, cfg.TenantConfig = *addr, *dbPath, *tenants

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	if loadedEnv {
		logger.Info("loaded .env")
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize store
	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer store.Close()

	registry, err := holiday.NewRegistry(cfg.DefaultLocale)
	if err != nil {
		return err
	}
	fallback := leave.DefaultPolicy()
	fallback.DefaultTotalDays = generic.NewDays(cfg.DefaultTotalDays)
	policies := leave.NewPolicies(fallback)

	if cfg.TenantConfig != "" {
		if err := applyTenantFile(ctx, cfg.TenantConfig, fallback, registry, policies, store); err != nil {
			return err
		}
	}

	svc := leave.NewService(store, registry, policies,
		leave.WithLogger(logger),
		leave.WithNotifier(leave.LogNotifier{Logger: logger}),
	)
	// Stored tables win over the tenant file: they are what admins edited.
	if err := svc.LoadHolidayTables(ctx); err != nil {
		return fmt.Errorf("load holiday tables: %w", err)
	}

	var resetter api.Resetter
	if !cfg.IsProduction() {
		resetter = store
	}
	handler := api.NewHandler(svc, resetter, logger)
	if cfg.LoadDemoData {
		if err := handler.LoadDemo(ctx); err != nil {
			return fmt.Errorf("load demo data: %w", err)
		}
	}

	if cfg.SchedulerEnabled {
		sched, err := api.NewRolloverScheduler(svc, cfg.RolloverSchedule, logger)
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}
		defer sched.Stop()
	}

	router := api.NewRouter(handler, api.RouterOptions{
		JWTSecret:       cfg.JWTSecret,
		AllowHeaderAuth: !cfg.IsProduction(),
		CORSOrigins:     cfg.CORSOrigins,
	})

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Addr, "env", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (backend, error) {
	if cfg.DatabaseURL != "" {
		return postgres.Connect(ctx, cfg.DatabaseURL)
	}
	return sqlite.New(cfg.SQLitePath)
}

func applyTenantFile(ctx context.Context, path string, fallback leave.Policy, reg *holiday.Registry, policies *leave.Policies, users factory.UserSaver) error {
	f, err := factory.LoadFile(path)
	if err != nil {
		return err
	}
	tenants, err := f.Build(factory.NewPolicyFactory(fallback))
	if err != nil {
		return fmt.Errorf("tenant file %s: %w", path, err)
	}
	if err := factory.Apply(ctx, tenants, reg, policies, users); err != nil {
		return fmt.Errorf("tenant file %s: %w", path, err)
	}
	slog.InfoContext(ctx, "tenants configured", "file", path, "count", len(tenants))
	return nil
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
