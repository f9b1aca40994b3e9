/*
scheduler.go - Yearly entitlement rollover

PURPOSE:
  Makes sure every active user has an EntitlementRecord for the current
  year. Records are per (user, year) with the tenant default total; nothing
  carries over from the previous year.

DESIGN:
  - robfig/cron schedule, default "0 5 1 1 *" (Jan 1st, 05:00)
  - Runs once on Start so a server booted mid-year catches up
  - Overlapping runs are skipped

USAGE:
  s, err := NewRolloverScheduler(svc, "0 5 1 1 *", logger)
  s.Start(ctx)
  // ... later
  s.Stop()

SEE ALSO:
  - handlers.go: TriggerRollover endpoint (manual rollover)
  - leave/service.go: EnsureYear
*/
package api

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// YearEnsurer creates missing entitlement records for a year.
type YearEnsurer interface {
	EnsureYear(ctx context.Context, year int) (int, error)
}

// RolloverScheduler handles the automated yearly rollover.
type RolloverScheduler struct {
	svc      YearEnsurer
	schedule string
	logger   *slog.Logger
	now      func() time.Time

	cron *cron.Cron
	mu   sync.Mutex
	ctx  context.Context
}

// NewRolloverScheduler creates a scheduler. The schedule uses the standard
// five-field cron syntax.
func NewRolloverScheduler(svc YearEnsurer, schedule string, logger *slog.Logger) (*RolloverScheduler, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid rollover schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RolloverScheduler{svc: svc, schedule: schedule, logger: logger, now: time.Now}, nil
}

// Start runs the rollover once and then on schedule until Stop or ctx ends.
func (rs *RolloverScheduler) Start(ctx context.Context) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.cron != nil {
		return nil
	}

	rs.ctx = ctx
	rs.RunOnce(ctx)

	cl := cronLogger{rs.logger}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl)))
	if _, err := c.AddFunc(rs.schedule, func() { rs.RunOnce(rs.ctx) }); err != nil {
		return fmt.Errorf("schedule rollover: %w", err)
	}
	c.Start()
	rs.cron = c
	rs.logger.Info("rollover scheduler started", "schedule", rs.schedule)
	return nil
}

// Stop halts the schedule and waits for a running job.
func (rs *RolloverScheduler) Stop() {
	rs.mu.Lock()
	c := rs.cron
	rs.cron = nil
	rs.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	rs.logger.Info("rollover scheduler stopped")
}

// RunOnce ensures records for the current year. Errors are logged.
func (rs *RolloverScheduler) RunOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	year := rs.now().Year()
	created, err := rs.svc.EnsureYear(ctx, year)
	if err != nil {
		rs.logger.ErrorContext(ctx, "entitlement rollover failed", "year", year, "created", created, "error", err)
		return
	}
	rs.logger.InfoContext(ctx, "entitlement rollover", "year", year, "created", created)
}

// cronLogger routes cron's own messages (skipped runs, panics) to slog.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
