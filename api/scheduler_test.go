package api

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnsurer struct {
	mu    sync.Mutex
	years []int
	err   error
}

func (f *fakeEnsurer) EnsureYear(_ context.Context, year int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.years = append(f.years, year)
	return 3, f.err
}

func (f *fakeEnsurer) calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.years...)
}

func TestNewRolloverScheduler_InvalidSchedule(t *testing.T) {
	_, err := NewRolloverScheduler(&fakeEnsurer{}, "every tuesday", nil)
	assert.Error(t, err)

	_, err = NewRolloverScheduler(&fakeEnsurer{}, "0 5 1 1 *", nil)
	assert.NoError(t, err)
}

func TestRolloverScheduler_RunOnceUsesCurrentYear(t *testing.T) {
	f := &fakeEnsurer{}
	rs, err := NewRolloverScheduler(f, "0 5 1 1 *", nil)
	require.NoError(t, err)
	rs.now = func() time.Time { return time.Date(2031, 1, 1, 5, 0, 0, 0, time.UTC) }

	rs.RunOnce(context.Background())
	assert.Equal(t, []int{2031}, f.calls())

	// errors are logged, not returned
	f.err = errors.New("db down")
	rs.RunOnce(context.Background())
	assert.Equal(t, []int{2031, 2031}, f.calls())
}

func TestRolloverScheduler_SkipsCancelledContext(t *testing.T) {
	f := &fakeEnsurer{}
	rs, err := NewRolloverScheduler(f, "0 5 1 1 *", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rs.RunOnce(ctx)
	assert.Empty(t, f.calls())
}

func TestRolloverScheduler_StartStop(t *testing.T) {
	// GIVEN: A scheduler whose next run is months away
	// WHEN: Starting it twice and stopping it
	// THEN: Exactly one catch-up run happened

	f := &fakeEnsurer{}
	rs, err := NewRolloverScheduler(f, "0 5 1 1 *", nil)
	require.NoError(t, err)
	rs.now = func() time.Time { return testNow }

	require.NoError(t, rs.Start(context.Background()))
	require.NoError(t, rs.Start(context.Background()))
	rs.Stop()
	rs.Stop()

	assert.Equal(t, []int{2024}, f.calls())
}

func TestCronLogger_WritesToSlog(t *testing.T) {
	var buf bytes.Buffer
	var l cron.Logger = cronLogger{slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}

	l.Info("skip", "entry", 1)
	l.Error(errors.New("boom"), "panic", "entry", 2)

	out := buf.String()
	assert.Contains(t, out, "level=DEBUG")
	assert.Contains(t, out, `msg="cron: skip" entry=1`)
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, `msg="cron: panic" entry=2 error=boom`)
}
