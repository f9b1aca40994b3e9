package leave

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/holiday"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(s string) generic.TimePoint { return generic.MustParseDate(s) }

func period(start, end string) generic.Period {
	return generic.Period{Start: date(start), End: date(end)}
}

func czCalendar(t *testing.T) *holiday.Calendar {
	t.Helper()
	c, err := holiday.LookupLocale(holiday.LocaleCZ)
	require.NoError(t, err)
	return c
}

func assertDays(t *testing.T, want float64, got generic.Days) {
	t.Helper()
	assert.True(t, got.Equal(generic.NewDays(want)), "want %v days, got %s", want, got)
}

// =============================================================================
// COMPUTE DAYS
// =============================================================================

func TestComputeDays_ChristmasWeekExcludesHolidays(t *testing.T) {
	// GIVEN: Mon 2024-12-23 .. Fri 2024-12-27 with Dec 24-26 holidays
	// WHEN: Computing days
	// THEN: 5 calendar days, 2 business days

	count, err := ComputeDays(period("2024-12-23", "2024-12-27"), czCalendar(t), HalfDayFlags{}, nil)
	require.NoError(t, err)
	assertDays(t, 5, count.TotalDays)
	assertDays(t, 2, count.BusinessDays)
}

func TestComputeDays_WeekendOnly(t *testing.T) {
	count, err := ComputeDays(period("2024-06-01", "2024-06-02"), czCalendar(t), HalfDayFlags{}, nil)
	require.NoError(t, err)
	assertDays(t, 2, count.TotalDays)
	assertDays(t, 0, count.BusinessDays)
}

func TestComputeDays_EasterMovesEveryYear(t *testing.T) {
	// GIVEN: Two weeks around Easter 2025 (Good Friday Apr 18, Easter Monday Apr 21)
	// WHEN: Computing days
	// THEN: 10 weekdays minus 2 movable holidays

	count, err := ComputeDays(period("2025-04-14", "2025-04-25"), czCalendar(t), HalfDayFlags{}, nil)
	require.NoError(t, err)
	assertDays(t, 12, count.TotalDays)
	assertDays(t, 8, count.BusinessDays)

	// The same dates in 2024 are ordinary weekdays.
	count, err = ComputeDays(period("2024-04-15", "2024-04-26"), czCalendar(t), HalfDayFlags{}, nil)
	require.NoError(t, err)
	assertDays(t, 10, count.BusinessDays)
}

func TestComputeDays_HalfDays(t *testing.T) {
	cal := czCalendar(t)

	tests := []struct {
		name         string
		rng          generic.Period
		flags        HalfDayFlags
		wantTotal    float64
		wantBusiness float64
	}{
		{"start half on a week", period("2024-06-03", "2024-06-07"), HalfDayFlags{StartHalf: true}, 4.5, 4.5},
		{"both halves on a week", period("2024-06-03", "2024-06-07"), HalfDayFlags{StartHalf: true, EndHalf: true}, 4, 4},
		{"single day start half", period("2024-06-03", "2024-06-03"), HalfDayFlags{StartHalf: true}, 0.5, 0.5},
		{"single day end half", period("2024-06-03", "2024-06-03"), HalfDayFlags{EndHalf: true}, 0.5, 0.5},
		{"single day both halves count once", period("2024-06-03", "2024-06-03"), HalfDayFlags{StartHalf: true, EndHalf: true}, 0.5, 0.5},
		{"week including weekend", period("2024-06-03", "2024-06-09"), HalfDayFlags{}, 7, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, err := ComputeDays(tt.rng, cal, tt.flags, nil)
			require.NoError(t, err)
			assertDays(t, tt.wantTotal, count.TotalDays)
			assertDays(t, tt.wantBusiness, count.BusinessDays)
		})
	}
}

func TestComputeDays_SkipsConsumedDates(t *testing.T) {
	// GIVEN: Tue-Fri with Tue and Wed already approved
	// WHEN: Computing days
	// THEN: Only Thu and Fri count

	consumed := NewDateSet(date("2024-06-04"), date("2024-06-05"))
	count, err := ComputeDays(period("2024-06-04", "2024-06-07"), czCalendar(t), HalfDayFlags{}, consumed)
	require.NoError(t, err)
	assertDays(t, 2, count.TotalDays)
	assertDays(t, 2, count.BusinessDays)
}

func TestComputeDays_HalfDayIgnoredOnConsumedStart(t *testing.T) {
	// GIVEN: A start half day on a date that is already approved leave
	// WHEN: Computing days
	// THEN: The half is not subtracted again

	consumed := NewDateSet(date("2024-06-04"))
	count, err := ComputeDays(period("2024-06-04", "2024-06-07"), czCalendar(t), HalfDayFlags{StartHalf: true}, consumed)
	require.NoError(t, err)
	assertDays(t, 3, count.BusinessDays)
}

func TestComputeDays_FullyConsumedIsZero(t *testing.T) {
	consumed := NewDateSet(date("2024-06-04"), date("2024-06-05"))
	count, err := ComputeDays(period("2024-06-04", "2024-06-05"), czCalendar(t), HalfDayFlags{EndHalf: true}, consumed)
	require.NoError(t, err)
	assertDays(t, 0, count.TotalDays)
	assertDays(t, 0, count.BusinessDays)
}

func TestComputeDays_FailsClosedWithoutTable(t *testing.T) {
	_, err := ComputeDays(period("2024-06-03", "2024-06-07"), nil, HalfDayFlags{}, nil)
	assert.ErrorIs(t, err, generic.ErrHolidayTableMissing)

	// A zero-value set is "not configured", not "no holidays".
	_, err = ComputeDays(period("2024-06-03", "2024-06-07"), &holiday.HolidaySet{}, HalfDayFlags{}, nil)
	assert.ErrorIs(t, err, generic.ErrHolidayTableMissing)
	assert.True(t, generic.IsConfiguration(err))
}

func TestComputeDays_RejectsInvertedRange(t *testing.T) {
	_, err := ComputeDays(period("2024-06-07", "2024-06-03"), czCalendar(t), HalfDayFlags{}, nil)
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
}

func TestComputeDays_EmptyTableCountsWeekdays(t *testing.T) {
	set, err := holiday.NewHolidaySet()
	require.NoError(t, err)

	count, err := ComputeDays(period("2024-12-23", "2024-12-27"), set, HalfDayFlags{}, nil)
	require.NoError(t, err)
	assertDays(t, 5, count.BusinessDays)
}

func TestDayCount_MinusHalfFloorsAtZero(t *testing.T) {
	c := DayCount{TotalDays: generic.HalfDay(), BusinessDays: generic.ZeroDays()}.minusHalf()
	assertDays(t, 0, c.TotalDays)
	assertDays(t, 0, c.BusinessDays)
}

// =============================================================================
// VALIDATE INPUT
// =============================================================================

func TestValidateInput(t *testing.T) {
	cal := czCalendar(t)

	tests := []struct {
		name  string
		rng   generic.Period
		flags HalfDayFlags
		code  generic.ReasonCode
	}{
		{"inverted range", period("2024-06-07", "2024-06-03"), HalfDayFlags{}, generic.ReasonInvalidRange},
		{"start half on holiday", period("2024-12-24", "2024-12-27"), HalfDayFlags{StartHalf: true}, generic.ReasonHalfDayOnNonWorkingDay},
		{"end half on weekend", period("2024-06-03", "2024-06-08"), HalfDayFlags{EndHalf: true}, generic.ReasonHalfDayOnNonWorkingDay},
		{"valid", period("2024-06-03", "2024-06-07"), HalfDayFlags{StartHalf: true, EndHalf: true}, ""},
		{"whole leap year", period("2024-01-01", "2024-12-31"), HalfDayFlags{}, ""},
		{"one day over the cap", period("2024-01-01", "2025-01-01"), HalfDayFlags{}, generic.ReasonInvalidRange},
		{"millennia", period("0002-01-01", "9999-12-31"), HalfDayFlags{}, generic.ReasonInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInput(tt.rng, tt.flags, cal)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			var ve *generic.ValidationError
			require.True(t, errors.As(err, &ve), "want ValidationError, got %v", err)
			assert.Equal(t, tt.code, ve.Code)
			assert.True(t, generic.IsClientError(err))
		})
	}
}

func TestComputeDays_RejectsOverlongRange(t *testing.T) {
	_, err := ComputeDays(period("0002-01-01", "9999-12-31"), czCalendar(t), HalfDayFlags{}, nil)
	var ve *generic.ValidationError
	require.True(t, errors.As(err, &ve), "want ValidationError, got %v", err)
	assert.Equal(t, generic.ReasonInvalidRange, ve.Code)
}

// =============================================================================
// OVERLAP
// =============================================================================

func TestConsumedDates_OnlyApprovedBlocks(t *testing.T) {
	existing := []LeaveRequest{
		{ID: "a", Range: period("2024-06-03", "2024-06-05"), Status: StatusApproved},
		{ID: "b", Range: period("2024-06-06", "2024-06-06"), Status: StatusPending},
		{ID: "c", Range: period("2024-06-07", "2024-06-07"), Status: StatusCancelPending},
		{ID: "d", Range: period("2024-06-01", "2024-06-30"), Status: StatusRejected},
		{ID: "e", Range: period("2024-07-01", "2024-07-05"), Status: StatusApproved},
	}

	consumed := ConsumedDates(period("2024-06-04", "2024-06-07"), existing)

	assert.Equal(t, []generic.TimePoint{date("2024-06-04"), date("2024-06-05")}, consumed.Sorted())
}

func TestDateSet_NormalizesTime(t *testing.T) {
	s := NewDateSet()
	s.Add(generic.TimePoint{Time: time.Date(2024, 6, 4, 15, 30, 0, 0, time.UTC)})
	assert.True(t, s.Has(date("2024-06-04")))
	assert.Equal(t, 1, s.Len())
}
