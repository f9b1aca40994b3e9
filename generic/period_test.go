package generic

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rng(start, end string) Period {
	return Period{Start: MustParseDate(start), End: MustParseDate(end)}
}

// =============================================================================
// TIME POINT
// =============================================================================

func TestParseDate(t *testing.T) {
	tp, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, NewTimePoint(2024, time.February, 29), tp)
	assert.Equal(t, "2024-02-29", tp.String())

	for _, bad := range []string{"2023-02-29", "2024/01/01", "", "24-01-01"} {
		_, err := ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestDateOf_DropsClock(t *testing.T) {
	a := DateOf(time.Date(2024, 6, 1, 23, 59, 0, 0, time.UTC))
	b := DateOf(time.Date(2024, 6, 1, 0, 1, 0, 0, time.UTC))
	assert.Equal(t, a, b)
	assert.True(t, a == b)
}

func TestTimePoint_Calendar(t *testing.T) {
	assert.True(t, MustParseDate("2024-06-01").IsWeekend())
	assert.False(t, MustParseDate("2024-06-03").IsWeekend())
	assert.Equal(t, MustParseDate("2024-03-01"), MustParseDate("2024-02-28").AddDays(2))
	assert.Equal(t, 366, DaysInYear(2024))
	assert.Equal(t, 365, DaysInYear(2025))
	assert.Equal(t, 152, DaysBetween(StartOfYear(2024), MustParseDate("2024-06-01")))
	assert.Equal(t, -152, DaysBetween(MustParseDate("2024-06-01"), StartOfYear(2024)))
}

func TestDaysBetween_Centuries(t *testing.T) {
	// 1600-01-01 .. 2000-01-01 is one full 400-year Gregorian cycle
	assert.Equal(t, 146097, DaysBetween(StartOfYear(1600), StartOfYear(2000)))
	assert.Equal(t, 146097+1, rng("1600-01-01", "2000-01-01").Len())
}

// =============================================================================
// PERIOD
// =============================================================================

func TestPeriod_Validate(t *testing.T) {
	assert.NoError(t, rng("2024-06-03", "2024-06-03").Validate())
	assert.ErrorIs(t, rng("2024-06-04", "2024-06-03").Validate(), ErrInvalidPeriod)
	assert.ErrorIs(t, Period{}.Validate(), ErrInvalidPeriod)

	_, err := NewPeriod(MustParseDate("2024-06-04"), MustParseDate("2024-06-03"))
	assert.True(t, IsClientError(err))
}

func TestPeriod_DaysAndLen(t *testing.T) {
	p := rng("2024-02-27", "2024-03-01")
	assert.Equal(t, 4, p.Len())
	assert.Equal(t, []TimePoint{
		MustParseDate("2024-02-27"),
		MustParseDate("2024-02-28"),
		MustParseDate("2024-02-29"),
		MustParseDate("2024-03-01"),
	}, p.Days())

	assert.True(t, rng("2024-06-03", "2024-06-03").IsSingleDay())
	assert.Equal(t, 0, rng("2024-06-04", "2024-06-03").Len())
	assert.Nil(t, rng("2024-06-04", "2024-06-03").Days())
}

func TestPeriod_OverlapsAndIntersect(t *testing.T) {
	tests := []struct {
		name string
		a, b Period
		want Period
		ok   bool
	}{
		{"partial", rng("2024-06-03", "2024-06-05"), rng("2024-06-04", "2024-06-07"), rng("2024-06-04", "2024-06-05"), true},
		{"touching", rng("2024-06-03", "2024-06-05"), rng("2024-06-05", "2024-06-07"), rng("2024-06-05", "2024-06-05"), true},
		{"contained", rng("2024-06-01", "2024-06-30"), rng("2024-06-10", "2024-06-12"), rng("2024-06-10", "2024-06-12"), true},
		{"disjoint", rng("2024-06-03", "2024-06-05"), rng("2024-06-06", "2024-06-07"), Period{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.ok, tt.b.Overlaps(tt.a))
			got, ok := tt.a.Intersect(tt.b)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPeriod_Contains(t *testing.T) {
	p := YearPeriod(2024)
	assert.True(t, p.Contains(MustParseDate("2024-01-01")))
	assert.True(t, p.Contains(MustParseDate("2024-12-31")))
	assert.False(t, p.Contains(MustParseDate("2025-01-01")))
	assert.Equal(t, "[2024-01-01, 2024-12-31]", p.String())
}

// =============================================================================
// DAYS
// =============================================================================

func TestDays_HalfStepsAreExact(t *testing.T) {
	sum := ZeroDays()
	for i := 0; i < 10; i++ {
		sum = sum.Add(HalfDay())
	}
	assert.True(t, sum.Equal(NewDaysFromInt(5)))
	assert.Equal(t, "5", sum.String())
	assert.Equal(t, 16.5, NewDaysFromInt(20).Sub(NewDays(3.5)).Float64())
}

func TestDays_Clamping(t *testing.T) {
	assert.True(t, NewDays(-2).FloorZero().IsZero())
	assert.True(t, NewDays(2).FloorZero().Equal(NewDays(2)))
	assert.True(t, NewDays(2).Min(NewDays(3)).Equal(NewDays(2)))
	assert.True(t, NewDays(2).Max(NewDays(3)).Equal(NewDays(3)))
	assert.True(t, NewDays(8.36).Round(1).Equal(NewDays(8.4)))
	assert.True(t, NewDays(-1).Neg().IsPositive())
}

func TestParseDays(t *testing.T) {
	d, err := ParseDays("2.5")
	require.NoError(t, err)
	assert.True(t, d.Equal(NewDays(2.5)))

	_, err = ParseDays("two")
	assert.Error(t, err)
}

// =============================================================================
// ERRORS
// =============================================================================

func TestErrorCategories(t *testing.T) {
	ve := NewValidationError(ReasonNoBusinessDays, "range %s has no working days", "x")
	assert.True(t, IsClientError(ve))
	assert.Equal(t, "no_business_days: range x has no working days", ve.Error())

	ce := &ConflictError{RequestID: "r1", Current: "approved", Event: "reject"}
	assert.True(t, IsConflict(ce))
	assert.False(t, IsClientError(ce))

	pe := &PermissionError{ActorID: "u1", Action: "approve", Reason: "nope"}
	assert.True(t, IsPermission(pe))

	wrapped := errors.Join(errors.New("context"), ErrHolidayTableMissing)
	assert.True(t, IsConfiguration(wrapped))
	assert.True(t, IsNotFound(ErrUserNotFound))
	assert.True(t, IsConflict(ErrConcurrentModification))
}
