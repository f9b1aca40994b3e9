/*
calculator.go - Business-day calculator

PURPOSE:
  The single place where a date range becomes a day count. Every consumer
  (submission, preview, admin views) calls ComputeDays; nothing else does
  half-day or holiday arithmetic.

ALGORITHM:
  1. Enumerate every date in the inclusive range
  2. Drop dates already consumed by approved leave
  3. TotalDays    = remaining dates
  4. BusinessDays = remaining dates that are neither weekend nor holiday
  5. StartHalf on a working, non-consumed start date: -0.5 from both
  6. EndHalf on a working, non-consumed end date: -0.5 from both, except
     when start == end and the start half was already applied

  Both results are floored at zero after each subtraction.

EXAMPLE:
  Mon 2024-12-23 .. Fri 2024-12-27, Dec 24-26 holidays:
    TotalDays = 5, BusinessDays = 2

SEE ALSO:
  - overlap.go: Produces the alreadyConsumed set
  - holiday/set.go: Holiday sources
*/
package leave

import (
	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/holiday"
)

// DayCount is the result of ComputeDays.
type DayCount struct {
	TotalDays    generic.Days
	BusinessDays generic.Days
}

// IsWorkingDay reports a date that is neither a weekend day nor a holiday.
func IsWorkingDay(d generic.TimePoint, holidays holiday.Source) bool {
	return !d.IsWeekend() && !holidays.IsHoliday(d)
}

// ComputeDays counts the calendar and business days a range consumes.
// It refuses to compute without a valid holiday source.
func ComputeDays(rng generic.Period, holidays holiday.Source, flags HalfDayFlags, alreadyConsumed DateSet) (DayCount, error) {
	if holidays == nil {
		return DayCount{}, generic.ErrHolidayTableMissing
	}
	if err := holidays.Validate(); err != nil {
		return DayCount{}, err
	}
	if err := rng.Validate(); err != nil {
		return DayCount{}, err
	}
	if err := validateSpan(rng); err != nil {
		return DayCount{}, err
	}

	var total, business int
	for _, d := range rng.Days() {
		if alreadyConsumed.Has(d) {
			continue
		}
		total++
		if IsWorkingDay(d, holidays) {
			business++
		}
	}

	count := DayCount{
		TotalDays:    generic.NewDaysFromInt(total),
		BusinessDays: generic.NewDaysFromInt(business),
	}

	startHalfApplied := false
	if flags.StartHalf && halfDayApplies(rng.Start, holidays, alreadyConsumed) {
		count = count.minusHalf()
		startHalfApplied = true
	}
	if flags.EndHalf && halfDayApplies(rng.End, holidays, alreadyConsumed) {
		// The same single day cannot lose two halves.
		if !(rng.IsSingleDay() && startHalfApplied) {
			count = count.minusHalf()
		}
	}
	return count, nil
}

func halfDayApplies(d generic.TimePoint, holidays holiday.Source, consumed DateSet) bool {
	return IsWorkingDay(d, holidays) && !consumed.Has(d)
}

func (c DayCount) minusHalf() DayCount {
	half := generic.HalfDay()
	return DayCount{
		TotalDays:    c.TotalDays.Sub(half).FloorZero(),
		BusinessDays: c.BusinessDays.Sub(half).FloorZero(),
	}
}

// MaxRangeDays bounds the calendar length of a request or a calendar window.
const MaxRangeDays = 366

// validateSpan rejects ranges longer than MaxRangeDays.
func validateSpan(rng generic.Period) error {
	if n := rng.Len(); n > MaxRangeDays {
		return generic.NewValidationError(generic.ReasonInvalidRange,
			"range %s spans %d days, at most %d allowed", rng, n, MaxRangeDays)
	}
	return nil
}

// ValidateInput rejects ranges and half-day flags that are configuration
// errors rather than silently ignoring them.
func ValidateInput(rng generic.Period, flags HalfDayFlags, holidays holiday.Source) error {
	if holidays == nil {
		return generic.ErrHolidayTableMissing
	}
	if err := holidays.Validate(); err != nil {
		return err
	}
	if err := rng.Validate(); err != nil {
		return generic.NewValidationError(generic.ReasonInvalidRange,
			"start date %s is after end date %s", rng.Start, rng.End)
	}
	if err := validateSpan(rng); err != nil {
		return err
	}
	if flags.StartHalf && !IsWorkingDay(rng.Start, holidays) {
		return generic.NewValidationError(generic.ReasonHalfDayOnNonWorkingDay,
			"start date %s is not a working day", rng.Start)
	}
	if flags.EndHalf && !IsWorkingDay(rng.End, holidays) {
		return generic.NewValidationError(generic.ReasonHalfDayOnNonWorkingDay,
			"end date %s is not a working day", rng.End)
	}
	return nil
}
