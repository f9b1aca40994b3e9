package generic

// =============================================================================
// PERIOD - Inclusive date range
// =============================================================================

// Period is an inclusive range of calendar dates [Start, End].
// A single-day range has Start == End.
type Period struct {
	Start TimePoint
	End   TimePoint
}

// NewPeriod builds a range and checks Start <= End.
func NewPeriod(start, end TimePoint) (Period, error) {
	p := Period{Start: start, End: end}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// Validate rejects ranges whose end is before their start.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return ErrInvalidPeriod
	}
	if p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// Contains returns true if the date is within [Start, End].
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Days returns every calendar date in the period, in order.
func (p Period) Days() []TimePoint {
	if p.End.Before(p.Start) {
		return nil
	}
	days := make([]TimePoint, 0, p.Len())
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// Len is the inclusive number of calendar days.
func (p Period) Len() int {
	if p.End.Before(p.Start) {
		return 0
	}
	return DaysBetween(p.Start, p.End) + 1
}

// IsSingleDay reports Start == End.
func (p Period) IsSingleDay() bool { return p.Start.Equal(p.End) }

// Overlaps reports whether the two ranges share at least one date.
func (p Period) Overlaps(o Period) bool {
	return !p.End.Before(o.Start) && !o.End.Before(p.Start)
}

// Intersect returns the shared dates of both ranges. ok is false when
// they do not overlap.
func (p Period) Intersect(o Period) (Period, bool) {
	if !p.Overlaps(o) {
		return Period{}, false
	}
	start := p.Start
	if o.Start.After(start) {
		start = o.Start
	}
	end := p.End
	if o.End.Before(end) {
		end = o.End
	}
	return Period{Start: start, End: end}, true
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// YearPeriod is Jan 1 - Dec 31 of the given year.
func YearPeriod(year int) Period {
	return Period{Start: StartOfYear(year), End: EndOfYear(year)}
}
