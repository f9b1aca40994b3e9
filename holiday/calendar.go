package holiday

import (
	"fmt"

	cal "github.com/rickar/cal/v2"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// CALENDAR - Fixed table plus movable feasts
// =============================================================================

// MovableFeast is a holiday defined relative to Western Easter Sunday,
// e.g. Good Friday (-2) or Easter Monday (+1).
type MovableFeast struct {
	Name         string `json:"name" yaml:"name"`
	EasterOffset int    `json:"easter_offset" yaml:"easter_offset"`
}

// Calendar is the holiday source of one locale.
type Calendar struct {
	Locale  string
	Fixed   *HolidaySet
	Movable []MovableFeast

	feasts cal.Calendar
}

// NewCalendar builds a calendar. A nil fixed table is rejected.
func NewCalendar(locale string, fixed *HolidaySet, movable ...MovableFeast) (*Calendar, error) {
	if err := fixed.Validate(); err != nil {
		return nil, fmt.Errorf("locale %q: %w", locale, err)
	}
	c := &Calendar{Locale: locale, Fixed: fixed, Movable: movable}
	for _, m := range movable {
		if m.EasterOffset < -70 || m.EasterOffset > 70 {
			return nil, fmt.Errorf("%w: easter offset %d for %q out of range",
				generic.ErrInvalidHolidayTable, m.EasterOffset, m.Name)
		}
		c.feasts.AddHoliday(&cal.Holiday{
			Name:   m.Name,
			Type:   cal.ObservancePublic,
			Offset: m.EasterOffset,
			Func:   cal.CalcEasterOffset,
		})
	}
	return c, nil
}

// IsHoliday implements Source.
func (c *Calendar) IsHoliday(date generic.TimePoint) bool {
	if c == nil {
		return false
	}
	if c.Fixed.IsHoliday(date) {
		return true
	}
	if len(c.Movable) == 0 {
		return false
	}
	actual, _, _ := c.feasts.IsHoliday(date.Time)
	return actual
}

// Validate implements Source.
func (c *Calendar) Validate() error {
	if c == nil {
		return generic.ErrHolidayTableMissing
	}
	return c.Fixed.Validate()
}

// Holiday is a concrete dated occurrence.
type Holiday struct {
	Date generic.TimePoint
	Name string
}

// HolidaysIn lists every holiday inside the period, in date order.
func (c *Calendar) HolidaysIn(p generic.Period) []Holiday {
	if c == nil {
		return nil
	}
	var out []Holiday
	for _, d := range p.Days() {
		if name, ok := c.Fixed.Name(d); ok {
			out = append(out, Holiday{Date: d, Name: name})
			continue
		}
		if len(c.Movable) == 0 {
			continue
		}
		if actual, _, h := c.feasts.IsHoliday(d.Time); actual && h != nil {
			out = append(out, Holiday{Date: d, Name: h.Name})
		}
	}
	return out
}
