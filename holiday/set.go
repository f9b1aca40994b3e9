/*
Package holiday provides per-jurisdiction holiday calendars.

PURPOSE:
  Answers one question: is this calendar date a public holiday? The answer
  feeds the business-day calculator. Tables are configuration, injected per
  tenant, never package-level constants consulted implicitly.

KEY TYPES:
  HolidaySet: immutable set of recurring (month, day) pairs
  Calendar:   a HolidaySet plus movable feasts (Easter offsets)
  Registry:   resolves the calendar of a tenant

FAIL CLOSED:
  A nil or unconstructed table is a configuration error. Computing with it
  would silently under-count holidays, so Validate() refuses it.

SEE ALSO:
  - calendar.go: Movable feasts via github.com/rickar/cal/v2
  - locales.go: Built-in tables
  - leave/calculator.go: The consumer
*/
package holiday

import (
	"fmt"
	"sort"
	"time"

	"github.com/warp/leave-engine/generic"
)

// Source is anything that can classify dates as holidays.
type Source interface {
	IsHoliday(date generic.TimePoint) bool
	// Validate reports a missing or malformed table.
	Validate() error
}

// =============================================================================
// HOLIDAY SET - Recurring (month, day) pairs
// =============================================================================

// MonthDay is a date that recurs every year.
type MonthDay struct {
	Month time.Month
	Day   int
}

func (md MonthDay) String() string { return fmt.Sprintf("%02d-%02d", int(md.Month), md.Day) }

// Entry is one configured holiday.
type Entry struct {
	Month time.Month `json:"month" yaml:"month"`
	Day   int        `json:"day" yaml:"day"`
	Name  string     `json:"name" yaml:"name"`
}

func (e Entry) MonthDay() MonthDay { return MonthDay{Month: e.Month, Day: e.Day} }

// HolidaySet is an immutable set of recurring holidays.
// The zero value is "no table configured" and fails Validate.
type HolidaySet struct {
	days map[MonthDay]string
}

// NewHolidaySet validates and builds a set. Every entry must be a real date
// in a non-leap year (so Feb 29 is rejected) and no pair may repeat.
func NewHolidaySet(entries ...Entry) (*HolidaySet, error) {
	days := make(map[MonthDay]string, len(entries))
	for _, e := range entries {
		md := e.MonthDay()
		if err := validateMonthDay(md); err != nil {
			return nil, err
		}
		if _, dup := days[md]; dup {
			return nil, fmt.Errorf("%w: duplicate holiday %s", generic.ErrInvalidHolidayTable, md)
		}
		days[md] = e.Name
	}
	return &HolidaySet{days: days}, nil
}

// MustHolidaySet panics on an invalid table. For built-in presets only.
func MustHolidaySet(entries ...Entry) *HolidaySet {
	s, err := NewHolidaySet(entries...)
	if err != nil {
		panic(err)
	}
	return s
}

func validateMonthDay(md MonthDay) error {
	if md.Month < time.January || md.Month > time.December {
		return fmt.Errorf("%w: month %d out of range", generic.ErrInvalidHolidayTable, int(md.Month))
	}
	// 2023 is a non-leap year; time.Date normalizes overflow into the next month.
	probe := time.Date(2023, md.Month, md.Day, 0, 0, 0, 0, time.UTC)
	if md.Day < 1 || probe.Month() != md.Month {
		return fmt.Errorf("%w: day %d invalid for %s", generic.ErrInvalidHolidayTable, md.Day, md.Month)
	}
	return nil
}

// IsHoliday is pure and total over every calendar date.
func (s *HolidaySet) IsHoliday(date generic.TimePoint) bool {
	if s == nil {
		return false
	}
	_, ok := s.days[MonthDay{Month: date.Month(), Day: date.Day()}]
	return ok
}

// Validate implements Source.
func (s *HolidaySet) Validate() error {
	if s == nil || s.days == nil {
		return generic.ErrHolidayTableMissing
	}
	return nil
}

// Name returns the configured name of a holiday, if any.
func (s *HolidaySet) Name(date generic.TimePoint) (string, bool) {
	if s == nil {
		return "", false
	}
	name, ok := s.days[MonthDay{Month: date.Month(), Day: date.Day()}]
	return name, ok
}

func (s *HolidaySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.days)
}

// Entries returns the table sorted by month and day.
func (s *HolidaySet) Entries() []Entry {
	if s == nil {
		return nil
	}
	out := make([]Entry, 0, len(s.days))
	for md, name := range s.days {
		out = append(out, Entry{Month: md.Month, Day: md.Day, Name: name})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return out[i].Month < out[j].Month
		}
		return out[i].Day < out[j].Day
	})
	return out
}
