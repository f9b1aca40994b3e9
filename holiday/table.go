package holiday

import (
	"fmt"

	"github.com/warp/leave-engine/generic"
)

// Table is the persisted, serializable description of a tenant calendar.
// An empty Locale with entries builds a custom calendar; a Locale with no
// entries refers to a built-in preset.
type Table struct {
	Locale  string         `json:"locale" yaml:"locale"`
	Entries []Entry        `json:"entries,omitempty" yaml:"entries,omitempty"`
	Movable []MovableFeast `json:"movable,omitempty" yaml:"movable,omitempty"`
}

// Build turns the table into a validated Calendar.
func (t Table) Build() (*Calendar, error) {
	if len(t.Entries) == 0 && len(t.Movable) == 0 {
		if t.Locale == "" {
			return nil, generic.ErrHolidayTableMissing
		}
		return LookupLocale(t.Locale)
	}
	if len(t.Entries) == 0 {
		return nil, fmt.Errorf("%w: movable feasts without a fixed table", generic.ErrInvalidHolidayTable)
	}
	set, err := NewHolidaySet(t.Entries...)
	if err != nil {
		return nil, err
	}
	locale := t.Locale
	if locale == "" {
		locale = "custom"
	}
	return NewCalendar(locale, set, t.Movable...)
}

// TableOf describes an existing calendar.
func TableOf(c *Calendar) Table {
	if c == nil {
		return Table{}
	}
	return Table{Locale: c.Locale, Entries: c.Fixed.Entries(), Movable: c.Movable}
}
