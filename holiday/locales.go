package holiday

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// =============================================================================
// LOCALE PRESETS
// =============================================================================

const (
	LocaleCZ      = "cz"
	LocaleCZFixed = "cz-fixed"
)

// czFixed is the Czech table of recurring public holidays.
func czFixed() []Entry {
	return []Entry{
		{Month: time.January, Day: 1, Name: "New Year's Day"},
		{Month: time.May, Day: 1, Name: "Labour Day"},
		{Month: time.May, Day: 8, Name: "Liberation Day"},
		{Month: time.July, Day: 5, Name: "Saints Cyril and Methodius Day"},
		{Month: time.July, Day: 6, Name: "Jan Hus Day"},
		{Month: time.September, Day: 28, Name: "Czech Statehood Day"},
		{Month: time.October, Day: 28, Name: "Independent Czechoslovak State Day"},
		{Month: time.November, Day: 17, Name: "Struggle for Freedom and Democracy Day"},
		{Month: time.December, Day: 24, Name: "Christmas Eve"},
		{Month: time.December, Day: 25, Name: "Christmas Day"},
		{Month: time.December, Day: 26, Name: "St. Stephen's Day"},
	}
}

var czEaster = []MovableFeast{
	{Name: "Good Friday", EasterOffset: -2},
	{Name: "Easter Monday", EasterOffset: 1},
}

// LocaleFactory builds a fresh calendar for a locale.
type LocaleFactory func() (*Calendar, error)

var (
	localeRegistry = make(map[string]LocaleFactory)
	localeMu       sync.RWMutex
)

func init() {
	RegisterLocale(LocaleCZ, func() (*Calendar, error) {
		return NewCalendar(LocaleCZ, MustHolidaySet(czFixed()...), czEaster...)
	})
	RegisterLocale(LocaleCZFixed, func() (*Calendar, error) {
		return NewCalendar(LocaleCZFixed, MustHolidaySet(czFixed()...))
	})
}

// RegisterLocale adds a locale preset. Later registrations replace earlier ones.
func RegisterLocale(name string, f LocaleFactory) {
	localeMu.Lock()
	defer localeMu.Unlock()
	localeRegistry[name] = f
}

// LookupLocale builds the calendar of a registered locale.
func LookupLocale(name string) (*Calendar, error) {
	localeMu.RLock()
	f, ok := localeRegistry[name]
	localeMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown locale %q: %w", name, errUnknownLocale)
	}
	return f()
}

// Locales lists registered locale names, sorted.
func Locales() []string {
	localeMu.RLock()
	defer localeMu.RUnlock()
	out := make([]string, 0, len(localeRegistry))
	for name := range localeRegistry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
