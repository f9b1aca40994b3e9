/*
accrual.go - Accrued-to-date entitlement rules

PURPOSE:
  An accrual rule answers "how much of this year's entitlement has been
  earned by asOf". Rules are plain functions so tenants can pick one by name
  in configuration.

RULES:
  ElapsedDaysAccrual: total * elapsed days / days in year, one decimal
  MonthlyAccrual:     total / 12 for every month started, two decimals
  UpfrontAccrual:     the whole total from January 1

  Every rule returns 0 before the year and the full total after it.

EXAMPLE:
  // 20 days, asOf 2025-07-02 (day 183 of 365)
  ElapsedDaysAccrual(NewDays(20), asOf, 2025) // 10.0

SEE ALSO:
  - entitlement.go: Clamps and exposes the result
*/
package leave

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/generic"
)

// AccrualFunc computes the entitlement earned for year as of asOf.
type AccrualFunc func(total generic.Days, asOf generic.TimePoint, year int) generic.Days

const (
	AccrualElapsedDays = "elapsed_days"
	AccrualMonthly     = "monthly"
	AccrualUpfront     = "upfront"
)

var accrualRules = map[string]AccrualFunc{
	AccrualElapsedDays: ElapsedDaysAccrual,
	AccrualMonthly:     MonthlyAccrual,
	AccrualUpfront:     UpfrontAccrual,
}

// LookupAccrual returns a named rule.
func LookupAccrual(name string) (AccrualFunc, error) {
	f, ok := accrualRules[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown accrual rule %q", generic.ErrConfiguration, name)
	}
	return f, nil
}

// AccrualNames lists the available rules.
func AccrualNames() []string {
	names := make([]string, 0, len(accrualRules))
	for n := range accrualRules {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ElapsedDaysAccrual pro-rates by days elapsed in the year, asOf included.
func ElapsedDaysAccrual(total generic.Days, asOf generic.TimePoint, year int) generic.Days {
	if done, d := outsideYear(total, asOf, year); done {
		return d
	}
	elapsed := generic.DaysBetween(generic.StartOfYear(year), asOf) + 1
	ratio := decimal.NewFromInt(int64(elapsed)).Div(decimal.NewFromInt(int64(generic.DaysInYear(year))))
	return generic.Days{Value: total.Value.Mul(ratio)}.Round(1)
}

// MonthlyAccrual grants a twelfth of the total on the first of each month.
func MonthlyAccrual(total generic.Days, asOf generic.TimePoint, year int) generic.Days {
	if done, d := outsideYear(total, asOf, year); done {
		return d
	}
	months := decimal.NewFromInt(int64(asOf.Month()))
	return generic.Days{Value: total.Value.Mul(months).Div(twelve)}.Round(2)
}

// UpfrontAccrual grants the whole total on January 1.
func UpfrontAccrual(total generic.Days, asOf generic.TimePoint, year int) generic.Days {
	if done, d := outsideYear(total, asOf, year); done {
		return d
	}
	return total
}

func outsideYear(total generic.Days, asOf generic.TimePoint, year int) (bool, generic.Days) {
	switch {
	case asOf.Year() < year:
		return true, generic.ZeroDays()
	case asOf.Year() > year:
		return true, total
	}
	return false, generic.Days{}
}

var twelve = decimal.NewFromInt(12)
