/*
Package generic provides the shared primitives of the leave engine.

PURPOSE:
  This package contains the small, domain-agnostic types every other
  package builds on: exact day quantities, calendar dates, inclusive date
  ranges, identifiers and the error taxonomy. It has no knowledge of
  requests, statuses or holidays.

KEY CONCEPTS IN THIS FILE (types.go):
  - Days: A decimal quantity of days, fractional in steps of 0.5
  - Identifiers: Type-safe user, tenant and request IDs

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal so 0.5 + 0.5 is exactly 1
  2. Type Safety: Strong typing prevents mixing user and request IDs
  3. Reproducibility: Client and server must agree on every digit

USAGE:
  total := generic.NewDays(20)
  used := generic.NewDays(3.5)
  remaining := total.Sub(used) // 16.5

SEE ALSO:
  - time.go: Calendar dates
  - period.go: Inclusive date ranges
  - errors.go: Error taxonomy
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// DAYS - Exact quantity of leave days
// =============================================================================

// Days is an exact number of days. Half days are represented as 0.5.
type Days struct {
	Value decimal.Decimal
}

var (
	halfDay = decimal.NewFromFloat(0.5)
	oneDay  = decimal.NewFromInt(1)
)

func NewDays(value float64) Days   { return Days{Value: decimal.NewFromFloat(value)} }
func NewDaysFromInt(value int) Days { return Days{Value: decimal.NewFromInt(int64(value))} }
func ZeroDays() Days                { return Days{Value: decimal.Zero} }
func HalfDay() Days                 { return Days{Value: halfDay} }
func OneDay() Days                  { return Days{Value: oneDay} }

// ParseDays parses a decimal string such as "2.5".
func ParseDays(s string) (Days, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Days{}, err
	}
	return Days{Value: d}, nil
}

func (d Days) Add(o Days) Days          { return Days{Value: d.Value.Add(o.Value)} }
func (d Days) Sub(o Days) Days          { return Days{Value: d.Value.Sub(o.Value)} }
func (d Days) Neg() Days                { return Days{Value: d.Value.Neg()} }
func (d Days) IsZero() bool             { return d.Value.IsZero() }
func (d Days) IsPositive() bool         { return d.Value.IsPositive() }
func (d Days) IsNegative() bool         { return d.Value.IsNegative() }
func (d Days) Equal(o Days) bool        { return d.Value.Equal(o.Value) }
func (d Days) GreaterThan(o Days) bool  { return d.Value.GreaterThan(o.Value) }
func (d Days) LessThan(o Days) bool     { return d.Value.LessThan(o.Value) }
func (d Days) Float64() float64         { return d.Value.InexactFloat64() }
func (d Days) String() string           { return d.Value.String() }

// FloorZero clamps negative quantities to zero.
func (d Days) FloorZero() Days {
	if d.Value.IsNegative() {
		return ZeroDays()
	}
	return d
}

func (d Days) Min(o Days) Days {
	if d.LessThan(o) {
		return d
	}
	return o
}

func (d Days) Max(o Days) Days {
	if d.GreaterThan(o) {
		return d
	}
	return o
}

// Round rounds to the given number of decimal places (half away from zero).
func (d Days) Round(places int32) Days { return Days{Value: d.Value.Round(places)} }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type TenantID string
type RequestID string
