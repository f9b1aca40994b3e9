/*
entitlement.go - Per-user, per-year entitlement ledger

PURPOSE:
  Tracks the annual allowance and derives what is left of it from the
  requests that are still live. Remaining is never stored as a running
  counter: it is recomputed from request state, so a rejection or a
  confirmed cancellation restores days without any extra bookkeeping.

FORMULA:
  remaining = total - sum(daysCount of pending, approved, cancel_pending
                          requests starting in the year) + adjustment

  adjustment is zero unless an administrator overrode the remaining value
  directly; it is cleared whenever the total is set again.

SEE ALSO:
  - accrual.go: Accrued-to-date rules
  - service.go: Reads and writes records through the store
*/
package leave

import (
	"time"

	"github.com/warp/leave-engine/generic"
)

// EntitlementRecord is the persisted allowance of one user for one year.
type EntitlementRecord struct {
	UserID     generic.UserID
	TenantID   generic.TenantID
	Year       int
	TotalDays  generic.Days
	Adjustment generic.Days
	UpdatedAt  time.Time
}

// DefaultEntitlement is the record used when none has been stored yet.
func DefaultEntitlement(u User, year int, total generic.Days) EntitlementRecord {
	return EntitlementRecord{
		UserID:     u.ID,
		TenantID:   u.TenantID,
		Year:       year,
		TotalDays:  total,
		Adjustment: generic.ZeroDays(),
	}
}

// Accrual is the accrued-to-date figure. Contractors have none.
type Accrual struct {
	Applicable bool
	Days       generic.Days
}

// EntitlementSummary is the read model shown to users.
type EntitlementSummary struct {
	UserID    generic.UserID
	Year      int
	Total     generic.Days
	Pending   generic.Days
	Approved  generic.Days
	Remaining generic.Days
	Accrued   Accrual
}

// Ledger computes entitlement figures. The zero value uses ElapsedDaysAccrual.
type Ledger struct {
	Accrual AccrualFunc
}

// Used sums the days of requests charged to year that still count.
func (l Ledger) Used(year int, requests []LeaveRequest) generic.Days {
	used := generic.ZeroDays()
	for _, r := range requests {
		if r.Year() != year || !r.Status.CountsAgainstEntitlement() {
			continue
		}
		used = used.Add(r.DaysCount)
	}
	return used
}

// Remaining applies the ledger formula. Only requests of rec's user are counted.
func (l Ledger) Remaining(rec EntitlementRecord, requests []LeaveRequest) generic.Days {
	return rec.TotalDays.Sub(l.Used(rec.Year, ownedBy(rec.UserID, requests))).Add(rec.Adjustment)
}

// Accrued returns the earned share of the total as of asOf, bounded by
// zero and the total.
func (l Ledger) Accrued(u User, rec EntitlementRecord, asOf generic.TimePoint) Accrual {
	if u.IsContractor() {
		return Accrual{Applicable: false}
	}
	f := l.Accrual
	if f == nil {
		f = ElapsedDaysAccrual
	}
	d := f(rec.TotalDays, asOf, rec.Year).FloorZero().Min(rec.TotalDays.FloorZero())
	return Accrual{Applicable: true, Days: d}
}

// Summary builds the full read model.
func (l Ledger) Summary(u User, rec EntitlementRecord, requests []LeaveRequest, asOf generic.TimePoint) EntitlementSummary {
	s := EntitlementSummary{
		UserID:   rec.UserID,
		Year:     rec.Year,
		Total:    rec.TotalDays,
		Pending:  generic.ZeroDays(),
		Approved: generic.ZeroDays(),
		Accrued:  l.Accrued(u, rec, asOf),
	}
	owned := ownedBy(rec.UserID, requests)
	for _, r := range owned {
		if r.Year() != rec.Year {
			continue
		}
		switch r.Status {
		case StatusPending:
			s.Pending = s.Pending.Add(r.DaysCount)
		case StatusApproved, StatusCancelPending:
			s.Approved = s.Approved.Add(r.DaysCount)
		}
	}
	s.Remaining = l.Remaining(rec, owned)
	return s
}

// WithTotal sets a new total. This is the recomputation event: any manual
// adjustment is discarded.
func (rec EntitlementRecord) WithTotal(total generic.Days) EntitlementRecord {
	rec.TotalDays = total
	rec.Adjustment = generic.ZeroDays()
	return rec
}

// WithRemaining stores the adjustment that makes Remaining equal target.
func (l Ledger) WithRemaining(rec EntitlementRecord, requests []LeaveRequest, target generic.Days) EntitlementRecord {
	base := rec
	base.Adjustment = generic.ZeroDays()
	rec.Adjustment = target.Sub(l.Remaining(base, requests))
	return rec
}

func ownedBy(user generic.UserID, requests []LeaveRequest) []LeaveRequest {
	out := make([]LeaveRequest, 0, len(requests))
	for _, r := range requests {
		if r.UserID == user {
			out = append(out, r)
		}
	}
	return out
}
