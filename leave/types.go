// Package leave implements the leave-request lifecycle and day accounting.
// It combines the generic primitives with a holiday calendar to compute
// what a request costs, and drives requests through their approval states.
package leave

import (
	"fmt"
	"sort"
	"time"

	"github.com/warp/leave-engine/generic"
)

// =============================================================================
// STATUS - Closed set of request states
// =============================================================================

type Status string

const (
	StatusPending       Status = "pending"
	StatusApproved      Status = "approved"
	StatusRejected      Status = "rejected"
	StatusCancelPending Status = "cancel_pending"
	StatusCancelled     Status = "cancelled"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{StatusPending, StatusApproved, StatusRejected, StatusCancelPending, StatusCancelled}

// ParseStatus converts a stored or wire value. Unknown strings are rejected
// rather than carried around as opaque values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown leave status %q", s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelPending, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports rejected and cancelled.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusCancelled:
		return true
	case StatusPending, StatusApproved, StatusCancelPending:
		return false
	}
	panic(fmt.Sprintf("leave: unhandled status %q", string(s)))
}

// CountsAgainstEntitlement reports whether daysCount is deducted from the
// remaining entitlement while the request is in this status.
func (s Status) CountsAgainstEntitlement() bool {
	switch s {
	case StatusPending, StatusApproved, StatusCancelPending:
		return true
	case StatusRejected, StatusCancelled:
		return false
	}
	panic(fmt.Sprintf("leave: unhandled status %q", string(s)))
}

// InApproverQueue reports whether an approver has to act on the request.
func (s Status) InApproverQueue() bool {
	switch s {
	case StatusPending, StatusCancelPending:
		return true
	case StatusApproved, StatusRejected, StatusCancelled:
		return false
	}
	panic(fmt.Sprintf("leave: unhandled status %q", string(s)))
}

// =============================================================================
// USERS AND ACTORS
// =============================================================================

type EmploymentType string

const (
	EmploymentEmployee   EmploymentType = "employee"
	EmploymentContractor EmploymentType = "contractor"
)

type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// User is the owner of leave requests. Supervisor relations drive who may
// approve; employment type drives accrual.
type User struct {
	ID           generic.UserID
	TenantID     generic.TenantID
	Email        string
	Name         string
	Role         Role
	SupervisorID generic.UserID
	Employment   EmploymentType
	Active       bool
}

func (u User) IsAdmin() bool      { return u.Role == RoleAdmin }
func (u User) IsContractor() bool { return u.Employment == EmploymentContractor }

// Actor is the identity performing an operation. It is always passed
// explicitly; nothing in this package reads ambient identity.
type Actor struct {
	UserID   generic.UserID
	TenantID generic.TenantID
	Role     Role
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// SystemActor is used by scheduled jobs.
func SystemActor(tenant generic.TenantID) Actor {
	return Actor{UserID: "system", TenantID: tenant, Role: RoleAdmin}
}

// =============================================================================
// LEAVE REQUEST
// =============================================================================

// HalfDayFlags mark the first and/or last day of a range as a half day.
type HalfDayFlags struct {
	StartHalf bool
	EndHalf   bool
}

// LeaveRequest is one absence request. DaysCount is fixed at submission and
// is the authoritative cost from then on.
type LeaveRequest struct {
	ID        generic.RequestID
	UserID    generic.UserID
	TenantID  generic.TenantID
	Range     generic.Period
	Half      HalfDayFlags
	Note      string
	Status    Status
	LastEvent Event
	DaysCount generic.Days
	// TotalDays is the calendar-day count at submission (informational).
	TotalDays generic.Days
	DecidedBy generic.UserID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Year is the entitlement year the request is charged to.
func (r LeaveRequest) Year() int { return r.Range.Start.Year() }

// =============================================================================
// DATE SET
// =============================================================================

// DateSet is a set of calendar dates.
type DateSet map[generic.TimePoint]struct{}

func NewDateSet(dates ...generic.TimePoint) DateSet {
	s := make(DateSet, len(dates))
	for _, d := range dates {
		s.Add(d)
	}
	return s
}

func (s DateSet) Add(d generic.TimePoint) { s[generic.DateOf(d.Time)] = struct{}{} }

func (s DateSet) Has(d generic.TimePoint) bool {
	if s == nil {
		return false
	}
	_, ok := s[generic.DateOf(d.Time)]
	return ok
}

func (s DateSet) Len() int { return len(s) }

// Sorted returns the dates in ascending order.
func (s DateSet) Sorted() []generic.TimePoint {
	out := make([]generic.TimePoint, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
