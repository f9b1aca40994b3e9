/*
store.go - Persistence interfaces for requests, users and entitlements

PURPOSE:
  Defines the boundary between the lifecycle logic and the database. The
  service only ever talks to these interfaces; memory, SQLite and Postgres
  implementations live under store/.

CONDITIONAL WRITES:
  Status changes go through UpdateStatus, which only writes when the row
  still has the expected status. Two approvers clicking at once both read
  "pending"; exactly one UpdateStatus returns true. The loser re-reads and
  resolves to an idempotent no-op or a conflict.

NOT FOUND:
  GetRequest returns ErrNotFound and GetUser returns ErrUserNotFound.
  GetEntitlement and GetHolidayTable return (nil, nil) when nothing has
  been stored, since both have defaults.

IMPLEMENTATIONS:
  - store/memory: Tests and demo mode
  - store/sqlite: Single-node deployments
  - store/postgres: pgx connection pool

SEE ALSO:
  - service.go: The only consumer
*/
package leave

import (
	"context"
	"time"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/holiday"
)

// RequestFilter selects requests. Zero fields do not filter.
type RequestFilter struct {
	TenantID generic.TenantID
	UserIDs  []generic.UserID
	Statuses []Status
	// Overlapping keeps requests whose range intersects the period.
	Overlapping *generic.Period
	// Year keeps requests whose range starts in the year.
	Year int
}

// Matches applies the filter in memory. SQL stores push it into the query.
func (f RequestFilter) Matches(r LeaveRequest) bool {
	if f.TenantID != "" && r.TenantID != f.TenantID {
		return false
	}
	if len(f.UserIDs) > 0 && !containsUser(f.UserIDs, r.UserID) {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, r.Status) {
		return false
	}
	if f.Overlapping != nil && !f.Overlapping.Overlaps(r.Range) {
		return false
	}
	if f.Year != 0 && r.Year() != f.Year {
		return false
	}
	return true
}

// StatusUpdate is a compare-and-set on a request's status.
type StatusUpdate struct {
	ID        generic.RequestID
	Expected  Status
	Next      Status
	Event     Event
	DecidedBy generic.UserID
	At        time.Time
}

type RequestStore interface {
	CreateRequest(ctx context.Context, r LeaveRequest) error
	GetRequest(ctx context.Context, id generic.RequestID) (*LeaveRequest, error)
	ListRequests(ctx context.Context, f RequestFilter) ([]LeaveRequest, error)
	// UpdateStatus writes only if the stored status equals u.Expected.
	UpdateStatus(ctx context.Context, u StatusUpdate) (bool, error)
	// DeleteRequest deletes only if the stored status equals expected.
	DeleteRequest(ctx context.Context, id generic.RequestID, expected Status) (bool, error)
}

type UserStore interface {
	SaveUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id generic.UserID) (*User, error)
	// ListUsers returns the users of a tenant, or of every tenant when empty.
	ListUsers(ctx context.Context, tenant generic.TenantID) ([]User, error)
}

type EntitlementStore interface {
	GetEntitlement(ctx context.Context, user generic.UserID, year int) (*EntitlementRecord, error)
	SaveEntitlement(ctx context.Context, rec EntitlementRecord) error
}

type HolidayStore interface {
	GetHolidayTable(ctx context.Context, tenant generic.TenantID) (*holiday.Table, error)
	SaveHolidayTable(ctx context.Context, tenant generic.TenantID, t holiday.Table) error
	ListHolidayTables(ctx context.Context) (map[generic.TenantID]holiday.Table, error)
}

// =============================================================================
// AUDIT LOG - Separate from request rows, tracks who did what when
// =============================================================================

// AuditEntry records one lifecycle event.
type AuditEntry struct {
	ID        string
	TenantID  generic.TenantID
	RequestID generic.RequestID
	ActorID   generic.UserID
	Event     Event
	From      Status
	To        Status
	At        time.Time
	Note      string
}

type AuditLog interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	ListAudit(ctx context.Context, request generic.RequestID) ([]AuditEntry, error)
}

// Store is everything the service needs.
type Store interface {
	RequestStore
	UserStore
	EntitlementStore
	HolidayStore
	AuditLog
}

func containsUser(ids []generic.UserID, id generic.UserID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func containsStatus(sts []Status, s Status) bool {
	for _, x := range sts {
		if x == s {
			return true
		}
	}
	return false
}
