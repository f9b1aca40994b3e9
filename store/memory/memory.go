// Package memory provides an in-memory leave.Store for tests and demo mode.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/holiday"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	users        map[generic.UserID]leave.User
	requests     map[generic.RequestID]leave.LeaveRequest
	entitlements map[entitlementKey]leave.EntitlementRecord
	holidays     map[generic.TenantID]holiday.Table
	audit        map[generic.RequestID][]leave.AuditEntry
}

type entitlementKey struct {
	UserID generic.UserID
	Year   int
}

var _ leave.Store = (*Memory)(nil)

func New() *Memory {
	return &Memory{
		users:        make(map[generic.UserID]leave.User),
		requests:     make(map[generic.RequestID]leave.LeaveRequest),
		entitlements: make(map[entitlementKey]leave.EntitlementRecord),
		holidays:     make(map[generic.TenantID]holiday.Table),
		audit:        make(map[generic.RequestID][]leave.AuditEntry),
	}
}

// =============================================================================
// REQUESTS
// =============================================================================

func (m *Memory) CreateRequest(_ context.Context, r leave.LeaveRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.requests[r.ID]; ok {
		return fmt.Errorf("request %s already exists", r.ID)
	}
	m.requests[r.ID] = r
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id generic.RequestID) (*leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, generic.ErrNotFound)
	}
	return &r, nil
}

func (m *Memory) ListRequests(_ context.Context, f leave.RequestFilter) ([]leave.LeaveRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]leave.LeaveRequest, 0)
	for _, r := range m.requests {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Range.Start.Equal(out[j].Range.Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Range.Start.Before(out[j].Range.Start)
	})
	return out, nil
}

// UpdateStatus is the compare-and-set; the write lock makes it atomic.
func (m *Memory) UpdateStatus(_ context.Context, u leave.StatusUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[u.ID]
	if !ok {
		return false, fmt.Errorf("request %s: %w", u.ID, generic.ErrNotFound)
	}
	if r.Status != u.Expected {
		return false, nil
	}
	r.Status = u.Next
	r.LastEvent = u.Event
	r.UpdatedAt = u.At
	if u.Event == leave.EventApprove || u.Event == leave.EventReject {
		r.DecidedBy = u.DecidedBy
	}
	m.requests[u.ID] = r
	return true, nil
}

func (m *Memory) DeleteRequest(_ context.Context, id generic.RequestID, expected leave.Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || r.Status != expected {
		return false, nil
	}
	delete(m.requests, id)
	return true, nil
}

// =============================================================================
// USERS
// =============================================================================

func (m *Memory) SaveUser(_ context.Context, u leave.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *Memory) GetUser(_ context.Context, id generic.UserID) (*leave.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, generic.ErrUserNotFound)
	}
	return &u, nil
}

func (m *Memory) ListUsers(_ context.Context, tenant generic.TenantID) ([]leave.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]leave.User, 0, len(m.users))
	for _, u := range m.users {
		if tenant == "" || u.TenantID == tenant {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// ENTITLEMENTS AND HOLIDAYS
// =============================================================================

func (m *Memory) GetEntitlement(_ context.Context, user generic.UserID, year int) (*leave.EntitlementRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.entitlements[entitlementKey{user, year}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *Memory) SaveEntitlement(_ context.Context, rec leave.EntitlementRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entitlements[entitlementKey{rec.UserID, rec.Year}] = rec
	return nil
}

func (m *Memory) GetHolidayTable(_ context.Context, tenant generic.TenantID) (*holiday.Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.holidays[tenant]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *Memory) SaveHolidayTable(_ context.Context, tenant generic.TenantID, t holiday.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holidays[tenant] = t
	return nil
}

func (m *Memory) ListHolidayTables(_ context.Context) (map[generic.TenantID]holiday.Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[generic.TenantID]holiday.Table, len(m.holidays))
	for k, v := range m.holidays {
		out[k] = v
	}
	return out, nil
}

// =============================================================================
// AUDIT
// =============================================================================

func (m *Memory) AppendAudit(_ context.Context, e leave.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit[e.RequestID] = append(m.audit[e.RequestID], e)
	return nil
}

func (m *Memory) ListAudit(_ context.Context, id generic.RequestID) ([]leave.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.audit[id]
	out := make([]leave.AuditEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// Reset drops all data. Used by the demo scenario loader.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = make(map[generic.UserID]leave.User)
	m.requests = make(map[generic.RequestID]leave.LeaveRequest)
	m.entitlements = make(map[entitlementKey]leave.EntitlementRecord)
	m.holidays = make(map[generic.TenantID]holiday.Table)
	m.audit = make(map[generic.RequestID][]leave.AuditEntry)
	return nil
}
