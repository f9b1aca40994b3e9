// Package storetest holds the behaviour every leave.Store implementation
// must share. Each store package runs it from its own tests.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/holiday"
	"github.com/warp/leave-engine/leave"
)

// Factory returns an empty store. Cleanup is the caller's business.
type Factory func(t *testing.T) leave.Store

// Run executes the whole suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("Requests", func(t *testing.T) { testRequests(t, newStore(t)) })
	t.Run("ListFilters", func(t *testing.T) { testListFilters(t, newStore(t)) })
	t.Run("ConditionalUpdate", func(t *testing.T) { testConditionalUpdate(t, newStore(t)) })
	t.Run("ConcurrentUpdate", func(t *testing.T) { testConcurrentUpdate(t, newStore(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("Entitlements", func(t *testing.T) { testEntitlements(t, newStore(t)) })
	t.Run("HolidayTables", func(t *testing.T) { testHolidayTables(t, newStore(t)) })
	t.Run("Audit", func(t *testing.T) { testAudit(t, newStore(t)) })
}

var created = time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)

func request(id, user, tenant, start, end string, st leave.Status) leave.LeaveRequest {
	return leave.LeaveRequest{
		ID:        generic.RequestID(id),
		UserID:    generic.UserID(user),
		TenantID:  generic.TenantID(tenant),
		Range:     generic.Period{Start: generic.MustParseDate(start), End: generic.MustParseDate(end)},
		Half:      leave.HalfDayFlags{EndHalf: true},
		Note:      "family",
		Status:    st,
		LastEvent: leave.EventSubmit,
		DaysCount: generic.NewDays(2.5),
		TotalDays: generic.NewDays(2.5),
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func ids(reqs []leave.LeaveRequest) []generic.RequestID {
	out := make([]generic.RequestID, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.ID)
	}
	return out
}

func testRequests(t *testing.T, s leave.Store) {
	ctx := context.Background()
	in := request("r1", "carol", "acme", "2024-06-03", "2024-06-05", leave.StatusPending)
	require.NoError(t, s.CreateRequest(ctx, in))
	assert.Error(t, s.CreateRequest(ctx, in), "duplicate id")

	got, err := s.GetRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, in.ID, got.ID)
	assert.Equal(t, in.Range, got.Range)
	assert.Equal(t, in.Half, got.Half)
	assert.Equal(t, in.Note, got.Note)
	assert.Equal(t, leave.StatusPending, got.Status)
	assert.Equal(t, leave.EventSubmit, got.LastEvent)
	assert.True(t, got.DaysCount.Equal(generic.NewDays(2.5)))
	assert.True(t, got.CreatedAt.Equal(created))

	_, err = s.GetRequest(ctx, "missing")
	assert.True(t, generic.IsNotFound(err))
}

func testListFilters(t *testing.T, s leave.Store) {
	ctx := context.Background()
	for _, r := range []leave.LeaveRequest{
		request("a", "carol", "acme", "2024-06-03", "2024-06-05", leave.StatusApproved),
		request("b", "carol", "acme", "2024-06-10", "2024-06-11", leave.StatusPending),
		request("c", "dave", "acme", "2024-06-04", "2024-06-04", leave.StatusCancelPending),
		request("d", "carol", "acme", "2023-12-28", "2024-01-02", leave.StatusApproved),
		request("e", "eve", "globex", "2024-06-03", "2024-06-03", leave.StatusApproved),
	} {
		require.NoError(t, s.CreateRequest(ctx, r))
	}

	june := generic.Period{Start: generic.MustParseDate("2024-06-05"), End: generic.MustParseDate("2024-06-10")}
	tests := []struct {
		name   string
		filter leave.RequestFilter
		want   []generic.RequestID
	}{
		{"all, by start", leave.RequestFilter{}, []generic.RequestID{"d", "a", "e", "c", "b"}},
		{"tenant", leave.RequestFilter{TenantID: "globex"}, []generic.RequestID{"e"}},
		{"users", leave.RequestFilter{UserIDs: []generic.UserID{"dave", "eve"}}, []generic.RequestID{"e", "c"}},
		{"statuses", leave.RequestFilter{Statuses: []leave.Status{leave.StatusPending, leave.StatusCancelPending}}, []generic.RequestID{"c", "b"}},
		{"overlap is inclusive", leave.RequestFilter{Overlapping: &june}, []generic.RequestID{"a", "b"}},
		{"year of start", leave.RequestFilter{UserIDs: []generic.UserID{"carol"}, Year: 2023}, []generic.RequestID{"d"}},
		{"no match", leave.RequestFilter{TenantID: "initech"}, []generic.RequestID{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListRequests(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func testConditionalUpdate(t *testing.T, s leave.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateRequest(ctx, request("r1", "carol", "acme", "2024-06-03", "2024-06-05", leave.StatusPending)))
	at := created.Add(time.Hour)

	ok, err := s.UpdateStatus(ctx, leave.StatusUpdate{
		ID: "r1", Expected: leave.StatusPending, Next: leave.StatusApproved,
		Event: leave.EventApprove, DecidedBy: "bob", At: at,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	// Stale expectation
	ok, err = s.UpdateStatus(ctx, leave.StatusUpdate{
		ID: "r1", Expected: leave.StatusPending, Next: leave.StatusRejected,
		Event: leave.EventReject, DecidedBy: "bob", At: at,
	})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.GetRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, got.Status)
	assert.Equal(t, leave.EventApprove, got.LastEvent)
	assert.Equal(t, generic.UserID("bob"), got.DecidedBy)
	assert.True(t, got.UpdatedAt.Equal(at))

	// A cancellation request keeps the decider.
	ok, err = s.UpdateStatus(ctx, leave.StatusUpdate{
		ID: "r1", Expected: leave.StatusApproved, Next: leave.StatusCancelPending,
		Event: leave.EventRequestCancel, DecidedBy: "carol", At: at,
	})
	require.NoError(t, err)
	assert.True(t, ok)
	got, err = s.GetRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, generic.UserID("bob"), got.DecidedBy)

	_, err = s.UpdateStatus(ctx, leave.StatusUpdate{ID: "missing", Expected: leave.StatusPending, Next: leave.StatusApproved})
	assert.True(t, generic.IsNotFound(err))

	// Conditional delete
	require.NoError(t, s.CreateRequest(ctx, request("r2", "carol", "acme", "2024-07-01", "2024-07-02", leave.StatusPending)))
	ok, err = s.DeleteRequest(ctx, "r2", leave.StatusApproved)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = s.DeleteRequest(ctx, "r2", leave.StatusPending)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.DeleteRequest(ctx, "r2", leave.StatusPending)
	require.NoError(t, err)
	assert.False(t, ok)
}

func testConcurrentUpdate(t *testing.T, s leave.Store) {
	// GIVEN: One pending request
	// WHEN: 10 writers race the same compare-and-set
	// THEN: Exactly one wins

	ctx := context.Background()
	require.NoError(t, s.CreateRequest(ctx, request("r1", "carol", "acme", "2024-06-03", "2024-06-05", leave.StatusPending)))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.UpdateStatus(ctx, leave.StatusUpdate{
				ID: "r1", Expected: leave.StatusPending, Next: leave.StatusApproved,
				Event: leave.EventApprove, DecidedBy: "bob", At: created,
			})
			if err != nil {
				t.Errorf("update: %v", err)
				return
			}
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func testUsers(t *testing.T, s leave.Store) {
	ctx := context.Background()
	users := []leave.User{
		{ID: "carol", TenantID: "acme", Email: "carol@acme.test", Name: "Carol", Role: leave.RoleMember, SupervisorID: "bob", Employment: leave.EmploymentEmployee, Active: true},
		{ID: "alice", TenantID: "acme", Role: leave.RoleAdmin, Employment: leave.EmploymentEmployee, Active: true},
		{ID: "eve", TenantID: "globex", Role: leave.RoleAdmin, Employment: leave.EmploymentContractor, Active: false},
	}
	for _, u := range users {
		require.NoError(t, s.SaveUser(ctx, u))
	}

	got, err := s.GetUser(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, users[0], *got)

	// Save is an upsert.
	users[0].SupervisorID = "alice"
	require.NoError(t, s.SaveUser(ctx, users[0]))
	got, err = s.GetUser(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, generic.UserID("alice"), got.SupervisorID)

	_, err = s.GetUser(ctx, "nobody")
	assert.ErrorIs(t, err, generic.ErrUserNotFound)

	acme, err := s.ListUsers(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, acme, 2)
	assert.Equal(t, generic.UserID("alice"), acme[0].ID)

	all, err := s.ListUsers(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func testEntitlements(t *testing.T, s leave.Store) {
	ctx := context.Background()

	rec, err := s.GetEntitlement(ctx, "carol", 2024)
	require.NoError(t, err)
	assert.Nil(t, rec)

	in := leave.EntitlementRecord{
		UserID: "carol", TenantID: "acme", Year: 2024,
		TotalDays: generic.NewDaysFromInt(20), Adjustment: generic.NewDays(-7.5),
		UpdatedAt: created,
	}
	require.NoError(t, s.SaveEntitlement(ctx, in))

	in.TotalDays = generic.NewDaysFromInt(25)
	require.NoError(t, s.SaveEntitlement(ctx, in))

	rec, err = s.GetEntitlement(ctx, "carol", 2024)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.TotalDays.Equal(generic.NewDaysFromInt(25)))
	assert.True(t, rec.Adjustment.Equal(generic.NewDays(-7.5)))
	assert.Equal(t, generic.TenantID("acme"), rec.TenantID)

	rec, err = s.GetEntitlement(ctx, "carol", 2025)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func testHolidayTables(t *testing.T, s leave.Store) {
	ctx := context.Background()

	got, err := s.GetHolidayTable(ctx, "acme")
	require.NoError(t, err)
	assert.Nil(t, got)

	tbl := holiday.Table{
		Locale:  "custom",
		Entries: []holiday.Entry{{Month: time.March, Day: 17, Name: "St Patrick"}},
		Movable: []holiday.MovableFeast{{Name: "Easter Monday", EasterOffset: 1}},
	}
	require.NoError(t, s.SaveHolidayTable(ctx, "acme", tbl))
	require.NoError(t, s.SaveHolidayTable(ctx, "globex", holiday.Table{Locale: holiday.LocaleCZ}))

	got, err = s.GetHolidayTable(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, tbl, *got)

	all, err := s.ListHolidayTables(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, holiday.LocaleCZ, all["globex"].Locale)
}

func testAudit(t *testing.T, s leave.Store) {
	ctx := context.Background()
	entries := []leave.AuditEntry{
		{ID: "1", TenantID: "acme", RequestID: "r1", ActorID: "carol", Event: leave.EventSubmit, To: leave.StatusPending, At: created},
		{ID: "2", TenantID: "acme", RequestID: "r1", ActorID: "bob", Event: leave.EventApprove, From: leave.StatusPending, To: leave.StatusApproved, At: created.Add(time.Minute)},
		{ID: "3", TenantID: "acme", RequestID: "r2", ActorID: "dave", Event: leave.EventSubmit, To: leave.StatusPending, At: created},
	}
	for _, e := range entries {
		require.NoError(t, s.AppendAudit(ctx, e))
	}

	got, err := s.ListAudit(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, leave.EventSubmit, got[0].Event)
	assert.Equal(t, leave.StatusApproved, got[1].To)
	assert.Equal(t, generic.UserID("bob"), got[1].ActorID)

	got, err = s.ListAudit(ctx, "none")
	require.NoError(t, err)
	assert.Empty(t, got)
}
