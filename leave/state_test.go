package leave

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
)

func TestTransition_Table(t *testing.T) {
	tests := []struct {
		from   Status
		event  Event
		next   Status
		delete bool
	}{
		{StatusPending, EventApprove, StatusApproved, false},
		{StatusPending, EventReject, StatusRejected, false},
		{StatusPending, EventWithdraw, "", true},
		{StatusApproved, EventRequestCancel, StatusCancelPending, false},
		{StatusCancelPending, EventApprove, StatusCancelled, false},
		{StatusCancelPending, EventReject, StatusApproved, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			out, err := Transition(tt.from, tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.next, out.Next)
			assert.Equal(t, tt.delete, out.Delete)
			assert.False(t, out.NoOp)
		})
	}
}

func TestTransition_RepeatedEventIsNoOp(t *testing.T) {
	// GIVEN: A request already in a status the event can produce
	// WHEN: The event arrives again (double click, retry)
	// THEN: Success without effect

	tests := []struct {
		current Status
		event   Event
	}{
		{StatusPending, EventSubmit},
		{StatusApproved, EventApprove},
		{StatusCancelled, EventApprove},
		{StatusRejected, EventReject},
		{StatusApproved, EventReject},
		{StatusCancelPending, EventRequestCancel},
	}

	for _, tt := range tests {
		t.Run(string(tt.current)+"/"+string(tt.event), func(t *testing.T) {
			out, err := Transition(tt.current, tt.event)
			require.NoError(t, err)
			assert.True(t, out.NoOp)
			assert.Equal(t, tt.current, out.Next)
			assert.False(t, out.Delete)
		})
	}
}

func TestTransition_ApproveAfterDeniedCancellation(t *testing.T) {
	// GIVEN: approve, request_cancel, then reject (cancellation denied)
	// WHEN: A retried approve arrives
	// THEN: It is a no-op, same as approve after approve

	st := StatusPending
	for _, ev := range []Event{EventApprove, EventRequestCancel, EventReject} {
		out, err := Transition(st, ev)
		require.NoError(t, err)
		st = out.Next
	}
	require.Equal(t, StatusApproved, st)

	out, err := Transition(st, EventApprove)
	require.NoError(t, err)
	assert.True(t, out.NoOp)
	assert.Equal(t, StatusApproved, out.Next)
}

func TestTransition_Conflicts(t *testing.T) {
	tests := []struct {
		name    string
		current Status
		event   Event
	}{
		{"approve after reject", StatusRejected, EventApprove},
		{"withdraw approved", StatusApproved, EventWithdraw},
		{"withdraw cancel pending", StatusCancelPending, EventWithdraw},
		{"cancel pending", StatusPending, EventRequestCancel},
		{"cancel rejected", StatusRejected, EventRequestCancel},
		{"anything on cancelled", StatusCancelled, EventRequestCancel},
		{"reject cancelled", StatusCancelled, EventReject},
		{"submit approved", StatusApproved, EventSubmit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Transition(tt.current, tt.event)
			require.Error(t, err)

			var ce *generic.ConflictError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, string(tt.current), ce.Current)
			assert.Equal(t, string(tt.event), ce.Event)
			assert.True(t, generic.IsConflict(err))
		})
	}
}

func TestTransition_TerminalStatusesAcceptNothingNew(t *testing.T) {
	for _, st := range []Status{StatusRejected, StatusCancelled} {
		require.True(t, st.IsTerminal())
		for _, ev := range []Event{EventApprove, EventReject, EventWithdraw, EventRequestCancel} {
			out, err := Transition(st, ev)
			if isOutcomeOf(st, ev) {
				assert.True(t, out.NoOp, "%s/%s", st, ev)
				continue
			}
			assert.Error(t, err, "%s/%s", st, ev)
			assert.False(t, out.Delete)
		}
	}
}

func TestParseEvent(t *testing.T) {
	ev, err := ParseEvent("request_cancel")
	require.NoError(t, err)
	assert.Equal(t, EventRequestCancel, ev)

	_, err = ParseEvent("archive")
	assert.Error(t, err)
}

// =============================================================================
// AUTHORIZATION
// =============================================================================

func TestAuthorize(t *testing.T) {
	owner := User{ID: "carol", TenantID: "acme", SupervisorID: "bob"}

	member := func(id generic.UserID) Actor { return Actor{UserID: id, TenantID: "acme", Role: RoleMember} }
	admin := Actor{UserID: "alice", TenantID: "acme", Role: RoleAdmin}
	foreignAdmin := Actor{UserID: "zoe", TenantID: "globex", Role: RoleAdmin}

	tests := []struct {
		name    string
		actor   Actor
		event   Event
		allowed bool
	}{
		{"owner submits", member("carol"), EventSubmit, true},
		{"owner withdraws", member("carol"), EventWithdraw, true},
		{"owner requests cancel", member("carol"), EventRequestCancel, true},
		{"supervisor withdraws", member("bob"), EventWithdraw, false},
		{"admin submits for someone", admin, EventSubmit, false},
		{"supervisor approves", member("bob"), EventApprove, true},
		{"supervisor rejects", member("bob"), EventReject, true},
		{"admin approves", admin, EventApprove, true},
		{"owner approves own", member("carol"), EventApprove, false},
		{"peer approves", member("dave"), EventApprove, false},
		{"admin of another tenant", foreignAdmin, EventApprove, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.actor, owner, tt.event)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			assert.True(t, generic.IsPermission(err), "want permission error, got %v", err)
		})
	}
}

func TestAuthorize_AdminCannotApproveOwn(t *testing.T) {
	owner := User{ID: "alice", TenantID: "acme", Role: RoleAdmin}
	err := Authorize(Actor{UserID: "alice", TenantID: "acme", Role: RoleAdmin}, owner, EventApprove)
	assert.True(t, generic.IsPermission(err))
}

func TestCanView(t *testing.T) {
	owner := User{ID: "carol", TenantID: "acme", SupervisorID: "bob"}

	assert.True(t, CanView(Actor{UserID: "carol", TenantID: "acme"}, owner))
	assert.True(t, CanView(Actor{UserID: "bob", TenantID: "acme"}, owner))
	assert.True(t, CanView(Actor{UserID: "alice", TenantID: "acme", Role: RoleAdmin}, owner))
	assert.False(t, CanView(Actor{UserID: "dave", TenantID: "acme"}, owner))
	assert.False(t, CanView(Actor{UserID: "carol", TenantID: "globex"}, owner))
}

// =============================================================================
// STATUS
// =============================================================================

func TestStatus_Classification(t *testing.T) {
	counts := map[Status]bool{
		StatusPending:       true,
		StatusApproved:      true,
		StatusCancelPending: true,
		StatusRejected:      false,
		StatusCancelled:     false,
	}
	for st, want := range counts {
		assert.Equal(t, want, st.CountsAgainstEntitlement(), st)
	}

	assert.True(t, StatusPending.InApproverQueue())
	assert.True(t, StatusCancelPending.InApproverQueue())
	assert.False(t, StatusApproved.InApproverQueue())

	_, err := ParseStatus("archived")
	assert.Error(t, err)
	assert.Panics(t, func() { Status("archived").IsTerminal() })
}
