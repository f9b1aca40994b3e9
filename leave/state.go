/*
state.go - Request lifecycle state machine

PURPOSE:
  Declares every legal (status, event) -> status transition as data and
  decides who may trigger each event. The service consults this table; no
  other code mutates a request's status.

TRANSITIONS:
  (none)          --submit-->         pending
  pending         --approve-->        approved
  pending         --reject-->         rejected
  pending         --withdraw-->       (deleted)
  approved        --request_cancel--> cancel_pending
  cancel_pending  --approve-->        cancelled   (cancellation confirmed)
  cancel_pending  --reject-->         approved    (cancellation denied)

  Rejected and cancelled are terminal.

IDEMPOTENCE:
  An event on a request already in one of that event's outcomes succeeds
  without effect, so double-clicks and client retries are safe. Only the
  current status is consulted. Any other event from a status that does not
  accept it is a conflict.

SEE ALSO:
  - service.go: Applies outcomes with a conditional store update
*/
package leave

import (
	"fmt"

	"github.com/warp/leave-engine/generic"
)

type Event string

const (
	EventSubmit        Event = "submit"
	EventApprove       Event = "approve"
	EventReject        Event = "reject"
	EventWithdraw      Event = "withdraw"
	EventRequestCancel Event = "request_cancel"
)

func ParseEvent(s string) (Event, error) {
	switch ev := Event(s); ev {
	case EventSubmit, EventApprove, EventReject, EventWithdraw, EventRequestCancel:
		return ev, nil
	}
	return "", fmt.Errorf("unknown leave event %q", s)
}

type transitionKey struct {
	from  Status
	event Event
}

// transitions is the full table. A zero Status target means deletion.
var transitions = map[transitionKey]Status{
	{StatusPending, EventApprove}:        StatusApproved,
	{StatusPending, EventReject}:         StatusRejected,
	{StatusPending, EventWithdraw}:       "",
	{StatusApproved, EventRequestCancel}: StatusCancelPending,
	{StatusCancelPending, EventApprove}:  StatusCancelled,
	{StatusCancelPending, EventReject}:   StatusApproved,
}

// Outcome is the result of applying an event to a status.
type Outcome struct {
	Next   Status
	Delete bool
	// NoOp is set when current already is an outcome of the event.
	NoOp bool
}

// Transition resolves an event against the current status. An event whose
// possible outcomes include current is a no-op, however current was
// reached. The returned *ConflictError carries no request id; callers that
// know it fill it in.
func Transition(current Status, ev Event) (Outcome, error) {
	if next, ok := transitions[transitionKey{current, ev}]; ok {
		if next == "" {
			return Outcome{Delete: true}, nil
		}
		return Outcome{Next: next}, nil
	}
	if isOutcomeOf(current, ev) {
		return Outcome{Next: current, NoOp: true}, nil
	}
	return Outcome{}, &generic.ConflictError{Current: string(current), Event: string(ev)}
}

// isOutcomeOf reports whether st is a status ev can produce:
//
//	submit:         pending
//	approve:        approved, cancelled
//	reject:         rejected, approved
//	request_cancel: cancel_pending
func isOutcomeOf(st Status, ev Event) bool {
	if ev == EventSubmit {
		return st == StatusPending
	}
	for k, next := range transitions {
		if k.event == ev && next == st && next != "" {
			return true
		}
	}
	return false
}

// =============================================================================
// AUTHORIZATION
// =============================================================================

// Authorize decides whether actor may apply ev to a request owned by owner.
//
//	submit, withdraw, request_cancel: the owner only
//	approve, reject: an admin or the owner's supervisor, never the owner
func Authorize(actor Actor, owner User, ev Event) error {
	if actor.TenantID != owner.TenantID {
		return &generic.PermissionError{ActorID: actor.UserID, Action: string(ev), Reason: "different tenant"}
	}
	switch ev {
	case EventSubmit, EventWithdraw, EventRequestCancel:
		if actor.UserID != owner.ID {
			return &generic.PermissionError{ActorID: actor.UserID, Action: string(ev), Reason: "only the owner may do this"}
		}
		return nil
	case EventApprove, EventReject:
		if actor.UserID == owner.ID {
			return &generic.PermissionError{ActorID: actor.UserID, Action: string(ev), Reason: "cannot decide on own request"}
		}
		if actor.IsAdmin() || (owner.SupervisorID != "" && owner.SupervisorID == actor.UserID) {
			return nil
		}
		return &generic.PermissionError{ActorID: actor.UserID, Action: string(ev), Reason: "not the owner's supervisor"}
	}
	return &generic.PermissionError{ActorID: actor.UserID, Action: string(ev), Reason: "unknown event"}
}

// CanView reports whether actor may read owner's requests and entitlement.
func CanView(actor Actor, owner User) bool {
	if actor.TenantID != owner.TenantID {
		return false
	}
	return actor.UserID == owner.ID || actor.IsAdmin() || owner.SupervisorID == actor.UserID
}
