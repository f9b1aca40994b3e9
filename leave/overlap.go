package leave

import "github.com/warp/leave-engine/generic"

// ConsumedDates returns the dates of candidate that are already covered by
// approved leave in existing. Pending and cancel-pending requests never
// block dates here; they only count against the entitlement. Duplicate
// pending ranges are left for the approver to reject.
func ConsumedDates(candidate generic.Period, existing []LeaveRequest) DateSet {
	consumed := NewDateSet()
	for _, r := range existing {
		if r.Status != StatusApproved {
			continue
		}
		shared, ok := candidate.Intersect(r.Range)
		if !ok {
			continue
		}
		for _, d := range shared.Days() {
			consumed.Add(d)
		}
	}
	return consumed
}
