/*
service.go - Request lifecycle orchestration

PURPOSE:
  Wires the calculator, overlap resolver, ledger and state machine to a
  Store. Every HTTP handler and scheduled job goes through this type.

SUBMIT FLOW:
  1. Authorize the actor as owner
  2. Resolve the tenant holiday calendar (fail closed)
  3. Validate the range and half-day flags
  4. Collect the owner's approved requests overlapping the range
  5. ComputeDays with the consumed dates removed
  6. Reject zero-day outcomes, check the entitlement against policy
  7. Persist as pending with DaysCount fixed for good

TRANSITION FLOW:
  load -> authorize -> Transition -> conditional UpdateStatus
  A lost race is resolved by re-reading: if the winner applied the same
  event the call is a no-op success, otherwise a conflict.

SEE ALSO:
  - state.go: Transition table and authorization
  - store.go: Persistence interfaces
*/
package leave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/holiday"
)

// CalendarResolver returns the holiday calendar of a tenant.
type CalendarResolver interface {
	For(tenant generic.TenantID) (*holiday.Calendar, error)
}

// Service is the lifecycle engine.
type Service struct {
	store    Store
	holidays CalendarResolver
	policies *Policies
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
	newID    func() generic.RequestID
}

type Option func(*Service)

func WithNotifier(n Notifier) Option        { return func(s *Service) { s.notifier = n } }
func WithLogger(l *slog.Logger) Option      { return func(s *Service) { s.logger = l } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }
func WithIDGenerator(f func() generic.RequestID) Option {
	return func(s *Service) { s.newID = f }
}

func NewService(store Store, holidays CalendarResolver, policies *Policies, opts ...Option) *Service {
	s := &Service{
		store:    store,
		holidays: holidays,
		policies: policies,
		notifier: NopNotifier{},
		logger:   slog.Default(),
		now:      time.Now,
		newID:    func() generic.RequestID { return generic.RequestID(uuid.NewString()) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Store() Store { return s.store }

func (s *Service) today() generic.TimePoint { return generic.DateOf(s.now()) }

// =============================================================================
// SUBMIT AND PREVIEW
// =============================================================================

type SubmitInput struct {
	Range generic.Period
	Half  HalfDayFlags
	Note  string
}

// Evaluation is the day computation for a candidate request.
type Evaluation struct {
	Count     DayCount
	Consumed  []generic.TimePoint
	Remaining generic.Days // after this request
	Warnings  []string
}

type SubmitResult struct {
	Request LeaveRequest
	Evaluation
}

// Preview runs the submission checks without persisting anything.
func (s *Service) Preview(ctx context.Context, actor Actor, in SubmitInput) (*Evaluation, error) {
	owner, err := s.loadUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, *owner, EventSubmit); err != nil {
		return nil, err
	}
	return s.evaluate(ctx, *owner, in)
}

// Submit creates a pending request for the actor.
func (s *Service) Submit(ctx context.Context, actor Actor, in SubmitInput) (*SubmitResult, error) {
	owner, err := s.loadUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, *owner, EventSubmit); err != nil {
		return nil, err
	}
	ev, err := s.evaluate(ctx, *owner, in)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	req := LeaveRequest{
		ID:        s.newID(),
		UserID:    owner.ID,
		TenantID:  owner.TenantID,
		Range:     in.Range,
		Half:      in.Half,
		Note:      in.Note,
		Status:    StatusPending,
		LastEvent: EventSubmit,
		DaysCount: ev.Count.BusinessDays,
		TotalDays: ev.Count.TotalDays,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	s.record(ctx, req, actor, EventSubmit, "", StatusPending, *owner)
	s.logger.InfoContext(ctx, "leave submitted",
		"request_id", req.ID, "user_id", owner.ID, "range", req.Range.String(),
		"days", req.DaysCount.String(), "remaining", ev.Remaining.String())
	return &SubmitResult{Request: req, Evaluation: *ev}, nil
}

func (s *Service) evaluate(ctx context.Context, owner User, in SubmitInput) (*Evaluation, error) {
	cal, err := s.holidays.For(owner.TenantID)
	if err != nil {
		return nil, err
	}
	if err := ValidateInput(in.Range, in.Half, cal); err != nil {
		return nil, err
	}

	rng := in.Range
	approved, err := s.store.ListRequests(ctx, RequestFilter{
		UserIDs:     []generic.UserID{owner.ID},
		Statuses:    []Status{StatusApproved},
		Overlapping: &rng,
	})
	if err != nil {
		return nil, fmt.Errorf("load approved requests: %w", err)
	}
	consumed := ConsumedDates(in.Range, approved)

	count, err := ComputeDays(in.Range, cal, in.Half, consumed)
	if err != nil {
		return nil, err
	}
	if count.TotalDays.IsZero() && consumed.Len() > 0 {
		return nil, generic.NewValidationError(generic.ReasonFullyOverlapsApproved,
			"every day of %s is already approved leave", in.Range)
	}
	if !count.BusinessDays.IsPositive() {
		return nil, generic.NewValidationError(generic.ReasonNoBusinessDays,
			"%s contains no working days", in.Range)
	}

	year := in.Range.Start.Year()
	policy := s.policies.For(owner.TenantID)
	rec, err := s.entitlementRecord(ctx, owner, year, policy)
	if err != nil {
		return nil, err
	}
	yearReqs, err := s.store.ListRequests(ctx, RequestFilter{UserIDs: []generic.UserID{owner.ID}, Year: year})
	if err != nil {
		return nil, fmt.Errorf("load requests for %d: %w", year, err)
	}
	after := policy.Ledger().Remaining(rec, yearReqs).Sub(count.BusinessDays)

	ev := &Evaluation{Count: count, Consumed: consumed.Sorted(), Remaining: after}
	if after.IsNegative() {
		if !policy.AllowNegative {
			return nil, generic.NewValidationError(generic.ReasonInsufficientEntitlement,
				"request needs %s days, only %s remain in %d", count.BusinessDays, after.Add(count.BusinessDays), year)
		}
		ev.Warnings = append(ev.Warnings, fmt.Sprintf("entitlement for %d would be exceeded by %s days", year, after.Neg()))
	}
	return ev, nil
}

// =============================================================================
// TRANSITIONS
// =============================================================================

func (s *Service) Approve(ctx context.Context, actor Actor, id generic.RequestID) (*LeaveRequest, error) {
	return s.apply(ctx, actor, id, EventApprove)
}

func (s *Service) Reject(ctx context.Context, actor Actor, id generic.RequestID) (*LeaveRequest, error) {
	return s.apply(ctx, actor, id, EventReject)
}

func (s *Service) RequestCancel(ctx context.Context, actor Actor, id generic.RequestID) (*LeaveRequest, error) {
	return s.apply(ctx, actor, id, EventRequestCancel)
}

// Withdraw deletes a pending request. A repeated withdraw finds nothing
// and returns ErrNotFound.
func (s *Service) Withdraw(ctx context.Context, actor Actor, id generic.RequestID) error {
	_, err := s.apply(ctx, actor, id, EventWithdraw)
	return err
}

func (s *Service) apply(ctx context.Context, actor Actor, id generic.RequestID, ev Event) (*LeaveRequest, error) {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	owner, err := s.loadUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(actor, *owner, ev); err != nil {
		return nil, err
	}
	out, err := Transition(req.Status, ev)
	if err != nil {
		return nil, withRequestID(err, id)
	}
	if out.NoOp {
		return req, nil
	}

	if out.Delete {
		ok, err := s.store.DeleteRequest(ctx, id, req.Status)
		if err != nil {
			return nil, fmt.Errorf("delete request %s: %w", id, err)
		}
		if !ok {
			return nil, s.resolveLostRace(ctx, id, ev)
		}
		s.record(ctx, *req, actor, ev, req.Status, "", *owner)
		return nil, nil
	}

	at := s.now().UTC()
	ok, err := s.store.UpdateStatus(ctx, StatusUpdate{
		ID: id, Expected: req.Status, Next: out.Next, Event: ev, DecidedBy: actor.UserID, At: at,
	})
	if err != nil {
		return nil, fmt.Errorf("update request %s: %w", id, err)
	}
	if !ok {
		cur, err := s.store.GetRequest(ctx, id)
		if err != nil {
			return nil, err
		}
		if o, err := Transition(cur.Status, ev); err == nil && o.NoOp {
			return cur, nil
		}
		return nil, fmt.Errorf("%w: %w", generic.ErrConcurrentModification,
			&generic.ConflictError{RequestID: id, Current: string(cur.Status), Event: string(ev)})
	}

	from := req.Status
	req.Status = out.Next
	req.LastEvent = ev
	req.UpdatedAt = at
	if ev == EventApprove || ev == EventReject {
		req.DecidedBy = actor.UserID
	}
	s.record(ctx, *req, actor, ev, from, out.Next, *owner)
	s.logger.InfoContext(ctx, "leave transition",
		"request_id", id, "event", ev, "from", from, "to", out.Next, "actor", actor.UserID)
	return req, nil
}

func (s *Service) resolveLostRace(ctx context.Context, id generic.RequestID, ev Event) error {
	cur, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %w", generic.ErrConcurrentModification,
		&generic.ConflictError{RequestID: id, Current: string(cur.Status), Event: string(ev)})
}

func withRequestID(err error, id generic.RequestID) error {
	var ce *generic.ConflictError
	if errors.As(err, &ce) {
		ce.RequestID = id
	}
	return err
}

func (s *Service) record(ctx context.Context, req LeaveRequest, actor Actor, ev Event, from, to Status, owner User) {
	entry := AuditEntry{
		ID:        uuid.NewString(),
		TenantID:  req.TenantID,
		RequestID: req.ID,
		ActorID:   actor.UserID,
		Event:     ev,
		From:      from,
		To:        to,
		At:        s.now().UTC(),
		Note:      req.Note,
	}
	if err := s.store.AppendAudit(ctx, entry); err != nil {
		s.logger.ErrorContext(ctx, "audit append failed", "request_id", req.ID, "error", err)
	}
	if err := s.notifier.Notify(ctx, Notification{Event: ev, Request: req, Owner: owner, Actor: actor}); err != nil {
		s.logger.WarnContext(ctx, "notification failed", "request_id", req.ID, "event", ev, "error", err)
	}
}

// =============================================================================
// READS
// =============================================================================

// ListForUser returns a user's requests, newest first.
func (s *Service) ListForUser(ctx context.Context, actor Actor, user generic.UserID) ([]LeaveRequest, error) {
	owner, err := s.loadUser(ctx, user)
	if err != nil {
		return nil, err
	}
	if !CanView(actor, *owner) {
		return nil, &generic.PermissionError{ActorID: actor.UserID, Action: "list", Reason: "not allowed to view this user"}
	}
	reqs, err := s.store.ListRequests(ctx, RequestFilter{UserIDs: []generic.UserID{user}})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(reqs)
	return reqs, nil
}

// ListPendingForApprover returns the requests the actor can act on: every
// queued request of the tenant for admins, the subordinates' otherwise.
// The actor's own requests are never included.
func (s *Service) ListPendingForApprover(ctx context.Context, actor Actor) ([]LeaveRequest, error) {
	filter := RequestFilter{TenantID: actor.TenantID, Statuses: []Status{StatusPending, StatusCancelPending}}
	if !actor.IsAdmin() {
		users, err := s.store.ListUsers(ctx, actor.TenantID)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			if u.SupervisorID == actor.UserID && u.ID != actor.UserID {
				filter.UserIDs = append(filter.UserIDs, u.ID)
			}
		}
		if len(filter.UserIDs) == 0 {
			return []LeaveRequest{}, nil
		}
	}
	reqs, err := s.store.ListRequests(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := reqs[:0]
	for _, r := range reqs {
		if r.UserID != actor.UserID {
			out = append(out, r)
		}
	}
	sortOldestFirst(out)
	return out, nil
}

// CalendarApproved lists approved leave in the actor's tenant overlapping p.
func (s *Service) CalendarApproved(ctx context.Context, actor Actor, p generic.Period) ([]LeaveRequest, error) {
	if err := validateWindow(p); err != nil {
		return nil, err
	}
	reqs, err := s.store.ListRequests(ctx, RequestFilter{
		TenantID:    actor.TenantID,
		Statuses:    []Status{StatusApproved, StatusCancelPending},
		Overlapping: &p,
	})
	if err != nil {
		return nil, err
	}
	sortOldestFirst(reqs)
	return reqs, nil
}

// Holidays lists the tenant's holidays inside p.
func (s *Service) Holidays(ctx context.Context, actor Actor, p generic.Period) ([]holiday.Holiday, error) {
	if err := validateWindow(p); err != nil {
		return nil, err
	}
	cal, err := s.holidays.For(actor.TenantID)
	if err != nil {
		return nil, err
	}
	return cal.HolidaysIn(p), nil
}

func validateWindow(p generic.Period) error {
	if err := p.Validate(); err != nil {
		return generic.NewValidationError(generic.ReasonInvalidRange, "invalid calendar range %s", p)
	}
	return validateSpan(p)
}

// Audit returns the lifecycle history of a request.
func (s *Service) Audit(ctx context.Context, actor Actor, id generic.RequestID) ([]AuditEntry, error) {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	owner, err := s.loadUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !CanView(actor, *owner) {
		return nil, &generic.PermissionError{ActorID: actor.UserID, Action: "audit", Reason: "not allowed to view this request"}
	}
	return s.store.ListAudit(ctx, id)
}

// =============================================================================
// ENTITLEMENTS
// =============================================================================

// Entitlement returns the summary of user for year as of asOf.
func (s *Service) Entitlement(ctx context.Context, actor Actor, user generic.UserID, year int, asOf generic.TimePoint) (*EntitlementSummary, error) {
	owner, err := s.loadUser(ctx, user)
	if err != nil {
		return nil, err
	}
	if !CanView(actor, *owner) {
		return nil, &generic.PermissionError{ActorID: actor.UserID, Action: "view entitlement", Reason: "not allowed to view this user"}
	}
	policy := s.policies.For(owner.TenantID)
	rec, err := s.entitlementRecord(ctx, *owner, year, policy)
	if err != nil {
		return nil, err
	}
	reqs, err := s.store.ListRequests(ctx, RequestFilter{UserIDs: []generic.UserID{user}, Year: year})
	if err != nil {
		return nil, err
	}
	sum := policy.Ledger().Summary(*owner, rec, reqs, asOf)
	return &sum, nil
}

// EntitlementUpdate carries an administrator's change. Nil fields are kept.
type EntitlementUpdate struct {
	Year      int
	TotalDays *generic.Days
	Remaining *generic.Days
}

// SetEntitlement applies an administrator override.
func (s *Service) SetEntitlement(ctx context.Context, actor Actor, user generic.UserID, upd EntitlementUpdate) (*EntitlementSummary, error) {
	if !actor.IsAdmin() {
		return nil, &generic.PermissionError{ActorID: actor.UserID, Action: "set entitlement", Reason: "admin only"}
	}
	if upd.TotalDays == nil && upd.Remaining == nil {
		return nil, generic.NewValidationError(generic.ReasonInvalidInput, "nothing to update")
	}
	if upd.TotalDays != nil && upd.TotalDays.IsNegative() {
		return nil, generic.NewValidationError(generic.ReasonInvalidInput, "total days cannot be negative")
	}
	owner, err := s.loadUser(ctx, user)
	if err != nil {
		return nil, err
	}
	if owner.TenantID != actor.TenantID {
		return nil, &generic.PermissionError{ActorID: actor.UserID, Action: "set entitlement", Reason: "different tenant"}
	}
	policy := s.policies.For(owner.TenantID)
	rec, err := s.entitlementRecord(ctx, *owner, upd.Year, policy)
	if err != nil {
		return nil, err
	}
	reqs, err := s.store.ListRequests(ctx, RequestFilter{UserIDs: []generic.UserID{user}, Year: upd.Year})
	if err != nil {
		return nil, err
	}
	ledger := policy.Ledger()
	if upd.TotalDays != nil {
		rec = rec.WithTotal(*upd.TotalDays)
	}
	if upd.Remaining != nil {
		rec = ledger.WithRemaining(rec, reqs, *upd.Remaining)
	}
	rec.UpdatedAt = s.now().UTC()
	if err := s.store.SaveEntitlement(ctx, rec); err != nil {
		return nil, fmt.Errorf("save entitlement: %w", err)
	}
	s.logger.InfoContext(ctx, "entitlement updated",
		"user_id", user, "year", upd.Year, "total", rec.TotalDays.String(),
		"adjustment", rec.Adjustment.String(), "actor", actor.UserID)
	sum := ledger.Summary(*owner, rec, reqs, s.today())
	return &sum, nil
}

// EnsureYear creates the default record of year for every active user that
// has none. It returns the number of records created.
func (s *Service) EnsureYear(ctx context.Context, year int) (int, error) {
	users, err := s.store.ListUsers(ctx, "")
	if err != nil {
		return 0, err
	}
	created := 0
	for _, u := range users {
		if !u.Active {
			continue
		}
		existing, err := s.store.GetEntitlement(ctx, u.ID, year)
		if err != nil {
			return created, fmt.Errorf("user %s: %w", u.ID, err)
		}
		if existing != nil {
			continue
		}
		rec := DefaultEntitlement(u, year, s.policies.For(u.TenantID).DefaultTotalDays)
		rec.UpdatedAt = s.now().UTC()
		if err := s.store.SaveEntitlement(ctx, rec); err != nil {
			return created, fmt.Errorf("user %s: %w", u.ID, err)
		}
		created++
	}
	return created, nil
}

func (s *Service) entitlementRecord(ctx context.Context, u User, year int, policy Policy) (EntitlementRecord, error) {
	rec, err := s.store.GetEntitlement(ctx, u.ID, year)
	if err != nil {
		return EntitlementRecord{}, fmt.Errorf("load entitlement: %w", err)
	}
	if rec == nil {
		return DefaultEntitlement(u, year, policy.DefaultTotalDays), nil
	}
	return *rec, nil
}

// =============================================================================
// HOLIDAY TABLES
// =============================================================================

// TableRegistry is the writable side of the calendar resolver.
type TableRegistry interface {
	CalendarResolver
	Set(tenant generic.TenantID, c *holiday.Calendar) error
}

// HolidayTable returns the effective table of the actor's tenant.
func (s *Service) HolidayTable(ctx context.Context, actor Actor) (*holiday.Table, error) {
	t, err := s.store.GetHolidayTable(ctx, actor.TenantID)
	if err != nil {
		return nil, err
	}
	if t != nil {
		return t, nil
	}
	cal, err := s.holidays.For(actor.TenantID)
	if err != nil {
		return nil, err
	}
	tbl := holiday.TableOf(cal)
	return &tbl, nil
}

// SetHolidayTable validates, persists and activates a tenant table.
func (s *Service) SetHolidayTable(ctx context.Context, actor Actor, t holiday.Table) (*holiday.Table, error) {
	if !actor.IsAdmin() {
		return nil, &generic.PermissionError{ActorID: actor.UserID, Action: "set holidays", Reason: "admin only"}
	}
	reg, ok := s.holidays.(TableRegistry)
	if !ok {
		return nil, fmt.Errorf("%w: holiday tables are read-only", generic.ErrConfiguration)
	}
	cal, err := t.Build()
	if err != nil {
		return nil, generic.NewValidationError(generic.ReasonInvalidInput, "%v", err)
	}
	if err := s.store.SaveHolidayTable(ctx, actor.TenantID, t); err != nil {
		return nil, fmt.Errorf("save holiday table: %w", err)
	}
	if err := reg.Set(actor.TenantID, cal); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "holiday table updated", "tenant", actor.TenantID, "entries", len(t.Entries), "actor", actor.UserID)
	return &t, nil
}

// LoadHolidayTables activates every persisted tenant table. Called on start.
func (s *Service) LoadHolidayTables(ctx context.Context) error {
	reg, ok := s.holidays.(TableRegistry)
	if !ok {
		return nil
	}
	tables, err := s.store.ListHolidayTables(ctx)
	if err != nil {
		return err
	}
	for tenant, t := range tables {
		cal, err := t.Build()
		if err != nil {
			return fmt.Errorf("tenant %s: %w", tenant, err)
		}
		if err := reg.Set(tenant, cal); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// USERS
// =============================================================================

// SaveUser stores a user. Used by seeding and tenant bootstrap.
func (s *Service) SaveUser(ctx context.Context, u User) error {
	if u.ID == "" || u.TenantID == "" {
		return generic.NewValidationError(generic.ReasonInvalidInput, "user id and tenant are required")
	}
	if u.Role == "" {
		u.Role = RoleMember
	}
	if u.Employment == "" {
		u.Employment = EmploymentEmployee
	}
	return s.store.SaveUser(ctx, u)
}

func (s *Service) loadUser(ctx context.Context, id generic.UserID) (*User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func sortNewestFirst(reqs []LeaveRequest) {
	sort.SliceStable(reqs, func(i, j int) bool { return reqs[i].Range.Start.After(reqs[j].Range.Start) })
}

func sortOldestFirst(reqs []LeaveRequest) {
	sort.SliceStable(reqs, func(i, j int) bool { return reqs[i].Range.Start.Before(reqs[j].Range.Start) })
}
