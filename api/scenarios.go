/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with a small team
	and requests in every lifecycle state. Everything goes through
	leave.Service, so the data obeys the same rules as real traffic.

AVAILABLE SCENARIOS:

	team:     Admin, supervisor, two members (one contractor), requests in
	          pending, approved and cancel_pending states
	overlap:  An approved block and a pending request partly covering it
	empty:    Users only

HOW SCENARIOS WORK:
 1. Reset the store
 2. Create users in tenant "demo"
 3. Install the Czech holiday table
 4. Create this year's entitlement records
 5. Submit and decide requests as the respective users

DATES:

	Requests are placed in the current year: the first full week of March
	and of June have no Czech holidays, and Dec 23-27 shows holiday
	exclusion.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "team"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler
  - server.go: Routes are mounted only when a Resetter is configured
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/holiday"
	"github.com/warp/leave-engine/leave"
)

// DemoTenant is the tenant used by every scenario.
const DemoTenant generic.TenantID = "demo"

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "team",
		Name:        "Team",
		Description: "Supervisor, members and a contractor with requests in every state",
	},
	{
		ID:          "overlap",
		Name:        "Overlap",
		Description: "Pending request partly covering approved leave; consumed days are not counted twice",
	},
	{
		ID:          "empty",
		Name:        "Empty",
		Description: "Users and holiday table only",
	},
}

var demoUsers = []leave.User{
	{ID: "alice", Name: "Alice Admin", Email: "alice@example.com", Role: leave.RoleAdmin},
	{ID: "bob", Name: "Bob Supervisor", Email: "bob@example.com", SupervisorID: "alice"},
	{ID: "carol", Name: "Carol Member", Email: "carol@example.com", SupervisorID: "bob"},
	{ID: "dave", Name: "Dave Contractor", Email: "dave@example.com", SupervisorID: "bob", Employment: leave.EmploymentContractor},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	loader, ok := map[string]func(context.Context) error{
		"team":    h.loadTeamScenario,
		"overlap": h.loadOverlapScenario,
		"empty":   h.loadEmptyScenario,
	}[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.LoadScenarioByID(r.Context(), req.ScenarioID, loader); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// LoadScenarioByID resets the store and runs loader. Caller holds h.mu.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string, loader func(context.Context) error) error {
	h.currentScenario = ""
	if h.Resetter == nil {
		return fmt.Errorf("%w: store cannot be reset", generic.ErrConfiguration)
	}
	if err := h.Resetter.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	if err := loader(ctx); err != nil {
		return err
	}
	h.currentScenario = id
	h.Logger.InfoContext(ctx, "scenario loaded", "scenario", id, "tenant", DemoTenant)
	return nil
}

// LoadDemo loads the team scenario. Used by cmd/server on LOAD_DEMO_DATA.
func (h *Handler) LoadDemo(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.LoadScenarioByID(ctx, "team", h.loadTeamScenario)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadEmptyScenario(ctx context.Context) error {
	return h.seedTeam(ctx)
}

func (h *Handler) loadTeamScenario(ctx context.Context) error {
	if err := h.seedTeam(ctx); err != nil {
		return err
	}
	year := h.now().Year()
	march := firstFullWeek(year, time.March)

	// carol: approved Christmas week and a pending week in March
	xmas, err := h.submit(ctx, "carol", generic.NewTimePoint(year, time.December, 23), generic.NewTimePoint(year, time.December, 27), "Christmas")
	if err != nil {
		return err
	}
	if _, err := h.Service.Approve(ctx, demoActor("bob"), xmas.ID); err != nil {
		return fmt.Errorf("approve %s: %w", xmas.ID, err)
	}
	if _, err := h.submit(ctx, "carol", march, march.AddDays(4), "Skiing"); err != nil {
		return err
	}

	// dave: contractor, pending half day
	if _, err := h.submitHalf(ctx, "dave", march.AddDays(2), march.AddDays(2), leave.HalfDayFlags{StartHalf: true}); err != nil {
		return err
	}

	// bob: approved by alice, then asks to cancel
	june := firstFullWeek(year, time.June)
	trip, err := h.submit(ctx, "bob", june, june.AddDays(2), "Conference")
	if err != nil {
		return err
	}
	if _, err := h.Service.Approve(ctx, demoActor("alice"), trip.ID); err != nil {
		return fmt.Errorf("approve %s: %w", trip.ID, err)
	}
	if _, err := h.Service.RequestCancel(ctx, demoActor("bob"), trip.ID); err != nil {
		return fmt.Errorf("request cancel %s: %w", trip.ID, err)
	}

	// rejected request for the history view
	rej, err := h.submit(ctx, "carol", june.AddDays(7), june.AddDays(8), "Long weekend")
	if err != nil {
		return err
	}
	if _, err := h.Service.Reject(ctx, demoActor("bob"), rej.ID); err != nil {
		return fmt.Errorf("reject %s: %w", rej.ID, err)
	}
	return nil
}

func (h *Handler) loadOverlapScenario(ctx context.Context) error {
	if err := h.seedTeam(ctx); err != nil {
		return err
	}
	mon := firstFullWeek(h.now().Year(), time.June)

	// Mon-Wed approved, then Tue-Fri submitted: only Thu and Fri count
	first, err := h.submit(ctx, "carol", mon, mon.AddDays(2), "First half")
	if err != nil {
		return err
	}
	if _, err := h.Service.Approve(ctx, demoActor("bob"), first.ID); err != nil {
		return fmt.Errorf("approve %s: %w", first.ID, err)
	}
	_, err = h.submit(ctx, "carol", mon.AddDays(1), mon.AddDays(4), "Extended")
	return err
}

// seedTeam creates the demo users, holiday table and entitlement records.
func (h *Handler) seedTeam(ctx context.Context) error {
	for _, u := range demoUsers {
		u.TenantID = DemoTenant
		u.Active = true
		if err := h.Service.SaveUser(ctx, u); err != nil {
			return fmt.Errorf("save user %s: %w", u.ID, err)
		}
	}
	if _, err := h.Service.SetHolidayTable(ctx, demoActor("alice"), holiday.Table{Locale: holiday.LocaleCZ}); err != nil {
		return fmt.Errorf("holiday table: %w", err)
	}
	if _, err := h.Service.EnsureYear(ctx, h.now().Year()); err != nil {
		return fmt.Errorf("entitlements: %w", err)
	}
	return nil
}

func (h *Handler) submit(ctx context.Context, user generic.UserID, start, end generic.TimePoint, note string) (*leave.LeaveRequest, error) {
	res, err := h.Service.Submit(ctx, demoActor(user), leave.SubmitInput{
		Range: generic.Period{Start: start, End: end},
		Note:  note,
	})
	if err != nil {
		return nil, fmt.Errorf("submit for %s: %w", user, err)
	}
	return &res.Request, nil
}

func (h *Handler) submitHalf(ctx context.Context, user generic.UserID, start, end generic.TimePoint, half leave.HalfDayFlags) (*leave.LeaveRequest, error) {
	res, err := h.Service.Submit(ctx, demoActor(user), leave.SubmitInput{
		Range: generic.Period{Start: start, End: end},
		Half:  half,
	})
	if err != nil {
		return nil, fmt.Errorf("submit for %s: %w", user, err)
	}
	return &res.Request, nil
}

func demoActor(user generic.UserID) leave.Actor {
	role := leave.RoleMember
	if user == "alice" {
		role = leave.RoleAdmin
	}
	return leave.Actor{UserID: user, TenantID: DemoTenant, Role: role}
}

// firstFullWeek returns the first Monday of month in year.
func firstFullWeek(year int, month time.Month) generic.TimePoint {
	d := generic.NewTimePoint(year, month, 1)
	for d.Weekday() != time.Monday {
		d = d.AddDays(1)
	}
	return d
}
