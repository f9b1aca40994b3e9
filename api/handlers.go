/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the leave lifecycle via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to leave.Service.

ENDPOINTS:
  Leaves:
    POST   /api/leaves                      Submit a request
    GET    /api/leaves/preview              Day computation without persisting
    GET    /api/leaves/me                   Caller's requests, newest first
    GET    /api/leaves/approvals            Requests the caller may decide
    GET    /api/leaves/calendar?from&to     Approved team leave and holidays
    POST   /api/leaves/{id}/approve         Approve (supervisor or admin)
    POST   /api/leaves/{id}/reject          Reject (supervisor or admin)
    POST   /api/leaves/{id}/request-cancel  Ask to cancel approved leave
    DELETE /api/leaves/{id}                 Withdraw a pending request
    GET    /api/leaves/{id}/audit           Lifecycle history

  Entitlements:
    GET    /api/entitlements/{user}?year=   Summary ("me" for the caller)
    PUT    /api/admin/entitlements/{user}   Admin override
    POST   /api/admin/rollover?year=        Create missing yearly records

  Holidays:
    GET    /api/holidays                    Tenant table
    PUT    /api/holidays                    Replace tenant table (admin)

IDENTITY:
  Every /api route except scenarios needs an actor, resolved by
  ActorMiddleware. No actor means 401.

ERROR HANDLING:
  - 401: No identity
  - 403: Permission denied
  - 404: Request or user not found
  - 409: State conflict, lost race
  - 422: Validation errors, with the reason code in "code"
  - 500: Configuration (code "configuration") and internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - actor.go: Identity middleware
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Resetter clears a store. Implemented by every store backend.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service  *leave.Service
	Logger   *slog.Logger
	Resetter Resetter

	validate *validator.Validate
	now      func() time.Time

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler for svc. reset may be nil, which disables
// scenario loading.
func NewHandler(svc *leave.Service, reset Resetter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Service:  svc,
		Logger:   logger,
		Resetter: reset,
		validate: validator.New(),
		now:      time.Now,
	}
}

// SetClock overrides the handler clock. Tests only.
func (h *Handler) SetClock(now func() time.Time) { h.now = now }

func (h *Handler) today() generic.TimePoint { return generic.DateOf(h.now()) }

// actor returns the caller or writes 401.
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (leave.Actor, bool) {
	a, ok := ActorFrom(r.Context())
	if !ok || a.UserID == "" || a.TenantID == "" {
		writeError(w, http.StatusUnauthorized, "Authentication required", nil)
		return leave.Actor{}, false
	}
	return a, true
}

// decode reads a JSON body and runs struct validation.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return h.check(w, dst)
}

func (h *Handler) check(w http.ResponseWriter, v any) bool {
	if err := h.validate.Struct(v); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "Invalid input",
			Code:    string(generic.ReasonInvalidInput),
			Details: err.Error(),
		})
		return false
	}
	return true
}

// =============================================================================
// LEAVE ENDPOINTS
// =============================================================================

// SubmitLeave creates a pending request for the caller.
func (h *Handler) SubmitLeave(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req SubmitLeaveRequest
	if !h.decode(w, r, &req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	res, err := h.Service.Submit(r.Context(), actor, in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, SubmitResponse{
		Request:    toLeaveRequestDTO(res.Request),
		PreviewDTO: toPreviewDTO(res.Evaluation),
	})
}

// PreviewLeave computes days for a candidate request from query parameters.
func (h *Handler) PreviewLeave(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	req := SubmitLeaveRequest{
		StartDate:    q.Get("start_date"),
		EndDate:      q.Get("end_date"),
		StartHalfDay: queryBool(q.Get("start_half_day")),
		EndHalfDay:   queryBool(q.Get("end_half_day")),
	}
	if !h.check(w, req) {
		return
	}
	in, err := req.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	ev, err := h.Service.Preview(r.Context(), actor, in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPreviewDTO(*ev))
}

// ListMyLeaves returns the caller's requests.
func (h *Handler) ListMyLeaves(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	reqs, err := h.Service.ListForUser(r.Context(), actor, actor.UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTOs(reqs))
}

// ListApprovals returns the caller's approval queue.
func (h *Handler) ListApprovals(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	reqs, err := h.Service.ListPendingForApprover(r.Context(), actor)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTOs(reqs))
}

// Calendar returns approved leave and holidays in [from, to].
func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	from, err := generic.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing 'from' date", err)
		return
	}
	to, err := generic.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing 'to' date", err)
		return
	}
	p := generic.Period{Start: from, End: to}

	reqs, err := h.Service.CalendarApproved(r.Context(), actor, p)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	hols, err := h.Service.Holidays(r.Context(), actor, p)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := CalendarResponse{
		From:     from.String(),
		To:       to.String(),
		Leaves:   toLeaveRequestDTOs(reqs),
		Holidays: make([]HolidayDTO, 0, len(hols)),
	}
	for _, hd := range hols {
		resp.Holidays = append(resp.Holidays, HolidayDTO{Date: hd.Date.String(), Name: hd.Name})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ApproveLeave(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.Approve)
}

func (h *Handler) RejectLeave(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.Reject)
}

func (h *Handler) RequestCancelLeave(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.RequestCancel)
}

type transitionFunc func(context.Context, leave.Actor, generic.RequestID) (*leave.LeaveRequest, error)

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id := generic.RequestID(chi.URLParam(r, "id"))

	req, err := fn(r.Context(), actor, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(*req))
}

// WithdrawLeave deletes a pending request.
func (h *Handler) WithdrawLeave(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id := generic.RequestID(chi.URLParam(r, "id"))
	if err := h.Service.Withdraw(r.Context(), actor, id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LeaveAudit returns the lifecycle history of a request.
func (h *Handler) LeaveAudit(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	entries, err := h.Service.Audit(r.Context(), actor, generic.RequestID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	out := make([]AuditEntryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, AuditEntryDTO{
			Event:   string(e.Event),
			From:    string(e.From),
			To:      string(e.To),
			ActorID: string(e.ActorID),
			At:      e.At,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// ENTITLEMENT ENDPOINTS
// =============================================================================

// GetEntitlement returns the entitlement summary of a user for a year.
func (h *Handler) GetEntitlement(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	user := h.userParam(r, actor)
	today := h.today()
	year, err := yearParam(r, today.Year())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}

	sum, err := h.Service.Entitlement(r.Context(), actor, user, year, today)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntitlementDTO(*sum))
}

// UpdateEntitlement applies an admin override of total or remaining days.
func (h *Handler) UpdateEntitlement(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req UpdateEntitlementRequest
	if !h.decode(w, r, &req) {
		return
	}

	upd := leave.EntitlementUpdate{Year: req.Year}
	if req.TotalDays != nil {
		d := generic.NewDays(*req.TotalDays)
		upd.TotalDays = &d
	}
	if req.RemainingDays != nil {
		d := generic.NewDays(*req.RemainingDays)
		upd.Remaining = &d
	}

	sum, err := h.Service.SetEntitlement(r.Context(), actor, h.userParam(r, actor), upd)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntitlementDTO(*sum))
}

// TriggerRollover creates the missing entitlement records of a year.
func (h *Handler) TriggerRollover(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if !actor.IsAdmin() {
		writeError(w, http.StatusForbidden, "Admin only", nil)
		return
	}
	year, err := yearParam(r, h.today().Year())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}

	created, err := h.Service.EnsureYear(r.Context(), year)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"year": year, "created": created})
}

func (h *Handler) userParam(r *http.Request, actor leave.Actor) generic.UserID {
	u := chi.URLParam(r, "user")
	if u == "" || u == "me" {
		return actor.UserID
	}
	return generic.UserID(u)
}

// =============================================================================
// HOLIDAY ENDPOINTS
// =============================================================================

// GetHolidays returns the caller's tenant table.
func (h *Handler) GetHolidays(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	t, err := h.Service.HolidayTable(r.Context(), actor)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toHolidayTableDTO(*t))
}

// PutHolidays replaces the caller's tenant table.
func (h *Handler) PutHolidays(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req HolidayTableRequest
	if !h.decode(w, r, &req) {
		return
	}
	t, err := h.Service.SetHolidayTable(r.Context(), actor, req.toTable())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toHolidayTableDTO(*t))
}

// =============================================================================
// HEALTH
// =============================================================================

// Health pings the store when it supports it.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Service.Store().(Pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Store unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps engine errors to HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *generic.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: ve.Message, Code: string(ve.Code)})
	case generic.IsClientError(err):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: "Invalid input", Code: string(generic.ReasonInvalidInput), Details: err.Error(),
		})
	case generic.IsPermission(err):
		writeError(w, http.StatusForbidden, "Permission denied", err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case generic.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	case generic.IsConfiguration(err):
		h.Logger.ErrorContext(r.Context(), "configuration error", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "Configuration error", Code: "configuration", Details: err.Error(),
		})
	default:
		h.Logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func queryBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}

func yearParam(r *http.Request, fallback int) (int, error) {
	s := r.URL.Query().Get("year")
	if s == "" {
		return fallback, nil
	}
	y, err := strconv.Atoi(s)
	if err != nil || y < 1970 || y > 2200 {
		return 0, fmt.Errorf("year %q out of range", s)
	}
	return y, nil
}
