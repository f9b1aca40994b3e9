/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request types carry go-playground/validator tags; handlers call
  h.validate.Struct before touching the service. Semantic checks (holiday
  on a half day, overdraft) stay in the leave package.

DAYS:
  Day quantities are JSON numbers. They are multiples of 0.5, which
  float64 represents exactly.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/holiday"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

// SubmitLeaveRequest is the body of POST /api/leaves and the query of
// GET /api/leaves/preview.
type SubmitLeaveRequest struct {
	StartDate    string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate      string `json:"end_date" validate:"required,datetime=2006-01-02"`
	StartHalfDay bool   `json:"start_half_day"`
	EndHalfDay   bool   `json:"end_half_day"`
	Note         string `json:"note" validate:"max=1000"`
}

func (r SubmitLeaveRequest) toInput() (leave.SubmitInput, error) {
	start, err := generic.ParseDate(r.StartDate)
	if err != nil {
		return leave.SubmitInput{}, err
	}
	end, err := generic.ParseDate(r.EndDate)
	if err != nil {
		return leave.SubmitInput{}, err
	}
	return leave.SubmitInput{
		Range: generic.Period{Start: start, End: end},
		Half:  leave.HalfDayFlags{StartHalf: r.StartHalfDay, EndHalf: r.EndHalfDay},
		Note:  r.Note,
	}, nil
}

// LeaveRequestDTO represents a request in API responses.
type LeaveRequestDTO struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	StartDate    string    `json:"start_date"`
	EndDate      string    `json:"end_date"`
	StartHalfDay bool      `json:"start_half_day"`
	EndHalfDay   bool      `json:"end_half_day"`
	Note         string    `json:"note,omitempty"`
	Status       string    `json:"status"`
	DaysCount    float64   `json:"days_count"`
	TotalDays    float64   `json:"total_days"`
	DecidedBy    string    `json:"decided_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toLeaveRequestDTO(r leave.LeaveRequest) LeaveRequestDTO {
	return LeaveRequestDTO{
		ID:           string(r.ID),
		UserID:       string(r.UserID),
		StartDate:    r.Range.Start.String(),
		EndDate:      r.Range.End.String(),
		StartHalfDay: r.Half.StartHalf,
		EndHalfDay:   r.Half.EndHalf,
		Note:         r.Note,
		Status:       string(r.Status),
		DaysCount:    r.DaysCount.Float64(),
		TotalDays:    r.TotalDays.Float64(),
		DecidedBy:    string(r.DecidedBy),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func toLeaveRequestDTOs(rs []leave.LeaveRequest) []LeaveRequestDTO {
	out := make([]LeaveRequestDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, toLeaveRequestDTO(r))
	}
	return out
}

// PreviewDTO is the day computation for a candidate request.
type PreviewDTO struct {
	TotalDays     float64  `json:"total_days"`
	BusinessDays  float64  `json:"business_days"`
	ConsumedDates []string `json:"consumed_dates"`
	Remaining     float64  `json:"remaining_after"`
	Warnings      []string `json:"warnings"`
}

func toPreviewDTO(ev leave.Evaluation) PreviewDTO {
	consumed := make([]string, 0, len(ev.Consumed))
	for _, d := range ev.Consumed {
		consumed = append(consumed, d.String())
	}
	warnings := ev.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return PreviewDTO{
		TotalDays:     ev.Count.TotalDays.Float64(),
		BusinessDays:  ev.Count.BusinessDays.Float64(),
		ConsumedDates: consumed,
		Remaining:     ev.Remaining.Float64(),
		Warnings:      warnings,
	}
}

// SubmitResponse is returned by POST /api/leaves.
type SubmitResponse struct {
	Request LeaveRequestDTO `json:"request"`
	PreviewDTO
}

// CalendarResponse is team leave plus holidays for a date window.
type CalendarResponse struct {
	From     string            `json:"from"`
	To       string            `json:"to"`
	Leaves   []LeaveRequestDTO `json:"leaves"`
	Holidays []HolidayDTO      `json:"holidays"`
}

type HolidayDTO struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

// AuditEntryDTO is one lifecycle event.
type AuditEntryDTO struct {
	Event   string    `json:"event"`
	From    string    `json:"from,omitempty"`
	To      string    `json:"to,omitempty"`
	ActorID string    `json:"actor_id"`
	At      time.Time `json:"at"`
}

// =============================================================================
// ENTITLEMENTS
// =============================================================================

type EntitlementDTO struct {
	UserID            string   `json:"user_id"`
	Year              int      `json:"year"`
	TotalDays         float64  `json:"total_days"`
	PendingDays       float64  `json:"pending_days"`
	ApprovedDays      float64  `json:"approved_days"`
	RemainingDays     float64  `json:"remaining_days"`
	AccrualApplicable bool     `json:"accrual_applicable"`
	AccruedDays       *float64 `json:"accrued_days"`
}

func toEntitlementDTO(s leave.EntitlementSummary) EntitlementDTO {
	dto := EntitlementDTO{
		UserID:            string(s.UserID),
		Year:              s.Year,
		TotalDays:         s.Total.Float64(),
		PendingDays:       s.Pending.Float64(),
		ApprovedDays:      s.Approved.Float64(),
		RemainingDays:     s.Remaining.Float64(),
		AccrualApplicable: s.Accrued.Applicable,
	}
	if s.Accrued.Applicable {
		v := s.Accrued.Days.Float64()
		dto.AccruedDays = &v
	}
	return dto
}

// UpdateEntitlementRequest is the body of PUT /api/admin/entitlements/{user}.
type UpdateEntitlementRequest struct {
	Year          int      `json:"year" validate:"required,gte=1970,lte=2200"`
	TotalDays     *float64 `json:"total_days" validate:"omitempty,gte=0,lte=366"`
	RemainingDays *float64 `json:"remaining_days" validate:"omitempty,gte=-366,lte=366"`
}

// =============================================================================
// HOLIDAY TABLES
// =============================================================================

// HolidayTableRequest is the body of PUT /api/holidays.
type HolidayTableRequest struct {
	Locale  string            `json:"locale" validate:"required_without=Entries"`
	Entries []HolidayEntryDTO `json:"entries" validate:"omitempty,dive"`
	Movable []MovableFeastDTO `json:"movable" validate:"omitempty,dive"`
}

type HolidayEntryDTO struct {
	Month int    `json:"month" validate:"required,min=1,max=12"`
	Day   int    `json:"day" validate:"required,min=1,max=31"`
	Name  string `json:"name" validate:"required,max=200"`
}

type MovableFeastDTO struct {
	Name         string `json:"name" validate:"required,max=200"`
	EasterOffset int    `json:"easter_offset" validate:"min=-70,max=70"`
}

func (r HolidayTableRequest) toTable() holiday.Table {
	t := holiday.Table{Locale: r.Locale}
	for _, e := range r.Entries {
		t.Entries = append(t.Entries, holiday.Entry{Month: time.Month(e.Month), Day: e.Day, Name: e.Name})
	}
	for _, m := range r.Movable {
		t.Movable = append(t.Movable, holiday.MovableFeast{Name: m.Name, EasterOffset: m.EasterOffset})
	}
	return t
}

// HolidayTableDTO describes a tenant table.
type HolidayTableDTO struct {
	Locale  string            `json:"locale"`
	Entries []HolidayEntryDTO `json:"entries"`
	Movable []MovableFeastDTO `json:"movable"`
}

func toHolidayTableDTO(t holiday.Table) HolidayTableDTO {
	dto := HolidayTableDTO{Locale: t.Locale, Entries: []HolidayEntryDTO{}, Movable: []MovableFeastDTO{}}
	for _, e := range t.Entries {
		dto.Entries = append(dto.Entries, HolidayEntryDTO{Month: int(e.Month), Day: e.Day, Name: e.Name})
	}
	for _, m := range t.Movable {
		dto.Movable = append(dto.Movable, MovableFeastDTO{Name: m.Name, EasterOffset: m.EasterOffset})
	}
	return dto
}

// =============================================================================
// SCENARIOS AND ERRORS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request body for loading a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}
