package api

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/holiday"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/memory"
)

func TestListScenarios(t *testing.T) {
	router := testRouter(setupTestHandler(t))

	rec := do(t, router, http.MethodGet, "/api/scenarios/", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeBody[[]ScenarioDTO](t, rec)
	require.Len(t, got, 3)
	assert.Equal(t, "team", got[0].ID)
}

func TestCurrentScenario_NoneLoaded(t *testing.T) {
	store := memory.New()
	reg, err := holiday.NewRegistry(holiday.LocaleCZ)
	require.NoError(t, err)
	svc := leave.NewService(store, reg, leave.NewPolicies(leave.DefaultPolicy()))
	router := testRouter(NewHandler(svc, store, nil))

	rec := do(t, router, http.MethodGet, "/api/scenarios/current", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))
}

func TestLoadScenario_Overlap(t *testing.T) {
	// GIVEN: The team scenario is loaded
	// WHEN: Loading the overlap scenario
	// THEN: The store is reset and the pending request counts only uncovered days

	router := testRouter(setupTestHandler(t))

	rec := do(t, router, http.MethodPost, "/api/scenarios/load", "alice", LoadScenarioRequest{ScenarioID: "overlap"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/api/scenarios/current", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "overlap", decodeBody[ScenarioDTO](t, rec).ID)

	rec = do(t, router, http.MethodGet, "/api/leaves/me", "carol", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	leaves := decodeBody[[]LeaveRequestDTO](t, rec)
	require.Len(t, leaves, 2)

	for _, l := range leaves {
		switch l.Status {
		case "approved":
			assert.Equal(t, "2024-06-03", l.StartDate)
			assert.Equal(t, 3.0, l.DaysCount)
		case "pending":
			assert.Equal(t, "2024-06-04", l.StartDate)
			assert.Equal(t, 4.0, l.TotalDays)
			assert.Equal(t, 2.0, l.DaysCount)
		default:
			t.Fatalf("unexpected status %q", l.Status)
		}
	}

	// dave had a request in the team scenario; it is gone now
	rec = do(t, router, http.MethodGet, "/api/leaves/me", "dave", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]LeaveRequestDTO](t, rec))
}

func TestLoadScenario_Errors(t *testing.T) {
	router := testRouter(setupTestHandler(t))

	rec := do(t, router, http.MethodPost, "/api/scenarios/load", "alice", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/scenarios/load", "alice", LoadScenarioRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// the previous scenario stays current
	rec = do(t, router, http.MethodGet, "/api/scenarios/current", "alice", nil)
	assert.Equal(t, "team", decodeBody[ScenarioDTO](t, rec).ID)
}

func TestFirstFullWeek(t *testing.T) {
	tests := []struct {
		year  int
		month time.Month
		want  string
	}{
		{2024, time.March, "2024-03-04"},
		{2024, time.June, "2024-06-03"},
		{2024, time.July, "2024-07-01"},
		{2025, time.March, "2025-03-03"},
	}
	for _, tt := range tests {
		got := firstFullWeek(tt.year, tt.month)
		assert.Equal(t, generic.MustParseDate(tt.want), got)
		assert.Equal(t, time.Monday, got.Weekday())
	}
}
