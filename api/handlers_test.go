/*
handlers_test.go - HTTP tests for the API

Tests for:
- Authentication and role gates
- Event CRUD and validation responses
- Vacation quota (400 + remaining_days) and event overlap (406 + URLs)
- Check-in/check-out conflicts (409)
- Statistics responses
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/time-tracking/auth"
	"github.com/warp/time-tracking/cache"
	"github.com/warp/time-tracking/clock"
	"github.com/warp/time-tracking/statistics"
	"github.com/warp/time-tracking/tracking"
	"github.com/warp/time-tracking/tracking/store"
	"github.com/warp/time-tracking/tracking/storetest"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testEnv struct {
	router http.Handler
	store  *store.Memory
	clock  *clock.Mock
	issuer *auth.Issuer
	boss   tracking.User
	alice  tracking.User
	bob    tracking.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := store.NewMemory()
	clk := clock.NewMock(time.Date(2020, time.September, 10, 12, 0, 0, 0, time.UTC))
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	log := logrus.NewEntry(logger)

	issuer := auth.NewIssuer("test-secret", "time-tracking", time.Hour, clk)
	h := NewHandler(mem, cache.NewMemory(clk), auth.NewAuthenticator(issuer, mem), clk, log, statistics.Options{})

	return &testEnv{
		router: NewRouter(h, RouterOptions{}),
		store:  mem,
		clock:  clk,
		issuer: issuer,
		boss:   storetest.SeedUser(t, mem, "boss", true),
		alice:  storetest.SeedUser(t, mem, "alice", false),
		bob:    storetest.SeedUser(t, mem, "bob", false),
	}
}

// do sends a request as u; a zero user sends it anonymously.
func (e *testEnv) do(t *testing.T, u tracking.User, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if u.ID != "" {
		token, _, err := e.issuer.Issue(u)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *testEnv) createEvent(t *testing.T, title, start, end string) EventDTO {
	t.Helper()
	rec := e.do(t, e.boss, http.MethodPost, "/api/events", map[string]string{
		"title": title, "start_date": start, "end_date": end,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[EventDTO](t, rec)
}

var anonymous tracking.User

// =============================================================================
// HEALTH & AUTH
// =============================================================================

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, anonymous, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"store":"ok"`)
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, env.alice, http.MethodGet, "/api/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[UserDTO](t, rec)
	assert.Equal(t, "alice", me.Username)
	assert.False(t, me.IsStaff)

	rec = env.do(t, anonymous, http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_BadTokenIsUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()

	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", decode[ErrorResponse](t, rec).Code)
}

func TestAuth_ExpiredToken(t *testing.T) {
	// GIVEN: A token issued now
	env := newTestEnv(t)
	token, _, err := env.issuer.Issue(env.alice)
	require.NoError(t, err)

	// WHEN: It is used after its lifetime
	env.clock.Advance(2 * time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	// THEN: 401
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// =============================================================================
// EVENTS
// =============================================================================

func TestEvents_RoleGates(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]string{"title": "Offsite", "start_date": "2020-10-01", "end_date": "2020-10-02"}

	assert.Equal(t, http.StatusUnauthorized, env.do(t, anonymous, http.MethodPost, "/api/events", body).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, env.alice, http.MethodPost, "/api/events", body).Code)
	assert.Equal(t, http.StatusCreated, env.do(t, env.boss, http.MethodPost, "/api/events", body).Code)

	// Anyone may read
	rec := env.do(t, anonymous, http.MethodGet, "/api/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]EventDTO](t, rec), 1)
}

func TestEvents_CreateGetAndURL(t *testing.T) {
	env := newTestEnv(t)

	created := env.createEvent(t, "Offsite", "2020-10-01", "2020-10-02")

	assert.Equal(t, "http://example.com/api/events/"+created.ID, created.URL)
	assert.Equal(t, string(env.boss.ID), created.CreatedBy)

	rec := env.do(t, anonymous, http.MethodGet, "/api/events/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[EventDTO](t, rec)
	assert.Equal(t, "Offsite", got.Title)
	assert.Equal(t, "2020-10-01", got.StartDate)
}

func TestEvents_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"end before start", map[string]string{"title": "x", "start_date": "2020-10-02", "end_date": "2020-10-01"}},
		{"bad date format", map[string]string{"title": "x", "start_date": "01/10/2020", "end_date": "2020-10-01"}},
		{"missing title", map[string]string{"start_date": "2020-10-01", "end_date": "2020-10-01"}},
		{"missing end", map[string]string{"title": "x", "start_date": "2020-10-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, env.boss, http.MethodPost, "/api/events", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "validation", decode[ErrorResponse](t, rec).Code)
		})
	}
}

func TestEvents_PatchMergesBeforeValidating(t *testing.T) {
	// GIVEN: An event from Oct 5 to Oct 6
	env := newTestEnv(t)
	e := env.createEvent(t, "Offsite", "2020-10-05", "2020-10-06")

	// WHEN: Only end_date moves before the stored start
	rec := env.do(t, env.boss, http.MethodPatch, "/api/events/"+e.ID, map[string]string{"end_date": "2020-10-04"})

	// THEN: Rejected
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// WHEN: Only the title changes
	rec = env.do(t, env.boss, http.MethodPatch, "/api/events/"+e.ID, map[string]string{"title": "Retreat"})

	// THEN: Dates are kept
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[EventDTO](t, rec)
	assert.Equal(t, "Retreat", got.Title)
	assert.Equal(t, "2020-10-06", got.EndDate)
}

func TestEvents_PutRequiresAllFields(t *testing.T) {
	env := newTestEnv(t)
	e := env.createEvent(t, "Offsite", "2020-10-05", "2020-10-06")

	rec := env.do(t, env.boss, http.MethodPut, "/api/events/"+e.ID, map[string]string{"title": "Retreat"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, env.boss, http.MethodPut, "/api/events/"+e.ID, map[string]string{
		"title": "Retreat", "start_date": "2020-10-07", "end_date": "2020-10-08",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2020-10-07", decode[EventDTO](t, rec).StartDate)
}

func TestEvents_DeleteAndNotFound(t *testing.T) {
	env := newTestEnv(t)
	e := env.createEvent(t, "Offsite", "2020-10-05", "2020-10-06")

	assert.Equal(t, http.StatusNoContent, env.do(t, env.boss, http.MethodDelete, "/api/events/"+e.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, anonymous, http.MethodGet, "/api/events/"+e.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, env.boss, http.MethodDelete, "/api/events/"+e.ID, nil).Code)
}

func TestDecode_RejectsUnknownFields(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, env.boss, http.MethodPost, "/api/events", map[string]string{"titel": "typo"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// VACATIONS
// =============================================================================

func vacationBody(desc, start, end string) map[string]string {
	return map[string]string{"brief_description": desc, "start_date": start, "end_date": end}
}

func TestVacations_RequestListAndGet(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, env.alice, http.MethodPost, "/api/vacations", vacationBody("beach", "2020-10-01", "2020-10-03"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	v := decode[VacationDTO](t, rec)
	assert.Equal(t, 3, v.Days)
	assert.Equal(t, "alice", v.Owner)

	rec = env.do(t, env.alice, http.MethodGet, "/api/vacations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]VacationDTO](t, rec), 1)

	// Another member cannot see it
	assert.Equal(t, http.StatusNotFound, env.do(t, env.bob, http.MethodGet, "/api/vacations/"+v.ID, nil).Code)
	// Staff are not vacation owners
	assert.Equal(t, http.StatusForbidden, env.do(t, env.boss, http.MethodGet, "/api/vacations", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, anonymous, http.MethodGet, "/api/vacations", nil).Code)
}

func TestVacations_QuotaExceededCarriesRemainingDays(t *testing.T) {
	// GIVEN: Alice already took 14 days this year
	env := newTestEnv(t)
	rec := env.do(t, env.alice, http.MethodPost, "/api/vacations", vacationBody("long", "2020-10-01", "2020-10-14"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// WHEN: She asks for 3 more
	rec = env.do(t, env.alice, http.MethodPost, "/api/vacations", vacationBody("more", "2020-11-02", "2020-11-04"))

	// THEN: 400 with the 2 remaining days
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "quota_exceeded", resp.Code)
	require.NotNil(t, resp.RemainingDays)
	assert.Equal(t, 2, *resp.RemainingDays)

	// AND: The balance endpoint agrees
	rec = env.do(t, env.alice, http.MethodGet, "/api/vacations/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, BalanceDTO{Year: 2020, Limit: 16, Used: 14, Remaining: 2}, decode[BalanceDTO](t, rec))
}

func TestVacations_EventOverlapIs406WithURLs(t *testing.T) {
	// GIVEN: An event ending on Oct 5
	env := newTestEnv(t)
	e := env.createEvent(t, "Release", "2020-10-01", "2020-10-05")

	// WHEN: A vacation starts that same day
	rec := env.do(t, env.alice, http.MethodPost, "/api/vacations", vacationBody("trip", "2020-10-05", "2020-10-07"))

	// THEN: 406 naming the event
	require.Equal(t, http.StatusNotAcceptable, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, []string{e.ID}, resp.EventIDs)
	assert.Equal(t, []string{"http://example.com/api/events/" + e.ID}, resp.EventsURLs)

	// AND: The day after is fine
	rec = env.do(t, env.alice, http.MethodPost, "/api/vacations", vacationBody("trip", "2020-10-06", "2020-10-07"))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestVacations_PastDatesRejected(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, env.alice, http.MethodPost, "/api/vacations", vacationBody("late", "2020-09-09", "2020-09-11"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVacations_UpdateDescriptionOnly(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, env.alice, http.MethodPost, "/api/vacations", vacationBody("beach", "2020-10-01", "2020-10-03"))
	require.Equal(t, http.StatusCreated, rec.Code)
	v := decode[VacationDTO](t, rec)

	// Echoing the stored dates is fine
	rec = env.do(t, env.alice, http.MethodPatch, "/api/vacations/"+v.ID, vacationBody("mountains", "2020-10-01", "2020-10-03"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mountains", decode[VacationDTO](t, rec).BriefDescription)

	// Moving them is not
	rec = env.do(t, env.alice, http.MethodPatch, "/api/vacations/"+v.ID, map[string]string{"end_date": "2020-10-04"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdates_AcceptEchoedResponseBodies(t *testing.T) {
	// GIVEN: A vacation and an event as returned by the API
	env := newTestEnv(t)
	rec := env.do(t, env.alice, http.MethodPost, "/api/vacations", vacationBody("beach", "2020-10-01", "2020-10-03"))
	require.Equal(t, http.StatusCreated, rec.Code)
	v := decode[VacationDTO](t, rec)
	e := env.createEvent(t, "Party", "2020-11-01", "2020-11-01")

	// WHEN: The bodies are sent back with id, url, owner and days included
	v.BriefDescription = "mountains"
	rec = env.do(t, env.alice, http.MethodPut, "/api/vacations/"+v.ID, v)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "mountains", decode[VacationDTO](t, rec).BriefDescription)

	e.Title = "Bigger party"
	rec = env.do(t, env.boss, http.MethodPatch, "/api/events/"+e.ID, e)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: Server-assigned values are untouched
	got := decode[EventDTO](t, rec)
	assert.Equal(t, "Bigger party", got.Title)
	assert.Equal(t, e.ID, got.ID)
}

func TestVacations_CancelStartedIsForbidden(t *testing.T) {
	// GIVEN: A vacation that starts tomorrow
	env := newTestEnv(t)
	rec := env.do(t, env.alice, http.MethodPost, "/api/vacations", vacationBody("short", "2020-09-11", "2020-09-12"))
	require.Equal(t, http.StatusCreated, rec.Code)
	v := decode[VacationDTO](t, rec)

	// WHEN: Two days pass
	env.clock.Advance(48 * time.Hour)

	// THEN: It can no longer be cancelled
	assert.Equal(t, http.StatusForbidden, env.do(t, env.alice, http.MethodDelete, "/api/vacations/"+v.ID, nil).Code)
}

func TestVacations_CancelFuture(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, env.alice, http.MethodPost, "/api/vacations", vacationBody("short", "2020-09-11", "2020-09-12"))
	require.Equal(t, http.StatusCreated, rec.Code)
	v := decode[VacationDTO](t, rec)

	assert.Equal(t, http.StatusNoContent, env.do(t, env.alice, http.MethodDelete, "/api/vacations/"+v.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, env.alice, http.MethodGet, "/api/vacations/"+v.ID, nil).Code)
}

// =============================================================================
// WORK TIME
// =============================================================================

func TestWorkTime_CheckInCheckOutCycle(t *testing.T) {
	env := newTestEnv(t)

	// Checked out initially
	rec := env.do(t, env.alice, http.MethodGet, "/api/work-time/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tracking.StateCheckedOut, decode[StatusDTO](t, rec).State)

	// Check out without check in
	rec = env.do(t, env.alice, http.MethodPost, "/api/work-time/check-out", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Check in
	rec = env.do(t, env.alice, http.MethodPost, "/api/work-time/check-in", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	opened := decode[WorkSessionDTO](t, rec)
	assert.Nil(t, opened.EndDatetime)
	assert.Equal(t, "2020-09-10T12:00:00Z", opened.StartDatetime)

	// Check in twice
	assert.Equal(t, http.StatusConflict, env.do(t, env.alice, http.MethodPost, "/api/work-time/check-in", nil).Code)

	rec = env.do(t, env.alice, http.MethodGet, "/api/work-time/status", nil)
	status := decode[StatusDTO](t, rec)
	assert.Equal(t, tracking.StateCheckedIn, status.State)
	require.NotNil(t, status.Session)
	assert.Equal(t, opened.ID, status.Session.ID)

	// Check out later
	env.clock.Advance(4 * time.Hour)
	rec = env.do(t, env.alice, http.MethodPost, "/api/work-time/check-out", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	closed := decode[WorkSessionDTO](t, rec)
	require.NotNil(t, closed.EndDatetime)
	assert.Equal(t, "2020-09-10T16:00:00Z", *closed.EndDatetime)

	rec = env.do(t, env.alice, http.MethodGet, "/api/work-time", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]WorkSessionDTO](t, rec), 1)

	assert.Equal(t, http.StatusOK, env.do(t, env.alice, http.MethodGet, "/api/work-time/"+opened.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, env.bob, http.MethodGet, "/api/work-time/"+opened.ID, nil).Code)
}

func TestWorkTime_StaffForbidden(t *testing.T) {
	env := newTestEnv(t)

	assert.Equal(t, http.StatusForbidden, env.do(t, env.boss, http.MethodPost, "/api/work-time/check-in", nil).Code)
}

// =============================================================================
// STATISTICS
// =============================================================================

func (e *testEnv) seedSession(t *testing.T, owner tracking.UserID, start time.Time, d time.Duration) {
	t.Helper()
	end := start.Add(d)
	require.NoError(t, e.store.CreateWorkSession(context.Background(), tracking.WorkSession{
		ID: tracking.WorkSessionID(tracking.NewID()), OwnerID: owner,
		StartedAt: start, EndedAt: &end, CreatedAt: start, UpdatedAt: end,
	}))
}

func TestStatistics_PeriodHours(t *testing.T) {
	// GIVEN: Alice worked 8h and 7.5h this week
	env := newTestEnv(t)
	env.seedSession(t, env.alice.ID, time.Date(2020, 9, 8, 9, 0, 0, 0, time.UTC), 8*time.Hour)
	env.seedSession(t, env.alice.ID, time.Date(2020, 9, 9, 9, 0, 0, 0, time.UTC), 7*time.Hour+30*time.Minute)

	// WHEN: Staff asks for the week, in any case
	rec := env.do(t, env.boss, http.MethodGet, "/api/work-time-statistic/WEEK/"+string(env.alice.ID), nil)

	// THEN: 15.5 hours as a JSON number
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"total_working_hours":15.5`)
	dto := decode[PeriodHoursDTO](t, rec)
	assert.Equal(t, "week", dto.Period)
	assert.True(t, decimal.RequireFromString("15.5").Equal(dto.TotalWorkingHours))
}

func TestStatistics_Errors(t *testing.T) {
	env := newTestEnv(t)
	alice := string(env.alice.ID)

	assert.Equal(t, http.StatusForbidden, env.do(t, env.alice, http.MethodGet, "/api/work-time-statistic/week/"+alice, nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, env.boss, http.MethodGet, "/api/work-time-statistic/month/"+alice, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, env.boss, http.MethodGet, "/api/work-time-statistic/week/nobody", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, env.boss, http.MethodGet, "/api/work-time-statistic/week/"+string(env.boss.ID), nil).Code)
}

func TestStatistics_ArrivalAndLeaving(t *testing.T) {
	env := newTestEnv(t)
	env.seedSession(t, env.alice.ID, time.Date(2020, 9, 8, 9, 0, 0, 0, time.UTC), 8*time.Hour)
	env.seedSession(t, env.alice.ID, time.Date(2020, 9, 9, 9, 30, 0, 0, time.UTC), 8*time.Hour)

	rec := env.do(t, env.boss, http.MethodGet, "/api/work-time-statistic/arrive-and-leave-times/"+string(env.alice.ID), nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"username":"alice","average_arrival_time":"09:15:00","average_leaving_time":"17:15:00"}`, rec.Body.String())
}

func TestStatistics_ArrivalAndLeavingEmptyIsNull(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, env.boss, http.MethodGet, "/api/work-time-statistic/arrive-and-leave-times/"+string(env.bob.ID), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"username":"bob","average_arrival_time":null,"average_leaving_time":null}`, rec.Body.String())
}

func TestStatistics_TeamRatio(t *testing.T) {
	// GIVEN: Alice works 09-13 and 14-18
	env := newTestEnv(t)
	env.seedSession(t, env.alice.ID, time.Date(2020, 9, 8, 9, 0, 0, 0, time.UTC), 4*time.Hour)
	env.seedSession(t, env.alice.ID, time.Date(2020, 9, 8, 14, 0, 0, 0, time.UTC), 4*time.Hour)

	rec := env.do(t, env.boss, http.MethodGet, "/api/team-statistics/work-to-leave-time-average", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"working_hours":8,"leaving_hours":1,"percentage_of_working_on_leaving_time":800}`, rec.Body.String())
}

func TestStatistics_TeamRatioWithoutLeavingIsNull(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, env.boss, http.MethodGet, "/api/team-statistics/work-to-leave-time-average", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"working_hours":0,"leaving_hours":0,"percentage_of_working_on_leaving_time":null}`, rec.Body.String())
}

func TestStatistics_UsersWithAvailableStats(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, env.boss, http.MethodGet, "/api/work-time-statistics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	users := decode[[]UserStatsDTO](t, rec)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "http://example.com/api/work-time-statistic/week/"+string(env.alice.ID), users[0].TotalWorkingHours["week"])
	assert.Equal(t, "http://example.com/api/work-time-statistic/arrive-and-leave-times/"+string(env.alice.ID), users[0].WorkingHoursToLeavingHours)

	rec = env.do(t, env.boss, http.MethodGet, "/api/work-time-statistics/"+string(env.bob.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bob", decode[UserStatsDTO](t, rec).Username)
}
