/*
handlers.go - HTTP API handlers for the time-tracking service

PURPOSE:
  Exposes events, vacations, work time and statistics over REST. Handlers
  decode requests, call the domain services and encode responses. Role and
  ownership rules live in the services; handlers only require a caller.

ENDPOINTS:
  Health:
    GET    /health                                  Store and cache ping
    GET    /api/me                                  Authenticated user

  Events (read public, write staff):
    GET    /api/events                              List, newest first
    GET    /api/events/{id}                         Detail
    POST   /api/events                              Create
    PUT    /api/events/{id}                         Replace
    PATCH  /api/events/{id}                         Partial update
    DELETE /api/events/{id}                         Delete

  Vacations (members, own only):
    GET    /api/vacations                           List
    POST   /api/vacations                           Request
    GET    /api/vacations/balance                   Allowance this year
    GET    /api/vacations/{id}                      Detail
    PUT    /api/vacations/{id}, PATCH               Edit description
    DELETE /api/vacations/{id}                      Cancel

  Work time (members, own only):
    GET    /api/work-time                           List sessions
    GET    /api/work-time/status                    Checked in or out
    GET    /api/work-time/{id}                      Detail
    POST   /api/work-time/check-in                  Open a session
    POST   /api/work-time/check-out                 Close the open session

  Statistics (staff):
    GET    /api/work-time-statistics                Members with statistics
    GET    /api/work-time-statistics/{user_id}      One member
    GET    /api/work-time-statistic/{period}/{user_id}
    GET    /api/work-time-statistic/arrive-and-leave-times/{user_id}
    GET    /api/team-statistics/work-to-leave-time-average

REQUEST FLOW:
  1. authenticate middleware attaches the caller, if any
  2. Decode and parse input (dates as YYYY-MM-DD)
  3. Call the service
  4. Serialize response, or map the error in errors.go

SEE ALSO:
  - dto.go: Request/response data structures
  - errors.go: Error to status mapping
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/warp/time-tracking/auth"
	"github.com/warp/time-tracking/cache"
	"github.com/warp/time-tracking/clock"
	"github.com/warp/time-tracking/event"
	"github.com/warp/time-tracking/statistics"
	"github.com/warp/time-tracking/tracking"
	"github.com/warp/time-tracking/vacation"
	"github.com/warp/time-tracking/worktime"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store tracking.TxStore
	Cache cache.Cache
	Auth  *auth.Authenticator

	Events    *event.Service
	Vacations *vacation.Service
	WorkTime  *worktime.Service
	Stats     *statistics.Engine

	Log *logrus.Entry
}

// NewHandler wires the domain services on top of store and cache.
func NewHandler(store tracking.TxStore, c cache.Cache, authn *auth.Authenticator, clk clock.Clock, log *logrus.Entry, stats statistics.Options) *Handler {
	return &Handler{
		Store:     store,
		Cache:     c,
		Auth:      authn,
		Events:    event.NewService(store, clk, log),
		Vacations: vacation.NewService(store, clk, log),
		WorkTime:  worktime.NewService(store, clk, log),
		Stats:     statistics.NewEngine(store, c, clk, log, stats),
		Log:       log.WithField("component", "api"),
	}
}

// =============================================================================
// HEALTH
// =============================================================================

// Health pings the store and the cache.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"store": "ok", "cache": "ok"}
	status := http.StatusOK
	if err := h.Store.Ping(ctx); err != nil {
		checks["store"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := h.Cache.Ping(ctx); err != nil {
		checks["cache"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if status != http.StatusOK {
		h.requestLog(r).WithField("checks", checks).Warn("health check failed")
	}
	writeJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": checks})
}

// Me returns the authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toUserDTO(caller(r)))
}

// =============================================================================
// EVENT ENDPOINTS
// =============================================================================

// ListEvents returns every event, newest start date first.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.Events.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	base := baseURL(r)
	dtos := make([]EventDTO, len(events))
	for i, e := range events {
		dtos[i] = toEventDTO(base, e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	e, err := h.Events.Get(r.Context(), tracking.EventID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventDTO(baseURL(r), *e))
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	in := event.CreateInput{Title: deref(req.Title), Description: deref(req.Description)}
	if start != nil {
		in.StartDate = *start
	}
	if end != nil {
		in.EndDate = *end
	}
	e, err := h.Events.Create(r.Context(), caller(r), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEventDTO(baseURL(r), *e))
}

// ReplaceEvent handles PUT: every field must be present.
func (h *Handler) ReplaceEvent(w http.ResponseWriter, r *http.Request) {
	h.updateEvent(w, r, true)
}

// PatchEvent handles PATCH: absent fields keep their stored value.
func (h *Handler) PatchEvent(w http.ResponseWriter, r *http.Request) {
	h.updateEvent(w, r, false)
}

func (h *Handler) updateEvent(w http.ResponseWriter, r *http.Request, full bool) {
	var req EventRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if full {
		for field, v := range map[string]*string{"title": req.Title, "start_date": req.StartDate, "end_date": req.EndDate} {
			if v == nil {
				h.writeServiceError(w, r, tracking.NewValidationError(field, "this field is required"))
				return
			}
		}
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	in := event.UpdateInput{Title: req.Title, Description: req.Description, StartDate: start, EndDate: end}
	if full && in.Description == nil {
		empty := ""
		in.Description = &empty
	}
	e, err := h.Events.Update(r.Context(), caller(r), tracking.EventID(chi.URLParam(r, "id")), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventDTO(baseURL(r), *e))
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.Events.Delete(r.Context(), caller(r), tracking.EventID(chi.URLParam(r, "id"))); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// VACATION ENDPOINTS
// =============================================================================

func (h *Handler) ListVacations(w http.ResponseWriter, r *http.Request) {
	me := caller(r)
	vacations, err := h.Vacations.ListOwn(r.Context(), me)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	base := baseURL(r)
	dtos := make([]VacationDTO, len(vacations))
	for i, v := range vacations {
		dtos[i] = toVacationDTO(base, me, v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RequestVacation checks the yearly allowance and event overlaps before
// storing the request.
func (h *Handler) RequestVacation(w http.ResponseWriter, r *http.Request) {
	var req VacationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	in := vacation.RequestInput{BriefDescription: deref(req.BriefDescription)}
	if start != nil {
		in.StartDate = *start
	}
	if end != nil {
		in.EndDate = *end
	}
	me := caller(r)
	v, err := h.Vacations.Request(r.Context(), me, in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toVacationDTO(baseURL(r), me, *v))
}

func (h *Handler) GetVacation(w http.ResponseWriter, r *http.Request) {
	me := caller(r)
	v, err := h.Vacations.Get(r.Context(), me, tracking.VacationID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toVacationDTO(baseURL(r), me, *v))
}

// UpdateVacation edits the description. Dates may be echoed back but not
// changed.
func (h *Handler) UpdateVacation(w http.ResponseWriter, r *http.Request) {
	var req VacationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	me := caller(r)
	v, err := h.Vacations.Update(r.Context(), me, tracking.VacationID(chi.URLParam(r, "id")), vacation.UpdateInput{
		BriefDescription: req.BriefDescription,
		StartDate:        start,
		EndDate:          end,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toVacationDTO(baseURL(r), me, *v))
}

func (h *Handler) CancelVacation(w http.ResponseWriter, r *http.Request) {
	if err := h.Vacations.Cancel(r.Context(), caller(r), tracking.VacationID(chi.URLParam(r, "id"))); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetVacationBalance(w http.ResponseWriter, r *http.Request) {
	b, err := h.Vacations.Balance(r.Context(), caller(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(b))
}

// =============================================================================
// WORK TIME ENDPOINTS
// =============================================================================

func (h *Handler) ListWorkSessions(w http.ResponseWriter, r *http.Request) {
	me := caller(r)
	sessions, err := h.WorkTime.List(r.Context(), me)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	base := baseURL(r)
	dtos := make([]WorkSessionDTO, len(sessions))
	for i, ws := range sessions {
		dtos[i] = toWorkSessionDTO(base, me, ws)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetWorkSession(w http.ResponseWriter, r *http.Request) {
	me := caller(r)
	ws, err := h.WorkTime.Get(r.Context(), me, tracking.WorkSessionID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkSessionDTO(baseURL(r), me, *ws))
}

func (h *Handler) WorkStatus(w http.ResponseWriter, r *http.Request) {
	me := caller(r)
	st, err := h.WorkTime.Status(r.Context(), me)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	dto := StatusDTO{State: st.State}
	if st.Session != nil {
		s := toWorkSessionDTO(baseURL(r), me, *st.Session)
		dto.Session = &s
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	me := caller(r)
	ws, err := h.WorkTime.CheckIn(r.Context(), me)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toWorkSessionDTO(baseURL(r), me, *ws))
}

func (h *Handler) CheckOut(w http.ResponseWriter, r *http.Request) {
	me := caller(r)
	ws, err := h.WorkTime.CheckOut(r.Context(), me)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkSessionDTO(baseURL(r), me, *ws))
}

// =============================================================================
// STATISTICS ENDPOINTS
// =============================================================================

// ListUsersWithStats lists members with links to their statistics.
func (h *Handler) ListUsersWithStats(w http.ResponseWriter, r *http.Request) {
	users, err := h.Stats.UsersWithAvailableStats(r.Context(), caller(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	base := baseURL(r)
	dtos := make([]UserStatsDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserStatsDTO(base, u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetUserStats(w http.ResponseWriter, r *http.Request) {
	u, err := h.Stats.Member(r.Context(), caller(r), tracking.UserID(chi.URLParam(r, "user_id")))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserStatsDTO(baseURL(r), *u))
}

func (h *Handler) GetPeriodHours(w http.ResponseWriter, r *http.Request) {
	total, err := h.Stats.PeriodHours(r.Context(), caller(r),
		tracking.UserID(chi.URLParam(r, "user_id")), chi.URLParam(r, "period"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodHoursDTO(total))
}

func (h *Handler) GetArrivalAndLeaving(w http.ResponseWriter, r *http.Request) {
	avg, err := h.Stats.ArrivalAndLeavingAverages(r.Context(), caller(r), tracking.UserID(chi.URLParam(r, "user_id")))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toArrivalLeavingDTO(avg))
}

func (h *Handler) GetTeamWorkToLeave(w http.ResponseWriter, r *http.Request) {
	ratio, err := h.Stats.TeamWorkToLeaveRatio(r.Context(), caller(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTeamRatioDTO(ratio))
}

// =============================================================================
// HELPERS
// =============================================================================

const maxBodyBytes = 1 << 20

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return tracking.NewValidationError("", fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

// parseDate parses an optional YYYY-MM-DD field.
func parseDate(field string, s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	d, err := clock.ParseDate(*s)
	if err != nil {
		return nil, tracking.NewValidationError(field, "date has wrong format, use YYYY-MM-DD")
	}
	return &d, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
