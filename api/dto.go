/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model in tracking/ from the wire contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

FORMATS:
  Dates are "YYYY-MM-DD". Instants are RFC 3339 in UTC. Times of day are
  "HH:MM:SS". Hours are decimals with two fractional digits.

VALIDATION:
  Requests carry dates as strings and pointers so handlers can tell an
  absent field from an empty one. Business validation lives in the
  services, not here.

SEE ALSO:
  - handlers.go: Uses these types
  - errors.go: ErrorResponse mapping
*/
package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/time-tracking/clock"
	"github.com/warp/time-tracking/statistics"
	"github.com/warp/time-tracking/tracking"
	"github.com/warp/time-tracking/vacation"
)

// =============================================================================
// USERS
// =============================================================================

// UserDTO represents the authenticated user.
type UserDTO struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	IsStaff   bool   `json:"is_staff"`
	CreatedAt string `json:"created_at"`
}

// =============================================================================
// EVENTS
// =============================================================================

// EventDTO represents an event in API responses.
type EventDTO struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	CreatedBy   string `json:"created_by"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// readOnlyFields accepts the server-assigned keys of a response body so a
// client can send back what it read. Their values are ignored.
type readOnlyFields struct {
	ID        any `json:"id,omitempty"`
	URL       any `json:"url,omitempty"`
	Owner     any `json:"owner,omitempty"`
	Days      any `json:"days,omitempty"`
	CreatedBy any `json:"created_by,omitempty"`
	CreatedAt any `json:"created_at,omitempty"`
	UpdatedAt any `json:"updated_at,omitempty"`
}

// EventRequest is the body of create, replace and partial update calls.
// Absent fields are nil.
type EventRequest struct {
	readOnlyFields
	Title       *string `json:"title"`
	Description *string `json:"description"`
	StartDate   *string `json:"start_date"`
	EndDate     *string `json:"end_date"`
}

// =============================================================================
// VACATIONS
// =============================================================================

// VacationDTO represents a vacation in API responses.
type VacationDTO struct {
	ID               string `json:"id"`
	URL              string `json:"url"`
	BriefDescription string `json:"brief_description"`
	StartDate        string `json:"start_date"`
	EndDate          string `json:"end_date"`
	Days             int    `json:"days"`
	Owner            string `json:"owner"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
}

// VacationRequest is the body of vacation create and update calls.
type VacationRequest struct {
	readOnlyFields
	BriefDescription *string `json:"brief_description"`
	StartDate        *string `json:"start_date"`
	EndDate          *string `json:"end_date"`
}

// BalanceDTO is the caller's vacation allowance for the current year.
type BalanceDTO struct {
	Year      int `json:"year"`
	Limit     int `json:"limit"`
	Used      int `json:"used"`
	Remaining int `json:"remaining"`
}

// =============================================================================
// WORK TIME
// =============================================================================

// WorkSessionDTO represents one check-in/check-out pair.
type WorkSessionDTO struct {
	ID            string  `json:"id"`
	URL           string  `json:"url"`
	StartDatetime string  `json:"start_datetime"`
	EndDatetime   *string `json:"end_datetime"`
	Owner         string  `json:"owner"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

// StatusDTO reports whether the caller is checked in.
type StatusDTO struct {
	State   tracking.CheckState `json:"state"`
	Session *WorkSessionDTO     `json:"session"`
}

// =============================================================================
// STATISTICS
// =============================================================================

// PeriodHoursDTO is a member's worked hours over a period.
type PeriodHoursDTO struct {
	UserID            string          `json:"user_id"`
	Period            string          `json:"period"`
	TotalWorkingHours decimal.Decimal `json:"total_working_hours"`
}

// ArrivalLeavingDTO holds average arrival and leaving times of day.
type ArrivalLeavingDTO struct {
	Username           string           `json:"username"`
	AverageArrivalTime *clock.TimeOfDay `json:"average_arrival_time"`
	AverageLeavingTime *clock.TimeOfDay `json:"average_leaving_time"`
}

// TeamRatioDTO compares team working hours to leaving hours.
type TeamRatioDTO struct {
	WorkingHours                    decimal.Decimal  `json:"working_hours"`
	LeavingHours                    decimal.Decimal  `json:"leaving_hours"`
	PercentageOfWorkingOnLeavingTime *decimal.Decimal `json:"percentage_of_working_on_leaving_time"`
}

// UserStatsDTO lists where a member's statistics can be fetched.
type UserStatsDTO struct {
	ID                         string            `json:"id"`
	URL                        string            `json:"url"`
	Username                   string            `json:"username"`
	TotalWorkingHours          map[string]string `json:"total_working_hours"`
	WorkingHoursToLeavingHours string            `json:"working_hours_to_leaving_hours"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`

	// Quota breaches
	RemainingDays *int `json:"remaining_days,omitempty"`

	// Vacation/event overlaps
	EventIDs   []string `json:"event_ids,omitempty"`
	EventsURLs []string `json:"events_urls,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func formatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toUserDTO(u tracking.User) UserDTO {
	return UserDTO{
		ID:        string(u.ID),
		Username:  u.Username,
		IsStaff:   u.IsStaff,
		CreatedAt: formatInstant(u.CreatedAt),
	}
}

func toEventDTO(base string, e tracking.Event) EventDTO {
	return EventDTO{
		ID:          string(e.ID),
		URL:         eventURL(base, e.ID),
		Title:       e.Title,
		Description: e.Description,
		StartDate:   clock.FormatDate(e.StartDate),
		EndDate:     clock.FormatDate(e.EndDate),
		CreatedBy:   string(e.CreatedBy),
		CreatedAt:   formatInstant(e.CreatedAt),
		UpdatedAt:   formatInstant(e.UpdatedAt),
	}
}

func toVacationDTO(base string, owner tracking.User, v tracking.Vacation) VacationDTO {
	return VacationDTO{
		ID:               string(v.ID),
		URL:              fmt.Sprintf("%s/api/vacations/%s", base, v.ID),
		BriefDescription: v.BriefDescription,
		StartDate:        clock.FormatDate(v.StartDate),
		EndDate:          clock.FormatDate(v.EndDate),
		Days:             v.Days(),
		Owner:            owner.Username,
		CreatedAt:        formatInstant(v.CreatedAt),
		UpdatedAt:        formatInstant(v.UpdatedAt),
	}
}

func toBalanceDTO(b vacation.Balance) BalanceDTO {
	return BalanceDTO{Year: b.Year, Limit: b.Limit, Used: b.Used, Remaining: b.Remaining}
}

func toWorkSessionDTO(base string, owner tracking.User, ws tracking.WorkSession) WorkSessionDTO {
	dto := WorkSessionDTO{
		ID:            string(ws.ID),
		URL:           fmt.Sprintf("%s/api/work-time/%s", base, ws.ID),
		StartDatetime: formatInstant(ws.StartedAt),
		Owner:         owner.Username,
		CreatedAt:     formatInstant(ws.CreatedAt),
		UpdatedAt:     formatInstant(ws.UpdatedAt),
	}
	if ws.EndedAt != nil {
		end := formatInstant(*ws.EndedAt)
		dto.EndDatetime = &end
	}
	return dto
}

func toPeriodHoursDTO(p statistics.PeriodTotal) PeriodHoursDTO {
	return PeriodHoursDTO{UserID: string(p.UserID), Period: p.Period, TotalWorkingHours: p.Hours()}
}

func toArrivalLeavingDTO(a statistics.Averages) ArrivalLeavingDTO {
	return ArrivalLeavingDTO{
		Username:           a.Username,
		AverageArrivalTime: a.Arrival,
		AverageLeavingTime: a.Leaving,
	}
}

func toTeamRatioDTO(r statistics.TeamRatio) TeamRatioDTO {
	dto := TeamRatioDTO{
		WorkingHours: statistics.HoursOf(r.Working),
		LeavingHours: statistics.HoursOf(r.Leaving),
	}
	if p := r.Percentage(); p != nil {
		rounded := p.Round(2)
		dto.PercentageOfWorkingOnLeavingTime = &rounded
	}
	return dto
}

func toUserStatsDTO(base string, u tracking.User) UserStatsDTO {
	periods := make(map[string]string, len(statistics.Periods))
	for _, p := range statistics.Periods {
		periods[p.Name] = fmt.Sprintf("%s/api/work-time-statistic/%s/%s", base, p.Name, u.ID)
	}
	return UserStatsDTO{
		ID:                         string(u.ID),
		URL:                        fmt.Sprintf("%s/api/work-time-statistics/%s", base, u.ID),
		Username:                   u.Username,
		TotalWorkingHours:          periods,
		WorkingHoursToLeavingHours: fmt.Sprintf("%s/api/work-time-statistic/arrive-and-leave-times/%s", base, u.ID),
	}
}

func eventURL(base string, id tracking.EventID) string {
	return fmt.Sprintf("%s/api/events/%s", base, id)
}
