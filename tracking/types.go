// Package tracking defines the data model shared by every component of the
// time tracker: users, staff events, vacations and work sessions, together
// with the error taxonomy and the persistence contract.
package tracking

import (
	"time"

	"github.com/google/uuid"
	"github.com/warp/time-tracking/clock"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	UserID        string
	EventID       string
	VacationID    string
	WorkSessionID string
)

// NewID returns a fresh random identifier.
func NewID() string {
	return uuid.NewString()
}

// =============================================================================
// USER
// =============================================================================

// User is an account. Staff members manage events and read statistics;
// everyone else owns vacations and work sessions.
type User struct {
	ID        UserID
	Username  string
	IsStaff   bool
	CreatedAt time.Time
}

// =============================================================================
// EVENT - Staff-created calendar entry
// =============================================================================

// Event spans whole days. StartDate <= EndDate always holds for stored events.
type Event struct {
	ID          EventID
	Title       string
	Description string
	StartDate   time.Time
	EndDate     time.Time
	CreatedBy   UserID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Range returns the closed date range covered by the event.
func (e Event) Range() clock.Range {
	return clock.NewRange(e.StartDate, e.EndDate)
}

// =============================================================================
// VACATION
// =============================================================================

// Vacation is a leave request owned by a non-staff user. Only
// BriefDescription may change after creation.
type Vacation struct {
	ID               VacationID
	BriefDescription string
	StartDate        time.Time
	EndDate          time.Time
	OwnerID          UserID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Range returns the closed date range covered by the vacation.
func (v Vacation) Range() clock.Range {
	return clock.NewRange(v.StartDate, v.EndDate)
}

// Days is the inclusive day count used for quota arithmetic.
func (v Vacation) Days() int {
	return v.Range().Days()
}

// =============================================================================
// WORK SESSION
// =============================================================================

// WorkSession is one check-in/check-out pair. EndedAt is nil while the
// owner is checked in.
type WorkSession struct {
	ID        WorkSessionID
	OwnerID   UserID
	StartedAt time.Time
	EndedAt   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsOpen reports whether the session has not been checked out yet.
func (ws WorkSession) IsOpen() bool {
	return ws.EndedAt == nil
}

// Duration is end - start for closed sessions and zero for open ones.
func (ws WorkSession) Duration() time.Duration {
	if ws.EndedAt == nil {
		return 0
	}
	return ws.EndedAt.Sub(ws.StartedAt)
}

// CheckState is the per-user state of the check-in machine.
type CheckState string

const (
	StateCheckedOut CheckState = "CHECKED_OUT"
	StateCheckedIn  CheckState = "CHECKED_IN"
)
