/*
store.go - Persistence contract for users, events, vacations and work sessions

PURPOSE:
  Defines the interface between the business services and the database.
  Services never build queries themselves: they read and write through
  these interfaces and perform rule checks in Go.

KEY INTERFACES:
  UserStore:        Accounts and the staff flag
  EventStore:       Staff calendar events and range-intersection lookups
  VacationStore:    Vacation requests
  WorkSessionStore: Check-in/check-out sessions
  TxStore:          Store + per-owner transactional section

ATOMIC CHECK-AND-WRITE:
  Quota checks and check-in both read then write. WithOwnerTx serializes
  all such sections for a given owner and runs them in one database
  transaction, so two concurrent requests for the same user cannot both
  pass a check. Stores additionally enforce "at most one open session per
  owner" with a unique index and report a violation as ErrAlreadyCheckedIn.

NOT FOUND:
  Get/Update/Delete/Close of an unknown id return an error matching
  ErrNotFound. GetOpenWorkSession returns ErrNotCheckedIn instead.

IMPLEMENTATIONS:
  - tracking/store/memory.go: In-memory for tests and local runs
  - store/sqlite/sqlite.go:   SQLite (default)
  - store/postgres/postgres.go: PostgreSQL

SEE ALSO:
  - errors.go: Error taxonomy
*/
package tracking

import (
	"context"
	"time"

	"github.com/warp/time-tracking/clock"
)

// =============================================================================
// FILTERS
// =============================================================================

// UserFilter narrows ListUsers. A nil IsStaff returns everyone.
type UserFilter struct {
	IsStaff *bool
}

// VacationFilter narrows ListVacations. Zero values mean "no constraint".
type VacationFilter struct {
	OwnerID UserID
	// StartFrom keeps vacations with StartDate >= StartFrom.
	StartFrom *time.Time
}

// WorkSessionFilter narrows ListWorkSessions. Zero values mean "no constraint".
type WorkSessionFilter struct {
	OwnerID UserID
	// StartedFrom / StartedTo bound StartedAt inclusively.
	StartedFrom *time.Time
	StartedTo   *time.Time
	ClosedOnly  bool
	// NonStaffOnly keeps only sessions owned by a known non-staff user.
	NonStaffOnly bool
}

// =============================================================================
// STORE INTERFACES
// =============================================================================

type UserStore interface {
	// SaveUser inserts or replaces a user. Usernames are unique.
	SaveUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id UserID) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	// ListUsers returns users ordered by username.
	ListUsers(ctx context.Context, filter UserFilter) ([]User, error)
}

type EventStore interface {
	CreateEvent(ctx context.Context, e Event) error
	UpdateEvent(ctx context.Context, e Event) error
	GetEvent(ctx context.Context, id EventID) (*Event, error)
	DeleteEvent(ctx context.Context, id EventID) error
	// ListEvents returns all events, newest start date first.
	ListEvents(ctx context.Context) ([]Event, error)
	// FindOverlappingEvents returns events with start <= r.End and end >= r.Start,
	// ordered by start date.
	FindOverlappingEvents(ctx context.Context, r clock.Range) ([]Event, error)
}

type VacationStore interface {
	CreateVacation(ctx context.Context, v Vacation) error
	UpdateVacation(ctx context.Context, v Vacation) error
	GetVacation(ctx context.Context, id VacationID) (*Vacation, error)
	DeleteVacation(ctx context.Context, id VacationID) error
	// ListVacations returns matching vacations, newest start date first.
	ListVacations(ctx context.Context, filter VacationFilter) ([]Vacation, error)
}

type WorkSessionStore interface {
	// CreateWorkSession returns ErrAlreadyCheckedIn when ws is open and the
	// owner already has an open session.
	CreateWorkSession(ctx context.Context, ws WorkSession) error
	// CloseWorkSession sets EndedAt on an open session.
	CloseWorkSession(ctx context.Context, id WorkSessionID, endedAt time.Time) error
	GetWorkSession(ctx context.Context, id WorkSessionID) (*WorkSession, error)
	// GetOpenWorkSession returns ErrNotCheckedIn when the owner has no open session.
	GetOpenWorkSession(ctx context.Context, owner UserID) (*WorkSession, error)
	// ListWorkSessions returns matching sessions, newest start first.
	ListWorkSessions(ctx context.Context, filter WorkSessionFilter) ([]WorkSession, error)
}

// Store combines every persistence concern.
type Store interface {
	UserStore
	EventStore
	VacationStore
	WorkSessionStore
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic check-and-write sequences
// =============================================================================

// TxStore wraps Store with a per-owner transactional section.
type TxStore interface {
	Store

	// WithOwnerTx executes fn within a transaction holding the owner's write
	// lock. If fn returns an error the transaction is rolled back.
	WithOwnerTx(ctx context.Context, owner UserID, fn func(Store) error) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error
}

// Bool returns a pointer to b, for filters.
func Bool(b bool) *bool { return &b }

// Time returns a pointer to t, for filters.
func Time(t time.Time) *time.Time { return &t }
