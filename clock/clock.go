// Package clock holds the time primitives of the tracker: a swappable Clock,
// calendar dates, closed date ranges and time-of-day values.
package clock

import (
	"sync"
	"time"
)

// =============================================================================
// CLOCK - Source of "now" for every business rule
// =============================================================================

// Clock returns the current instant in the service's configured location.
// Business code never calls time.Now directly.
type Clock interface {
	Now() time.Time
}

// System is the wall clock, reported in Location.
type System struct {
	Location *time.Location
}

// NewSystem returns a wall clock for the given location (UTC when nil).
func NewSystem(loc *time.Location) System {
	if loc == nil {
		loc = time.UTC
	}
	return System{Location: loc}
}

func (s System) Now() time.Time {
	if s.Location == nil {
		return time.Now().UTC()
	}
	return time.Now().In(s.Location)
}

// Mock is a manually driven clock for tests.
type Mock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMock returns a Mock frozen at now.
func NewMock(now time.Time) *Mock {
	return &Mock{now: now}
}

func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to t.
func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Advance moves the clock forward by d.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// =============================================================================
// DERIVED INSTANTS
// =============================================================================

// StartOfDay truncates t to midnight in t's own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// TodayDate is the clock's current calendar date.
func TodayDate(c Clock) time.Time {
	return DateOf(c.Now())
}
