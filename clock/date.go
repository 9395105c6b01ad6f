package clock

import (
	"fmt"
	"time"
)

// DateLayout is the wire and storage format of calendar dates.
const DateLayout = "2006-01-02"

// =============================================================================
// DATES - Calendar days carried as time.Time at 00:00 UTC
// =============================================================================

// NewDate builds a calendar date.
func NewDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf returns the calendar date of t as seen in t's location.
func DateOf(t time.Time) time.Time {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}

// FormatDate renders a date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// StartOfYear is January 1st of year.
func StartOfYear(year int) time.Time { return NewDate(year, time.January, 1) }


// DaysBetween counts whole days from one date to another (negative when to < from).
func DaysBetween(from, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)).Hours() / 24)
}

// =============================================================================
// RANGE - Closed interval of calendar dates
// =============================================================================

// Range is the closed date interval [Start, End]. Both bounds are days
// that belong to the range.
type Range struct {
	Start time.Time
	End   time.Time
}

// NewRange normalizes both bounds to dates.
func NewRange(start, end time.Time) Range {
	return Range{Start: DateOf(start), End: DateOf(end)}
}

// Valid reports whether Start <= End.
func (r Range) Valid() bool {
	return !r.End.Before(r.Start)
}

// Days is the inclusive day count: a one-day range has Days() == 1.
func (r Range) Days() int {
	return DaysBetween(r.Start, r.End) + 1
}

// Overlaps uses closed bounds: ranges that share a single boundary day
// overlap, adjacent ranges do not.
func (r Range) Overlaps(other Range) bool {
	return !r.Start.After(other.End) && !r.End.Before(other.Start)
}

func (r Range) String() string {
	return "[" + FormatDate(r.Start) + ", " + FormatDate(r.End) + "]"
}
