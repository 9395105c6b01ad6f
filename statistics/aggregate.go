/*
aggregate.go - Pure aggregations over work sessions

PURPOSE:
  Every statistic is computed in Go from a bulk fetch of sessions. Nothing
  here touches storage, caches or clocks; callers pass "now" and the
  location that defines calendar days.

PERIOD TOTALS:
  window = [today - N days, today], today being midnight of the current
  day. Only closed sessions count. Sessions starting later today fall
  outside the window.

ARRIVAL / LEAVING:
  Per calendar day of the session start: earliest start, latest end.
  The per-day extremes are averaged as seconds since midnight. Open
  sessions contribute to arrivals only.

TEAM RATIO:
  Per (member, day) bucket of closed sessions:
    working += sum(durations)
    leaving += (max(end) - min(start)) - sum(durations)
  percentage = working / leaving * 100, undefined when leaving == 0.
*/
package statistics

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/time-tracking/clock"
	"github.com/warp/time-tracking/tracking"
)

// =============================================================================
// PERIODS
// =============================================================================

// Period is a named look-back window.
type Period struct {
	Name string
	Days int
}

var (
	Week    = Period{Name: "week", Days: 7}
	Quarter = Period{Name: "quarter", Days: 91}
	Year    = Period{Name: "year", Days: 356}
)

// Periods lists the supported periods.
var Periods = []Period{Week, Quarter, Year}

// ParsePeriod resolves a period name, ignoring case.
func ParsePeriod(name string) (Period, error) {
	lower := strings.ToLower(name)
	for _, p := range Periods {
		if p.Name == lower {
			return p, nil
		}
	}
	return Period{}, tracking.NewValidationError("period", fmt.Sprintf("unknown period %q (use week, quarter or year)", name))
}

// Window returns the inclusive start bounds [from, to] for sessions counted
// in p as of now. now's location defines midnight.
func (p Period) Window(now time.Time) (from, to time.Time) {
	to = clock.StartOfDay(now)
	return to.AddDate(0, 0, -p.Days), to
}

// =============================================================================
// TOTALS
// =============================================================================

// TotalDuration sums the durations of closed sessions.
func TotalDuration(sessions []tracking.WorkSession) time.Duration {
	var total time.Duration
	for _, ws := range sessions {
		total += ws.Duration()
	}
	return total
}

// HoursOf converts d to hours rounded to two decimals.
func HoursOf(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(int64(d / time.Second)).Div(decimal.NewFromInt(3600)).Round(2)
}

// =============================================================================
// ARRIVAL AND LEAVING
// =============================================================================

type dayExtremes struct {
	firstStart time.Time
	lastEnd    *time.Time
}

// ArrivalAndLeaving averages the per-day earliest start and latest end
// of sessions, bucketing days in loc. Either result is nil when there is
// nothing to average.
func ArrivalAndLeaving(sessions []tracking.WorkSession, loc *time.Location) (arrival, leaving *clock.TimeOfDay) {
	days := make(map[time.Time]*dayExtremes)
	for _, ws := range sessions {
		start := ws.StartedAt.In(loc)
		day := clock.DateOf(start)
		d, ok := days[day]
		if !ok {
			d = &dayExtremes{firstStart: start}
			days[day] = d
		} else if start.Before(d.firstStart) {
			d.firstStart = start
		}
		if ws.EndedAt != nil {
			end := ws.EndedAt.In(loc)
			if d.lastEnd == nil || end.After(*d.lastEnd) {
				d.lastEnd = &end
			}
		}
	}

	var starts, ends []clock.TimeOfDay
	for _, d := range days {
		starts = append(starts, clock.TimeOfDayOf(d.firstStart))
		if d.lastEnd != nil {
			ends = append(ends, clock.TimeOfDayOf(*d.lastEnd))
		}
	}
	if avg, ok := clock.AverageTimeOfDay(starts); ok {
		arrival = &avg
	}
	if avg, ok := clock.AverageTimeOfDay(ends); ok {
		leaving = &avg
	}
	return arrival, leaving
}

// =============================================================================
// TEAM RATIO
// =============================================================================

// Ratio is the team's working time against the idle time between sessions.
type Ratio struct {
	Working time.Duration
	Leaving time.Duration
}

// Percentage is Working / Leaving * 100, or nil when Leaving is zero.
func (r Ratio) Percentage() *decimal.Decimal {
	if r.Leaving == 0 {
		return nil
	}
	p := decimal.NewFromInt(int64(r.Working)).
		Div(decimal.NewFromInt(int64(r.Leaving))).
		Mul(decimal.NewFromInt(100))
	return &p
}

type bucketKey struct {
	owner tracking.UserID
	day   time.Time
}

type bucket struct {
	first, last time.Time
	worked      time.Duration
}

// WorkToLeave buckets closed sessions per owner and day (in loc) and
// accumulates working and leaving time.
func WorkToLeave(sessions []tracking.WorkSession, loc *time.Location) Ratio {
	buckets := make(map[bucketKey]*bucket)
	for _, ws := range sessions {
		if ws.EndedAt == nil {
			continue
		}
		k := bucketKey{owner: ws.OwnerID, day: clock.DateOf(ws.StartedAt.In(loc))}
		b, ok := buckets[k]
		if !ok {
			b = &bucket{first: ws.StartedAt, last: *ws.EndedAt}
			buckets[k] = b
		}
		if ws.StartedAt.Before(b.first) {
			b.first = ws.StartedAt
		}
		if ws.EndedAt.After(b.last) {
			b.last = *ws.EndedAt
		}
		b.worked += ws.Duration()
	}

	var r Ratio
	for _, b := range buckets {
		r.Working += b.worked
		r.Leaving += b.last.Sub(b.first) - b.worked
	}
	return r
}
