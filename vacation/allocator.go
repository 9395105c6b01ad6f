package vacation

import (
	"time"

	"github.com/warp/time-tracking/clock"
	"github.com/warp/time-tracking/tracking"
)

const (
	// QuotaDays is the yearly allowance per member.
	QuotaDays = 16
	// MaxRequestDays bounds a single request.
	MaxRequestDays = 16
	// MaxDescriptionLength bounds BriefDescription, in characters.
	MaxDescriptionLength = 120
)

// Balance is a member's allowance for one calendar year.
type Balance struct {
	Year      int
	Limit     int
	Used      int
	Remaining int
}

// QuotaWindowStart is the first day whose vacations count against the
// allowance of the year containing today.
func QuotaWindowStart(today time.Time) time.Time {
	return clock.StartOfYear(today.Year())
}

// UsedDays sums the inclusive day spans of vacations.
func UsedDays(vacations []tracking.Vacation) int {
	used := 0
	for _, v := range vacations {
		used += v.Days()
	}
	return used
}

// NewBalance derives the balance from the days already used.
func NewBalance(year, used int) Balance {
	remaining := QuotaDays - used
	if remaining < 0 {
		remaining = 0
	}
	return Balance{Year: year, Limit: QuotaDays, Used: used, Remaining: remaining}
}

// CheckQuota decides whether requested more days fit next to used ones.
// A request that exactly exhausts the allowance is accepted.
func CheckQuota(used, requested int) error {
	if used >= QuotaDays {
		return &tracking.QuotaExceededError{Limit: QuotaDays, Used: used, Requested: requested, Remaining: 0}
	}
	remaining := QuotaDays - used
	if remaining-requested < 0 {
		return &tracking.QuotaExceededError{Limit: QuotaDays, Used: used, Requested: requested, Remaining: remaining}
	}
	return nil
}

// ValidateRange applies the per-request rules that need no stored state.
func ValidateRange(r clock.Range, today time.Time) error {
	if !r.Valid() {
		return tracking.NewValidationError("end_date", "end_date must not occur before start_date")
	}
	if r.Days() > MaxRequestDays {
		return tracking.NewValidationError("end_date", "a vacation can't be longer than 16 days")
	}
	if r.Start.Before(today) {
		return tracking.NewValidationError("start_date", "start_date can not be in the past")
	}
	if r.End.Before(today) {
		return tracking.NewValidationError("end_date", "end_date can not be in the past")
	}
	return nil
}
