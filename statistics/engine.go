// Package statistics aggregates work sessions into period totals, arrival
// and leaving averages and the team work-to-leave ratio. Results are cached
// for a bounded time; a stale value within the TTL is expected.
package statistics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/time-tracking/cache"
	"github.com/warp/time-tracking/clock"
	"github.com/warp/time-tracking/tracking"
)

const (
	DefaultUserTTL = time.Hour
	DefaultTeamTTL = 24 * time.Hour

	teamRatioKey = "stats:team:work-to-leave"
)

// Options tune the engine. Zero values fall back to the defaults.
type Options struct {
	Location *time.Location
	UserTTL  time.Duration
	TeamTTL  time.Duration
}

// Engine serves statistics to staff callers.
type Engine struct {
	store   tracking.Store
	cache   cache.Cache
	clock   clock.Clock
	loc     *time.Location
	userTTL time.Duration
	teamTTL time.Duration
	log     *logrus.Entry
}

func NewEngine(store tracking.Store, c cache.Cache, clk clock.Clock, log *logrus.Entry, opts Options) *Engine {
	e := &Engine{
		store:   store,
		cache:   c,
		clock:   clk,
		loc:     opts.Location,
		userTTL: opts.UserTTL,
		teamTTL: opts.TeamTTL,
		log:     log.WithField("component", "statistics"),
	}
	if e.loc == nil {
		e.loc = time.UTC
	}
	if e.userTTL <= 0 {
		e.userTTL = DefaultUserTTL
	}
	if e.teamTTL <= 0 {
		e.teamTTL = DefaultTeamTTL
	}
	return e
}

// =============================================================================
// RESULTS
// =============================================================================

// PeriodTotal is the worked time of one member over one period.
type PeriodTotal struct {
	UserID tracking.UserID `json:"user_id"`
	Period string          `json:"period"`
	Total  time.Duration   `json:"total"`
}

// Hours is Total in hours, two decimals.
func (p PeriodTotal) Hours() decimal.Decimal { return HoursOf(p.Total) }

// Averages holds a member's average arrival and leaving times.
type Averages struct {
	UserID   tracking.UserID  `json:"user_id"`
	Username string           `json:"username"`
	Arrival  *clock.TimeOfDay `json:"arrival"`
	Leaving  *clock.TimeOfDay `json:"leaving"`
}

// TeamRatio is the cached form of Ratio.
type TeamRatio struct {
	Working time.Duration `json:"working"`
	Leaving time.Duration `json:"leaving"`
}

// Percentage is Working / Leaving * 100, nil when Leaving is zero.
func (t TeamRatio) Percentage() *decimal.Decimal {
	return Ratio{Working: t.Working, Leaving: t.Leaving}.Percentage()
}

// =============================================================================
// OPERATIONS
// =============================================================================

// PeriodHours returns the worked time of a member over a named period.
func (e *Engine) PeriodHours(ctx context.Context, caller tracking.User, userID tracking.UserID, periodName string) (PeriodTotal, error) {
	if !caller.IsStaff {
		return PeriodTotal{}, tracking.ErrNotAuthorized
	}
	period, err := ParsePeriod(periodName)
	if err != nil {
		return PeriodTotal{}, err
	}
	if _, err := e.member(ctx, userID); err != nil {
		return PeriodTotal{}, err
	}

	key := fmt.Sprintf("stats:period:%s:user:%s", period.Name, userID)
	return cache.GetOrSet(ctx, e.cache, e.log, key, e.userTTL, func(ctx context.Context) (PeriodTotal, error) {
		from, to := period.Window(e.clock.Now().In(e.loc))
		sessions, err := e.store.ListWorkSessions(ctx, tracking.WorkSessionFilter{
			OwnerID:     userID,
			StartedFrom: &from,
			StartedTo:   &to,
			ClosedOnly:  true,
		})
		if err != nil {
			return PeriodTotal{}, err
		}
		return PeriodTotal{UserID: userID, Period: period.Name, Total: TotalDuration(sessions)}, nil
	})
}

// ArrivalAndLeavingAverages returns a member's average arrival and leaving
// times of day.
func (e *Engine) ArrivalAndLeavingAverages(ctx context.Context, caller tracking.User, userID tracking.UserID) (Averages, error) {
	if !caller.IsStaff {
		return Averages{}, tracking.ErrNotAuthorized
	}
	user, err := e.member(ctx, userID)
	if err != nil {
		return Averages{}, err
	}

	key := fmt.Sprintf("stats:arrival-leaving:user:%s", userID)
	return cache.GetOrSet(ctx, e.cache, e.log, key, e.userTTL, func(ctx context.Context) (Averages, error) {
		sessions, err := e.store.ListWorkSessions(ctx, tracking.WorkSessionFilter{OwnerID: userID})
		if err != nil {
			return Averages{}, err
		}
		arrival, leaving := ArrivalAndLeaving(sessions, e.loc)
		return Averages{UserID: userID, Username: user.Username, Arrival: arrival, Leaving: leaving}, nil
	})
}

// TeamWorkToLeaveRatio compares the team's working time to the idle time
// between sessions of the same day.
func (e *Engine) TeamWorkToLeaveRatio(ctx context.Context, caller tracking.User) (TeamRatio, error) {
	if !caller.IsStaff {
		return TeamRatio{}, tracking.ErrNotAuthorized
	}
	return cache.GetOrSet(ctx, e.cache, e.log, teamRatioKey, e.teamTTL, e.computeTeamRatio)
}

// RefreshTeamRatio recomputes the team ratio and overwrites the cached
// value, so readers rarely pay for the full scan.
func (e *Engine) RefreshTeamRatio(ctx context.Context) (TeamRatio, error) {
	r, err := e.computeTeamRatio(ctx)
	if err != nil {
		return TeamRatio{}, err
	}
	raw, err := json.Marshal(r)
	if err != nil {
		return TeamRatio{}, err
	}
	if err := e.cache.Set(ctx, teamRatioKey, raw, e.teamTTL); err != nil {
		return TeamRatio{}, fmt.Errorf("store team ratio: %w", err)
	}
	return r, nil
}

func (e *Engine) computeTeamRatio(ctx context.Context) (TeamRatio, error) {
	sessions, err := e.store.ListWorkSessions(ctx, tracking.WorkSessionFilter{
		ClosedOnly:   true,
		NonStaffOnly: true,
	})
	if err != nil {
		return TeamRatio{}, err
	}
	r := WorkToLeave(sessions, e.loc)
	return TeamRatio{Working: r.Working, Leaving: r.Leaving}, nil
}

// UsersWithAvailableStats lists the members statistics exist for.
func (e *Engine) UsersWithAvailableStats(ctx context.Context, caller tracking.User) ([]tracking.User, error) {
	if !caller.IsStaff {
		return nil, tracking.ErrNotAuthorized
	}
	return e.store.ListUsers(ctx, tracking.UserFilter{IsStaff: tracking.Bool(false)})
}

// Member returns one member statistics exist for.
func (e *Engine) Member(ctx context.Context, caller tracking.User, userID tracking.UserID) (*tracking.User, error) {
	if !caller.IsStaff {
		return nil, tracking.ErrNotAuthorized
	}
	return e.member(ctx, userID)
}

// member resolves a non-staff user; staff users look unknown.
func (e *Engine) member(ctx context.Context, id tracking.UserID) (*tracking.User, error) {
	u, err := e.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.IsStaff {
		return nil, &tracking.NotFoundError{Kind: "user", ID: string(id)}
	}
	return u, nil
}
