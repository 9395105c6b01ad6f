package vacation_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/time-tracking/clock"
	"github.com/warp/time-tracking/store/sqlite"
	"github.com/warp/time-tracking/tracking"
	"github.com/warp/time-tracking/tracking/store"
	"github.com/warp/time-tracking/tracking/storetest"
	"github.com/warp/time-tracking/vacation"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	svc   *vacation.Service
	store tracking.TxStore
	clock *clock.Mock
	alice tracking.User
	bob   tracking.User
	boss  tracking.User
}

func newFixture(t *testing.T, s tracking.TxStore, now time.Time) *fixture {
	log := logrus.New()
	log.SetOutput(io.Discard)
	clk := clock.NewMock(now)
	return &fixture{
		svc:   vacation.NewService(s, clk, logrus.NewEntry(log)),
		store: s,
		clock: clk,
		alice: storetest.SeedUser(t, s, "alice", false),
		bob:   storetest.SeedUser(t, s, "bob", false),
		boss:  storetest.SeedUser(t, s, "boss", true),
	}
}

func newMemoryFixture(t *testing.T) *fixture {
	return newFixture(t, store.NewMemory(), time.Date(2020, time.August, 1, 12, 0, 0, 0, time.UTC))
}

func req(start, end time.Time) vacation.RequestInput {
	return vacation.RequestInput{BriefDescription: "trip", StartDate: start, EndDate: end}
}

func (f *fixture) addEvent(t *testing.T, id string, start, end time.Time) {
	t.Helper()
	require.NoError(t, f.store.CreateEvent(context.Background(), tracking.Event{
		ID: tracking.EventID(id), Title: id, StartDate: start, EndDate: end,
		CreatedBy: f.boss.ID, CreatedAt: f.clock.Now(), UpdatedAt: f.clock.Now(),
	}))
}

// =============================================================================
// ALLOCATOR
// =============================================================================

func TestCheckQuota(t *testing.T) {
	assert.NoError(t, vacation.CheckQuota(0, 16))
	assert.NoError(t, vacation.CheckQuota(14, 2), "exactly exhausting the quota is allowed")

	var qe *tracking.QuotaExceededError
	require.ErrorAs(t, vacation.CheckQuota(14, 3), &qe)
	assert.Equal(t, 2, qe.Remaining)

	require.ErrorAs(t, vacation.CheckQuota(16, 1), &qe)
	assert.Equal(t, 0, qe.Remaining)
}

func TestValidateRange(t *testing.T) {
	today := clock.NewDate(2020, 8, 1)
	tests := []struct {
		name  string
		r     clock.Range
		field string
	}{
		{"reversed", clock.NewRange(clock.NewDate(2020, 9, 2), clock.NewDate(2020, 9, 1)), "end_date"},
		{"17 days", clock.NewRange(clock.NewDate(2020, 9, 1), clock.NewDate(2020, 9, 17)), "end_date"},
		{"start in past", clock.NewRange(clock.NewDate(2020, 7, 31), clock.NewDate(2020, 8, 2)), "start_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ve *tracking.ValidationError
			require.ErrorAs(t, vacation.ValidateRange(tt.r, today), &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	assert.NoError(t, vacation.ValidateRange(clock.NewRange(clock.NewDate(2020, 8, 1), clock.NewDate(2020, 8, 16)), today),
		"16 days starting today")
}

// =============================================================================
// REQUEST
// =============================================================================

func TestRequest_QuotaRemainingDays(t *testing.T) {
	// GIVEN: Alice already used 14 days this year
	// WHEN: She asks for 3 more, then for exactly 2
	// THEN: The first is rejected with remaining = 2, the second succeeds

	f := newMemoryFixture(t)
	ctx := context.Background()

	_, err := f.svc.Request(ctx, f.alice, req(clock.NewDate(2020, 9, 1), clock.NewDate(2020, 9, 7)))
	require.NoError(t, err)
	_, err = f.svc.Request(ctx, f.alice, req(clock.NewDate(2020, 10, 1), clock.NewDate(2020, 10, 7)))
	require.NoError(t, err)

	_, err = f.svc.Request(ctx, f.alice, req(clock.NewDate(2020, 11, 1), clock.NewDate(2020, 11, 3)))
	var qe *tracking.QuotaExceededError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, 2, qe.Remaining)
	assert.Equal(t, 14, qe.Used)

	_, err = f.svc.Request(ctx, f.alice, req(clock.NewDate(2020, 11, 1), clock.NewDate(2020, 11, 2)))
	require.NoError(t, err)

	_, err = f.svc.Request(ctx, f.alice, req(clock.NewDate(2020, 12, 1), clock.NewDate(2020, 12, 1)))
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, 0, qe.Remaining, "quota reached")

	// Bob's allowance is independent.
	_, err = f.svc.Request(ctx, f.bob, req(clock.NewDate(2020, 12, 1), clock.NewDate(2020, 12, 16)))
	assert.NoError(t, err)

	bal, err := f.svc.Balance(ctx, f.alice)
	require.NoError(t, err)
	assert.Equal(t, vacation.Balance{Year: 2020, Limit: 16, Used: 16, Remaining: 0}, bal)
}

func TestRequest_EventTouchingBoundaryDayConflicts(t *testing.T) {
	f := newMemoryFixture(t)
	f.addEvent(t, "release", clock.NewDate(2020, 9, 10), clock.NewDate(2020, 9, 20))

	_, err := f.svc.Request(context.Background(), f.alice, req(clock.NewDate(2020, 9, 20), clock.NewDate(2020, 9, 25)))

	var conflict *tracking.EventConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []tracking.EventID{"release"}, conflict.EventIDs)
	assert.True(t, tracking.IsConflict(err))

	list, err := f.svc.ListOwn(context.Background(), f.alice)
	require.NoError(t, err)
	assert.Empty(t, list, "nothing stored")
}

func TestRequest_AdjacentToEventSucceeds(t *testing.T) {
	// The literal calendar of the scenario: event Jan 1-5, request Jan 6-10.
	f := newFixture(t, store.NewMemory(), time.Date(2019, time.December, 15, 9, 0, 0, 0, time.UTC))
	f.addEvent(t, "new-year", clock.NewDate(2020, 1, 1), clock.NewDate(2020, 1, 5))

	v, err := f.svc.Request(context.Background(), f.alice, req(clock.NewDate(2020, 1, 6), clock.NewDate(2020, 1, 10)))
	require.NoError(t, err)
	assert.Equal(t, 5, v.Days())
	assert.Equal(t, f.alice.ID, v.OwnerID)
}

func TestRequest_YearBoundaryResetsQuota(t *testing.T) {
	f := newFixture(t, store.NewMemory(), time.Date(2020, time.December, 20, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	// A full allowance used last year does not count.
	require.NoError(t, f.store.CreateVacation(ctx, tracking.Vacation{
		ID: "old", StartDate: clock.NewDate(2019, 6, 1), EndDate: clock.NewDate(2019, 6, 16),
		OwnerID: f.alice.ID, CreatedAt: f.clock.Now(), UpdatedAt: f.clock.Now(),
	}))
	_, err := f.svc.Request(ctx, f.alice, req(clock.NewDate(2020, 12, 21), clock.NewDate(2020, 12, 31)))
	require.NoError(t, err)

	f.clock.Set(time.Date(2021, time.January, 2, 9, 0, 0, 0, time.UTC))
	_, err = f.svc.Request(ctx, f.alice, req(clock.NewDate(2021, 1, 10), clock.NewDate(2021, 1, 25)))
	assert.NoError(t, err, "new year, full allowance again")
}

func TestRequest_RejectsPastAndStaff(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	_, err := f.svc.Request(ctx, f.alice, req(clock.NewDate(2020, 7, 30), clock.NewDate(2020, 8, 2)))
	assert.True(t, tracking.IsValidation(err))

	_, err = f.svc.Request(ctx, f.boss, req(clock.NewDate(2020, 9, 1), clock.NewDate(2020, 9, 2)))
	assert.ErrorIs(t, err, tracking.ErrNotAuthorized)
}

func TestRequest_ConcurrentRequestsNeverOverrunQuota(t *testing.T) {
	stores := map[string]func(t *testing.T) tracking.TxStore{
		"memory": func(t *testing.T) tracking.TxStore { return store.NewMemory() },
		"sqlite": func(t *testing.T) tracking.TxStore {
			s, err := sqlite.New(":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, newStore(t), time.Date(2020, time.August, 1, 12, 0, 0, 0, time.UTC))
			ctx := context.Background()

			const workers = 8
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				succeeded int
			)
			for i := 0; i < workers; i++ {
				start := clock.NewDate(2020, 9, 1+3*i)
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := f.svc.Request(ctx, f.alice, req(start, start.AddDate(0, 0, 2)))
					if err == nil {
						mu.Lock()
						succeeded++
						mu.Unlock()
						return
					}
					assert.ErrorIs(t, err, tracking.ErrQuotaExceeded)
				}()
			}
			wg.Wait()

			assert.Equal(t, 5, succeeded, "5 x 3 days fit into 16")
			bal, err := f.svc.Balance(ctx, f.alice)
			require.NoError(t, err)
			assert.Equal(t, 15, bal.Used)
		})
	}
}

// =============================================================================
// UPDATE / CANCEL / VISIBILITY
// =============================================================================

func TestUpdate_OnlyDescriptionIsEditable(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	v, err := f.svc.Request(ctx, f.alice, req(clock.NewDate(2020, 9, 1), clock.NewDate(2020, 9, 3)))
	require.NoError(t, err)

	moved := clock.NewDate(2020, 9, 2)
	_, err = f.svc.Update(ctx, f.alice, v.ID, vacation.UpdateInput{StartDate: &moved})
	var ve *tracking.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "start_date", ve.Field)

	desc := "Beach"
	same := v.StartDate
	updated, err := f.svc.Update(ctx, f.alice, v.ID, vacation.UpdateInput{BriefDescription: &desc, StartDate: &same})
	require.NoError(t, err)
	assert.Equal(t, "Beach", updated.BriefDescription)

	_, err = f.svc.Update(ctx, f.bob, v.ID, vacation.UpdateInput{BriefDescription: &desc})
	assert.True(t, tracking.IsNotFound(err), "other members can't see it")
}

func TestCancel_StartedVacationIsForbidden(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	v, err := f.svc.Request(ctx, f.alice, req(clock.NewDate(2020, 9, 1), clock.NewDate(2020, 9, 3)))
	require.NoError(t, err)
	future, err := f.svc.Request(ctx, f.alice, req(clock.NewDate(2020, 10, 1), clock.NewDate(2020, 10, 3)))
	require.NoError(t, err)

	f.clock.Set(time.Date(2020, time.September, 2, 8, 0, 0, 0, time.UTC))

	err = f.svc.Cancel(ctx, f.alice, v.ID)
	assert.ErrorIs(t, err, tracking.ErrVacationStarted)
	assert.True(t, tracking.IsForbidden(err))

	require.NoError(t, f.svc.Cancel(ctx, f.alice, future.ID))
	_, err = f.svc.Get(ctx, f.alice, future.ID)
	assert.True(t, tracking.IsNotFound(err))
}

func TestCancel_StartingTodayIsAllowed(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	v, err := f.svc.Request(ctx, f.alice, req(clock.NewDate(2020, 8, 1), clock.NewDate(2020, 8, 2)))
	require.NoError(t, err)

	assert.NoError(t, f.svc.Cancel(ctx, f.alice, v.ID))
}

func TestListOwn_OnlyCallersVacations(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()
	_, err := f.svc.Request(ctx, f.alice, req(clock.NewDate(2020, 9, 1), clock.NewDate(2020, 9, 3)))
	require.NoError(t, err)
	_, err = f.svc.Request(ctx, f.bob, req(clock.NewDate(2020, 9, 1), clock.NewDate(2020, 9, 3)))
	require.NoError(t, err)

	list, err := f.svc.ListOwn(ctx, f.alice)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, f.alice.ID, list[0].OwnerID)
}
