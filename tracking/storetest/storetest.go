// Package storetest is the behavioural test suite every tracking.TxStore
// implementation must pass.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/time-tracking/clock"
	"github.com/warp/time-tracking/tracking"
)

// Factory returns a fresh, empty store. Cleanup is registered on t.
type Factory func(t *testing.T) tracking.TxStore

// Run executes the suite as subtests.
func Run(t *testing.T, newStore Factory) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("Events", func(t *testing.T) { testEvents(t, newStore(t)) })
	t.Run("OverlappingEvents", func(t *testing.T) { testOverlappingEvents(t, newStore(t)) })
	t.Run("Vacations", func(t *testing.T) { testVacations(t, newStore(t)) })
	t.Run("WorkSessions", func(t *testing.T) { testWorkSessions(t, newStore(t)) })
	t.Run("OneOpenSessionPerOwner", func(t *testing.T) { testOneOpenSession(t, newStore(t)) })
	t.Run("WorkSessionFilters", func(t *testing.T) { testWorkSessionFilters(t, newStore(t)) })
	t.Run("WithOwnerTxRollback", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("WithOwnerTxSerializes", func(t *testing.T) { testSerializes(t, newStore(t)) })
}

var base = time.Date(2020, time.September, 1, 0, 0, 0, 0, time.UTC)

// SeedUser stores a user and returns it.
func SeedUser(t *testing.T, s tracking.Store, username string, staff bool) tracking.User {
	t.Helper()
	u := tracking.User{
		ID:        tracking.UserID(tracking.NewID()),
		Username:  username,
		IsStaff:   staff,
		CreatedAt: base,
	}
	require.NoError(t, s.SaveUser(context.Background(), u))
	return u
}

func testUsers(t *testing.T, s tracking.TxStore) {
	ctx := context.Background()
	alice := SeedUser(t, s, "alice", false)
	SeedUser(t, s, "boss", true)

	got, err := s.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.False(t, got.IsStaff)

	got, err = s.GetUserByUsername(ctx, "boss")
	require.NoError(t, err)
	assert.True(t, got.IsStaff)

	_, err = s.GetUser(ctx, "missing")
	assert.True(t, tracking.IsNotFound(err))

	all, err := s.ListUsers(ctx, tracking.UserFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alice", all[0].Username)

	members, err := s.ListUsers(ctx, tracking.UserFilter{IsStaff: tracking.Bool(false)})
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, alice.ID, members[0].ID)

	// Promoting a user goes through SaveUser.
	alice.IsStaff = true
	require.NoError(t, s.SaveUser(ctx, alice))
	got, err = s.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, got.IsStaff)
}

func testEvents(t *testing.T, s tracking.TxStore) {
	ctx := context.Background()
	staff := SeedUser(t, s, "boss", true)

	older := tracking.Event{
		ID: "ev-1", Title: "Offsite", Description: "d",
		StartDate: clock.NewDate(2020, 1, 1), EndDate: clock.NewDate(2020, 1, 5),
		CreatedBy: staff.ID, CreatedAt: base, UpdatedAt: base,
	}
	newer := older
	newer.ID, newer.Title = "ev-2", "Release"
	newer.StartDate, newer.EndDate = clock.NewDate(2020, 9, 10), clock.NewDate(2020, 9, 20)

	require.NoError(t, s.CreateEvent(ctx, older))
	require.NoError(t, s.CreateEvent(ctx, newer))

	list, err := s.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, tracking.EventID("ev-2"), list[0].ID, "newest first")

	got, err := s.GetEvent(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, "Offsite", got.Title)
	assert.True(t, got.StartDate.Equal(clock.NewDate(2020, 1, 1)))
	assert.Equal(t, staff.ID, got.CreatedBy)

	got.Title = "Offsite 2"
	require.NoError(t, s.UpdateEvent(ctx, *got))
	got, err = s.GetEvent(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, "Offsite 2", got.Title)

	require.NoError(t, s.DeleteEvent(ctx, "ev-1"))
	_, err = s.GetEvent(ctx, "ev-1")
	assert.True(t, tracking.IsNotFound(err))
	assert.True(t, tracking.IsNotFound(s.DeleteEvent(ctx, "ev-1")))
	assert.True(t, tracking.IsNotFound(s.UpdateEvent(ctx, older)))
}

func testOverlappingEvents(t *testing.T, s tracking.TxStore) {
	ctx := context.Background()
	staff := SeedUser(t, s, "boss", true)
	for _, e := range []tracking.Event{
		{ID: "jan", StartDate: clock.NewDate(2020, 1, 1), EndDate: clock.NewDate(2020, 1, 5)},
		{ID: "sep", StartDate: clock.NewDate(2020, 9, 10), EndDate: clock.NewDate(2020, 9, 20)},
	} {
		e.Title, e.CreatedBy, e.CreatedAt, e.UpdatedAt = string(e.ID), staff.ID, base, base
		require.NoError(t, s.CreateEvent(ctx, e))
	}

	hits, err := s.FindOverlappingEvents(ctx, clock.NewRange(clock.NewDate(2020, 9, 20), clock.NewDate(2020, 9, 25)))
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, tracking.EventID("sep"), hits[0].ID)

	hits, err = s.FindOverlappingEvents(ctx, clock.NewRange(clock.NewDate(2020, 1, 6), clock.NewDate(2020, 1, 10)))
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = s.FindOverlappingEvents(ctx, clock.NewRange(clock.NewDate(2019, 12, 1), clock.NewDate(2020, 12, 31)))
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, tracking.EventID("jan"), hits[0].ID, "ordered by start date")
}

func testVacations(t *testing.T, s tracking.TxStore) {
	ctx := context.Background()
	alice := SeedUser(t, s, "alice", false)
	bob := SeedUser(t, s, "bob", false)

	mk := func(id string, owner tracking.UserID, start, end time.Time) tracking.Vacation {
		return tracking.Vacation{
			ID: tracking.VacationID(id), BriefDescription: id,
			StartDate: start, EndDate: end, OwnerID: owner,
			CreatedAt: base, UpdatedAt: base,
		}
	}
	require.NoError(t, s.CreateVacation(ctx, mk("last-year", alice.ID, clock.NewDate(2019, 12, 28), clock.NewDate(2020, 1, 3))))
	require.NoError(t, s.CreateVacation(ctx, mk("spring", alice.ID, clock.NewDate(2020, 4, 1), clock.NewDate(2020, 4, 3))))
	require.NoError(t, s.CreateVacation(ctx, mk("bob", bob.ID, clock.NewDate(2020, 5, 1), clock.NewDate(2020, 5, 2))))

	own, err := s.ListVacations(ctx, tracking.VacationFilter{OwnerID: alice.ID})
	require.NoError(t, err)
	require.Len(t, own, 2)
	assert.Equal(t, tracking.VacationID("spring"), own[0].ID, "newest first")

	thisYear, err := s.ListVacations(ctx, tracking.VacationFilter{
		OwnerID:   alice.ID,
		StartFrom: tracking.Time(clock.StartOfYear(2020)),
	})
	require.NoError(t, err)
	require.Len(t, thisYear, 1)
	assert.Equal(t, 3, thisYear[0].Days())

	v, err := s.GetVacation(ctx, "spring")
	require.NoError(t, err)
	v.BriefDescription = "Easter"
	require.NoError(t, s.UpdateVacation(ctx, *v))
	v, err = s.GetVacation(ctx, "spring")
	require.NoError(t, err)
	assert.Equal(t, "Easter", v.BriefDescription)

	require.NoError(t, s.DeleteVacation(ctx, "spring"))
	_, err = s.GetVacation(ctx, "spring")
	assert.True(t, tracking.IsNotFound(err))
}

func testWorkSessions(t *testing.T, s tracking.TxStore) {
	ctx := context.Background()
	alice := SeedUser(t, s, "alice", false)

	_, err := s.GetOpenWorkSession(ctx, alice.ID)
	assert.ErrorIs(t, err, tracking.ErrNotCheckedIn)

	start := base.Add(9 * time.Hour)
	ws := tracking.WorkSession{ID: "ws-1", OwnerID: alice.ID, StartedAt: start, CreatedAt: start, UpdatedAt: start}
	require.NoError(t, s.CreateWorkSession(ctx, ws))

	open, err := s.GetOpenWorkSession(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, tracking.WorkSessionID("ws-1"), open.ID)
	assert.True(t, open.IsOpen())
	assert.True(t, open.StartedAt.Equal(start))

	end := start.Add(8*time.Hour + 30*time.Minute)
	require.NoError(t, s.CloseWorkSession(ctx, "ws-1", end))

	closed, err := s.GetWorkSession(ctx, "ws-1")
	require.NoError(t, err)
	require.NotNil(t, closed.EndedAt)
	assert.Equal(t, 8*time.Hour+30*time.Minute, closed.Duration())

	_, err = s.GetOpenWorkSession(ctx, alice.ID)
	assert.ErrorIs(t, err, tracking.ErrNotCheckedIn)
	assert.ErrorIs(t, s.CloseWorkSession(ctx, "ws-1", end), tracking.ErrNotCheckedIn)
	assert.True(t, tracking.IsNotFound(s.CloseWorkSession(ctx, "nope", end)))
}

func testOneOpenSession(t *testing.T, s tracking.TxStore) {
	ctx := context.Background()
	alice := SeedUser(t, s, "alice", false)
	bob := SeedUser(t, s, "bob", false)

	open := func(id string, owner tracking.UserID) tracking.WorkSession {
		return tracking.WorkSession{ID: tracking.WorkSessionID(id), OwnerID: owner, StartedAt: base, CreatedAt: base, UpdatedAt: base}
	}
	require.NoError(t, s.CreateWorkSession(ctx, open("a1", alice.ID)))
	err := s.CreateWorkSession(ctx, open("a2", alice.ID))
	assert.ErrorIs(t, err, tracking.ErrAlreadyCheckedIn)
	assert.True(t, tracking.IsConflict(err))

	require.NoError(t, s.CreateWorkSession(ctx, open("b1", bob.ID)), "other owners are independent")

	// Closed sessions never collide.
	end := base.Add(time.Hour)
	closed := open("a0", alice.ID)
	closed.EndedAt = &end
	require.NoError(t, s.CreateWorkSession(ctx, closed))
}

func testWorkSessionFilters(t *testing.T, s tracking.TxStore) {
	ctx := context.Background()
	alice := SeedUser(t, s, "alice", false)
	boss := SeedUser(t, s, "boss", true)

	add := func(id string, owner tracking.UserID, start time.Time, hours int) {
		ws := tracking.WorkSession{ID: tracking.WorkSessionID(id), OwnerID: owner, StartedAt: start, CreatedAt: start, UpdatedAt: start}
		if hours > 0 {
			end := start.Add(time.Duration(hours) * time.Hour)
			ws.EndedAt = &end
		}
		require.NoError(t, s.CreateWorkSession(ctx, ws))
	}
	add("a-old", alice.ID, base.Add(-10*24*time.Hour), 8)
	add("a-mid", alice.ID, base.Add(9*time.Hour), 8)
	add("a-open", alice.ID, base.Add(24*time.Hour+9*time.Hour), 0)
	add("boss", boss.ID, base.Add(9*time.Hour), 8)

	all, err := s.ListWorkSessions(ctx, tracking.WorkSessionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	own, err := s.ListWorkSessions(ctx, tracking.WorkSessionFilter{OwnerID: alice.ID})
	require.NoError(t, err)
	require.Len(t, own, 3)
	assert.Equal(t, tracking.WorkSessionID("a-open"), own[0].ID, "newest first")

	window, err := s.ListWorkSessions(ctx, tracking.WorkSessionFilter{
		OwnerID:     alice.ID,
		StartedFrom: tracking.Time(base.Add(-7 * 24 * time.Hour)),
		StartedTo:   tracking.Time(base.Add(9 * time.Hour)),
		ClosedOnly:  true,
	})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, tracking.WorkSessionID("a-mid"), window[0].ID, "bounds are inclusive")

	members, err := s.ListWorkSessions(ctx, tracking.WorkSessionFilter{NonStaffOnly: true, ClosedOnly: true})
	require.NoError(t, err)
	require.Len(t, members, 2)
	for _, ws := range members {
		assert.Equal(t, alice.ID, ws.OwnerID)
	}
}

func testRollback(t *testing.T, s tracking.TxStore) {
	ctx := context.Background()
	alice := SeedUser(t, s, "alice", false)
	boom := errors.New("boom")

	err := s.WithOwnerTx(ctx, alice.ID, func(tx tracking.Store) error {
		v := tracking.Vacation{
			ID: "v-1", StartDate: clock.NewDate(2020, 10, 1), EndDate: clock.NewDate(2020, 10, 2),
			OwnerID: alice.ID, CreatedAt: base, UpdatedAt: base,
		}
		if err := tx.CreateVacation(ctx, v); err != nil {
			return err
		}
		// Reads inside the section see the pending write.
		if _, err := tx.GetVacation(ctx, "v-1"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetVacation(ctx, "v-1")
	assert.True(t, tracking.IsNotFound(err), "write rolled back")

	require.NoError(t, s.WithOwnerTx(ctx, alice.ID, func(tx tracking.Store) error {
		return tx.CreateVacation(ctx, tracking.Vacation{
			ID: "v-2", StartDate: clock.NewDate(2020, 10, 1), EndDate: clock.NewDate(2020, 10, 2),
			OwnerID: alice.ID, CreatedAt: base, UpdatedAt: base,
		})
	}))
	_, err = s.GetVacation(ctx, "v-2")
	assert.NoError(t, err, "write committed")
}

// testSerializes runs many read-then-write sections concurrently; only the
// first may insert when each one checks for an existing row first.
func testSerializes(t *testing.T, s tracking.TxStore) {
	ctx := context.Background()
	alice := SeedUser(t, s, "alice", false)

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithOwnerTx(ctx, alice.ID, func(tx tracking.Store) error {
				existing, err := tx.ListVacations(ctx, tracking.VacationFilter{OwnerID: alice.ID})
				if err != nil {
					return err
				}
				if len(existing) > 0 {
					return nil
				}
				return tx.CreateVacation(ctx, tracking.Vacation{
					ID: tracking.VacationID(tracking.NewID()), StartDate: clock.NewDate(2020, 10, 1),
					EndDate: clock.NewDate(2020, 10, 1), OwnerID: alice.ID, CreatedAt: base, UpdatedAt: base,
				})
			})
			if assert.NoError(t, err) {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, inserted)
	list, err := s.ListVacations(ctx, tracking.VacationFilter{OwnerID: alice.ID})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
