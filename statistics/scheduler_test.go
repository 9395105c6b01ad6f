package statistics_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/time-tracking/statistics"
)

func TestScheduler_RunNowReplacesStaleTeamRatio(t *testing.T) {
	// GIVEN: A cached ratio computed before any session existed
	f := newFixture(t, at(10, 12, 0))
	ctx := context.Background()
	before, err := f.engine.TeamWorkToLeaveRatio(ctx, f.boss)
	require.NoError(t, err)
	require.Nil(t, before.Percentage())

	f.session(t, f.alice.ID, at(1, 9, 0), 4*time.Hour)
	f.session(t, f.alice.ID, at(1, 14, 0), 4*time.Hour)

	// WHEN: The scheduler runs well within the team TTL
	statistics.NewScheduler(f.engine, f.cache, f.log).RunNow(ctx)

	// THEN: Readers see the fresh value
	after, err := f.engine.TeamWorkToLeaveRatio(ctx, f.boss)
	require.NoError(t, err)
	assert.Equal(t, 8*time.Hour, after.Working)
	assert.Equal(t, time.Hour, after.Leaving)
	require.NotNil(t, after.Percentage())
	assert.True(t, decimal.NewFromInt(800).Equal(*after.Percentage()))
}

func TestScheduler_RunNowSweepsExpiredEntries(t *testing.T) {
	f := newFixture(t, at(10, 12, 0))
	ctx := context.Background()
	require.NoError(t, f.cache.Set(ctx, "short", []byte(`1`), time.Minute))
	f.clock.Advance(2 * time.Minute)

	statistics.NewScheduler(f.engine, f.cache, f.log).RunNow(ctx)

	// Only the freshly refreshed team ratio remains
	assert.Equal(t, 1, f.cache.Len())
	_, ok, err := f.cache.Get(ctx, "short")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestScheduler_StartRunsImmediatelyAndStops(t *testing.T) {
	f := newFixture(t, at(10, 12, 0))
	s := statistics.NewScheduler(f.engine, f.cache, f.log)
	s.CheckInterval = time.Hour

	s.Start()
	require.Eventually(t, func() bool { return f.cache.Len() == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()
}

func TestScheduler_DisabledDoesNothing(t *testing.T) {
	f := newFixture(t, at(10, 12, 0))
	s := statistics.NewScheduler(f.engine, f.cache, f.log)
	s.CheckInterval = 0

	s.Start()
	s.Stop()

	assert.Equal(t, 0, f.cache.Len())
}
