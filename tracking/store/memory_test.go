package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/time-tracking/tracking"
	"github.com/warp/time-tracking/tracking/store"
	"github.com/warp/time-tracking/tracking/storetest"
)

func TestMemory(t *testing.T) {
	storetest.Run(t, func(t *testing.T) tracking.TxStore {
		return store.NewMemory()
	})
}

func TestMemory_NonStaffOnlyDropsUnknownOwners(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	alice := storetest.SeedUser(t, s, "alice", false)

	// GIVEN a closed session for a member and one whose owner does not exist
	start := time.Date(2020, time.September, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(8 * time.Hour)
	for _, owner := range []tracking.UserID{alice.ID, "ghost"} {
		require.NoError(t, s.CreateWorkSession(ctx, tracking.WorkSession{
			ID: tracking.WorkSessionID(tracking.NewID()), OwnerID: owner,
			StartedAt: start, EndedAt: &end, CreatedAt: start, UpdatedAt: end,
		}))
	}

	// WHEN listing member sessions
	got, err := s.ListWorkSessions(ctx, tracking.WorkSessionFilter{NonStaffOnly: true})
	require.NoError(t, err)

	// THEN only the known member's session remains, as with the SQL stores
	require.Len(t, got, 1)
	assert.Equal(t, alice.ID, got[0].OwnerID)
}
