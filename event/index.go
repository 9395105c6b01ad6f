package event

import (
	"context"
	"fmt"

	"github.com/warp/time-tracking/clock"
	"github.com/warp/time-tracking/tracking"
)

// Index answers range-intersection queries against stored events. It is
// read-only and cheap to build, so callers construct one over whichever
// store view they hold (including a transactional one).
type Index struct {
	store tracking.EventStore
}

func NewIndex(store tracking.EventStore) Index {
	return Index{store: store}
}

// Intersecting returns the events whose closed range shares at least one
// day with r.
func (ix Index) Intersecting(ctx context.Context, r clock.Range) ([]tracking.Event, error) {
	if !r.Valid() {
		return nil, tracking.NewValidationError("end_date", "must not occur before start_date")
	}
	events, err := ix.store.FindOverlappingEvents(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("failed to query overlapping events: %w", err)
	}
	return events, nil
}

// IDs lists the identifiers of events, in order.
func IDs(events []tracking.Event) []tracking.EventID {
	ids := make([]tracking.EventID, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	return ids
}
