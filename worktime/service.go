/*
Package worktime implements the check-in/check-out state machine.

STATES (per member):

	CHECKED_OUT --check-in--> CHECKED_IN --check-out--> CHECKED_OUT

  CHECKED_IN means exactly one open session exists. Check-in while checked
  in fails with ErrAlreadyCheckedIn; check-out while checked out fails with
  ErrNotCheckedIn. Sessions never expire.

ATOMICITY:
  Both transitions run inside WithOwnerTx, and the stores additionally
  reject a second open session with a unique index. Two racing check-ins
  therefore yield exactly one open session.
*/
package worktime

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/warp/time-tracking/clock"
	"github.com/warp/time-tracking/tracking"
)

type Service struct {
	store tracking.TxStore
	clock clock.Clock
	log   *logrus.Entry
}

func NewService(store tracking.TxStore, clk clock.Clock, log *logrus.Entry) *Service {
	return &Service{store: store, clock: clk, log: log.WithField("component", "worktime")}
}

// Status is the caller's position in the state machine.
type Status struct {
	State   tracking.CheckState
	Session *tracking.WorkSession
}

// CheckIn opens a session starting now.
func (s *Service) CheckIn(ctx context.Context, caller tracking.User) (*tracking.WorkSession, error) {
	if caller.IsStaff {
		return nil, tracking.ErrNotAuthorized
	}

	now := s.clock.Now()
	ws := tracking.WorkSession{
		ID:        tracking.WorkSessionID(tracking.NewID()),
		OwnerID:   caller.ID,
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	log := s.log.WithField("user_id", caller.ID)

	err := s.store.WithOwnerTx(ctx, caller.ID, func(tx tracking.Store) error {
		_, err := tx.GetOpenWorkSession(ctx, caller.ID)
		switch {
		case err == nil:
			return tracking.ErrAlreadyCheckedIn
		case !errors.Is(err, tracking.ErrNotCheckedIn):
			return err
		}
		return tx.CreateWorkSession(ctx, ws)
	})
	if err != nil {
		if tracking.IsConflict(err) {
			log.Warn("check-in rejected: already checked in")
		} else {
			log.WithError(err).Error("check-in failed")
		}
		return nil, err
	}

	log.WithField("session_id", ws.ID).Info("checked in")
	return &ws, nil
}

// CheckOut closes the caller's open session at now.
func (s *Service) CheckOut(ctx context.Context, caller tracking.User) (*tracking.WorkSession, error) {
	if caller.IsStaff {
		return nil, tracking.ErrNotAuthorized
	}

	var closed *tracking.WorkSession
	log := s.log.WithField("user_id", caller.ID)

	err := s.store.WithOwnerTx(ctx, caller.ID, func(tx tracking.Store) error {
		open, err := tx.GetOpenWorkSession(ctx, caller.ID)
		if err != nil {
			return err
		}
		end := s.clock.Now()
		if end.Before(open.StartedAt) {
			// Clock went backwards; keep the duration non-negative.
			end = open.StartedAt
		}
		if err := tx.CloseWorkSession(ctx, open.ID, end); err != nil {
			return err
		}
		open.EndedAt = &end
		open.UpdatedAt = end
		closed = open
		return nil
	})
	if err != nil {
		if tracking.IsConflict(err) {
			log.Warn("check-out rejected: not checked in")
		} else {
			log.WithError(err).Error("check-out failed")
		}
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"session_id": closed.ID,
		"duration":   closed.Duration().String(),
	}).Info("checked out")
	return closed, nil
}

// Status reports whether caller is checked in.
func (s *Service) Status(ctx context.Context, caller tracking.User) (Status, error) {
	if caller.IsStaff {
		return Status{}, tracking.ErrNotAuthorized
	}
	open, err := s.store.GetOpenWorkSession(ctx, caller.ID)
	if errors.Is(err, tracking.ErrNotCheckedIn) {
		return Status{State: tracking.StateCheckedOut}, nil
	}
	if err != nil {
		return Status{}, err
	}
	return Status{State: tracking.StateCheckedIn, Session: open}, nil
}

// List returns caller's sessions, newest first.
func (s *Service) List(ctx context.Context, caller tracking.User) ([]tracking.WorkSession, error) {
	if caller.IsStaff {
		return nil, tracking.ErrNotAuthorized
	}
	return s.store.ListWorkSessions(ctx, tracking.WorkSessionFilter{OwnerID: caller.ID})
}

// Get returns one of caller's sessions.
func (s *Service) Get(ctx context.Context, caller tracking.User, id tracking.WorkSessionID) (*tracking.WorkSession, error) {
	if caller.IsStaff {
		return nil, tracking.ErrNotAuthorized
	}
	ws, err := s.store.GetWorkSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if ws.OwnerID != caller.ID {
		return nil, &tracking.NotFoundError{Kind: "work session", ID: string(id)}
	}
	return ws, nil
}
