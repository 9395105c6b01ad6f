/*
service.go - Vacation requests of members

PURPOSE:
  Members request, edit and cancel their own vacations. A request passes
  through the allocator before anything is written:

    1. end_date >= start_date
    2. at most MaxRequestDays days
    3. neither bound in the past
    4. used days of the current year < QuotaDays
    5. used + requested <= QuotaDays
    6. no staff event intersects the range

  Steps 4-6 and the insert run inside WithOwnerTx, so two concurrent
  requests of one member cannot both pass the quota check.

VISIBILITY:
  A member only ever sees their own vacations. Someone else's id behaves
  like an unknown one (NotFound).

SEE ALSO:
  - allocator.go: quota arithmetic
  - event/index.go: overlap lookups
*/
package vacation

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/warp/time-tracking/clock"
	"github.com/warp/time-tracking/event"
	"github.com/warp/time-tracking/tracking"
)

type Service struct {
	store tracking.TxStore
	clock clock.Clock
	log   *logrus.Entry
}

func NewService(store tracking.TxStore, clk clock.Clock, log *logrus.Entry) *Service {
	return &Service{store: store, clock: clk, log: log.WithField("component", "vacation")}
}

// RequestInput carries a new vacation request.
type RequestInput struct {
	BriefDescription string
	StartDate        time.Time
	EndDate          time.Time
}

// UpdateInput carries an edit. Dates may be echoed back unchanged but never
// modified.
type UpdateInput struct {
	BriefDescription *string
	StartDate        *time.Time
	EndDate          *time.Time
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Request validates and stores a vacation for caller.
func (s *Service) Request(ctx context.Context, caller tracking.User, in RequestInput) (*tracking.Vacation, error) {
	if caller.IsStaff {
		return nil, tracking.ErrNotAuthorized
	}
	if err := validateDescription(in.BriefDescription); err != nil {
		return nil, err
	}
	if in.StartDate.IsZero() {
		return nil, tracking.NewValidationError("start_date", "this field is required")
	}
	if in.EndDate.IsZero() {
		return nil, tracking.NewValidationError("end_date", "this field is required")
	}

	now := s.clock.Now()
	today := clock.DateOf(now)
	r := clock.NewRange(in.StartDate, in.EndDate)
	if err := ValidateRange(r, today); err != nil {
		return nil, err
	}

	v := tracking.Vacation{
		ID:               tracking.VacationID(tracking.NewID()),
		BriefDescription: in.BriefDescription,
		StartDate:        r.Start,
		EndDate:          r.End,
		OwnerID:          caller.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	log := s.log.WithFields(logrus.Fields{"user_id": caller.ID, "range": r.String()})

	err := s.store.WithOwnerTx(ctx, caller.ID, func(tx tracking.Store) error {
		existing, err := tx.ListVacations(ctx, tracking.VacationFilter{
			OwnerID:   caller.ID,
			StartFrom: tracking.Time(QuotaWindowStart(today)),
		})
		if err != nil {
			return err
		}
		if err := CheckQuota(UsedDays(existing), r.Days()); err != nil {
			return err
		}

		conflicts, err := event.NewIndex(tx).Intersecting(ctx, r)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &tracking.EventConflictError{EventIDs: event.IDs(conflicts)}
		}

		return tx.CreateVacation(ctx, v)
	})
	if err != nil {
		if tracking.IsValidation(err) || tracking.IsConflict(err) {
			log.WithError(err).Warn("vacation request rejected")
		} else {
			log.WithError(err).Error("vacation request failed")
		}
		return nil, err
	}

	log.WithField("vacation_id", v.ID).Info("vacation requested")
	return &v, nil
}

// Update edits the brief description of one of caller's vacations.
func (s *Service) Update(ctx context.Context, caller tracking.User, id tracking.VacationID, in UpdateInput) (*tracking.Vacation, error) {
	v, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if in.StartDate != nil && !clock.DateOf(*in.StartDate).Equal(v.StartDate) {
		return nil, tracking.NewValidationError("start_date", "changing start_date is not allowed")
	}
	if in.EndDate != nil && !clock.DateOf(*in.EndDate).Equal(v.EndDate) {
		return nil, tracking.NewValidationError("end_date", "changing end_date is not allowed")
	}
	if in.BriefDescription == nil {
		return v, nil
	}
	if err := validateDescription(*in.BriefDescription); err != nil {
		return nil, err
	}

	v.BriefDescription = *in.BriefDescription
	v.UpdatedAt = s.clock.Now()
	if err := s.store.UpdateVacation(ctx, *v); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": caller.ID, "vacation_id": id}).Info("vacation updated")
	return v, nil
}

// Cancel deletes one of caller's vacations that has not started yet.
func (s *Service) Cancel(ctx context.Context, caller tracking.User, id tracking.VacationID) error {
	v, err := s.Get(ctx, caller, id)
	if err != nil {
		return err
	}
	log := s.log.WithFields(logrus.Fields{"user_id": caller.ID, "vacation_id": id})
	if v.StartDate.Before(clock.TodayDate(s.clock)) {
		log.Warn("refusing to cancel a vacation that already started")
		return tracking.ErrVacationStarted
	}
	if err := s.store.DeleteVacation(ctx, id); err != nil {
		return err
	}
	log.Info("vacation cancelled")
	return nil
}

// Get returns one of caller's vacations.
func (s *Service) Get(ctx context.Context, caller tracking.User, id tracking.VacationID) (*tracking.Vacation, error) {
	if caller.IsStaff {
		return nil, tracking.ErrNotAuthorized
	}
	v, err := s.store.GetVacation(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.OwnerID != caller.ID {
		return nil, &tracking.NotFoundError{Kind: "vacation", ID: string(id)}
	}
	return v, nil
}

// ListOwn returns caller's vacations, newest start date first.
func (s *Service) ListOwn(ctx context.Context, caller tracking.User) ([]tracking.Vacation, error) {
	if caller.IsStaff {
		return nil, tracking.ErrNotAuthorized
	}
	return s.store.ListVacations(ctx, tracking.VacationFilter{OwnerID: caller.ID})
}

// Balance reports caller's allowance for the current year.
func (s *Service) Balance(ctx context.Context, caller tracking.User) (Balance, error) {
	if caller.IsStaff {
		return Balance{}, tracking.ErrNotAuthorized
	}
	today := clock.TodayDate(s.clock)
	existing, err := s.store.ListVacations(ctx, tracking.VacationFilter{
		OwnerID:   caller.ID,
		StartFrom: tracking.Time(QuotaWindowStart(today)),
	})
	if err != nil {
		return Balance{}, err
	}
	return NewBalance(today.Year(), UsedDays(existing)), nil
}

func validateDescription(s string) error {
	if utf8.RuneCountInString(s) > MaxDescriptionLength {
		return tracking.NewValidationError("brief_description", "must be at most 120 characters")
	}
	return nil
}
