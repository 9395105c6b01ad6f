// Package event manages staff calendar events and the overlap index that
// vacation requests are checked against.
package event

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/warp/time-tracking/clock"
	"github.com/warp/time-tracking/tracking"
)

const MaxTitleLength = 120

// Service implements event CRUD. Reads are open to everyone; writes need
// a staff caller.
type Service struct {
	store tracking.EventStore
	clock clock.Clock
	log   *logrus.Entry
}

func NewService(store tracking.EventStore, clk clock.Clock, log *logrus.Entry) *Service {
	return &Service{store: store, clock: clk, log: log.WithField("component", "event")}
}

// CreateInput carries the fields of a new event.
type CreateInput struct {
	Title       string
	Description string
	StartDate   time.Time
	EndDate     time.Time
}

// UpdateInput carries a partial update; nil fields keep their stored value.
type UpdateInput struct {
	Title       *string
	Description *string
	StartDate   *time.Time
	EndDate     *time.Time
}

func (s *Service) Create(ctx context.Context, caller tracking.User, in CreateInput) (*tracking.Event, error) {
	if !caller.IsStaff {
		return nil, tracking.ErrNotAuthorized
	}

	now := s.clock.Now()
	e := tracking.Event{
		ID:          tracking.EventID(tracking.NewID()),
		Title:       in.Title,
		Description: in.Description,
		StartDate:   clock.DateOf(in.StartDate),
		EndDate:     clock.DateOf(in.EndDate),
		CreatedBy:   caller.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := validate(e); err != nil {
		return nil, err
	}
	if err := s.store.CreateEvent(ctx, e); err != nil {
		s.log.WithError(err).Error("failed to create event")
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"event_id": e.ID,
		"user_id":  caller.ID,
		"range":    e.Range().String(),
	}).Info("event created")
	return &e, nil
}

// Update merges in into the stored event, then validates the result.
func (s *Service) Update(ctx context.Context, caller tracking.User, id tracking.EventID, in UpdateInput) (*tracking.Event, error) {
	if !caller.IsStaff {
		return nil, tracking.ErrNotAuthorized
	}

	e, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		e.Title = *in.Title
	}
	if in.Description != nil {
		e.Description = *in.Description
	}
	if in.StartDate != nil {
		e.StartDate = clock.DateOf(*in.StartDate)
	}
	if in.EndDate != nil {
		e.EndDate = clock.DateOf(*in.EndDate)
	}
	if err := validate(*e); err != nil {
		return nil, err
	}
	e.UpdatedAt = s.clock.Now()

	if err := s.store.UpdateEvent(ctx, *e); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"event_id": id, "user_id": caller.ID}).Info("event updated")
	return e, nil
}

func (s *Service) Delete(ctx context.Context, caller tracking.User, id tracking.EventID) error {
	if !caller.IsStaff {
		return tracking.ErrNotAuthorized
	}
	if err := s.store.DeleteEvent(ctx, id); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"event_id": id, "user_id": caller.ID}).Info("event deleted")
	return nil
}

func (s *Service) Get(ctx context.Context, id tracking.EventID) (*tracking.Event, error) {
	return s.store.GetEvent(ctx, id)
}

// List returns every event, newest start date first.
func (s *Service) List(ctx context.Context) ([]tracking.Event, error) {
	return s.store.ListEvents(ctx)
}

func validate(e tracking.Event) error {
	if e.Title == "" {
		return tracking.NewValidationError("title", "this field is required")
	}
	if utf8.RuneCountInString(e.Title) > MaxTitleLength {
		return tracking.NewValidationError("title", "must be at most 120 characters")
	}
	if e.StartDate.IsZero() {
		return tracking.NewValidationError("start_date", "this field is required")
	}
	if e.EndDate.IsZero() {
		return tracking.NewValidationError("end_date", "this field is required")
	}
	if !e.Range().Valid() {
		return tracking.NewValidationError("end_date", "end date must occur after start date")
	}
	return nil
}
