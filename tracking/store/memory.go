// Package store provides the in-memory tracking.TxStore.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/time-tracking/clock"
	"github.com/warp/time-tracking/tracking"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps everything in maps guarded by a single RWMutex.
type Memory struct {
	mu   sync.RWMutex
	data *memData
}

var _ tracking.TxStore = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{data: newMemData()}
}

func (m *Memory) Ping(context.Context) error { return nil }

// WithOwnerTx holds the write lock for the whole of fn, which gives every
// owner (and everyone else) a serialized section. On error the state is
// restored from a snapshot.
func (m *Memory) WithOwnerTx(_ context.Context, _ tracking.UserID, fn func(tracking.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.data.clone()
	if err := fn(m.data); err != nil {
		m.data = snapshot
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------
// Locked wrappers
// -----------------------------------------------------------------------------

func (m *Memory) SaveUser(ctx context.Context, u tracking.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.SaveUser(ctx, u)
}

func (m *Memory) GetUser(ctx context.Context, id tracking.UserID) (*tracking.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.GetUser(ctx, id)
}

func (m *Memory) GetUserByUsername(ctx context.Context, username string) (*tracking.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.GetUserByUsername(ctx, username)
}

func (m *Memory) ListUsers(ctx context.Context, filter tracking.UserFilter) ([]tracking.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.ListUsers(ctx, filter)
}

func (m *Memory) CreateEvent(ctx context.Context, e tracking.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.CreateEvent(ctx, e)
}

func (m *Memory) UpdateEvent(ctx context.Context, e tracking.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.UpdateEvent(ctx, e)
}

func (m *Memory) GetEvent(ctx context.Context, id tracking.EventID) (*tracking.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.GetEvent(ctx, id)
}

func (m *Memory) DeleteEvent(ctx context.Context, id tracking.EventID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.DeleteEvent(ctx, id)
}

func (m *Memory) ListEvents(ctx context.Context) ([]tracking.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.ListEvents(ctx)
}

func (m *Memory) FindOverlappingEvents(ctx context.Context, r clock.Range) ([]tracking.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.FindOverlappingEvents(ctx, r)
}

func (m *Memory) CreateVacation(ctx context.Context, v tracking.Vacation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.CreateVacation(ctx, v)
}

func (m *Memory) UpdateVacation(ctx context.Context, v tracking.Vacation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.UpdateVacation(ctx, v)
}

func (m *Memory) GetVacation(ctx context.Context, id tracking.VacationID) (*tracking.Vacation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.GetVacation(ctx, id)
}

func (m *Memory) DeleteVacation(ctx context.Context, id tracking.VacationID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.DeleteVacation(ctx, id)
}

func (m *Memory) ListVacations(ctx context.Context, filter tracking.VacationFilter) ([]tracking.Vacation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.ListVacations(ctx, filter)
}

func (m *Memory) CreateWorkSession(ctx context.Context, ws tracking.WorkSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.CreateWorkSession(ctx, ws)
}

func (m *Memory) CloseWorkSession(ctx context.Context, id tracking.WorkSessionID, endedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.CloseWorkSession(ctx, id, endedAt)
}

func (m *Memory) GetWorkSession(ctx context.Context, id tracking.WorkSessionID) (*tracking.WorkSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.GetWorkSession(ctx, id)
}

func (m *Memory) GetOpenWorkSession(ctx context.Context, owner tracking.UserID) (*tracking.WorkSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.GetOpenWorkSession(ctx, owner)
}

func (m *Memory) ListWorkSessions(ctx context.Context, filter tracking.WorkSessionFilter) ([]tracking.WorkSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.ListWorkSessions(ctx, filter)
}

// =============================================================================
// UNLOCKED DATA - Also serves as the transactional view
// =============================================================================

type memData struct {
	users     map[tracking.UserID]tracking.User
	events    map[tracking.EventID]tracking.Event
	vacations map[tracking.VacationID]tracking.Vacation
	sessions  map[tracking.WorkSessionID]tracking.WorkSession
}

func newMemData() *memData {
	return &memData{
		users:     make(map[tracking.UserID]tracking.User),
		events:    make(map[tracking.EventID]tracking.Event),
		vacations: make(map[tracking.VacationID]tracking.Vacation),
		sessions:  make(map[tracking.WorkSessionID]tracking.WorkSession),
	}
}

func (d *memData) clone() *memData {
	c := newMemData()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.events {
		c.events[k] = v
	}
	for k, v := range d.vacations {
		c.vacations[k] = v
	}
	for k, v := range d.sessions {
		c.sessions[k] = copySession(v)
	}
	return c
}

func copySession(ws tracking.WorkSession) tracking.WorkSession {
	if ws.EndedAt != nil {
		end := *ws.EndedAt
		ws.EndedAt = &end
	}
	return ws
}

// --- users ---

func (d *memData) SaveUser(_ context.Context, u tracking.User) error {
	for id, existing := range d.users {
		if existing.Username == u.Username && id != u.ID {
			return tracking.NewValidationError("username", "already taken")
		}
	}
	d.users[u.ID] = u
	return nil
}

func (d *memData) GetUser(_ context.Context, id tracking.UserID) (*tracking.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, &tracking.NotFoundError{Kind: "user", ID: string(id)}
	}
	return &u, nil
}

func (d *memData) GetUserByUsername(_ context.Context, username string) (*tracking.User, error) {
	for _, u := range d.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, &tracking.NotFoundError{Kind: "user", ID: username}
}

func (d *memData) ListUsers(_ context.Context, filter tracking.UserFilter) ([]tracking.User, error) {
	var result []tracking.User
	for _, u := range d.users {
		if filter.IsStaff != nil && u.IsStaff != *filter.IsStaff {
			continue
		}
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result, nil
}

// --- events ---

func (d *memData) CreateEvent(_ context.Context, e tracking.Event) error {
	d.events[e.ID] = e
	return nil
}

func (d *memData) UpdateEvent(_ context.Context, e tracking.Event) error {
	if _, ok := d.events[e.ID]; !ok {
		return &tracking.NotFoundError{Kind: "event", ID: string(e.ID)}
	}
	d.events[e.ID] = e
	return nil
}

func (d *memData) GetEvent(_ context.Context, id tracking.EventID) (*tracking.Event, error) {
	e, ok := d.events[id]
	if !ok {
		return nil, &tracking.NotFoundError{Kind: "event", ID: string(id)}
	}
	return &e, nil
}

func (d *memData) DeleteEvent(_ context.Context, id tracking.EventID) error {
	if _, ok := d.events[id]; !ok {
		return &tracking.NotFoundError{Kind: "event", ID: string(id)}
	}
	delete(d.events, id)
	return nil
}

func (d *memData) ListEvents(_ context.Context) ([]tracking.Event, error) {
	result := make([]tracking.Event, 0, len(d.events))
	for _, e := range d.events {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartDate.Equal(result[j].StartDate) {
			return result[i].StartDate.After(result[j].StartDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (d *memData) FindOverlappingEvents(_ context.Context, r clock.Range) ([]tracking.Event, error) {
	var result []tracking.Event
	for _, e := range d.events {
		if e.Range().Overlaps(r) {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartDate.Equal(result[j].StartDate) {
			return result[i].StartDate.Before(result[j].StartDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// --- vacations ---

func (d *memData) CreateVacation(_ context.Context, v tracking.Vacation) error {
	d.vacations[v.ID] = v
	return nil
}

func (d *memData) UpdateVacation(_ context.Context, v tracking.Vacation) error {
	if _, ok := d.vacations[v.ID]; !ok {
		return &tracking.NotFoundError{Kind: "vacation", ID: string(v.ID)}
	}
	d.vacations[v.ID] = v
	return nil
}

func (d *memData) GetVacation(_ context.Context, id tracking.VacationID) (*tracking.Vacation, error) {
	v, ok := d.vacations[id]
	if !ok {
		return nil, &tracking.NotFoundError{Kind: "vacation", ID: string(id)}
	}
	return &v, nil
}

func (d *memData) DeleteVacation(_ context.Context, id tracking.VacationID) error {
	if _, ok := d.vacations[id]; !ok {
		return &tracking.NotFoundError{Kind: "vacation", ID: string(id)}
	}
	delete(d.vacations, id)
	return nil
}

func (d *memData) ListVacations(_ context.Context, filter tracking.VacationFilter) ([]tracking.Vacation, error) {
	var result []tracking.Vacation
	for _, v := range d.vacations {
		if filter.OwnerID != "" && v.OwnerID != filter.OwnerID {
			continue
		}
		if filter.StartFrom != nil && v.StartDate.Before(*filter.StartFrom) {
			continue
		}
		result = append(result, v)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartDate.Equal(result[j].StartDate) {
			return result[i].StartDate.After(result[j].StartDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// --- work sessions ---

func (d *memData) CreateWorkSession(_ context.Context, ws tracking.WorkSession) error {
	if ws.IsOpen() {
		for _, existing := range d.sessions {
			if existing.OwnerID == ws.OwnerID && existing.IsOpen() {
				return tracking.ErrAlreadyCheckedIn
			}
		}
	}
	d.sessions[ws.ID] = copySession(ws)
	return nil
}

func (d *memData) CloseWorkSession(_ context.Context, id tracking.WorkSessionID, endedAt time.Time) error {
	ws, ok := d.sessions[id]
	if !ok {
		return &tracking.NotFoundError{Kind: "work session", ID: string(id)}
	}
	if !ws.IsOpen() {
		return tracking.ErrNotCheckedIn
	}
	end := endedAt
	ws.EndedAt = &end
	ws.UpdatedAt = endedAt
	d.sessions[id] = ws
	return nil
}

func (d *memData) GetWorkSession(_ context.Context, id tracking.WorkSessionID) (*tracking.WorkSession, error) {
	ws, ok := d.sessions[id]
	if !ok {
		return nil, &tracking.NotFoundError{Kind: "work session", ID: string(id)}
	}
	ws = copySession(ws)
	return &ws, nil
}

func (d *memData) GetOpenWorkSession(_ context.Context, owner tracking.UserID) (*tracking.WorkSession, error) {
	for _, ws := range d.sessions {
		if ws.OwnerID == owner && ws.IsOpen() {
			ws = copySession(ws)
			return &ws, nil
		}
	}
	return nil, tracking.ErrNotCheckedIn
}

func (d *memData) ListWorkSessions(_ context.Context, filter tracking.WorkSessionFilter) ([]tracking.WorkSession, error) {
	var result []tracking.WorkSession
	for _, ws := range d.sessions {
		if filter.OwnerID != "" && ws.OwnerID != filter.OwnerID {
			continue
		}
		if filter.StartedFrom != nil && ws.StartedAt.Before(*filter.StartedFrom) {
			continue
		}
		if filter.StartedTo != nil && ws.StartedAt.After(*filter.StartedTo) {
			continue
		}
		if filter.ClosedOnly && ws.IsOpen() {
			continue
		}
		if filter.NonStaffOnly {
			if u, ok := d.users[ws.OwnerID]; !ok || u.IsStaff {
				continue
			}
		}
		result = append(result, copySession(ws))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].StartedAt.After(result[j].StartedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}
