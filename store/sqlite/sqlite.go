/*
Package sqlite provides a SQLite-backed implementation of tracking.TxStore.

PURPOSE:
  Default persistence of the time tracker. Every query is plain SQL over
  database/sql; the business rules live in the service packages.

KEY TABLES:
  users:         Accounts and the staff flag
  events:        Staff calendar events (whole days)
  vacations:     Vacation requests (whole days)
  work_sessions: Check-in/check-out pairs, ended_at NULL while open

INDEXES:
  - idx_work_sessions_one_open: UNIQUE(owner_id) WHERE ended_at IS NULL,
    the "at most one open session per owner" rule at database level
  - idx_events_range:           range-intersection lookups
  - idx_vacations_owner_start:  yearly quota sums
  - idx_work_sessions_owner_start: statistics windows

ENCODING:
  Dates are stored as YYYY-MM-DD text. Instants are stored as fixed-width
  UTC text (nanosecond precision) so that string comparison in SQL orders
  them chronologically.

CONCURRENCY:
  The pool is limited to a single connection, which also keeps ":memory:"
  databases alive across calls. WithOwnerTx takes writeMu and opens the
  transaction with BEGIN IMMEDIATE (_txlock=immediate) so read-then-write
  sections never interleave.

USAGE:
  store, err := sqlite.New("./timetracking.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - tracking/store.go: Interface definitions
  - tracking/store/memory.go: In-memory implementation for testing
  - store/postgres: PostgreSQL implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/time-tracking/clock"
	"github.com/warp/time-tracking/tracking"
)

const instantLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements tracking.TxStore using SQLite.
type Store struct {
	queries
	db      *sql.DB
	writeMu sync.Mutex
}

var _ tracking.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{queries: queries{q: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		is_staff INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		created_by TEXT NOT NULL REFERENCES users(id),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (start_date <= end_date)
	);

	CREATE INDEX IF NOT EXISTS idx_events_range
		ON events(start_date, end_date);

	CREATE TABLE IF NOT EXISTS vacations (
		id TEXT PRIMARY KEY,
		brief_description TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		owner_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (start_date <= end_date)
	);

	CREATE INDEX IF NOT EXISTS idx_vacations_owner_start
		ON vacations(owner_id, start_date);

	CREATE TABLE IF NOT EXISTS work_sessions (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		started_at TEXT NOT NULL,
		ended_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_work_sessions_owner_start
		ON work_sessions(owner_id, started_at);

	-- At most one open session per owner
	CREATE UNIQUE INDEX IF NOT EXISTS idx_work_sessions_one_open
		ON work_sessions(owner_id) WHERE ended_at IS NULL;
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithOwnerTx executes fn within a database transaction. SQLite has a
// single writer, so the owner only documents intent.
func (s *Store) WithOwnerTx(ctx context.Context, _ tracking.UserID, fn func(tracking.Store) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{q: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements tracking.Store on top of a querier.
type queries struct {
	q querier
}

// =============================================================================
// USERS
// =============================================================================

func (s *queries) SaveUser(ctx context.Context, u tracking.User) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO users (id, username, is_staff, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			is_staff = excluded.is_staff`,
		string(u.ID), u.Username, u.IsStaff, formatInstant(u.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return tracking.NewValidationError("username", "already taken")
		}
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (s *queries) GetUser(ctx context.Context, id tracking.UserID) (*tracking.User, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT id, username, is_staff, created_at FROM users WHERE id = ?`, string(id))
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &tracking.NotFoundError{Kind: "user", ID: string(id)}
	}
	return u, err
}

func (s *queries) GetUserByUsername(ctx context.Context, username string) (*tracking.User, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT id, username, is_staff, created_at FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &tracking.NotFoundError{Kind: "user", ID: username}
	}
	return u, err
}

func (s *queries) ListUsers(ctx context.Context, filter tracking.UserFilter) ([]tracking.User, error) {
	query := `SELECT id, username, is_staff, created_at FROM users`
	var args []any
	if filter.IsStaff != nil {
		query += ` WHERE is_staff = ?`
		args = append(args, *filter.IsStaff)
	}
	query += ` ORDER BY username`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var result []tracking.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *u)
	}
	return result, rows.Err()
}

func scanUser(row scanner) (*tracking.User, error) {
	var (
		u         tracking.User
		id        string
		createdAt string
	)
	if err := row.Scan(&id, &u.Username, &u.IsStaff, &createdAt); err != nil {
		return nil, err
	}
	u.ID = tracking.UserID(id)
	var err error
	if u.CreatedAt, err = parseInstant(createdAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// =============================================================================
// EVENTS
// =============================================================================

const eventColumns = `id, title, description, start_date, end_date, created_by, created_at, updated_at`

func (s *queries) CreateEvent(ctx context.Context, e tracking.Event) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.ID), e.Title, e.Description,
		clock.FormatDate(e.StartDate), clock.FormatDate(e.EndDate),
		string(e.CreatedBy), formatInstant(e.CreatedAt), formatInstant(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (s *queries) UpdateEvent(ctx context.Context, e tracking.Event) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE events SET title = ?, description = ?, start_date = ?, end_date = ?, updated_at = ?
		WHERE id = ?`,
		e.Title, e.Description, clock.FormatDate(e.StartDate), clock.FormatDate(e.EndDate),
		formatInstant(e.UpdatedAt), string(e.ID))
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	return requireAffected(res, "event", string(e.ID))
}

func (s *queries) GetEvent(ctx context.Context, id tracking.EventID) (*tracking.Event, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, string(id))
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &tracking.NotFoundError{Kind: "event", ID: string(id)}
	}
	return e, err
}

func (s *queries) DeleteEvent(ctx context.Context, id tracking.EventID) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return requireAffected(res, "event", string(id))
}

func (s *queries) ListEvents(ctx context.Context) ([]tracking.Event, error) {
	return s.queryEvents(ctx, `SELECT `+eventColumns+` FROM events ORDER BY start_date DESC, id`)
}

func (s *queries) FindOverlappingEvents(ctx context.Context, r clock.Range) ([]tracking.Event, error) {
	return s.queryEvents(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE start_date <= ? AND end_date >= ?
		ORDER BY start_date, id`,
		clock.FormatDate(r.End), clock.FormatDate(r.Start))
}

func (s *queries) queryEvents(ctx context.Context, query string, args ...any) ([]tracking.Event, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var result []tracking.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}
	return result, rows.Err()
}

func scanEvent(row scanner) (*tracking.Event, error) {
	var (
		e                                          tracking.Event
		id, createdBy, start, end, created, updated string
	)
	if err := row.Scan(&id, &e.Title, &e.Description, &start, &end, &createdBy, &created, &updated); err != nil {
		return nil, err
	}
	e.ID = tracking.EventID(id)
	e.CreatedBy = tracking.UserID(createdBy)
	var err error
	if e.StartDate, err = clock.ParseDate(start); err != nil {
		return nil, err
	}
	if e.EndDate, err = clock.ParseDate(end); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = parseInstant(created); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseInstant(updated); err != nil {
		return nil, err
	}
	return &e, nil
}

// =============================================================================
// VACATIONS
// =============================================================================

const vacationColumns = `id, brief_description, start_date, end_date, owner_id, created_at, updated_at`

func (s *queries) CreateVacation(ctx context.Context, v tracking.Vacation) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO vacations (`+vacationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(v.ID), v.BriefDescription,
		clock.FormatDate(v.StartDate), clock.FormatDate(v.EndDate),
		string(v.OwnerID), formatInstant(v.CreatedAt), formatInstant(v.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert vacation: %w", err)
	}
	return nil
}

func (s *queries) UpdateVacation(ctx context.Context, v tracking.Vacation) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE vacations SET brief_description = ?, start_date = ?, end_date = ?, updated_at = ?
		WHERE id = ?`,
		v.BriefDescription, clock.FormatDate(v.StartDate), clock.FormatDate(v.EndDate),
		formatInstant(v.UpdatedAt), string(v.ID))
	if err != nil {
		return fmt.Errorf("failed to update vacation: %w", err)
	}
	return requireAffected(res, "vacation", string(v.ID))
}

func (s *queries) GetVacation(ctx context.Context, id tracking.VacationID) (*tracking.Vacation, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+vacationColumns+` FROM vacations WHERE id = ?`, string(id))
	v, err := scanVacation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &tracking.NotFoundError{Kind: "vacation", ID: string(id)}
	}
	return v, err
}

func (s *queries) DeleteVacation(ctx context.Context, id tracking.VacationID) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM vacations WHERE id = ?`, string(id))
	if err != nil {
		return fmt.Errorf("failed to delete vacation: %w", err)
	}
	return requireAffected(res, "vacation", string(id))
}

func (s *queries) ListVacations(ctx context.Context, filter tracking.VacationFilter) ([]tracking.Vacation, error) {
	var (
		where []string
		args  []any
	)
	if filter.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, string(filter.OwnerID))
	}
	if filter.StartFrom != nil {
		where = append(where, "start_date >= ?")
		args = append(args, clock.FormatDate(*filter.StartFrom))
	}
	query := `SELECT ` + vacationColumns + ` FROM vacations` + whereClause(where) + ` ORDER BY start_date DESC, id`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vacations: %w", err)
	}
	defer rows.Close()

	var result []tracking.Vacation
	for rows.Next() {
		v, err := scanVacation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}
	return result, rows.Err()
}

func scanVacation(row scanner) (*tracking.Vacation, error) {
	var (
		v                                        tracking.Vacation
		id, owner, start, end, created, updated string
	)
	if err := row.Scan(&id, &v.BriefDescription, &start, &end, &owner, &created, &updated); err != nil {
		return nil, err
	}
	v.ID = tracking.VacationID(id)
	v.OwnerID = tracking.UserID(owner)
	var err error
	if v.StartDate, err = clock.ParseDate(start); err != nil {
		return nil, err
	}
	if v.EndDate, err = clock.ParseDate(end); err != nil {
		return nil, err
	}
	if v.CreatedAt, err = parseInstant(created); err != nil {
		return nil, err
	}
	if v.UpdatedAt, err = parseInstant(updated); err != nil {
		return nil, err
	}
	return &v, nil
}

// =============================================================================
// WORK SESSIONS
// =============================================================================

const sessionColumns = `id, owner_id, started_at, ended_at, created_at, updated_at`

func (s *queries) CreateWorkSession(ctx context.Context, ws tracking.WorkSession) error {
	var endedAt any
	if ws.EndedAt != nil {
		endedAt = formatInstant(*ws.EndedAt)
	}
	_, err := s.q.ExecContext(ctx, `INSERT INTO work_sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		string(ws.ID), string(ws.OwnerID), formatInstant(ws.StartedAt), endedAt,
		formatInstant(ws.CreatedAt), formatInstant(ws.UpdatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return tracking.ErrAlreadyCheckedIn
		}
		return fmt.Errorf("failed to insert work session: %w", err)
	}
	return nil
}

func (s *queries) CloseWorkSession(ctx context.Context, id tracking.WorkSessionID, endedAt time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE work_sessions SET ended_at = ?, updated_at = ?
		WHERE id = ? AND ended_at IS NULL`,
		formatInstant(endedAt), formatInstant(endedAt), string(id))
	if err != nil {
		return fmt.Errorf("failed to close work session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := s.GetWorkSession(ctx, id); err != nil {
		return err
	}
	return tracking.ErrNotCheckedIn
}

func (s *queries) GetWorkSession(ctx context.Context, id tracking.WorkSessionID) (*tracking.WorkSession, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM work_sessions WHERE id = ?`, string(id))
	ws, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &tracking.NotFoundError{Kind: "work session", ID: string(id)}
	}
	return ws, err
}

func (s *queries) GetOpenWorkSession(ctx context.Context, owner tracking.UserID) (*tracking.WorkSession, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM work_sessions WHERE owner_id = ? AND ended_at IS NULL`, string(owner))
	ws, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tracking.ErrNotCheckedIn
	}
	return ws, err
}

func (s *queries) ListWorkSessions(ctx context.Context, filter tracking.WorkSessionFilter) ([]tracking.WorkSession, error) {
	var (
		where []string
		args  []any
	)
	if filter.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, string(filter.OwnerID))
	}
	if filter.StartedFrom != nil {
		where = append(where, "started_at >= ?")
		args = append(args, formatInstant(*filter.StartedFrom))
	}
	if filter.StartedTo != nil {
		where = append(where, "started_at <= ?")
		args = append(args, formatInstant(*filter.StartedTo))
	}
	if filter.ClosedOnly {
		where = append(where, "ended_at IS NOT NULL")
	}
	if filter.NonStaffOnly {
		where = append(where, "owner_id IN (SELECT id FROM users WHERE is_staff = 0)")
	}
	query := `SELECT ` + sessionColumns + ` FROM work_sessions` + whereClause(where) + ` ORDER BY started_at DESC, id`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query work sessions: %w", err)
	}
	defer rows.Close()

	var result []tracking.WorkSession
	for rows.Next() {
		ws, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ws)
	}
	return result, rows.Err()
}

func scanSession(row scanner) (*tracking.WorkSession, error) {
	var (
		ws                                tracking.WorkSession
		id, owner, started, created, upd string
		ended                             sql.NullString
	)
	if err := row.Scan(&id, &owner, &started, &ended, &created, &upd); err != nil {
		return nil, err
	}
	ws.ID = tracking.WorkSessionID(id)
	ws.OwnerID = tracking.UserID(owner)
	var err error
	if ws.StartedAt, err = parseInstant(started); err != nil {
		return nil, err
	}
	if ended.Valid {
		end, err := parseInstant(ended.String)
		if err != nil {
			return nil, err
		}
		ws.EndedAt = &end
	}
	if ws.CreatedAt, err = parseInstant(created); err != nil {
		return nil, err
	}
	if ws.UpdatedAt, err = parseInstant(upd); err != nil {
		return nil, err
	}
	return &ws, nil
}

// =============================================================================
// HELPERS
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func formatInstant(t time.Time) string {
	return t.UTC().Format(instantLayout)
}

func parseInstant(s string) (time.Time, error) {
	t, err := time.Parse(instantLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored instant %q: %w", s, err)
	}
	return t, nil
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &tracking.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

// isUniqueConstraintError checks if the error is a UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
