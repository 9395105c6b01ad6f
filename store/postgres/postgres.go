/*
Package postgres provides a PostgreSQL-backed implementation of tracking.TxStore.

PURPOSE:
  Multi-instance deployments share one PostgreSQL database. Same tables and
  semantics as store/sqlite, with native DATE / TIMESTAMPTZ / BOOLEAN columns.

CONCURRENCY:
  WithOwnerTx opens a transaction and takes pg_advisory_xact_lock keyed on
  the owner id, so quota checks and check-ins of one user serialize across
  every server instance while other users proceed in parallel. The lock is
  released with the transaction.

  The partial unique index idx_work_sessions_one_open backs the "one open
  session per owner" rule; unique violations (SQLSTATE 23505) on insert are
  reported as tracking.ErrAlreadyCheckedIn.

SEE ALSO:
  - tracking/store.go: Interface definitions
  - store/sqlite: Default single-file implementation
*/
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/warp/time-tracking/clock"
	"github.com/warp/time-tracking/tracking"
)

const pgUniqueViolationCode = "23505"

// Config holds the connection settings.
type Config struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration

	// Retry configuration
	MaxRetries    int
	RetryInterval time.Duration
}

// DefaultConfig returns pool defaults for url.
func DefaultConfig(url string) Config {
	return Config{
		URL:             url,
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		ConnectTimeout:  10 * time.Second,
		MaxRetries:      3,
		RetryInterval:   2 * time.Second,
	}
}

// Store implements tracking.TxStore on a pgx pool.
type Store struct {
	queries
	pool *pgxpool.Pool
}

var _ tracking.TxStore = (*Store)(nil)

// New connects with retry and migrates the schema.
func New(ctx context.Context, cfg Config) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.ConnectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	var (
		pool    *pgxpool.Pool
		lastErr error
	)
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cfg.RetryInterval):
			}
		}

		pool, lastErr = pgxpool.NewWithConfig(ctx, poolConfig)
		if lastErr != nil {
			continue
		}
		if lastErr = pool.Ping(ctx); lastErr != nil {
			pool.Close()
			continue
		}

		store := &Store{queries: queries{q: pool}, pool: pool}
		if err := store.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		return store, nil
	}

	return nil, fmt.Errorf("failed to connect to postgres after %d attempts: %w", cfg.MaxRetries+1, lastErr)
}

// Close closes all connections in the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks if the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Reset empties every table. Test helper.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE work_sessions, vacations, events, users`)
	return err
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		is_staff BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		created_by TEXT NOT NULL REFERENCES users(id),
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CHECK (start_date <= end_date)
	);

	CREATE INDEX IF NOT EXISTS idx_events_range ON events(start_date, end_date);

	CREATE TABLE IF NOT EXISTS vacations (
		id TEXT PRIMARY KEY,
		brief_description TEXT NOT NULL DEFAULT '',
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		owner_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CHECK (start_date <= end_date)
	);

	CREATE INDEX IF NOT EXISTS idx_vacations_owner_start ON vacations(owner_id, start_date);

	CREATE TABLE IF NOT EXISTS work_sessions (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_work_sessions_owner_start ON work_sessions(owner_id, started_at);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_work_sessions_one_open
		ON work_sessions(owner_id) WHERE ended_at IS NULL;
	`)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithOwnerTx runs fn in a transaction holding the owner's advisory lock.
func (s *Store) WithOwnerTx(ctx context.Context, owner tracking.UserID, fn func(tracking.Store) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, string(owner)); err != nil {
		return fmt.Errorf("failed to lock owner %s: %w", owner, err)
	}
	if err := fn(&queries{q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type queries struct {
	q querier
}

// =============================================================================
// USERS
// =============================================================================

func (s *queries) SaveUser(ctx context.Context, u tracking.User) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO users (id, username, is_staff, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username, is_staff = EXCLUDED.is_staff`,
		string(u.ID), u.Username, u.IsStaff, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return tracking.NewValidationError("username", "already taken")
		}
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (s *queries) GetUser(ctx context.Context, id tracking.UserID) (*tracking.User, error) {
	u, err := scanUser(s.q.QueryRow(ctx,
		`SELECT id, username, is_staff, created_at FROM users WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &tracking.NotFoundError{Kind: "user", ID: string(id)}
	}
	return u, err
}

func (s *queries) GetUserByUsername(ctx context.Context, username string) (*tracking.User, error) {
	u, err := scanUser(s.q.QueryRow(ctx,
		`SELECT id, username, is_staff, created_at FROM users WHERE username = $1`, username))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &tracking.NotFoundError{Kind: "user", ID: username}
	}
	return u, err
}

func (s *queries) ListUsers(ctx context.Context, filter tracking.UserFilter) ([]tracking.User, error) {
	var b queryBuilder
	if filter.IsStaff != nil {
		b.where("is_staff = ?", *filter.IsStaff)
	}
	rows, err := s.q.Query(ctx, `SELECT id, username, is_staff, created_at FROM users`+b.sql()+` ORDER BY username`, b.args...)
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

func scanUser(row pgx.Row) (*tracking.User, error) {
	var (
		u  tracking.User
		id string
	)
	if err := row.Scan(&id, &u.Username, &u.IsStaff, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.ID = tracking.UserID(id)
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

// =============================================================================
// EVENTS
// =============================================================================

const eventColumns = `id, title, description, start_date, end_date, created_by, created_at, updated_at`

func (s *queries) CreateEvent(ctx context.Context, e tracking.Event) error {
	_, err := s.q.Exec(ctx, `INSERT INTO events (`+eventColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(e.ID), e.Title, e.Description, e.StartDate, e.EndDate,
		string(e.CreatedBy), e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (s *queries) UpdateEvent(ctx context.Context, e tracking.Event) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE events SET title = $1, description = $2, start_date = $3, end_date = $4, updated_at = $5
		WHERE id = $6`,
		e.Title, e.Description, e.StartDate, e.EndDate, e.UpdatedAt, string(e.ID))
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	return requireAffected(tag, "event", string(e.ID))
}

func (s *queries) GetEvent(ctx context.Context, id tracking.EventID) (*tracking.Event, error) {
	e, err := scanEvent(s.q.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &tracking.NotFoundError{Kind: "event", ID: string(id)}
	}
	return e, err
}

func (s *queries) DeleteEvent(ctx context.Context, id tracking.EventID) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM events WHERE id = $1`, string(id))
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return requireAffected(tag, "event", string(id))
}

func (s *queries) ListEvents(ctx context.Context) ([]tracking.Event, error) {
	return s.queryEvents(ctx, `SELECT `+eventColumns+` FROM events ORDER BY start_date DESC, id`)
}

func (s *queries) FindOverlappingEvents(ctx context.Context, r clock.Range) ([]tracking.Event, error) {
	return s.queryEvents(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE start_date <= $1 AND end_date >= $2
		ORDER BY start_date, id`, r.End, r.Start)
}

func (s *queries) queryEvents(ctx context.Context, query string, args ...any) ([]tracking.Event, error) {
	rows, err := s.q.Query(ctx, query, args...)
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

func scanEvent(row pgx.Row) (*tracking.Event, error) {
	var (
		e             tracking.Event
		id, createdBy string
	)
	if err := row.Scan(&id, &e.Title, &e.Description, &e.StartDate, &e.EndDate, &createdBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.ID = tracking.EventID(id)
	e.CreatedBy = tracking.UserID(createdBy)
	e.StartDate, e.EndDate = clock.DateOf(e.StartDate), clock.DateOf(e.EndDate)
	e.CreatedAt, e.UpdatedAt = e.CreatedAt.UTC(), e.UpdatedAt.UTC()
	return &e, nil
}

// =============================================================================
// VACATIONS
// =============================================================================

const vacationColumns = `id, brief_description, start_date, end_date, owner_id, created_at, updated_at`

func (s *queries) CreateVacation(ctx context.Context, v tracking.Vacation) error {
	_, err := s.q.Exec(ctx, `INSERT INTO vacations (`+vacationColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(v.ID), v.BriefDescription, v.StartDate, v.EndDate, string(v.OwnerID), v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert vacation: %w", err)
	}
	return nil
}

func (s *queries) UpdateVacation(ctx context.Context, v tracking.Vacation) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE vacations SET brief_description = $1, start_date = $2, end_date = $3, updated_at = $4
		WHERE id = $5`,
		v.BriefDescription, v.StartDate, v.EndDate, v.UpdatedAt, string(v.ID))
	if err != nil {
		return fmt.Errorf("failed to update vacation: %w", err)
	}
	return requireAffected(tag, "vacation", string(v.ID))
}

func (s *queries) GetVacation(ctx context.Context, id tracking.VacationID) (*tracking.Vacation, error) {
	v, err := scanVacation(s.q.QueryRow(ctx, `SELECT `+vacationColumns+` FROM vacations WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &tracking.NotFoundError{Kind: "vacation", ID: string(id)}
	}
	return v, err
}

func (s *queries) DeleteVacation(ctx context.Context, id tracking.VacationID) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM vacations WHERE id = $1`, string(id))
	if err != nil {
		return fmt.Errorf("failed to delete vacation: %w", err)
	}
	return requireAffected(tag, "vacation", string(id))
}

func (s *queries) ListVacations(ctx context.Context, filter tracking.VacationFilter) ([]tracking.Vacation, error) {
	var b queryBuilder
	if filter.OwnerID != "" {
		b.where("owner_id = ?", string(filter.OwnerID))
	}
	if filter.StartFrom != nil {
		b.where("start_date >= ?", *filter.StartFrom)
	}
	rows, err := s.q.Query(ctx, `SELECT `+vacationColumns+` FROM vacations`+b.sql()+` ORDER BY start_date DESC, id`, b.args...)
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

func scanVacation(row pgx.Row) (*tracking.Vacation, error) {
	var (
		v         tracking.Vacation
		id, owner string
	)
	if err := row.Scan(&id, &v.BriefDescription, &v.StartDate, &v.EndDate, &owner, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	v.ID = tracking.VacationID(id)
	v.OwnerID = tracking.UserID(owner)
	v.StartDate, v.EndDate = clock.DateOf(v.StartDate), clock.DateOf(v.EndDate)
	v.CreatedAt, v.UpdatedAt = v.CreatedAt.UTC(), v.UpdatedAt.UTC()
	return &v, nil
}

// =============================================================================
// WORK SESSIONS
// =============================================================================

const sessionColumns = `id, owner_id, started_at, ended_at, created_at, updated_at`

func (s *queries) CreateWorkSession(ctx context.Context, ws tracking.WorkSession) error {
	_, err := s.q.Exec(ctx, `INSERT INTO work_sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		string(ws.ID), string(ws.OwnerID), ws.StartedAt, ws.EndedAt, ws.CreatedAt, ws.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return tracking.ErrAlreadyCheckedIn
		}
		return fmt.Errorf("failed to insert work session: %w", err)
	}
	return nil
}

func (s *queries) CloseWorkSession(ctx context.Context, id tracking.WorkSessionID, endedAt time.Time) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE work_sessions SET ended_at = $1, updated_at = $1
		WHERE id = $2 AND ended_at IS NULL`, endedAt, string(id))
	if err != nil {
		return fmt.Errorf("failed to close work session: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := s.GetWorkSession(ctx, id); err != nil {
		return err
	}
	return tracking.ErrNotCheckedIn
}

func (s *queries) GetWorkSession(ctx context.Context, id tracking.WorkSessionID) (*tracking.WorkSession, error) {
	ws, err := scanSession(s.q.QueryRow(ctx, `SELECT `+sessionColumns+` FROM work_sessions WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &tracking.NotFoundError{Kind: "work session", ID: string(id)}
	}
	return ws, err
}

func (s *queries) GetOpenWorkSession(ctx context.Context, owner tracking.UserID) (*tracking.WorkSession, error) {
	ws, err := scanSession(s.q.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM work_sessions WHERE owner_id = $1 AND ended_at IS NULL`, string(owner)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, tracking.ErrNotCheckedIn
	}
	return ws, err
}

func (s *queries) ListWorkSessions(ctx context.Context, filter tracking.WorkSessionFilter) ([]tracking.WorkSession, error) {
	var b queryBuilder
	if filter.OwnerID != "" {
		b.where("owner_id = ?", string(filter.OwnerID))
	}
	if filter.StartedFrom != nil {
		b.where("started_at >= ?", *filter.StartedFrom)
	}
	if filter.StartedTo != nil {
		b.where("started_at <= ?", *filter.StartedTo)
	}
	if filter.ClosedOnly {
		b.where("ended_at IS NOT NULL")
	}
	if filter.NonStaffOnly {
		b.where("owner_id IN (SELECT id FROM users WHERE NOT is_staff)")
	}
	rows, err := s.q.Query(ctx, `SELECT `+sessionColumns+` FROM work_sessions`+b.sql()+` ORDER BY started_at DESC, id`, b.args...)
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

func scanSession(row pgx.Row) (*tracking.WorkSession, error) {
	var (
		ws        tracking.WorkSession
		id, owner string
		ended     *time.Time
	)
	if err := row.Scan(&id, &owner, &ws.StartedAt, &ended, &ws.CreatedAt, &ws.UpdatedAt); err != nil {
		return nil, err
	}
	ws.ID = tracking.WorkSessionID(id)
	ws.OwnerID = tracking.UserID(owner)
	ws.StartedAt = ws.StartedAt.UTC()
	if ended != nil {
		end := ended.UTC()
		ws.EndedAt = &end
	}
	ws.CreatedAt, ws.UpdatedAt = ws.CreatedAt.UTC(), ws.UpdatedAt.UTC()
	return &ws, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// queryBuilder numbers "?" placeholders as $1, $2, ... in order of appearance.
type queryBuilder struct {
	conds []string
	args  []any
}

func (b *queryBuilder) where(cond string, args ...any) {
	for _, a := range args {
		b.args = append(b.args, a)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(b.args)), 1)
	}
	b.conds = append(b.conds, cond)
}

func (b *queryBuilder) sql() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

func requireAffected(tag pgconn.CommandTag, kind, id string) error {
	if tag.RowsAffected() == 0 {
		return &tracking.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode
}
