/*
Package sqlite provides a SQLite-backed implementation of leave.Store.

PURPOSE:
  Single-node persistence for users, leave requests, entitlement records,
  tenant holiday tables and the audit log. The Postgres store in
  store/postgres has the same schema and semantics.

KEY TABLES:
  users:          Request owners with supervisor links
  leave_requests: One row per request; status guarded by conditional UPDATE
  entitlements:   One row per (user, year)
  holiday_tables: One JSON table per tenant
  audit_log:      Append-only lifecycle history

CONDITIONAL WRITES:
  UpdateStatus runs
    UPDATE leave_requests SET status = ? ... WHERE id = ? AND status = ?
  and reports whether a row changed. SQLite serializes writers, so of two
  concurrent approvals exactly one sees RowsAffected == 1.

DATES:
  Calendar dates are stored as TEXT in YYYY-MM-DD form so that string
  comparison is date comparison. Day quantities are stored as decimal
  strings, never REAL.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - leave/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/holiday"
	"github.com/warp/leave-engine/leave"
)

// Store implements leave.Store using SQLite.
type Store struct {
	db *sql.DB
}

var _ leave.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
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

// Ping checks the connection; used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'member',
		supervisor_id TEXT NOT NULL DEFAULT '',
		employment TEXT NOT NULL DEFAULT 'employee',
		active BOOLEAN NOT NULL DEFAULT TRUE
	);

	CREATE INDEX IF NOT EXISTS idx_users_tenant ON users(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_users_supervisor ON users(supervisor_id);

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		start_half BOOLEAN NOT NULL DEFAULT FALSE,
		end_half BOOLEAN NOT NULL DEFAULT FALSE,
		year INTEGER NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		last_event TEXT NOT NULL,
		days_count TEXT NOT NULL,
		total_days TEXT NOT NULL,
		decided_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Hot path: overlap and entitlement lookups per user
	CREATE INDEX IF NOT EXISTS idx_requests_user_range
		ON leave_requests(user_id, start_date, end_date);
	CREATE INDEX IF NOT EXISTS idx_requests_user_year
		ON leave_requests(user_id, year);
	CREATE INDEX IF NOT EXISTS idx_requests_tenant_status
		ON leave_requests(tenant_id, status);

	CREATE TABLE IF NOT EXISTS entitlements (
		user_id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		total_days TEXT NOT NULL,
		adjustment TEXT NOT NULL DEFAULT '0',
		updated_at TEXT NOT NULL,
		PRIMARY KEY (user_id, year)
	);

	CREATE TABLE IF NOT EXISTS holiday_tables (
		tenant_id TEXT PRIMARY KEY,
		table_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		request_id TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		event TEXT NOT NULL,
		from_status TEXT NOT NULL DEFAULT '',
		to_status TEXT NOT NULL DEFAULT '',
		at TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_audit_request ON audit_log(request_id, at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// REQUESTS
// =============================================================================

const requestColumns = `id, tenant_id, user_id, start_date, end_date, start_half, end_half,
	note, status, last_event, days_count, total_days, decided_by, created_at, updated_at`

func (s *Store) CreateRequest(ctx context.Context, r leave.LeaveRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leave_requests
		(id, tenant_id, user_id, start_date, end_date, start_half, end_half, year,
		 note, status, last_event, days_count, total_days, decided_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.TenantID, r.UserID,
		r.Range.Start.String(), r.Range.End.String(),
		r.Half.StartHalf, r.Half.EndHalf, r.Year(),
		r.Note, r.Status, r.LastEvent,
		r.DaysCount.String(), r.TotalDays.String(), r.DecidedBy,
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert request: %w", err)
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id generic.RequestID) (*leave.LeaveRequest, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM leave_requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("request %s: %w", id, generic.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) ListRequests(ctx context.Context, f leave.RequestFilter) ([]leave.LeaveRequest, error) {
	var (
		where []string
		args  []any
	)
	if f.TenantID != "" {
		where = append(where, "tenant_id = ?")
		args = append(args, f.TenantID)
	}
	if len(f.UserIDs) > 0 {
		where = append(where, "user_id IN ("+placeholders(len(f.UserIDs))+")")
		for _, id := range f.UserIDs {
			args = append(args, id)
		}
	}
	if len(f.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, st := range f.Statuses {
			args = append(args, st)
		}
	}
	if f.Overlapping != nil {
		where = append(where, "start_date <= ? AND end_date >= ?")
		args = append(args, f.Overlapping.End.String(), f.Overlapping.Start.String())
	}
	if f.Year != 0 {
		where = append(where, "year = ?")
		args = append(args, f.Year)
	}

	query := `SELECT ` + requestColumns + ` FROM leave_requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_date ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	out := make([]leave.LeaveRequest, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) UpdateStatus(ctx context.Context, u leave.StatusUpdate) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE leave_requests
		SET status = ?, last_event = ?, updated_at = ?,
		    decided_by = CASE WHEN ? IN ('approve', 'reject') THEN ? ELSE decided_by END
		WHERE id = ? AND status = ?`,
		u.Next, u.Event, formatTime(u.At), u.Event, u.DecidedBy, u.ID, u.Expected,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		if _, err := s.GetRequest(ctx, u.ID); err != nil {
			return false, err
		}
	}
	return n == 1, nil
}

func (s *Store) DeleteRequest(ctx context.Context, id generic.RequestID, expected leave.Status) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM leave_requests WHERE id = ? AND status = ?`, id, expected)
	if err != nil {
		return false, fmt.Errorf("failed to delete request: %w", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(sc scanner) (leave.LeaveRequest, error) {
	var (
		r                    leave.LeaveRequest
		start, end           string
		status, event        string
		days, total          string
		createdAt, updatedAt string
	)
	err := sc.Scan(&r.ID, &r.TenantID, &r.UserID, &start, &end, &r.Half.StartHalf, &r.Half.EndHalf,
		&r.Note, &status, &event, &days, &total, &r.DecidedBy, &createdAt, &updatedAt)
	if err != nil {
		return r, err
	}
	if r.Range, err = parseRange(start, end); err != nil {
		return r, err
	}
	if r.Status, err = leave.ParseStatus(status); err != nil {
		return r, err
	}
	if r.LastEvent, err = leave.ParseEvent(event); err != nil {
		return r, err
	}
	if r.DaysCount, err = generic.ParseDays(days); err != nil {
		return r, err
	}
	if r.TotalDays, err = generic.ParseDays(total); err != nil {
		return r, err
	}
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return r, nil
}

// =============================================================================
// USERS
// =============================================================================

func (s *Store) SaveUser(ctx context.Context, u leave.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, tenant_id, email, name, role, supervisor_id, employment, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tenant_id = excluded.tenant_id, email = excluded.email, name = excluded.name,
			role = excluded.role, supervisor_id = excluded.supervisor_id,
			employment = excluded.employment, active = excluded.active`,
		u.ID, u.TenantID, u.Email, u.Name, u.Role, u.SupervisorID, u.Employment, u.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id generic.UserID) (*leave.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, email, name, role, supervisor_id, employment, active
		FROM users WHERE id = ?`, id)
	var u leave.User
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.Name, &u.Role, &u.SupervisorID, &u.Employment, &u.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, generic.ErrUserNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context, tenant generic.TenantID) ([]leave.User, error) {
	query := `SELECT id, tenant_id, email, name, role, supervisor_id, employment, active FROM users`
	var args []any
	if tenant != "" {
		query += ` WHERE tenant_id = ?`
		args = append(args, tenant)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	out := make([]leave.User, 0)
	for rows.Next() {
		var u leave.User
		if err := rows.Scan(&u.ID, &u.TenantID, &u.Email, &u.Name, &u.Role, &u.SupervisorID, &u.Employment, &u.Active); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// =============================================================================
// ENTITLEMENTS
// =============================================================================

func (s *Store) GetEntitlement(ctx context.Context, user generic.UserID, year int) (*leave.EntitlementRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, tenant_id, year, total_days, adjustment, updated_at
		FROM entitlements WHERE user_id = ? AND year = ?`, user, year)
	var (
		rec               leave.EntitlementRecord
		total, adjustment string
		updatedAt         string
	)
	err := row.Scan(&rec.UserID, &rec.TenantID, &rec.Year, &total, &adjustment, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.TotalDays, err = generic.ParseDays(total); err != nil {
		return nil, err
	}
	if rec.Adjustment, err = generic.ParseDays(adjustment); err != nil {
		return nil, err
	}
	rec.UpdatedAt = parseTime(updatedAt)
	return &rec, nil
}

func (s *Store) SaveEntitlement(ctx context.Context, rec leave.EntitlementRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entitlements (user_id, tenant_id, year, total_days, adjustment, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, year) DO UPDATE SET
			tenant_id = excluded.tenant_id, total_days = excluded.total_days,
			adjustment = excluded.adjustment, updated_at = excluded.updated_at`,
		rec.UserID, rec.TenantID, rec.Year, rec.TotalDays.String(), rec.Adjustment.String(), formatTime(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save entitlement: %w", err)
	}
	return nil
}

// =============================================================================
// HOLIDAY TABLES
// =============================================================================

func (s *Store) GetHolidayTable(ctx context.Context, tenant generic.TenantID) (*holiday.Table, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT table_json FROM holiday_tables WHERE tenant_id = ?`, tenant).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var t holiday.Table
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return nil, fmt.Errorf("decode holiday table of %s: %w", tenant, err)
	}
	return &t, nil
}

func (s *Store) SaveHolidayTable(ctx context.Context, tenant generic.TenantID, t holiday.Table) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO holiday_tables (tenant_id, table_json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(tenant_id) DO UPDATE SET table_json = excluded.table_json, updated_at = excluded.updated_at`,
		tenant, string(raw), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save holiday table: %w", err)
	}
	return nil
}

func (s *Store) ListHolidayTables(ctx context.Context) (map[generic.TenantID]holiday.Table, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tenant_id, table_json FROM holiday_tables`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[generic.TenantID]holiday.Table)
	for rows.Next() {
		var (
			tenant generic.TenantID
			raw    string
			t      holiday.Table
		)
		if err := rows.Scan(&tenant, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			return nil, fmt.Errorf("decode holiday table of %s: %w", tenant, err)
		}
		out[tenant] = t
	}
	return out, rows.Err()
}

// =============================================================================
// AUDIT
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, e leave.AuditEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, tenant_id, request_id, actor_id, event, from_status, to_status, at, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TenantID, e.RequestID, e.ActorID, e.Event, e.From, e.To, formatTime(e.At), e.Note,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *Store) ListAudit(ctx context.Context, id generic.RequestID) ([]leave.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, request_id, actor_id, event, from_status, to_status, at, note
		FROM audit_log WHERE request_id = ? ORDER BY at ASC, rowid ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]leave.AuditEntry, 0)
	for rows.Next() {
		var (
			e  leave.AuditEntry
			at string
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &e.RequestID, &e.ActorID, &e.Event, &e.From, &e.To, &at, &e.Note); err != nil {
			return nil, err
		}
		e.At = parseTime(at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Reset clears all data (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	for _, table := range []string{"audit_log", "leave_requests", "entitlements", "holiday_tables", "users"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseRange(start, end string) (generic.Period, error) {
	s, err := generic.ParseDate(start)
	if err != nil {
		return generic.Period{}, err
	}
	e, err := generic.ParseDate(end)
	if err != nil {
		return generic.Period{}, err
	}
	return generic.Period{Start: s, End: e}, nil
}
