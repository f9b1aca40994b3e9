/*
Package postgres provides a PostgreSQL implementation of leave.Store on a
pgx connection pool.

PURPOSE:
  Multi-node persistence with the same tables and semantics as
  store/sqlite. Selected by cmd/server when DATABASE_URL is set.

CONDITIONAL WRITES:
  UpdateStatus is a single UPDATE ... WHERE id = $1 AND status = $2.
  Under READ COMMITTED the second of two concurrent updates re-evaluates
  the WHERE clause after the first commits and matches zero rows.

TYPES:
  Dates are DATE columns exchanged as YYYY-MM-DD text; day quantities are
  NUMERIC exchanged as decimal text so no float conversion happens.

SEE ALSO:
  - store/sqlite: Same schema for SQLite
  - leave/store.go: Interface definitions
*/
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/holiday"
	"github.com/warp/leave-engine/leave"
)

// Store implements leave.Store on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ leave.Store = (*Store)(nil)

// Connect opens a pool and migrates the schema.
func Connect(ctx context.Context, databaseURL string) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// New wraps an existing pool without migrating.
func New(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
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

	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		start_half BOOLEAN NOT NULL DEFAULT FALSE,
		end_half BOOLEAN NOT NULL DEFAULT FALSE,
		year INT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		last_event TEXT NOT NULL,
		days_count NUMERIC(6,1) NOT NULL,
		total_days NUMERIC(6,1) NOT NULL,
		decided_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CHECK (start_date <= end_date)
	);
	CREATE INDEX IF NOT EXISTS idx_requests_user_range ON leave_requests(user_id, start_date, end_date);
	CREATE INDEX IF NOT EXISTS idx_requests_user_year ON leave_requests(user_id, year);
	CREATE INDEX IF NOT EXISTS idx_requests_tenant_status ON leave_requests(tenant_id, status);

	CREATE TABLE IF NOT EXISTS entitlements (
		user_id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		year INT NOT NULL,
		total_days NUMERIC(6,1) NOT NULL,
		adjustment NUMERIC(6,1) NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (user_id, year)
	);

	CREATE TABLE IF NOT EXISTS holiday_tables (
		tenant_id TEXT PRIMARY KEY,
		table_json JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_log (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		tenant_id TEXT NOT NULL,
		request_id TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		event TEXT NOT NULL,
		from_status TEXT NOT NULL DEFAULT '',
		to_status TEXT NOT NULL DEFAULT '',
		at TIMESTAMPTZ NOT NULL,
		note TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_audit_request ON audit_log(request_id, seq);
	`)
	return err
}

// =============================================================================
// REQUESTS
// =============================================================================

const requestColumns = `id, tenant_id, user_id, start_date::text, end_date::text, start_half, end_half,
	note, status, last_event, days_count::text, total_days::text, decided_by, created_at, updated_at`

func (s *Store) CreateRequest(ctx context.Context, r leave.LeaveRequest) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO leave_requests
		(id, tenant_id, user_id, start_date, end_date, start_half, end_half, year,
		 note, status, last_event, days_count, total_days, decided_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		string(r.ID), string(r.TenantID), string(r.UserID),
		r.Range.Start.String(), r.Range.End.String(),
		r.Half.StartHalf, r.Half.EndHalf, r.Year(),
		r.Note, string(r.Status), string(r.LastEvent),
		r.DaysCount.String(), r.TotalDays.String(), string(r.DecidedBy),
		r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (s *Store) GetRequest(ctx context.Context, id generic.RequestID) (*leave.LeaveRequest, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM leave_requests WHERE id = $1`, string(id))
	r, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
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
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.TenantID != "" {
		where = append(where, "tenant_id = "+arg(string(f.TenantID)))
	}
	if len(f.UserIDs) > 0 {
		ids := make([]string, len(f.UserIDs))
		for i, id := range f.UserIDs {
			ids[i] = string(id)
		}
		where = append(where, "user_id = ANY("+arg(ids)+")")
	}
	if len(f.Statuses) > 0 {
		sts := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			sts[i] = string(st)
		}
		where = append(where, "status = ANY("+arg(sts)+")")
	}
	if f.Overlapping != nil {
		where = append(where, "start_date <= "+arg(f.Overlapping.End.String())+"::date")
		where = append(where, "end_date >= "+arg(f.Overlapping.Start.String())+"::date")
	}
	if f.Year != 0 {
		where = append(where, "year = "+arg(f.Year))
	}

	query := `SELECT ` + requestColumns + ` FROM leave_requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_date ASC, id ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query requests: %w", err)
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
	decided := u.Event == leave.EventApprove || u.Event == leave.EventReject
	tag, err := s.pool.Exec(ctx, `
		UPDATE leave_requests
		SET status = $1, last_event = $2, updated_at = $3,
		    decided_by = CASE WHEN $4::boolean THEN $5::text ELSE decided_by END
		WHERE id = $6 AND status = $7`,
		string(u.Next), string(u.Event), u.At, decided, string(u.DecidedBy), string(u.ID), string(u.Expected),
	)
	if err != nil {
		return false, fmt.Errorf("update request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetRequest(ctx, u.ID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *Store) DeleteRequest(ctx context.Context, id generic.RequestID, expected leave.Status) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM leave_requests WHERE id = $1 AND status = $2`, string(id), string(expected))
	if err != nil {
		return false, fmt.Errorf("delete request: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanRequest(row pgx.Row) (leave.LeaveRequest, error) {
	var (
		r                      leave.LeaveRequest
		id, tenant, user       string
		start, end             string
		status, event, decided string
		days, total            string
	)
	err := row.Scan(&id, &tenant, &user, &start, &end, &r.Half.StartHalf, &r.Half.EndHalf,
		&r.Note, &status, &event, &days, &total, &decided, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return r, err
	}
	r.ID, r.TenantID, r.UserID, r.DecidedBy = generic.RequestID(id), generic.TenantID(tenant), generic.UserID(user), generic.UserID(decided)
	if r.Range.Start, err = generic.ParseDate(start); err != nil {
		return r, err
	}
	if r.Range.End, err = generic.ParseDate(end); err != nil {
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
	return r, nil
}

// =============================================================================
// USERS
// =============================================================================

func (s *Store) SaveUser(ctx context.Context, u leave.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, tenant_id, email, name, role, supervisor_id, employment, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id, email = EXCLUDED.email, name = EXCLUDED.name,
			role = EXCLUDED.role, supervisor_id = EXCLUDED.supervisor_id,
			employment = EXCLUDED.employment, active = EXCLUDED.active`,
		string(u.ID), string(u.TenantID), u.Email, u.Name, string(u.Role),
		string(u.SupervisorID), string(u.Employment), u.Active,
	)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id generic.UserID) (*leave.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, email, name, role, supervisor_id, employment, active
		FROM users WHERE id = $1`, string(id))
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, generic.ErrUserNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context, tenant generic.TenantID) ([]leave.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, email, name, role, supervisor_id, employment, active
		FROM users WHERE $1::text = '' OR tenant_id = $1 ORDER BY id`, string(tenant))
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	out := make([]leave.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func scanUser(row pgx.Row) (leave.User, error) {
	var (
		u                                   leave.User
		id, tenant, role, super, employment string
	)
	err := row.Scan(&id, &tenant, &u.Email, &u.Name, &role, &super, &employment, &u.Active)
	u.ID, u.TenantID, u.SupervisorID = generic.UserID(id), generic.TenantID(tenant), generic.UserID(super)
	u.Role, u.Employment = leave.Role(role), leave.EmploymentType(employment)
	return u, err
}

// =============================================================================
// ENTITLEMENTS
// =============================================================================

func (s *Store) GetEntitlement(ctx context.Context, user generic.UserID, year int) (*leave.EntitlementRecord, error) {
	var (
		rec               leave.EntitlementRecord
		userID, tenant    string
		total, adjustment string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, tenant_id, year, total_days::text, adjustment::text, updated_at
		FROM entitlements WHERE user_id = $1 AND year = $2`, string(user), year,
	).Scan(&userID, &tenant, &rec.Year, &total, &adjustment, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rec.UserID, rec.TenantID = generic.UserID(userID), generic.TenantID(tenant)
	if rec.TotalDays, err = generic.ParseDays(total); err != nil {
		return nil, err
	}
	if rec.Adjustment, err = generic.ParseDays(adjustment); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Store) SaveEntitlement(ctx context.Context, rec leave.EntitlementRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO entitlements (user_id, tenant_id, year, total_days, adjustment, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6)
		ON CONFLICT (user_id, year) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id, total_days = EXCLUDED.total_days,
			adjustment = EXCLUDED.adjustment, updated_at = EXCLUDED.updated_at`,
		string(rec.UserID), string(rec.TenantID), rec.Year,
		rec.TotalDays.String(), rec.Adjustment.String(), rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save entitlement: %w", err)
	}
	return nil
}

// =============================================================================
// HOLIDAY TABLES
// =============================================================================

func (s *Store) GetHolidayTable(ctx context.Context, tenant generic.TenantID) (*holiday.Table, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT table_json FROM holiday_tables WHERE tenant_id = $1`, string(tenant)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var t holiday.Table
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode holiday table of %s: %w", tenant, err)
	}
	return &t, nil
}

func (s *Store) SaveHolidayTable(ctx context.Context, tenant generic.TenantID, t holiday.Table) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO holiday_tables (tenant_id, table_json, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (tenant_id) DO UPDATE SET table_json = EXCLUDED.table_json, updated_at = EXCLUDED.updated_at`,
		string(tenant), raw,
	)
	if err != nil {
		return fmt.Errorf("save holiday table: %w", err)
	}
	return nil
}

func (s *Store) ListHolidayTables(ctx context.Context) (map[generic.TenantID]holiday.Table, error) {
	rows, err := s.pool.Query(ctx, `SELECT tenant_id, table_json FROM holiday_tables`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[generic.TenantID]holiday.Table)
	for rows.Next() {
		var (
			tenant string
			raw    []byte
			t      holiday.Table
		)
		if err := rows.Scan(&tenant, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("decode holiday table of %s: %w", tenant, err)
		}
		out[generic.TenantID(tenant)] = t
	}
	return out, rows.Err()
}

// =============================================================================
// AUDIT
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, e leave.AuditEntry) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log (id, tenant_id, request_id, actor_id, event, from_status, to_status, at, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, string(e.TenantID), string(e.RequestID), string(e.ActorID),
		string(e.Event), string(e.From), string(e.To), e.At, e.Note,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *Store) ListAudit(ctx context.Context, id generic.RequestID) ([]leave.AuditEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, request_id, actor_id, event, from_status, to_status, at, note
		FROM audit_log WHERE request_id = $1 ORDER BY seq`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]leave.AuditEntry, 0)
	for rows.Next() {
		var (
			e                                    leave.AuditEntry
			tenant, req, actor, event, from, to string
		)
		if err := rows.Scan(&e.ID, &tenant, &req, &actor, &event, &from, &to, &e.At, &e.Note); err != nil {
			return nil, err
		}
		e.TenantID, e.RequestID, e.ActorID = generic.TenantID(tenant), generic.RequestID(req), generic.UserID(actor)
		e.Event, e.From, e.To = leave.Event(event), leave.Status(from), leave.Status(to)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Reset clears all data (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE audit_log, leave_requests, entitlements, holiday_tables, users`)
	return err
}
