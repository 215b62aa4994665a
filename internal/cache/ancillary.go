package cache

import (
	"context"
	"database/sql"
	"time"
)

// ensureAncillaryTables creates the fixed-column ancillary caches
// (solutions, tables, members, teams) if they don't already exist. Each
// carries its own expires_at bookkeeping column (§3).
func ensureAncillaryTables(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS cached_solutions (
			remote_solution_id TEXT PRIMARY KEY,
			name TEXT,
			cached_at TEXT NOT NULL,
			expires_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cached_tables (
			remote_table_id TEXT PRIMARY KEY,
			solution_id TEXT,
			name TEXT,
			status TEXT,
			hidden INTEGER,
			icon TEXT,
			primary_field TEXT,
			table_order INTEGER,
			permissions TEXT,
			field_permissions TEXT,
			record_term TEXT,
			fields_count_total INTEGER,
			fields_count_linkedrecordfield INTEGER,
			cached_at TEXT NOT NULL,
			expires_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cached_members (
			remote_member_id TEXT PRIMARY KEY,
			name TEXT,
			email TEXT,
			deleted_date TEXT,
			cached_at TEXT NOT NULL,
			expires_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cached_teams (
			remote_team_id TEXT PRIMARY KEY,
			name TEXT,
			cached_at TEXT NOT NULL,
			expires_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cached_tables_solution_id ON cached_tables (solution_id)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return wrapDBError("ensure ancillary tables", err)
		}
	}
	return nil
}

func (e *Engine) ancillaryWindow(ctx context.Context, tableID string, ttl *time.Duration) (cachedAt, expiresAt string, err error) {
	now := time.Now().UTC()
	eff, err := e.effectiveTTL(ctx, tableID, ttl)
	if err != nil {
		return "", "", err
	}
	return now.Format(time.RFC3339), now.Add(eff).Format(time.RFC3339), nil
}

// UpsertCachedSolution inserts or replaces one cached_solutions row.
func (e *Engine) UpsertCachedSolution(ctx context.Context, id, name string, ttl *time.Duration) error {
	cachedAt, expiresAt, err := e.ancillaryWindow(ctx, "cached_solutions", ttl)
	if err != nil {
		return err
	}
	_, err = e.db.ExecContext(ctx, `
		INSERT INTO cached_solutions (remote_solution_id, name, cached_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (remote_solution_id) DO UPDATE SET
			name = excluded.name, cached_at = excluded.cached_at, expires_at = excluded.expires_at
	`, id, name, cachedAt, expiresAt)
	return wrapDBError("upsert cached solution", err)
}

// CachedTableMeta is the fixed-column list-metadata row for one
// RemoteTable, stored in cached_tables alongside each cache's physical
// LocalTable.
type CachedTableMeta struct {
	ID                          string
	SolutionID                  string
	Name                        string
	Status                      string
	Hidden                      bool
	Icon                        string
	PrimaryField                string
	TableOrder                  int
	Permissions                 string
	FieldPermissions            string
	RecordTerm                  string
	FieldsCountTotal            int
	FieldsCountLinkedRecordField int
}

// UpsertCachedTable inserts or replaces one cached_tables row.
func (e *Engine) UpsertCachedTable(ctx context.Context, m CachedTableMeta, ttl *time.Duration) error {
	cachedAt, expiresAt, err := e.ancillaryWindow(ctx, "cached_tables", ttl)
	if err != nil {
		return err
	}
	_, err = e.db.ExecContext(ctx, `
		INSERT INTO cached_tables (
			remote_table_id, solution_id, name, status, hidden, icon, primary_field,
			table_order, permissions, field_permissions, record_term,
			fields_count_total, fields_count_linkedrecordfield, cached_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (remote_table_id) DO UPDATE SET
			solution_id = excluded.solution_id, name = excluded.name, status = excluded.status,
			hidden = excluded.hidden, icon = excluded.icon, primary_field = excluded.primary_field,
			table_order = excluded.table_order, permissions = excluded.permissions,
			field_permissions = excluded.field_permissions, record_term = excluded.record_term,
			fields_count_total = excluded.fields_count_total,
			fields_count_linkedrecordfield = excluded.fields_count_linkedrecordfield,
			cached_at = excluded.cached_at, expires_at = excluded.expires_at
	`, m.ID, m.SolutionID, m.Name, m.Status, boolToInt(m.Hidden), m.Icon, m.PrimaryField,
		m.TableOrder, m.Permissions, m.FieldPermissions, m.RecordTerm,
		m.FieldsCountTotal, m.FieldsCountLinkedRecordField, cachedAt, expiresAt)
	return wrapDBError("upsert cached table", err)
}

// CachedMember is a fixed-column row in cached_members.
type CachedMember struct {
	ID          string
	Name        string
	Email       string
	DeletedDate string
}

// UpsertCachedMember inserts or replaces one cached_members row.
func (e *Engine) UpsertCachedMember(ctx context.Context, m CachedMember, ttl *time.Duration) error {
	cachedAt, expiresAt, err := e.ancillaryWindow(ctx, "cached_members", ttl)
	if err != nil {
		return err
	}
	_, err = e.db.ExecContext(ctx, `
		INSERT INTO cached_members (remote_member_id, name, email, deleted_date, cached_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (remote_member_id) DO UPDATE SET
			name = excluded.name, email = excluded.email, deleted_date = excluded.deleted_date,
			cached_at = excluded.cached_at, expires_at = excluded.expires_at
	`, m.ID, m.Name, m.Email, m.DeletedDate, cachedAt, expiresAt)
	return wrapDBError("upsert cached member", err)
}

// CachedTeam is a fixed-column row in cached_teams.
type CachedTeam struct {
	ID   string
	Name string
}

// UpsertCachedTeam inserts or replaces one cached_teams row.
func (e *Engine) UpsertCachedTeam(ctx context.Context, t CachedTeam, ttl *time.Duration) error {
	cachedAt, expiresAt, err := e.ancillaryWindow(ctx, "cached_teams", ttl)
	if err != nil {
		return err
	}
	_, err = e.db.ExecContext(ctx, `
		INSERT INTO cached_teams (remote_team_id, name, cached_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (remote_team_id) DO UPDATE SET
			name = excluded.name, cached_at = excluded.cached_at, expires_at = excluded.expires_at
	`, t.ID, t.Name, cachedAt, expiresAt)
	return wrapDBError("upsert cached team", err)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
