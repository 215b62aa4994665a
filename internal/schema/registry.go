package schema

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// TableSchema is the persisted record of a cached RemoteTable's physical
// schema: the registry's sole source of truth.
type TableSchema struct {
	RemoteTableID   string
	LocalTableName  string
	Catalog         []RemoteField
	FieldColumns    map[string]FieldColumns // by slug
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Registry persists the remote_table_id -> physical-schema mapping in
// cache_table_registry and drives CREATE/ALTER TABLE statements.
type Registry struct {
	db *sql.DB
}

// NewRegistry wraps db. It does not create the registry table itself —
// EnsureRegistryTable does (it must run before the registry is used).
func NewRegistry(db *sql.DB) *Registry {
	return &Registry{db: db}
}

// EnsureRegistryTable creates cache_table_registry if absent. Idempotent.
func EnsureRegistryTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS cache_table_registry (
			remote_table_id TEXT PRIMARY KEY,
			local_table_name TEXT NOT NULL,
			field_catalog TEXT NOT NULL,
			field_columns TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("schema: create registry table: %w", err)
	}
	return nil
}

// LocalTableName derives the physical table name for a remote table,
// sanitising both the human name and the opaque id into the
// cache_records_<name>_<id> shape from spec §6.
func LocalTableName(remoteTableID, remoteTableLabel string) string {
	name := sanitizeOne(remoteTableLabel)
	if name == "" {
		name = "table"
	}
	id := sanitizeOne(remoteTableID)
	if id == "" {
		id = "unknown"
	}
	return fmt.Sprintf("cache_records_%s_%s", name, id)
}

// Get loads the stored schema for remoteTableID, or (nil, nil) if absent.
func (r *Registry) Get(ctx context.Context, remoteTableID string) (*TableSchema, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT local_table_name, field_catalog, field_columns, created_at, updated_at
		FROM cache_table_registry WHERE remote_table_id = ?
	`, remoteTableID)

	var localName, catalogJSON, columnsJSON, createdAt, updatedAt string
	if err := row.Scan(&localName, &catalogJSON, &columnsJSON, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("schema: load registry row for %q: %w", remoteTableID, err)
	}

	var catalog []RemoteField
	if err := json.Unmarshal([]byte(catalogJSON), &catalog); err != nil {
		return nil, fmt.Errorf("schema: decode field catalog for %q: %w", remoteTableID, err)
	}
	var columns map[string]FieldColumns
	if err := json.Unmarshal([]byte(columnsJSON), &columns); err != nil {
		return nil, fmt.Errorf("schema: decode field columns for %q: %w", remoteTableID, err)
	}
	createdT, _ := time.Parse(time.RFC3339, createdAt)
	updatedT, _ := time.Parse(time.RFC3339, updatedAt)

	return &TableSchema{
		RemoteTableID:  remoteTableID,
		LocalTableName: localName,
		Catalog:        catalog,
		FieldColumns:   columns,
		CreatedAt:      createdT,
		UpdatedAt:      updatedT,
	}, nil
}

// Put inserts or overwrites the registry row for a schema (registry is the
// source of truth; Put is called after any successful CREATE/ALTER).
func (r *Registry) Put(ctx context.Context, ts *TableSchema, now time.Time) error {
	catalogJSON, err := json.Marshal(ts.Catalog)
	if err != nil {
		return fmt.Errorf("schema: encode field catalog: %w", err)
	}
	columnsJSON, err := json.Marshal(ts.FieldColumns)
	if err != nil {
		return fmt.Errorf("schema: encode field columns: %w", err)
	}
	createdAt := ts.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO cache_table_registry (remote_table_id, local_table_name, field_catalog, field_columns, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (remote_table_id) DO UPDATE SET
			local_table_name = excluded.local_table_name,
			field_catalog = excluded.field_catalog,
			field_columns = excluded.field_columns,
			updated_at = excluded.updated_at
	`, ts.RemoteTableID, ts.LocalTableName, string(catalogJSON), string(columnsJSON),
		createdAt.UTC().Format(time.RFC3339), now.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("schema: upsert registry row for %q: %w", ts.RemoteTableID, err)
	}
	return nil
}

// Delete removes the registry row for remoteTableID. The Engine's
// invalidation paths do not call it; they only expire rows.
func (r *Registry) Delete(ctx context.Context, remoteTableID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cache_table_registry WHERE remote_table_id = ?`, remoteTableID)
	if err != nil {
		return fmt.Errorf("schema: delete registry row for %q: %w", remoteTableID, err)
	}
	return nil
}

// BuildCreateTableSQL produces the CREATE TABLE statement for a freshly
// synthesised field->columns mapping, plus bookkeeping columns.
func BuildCreateTableSQL(localTable string, allColumns map[string]FieldColumns) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n\tid TEXT PRIMARY KEY", localTable)
	for _, fc := range orderedFieldColumns(allColumns) {
		for _, c := range fc.Columns {
			fmt.Fprintf(&b, ",\n\t%s %s", c.Name, c.SQLType)
		}
	}
	b.WriteString(",\n\tcached_at TEXT NOT NULL")
	b.WriteString(",\n\texpires_at TEXT NOT NULL")
	b.WriteString("\n)")
	return b.String()
}

// orderedFieldColumns returns the map's values in a stable (slug-sorted)
// order so generated DDL is deterministic across runs.
func orderedFieldColumns(m map[string]FieldColumns) []FieldColumns {
	slugs := make([]string, 0, len(m))
	for s := range m {
		slugs = append(slugs, s)
	}
	sort.Strings(slugs)
	out := make([]FieldColumns, 0, len(m))
	for _, s := range slugs {
		out = append(out, m[s])
	}
	return out
}

// BuildIndexSQL returns the CREATE INDEX IF NOT EXISTS statements for a
// table's indexed columns, always including expires_at.
func BuildIndexSQL(localTable string, allColumns map[string]FieldColumns) []string {
	stmts := []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_expires_at ON %s(expires_at)", localTable, localTable),
	}
	for _, fc := range orderedFieldColumns(allColumns) {
		for _, name := range IndexColumnsFor(fc) {
			idxName := fmt.Sprintf("idx_%s_%s", localTable, name)
			stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)", idxName, localTable, name))
		}
	}
	return stmts
}
