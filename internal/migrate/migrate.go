// Package migrate detects legacy store schemas (old table names, integer
// timestamps, obsolete columns) on open and rewrites them in place,
// idempotently, before the engine runs any normal cache operation.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Run executes every migration step, in order. Each step is independently
// idempotent: running Run twice against an already-migrated store is a
// no-op.
func Run(ctx context.Context, db *sql.DB) error {
	if err := renameLegacyRegistry(ctx, db); err != nil {
		return fmt.Errorf("migrate: rename legacy registry: %w", err)
	}
	for _, table := range []string{"cache_table_registry", "cache_ttl_config", "cache_stats", "api_call_log", "api_stats_summary"} {
		if err := rewriteIntegerTimestamps(ctx, db, table); err != nil {
			return fmt.Errorf("migrate: rewrite timestamps on %s: %w", table, err)
		}
	}
	if err := rewriteCachedTablesSchema(ctx, db); err != nil {
		return fmt.Errorf("migrate: rewrite cached_tables: %w", err)
	}
	if err := addDeletedDateToCachedMembers(ctx, db); err != nil {
		return fmt.Errorf("migrate: add deleted_date to cached_members: %w", err)
	}
	return nil
}

func tableExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var found string
	err := db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, name,
	).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func columnInfo(ctx context.Context, db *sql.DB, table string) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols := make(map[string]string)
	for rows.Next() {
		var cid int
		var name, colType string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols[name] = colType
	}
	return cols, rows.Err()
}

// Step 1: rename the legacy registry table name to the current one, or
// drop the legacy one if both exist (the current one wins).
func renameLegacyRegistry(ctx context.Context, db *sql.DB) error {
	legacyExists, err := tableExists(ctx, db, "cached_table_schemas")
	if err != nil {
		return err
	}
	if !legacyExists {
		return nil
	}
	currentExists, err := tableExists(ctx, db, "cache_table_registry")
	if err != nil {
		return err
	}
	if currentExists {
		_, err := db.ExecContext(ctx, "DROP TABLE cached_table_schemas")
		return err
	}
	_, err = db.ExecContext(ctx, "ALTER TABLE cached_table_schemas RENAME TO cache_table_registry")
	return err
}

// Step 2: rewrite a table's timestamp column (one of the exact names
// recognised by isTimestampColumnName) stored as INTEGER (unix epoch) into
// TEXT ISO-8601, by rebuilding the table. At most one such column is
// rewritten per call; when several qualify, which one is not defined.
func rewriteIntegerTimestamps(ctx context.Context, db *sql.DB, table string) error {
	exists, err := tableExists(ctx, db, table)
	if err != nil || !exists {
		return err
	}
	cols, err := columnInfo(ctx, db, table)
	if err != nil {
		return err
	}

	tsColumn := ""
	for name, colType := range cols {
		if isTimestampColumnName(name) && colType == "INTEGER" {
			tsColumn = name
			break
		}
	}
	if tsColumn == "" {
		return nil // already TEXT, or no recognised timestamp column
	}

	tmpTable := table + "_migrate_tmp"
	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+tmpTable); err != nil {
		return err
	}

	colDefs := make([]string, 0, len(cols))
	colNames := make([]string, 0, len(cols))
	selectExprs := make([]string, 0, len(cols))
	for name, colType := range cols {
		colNames = append(colNames, name)
		if name == tsColumn {
			colDefs = append(colDefs, name+" TEXT")
			selectExprs = append(selectExprs, "datetime("+name+", 'unixepoch')")
		} else {
			colDefs = append(colDefs, name+" "+colType)
			selectExprs = append(selectExprs, name)
		}
	}

	createSQL := "CREATE TABLE " + tmpTable + " (" + strings.Join(colDefs, ", ") + ")"
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		return err
	}
	insertSQL := "INSERT INTO " + tmpTable + " (" + strings.Join(colNames, ", ") + ") SELECT " +
		strings.Join(selectExprs, ", ") + " FROM " + table
	if _, err := db.ExecContext(ctx, insertSQL); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "DROP TABLE "+table); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "ALTER TABLE "+tmpTable+" RENAME TO "+table); err != nil {
		return err
	}
	return recreateIndexesFor(ctx, db, table)
}

func isTimestampColumnName(name string) bool {
	switch name {
	case "updated_at", "created_at", "last_access", "timestamp", "called_at":
		return true
	default:
		return false
	}
}

// recreateIndexesFor rebuilds the standard bookkeeping index for a
// migrated table, matching the indexes each migrated table is expected to
// carry after a rebuild.
func recreateIndexesFor(ctx context.Context, db *sql.DB, table string) error {
	switch table {
	case "cache_table_registry":
		_, err := db.ExecContext(ctx,
			"CREATE INDEX IF NOT EXISTS idx_cache_table_registry_remote_table_id ON cache_table_registry (remote_table_id)")
		return err
	case "cache_ttl_config":
		_, err := db.ExecContext(ctx,
			"CREATE INDEX IF NOT EXISTS idx_cache_ttl_config_remote_table_id ON cache_ttl_config (remote_table_id)")
		return err
	case "cache_stats":
		_, err := db.ExecContext(ctx,
			"CREATE INDEX IF NOT EXISTS idx_cache_stats_remote_table_id ON cache_stats (remote_table_id)")
		return err
	default:
		return nil
	}
}

var cachedTablesObsoleteColumns = []string{"description", "updated", "updated_by", "deleted_date", "deleted_by", "record_count"}

var cachedTablesCurrentColumns = []string{
	"remote_table_id", "solution_id", "name", "status", "hidden", "icon", "primary_field",
	"table_order", "permissions", "field_permissions", "record_term",
	"fields_count_total", "fields_count_linkedrecordfield", "cached_at", "expires_at",
}

// Step 3: rebuild cached_tables if it still carries the obsolete column
// set, adding the current columns and preserving surviving column data.
func rewriteCachedTablesSchema(ctx context.Context, db *sql.DB) error {
	exists, err := tableExists(ctx, db, "cached_tables")
	if err != nil || !exists {
		return err
	}
	cols, err := columnInfo(ctx, db, "cached_tables")
	if err != nil {
		return err
	}

	hasObsolete := false
	for _, name := range cachedTablesObsoleteColumns {
		if _, ok := cols[name]; ok {
			hasObsolete = true
			break
		}
	}
	if !hasObsolete {
		return nil
	}

	tmpTable := "cached_tables_migrate_tmp"
	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+tmpTable); err != nil {
		return err
	}
	createSQL := `CREATE TABLE ` + tmpTable + ` (
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
	)`
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		return err
	}

	selectExprs := make([]string, len(cachedTablesCurrentColumns))
	for i, name := range cachedTablesCurrentColumns {
		if _, ok := cols[name]; ok {
			selectExprs[i] = name
		} else {
			selectExprs[i] = "NULL"
		}
	}
	insertSQL := "INSERT INTO " + tmpTable + " (" + strings.Join(cachedTablesCurrentColumns, ", ") + ") SELECT " +
		strings.Join(selectExprs, ", ") + " FROM cached_tables"
	if _, err := db.ExecContext(ctx, insertSQL); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "DROP TABLE cached_tables"); err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "ALTER TABLE "+tmpTable+" RENAME TO cached_tables"); err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_cached_tables_solution_id ON cached_tables (solution_id)")
	return err
}

// Step 4: add deleted_date to cached_members if missing.
func addDeletedDateToCachedMembers(ctx context.Context, db *sql.DB) error {
	exists, err := tableExists(ctx, db, "cached_members")
	if err != nil || !exists {
		return err
	}
	cols, err := columnInfo(ctx, db, "cached_members")
	if err != nil {
		return err
	}
	if _, ok := cols["deleted_date"]; ok {
		return nil
	}
	_, err = db.ExecContext(ctx, "ALTER TABLE cached_members ADD COLUMN deleted_date TEXT")
	return err
}

