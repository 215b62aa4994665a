package migrate

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+t.TempDir()+"/migrate.db")
	require.NoError(t, err, "open")
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunOnFreshDBIsNoop(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, Run(context.Background(), db), "run")
}

func TestRunIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	_, err := db.Exec(`CREATE TABLE cached_table_schemas (remote_table_id TEXT PRIMARY KEY, local_table_name TEXT)`)
	require.NoError(t, err, "seed")
	require.NoError(t, Run(ctx, db), "first run")
	require.NoError(t, Run(ctx, db), "second run")

	exists, err := tableExists(ctx, db, "cache_table_registry")
	require.NoError(t, err)
	assert.True(t, exists, "expected renamed table to exist")

	legacyGone, err := tableExists(ctx, db, "cached_table_schemas")
	require.NoError(t, err)
	assert.False(t, legacyGone, "expected legacy table gone")
}

func TestRenameLegacyRegistryDropsLegacyWhenBothExist(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	_, err := db.Exec(`CREATE TABLE cached_table_schemas (remote_table_id TEXT PRIMARY KEY)`)
	require.NoError(t, err, "seed legacy")
	_, err = db.Exec(`CREATE TABLE cache_table_registry (remote_table_id TEXT PRIMARY KEY)`)
	require.NoError(t, err, "seed current")

	require.NoError(t, renameLegacyRegistry(ctx, db), "rename")

	exists, err := tableExists(ctx, db, "cached_table_schemas")
	require.NoError(t, err)
	assert.False(t, exists, "expected legacy table dropped")
}

func TestRewriteIntegerTimestampsConvertsToText(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	_, err := db.Exec(`CREATE TABLE cache_stats (
		remote_table_id TEXT PRIMARY KEY, hits INTEGER, misses INTEGER, last_access TEXT, updated_at INTEGER
	)`)
	require.NoError(t, err, "seed")
	_, err = db.Exec(`INSERT INTO cache_stats VALUES ('t1', 5, 1, 'x', 1700000000)`)
	require.NoError(t, err, "insert")

	require.NoError(t, rewriteIntegerTimestamps(ctx, db, "cache_stats"), "rewrite")

	cols, err := columnInfo(ctx, db, "cache_stats")
	require.NoError(t, err, "columnInfo")
	assert.Equal(t, "TEXT", cols["updated_at"])

	var updatedAt string
	require.NoError(t, db.QueryRowContext(ctx, "SELECT updated_at FROM cache_stats WHERE remote_table_id = 't1'").Scan(&updatedAt))
	assert.NotEmpty(t, updatedAt, "expected non-empty converted timestamp")
}

func TestRewriteCachedTablesSchemaPreservesSurvivingColumns(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	_, err := db.Exec(`CREATE TABLE cached_tables (
		remote_table_id TEXT PRIMARY KEY, name TEXT, description TEXT, updated TEXT,
		updated_by TEXT, deleted_date TEXT, deleted_by TEXT, record_count INTEGER,
		cached_at TEXT, expires_at TEXT
	)`)
	require.NoError(t, err, "seed")
	_, err = db.Exec(`INSERT INTO cached_tables (remote_table_id, name, cached_at, expires_at)
		VALUES ('tbl1', 'Projects', '2025-01-01T00:00:00Z', '2025-01-02T00:00:00Z')`)
	require.NoError(t, err, "insert")

	require.NoError(t, rewriteCachedTablesSchema(ctx, db), "rewrite")

	cols, err := columnInfo(ctx, db, "cached_tables")
	require.NoError(t, err, "columnInfo")
	for _, obsolete := range cachedTablesObsoleteColumns {
		_, ok := cols[obsolete]
		assert.Falsef(t, ok, "expected obsolete column %q removed", obsolete)
	}
	assert.Contains(t, cols, "status", "expected new column status")

	var name string
	require.NoError(t, db.QueryRowContext(ctx, "SELECT name FROM cached_tables WHERE remote_table_id = 'tbl1'").Scan(&name))
	assert.Equalf(t, "Projects", name, "expected surviving data preserved")
}

func TestAddDeletedDateToCachedMembers(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	_, err := db.Exec(`CREATE TABLE cached_members (remote_member_id TEXT PRIMARY KEY, name TEXT)`)
	require.NoError(t, err, "seed")
	require.NoError(t, addDeletedDateToCachedMembers(ctx, db), "migrate")

	cols, err := columnInfo(ctx, db, "cached_members")
	require.NoError(t, err, "columnInfo")
	assert.Contains(t, cols, "deleted_date", "expected deleted_date column added")
}
