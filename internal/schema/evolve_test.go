package schema

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", t.TempDir()+"/test.db")
	require.NoError(t, err, "open db")
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	require.NoError(t, EnsureRegistryTable(ctx, db), "ensure registry table")
	return db
}

func tableColumns(t *testing.T, db *sql.DB, table string) map[string]string {
	t.Helper()
	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	require.NoError(t, err, "pragma table_info")
	defer func() { _ = rows.Close() }()
	cols := map[string]string{}
	for rows.Next() {
		var cid int
		var name, typ string
		var notnull, pk int
		var dflt *string
		require.NoError(t, rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk), "scan column info")
		cols[name] = typ
	}
	return cols
}

func TestEnsureTableCreatesSchema(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	registry := NewRegistry(db)
	evolver := NewEvolver(db, registry)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	catalog := []RemoteField{
		{Slug: "title", Label: "Title", FieldType: TypeTextField},
		{Slug: "status", Label: "Status", FieldType: TypeStatusField},
	}
	ts, err := evolver.EnsureTable(ctx, "tbl1", "My Table", catalog, now)
	require.NoError(t, err)

	cols := tableColumns(t, db, ts.LocalTableName)
	for _, want := range []string{"id", "title", "status", "status_updated_on", "cached_at", "expires_at"} {
		_, ok := cols[want]
		assert.Truef(t, ok, "missing column %q, have %v", want, cols)
	}
}

func TestEnsureTableIdempotentReload(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	registry := NewRegistry(db)
	evolver := NewEvolver(db, registry)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	catalog := []RemoteField{{Slug: "title", Label: "Title", FieldType: TypeTextField}}
	first, err := evolver.EnsureTable(ctx, "tbl1", "My Table", catalog, now)
	require.NoError(t, err)
	second, err := evolver.EnsureTable(ctx, "tbl1", "My Table", catalog, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equalf(t, first.LocalTableName, second.LocalTableName, "local table name changed")
}

func TestEvolveAddsColumnWithoutDroppingRows(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	registry := NewRegistry(db)
	evolver := NewEvolver(db, registry)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	catalog := []RemoteField{
		{Slug: "title", Label: "Title", FieldType: TypeTextField},
		{Slug: "status", Label: "Status", FieldType: TypeStatusField},
	}
	ts, err := evolver.EnsureTable(ctx, "tbl1", "My Table", catalog, now)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, "INSERT INTO "+ts.LocalTableName+" (id, title, cached_at, expires_at) VALUES ('r1', 'hello', ?, ?)",
		now.Format(time.RFC3339), now.Add(time.Hour).Format(time.RFC3339))
	require.NoError(t, err)

	extended := append(catalog, RemoteField{Slug: "priority", Label: "Priority", FieldType: TypeNumberField})
	ts2, err := evolver.EnsureTable(ctx, "tbl1", "My Table", extended, now.Add(time.Minute))
	require.NoError(t, err)

	cols := tableColumns(t, db, ts2.LocalTableName)
	assert.Equal(t, "REAL", cols["priority"])

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+ts2.LocalTableName).Scan(&count))
	assert.Equalf(t, 1, count, "expected existing row preserved")
}

func TestEvolveDoesNotDropRemovedFieldColumns(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	registry := NewRegistry(db)
	evolver := NewEvolver(db, registry)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	catalog := []RemoteField{
		{Slug: "title", Label: "Title", FieldType: TypeTextField},
		{Slug: "priority", Label: "Priority", FieldType: TypeNumberField},
	}
	ts, err := evolver.EnsureTable(ctx, "tbl1", "My Table", catalog, now)
	require.NoError(t, err)

	shrunk := []RemoteField{{Slug: "title", Label: "Title", FieldType: TypeTextField}}
	ts2, err := evolver.EnsureTable(ctx, "tbl1", "My Table", shrunk, now.Add(time.Minute))
	require.NoError(t, err)

	cols := tableColumns(t, db, ts2.LocalTableName)
	_, ok := cols["priority"]
	assert.True(t, ok, "priority column should persist even though the field left the catalog")
}

func TestIndexesCreatedOnTableCreation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	registry := NewRegistry(db)
	evolver := NewEvolver(db, registry)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	catalog := []RemoteField{
		{Slug: "title", Label: "Title", FieldType: TypeTextField},
		{Slug: "status", Label: "Status", FieldType: TypeStatusField},
	}
	ts, err := evolver.EnsureTable(ctx, "tbl1", "My Table", catalog, now)
	require.NoError(t, err)

	rows, err := db.Query("PRAGMA index_list(" + ts.LocalTableName + ")")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	var indexNames []string
	for rows.Next() {
		var seq int
		var name, origin string
		var unique, partial int
		require.NoError(t, rows.Scan(&seq, &name, &unique, &origin, &partial))
		indexNames = append(indexNames, name)
	}
	assert.Containsf(t, indexNames, "idx_"+ts.LocalTableName+"_expires_at", "missing expected indexes, got %v", indexNames)
	assert.Containsf(t, indexNames, "idx_"+ts.LocalTableName+"_title", "missing expected indexes, got %v", indexNames)
	assert.Containsf(t, indexNames, "idx_"+ts.LocalTableName+"_status", "missing expected indexes, got %v", indexNames)
}
