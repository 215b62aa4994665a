package querybuilder

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recordcache/recordcache/internal/schema"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+t.TempDir()+"/qb.db?_pragma=journal_mode(WAL)")
	require.NoError(t, err, "open")
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testFields() map[string]FieldResolver {
	title := schema.RemoteField{Slug: "title", Label: "Title", FieldType: schema.TypeTextField}
	tags := schema.RemoteField{Slug: "tags", Label: "Tags", FieldType: schema.TypeMultipleSelectField}
	due := schema.RemoteField{Slug: "due_date", Label: "Due Date", FieldType: schema.TypeDueDateField}
	score := schema.RemoteField{Slug: "score", Label: "Score", FieldType: schema.TypeNumberField}

	existing := map[string]bool{}
	return map[string]FieldResolver{
		"title":    {Type: title.FieldType, Columns: schema.Synthesize(title, existing)},
		"tags":     {Type: tags.FieldType, Columns: schema.Synthesize(tags, existing)},
		"due_date": {Type: due.FieldType, Columns: schema.Synthesize(due, existing)},
		"score":    {Type: score.FieldType, Columns: schema.Synthesize(score, existing)},
	}
}

func setupTable(t *testing.T, db *sql.DB, fields map[string]FieldResolver) {
	t.Helper()
	cols := []string{"id TEXT PRIMARY KEY"}
	for _, slug := range []string{"title", "tags", "due_date", "score"} {
		for _, c := range fields[slug].Columns.Columns {
			cols = append(cols, c.Name+" "+c.SQLType)
		}
	}
	ddl := "CREATE TABLE items (" + strings.Join(cols, ", ") + ")"
	_, err := db.Exec(ddl)
	require.NoErrorf(t, err, "create table\nddl: %s", ddl)
}

func TestBuildSelectWithEquality(t *testing.T) {
	b := New(nil, "items", testFields())
	b.Where(map[string]any{"title": "Widget"})
	query, args := b.BuildSelect(nil)
	assert.Containsf(t, query, "WHERE title = ?", "got query %q", query)
	require.Len(t, args, 1)
	assert.Equal(t, "Widget", args[0])
}

func TestUnknownSlugSkippedSilently(t *testing.T) {
	b := New(nil, "items", testFields())
	b.Where(map[string]any{"no_such_field": "x"})
	query, args := b.BuildSelect(nil)
	assert.NotContainsf(t, query, "WHERE", "expected no WHERE clause, got %q", query)
	assert.Empty(t, args)
}

func TestRangeFieldDefaultsToToColumn(t *testing.T) {
	b := New(nil, "items", testFields())
	b.Order("due_date", "asc")
	query, _ := b.BuildSelect(nil)
	fc := testFields()["due_date"].Columns
	toCol := ""
	for _, c := range fc.Columns {
		if strings.HasSuffix(c.Name, "_to") {
			toCol = c.Name
		}
	}
	assert.Containsf(t, query, "ORDER BY "+toCol+" ASC", "expected order by %s, got %q", toCol, query)
}

func TestRangeFieldSubfieldOverride(t *testing.T) {
	b := New(nil, "items", testFields())
	c, ok := b.BuildCondition("due_date.from_date", map[string]any{"gte": "2025-01-01T00:00:00Z"})
	require.True(t, ok, "expected condition")
	fc := testFields()["due_date"].Columns
	assert.Truef(t, strings.HasSuffix(strings.Split(c.SQL, " ")[0], "_from"),
		"expected from column in %q (columns %v)", c.SQL, fc.Columns)
}

func TestJSONArrayEmptyVsScalarEmpty(t *testing.T) {
	b := New(nil, "items", testFields())
	cTags, _ := b.BuildCondition("tags", map[string]any{"is_empty": nil})
	assert.Containsf(t, cTags.SQL, "'[]'", "expected json-array empty check, got %q", cTags.SQL)

	cTitle, _ := b.BuildCondition("title", map[string]any{"is_empty": nil})
	assert.NotContainsf(t, cTitle.SQL, "'[]'", "expected scalar empty check, got %q", cTitle.SQL)
	assert.Containsf(t, cTitle.SQL, "= ''", "expected scalar empty check, got %q", cTitle.SQL)
}

func TestHasAnyOfUsesJSONEach(t *testing.T) {
	b := New(nil, "items", testFields())
	c, ok := b.BuildCondition("tags", map[string]any{"has_any_of": []any{"red", "blue"}})
	require.True(t, ok, "expected condition")
	assert.Containsf(t, c.SQL, "json_each", "got %q args=%v", c.SQL, c.Args)
	assert.Len(t, c.Args, 2)
}

func TestInClauseParameterisedNoConcatenation(t *testing.T) {
	b := New(nil, "items", testFields())
	malicious := "x'); DROP TABLE items; --"
	b.Where(map[string]any{"title": map[string]any{"in": []any{malicious}}})
	query, args := b.BuildSelect(nil)
	assert.NotContainsf(t, query, "DROP TABLE", "value leaked into SQL text: %q", query)
	require.Len(t, args, 1)
	assert.Equal(t, malicious, args[0])
}

func TestEmptyInListMatchesNothing(t *testing.T) {
	b := New(nil, "items", testFields())
	c, ok := b.BuildCondition("title", map[string]any{"in": []any{}})
	require.True(t, ok)
	assert.Equal(t, "1 = 0", c.SQL)
}

func TestBetweenCondition(t *testing.T) {
	b := New(nil, "items", testFields())
	c, ok := b.BuildCondition("score", map[string]any{"between": map[string]any{"min": 1.0, "max": 10.0}})
	require.True(t, ok)
	assert.Contains(t, c.SQL, "BETWEEN ? AND ?")
	assert.Len(t, c.Args, 2)
}

func TestLimitOffsetAndOrder(t *testing.T) {
	b := New(nil, "items", testFields())
	b.Order("title", "desc").Limit(10).Offset(5)
	query, _ := b.BuildSelect(nil)
	assert.Containsf(t, query, "ORDER BY title DESC", "got %q", query)
	assert.Containsf(t, query, "LIMIT 10", "got %q", query)
	assert.Containsf(t, query, "OFFSET 5", "got %q", query)
}

func TestExecuteAndCountAgainstRealDB(t *testing.T) {
	db := openTestDB(t)
	fields := testFields()
	setupTable(t, db, fields)

	titleCol := fields["title"].Columns.Columns[0].Name
	_, err := db.Exec("INSERT INTO items (id, "+titleCol+") VALUES (?, ?)", "1", "Widget")
	require.NoError(t, err, "insert")
	_, err = db.Exec("INSERT INTO items (id, "+titleCol+") VALUES (?, ?)", "2", "Gadget")
	require.NoError(t, err, "insert")

	b := New(db, "items", fields)
	b.Where(map[string]any{"title": "Widget"})
	n, err := b.Count(context.Background())
	require.NoError(t, err, "count")
	assert.Equal(t, 1, n)

	rows, err := b.Execute(context.Background())
	require.NoError(t, err, "execute")
	defer func() { _ = rows.Close() }()
	count := 0
	for rows.Next() {
		count++
	}
	assert.Equal(t, 1, count)
}
