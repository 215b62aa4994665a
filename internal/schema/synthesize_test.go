package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeColumnNameBasic(t *testing.T) {
	got := SanitizeColumnName("Due Date!", "due_date")
	assert.Equal(t, "due_date", got)
}

func TestSanitizeColumnNameLeadingDigit(t *testing.T) {
	got := SanitizeColumnName("2025 Budget", "")
	assert.Equal(t, "f_2025_budget", got)
}

func TestSanitizeColumnNameReservedWord(t *testing.T) {
	got := SanitizeColumnName("Select", "")
	assert.Equal(t, "field_select", got)
}

func TestSanitizeColumnNameFallsBackToColumn(t *testing.T) {
	got := SanitizeColumnName("!!!", "***")
	assert.Equal(t, "column", got)
}

func TestSanitizeColumnNameAccentFold(t *testing.T) {
	got := SanitizeColumnName("Número de Orden", "")
	assert.Equal(t, "numero_de_orden", got)
}

func TestDedupeCollision(t *testing.T) {
	existing := map[string]bool{"status": true}
	got := Dedupe("status", existing)
	assert.Equal(t, "status_2", got)
}

func TestSynthesizeScalar(t *testing.T) {
	existing := map[string]bool{}
	fc := Synthesize(RemoteField{Slug: "title", Label: "Title", FieldType: TypeTextField}, existing)
	require.Lenf(t, fc.Columns, 1, "got %+v", fc)
	assert.Equal(t, "title", fc.Columns[0].Name)
	assert.Equal(t, "TEXT", fc.Columns[0].SQLType)
	assert.True(t, fc.Columns[0].Indexed, "title slug should always be indexed")
}

func TestSynthesizeStatusField(t *testing.T) {
	existing := map[string]bool{}
	fc := Synthesize(RemoteField{Slug: "status", Label: "Status", FieldType: TypeStatusField}, existing)
	names := fc.ColumnNames()
	require.Lenf(t, names, 2, "got %v", names)
	assert.Equal(t, "status", names[0])
	assert.Equal(t, "status_updated_on", names[1])
}

func TestSynthesizeDueDateField(t *testing.T) {
	existing := map[string]bool{}
	fc := Synthesize(RemoteField{Slug: "due_date", Label: "Due Date", FieldType: TypeDueDateField}, existing)
	names := fc.ColumnNames()
	want := []string{"due_date_from", "due_date_to", "due_date_is_overdue", "due_date_is_completed", "due_date_include_time"}
	require.Lenf(t, names, len(want), "got %v", names)
	for i, n := range want {
		assert.Equalf(t, n, names[i], "column %d", i)
	}
}

func TestSynthesizeCollisionAcrossFields(t *testing.T) {
	existing := map[string]bool{}
	fc1 := Synthesize(RemoteField{Slug: "s1", Label: "Status", FieldType: TypeTextField}, existing)
	fc2 := Synthesize(RemoteField{Slug: "s2", Label: "Status", FieldType: TypeTextField}, existing)
	assert.Equal(t, "status", fc1.Columns[0].Name)
	assert.Equal(t, "status_2", fc2.Columns[0].Name)
}

func TestIndexColumnsForRange(t *testing.T) {
	existing := map[string]bool{}
	fc := Synthesize(RemoteField{Slug: "window", Label: "Window", FieldType: TypeDateRangeField}, existing)
	idx := IndexColumnsFor(fc)
	require.Lenf(t, idx, 2, "got %v", idx)
	assert.Equal(t, "window_from", idx[0])
	assert.Equal(t, "window_to", idx[1])
}

func TestUnknownFieldTypeFallsBackToText(t *testing.T) {
	existing := map[string]bool{}
	fc := Synthesize(RemoteField{Slug: "mystery", Label: "Mystery", FieldType: FieldType("somethingnew")}, existing)
	require.Lenf(t, fc.Columns, 1, "got %+v", fc)
	assert.Equal(t, "TEXT", fc.Columns[0].SQLType)
}

func TestSynthesizeFirstCreatedFieldDedupesAgainstExistingColumn(t *testing.T) {
	existing := map[string]bool{"created_on": true}
	fc := Synthesize(RemoteField{Slug: "created", Label: "Created", FieldType: TypeFirstCreatedField}, existing)
	names := fc.ColumnNames()
	require.Lenf(t, names, 2, "got %v", names)
	assert.Equal(t, "created_on_2", names[0])
	assert.Equal(t, "created_by", names[1])
}

func TestSynthesizeDeletedDateDedupesAgainstExistingColumn(t *testing.T) {
	existing := map[string]bool{"deleted_on": true, "deleted_by": true}
	fc := Synthesize(RemoteField{Slug: "deleted", Label: "Deleted", FieldType: TypeDeletedDate}, existing)
	names := fc.ColumnNames()
	require.Lenf(t, names, 2, "got %v", names)
	assert.Equal(t, "deleted_on_2", names[0])
	assert.Equal(t, "deleted_by_2", names[1])
}
