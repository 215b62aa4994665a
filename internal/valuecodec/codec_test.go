package valuecodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recordcache/recordcache/internal/schema"
)

func synth(f schema.RemoteField) schema.FieldColumns {
	return schema.Synthesize(f, map[string]bool{})
}

func TestRoundTripTextField(t *testing.T) {
	f := schema.RemoteField{Slug: "title", Label: "Title", FieldType: schema.TypeTextField}
	fc := synth(f)
	row := Extract(f, fc, "Hello")
	val, present := Reconstruct(f, fc, row)
	require.True(t, present)
	assert.Equal(t, "Hello", val)
}

func TestRoundTripTextFieldEmptyString(t *testing.T) {
	f := schema.RemoteField{Slug: "title", Label: "Title", FieldType: schema.TypeTextField}
	fc := synth(f)
	row := Extract(f, fc, "")
	val, present := Reconstruct(f, fc, row)
	require.True(t, present, "expected preserved empty string")
	assert.Equal(t, "", val)
}

func TestRoundTripNullField(t *testing.T) {
	f := schema.RemoteField{Slug: "title", Label: "Title", FieldType: schema.TypeTextField}
	fc := synth(f)
	row := Extract(f, fc, nil)
	assert.Emptyf(t, row, "nil value should contribute no columns, got %v", row)
}

func TestRoundTripNumberFieldZero(t *testing.T) {
	f := schema.RemoteField{Slug: "score", Label: "Score", FieldType: schema.TypeNumberField}
	fc := synth(f)
	row := Extract(f, fc, float64(0))
	val, present := Reconstruct(f, fc, row)
	require.True(t, present, "expected preserved zero")
	assert.Equal(t, float64(0), val)
}

func TestRoundTripYesNoField(t *testing.T) {
	f := schema.RemoteField{Slug: "active", Label: "Active", FieldType: schema.TypeYesNoField}
	fc := synth(f)
	row := Extract(f, fc, true)
	assert.Equal(t, int64(1), row[fc.Columns[0].Name], "expected stored 1")
	val, present := Reconstruct(f, fc, row)
	require.True(t, present)
	assert.Equal(t, true, val)
}

func TestRoundTripMultiValueField(t *testing.T) {
	f := schema.RemoteField{Slug: "tags", Label: "Tags", FieldType: schema.TypeMultipleSelectField}
	fc := synth(f)
	row := Extract(f, fc, []any{"a", "b"})
	val, present := Reconstruct(f, fc, row)
	require.True(t, present, "expected present")
	arr, ok := val.([]any)
	require.Truef(t, ok, "got %v", val)
	require.Len(t, arr, 2)
	assert.Equal(t, "a", arr[0])
	assert.Equal(t, "b", arr[1])
}

func TestRoundTripMultiValueFieldEmpty(t *testing.T) {
	f := schema.RemoteField{Slug: "tags", Label: "Tags", FieldType: schema.TypeMultipleSelectField}
	fc := synth(f)
	row := Extract(f, fc, []any{})
	val, _ := Reconstruct(f, fc, row)
	arr, ok := val.([]any)
	require.Truef(t, ok, "got %v", val)
	assert.Empty(t, arr)
}

func TestRoundTripDateRange(t *testing.T) {
	f := schema.RemoteField{Slug: "window", Label: "Window", FieldType: schema.TypeDateRangeField}
	fc := synth(f)
	raw := map[string]any{"from_date": "2025-01-01", "to_date": "2025-01-31", "include_time": false}
	row := Extract(f, fc, raw)
	assert.Equal(t, "2025-01-01T00:00:00Z", row[fc.Columns[0].Name])
	assert.Equal(t, "2025-01-31T00:00:00Z", row[fc.Columns[1].Name])
	val, present := Reconstruct(f, fc, row)
	require.True(t, present, "expected present")
	m := val.(map[string]any)
	assert.Equal(t, "2025-01-01T00:00:00Z", m["from_date"])
}

func TestRoundTripDueDate(t *testing.T) {
	f := schema.RemoteField{Slug: "due_date", Label: "Due Date", FieldType: schema.TypeDueDateField}
	fc := synth(f)
	raw := map[string]any{
		"from_date": "2025-03-01", "to_date": "2025-03-15",
		"is_overdue": true, "status_is_completed": false,
	}
	row := Extract(f, fc, raw)
	val, present := Reconstruct(f, fc, row)
	require.True(t, present, "expected present")
	m := val.(map[string]any)
	assert.Equal(t, true, m["is_overdue"])
	assert.Equal(t, false, m["status_is_completed"])
}

func TestRoundTripStatusField(t *testing.T) {
	f := schema.RemoteField{Slug: "status", Label: "Status", FieldType: schema.TypeStatusField}
	fc := synth(f)
	raw := map[string]any{"value": "active", "updated_on": "2025-01-01T00:00:00Z"}
	row := Extract(f, fc, raw)
	val, present := Reconstruct(f, fc, row)
	require.True(t, present, "expected present")
	m := val.(map[string]any)
	assert.Equal(t, "active", m["value"])
}

func TestExtractChecklistField(t *testing.T) {
	f := schema.RemoteField{Slug: "steps", Label: "Steps", FieldType: schema.TypeChecklistField}
	fc := synth(f)
	raw := map[string]any{"total_items": float64(5), "completed_items": float64(2)}
	row := Extract(f, fc, raw)
	assert.Equal(t, float64(5), row[fc.Columns[1].Name])
	assert.Equal(t, float64(2), row[fc.Columns[2].Name])
}

func TestReconstructUnparseableJSONDegradesToRawString(t *testing.T) {
	f := schema.RemoteField{Slug: "tags", Label: "Tags", FieldType: schema.TypeMultipleSelectField}
	fc := synth(f)
	row := map[string]any{fc.Columns[0].Name: "not-json"}
	val, present := Reconstruct(f, fc, row)
	require.True(t, present)
	assert.Equal(t, "not-json", val)
}

func TestUnparseableTimestampBecomesNull(t *testing.T) {
	f := schema.RemoteField{Slug: "due", Label: "Due", FieldType: schema.TypeDateField}
	fc := synth(f)
	row := Extract(f, fc, "not-a-date")
	assert.Nil(t, row[fc.Columns[0].Name])
}
