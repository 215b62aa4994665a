package valuecodec

import (
	"encoding/json"

	"github.com/recordcache/recordcache/internal/schema"
)

// Reconstruct rebuilds a record's JSON shape for one field from its stored
// row values. Every field present in the original record produces a key in
// the output, even when its value is null, empty, or zero — reconstruction
// never drops a field solely because its value looks "empty".
func Reconstruct(f schema.RemoteField, fc schema.FieldColumns, row map[string]any) (value any, present bool) {
	switch f.FieldType {
	case schema.TypeFirstCreatedField, schema.TypeLastUpdatedField, schema.TypeDeletedDate:
		return reconstructActorTimestamp(fc, row)
	case schema.TypeDateRangeField:
		return reconstructDateRange(fc, row)
	case schema.TypeDueDateField:
		return reconstructDueDate(fc, row)
	case schema.TypeStatusField:
		return reconstructStatus(fc, row)
	case schema.TypeAddressField, schema.TypeFullNameField, schema.TypeSmartDocField,
		schema.TypeChecklistField, schema.TypeVoteField, schema.TypeTimeTrackingField:
		return reconstructJSONBacked(fc, row)
	case schema.TypeYesNoField:
		return reconstructYesNo(fc, row)
	default:
		if schema.IsMultiValueField(f.FieldType) {
			return reconstructMultiValue(fc, row)
		}
		return reconstructScalar(fc, row)
	}
}

func lookup(row map[string]any, name string) (any, bool) {
	if name == "" {
		return nil, false
	}
	v, ok := row[name]
	return v, ok
}

func reconstructScalar(fc schema.FieldColumns, row map[string]any) (any, bool) {
	v, ok := lookup(row, col(fc, 0))
	return v, ok
}

func reconstructYesNo(fc schema.FieldColumns, row map[string]any) (any, bool) {
	v, ok := lookup(row, col(fc, 0))
	if !ok {
		return nil, false
	}
	if v == nil {
		return nil, true
	}
	n, ok := toInt64(v)
	if !ok {
		return nil, true
	}
	return n != 0, true
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func reconstructMultiValue(fc schema.FieldColumns, row map[string]any) (any, bool) {
	v, ok := lookup(row, col(fc, 0))
	if !ok {
		return nil, false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return []any{}, true
	}
	var out []any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		// Degraded: unparseable JSON yields the raw string (§7).
		return s, true
	}
	return out, true
}

func reconstructJSONBacked(fc schema.FieldColumns, row map[string]any) (any, bool) {
	for _, c := range fc.Columns {
		if len(c.Name) > 5 && c.Name[len(c.Name)-5:] == "_json" {
			v, ok := lookup(row, c.Name)
			if !ok {
				continue
			}
			s, ok := v.(string)
			if !ok || s == "" {
				return nil, true
			}
			var out any
			if err := json.Unmarshal([]byte(s), &out); err != nil {
				return s, true
			}
			return out, true
		}
	}
	return nil, false
}

func reconstructActorTimestamp(fc schema.FieldColumns, row map[string]any) (any, bool) {
	if len(fc.Columns) < 2 {
		return nil, false
	}
	on, _ := lookup(row, fc.Columns[0].Name)
	by, _ := lookup(row, fc.Columns[1].Name)
	return map[string]any{"date": on, "by": by}, true
}

func reconstructDateRange(fc schema.FieldColumns, row map[string]any) (any, bool) {
	if len(fc.Columns) < 2 {
		return nil, false
	}
	from, _ := lookup(row, fc.Columns[0].Name)
	to, _ := lookup(row, fc.Columns[1].Name)
	out := map[string]any{"from_date": from, "to_date": to}
	if len(fc.Columns) >= 3 {
		inc, _ := lookup(row, fc.Columns[2].Name)
		out["include_time"] = intToBoolOrNil(inc)
	}
	return out, true
}

func reconstructDueDate(fc schema.FieldColumns, row map[string]any) (any, bool) {
	if len(fc.Columns) < 4 {
		return nil, false
	}
	from, _ := lookup(row, fc.Columns[0].Name)
	to, _ := lookup(row, fc.Columns[1].Name)
	overdue, _ := lookup(row, fc.Columns[2].Name)
	completed, _ := lookup(row, fc.Columns[3].Name)
	out := map[string]any{
		"from_date":           from,
		"to_date":             to,
		"is_overdue":          intToBoolOrNil(overdue),
		"status_is_completed": intToBoolOrNil(completed),
	}
	if len(fc.Columns) >= 5 {
		inc, _ := lookup(row, fc.Columns[4].Name)
		out["include_time"] = intToBoolOrNil(inc)
	}
	return out, true
}

func intToBoolOrNil(v any) any {
	n, ok := toInt64(v)
	if !ok {
		return nil
	}
	return n != 0
}

func reconstructStatus(fc schema.FieldColumns, row map[string]any) (any, bool) {
	if len(fc.Columns) < 2 {
		return nil, false
	}
	value, _ := lookup(row, fc.Columns[0].Name)
	updatedOn, _ := lookup(row, fc.Columns[1].Name)
	return map[string]any{"value": value, "updated_on": updatedOn}, true
}
