// Package valuecodec maps between the Remote API's heterogeneous JSON
// record shapes and the flat columns a cached LocalTable stores them in.
package valuecodec

import (
	"encoding/json"
	"fmt"

	"github.com/recordcache/recordcache/internal/schema"
	"github.com/recordcache/recordcache/internal/tsnorm"
)

// Row is a single record's extracted column->value map, ready for an
// INSERT/UPDATE. Values are one of: nil, string, float64, int64.
type Row map[string]any

// Extract produces the column values for one RemoteField given the raw
// JSON value from a record. A nil raw value contributes no columns. The
// returned row never contains an error marker — unparseable timestamps
// degrade to null per spec §7, and the codec never panics on bad input.
func Extract(f schema.RemoteField, fc schema.FieldColumns, raw any) Row {
	if raw == nil {
		return Row{}
	}
	switch f.FieldType {
	case schema.TypeFirstCreatedField, schema.TypeLastUpdatedField, schema.TypeDeletedDate:
		return extractActorTimestamp(fc, raw)
	case schema.TypeDateRangeField:
		return extractDateRange(fc, raw)
	case schema.TypeDueDateField:
		return extractDueDate(fc, raw)
	case schema.TypeStatusField:
		return extractStatus(fc, raw)
	case schema.TypeAddressField:
		return extractAddress(fc, raw)
	case schema.TypeFullNameField:
		return extractFullName(fc, raw)
	case schema.TypeSmartDocField:
		return extractSmartDoc(fc, raw)
	case schema.TypeChecklistField:
		return extractChecklist(fc, raw)
	case schema.TypeVoteField:
		return extractVote(fc, raw)
	case schema.TypeTimeTrackingField:
		return extractTimeTracking(fc, raw)
	case schema.TypeDateField:
		return extractDate(fc, raw)
	case schema.TypeYesNoField:
		return extractYesNo(fc, raw)
	default:
		if schema.IsMultiValueField(f.FieldType) {
			return extractMultiValue(fc, raw)
		}
		if isNumericSQLType(fc) {
			return extractNumber(fc, raw)
		}
		return extractScalarText(fc, raw)
	}
}

func isNumericSQLType(fc schema.FieldColumns) bool {
	if len(fc.Columns) != 1 {
		return false
	}
	return fc.Columns[0].SQLType == "REAL" || fc.Columns[0].SQLType == "INTEGER"
}

func col(fc schema.FieldColumns, i int) string {
	if i >= len(fc.Columns) {
		return ""
	}
	return fc.Columns[i].Name
}

func extractScalarText(fc schema.FieldColumns, raw any) Row {
	switch v := raw.(type) {
	case string:
		return Row{col(fc, 0): v}
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return Row{col(fc, 0): fmt.Sprintf("%v", v)}
		}
		return Row{col(fc, 0): string(b)}
	}
}

func extractNumber(fc schema.FieldColumns, raw any) Row {
	switch v := raw.(type) {
	case float64:
		return Row{col(fc, 0): v}
	case int:
		return Row{col(fc, 0): float64(v)}
	case int64:
		return Row{col(fc, 0): float64(v)}
	case string:
		return Row{col(fc, 0): v}
	default:
		return Row{col(fc, 0): nil}
	}
}

func extractYesNo(fc schema.FieldColumns, raw any) Row {
	b, ok := raw.(bool)
	if !ok {
		return Row{col(fc, 0): nil}
	}
	if b {
		return Row{col(fc, 0): int64(1)}
	}
	return Row{col(fc, 0): int64(0)}
}

func extractDate(fc schema.FieldColumns, raw any) Row {
	s, ok := raw.(string)
	if !ok {
		return Row{col(fc, 0): nil}
	}
	normalised, err := tsnorm.Normalise(s)
	if err != nil {
		return Row{col(fc, 0): nil}
	}
	return Row{col(fc, 0): normalised}
}

func extractMultiValue(fc schema.FieldColumns, raw any) Row {
	b, err := json.Marshal(raw)
	if err != nil {
		return Row{col(fc, 0): "[]"}
	}
	return Row{col(fc, 0): string(b)}
}

func asMap(raw any) map[string]any {
	m, _ := raw.(map[string]any)
	return m
}

func extractActorTimestamp(fc schema.FieldColumns, raw any) Row {
	m := asMap(raw)
	row := Row{}
	if len(fc.Columns) < 2 {
		return row
	}
	onCol, byCol := fc.Columns[0].Name, fc.Columns[1].Name
	if s, ok := m["date"].(string); ok {
		if n, err := tsnorm.Normalise(s); err == nil {
			row[onCol] = n
		} else {
			row[onCol] = nil
		}
	} else if s, ok := raw.(string); ok {
		if n, err := tsnorm.Normalise(s); err == nil {
			row[onCol] = n
		}
	}
	if by, ok := m["by"]; ok {
		row[byCol] = scalarOrJSON(by)
	}
	return row
}

func extractDateRange(fc schema.FieldColumns, raw any) Row {
	m := asMap(raw)
	row := Row{}
	if len(fc.Columns) < 2 {
		return row
	}
	fromCol, toCol := fc.Columns[0].Name, fc.Columns[1].Name
	row[fromCol] = normaliseDateHashField(m, "from_date")
	row[toCol] = normaliseDateHashField(m, "to_date")
	if len(fc.Columns) >= 3 {
		incCol := fc.Columns[2].Name
		row[incCol] = boolToInt(m["include_time"])
	}
	return row
}

func extractDueDate(fc schema.FieldColumns, raw any) Row {
	m := asMap(raw)
	row := Row{}
	if len(fc.Columns) < 4 {
		return row
	}
	fromCol, toCol, overdueCol, completedCol := fc.Columns[0].Name, fc.Columns[1].Name, fc.Columns[2].Name, fc.Columns[3].Name
	row[fromCol] = normaliseDateHashField(m, "from_date")
	row[toCol] = normaliseDateHashField(m, "to_date")
	row[overdueCol] = boolToInt(m["is_overdue"])
	row[completedCol] = boolToInt(m["status_is_completed"])
	if len(fc.Columns) >= 5 {
		row[fc.Columns[4].Name] = boolToInt(m["include_time"])
	}
	return row
}

func normaliseDateHashField(m map[string]any, key string) any {
	if m == nil {
		return nil
	}
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	n, err := tsnorm.Normalise(s)
	if err != nil {
		return nil
	}
	return n
}

func boolToInt(v any) any {
	b, ok := v.(bool)
	if !ok {
		return nil
	}
	if b {
		return int64(1)
	}
	return int64(0)
}

func extractStatus(fc schema.FieldColumns, raw any) Row {
	row := Row{}
	if len(fc.Columns) < 2 {
		return row
	}
	statusCol, updatedCol := fc.Columns[0].Name, fc.Columns[1].Name
	m := asMap(raw)
	if m == nil {
		if s, ok := raw.(string); ok {
			row[statusCol] = s
		}
		return row
	}
	if s, ok := m["value"].(string); ok {
		row[statusCol] = s
	}
	if s, ok := m["updated_on"].(string); ok {
		if n, err := tsnorm.Normalise(s); err == nil {
			row[updatedCol] = n
		}
	}
	return row
}

func extractAddress(fc schema.FieldColumns, raw any) Row {
	row := Row{}
	if len(fc.Columns) < 2 {
		return row
	}
	textCol, jsonCol := fc.Columns[0].Name, fc.Columns[1].Name
	m := asMap(raw)
	if s, ok := m["sys_root"].(string); ok {
		row[textCol] = s
	}
	if b, err := json.Marshal(raw); err == nil {
		row[jsonCol] = string(b)
	}
	return row
}

func extractFullName(fc schema.FieldColumns, raw any) Row {
	row := Row{}
	if len(fc.Columns) < 2 {
		return row
	}
	nameCol, jsonCol := fc.Columns[0].Name, fc.Columns[1].Name
	m := asMap(raw)
	if s, ok := m["sys_root"].(string); ok {
		row[nameCol] = s
	}
	if b, err := json.Marshal(raw); err == nil {
		row[jsonCol] = string(b)
	}
	return row
}

func extractSmartDoc(fc schema.FieldColumns, raw any) Row {
	row := Row{}
	if len(fc.Columns) < 2 {
		return row
	}
	previewCol, jsonCol := fc.Columns[0].Name, fc.Columns[1].Name
	m := asMap(raw)
	if s, ok := m["preview"].(string); ok {
		row[previewCol] = s
	}
	if b, err := json.Marshal(raw); err == nil {
		row[jsonCol] = string(b)
	}
	return row
}

func extractChecklist(fc schema.FieldColumns, raw any) Row {
	row := Row{}
	if len(fc.Columns) < 3 {
		return row
	}
	jsonCol, totalCol, completedCol := fc.Columns[0].Name, fc.Columns[1].Name, fc.Columns[2].Name
	m := asMap(raw)
	if b, err := json.Marshal(raw); err == nil {
		row[jsonCol] = string(b)
	}
	row[totalCol] = numberOrNil(m["total_items"])
	row[completedCol] = numberOrNil(m["completed_items"])
	return row
}

func extractVote(fc schema.FieldColumns, raw any) Row {
	row := Row{}
	if len(fc.Columns) < 2 {
		return row
	}
	countCol, jsonCol := fc.Columns[0].Name, fc.Columns[1].Name
	m := asMap(raw)
	row[countCol] = numberOrNil(m["total_votes"])
	if b, err := json.Marshal(raw); err == nil {
		row[jsonCol] = string(b)
	}
	return row
}

func extractTimeTracking(fc schema.FieldColumns, raw any) Row {
	row := Row{}
	if len(fc.Columns) < 2 {
		return row
	}
	jsonCol, totalCol := fc.Columns[0].Name, fc.Columns[1].Name
	m := asMap(raw)
	if b, err := json.Marshal(raw); err == nil {
		row[jsonCol] = string(b)
	}
	row[totalCol] = numberOrNil(m["total_duration"])
	return row
}

func numberOrNil(v any) any {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return nil
	}
}

func scalarOrJSON(v any) any {
	switch s := v.(type) {
	case string:
		return s
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return string(b)
	}
}
