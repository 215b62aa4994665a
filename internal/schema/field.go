package schema

// RemoteField is the Remote API's field descriptor. It is immutable from
// the engine's viewpoint.
type RemoteField struct {
	Slug      string
	Label     string
	FieldType FieldType
	Params    map[string]any
}

// Primary reports whether the field's params mark it as the table's
// primary field.
func (f RemoteField) Primary() bool {
	if f.Params == nil {
		return false
	}
	v, ok := f.Params["primary"]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Column is a single physical column backing (part of) a RemoteField.
type Column struct {
	Name    string
	SQLType string // "TEXT", "REAL", "INTEGER"
	Indexed bool
}

// FieldColumns is the ordered set of physical columns a RemoteField maps
// to: one entry for scalar types, several for compound types.
type FieldColumns struct {
	Slug    string
	Columns []Column
}

// ColumnNames returns just the physical column names, in order.
func (fc FieldColumns) ColumnNames() []string {
	names := make([]string, len(fc.Columns))
	for i, c := range fc.Columns {
		names[i] = c.Name
	}
	return names
}
