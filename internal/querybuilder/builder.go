// Package querybuilder is a fluent builder producing parameterised SQL
// against a single cached LocalTable, supporting the full comparison
// operator set and nested boolean groups.
package querybuilder

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/recordcache/recordcache/internal/schema"
)

// FieldResolver describes how a field slug maps onto physical columns, so
// the builder can implement range-field defaults and sub-field selection
// without depending on the schema registry directly.
type FieldResolver struct {
	Type    schema.FieldType
	Columns schema.FieldColumns
}

// Builder accumulates WHERE/ORDER/LIMIT/OFFSET state for one local table.
type Builder struct {
	db         *sql.DB
	table      string
	fields     map[string]FieldResolver // by slug; "id" is always implicitly present
	conditions []condition
	orderBy    []orderTerm
	limitN     *int
	offsetN    *int
}

type condition struct {
	sql  string
	args []any
}

type orderTerm struct {
	column    string
	direction string
}

// New builds a Builder over table, with fields describing the cached
// table's slug->column mapping.
func New(db *sql.DB, table string, fields map[string]FieldResolver) *Builder {
	return &Builder{db: db, table: table, fields: fields}
}

// Condition is a standalone (sql, args) pair, e.g. produced by the Filter
// Translator for use inside a parenthesised OR group.
type Condition struct {
	SQL  string
	Args []any
}

// resolveColumn maps a field-slug-or-dotted-subfield reference to its
// physical column name. For range fields (daterangefield, duedatefield)
// an unqualified slug defaults to the "_to" column, matching the Remote
// API's own filter/sort-by-range-end behaviour.
func (b *Builder) resolveColumn(ref string) (string, bool) {
	if ref == "id" {
		return "id", true
	}
	slug := ref
	subfield := ""
	if idx := strings.IndexByte(ref, '.'); idx >= 0 {
		slug = ref[:idx]
		subfield = ref[idx+1:]
	}
	fr, ok := b.fields[slug]
	if !ok {
		return "", false
	}
	if subfield != "" {
		suffix := subfieldSuffix(subfield)
		for _, c := range fr.Columns.Columns {
			if strings.HasSuffix(c.Name, suffix) {
				return c.Name, true
			}
		}
		return "", false
	}
	if schema.IsRangeField(fr.Type) {
		for _, c := range fr.Columns.Columns {
			if strings.HasSuffix(c.Name, "_to") {
				return c.Name, true
			}
		}
	}
	if len(fr.Columns.Columns) == 0 {
		return "", false
	}
	return fr.Columns.Columns[0].Name, true
}

func subfieldSuffix(subfield string) string {
	switch subfield {
	case "from_date":
		return "_from"
	case "to_date":
		return "_to"
	default:
		return "_" + subfield
	}
}

// FieldTypeOf reports the RemoteField type backing slug, so callers (the
// Filter Translator) can make type-aware decisions before building a
// condition.
func (b *Builder) FieldTypeOf(slug string) (schema.FieldType, bool) {
	return b.fieldType(slug)
}

func (b *Builder) fieldType(slug string) (schema.FieldType, bool) {
	base := slug
	if idx := strings.IndexByte(slug, '.'); idx >= 0 {
		base = slug[:idx]
	}
	fr, ok := b.fields[base]
	if !ok {
		return "", false
	}
	return fr.Type, true
}

// Where ANDs a map of slug -> (literal | operator-map) conditions onto the
// builder. Unknown field slugs are silently skipped so stale saved filters
// degrade gracefully instead of erroring.
func (b *Builder) Where(conditions map[string]any) *Builder {
	for slug, spec := range conditions {
		c, ok := b.buildCondition(slug, spec)
		if !ok {
			continue
		}
		b.conditions = append(b.conditions, c)
	}
	return b
}

// WhereRaw appends a pre-built (sql, args) clause, e.g. a parenthesised OR
// group produced by the Filter Translator.
func (b *Builder) WhereRaw(sqlClause string, args []any) *Builder {
	b.conditions = append(b.conditions, condition{sql: sqlClause, args: args})
	return b
}

// BuildCondition exposes the single-field condition builder for callers
// (the Filter Translator) that need a standalone (sql, args) pair to splice
// into a larger parenthesised group.
func (b *Builder) BuildCondition(slug string, spec any) (Condition, bool) {
	c, ok := b.buildCondition(slug, spec)
	if !ok {
		return Condition{}, false
	}
	return Condition{SQL: c.sql, Args: c.args}, true
}

func (b *Builder) buildCondition(slug string, spec any) (condition, bool) {
	column, ok := b.resolveColumn(slug)
	if !ok {
		return condition{}, false
	}
	fieldType, _ := b.fieldType(slug)

	opMap, isOpMap := spec.(map[string]any)
	if !isOpMap {
		return condition{sql: column + " = ?", args: []any{spec}}, true
	}
	for op, val := range opMap {
		c, ok := b.buildOpCondition(column, fieldType, op, val)
		if ok {
			return c, true
		}
	}
	return condition{}, false
}

func (b *Builder) buildOpCondition(column string, fieldType schema.FieldType, op string, val any) (condition, bool) {
	switch op {
	case "gt":
		return condition{sql: column + " > ?", args: []any{val}}, true
	case "gte":
		return condition{sql: column + " >= ?", args: []any{val}}, true
	case "lt":
		return condition{sql: column + " < ?", args: []any{val}}, true
	case "lte":
		return condition{sql: column + " <= ?", args: []any{val}}, true
	case "eq":
		return condition{sql: column + " = ?", args: []any{val}}, true
	case "ne":
		return condition{sql: column + " != ?", args: []any{val}}, true
	case "contains":
		return condition{sql: column + " LIKE ?", args: []any{"%" + fmt.Sprint(val) + "%"}}, true
	case "not_contains":
		return condition{sql: column + " NOT LIKE ?", args: []any{"%" + fmt.Sprint(val) + "%"}}, true
	case "starts_with":
		return condition{sql: column + " LIKE ?", args: []any{fmt.Sprint(val) + "%"}}, true
	case "ends_with":
		return condition{sql: column + " LIKE ?", args: []any{"%" + fmt.Sprint(val)}}, true
	case "in":
		return inCondition(column, val, false)
	case "not_in":
		return inCondition(column, val, true)
	case "between":
		return betweenCondition(column, val, false)
	case "not_between":
		return betweenCondition(column, val, true)
	case "is_null":
		return condition{sql: column + " IS NULL"}, true
	case "is_not_null":
		return condition{sql: column + " IS NOT NULL"}, true
	case "is_empty":
		return emptyCondition(column, fieldType, true), true
	case "is_not_empty":
		return emptyCondition(column, fieldType, false), true
	case "has_any_of":
		return jsonSetCondition(column, val, setHasAny), true
	case "has_all_of":
		return jsonSetCondition(column, val, setHasAll), true
	case "has_none_of":
		return jsonSetCondition(column, val, setHasNone), true
	case "is_exactly":
		return jsonSetCondition(column, val, setIsExactly), true
	case "is_any_of":
		return inCondition(column, val, false)
	case "is_none_of":
		return inCondition(column, val, true)
	case "is_before":
		return condition{sql: column + " < ?", args: []any{val}}, true
	case "is_on_or_before":
		return condition{sql: column + " <= ?", args: []any{val}}, true
	case "is_on_or_after":
		return condition{sql: column + " >= ?", args: []any{val}}, true
	case "is_overdue":
		return boolColumnCondition(column, val, true), true
	case "is_not_overdue":
		return boolColumnCondition(column, val, false), true
	case "file_name_contains":
		return condition{sql: column + " LIKE ?", args: []any{"%" + fmt.Sprint(val) + "%"}}, true
	case "file_type_is":
		return condition{sql: column + " = ?", args: []any{val}}, true
	default:
		return condition{}, false
	}
}

func boolColumnCondition(column string, want any, wantTrue bool) condition {
	b, _ := want.(bool)
	target := int64(0)
	if b == wantTrue {
		target = 1
	}
	return condition{sql: column + " = ?", args: []any{target}}
}

func valuesSlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i, x := range s {
			out[i] = x
		}
		return out
	default:
		return []any{v}
	}
}

func inCondition(column string, val any, negate bool) (condition, bool) {
	vals := valuesSlice(val)
	if len(vals) == 0 {
		// An empty IN-list matches nothing; its negation matches everything.
		if negate {
			return condition{sql: "1 = 1"}, true
		}
		return condition{sql: "1 = 0"}, true
	}
	placeholders := make([]string, len(vals))
	for i := range vals {
		placeholders[i] = "?"
	}
	op := "IN"
	if negate {
		op = "NOT IN"
	}
	return condition{
		sql:  fmt.Sprintf("%s %s (%s)", column, op, strings.Join(placeholders, ", ")),
		args: vals,
	}, true
}

func betweenCondition(column string, val any, negate bool) (condition, bool) {
	m, ok := val.(map[string]any)
	if !ok {
		return condition{}, false
	}
	min, okMin := m["min"]
	max, okMax := m["max"]
	if !okMin || !okMax {
		return condition{}, false
	}
	op := "BETWEEN"
	if negate {
		op = "NOT BETWEEN"
	}
	return condition{sql: fmt.Sprintf("%s %s ? AND ?", column, op), args: []any{min, max}}, true
}

func emptyCondition(column string, fieldType schema.FieldType, wantEmpty bool) condition {
	if schema.IsJSONArrayField(fieldType) {
		if wantEmpty {
			return condition{sql: fmt.Sprintf("(%s IS NULL OR %s = '[]')", column, column)}
		}
		return condition{sql: fmt.Sprintf("(%s IS NOT NULL AND %s != '[]')", column, column)}
	}
	if wantEmpty {
		return condition{sql: fmt.Sprintf("(%s IS NULL OR %s = '')", column, column)}
	}
	return condition{sql: fmt.Sprintf("(%s IS NOT NULL AND %s != '')", column, column)}
}

// Order appends an ORDER BY term. direction should be "asc" or "desc".
func (b *Builder) Order(slug, direction string) *Builder {
	column, ok := b.resolveColumn(slug)
	if !ok {
		return b
	}
	dir := "ASC"
	if strings.EqualFold(direction, "desc") {
		dir = "DESC"
	}
	b.orderBy = append(b.orderBy, orderTerm{column: column, direction: dir})
	return b
}

// Limit sets the LIMIT clause.
func (b *Builder) Limit(n int) *Builder {
	b.limitN = &n
	return b
}

// Offset sets the OFFSET clause.
func (b *Builder) Offset(n int) *Builder {
	b.offsetN = &n
	return b
}

// buildWhereClause joins accumulated conditions with AND and returns the
// combined args slice, in the order the conditions were added.
func (b *Builder) buildWhereClause() (string, []any) {
	if len(b.conditions) == 0 {
		return "", nil
	}
	parts := make([]string, len(b.conditions))
	var args []any
	for i, c := range b.conditions {
		parts[i] = c.sql
		args = append(args, c.args...)
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

// BuildSelect returns the full SELECT statement and its bound args.
func (b *Builder) BuildSelect(columns []string) (string, []any) {
	colList := "*"
	if len(columns) > 0 {
		colList = strings.Join(columns, ", ")
	}
	where, args := b.buildWhereClause()
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s%s", colList, b.table, where)
	if len(b.orderBy) > 0 {
		terms := make([]string, len(b.orderBy))
		for i, t := range b.orderBy {
			terms[i] = t.column + " " + t.direction
		}
		sb.WriteString(" ORDER BY " + strings.Join(terms, ", "))
	}
	if b.limitN != nil {
		fmt.Fprintf(&sb, " LIMIT %d", *b.limitN)
	}
	if b.offsetN != nil {
		fmt.Fprintf(&sb, " OFFSET %d", *b.offsetN)
	}
	return sb.String(), args
}

// BuildCount returns a SELECT COUNT(*) statement honouring the WHERE
// clause but ignoring ORDER/LIMIT/OFFSET.
func (b *Builder) BuildCount() (string, []any) {
	where, args := b.buildWhereClause()
	return fmt.Sprintf("SELECT COUNT(*) FROM %s%s", b.table, where), args
}

// Execute runs the built SELECT * and returns the raw rows.
func (b *Builder) Execute(ctx context.Context) (*sql.Rows, error) {
	query, args := b.BuildSelect(nil)
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querybuilder: execute: %w", err)
	}
	return rows, nil
}

// Count runs the built SELECT COUNT(*) and returns the scalar result.
func (b *Builder) Count(ctx context.Context) (int, error) {
	query, args := b.BuildCount()
	var n int
	if err := b.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("querybuilder: count: %w", err)
	}
	return n, nil
}
