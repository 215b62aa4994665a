package filtertranslate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recordcache/recordcache/internal/querybuilder"
	"github.com/recordcache/recordcache/internal/schema"
)

func testFields() map[string]querybuilder.FieldResolver {
	title := schema.RemoteField{Slug: "title", Label: "Title", FieldType: schema.TypeTextField}
	tags := schema.RemoteField{Slug: "tags", Label: "Tags", FieldType: schema.TypeMultipleSelectField}
	due := schema.RemoteField{Slug: "due_date", Label: "Due Date", FieldType: schema.TypeDueDateField}
	created := schema.RemoteField{Slug: "created", Label: "Created", FieldType: schema.TypeDateField}

	existing := map[string]bool{}
	return map[string]querybuilder.FieldResolver{
		"title":    {Type: title.FieldType, Columns: schema.Synthesize(title, existing)},
		"tags":     {Type: tags.FieldType, Columns: schema.Synthesize(tags, existing)},
		"due_date": {Type: due.FieldType, Columns: schema.Synthesize(due, existing)},
		"created":  {Type: created.FieldType, Columns: schema.Synthesize(created, existing)},
	}
}

func newBuilder() *querybuilder.Builder {
	return querybuilder.New(nil, "items", testFields())
}

func TestFlatAndChainsWhereCalls(t *testing.T) {
	b := newBuilder()
	root := map[string]any{
		"operator": "and",
		"fields": []any{
			map[string]any{"field": "title", "comparison": "contains", "value": "widget"},
			map[string]any{"field": "tags", "comparison": "has_any_of", "value": []any{"red"}},
		},
	}
	require.NoError(t, Apply(b, root, true), "apply")
	query, args := b.BuildSelect(nil)
	assert.Containsf(t, query, "LIKE", "got %q", query)
	assert.Containsf(t, query, "json_each", "got %q", query)
	assert.Len(t, args, 2)
}

func TestOrGroupProducesParenthesisedFragment(t *testing.T) {
	b := newBuilder()
	root := map[string]any{
		"operator": "or",
		"fields": []any{
			map[string]any{"field": "title", "comparison": "is", "value": "Widget"},
			map[string]any{"field": "title", "comparison": "is", "value": "Gadget"},
		},
	}
	require.NoError(t, Apply(b, root, true), "apply")
	query, args := b.BuildSelect(nil)
	assert.Containsf(t, query, "WHERE (", "got %q", query)
	assert.Containsf(t, query, " OR ", "got %q", query)
	assert.Len(t, args, 2)
}

func TestNestedGroupWrapsInParentheses(t *testing.T) {
	b := newBuilder()
	root := map[string]any{
		"operator": "and",
		"fields": []any{
			map[string]any{"field": "tags", "comparison": "has_any_of", "value": []any{"red"}},
			map[string]any{
				"operator": "or",
				"fields": []any{
					map[string]any{"field": "title", "comparison": "is", "value": "Widget"},
					map[string]any{"field": "title", "comparison": "is", "value": "Gadget"},
				},
			},
		},
	}
	require.NoError(t, Apply(b, root, true), "apply")
	query, _ := b.BuildSelect(nil)
	assert.GreaterOrEqualf(t, strings.Count(query, "("), 1, "expected nested group parenthesised, got %q", query)
}

func TestDateOnlyEqualityExpandsToBetween(t *testing.T) {
	b := newBuilder()
	root := map[string]any{
		"operator": "and",
		"fields": []any{
			map[string]any{"field": "created", "comparison": "is", "value": "2025-06-01"},
		},
	}
	require.NoError(t, Apply(b, root, true), "apply")
	query, args := b.BuildSelect(nil)
	require.Containsf(t, query, "BETWEEN ? AND ?", "got %q", query)
	assert.Equalf(t, "2025-06-01T00:00:00Z", args[0], "got args %v", args)
	assert.Equalf(t, "2025-06-01T23:59:59Z", args[1], "got args %v", args)
}

func TestDateOnlyNotEqualExpandsToNotBetween(t *testing.T) {
	b := newBuilder()
	root := map[string]any{
		"operator": "and",
		"fields": []any{
			map[string]any{"field": "created", "comparison": "is_not", "value": "2025-06-01"},
		},
	}
	require.NoError(t, Apply(b, root, true), "apply")
	query, _ := b.BuildSelect(nil)
	assert.Containsf(t, query, "NOT BETWEEN ? AND ?", "got %q", query)
}

func TestIsBeforeUsesRangeFieldToColumn(t *testing.T) {
	b := newBuilder()
	root := map[string]any{
		"operator": "and",
		"fields": []any{
			map[string]any{"field": "due_date", "comparison": "is_before", "value": "2025-07-01T00:00:00Z"},
		},
	}
	require.NoError(t, Apply(b, root, true), "apply")
	query, _ := b.BuildSelect(nil)
	assert.Containsf(t, query, "_to < ?", "expected range field _to column, got %q", query)
}

func TestIsBeforeWithDateModeWrapper(t *testing.T) {
	b := newBuilder()
	root := map[string]any{
		"operator": "and",
		"fields": []any{
			map[string]any{
				"field":      "due_date",
				"comparison": "is_on_or_after",
				"value":      map[string]any{"date_mode": "custom", "date_mode_value": "2025-08-01"},
			},
		},
	}
	require.NoError(t, Apply(b, root, true), "apply")
	_, args := b.BuildSelect(nil)
	require.NotEmpty(t, args)
	assert.Equalf(t, "2025-08-01T00:00:00Z", args[0], "got args %v", args)
}

func TestStrictModeRejectsIllegalOperator(t *testing.T) {
	b := newBuilder()
	root := map[string]any{
		"operator": "and",
		"fields": []any{
			map[string]any{"field": "tags", "comparison": "is", "value": "red"},
		},
	}
	assert.Error(t, Apply(b, root, true), "expected error in strict mode")
}

func TestNonStrictModeSkipsIllegalOperator(t *testing.T) {
	b := newBuilder()
	root := map[string]any{
		"operator": "and",
		"fields": []any{
			map[string]any{"field": "tags", "comparison": "is", "value": "red"},
			map[string]any{"field": "title", "comparison": "contains", "value": "widget"},
		},
	}
	require.NoError(t, Apply(b, root, false), "apply")
	query, args := b.BuildSelect(nil)
	assert.NotContainsf(t, query, "tags", "expected illegal clause skipped, got %q", query)
	assert.Len(t, args, 1)
}

func TestUnknownFieldSlugSkippedSilently(t *testing.T) {
	b := newBuilder()
	root := map[string]any{
		"operator": "and",
		"fields": []any{
			map[string]any{"field": "no_such_field", "comparison": "is", "value": "x"},
		},
	}
	require.NoError(t, Apply(b, root, true), "apply")
	query, _ := b.BuildSelect(nil)
	assert.NotContainsf(t, query, "WHERE", "expected no WHERE clause, got %q", query)
}
