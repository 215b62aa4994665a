// Package filtertranslate converts the Remote API's filter DSL — a tree of
// {operator, fields} groups bottoming out in {field, comparison, value}
// leaves — into Query Builder calls.
package filtertranslate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/recordcache/recordcache/internal/filtervalidate"
	"github.com/recordcache/recordcache/internal/querybuilder"
	"github.com/recordcache/recordcache/internal/schema"
	"github.com/recordcache/recordcache/internal/tsnorm"
)

// ErrInvalidOperator is returned in strict mode when a filter leaf names an
// operator the Filter Validator rejects for that field's type.
var ErrInvalidOperator = errors.New("filtertranslate: invalid operator for field type")

// Apply translates root (the top-level filter group) and ANDs the result
// onto b. strict selects whether an illegal (field, comparison) pair raises
// ErrInvalidOperator or is silently skipped.
func Apply(b *querybuilder.Builder, root map[string]any, strict bool) error {
	if root == nil {
		return nil
	}
	return applyGroup(b, root, strict)
}

func applyGroup(b *querybuilder.Builder, group map[string]any, strict bool) error {
	op, _ := group["operator"].(string)
	fieldsRaw, _ := group["fields"].([]any)

	if op == "" {
		op = "and"
	}

	if strings.EqualFold(op, "and") && allLeaves(fieldsRaw) {
		for _, f := range fieldsRaw {
			leaf, ok := f.(map[string]any)
			if !ok {
				continue
			}
			cond, matched, err := leafCondition(b, leaf, strict)
			if err != nil {
				return err
			}
			if !matched {
				continue
			}
			b.WhereRaw(cond.SQL, cond.Args)
		}
		return nil
	}

	frag, args, err := groupFragment(b, group, strict)
	if err != nil {
		return err
	}
	if frag != "" {
		b.WhereRaw("("+frag+")", args)
	}
	return nil
}

// groupFragment recursively renders group as a single SQL fragment (the
// caller adds the outer parentheses), joining direct children with the group's own operator and
// wrapping nested groups in their own parentheses.
func groupFragment(b *querybuilder.Builder, group map[string]any, strict bool) (string, []any, error) {
	op, _ := group["operator"].(string)
	joiner := " AND "
	if strings.EqualFold(op, "or") {
		joiner = " OR "
	}
	fieldsRaw, _ := group["fields"].([]any)

	var parts []string
	var args []any
	for _, f := range fieldsRaw {
		m, ok := f.(map[string]any)
		if !ok {
			continue
		}
		if isGroupNode(m) {
			frag, a, err := groupFragment(b, m, strict)
			if err != nil {
				return "", nil, err
			}
			if frag == "" {
				continue
			}
			parts = append(parts, "("+frag+")")
			args = append(args, a...)
			continue
		}
		cond, matched, err := leafCondition(b, m, strict)
		if err != nil {
			return "", nil, err
		}
		if !matched {
			continue
		}
		parts = append(parts, cond.SQL)
		args = append(args, cond.Args...)
	}
	if len(parts) == 0 {
		return "", nil, nil
	}
	return strings.Join(parts, joiner), args, nil
}

func isGroupNode(m map[string]any) bool {
	_, hasFields := m["fields"]
	return hasFields
}

func allLeaves(fieldsRaw []any) bool {
	for _, f := range fieldsRaw {
		m, ok := f.(map[string]any)
		if !ok {
			continue
		}
		if isGroupNode(m) {
			return false
		}
	}
	return true
}

func leafCondition(b *querybuilder.Builder, leaf map[string]any, strict bool) (querybuilder.Condition, bool, error) {
	field, _ := leaf["field"].(string)
	comparison, _ := leaf["comparison"].(string)
	value := leaf["value"]

	fieldType, known := b.FieldTypeOf(field)
	if known {
		result := filtervalidate.Validate(fieldType, filtervalidate.Operator(comparison))
		if !result.Valid && !result.Unknown {
			if strict {
				return querybuilder.Condition{}, false, fmt.Errorf(
					"%s is not a legal operator for field %q (try %q): %w",
					comparison, field, result.Suggestion, ErrInvalidOperator)
			}
			return querybuilder.Condition{}, false, nil
		}
	}

	opValue, err := translateLeaf(fieldType, comparison, value)
	if err != nil {
		if strict {
			return querybuilder.Condition{}, false, err
		}
		return querybuilder.Condition{}, false, nil
	}

	cond, ok := b.BuildCondition(field, opValue)
	if !ok {
		return querybuilder.Condition{}, false, nil
	}
	return cond, true, nil
}

func isDateLike(t schema.FieldType) bool {
	switch t {
	case schema.TypeDateField, schema.TypeDateRangeField, schema.TypeDueDateField:
		return true
	default:
		return false
	}
}

// translateLeaf maps one Remote API (comparison, value) pair onto the
// Query Builder's operator-map input shape.
func translateLeaf(fieldType schema.FieldType, comparison string, value any) (any, error) {
	switch comparison {
	case "is", "is_not":
		if isDateLike(fieldType) {
			if s, ok := value.(string); ok && tsnorm.IsDateOnly(s) {
				from := s + "T00:00:00Z"
				to := s + "T23:59:59Z"
				bounds := map[string]any{"min": from, "max": to}
				if comparison == "is" {
					return map[string]any{"between": bounds}, nil
				}
				return map[string]any{"not_between": bounds}, nil
			}
		}
		if comparison == "is" {
			return map[string]any{"eq": value}, nil
		}
		return map[string]any{"ne": value}, nil
	case "is_equal_to":
		return map[string]any{"eq": value}, nil
	case "is_not_equal_to":
		return map[string]any{"ne": value}, nil
	case "is_greater_than":
		return map[string]any{"gt": value}, nil
	case "is_less_than":
		return map[string]any{"lt": value}, nil
	case "is_equal_or_greater_than":
		return map[string]any{"gte": value}, nil
	case "is_equal_or_less_than":
		return map[string]any{"lte": value}, nil
	case "contains":
		return map[string]any{"contains": value}, nil
	case "not_contains", "does_not_contain":
		return map[string]any{"not_contains": value}, nil
	case "is_empty":
		return map[string]any{"is_empty": nil}, nil
	case "is_not_empty":
		return map[string]any{"is_not_empty": nil}, nil
	case "is_any_of":
		return map[string]any{"is_any_of": value}, nil
	case "is_none_of":
		return map[string]any{"is_none_of": value}, nil
	case "has_any_of":
		return map[string]any{"has_any_of": value}, nil
	case "has_all_of":
		return map[string]any{"has_all_of": value}, nil
	case "is_exactly":
		return map[string]any{"is_exactly": value}, nil
	case "has_none_of":
		return map[string]any{"has_none_of": value}, nil
	case "is_before", "is_on_or_before", "is_on_or_after":
		dateStr, err := extractDate(value)
		if err != nil {
			return nil, fmt.Errorf("filtertranslate: %s: %w", comparison, err)
		}
		norm, err := tsnorm.Normalise(dateStr)
		if err != nil {
			return nil, fmt.Errorf("filtertranslate: %s: %w", comparison, err)
		}
		return map[string]any{comparison: norm}, nil
	case "is_overdue":
		return map[string]any{"is_overdue": true}, nil
	case "is_not_overdue":
		return map[string]any{"is_not_overdue": true}, nil
	case "file_name_contains":
		return map[string]any{"file_name_contains": value}, nil
	case "file_type_is":
		return map[string]any{"file_type_is": value}, nil
	case "between":
		return map[string]any{"between": value}, nil
	case "not_between":
		return map[string]any{"not_between": value}, nil
	default:
		// Unknown operator: pass the raw value through as equality.
		return map[string]any{"eq": value}, nil
	}
}

// extractDate pulls a date-ish string out of either a bare string value or
// the Remote API's {date_mode, date_mode_value} relative-date wrapper.
func extractDate(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case map[string]any:
		if dv, ok := v["date_mode_value"]; ok {
			if s, ok := dv.(string); ok {
				return s, nil
			}
		}
		return "", errors.New("date_mode wrapper missing a string date_mode_value")
	default:
		return "", fmt.Errorf("unsupported date value type %T", value)
	}
}
