package querybuilder

import (
	"fmt"
	"strings"
)

// setMode selects the JSON-array set-operator semantics for a
// multi-value column stored as a JSON array string.
type setMode int

const (
	setHasAny setMode = iota
	setHasAll
	setHasNone
	setIsExactly
)

// jsonSetCondition builds a condition testing a JSON-array column against
// a candidate set of values, using json_each to avoid LIKE-based
// substring false positives on overlapping option names.
func jsonSetCondition(column string, val any, mode setMode) condition {
	vals := valuesSlice(val)
	if len(vals) == 0 {
		switch mode {
		case setHasNone:
			return condition{sql: "1 = 1"}
		case setIsExactly:
			return condition{sql: fmt.Sprintf("(%s IS NULL OR %s = '[]')", column, column)}
		default:
			return condition{sql: "1 = 0"}
		}
	}

	placeholders := make([]string, len(vals))
	for i := range vals {
		placeholders[i] = "?"
	}
	inList := strings.Join(placeholders, ", ")

	switch mode {
	case setHasAny:
		return condition{
			sql: fmt.Sprintf(
				"EXISTS (SELECT 1 FROM json_each(%s) WHERE json_each.value IN (%s))",
				column, inList),
			args: vals,
		}
	case setHasNone:
		return condition{
			sql: fmt.Sprintf(
				"NOT EXISTS (SELECT 1 FROM json_each(%s) WHERE json_each.value IN (%s))",
				column, inList),
			args: vals,
		}
	case setHasAll:
		args := make([]any, 0, len(vals)+1)
		args = append(args, vals...)
		args = append(args, float64(len(vals)))
		return condition{
			sql: fmt.Sprintf(
				"(SELECT COUNT(DISTINCT json_each.value) FROM json_each(%s) WHERE json_each.value IN (%s)) = ?",
				column, inList),
			args: args,
		}
	case setIsExactly:
		return condition{
			sql: fmt.Sprintf(
				"(SELECT COUNT(*) FROM json_each(%s)) = ? AND "+
					"(SELECT COUNT(DISTINCT json_each.value) FROM json_each(%s) WHERE json_each.value IN (%s)) = ?",
				column, column, inList),
			args: append(append([]any{float64(len(vals))}, vals...), float64(len(vals))),
		}
	default:
		return condition{sql: "1 = 0"}
	}
}
