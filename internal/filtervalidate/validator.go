// Package filtervalidate checks whether a (field type, comparison operator)
// pair from the Remote API's filter DSL is legal, and suggests a canonical
// replacement when it isn't.
package filtervalidate

import "github.com/recordcache/recordcache/internal/schema"

// Operator is one of the Remote API's filter comparison operators.
type Operator string

const (
	OpIs              Operator = "is"
	OpIsNot           Operator = "is_not"
	OpIsEqualTo       Operator = "is_equal_to"
	OpIsNotEqualTo    Operator = "is_not_equal_to"
	OpIsGreaterThan   Operator = "is_greater_than"
	OpIsLessThan      Operator = "is_less_than"
	OpIsEqualOrGreater Operator = "is_equal_or_greater_than"
	OpIsEqualOrLess   Operator = "is_equal_or_less_than"
	OpContains        Operator = "contains"
	OpNotContains     Operator = "not_contains"
	OpDoesNotContain  Operator = "does_not_contain"
	OpIsEmpty         Operator = "is_empty"
	OpIsNotEmpty      Operator = "is_not_empty"
	OpIsAnyOf         Operator = "is_any_of"
	OpIsNoneOf        Operator = "is_none_of"
	OpHasAnyOf        Operator = "has_any_of"
	OpHasAllOf        Operator = "has_all_of"
	OpIsExactly       Operator = "is_exactly"
	OpHasNoneOf       Operator = "has_none_of"
	OpIsBefore        Operator = "is_before"
	OpIsOnOrBefore    Operator = "is_on_or_before"
	OpIsOnOrAfter     Operator = "is_on_or_after"
	OpIsOverdue       Operator = "is_overdue"
	OpIsNotOverdue    Operator = "is_not_overdue"
	OpFileNameContains Operator = "file_name_contains"
	OpFileTypeIs      Operator = "file_type_is"
	OpBetween         Operator = "between"
	OpNotBetween      Operator = "not_between"
)

var equality = []Operator{OpIs, OpIsNot, OpIsEqualTo, OpIsNotEqualTo}
var emptiness = []Operator{OpIsEmpty, OpIsNotEmpty}

// legalOperators maps each concretely-validatable field type to its legal
// operator set. Types absent from this map are either formula-family or
// otherwise unknown to the validator (see Operators).
var legalOperators = map[schema.FieldType][]Operator{
	schema.TypeTextField: append(append([]Operator{}, equality...), OpContains, OpNotContains, OpDoesNotContain, OpIsEmpty, OpIsNotEmpty),
	schema.TypeTextArea:  append(append([]Operator{}, equality...), OpContains, OpNotContains, OpDoesNotContain, OpIsEmpty, OpIsNotEmpty),
	schema.TypeTitle:     append(append([]Operator{}, equality...), OpContains, OpNotContains, OpDoesNotContain, OpIsEmpty, OpIsNotEmpty),
	schema.TypeEmailField: append(append([]Operator{}, equality...), OpContains, OpNotContains, OpIsEmpty, OpIsNotEmpty),
	schema.TypePhoneField: append(append([]Operator{}, equality...), OpContains, OpNotContains, OpIsEmpty, OpIsNotEmpty),
	schema.TypeLinkField:  append(append([]Operator{}, equality...), OpContains, OpNotContains, OpIsEmpty, OpIsNotEmpty),

	schema.TypeNumberField:   append(append([]Operator{}, equality...), OpIsGreaterThan, OpIsLessThan, OpIsEqualOrGreater, OpIsEqualOrLess, OpIsEmpty, OpIsNotEmpty),
	schema.TypeCurrencyField: append(append([]Operator{}, equality...), OpIsGreaterThan, OpIsLessThan, OpIsEqualOrGreater, OpIsEqualOrLess, OpIsEmpty, OpIsNotEmpty),
	schema.TypePercentField:  append(append([]Operator{}, equality...), OpIsGreaterThan, OpIsLessThan, OpIsEqualOrGreater, OpIsEqualOrLess, OpIsEmpty, OpIsNotEmpty),
	schema.TypeRatingField:   append(append([]Operator{}, equality...), OpIsGreaterThan, OpIsLessThan, OpIsEqualOrGreater, OpIsEqualOrLess),
	schema.TypeDurationField: append(append([]Operator{}, equality...), OpIsGreaterThan, OpIsLessThan, OpIsEqualOrGreater, OpIsEqualOrLess),
	schema.TypeAutonumber:    append(append([]Operator{}, equality...), OpIsGreaterThan, OpIsLessThan, OpIsEqualOrGreater, OpIsEqualOrLess),

	schema.TypeYesNoField: {OpIs, OpIsNot},

	schema.TypeDateField: {OpIs, OpIsNot, OpIsBefore, OpIsOnOrBefore, OpIsOnOrAfter, OpIsEmpty, OpIsNotEmpty, OpBetween, OpNotBetween},
	schema.TypeDateRangeField: {OpIs, OpIsNot, OpIsBefore, OpIsOnOrBefore, OpIsOnOrAfter, OpIsEmpty, OpIsNotEmpty, OpBetween, OpNotBetween},
	schema.TypeDueDateField:   {OpIs, OpIsNot, OpIsBefore, OpIsOnOrBefore, OpIsOnOrAfter, OpIsEmpty, OpIsNotEmpty, OpIsOverdue, OpIsNotOverdue, OpBetween, OpNotBetween},

	schema.TypeSingleSelectField: {OpIsAnyOf, OpIsNoneOf, OpIsEmpty, OpIsNotEmpty},

	schema.TypeMultipleSelectField: {OpHasAnyOf, OpHasAllOf, OpIsExactly, OpHasNoneOf, OpIsEmpty, OpIsNotEmpty},
	schema.TypeTagField:            {OpHasAnyOf, OpHasAllOf, OpIsExactly, OpHasNoneOf, OpIsEmpty, OpIsNotEmpty},
	schema.TypeUserField:           {OpHasAnyOf, OpHasAllOf, OpIsExactly, OpHasNoneOf, OpIsEmpty, OpIsNotEmpty},
	schema.TypeAssignedToField:     {OpHasAnyOf, OpHasAllOf, OpIsExactly, OpHasNoneOf, OpIsEmpty, OpIsNotEmpty},
	schema.TypeLinkedRecordField:   {OpHasAnyOf, OpHasAllOf, OpIsExactly, OpHasNoneOf, OpIsEmpty, OpIsNotEmpty},

	schema.TypeFilesField:  {OpFileNameContains, OpFileTypeIs, OpIsEmpty, OpIsNotEmpty},
	schema.TypeImagesField: {OpFileNameContains, OpFileTypeIs, OpIsEmpty, OpIsNotEmpty},
}

// Result is the outcome of validating a (field type, operator) pair.
type Result struct {
	Valid      bool
	Unknown    bool // field type can't be validated at all (formula family or unrecognised)
	Suggestion Operator
}

// Operators returns the legal operator set for fieldType. A nil/empty
// result (with Unknown=false) means "no operators" — callers should treat
// every comparison on that type as invalid.
func Operators(fieldType schema.FieldType) ([]Operator, bool) {
	if schema.IsFormulaFamily(fieldType) {
		return nil, true
	}
	ops, ok := legalOperators[fieldType]
	if !ok {
		return nil, true // unknown field type: don't block
	}
	return ops, false
}

// Validate checks whether op is legal for fieldType.
func Validate(fieldType schema.FieldType, op Operator) Result {
	ops, unknown := Operators(fieldType)
	if unknown {
		return Result{Valid: true, Unknown: true}
	}
	for _, o := range ops {
		if o == op {
			return Result{Valid: true}
		}
	}
	return Result{Valid: false, Suggestion: suggest(fieldType, op)}
}

// suggest proposes a canonical replacement operator for a few well-known
// mistaken combinations.
func suggest(fieldType schema.FieldType, op Operator) Operator {
	switch {
	case schema.IsMultiValueField(fieldType) && op == OpIs:
		return OpHasAnyOf
	case fieldType == schema.TypeSingleSelectField && (op == OpHasAnyOf || op == OpIs):
		return OpIsAnyOf
	case isNumericField(fieldType) && (op == OpContains || op == OpNotContains):
		return OpIs
	case isTextLikeField(fieldType) && isNumericOperator(op):
		return OpIs
	default:
		return ""
	}
}

func isNumericField(t schema.FieldType) bool {
	switch t {
	case schema.TypeNumberField, schema.TypeCurrencyField, schema.TypePercentField,
		schema.TypeRatingField, schema.TypeDurationField, schema.TypeAutonumber:
		return true
	default:
		return false
	}
}

func isTextLikeField(t schema.FieldType) bool {
	return schema.IsTextField(t)
}

func isNumericOperator(op Operator) bool {
	switch op {
	case OpIsGreaterThan, OpIsLessThan, OpIsEqualOrGreater, OpIsEqualOrLess:
		return true
	default:
		return false
	}
}
