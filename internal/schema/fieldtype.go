// Package schema synthesises typed, indexed local table schemas from the
// Remote API's field catalog, and maintains the registry mapping each
// cached RemoteTable to its physical local table.
package schema

// FieldType is one of the Remote API's closed set of field-type slugs.
type FieldType string

// The field types the engine understands. Any value not in this set is
// handled by the "unknown" fallback (text with JSON fallback).
const (
	TypeTextField         FieldType = "textfield"
	TypeTextArea          FieldType = "textarea"
	TypeTitle             FieldType = "title"
	TypeEmailField        FieldType = "emailfield"
	TypePhoneField        FieldType = "phonefield"
	TypeLinkField         FieldType = "linkfield"
	TypeSingleSelectField FieldType = "singleselectfield"
	TypeTimeField         FieldType = "timefield"
	TypeIPAddressField    FieldType = "ipaddressfield"
	TypeColorPickerField  FieldType = "colorpickerfield"
	TypeSocialNetwork     FieldType = "socialnetworkfield"
	TypeButtonField       FieldType = "buttonfield"
	TypeRecordID          FieldType = "record_id"
	TypeApplicationSlug   FieldType = "application_slug"
	TypeApplicationID     FieldType = "application_id"

	TypeNumberField        FieldType = "numberfield"
	TypeCurrencyField       FieldType = "currencyfield"
	TypePercentField        FieldType = "percentfield"
	TypeRatingField         FieldType = "ratingfield"
	TypeNumberSliderField   FieldType = "numbersliderfield"
	TypePercentCompleteField FieldType = "percentcompletefield"
	TypeDurationField       FieldType = "durationfield"

	TypeAutonumber     FieldType = "autonumber"
	TypeCommentsCount  FieldType = "comments_count"

	TypeYesNoField FieldType = "yesnofield"

	TypeDateField FieldType = "datefield"

	TypeMultipleSelectField FieldType = "multipleselectfield"
	TypeTagField            FieldType = "tagfield"
	TypeAssignedToField     FieldType = "assignedtofield"
	TypeLinkedRecordField   FieldType = "linkedrecordfield"
	TypeFilesField          FieldType = "filesfield"
	TypeImagesField         FieldType = "imagesfield"
	TypeSignatureField      FieldType = "signaturefield"
	TypeFollowedBy          FieldType = "followed_by"
	TypeUserField           FieldType = "userfield"

	TypeFirstCreatedField FieldType = "firstcreatedfield"
	TypeLastUpdatedField  FieldType = "lastupdatedfield"
	TypeDeletedDate       FieldType = "deleted_date"
	TypeDateRangeField    FieldType = "daterangefield"
	TypeDueDateField      FieldType = "duedatefield"
	TypeStatusField       FieldType = "statusfield"
	TypeAddressField      FieldType = "addressfield"
	TypeFullNameField     FieldType = "fullnamefield"
	TypeSmartDocField     FieldType = "smartdocfield"
	TypeChecklistField    FieldType = "checklistfield"
	TypeVoteField         FieldType = "votefield"
	TypeTimeTrackingField FieldType = "timetrackingfield"

	TypeFormulaField FieldType = "formulafield"
	TypeLookupField  FieldType = "lookupfield"
	TypeRollupField  FieldType = "rollupfield"
)

// jsonArrayTypes is the exact membership set behind IsJSONArrayField, used
// by the Query Builder's is_empty/is_not_empty handling for array columns.
// Exact membership only — never substring matching, to avoid misclassifying
// linkedrecordfield as a plain text field.
var jsonArrayTypes = map[FieldType]bool{
	TypeUserField:         true,
	TypeMultipleSelectField: true,
	TypeLinkedRecordField: true,
}

// IsJSONArrayField reports whether type stores its value as a JSON-encoded
// array in a single text column.
func IsJSONArrayField(t FieldType) bool {
	return jsonArrayTypes[t]
}

var multiValueJSONTypes = map[FieldType]bool{
	TypeMultipleSelectField: true,
	TypeTagField:            true,
	TypeAssignedToField:     true,
	TypeLinkedRecordField:   true,
	TypeFilesField:          true,
	TypeImagesField:         true,
	TypeSignatureField:      true,
	TypeFollowedBy:          true,
	TypeUserField:           true,
}

// IsMultiValueField reports whether type is JSON-array-encoded in storage
// (a superset of IsJSONArrayField — includes file/image/signature fields
// that are arrays but not set-operator targets).
func IsMultiValueField(t FieldType) bool {
	return multiValueJSONTypes[t]
}

var textFieldTypes = map[FieldType]bool{
	TypeTextField:         true,
	TypeTextArea:          true,
	TypeTitle:             true,
	TypeEmailField:        true,
	TypePhoneField:        true,
	TypeLinkField:         true,
	TypeSingleSelectField: true,
	TypeTimeField:         true,
	TypeIPAddressField:    true,
	TypeColorPickerField:  true,
	TypeSocialNetwork:     true,
	TypeButtonField:       true,
	TypeRecordID:          true,
	TypeApplicationSlug:   true,
	TypeApplicationID:     true,
}

// IsTextField reports exact membership in the scalar text-type set.
func IsTextField(t FieldType) bool {
	return textFieldTypes[t]
}

// IsFormulaFamily reports whether t's effective type depends on a runtime
// expression, making static operator validation impossible.
func IsFormulaFamily(t FieldType) bool {
	switch t {
	case TypeFormulaField, TypeLookupField, TypeRollupField:
		return true
	default:
		return false
	}
}

// IsRangeField reports whether t is a compound range-shaped field whose
// unqualified filter target defaults to its "_to" sub-column.
func IsRangeField(t FieldType) bool {
	return t == TypeDateRangeField || t == TypeDueDateField
}

// alwaysIndexed is the set of field types that always get an index on
// their primary column(s), regardless of the `primary` parameter.
var alwaysIndexed = map[FieldType]bool{
	TypeStatusField:       true,
	TypeSingleSelectField: true,
	TypeDateField:         true,
	TypeDueDateField:      true,
	TypeDateRangeField:    true,
	TypeCurrencyField:     true,
	TypeLastUpdatedField:  true,
	TypeAssignedToField:   true,
	TypeYesNoField:        true,
}

// AlwaysIndexed reports whether t is in the always-index set.
func AlwaysIndexed(t FieldType) bool {
	return alwaysIndexed[t]
}
