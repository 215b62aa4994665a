package schema

// scalarSQLType maps a scalar field type to its SQL storage type. Types
// absent from this table are either compound (handled by Synthesize
// directly) or unknown (fall back to TEXT).
var scalarSQLType = map[FieldType]string{
	TypeTextField:         "TEXT",
	TypeTextArea:          "TEXT",
	TypeTitle:             "TEXT",
	TypeEmailField:        "TEXT",
	TypePhoneField:        "TEXT",
	TypeLinkField:         "TEXT",
	TypeSingleSelectField: "TEXT",
	TypeTimeField:         "TEXT",
	TypeIPAddressField:    "TEXT",
	TypeColorPickerField:  "TEXT",
	TypeSocialNetwork:     "TEXT",
	TypeButtonField:       "TEXT",
	TypeRecordID:          "TEXT",
	TypeApplicationSlug:   "TEXT",
	TypeApplicationID:     "TEXT",

	TypeNumberField:          "REAL",
	TypeCurrencyField:        "REAL",
	TypePercentField:         "REAL",
	TypeRatingField:          "REAL",
	TypeNumberSliderField:    "REAL",
	TypePercentCompleteField: "REAL",
	TypeDurationField:        "REAL",

	TypeAutonumber:    "INTEGER",
	TypeCommentsCount: "INTEGER",

	TypeYesNoField: "INTEGER",

	TypeDateField: "TEXT",

	TypeMultipleSelectField: "TEXT",
	TypeTagField:            "TEXT",
	TypeAssignedToField:     "TEXT",
	TypeLinkedRecordField:   "TEXT",
	TypeFilesField:          "TEXT",
	TypeImagesField:         "TEXT",
	TypeSignatureField:      "TEXT",
	TypeFollowedBy:          "TEXT",
	TypeUserField:           "TEXT",
}

// Synthesize deterministically derives the FieldColumns for a RemoteField,
// deduplicating its column names against existing (which Synthesize
// mutates to register the new names).
func Synthesize(f RemoteField, existing map[string]bool) FieldColumns {
	base := SanitizeColumnName(f.Label, f.Slug)
	base = Dedupe(base, existing)

	cols := compoundColumns(f, base, existing)
	if cols == nil {
		sqlType, ok := scalarSQLType[f.FieldType]
		if !ok {
			sqlType = "TEXT" // unknown field type: text with JSON fallback
		}
		indexed := AlwaysIndexed(f.FieldType) || f.Primary() || f.Slug == "title"
		cols = []Column{{Name: base, SQLType: sqlType, Indexed: indexed}}
	}

	for _, c := range cols {
		existing[c.Name] = true
	}
	return FieldColumns{Slug: f.Slug, Columns: cols}
}

func compoundColumns(f RemoteField, base string, existing map[string]bool) []Column {
	switch f.FieldType {
	case TypeFirstCreatedField:
		return []Column{
			{Name: Dedupe("created_on", existing), SQLType: "TEXT"},
			{Name: Dedupe("created_by", existing), SQLType: "TEXT"},
		}
	case TypeLastUpdatedField:
		return []Column{
			{Name: Dedupe("updated_on", existing), SQLType: "TEXT", Indexed: true},
			{Name: Dedupe("updated_by", existing), SQLType: "TEXT"},
		}
	case TypeDeletedDate:
		return []Column{
			{Name: Dedupe("deleted_on", existing), SQLType: "TEXT"},
			{Name: Dedupe("deleted_by", existing), SQLType: "TEXT"},
		}
	case TypeDateRangeField:
		return []Column{
			{Name: base + "_from", SQLType: "TEXT", Indexed: true},
			{Name: base + "_to", SQLType: "TEXT", Indexed: true},
			{Name: base + "_include_time", SQLType: "INTEGER"},
		}
	case TypeDueDateField:
		return []Column{
			{Name: base + "_from", SQLType: "TEXT", Indexed: true},
			{Name: base + "_to", SQLType: "TEXT", Indexed: true},
			{Name: base + "_is_overdue", SQLType: "INTEGER"},
			{Name: base + "_is_completed", SQLType: "INTEGER"},
			{Name: base + "_include_time", SQLType: "INTEGER"},
		}
	case TypeStatusField:
		return []Column{
			{Name: base, SQLType: "TEXT", Indexed: true},
			{Name: base + "_updated_on", SQLType: "TEXT"},
		}
	case TypeAddressField:
		return []Column{
			{Name: base + "_text", SQLType: "TEXT"},
			{Name: base + "_json", SQLType: "TEXT"},
		}
	case TypeFullNameField:
		return []Column{
			{Name: base, SQLType: "TEXT"},
			{Name: base + "_json", SQLType: "TEXT"},
		}
	case TypeSmartDocField:
		return []Column{
			{Name: base + "_preview", SQLType: "TEXT"},
			{Name: base + "_json", SQLType: "TEXT"},
		}
	case TypeChecklistField:
		return []Column{
			{Name: base + "_json", SQLType: "TEXT"},
			{Name: base + "_total", SQLType: "INTEGER"},
			{Name: base + "_completed", SQLType: "INTEGER"},
		}
	case TypeVoteField:
		return []Column{
			{Name: base + "_count", SQLType: "INTEGER"},
			{Name: base + "_json", SQLType: "TEXT"},
		}
	case TypeTimeTrackingField:
		return []Column{
			{Name: base + "_json", SQLType: "TEXT"},
			{Name: base + "_total", SQLType: "REAL"},
		}
	default:
		return nil
	}
}

// IndexColumnsFor returns the names of the columns within fc that should
// carry an index, per the index policy (§4.4).
func IndexColumnsFor(fc FieldColumns) []string {
	var out []string
	for _, c := range fc.Columns {
		if c.Indexed {
			out = append(out, c.Name)
		}
	}
	return out
}
