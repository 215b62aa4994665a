package schema

import (
	"regexp"
	"strconv"
	"strings"
)

var nonAlnumRun = regexp.MustCompile(`[^a-z0-9]+`)

// reservedWords is the set of SQL reserved words a synthesised column name
// must never collide with.
var reservedWords = map[string]bool{
	"select": true, "from": true, "where": true, "order": true, "group": true,
	"by": true, "table": true, "index": true, "primary": true, "key": true,
	"insert": true, "update": true, "delete": true, "create": true, "drop": true,
	"alter": true, "and": true, "or": true, "not": true, "null": true, "is": true,
	"in": true, "like": true, "between": true, "join": true, "on": true, "as": true,
	"limit": true, "offset": true, "values": true, "into": true, "default": true,
	"unique": true, "check": true, "references": true, "column": true, "all": true,
	"distinct": true, "having": true, "union": true, "case": true, "when": true,
	"then": true, "else": true, "end": true, "exists": true, "true": true, "false": true,
}

// foldToASCII maps the common accented Latin characters used in field
// labels (Spanish/French/German/Portuguese) to their ASCII equivalents.
var foldToASCII = strings.NewReplacer(
	"á", "a", "à", "a", "ä", "a", "â", "a", "ã", "a", "å", "a",
	"é", "e", "è", "e", "ë", "e", "ê", "e",
	"í", "i", "ì", "i", "ï", "i", "î", "i",
	"ó", "o", "ò", "o", "ö", "o", "ô", "o", "õ", "o",
	"ú", "u", "ù", "u", "ü", "u", "û", "u",
	"ñ", "n", "ç", "c", "ß", "ss",
)

// SanitizeColumnName deterministically derives a SQL-safe column base name
// from a RemoteField's label (preferred) or slug (fallback). The result
// always matches [a-z_][a-z0-9_]* and, apart from the constant "column"
// returned when both inputs sanitise away, is never a word in reservedWords.
func SanitizeColumnName(label, slugFallback string) string {
	candidate := sanitizeOne(label)
	if candidate == "" {
		candidate = sanitizeOne(slugFallback)
	}
	if candidate == "" {
		return "column"
	}
	if candidate[0] >= '0' && candidate[0] <= '9' {
		candidate = "f_" + candidate
	}
	if reservedWords[candidate] {
		candidate = "field_" + candidate
	}
	return candidate
}

func sanitizeOne(s string) string {
	s = strings.ToLower(foldToASCII.Replace(s))
	s = nonAlnumRun.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	return s
}

// Dedupe resolves a column-name collision within a table by appending a
// numeric suffix: "status", "status_2", "status_3", ...
func Dedupe(name string, existing map[string]bool) string {
	if !existing[name] {
		return name
	}
	for n := 2; ; n++ {
		candidate := name + "_" + strconv.Itoa(n)
		if !existing[candidate] {
			return candidate
		}
	}
}
