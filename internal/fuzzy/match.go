// Package fuzzy provides case- and accent-insensitive name matching for
// human lookups, e.g. resolving a solution or table by a user-typed name
// that may differ in casing, accents, or minor spelling.
package fuzzy

import (
	"strings"
	"unicode"
)

// MaxEditDistance bounds the per-token edit distance used by Match.
const MaxEditDistance = 2

// DefaultThreshold is the minimum fraction of query tokens that must match
// for Match to report a hit.
const DefaultThreshold = 0.6

var accentFold = strings.NewReplacer(
	"á", "a", "à", "a", "ä", "a", "â", "a", "ã", "a", "å", "a",
	"é", "e", "è", "e", "ë", "e", "ê", "e",
	"í", "i", "ì", "i", "ï", "i", "î", "i",
	"ó", "o", "ò", "o", "ö", "o", "ô", "o", "õ", "o",
	"ú", "u", "ù", "u", "ü", "u", "û", "u",
	"ñ", "n", "ç", "c",
	"ß", "ss",
	"Á", "a", "À", "a", "Ä", "a", "Â", "a", "Ã", "a", "Å", "a",
	"É", "e", "È", "e", "Ë", "e", "Ê", "e",
	"Í", "i", "Ì", "i", "Ï", "i", "Î", "i",
	"Ó", "o", "Ò", "o", "Ö", "o", "Ô", "o", "Õ", "o",
	"Ú", "u", "Ù", "u", "Ü", "u", "Û", "u",
	"Ñ", "n", "Ç", "c",
)

// Normalise folds accents and lower-cases s, collapsing runs of
// non-alphanumeric characters to single spaces.
func Normalise(s string) string {
	folded := accentFold.Replace(s)
	var b strings.Builder
	b.Grow(len(folded))
	lastWasSpace := true
	for _, r := range folded {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastWasSpace = false
			continue
		}
		if !lastWasSpace {
			b.WriteRune(' ')
			lastWasSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// EditDistance computes the Levenshtein distance between a and b.
func EditDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// tokenMatches reports whether query token q matches target token tok,
// either as a substring or within MaxEditDistance. Strings of length <= 3
// require exact match or distance <= 1.
func tokenMatches(q, tok string) bool {
	if q == tok {
		return true
	}
	if len(q) <= 3 || len(tok) <= 3 {
		return EditDistance(q, tok) <= 1
	}
	if strings.Contains(tok, q) {
		return true
	}
	return EditDistance(q, tok) <= MaxEditDistance
}

// Match reports whether query fuzzily matches target, using the default
// similarity threshold.
func Match(target, query string) bool {
	return MatchThreshold(target, query, DefaultThreshold)
}

// MatchThreshold is Match with an explicit similarity threshold: the
// fraction of query tokens that must find a matching target token.
func MatchThreshold(target, query string, threshold float64) bool {
	nt := Normalise(target)
	nq := Normalise(query)
	if nq == "" {
		return false
	}
	if len(nq) <= 3 || len(nt) <= 3 {
		if nt == nq || strings.Contains(nt, nq) {
			return true
		}
		return EditDistance(nt, nq) <= 1
	}
	if strings.Contains(nt, nq) {
		return true
	}

	queryTokens := strings.Fields(nq)
	targetTokens := strings.Fields(nt)
	if len(queryTokens) == 0 {
		return false
	}
	matched := 0
	for _, qt := range queryTokens {
		for _, tt := range targetTokens {
			if tokenMatches(qt, tt) {
				matched++
				break
			}
		}
	}
	return float64(matched)/float64(len(queryTokens)) >= threshold
}
