package fuzzy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormaliseFoldsAccents(t *testing.T) {
	got := Normalise("Gestión de Proyectos")
	assert.Equal(t, "gestion de proyectos", got)
}

func TestMatchAccentInsensitive(t *testing.T) {
	assert.True(t, Match("Gestión de Proyectos", "gestion"), "expected accent-insensitive substring match")
}

func TestMatchSubstring(t *testing.T) {
	assert.True(t, Match("Customer Success Board", "success"), "expected substring match")
}

func TestMatchTokenEditDistance(t *testing.T) {
	assert.True(t, Match("Engineering Roadmap", "enginering roadmap"), "expected typo-tolerant match")
}

func TestMatchRejectsUnrelated(t *testing.T) {
	assert.False(t, Match("Engineering Roadmap", "finance budget"), "expected no match for unrelated query")
}

func TestMatchShortStringsRequireCloseness(t *testing.T) {
	assert.False(t, Match("abc", "xyz"), "short strings should not match when unrelated")
	assert.True(t, Match("abc", "abd"), "short strings within distance 1 should match")
}

func TestEditDistance(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"kitten", "sitting", 3},
		{"", "abc", 3},
		{"abc", "abc", 0},
		{"abc", "", 3},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, EditDistance(c.a, c.b), "EditDistance(%q,%q)", c.a, c.b)
	}
}
