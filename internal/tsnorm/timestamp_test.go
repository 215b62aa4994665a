package tsnorm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDateOnly(t *testing.T) {
	assert.True(t, IsDateOnly("2025-03-10"), "expected date-only match")
	assert.False(t, IsDateOnly("2025-03-10T00:00:00Z"), "datetime should not match date-only")
}

func TestIsTimestamp(t *testing.T) {
	cases := []string{
		"2025-03-10",
		"2025-03-10T10:30:00Z",
		"2025-03-10T10:30:00.123Z",
		"2025-03-10T10:30:00+05:30",
	}
	for _, c := range cases {
		assert.Truef(t, IsTimestamp(c), "expected %q to be recognised as a timestamp", c)
	}
	assert.False(t, IsTimestamp("not-a-date"), "garbage should not be recognised")
}

func TestNormaliseBareDate(t *testing.T) {
	got, err := Normalise("2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10T00:00:00Z", got)
}

func TestNormaliseWithOffset(t *testing.T) {
	got, err := Normalise("2025-03-10T10:30:00+05:30")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10T05:00:00Z", got)
}

func TestResolveZoneUTCDefault(t *testing.T) {
	loc, err := ResolveZone(Zone{})
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestResolveZoneNamed(t *testing.T) {
	loc, err := ResolveZone(Zone{Name: "America/New_York"})
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())
}

func TestToDisplayDateOnly(t *testing.T) {
	got, err := ToDisplay(DateHash{Date: "2025-03-10"}, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", got)
}

func TestToDisplayMidnightWorkaround(t *testing.T) {
	// include_time=false but the stored instant is midnight UTC: treated as date-only.
	got, err := ToDisplay(DateHash{Date: "2025-03-10T00:00:00Z", IncludeTime: false}, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", got)
}

func TestToDisplayTimedRange(t *testing.T) {
	got, err := ToDisplay(DateHash{Date: "2025-03-10T14:30:00Z", IncludeTime: true}, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10 14:30:00 UTC", got)
}
