// Package tsnorm normalises timestamps between the wire format used by the
// Remote API (ISO-8601, with or without a time component) and the engine's
// stable on-disk representation (UTC ISO-8601).
package tsnorm

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

var (
	dateOnlyRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	datetimeRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:?\d{2})?$`)
)

// IsDateOnly reports whether s is a bare YYYY-MM-DD calendar date.
func IsDateOnly(s string) bool {
	return dateOnlyRe.MatchString(strings.TrimSpace(s))
}

// IsTimestamp reports whether s is a full ISO-8601 datetime or a bare date.
func IsTimestamp(s string) bool {
	s = strings.TrimSpace(s)
	return IsDateOnly(s) || datetimeRe.MatchString(s)
}

// Normalise converts s to stable UTC ISO-8601. A bare date becomes
// midnight UTC. Unparseable input is returned unchanged alongside an error
// so callers can decide whether to treat it as a degraded value.
func Normalise(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("tsnorm: empty timestamp")
	}
	if IsDateOnly(s) {
		t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
		if err != nil {
			return s, fmt.Errorf("tsnorm: parse date %q: %w", s, err)
		}
		return t.UTC().Format(time.RFC3339), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		// Fall back to a couple of common offset-less layouts before giving up.
		for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
			if t2, err2 := time.ParseInLocation(layout, s, time.UTC); err2 == nil {
				return t2.UTC().Format(time.RFC3339), nil
			}
		}
		return s, fmt.Errorf("tsnorm: parse timestamp %q: %w", s, err)
	}
	return t.UTC().Format(time.RFC3339), nil
}

// DateHash is the {date, include_time} shape the Remote API emits for
// range/due-date sub-fields.
type DateHash struct {
	Date        string
	IncludeTime bool
}

// Zone configures how ToDisplay renders a normalised timestamp.
type Zone struct {
	// Name is an IANA zone name ("America/New_York"), "utc", "local",
	// "system", or empty.
	Name string
	// Offset is used whenever HasOffset is set, taking precedence over
	// Name (literal fixed delta, no DST).
	Offset    time.Duration
	HasOffset bool
}

// ResolveZone resolves the display zone following: programmatic Zone value
// (if non-empty) > RECORDCACHE_DISPLAY_TZ environment variable > "utc".
func ResolveZone(programmatic Zone) (*time.Location, error) {
	if programmatic.HasOffset {
		return time.FixedZone(offsetName(programmatic.Offset), int(programmatic.Offset.Seconds())), nil
	}
	name := programmatic.Name
	if name == "" {
		name = os.Getenv("RECORDCACHE_DISPLAY_TZ")
	}
	if name == "" {
		name = "utc"
	}
	switch strings.ToLower(name) {
	case "utc":
		return time.UTC, nil
	case "local", "system":
		return time.Local, nil
	default:
		loc, err := time.LoadLocation(name)
		if err != nil {
			return nil, fmt.Errorf("tsnorm: unknown zone %q: %w", name, err)
		}
		return loc, nil
	}
}

func offsetName(d time.Duration) string {
	total := int(d.Minutes())
	sign := "+"
	if total < 0 {
		sign = "-"
		total = -total
	}
	return fmt.Sprintf("UTC%s%02d:%02d", sign, total/60, total%60)
}

// ToDisplay formats a date hash in the given zone. When IncludeTime is
// false and the UTC time is exactly midnight, the value is treated as
// date-only and returned untouched (workaround for a Remote-API defect
// where include_time=false is incorrectly set on timed ranges).
func ToDisplay(h DateHash, loc *time.Location) (string, error) {
	if IsDateOnly(h.Date) {
		return h.Date, nil
	}
	t, err := time.Parse(time.RFC3339, h.Date)
	if err != nil {
		t, err = time.ParseInLocation("2006-01-02T15:04:05", h.Date, time.UTC)
		if err != nil {
			return "", fmt.Errorf("tsnorm: parse date hash %q: %w", h.Date, err)
		}
	}
	isMidnightUTC := t.UTC().Hour() == 0 && t.UTC().Minute() == 0 && t.UTC().Second() == 0
	if !h.IncludeTime && isMidnightUTC {
		return t.UTC().Format("2006-01-02"), nil
	}
	return t.In(loc).Format("2006-01-02 15:04:05 MST"), nil
}
