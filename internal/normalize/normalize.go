// Package normalize converts scraped display text into typed values.
//
// The source pages render numbers with thousands separators and K/M/B
// magnitude suffixes, and timestamps as ISO strings, display dates, or
// relative offsets ("2h", "3d"). Everything here is best-effort: parse
// failures fall back to zero values instead of errors so a single
// malformed cell never aborts a collection run.
package normalize

import (
	"strconv"
	"strings"
	"time"
)

// Magnitude converts suffixed magnitude text ("12.3K", "4.5M") to a float.
// Thousands separators and surrounding whitespace are stripped; a trailing
// K, M, or B (either case) multiplies by 1e3, 1e6, or 1e9. Empty or
// unparseable input yields 0.
func Magnitude(text string) float64 {
	t := strings.TrimSpace(strings.ReplaceAll(text, ",", ""))
	if t == "" {
		return 0
	}

	mult := 1.0
	switch t[len(t)-1] {
	case 'B', 'b':
		mult = 1e9
		t = t[:len(t)-1]
	case 'M', 'm':
		mult = 1e6
		t = t[:len(t)-1]
	case 'K', 'k':
		mult = 1e3
		t = t[:len(t)-1]
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
	if err != nil {
		return 0
	}
	return v * mult
}

// RelativeTime parses display text like "2h" or "14d" as an offset before
// now. The unit is resolved in priority order h, d, m — first letter found
// wins, so "1d2h" resolves as hours. Text without a digit or a recognized
// unit yields false.
func RelativeTime(text string, now time.Time) (time.Time, bool) {
	t := strings.ToLower(strings.TrimSpace(text))

	var digits strings.Builder
	for _, r := range t {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(digits.String())
	if err != nil {
		return time.Time{}, false
	}

	switch {
	case strings.Contains(t, "h"):
		return now.Add(-time.Duration(n) * time.Hour), true
	case strings.Contains(t, "d"):
		return now.AddDate(0, 0, -n), true
	case strings.Contains(t, "m"):
		return now.Add(-time.Duration(n) * time.Minute), true
	}
	return time.Time{}, false
}

// timestampLayouts are tried in order by ParseTimestamp.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-ish timestamp string.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// MostRecent parses each candidate timestamp and returns the maximum.
// Unparseable entries are skipped; false means no candidate parsed.
func MostRecent(dates []string) (time.Time, bool) {
	var best time.Time
	found := false
	for _, d := range dates {
		t, ok := ParseTimestamp(d)
		if !ok {
			continue
		}
		if !found || t.After(best) {
			best = t
			found = true
		}
	}
	return best, found
}
