package domain

import (
	"strings"
	"time"
)

// Date layouts accepted from upstream extraction, tried in order. All dates
// are interpreted at calendar-day granularity in UTC; no timezone
// adjustment is ever applied.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2 2006",
	"01/2006",
	"Jan 2006",
	time.RFC3339,
}

// ParseDate parses a textual date in any accepted layout, truncated to the
// calendar day in UTC. The boolean is false for unparseable input; callers
// must treat that as "field not present", never as an extreme value.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
