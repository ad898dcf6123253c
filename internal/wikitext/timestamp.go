package wikitext

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// TimestampLayout is the signature timestamp layout MediaWiki appends to
// talk-page comments, e.g. "14:05, 3 June 2024 (UTC)".
const TimestampLayout = "15:04, 2 January 2006 (UTC)"

// timestampPattern finds timestamp-shaped substrings inside free text. A
// match is only a candidate: ParseTimestamp decides whether it is valid.
var timestampPattern = regexp.MustCompile(`\d{1,2}:\d{2}, \d{1,2} [A-Z][a-z]+ \d{4} \(UTC\)`)

// timestampExact anchors the same grammar to the whole string.
var timestampExact = regexp.MustCompile(`^(\d{1,2}):(\d{2}), (\d{1,2}) ([A-Z][a-z]+) (\d{4}) \(UTC\)$`)

var months = map[string]time.Month{
	"January":   time.January,
	"February":  time.February,
	"March":     time.March,
	"April":     time.April,
	"May":       time.May,
	"June":      time.June,
	"July":      time.July,
	"August":    time.August,
	"September": time.September,
	"October":   time.October,
	"November":  time.November,
	"December":  time.December,
}

// FormatError reports a string that does not follow the signature
// timestamp grammar.
type FormatError struct {
	Input  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid timestamp %q: %s", e.Input, e.Reason)
}

// ParseTimestamp parses a signature timestamp into a UTC instant with minute
// precision. The whole input must match; partial matches are rejected.
func ParseTimestamp(s string) (time.Time, error) {
	m := timestampExact.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, &FormatError{Input: s, Reason: "does not match H:MM, D Month YYYY (UTC)"}
	}

	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	year, _ := strconv.Atoi(m[5])

	month, ok := months[m[4]]
	if !ok {
		return time.Time{}, &FormatError{Input: s, Reason: fmt.Sprintf("unknown month %q", m[4])}
	}
	if hour > 23 || minute > 59 {
		return time.Time{}, &FormatError{Input: s, Reason: "time of day out of range"}
	}

	t := time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
	// time.Date normalizes overflow (31 June becomes 1 July); reject it instead.
	if day < 1 || t.Day() != day || t.Month() != month {
		return time.Time{}, &FormatError{Input: s, Reason: "day out of range for month"}
	}
	return t, nil
}

// FormatTimestamp renders t in the signature timestamp layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// FindTimestamp returns the first timestamp-shaped substring of s that also
// parses, along with its parsed value. Malformed candidates are skipped.
func FindTimestamp(s string) (time.Time, bool) {
	for _, candidate := range timestampPattern.FindAllString(s, -1) {
		t, err := ParseTimestamp(candidate)
		if err != nil {
			continue
		}
		return t, true
	}
	return time.Time{}, false
}
