package domain

import (
	"time"
	"unicode/utf8"

	"github.com/clerkbot/activity-clerk/internal/wikitext"
)

// ProximityWindow is how many characters either side of a user reference
// the second scan pass searches for a timestamp.
const ProximityWindow = 120

// Scan collects per-participant comment statistics from a section of a
// discussion page. The result only holds participants with at least one
// observation.
//
// The first pass is line-anchored: every tracked user reference on a line
// that carries a timestamp is credited with that line's timestamp, which is
// the usual "comment ~~~~" signature shape. The second pass only runs for
// participants the first pass found nothing for: each of their references
// anywhere in the section is credited with the first timestamp within
// ProximityWindow characters of it.
//
// The second pass has no tie-break. When two participants' references sit
// within the window of the same timestamp, both are credited with it.
func Scan(section string, participants map[string]Participant) map[string]CommentStats {
	stats := make(map[string]*CommentStats)
	observe := func(name string, t time.Time) {
		s, ok := stats[name]
		if !ok {
			s = &CommentStats{}
			stats[name] = s
		}
		s.Observe(t)
	}

	for _, line := range splitLines(section) {
		ts, ok := wikitext.FindTimestamp(line)
		if !ok {
			continue
		}
		for _, ref := range wikitext.UserRefs(line) {
			if _, tracked := participants[ref.Name]; tracked {
				observe(ref.Name, ts)
			}
		}
	}

	missing := make(map[string]struct{})
	for name := range participants {
		if _, seen := stats[name]; !seen {
			missing[name] = struct{}{}
		}
	}

	if len(missing) > 0 {
		for _, ref := range wikitext.UserRefs(section) {
			if _, ok := missing[ref.Name]; !ok {
				continue
			}
			window := section[runeOffsetBack(section, ref.Start, ProximityWindow):runeOffsetForward(section, ref.End, ProximityWindow)]
			if ts, ok := wikitext.FindTimestamp(window); ok {
				observe(ref.Name, ts)
			}
		}
	}

	out := make(map[string]CommentStats, len(stats))
	for name, s := range stats {
		out[name] = *s
	}
	return out
}

// runeOffsetBack returns the byte offset n runes before pos, clamped to 0.
func runeOffsetBack(s string, pos, n int) int {
	for ; n > 0 && pos > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(s[:pos])
		pos -= size
	}
	return pos
}

// runeOffsetForward returns the byte offset n runes after pos, clamped to
// len(s).
func runeOffsetForward(s string, pos, n int) int {
	for ; n > 0 && pos < len(s); n-- {
		_, size := utf8.DecodeRuneInString(s[pos:])
		pos += size
	}
	return pos
}
