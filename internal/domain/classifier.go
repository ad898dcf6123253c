package domain

import (
	"fmt"
	"time"
)

// FreshDays is the largest elapsed-day count still classified as fresh.
const FreshDays = 7

const day = 24 * time.Hour

// Classify maps a participant and its comment statistics to an activity
// result. Inactive participants are always "inactive", whatever evidence
// the scan found. stats may be nil.
func Classify(p Participant, stats *CommentStats, now time.Time) ActivityResult {
	if !p.Active {
		return ActivityResult{Label: "inactive", Tier: TierInactive, ElapsedDays: -1}
	}
	if stats == nil || stats.Count == 0 || stats.Last.IsZero() {
		return ActivityResult{Label: "not commented", Tier: TierNone, ElapsedDays: -1}
	}

	days := elapsedDays(stats.Last, now)
	tier := TierFresh
	if days > FreshDays {
		tier = TierStale
	}

	unit := "days"
	if days == 1 {
		unit = "day"
	}
	return ActivityResult{
		Label:       fmt.Sprintf("commented %d %s ago", days, unit),
		Tier:        tier,
		ElapsedDays: days,
	}
}

// elapsedDays returns the whole days from t to now, rounded down.
func elapsedDays(t, now time.Time) int {
	d := now.Sub(t)
	days := int(d / day)
	if d < 0 && d%day != 0 {
		days--
	}
	return days
}
