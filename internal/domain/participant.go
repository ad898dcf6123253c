package domain

import (
	"sort"
	"strings"
	"time"
)

// Participant is a tracked committee member.
type Participant struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Proceeding is one tracked discussion: a section of a host page.
type Proceeding struct {
	// Page is the title of the host page holding the discussion.
	Page string `json:"page"`

	// Heading is the raw link fragment with underscores turned to spaces.
	Heading string `json:"heading"`

	// Anchor is the normalized identifier of the section (wikitext.Slug).
	Anchor string `json:"anchor"`

	// Label is the display text used in the report heading.
	Label string `json:"label"`
}

// CommentStats accumulates the comments observed for one participant in one
// proceeding. The zero value holds no observations.
type CommentStats struct {
	First time.Time `json:"first"`
	Last  time.Time `json:"last"`
	Count int       `json:"count"`
}

// Observe records one comment made at t. First never exceeds Last.
func (s *CommentStats) Observe(t time.Time) {
	if s.Count == 0 || t.Before(s.First) {
		s.First = t
	}
	if s.Count == 0 || t.After(s.Last) {
		s.Last = t
	}
	s.Count++
}

// Tier is the coarse recency bucket of a participant.
type Tier string

const (
	TierFresh    Tier = "fresh"
	TierStale    Tier = "stale"
	TierNone     Tier = "none"
	TierInactive Tier = "inactive"
)

// ActivityResult is the classification of one participant in one
// proceeding. ElapsedDays is -1 when it does not apply.
type ActivityResult struct {
	Label       string `json:"label"`
	Tier        Tier   `json:"tier"`
	ElapsedDays int    `json:"elapsed_days"`
}

// SortedParticipants returns the participants ordered by case-insensitive
// name, with the exact name breaking ties so the order is total.
func SortedParticipants(participants map[string]Participant) []Participant {
	out := make([]Participant, 0, len(participants))
	for _, p := range participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if a != b {
			return a < b
		}
		return out[i].Name < out[j].Name
	})
	return out
}
