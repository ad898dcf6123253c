package domain

import (
	"strings"

	"github.com/clerkbot/activity-clerk/internal/wikitext"
)

// Group markers on the membership page. They close the nested section
// templates that open the active and inactive member lists.
const (
	activeMarker   = "Active}}}}"
	inactiveMarker = "Inactive}}}}"
)

// ParseParticipants reads the membership page line by line. A group marker
// switches the current group; a {{user|Name}} line records Name with the
// current group's flag. Entries seen before any marker are dropped, and a
// repeated name keeps its last entry.
func ParseParticipants(text string) map[string]Participant {
	participants := make(map[string]Participant)

	var current *bool
	active, inactive := true, false
	for _, line := range splitLines(text) {
		switch {
		case strings.Contains(line, inactiveMarker):
			current = &inactive
			continue
		case strings.Contains(line, activeMarker):
			current = &active
			continue
		}

		name, ok := wikitext.UserTemplate(line)
		if !ok || current == nil {
			continue
		}
		participants[name] = Participant{Name: name, Active: *current}
	}
	return participants
}

// ParseProceedings returns one Proceeding per internal link carrying a
// fragment, in document order. Links without a fragment, or without a page
// before the fragment, cannot name a host section and are skipped.
func ParseProceedings(text string) []Proceeding {
	var proceedings []Proceeding
	for _, link := range wikitext.Wikilinks(text) {
		page, fragment, ok := link.SplitFragment()
		if !ok || page == "" {
			continue
		}

		label := strings.TrimSpace(link.Text)
		if label == "" {
			label = fragment
		}

		proceedings = append(proceedings, Proceeding{
			Page:    page,
			Heading: strings.ReplaceAll(fragment, "_", " "),
			Anchor:  wikitext.Slug(fragment),
			Label:   label,
		})
	}
	return proceedings
}

func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
