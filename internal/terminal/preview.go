// Package terminal renders reports and cycle summaries for a terminal.
package terminal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/clerkbot/activity-clerk/internal/domain"
	"github.com/clerkbot/activity-clerk/internal/wikitext"
)

var (
	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	columnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#AAAAAA"))
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

const (
	stampWidth = 30
	countWidth = 8
)

// RenderReport draws one boxed table per proceeding, with the status cell
// coloured like the row on the wiki page. A non-empty anchor limits the
// output to that proceeding (matched case-insensitively).
func RenderReport(r *domain.Report, anchor string) string {
	if r == nil {
		return dimStyle.Render("no report")
	}

	var blocks []string
	for _, pr := range r.Proceedings {
		if anchor != "" && !strings.EqualFold(pr.Proceeding.Anchor, anchor) {
			continue
		}
		blocks = append(blocks, renderProceeding(pr))
	}
	if len(blocks) == 0 {
		return dimStyle.Render("no matching proceedings")
	}

	footer := dimStyle.Render(fmt.Sprintf("generated %s · %d participants",
		wikitext.FormatTimestamp(r.GeneratedAt), r.Participants))
	return strings.Join(append(blocks, footer), "\n")
}

func renderProceeding(pr domain.ProceedingReport) string {
	nameWidth := 12
	statusWidth := 14
	for _, row := range pr.Rows {
		nameWidth = max(nameWidth, lipgloss.Width(row.Participant.Name)+2)
		statusWidth = max(statusWidth, lipgloss.Width(row.Result.Label)+2)
	}

	cell := func(s string, w int) string {
		return lipgloss.NewStyle().Width(w).Render(s)
	}

	lines := []string{
		headingStyle.Render(pr.Proceeding.Label),
		columnStyle.Render(cell("Name", nameWidth) + cell("Status", statusWidth) +
			cell("First comment", stampWidth) + cell("Last comment", stampWidth) + cell("Comments", countWidth)),
	}
	for _, row := range pr.Rows {
		first, last, count := "—", "—", "0"
		if row.Stats != nil {
			first = wikitext.FormatTimestamp(row.Stats.First)
			last = wikitext.FormatTimestamp(row.Stats.Last)
			count = fmt.Sprint(row.Stats.Count)
		}
		status := lipgloss.NewStyle().
			Width(statusWidth).
			Foreground(lipgloss.Color("#222222")).
			Background(lipgloss.Color(domain.TierColour(row.Result.Tier))).
			Render(row.Result.Label)
		lines = append(lines, cell(row.Participant.Name, nameWidth)+status+
			cell(first, stampWidth)+cell(last, stampWidth)+cell(count, countWidth))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

// SummaryLine renders a one-line description of a finished cycle.
func SummaryLine(s domain.CycleSummary) string {
	head := headingStyle.Render(s.RunID)
	if s.Error != "" {
		return head + " " + errorStyle.Render("failed: "+s.Error)
	}

	tiers := make([]string, 0, len(s.Tiers))
	for t, n := range s.Tiers {
		tiers = append(tiers, fmt.Sprintf("%s=%d", t, n))
	}
	sort.Strings(tiers)

	saved := "unchanged"
	switch {
	case s.ReportSaved && s.DataSaved:
		saved = "saved report and data"
	case s.ReportSaved:
		saved = "saved report"
	case s.DataSaved:
		saved = "saved data"
	}

	return fmt.Sprintf("%s %d proceedings, %d participants, %s %s",
		head, s.Proceedings, s.Participants, saved, dimStyle.Render(strings.Join(tiers, " ")))
}
