package terminal

import (
	"strings"
	"testing"
	"time"

	"github.com/clerkbot/activity-clerk/internal/domain"
)

func testReport() *domain.Report {
	now := time.Date(2024, time.June, 5, 0, 0, 0, 0, time.UTC)
	participants := map[string]domain.Participant{
		"Alice": {Name: "Alice", Active: true},
		"Bob":   {Name: "Bob", Active: true},
		"Carol": {Name: "Carol", Active: false},
	}
	return domain.BuildReport(participants, []domain.SectionText{
		{
			Proceeding: domain.Proceeding{Page: "Case", Heading: "Motion one", Anchor: "Motion_one", Label: "Motion one"},
			Text:       "Support. [[User:Alice|Alice]] 12:00, 1 June 2024 (UTC)",
		},
		{
			Proceeding: domain.Proceeding{Page: "Case", Heading: "Motion two", Anchor: "Motion_two", Label: "Motion two"},
		},
	}, now)
}

func TestRenderReport(t *testing.T) {
	out := RenderReport(testReport(), "")
	for _, want := range []string{
		"Motion one", "Motion two",
		"Alice", "commented 3 days ago", "12:00, 1 June 2024 (UTC)",
		"Bob", "not commented",
		"Carol", "inactive",
		"3 participants",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderReportFilter(t *testing.T) {
	out := RenderReport(testReport(), "motion_two")
	if strings.Contains(out, "Motion one") || !strings.Contains(out, "Motion two") {
		t.Fatalf("filter not applied:\n%s", out)
	}

	out = RenderReport(testReport(), "Nope")
	if !strings.Contains(out, "no matching proceedings") {
		t.Fatalf("unexpected output for unknown anchor:\n%s", out)
	}
}

func TestSummaryLine(t *testing.T) {
	line := SummaryLine(domain.CycleSummary{
		RunID:        "run-1",
		Proceedings:  2,
		Participants: 3,
		ReportSaved:  true,
		Tiers:        map[domain.Tier]int{domain.TierNone: 3, domain.TierFresh: 1},
	})
	for _, want := range []string{"run-1", "2 proceedings", "3 participants", "saved report", "fresh=1 none=3"} {
		if !strings.Contains(line, want) {
			t.Errorf("summary missing %q: %s", want, line)
		}
	}

	failed := SummaryLine(domain.CycleSummary{RunID: "run-2", Error: "read page"})
	if !strings.Contains(failed, "failed: read page") {
		t.Fatalf("unexpected failure line: %s", failed)
	}
}
