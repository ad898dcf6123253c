package domain

import "time"

// Report is the classified data of one cycle. Renderers read it and never
// modify it.
type Report struct {
	GeneratedAt  time.Time          `json:"generated_at"`
	Participants int                `json:"participants"`
	Proceedings  []ProceedingReport `json:"proceedings"`
}

// ProceedingReport holds one row per tracked participant, sorted by
// case-insensitive name.
type ProceedingReport struct {
	Proceeding Proceeding `json:"proceeding"`
	Rows       []Row      `json:"rows"`
}

// Row is one participant's standing in one proceeding. Stats is nil when
// the scan found no comment by the participant.
type Row struct {
	Participant Participant    `json:"participant"`
	Stats       *CommentStats  `json:"stats,omitempty"`
	Result      ActivityResult `json:"result"`
}

// SectionText pairs a proceeding with the text of its section. Text is
// empty when the section could not be located.
type SectionText struct {
	Proceeding Proceeding
	Text       string
}

// BuildReport scans and classifies every section against the participant
// registry. It is a pure function of its inputs.
func BuildReport(participants map[string]Participant, sections []SectionText, now time.Time) *Report {
	ordered := SortedParticipants(participants)
	report := &Report{
		GeneratedAt:  now,
		Participants: len(participants),
		Proceedings:  make([]ProceedingReport, 0, len(sections)),
	}

	for _, sec := range sections {
		stats := Scan(sec.Text, participants)
		pr := ProceedingReport{
			Proceeding: sec.Proceeding,
			Rows:       make([]Row, 0, len(ordered)),
		}
		for _, p := range ordered {
			row := Row{Participant: p}
			if st, ok := stats[p.Name]; ok {
				row.Stats = &st
			}
			row.Result = Classify(p, row.Stats, now)
			pr.Rows = append(pr.Rows, row)
		}
		report.Proceedings = append(report.Proceedings, pr)
	}
	return report
}

// TierCounts tallies rows per tier across the whole report.
func (r *Report) TierCounts() map[Tier]int {
	counts := make(map[Tier]int)
	for _, pr := range r.Proceedings {
		for _, row := range pr.Rows {
			counts[row.Result.Tier]++
		}
	}
	return counts
}
