package domain

import (
	"context"
	"time"
)

// PageSource reads the current wikitext of a page. A page that does not
// exist reads as "".
type PageSource interface {
	PageText(ctx context.Context, title string) (string, error)
}

// Edit is a request to replace the text of a page.
type Edit struct {
	Title   string
	Text    string
	Summary string
	Minor   bool
}

// PageSink stores generated pages. It can also read them back so callers
// can skip saves that would not change anything.
type PageSink interface {
	PageSource

	// SavePage replaces the page text.
	SavePage(ctx context.Context, edit Edit) error
}

// RunRepository keeps an operational history of cycles. The history is
// never read back into the pipeline.
type RunRepository interface {
	// RecordRun stores a finished cycle.
	RecordRun(ctx context.Context, run *Run) error

	// RecentRuns returns up to limit runs, newest first.
	RecentRuns(ctx context.Context, limit int) ([]Run, error)

	// DeleteRunsBefore removes runs started before cutoff.
	DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CycleObserver is told about every finished cycle, successful or not.
type CycleObserver interface {
	CycleCompleted(ctx context.Context, summary CycleSummary) error
}

// Run is one recorded cycle.
type Run struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Proceedings  int       `json:"proceedings"`
	Participants int       `json:"participants"`
	ReportSaved  bool      `json:"report_saved"`
	DataSaved    bool      `json:"data_saved"`
	Error        string    `json:"error,omitempty"`
}

// CycleSummary is published to observers when a cycle ends.
type CycleSummary struct {
	RunID        string       `json:"run_id"`
	GeneratedAt  time.Time    `json:"generated_at"`
	Proceedings  int          `json:"proceedings"`
	Participants int          `json:"participants"`
	ReportSaved  bool         `json:"report_saved"`
	DataSaved    bool         `json:"data_saved"`
	Tiers        map[Tier]int `json:"tiers,omitempty"`
	Error        string       `json:"error,omitempty"`
}
