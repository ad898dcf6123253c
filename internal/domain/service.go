package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clerkbot/activity-clerk/internal/wikitext"
)

// ServiceConfig names the pages a cycle reads and writes.
type ServiceConfig struct {
	// MembersPage lists the participants in active and inactive groups.
	MembersPage string

	// ProceedingsPage links to the tracked discussion sections.
	ProceedingsPage string

	// ReportPage receives the human-readable tables.
	ReportPage string

	// DataPage receives the #switch lookup template.
	DataPage string

	ReportSummary string
	DataSummary   string

	Render RenderOptions
}

// ActivityService runs the activity pipeline: it reads the input pages,
// builds a report, and writes the two output pages when they changed.
type ActivityService struct {
	cfg       ServiceConfig
	source    PageSource
	sink      PageSink
	runs      RunRepository
	observers []CycleObserver
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.RWMutex
	latest *Report
	lookup *Lookup
}

// ServiceOption customizes an ActivityService.
type ServiceOption func(*ActivityService)

// WithRunRepository records every cycle in repo.
func WithRunRepository(repo RunRepository) ServiceOption {
	return func(s *ActivityService) { s.runs = repo }
}

// WithObservers notifies each observer after every cycle.
func WithObservers(observers ...CycleObserver) ServiceOption {
	return func(s *ActivityService) { s.observers = append(s.observers, observers...) }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *ActivityService) { s.now = now }
}

// NewActivityService creates the service. source supplies the input pages
// and sink stores the generated ones; they may be the same wiki client.
func NewActivityService(cfg ServiceConfig, source PageSource, sink PageSink, logger *slog.Logger, opts ...ServiceOption) (*ActivityService, error) {
	if cfg.MembersPage == "" || cfg.ProceedingsPage == "" {
		return nil, fmt.Errorf("members and proceedings pages are required")
	}
	if cfg.ReportPage == "" || cfg.DataPage == "" {
		return nil, fmt.Errorf("report and data pages are required")
	}
	if source == nil || sink == nil {
		return nil, fmt.Errorf("page source and sink are required")
	}

	s := &ActivityService{
		cfg:    cfg,
		source: source,
		sink:   sink,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Generate fetches the input pages and builds this cycle's report without
// writing anything.
func (s *ActivityService) Generate(ctx context.Context) (*Report, error) {
	membersText, err := s.source.PageText(ctx, s.cfg.MembersPage)
	if err != nil {
		return nil, fmt.Errorf("fetch members page: %w", err)
	}
	participants := ParseParticipants(membersText)
	s.logger.Info("participants loaded", "total", len(participants), "active", countActive(participants))

	proceedingsText, err := s.source.PageText(ctx, s.cfg.ProceedingsPage)
	if err != nil {
		return nil, fmt.Errorf("fetch proceedings page: %w", err)
	}
	proceedings := ParseProceedings(proceedingsText)
	s.logger.Info("proceedings loaded", "total", len(proceedings))

	// Several proceedings usually share one host page; read it once per cycle.
	pages := make(map[string]string)
	sections := make([]SectionText, 0, len(proceedings))
	for _, p := range proceedings {
		text, ok := pages[p.Page]
		if !ok {
			text, err = s.source.PageText(ctx, p.Page)
			if err != nil {
				return nil, fmt.Errorf("fetch host page %q: %w", p.Page, err)
			}
			pages[p.Page] = text
		}

		section := wikitext.Section(text, p.Heading)
		if section == "" {
			s.logger.Warn("section not found", "page", p.Page, "anchor", p.Anchor)
		}
		sections = append(sections, SectionText{Proceeding: p, Text: section})
	}

	return BuildReport(participants, sections, s.now()), nil
}

// Publish renders both output pages from report and saves each one whose
// text differs from what is stored.
func (s *ActivityService) Publish(ctx context.Context, report *Report) (reportSaved, dataSaved bool, err error) {
	reportText := RenderReport(report, s.cfg.Render)
	dataText := RenderLookup(BuildLookup(report))

	reportSaved, err = s.saveIfChanged(ctx, Edit{
		Title:   s.cfg.ReportPage,
		Text:    reportText,
		Summary: s.cfg.ReportSummary,
	})
	if err != nil {
		return false, false, fmt.Errorf("save report page: %w", err)
	}

	dataSaved, err = s.saveIfChanged(ctx, Edit{
		Title:   s.cfg.DataPage,
		Text:    dataText,
		Summary: s.cfg.DataSummary,
		Minor:   true,
	})
	if err != nil {
		return reportSaved, false, fmt.Errorf("save data page: %w", err)
	}
	return reportSaved, dataSaved, nil
}

func (s *ActivityService) saveIfChanged(ctx context.Context, edit Edit) (bool, error) {
	current, err := s.sink.PageText(ctx, edit.Title)
	if err != nil {
		return false, fmt.Errorf("read current text: %w", err)
	}
	if current == edit.Text {
		s.logger.Debug("page unchanged, skipping save", "title", edit.Title)
		return false, nil
	}
	if err := s.sink.SavePage(ctx, edit); err != nil {
		return false, err
	}
	s.logger.Info("page saved", "title", edit.Title, "bytes", len(edit.Text))
	return true, nil
}

// RunCycle performs one full cycle: generate, publish, record, notify.
// The returned summary is populated even when err is non-nil.
func (s *ActivityService) RunCycle(ctx context.Context) (CycleSummary, error) {
	run := &Run{ID: uuid.NewString(), StartedAt: s.now()}
	summary := CycleSummary{RunID: run.ID}

	err := s.cycle(ctx, run, &summary)

	run.FinishedAt = s.now()
	if err != nil {
		run.Error = err.Error()
		summary.Error = err.Error()
	}

	if s.runs != nil {
		if rerr := s.runs.RecordRun(ctx, run); rerr != nil {
			s.logger.Error("failed to record run", "run_id", run.ID, "error", rerr)
		}
	}
	for _, o := range s.observers {
		if oerr := o.CycleCompleted(ctx, summary); oerr != nil {
			s.logger.Error("cycle observer failed", "run_id", run.ID, "error", oerr)
		}
	}
	return summary, err
}

func (s *ActivityService) cycle(ctx context.Context, run *Run, summary *CycleSummary) error {
	report, err := s.Generate(ctx)
	if err != nil {
		return err
	}

	run.Proceedings, run.Participants = len(report.Proceedings), report.Participants
	summary.GeneratedAt = report.GeneratedAt
	summary.Proceedings, summary.Participants = run.Proceedings, run.Participants
	summary.Tiers = report.TierCounts()

	s.setLatest(report)

	reportSaved, dataSaved, err := s.Publish(ctx, report)
	run.ReportSaved, run.DataSaved = reportSaved, dataSaved
	summary.ReportSaved, summary.DataSaved = reportSaved, dataSaved
	return err
}

// Start runs a cycle immediately and then once per interval until ctx is
// cancelled. A failed cycle is logged and retried at the next tick.
func (s *ActivityService) Start(ctx context.Context, interval time.Duration) {
	s.runLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runLogged(ctx)
		}
	}
}

func (s *ActivityService) runLogged(ctx context.Context) {
	start := time.Now()
	summary, err := s.RunCycle(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Error("error in cycle", "run_id", summary.RunID, "error", err)
		return
	}
	s.logger.Info("cycle complete",
		"run_id", summary.RunID,
		"proceedings", summary.Proceedings,
		"participants", summary.Participants,
		"report_saved", summary.ReportSaved,
		"data_saved", summary.DataSaved,
		"duration", time.Since(start),
	)
}

func (s *ActivityService) setLatest(r *Report) {
	lookup := BuildLookup(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = r
	s.lookup = lookup
}

// LatestReport returns the report of the most recent cycle that got far
// enough to build one, or nil.
func (s *ActivityService) LatestReport() *Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Lookup queries the latest report the same way the data page does.
func (s *ActivityService) Lookup(anchor, participant, field string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lookup == nil {
		return "", false
	}
	return s.lookup.Get(anchor, participant, field)
}

// RecentRuns returns the recorded run history, or nil when no repository
// is configured.
func (s *ActivityService) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if s.runs == nil {
		return nil, nil
	}
	return s.runs.RecentRuns(ctx, limit)
}

// StartCleanupJob prunes run history older than maxAge. It runs immediately
// on start and then repeats at the given interval. It blocks until ctx is
// cancelled, and returns at once when no repository is configured.
func (s *ActivityService) StartCleanupJob(ctx context.Context, interval, maxAge time.Duration) {
	if s.runs == nil {
		return
	}
	s.runCleanup(ctx, maxAge)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCleanup(ctx, maxAge)
		}
	}
}

func (s *ActivityService) runCleanup(ctx context.Context, maxAge time.Duration) {
	deleted, err := s.runs.DeleteRunsBefore(ctx, s.now().Add(-maxAge))
	if err != nil {
		s.logger.Error("run history cleanup failed", "error", err)
	} else if deleted > 0 {
		s.logger.Info("run history cleanup complete", "deleted", deleted)
	}
}

func countActive(participants map[string]Participant) int {
	n := 0
	for _, p := range participants {
		if p.Active {
			n++
		}
	}
	return n
}
