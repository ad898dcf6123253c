package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	migrate "github.com/rubenv/sql-migrate"
	_ "modernc.org/sqlite"

	"github.com/clerkbot/activity-clerk/internal/domain"
)

var migrations = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "0001_pages",
			Up: []string{`
				CREATE TABLE pages (
					title      TEXT PRIMARY KEY,
					text       TEXT NOT NULL,
					summary    TEXT NOT NULL DEFAULT '',
					minor      INTEGER NOT NULL DEFAULT 0,
					updated_at TIMESTAMP NOT NULL
				)`,
			},
			Down: []string{`DROP TABLE pages`},
		},
		{
			Id: "0002_runs",
			Up: []string{`
				CREATE TABLE runs (
					id            TEXT PRIMARY KEY,
					started_at    TIMESTAMP NOT NULL,
					finished_at   TIMESTAMP NOT NULL,
					proceedings   INTEGER NOT NULL,
					participants  INTEGER NOT NULL,
					report_saved  INTEGER NOT NULL,
					data_saved    INTEGER NOT NULL,
					error         TEXT NOT NULL DEFAULT ''
				)`,
				`CREATE INDEX runs_started_at ON runs (started_at DESC)`,
			},
			Down: []string{`DROP TABLE runs`},
		},
	},
}

// Repository implements domain.PageSink and domain.RunRepository using a
// local SQLite file. As a PageSink it stands in for the wiki during dry runs.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepository opens (creating if needed) the database at path, applies
// pending migrations, and returns a new Repository. The caller should call
// Close when the repository is no longer needed.
func NewRepository(path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite serialises writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := migrate.Exec(db, "sqlite3", migrations, migrate.Up); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Repository{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// PageText returns the stored text of title, or "" when nothing was saved.
func (r *Repository) PageText(ctx context.Context, title string) (string, error) {
	var text string
	err := r.db.QueryRowContext(ctx,
		`SELECT text FROM pages WHERE title = ?`, title,
	).Scan(&text)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query page %q: %w", title, err)
	}
	return text, nil
}

// SavePage upserts the page text.
func (r *Repository) SavePage(ctx context.Context, edit domain.Edit) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pages (title, text, summary, minor, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (title) DO UPDATE SET
			text = excluded.text,
			summary = excluded.summary,
			minor = excluded.minor,
			updated_at = excluded.updated_at`,
		edit.Title, edit.Text, edit.Summary, edit.Minor, r.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save page %q: %w", edit.Title, err)
	}
	return nil
}

// RecordRun inserts a finished run.
func (r *Repository) RecordRun(ctx context.Context, run *domain.Run) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, proceedings, participants, report_saved, data_saved, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.UTC(),
		run.FinishedAt.UTC(),
		run.Proceedings,
		run.Participants,
		run.ReportSaved,
		run.DataSaved,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (r *Repository) RecentRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, proceedings, participants, report_saved, data_saved, error
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs (limit=%d): %w", limit, err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		var run domain.Run
		err := rows.Scan(
			&run.ID,
			&run.StartedAt,
			&run.FinishedAt,
			&run.Proceedings,
			&run.Participants,
			&run.ReportSaved,
			&run.DataSaved,
			&run.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// DeleteRunsBefore prunes run history older than cutoff and returns the
// number of rows removed.
func (r *Repository) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete old runs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
