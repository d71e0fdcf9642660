// Package report persists organizer run history to SQLite so repeated
// runs against the same account can be audited later.
package report

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mailgroom/mailgroom/internal/organize"
)

// Recorder writes run summaries to a SQLite database. A nil Recorder is
// valid and records nothing.
type Recorder struct {
	db *sql.DB
}

// Open creates or opens the report database at path. An empty path
// returns a nil Recorder.
func Open(path string) (*Recorder, error) {
	if path == "" {
		return nil, nil
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open report database: %w", err)
	}
	r := &Recorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate report database: %w", err)
	}
	return r, nil
}

// Close releases the database handle.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Recorder) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		started_at TIMESTAMP NOT NULL,
		duration_ms INTEGER NOT NULL,
		folder TEXT NOT NULL,
		corruption_level TEXT NOT NULL,
		fetch_strategy TEXT NOT NULL,
		candidates INTEGER NOT NULL,
		spam_moved INTEGER NOT NULL,
		cross_spam_moved INTEGER NOT NULL,
		skipped_short INTEGER NOT NULL,
		skipped_conversation INTEGER NOT NULL,
		accepted INTEGER NOT NULL,
		categories INTEGER NOT NULL,
		categories_matched INTEGER NOT NULL,
		categories_created INTEGER NOT NULL,
		moved INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS repairs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TIMESTAMP NOT NULL,
		folder TEXT NOT NULL,
		temp_folder TEXT NOT NULL,
		corruption_ratio REAL NOT NULL,
		moved_out INTEGER NOT NULL,
		moved_back INTEGER NOT NULL,
		verify_ratio REAL NOT NULL,
		repaired INTEGER NOT NULL,
		partial INTEGER NOT NULL,
		skipped INTEGER NOT NULL
	);
	`
	_, err := r.db.Exec(schema)
	return err
}

// RecordRun stores one organizer run. Recording on a nil Recorder is a
// no-op.
func (r *Recorder) RecordRun(stats *organize.Stats) error {
	if r == nil || stats == nil {
		return nil
	}
	_, err := r.db.Exec(`
		INSERT INTO runs (
			run_id, started_at, duration_ms, folder, corruption_level, fetch_strategy,
			candidates, spam_moved, cross_spam_moved, skipped_short,
			skipped_conversation, accepted, categories, categories_matched,
			categories_created, moved
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), stats.Started, stats.Duration.Milliseconds(), stats.Folder,
		stats.CorruptionLevel.String(), stats.Strategy.String(),
		stats.Candidates, stats.SpamMoved, stats.CrossSpamMoved,
		stats.SkippedShort, stats.SkippedConversation, stats.Accepted,
		stats.Categories, stats.CategoriesMatched, stats.CategoriesCreated,
		stats.Moved,
	)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// RepairRecord is the persisted form of one repair attempt.
type RepairRecord struct {
	Started         time.Time
	Folder          string
	TempFolder      string
	CorruptionRatio float64
	MovedOut        int
	MovedBack       int
	VerifyRatio     float64
	Repaired        bool
	Partial         bool
	Skipped         bool
}

// RecordRepair stores one repair attempt.
func (r *Recorder) RecordRepair(rec RepairRecord) error {
	if r == nil {
		return nil
	}
	_, err := r.db.Exec(`
		INSERT INTO repairs (
			started_at, folder, temp_folder, corruption_ratio,
			moved_out, moved_back, verify_ratio, repaired, partial, skipped
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Started, rec.Folder, rec.TempFolder, rec.CorruptionRatio,
		rec.MovedOut, rec.MovedBack, rec.VerifyRatio,
		rec.Repaired, rec.Partial, rec.Skipped,
	)
	if err != nil {
		return fmt.Errorf("record repair: %w", err)
	}
	return nil
}

// RunSummary is one row of run history.
type RunSummary struct {
	ID        int64
	RunID     string
	Started   time.Time
	Duration  time.Duration
	Folder    string
	Accepted  int
	SpamMoved int
	Moved     int
}

// RecentRuns returns up to limit runs, newest first.
func (r *Recorder) RecentRuns(limit int) ([]RunSummary, error) {
	if r == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(`
		SELECT id, run_id, started_at, duration_ms, folder, accepted, spam_moved + cross_spam_moved, moved
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		var durationMs int64
		if err := rows.Scan(&s.ID, &s.RunID, &s.Started, &durationMs, &s.Folder, &s.Accepted, &s.SpamMoved, &s.Moved); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		s.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, s)
	}
	return out, rows.Err()
}
