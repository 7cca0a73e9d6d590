// Package ledger keeps a local SQLite record of batch runs and the outcome of
// every applicant processed in them.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/spigell/applicant-pipeline/internal/batch"
)

const timeLayout = "2006-01-02 15:04:05.000000"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	step TEXT NOT NULL,
	started_at TEXT NOT NULL,
	finished_at TEXT,
	initial INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS outcomes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	record_id TEXT NOT NULL,
	applicant_id TEXT NOT NULL DEFAULT '',
	outcome TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	recorded_at TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_outcomes_run_id ON outcomes(run_id);
`

type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates the database file and its directory when missing.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}

	return &Ledger{db: db, now: time.Now}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) timestamp() string {
	return l.now().UTC().Format(timeLayout)
}

// Run is an open run. It implements batch.Recorder.
type Run struct {
	ID     string
	Step   string
	ledger *Ledger
}

func (l *Ledger) StartRun(ctx context.Context, step string) (*Run, error) {
	run := &Run{ID: uuid.NewString(), Step: step, ledger: l}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, step, started_at) VALUES (?, ?, ?)`,
		run.ID, step, l.timestamp(),
	)
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}

	return run, nil
}

func (r *Run) Record(ctx context.Context, entry batch.Entry) error {
	errText := ""
	if entry.Err != nil {
		errText = entry.Err.Error()
	}

	_, err := r.ledger.db.ExecContext(ctx,
		`INSERT INTO outcomes (run_id, record_id, applicant_id, outcome, detail, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, entry.RecordID, entry.ApplicantID, string(entry.Outcome), entry.Detail, errText, r.ledger.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// Finish closes the run. runErr is the error that ended the run, if any.
func (r *Run) Finish(ctx context.Context, stats batch.Stats, runErr error) error {
	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}

	_, err := r.ledger.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, initial = ?, error = ? WHERE id = ?`,
		r.ledger.timestamp(), stats.Initial, errText, r.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

type Summary struct {
	ID         string
	Step       string
	StartedAt  time.Time
	FinishedAt time.Time
	Initial    int
	Done       int
	Skipped    int
	Failed     int
	Error      string
}

func (s Summary) Finished() bool {
	return !s.FinishedAt.IsZero()
}

// Runs returns the latest runs, newest first.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT r.id, r.step, r.started_at, r.finished_at, r.initial, r.error,
			COALESCE(SUM(CASE WHEN o.outcome = 'done' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN o.outcome = 'skipped' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN o.outcome = 'failed' THEN 1 ELSE 0 END), 0)
		FROM runs r
		LEFT JOIN outcomes o ON o.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC, r.rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var (
			s          Summary
			startedAt  string
			finishedAt sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Step, &startedAt, &finishedAt, &s.Initial, &s.Error, &s.Done, &s.Skipped, &s.Failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}

		if s.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("run %s start time: %w", s.ID, err)
		}
		if finishedAt.Valid {
			if s.FinishedAt, err = time.Parse(timeLayout, finishedAt.String); err != nil {
				return nil, fmt.Errorf("run %s finish time: %w", s.ID, err)
			}
		}

		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

// Failure is a failed applicant of a run.
type Failure struct {
	RecordID    string
	ApplicantID string
	Error       string
}

func (l *Ledger) Failures(ctx context.Context, runID string) ([]Failure, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT record_id, applicant_id, error FROM outcomes WHERE run_id = ? AND outcome = 'failed' ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	var failures []Failure
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.RecordID, &f.ApplicantID, &f.Error); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		failures = append(failures, f)
	}

	return failures, rows.Err()
}
