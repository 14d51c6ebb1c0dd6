// Package journal persists reconciliation run history in a local SQLite
// database, so operators can audit what past runs created and when.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/plansync/plansync/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at      TIMESTAMP NOT NULL,
	finished_at     TIMESTAMP NOT NULL,
	iteration       INTEGER NOT NULL,
	epic_id         TEXT NOT NULL DEFAULT '',
	dry_run         INTEGER NOT NULL DEFAULT 0,
	created_count   INTEGER NOT NULL DEFAULT 0,
	ledger_created  INTEGER NOT NULL DEFAULT 0,
	board_created   INTEGER NOT NULL DEFAULT 0,
	tracker_created INTEGER NOT NULL DEFAULT 0,
	retagged        INTEGER NOT NULL DEFAULT 0,
	failure_count   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

// Run is one recorded reconciliation run.
type Run struct {
	ID             int64
	StartedAt      time.Time
	FinishedAt     time.Time
	Iteration      int
	EpicID         string
	DryRun         bool
	CreatedCount   int
	LedgerCreated  int
	BoardCreated   int
	TrackerCreated int
	Retagged       int
	FailureCount   int
}

// Journal wraps the run history database.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal database at path and applies the
// schema. Pass ":memory:" for an ephemeral journal.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

// Record appends one run to the journal.
func (j *Journal) Record(ctx context.Context, scope types.Scope, result *types.Result, dryRun bool) (int64, error) {
	res, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (
			started_at, finished_at, iteration, epic_id, dry_run,
			created_count, ledger_created, board_created, tracker_created,
			retagged, failure_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.StartedAt.UTC(), result.FinishedAt.UTC(),
		scope.Iteration, scope.EpicID, boolInt(dryRun),
		result.CreatedCount, result.Stats.LedgerCreated,
		result.Stats.BoardCreated, result.Stats.TrackerCreated,
		result.Stats.Retagged, len(result.Failures),
	)
	if err != nil {
		return 0, fmt.Errorf("recording run: %w", err)
	}
	return res.LastInsertId()
}

// List returns runs that started at or after since, newest first.
// A zero since returns everything.
func (j *Journal) List(ctx context.Context, since time.Time) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, iteration, epic_id, dry_run,
		       created_count, ledger_created, board_created, tracker_created,
		       retagged, failure_count
		FROM runs
		WHERE started_at >= ?
		ORDER BY started_at DESC`,
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var dryRun int
		if err := rows.Scan(
			&r.ID, &r.StartedAt, &r.FinishedAt, &r.Iteration, &r.EpicID, &dryRun,
			&r.CreatedCount, &r.LedgerCreated, &r.BoardCreated, &r.TrackerCreated,
			&r.Retagged, &r.FailureCount,
		); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.DryRun = dryRun != 0
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
