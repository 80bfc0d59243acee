// Package journal records every run and every archived entry in a SQLite
// database outside the destination, so archive sessions can be traced back
// to the run that created them.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"kitchensync/internal/journal/migrations"
	"kitchensync/internal/ks"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Run statuses.
const (
	StatusRunning     = "running"
	StatusSucceeded   = "succeeded"
	StatusFailed      = "failed"
	StatusInterrupted = "interrupted"
)

// Archive reasons.
const (
	ReasonReplaced = "replaced"
	ReasonRemoved  = "removed"
)

// Run is one journaled run.
type Run struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   sql.NullTime
	Source       string
	Destination  string
	Preview      bool
	ArchiveDir   string
	Copied       int
	DirsCreated  int
	Archived     int
	Removed      int
	Skipped      int
	Touched      int
	Filtered     int
	LinksSkipped int
	Errors       int
	Status       string
}

// ArchivedEntry is one destination entry moved into an archive session.
type ArchivedEntry struct {
	RunID        string
	RelativePath string
	ArchivePath  string
	Kind         string
	Reason       string
	Size         int64
	ModTime      time.Time
	ArchivedAt   time.Time
}

// Journal is a ks.Reporter that persists runs. Failures to write are logged
// and never affect the run itself.
type Journal struct {
	db     *sql.DB
	logger ks.Logger
	clock  ks.Clock

	mu    sync.Mutex
	runID string
}

// Open opens (creating if needed) the journal at path and migrates it.
// path can be ":memory:".
func Open(path string, logger ks.Logger, clock ks.Clock) (*Journal, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db, logger: logger, clock: clock}, nil
}

// OpenConnection opens a SQLite connection with foreign keys enforced.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	// One connection: every write of a run is sequential anyway, and an
	// in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	return db, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) Started(info ks.RunInfo) {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.ExecContext(context.Background(), `
		INSERT INTO runs (id, started_at, source, destination, preview, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		info.RunID, info.StartedAt.UTC(), info.Source, info.Destination, info.Preview, StatusRunning,
	)
	if err != nil {
		j.logger.Warn("journal: recording run start", "run", info.RunID, "error", err)
		return
	}
	j.runID = info.RunID
}

func (j *Journal) Walked(ks.Side, ks.WalkEvent) {}

func (j *Journal) Acted(ev ks.ActionEvent) {
	if ev.Preview || ev.ArchivedTo == "" || ev.Replaced == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.runID == "" {
		return
	}

	reason := ReasonReplaced
	if ev.Action == ks.ArchiveAndRemove {
		reason = ReasonRemoved
	}
	e := ev.Replaced
	_, err := j.db.ExecContext(context.Background(), `
		INSERT INTO archived_entries (run_id, relative_path, archive_path, kind, reason, size, mod_time, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		j.runID, e.RelPath, ev.ArchivedTo, e.Kind.String(), reason, e.Size, e.ModTime.UTC(), j.clock.Now().UTC(),
	)
	if err != nil {
		j.logger.Warn("journal: recording archived entry", "path", e.RelPath, "error", err)
	}
}

func (j *Journal) Finished(s *ks.RunSummary) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.runID == "" {
		return
	}

	status := StatusSucceeded
	switch {
	case s.Interrupted:
		status = StatusInterrupted
	case len(s.Errors) > 0:
		status = StatusFailed
	}

	_, err := j.db.ExecContext(context.Background(), `
		UPDATE runs SET
			finished_at = ?, archive_dir = ?,
			copied = ?, dirs_created = ?, archived = ?, removed = ?, skipped = ?,
			touched = ?, filtered = ?, links_skipped = ?, errors = ?, status = ?
		WHERE id = ?`,
		s.FinishedAt.UTC(), s.ArchiveDir,
		s.Copied, s.DirsCreated, s.Archived, s.Removed, s.Skipped,
		s.Touched, s.Filtered, s.LinksSkipped, len(s.Errors), status,
		j.runID,
	)
	if err != nil {
		j.logger.Warn("journal: recording run summary", "run", j.runID, "error", err)
	}
}

const runColumns = `id, started_at, finished_at, source, destination, preview, archive_dir,
	copied, dirs_created, archived, removed, skipped, touched, filtered, links_skipped, errors, status`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	err := row.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Source, &r.Destination, &r.Preview, &r.ArchiveDir,
		&r.Copied, &r.DirsCreated, &r.Archived, &r.Removed, &r.Skipped, &r.Touched, &r.Filtered,
		&r.LinksSkipped, &r.Errors, &r.Status)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 returns all.
func (j *Journal) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("reading run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// FindRun returns the run with the given ID, or nil if there is none.
func (j *Journal) FindRun(ctx context.Context, id string) (*Run, error) {
	r, err := scanRun(j.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding run: %w", err)
	}
	return r, nil
}

// ListArchived returns the entries archived by a run in the order they were
// archived.
func (j *Journal) ListArchived(ctx context.Context, runID string) ([]*ArchivedEntry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT run_id, relative_path, archive_path, kind, reason, size, mod_time, archived_at
		FROM archived_entries WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("listing archived entries: %w", err)
	}
	defer rows.Close()

	var entries []*ArchivedEntry
	for rows.Next() {
		var e ArchivedEntry
		if err := rows.Scan(&e.RunID, &e.RelativePath, &e.ArchivePath, &e.Kind, &e.Reason, &e.Size, &e.ModTime, &e.ArchivedAt); err != nil {
			return nil, fmt.Errorf("reading archived entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing archived entries: %w", err)
	}
	return entries, nil
}

// Compile-time check that Journal implements ks.Reporter
var _ ks.Reporter = (*Journal)(nil)
