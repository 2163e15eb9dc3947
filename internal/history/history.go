package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"thumbsmith/internal/logging"
	"thumbsmith/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// Store is a SQLite ledger of batch runs and their per-file outcomes.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// Run is one row of the runs table.
type Run struct {
	ID         string
	SourceDir  string
	DestDir    string
	Width      int
	Height     int
	Workers    int
	Total      int
	Processed  int
	Failed     int
	Skipped    int
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// JobRecord is the stored outcome of one file.
type JobRecord struct {
	RunID       string
	Filename    string
	Status      string
	Error       string
	Orientation int
	Correction  string
	Duration    time.Duration
}

// Open creates or opens the ledger at dbPath. The parent directory must
// already exist.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	logging.Debug("History database path: %s", dbPath)

	if dir := filepath.Dir(dbPath); dir != "" {
		if info, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("history directory: %w", err)
		} else if !info.IsDir() {
			return nil, fmt.Errorf("history directory %s is not a directory", dir)
		}
	}

	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close history database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	// A single writer: the batch collector.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dbPath: dbPath}
	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close history database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	logging.Info("Run history enabled at %s", dbPath)
	return s, nil
}

func (s *Store) initialize(ctx context.Context) (err error) {
	defer func(start time.Time) { recordQuery("initialize_schema", start, err) }(time.Now())

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source_dir TEXT NOT NULL,
		dest_dir TEXT NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		workers INTEGER NOT NULL DEFAULT 0,
		total INTEGER NOT NULL DEFAULT 0,
		processed INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'running',
		started_at INTEGER NOT NULL,
		finished_at INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

	CREATE TABLE IF NOT EXISTS job_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		status TEXT NOT NULL,
		error TEXT,
		orientation INTEGER NOT NULL DEFAULT 1,
		correction TEXT,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_job_results_run ON job_results(run_id);
	`

	_, err = s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginRun inserts a run in the "running" state.
func (s *Store) BeginRun(ctx context.Context, run Run) (err error) {
	defer func(start time.Time) { recordQuery("begin_run", start, err) }(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
	INSERT INTO runs (id, source_dir, dest_dir, width, height, workers, total, status, started_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, 'running', ?)
	`, run.ID, run.SourceDir, run.DestDir, run.Width, run.Height, run.Workers, run.Total, run.StartedAt.Unix())
	return err
}

// RecordResult stores the outcome of one file.
func (s *Store) RecordResult(ctx context.Context, rec JobRecord) (err error) {
	defer func(start time.Time) { recordQuery("record_result", start, err) }(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
	INSERT INTO job_results (run_id, filename, status, error, orientation, correction, duration_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.RunID, rec.Filename, rec.Status, nullString(rec.Error), rec.Orientation,
		nullString(rec.Correction), rec.Duration.Milliseconds())
	return err
}

// FinishRun stores the final counters and status of a run.
func (s *Store) FinishRun(ctx context.Context, run Run) (err error) {
	defer func(start time.Time) { recordQuery("finish_run", start, err) }(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx, `
	UPDATE runs SET
		workers = ?, total = ?, processed = ?, failed = ?, skipped = ?,
		status = ?, finished_at = ?
	WHERE id = ?
	`, run.Workers, run.Total, run.Processed, run.Failed, run.Skipped,
		run.Status, run.FinishedAt.Unix(), run.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, sql.ErrNoRows)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. limit <= 0 means 20.
func (s *Store) ListRuns(ctx context.Context, limit int) (runs []Run, err error) {
	defer func(start time.Time) { recordQuery("list_runs", start, err) }(time.Now())

	if limit <= 0 {
		limit = 20
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
	SELECT id, source_dir, dest_dir, width, height, workers, total,
		processed, failed, skipped, status, started_at, finished_at
	FROM runs
	ORDER BY started_at DESC, rowid DESC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r        Run
			started  int64
			finished sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.SourceDir, &r.DestDir, &r.Width, &r.Height, &r.Workers,
			&r.Total, &r.Processed, &r.Failed, &r.Skipped, &r.Status, &started, &finished); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(started, 0)
		if finished.Valid {
			r.FinishedAt = time.Unix(finished.Int64, 0)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunResults returns the stored outcomes of one run in insertion order.
func (s *Store) RunResults(ctx context.Context, runID string) (recs []JobRecord, err error) {
	defer func(start time.Time) { recordQuery("run_results", start, err) }(time.Now())

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
	SELECT run_id, filename, status, error, orientation, correction, duration_ms
	FROM job_results
	WHERE run_id = ?
	ORDER BY id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec        JobRecord
			errText    sql.NullString
			correction sql.NullString
			durationMS int64
		)
		if err := rows.Scan(&rec.RunID, &rec.Filename, &rec.Status, &errText,
			&rec.Orientation, &correction, &durationMS); err != nil {
			return nil, err
		}
		rec.Error = errText.String
		rec.Correction = correction.String
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// IsNotFound reports whether err means the run does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// recordQuery records metrics for a history query.
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.HistoryQueriesTotal.WithLabelValues(operation, status).Inc()
	metrics.HistoryQueryDuration.WithLabelValues(operation).Observe(duration)
}
