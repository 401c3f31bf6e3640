package state

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/wikimirror/internal/model"
)

// Ledger records mirror runs and per-page fingerprints in SQLite.
// It manages a single connection and provides the queries resume needs.
type Ledger struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures Ledger behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent
	// performance. This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default ledger options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the ledger at the specified file path.
// If CreateIfNotExists is true, the parent directory and database file are
// created; otherwise a missing database is an error.
func Open(dbPath string, opts Options) (*Ledger, error) {
	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("ledger not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("check ledger path: %w", err)
		}
	} else {
		if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, fmt.Errorf("create ledger directory: %w", err)
			}
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating new
	// files, mode=rwc allows creation.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	l := &Ledger{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	if err := l.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return l, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (l *Ledger) createTables() error {
	schema := `
	-- One row per mirror run with the final counts
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		start_url TEXT NOT NULL,
		output_dir TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		finished_at DATETIME,
		saved INTEGER DEFAULT 0,
		skipped INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		attachments INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- One row per page per run; the fingerprint drives resume
	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		page_id TEXT NOT NULL,
		url TEXT,
		title TEXT,
		output_path TEXT,
		fingerprint TEXT,
		status TEXT NOT NULL,
		error TEXT,
		saved_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(run_id, page_id)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_page ON pages(page_id);
	CREATE INDEX IF NOT EXISTS idx_pages_saved ON pages(saved_at);
	`

	_, err := l.db.ExecContext(context.Background(), schema)
	return err
}

// Fingerprint returns the hex SHA3-256 digest of a page body. It is the
// value stored per page and compared on resume.
func Fingerprint(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// BeginRun inserts the run row in "running" state.
func (l *Ledger) BeginRun(ctx context.Context, result *model.MirrorResult) error {
	query := `
	INSERT INTO runs (id, start_url, output_dir, status)
	VALUES (?, ?, ?, ?)
	`

	_, err := l.db.ExecContext(ctx, query,
		result.RunID,
		result.StartURL,
		result.OutputDir,
		model.RunRunning,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stamps the run row with its final status and counts.
func (l *Ledger) FinishRun(ctx context.Context, result *model.MirrorResult) error {
	query := `
	UPDATE runs SET
		status = ?,
		finished_at = CURRENT_TIMESTAMP,
		saved = ?,
		skipped = ?,
		failed = ?,
		attachments = ?
	WHERE id = ?
	`

	_, err := l.db.ExecContext(ctx, query,
		result.Status,
		result.CountByStatus(model.StatusMirrored),
		result.CountByStatus(model.StatusUnchanged),
		result.CountByStatus(model.StatusFailed),
		result.AttachmentsExtracted(),
		result.RunID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecordPage inserts or updates the page row for the given run.
// Uses UPSERT: a page re-recorded within the same run overwrites its row.
func (l *Ledger) RecordPage(ctx context.Context, runID string, page model.PageResult) error {
	query := `
	INSERT INTO pages (run_id, page_id, url, title, output_path, fingerprint, status, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, page_id) DO UPDATE SET
		url = excluded.url,
		title = excluded.title,
		output_path = excluded.output_path,
		fingerprint = excluded.fingerprint,
		status = excluded.status,
		error = excluded.error,
		saved_at = CURRENT_TIMESTAMP
	`

	_, err := l.db.ExecContext(ctx, query,
		runID,
		page.Node.PageID,
		page.Node.Link,
		page.Node.Title,
		page.DocumentPath,
		page.Fingerprint,
		page.Status.String(),
		page.Error,
	)
	if err != nil {
		return fmt.Errorf("record page %s: %w", page.Node.PageID, err)
	}
	return nil
}

// Unchanged reports whether the page's most recently recorded fingerprint
// matches the given one. Pages never seen before, and pages whose last
// record carries no fingerprint, report false.
func (l *Ledger) Unchanged(ctx context.Context, pageID, fingerprint string) (bool, error) {
	if fingerprint == "" {
		return false, nil
	}

	query := `
	SELECT fingerprint FROM pages
	WHERE page_id = ? AND fingerprint != ''
	ORDER BY saved_at DESC, id DESC
	LIMIT 1
	`

	var last string
	err := l.db.QueryRowContext(ctx, query, pageID).Scan(&last)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query fingerprint for page %s: %w", pageID, err)
	}
	return last == fingerprint, nil
}

// RunRecord is a stored run row.
type RunRecord struct {
	ID          string
	StartURL    string
	OutputDir   string
	Status      string
	StartedAt   time.Time
	FinishedAt  time.Time
	Saved       int
	Skipped     int
	Failed      int
	Attachments int
}

// GetRun retrieves a run row by id. Returns nil without error when the run
// does not exist.
func (l *Ledger) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	query := `
	SELECT id, start_url, output_dir, status, started_at, finished_at, saved, skipped, failed, attachments
	FROM runs
	WHERE id = ?
	`

	var rec RunRecord
	var startedAt string
	var finishedAt sql.NullString

	err := l.db.QueryRowContext(ctx, query, runID).Scan(
		&rec.ID,
		&rec.StartURL,
		&rec.OutputDir,
		&rec.Status,
		&startedAt,
		&finishedAt,
		&rec.Saved,
		&rec.Skipped,
		&rec.Failed,
		&rec.Attachments,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}

	rec.StartedAt = parseTimestamp(startedAt)
	if finishedAt.Valid {
		rec.FinishedAt = parseTimestamp(finishedAt.String)
	}
	return &rec, nil
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp parses a timestamp string from SQLite.
// SQLite may return timestamps in different formats depending on
// configuration. If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
