package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one recorded invocation.
type Run struct {
	ID          int64     `json:"id"`
	RunID       string    `json:"run_id"`
	Mode        string    `json:"mode"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	DryRun      bool      `json:"dry_run"`
	Listed      int       `json:"listed"`
	Transferred int       `json:"transferred"`
	Duplicates  int       `json:"duplicates"`
	Failed      int       `json:"failed"`
	Deleted     int       `json:"deleted"`
	Initialized int       `json:"initialized"`
	Bytes       int64     `json:"bytes"`
	Error       string    `json:"error,omitempty"`
	ErrorKind   string    `json:"error_kind,omitempty"`
}

// Duration returns how long the run took.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Succeeded reports whether the run finished without error or failed items.
func (r Run) Succeeded() bool {
	return r.Error == "" && r.Failed == 0
}

// Store manages run history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database and applies migrations.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("history database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts run and returns its row id.
func (s *Store) Record(ctx context.Context, run Run) (int64, error) {
	if run.RunID == "" || run.Mode == "" {
		return 0, errors.New("run id and mode are required")
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO runs (
		run_id, mode, started_at, finished_at, dry_run, listed, transferred,
		duplicates, failed, deleted, initialized, bytes, error, error_kind
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID,
		run.Mode,
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
		boolToInt(run.DryRun),
		run.Listed,
		run.Transferred,
		run.Duplicates,
		run.Failed,
		run.Deleted,
		run.Initialized,
		run.Bytes,
		nullableString(run.Error),
		nullableString(run.ErrorKind),
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read run id: %w", err)
	}
	return id, nil
}

const selectColumns = `id, run_id, mode, started_at, finished_at, dry_run, listed, transferred,
	duplicates, failed, deleted, initialized, bytes, error, error_kind`

// Recent returns up to limit runs, newest first. A non-empty mode filters by
// run mode.
func (s *Store) Recent(ctx context.Context, limit int, mode string) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	query := "SELECT " + selectColumns + " FROM runs"
	args := []any{}
	if mode != "" {
		query += " WHERE mode = ?"
		args = append(args, mode)
	}
	query += " ORDER BY started_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Latest returns the most recent run for each mode that has one.
func (s *Store) Latest(ctx context.Context) (map[string]Run, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+selectColumns+` FROM runs r
		WHERE id = (SELECT id FROM runs WHERE mode = r.mode ORDER BY started_at DESC, id DESC LIMIT 1)`)
	if err != nil {
		return nil, fmt.Errorf("query latest runs: %w", err)
	}
	defer rows.Close()

	latest := make(map[string]Run)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		latest[run.Mode] = run
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate latest runs: %w", err)
	}
	return latest, nil
}

// Trim deletes all but the newest keep runs and returns the number removed.
func (s *Store) Trim(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id NOT IN (
		SELECT id FROM runs ORDER BY started_at DESC, id DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("trim runs: %w", err)
	}
	return res.RowsAffected()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run         Run
		startedRaw  string
		finishedRaw string
		dryRun      int
		errRaw      sql.NullString
		kindRaw     sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.RunID,
		&run.Mode,
		&startedRaw,
		&finishedRaw,
		&dryRun,
		&run.Listed,
		&run.Transferred,
		&run.Duplicates,
		&run.Failed,
		&run.Deleted,
		&run.Initialized,
		&run.Bytes,
		&errRaw,
		&kindRaw,
	); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.DryRun = dryRun != 0
	run.Error = errRaw.String
	run.ErrorKind = kindRaw.String
	if t, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = t
	}
	if t, err := parseTimeString(finishedRaw); err == nil {
		run.FinishedAt = t
	}
	return run, nil
}

// timeLayout is fixed width so stored values sort chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
