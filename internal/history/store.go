package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// Fixed-width UTC layout so that lexicographic ORDER BY ts_utc is
// chronological. RFC3339Nano strips trailing zeros, which makes a whole
// second sort after a fractional one within the same second.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one recorded parse of a file.
type Run struct {
	ID        string
	Timestamp time.Time
	Path      string
	Grammar   string
	Duration  time.Duration
	NodeCount int
	HasError  bool
}

// Store persists parse runs to a local SQLite database so watch-mode churn
// can be inspected after the fact.
type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}

	// busy_timeout + WAL reduce lock conflicts during watch-mode churn.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordRun inserts one parse run. Missing IDs and timestamps are filled in.
func (s *Store) RecordRun(run Run) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now().UTC()
	}
	if strings.TrimSpace(run.Grammar) == "" {
		return Run{}, fmt.Errorf("run grammar must not be empty")
	}

	hasError := 0
	if run.HasError {
		hasError = 1
	}

	_, err := s.db.Exec(`
INSERT INTO parse_runs (id, ts_utc, path, grammar, duration_us, node_count, has_error)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Timestamp.UTC().Format(tsLayout),
		run.Path,
		run.Grammar,
		run.Duration.Microseconds(),
		run.NodeCount,
		hasError,
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert parse run: %w", err)
	}
	return run, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(`
SELECT id, ts_utc, path, grammar, duration_us, node_count, has_error
FROM parse_runs
ORDER BY ts_utc DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query parse runs: %w", err)
	}
	defer rows.Close()

	out := make([]Run, 0, limit)
	for rows.Next() {
		var (
			run        Run
			ts         string
			durationUS int64
			hasError   int
		)
		if err := rows.Scan(&run.ID, &ts, &run.Path, &run.Grammar, &durationUS, &run.NodeCount, &hasError); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse run timestamp %q: %w", ts, err)
		}
		run.Timestamp = parsed
		run.Duration = time.Duration(durationUS) * time.Microsecond
		run.HasError = hasError != 0
		out = append(out, run)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep runs.
func (s *Store) Prune(keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keep <= 0 {
		return nil
	}
	_, err := s.db.Exec(`
DELETE FROM parse_runs
WHERE id NOT IN (
  SELECT id FROM parse_runs ORDER BY ts_utc DESC LIMIT ?
)`, keep)
	if err != nil {
		return fmt.Errorf("prune parse runs: %w", err)
	}
	return nil
}
