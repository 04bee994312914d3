// Package history persists run outcomes in SQLite so later runs can report regressions.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ochairo/distcheck/internal/domain/entities"
	"github.com/ochairo/distcheck/internal/domain/interfaces/repositories"
)

//go:embed schema.sql
var schemaSQL string

// Store is a RunHistoryRepository backed by a SQLite file
type Store struct {
	db     *sql.DB
	dbPath string
}

var _ repositories.RunHistoryRepository = (*Store)(nil)

// NewStore opens or creates the history database at dbPath
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	// SQLite has a single writer, and every :memory: connection is a separate database
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := execWithRetry(db, schemaSQL, 5, 10*time.Millisecond); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// execWithRetry retries statements that hit "database is locked" with exponential backoff
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// LastStatuses returns the per-check statuses of the most recent run recorded under key.
// An empty map means no previous run exists.
func (s *Store) LastStatuses(ctx context.Context, key string) (map[string]entities.Status, error) {
	var runID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM runs WHERE history_key = ? ORDER BY id DESC LIMIT 1`, key).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return map[string]entities.Status{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT check_id, status FROM check_results WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("query check results: %w", err)
	}
	//nolint:errcheck // Defer close on read-only rows
	defer rows.Close()

	statuses := make(map[string]entities.Status)
	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			return nil, fmt.Errorf("scan check result: %w", err)
		}
		statuses[id] = entities.Status(status)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate check results: %w", err)
	}
	return statuses, nil
}

// Record stores a finished run and its results in one transaction
func (s *Store) Record(ctx context.Context, key string, report *entities.RunReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	//nolint:errcheck // Rollback after commit is a no-op
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (history_key, report_id, finished_at, exit_code, cancelled) VALUES (?, ?, ?, ?, ?)`,
		key, report.ReportID, report.FinishedAt.UTC(), report.ExitCode, report.Cancelled)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO check_results (run_id, check_id, status, duration_ms) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare result insert: %w", err)
	}
	//nolint:errcheck // Defer close on prepared statement
	defer stmt.Close()

	for _, r := range report.Results {
		if _, err := stmt.ExecContext(ctx, runID, r.ID, string(r.Status), r.Duration.Milliseconds()); err != nil {
			return fmt.Errorf("insert result %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// RunCount returns the number of runs recorded under key
func (s *Store) RunCount(ctx context.Context, key string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM runs WHERE history_key = ?`, key).Scan(&count); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return count, nil
}
