package history

import (
	"apimatch/internal/shared/observability"
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

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

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

	// busy_timeout + WAL reduce lock conflicts while watch mode keeps writing.
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

// SaveRun writes run and its matches in one transaction. A run without an ID
// gets a fresh UUID; saving an existing ID replaces it.
func (s *Store) SaveRun(run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(run.ID) == "" {
		run.ID = uuid.NewString()
	}
	if strings.TrimSpace(run.Kind) == "" {
		return fmt.Errorf("run %s has no kind", run.ID)
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	err := s.withRetry("save run", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM matches WHERE run_id = ?`, run.ID); err != nil {
			_ = tx.Rollback()
			return err
		}
		_, err = tx.Exec(`
INSERT INTO runs (
  id, kind, started_at_utc, duration_ms, catalog_fingerprint, items, succeeded, unmatched, failed, fallbacks
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  kind=excluded.kind,
  started_at_utc=excluded.started_at_utc,
  duration_ms=excluded.duration_ms,
  catalog_fingerprint=excluded.catalog_fingerprint,
  items=excluded.items,
  succeeded=excluded.succeeded,
  unmatched=excluded.unmatched,
  failed=excluded.failed,
  fallbacks=excluded.fallbacks
`,
			run.ID,
			run.Kind,
			run.StartedAt.UTC().Format(time.RFC3339Nano),
			run.Duration.Milliseconds(),
			run.CatalogFingerprint,
			run.Items,
			run.Succeeded,
			run.Unmatched,
			run.Failed,
			run.Fallbacks,
		)
		if err != nil {
			_ = tx.Rollback()
			return err
		}

		stmt, err := tx.Prepare(`
INSERT INTO matches (
  run_id, item_key, step_number, rank, full_signature, owning_class, method_name, confidence, reasoning
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		for _, m := range run.Matches {
			if _, err := stmt.Exec(run.ID, m.ItemKey, m.StepNumber, m.Rank, m.FullSignature, m.OwningClass, m.MethodName, m.Confidence, m.Reasoning); err != nil {
				_ = stmt.Close()
				_ = tx.Rollback()
				return err
			}
		}
		_ = stmt.Close()
		return tx.Commit()
	})
	if err != nil {
		observability.HistoryWritesTotal.WithLabelValues("error").Inc()
		return err
	}
	observability.HistoryWritesTotal.WithLabelValues("ok").Inc()
	return nil
}

// LoadRuns returns the most recent runs, newest first, without their
// matches. limit <= 0 returns every run.
func (s *Store) LoadRuns(limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
SELECT id, kind, started_at_utc, duration_ms, catalog_fingerprint, items, succeeded, unmatched, failed, fallbacks
FROM runs
ORDER BY started_at_utc DESC, id ASC
`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows *sql.Rows
	err := s.withRetry("load runs", func() error {
		var qErr error
		rows, qErr = s.db.Query(query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var (
			run        Run
			startedRaw string
			durationMS int64
		)
		if err := rows.Scan(
			&run.ID,
			&run.Kind,
			&startedRaw,
			&durationMS,
			&run.CatalogFingerprint,
			&run.Items,
			&run.Succeeded,
			&run.Unmatched,
			&run.Failed,
			&run.Fallbacks,
		); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		started, err := time.Parse(time.RFC3339Nano, startedRaw)
		if err != nil {
			return nil, fmt.Errorf("parse run timestamp %q: %w", startedRaw, err)
		}
		run.StartedAt = started.UTC()
		run.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// LoadMatches returns the matches of one run ordered by item and rank.
func (s *Store) LoadMatches(runID string) ([]MatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows *sql.Rows
	err := s.withRetry("load matches", func() error {
		var qErr error
		rows, qErr = s.db.Query(`
SELECT run_id, item_key, step_number, rank, full_signature, owning_class, method_name, confidence, reasoning
FROM matches
WHERE run_id = ?
ORDER BY step_number ASC, item_key ASC, rank ASC
`, runID)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]MatchRecord, 0)
	for rows.Next() {
		var m MatchRecord
		if err := rows.Scan(
			&m.RunID,
			&m.ItemKey,
			&m.StepNumber,
			&m.Rank,
			&m.FullSignature,
			&m.OwningClass,
			&m.MethodName,
			&m.Confidence,
			&m.Reasoning,
		); err != nil {
			return nil, fmt.Errorf("scan match row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate match rows: %w", err)
	}
	return out, nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

// IsCorruptError reports whether err looks like a damaged database file.
func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database")
}
