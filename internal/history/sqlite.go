package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store on a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens the ledger database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		root_query TEXT,
		planned_ops INTEGER,
		applied_ops INTEGER,
		error_text TEXT,
		started_at INTEGER,
		duration_ms INTEGER
	);`)
	return err
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, root_query, planned_ops, applied_ops, error_text, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.RootQuery, run.PlannedOps, run.AppliedOps, run.ErrorText,
		run.StartedAt.UnixMilli(), run.Duration.Milliseconds())
	return err
}

func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, root_query, planned_ops, applied_ops, error_text, started_at, duration_ms
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		var startedAt, durationMS int64
		if err := rows.Scan(&run.ID, &run.RootQuery, &run.PlannedOps, &run.AppliedOps,
			&run.ErrorText, &startedAt, &durationMS); err != nil {
			return nil, err
		}
		run.StartedAt = time.UnixMilli(startedAt)
		run.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, run)
	}
	return out, rows.Err()
}
