// Package store persists attempt traces to a local sqlite database for
// audit and failure debugging.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zen-systems/routegate/pkg/router"
)

const schema = `
CREATE TABLE IF NOT EXISTS traces (
	request_id     TEXT PRIMARY KEY,
	task_type      TEXT NOT NULL,
	final_status   TEXT NOT NULL,
	quality_score  INTEGER NOT NULL,
	failure_reason TEXT NOT NULL DEFAULT '',
	attempts       TEXT NOT NULL,
	elapsed_ms     INTEGER NOT NULL,
	created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_traces_created_at ON traces(created_at);
`

// Store is a sqlite-backed trace store.
type Store struct {
	db *sql.DB
}

// TraceRecord is one persisted routing trace.
type TraceRecord struct {
	RequestID     string
	TaskType      string
	FinalStatus   string
	QualityScore  int
	FailureReason string
	Attempts      []router.Attempt
	ElapsedMS     int64
	CreatedAt     time.Time
}

// Open opens (or creates) the trace database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open trace database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create trace schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveTrace persists one router result. Implements router.TraceStore.
func (s *Store) SaveTrace(ctx context.Context, result *router.Result) error {
	attempts, err := json.Marshal(result.Attempts)
	if err != nil {
		return fmt.Errorf("marshal attempts: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO traces (request_id, task_type, final_status, quality_score, failure_reason, attempts, elapsed_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RequestID,
		string(result.TaskType),
		string(result.FinalStatus),
		result.QualityScore,
		result.FailureReason,
		string(attempts),
		result.ElapsedMS,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert trace: %w", err)
	}
	return nil
}

// ListTraces returns the most recent traces, newest first.
func (s *Store) ListTraces(ctx context.Context, limit int) ([]TraceRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT request_id, task_type, final_status, quality_score, failure_reason, attempts, elapsed_ms, created_at
		 FROM traces ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query traces: %w", err)
	}
	defer rows.Close()

	var records []TraceRecord
	for rows.Next() {
		record, err := scanTrace(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// GetTrace loads one trace by request id.
func (s *Store) GetTrace(ctx context.Context, requestID string) (*TraceRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT request_id, task_type, final_status, quality_score, failure_reason, attempts, elapsed_ms, created_at
		 FROM traces WHERE request_id = ?`, requestID)
	record, err := scanTrace(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("trace %s not found", requestID)
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrace(row rowScanner) (TraceRecord, error) {
	var record TraceRecord
	var attempts string
	var createdAt string
	if err := row.Scan(&record.RequestID, &record.TaskType, &record.FinalStatus,
		&record.QualityScore, &record.FailureReason, &attempts, &record.ElapsedMS, &createdAt); err != nil {
		return TraceRecord{}, err
	}
	if err := json.Unmarshal([]byte(attempts), &record.Attempts); err != nil {
		return TraceRecord{}, fmt.Errorf("unmarshal attempts for %s: %w", record.RequestID, err)
	}
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		record.CreatedAt = ts
	}
	return record, nil
}
