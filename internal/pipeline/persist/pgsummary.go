package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// RunHistoryStore records one row per completed run so an agent or a
// dashboard can look up past runs without re-reading their JSON summaries.
// Grounded on pgx.Connect's direct *pgx.Conn usage.
type RunHistoryStore struct {
	conn *pgx.Conn
}

// NewRunHistoryStore connects to Postgres and ensures the run_history table
// exists.
func NewRunHistoryStore(ctx context.Context, dsn string) (*RunHistoryStore, error) {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("persist: connect postgres: %w", err)
	}
	const ddl = `CREATE TABLE IF NOT EXISTS run_history (
		id SERIAL PRIMARY KEY,
		dataset_tag TEXT NOT NULL,
		total_chunks INT NOT NULL,
		total_qa_pairs INT NOT NULL,
		submitted INT NOT NULL,
		success INT NOT NULL,
		failure INT NOT NULL,
		error INT NOT NULL,
		coverage_rate DOUBLE PRECISION,
		summary_path TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`
	if _, err := conn.Exec(ctx, ddl); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("persist: create run_history table: %w", err)
	}
	return &RunHistoryStore{conn: conn}, nil
}

// Record inserts one row for a completed run.
func (s *RunHistoryStore) Record(ctx context.Context, summary Summary, summaryPath string, createdAt time.Time) error {
	const stmt = `INSERT INTO run_history
		(dataset_tag, total_chunks, total_qa_pairs, submitted, success, failure, error, coverage_rate, summary_path, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err := s.conn.Exec(ctx, stmt,
		summary.DatasetTag, summary.TotalChunks, summary.TotalQAPairs,
		summary.Submitted, summary.Success, summary.Failure, summary.Error,
		summary.CoverageRate, summaryPath, createdAt.UTC())
	if err != nil {
		return fmt.Errorf("persist: insert run_history row: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *RunHistoryStore) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}
