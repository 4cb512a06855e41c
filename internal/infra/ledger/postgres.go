package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yanqian/batch-summarizer/internal/domain/batchsum"
)

const schema = `
CREATE TABLE IF NOT EXISTS summarization_runs (
	id UUID PRIMARY KEY,
	input_path TEXT NOT NULL,
	status TEXT NOT NULL,
	stop_reason TEXT,
	batches INTEGER NOT NULL DEFAULT 0,
	records INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS summarization_batches (
	run_id UUID NOT NULL REFERENCES summarization_runs(id) ON DELETE CASCADE,
	batch_index INTEGER NOT NULL,
	records INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	completed_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, batch_index)
);`

// PostgresLedger persists runs and batch checkpoints in Postgres.
type PostgresLedger struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPostgresLedger constructs the ledger.
func NewPostgresLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

// EnsureSchema creates the ledger tables when missing.
func (l *PostgresLedger) EnsureSchema(ctx context.Context) error {
	if _, err := l.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create ledger schema: %w", err)
	}
	return nil
}

func (l *PostgresLedger) StartRun(ctx context.Context, run batchsum.Run) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO summarization_runs (id, input_path, status, started_at)
		VALUES ($1, $2, $3, $4)
	`, run.ID, run.InputPath, run.Status, run.StartedAt)
	return err
}

func (l *PostgresLedger) RecordBatch(ctx context.Context, cp batchsum.BatchCheckpoint) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `
		INSERT INTO summarization_batches (run_id, batch_index, records, failed, completed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id, batch_index) DO UPDATE
		SET records = EXCLUDED.records, failed = EXCLUDED.failed, completed_at = EXCLUDED.completed_at
	`, cp.RunID, cp.BatchIndex, cp.Records, cp.Failed, cp.CompletedAt); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE summarization_runs
		SET batches = batches + 1, records = records + $1, failed = failed + $2
		WHERE id = $3
	`, cp.Records, cp.Failed, cp.RunID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (l *PostgresLedger) FinishRun(ctx context.Context, runID uuid.UUID, status batchsum.RunStatus, report batchsum.RunReport) error {
	_, err := l.pool.Exec(ctx, `
		UPDATE summarization_runs
		SET status = $1, stop_reason = $2, batches = $3, records = $4, failed = $5, prompt_tokens = $6, finished_at = $7
		WHERE id = $8
	`, status, report.StopReason, report.Batches, report.Records, report.Failed, report.TokenUsage.PromptTokens, l.now(), runID)
	return err
}

// Get loads a run by id.
func (l *PostgresLedger) Get(ctx context.Context, runID uuid.UUID) (batchsum.Run, bool, error) {
	row := l.pool.QueryRow(ctx, `
		SELECT id, input_path, status, batches, records, failed, started_at, finished_at
		FROM summarization_runs
		WHERE id = $1
		LIMIT 1
	`, runID)
	var run batchsum.Run
	if err := row.Scan(&run.ID, &run.InputPath, &run.Status, &run.Batches, &run.Records, &run.Failed, &run.StartedAt, &run.FinishedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return batchsum.Run{}, false, nil
		}
		return batchsum.Run{}, false, err
	}
	return run, true, nil
}

// Checkpoints lists the recorded batches of a run in order.
func (l *PostgresLedger) Checkpoints(ctx context.Context, runID uuid.UUID) ([]batchsum.BatchCheckpoint, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT run_id, batch_index, records, failed, completed_at
		FROM summarization_batches
		WHERE run_id = $1
		ORDER BY batch_index
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []batchsum.BatchCheckpoint
	for rows.Next() {
		var cp batchsum.BatchCheckpoint
		if err := rows.Scan(&cp.RunID, &cp.BatchIndex, &cp.Records, &cp.Failed, &cp.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

var _ batchsum.RunLedger = (*PostgresLedger)(nil)
