package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/yanqian/batch-summarizer/internal/domain/batchsum"
)

func TestMemoryLedgerLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := NewMemoryLedger()
	finished := time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return finished }

	runID := uuid.New()
	started := finished.Add(-time.Hour)
	require.NoError(t, l.StartRun(ctx, batchsum.Run{ID: runID, InputPath: "in.jsonl", Status: batchsum.RunStatusRunning, StartedAt: started}))
	require.Error(t, l.StartRun(ctx, batchsum.Run{ID: runID}))

	require.NoError(t, l.RecordBatch(ctx, batchsum.BatchCheckpoint{RunID: runID, BatchIndex: 1, Records: 2, Failed: 1}))
	require.NoError(t, l.RecordBatch(ctx, batchsum.BatchCheckpoint{RunID: runID, BatchIndex: 0, Records: 2}))

	run, ok, err := l.Get(ctx, runID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 2, run.Batches)
	require.Equal(t, 4, run.Records)
	require.Equal(t, 1, run.Failed)
	require.Nil(t, run.FinishedAt)

	require.NoError(t, l.FinishRun(ctx, runID, batchsum.RunStatusCompleted, batchsum.RunReport{Batches: 2, Records: 4, Failed: 1}))
	run, _, _ = l.Get(ctx, runID)
	require.Equal(t, batchsum.RunStatusCompleted, run.Status)
	require.NotNil(t, run.FinishedAt)
	require.Equal(t, finished, *run.FinishedAt)
	require.Equal(t, started, run.StartedAt)

	cps, err := l.Checkpoints(ctx, runID)
	require.NoError(t, err)
	require.Len(t, cps, 2)
	require.Equal(t, 0, cps[0].BatchIndex)
	require.Equal(t, 1, cps[1].BatchIndex)
}

func TestMemoryLedgerUnknownRun(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := NewMemoryLedger()
	unknown := uuid.New()

	require.Error(t, l.RecordBatch(ctx, batchsum.BatchCheckpoint{RunID: unknown}))
	require.Error(t, l.FinishRun(ctx, unknown, batchsum.RunStatusFailed, batchsum.RunReport{}))
	_, ok, err := l.Get(ctx, unknown)
	require.NoError(t, err)
	require.False(t, ok)
}
