package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/batch-summarizer/internal/domain/batchsum"
)

// MemoryLedger keeps runs in process memory. It is used when no database is
// configured and in tests.
type MemoryLedger struct {
	mu          sync.RWMutex
	runs        map[uuid.UUID]batchsum.Run
	checkpoints map[uuid.UUID][]batchsum.BatchCheckpoint
	now         func() time.Time
}

// NewMemoryLedger constructs an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		runs:        make(map[uuid.UUID]batchsum.Run),
		checkpoints: make(map[uuid.UUID][]batchsum.BatchCheckpoint),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryLedger) StartRun(_ context.Context, run batchsum.Run) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.runs[run.ID]; ok {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	l.runs[run.ID] = run
	return nil
}

func (l *MemoryLedger) RecordBatch(_ context.Context, cp batchsum.BatchCheckpoint) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	run, ok := l.runs[cp.RunID]
	if !ok {
		return fmt.Errorf("run %s not found", cp.RunID)
	}
	run.Batches++
	run.Records += cp.Records
	run.Failed += cp.Failed
	l.runs[cp.RunID] = run
	l.checkpoints[cp.RunID] = append(l.checkpoints[cp.RunID], cp)
	return nil
}

func (l *MemoryLedger) FinishRun(_ context.Context, runID uuid.UUID, status batchsum.RunStatus, report batchsum.RunReport) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	run, ok := l.runs[runID]
	if !ok {
		return fmt.Errorf("run %s not found", runID)
	}
	finished := l.now()
	run.Status = status
	run.Batches = report.Batches
	run.Records = report.Records
	run.Failed = report.Failed
	run.FinishedAt = &finished
	l.runs[runID] = run
	return nil
}

// Get loads a run by id.
func (l *MemoryLedger) Get(_ context.Context, runID uuid.UUID) (batchsum.Run, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	run, ok := l.runs[runID]
	return run, ok, nil
}

// Checkpoints lists the recorded batches of a run in order.
func (l *MemoryLedger) Checkpoints(_ context.Context, runID uuid.UUID) ([]batchsum.BatchCheckpoint, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := append([]batchsum.BatchCheckpoint(nil), l.checkpoints[runID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].BatchIndex < out[j].BatchIndex })
	return out, nil
}

var _ batchsum.RunLedger = (*MemoryLedger)(nil)
