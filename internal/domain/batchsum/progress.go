package batchsum

import (
	"sync"

	"github.com/google/uuid"

	"github.com/yanqian/batch-summarizer/pkg/util"
)

// progressTracker is the only state shared with readers outside the run loop.
type progressTracker struct {
	mu   sync.RWMutex
	now  util.Clock
	snap Progress
}

func newProgressTracker(now util.Clock) *progressTracker {
	return &progressTracker{now: now, snap: Progress{State: StateReady}}
}

func (t *progressTracker) begin(runID uuid.UUID, inputPath string, maxBatches int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ts := t.now()
	t.snap = Progress{
		RunID:      runID,
		InputPath:  inputPath,
		State:      StateReady,
		MaxBatches: maxBatches,
		StartedAt:  ts,
		UpdatedAt:  ts,
	}
}

func (t *progressTracker) enter(state State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.State = state
	t.snap.UpdatedAt = t.now()
}

func (t *progressTracker) batchDone(counter, records, failed int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Counter = counter
	t.snap.Records += records
	t.snap.Failed += failed
	t.snap.UpdatedAt = t.now()
}

func (t *progressTracker) finish(reason StopReason) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.State = StateDone
	t.snap.StopReason = reason
	t.snap.UpdatedAt = t.now()
}

func (t *progressTracker) snapshot() Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}
