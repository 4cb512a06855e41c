package batchsum

import (
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/batch-summarizer/pkg/metrics"
)

// SentinelSummary is stored for a record whose inference call failed.
const SentinelSummary = "No summary"

// Config configures the orchestrator.
type Config struct {
	TitleColumn    string
	BodyColumn     string
	SummaryColumn  string
	ChunkSize      int
	MaxChunkCount  int
	PromptTemplate string
	CleanFile      string
	OutputFile     string
	Verbose        bool
}

// Columns names the two input fields kept by normalization.
type Columns struct {
	Title string
	Body  string
}

// RawRecord is one decoded input row keyed by column name.
type RawRecord map[string]any

// Batch is a fixed-size, ordered group of raw rows as read from the source.
type Batch struct {
	Index int
	Rows  []RawRecord
}

// Record is one document after normalization.
type Record struct {
	Title string
	Body  string
}

// NormalizedBatch holds exactly one Record per input row, in input order.
type NormalizedBatch struct {
	Index   int
	Records []Record
}

// SummarizedRecord pairs a record with its summary.
type SummarizedRecord struct {
	Record
	Summary string
}

// AugmentedBatch is a NormalizedBatch plus the aligned summary column.
type AugmentedBatch struct {
	Index int
	Rows  []SummarizedRecord
}

// RecordOutcome is the result of summarizing one record. Err is nil on success.
type RecordOutcome struct {
	Summary string
	Err     error
}

// State names a step of the orchestration loop.
type State string

const (
	StateReady            State = "ready"
	StateNormalizing      State = "normalizing"
	StatePersistClean     State = "persist_clean"
	StateSummarizing      State = "summarizing"
	StatePersistOutput    State = "persist_output"
	StateCheckTermination State = "check_termination"
	StateDone             State = "done"
)

// StopReason explains why a run reached StateDone.
type StopReason string

const (
	StopSourceExhausted StopReason = "source_exhausted"
	StopMaxChunkCount   StopReason = "max_chunk_count"
	StopInterrupted     StopReason = "interrupted"
	StopFailed          StopReason = "failed"
)

// RunStatus tracks a run in the ledger.
type RunStatus string

const (
	RunStatusRunning     RunStatus = "running"
	RunStatusCompleted   RunStatus = "completed"
	RunStatusInterrupted RunStatus = "interrupted"
	RunStatusFailed      RunStatus = "failed"
)

// Run is the ledger entry for one pipeline execution.
type Run struct {
	ID         uuid.UUID  `json:"id"`
	InputPath  string     `json:"inputPath"`
	Status     RunStatus  `json:"status"`
	Batches    int        `json:"batches"`
	Records    int        `json:"records"`
	Failed     int        `json:"failed"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// BatchCheckpoint is recorded after both sinks accepted a batch.
type BatchCheckpoint struct {
	RunID       uuid.UUID `json:"runId"`
	BatchIndex  int       `json:"batchIndex"`
	Records     int       `json:"records"`
	Failed      int       `json:"failed"`
	CompletedAt time.Time `json:"completedAt"`
}

// BatchEvent is published once per completed batch.
type BatchEvent struct {
	RunID       uuid.UUID `json:"runId"`
	BatchIndex  int       `json:"batchIndex"`
	Records     int       `json:"records"`
	Failed      int       `json:"failed"`
	CleanPath   string    `json:"cleanPath"`
	OutputPath  string    `json:"outputPath"`
	CompletedAt time.Time `json:"completedAt"`
}

// RunReport summarizes a finished run.
type RunReport struct {
	RunID      uuid.UUID          `json:"runId"`
	Batches    int                `json:"batches"`
	Records    int                `json:"records"`
	Summarized int                `json:"summarized"`
	Failed     int                `json:"failed"`
	StopReason StopReason         `json:"stopReason"`
	CleanPath  string             `json:"cleanPath"`
	OutputPath string             `json:"outputPath"`
	DurationMs int64              `json:"durationMs"`
	TokenUsage metrics.TokenUsage `json:"tokenUsage"`
}

// Progress is a point-in-time view of the running pipeline.
type Progress struct {
	RunID      uuid.UUID  `json:"runId"`
	InputPath  string     `json:"inputPath"`
	State      State      `json:"state"`
	Counter    int        `json:"counter"`
	MaxBatches int        `json:"maxBatches"`
	Records    int        `json:"records"`
	Failed     int        `json:"failed"`
	StopReason StopReason `json:"stopReason,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}
