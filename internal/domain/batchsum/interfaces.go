package batchsum

import (
	"context"

	"github.com/google/uuid"
)

// BatchSource yields batches in file order. Next returns io.EOF once the
// source is exhausted. A source is forward-only and cannot be restarted.
type BatchSource interface {
	Next(ctx context.Context) (Batch, error)
	Close() error
}

// SourceOpener opens a BatchSource over the file at path. It must fail with
// a source_not_found error when path is not an existing regular file.
type SourceOpener interface {
	Open(path string, chunkSize int) (BatchSource, error)
}

// Summarizer is the inference boundary. Implementations own model and
// tokenizer state and are shared across every call of a run.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// SinkState is the write mode of a TableSink.
type SinkState string

const (
	SinkUninitialized SinkState = "uninitialized"
	SinkHeaderWritten SinkState = "header_written"
	SinkAppending     SinkState = "appending"
)

// TableSink persists rows of a fixed column set. The first Append truncates
// the target and writes the header; later calls append rows only. Each call
// is a single write covering all rows.
type TableSink interface {
	Append(ctx context.Context, rows [][]string) error
	State() SinkState
	Path() string
	Close() error
}

// SinkFactory creates a fresh, uninitialized sink for one run.
type SinkFactory interface {
	NewSink(name string, columns []string) TableSink
}

// RunLedger keeps a durable trail of runs and batch checkpoints.
type RunLedger interface {
	StartRun(ctx context.Context, run Run) error
	RecordBatch(ctx context.Context, cp BatchCheckpoint) error
	FinishRun(ctx context.Context, runID uuid.UUID, status RunStatus, report RunReport) error
}

// EventPublisher announces completed batches to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event BatchEvent) error
}
