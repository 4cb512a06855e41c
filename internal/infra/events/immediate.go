package events

import (
	"context"
	"log/slog"

	"github.com/yanqian/batch-summarizer/internal/domain/batchsum"
)

// Handler receives a published batch event.
type Handler func(ctx context.Context, event batchsum.BatchEvent)

// ImmediatePublisher hands events to a handler in the caller's goroutine.
type ImmediatePublisher struct {
	handler Handler
}

// NewImmediatePublisher constructs the publisher. A nil handler drops events.
func NewImmediatePublisher(handler Handler) *ImmediatePublisher {
	return &ImmediatePublisher{handler: handler}
}

// LogHandler writes each event to the logger at debug level.
func LogHandler(logger *slog.Logger) Handler {
	logger = logger.With("component", "events.immediate")
	return func(_ context.Context, event batchsum.BatchEvent) {
		logger.Debug("batch event",
			"runId", event.RunID.String(),
			"batch", event.BatchIndex,
			"records", event.Records,
			"failed", event.Failed,
		)
	}
}

// Publish invokes the handler.
func (p *ImmediatePublisher) Publish(ctx context.Context, event batchsum.BatchEvent) error {
	if p.handler == nil {
		return nil
	}
	p.handler(ctx, event)
	return nil
}

var _ batchsum.EventPublisher = (*ImmediatePublisher)(nil)
