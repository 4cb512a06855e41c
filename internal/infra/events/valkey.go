package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/batch-summarizer/internal/domain/batchsum"
)

const defaultQueueKey = "batchsum:events"

type eventEnvelope struct {
	Type  string              `json:"type"`
	Event batchsum.BatchEvent `json:"event"`
}

// ValkeyPublisher pushes batch events onto a Valkey list for downstream
// consumers, newest first.
type ValkeyPublisher struct {
	client   valkey.Client
	queueKey string
	logger   *slog.Logger
}

// NewValkeyPublisher constructs a Valkey-backed publisher.
func NewValkeyPublisher(client valkey.Client, queueKey string, logger *slog.Logger) *ValkeyPublisher {
	if queueKey == "" {
		queueKey = defaultQueueKey
	}
	return &ValkeyPublisher{
		client:   client,
		queueKey: queueKey,
		logger:   logger.With("component", "events.valkey"),
	}
}

// Publish LPUSHes the JSON encoded event.
func (p *ValkeyPublisher) Publish(ctx context.Context, event batchsum.BatchEvent) error {
	encoded, err := encodeEvent(event)
	if err != nil {
		return err
	}
	cmd := p.client.B().Lpush().Key(p.queueKey).Element(encoded).Build()
	if err := p.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("push batch event: %w", err)
	}
	p.logger.Debug("batch event pushed", "key", p.queueKey, "batch", event.BatchIndex)
	return nil
}

func encodeEvent(event batchsum.BatchEvent) (string, error) {
	encoded, err := json.Marshal(eventEnvelope{Type: "batch.completed", Event: event})
	if err != nil {
		return "", fmt.Errorf("encode batch event: %w", err)
	}
	return string(encoded), nil
}

// DecodeEvent parses a payload produced by Publish.
func DecodeEvent(raw string) (batchsum.BatchEvent, error) {
	var env eventEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return batchsum.BatchEvent{}, fmt.Errorf("decode batch event: %w", err)
	}
	return env.Event, nil
}

var _ batchsum.EventPublisher = (*ValkeyPublisher)(nil)
